package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"convo/internal/app/commands"
	"convo/internal/app/dto"
	"convo/internal/app/handlers/conversations"
	"convo/internal/app/handlers/directory"
	"convo/internal/app/handlers/messages"
	"convo/internal/app/middleware"
	appoutbox "convo/internal/app/outbox"
	"convo/internal/app/queries"
	"convo/internal/app/uow"
	"convo/internal/domain/user"
	"convo/internal/infra/broker/kafka"
	"convo/internal/infra/broker/rabbitmq"
	"convo/internal/infra/cache/redis"
	"convo/internal/infra/config"
	dbmongo "convo/internal/infra/db/mongo"
	"convo/internal/infra/db/postgres"
	ginserver "convo/internal/infra/http/gin"
	"convo/internal/infra/inbox"
	"convo/internal/infra/obs"
	infraoutbox "convo/internal/infra/outbox"
	"convo/internal/infra/security"
	"convo/internal/infra/storage/memory"
	"convo/internal/infra/storage/s3"
)

const (
	directoryConsumer   = "directory"
	defaultFixturesPath = "data/users.json"
	devJWTSecret        = "convo-dev-secret"
	conflictRetries     = 3
)

type closer func(ctx context.Context) error

// storage is the set of adapters one STORAGE_DRIVER provides.
type storage struct {
	factory uow.Factory
	users   user.Store
	relay   infraoutbox.Store
	idem    middleware.IdempotencyStore
	inbox   inbox.Store
	checks  map[string]obs.Check
	closers []closer
}

type application struct {
	handlers ginserver.Handlers
	health   obs.HealthHandlers
	worker   *infraoutbox.Worker
	consumer *kafka.Consumer
	closers  []closer
}

func (a application) close(logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			logger.Warn("resource close failed", "error", err)
		}
	}
}

func buildApplication(ctx context.Context, cfg config.Config, logger *slog.Logger) (application, error) {
	st, err := openStorage(ctx, cfg, logger)
	if err != nil {
		return application{}, err
	}
	app := application{closers: st.closers}
	fail := func(err error) (application, error) {
		app.close(logger)
		return application{}, err
	}

	if cfg.RedisAddr != "" {
		client, err := redis.NewClient(ctx, redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		if err != nil {
			return fail(err)
		}
		st.idem = redis.NewIdempotencyStore(client, cfg.IdempotencyTTL)
		st.checks["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
		app.closers = append(app.closers, func(context.Context) error { return client.Close() })
	}

	seedUsers(ctx, cfg, st.users, logger)

	producer, closeProducer, err := openProducer(cfg, logger)
	if err != nil {
		return fail(err)
	}
	if closeProducer != nil {
		app.closers = append(app.closers, closeProducer)
	}
	worker := infraoutbox.NewWorker(st.relay, producer)
	worker.Interval = cfg.OutboxPollInterval
	worker.Backoff = cfg.RetryBackoff
	worker.TopicPrefix = cfg.KafkaTopicPrefix
	worker.Logger = logger
	app.worker = worker

	uploader, err := openUploader(cfg, logger, st.checks)
	if err != nil {
		return fail(err)
	}

	commandBus, queryBus := buildBuses(st, worker, uploader, cfg.UploadMaxBytes, logger)

	if cfg.KafkaUserTopic != "" {
		consumer, err := kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaConsumerGroup, &kafka.DirectoryHandler{
			Commands: commandBus,
			Inbox:    st.inbox,
			Logger:   logger,
		}, logger)
		if err != nil {
			return fail(err)
		}
		app.consumer = consumer
	}

	tokens, err := openTokens(cfg, logger)
	if err != nil {
		return fail(err)
	}

	app.health = obs.HealthHandlers{Checks: st.checks}
	app.handlers = ginserver.Handlers{
		Conversations:  ginserver.ConversationHandler{Commands: commandBus, Queries: queryBus, Logger: logger},
		Messages:       ginserver.MessageHandler{Commands: commandBus, Logger: logger},
		Uploads:        ginserver.UploadHandler{Commands: commandBus, MaxBytes: cfg.UploadMaxBytes, Logger: logger},
		AuthMiddleware: ginserver.AuthMiddleware{Tokens: tokens, Logger: logger}.Handle,
	}
	return app, nil
}

// buildBuses registers every handler and wraps the buses in their middleware, outermost first.
func buildBuses(st storage, relay appoutbox.Relay, uploader s3.Uploader, maxUpload int64, logger *slog.Logger) (commands.Bus, queries.Bus) {
	encoder := appoutbox.JSONEventEncoder{}
	clock := func() time.Time { return time.Now().UTC() }
	resolver := &conversations.Resolver{Users: st.users, Encoder: encoder, Clock: clock, NewID: uuid.NewString}
	manager := &conversations.ParticipantManager{
		UoWFactory: st.factory,
		Users:      st.users,
		Encoder:    encoder,
		Clock:      clock,
		Logger:     logger,
	}

	registry := commands.NewRegistry()
	commands.Register[conversations.StartConversationCommand, dto.StartResult](registry,
		&conversations.StartConversationHandler{UoWFactory: st.factory, Resolver: resolver, Logger: logger})
	commands.Register[conversations.AddParticipantsCommand, dto.MembershipResult](registry,
		commands.HandlerFunc[conversations.AddParticipantsCommand, dto.MembershipResult](manager.Add))
	commands.Register[conversations.RemoveParticipantCommand, dto.MembershipResult](registry,
		commands.HandlerFunc[conversations.RemoveParticipantCommand, dto.MembershipResult](manager.Remove))
	commands.Register[conversations.LeaveConversationCommand, dto.MembershipResult](registry,
		commands.HandlerFunc[conversations.LeaveConversationCommand, dto.MembershipResult](manager.Leave))
	commands.Register[conversations.RenameConversationCommand, dto.MembershipResult](registry,
		commands.HandlerFunc[conversations.RenameConversationCommand, dto.MembershipResult](manager.Rename))
	commands.Register[messages.ListMessagesCommand, dto.MessagePage](registry,
		&messages.ListMessagesHandler{UoWFactory: st.factory, Resolver: resolver, Clock: clock, Logger: logger})
	commands.Register[messages.SendMessageCommand, dto.SendResult](registry,
		&messages.SendMessageHandler{UoWFactory: st.factory, Resolver: resolver, Encoder: encoder, Clock: clock, Logger: logger})
	commands.Register[messages.UploadImageCommand, dto.Upload](registry,
		&messages.UploadImageHandler{Uploader: uploader, MaxBytes: maxUpload, Logger: logger})
	commands.Register[directory.UpsertUserCommand, user.User](registry,
		&directory.UpsertUserHandler{Users: st.users, Logger: logger})

	queryRegistry := queries.NewRegistry()
	queries.Register[conversations.ListConversationsQuery, dto.ConversationList](queryRegistry,
		&conversations.ListConversationsHandler{UoWFactory: st.factory, Users: st.users})

	commandBus := middleware.ChainCommands(registry,
		middleware.Logging(logger),
		middleware.Authorization(middleware.RequireCaller{}),
		middleware.Validation(middleware.SelfValidating{}),
		middleware.Idempotency(st.idem, middleware.JSONResultCodec{}),
		middleware.OutboxFlush(relay),
		middleware.RetryOnConflict(conflictRetries, logger),
		middleware.Transaction(st.factory, middleware.CommandTxOptions),
	)
	queryBus := middleware.ChainQueries(queryRegistry,
		middleware.QueryLogging(logger),
		middleware.QueryAuthorization(middleware.RequireCaller{}),
		middleware.QueryValidation(middleware.SelfValidating{}),
	)
	return commandBus, queryBus
}

func openStorage(ctx context.Context, cfg config.Config, logger *slog.Logger) (storage, error) {
	switch cfg.StorageDriver {
	case config.DriverMongo:
		return openMongo(ctx, cfg)
	case config.DriverPostgres:
		return openPostgres(ctx, cfg)
	default:
		logger.Warn("using in-memory storage; data is lost on restart")
		store := memory.NewStore()
		return storage{
			factory: store,
			users:   memory.NewUserDirectory(),
			relay:   memory.NewOutboxRelay(store),
			idem:    memory.NewIdempotencyStore(cfg.IdempotencyTTL),
			inbox:   memory.NewInboxStore(directoryConsumer),
			checks:  map[string]obs.Check{},
		}, nil
	}
}

func openMongo(ctx context.Context, cfg config.Config) (storage, error) {
	client, err := dbmongo.New(ctx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		return storage{}, err
	}
	st := storage{
		checks:  map[string]obs.Check{"mongo": client.Ping},
		closers: []closer{client.Close},
	}
	failed := func(err error) (storage, error) {
		_ = client.Close(context.Background())
		return storage{}, err
	}
	if err := dbmongo.EnsureIndexes(ctx, client.DB); err != nil {
		return failed(fmt.Errorf("mongo: ensure indexes: %w", err))
	}
	box, err := infraoutbox.NewMongoStore(ctx, client.DB)
	if err != nil {
		return failed(err)
	}
	idem, err := dbmongo.NewIdempotencyStore(ctx, client.DB, cfg.IdempotencyTTL)
	if err != nil {
		return failed(err)
	}
	in, err := inbox.NewMongoStore(ctx, client.DB, directoryConsumer)
	if err != nil {
		return failed(err)
	}
	st.factory = dbmongo.Factory{DB: client.DB, Outbox: box}
	st.users = dbmongo.NewUserRepository(client.DB)
	st.relay = box
	st.idem = idem
	st.inbox = in
	return st, nil
}

func openPostgres(ctx context.Context, cfg config.Config) (storage, error) {
	db, err := postgres.Open(ctx, cfg.PostgresDSN)
	if err != nil {
		return storage{}, err
	}
	return storage{
		factory: postgres.Factory{DB: db},
		users:   postgres.NewUserRepository(db),
		relay:   postgres.NewOutboxStore(db),
		// Without REDIS_ADDR idempotency keys live in process memory.
		idem:    memory.NewIdempotencyStore(cfg.IdempotencyTTL),
		inbox:   inbox.NewPostgresStore(db, directoryConsumer),
		checks:  map[string]obs.Check{"postgres": db.PingContext},
		closers: []closer{func(context.Context) error { return db.Close() }},
	}, nil
}

func openProducer(cfg config.Config, logger *slog.Logger) (infraoutbox.Producer, closer, error) {
	switch cfg.Broker {
	case config.BrokerKafka:
		p, err := kafka.NewProducer(cfg.KafkaBrokers, "convo")
		if err != nil {
			return nil, nil, fmt.Errorf("kafka producer: %w", err)
		}
		return p, func(context.Context) error { return p.Close() }, nil
	case config.BrokerRabbitMQ:
		p, err := rabbitmq.Dial(cfg.RabbitMQURL, cfg.RabbitMQExchange)
		if err != nil {
			return nil, nil, fmt.Errorf("rabbitmq publisher: %w", err)
		}
		return p, func(context.Context) error { return p.Close() }, nil
	default:
		return infraoutbox.LogProducer{Logger: logger}, nil, nil
	}
}

func openUploader(cfg config.Config, logger *slog.Logger, checks map[string]obs.Check) (s3.Uploader, error) {
	if cfg.S3Endpoint == "" {
		logger.Info("S3_ENDPOINT not set, image uploads disabled")
		return s3.NoopUploader{}, nil
	}
	client, err := s3.NewClient(s3.Options{
		Endpoint:       cfg.S3Endpoint,
		PublicEndpoint: cfg.S3PublicEndpoint,
		AccessKey:      cfg.S3AccessKey,
		SecretKey:      cfg.S3SecretKey,
		Bucket:         cfg.S3Bucket,
		UseSSL:         cfg.S3UseSSL,
	}, logger)
	if err != nil {
		return nil, err
	}
	checks["s3"] = client.Ping
	return client, nil
}

func openTokens(cfg config.Config, logger *slog.Logger) (*security.Tokens, error) {
	secret := cfg.JWTSecret
	if secret == "" {
		logger.Warn("JWT_SECRET not set, using the development secret")
		secret = devJWTSecret
	}
	return security.NewTokens(secret, cfg.JWTIssuer, security.DefaultTokenTTL)
}

// seedUsers loads the directory fixtures. A missing file only matters when configured.
func seedUsers(ctx context.Context, cfg config.Config, users user.Store, logger *slog.Logger) {
	path := cfg.UsersFixtures
	if path == "" {
		if !cfg.IsLocal() {
			return
		}
		path = defaultFixturesPath
	}
	n, err := memory.LoadUserFixtures(ctx, users, path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		logger.Info("user fixtures not found, skipping", "path", path)
	case err != nil:
		logger.Warn("user fixtures load failed", "path", path, "error", err)
	default:
		logger.Info("user fixtures loaded", "path", path, "count", n)
	}
}
