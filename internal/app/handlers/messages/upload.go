package messages

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"

	"github.com/google/uuid"

	"convo/internal/app/commands"
	"convo/internal/app/dto"
	"convo/internal/app/uow"
	"convo/internal/domain/shared/fault"
	"convo/internal/domain/user"
	"convo/internal/infra/storage/s3"
)

const (
	uploadImageKey = "messages.images.upload"
	// DefaultMaxUploadBytes applies when the handler has no explicit limit.
	DefaultMaxUploadBytes int64 = 10 << 20
)

var (
	ErrFileRequired       = fault.Invalid("messages: file is required")
	ErrUnsupportedImage   = fault.Invalid("messages: only image uploads are supported")
	ErrFileTooLarge       = fault.Invalid("messages: file too large")
	errUploaderNotPresent = errors.New("messages: image uploader unavailable")
)

// UploadImageCommand stores an image attachment and answers the URL to send in imageUrls.
type UploadImageCommand struct {
	CallerID    user.ID
	Filename    string
	ContentType string
	Size        int64
	Reader      io.Reader
}

func (c UploadImageCommand) Key() string     { return uploadImageKey }
func (c UploadImageCommand) Caller() user.ID { return c.CallerID }

// TxOptions keeps the blob transfer outside any unit of work.
func (c UploadImageCommand) TxOptions() uow.TxOptions {
	return uow.TxOptions{Bypass: true}
}

func (c UploadImageCommand) Validate() error {
	if c.Reader == nil || c.Size <= 0 {
		return ErrFileRequired
	}
	if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(c.ContentType)), "image/") {
		return ErrUnsupportedImage
	}
	return nil
}

type UploadImageHandler struct {
	Uploader s3.Uploader
	MaxBytes int64
	Logger   *slog.Logger
}

func (h *UploadImageHandler) Handle(ctx context.Context, cmd UploadImageCommand) (dto.Upload, error) {
	if h.Uploader == nil {
		return dto.Upload{}, errUploaderNotPresent
	}
	limit := h.MaxBytes
	if limit <= 0 {
		limit = DefaultMaxUploadBytes
	}
	if cmd.Size > limit {
		return dto.Upload{}, fmt.Errorf("%w (max %d bytes)", ErrFileTooLarge, limit)
	}
	key := ObjectKey(cmd.CallerID, cmd.Filename, cmd.ContentType)
	url, err := h.Uploader.Upload(ctx, key, io.LimitReader(cmd.Reader, limit), cmd.ContentType)
	if err != nil {
		return dto.Upload{}, fmt.Errorf("upload image: %w", err)
	}
	if h.Logger != nil {
		h.Logger.Info("image uploaded", "caller_id", cmd.CallerID, "key", key, "size", cmd.Size)
	}
	return dto.Upload{URL: url}, nil
}

// ObjectKey places uploads under the uploader's id with a random name.
func ObjectKey(caller user.ID, filename, contentType string) string {
	ext := extensionFor(contentType)
	if ext == "" {
		ext = strings.ToLower(path.Ext(filename))
	}
	if ext == "" {
		ext = ".img"
	}
	return fmt.Sprintf("uploads/%s/%s%s", sanitizeToken(string(caller)), uuid.NewString(), ext)
}

func extensionFor(contentType string) string {
	switch strings.ToLower(contentType) {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	default:
		return ""
	}
}

func sanitizeToken(value string) string {
	var b strings.Builder
	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "anonymous"
	}
	return b.String()
}

var _ commands.Handler[UploadImageCommand, dto.Upload] = (*UploadImageHandler)(nil)
