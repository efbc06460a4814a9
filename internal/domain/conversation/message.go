package conversation

import (
	"net/url"
	"slices"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"convo/internal/domain/shared/fault"
	"convo/internal/domain/user"
)

const (
	MaxContentLength = 4000
	MaxImages        = 10
	maxShareIDLength = 128
)

var (
	ErrEmptyMessage    = fault.Invalid("message: content, images or a share is required")
	ErrContentTooLong  = fault.Invalid("message: content is too long")
	ErrTooManyImages   = fault.Invalid("message: too many images")
	ErrInvalidImageURL = fault.Invalid("message: image url must be an absolute http(s) url")
	ErrInvalidShare    = fault.Invalid("message: share must reference a user or a post")
)

type MessageID string

// MessageKind tags what a message carries. System messages are synthesized by membership
// and naming changes and never come from the compose path.
type MessageKind string

const (
	KindText   MessageKind = "text"
	KindSystem MessageKind = "system"
	KindShare  MessageKind = "share"
)

type ShareType string

const (
	ShareUser ShareType = "user"
	SharePost ShareType = "post"
)

// Share points at a profile or a post. The target is not checked for existence;
// consumers render a broken reference as degraded content.
type Share struct {
	Type     ShareType
	TargetID string
}

func (s Share) Validate() error {
	switch s.Type {
	case ShareUser, SharePost:
	default:
		return ErrInvalidShare
	}
	id := s.TargetID
	if id == "" || len(id) > maxShareIDLength || strings.IndexFunc(id, unicode.IsSpace) >= 0 {
		return ErrInvalidShare
	}
	return nil
}

type Message struct {
	ID             MessageID
	ConversationID ID
	SenderID       user.ID
	Kind           MessageKind
	Content        string
	ImageURLs      []string
	Share          *Share
	CreatedAt      time.Time
	ReadAt         *time.Time
}

func (m Message) IsSystem() bool {
	return m.Kind == KindSystem
}

// UnreadBy reports whether the viewer still has to see this message.
func (m Message) UnreadBy(viewer user.ID) bool {
	return m.ReadAt == nil && m.SenderID != viewer
}

func (m Message) HasAttachment() bool {
	return len(m.ImageURLs) > 0 || m.Share != nil
}

func (m Message) Clone() Message {
	cp := m
	cp.ImageURLs = slices.Clone(m.ImageURLs)
	if m.Share != nil {
		share := *m.Share
		cp.Share = &share
	}
	if m.ReadAt != nil {
		at := *m.ReadAt
		cp.ReadAt = &at
	}
	return cp
}

type ComposeParams struct {
	ID             MessageID
	ConversationID ID
	SenderID       user.ID
	Content        string
	ImageURLs      []string
	Share          *Share
	CreatedAt      time.Time
}

// Compose validates a user authored message.
func Compose(params ComposeParams) (Message, error) {
	content := strings.TrimSpace(params.Content)
	if utf8.RuneCountInString(content) > MaxContentLength {
		return Message{}, ErrContentTooLong
	}
	images := make([]string, 0, len(params.ImageURLs))
	for _, raw := range params.ImageURLs {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if !validImageURL(raw) {
			return Message{}, ErrInvalidImageURL
		}
		images = append(images, raw)
	}
	if len(images) > MaxImages {
		return Message{}, ErrTooManyImages
	}
	var share *Share
	if params.Share != nil {
		s := Share{Type: ShareType(strings.ToLower(strings.TrimSpace(string(params.Share.Type)))), TargetID: strings.TrimSpace(params.Share.TargetID)}
		if err := s.Validate(); err != nil {
			return Message{}, err
		}
		share = &s
	}
	if content == "" && len(images) == 0 && share == nil {
		return Message{}, ErrEmptyMessage
	}
	kind := KindText
	if share != nil {
		kind = KindShare
	}
	if len(images) == 0 {
		images = nil
	}
	return Message{
		ID:             params.ID,
		ConversationID: params.ConversationID,
		SenderID:       params.SenderID,
		Kind:           kind,
		Content:        content,
		ImageURLs:      images,
		Share:          share,
		CreatedAt:      normalizeTime(params.CreatedAt),
	}, nil
}

// SystemMessage builds a notice authored by actor.
func SystemMessage(id MessageID, conversationID ID, actor user.ID, text string, at time.Time) Message {
	return Message{
		ID:             id,
		ConversationID: conversationID,
		SenderID:       actor,
		Kind:           KindSystem,
		Content:        text,
		CreatedAt:      normalizeTime(at),
	}
}

func validImageURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}
