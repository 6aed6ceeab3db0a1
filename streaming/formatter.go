package streaming

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/bonfire-networks/bonfire-notify/errors"
)

// Wire frame event types.
const (
	EventUpdate       = "update"
	EventNotification = "notification"
	EventConversation = "conversation"
	EventDelete       = "delete"
)

// NotificationType is the closed set of notification types on the wire.
type NotificationType string

// Wire notification types.
const (
	NotifyFollow        NotificationType = "follow"
	NotifyFollowRequest NotificationType = "follow_request"
	NotifyMention       NotificationType = "mention"
	NotifyReblog        NotificationType = "reblog"
	NotifyFavourite     NotificationType = "favourite"
	NotifyPoll          NotificationType = "poll"
	NotifyStatus        NotificationType = "status"
	NotifyUpdate        NotificationType = "update"
	NotifyAdminReport   NotificationType = "admin.report"
)

// NotificationTypeForVerb maps a domain event verb to a wire notification
// type. Verbs outside the mapping produce no notification.
func NotificationTypeForVerb(verb string) (NotificationType, bool) {
	switch verb {
	case VerbLike:
		return NotifyFavourite, true
	case VerbBoost, VerbAnnounce:
		return NotifyReblog, true
	case VerbFollow:
		return NotifyFollow, true
	case VerbCreate:
		return NotifyMention, true
	default:
		return "", false
	}
}

// HasStatus reports whether this notification type carries a nested status
// entity. Follow and follow_request never do.
func (t NotificationType) HasStatus() bool {
	switch t {
	case NotifyMention, NotifyStatus, NotifyReblog, NotifyFavourite, NotifyPoll, NotifyUpdate:
		return true
	default:
		return false
	}
}

const defaultAvatarURL = "/images/avatars/default.png"

// Account is the wire shape of a post author or notification actor.
type Account struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	Acct        string `json:"acct"`
	DisplayName string `json:"display_name"`
	Avatar      string `json:"avatar"`
}

// Status is the wire shape of a post.
type Status struct {
	ID               string  `json:"id"`
	CreatedAt        string  `json:"created_at"`
	Account          Account `json:"account"`
	Visibility       string  `json:"visibility"`
	Content          string  `json:"content"`
	Text             string  `json:"text"`
	MediaAttachments []any   `json:"media_attachments"`
	Mentions         []any   `json:"mentions"`
	Tags             []any   `json:"tags"`
	Emojis           []any   `json:"emojis"`
	RepliesCount     int     `json:"replies_count"`
	ReblogsCount     int     `json:"reblogs_count"`
	FavouritesCount  int     `json:"favourites_count"`
}

// Notification is the wire shape of a notification. Status is present only
// for status-bearing types.
type Notification struct {
	ID        string           `json:"id"`
	Type      NotificationType `json:"type"`
	CreatedAt string           `json:"created_at"`
	Account   Account          `json:"account"`
	Status    *Status          `json:"status,omitempty"`
}

// Conversation is the wire shape of a direct message thread. Account and
// last-status enrichment is out of scope at this layer.
type Conversation struct {
	ID         string `json:"id"`
	Accounts   []any  `json:"accounts"`
	Unread     bool   `json:"unread"`
	LastStatus any    `json:"last_status"`
}

// Frame is the outer envelope of every server-to-client message. Payload is
// a fully-formed JSON document re-encoded as a string, except for delete
// frames where it is the bare identifier.
type Frame struct {
	Stream  []string `json:"stream"`
	Event   string   `json:"event"`
	Payload string   `json:"payload"`
}

// accountFor builds the wire account for the event's actor, with a
// deterministic default avatar when the actor carries none.
func accountFor(actor *Actor) Account {
	if actor == nil {
		actor = &Actor{}
	}
	avatar := actor.AvatarURL
	if avatar == "" {
		avatar = defaultAvatarURL
	}
	return Account{
		ID:          actor.ID,
		Username:    actor.Username,
		Acct:        actor.Username,
		DisplayName: actor.DisplayName,
		Avatar:      avatar,
	}
}

// visibilityFor derives the wire visibility from the event's audience
// descriptors. The most restrictive descriptor wins regardless of order;
// an audience with no recognized descriptor is public.
func visibilityFor(audience []string) string {
	const (
		visPublic = iota
		visUnlisted
		visPrivate
		visDirect
	)
	rank := visPublic
	for _, a := range audience {
		switch a {
		case "direct", "message":
			rank = visDirect
		case "followers":
			if rank < visPrivate {
				rank = visPrivate
			}
		case "unlisted", "local":
			if rank < visUnlisted {
				rank = visUnlisted
			}
		}
	}
	switch rank {
	case visDirect:
		return "direct"
	case visPrivate:
		return "private"
	case visUnlisted:
		return "unlisted"
	default:
		return "public"
	}
}

// contentFor picks the best available content body for the event's object.
func contentFor(obj *Object) string {
	if obj == nil {
		return ""
	}
	if obj.HTMLBody != "" {
		return obj.HTMLBody
	}
	if obj.Summary != "" {
		return obj.Summary
	}
	return obj.Name
}

// stripTags derives a plain-text rendering of an HTML-ish body. It removes
// tags without interpreting them; entity decoding is out of scope.
func stripTags(s string) string {
	var b strings.Builder
	depth := 0
	for _, r := range s {
		switch {
		case r == '<':
			depth++
		case r == '>':
			if depth > 0 {
				depth--
			}
		case depth == 0:
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

// statusFor builds the status entity for an event. Returns ErrUnmappable if
// no stable identifier can be derived.
func statusFor(ev *Event, now func() time.Time) (*Status, error) {
	id := ev.objectID()
	if id == "" {
		return nil, errors.ErrUnmappable
	}

	createdAt := ev.CreatedAt
	if createdAt == "" {
		createdAt = now().UTC().Format(time.RFC3339)
	}

	content := contentFor(ev.Object)

	return &Status{
		ID:               id,
		CreatedAt:        createdAt,
		Account:          accountFor(ev.Actor),
		Visibility:       visibilityFor(ev.Audience),
		Content:          content,
		Text:             stripTags(content),
		MediaAttachments: []any{},
		Mentions:         []any{},
		Tags:             []any{},
		Emojis:           []any{},
	}, nil
}

// FormatUpdate renders an event as a Status payload. Returns ErrUnmappable
// when the event has no stable identifier; callers skip the frame.
func FormatUpdate(ev *Event) (string, error) {
	return formatUpdateAt(ev, time.Now)
}

func formatUpdateAt(ev *Event, now func() time.Time) (string, error) {
	status, err := statusFor(ev, now)
	if err != nil {
		return "", err
	}
	data, err := json.Marshal(status)
	if err != nil {
		return "", errors.Wrap(err, "Formatter", "FormatUpdate", "encode status")
	}
	return string(data), nil
}

// FormatNotification renders an event as a Notification payload. Events
// whose verb maps to no notification type return ErrUnmappable. For
// status-bearing types the nested status is included when it can be built;
// a skipped nested status does not fail the notification.
func FormatNotification(ev *Event) (string, error) {
	return formatNotificationAt(ev, time.Now)
}

func formatNotificationAt(ev *Event, now func() time.Time) (string, error) {
	notifType, ok := NotificationTypeForVerb(ev.Verb)
	if !ok {
		return "", errors.ErrUnmappable
	}
	if ev.ID == "" {
		return "", errors.ErrUnmappable
	}

	createdAt := ev.CreatedAt
	if createdAt == "" {
		createdAt = now().UTC().Format(time.RFC3339)
	}

	notif := &Notification{
		ID:        ev.ID,
		Type:      notifType,
		CreatedAt: createdAt,
		Account:   accountFor(ev.Actor),
	}

	if notifType.HasStatus() {
		if status, err := statusFor(ev, now); err == nil {
			notif.Status = status
		}
	}

	data, err := json.Marshal(notif)
	if err != nil {
		return "", errors.Wrap(err, "Formatter", "FormatNotification", "encode notification")
	}
	return string(data), nil
}

// FormatConversation renders a minimal Conversation payload. Always
// succeeds.
func FormatConversation(threadID string) string {
	data, _ := json.Marshal(&Conversation{
		ID:         threadID,
		Accounts:   []any{},
		Unread:     true,
		LastStatus: nil,
	})
	return string(data)
}

// FormatDelete renders a delete payload: the bare identifier string, not a
// JSON object. This is the wire contract's one exception to JSON payloads.
func FormatDelete(id string) string {
	return id
}

// NewWireFrame wraps a payload in the outer envelope and encodes the whole
// frame.
func NewWireFrame(streams []string, event, payload string) ([]byte, error) {
	if len(streams) == 0 {
		return nil, errors.WrapInvalid(
			fmt.Errorf("empty stream array"),
			"Formatter", "NewWireFrame", "validate frame",
		)
	}
	data, err := json.Marshal(&Frame{
		Stream:  streams,
		Event:   event,
		Payload: payload,
	})
	if err != nil {
		return nil, errors.Wrap(err, "Formatter", "NewWireFrame", "encode frame")
	}
	return data, nil
}
