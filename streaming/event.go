package streaming

import (
	"encoding/json"

	"github.com/bonfire-networks/bonfire-notify/errors"
)

// Verbs carried by domain events on the bus.
const (
	VerbCreate   = "create"
	VerbLike     = "like"
	VerbBoost    = "boost"
	VerbAnnounce = "announce"
	VerbFollow   = "follow"
	VerbDelete   = "delete"
)

// Actor is the account that performed a domain event's action.
type Actor struct {
	ID          string `json:"id"`
	Username    string `json:"username,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

// Object is the content a domain event refers to, typically a post.
type Object struct {
	ID       string `json:"id"`
	HTMLBody string `json:"html_body,omitempty"`
	Summary  string `json:"summary,omitempty"`
	Name     string `json:"name,omitempty"`
	URL      string `json:"url,omitempty"`
}

// Event is an already-materialized domain event as delivered on the bus.
// The gateway never originates events; it only forwards them.
type Event struct {
	ID        string   `json:"id"`
	Verb      string   `json:"verb"`
	CreatedAt string   `json:"created_at,omitempty"`
	Actor     *Actor   `json:"actor,omitempty"`
	Object    *Object  `json:"object,omitempty"`
	ThreadID  string   `json:"thread_id,omitempty"`
	Audience  []string `json:"audience,omitempty"`
}

// DecodeEvent parses a bus message into an Event. Messages that do not
// decode are unmappable and skipped by the caller.
func DecodeEvent(data []byte) (*Event, error) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, errors.WrapInvalid(err, "Event", "DecodeEvent", "decode bus message")
	}
	return &ev, nil
}

// objectID returns the most stable identifier available for the event's
// subject: the object id when present, otherwise the event id.
func (e *Event) objectID() string {
	if e.Object != nil && e.Object.ID != "" {
		return e.Object.ID
	}
	return e.ID
}
