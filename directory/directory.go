package directory

import "context"

// Topic is an opaque identifier for a bus channel. Equality is string
// equality. The zero value means "no topic".
type Topic string

// String returns the topic's string form.
func (t Topic) String() string {
	return string(t)
}

// Empty reports whether the topic is absent.
func (t Topic) Empty() bool {
	return t == ""
}

// Feed names resolvable without a principal.
const (
	FeedGlobal = "global"
	FeedLocal  = "local"
	FeedRemote = "remote"
)

// PrincipalTopicKind selects which of a principal's personal topics to
// resolve.
type PrincipalTopicKind int

// Per-principal topic kinds.
const (
	KindNotification PrincipalTopicKind = iota
	KindInbox
)

// String returns the kind name.
func (k PrincipalTopicKind) String() string {
	switch k {
	case KindNotification:
		return "notification"
	case KindInbox:
		return "inbox"
	default:
		return "unknown"
	}
}

// Directory resolves logical feed names and per-principal channels to bus
// topics. Implementations must be safe for concurrent use from many
// connections. An empty topic with a nil error means the name is known but
// has no deliverable channel.
type Directory interface {
	// NamedTopic resolves a shared feed name (global, local, remote).
	NamedTopic(ctx context.Context, name string) (Topic, error)

	// PrincipalTopic resolves one of a principal's personal topics.
	PrincipalTopic(ctx context.Context, kind PrincipalTopicKind, principalID string) (Topic, error)
}
