package directory

import (
	"context"
	"fmt"
)

// StaticDirectory resolves topics by naming convention, without calling out
// to a directory service. Useful for single-instance deployments and tests.
type StaticDirectory struct {
	prefix string
}

// NewStaticDirectory creates a convention-based directory. Topics take the
// form <prefix>.feeds.<name> and <prefix>.users.<id>.<kind>.
func NewStaticDirectory(prefix string) *StaticDirectory {
	if prefix == "" {
		prefix = "bonfire"
	}
	return &StaticDirectory{prefix: prefix}
}

// NamedTopic resolves a shared feed name by convention. Unknown names
// resolve to no topic.
func (d *StaticDirectory) NamedTopic(_ context.Context, name string) (Topic, error) {
	switch name {
	case FeedGlobal, FeedLocal, FeedRemote:
		return Topic(fmt.Sprintf("%s.feeds.%s", d.prefix, name)), nil
	default:
		return "", nil
	}
}

// PrincipalTopic resolves a principal's personal topic by convention.
func (d *StaticDirectory) PrincipalTopic(_ context.Context, kind PrincipalTopicKind, principalID string) (Topic, error) {
	if principalID == "" {
		return "", nil
	}
	switch kind {
	case KindNotification:
		return Topic(fmt.Sprintf("%s.users.%s.notifications", d.prefix, principalID)), nil
	case KindInbox:
		return Topic(fmt.Sprintf("%s.users.%s.inbox", d.prefix, principalID)), nil
	default:
		return "", nil
	}
}
