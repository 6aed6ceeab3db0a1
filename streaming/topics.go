package streaming

import (
	"context"
	"log/slog"

	"github.com/bonfire-networks/bonfire-notify/directory"
)

// Resolver maps stream kinds to bus topics by delegating to the feed
// directory. Resolution never fails: directory errors and unrecognized
// streams resolve to no topic, logged.
type Resolver struct {
	directory directory.Directory
	logger    *slog.Logger
}

// NewResolver creates a stream topic resolver.
func NewResolver(dir directory.Directory, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{directory: dir, logger: logger}
}

// Resolve returns the bus topic for a stream kind, or an empty topic when
// the stream is a stub family, unrecognized, or the directory cannot
// resolve it. The media variants alias their non-media counterparts;
// media-only filtering is a known gap, not applied here.
func (r *Resolver) Resolve(ctx context.Context, kind StreamKind, principalID string) directory.Topic {
	var (
		topic directory.Topic
		err   error
	)

	switch kind {
	case StreamUser, StreamUserNotification:
		topic, err = r.directory.PrincipalTopic(ctx, directory.KindNotification, principalID)
	case StreamPublic, StreamPublicMedia:
		topic, err = r.directory.NamedTopic(ctx, directory.FeedGlobal)
	case StreamPublicLocal, StreamPublicLocalMedia:
		topic, err = r.directory.NamedTopic(ctx, directory.FeedLocal)
	case StreamPublicRemote, StreamPublicRemoteMedia:
		topic, err = r.directory.NamedTopic(ctx, directory.FeedRemote)
	case StreamDirect:
		topic, err = r.directory.PrincipalTopic(ctx, directory.KindInbox, principalID)
	case StreamHashtag, StreamHashtagLocal, StreamList:
		// Stub families: accepted at the protocol level, never deliverable
		return ""
	default:
		r.logger.Debug("Unrecognized stream name", "stream", kind.String())
		return ""
	}

	if err != nil {
		r.logger.Error("Topic resolution failed",
			"stream", kind.String(),
			"error", err,
		)
		return ""
	}
	return topic
}
