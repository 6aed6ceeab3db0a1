package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/bonfire-networks/bonfire-notify/errors"
)

// Requester sends a request over the bus and waits for a single reply.
// Satisfied by natsclient.Client.
type Requester interface {
	Request(ctx context.Context, subject string, data []byte) ([]byte, error)
}

// NATSDirectory resolves topics by request/reply against a directory
// service listening on a bus subject.
type NATSDirectory struct {
	requester Requester
	subject   string
	timeout   time.Duration
	logger    *slog.Logger
}

// NewNATSDirectory creates a directory that resolves topics over the bus.
func NewNATSDirectory(requester Requester, subject string, timeout time.Duration, logger *slog.Logger) (*NATSDirectory, error) {
	if requester == nil {
		return nil, fmt.Errorf("requester is required")
	}
	if subject == "" {
		return nil, fmt.Errorf("subject is required")
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &NATSDirectory{
		requester: requester,
		subject:   subject,
		timeout:   timeout,
		logger:    logger,
	}, nil
}

type resolveRequest struct {
	Kind      string `json:"kind"`
	Feed      string `json:"feed,omitempty"`
	Principal string `json:"principal,omitempty"`
	TopicKind string `json:"topic_kind,omitempty"`
}

type resolveReply struct {
	Topic string `json:"topic"`
	Error string `json:"error,omitempty"`
}

// NamedTopic resolves a shared feed name via the directory service.
func (d *NATSDirectory) NamedTopic(ctx context.Context, name string) (Topic, error) {
	return d.resolve(ctx, resolveRequest{Kind: "named", Feed: name})
}

// PrincipalTopic resolves one of a principal's personal topics via the
// directory service.
func (d *NATSDirectory) PrincipalTopic(ctx context.Context, kind PrincipalTopicKind, principalID string) (Topic, error) {
	if principalID == "" {
		return "", errors.WrapInvalid(
			fmt.Errorf("empty principal id"),
			"NATSDirectory", "PrincipalTopic", "validate input",
		)
	}
	return d.resolve(ctx, resolveRequest{
		Kind:      "principal",
		Principal: principalID,
		TopicKind: kind.String(),
	})
}

func (d *NATSDirectory) resolve(ctx context.Context, req resolveRequest) (Topic, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return "", errors.Wrap(err, "NATSDirectory", "resolve", "encode request")
	}

	reqCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	replyData, err := d.requester.Request(reqCtx, d.subject, data)
	if err != nil {
		d.logger.Error("Topic resolution request failed",
			"subject", d.subject,
			"kind", req.Kind,
			"error", err,
		)
		return "", errors.WrapTransient(err, "NATSDirectory", "resolve", "request directory service")
	}

	var reply resolveReply
	if err := json.Unmarshal(replyData, &reply); err != nil {
		return "", errors.Wrap(err, "NATSDirectory", "resolve", "decode reply")
	}

	if reply.Error != "" {
		d.logger.Debug("Directory reported no topic", "kind", req.Kind, "reason", reply.Error)
		return "", nil
	}

	return Topic(reply.Topic), nil
}
