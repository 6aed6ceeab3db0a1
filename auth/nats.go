package auth

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

// NATSAuthority validates tokens by request/reply against a token service
// listening on a bus subject.
type NATSAuthority struct {
	requester Requester
	subject   string
	timeout   time.Duration
	logger    *slog.Logger
}

// NewNATSAuthority creates an authority that verifies tokens over the bus.
func NewNATSAuthority(requester Requester, subject string, timeout time.Duration, logger *slog.Logger) (*NATSAuthority, error) {
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

	return &NATSAuthority{
		requester: requester,
		subject:   subject,
		timeout:   timeout,
		logger:    logger,
	}, nil
}

type verifyRequest struct {
	Token string `json:"token"`
}

type verifyReply struct {
	Principal *Principal `json:"principal"`
	Error     string     `json:"error,omitempty"`
}

// Verify sends the token to the token service and decodes the reply. Any
// transport failure, service-reported error, or reply without a subject
// identifier rejects the token.
func (a *NATSAuthority) Verify(ctx context.Context, token string) (*Principal, error) {
	if token == "" {
		return nil, errors.ErrMissingToken
	}

	data, err := json.Marshal(verifyRequest{Token: token})
	if err != nil {
		return nil, errors.Wrap(err, "NATSAuthority", "Verify", "encode request")
	}

	reqCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	replyData, err := a.requester.Request(reqCtx, a.subject, data)
	if err != nil {
		a.logger.Error("Token verification request failed",
			"subject", a.subject,
			"error", err,
		)
		return nil, errors.WrapTransient(err, "NATSAuthority", "Verify", "request token service")
	}

	var reply verifyReply
	if err := json.Unmarshal(replyData, &reply); err != nil {
		return nil, errors.Wrap(err, "NATSAuthority", "Verify", "decode reply")
	}

	if reply.Error != "" {
		a.logger.Debug("Token rejected by authority", "reason", reply.Error)
		return nil, errors.ErrInvalidToken
	}
	if reply.Principal == nil || reply.Principal.ID == "" {
		return nil, errors.ErrInvalidToken
	}

	return reply.Principal, nil
}
