package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/bonfire-networks/bonfire-notify/errors"
)

// Principal is the authenticated identity owning a connection.
type Principal struct {
	ID          string `json:"id"`
	Username    string `json:"username,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

// Authority validates bearer tokens against an external token service.
// Implementations must be safe for concurrent use from many connections.
type Authority interface {
	// Verify validates the token exactly once. A nil error implies a
	// principal with a non-empty ID.
	Verify(ctx context.Context, token string) (*Principal, error)
}

// Credential is a bearer token together with where it was found. Transport
// handlers need the source to know whether to echo a subprotocol on upgrade.
type Credential struct {
	Token  string
	Source Source
}

// Source identifies where a credential was extracted from.
type Source int

// Credential sources in resolution priority order.
const (
	SourceNone Source = iota
	SourceQuery
	SourceSubprotocol
	SourceBearer
)

// String returns the source name for logging.
func (s Source) String() string {
	switch s {
	case SourceQuery:
		return "query"
	case SourceSubprotocol:
		return "subprotocol"
	case SourceBearer:
		return "bearer"
	default:
		return "none"
	}
}

// ExtractCredential resolves a bearer credential from the request, first
// match wins: the access_token query parameter, then the websocket
// subprotocol header, then a standard Authorization bearer header. Empty
// values are treated as absent and resolution continues to the next source.
func ExtractCredential(r *http.Request) (Credential, bool) {
	if token := r.URL.Query().Get("access_token"); token != "" {
		return Credential{Token: token, Source: SourceQuery}, true
	}

	if token := subprotocolToken(r.Header.Get("Sec-WebSocket-Protocol")); token != "" {
		return Credential{Token: token, Source: SourceSubprotocol}, true
	}

	if token := bearerToken(r.Header.Get("Authorization")); token != "" {
		return Credential{Token: token, Source: SourceBearer}, true
	}

	return Credential{}, false
}

// subprotocolToken takes the first non-empty entry of a comma-separated
// subprotocol list.
func subprotocolToken(header string) string {
	for _, p := range strings.Split(header, ",") {
		if p = strings.TrimSpace(p); p != "" {
			return p
		}
	}
	return ""
}

// bearerToken extracts the token from an "Authorization: Bearer <token>"
// header. The scheme comparison is case-insensitive.
func bearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

// Authenticate extracts a credential from the request and validates it
// against the authority. Validation is attempted exactly once; any failure
// rejects the connection attempt outright.
func Authenticate(ctx context.Context, r *http.Request, authority Authority) (*Principal, Credential, error) {
	cred, ok := ExtractCredential(r)
	if !ok {
		return nil, Credential{}, errors.ErrMissingToken
	}

	principal, err := authority.Verify(ctx, cred.Token)
	if err != nil {
		return nil, cred, err
	}
	if principal == nil || principal.ID == "" {
		return nil, cred, errors.ErrInvalidToken
	}

	return principal, cred, nil
}
