package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bonfire-networks/bonfire-notify/errors"
)

func TestExtractCredentialPriority(t *testing.T) {
	tests := []struct {
		name        string
		url         string
		subprotocol string
		authz       string
		wantToken   string
		wantSource  Source
		wantOK      bool
	}{
		{
			name:       "query parameter wins",
			url:        "/api/v1/streaming?access_token=from-query",
			authz:      "Bearer from-header",
			wantToken:  "from-query",
			wantSource: SourceQuery,
			wantOK:     true,
		},
		{
			name:        "subprotocol beats bearer",
			url:         "/api/v1/streaming",
			subprotocol: "from-subprotocol",
			authz:       "Bearer from-header",
			wantToken:   "from-subprotocol",
			wantSource:  SourceSubprotocol,
			wantOK:      true,
		},
		{
			name:       "bearer header last",
			url:        "/api/v1/streaming",
			authz:      "Bearer from-header",
			wantToken:  "from-header",
			wantSource: SourceBearer,
			wantOK:     true,
		},
		{
			name:       "empty query value falls through",
			url:        "/api/v1/streaming?access_token=",
			authz:      "Bearer from-header",
			wantToken:  "from-header",
			wantSource: SourceBearer,
			wantOK:     true,
		},
		{
			name:        "empty subprotocol entries fall through",
			url:         "/api/v1/streaming",
			subprotocol: " , ",
			authz:       "Bearer from-header",
			wantToken:   "from-header",
			wantSource:  SourceBearer,
			wantOK:      true,
		},
		{
			name:        "first subprotocol entry used",
			url:         "/api/v1/streaming",
			subprotocol: "tok-1, tok-2",
			wantToken:   "tok-1",
			wantSource:  SourceSubprotocol,
			wantOK:      true,
		},
		{
			name:       "bearer scheme case-insensitive",
			url:        "/api/v1/streaming",
			authz:      "bearer lower-scheme",
			wantToken:  "lower-scheme",
			wantSource: SourceBearer,
			wantOK:     true,
		},
		{
			name:   "non-bearer scheme ignored",
			url:    "/api/v1/streaming",
			authz:  "Basic dXNlcjpwYXNz",
			wantOK: false,
		},
		{
			name:   "nothing anywhere",
			url:    "/api/v1/streaming",
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", tt.url, nil)
			if tt.subprotocol != "" {
				r.Header.Set("Sec-WebSocket-Protocol", tt.subprotocol)
			}
			if tt.authz != "" {
				r.Header.Set("Authorization", tt.authz)
			}

			cred, ok := ExtractCredential(r)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.wantToken, cred.Token)
				assert.Equal(t, tt.wantSource, cred.Source)
			}
		})
	}
}

type stubAuthority struct {
	principal *Principal
	err       error
	calls     int
}

func (s *stubAuthority) Verify(_ context.Context, _ string) (*Principal, error) {
	s.calls++
	return s.principal, s.err
}

func TestAuthenticate(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		authority := &stubAuthority{principal: &Principal{ID: "user-1", Username: "alice"}}
		r := httptest.NewRequest("GET", "/api/v1/streaming?access_token=good", nil)

		principal, cred, err := Authenticate(context.Background(), r, authority)
		require.NoError(t, err)
		assert.Equal(t, "user-1", principal.ID)
		assert.Equal(t, "good", cred.Token)
		assert.Equal(t, 1, authority.calls)
	})

	t.Run("missing token rejected before authority", func(t *testing.T) {
		authority := &stubAuthority{principal: &Principal{ID: "user-1"}}
		r := httptest.NewRequest("GET", "/api/v1/streaming", nil)

		_, _, err := Authenticate(context.Background(), r, authority)
		assert.ErrorIs(t, err, errors.ErrMissingToken)
		assert.Equal(t, 0, authority.calls)
	})

	t.Run("authority error rejects", func(t *testing.T) {
		authority := &stubAuthority{err: errors.ErrInvalidToken}
		r := httptest.NewRequest("GET", "/api/v1/streaming?access_token=bad", nil)

		_, _, err := Authenticate(context.Background(), r, authority)
		assert.ErrorIs(t, err, errors.ErrInvalidToken)
		assert.Equal(t, 1, authority.calls)
	})

	t.Run("principal without subject rejected", func(t *testing.T) {
		authority := &stubAuthority{principal: &Principal{}}
		r := httptest.NewRequest("GET", "/api/v1/streaming?access_token=odd", nil)

		_, _, err := Authenticate(context.Background(), r, authority)
		assert.ErrorIs(t, err, errors.ErrInvalidToken)
	})
}

type stubRequester struct {
	reply []byte
	err   error
	got   []byte
}

func (s *stubRequester) Request(_ context.Context, _ string, data []byte) ([]byte, error) {
	s.got = data
	return s.reply, s.err
}

func TestNATSAuthorityVerify(t *testing.T) {
	t.Run("valid reply", func(t *testing.T) {
		reply, _ := json.Marshal(verifyReply{
			Principal: &Principal{ID: "user-1", Username: "alice"},
		})
		requester := &stubRequester{reply: reply}

		authority, err := NewNATSAuthority(requester, "auth.verify", time.Second, nil)
		require.NoError(t, err)

		principal, err := authority.Verify(context.Background(), "tok")
		require.NoError(t, err)
		assert.Equal(t, "alice", principal.Username)
		assert.JSONEq(t, `{"token":"tok"}`, string(requester.got))
	})

	t.Run("service-reported error", func(t *testing.T) {
		reply, _ := json.Marshal(verifyReply{Error: "expired"})
		requester := &stubRequester{reply: reply}

		authority, err := NewNATSAuthority(requester, "auth.verify", time.Second, nil)
		require.NoError(t, err)

		_, err = authority.Verify(context.Background(), "tok")
		assert.ErrorIs(t, err, errors.ErrInvalidToken)
	})

	t.Run("transport failure", func(t *testing.T) {
		requester := &stubRequester{err: fmt.Errorf("no responders")}

		authority, err := NewNATSAuthority(requester, "auth.verify", time.Second, nil)
		require.NoError(t, err)

		_, err = authority.Verify(context.Background(), "tok")
		assert.Error(t, err)
		assert.True(t, errors.IsTransient(err))
	})

	t.Run("empty token short-circuits", func(t *testing.T) {
		requester := &stubRequester{}

		authority, err := NewNATSAuthority(requester, "auth.verify", time.Second, nil)
		require.NoError(t, err)

		_, err = authority.Verify(context.Background(), "")
		assert.ErrorIs(t, err, errors.ErrMissingToken)
		assert.Nil(t, requester.got)
	})

	t.Run("constructor validation", func(t *testing.T) {
		_, err := NewNATSAuthority(nil, "auth.verify", time.Second, nil)
		assert.Error(t, err)

		_, err = NewNATSAuthority(&stubRequester{}, "", time.Second, nil)
		assert.Error(t, err)
	})
}
