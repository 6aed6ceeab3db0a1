package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticDirectoryNamedTopic(t *testing.T) {
	d := NewStaticDirectory("bonfire")
	ctx := context.Background()

	tests := []struct {
		name string
		want Topic
	}{
		{FeedGlobal, "bonfire.feeds.global"},
		{FeedLocal, "bonfire.feeds.local"},
		{FeedRemote, "bonfire.feeds.remote"},
		{"trending", ""},
	}

	for _, tt := range tests {
		topic, err := d.NamedTopic(ctx, tt.name)
		require.NoError(t, err)
		assert.Equal(t, tt.want, topic)
	}
}

func TestStaticDirectoryPrincipalTopic(t *testing.T) {
	d := NewStaticDirectory("")
	ctx := context.Background()

	topic, err := d.PrincipalTopic(ctx, KindNotification, "user-1")
	require.NoError(t, err)
	assert.Equal(t, Topic("bonfire.users.user-1.notifications"), topic)

	topic, err = d.PrincipalTopic(ctx, KindInbox, "user-1")
	require.NoError(t, err)
	assert.Equal(t, Topic("bonfire.users.user-1.inbox"), topic)

	topic, err = d.PrincipalTopic(ctx, KindNotification, "")
	require.NoError(t, err)
	assert.True(t, topic.Empty())
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

func TestNATSDirectoryNamedTopic(t *testing.T) {
	reply, _ := json.Marshal(resolveReply{Topic: "bonfire.feeds.global"})
	requester := &stubRequester{reply: reply}

	d, err := NewNATSDirectory(requester, "directory.resolve", time.Second, nil)
	require.NoError(t, err)

	topic, err := d.NamedTopic(context.Background(), FeedGlobal)
	require.NoError(t, err)
	assert.Equal(t, Topic("bonfire.feeds.global"), topic)
	assert.JSONEq(t, `{"kind":"named","feed":"global"}`, string(requester.got))
}

func TestNATSDirectoryPrincipalTopic(t *testing.T) {
	reply, _ := json.Marshal(resolveReply{Topic: "bonfire.users.user-1.inbox"})
	requester := &stubRequester{reply: reply}

	d, err := NewNATSDirectory(requester, "directory.resolve", time.Second, nil)
	require.NoError(t, err)

	topic, err := d.PrincipalTopic(context.Background(), KindInbox, "user-1")
	require.NoError(t, err)
	assert.Equal(t, Topic("bonfire.users.user-1.inbox"), topic)
	assert.JSONEq(t, `{"kind":"principal","principal":"user-1","topic_kind":"inbox"}`, string(requester.got))

	_, err = d.PrincipalTopic(context.Background(), KindInbox, "")
	assert.Error(t, err)
}

func TestNATSDirectoryServiceError(t *testing.T) {
	reply, _ := json.Marshal(resolveReply{Error: "unknown feed"})
	requester := &stubRequester{reply: reply}

	d, err := NewNATSDirectory(requester, "directory.resolve", time.Second, nil)
	require.NoError(t, err)

	topic, err := d.NamedTopic(context.Background(), "nope")
	require.NoError(t, err)
	assert.True(t, topic.Empty())
}

func TestNATSDirectoryTransportError(t *testing.T) {
	requester := &stubRequester{err: fmt.Errorf("no responders")}

	d, err := NewNATSDirectory(requester, "directory.resolve", time.Second, nil)
	require.NoError(t, err)

	_, err = d.NamedTopic(context.Background(), FeedGlobal)
	assert.Error(t, err)
}

func TestNewNATSDirectoryValidation(t *testing.T) {
	_, err := NewNATSDirectory(nil, "directory.resolve", time.Second, nil)
	assert.Error(t, err)

	_, err = NewNATSDirectory(&stubRequester{}, "", time.Second, nil)
	assert.Error(t, err)
}
