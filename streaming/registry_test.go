package streaming

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bonfire-networks/bonfire-notify/directory"
)

type noopSub struct{ unsubscribed bool }

func (s *noopSub) Unsubscribe() error {
	s.unsubscribed = true
	return nil
}

func TestRegistryAddIsIdempotent(t *testing.T) {
	r := NewRegistry()
	first := &noopSub{}
	second := &noopSub{}

	r.Add("public", directory.Topic("feeds.global"), first, false)
	r.Add("public", directory.Topic("feeds.other"), second, false)

	assert.Equal(t, 1, r.Len())
	matched := r.MatchTopic("feeds.global")
	assert.Len(t, matched, 1)
	assert.Same(t, first, matched[0].Sub.(*noopSub))
	assert.Empty(t, r.MatchTopic("feeds.other"))
}

func TestRegistryRemoveAbsentKeyIsNoop(t *testing.T) {
	r := NewRegistry()
	r.Add("public", directory.Topic("feeds.global"), &noopSub{}, false)

	_, ok := r.Remove("never-subscribed")
	assert.False(t, ok)
	assert.Equal(t, 1, r.Len())
}

func TestRegistryNotificationTopicTracking(t *testing.T) {
	r := NewRegistry()
	assert.True(t, r.NotificationTopic().Empty())

	r.Add("user", directory.Topic("users.u1.notifications"), &noopSub{}, true)
	assert.Equal(t, directory.Topic("users.u1.notifications"), r.NotificationTopic())

	// Removing an unrelated key leaves the notification topic alone
	r.Add("public", directory.Topic("feeds.global"), &noopSub{}, false)
	r.Remove("public")
	assert.Equal(t, directory.Topic("users.u1.notifications"), r.NotificationTopic())

	// Removing the notification stream clears it
	r.Remove("user")
	assert.True(t, r.NotificationTopic().Empty())
}

func TestRegistryMatchTopic(t *testing.T) {
	r := NewRegistry()
	r.Add("user", directory.Topic("users.u1.notifications"), &noopSub{}, true)
	r.Add("public", directory.Topic("feeds.global"), &noopSub{}, false)

	matched := r.MatchTopic("feeds.global")
	assert.Len(t, matched, 1)
	assert.Equal(t, "public", matched[0].Key)

	assert.Empty(t, r.MatchTopic("feeds.local"))
}

func TestRegistryAll(t *testing.T) {
	r := NewRegistry()
	r.Add("user", directory.Topic("t1"), &noopSub{}, true)
	r.Add("public", directory.Topic("t2"), &noopSub{}, false)

	assert.Len(t, r.All(), 2)
}
