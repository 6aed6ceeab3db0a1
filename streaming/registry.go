package streaming

import "github.com/bonfire-networks/bonfire-notify/directory"

// BusSubscription is a handle to an active bus subscription, released on
// unsubscribe or connection teardown. Satisfied by natsclient.Subscription.
type BusSubscription interface {
	Unsubscribe() error
}

// Binding ties a subscription key to its resolved topic and live bus
// subscription.
type Binding struct {
	Key   string
	Topic directory.Topic
	Sub   BusSubscription
}

// Registry is one connection's map of subscription keys to bindings. It is
// mutated only by the owning connection's sequential processing, so it
// needs no locking.
type Registry struct {
	bindings          map[string]Binding
	notificationKey   string
	notificationTopic directory.Topic
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{bindings: make(map[string]Binding)}
}

// Has reports whether a key is already tracked.
func (r *Registry) Has(key string) bool {
	_, ok := r.bindings[key]
	return ok
}

// Add inserts a binding. When the subscription is for the notification
// stream, its topic is additionally tracked as the connection's
// notification topic. Adding an existing key is a no-op.
func (r *Registry) Add(key string, topic directory.Topic, sub BusSubscription, isNotification bool) {
	if _, ok := r.bindings[key]; ok {
		return
	}
	r.bindings[key] = Binding{Key: key, Topic: topic, Sub: sub}
	if isNotification {
		r.notificationKey = key
		r.notificationTopic = topic
	}
}

// Remove deletes a binding and returns it. If the removed key was the
// tracked notification stream, the notification topic is cleared. Removing
// an absent key returns false.
func (r *Registry) Remove(key string) (Binding, bool) {
	binding, ok := r.bindings[key]
	if !ok {
		return Binding{}, false
	}
	delete(r.bindings, key)
	if key == r.notificationKey {
		r.notificationKey = ""
		r.notificationTopic = ""
	}
	return binding, true
}

// MatchTopic returns every binding whose topic equals the given topic
// string.
func (r *Registry) MatchTopic(topic string) []Binding {
	var matched []Binding
	for _, b := range r.bindings {
		if b.Topic.String() == topic {
			matched = append(matched, b)
		}
	}
	return matched
}

// NotificationTopic returns the tracked notification topic, empty when the
// connection has no notification subscription.
func (r *Registry) NotificationTopic() directory.Topic {
	return r.notificationTopic
}

// All returns every binding, for teardown.
func (r *Registry) All() []Binding {
	out := make([]Binding, 0, len(r.bindings))
	for _, b := range r.bindings {
		out = append(out, b)
	}
	return out
}

// Len returns the number of tracked subscriptions.
func (r *Registry) Len() int {
	return len(r.bindings)
}
