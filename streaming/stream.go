package streaming

import "strings"

// StreamKind is the closed set of stream names a client may subscribe to.
type StreamKind int

// Recognized stream kinds.
const (
	StreamUnknown StreamKind = iota
	StreamUser
	StreamUserNotification
	StreamPublic
	StreamPublicLocal
	StreamPublicMedia
	StreamPublicLocalMedia
	StreamPublicRemote
	StreamPublicRemoteMedia
	StreamDirect
	StreamHashtag
	StreamHashtagLocal
	StreamList
)

// ParseStream maps a client-facing stream name to its kind. Unrecognized
// names map to StreamUnknown.
func ParseStream(name string) StreamKind {
	switch name {
	case "user":
		return StreamUser
	case "user:notification":
		return StreamUserNotification
	case "public":
		return StreamPublic
	case "public:local":
		return StreamPublicLocal
	case "public:media":
		return StreamPublicMedia
	case "public:local:media":
		return StreamPublicLocalMedia
	case "public:remote":
		return StreamPublicRemote
	case "public:remote:media":
		return StreamPublicRemoteMedia
	case "direct":
		return StreamDirect
	case "hashtag":
		return StreamHashtag
	case "hashtag:local":
		return StreamHashtagLocal
	case "list":
		return StreamList
	default:
		return StreamUnknown
	}
}

// String returns the canonical stream name.
func (k StreamKind) String() string {
	switch k {
	case StreamUser:
		return "user"
	case StreamUserNotification:
		return "user:notification"
	case StreamPublic:
		return "public"
	case StreamPublicLocal:
		return "public:local"
	case StreamPublicMedia:
		return "public:media"
	case StreamPublicLocalMedia:
		return "public:local:media"
	case StreamPublicRemote:
		return "public:remote"
	case StreamPublicRemoteMedia:
		return "public:remote:media"
	case StreamDirect:
		return "direct"
	case StreamHashtag:
		return "hashtag"
	case StreamHashtagLocal:
		return "hashtag:local"
	case StreamList:
		return "list"
	default:
		return "unknown"
	}
}

// IsNotificationStream reports whether subscriptions to this kind track the
// connection's notification topic.
func (k StreamKind) IsNotificationStream() bool {
	return k == StreamUser || k == StreamUserNotification
}

// SubscriptionKey derives the composite key a subscription is tracked
// under. Simple streams key by name alone; hashtag streams append the tag
// and list streams append the list id.
func SubscriptionKey(streamName, tag, listID string) string {
	switch ParseStream(streamName) {
	case StreamHashtag, StreamHashtagLocal:
		if tag != "" {
			return streamName + ":" + tag
		}
	case StreamList:
		if listID != "" {
			return streamName + ":" + listID
		}
	}
	return streamName
}

// StreamArray renders a subscription key as the wire frame's stream array.
// Only the hashtag and list families split into [name, param]; stream names
// that themselves contain a colon, such as public:local, stay whole.
func StreamArray(key string) []string {
	for _, family := range []string{"hashtag:local", "hashtag", "list"} {
		if key == family {
			return []string{key}
		}
		prefix := family + ":"
		if strings.HasPrefix(key, prefix) && len(key) > len(prefix) {
			return []string{family, key[len(prefix):]}
		}
	}
	return []string{key}
}
