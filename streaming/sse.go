package streaming

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/bonfire-networks/bonfire-notify/auth"
)

// sseNotification is the data shape of an SSE notification event.
type sseNotification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	URL   string `json:"url"`
	Icon  string `json:"icon"`
}

// sseMessage is the data shape of an SSE direct message event.
type sseMessage struct {
	Type     string `json:"type"`
	ThreadID string `json:"thread_id"`
}

// SSEHandler is the unidirectional fallback for clients that cannot hold a
// websocket. It always forwards the principal's notification and inbox
// topics; there is no stream selection on this path.
type SSEHandler struct {
	authority auth.Authority
	resolver  *Resolver
	bus       Bus
	logger    *slog.Logger
	metrics   *Metrics
	heartbeat time.Duration
}

// NewSSEHandler creates the SSE fallback handler.
func NewSSEHandler(authority auth.Authority, resolver *Resolver, bus Bus, logger *slog.Logger, metrics *Metrics, heartbeat time.Duration) *SSEHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if heartbeat <= 0 {
		heartbeat = 30 * time.Second
	}
	return &SSEHandler{
		authority: authority,
		resolver:  resolver,
		bus:       bus,
		logger:    logger,
		metrics:   metrics,
		heartbeat: heartbeat,
	}
}

// ServeHTTP streams the principal's notifications and direct messages as
// server-sent events until the client disconnects.
func (h *SSEHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	principal, _, err := auth.Authenticate(r.Context(), r, h.authority)
	if err != nil {
		h.metrics.authFailure()
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	ctx := r.Context()
	logger := h.logger.With("principal", principal.ID, "transport", "sse")

	type sseEvent struct {
		fromInbox bool
		data      []byte
	}
	events := make(chan sseEvent, 64)

	enqueue := func(fromInbox bool) func(context.Context, []byte) {
		return func(_ context.Context, data []byte) {
			select {
			case events <- sseEvent{fromInbox: fromInbox, data: data}:
			default:
				// Slow consumer; drop rather than block the bus callback
			}
		}
	}

	notifTopic := h.resolver.Resolve(ctx, StreamUserNotification, principal.ID)
	inboxTopic := h.resolver.Resolve(ctx, StreamDirect, principal.ID)

	var subs []BusSubscription
	defer func() {
		for _, sub := range subs {
			_ = sub.Unsubscribe()
		}
	}()

	if !notifTopic.Empty() {
		sub, err := h.bus.Subscribe(ctx, notifTopic.String(), enqueue(false))
		if err != nil {
			logger.Error("Bus subscription failed", "topic", notifTopic.String(), "error", err)
			http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
			return
		}
		subs = append(subs, sub)
	}
	if !inboxTopic.Empty() {
		sub, err := h.bus.Subscribe(ctx, inboxTopic.String(), enqueue(true))
		if err != nil {
			logger.Error("Bus subscription failed", "topic", inboxTopic.String(), "error", err)
			http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
			return
		}
		subs = append(subs, sub)
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	h.metrics.connectionOpened()
	defer h.metrics.connectionClosed()
	logger.Info("SSE client connected")
	defer logger.Info("SSE client disconnected")

	idle := time.NewTimer(h.heartbeat)
	defer idle.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-events:
			if h.writeEvent(w, flusher, ev.fromInbox, ev.data) {
				if !idle.Stop() {
					select {
					case <-idle.C:
					default:
					}
				}
				idle.Reset(h.heartbeat)
			}
		case <-idle.C:
			// Comment-only heartbeat keeps intermediaries from timing out
			if _, err := fmt.Fprint(w, ": heartbeat\n\n"); err != nil {
				return
			}
			flusher.Flush()
			idle.Reset(h.heartbeat)
		}
	}
}

// writeEvent renders one bus event as an SSE event. Returns true when a
// frame was written.
func (h *SSEHandler) writeEvent(w http.ResponseWriter, flusher http.Flusher, fromInbox bool, data []byte) bool {
	event, err := DecodeEvent(data)
	if err != nil {
		h.metrics.frameSkipped()
		return false
	}

	if fromInbox {
		threadID := event.ThreadID
		if threadID == "" {
			threadID = event.objectID()
		}
		payload, _ := json.Marshal(sseMessage{Type: "message", ThreadID: threadID})
		if _, err := fmt.Fprintf(w, "event: message\ndata: %s\n\n", payload); err != nil {
			return false
		}
		flusher.Flush()
		h.metrics.frameSent("message")
		return true
	}

	notif, ok := h.notificationPayload(event)
	if !ok {
		h.metrics.frameSkipped()
		return false
	}
	payload, _ := json.Marshal(notif)
	if _, err := fmt.Fprintf(w, "event: notification\ndata: %s\n\n", payload); err != nil {
		return false
	}
	flusher.Flush()
	h.metrics.frameSent("notification")
	return true
}

// notificationPayload builds the simple notification shape from an event.
func (h *SSEHandler) notificationPayload(event *Event) (*sseNotification, bool) {
	var phrase string
	switch event.Verb {
	case VerbLike:
		phrase = "liked your post"
	case VerbBoost, VerbAnnounce:
		phrase = "boosted your post"
	case VerbFollow:
		phrase = "followed you"
	case VerbCreate:
		phrase = "mentioned you"
	default:
		return nil, false
	}

	actorName := "Someone"
	icon := defaultAvatarURL
	if event.Actor != nil {
		if event.Actor.DisplayName != "" {
			actorName = event.Actor.DisplayName
		} else if event.Actor.Username != "" {
			actorName = event.Actor.Username
		}
		if event.Actor.AvatarURL != "" {
			icon = event.Actor.AvatarURL
		}
	}

	var body, url string
	if event.Object != nil {
		body = stripTags(contentFor(event.Object))
		url = event.Object.URL
	}

	return &sseNotification{
		Title: actorName + " " + phrase,
		Body:  body,
		URL:   url,
		Icon:  icon,
	}, true
}
