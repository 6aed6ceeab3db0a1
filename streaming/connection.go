package streaming

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bonfire-networks/bonfire-notify/auth"
	"github.com/bonfire-networks/bonfire-notify/directory"
	"github.com/bonfire-networks/bonfire-notify/errors"
	"github.com/bonfire-networks/bonfire-notify/pkg/buffer"
)

// Pusher pushes one wire frame to the client. Implementations are owned by
// the transport layer; a push error terminates the connection.
type Pusher interface {
	Push(frame []byte) error
}

// Bus is the subset of the bus client a connection needs. Handlers are
// invoked from bus goroutines and must not block.
type Bus interface {
	Subscribe(ctx context.Context, topic string, handler func(context.Context, []byte)) (BusSubscription, error)
}

// busEvent is one domain event as queued in the connection mailbox.
type busEvent struct {
	topic string
	data  []byte
}

// clientRequest is the recognized shape of a client-sent text frame.
type clientRequest struct {
	Type   string `json:"type"`
	Stream string `json:"stream"`
	Tag    string `json:"tag,omitempty"`
	List   string `json:"list,omitempty"`
}

// ConnectionConfig tunes one connection's actor.
type ConnectionConfig struct {
	// HeartbeatInterval is the reschedule period of the internal heartbeat
	// timer. The timer emits no frames; transport keepalive covers liveness.
	HeartbeatInterval time.Duration

	// MailboxCapacity bounds the queue of bus events awaiting processing.
	// Overflow drops the oldest event.
	MailboxCapacity int

	// QueueCapacity bounds the outbound frame queue used when one bus event
	// yields more than one frame.
	QueueCapacity int

	// InitialStream, when non-empty, is subscribed once during
	// initialization, before the running loop starts.
	InitialStream string
	InitialTag    string
	InitialList   string
}

func (c *ConnectionConfig) applyDefaults() {
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = 30 * time.Second
	}
	if c.MailboxCapacity <= 0 {
		c.MailboxCapacity = 256
	}
	if c.QueueCapacity <= 0 {
		c.QueueCapacity = 64
	}
}

// Connection is one client's sequential actor. It exclusively owns its
// registry and mailbox; nothing here is shared with other connections
// except the bus, directory, and authority collaborators.
type Connection struct {
	principal *auth.Principal
	resolver  *Resolver
	bus       Bus
	push      Pusher
	cfg       ConnectionConfig
	logger    *slog.Logger
	metrics   *Metrics

	registry *Registry

	// inbound carries client text frames from the transport reader.
	inbound chan []byte

	// mailbox holds bus events; mailboxSignal wakes the loop.
	mailbox       buffer.Buffer[busEvent]
	mailboxSignal chan struct{}

	// outbound holds frames beyond the first produced in one reaction,
	// drained one per loop pass.
	outbound buffer.Buffer[[]byte]
}

// NewConnection builds a connection actor for an authenticated principal.
func NewConnection(principal *auth.Principal, resolver *Resolver, bus Bus, push Pusher, cfg ConnectionConfig, logger *slog.Logger, metrics *Metrics) (*Connection, error) {
	if principal == nil || principal.ID == "" {
		return nil, errors.WrapInvalid(
			fmt.Errorf("principal is required"),
			"Connection", "NewConnection", "validate input",
		)
	}
	if resolver == nil || bus == nil || push == nil {
		return nil, errors.WrapInvalid(
			fmt.Errorf("resolver, bus, and pusher are required"),
			"Connection", "NewConnection", "validate input",
		)
	}
	if logger == nil {
		logger = slog.Default()
	}
	cfg.applyDefaults()

	c := &Connection{
		principal:     principal,
		resolver:      resolver,
		bus:           bus,
		push:          push,
		cfg:           cfg,
		logger:        logger.With("principal", principal.ID),
		metrics:       metrics,
		registry:      NewRegistry(),
		inbound:       make(chan []byte, 16),
		mailboxSignal: make(chan struct{}, 1),
	}

	mailbox, err := buffer.NewCircularBuffer[busEvent](
		cfg.MailboxCapacity,
		buffer.WithOverflowPolicy[busEvent](buffer.DropOldest),
		buffer.WithDropCallback[busEvent](func(busEvent) {
			c.metrics.mailboxDropped()
		}),
	)
	if err != nil {
		return nil, err
	}
	c.mailbox = mailbox

	outbound, err := buffer.NewCircularBuffer[[]byte](
		cfg.QueueCapacity,
		buffer.WithOverflowPolicy[[]byte](buffer.DropNewest),
	)
	if err != nil {
		return nil, err
	}
	c.outbound = outbound

	return c, nil
}

// Deliver hands a client-sent text frame to the actor. Called from the
// transport reader goroutine. Returns false once the actor's context ended.
func (c *Connection) Deliver(ctx context.Context, data []byte) bool {
	select {
	case c.inbound <- data:
		return true
	case <-ctx.Done():
		return false
	}
}

// Run executes the connection lifecycle: initialize, then the running loop
// until the context is cancelled or a push fails. Bus subscriptions are
// released on exit. Queued frames are not drained on cancellation.
func (c *Connection) Run(ctx context.Context) {
	defer c.terminate()

	heartbeat := time.NewTicker(c.cfg.HeartbeatInterval)
	defer heartbeat.Stop()

	if c.cfg.InitialStream != "" {
		c.subscribe(ctx, c.cfg.InitialStream, c.cfg.InitialTag, c.cfg.InitialList)
	}

	for {
		// One frame push per pass. The queue drains before any new input is
		// taken, preserving frame order, with a stop check between pushes.
		if !c.outbound.IsEmpty() {
			select {
			case <-ctx.Done():
				return
			default:
			}
			frame, ok := c.outbound.Read()
			if !ok {
				continue
			}
			if err := c.push.Push(frame); err != nil {
				c.logger.Debug("Push failed, closing connection", "error", err)
				return
			}
			continue
		}

		select {
		case <-ctx.Done():
			return
		case data := <-c.inbound:
			c.handleClientFrame(ctx, data)
		case <-c.mailboxSignal:
			if ev, ok := c.mailbox.Read(); ok {
				if err := c.handleEvent(ev); err != nil {
					c.logger.Debug("Push failed, closing connection", "error", err)
					return
				}
			}
			if !c.mailbox.IsEmpty() {
				c.signalMailbox()
			}
		case <-heartbeat.C:
			// Reschedules itself; deliberately emits no frame. Some clients
			// disconnect on unexpected text heartbeats.
		}
	}
}

func (c *Connection) signalMailbox() {
	select {
	case c.mailboxSignal <- struct{}{}:
	default:
	}
}

// onBusEvent returns the handler registered with the bus for one topic. It
// only enqueues; all processing happens on the actor loop.
func (c *Connection) onBusEvent(topic directory.Topic) func(context.Context, []byte) {
	return func(_ context.Context, data []byte) {
		if err := c.mailbox.Write(busEvent{topic: topic.String(), data: data}); err != nil {
			return
		}
		c.signalMailbox()
	}
}

// handleClientFrame parses and dispatches one client text frame. Malformed
// JSON and unrecognized types are silently ignored per the permissive
// client contract.
func (c *Connection) handleClientFrame(ctx context.Context, data []byte) {
	var req clientRequest
	if err := json.Unmarshal(data, &req); err != nil {
		c.logger.Debug("Ignoring malformed client frame")
		return
	}

	switch req.Type {
	case "subscribe":
		c.subscribe(ctx, req.Stream, req.Tag, req.List)
	case "unsubscribe":
		c.unsubscribe(SubscriptionKey(req.Stream, req.Tag, req.List))
	default:
		c.logger.Debug("Ignoring unrecognized client request", "type", req.Type)
	}
}

// subscribe resolves and registers one stream subscription. Idempotent on
// the derived key; streams without a topic are accepted but untracked.
func (c *Connection) subscribe(ctx context.Context, streamName, tag, listID string) {
	key := SubscriptionKey(streamName, tag, listID)
	if c.registry.Has(key) {
		return
	}

	kind := ParseStream(streamName)
	topic := c.resolver.Resolve(ctx, kind, c.principal.ID)
	if topic.Empty() {
		return
	}

	sub, err := c.bus.Subscribe(ctx, topic.String(), c.onBusEvent(topic))
	if err != nil {
		c.logger.Error("Bus subscription failed",
			"stream", streamName,
			"topic", topic.String(),
			"error", err,
		)
		return
	}

	c.registry.Add(key, topic, sub, kind.IsNotificationStream())
	c.metrics.subscriptionAdded()
	c.logger.Debug("Subscribed", "key", key, "topic", topic.String())
}

// unsubscribe removes one subscription. Absent keys are a no-op.
func (c *Connection) unsubscribe(key string) {
	binding, ok := c.registry.Remove(key)
	if !ok {
		return
	}
	if err := binding.Sub.Unsubscribe(); err != nil {
		c.logger.Debug("Bus unsubscribe failed", "key", key, "error", err)
	}
	c.metrics.subscriptionRemoved(1)
	c.logger.Debug("Unsubscribed", "key", key)
}

// handleEvent turns one bus event into wire frames for every matching
// subscription. The first frame is pushed immediately; the rest queue for
// subsequent passes.
func (c *Connection) handleEvent(ev busEvent) error {
	event, err := DecodeEvent(ev.data)
	if err != nil {
		c.logger.Debug("Skipping undecodable bus event", "topic", ev.topic)
		c.metrics.frameSkipped()
		return nil
	}

	var frames [][]byte
	notificationTopic := c.registry.NotificationTopic().String()

	for _, binding := range c.registry.MatchTopic(ev.topic) {
		frames = append(frames, c.framesFor(binding, event)...)

		if notificationTopic != "" && binding.Topic.String() == notificationTopic {
			if frame := c.notificationFrame(binding, event); frame != nil {
				frames = append(frames, frame)
			}
		}
	}

	return c.emit(frames)
}

// framesFor builds the base frame for one subscription: delete frames for
// delete events, conversation frames on the direct stream, update frames
// otherwise. Unmappable events are skipped.
func (c *Connection) framesFor(binding Binding, event *Event) [][]byte {
	streams := StreamArray(binding.Key)

	if event.Verb == VerbDelete {
		frame, err := NewWireFrame(streams, EventDelete, FormatDelete(event.objectID()))
		if err != nil {
			c.metrics.frameSkipped()
			return nil
		}
		c.metrics.frameSent(EventDelete)
		return [][]byte{frame}
	}

	if ParseStream(binding.Key) == StreamDirect {
		threadID := event.ThreadID
		if threadID == "" {
			threadID = event.objectID()
		}
		frame, err := NewWireFrame(streams, EventConversation, FormatConversation(threadID))
		if err != nil {
			c.metrics.frameSkipped()
			return nil
		}
		c.metrics.frameSent(EventConversation)
		return [][]byte{frame}
	}

	payload, err := FormatUpdate(event)
	if err != nil {
		if !stderrors.Is(err, errors.ErrUnmappable) {
			c.logger.Debug("Update formatting failed", "error", err)
		}
		c.metrics.frameSkipped()
		return nil
	}
	frame, err := NewWireFrame(streams, EventUpdate, payload)
	if err != nil {
		c.metrics.frameSkipped()
		return nil
	}
	c.metrics.frameSent(EventUpdate)
	return [][]byte{frame}
}

// notificationFrame builds the companion notification frame for events on
// the tracked notification topic. Returns nil when the event's verb maps to
// no notification type.
func (c *Connection) notificationFrame(binding Binding, event *Event) []byte {
	payload, err := FormatNotification(event)
	if err != nil {
		if !stderrors.Is(err, errors.ErrUnmappable) {
			c.logger.Debug("Notification formatting failed", "error", err)
			c.metrics.frameSkipped()
		}
		return nil
	}
	frame, err := NewWireFrame(StreamArray(binding.Key), EventNotification, payload)
	if err != nil {
		c.metrics.frameSkipped()
		return nil
	}
	c.metrics.frameSent(EventNotification)
	return frame
}

// emit pushes the first frame immediately and queues the remainder, each
// drained one per loop pass. A push error is terminal for the connection.
func (c *Connection) emit(frames [][]byte) error {
	if len(frames) == 0 {
		return nil
	}
	if err := c.push.Push(frames[0]); err != nil {
		return err
	}
	for _, frame := range frames[1:] {
		if err := c.outbound.Write(frame); err != nil {
			return nil
		}
	}
	return nil
}

// terminate releases bus subscriptions and queues. No frames are emitted
// after this point.
func (c *Connection) terminate() {
	bindings := c.registry.All()
	for _, binding := range bindings {
		_ = binding.Sub.Unsubscribe()
		c.registry.Remove(binding.Key)
	}
	c.metrics.subscriptionRemoved(len(bindings))
	_ = c.mailbox.Close()
	_ = c.outbound.Close()
}
