package gateway

import (
	"context"
	"log"

	"parley/internal/auth"
	"parley/internal/chat"
	"parley/internal/completion"
	"parley/internal/observability"
)

const defaultHistoryLimit = 50

// EventLog records delivered messages to an external sink, best effort.
type EventLog interface {
	Record(ctx context.Context, userID string, msg chat.Message) error
}

// Options carries the gateway's optional collaborators. Zero values are safe.
type Options struct {
	Events       EventLog
	Limiter      *RateLimiter
	Metrics      *observability.Metrics
	HistoryLimit int
	Logf         func(format string, args ...any)
}

// Gateway routes client frames through auth, the message pipeline and
// broadcast fan-out. One Gateway serves all connections.
type Gateway struct {
	registry     *Registry
	verifier     auth.TokenVerifier
	store        chat.Store
	completions  completion.Client
	events       EventLog
	limiter      *RateLimiter
	metrics      *observability.Metrics
	historyLimit int
	logf         func(format string, args ...any)
}

func New(verifier auth.TokenVerifier, store chat.Store, completions completion.Client, opts Options) *Gateway {
	logf := opts.Logf
	if logf == nil {
		logf = log.Printf
	}
	limit := opts.HistoryLimit
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	return &Gateway{
		registry:     NewRegistry(),
		verifier:     verifier,
		store:        store,
		completions:  completions,
		events:       opts.Events,
		limiter:      opts.Limiter,
		metrics:      opts.Metrics,
		historyLimit: limit,
		logf:         logf,
	}
}

// Registry exposes the connection registry for the reaper and tests.
func (g *Gateway) Registry() *Registry {
	return g.registry
}

// Connect registers a sender and confirms the session with a connected event.
func (g *Gateway) Connect(sender Sender) string {
	id := g.registry.Register(sender)
	g.metrics.ConnectionOpened()
	g.sendTo(id, connectedEvent(id))
	g.logf("gateway: connection %s opened", id)
	return id
}

// Disconnect drops the connection from the registry. The transport is
// assumed to be closing already.
func (g *Gateway) Disconnect(id string) {
	if g.registry.Remove(id) {
		g.metrics.ConnectionClosed()
		g.logf("gateway: connection %s closed", id)
	}
}

// Dispatch handles one decoded client frame.
func (g *Gateway) Dispatch(ctx context.Context, connID string, frame ClientFrame) {
	switch frame.Type {
	case FrameAuthenticate:
		g.handleAuthenticate(ctx, connID, frame)
	case FrameJoinConversation:
		g.handleJoin(connID, frame)
	case FrameSendMessage:
		g.handleSendMessage(ctx, connID, frame)
	case FramePing:
		g.registry.Touch(connID)
		g.sendTo(connID, pongEvent())
	default:
		g.sendTo(connID, errorEvent("unknown message type: "+frame.Type))
	}
}

func (g *Gateway) handleAuthenticate(ctx context.Context, connID string, frame ClientFrame) {
	span := g.metrics.Start("authenticate")
	userID, err := g.verifier.Verify(ctx, frame.Token)
	span.End(err)
	if err != nil {
		g.logf("gateway: authentication failed on %s: %v", connID, err)
		g.sendTo(connID, errorEvent("authentication failed"))
		return
	}
	if !g.registry.Authenticate(connID, userID) {
		return
	}
	g.sendTo(connID, authenticatedEvent(userID))
}

func (g *Gateway) handleJoin(connID string, frame ClientFrame) {
	info, ok := g.registry.Info(connID)
	if !ok {
		return
	}
	if !info.Authenticated {
		g.sendTo(connID, errorEvent("not authenticated"))
		return
	}
	if frame.ConversationID == "" {
		g.sendTo(connID, errorEvent("conversation id is required"))
		return
	}
	if !g.registry.Join(connID, frame.ConversationID) {
		return
	}
	g.sendTo(connID, conversationJoinedEvent(frame.ConversationID))
}

// AnnounceConversationCreated notifies every tab of the user about a new
// conversation, regardless of which rooms the tabs have joined.
func (g *Gateway) AnnounceConversationCreated(userID string, conv chat.Conversation) {
	g.broadcastToUser(userID, ConversationCreatedEvent(conv))
}

// AnnounceConversationDeleted empties the conversation's room and notifies
// every tab of the user.
func (g *Gateway) AnnounceConversationDeleted(userID, conversationID string) {
	for _, t := range g.registry.ConversationTargets(conversationID) {
		g.registry.Leave(t.ID)
	}
	g.broadcastToUser(userID, ConversationDeletedEvent(conversationID))
}

// sendTo delivers an event to a single connection by id.
func (g *Gateway) sendTo(id string, ev Event) {
	sender, ok := g.registry.Sender(id)
	if !ok {
		return
	}
	g.deliver(Target{ID: id, Sender: sender}, ev)
}

// deliver writes one event to a target. A send failure means the transport
// is dead, so the connection is dropped on the spot.
func (g *Gateway) deliver(t Target, ev Event) bool {
	if err := t.Sender.Send(ev); err != nil {
		g.metrics.EventDropped(ev.Type)
		g.logf("gateway: dropping connection %s: %v", t.ID, err)
		if g.registry.Remove(t.ID) {
			g.metrics.ConnectionClosed()
		}
		_ = t.Sender.Close()
		return false
	}
	g.metrics.EventSent(ev.Type)
	return true
}

func (g *Gateway) broadcastToConversation(conversationID string, ev Event) {
	for _, t := range g.registry.ConversationTargets(conversationID) {
		g.deliver(t, ev)
	}
}

func (g *Gateway) broadcastToUser(userID string, ev Event) {
	for _, t := range g.registry.UserTargets(userID) {
		g.deliver(t, ev)
	}
}
