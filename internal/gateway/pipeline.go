package gateway

import (
	"context"
	"strings"

	"parley/internal/chat"
	"parley/internal/completion"
)

// handleSendMessage runs the full message pipeline for one inbound message:
// persist the user message, fan it out, generate the assistant reply,
// persist it and fan that out too. The frame's conversation id is the
// pipeline target; a frame that omits it falls back to the joined room.
// The pipeline runs on a context detached from the frame's, so an in-flight
// reply still lands in the store and the room after the sender disconnects.
func (g *Gateway) handleSendMessage(ctx context.Context, connID string, frame ClientFrame) {
	info, ok := g.registry.Info(connID)
	if !ok {
		return
	}
	if !info.Authenticated {
		g.sendTo(connID, errorEvent("not authenticated"))
		return
	}
	conversationID := strings.TrimSpace(frame.ConversationID)
	if conversationID == "" {
		conversationID = info.ConversationID
	}
	if conversationID == "" {
		g.sendTo(connID, errorEvent("conversation id is empty"))
		return
	}
	if strings.TrimSpace(frame.Content) == "" {
		g.sendTo(connID, errorEvent("message content is empty"))
		return
	}
	g.registry.Touch(connID)

	span := g.metrics.Start("send_message")
	err := g.runPipeline(context.WithoutCancel(ctx), connID, info, conversationID, frame.Content)
	span.End(err)
}

func (g *Gateway) runPipeline(ctx context.Context, connID string, info ConnInfo, conversationID, content string) error {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			g.sendTo(connID, errorEvent("rate limit wait interrupted"))
			return err
		}
	}

	userMsg, err := g.store.AppendMessage(ctx, chat.NewMessage(conversationID, chat.RoleUser, content))
	if err != nil {
		g.logf("gateway: persist user message in %s: %v", conversationID, err)
		g.sendTo(connID, errorEvent("failed to save message"))
		return err
	}

	g.broadcastToConversation(conversationID, messageReceivedEvent(userMsg))
	g.broadcastToConversation(conversationID, typingStartEvent(string(chat.RoleAssistant)))
	g.record(ctx, info.UserID, userMsg)

	history, err := g.store.History(ctx, conversationID, g.historyLimit)
	if err != nil {
		g.logf("gateway: load history for %s: %v", conversationID, err)
		history = []chat.Message{userMsg}
	}

	result, err := g.completions.Generate(ctx, history)
	if err != nil {
		g.logf("gateway: completion failed in %s: %v", conversationID, err)
		result = completion.Fallback()
	}

	reply := chat.NewMessage(conversationID, chat.RoleAssistant, result.Content)
	reply.Provider = result.Provider
	reply.Tokens = result.Tokens

	assistantMsg, err := g.store.AppendMessage(ctx, reply)
	if err != nil {
		g.logf("gateway: persist assistant message in %s: %v", conversationID, err)
		g.broadcastToConversation(conversationID, typingStopEvent(string(chat.RoleAssistant)))
		g.sendTo(connID, errorEvent("failed to save assistant reply"))
		return err
	}

	g.broadcastToConversation(conversationID, typingStopEvent(string(chat.RoleAssistant)))
	g.broadcastToConversation(conversationID, messageReceivedEvent(assistantMsg))
	g.record(ctx, info.UserID, assistantMsg)

	conv, err := g.store.TouchConversation(ctx, conversationID)
	if err != nil {
		g.logf("gateway: touch conversation %s: %v", conversationID, err)
		return nil
	}
	g.broadcastToUser(info.UserID, conversationUpdatedEvent(conv))
	return nil
}

// record writes the message to the event log, best effort.
func (g *Gateway) record(ctx context.Context, userID string, msg chat.Message) {
	if g.events == nil {
		return
	}
	if err := g.events.Record(ctx, userID, msg); err != nil {
		g.logf("gateway: event log record for %s: %v", msg.ID, err)
	}
}
