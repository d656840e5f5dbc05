// Package host holds the collaborator contracts the gateway consumes
// from its surrounding runtime: agent routing, session bookkeeping, and
// the responder that turns an admitted inbound message into reply
// payloads.
package host

import (
	"context"
	"fmt"
	"time"

	"github.com/quailyquaily/telegate/dispatch"
)

// Route is the outcome of agent routing for one peer.
type Route struct {
	AgentID        string
	SessionKey     string
	MainSessionKey string
}

// RouteResolver maps (channel, account, peer) onto an agent route.
type RouteResolver interface {
	ResolveRoute(ctx context.Context, channel, accountID, peerID string) (Route, error)
}

// InboundMessage is the normalized envelope handed to the responder.
type InboundMessage struct {
	Channel        string    `json:"channel"`
	AccountID      string    `json:"account_id"`
	SessionKey     string    `json:"session_key"`
	AgentID        string    `json:"agent_id"`
	SenderID       string    `json:"sender_id"`
	SenderUsername string    `json:"sender_username,omitempty"`
	SenderName     string    `json:"sender_name,omitempty"`
	MessageID      int64     `json:"message_id"`
	Text           string    `json:"text,omitempty"`
	MediaPath      string    `json:"media_path,omitempty"`
	MediaType      string    `json:"media_type,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// Responder produces reply payloads for one admitted inbound message.
type Responder interface {
	Respond(ctx context.Context, msg InboundMessage) ([]dispatch.Payload, error)
}

// StaticRouteResolver derives deterministic session keys from the peer
// identity and routes everything to one agent.
type StaticRouteResolver struct {
	AgentID string
}

func (r StaticRouteResolver) ResolveRoute(ctx context.Context, channel, accountID, peerID string) (Route, error) {
	if peerID == "" {
		return Route{}, fmt.Errorf("host: route needs a peer id")
	}
	agentID := r.AgentID
	if agentID == "" {
		agentID = "main"
	}
	return Route{
		AgentID:        agentID,
		SessionKey:     fmt.Sprintf("%s:%s:%s", channel, accountID, peerID),
		MainSessionKey: fmt.Sprintf("%s:%s:main", channel, accountID),
	}, nil
}
