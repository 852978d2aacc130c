// Package events fans session updates out to websocket subscribers, through
// Redis pub/sub when a broker is configured.
package events

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"poetica-backend/internal/models"
)

// WebSocket message types
const (
	TypeGenerationStarted = "generation_started"
	TypePoemGenerated     = "poem_generated"
	TypeGenerationFailed  = "generation_failed"
	TypeSessionCleared    = "session_cleared"
	TypeLibraryChanged    = "library_changed"
	TypeCopied            = "copied"
)

// Publisher delivers a message to every connection of one session.
// Delivery is best effort.
type Publisher interface {
	Publish(ctx context.Context, sessionID string, msg models.WSMessage)
}

// Channel is the pub/sub channel carrying sessionID's updates.
func Channel(sessionID string) string {
	return "session_updates:" + sessionID
}

type RedisPublisher struct {
	client *redis.Client
	logger *zap.Logger
}

func NewRedisPublisher(client *redis.Client, logger *zap.Logger) *RedisPublisher {
	return &RedisPublisher{client: client, logger: logger}
}

func (p *RedisPublisher) Publish(ctx context.Context, sessionID string, msg models.WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		p.logger.Error("failed to encode session update", zap.String("type", msg.Type), zap.Error(err))
		return
	}
	if err := p.client.Publish(ctx, Channel(sessionID), data).Err(); err != nil {
		p.logger.Warn("failed to publish session update",
			zap.String("session_id", sessionID),
			zap.String("type", msg.Type),
			zap.Error(err),
		)
	}
}

// Nop drops every message.
type Nop struct{}

func (Nop) Publish(context.Context, string, models.WSMessage) {}
