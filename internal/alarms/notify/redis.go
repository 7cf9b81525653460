package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"

	alarmapp "fleetwatch-cloud/internal/alarms/application"
)

// RedisPublisher broadcasts alarm lifecycle events on a per-tenant
// pub/sub channel so dashboard instances can fan them out to clients.
type RedisPublisher struct {
	client *redis.Client
	logger *log.Logger
}

// NewRedisPublisher constructs a publisher.
func NewRedisPublisher(client *redis.Client, logger *log.Logger) (*RedisPublisher, error) {
	if client == nil {
		return nil, errors.New("redis publisher: nil client")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &RedisPublisher{client: client, logger: logger}, nil
}

// AlarmChannel returns the pub/sub channel name for a tenant.
func AlarmChannel(tenantID string) string {
	return fmt.Sprintf("tenant:%s:alarms", tenantID)
}

// Notify implements alarmapp.AlarmNotifier. Publish failures are logged
// and dropped; the channel is a best-effort broadcast, not a queue.
func (p *RedisPublisher) Notify(ctx context.Context, event alarmapp.AlarmEvent) {
	if p == nil || p.client == nil {
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.Printf("redis publish marshal: %v", err)
		return
	}
	channel := AlarmChannel(event.Alarm.TenantID)
	if err := p.client.Publish(ctx, channel, payload).Err(); err != nil {
		p.logger.Printf("redis publish %s: %v", channel, err)
	}
}
