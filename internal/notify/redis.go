package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/conduit-lang/sensorthings/internal/jsonio"
	"github.com/conduit-lang/sensorthings/internal/model"
)

// DefaultChannelPrefix is the channel prefix used when none is configured
const DefaultChannelPrefix = "sensorthings"

// RedisConfig holds the Redis publisher configuration
type RedisConfig struct {
	// Addr is the Redis server address (host:port)
	Addr string
	// Password is the Redis password (optional)
	Password string
	// DB is the Redis database number
	DB int
	// ChannelPrefix is prepended to the entity set name, e.g. sensorthings/Things
	ChannelPrefix string
}

// Event is the payload published for one change message
type Event struct {
	Event  string                 `json:"event"`
	Type   string                 `json:"type"`
	ID     interface{}            `json:"@iot.id"`
	Fields []string               `json:"fields,omitempty"`
	Entity map[string]interface{} `json:"entity"`
}

// RedisPublisher publishes change messages on Redis pub/sub, one channel
// per entity set.
type RedisPublisher struct {
	client *redis.Client
	ids    model.IDCodec
	prefix string
	logger *zap.Logger
}

// NewRedisPublisher connects to Redis and checks the connection
func NewRedisPublisher(config RedisConfig, ids model.IDCodec, logger *zap.Logger) (*RedisPublisher, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", config.Addr, err)
	}
	return NewRedisPublisherWithClient(client, config.ChannelPrefix, ids, logger), nil
}

// NewRedisPublisherWithClient creates a publisher on an existing client
func NewRedisPublisherWithClient(client *redis.Client, prefix string, ids model.IDCodec, logger *zap.Logger) *RedisPublisher {
	if prefix == "" {
		prefix = DefaultChannelPrefix
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisPublisher{
		client: client,
		ids:    ids,
		prefix: prefix,
		logger: logger.Named("notify"),
	}
}

// Channel returns the channel messages of the entity type are published on
func (r *RedisPublisher) Channel(et *model.EntityType) string {
	return r.prefix + "/" + et.Plural
}

// Publish implements Sink
func (r *RedisPublisher) Publish(ctx context.Context, msg *model.ChangeMessage) error {
	e := msg.Entity
	payload := Event{
		Event:  msg.Event.String(),
		Type:   e.Type().Name,
		ID:     r.ids.ToJSON(e.ID()),
		Entity: jsonio.Write(r.ids, e),
	}
	for _, p := range msg.Fields {
		payload.Fields = append(payload.Fields, p.JSONName)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", payload.Event, err)
	}
	channel := r.Channel(e.Type())
	if err := r.client.Publish(ctx, channel, data).Err(); err != nil {
		r.logger.Warn("publish failed", zap.String("channel", channel), zap.Error(err))
		return fmt.Errorf("publish to %s: %w", channel, err)
	}
	return nil
}

// Close closes the Redis connection
func (r *RedisPublisher) Close() error {
	return r.client.Close()
}
