package relay

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"attackwatch/internal/broadcast"
)

type RedisConfig struct {
	Addr          string
	Password      string
	DB            int
	ChannelPrefix string
}

type redisSender struct {
	client *redis.Client
	prefix string
}

func (s *redisSender) send(ctx context.Context, msg broadcast.Message) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return s.client.Publish(ctx, s.prefix+msg.Name, []byte(msg.Data)).Err()
}

func (s *redisSender) close() error {
	return s.client.Close()
}

// Redis publishes each message on the pub/sub channel <prefix><event name>,
// e.g. attackwatch:new-attack.
type Redis struct {
	*queue
}

// NewRedis connects and pings the server before returning.
func NewRedis(ctx context.Context, cfg RedisConfig, logger *zap.Logger) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis %s: %w", cfg.Addr, err)
	}
	logger.Info("redis relay connected", zap.String("addr", cfg.Addr), zap.Int("db", cfg.DB))
	return newRedisWithClient(client, cfg.ChannelPrefix, logger), nil
}

func newRedisWithClient(client *redis.Client, prefix string, logger *zap.Logger) *Redis {
	return &Redis{newQueue("redis", &redisSender{client: client, prefix: prefix}, logger)}
}
