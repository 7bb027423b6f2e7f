package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/spigell/interviewer/internal/interview"
)

const DefaultNamespace = "interviewer"

type RedisConfig struct {
	Address   string        `mapstructure:"address"`
	Password  string        `mapstructure:"password"`
	DB        int           `mapstructure:"db"`
	Namespace string        `mapstructure:"namespace"`
	TTL       time.Duration `mapstructure:"ttl"`
}

// Redis stores encoded sessions under <namespace>:session:<id>. A positive TTL
// is refreshed on every save.
type Redis struct {
	client    redis.UniversalClient
	namespace string
	ttl       time.Duration
}

// NewRedis connects to cfg.Address and checks the connection.
func NewRedis(ctx context.Context, cfg RedisConfig) (*Redis, error) {
	if strings.TrimSpace(cfg.Address) == "" {
		return nil, errors.New("redis address is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis %s: %w", cfg.Address, err)
	}

	return NewRedisWithClient(client, cfg.Namespace, cfg.TTL), nil
}

func NewRedisWithClient(client redis.UniversalClient, namespace string, ttl time.Duration) *Redis {
	if strings.TrimSpace(namespace) == "" {
		namespace = DefaultNamespace
	}
	if ttl < 0 {
		ttl = 0
	}
	return &Redis{client: client, namespace: namespace, ttl: ttl}
}

func (r *Redis) key(id string) string {
	return r.namespace + ":session:" + id
}

func (r *Redis) Get(ctx context.Context, id string) (*interview.Session, error) {
	data, err := r.client.Get(ctx, r.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, interview.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read session %s: %w", id, err)
	}
	return decode(id, data)
}

func (r *Redis) Save(ctx context.Context, session *interview.Session) error {
	data, err := encode(session)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, r.key(session.ID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("write session %s: %w", session.ID, err)
	}
	return nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
