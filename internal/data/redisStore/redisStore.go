package redisStore

import (
	"context"
	"sync"
	"time"

	"github.com/akolanti/GoDocRAG/pkg/logger_i"
	"github.com/redis/go-redis/v9"
)

const (
	dialPingTimeout = 3 * time.Second
	ioTimeout       = 5 * time.Second
)

var (
	instances   = make(map[int]*Store)
	mu          sync.RWMutex
	logger      = logger_i.NewLogger("Redis Store")
	closerStart sync.Once
)

// Store is one logical Redis database. The job store and the RAG cache each get their own DB
// index and the clients are shared per index for the process lifetime.
type Store struct {
	client *redis.Client
	Type   int
}

type Options struct {
	Addr     string
	Password string
	// PoolSize of zero keeps the go-redis default.
	PoolSize int
}

// GetRedisStore returns the shared store for dbType, connecting on first use. It returns nil
// when Redis is unreachable so callers can decide on a fallback. All clients close once ctx ends.
func GetRedisStore(ctx context.Context, opts Options, dbType int) *Store {
	mu.RLock()
	instance, exists := instances[dbType]
	mu.RUnlock()
	if exists {
		return instance
	}

	mu.Lock()
	defer mu.Unlock()
	if instance, exists = instances[dbType]; exists {
		return instance
	}

	s := connect(ctx, opts, dbType)
	if s == nil {
		return nil
	}
	instances[dbType] = s
	closerStart.Do(func() { go closeOnDone(ctx) })
	return s
}

func connect(ctx context.Context, opts Options, dbType int) *Store {
	client := redis.NewClient(&redis.Options{
		Addr:                  opts.Addr,
		Password:              opts.Password,
		DB:                    dbType,
		PoolSize:              opts.PoolSize,
		ContextTimeoutEnabled: true,
		ReadTimeout:           ioTimeout,
		WriteTimeout:          ioTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, dialPingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Error("Redis is offline", "addr", opts.Addr, "db", dbType, "error", err)
		_ = client.Close()
		return nil
	}

	logger.Info("Connected to Redis", "addr", opts.Addr, "db", dbType)
	return &Store{client: client, Type: dbType}
}

func closeOnDone(ctx context.Context) {
	<-ctx.Done()
	mu.Lock()
	defer mu.Unlock()
	for db, s := range instances {
		if err := s.client.Close(); err != nil {
			logger.Error("Error closing redis client", "db", db, "error", err)
		}
		delete(instances, db)
	}
	logger.Info("Redis stores closed")
}

// NewTestStore wraps an existing client, used with miniredis in tests.
func NewTestStore(client *redis.Client) *Store {
	return &Store{client: client}
}
