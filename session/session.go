package session

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/arovi-health/arovi/internal/briefing"
	"github.com/arovi-health/arovi/internal/workflow"
	"github.com/arovi-health/arovi/session/inmemory"
	"github.com/arovi-health/arovi/session/redisstore"
	"github.com/arovi-health/arovi/session/sessmodels"
)

// Store manages briefing sessions. A session carries the run state across
// pause/resume boundaries and an item index for follow-up questions.
type Store interface {
	EnsureSession(id string, ttl time.Duration) (Session, error)
	GetSession(id string) (Session, error)
}

// Session exposes get/set/merge over the run's shared state plus a keyword
// search over the briefing's news items.
type Session interface {
	ID() string
	Expire(ttl time.Duration)
	SaveState(st *workflow.State) error
	LoadState() (*workflow.State, error)
	IndexItems(items []briefing.NewsItem) error
	Search(q string, k int) ([]sessmodels.SearchHit, error)
}

// Compactor is the history-summary hook for long-term memory integrations.
// Implementations condense an old session into a short summary that can seed
// a later run. None ships here; external memory services plug in through it.
type Compactor interface {
	Compact(ctx context.Context, sess Session) (string, error)
}

type StoreType string

const (
	InMemoryStore StoreType = "inmemory"
	RedisStore    StoreType = "redis"
)

// NewStore builds a session store. The redis client is only required for the
// redis-backed store.
func NewStore(storeType StoreType, rdb *redis.Client) (Store, error) {
	switch storeType {
	case InMemoryStore:
		return memAdapter{inmemory.NewStore()}, nil
	case RedisStore:
		if rdb == nil {
			return nil, fmt.Errorf("redis session store requires a redis client")
		}
		return redisAdapter{redisstore.NewStore(rdb)}, nil
	default:
		return nil, fmt.Errorf("unsupported session store type: %s", storeType)
	}
}

type memAdapter struct{ store *inmemory.Store }

func (a memAdapter) EnsureSession(id string, ttl time.Duration) (Session, error) {
	return a.store.EnsureSession(id, ttl)
}

func (a memAdapter) GetSession(id string) (Session, error) {
	sess, err := a.store.GetSession(id)
	if err != nil || sess == nil {
		return nil, err
	}
	return sess, nil
}

type redisAdapter struct{ store *redisstore.Store }

func (a redisAdapter) EnsureSession(id string, ttl time.Duration) (Session, error) {
	return a.store.EnsureSession(id, ttl)
}

func (a redisAdapter) GetSession(id string) (Session, error) {
	sess, err := a.store.GetSession(id)
	if err != nil || sess == nil {
		return nil, err
	}
	return sess, nil
}
