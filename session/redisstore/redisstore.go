package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/arovi-health/arovi/internal/briefing"
	"github.com/arovi-health/arovi/internal/workflow"
	"github.com/arovi-health/arovi/session/inmemory"
	"github.com/arovi-health/arovi/session/sessmodels"
)

const opTimeout = 5 * time.Second

// Store persists session state in Redis so a run survives process restarts.
// The keyword index is rebuilt in memory from the persisted items on load.
type Store struct {
	rdb *redis.Client
}

func NewStore(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

func stateKey(id string) string { return "session:" + id + ":state" }
func itemsKey(id string) string { return "session:" + id + ":items" }

func (store *Store) EnsureSession(id string, ttl time.Duration) (*Session, error) {
	if id == "" {
		id = uuid.NewString()
	}
	sess, err := store.load(id, ttl)
	if err != nil {
		return nil, err
	}
	return sess, nil
}

func (store *Store) GetSession(id string) (*Session, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	exists, err := store.rdb.Exists(ctx, stateKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("checking session %s: %w", id, err)
	}
	if exists == 0 {
		return nil, nil
	}
	return store.load(id, 0)
}

func (store *Store) load(id string, ttl time.Duration) (*Session, error) {
	mem, err := inmemory.NewSession(id, ttl)
	if err != nil {
		return nil, err
	}
	sess := &Session{id: id, ttl: ttl, rdb: store.rdb, mem: mem}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if raw, err := store.rdb.Get(ctx, itemsKey(id)).Bytes(); err == nil {
		var items []briefing.NewsItem
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, fmt.Errorf("decoding session %s items: %w", id, err)
		}
		if err := mem.IndexItems(items); err != nil {
			return nil, err
		}
	} else if err != redis.Nil {
		return nil, fmt.Errorf("loading session %s items: %w", id, err)
	}

	return sess, nil
}

// Session is a Redis-backed briefing session. Search delegates to the
// rebuilt in-memory index; state snapshots round-trip through JSON.
type Session struct {
	id  string
	ttl time.Duration
	rdb *redis.Client
	mem *inmemory.Session
}

func (s *Session) ID() string { return s.id }

func (s *Session) Expire(ttl time.Duration) {
	s.ttl = ttl
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	s.rdb.Expire(ctx, stateKey(s.id), ttl)
	s.rdb.Expire(ctx, itemsKey(s.id), ttl)
}

func (s *Session) SaveState(st *workflow.State) error {
	snapshot := st.Snapshot()
	raw, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encoding session %s state: %w", s.id, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	if err := s.rdb.Set(ctx, stateKey(s.id), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("persisting session %s state: %w", s.id, err)
	}
	return nil
}

func (s *Session) LoadState() (*workflow.State, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	raw, err := s.rdb.Get(ctx, stateKey(s.id)).Bytes()
	if err == redis.Nil {
		return workflow.NewState(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading session %s state: %w", s.id, err)
	}

	var snapshot map[string]interface{}
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return nil, fmt.Errorf("decoding session %s state: %w", s.id, err)
	}
	return workflow.NewStateFrom(snapshot), nil
}

func (s *Session) IndexItems(items []briefing.NewsItem) error {
	if err := s.mem.IndexItems(items); err != nil {
		return err
	}
	raw, err := json.Marshal(s.mem.Items())
	if err != nil {
		return fmt.Errorf("encoding session %s items: %w", s.id, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	if err := s.rdb.Set(ctx, itemsKey(s.id), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("persisting session %s items: %w", s.id, err)
	}
	return nil
}

func (s *Session) Search(q string, k int) ([]sessmodels.SearchHit, error) {
	return s.mem.Search(q, k)
}
