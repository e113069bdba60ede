package inmemory

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/blevesearch/bleve"
	"github.com/google/uuid"

	"github.com/arovi-health/arovi/internal/briefing"
	"github.com/arovi-health/arovi/internal/workflow"
	"github.com/arovi-health/arovi/session/sessmodels"
)

// Store keeps sessions in process memory.
type Store struct {
	sessions map[string]*Session
	mu       sync.RWMutex
}

func NewStore() *Store {
	return &Store{sessions: make(map[string]*Session)}
}

func (store *Store) EnsureSession(id string, ttl time.Duration) (*Session, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	if id != "" {
		if sess, ok := store.sessions[id]; ok {
			sess.Expire(ttl)
			return sess, nil
		}
	}

	if id == "" {
		id = uuid.NewString()
	}
	sess, err := NewSession(id, ttl)
	if err != nil {
		return nil, err
	}

	store.sessions[sess.ID()] = sess
	return sess, nil
}

func (store *Store) GetSession(id string) (*Session, error) {
	store.mu.RLock()
	defer store.mu.RUnlock()
	sess, ok := store.sessions[id]
	if !ok {
		return nil, nil
	}
	return sess, nil
}

// Session holds one briefing run's state and a keyword index over its items.
type Session struct {
	id        string
	expiresAt time.Time
	index     bleve.Index
	items     map[string]briefing.NewsItem
	state     *workflow.State
	mu        sync.RWMutex
}

func NewSession(id string, ttl time.Duration) (*Session, error) {
	index, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, err
	}
	return &Session{
		id:        id,
		expiresAt: time.Now().Add(ttl),
		index:     index,
		items:     make(map[string]briefing.NewsItem),
	}, nil
}

func (s *Session) ID() string               { return s.id }
func (s *Session) Expire(ttl time.Duration) { s.expiresAt = time.Now().Add(ttl) }

// ExpiresAt reports the current expiry instant.
func (s *Session) ExpiresAt() time.Time { return s.expiresAt }

// SaveState stores the run's state object for later resume.
func (s *Session) SaveState(st *workflow.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = st
	return nil
}

// LoadState returns the stored state, or a fresh one when none was saved.
func (s *Session) LoadState() (*workflow.State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state == nil {
		return workflow.NewState(), nil
	}
	return s.state, nil
}

// IndexItems adds briefing items to the session's search index. The doc ID is
// the case-folded (region, title) pair, so re-indexing a run is idempotent.
func (s *Session) IndexItems(items []briefing.NewsItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range items {
		docID := docKey(item)
		s.items[docID] = item
		if err := s.index.Index(docID, item); err != nil {
			return fmt.Errorf("indexing %q: %w", item.Title, err)
		}
	}
	return nil
}

// Items returns the indexed items in no particular order.
func (s *Session) Items() []briefing.NewsItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]briefing.NewsItem, 0, len(s.items))
	for _, item := range s.items {
		out = append(out, item)
	}
	return out
}

// Search runs a keyword query over the indexed items.
func (s *Session) Search(q string, k int) ([]sessmodels.SearchHit, error) {
	query := bleve.NewQueryStringQuery(q)
	req := bleve.NewSearchRequestOptions(query, k, 0, false)
	res, err := s.index.Search(req)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []sessmodels.SearchHit
	for i, hit := range res.Hits {
		item := s.items[hit.ID]
		out = append(out, sessmodels.SearchHit{
			DocID:   hit.ID,
			URL:     item.URL,
			Title:   item.Title,
			Region:  item.Region,
			Snippet: sessmodels.Snippet(item.Summary),
			Score:   hit.Score,
			Rank:    i + 1,
		})
	}
	return out, nil
}

func docKey(item briefing.NewsItem) string {
	return strings.ToLower(item.Region) + "|" + strings.ToLower(item.Title)
}
