package session

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"planner/internal/cache"
)

// CookieName carries the session id between requests.
const CookieName = "planner_session"

var ErrNotFound = errors.New("session not found")

// Store keeps plans by session id. Load returns ErrNotFound for unknown or
// expired ids. Implementations store copies, so callers must Save after
// changing a loaded plan.
type Store interface {
	Load(ctx context.Context, id string) (*Plan, error)
	Save(ctx context.Context, id string, plan *Plan) error
	Delete(ctx context.Context, id string) error
	Close() error
}

// NewID returns a fresh random session id.
func NewID() string {
	return uuid.NewString()
}

// ValidID reports whether id looks like one issued by NewID. Anything else
// coming from a cookie is ignored.
func ValidID(id string) bool {
	u, err := uuid.Parse(id)
	return err == nil && u.Version() == 4
}

// MemoryStore keeps plans in a size-bounded LRU with sliding expiry.
type MemoryStore struct {
	plans   *cache.LRUCache[*Plan]
	manager *cache.Manager
}

// NewMemoryStore starts a sweep of expired sessions on sweepSpec, a cron
// schedule such as "@every 10m".
func NewMemoryStore(maxEntries int, ttl time.Duration, sweepSpec string, logger *slog.Logger) (*MemoryStore, error) {
	s := &MemoryStore{
		plans:   cache.NewSlidingLRUCache[*Plan](maxEntries, ttl),
		manager: cache.NewManager(logger),
	}
	s.manager.Register(s.plans)
	if err := s.manager.StartCleanup(sweepSpec); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *MemoryStore) Load(_ context.Context, id string) (*Plan, error) {
	plan, ok := s.plans.Get(id)
	if !ok {
		return nil, ErrNotFound
	}
	return plan.Clone(), nil
}

func (s *MemoryStore) Save(_ context.Context, id string, plan *Plan) error {
	s.plans.Set(id, plan.Clone())
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.plans.Delete(id)
	return nil
}

// Len is the number of live sessions, expired ones included until swept.
func (s *MemoryStore) Len() int {
	return s.plans.Size()
}

func (s *MemoryStore) Close() error {
	s.manager.Stop()
	return nil
}
