package cache

import (
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Cache defines a generic cache interface
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, data T)
	Delete(key string)
	Size() int
}

// Cleaner is implemented by caches that can drop expired entries.
type Cleaner interface {
	CleanExpired() int
}

// Manager sweeps registered caches on a cron schedule.
type Manager struct {
	caches []Cleaner
	cron   *cron.Cron
	logger *slog.Logger
}

func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		cron:   cron.New(),
		logger: logger,
	}
}

// Register adds a cache to the sweep. Call before StartCleanup.
func (m *Manager) Register(c Cleaner) {
	m.caches = append(m.caches, c)
}

// StartCleanup schedules the sweep with a cron spec such as "@every 10m"
// or "*/5 * * * *".
func (m *Manager) StartCleanup(spec string) error {
	if _, err := m.cron.AddFunc(spec, func() { m.Sweep() }); err != nil {
		return fmt.Errorf("invalid cleanup schedule %q: %w", spec, err)
	}
	m.cron.Start()
	return nil
}

// Sweep cleans every registered cache once and returns the number of
// entries removed.
func (m *Manager) Sweep() int {
	total := 0
	for _, c := range m.caches {
		total += c.CleanExpired()
	}
	if total > 0 {
		m.logger.Debug("Cache sweep removed expired entries", "removed", total)
	}
	return total
}

// Stop halts the schedule and waits for a running sweep to finish.
func (m *Manager) Stop() {
	<-m.cron.Stop().Done()
}
