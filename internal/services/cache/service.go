// Package cache provides the badgerhold-backed snapshot store used to
// cache market data between analysis runs.
package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/aestimo/internal/common"
	"github.com/ternarybob/aestimo/internal/interfaces"
)

// snapshotRecord is one cached payload, stored under kind/key.
type snapshotRecord struct {
	ID       string `badgerhold:"key"`
	Kind     string `badgerholdIndex:"Kind"`
	Key      string
	Payload  []byte
	StoredAt time.Time
}

// Service implements interfaces.SnapshotStore on badgerhold with per-kind
// TTLs. Stale entries are purged on a cron schedule.
type Service struct {
	store  *badgerhold.Store
	ttls   map[string]time.Duration
	cron   *cron.Cron
	logger arbor.ILogger
	now    func() time.Time
}

var _ interfaces.SnapshotStore = (*Service)(nil)

// DefaultTTL applies to kinds with no configured TTL.
const DefaultTTL = time.Hour

// NewService opens the snapshot store at cfg.Path and schedules the stale
// purge per cfg.PurgeSchedule.
func NewService(cfg common.CacheConfig, logger arbor.ILogger) (*Service, error) {
	if err := os.MkdirAll(cfg.Path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	options := badgerhold.DefaultOptions
	options.Dir = cfg.Path
	options.ValueDir = cfg.Path
	options.Logger = nil // Disable default badger logger to use arbor

	store, err := badgerhold.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot store: %w", err)
	}

	s := &Service{
		store: store,
		ttls: map[string]time.Duration{
			"prices":       time.Duration(cfg.PriceHours) * time.Hour,
			"fundamentals": time.Duration(cfg.FundamentalHours) * time.Hour,
			"news":         time.Duration(cfg.NewsHours) * time.Hour,
		},
		logger: logger,
		now:    time.Now,
	}

	if cfg.PurgeSchedule != "" {
		s.cron = cron.New()
		if _, err := s.cron.AddFunc(cfg.PurgeSchedule, func() {
			if removed, err := s.PurgeStale(); err != nil {
				logger.Warn().Err(err).Msg("Snapshot purge failed")
			} else if removed > 0 {
				logger.Info().Int("removed", removed).Msg("Purged stale snapshots")
			}
		}); err != nil {
			store.Close()
			return nil, fmt.Errorf("invalid purge schedule %q: %w", cfg.PurgeSchedule, err)
		}
		s.cron.Start()
	}

	logger.Info().Str("path", cfg.Path).Msg("Snapshot cache initialized")
	return s, nil
}

// ttlFor returns the TTL for a kind, falling back to DefaultTTL.
func (s *Service) ttlFor(kind string) time.Duration {
	if ttl, ok := s.ttls[kind]; ok && ttl > 0 {
		return ttl
	}
	return DefaultTTL
}

// Get loads a cached value into dest. Returns false when the entry is
// missing, stale, or cannot be decoded.
func (s *Service) Get(kind, key string, dest any) bool {
	var record snapshotRecord
	err := s.store.Get(recordID(kind, key), &record)
	if err == badgerhold.ErrNotFound {
		return false
	}
	if err != nil {
		s.logger.Warn().Err(err).Str("kind", kind).Str("key", key).Msg("Snapshot read failed")
		return false
	}

	if s.now().Sub(record.StoredAt) > s.ttlFor(kind) {
		return false
	}

	if err := json.Unmarshal(record.Payload, dest); err != nil {
		s.logger.Warn().Err(err).Str("kind", kind).Str("key", key).Msg("Snapshot decode failed")
		return false
	}
	return true
}

// Put stores a value under kind and key.
func (s *Service) Put(kind, key string, value any) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	record := snapshotRecord{
		ID:       recordID(kind, key),
		Kind:     kind,
		Key:      key,
		Payload:  payload,
		StoredAt: s.now(),
	}

	if err := s.store.Upsert(record.ID, &record); err != nil {
		return fmt.Errorf("failed to store snapshot: %w", err)
	}
	return nil
}

// PurgeStale removes entries older than their kind's TTL. Returns the
// number removed.
func (s *Service) PurgeStale() (int, error) {
	var records []snapshotRecord
	if err := s.store.Find(&records, nil); err != nil {
		return 0, fmt.Errorf("failed to scan snapshots: %w", err)
	}

	removed := 0
	now := s.now()
	for _, record := range records {
		if now.Sub(record.StoredAt) <= s.ttlFor(record.Kind) {
			continue
		}
		if err := s.store.Delete(record.ID, &snapshotRecord{}); err != nil {
			s.logger.Warn().Err(err).Str("id", record.ID).Msg("Failed to delete stale snapshot")
			continue
		}
		removed++
	}

	return removed, nil
}

// Close stops the purge schedule and closes the store.
func (s *Service) Close() error {
	if s.cron != nil {
		s.cron.Stop()
	}
	if s.store != nil {
		return s.store.Close()
	}
	return nil
}

func recordID(kind, key string) string {
	return kind + "/" + key
}
