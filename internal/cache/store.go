package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"cellpulse/internal/config"
	"cellpulse/internal/dataprocessing"
	"cellpulse/internal/infrastructure"
)

const previewRows = 3

// Store is the tiered table cache: a bounded in-memory tier in front of a
// disk tier made of gob data blobs, JSON metadata blobs and a single JSON
// index file. Validity is time-based only; an entry older than maxAge is
// expired regardless of whether the remote file changed.
type Store struct {
	paths   *config.Paths
	maxAge  time.Duration
	memory  *memoryTier
	logger  *slog.Logger
	metrics *infrastructure.CacheMetrics
	now     func() time.Time

	mu    sync.Mutex
	index map[string]IndexRecord
}

// NewStore opens the cache at cfg.Dir, creating the directory layout and
// loading the persisted index. A corrupt index file is discarded and the
// cache starts empty; existing blobs become unreachable until re-cached.
func NewStore(cfg config.CacheConfig, logger *slog.Logger, metrics *infrastructure.CacheMetrics) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	paths := config.NewPaths(cfg.Dir)
	if err := paths.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to prepare cache directories: %w", err)
	}

	s := &Store{
		paths:   paths,
		maxAge:  cfg.MaxAge,
		memory:  newMemoryTier(cfg.MemoryEntries),
		logger:  logger.With(slog.String("component", "cache")),
		metrics: metrics,
		now:     time.Now,
		index:   make(map[string]IndexRecord),
	}

	if err := s.loadIndex(); err != nil {
		s.logger.Warn("cache index unreadable, starting empty",
			slog.String("path", paths.IndexFile),
			slog.String("error", err.Error()))
		s.index = make(map[string]IndexRecord)
	}

	return s, nil
}

// CacheKey derives the stable blob name for a file identifier.
func CacheKey(identifier string) string {
	sum := sha256.Sum256([]byte(identifier))
	return hex.EncodeToString(sum[:])
}

// IsValid reports whether a fresh cached entry exists for the identifier.
func (s *Store) IsValid(identifier string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.index[identifier]
	return ok && s.fresh(record)
}

// Get returns the cached table for the identifier, promoting disk hits into
// the memory tier. Memory hits skip the validity check entirely: the tier
// is cleared at process restart and assumed fresh within a run. Expired
// entries, dangling index records and corrupt blobs all report a miss; the
// latter two are dropped from the index so the next Put starts clean.
func (s *Store) Get(ctx context.Context, identifier string) (*dataprocessing.Table, bool) {
	if t, ok := s.memory.get(CacheKey(identifier)); ok {
		s.hit(ctx, identifier, "memory")
		return t.Clone(), true
	}

	s.mu.Lock()
	record, ok := s.index[identifier]
	valid := ok && s.fresh(record)
	s.mu.Unlock()

	if !valid {
		s.miss(ctx, identifier)
		return nil, false
	}

	data, err := os.ReadFile(s.paths.DataBlobPath(record.CacheKey))
	if err != nil {
		s.logger.WarnContext(ctx, "cache blob missing, dropping index entry",
			slog.String("identifier", identifier),
			slog.String("error", err.Error()))
		s.drop(identifier, record)
		s.miss(ctx, identifier)
		return nil, false
	}

	t, err := decodeTable(data)
	if err != nil {
		s.logger.WarnContext(ctx, "cache blob corrupt, dropping index entry",
			slog.String("identifier", identifier),
			slog.String("error", err.Error()))
		s.drop(identifier, record)
		s.miss(ctx, identifier)
		return nil, false
	}

	if _, evicted := s.memory.put(record.CacheKey, t); evicted && s.metrics != nil {
		s.metrics.CacheEvictionsTotal.Add(ctx, 1)
	}

	s.hit(ctx, identifier, "disk")
	return t.Clone(), true
}

// Put caches a table under the identifier, writing the data blob, the
// metadata blob and the updated index, then installing the table in the
// memory tier. Concurrent puts for the same identifier are last-writer-wins.
func (s *Store) Put(ctx context.Context, identifier, name string, t *dataprocessing.Table) error {
	key := CacheKey(identifier)
	cachedAt := s.now()

	data, err := encodeTable(t)
	if err != nil {
		s.putFailed(ctx, identifier, err)
		return err
	}

	if err := os.WriteFile(s.paths.DataBlobPath(key), data, 0644); err != nil {
		s.putFailed(ctx, identifier, err)
		return fmt.Errorf("failed to write cache blob: %w", err)
	}

	meta := buildMetadata(identifier, name, cachedAt, t)
	metaData, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		s.putFailed(ctx, identifier, err)
		return fmt.Errorf("failed to encode cache metadata: %w", err)
	}
	if err := os.WriteFile(s.paths.MetadataBlobPath(key), metaData, 0644); err != nil {
		s.putFailed(ctx, identifier, err)
		return fmt.Errorf("failed to write cache metadata: %w", err)
	}

	s.mu.Lock()
	s.index[identifier] = IndexRecord{
		Identifier:  identifier,
		Name:        name,
		CacheKey:    key,
		LastUpdated: cachedAt,
		SizeBytes:   int64(len(data)),
		Rows:        t.Rows(),
		Columns:     t.NumColumns(),
	}
	err = s.saveIndexLocked()
	s.mu.Unlock()
	if err != nil {
		s.putFailed(ctx, identifier, err)
		return err
	}

	if _, evicted := s.memory.put(key, t.Clone()); evicted && s.metrics != nil {
		s.metrics.CacheEvictionsTotal.Add(ctx, 1)
	}

	if s.metrics != nil {
		s.metrics.CachePutsTotal.Add(ctx, 1)
	}
	s.logger.InfoContext(ctx, "cached table",
		slog.String("identifier", identifier),
		slog.String("name", name),
		slog.Int("rows", t.Rows()),
		slog.Int("columns", t.NumColumns()),
		slog.Int("size_bytes", len(data)))

	return nil
}

// Remove deletes the entry for the identifier from every tier. Removing an
// unknown identifier is a no-op.
func (s *Store) Remove(identifier string) error {
	s.mu.Lock()
	record, ok := s.index[identifier]
	if !ok {
		s.mu.Unlock()
		return nil
	}
	delete(s.index, identifier)
	err := s.saveIndexLocked()
	s.mu.Unlock()

	s.memory.remove(record.CacheKey)
	removeBlobFiles(s.paths, record.CacheKey)
	return err
}

// SweepExpired removes every expired entry and returns how many were
// dropped.
func (s *Store) SweepExpired(ctx context.Context) (int, error) {
	s.mu.Lock()
	var expired []IndexRecord
	for identifier, record := range s.index {
		if !s.fresh(record) {
			expired = append(expired, record)
			delete(s.index, identifier)
		}
	}
	var err error
	if len(expired) > 0 {
		err = s.saveIndexLocked()
	}
	s.mu.Unlock()

	for _, record := range expired {
		s.memory.remove(record.CacheKey)
		removeBlobFiles(s.paths, record.CacheKey)
	}

	if len(expired) > 0 {
		s.logger.InfoContext(ctx, "swept expired cache entries",
			slog.Int("removed", len(expired)))
	}
	return len(expired), err
}

// Stats returns a snapshot of both tiers.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := Stats{
		MemoryEntries:  s.memory.len(),
		MemoryCapacity: s.memory.capacity,
		DiskEntries:    len(s.index),
		MaxAge:         s.maxAge.String(),
	}
	for identifier, record := range s.index {
		stats.TotalSizeBytes += record.SizeBytes
		stats.Identifiers = append(stats.Identifiers, identifier)
		if s.fresh(record) {
			stats.ValidEntries++
		} else {
			stats.ExpiredEntries++
		}
	}
	sort.Strings(stats.Identifiers)
	return stats
}

// CachedFiles returns the metadata blobs of every valid entry, sorted by
// name. An unreadable metadata blob degrades to a record synthesized from
// the index rather than failing the whole listing.
func (s *Store) CachedFiles() []Metadata {
	s.mu.Lock()
	var records []IndexRecord
	for _, record := range s.index {
		if s.fresh(record) {
			records = append(records, record)
		}
	}
	s.mu.Unlock()

	files := make([]Metadata, 0, len(records))
	for _, record := range records {
		data, err := os.ReadFile(s.paths.MetadataBlobPath(record.CacheKey))
		if err == nil {
			var meta Metadata
			if err := json.Unmarshal(data, &meta); err == nil {
				files = append(files, meta)
				continue
			}
		}
		files = append(files, Metadata{
			Identifier: record.Identifier,
			Name:       record.Name,
			CachedAt:   record.LastUpdated,
			Shape:      [2]int{record.Rows, record.Columns},
		})
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files
}

// fresh reports record freshness against the store clock. Caller holds mu.
func (s *Store) fresh(record IndexRecord) bool {
	return s.now().Sub(record.LastUpdated) < s.maxAge
}

// drop removes a broken entry from the index and memory tier.
func (s *Store) drop(identifier string, record IndexRecord) {
	s.mu.Lock()
	delete(s.index, identifier)
	if err := s.saveIndexLocked(); err != nil {
		s.logger.Warn("failed to persist index after drop",
			slog.String("error", err.Error()))
	}
	s.mu.Unlock()
	s.memory.remove(record.CacheKey)
}

func (s *Store) hit(ctx context.Context, identifier, tier string) {
	if s.metrics != nil {
		s.metrics.CacheHitsTotal.Add(ctx, 1,
			metric.WithAttributes(attribute.String("tier", tier)))
	}
	s.logger.DebugContext(ctx, "cache hit",
		slog.String("identifier", identifier),
		slog.String("tier", tier))
}

func (s *Store) miss(ctx context.Context, identifier string) {
	if s.metrics != nil {
		s.metrics.CacheMissesTotal.Add(ctx, 1)
	}
	s.logger.DebugContext(ctx, "cache miss",
		slog.String("identifier", identifier))
}

func (s *Store) putFailed(ctx context.Context, identifier string, err error) {
	if s.metrics != nil {
		s.metrics.CachePutFailures.Add(ctx, 1)
	}
	s.logger.ErrorContext(ctx, "cache put failed",
		slog.String("identifier", identifier),
		slog.String("error", err.Error()))
}

// loadIndex reads the index file. A missing file is an empty cache.
func (s *Store) loadIndex() error {
	data, err := os.ReadFile(s.paths.IndexFile)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(data, &s.index)
}

// saveIndexLocked rewrites the whole index file. Caller holds mu.
func (s *Store) saveIndexLocked() error {
	data, err := json.MarshalIndent(s.index, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode cache index: %w", err)
	}
	if err := os.WriteFile(s.paths.IndexFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write cache index: %w", err)
	}
	return nil
}

// buildMetadata assembles the sidecar blob for a cached table.
func buildMetadata(identifier, name string, cachedAt time.Time, t *dataprocessing.Table) Metadata {
	head := make([]map[string]interface{}, 0, previewRows)
	for _, record := range t.Head(previewRows) {
		head = append(head, dataprocessing.CleanForJSON(record).(map[string]interface{}))
	}
	tail := make([]map[string]interface{}, 0, previewRows)
	for _, record := range t.Tail(previewRows) {
		tail = append(tail, dataprocessing.CleanForJSON(record).(map[string]interface{}))
	}

	classification := dataprocessing.Classify(t.ColumnNames())
	return Metadata{
		Identifier:  identifier,
		Name:        name,
		CachedAt:    cachedAt,
		Shape:       [2]int{t.Rows(), t.NumColumns()},
		ColumnTypes: classification.SimpleTypes(),
		MemoryBytes: t.MemoryEstimate(),
		PreviewHead: head,
		PreviewTail: tail,
	}
}

func removeBlobFiles(paths *config.Paths, cacheKey string) {
	os.Remove(paths.DataBlobPath(cacheKey))
	os.Remove(paths.MetadataBlobPath(cacheKey))
}
