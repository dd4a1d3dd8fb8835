package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/singleflight"

	"cellpulse/internal/cache"
	"cellpulse/internal/dataprocessing"
	"cellpulse/internal/drive"
)

// RemoteStore is the remote file store the data service reads from.
type RemoteStore interface {
	FetchBytes(ctx context.Context, fileID string) ([]byte, error)
	GetMetadata(ctx context.Context, fileID string) (*drive.FileInfo, error)
	ListDataFiles(ctx context.Context) ([]drive.FileInfo, error)
}

// TableOptions controls how GetTable shapes its result.
type TableOptions struct {
	// Raw skips preprocessing and the cache, returning the parsed file
	// as-is.
	Raw bool
	// Resample is an optional downsampling rule such as "1s" or "5min".
	Resample string
	// Columns restricts the result to the named columns. Time columns
	// are always retained so the result stays plottable.
	Columns []string
}

// TableResult is a fully shaped table response.
type TableResult struct {
	FileID  string                   `json:"file_id"`
	Name    string                   `json:"name"`
	Columns []string                 `json:"columns"`
	Index   []interface{}            `json:"index"`
	Records []map[string]interface{} `json:"records"`
	Stats   *dataprocessing.Stats    `json:"stats"`
	Cached  bool                     `json:"cached"`
}

// ColumnsResult is the column classification response for one file.
type ColumnsResult struct {
	FileID         string                        `json:"file_id"`
	Name           string                        `json:"name"`
	Columns        []string                      `json:"columns"`
	Classification dataprocessing.Classification `json:"classification"`
	SimpleTypes    map[string]string             `json:"simple_types"`
}

// FileEntry is one remote file with its cache status.
type FileEntry struct {
	drive.FileInfo
	Cached bool `json:"cached"`
}

// DataService orchestrates the remote store, the cache and the data
// pipeline.
type DataService struct {
	remote     RemoteStore
	store      *cache.Store
	preloader  *cache.Preloader
	summarizer *dataprocessing.Summarizer
	logger     *slog.Logger
	group      singleflight.Group
}

// NewDataService creates a data service using the default logger.
func NewDataService(remote RemoteStore, store *cache.Store, preloader *cache.Preloader) *DataService {
	return NewDataServiceWithLogger(remote, store, preloader, slog.Default())
}

// NewDataServiceWithLogger creates a data service with a specific logger.
func NewDataServiceWithLogger(remote RemoteStore, store *cache.Store, preloader *cache.Preloader, logger *slog.Logger) *DataService {
	if logger == nil {
		logger = slog.Default()
	}
	return &DataService{
		remote:     remote,
		store:      store,
		preloader:  preloader,
		summarizer: dataprocessing.NewSummarizer(logger),
		logger:     logger.With(slog.String("service", "data")),
	}
}

// GetTable returns the table for a file, serving from the cache when a
// fresh preprocessed copy exists and populating it otherwise.
func (ds *DataService) GetTable(ctx context.Context, fileID string, opts TableOptions) (*TableResult, error) {
	if fileID == "" {
		return nil, fmt.Errorf("%w: file id is required", ErrInvalidInput)
	}

	var (
		table  *dataprocessing.Table
		name   string
		cached bool
		err    error
	)

	if opts.Raw {
		table, name, err = ds.fetchAndParse(ctx, fileID)
		if err != nil {
			return nil, err
		}
	} else {
		table, name, cached, err = ds.processedTable(ctx, fileID)
		if err != nil {
			return nil, err
		}
	}

	if opts.Resample != "" {
		table, err = dataprocessing.Resample(table, opts.Resample)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrInvalidResampleRule, opts.Resample)
		}
	}

	if len(opts.Columns) > 0 {
		table = table.Select(withTimeColumns(table, opts.Columns))
	}

	return ds.shapeResult(fileID, name, table, cached), nil
}

// GetColumns returns the column classification for a file without shipping
// the data itself. Classification runs on the raw source columns, so
// non-numeric columns that preprocessing drops still show up in the
// listing.
func (ds *DataService) GetColumns(ctx context.Context, fileID string) (*ColumnsResult, error) {
	if fileID == "" {
		return nil, fmt.Errorf("%w: file id is required", ErrInvalidInput)
	}

	table, name, err := ds.fetchAndParse(ctx, fileID)
	if err != nil {
		return nil, err
	}

	classification := dataprocessing.ClassifyTable(table)
	return &ColumnsResult{
		FileID:         fileID,
		Name:           name,
		Columns:        table.ColumnNames(),
		Classification: classification,
		SimpleTypes:    classification.SimpleTypes(),
	}, nil
}

// ListFiles lists the remote data folder, annotating each file with whether
// a fresh cached copy exists.
func (ds *DataService) ListFiles(ctx context.Context) ([]FileEntry, error) {
	files, err := ds.remote.ListDataFiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list remote files: %w", err)
	}
	if len(files) == 0 {
		return nil, ErrNoFilesFound
	}

	entries := make([]FileEntry, 0, len(files))
	for _, f := range files {
		entries = append(entries, FileEntry{
			FileInfo: f,
			Cached:   ds.store.IsValid(f.ID),
		})
	}
	return entries, nil
}

// Combine overlays multiple files into a single labelled table. Each source
// is resampled with the shared rule before concatenation so the datasets
// align on comparable time steps.
func (ds *DataService) Combine(ctx context.Context, fileIDs, labels []string, resample string) (*TableResult, error) {
	if len(fileIDs) == 0 {
		return nil, ErrNoDatasets
	}

	tables := make([]*dataprocessing.Table, 0, len(fileIDs))
	resolved := make([]string, 0, len(fileIDs))
	for i, fileID := range fileIDs {
		table, name, _, err := ds.processedTable(ctx, fileID)
		if err != nil {
			return nil, fmt.Errorf("failed to load dataset %s: %w", fileID, err)
		}
		if resample != "" {
			table, err = dataprocessing.Resample(table, resample)
			if err != nil {
				return nil, fmt.Errorf("%w: %s", ErrInvalidResampleRule, resample)
			}
		}
		tables = append(tables, table)

		label := name
		if i < len(labels) && labels[i] != "" {
			label = labels[i]
		}
		resolved = append(resolved, label)
	}

	combined := dataprocessing.Combine(tables, resolved)
	ds.logger.InfoContext(ctx, "combined datasets",
		slog.Int("datasets", len(tables)),
		slog.Int("rows", combined.Rows()))

	return ds.shapeResult("", "combined", combined, false), nil
}

// CacheStats returns a snapshot of the cache tiers.
func (ds *DataService) CacheStats(ctx context.Context) cache.Stats {
	return ds.store.Stats()
}

// CachedFiles returns the metadata of every fresh cached entry.
func (ds *DataService) CachedFiles(ctx context.Context) []cache.Metadata {
	return ds.store.CachedFiles()
}

// ClearExpired drops expired cache entries and returns how many were
// removed.
func (ds *DataService) ClearExpired(ctx context.Context) (int, error) {
	return ds.store.SweepExpired(ctx)
}

// TriggerPreload lists the remote folder and warms the cache with up to
// limit files, returning how many were newly cached.
func (ds *DataService) TriggerPreload(ctx context.Context, limit int) (int, error) {
	files, err := ds.remote.ListDataFiles(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list remote files for preload: %w", err)
	}

	candidates := make([]cache.Candidate, 0, len(files))
	for _, f := range files {
		candidates = append(candidates, cache.Candidate{ID: f.ID, Name: f.Name})
	}

	return ds.preloader.Preload(ctx, candidates, limit), nil
}

type processedEntry struct {
	table *dataprocessing.Table
	name  string
}

// processedTable returns the preprocessed table for a file, from the cache
// when fresh, otherwise via the full fetch/parse/preprocess pipeline
// followed by a cache put. Concurrent misses for the same file share a
// single fetch. A failed put degrades to serving uncached.
func (ds *DataService) processedTable(ctx context.Context, fileID string) (*dataprocessing.Table, string, bool, error) {
	if table, ok := ds.store.Get(ctx, fileID); ok {
		return table, ds.cachedName(fileID), true, nil
	}

	result, err, _ := ds.group.Do(fileID, func() (interface{}, error) {
		raw, name, err := ds.fetchAndParse(ctx, fileID)
		if err != nil {
			return nil, err
		}

		table := dataprocessing.Preprocess(raw)
		if table.IsEmpty() {
			return nil, fmt.Errorf("%w: %s", ErrEmptyTable, fileID)
		}

		if err := ds.store.Put(ctx, fileID, name, table); err != nil {
			ds.logger.WarnContext(ctx, "serving uncached after failed cache put",
				slog.String("file_id", fileID),
				slog.String("error", err.Error()))
		}

		return processedEntry{table: table, name: name}, nil
	})
	if err != nil {
		return nil, "", false, err
	}

	entry := result.(processedEntry)
	return entry.table.Clone(), entry.name, false, nil
}

// fetchAndParse pulls a file from the remote store and parses it into a raw
// table.
func (ds *DataService) fetchAndParse(ctx context.Context, fileID string) (*dataprocessing.Table, string, error) {
	name := ds.resolveName(ctx, fileID)

	content, err := ds.remote.FetchBytes(ctx, fileID)
	if err != nil {
		if errors.Is(err, drive.ErrFileNotFound) {
			return nil, "", fmt.Errorf("%w: %s", ErrFileNotFound, fileID)
		}
		return nil, "", fmt.Errorf("failed to fetch file %s: %w", fileID, err)
	}

	table, err := dataprocessing.ParseContent(name, content)
	if err != nil {
		return nil, "", fmt.Errorf("failed to parse file %s: %w", fileID, err)
	}

	return table, name, nil
}

// resolveName looks up the remote file name, falling back to the id when
// metadata is unavailable.
func (ds *DataService) resolveName(ctx context.Context, fileID string) string {
	info, err := ds.remote.GetMetadata(ctx, fileID)
	if err != nil || info.Name == "" {
		return fileID
	}
	return info.Name
}

// cachedName finds the stored file name for a cached identifier.
func (ds *DataService) cachedName(fileID string) string {
	for _, meta := range ds.store.CachedFiles() {
		if meta.Identifier == fileID {
			return meta.Name
		}
	}
	return fileID
}

// shapeResult converts a table into the JSON response shape, cleaning
// non-finite floats on the way out.
func (ds *DataService) shapeResult(fileID, name string, table *dataprocessing.Table, cached bool) *TableResult {
	records := make([]map[string]interface{}, 0, table.Rows())
	for _, record := range table.Records() {
		records = append(records, dataprocessing.CleanForJSON(record).(map[string]interface{}))
	}

	return &TableResult{
		FileID:  fileID,
		Name:    name,
		Columns: table.ColumnNames(),
		Index:   cleanIndex(table.IndexValues()),
		Records: records,
		Stats:   ds.summarizer.Summarize(table),
		Cached:  cached,
	}
}

func cleanIndex(values []interface{}) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = dataprocessing.CleanForJSON(v)
	}
	return out
}

// withTimeColumns extends a column selection with the table's time columns
// so downsampled or filtered views keep their x axis.
func withTimeColumns(table *dataprocessing.Table, columns []string) []string {
	classification := dataprocessing.Classify(table.ColumnNames())
	selected := append([]string(nil), columns...)
	seen := make(map[string]bool, len(selected))
	for _, name := range selected {
		seen[name] = true
	}
	for _, name := range classification.Time {
		if !seen[name] {
			selected = append(selected, name)
		}
	}
	return selected
}
