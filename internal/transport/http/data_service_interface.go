package http

import (
	"context"

	"cellpulse/internal/cache"
	"cellpulse/internal/services"
)

// DataServiceInterface defines the interface for data operations
type DataServiceInterface interface {
	GetTable(ctx context.Context, fileID string, opts services.TableOptions) (*services.TableResult, error)
	GetColumns(ctx context.Context, fileID string) (*services.ColumnsResult, error)
	ListFiles(ctx context.Context) ([]services.FileEntry, error)
	Combine(ctx context.Context, fileIDs, labels []string, resample string) (*services.TableResult, error)
}

// CacheServiceInterface defines the interface for cache administration
type CacheServiceInterface interface {
	CacheStats(ctx context.Context) cache.Stats
	CachedFiles(ctx context.Context) []cache.Metadata
	ClearExpired(ctx context.Context) (int, error)
	TriggerPreload(ctx context.Context, limit int) (int, error)
}
