package cache

import (
	"time"
)

// IndexRecord is one entry of the persistent cache index. The index is the
// single source of truth for validity: a data blob without an index record
// is treated as a miss even when the file exists on disk.
type IndexRecord struct {
	Identifier  string    `json:"identifier"`
	Name        string    `json:"name"`
	CacheKey    string    `json:"cache_key"`
	LastUpdated time.Time `json:"last_updated"`
	SizeBytes   int64     `json:"size_bytes"`
	Rows        int       `json:"rows"`
	Columns     int       `json:"columns"`
}

// Metadata is the per-entry sidecar blob written next to the data blob. It
// carries everything a listing or preview endpoint needs without decoding
// the full table.
type Metadata struct {
	Identifier  string                   `json:"identifier"`
	Name        string                   `json:"name"`
	CachedAt    time.Time                `json:"cached_at"`
	Shape       [2]int                   `json:"shape"`
	ColumnTypes map[string]string        `json:"column_types"`
	MemoryBytes int64                    `json:"memory_bytes"`
	PreviewHead []map[string]interface{} `json:"preview_head"`
	PreviewTail []map[string]interface{} `json:"preview_tail"`
}

// Stats is a point-in-time snapshot of both cache tiers.
type Stats struct {
	MemoryEntries  int      `json:"memory_entries"`
	MemoryCapacity int      `json:"memory_capacity"`
	DiskEntries    int      `json:"disk_entries"`
	ValidEntries   int      `json:"valid_entries"`
	ExpiredEntries int      `json:"expired_entries"`
	TotalSizeBytes int64    `json:"total_size_bytes"`
	MaxAge         string   `json:"max_age"`
	Identifiers    []string `json:"identifiers"`
}
