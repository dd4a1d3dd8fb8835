package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cellpulse/internal/cache"
	"cellpulse/internal/config"
	"cellpulse/internal/drive"
)

type fakeRemote struct {
	files      []drive.FileInfo
	content    map[string][]byte
	fetchCalls int
	listErr    error
	fetchErr   error
}

func (f *fakeRemote) FetchBytes(ctx context.Context, fileID string) ([]byte, error) {
	f.fetchCalls++
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	content, ok := f.content[fileID]
	if !ok {
		return nil, fmt.Errorf("fetch %s: %w", fileID, drive.ErrFileNotFound)
	}
	return content, nil
}

func (f *fakeRemote) GetMetadata(ctx context.Context, fileID string) (*drive.FileInfo, error) {
	for _, info := range f.files {
		if info.ID == fileID {
			return &info, nil
		}
	}
	return nil, fmt.Errorf("metadata %s: %w", fileID, drive.ErrFileNotFound)
}

func (f *fakeRemote) ListDataFiles(ctx context.Context) ([]drive.FileInfo, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.files, nil
}

var testCSV = []byte("Time,Cell_Voltage_Cell1,Battery_Current,Notes\n" +
	"0,3.70,1.0,start\n" +
	"1,3.71,1.1,\n" +
	"2,3.72,1.2,end\n")

func newTestService(t *testing.T, remote *fakeRemote) *DataService {
	t.Helper()
	store, err := cache.NewStore(config.CacheConfig{
		Dir:           t.TempDir(),
		MaxAge:        24 * time.Hour,
		MemoryEntries: 5,
	}, nil, nil)
	require.NoError(t, err)

	preloader := cache.NewPreloader(store, remote.FetchBytes, 0, nil, nil)
	return NewDataService(remote, store, preloader)
}

func defaultRemote() *fakeRemote {
	return &fakeRemote{
		files: []drive.FileInfo{
			{ID: "file-1", Name: "run_001.csv", Size: int64(len(testCSV))},
			{ID: "file-2", Name: "run_002.csv", Size: int64(len(testCSV))},
		},
		content: map[string][]byte{
			"file-1": testCSV,
			"file-2": testCSV,
		},
	}
}

func TestGetTablePipelineAndCaching(t *testing.T) {
	remote := defaultRemote()
	svc := newTestService(t, remote)
	ctx := context.Background()

	result, err := svc.GetTable(ctx, "file-1", TableOptions{})
	require.NoError(t, err)

	assert.Equal(t, "file-1", result.FileID)
	assert.Equal(t, "run_001.csv", result.Name)
	assert.False(t, result.Cached)

	// Preprocessing promoted Time to the index and dropped the string
	// column
	assert.Equal(t, []string{"Cell_Voltage_Cell1", "Battery_Current"}, result.Columns)
	assert.Equal(t, []interface{}{0.0, 1.0, 2.0}, result.Index)
	require.Len(t, result.Records, 3)
	assert.Equal(t, 3.70, result.Records[0]["Cell_Voltage_Cell1"])

	require.NotNil(t, result.Stats)
	assert.Equal(t, [2]int{3, 2}, result.Stats.Shape)

	// Second read is served from the cache without a fetch
	fetchesBefore := remote.fetchCalls
	second, err := svc.GetTable(ctx, "file-1", TableOptions{})
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, fetchesBefore, remote.fetchCalls)
	assert.Equal(t, "run_001.csv", second.Name)
}

func TestGetTableRawBypassesCache(t *testing.T) {
	remote := defaultRemote()
	svc := newTestService(t, remote)
	ctx := context.Background()

	result, err := svc.GetTable(ctx, "file-1", TableOptions{Raw: true})
	require.NoError(t, err)

	// Raw keeps the string column and the unpromoted time column
	assert.Equal(t, []string{"Time", "Cell_Voltage_Cell1", "Battery_Current", "Notes"}, result.Columns)
	assert.False(t, result.Cached)

	// Raw reads never populate the cache
	_, err = svc.GetTable(ctx, "file-1", TableOptions{Raw: true})
	require.NoError(t, err)
	assert.Equal(t, 2, remote.fetchCalls)
}

func TestGetTableResample(t *testing.T) {
	remote := &fakeRemote{
		files: []drive.FileInfo{{ID: "file-1", Name: "run_001.csv"}},
		content: map[string][]byte{
			"file-1": []byte("Time,V\n0.1,1\n0.4,3\n1.2,5\n"),
		},
	}
	svc := newTestService(t, remote)

	result, err := svc.GetTable(context.Background(), "file-1", TableOptions{Resample: "1s"})
	require.NoError(t, err)

	// 0.1 and 0.4 round to the same index and are averaged
	assert.Equal(t, []interface{}{0.0, 1.0}, result.Index)
	assert.Equal(t, 2.0, result.Records[0]["V"])
}

func TestGetTableInvalidResampleRule(t *testing.T) {
	svc := newTestService(t, defaultRemote())

	_, err := svc.GetTable(context.Background(), "file-1", TableOptions{Resample: "banana"})
	assert.ErrorIs(t, err, ErrInvalidResampleRule)
}

func TestGetTableColumnSelectionKeepsTime(t *testing.T) {
	remote := &fakeRemote{
		files: []drive.FileInfo{{ID: "file-1", Name: "run_001.csv"}},
		content: map[string][]byte{
			// No index promotion candidate named exactly Time first:
			// use raw mode to exercise selection over explicit columns
			"file-1": testCSV,
		},
	}
	svc := newTestService(t, remote)

	result, err := svc.GetTable(context.Background(), "file-1", TableOptions{
		Raw:     true,
		Columns: []string{"Cell_Voltage_Cell1"},
	})
	require.NoError(t, err)

	// The time column rides along with the explicit selection
	assert.ElementsMatch(t, []string{"Cell_Voltage_Cell1", "Time"}, result.Columns)
}

func TestGetTableNotFound(t *testing.T) {
	svc := newTestService(t, defaultRemote())

	_, err := svc.GetTable(context.Background(), "missing", TableOptions{})
	assert.ErrorIs(t, err, ErrFileNotFound)
}

func TestGetTableEmptyID(t *testing.T) {
	svc := newTestService(t, defaultRemote())

	_, err := svc.GetTable(context.Background(), "", TableOptions{})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestGetColumns(t *testing.T) {
	svc := newTestService(t, defaultRemote())

	result, err := svc.GetColumns(context.Background(), "file-1")
	require.NoError(t, err)

	assert.Equal(t, "file-1", result.FileID)
	assert.Contains(t, result.Classification.CellVoltage, "Cell_Voltage_Cell1")
	assert.Contains(t, result.Classification.Current, "Battery_Current")
	assert.Equal(t, "voltage", result.SimpleTypes["Cell_Voltage_Cell1"])
}

func TestGetColumnsListsRawColumns(t *testing.T) {
	svc := newTestService(t, defaultRemote())

	result, err := svc.GetColumns(context.Background(), "file-1")
	require.NoError(t, err)

	// The non-numeric Notes column is dropped by preprocessing but still
	// belongs in the column listing
	assert.Contains(t, result.Columns, "Notes")
	assert.Contains(t, result.Classification.Other, "Notes")
	assert.Contains(t, result.Classification.Time, "Time")
}

func TestListFilesAnnotatesCacheStatus(t *testing.T) {
	svc := newTestService(t, defaultRemote())
	ctx := context.Background()

	// Warm file-1 only
	_, err := svc.GetTable(ctx, "file-1", TableOptions{})
	require.NoError(t, err)

	entries, err := svc.ListFiles(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	byID := map[string]bool{}
	for _, e := range entries {
		byID[e.ID] = e.Cached
	}
	assert.True(t, byID["file-1"])
	assert.False(t, byID["file-2"])
}

func TestListFilesEmpty(t *testing.T) {
	svc := newTestService(t, &fakeRemote{})

	_, err := svc.ListFiles(context.Background())
	assert.ErrorIs(t, err, ErrNoFilesFound)
}

func TestCombine(t *testing.T) {
	svc := newTestService(t, defaultRemote())

	result, err := svc.Combine(context.Background(), []string{"file-1", "file-2"}, []string{"baseline", ""}, "")
	require.NoError(t, err)

	assert.Equal(t, 6, result.Stats.Shape[0])
	assert.Contains(t, result.Columns, "Dataset")
	assert.Contains(t, result.Columns, "Relative_Time")
	assert.Contains(t, result.Columns, "Absolute_Time")

	// Explicit label for the first dataset, file name for the second
	labels := map[string]bool{}
	for _, record := range result.Records {
		labels[record["Dataset"].(string)] = true
	}
	assert.True(t, labels["baseline"])
	assert.True(t, labels["run_002.csv"])
}

func TestCombineNoDatasets(t *testing.T) {
	svc := newTestService(t, defaultRemote())

	_, err := svc.Combine(context.Background(), nil, nil, "")
	assert.ErrorIs(t, err, ErrNoDatasets)
}

func TestCombineMissingDataset(t *testing.T) {
	svc := newTestService(t, defaultRemote())

	_, err := svc.Combine(context.Background(), []string{"file-1", "ghost"}, nil, "")
	assert.ErrorIs(t, err, ErrFileNotFound)
}

func TestCacheStatsAndClearExpired(t *testing.T) {
	svc := newTestService(t, defaultRemote())
	ctx := context.Background()

	_, err := svc.GetTable(ctx, "file-1", TableOptions{})
	require.NoError(t, err)

	stats := svc.CacheStats(ctx)
	assert.Equal(t, 1, stats.DiskEntries)
	assert.Equal(t, 1, stats.ValidEntries)

	removed, err := svc.ClearExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, removed)
}

func TestTriggerPreload(t *testing.T) {
	remote := defaultRemote()
	svc := newTestService(t, remote)

	warmed, err := svc.TriggerPreload(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 2, warmed)

	files := svc.CachedFiles(context.Background())
	assert.Len(t, files, 2)
}

func TestTriggerPreloadListFailure(t *testing.T) {
	remote := defaultRemote()
	remote.listErr = errors.New("remote unavailable")
	svc := newTestService(t, remote)

	_, err := svc.TriggerPreload(context.Background(), 10)
	assert.Error(t, err)
}
