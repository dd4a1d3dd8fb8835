package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cellpulse/internal/dataprocessing"
	"cellpulse/internal/drive"
	apierrors "cellpulse/internal/errors"
	"cellpulse/internal/services"
)

type mockDataService struct {
	tables  map[string]*services.TableResult
	columns map[string]*services.ColumnsResult
	files   []services.FileEntry
	listErr error

	lastOpts     services.TableOptions
	lastCombine  []string
	lastLabels   []string
	lastResample string
}

func (m *mockDataService) GetTable(ctx context.Context, fileID string, opts services.TableOptions) (*services.TableResult, error) {
	m.lastOpts = opts
	result, ok := m.tables[fileID]
	if !ok {
		return nil, fmt.Errorf("lookup %s: %w", fileID, services.ErrFileNotFound)
	}
	if opts.Resample == "banana" {
		return nil, fmt.Errorf("%w: banana", services.ErrInvalidResampleRule)
	}
	return result, nil
}

func (m *mockDataService) GetColumns(ctx context.Context, fileID string) (*services.ColumnsResult, error) {
	result, ok := m.columns[fileID]
	if !ok {
		return nil, fmt.Errorf("lookup %s: %w", fileID, services.ErrFileNotFound)
	}
	return result, nil
}

func (m *mockDataService) ListFiles(ctx context.Context) ([]services.FileEntry, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.files, nil
}

func (m *mockDataService) Combine(ctx context.Context, fileIDs, labels []string, resample string) (*services.TableResult, error) {
	m.lastCombine = fileIDs
	m.lastLabels = labels
	m.lastResample = resample
	return &services.TableResult{Name: "combined"}, nil
}

func newDataTestServer(t *testing.T, svc DataServiceInterface) *httptest.Server {
	t.Helper()
	logger := slog.Default()
	handler := NewDataHandler(svc, logger, apierrors.NewErrorHandler(logger, false))
	server := httptest.NewServer(handler.Routes())
	t.Cleanup(server.Close)
	return server
}

func defaultMockService() *mockDataService {
	return &mockDataService{
		tables: map[string]*services.TableResult{
			"file-1": {
				FileID:  "file-1",
				Name:    "run_001.csv",
				Columns: []string{"Cell_Voltage_Cell1"},
				Index:   []interface{}{0.0, 1.0},
				Records: []map[string]interface{}{
					{"Cell_Voltage_Cell1": 3.70},
					{"Cell_Voltage_Cell1": 3.71},
				},
				Stats: &dataprocessing.Stats{Shape: [2]int{2, 1}},
			},
		},
		columns: map[string]*services.ColumnsResult{
			"file-1": {
				FileID:      "file-1",
				Columns:     []string{"Cell_Voltage_Cell1"},
				SimpleTypes: map[string]string{"Cell_Voltage_Cell1": "voltage"},
			},
		},
		files: []services.FileEntry{
			{FileInfo: drive.FileInfo{ID: "file-1", Name: "run_001.csv"}, Cached: true},
		},
	}
}

func TestGetTableEndpoint(t *testing.T) {
	server := newDataTestServer(t, defaultMockService())

	resp, err := http.Get(server.URL + "/file-1")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "application/json")

	var result services.TableResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, "run_001.csv", result.Name)
	assert.Len(t, result.Records, 2)
}

func TestGetTableQueryOptions(t *testing.T) {
	svc := defaultMockService()
	server := newDataTestServer(t, svc)

	resp, err := http.Get(server.URL + "/file-1?preprocess=false&resample=1s&columns=Cell_Voltage_Cell1,%20Battery_Current")
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, svc.lastOpts.Raw)
	assert.Equal(t, "1s", svc.lastOpts.Resample)
	assert.Equal(t, []string{"Cell_Voltage_Cell1", "Battery_Current"}, svc.lastOpts.Columns)
}

func TestGetTableInvalidPreprocessParam(t *testing.T) {
	server := newDataTestServer(t, defaultMockService())

	resp, err := http.Get(server.URL + "/file-1?preprocess=maybe")
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetTableNotFoundProblem(t *testing.T) {
	server := newDataTestServer(t, defaultMockService())

	resp, err := http.Get(server.URL + "/ghost")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "application/problem+json")

	var problem map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&problem))
	assert.Equal(t, float64(http.StatusNotFound), problem["status"])
}

func TestGetTableInvalidResampleProblem(t *testing.T) {
	server := newDataTestServer(t, defaultMockService())

	resp, err := http.Get(server.URL + "/file-1?resample=banana")
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetColumnsEndpoint(t *testing.T) {
	server := newDataTestServer(t, defaultMockService())

	resp, err := http.Get(server.URL + "/file-1/columns")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var result services.ColumnsResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, "voltage", result.SimpleTypes["Cell_Voltage_Cell1"])
}

func TestListFilesEndpoint(t *testing.T) {
	server := newDataTestServer(t, defaultMockService())

	resp, err := http.Get(server.URL + "/files")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Files []services.FileEntry `json:"files"`
		Count int                  `json:"count"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, 1, body.Count)
	assert.True(t, body.Files[0].Cached)
}

func TestListFilesEmptyIsOK(t *testing.T) {
	svc := defaultMockService()
	svc.listErr = services.ErrNoFilesFound
	server := newDataTestServer(t, svc)

	resp, err := http.Get(server.URL + "/files")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Files []services.FileEntry `json:"files"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Empty(t, body.Files)
}

func TestCombineEndpoint(t *testing.T) {
	svc := defaultMockService()
	server := newDataTestServer(t, svc)

	payload := `{"file_ids":["file-1","file-2"],"labels":["a","b"],"resample":"1s"}`
	resp, err := http.Post(server.URL+"/combine", "application/json", bytes.NewBufferString(payload))
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{"file-1", "file-2"}, svc.lastCombine)
	assert.Equal(t, []string{"a", "b"}, svc.lastLabels)
	assert.Equal(t, "1s", svc.lastResample)
}

func TestCombineValidation(t *testing.T) {
	server := newDataTestServer(t, defaultMockService())

	// Empty file_ids fails validation
	resp, err := http.Post(server.URL+"/combine", "application/json", bytes.NewBufferString(`{"file_ids":[]}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Malformed JSON is rejected
	resp, err = http.Post(server.URL+"/combine", "application/json", bytes.NewBufferString(`{broken`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
