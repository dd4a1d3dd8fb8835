// Package drive wraps the Google Drive v3 API for fetching raw test files
// and listing the configured data folder.
package drive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"time"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"cellpulse/internal/config"
)

// ErrFileNotFound is returned when the remote store has no file with the
// requested identifier.
var ErrFileNotFound = errors.New("file not found in remote store")

// FileInfo describes one remote file.
type FileInfo struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Size         int64     `json:"size"`
	MimeType     string    `json:"mime_type"`
	ModifiedTime time.Time `json:"modified_time"`
}

// Client is a thin Google Drive wrapper scoped to a single root folder.
type Client struct {
	service      *drive.Service
	rootFolderID string
	timeout      time.Duration
	logger       *slog.Logger
}

// NewClient builds a read-only Drive client from a service account
// credentials file.
func NewClient(ctx context.Context, cfg config.DriveConfig, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}

	service, err := drive.NewService(ctx,
		option.WithCredentialsFile(cfg.CredentialsFile),
		option.WithScopes(drive.DriveReadonlyScope),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create drive service: %w", err)
	}

	return &Client{
		service:      service,
		rootFolderID: cfg.RootFolderID,
		timeout:      cfg.RequestTimeout,
		logger:       logger.With(slog.String("component", "drive")),
	}, nil
}

// FetchBytes downloads the full content of a file.
func (c *Client) FetchBytes(ctx context.Context, fileID string) ([]byte, error) {
	ctx, cancel := c.requestContext(ctx)
	defer cancel()

	resp, err := c.service.Files.Get(fileID).Context(ctx).Download()
	if err != nil {
		return nil, c.wrapAPIError("download", fileID, err)
	}
	defer resp.Body.Close()

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read file content for %s: %w", fileID, err)
	}

	c.logger.DebugContext(ctx, "fetched remote file",
		slog.String("file_id", fileID),
		slog.Int("bytes", len(content)))
	return content, nil
}

// GetMetadata fetches name, size and modification time for a file.
func (c *Client) GetMetadata(ctx context.Context, fileID string) (*FileInfo, error) {
	ctx, cancel := c.requestContext(ctx)
	defer cancel()

	f, err := c.service.Files.Get(fileID).
		Fields("id, name, size, mimeType, modifiedTime").
		Context(ctx).Do()
	if err != nil {
		return nil, c.wrapAPIError("metadata", fileID, err)
	}

	return toFileInfo(f), nil
}

// ListDataFiles lists the CSV and XLSX files in the configured root folder,
// newest first. Pagination is followed to the end.
func (c *Client) ListDataFiles(ctx context.Context) ([]FileInfo, error) {
	ctx, cancel := c.requestContext(ctx)
	defer cancel()

	query := fmt.Sprintf("'%s' in parents and trashed = false", c.rootFolderID)
	var files []FileInfo
	pageToken := ""

	for {
		call := c.service.Files.List().
			Q(query).
			Fields("nextPageToken, files(id, name, size, mimeType, modifiedTime)").
			PageSize(100).
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		page, err := call.Do()
		if err != nil {
			return nil, c.wrapAPIError("list", c.rootFolderID, err)
		}

		for _, f := range page.Files {
			if !isDataFile(f.Name) {
				continue
			}
			files = append(files, *toFileInfo(f))
		}

		if page.NextPageToken == "" {
			break
		}
		pageToken = page.NextPageToken
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].ModifiedTime.After(files[j].ModifiedTime)
	})

	c.logger.DebugContext(ctx, "listed remote folder",
		slog.String("folder_id", c.rootFolderID),
		slog.Int("files", len(files)))
	return files, nil
}

func (c *Client) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

func (c *Client) wrapAPIError(op, id string, err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == 404 {
		return fmt.Errorf("%s %s: %w", op, id, ErrFileNotFound)
	}
	return fmt.Errorf("drive %s failed for %s: %w", op, id, err)
}

// isDataFile reports whether a remote file name looks like a parseable
// test file.
func isDataFile(name string) bool {
	lower := strings.ToLower(name)
	return strings.HasSuffix(lower, ".csv") || strings.HasSuffix(lower, ".xlsx")
}

func toFileInfo(f *drive.File) *FileInfo {
	info := &FileInfo{
		ID:       f.Id,
		Name:     f.Name,
		Size:     f.Size,
		MimeType: f.MimeType,
	}
	if f.ModifiedTime != "" {
		if ts, err := time.Parse(time.RFC3339, f.ModifiedTime); err == nil {
			info.ModifiedTime = ts
		}
	}
	return info
}
