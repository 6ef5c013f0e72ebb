// Package filestore uploads files to the user's Google Drive.
package filestore

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// MaxChunkSize bounds the resumable chunk size. It keeps the value well
// inside int on 32-bit platforms and matches the upload_chunk_size limit.
const MaxChunkSize = 64 << 20

// Client wraps a Drive service bound to one authorized HTTP client.
type Client struct {
	svc       *drive.Service
	chunkSize int
	logger    *slog.Logger
}

// New creates a Client. Content larger than chunkSize is sent as a
// resumable upload in chunkSize pieces. Zero selects the SDK default; values
// above MaxChunkSize are rejected.
func New(
	ctx context.Context,
	httpClient *http.Client,
	logger *slog.Logger,
	chunkSize int64,
	opts ...option.ClientOption,
) (*Client, error) {
	switch {
	case chunkSize <= 0:
		chunkSize = googleapi.DefaultUploadChunkSize
	case chunkSize > MaxChunkSize:
		return nil, fmt.Errorf("filestore: chunk size %d exceeds %d bytes", chunkSize, MaxChunkSize)
	}

	all := append([]option.ClientOption{option.WithHTTPClient(httpClient)}, opts...)

	svc, err := drive.NewService(ctx, all...)
	if err != nil {
		return nil, fmt.Errorf("filestore: creating drive service: %w", err)
	}

	return &Client{svc: svc, chunkSize: int(chunkSize), logger: logger}, nil
}

// Upload creates a file named name in the user's Drive root with the content
// of r and returns the new file's ID.
func (c *Client) Upload(ctx context.Context, name string, r io.Reader) (string, error) {
	f, err := c.svc.Files.Create(&drive.File{Name: name}).
		Media(r, googleapi.ChunkSize(c.chunkSize)).
		Fields("id").
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("filestore: uploading %q: %w", name, err)
	}

	c.logger.Info("uploaded file to drive",
		slog.String("name", name),
		slog.String("file_id", f.Id),
	)

	return f.Id, nil
}
