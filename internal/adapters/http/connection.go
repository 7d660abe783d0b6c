// Package http provides the HTTP implementation of the shard connection port.
package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/bft-labs/shardspool/internal/domain"
	"github.com/bft-labs/shardspool/internal/ports"
	"github.com/bft-labs/shardspool/pkg/log"
)

const (
	batchEndpoint = "/v1/insert/batch"
	fileEndpoint  = "/v1/insert/file"
)

// Client abstracts HTTP request execution for testing and custom transports.
// The standard *http.Client satisfies this interface.
type Client interface {
	// Do sends an HTTP request and returns an HTTP response.
	Do(req *http.Request) (*http.Response, error)
}

// Provider builds HTTP connections from destination identities. The
// destination is the name of its spool directory, by convention the
// host:port of the remote shard endpoint.
type Provider struct {
	client  Client
	scheme  string
	authKey string
	logger  log.Logger
}

// NewProvider creates a connection provider.
func NewProvider(client Client, scheme, authKey string, logger log.Logger) *Provider {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &Provider{client: client, scheme: scheme, authKey: authKey, logger: logger}
}

// Connection resolves a destination to an HTTP connection.
func (p *Provider) Connection(destination string) (ports.Connection, error) {
	if destination == "" || strings.ContainsAny(destination, "/\\") {
		return nil, fmt.Errorf("invalid destination %q", destination)
	}
	return &Connection{
		client:  p.client,
		baseURL: p.scheme + "://" + destination,
		authKey: p.authKey,
		logger:  p.logger,
	}, nil
}

// Connection sends spooled inserts to one shard endpoint over HTTP.
type Connection struct {
	client  Client
	baseURL string
	authKey string
	logger  log.Logger
}

// fileManifest is the JSON record describing one member of a batch payload.
type fileManifest struct {
	Name  string `json:"name"`
	Rows  uint64 `json:"rows"`
	Bytes uint64 `json:"bytes"`
}

// SendBatch delivers all member files as one multipart POST: a manifest part
// listing the members in order, then one form file per member.
func (c *Connection) SendBatch(ctx context.Context, files []domain.PendingFile) error {
	if len(files) == 0 {
		return nil
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	manifest := make([]fileManifest, len(files))
	for i, f := range files {
		manifest[i] = fileManifest{Name: filepath.Base(f.Path), Rows: f.Rows, Bytes: f.Bytes}
	}
	manifestJSON, err := json.Marshal(manifest)
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	part, err := writer.CreateFormField("manifest")
	if err != nil {
		return fmt.Errorf("create manifest field: %w", err)
	}
	if _, err := part.Write(manifestJSON); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}

	for _, f := range files {
		if err := writeFilePart(writer, f.Path); err != nil {
			return err
		}
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("finalize multipart: %w", err)
	}

	return c.post(ctx, batchEndpoint, &body, writer.FormDataContentType())
}

// SendFile delivers a single spooled file.
func (c *Connection) SendFile(ctx context.Context, file domain.PendingFile) error {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	if err := writeFilePart(writer, file.Path); err != nil {
		return err
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("finalize multipart: %w", err)
	}

	return c.post(ctx, fileEndpoint, &body, writer.FormDataContentType())
}

// writeFilePart copies one spool file into the multipart body.
func writeFilePart(writer *multipart.Writer, path string) error {
	part, err := writer.CreateFormFile("files", filepath.Base(path))
	if err != nil {
		return fmt.Errorf("create file field: %w", err)
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	if _, err := io.Copy(part, f); err != nil {
		return fmt.Errorf("copy %s: %w", path, err)
	}
	return nil
}

// post sends the request and maps any non-2xx status to an error.
func (c *Connection) post(ctx context.Context, endpoint string, body io.Reader, contentType string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if c.authKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.authKey)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}
