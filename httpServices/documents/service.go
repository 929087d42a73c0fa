package documents

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// HashContent is the hex sha256 recorded for every stored document
func HashContent(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// DocumentClient talks to the external document storage service
type DocumentClient struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

func NewClient(baseURL, token string, timeout time.Duration) *DocumentClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &DocumentClient{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
	}
}

func (c *DocumentClient) PersistDocument(ctx context.Context, doc Document) (*Stored, error) {
	body, err := json.Marshal(persistRequest{
		Name:          doc.Name,
		ContentType:   doc.ContentType,
		ContentBase64: base64.StdEncoding.EncodeToString(doc.Content),
		Metadata:      doc.Metadata,
	})
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/documents", bytes.NewBuffer(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if c.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, errors.New("document store returned non-OK status: " + resp.Status)
	}

	var stored Stored
	if err := json.NewDecoder(resp.Body).Decode(&stored); err != nil {
		return nil, fmt.Errorf("decode document store response: %w", err)
	}
	if stored.URL == "" {
		return nil, errors.New("document store response has no url")
	}
	return &stored, nil
}

// LocalStore writes documents under a directory. Used when no document
// service is configured.
type LocalStore struct {
	Dir string
}

func NewLocalStore(dir string) *LocalStore {
	return &LocalStore{Dir: dir}
}

func (s *LocalStore) PersistDocument(ctx context.Context, doc Document) (*Stored, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	hash := HashContent(doc.Content)
	name := filepath.Clean("/" + doc.Name)[1:]
	if name == "" {
		name = hash
	}
	path := filepath.Join(s.Dir, name)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create document directory: %w", err)
	}
	if err := os.WriteFile(path, doc.Content, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write document: %w", err)
	}

	return &Stored{URL: "file://" + filepath.ToSlash(path), Hash: hash}, nil
}
