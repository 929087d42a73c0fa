package ais

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jibzus/bluefleet-sub001/models/tracking"
)

const apiKeyHeader = "X-API-Key"

// AISClient fetches the latest reported position of a vessel
type AISClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

func NewClient(baseURL, apiKey string, timeout time.Duration) *AISClient {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &AISClient{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
	}
}

// FetchVesselPosition returns nil without error when the provider has no
// position for the identifier.
func (c *AISClient) FetchVesselPosition(ctx context.Context, identifier string) (*tracking.Position, error) {
	if c.baseURL == "" {
		return nil, errors.New("AIS base url is not configured")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/vessels/"+url.PathEscape(identifier)+"/position", nil)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set(apiKeyHeader, c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.New("AIS API returned non-OK status: " + resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(body))) == 0 || strings.TrimSpace(string(body)) == "null" {
		return nil, nil
	}

	var apiResp positionResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, fmt.Errorf("decode AIS response: %w", err)
	}
	if apiResp.Latitude == nil || apiResp.Longitude == nil {
		return nil, nil
	}

	pos := &tracking.Position{
		Latitude:  *apiResp.Latitude,
		Longitude: *apiResp.Longitude,
		Metadata:  map[string]any{"identifier": identifier},
	}
	if apiResp.Timestamp != nil {
		pos.RecordedAt = apiResp.Timestamp.UTC()
	}
	if apiResp.Speed != nil {
		pos.Metadata["speed"] = *apiResp.Speed
	}
	if apiResp.Course != nil {
		pos.Metadata["course"] = *apiResp.Course
	}
	if apiResp.Heading != nil {
		pos.Metadata["heading"] = *apiResp.Heading
	}
	if apiResp.Status != "" {
		pos.Metadata["nav_status"] = apiResp.Status
	}
	return pos, nil
}
