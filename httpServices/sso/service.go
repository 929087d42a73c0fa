package sso

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrUnknownUser is returned when the directory has no such user
var ErrUnknownUser = errors.New("sso: unknown user")

type SSOClient struct {
	httpClient *http.Client
	baseURL    string
}

func NewClient(baseURL string) *SSOClient {
	return &SSOClient{
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// ResolveUser looks up a user's role in the directory
func (c *SSOClient) ResolveUser(ctx context.Context, id string) (*User, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/sso/users/"+url.PathEscape(id)+"/", nil)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrUnknownUser
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.New("SSO API returned non-OK status: " + resp.Status)
	}

	var apiResp userResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, err
	}
	if apiResp.Data.ID == "" {
		apiResp.Data.ID = id
	}
	return &apiResp.Data, nil
}
