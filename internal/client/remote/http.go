package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/tallybook/tallybook/internal/common"
	"github.com/tallybook/tallybook/internal/models"
)

const datasetPath = "/api/v1/dataset"

// HTTPClient implements Store over HTTP/JSON against the reference server.
// Timeouts are the caller's business: the orchestrator derives a per-attempt
// context sized to the configured network profile.
type HTTPClient struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewHTTPClient(baseURL, token string) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{},
	}
}

func (c *HTTPClient) Read(ctx context.Context) (models.Dataset, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+datasetPath, nil)
	if err != nil {
		return models.Dataset{}, err
	}
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return models.Dataset{}, fmt.Errorf("%w: %v", common.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return models.Dataset{}, c.statusError(resp.StatusCode)
	}

	var ds models.Dataset
	if err := json.NewDecoder(resp.Body).Decode(&ds); err != nil {
		return models.Dataset{}, fmt.Errorf("%w: %v", common.ErrMalformedResponse, err)
	}
	return ds, nil
}

func (c *HTTPClient) Write(ctx context.Context, ds models.Dataset) error {
	body, err := json.Marshal(ds)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.baseURL+datasetPath, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent:
		return nil
	case http.StatusConflict:
		var payload struct {
			Conflicts models.Dataset `json:"conflicts"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
			return fmt.Errorf("%w: %v", common.ErrMalformedResponse, err)
		}
		return &ConflictError{Conflicts: payload.Conflicts}
	default:
		return c.statusError(resp.StatusCode)
	}
}

func (c *HTTPClient) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

func (c *HTTPClient) statusError(code int) error {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return common.ErrUnauthorized
	case code >= 500:
		return fmt.Errorf("%w: status %d", common.ErrUnavailable, code)
	default:
		return fmt.Errorf("unexpected status %d: %w", code, common.ErrInternal)
	}
}

// Login exchanges credentials for a bearer token at the reference server.
func Login(ctx context.Context, baseURL, username, password string) (string, error) {
	body, err := json.Marshal(map[string]string{
		"username": username,
		"password": password,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/api/v1/auth/login", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return "", common.ErrUnauthorized
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("login failed: status %d", resp.StatusCode)
	}

	var out struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrMalformedResponse, err)
	}
	return out.Token, nil
}
