package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"restaurant-billing/internal/common/config"
	"restaurant-billing/internal/domain"
)

// Client asks the identity service who a captured sample belongs to.
type Client struct {
	url  string
	http *http.Client
}

func New(cfg config.Identity) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Client{url: cfg.URL, http: &http.Client{Timeout: timeout}}
}

type identifyResponse struct {
	OccupantID string `json:"occupant_id"`
}

// Identify returns found=false when the service has no match for the sample.
func (c *Client) Identify(ctx context.Context, sample []byte) (string, bool, error) {
	if c.url == "" {
		return "", false, &domain.Error{Kind: domain.KindValidation, Field: "sample", Message: "identity service is not configured"}
	}
	if len(sample) == 0 {
		return "", false, domain.Validation("sample", "", "sample is empty")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(sample))
	if err != nil {
		return "", false, err
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", false, fmt.Errorf("identity request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return "", false, nil
	default:
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", false, fmt.Errorf("identity service: %s: %s", resp.Status, bytes.TrimSpace(b))
	}

	var out identifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", false, fmt.Errorf("identity response: %w", err)
	}
	return out.OccupantID, out.OccupantID != "", nil
}
