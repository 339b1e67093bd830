// Package clerk talks to the identity provider's backend API.
package clerk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/imaginify/imaginify/backend/go-services/internal/users"
	"github.com/imaginify/imaginify/backend/go-services/pkg/logger"
)

const DefaultAPIURL = "https://api.clerk.com"

// Client writes account metadata through the backend API.
type Client struct {
	baseURL    string
	secretKey  string
	httpClient *http.Client
}

func NewClient(baseURL, secretKey string) *Client {
	if baseURL == "" {
		baseURL = DefaultAPIURL
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		secretKey:  secretKey,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

type metadataRequest struct {
	PublicMetadata map[string]interface{} `json:"public_metadata"`
}

// SetUserMetadata merges {"userId": userID} into the account's public metadata.
func (c *Client) SetUserMetadata(ctx context.Context, clerkID string, userID string) error {
	body, err := json.Marshal(metadataRequest{PublicMetadata: map[string]interface{}{"userId": userID}})
	if err != nil {
		return err
	}
	endpoint := c.baseURL + "/v1/users/" + url.PathEscape(clerkID) + "/metadata"
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("update user metadata: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("update user metadata: provider returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	return nil
}

// NoopMetadataWriter is used when no backend API key is configured. It
// reports users.ErrWriteBackDisabled so records are not marked synced.
type NoopMetadataWriter struct{}

func (NoopMetadataWriter) SetUserMetadata(ctx context.Context, clerkID string, userID string) error {
	logger.Debugf("metadata write-back skipped for %s (no API key configured)", clerkID)
	return users.ErrWriteBackDisabled
}
