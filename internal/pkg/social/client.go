package social

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/JulienFabre/TenderWatch/internal/pkg/env"
)

// Platforms supported by the posting provider.
const (
	PlatformLinkedIn = "linkedin"
	PlatformFacebook = "facebook"
)

// Client posts content to the social publishing API.
type Client struct {
	BaseURL   string
	APIKey    string
	AccountID string

	HTTPClient *http.Client
}

// PostContent is the text/media part of a publish request.
type PostContent struct {
	Text      string   `json:"text"`
	MediaUrls []string `json:"mediaUrls"`
	Platform  string   `json:"platform"`
}

// PostTarget addresses the destination page or profile.
type PostTarget struct {
	TargetType string `json:"targetType"`
	PageID     string `json:"pageId,omitempty"`
}

type postBody struct {
	AccountID string      `json:"accountId"`
	Content   PostContent `json:"content"`
	Target    PostTarget  `json:"target"`
}

type postRequest struct {
	Post postBody `json:"post"`
}

// NewClientFromEnv builds a posting client from environment configuration.
func NewClientFromEnv() *Client {
	return &Client{
		BaseURL:   strings.TrimRight(env.GetEnv("SOCIAL_API_BASE_URL", ""), "/"),
		APIKey:    strings.TrimSpace(env.GetEnv("SOCIAL_API_KEY", "")),
		AccountID: strings.TrimSpace(env.GetEnv("SOCIAL_ACCOUNT_ID", "")),
		HTTPClient: &http.Client{
			Timeout: 20 * time.Second,
		},
	}
}

// Configured reports whether the provider credentials are present.
func (c *Client) Configured() bool {
	return c.BaseURL != "" && c.APIKey != "" && c.AccountID != ""
}

// Publish posts text to one platform and echoes the provider response back.
func (c *Client) Publish(ctx context.Context, platform, text string, mediaUrls []string, target PostTarget) (json.RawMessage, error) {
	payload, err := json.Marshal(postRequest{
		Post: postBody{
			AccountID: c.AccountID,
			Content: PostContent{
				Text:      text,
				MediaUrls: mediaUrls,
				Platform:  platform,
			},
			Target: target,
		},
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/posts", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("social API post failed: status=%d body=%s", resp.StatusCode, string(body))
	}
	return json.RawMessage(body), nil
}
