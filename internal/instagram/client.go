// Package instagram provides a client for the Instagram Graph API content
// publishing endpoints. It supports creating media containers (single
// posts, reels, carousel items, and carousel aggregates up to 20 items),
// checking container processing status, and publishing.
//
// Instagram publishing is a multi-step process:
//  1. Create media containers (one per item, fetched by Instagram via a
//     publicly accessible URL such as a presigned S3 GET URL)
//  2. For carousels: create a carousel container referencing the children
//  3. Wait for container processing to finish
//  4. Publish the container
//
// Unlike a single-account integration, every call takes the business
// account ID as a parameter so one client can serve any number of
// destination accounts.
package instagram

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/avelar/multipost/internal/media"
)

const (
	// defaultBaseURL is the Instagram Graph API base URL.
	defaultBaseURL = "https://graph.instagram.com/v22.0"

	// defaultTimeout is the HTTP client timeout for API calls.
	defaultTimeout = 30 * time.Second

	// maxCarouselItems is the Instagram carousel size limit.
	maxCarouselItems = 20
)

// Container processing status codes returned by the Graph API.
const (
	StatusInProgress = "IN_PROGRESS"
	StatusFinished   = "FINISHED"
	StatusError      = "ERROR"
)

// Client provides methods for publishing to Instagram via the Graph API.
type Client struct {
	httpClient  *http.Client
	accessToken string
	baseURL     string
}

// NewClient creates an Instagram API client using a long-lived access
// token with publish permission on every business account it will serve.
func NewClient(accessToken string) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		accessToken: accessToken,
		baseURL:     defaultBaseURL,
	}
}

// --- API response types ---

// apiResponse is the generic Instagram Graph API response.
type apiResponse struct {
	ID    string  `json:"id"`
	Error *apiErr `json:"error,omitempty"`
}

type apiErr struct {
	Message   string `json:"message"`
	Type      string `json:"type"`
	Code      int    `json:"code"`
	FBTraceID string `json:"fbtrace_id,omitempty"`
}

// containerStatusResponse is the response from GET /{container_id}?fields=status_code,status.
type containerStatusResponse struct {
	ID         string  `json:"id"`
	StatusCode string  `json:"status_code"` // IN_PROGRESS, FINISHED, ERROR
	Status     string  `json:"status,omitempty"`
	Error      *apiErr `json:"error,omitempty"`
}

// --- Container creation ---

// CreateContainer creates a media container for one item on the given
// business account. mediaURL must be publicly accessible (e.g. a presigned
// S3 GET URL). Carousel items never carry a caption; the caption belongs
// on the carousel container. Standalone videos are published as Reels.
func (c *Client) CreateContainer(ctx context.Context, accountID, mediaURL string, mediaType media.Type, caption string, carouselItem bool) (string, error) {
	params := url.Values{
		"access_token": {c.accessToken},
	}

	switch mediaType {
	case media.Video:
		params.Set("video_url", mediaURL)
		if carouselItem {
			params.Set("media_type", "VIDEO")
		} else {
			params.Set("media_type", "REELS")
		}
	default:
		params.Set("image_url", mediaURL)
	}

	if carouselItem {
		params.Set("is_carousel_item", "true")
	} else if caption != "" {
		params.Set("caption", caption)
	}

	resp, err := c.postForm(ctx, fmt.Sprintf("/%s/media", accountID), params)
	if err != nil {
		return "", fmt.Errorf("create %s container: %w", mediaType, err)
	}
	log.Info().
		Str("containerId", resp.ID).
		Str("accountId", accountID).
		Str("type", string(mediaType)).
		Bool("carouselItem", carouselItem).
		Msg("Media container created")
	return resp.ID, nil
}

// CreateCarouselContainer creates a carousel container from child
// container IDs on the given business account. caption is the full post
// caption text (including hashtags). Child order is preserved and defines
// the carousel item order.
func (c *Client) CreateCarouselContainer(ctx context.Context, accountID string, children []string, caption string) (string, error) {
	if len(children) < 2 {
		return "", fmt.Errorf("carousel requires at least 2 items, got %d", len(children))
	}
	if len(children) > maxCarouselItems {
		return "", fmt.Errorf("carousel supports at most %d items, got %d", maxCarouselItems, len(children))
	}

	params := url.Values{
		"media_type":   {"CAROUSEL"},
		"children":     {strings.Join(children, ",")},
		"caption":      {caption},
		"access_token": {c.accessToken},
	}

	resp, err := c.postForm(ctx, fmt.Sprintf("/%s/media", accountID), params)
	if err != nil {
		return "", fmt.Errorf("create carousel container: %w", err)
	}
	log.Info().
		Str("containerId", resp.ID).
		Str("accountId", accountID).
		Int("children", len(children)).
		Msg("Carousel container created")
	return resp.ID, nil
}

// --- Publishing ---

// Publish publishes a media container (carousel or single) on the given
// business account. Returns the Instagram media ID of the published post.
func (c *Client) Publish(ctx context.Context, accountID, containerID string) (string, error) {
	log.Debug().Str("containerId", containerID).Str("accountId", accountID).Msg("Publishing container")
	params := url.Values{
		"creation_id":  {containerID},
		"access_token": {c.accessToken},
	}

	resp, err := c.postForm(ctx, fmt.Sprintf("/%s/media_publish", accountID), params)
	if err != nil {
		return "", fmt.Errorf("publish container %s: %w", containerID, err)
	}
	log.Info().Str("containerId", containerID).Str("mediaId", resp.ID).Msg("Container published successfully")
	return resp.ID, nil
}

// --- Status ---

// ContainerStatus returns the processing status of a media container.
// Returns: StatusInProgress, StatusFinished, or StatusError.
func (c *Client) ContainerStatus(ctx context.Context, containerID string) (string, error) {
	endpoint := fmt.Sprintf("/%s?fields=status_code,status&access_token=%s",
		containerID, url.QueryEscape(c.accessToken))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("container status request: %w", err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	var status containerStatusResponse
	if err := json.Unmarshal(body, &status); err != nil {
		return "", fmt.Errorf("parse response: %w", err)
	}

	if status.Error != nil {
		return "", fmt.Errorf("API error: %s (code %d)", status.Error.Message, status.Error.Code)
	}

	return status.StatusCode, nil
}

// --- Internal helpers ---

// postForm sends a POST request with form-encoded parameters to the Instagram API.
func (c *Client) postForm(ctx context.Context, endpoint string, params url.Values) (*apiResponse, error) {
	startTime := time.Now()

	// Log form parameter names (not values) at Trace level
	paramNames := make([]string, 0, len(params))
	for key := range params {
		paramNames = append(paramNames, key)
	}
	log.Trace().Strs("formParams", paramNames).Msg("Form parameters")

	log.Debug().Str("method", http.MethodPost).Str("path", endpoint).Msg("Instagram API request")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint,
		strings.NewReader(params.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	httpResp, err := c.httpClient.Do(req)
	duration := time.Since(startTime)
	if err != nil {
		log.Debug().Int("statusCode", 0).Dur("duration", duration).Err(err).Msg("Instagram API response")
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer httpResp.Body.Close()

	log.Debug().Int("statusCode", httpResp.StatusCode).Dur("duration", duration).Msg("Instagram API response")

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var resp apiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parse response: %w (body: %s)", err, truncate(string(body), 200))
	}

	if resp.Error != nil {
		log.Error().Str("errorMessage", resp.Error.Message).Str("errorType", resp.Error.Type).Int("errorCode", resp.Error.Code).Msg("Instagram API error")
		return nil, fmt.Errorf("Instagram API error: %s (type: %s, code: %d)",
			resp.Error.Message, resp.Error.Type, resp.Error.Code)
	}

	if resp.ID == "" {
		return nil, fmt.Errorf("unexpected response: no ID returned (body: %s)", truncate(string(body), 200))
	}

	return &resp, nil
}

// truncate returns the first n characters of s, appending "..." if truncated.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
