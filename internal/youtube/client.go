// Package youtube provides the client for the YouTube video publishing
// endpoint. Publishing is a single synchronous call: the video reference
// and metadata are submitted and the provider returns the external video
// ID. Server-side processing is not polled; completion of the call is the
// terminal result.
package youtube

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
)

const (
	defaultBaseURL = "https://yt-publish.avelar.dev/v1"

	// defaultTimeout covers the full upload hand-off, which can be slow
	// for large videos.
	defaultTimeout = 5 * time.Minute

	// MaxTitleLength is the YouTube video title limit.
	MaxTitleLength = 100
)

// InvalidTitleError indicates the video title violates YouTube's rules.
// It is raised before any remote call is made.
type InvalidTitleError struct {
	Reason string
}

func (e *InvalidTitleError) Error() string {
	return fmt.Sprintf("invalid video title: %s", e.Reason)
}

// ValidateTitle checks the title precondition: non-empty and at most
// MaxTitleLength characters.
func ValidateTitle(title string) error {
	if title == "" {
		return &InvalidTitleError{Reason: "title is required"}
	}
	if n := utf8.RuneCountInString(title); n > MaxTitleLength {
		return &InvalidTitleError{Reason: fmt.Sprintf("title is %d characters, max %d", n, MaxTitleLength)}
	}
	return nil
}

// Client provides methods for publishing videos to YouTube channels.
type Client struct {
	httpClient  *http.Client
	accessToken string
	baseURL     string
}

// NewClient creates a YouTube publishing client with an access token
// authorized for every channel it will serve.
func NewClient(accessToken string) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		accessToken: accessToken,
		baseURL:     defaultBaseURL,
	}
}

// publishRequest is the JSON body for the video publish endpoint.
type publishRequest struct {
	VideoURL string `json:"videoUrl"`
	Title    string `json:"title"`
	PostID   string `json:"postId"`
	UserID   string `json:"userId"`
}

// publishResponse is the provider's response envelope.
type publishResponse struct {
	ID    string  `json:"id"`
	Error *apiErr `json:"error,omitempty"`
}

type apiErr struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// Publish submits a video with metadata to the given channel and returns
// the external video ID. videoURL must be publicly accessible (e.g. a
// presigned S3 GET URL). The title precondition is validated before any
// remote call; violations return *InvalidTitleError.
func (c *Client) Publish(ctx context.Context, channelID, videoURL, title, postID, userID string) (string, error) {
	if err := ValidateTitle(title); err != nil {
		return "", err
	}

	body, err := json.Marshal(publishRequest{
		VideoURL: videoURL,
		Title:    title,
		PostID:   postID,
		UserID:   userID,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/channels/%s/videos", c.baseURL, channelID)
	log.Debug().Str("channelId", channelID).Str("postId", postID).Msg("YouTube publish request")

	startTime := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.accessToken)

	httpResp, err := c.httpClient.Do(req)
	duration := time.Since(startTime)
	if err != nil {
		log.Debug().Dur("duration", duration).Err(err).Msg("YouTube publish response")
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer httpResp.Body.Close()

	log.Debug().Int("statusCode", httpResp.StatusCode).Dur("duration", duration).Msg("YouTube publish response")

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	var resp publishResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return "", fmt.Errorf("parse response: %w", err)
	}

	if resp.Error != nil {
		log.Error().Str("errorMessage", resp.Error.Message).Int("errorCode", resp.Error.Code).Msg("YouTube API error")
		return "", fmt.Errorf("YouTube API error: %s (code: %d)", resp.Error.Message, resp.Error.Code)
	}

	if resp.ID == "" {
		return "", fmt.Errorf("unexpected response: no video ID returned (status %d)", httpResp.StatusCode)
	}

	log.Info().Str("channelId", channelID).Str("videoId", resp.ID).Msg("Video published to YouTube")
	return resp.ID, nil
}
