package publisher

import (
	"context"
	"fmt"

	"github.com/avelar/multipost/internal/media"
	"github.com/avelar/multipost/internal/youtube"
)

// runYouTube executes the YouTube workflow for one channel: validate the
// title, submit the video with metadata, persist the result. The provider
// call is synchronous; its completion is the terminal outcome.
func (p *Publisher) runYouTube(ctx context.Context, dest media.YouTubeDestination, req Request) (string, error) {
	if err := youtube.ValidateTitle(req.YouTubeTitle); err != nil {
		return "", err
	}

	video, ok := firstVideo(req.Items)
	if !ok {
		return "", fmt.Errorf("selection contains no video for channel %s", dest.ChannelID)
	}

	p.states.advance(dest.ID(), PhasePublishing)

	url, err := p.signer.PresignGet(ctx, video.Key, presignExpiry)
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", video.Key, err)
	}

	externalID, err := p.youtube.Publish(ctx, dest.ChannelID, url, req.YouTubeTitle, req.PostID, req.UserID)
	if err != nil {
		return "", fmt.Errorf("publish: %w", err)
	}

	p.states.advance(dest.ID(), PhasePersisting)
	if err := p.persistResult(ctx, dest, req, externalID); err != nil {
		return "", fmt.Errorf("persist result: %w", err)
	}

	return externalID, nil
}

// firstVideo returns the first video item in selection order.
func firstVideo(items []media.Item) (media.Item, bool) {
	for _, item := range items {
		if item.Type == media.Video {
			return item, true
		}
	}
	return media.Item{}, false
}
