// Package publisher implements the multi-target publish orchestrator: it
// fans one uploaded media set out to any mix of Instagram business
// accounts and YouTube channels, runs one independent workflow per
// destination concurrently, and exposes a live per-destination state map.
//
// A destination's failure never affects its siblings: every workflow
// catches its own errors at the boundary and converts them into that
// destination's terminal error state.
package publisher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/avelar/multipost/internal/media"
	"github.com/avelar/multipost/internal/poll"
	"github.com/avelar/multipost/internal/store"
)

// presignExpiry is how long provider-facing media URLs stay valid. Long
// enough to cover container creation plus provider-side fetch.
const presignExpiry = 1 * time.Hour

// InstagramAPI is the slice of the Instagram client the workflows use.
type InstagramAPI interface {
	CreateContainer(ctx context.Context, accountID, mediaURL string, mediaType media.Type, caption string, carouselItem bool) (string, error)
	CreateCarouselContainer(ctx context.Context, accountID string, children []string, caption string) (string, error)
	Publish(ctx context.Context, accountID, containerID string) (string, error)
	ContainerStatus(ctx context.Context, containerID string) (string, error)
}

// YouTubeAPI is the slice of the YouTube client the workflows use.
type YouTubeAPI interface {
	Publish(ctx context.Context, channelID, videoURL, title, postID, userID string) (string, error)
}

// URLSigner produces provider-fetchable URLs for uploaded media.
type URLSigner interface {
	PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error)
}

// ResultStore persists per-destination publish results.
type ResultStore interface {
	PutPublishResult(ctx context.Context, postID string, res *store.PublishResult) error
}

// Request is one publish attempt: the uploaded media set, the selected
// destinations, and the post metadata.
type Request struct {
	UserID       string
	PostID       string
	Items        []media.Item
	Destinations []media.Destination
	Caption      string
	YouTubeTitle string
}

// ErrNoMedia is returned when PublishAll is called with an empty media
// selection. The guard sits here so an empty selection can never reach a
// destination workflow.
var ErrNoMedia = errors.New("publish requires at least one media item")

// Publisher is the destination fan-out controller.
type Publisher struct {
	instagram InstagramAPI
	youtube   YouTubeAPI
	signer    URLSigner
	results   ResultStore
	pollOpts  poll.Options

	states *StateMap
	wg     sync.WaitGroup
}

// New creates a Publisher. pollOpts bounds the container status polling;
// zero values fall back to poll.DefaultOptions.
func New(ig InstagramAPI, yt YouTubeAPI, signer URLSigner, results ResultStore, pollOpts poll.Options) *Publisher {
	return &Publisher{
		instagram: ig,
		youtube:   yt,
		signer:    signer,
		results:   results,
		pollOpts:  pollOpts,
		states:    NewStateMap(),
	}
}

// States returns the live per-destination state map. It is safe to read
// while workflows are still in flight.
func (p *Publisher) States() *StateMap {
	return p.states
}

// PublishAll launches one independent workflow per destination and
// returns without waiting for them. Destinations are deduplicated by ID;
// each is marked processing before its workflow starts. Input validation
// errors are returned before anything launches. Workflow errors are never
// returned here: they become the owning destination's error state.
func (p *Publisher) PublishAll(ctx context.Context, req Request) error {
	if len(req.Items) == 0 {
		return ErrNoMedia
	}

	dests := media.Dedupe(req.Destinations)
	if len(dests) == 0 {
		return errors.New("publish requires at least one destination")
	}

	log.Info().
		Str("postId", req.PostID).
		Int("items", len(req.Items)).
		Int("destinations", len(dests)).
		Msg("Starting multi-target publish")

	for _, dest := range dests {
		p.states.markProcessing(dest.ID())

		p.wg.Add(1)
		go func(dest media.Destination) {
			defer p.wg.Done()
			p.runDestination(ctx, dest, req)
		}(dest)
	}

	return nil
}

// Wait blocks until every launched workflow has settled.
func (p *Publisher) Wait() {
	p.wg.Wait()
}

// runDestination executes one destination's workflow and converts its
// outcome into a state-map write. Errors stop here; they must not cross
// the destination boundary.
func (p *Publisher) runDestination(ctx context.Context, dest media.Destination, req Request) {
	logger := log.With().
		Str("postId", req.PostID).
		Str("destinationId", dest.ID()).
		Str("platform", dest.Platform()).
		Logger()

	var (
		externalID string
		err        error
	)
	switch d := dest.(type) {
	case media.InstagramDestination:
		externalID, err = p.runInstagram(ctx, d, req)
	case media.YouTubeDestination:
		externalID, err = p.runYouTube(ctx, d, req)
	default:
		err = fmt.Errorf("unsupported destination platform %q", dest.Platform())
	}

	if err != nil {
		logger.Error().Err(err).Msg("Destination publish failed")
		p.states.markError(dest.ID(), err)
		return
	}

	logger.Info().Str("externalMediaId", externalID).Msg("Destination publish complete")
	p.states.markPosted(dest.ID(), externalID)
}

// persistResult records the publish outcome for one destination.
func (p *Publisher) persistResult(ctx context.Context, dest media.Destination, req Request, externalID string) error {
	return p.results.PutPublishResult(ctx, req.PostID, &store.PublishResult{
		DestinationID:   dest.ID(),
		Platform:        dest.Platform(),
		ExternalMediaID: externalID,
		Caption:         req.Caption,
		UserID:          req.UserID,
	})
}
