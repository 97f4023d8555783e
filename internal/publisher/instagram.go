package publisher

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/avelar/multipost/internal/instagram"
	"github.com/avelar/multipost/internal/media"
	"github.com/avelar/multipost/internal/poll"
)

// runInstagram executes the Instagram workflow for one business account:
// create container(s), wait for provider-side processing, for carousels
// create and await the aggregate container, publish, persist the result.
// Single-vs-carousel is decided solely by item count.
func (p *Publisher) runInstagram(ctx context.Context, dest media.InstagramDestination, req Request) (string, error) {
	accountID := dest.BusinessAccountID
	carousel := len(req.Items) > 1

	p.states.advance(dest.ID(), PhaseCreatingContainers)

	containerIDs, err := p.createItemContainers(ctx, accountID, req, carousel)
	if err != nil {
		return "", err
	}

	p.states.advance(dest.ID(), PhaseAwaitingContainers)
	if err := poll.AwaitReady(ctx, containerIDs, p.containerStatus, p.pollOpts); err != nil {
		return "", fmt.Errorf("await containers: %w", err)
	}

	publishContainerID := containerIDs[0]
	if carousel {
		p.states.advance(dest.ID(), PhaseCreatingCarousel)
		publishContainerID, err = p.instagram.CreateCarouselContainer(ctx, accountID, containerIDs, req.Caption)
		if err != nil {
			return "", fmt.Errorf("create carousel: %w", err)
		}

		p.states.advance(dest.ID(), PhaseAwaitingCarousel)
		if err := poll.AwaitReady(ctx, []string{publishContainerID}, p.containerStatus, p.pollOpts); err != nil {
			return "", fmt.Errorf("await carousel: %w", err)
		}
	}

	p.states.advance(dest.ID(), PhasePublishing)
	externalID, err := p.instagram.Publish(ctx, accountID, publishContainerID)
	if err != nil {
		return "", fmt.Errorf("publish: %w", err)
	}

	p.states.advance(dest.ID(), PhasePersisting)
	if err := p.persistResult(ctx, dest, req, externalID); err != nil {
		return "", fmt.Errorf("persist result: %w", err)
	}

	return externalID, nil
}

// createItemContainers creates one media container per item. For a single
// item the caption rides on the container; for a carousel the items are
// created concurrently without captions (the caption belongs on the
// aggregate). The returned IDs preserve selection order regardless of
// creation completion order.
func (p *Publisher) createItemContainers(ctx context.Context, accountID string, req Request, carousel bool) ([]string, error) {
	if !carousel {
		item := req.Items[0]
		url, err := p.signer.PresignGet(ctx, item.Key, presignExpiry)
		if err != nil {
			return nil, fmt.Errorf("presign %s: %w", item.Key, err)
		}
		id, err := p.instagram.CreateContainer(ctx, accountID, url, item.Type, req.Caption, false)
		if err != nil {
			return nil, fmt.Errorf("create container: %w", err)
		}
		return []string{id}, nil
	}

	ids := make([]string, len(req.Items))
	errs := make([]error, len(req.Items))

	var wg sync.WaitGroup
	for i, item := range req.Items {
		wg.Add(1)
		go func(i int, item media.Item) {
			defer wg.Done()
			url, err := p.signer.PresignGet(ctx, item.Key, presignExpiry)
			if err != nil {
				errs[i] = fmt.Errorf("presign %s: %w", item.Key, err)
				return
			}
			id, err := p.instagram.CreateContainer(ctx, accountID, url, item.Type, "", true)
			if err != nil {
				errs[i] = fmt.Errorf("create container for item %d: %w", item.Index, err)
				return
			}
			ids[i] = id
		}(i, item)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	log.Debug().Str("accountId", accountID).Int("containers", len(ids)).Msg("Item containers created")
	return ids, nil
}

// containerStatus adapts the Graph API status codes to the poller's
// normalized statuses.
func (p *Publisher) containerStatus(ctx context.Context, id string) (poll.Status, error) {
	status, err := p.instagram.ContainerStatus(ctx, id)
	if err != nil {
		return "", err
	}
	switch status {
	case instagram.StatusFinished:
		return poll.StatusReady, nil
	case instagram.StatusError:
		return poll.StatusError, nil
	default:
		return poll.StatusPending, nil
	}
}
