package publisher

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/avelar/multipost/internal/instagram"
	"github.com/avelar/multipost/internal/media"
	"github.com/avelar/multipost/internal/poll"
	"github.com/avelar/multipost/internal/store"
)

// --- Fakes ---

type igCreateCall struct {
	AccountID    string
	MediaURL     string
	MediaType    media.Type
	Caption      string
	CarouselItem bool
}

type igCarouselCall struct {
	AccountID string
	Children  []string
	Caption   string
}

type fakeInstagram struct {
	mu            sync.Mutex
	createCalls   []igCreateCall
	carouselCalls []igCarouselCall
	publishCalls  []string
	statusCalls   map[string]int
	// statusScript maps container ID to a status sequence; each poll
	// consumes one entry and the last repeats. Default: FINISHED.
	statusScript map[string][]string

	failCreateForAccount string
	failPublish          bool
}

func newFakeInstagram() *fakeInstagram {
	return &fakeInstagram{
		statusCalls:  make(map[string]int),
		statusScript: make(map[string][]string),
	}
}

func (f *fakeInstagram) CreateContainer(ctx context.Context, accountID, mediaURL string, mediaType media.Type, caption string, carouselItem bool) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCreateForAccount == accountID {
		return "", errors.New("provider rejected container")
	}
	f.createCalls = append(f.createCalls, igCreateCall{accountID, mediaURL, mediaType, caption, carouselItem})
	return "c:" + mediaURL, nil
}

func (f *fakeInstagram) CreateCarouselContainer(ctx context.Context, accountID string, children []string, caption string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.carouselCalls = append(f.carouselCalls, igCarouselCall{accountID, append([]string(nil), children...), caption})
	return "car:" + accountID, nil
}

func (f *fakeInstagram) Publish(ctx context.Context, accountID, containerID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failPublish {
		return "", errors.New("publish rejected")
	}
	f.publishCalls = append(f.publishCalls, containerID)
	return "ext-" + containerID, nil
}

func (f *fakeInstagram) ContainerStatus(ctx context.Context, containerID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.statusCalls[containerID]
	f.statusCalls[containerID]++
	seq, ok := f.statusScript[containerID]
	if !ok {
		return instagram.StatusFinished, nil
	}
	if i >= len(seq) {
		i = len(seq) - 1
	}
	return seq[i], nil
}

type ytCall struct {
	ChannelID string
	VideoURL  string
	Title     string
	PostID    string
	UserID    string
}

type fakeYouTube struct {
	mu    sync.Mutex
	calls []ytCall
	fail  bool
}

func (f *fakeYouTube) Publish(ctx context.Context, channelID, videoURL, title, postID, userID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return "", errors.New("transport error")
	}
	f.calls = append(f.calls, ytCall{channelID, videoURL, title, postID, userID})
	return "yt-ext-" + channelID, nil
}

type fakeSigner struct{}

func (fakeSigner) PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error) {
	return "https://signed/" + key, nil
}

type fakeResults struct {
	mu      sync.Mutex
	results []*store.PublishResult
	fail    bool
}

func (f *fakeResults) PutPublishResult(ctx context.Context, postID string, res *store.PublishResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("conditional check failed")
	}
	res.PostID = postID
	f.results = append(f.results, res)
	return nil
}

// --- Harness ---

type harness struct {
	ig      *fakeInstagram
	yt      *fakeYouTube
	results *fakeResults
	pub     *Publisher
}

func newHarness() *harness {
	h := &harness{
		ig:      newFakeInstagram(),
		yt:      &fakeYouTube{},
		results: &fakeResults{},
	}
	h.pub = New(h.ig, h.yt, fakeSigner{}, h.results,
		poll.Options{Interval: time.Millisecond, MaxAttempts: 5})
	return h
}

func (h *harness) publish(t *testing.T, req Request) {
	t.Helper()
	if err := h.pub.PublishAll(context.Background(), req); err != nil {
		t.Fatalf("PublishAll: %v", err)
	}
	h.pub.Wait()
}

func videoItem(index int) media.Item {
	return media.Item{Key: fmt.Sprintf("u/p/%d.mp4", index), Type: media.Video, Index: index}
}

func imageItem(index int) media.Item {
	return media.Item{Key: fmt.Sprintf("u/p/%d.jpg", index), Type: media.Image, Index: index}
}

func baseRequest(items []media.Item, dests ...media.Destination) Request {
	return Request{
		UserID:       "user-1",
		PostID:       "post-1",
		Items:        items,
		Destinations: dests,
		Caption:      "hello",
		YouTubeTitle: "My video",
	}
}

func mustState(t *testing.T, pub *Publisher, id string) DestinationState {
	t.Helper()
	s, ok := pub.States().Get(id)
	if !ok {
		t.Fatalf("no state for destination %s", id)
	}
	return s
}

// --- Tests ---

func TestPublishAll_SingleItemInstagram(t *testing.T) {
	h := newHarness()
	// Processing takes one round before the container is ready.
	h.ig.statusScript["c:https://signed/u/p/0.mp4"] = []string{instagram.StatusInProgress, instagram.StatusFinished}

	h.publish(t, baseRequest([]media.Item{videoItem(0)},
		media.InstagramDestination{BusinessAccountID: "ig1"}))

	if len(h.ig.createCalls) != 1 {
		t.Fatalf("expected 1 container create, got %d", len(h.ig.createCalls))
	}
	call := h.ig.createCalls[0]
	if call.CarouselItem {
		t.Error("single item must not be created as a carousel item")
	}
	if call.Caption != "hello" {
		t.Errorf("expected caption on the single container, got %q", call.Caption)
	}
	if call.MediaType != media.Video {
		t.Errorf("expected video container, got %s", call.MediaType)
	}

	// A single-item post never creates an aggregate container.
	if len(h.ig.carouselCalls) != 0 {
		t.Errorf("expected no carousel container, got %d", len(h.ig.carouselCalls))
	}

	if len(h.ig.publishCalls) != 1 || h.ig.publishCalls[0] != "c:https://signed/u/p/0.mp4" {
		t.Errorf("unexpected publish calls: %v", h.ig.publishCalls)
	}

	state := mustState(t, h.pub, "ig1")
	if state.Status != StatusPosted {
		t.Fatalf("expected posted, got %s (%s)", state.Status, state.Err)
	}
	if state.ExternalID != "ext-c:https://signed/u/p/0.mp4" {
		t.Errorf("unexpected external ID: %s", state.ExternalID)
	}
}

func TestPublishAll_SingleItemPersistsResult(t *testing.T) {
	h := newHarness()
	h.publish(t, baseRequest([]media.Item{imageItem(0)},
		media.InstagramDestination{BusinessAccountID: "ig1"}))

	if len(h.results.results) != 1 {
		t.Fatalf("expected exactly 1 persisted result, got %d", len(h.results.results))
	}
	res := h.results.results[0]
	state := mustState(t, h.pub, "ig1")
	if res.ExternalMediaID != state.ExternalID {
		t.Errorf("persisted external ID %s != published %s", res.ExternalMediaID, state.ExternalID)
	}
	if res.DestinationID != "ig1" || res.PostID != "post-1" || res.Caption != "hello" {
		t.Errorf("unexpected result record: %+v", res)
	}
}

func TestPublishAll_CarouselThreeImages(t *testing.T) {
	h := newHarness()
	items := []media.Item{imageItem(0), imageItem(1), imageItem(2)}

	h.publish(t, baseRequest(items, media.InstagramDestination{BusinessAccountID: "ig1"}))

	if len(h.ig.createCalls) != 3 {
		t.Fatalf("expected 3 item container creates, got %d", len(h.ig.createCalls))
	}
	for _, call := range h.ig.createCalls {
		if !call.CarouselItem {
			t.Error("carousel items must be flagged is-carousel-item")
		}
		if call.Caption != "" {
			t.Errorf("carousel items must not carry a caption, got %q", call.Caption)
		}
	}

	if len(h.ig.carouselCalls) != 1 {
		t.Fatalf("expected exactly 1 carousel container create, got %d", len(h.ig.carouselCalls))
	}
	carousel := h.ig.carouselCalls[0]
	wantChildren := []string{
		"c:https://signed/u/p/0.jpg",
		"c:https://signed/u/p/1.jpg",
		"c:https://signed/u/p/2.jpg",
	}
	if len(carousel.Children) != 3 {
		t.Fatalf("expected 3 children, got %d", len(carousel.Children))
	}
	for i, want := range wantChildren {
		if carousel.Children[i] != want {
			t.Errorf("child %d: expected %s, got %s (selection order must be preserved)", i, want, carousel.Children[i])
		}
	}
	if carousel.Caption != "hello" {
		t.Errorf("expected caption on the aggregate, got %q", carousel.Caption)
	}

	if len(h.ig.publishCalls) != 1 || h.ig.publishCalls[0] != "car:ig1" {
		t.Errorf("expected one publish of the carousel container, got %v", h.ig.publishCalls)
	}

	if state := mustState(t, h.pub, "ig1"); state.Status != StatusPosted {
		t.Errorf("expected posted, got %s (%s)", state.Status, state.Err)
	}
}

func TestPublishAll_MixedDestinationsYouTubeFails(t *testing.T) {
	h := newHarness()
	h.yt.fail = true

	h.publish(t, baseRequest([]media.Item{videoItem(0)},
		media.InstagramDestination{BusinessAccountID: "ig1"},
		media.YouTubeDestination{ChannelID: "yt1"}))

	if state := mustState(t, h.pub, "ig1"); state.Status != StatusPosted {
		t.Errorf("Instagram must be unaffected by the YouTube failure, got %s", state.Status)
	}
	state := mustState(t, h.pub, "yt1")
	if state.Status != StatusError {
		t.Errorf("expected error for yt1, got %s", state.Status)
	}
	if state.Err == "" {
		t.Error("expected error detail for diagnostics")
	}
}

func TestPublishAll_YouTubeSuccess(t *testing.T) {
	h := newHarness()
	h.publish(t, baseRequest([]media.Item{videoItem(0)},
		media.YouTubeDestination{ChannelID: "yt1"}))

	if len(h.yt.calls) != 1 {
		t.Fatalf("expected 1 YouTube call, got %d", len(h.yt.calls))
	}
	call := h.yt.calls[0]
	if call.ChannelID != "yt1" || call.Title != "My video" || call.PostID != "post-1" || call.UserID != "user-1" {
		t.Errorf("unexpected YouTube call: %+v", call)
	}
	if call.VideoURL != "https://signed/u/p/0.mp4" {
		t.Errorf("unexpected video URL: %s", call.VideoURL)
	}

	state := mustState(t, h.pub, "yt1")
	if state.Status != StatusPosted || state.ExternalID != "yt-ext-yt1" {
		t.Errorf("unexpected state: %+v", state)
	}

	// YouTube successes persist a result row just like Instagram.
	if len(h.results.results) != 1 || h.results.results[0].Platform != "youtube" {
		t.Errorf("expected a persisted YouTube result, got %+v", h.results.results)
	}
}

func TestPublishAll_SiblingIsolation(t *testing.T) {
	h := newHarness()
	h.ig.failCreateForAccount = "ig1"

	h.publish(t, baseRequest([]media.Item{imageItem(0)},
		media.InstagramDestination{BusinessAccountID: "ig1"},
		media.InstagramDestination{BusinessAccountID: "ig2"}))

	if state := mustState(t, h.pub, "ig1"); state.Status != StatusError {
		t.Errorf("expected error for ig1, got %s", state.Status)
	}
	if state := mustState(t, h.pub, "ig2"); state.Status != StatusPosted {
		t.Errorf("sibling ig2 must still post, got %s (%s)", state.Status, state.Err)
	}
}

func TestPublishAll_PollRemoteError(t *testing.T) {
	h := newHarness()
	h.ig.statusScript["c:https://signed/u/p/0.jpg"] = []string{instagram.StatusError}

	h.publish(t, baseRequest([]media.Item{imageItem(0)},
		media.InstagramDestination{BusinessAccountID: "ig1"}))

	state := mustState(t, h.pub, "ig1")
	if state.Status != StatusError {
		t.Fatalf("expected error, got %s", state.Status)
	}
	if len(h.ig.publishCalls) != 0 {
		t.Error("a failed container must never be published")
	}
}

func TestPublishAll_PollTimeout(t *testing.T) {
	h := newHarness()
	h.ig.statusScript["c:https://signed/u/p/0.jpg"] = []string{instagram.StatusInProgress}

	h.publish(t, baseRequest([]media.Item{imageItem(0)},
		media.InstagramDestination{BusinessAccountID: "ig1"}))

	state := mustState(t, h.pub, "ig1")
	if state.Status != StatusError {
		t.Fatalf("expected error after timeout, got %s", state.Status)
	}
	if !strings.Contains(state.Err, "timed out") {
		t.Errorf("expected timeout diagnostics, got %q", state.Err)
	}
}

func TestPublishAll_PersistFailureIsDestinationError(t *testing.T) {
	h := newHarness()
	h.results.fail = true

	h.publish(t, baseRequest([]media.Item{imageItem(0)},
		media.InstagramDestination{BusinessAccountID: "ig1"}))

	if state := mustState(t, h.pub, "ig1"); state.Status != StatusError {
		t.Errorf("expected error on persist failure, got %s", state.Status)
	}
}

func TestPublishAll_InvalidYouTubeTitle(t *testing.T) {
	h := newHarness()
	req := baseRequest([]media.Item{videoItem(0)},
		media.YouTubeDestination{ChannelID: "yt1"})
	req.YouTubeTitle = ""

	h.publish(t, req)

	if state := mustState(t, h.pub, "yt1"); state.Status != StatusError {
		t.Errorf("expected error for missing title, got %s", state.Status)
	}
	if len(h.yt.calls) != 0 {
		t.Error("no remote call may be made with an invalid title")
	}
}

func TestPublishAll_NoVideoForYouTube(t *testing.T) {
	h := newHarness()
	h.publish(t, baseRequest([]media.Item{imageItem(0)},
		media.YouTubeDestination{ChannelID: "yt1"}))

	if state := mustState(t, h.pub, "yt1"); state.Status != StatusError {
		t.Errorf("expected error for image-only selection, got %s", state.Status)
	}
}

func TestPublishAll_EmptySelection(t *testing.T) {
	h := newHarness()
	err := h.pub.PublishAll(context.Background(), baseRequest(nil,
		media.InstagramDestination{BusinessAccountID: "ig1"}))
	if !errors.Is(err, ErrNoMedia) {
		t.Fatalf("expected ErrNoMedia, got %v", err)
	}
	if _, ok := h.pub.States().Get("ig1"); ok {
		t.Error("no workflow may start for an empty selection")
	}
}

func TestPublishAll_NoDestinations(t *testing.T) {
	h := newHarness()
	err := h.pub.PublishAll(context.Background(), baseRequest([]media.Item{imageItem(0)}))
	if err == nil {
		t.Fatal("expected error for empty destination set")
	}
}

func TestPublishAll_DedupesDestinations(t *testing.T) {
	h := newHarness()
	h.publish(t, baseRequest([]media.Item{imageItem(0)},
		media.InstagramDestination{BusinessAccountID: "ig1"},
		media.InstagramDestination{BusinessAccountID: "ig1"}))

	if len(h.ig.createCalls) != 1 {
		t.Errorf("duplicate destination must run once, got %d creates", len(h.ig.createCalls))
	}
	if n := len(h.pub.States().Snapshot()); n != 1 {
		t.Errorf("expected 1 state entry, got %d", n)
	}
}

func TestPublishAll_AllDestinationsSettle(t *testing.T) {
	h := newHarness()
	h.ig.failCreateForAccount = "ig2"
	h.yt.fail = true

	h.publish(t, baseRequest([]media.Item{videoItem(0)},
		media.InstagramDestination{BusinessAccountID: "ig1"},
		media.InstagramDestination{BusinessAccountID: "ig2"},
		media.YouTubeDestination{ChannelID: "yt1"}))

	snapshot := h.pub.States().Snapshot()
	if len(snapshot) != 3 {
		t.Fatalf("expected one entry per destination, got %d", len(snapshot))
	}
	for id, state := range snapshot {
		if state.Status == StatusProcessing {
			t.Errorf("destination %s left at processing after settle", id)
		}
	}
	if !h.pub.States().Settled() {
		t.Error("state map must report settled")
	}
}
