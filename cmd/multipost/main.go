// Command multipost publishes one post — a single image/video or an
// ordered carousel — to any mix of Instagram business accounts and
// YouTube channels in one run. Media is uploaded to S3 once and shared by
// every destination; each destination then runs its own publish workflow
// concurrently.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/avelar/multipost/internal/instagram"
	"github.com/avelar/multipost/internal/logging"
	"github.com/avelar/multipost/internal/media"
	"github.com/avelar/multipost/internal/metrics"
	"github.com/avelar/multipost/internal/poll"
	"github.com/avelar/multipost/internal/publisher"
	"github.com/avelar/multipost/internal/storage"
	"github.com/avelar/multipost/internal/store"
	"github.com/avelar/multipost/internal/youtube"
)

// CLI flags
var (
	userFlag      string
	fileFlags     []string
	captionFlag   string
	igAccountFlag []string
	ytChannelFlag []string
	ytTitleFlag   string
	bucketFlag    string
	tableFlag     string
)

// rootCmd is the main Cobra command for the CLI.
var rootCmd = &cobra.Command{
	Use:   "multipost",
	Short: "Publish one post to multiple social destinations",
	Long: `multipost uploads a media selection to S3 and publishes it as one post
to every selected destination: Instagram business accounts (single posts,
reels, and carousels) and YouTube channels.

Destinations publish concurrently and independently — one account failing
or running slow never blocks or corrupts another. Per-destination progress
is printed while the workflows run.

Examples:
  multipost --user u1 --file photo.jpg --caption "Sunset" --ig-account 1784...001
  multipost --user u1 --file 1.jpg --file 2.jpg --file 3.jpg --caption "Trip" --ig-account acct1 --ig-account acct2
  multipost --user u1 --file clip.mp4 --caption "New video" --ig-account acct1 --yt-channel UCabc --yt-title "Weekend in Kyoto"`,
	Run: runMain,
}

func init() {
	rootCmd.Flags().StringVarP(&userFlag, "user", "u", "", "User ID owning the post")
	rootCmd.Flags().StringSliceVarP(&fileFlags, "file", "f", nil, "Media file to publish (repeat for carousel order)")
	rootCmd.Flags().StringVarP(&captionFlag, "caption", "c", "", "Post caption (including hashtags)")
	rootCmd.Flags().StringSliceVar(&igAccountFlag, "ig-account", nil, "Instagram business account ID (repeatable)")
	rootCmd.Flags().StringSliceVar(&ytChannelFlag, "yt-channel", nil, "YouTube channel ID (repeatable)")
	rootCmd.Flags().StringVar(&ytTitleFlag, "yt-title", "", "YouTube video title (required with --yt-channel)")
	rootCmd.Flags().StringVar(&bucketFlag, "bucket", os.Getenv("MULTIPOST_MEDIA_BUCKET"), "S3 bucket for uploaded media")
	rootCmd.Flags().StringVar(&tableFlag, "table", os.Getenv("MULTIPOST_TABLE"), "DynamoDB table for post records")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// runMain is the main execution logic called by Cobra.
func runMain(cmd *cobra.Command, args []string) {
	logging.Init()

	if userFlag == "" {
		log.Fatal().Msg("--user is required")
	}
	if len(fileFlags) == 0 {
		log.Fatal().Msg("at least one --file is required")
	}
	if len(igAccountFlag) == 0 && len(ytChannelFlag) == 0 {
		log.Fatal().Msg("select at least one destination (--ig-account or --yt-channel)")
	}
	if bucketFlag == "" {
		log.Fatal().Msg("media bucket not configured — set MULTIPOST_MEDIA_BUCKET or --bucket")
	}
	if tableFlag == "" {
		log.Fatal().Msg("post table not configured — set MULTIPOST_TABLE or --table")
	}

	igToken := os.Getenv("INSTAGRAM_ACCESS_TOKEN")
	if len(igAccountFlag) > 0 && igToken == "" {
		log.Fatal().Msg("Instagram publishing is not configured — set INSTAGRAM_ACCESS_TOKEN")
	}
	ytToken := os.Getenv("YOUTUBE_ACCESS_TOKEN")
	if len(ytChannelFlag) > 0 && ytToken == "" {
		log.Fatal().Msg("YouTube publishing is not configured — set YOUTUBE_ACCESS_TOKEN")
	}

	ctx := context.Background()

	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load AWS config")
	}

	s3Client := s3.NewFromConfig(cfg)
	presigner := s3.NewPresignClient(s3Client)
	postStore := store.NewDynamoStore(dynamodb.NewFromConfig(cfg), tableFlag)
	uploader := storage.NewUploader(s3Client, presigner, postStore, bucketFlag)

	postID, err := postStore.CreatePost(ctx, userFlag, captionFlag)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create post record")
	}
	log.Info().Str("postId", postID).Msg("Post created")

	items, err := uploadFiles(ctx, uploader, postID)
	if err != nil {
		log.Fatal().Err(err).Msg("Media upload failed — no destination was attempted")
	}

	destinations := make([]media.Destination, 0, len(igAccountFlag)+len(ytChannelFlag))
	for _, acct := range igAccountFlag {
		destinations = append(destinations, media.InstagramDestination{BusinessAccountID: acct})
	}
	for _, chanID := range ytChannelFlag {
		destinations = append(destinations, media.YouTubeDestination{ChannelID: chanID})
	}

	pub := publisher.New(
		instagram.NewClient(igToken),
		youtube.NewClient(ytToken),
		uploader,
		postStore,
		poll.DefaultOptions,
	)

	startTime := time.Now()
	err = pub.PublishAll(ctx, publisher.Request{
		UserID:       userFlag,
		PostID:       postID,
		Items:        items,
		Destinations: destinations,
		Caption:      captionFlag,
		YouTubeTitle: ytTitleFlag,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Publish rejected")
	}

	reportProgress(pub)
	emitMetrics(pub, postID, time.Since(startTime))

	for id, state := range pub.States().Snapshot() {
		if state.Status == publisher.StatusError {
			log.Error().Str("destinationId", id).Str("error", state.Err).Msg("Destination failed")
		} else {
			log.Info().Str("destinationId", id).Str("externalMediaId", state.ExternalID).Msg("Destination posted")
		}
	}
}

// uploadFiles opens the selected files and hands them to the upload
// coordinator in selection order.
func uploadFiles(ctx context.Context, uploader *storage.Uploader, postID string) ([]media.Item, error) {
	files := make([]storage.File, 0, len(fileFlags))
	for _, path := range fileFlags {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", path, err)
		}
		defer f.Close()
		files = append(files, storage.File{Name: filepath.Base(path), Body: f})
	}
	return uploader.UploadAll(ctx, userFlag, postID, files)
}

// reportProgress prints the live state map until every destination
// settles.
func reportProgress(pub *publisher.Publisher) {
	done := make(chan struct{})
	go func() {
		pub.Wait()
		close(done)
	}()

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			for id, state := range pub.States().Snapshot() {
				log.Info().
					Str("destinationId", id).
					Str("status", string(state.Status)).
					Str("phase", string(state.Phase)).
					Msg("Publish progress")
			}
		}
	}
}

// emitMetrics flushes one EMF document per destination with the publish
// outcome, plus the overall duration.
func emitMetrics(pub *publisher.Publisher, postID string, elapsed time.Duration) {
	for id, state := range pub.States().Snapshot() {
		rec := metrics.New("Multipost").
			Dimension("Status", string(state.Status)).
			Property("postId", postID).
			Property("destinationId", id)
		if state.Status == publisher.StatusPosted {
			rec.Count("PublishSuccess")
		} else {
			rec.Count("PublishError")
		}
		rec.Metric("PublishDurationMs", float64(elapsed.Milliseconds()), metrics.UnitMilliseconds)
		rec.Flush()
	}
}
