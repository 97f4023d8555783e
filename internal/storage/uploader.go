// Package storage implements the upload coordinator: it writes each
// selected media file to S3 under a deterministic key, records the upload
// against the post, and hands back the ordered media items the publish
// workflows consume. It also produces the presigned GET URLs providers use
// to fetch the media.
package storage

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"

	"github.com/avelar/multipost/internal/media"
	"github.com/avelar/multipost/internal/store"
)

// ObjectPutAPI is the slice of the S3 client the uploader needs.
type ObjectPutAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// PresignGetAPI is the slice of the S3 presign client the uploader needs.
type PresignGetAPI interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// MediaRecorder persists the metadata record for one uploaded file.
type MediaRecorder interface {
	PutMediaRecord(ctx context.Context, postID string, rec *store.MediaRecord) error
}

// UploadFailure aborts the whole publish attempt: no destination workflow
// can start without the full set of uploaded media paths.
type UploadFailure struct {
	Filename string
	Err      error
}

func (e *UploadFailure) Error() string {
	return fmt.Sprintf("upload failed for %s: %v", e.Filename, e.Err)
}

func (e *UploadFailure) Unwrap() error { return e.Err }

// File is one validated media file selected for upload.
type File struct {
	Name string
	Body io.Reader
}

// Uploader uploads the media selection to S3 and records each upload.
type Uploader struct {
	objects   ObjectPutAPI
	presigner PresignGetAPI
	records   MediaRecorder
	bucket    string
}

// NewUploader creates an Uploader writing to the given bucket.
func NewUploader(objects ObjectPutAPI, presigner PresignGetAPI, records MediaRecorder, bucket string) *Uploader {
	return &Uploader{
		objects:   objects,
		presigner: presigner,
		records:   records,
		bucket:    bucket,
	}
}

// objectKey derives the deterministic storage key for one media file:
// {userId}/{postId}/{index}.{extension}.
func objectKey(userID, postID string, index int, filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	return fmt.Sprintf("%s/%s/%d%s", userID, postID, index, ext)
}

// UploadAll uploads every file in selection order and records each upload
// against the post. The returned items carry the index assigned at upload
// time, which defines carousel ordering. A failure on any file (storage
// write or metadata insert) aborts the whole post with *UploadFailure;
// there is no partial retry.
func (u *Uploader) UploadAll(ctx context.Context, userID, postID string, files []File) ([]media.Item, error) {
	items := make([]media.Item, 0, len(files))

	for i, f := range files {
		key := objectKey(userID, postID, i, f.Name)
		contentType := media.ContentType(f.Name)

		log.Debug().
			Str("key", key).
			Str("contentType", contentType).
			Int("index", i).
			Msg("Uploading media file")

		_, err := u.objects.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      &u.bucket,
			Key:         &key,
			Body:        f.Body,
			ContentType: &contentType,
		})
		if err != nil {
			return nil, &UploadFailure{Filename: f.Name, Err: fmt.Errorf("put object: %w", err)}
		}

		mediaType := media.TypeForFilename(f.Name)
		rec := &store.MediaRecord{
			Index:     i,
			Key:       key,
			MediaType: string(mediaType),
			UserID:    userID,
		}
		if err := u.records.PutMediaRecord(ctx, postID, rec); err != nil {
			return nil, &UploadFailure{Filename: f.Name, Err: fmt.Errorf("record upload: %w", err)}
		}

		items = append(items, media.Item{Key: key, Type: mediaType, Index: i})
	}

	log.Info().Str("postId", postID).Int("items", len(items)).Msg("Media upload complete")
	return items, nil
}

// PresignGet creates a pre-signed GET URL for an uploaded object, used by
// providers to fetch the media over plain HTTPS.
func (u *Uploader) PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error) {
	result, err := u.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: &u.bucket, Key: &key,
	}, func(opts *s3.PresignOptions) {
		opts.Expires = expiry
	})
	if err != nil {
		return "", fmt.Errorf("presign GetObject %s: %w", key, err)
	}
	return result.URL, nil
}
