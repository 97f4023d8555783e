// Package store provides persistent storage for posts, their uploaded
// media records, and per-destination publish results, backed by DynamoDB.
//
// The package uses a single-table design where all records for a post
// share a partition key (POST#{postId}). Sort keys distinguish record
// types: META, MEDIA#{index}, and RESULT#{destinationId}.
package store

import (
	"context"
)

// PostStore defines the persistence interface for the publish flow.
// Each method is safe for concurrent use. All Get methods return
// (nil, nil) when the requested record does not exist. All Put methods
// perform full-item replacement (upsert semantics).
type PostStore interface {
	// CreatePost creates the parent post record and returns its ID.
	CreatePost(ctx context.Context, userID, caption string) (string, error)

	// GetPost retrieves a post by ID. Returns nil, nil if not found.
	GetPost(ctx context.Context, postID string) (*Post, error)

	// PutMediaRecord records one uploaded media file against a post.
	PutMediaRecord(ctx context.Context, postID string, rec *MediaRecord) error

	// GetMediaRecords retrieves all media records for a post, in upload order.
	GetMediaRecords(ctx context.Context, postID string) ([]*MediaRecord, error)

	// PutPublishResult records a successful publish to one destination.
	// Written exactly once per destination; never mutated afterwards.
	PutPublishResult(ctx context.Context, postID string, res *PublishResult) error

	// GetPublishResults retrieves all publish results for a post.
	GetPublishResults(ctx context.Context, postID string) ([]*PublishResult, error)
}

// --- Domain types ---
//
// Each type maps to a DynamoDB record. Fields derived from PK/SK are
// excluded from DynamoDB attributes on write (via dynamodbav:"-") and
// re-derived on read.

// Post is the parent record for one publish attempt (DynamoDB SK = META).
type Post struct {
	ID        string `json:"id" dynamodbav:"-"`
	UserID    string `json:"userId" dynamodbav:"userId"`
	Caption   string `json:"caption,omitempty" dynamodbav:"caption,omitempty"`
	CreatedAt int64  `json:"createdAt" dynamodbav:"createdAt"`
}

// MediaRecord is one uploaded media file (DynamoDB SK = MEDIA#{index}).
// Index preserves the user's selection order, which defines carousel
// item order.
type MediaRecord struct {
	PostID     string `json:"-" dynamodbav:"-"`
	Index      int    `json:"index" dynamodbav:"-"`
	Key        string `json:"key" dynamodbav:"key"`
	MediaType  string `json:"mediaType" dynamodbav:"mediaType"`
	UserID     string `json:"userId" dynamodbav:"userId"`
	UploadedAt int64  `json:"uploadedAt" dynamodbav:"uploadedAt"`
}

// PublishResult is the outcome of one successful destination publish
// (DynamoDB SK = RESULT#{destinationId}).
type PublishResult struct {
	PostID          string `json:"-" dynamodbav:"-"`
	DestinationID   string `json:"destinationId" dynamodbav:"-"`
	Platform        string `json:"platform" dynamodbav:"platform"`
	ExternalMediaID string `json:"externalMediaId" dynamodbav:"externalMediaId"`
	Caption         string `json:"caption,omitempty" dynamodbav:"caption,omitempty"`
	UserID          string `json:"userId" dynamodbav:"userId"`
	PublishedAt     int64  `json:"publishedAt" dynamodbav:"publishedAt"`
}
