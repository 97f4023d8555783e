package store

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// DynamoDB key constants for the single-table design.
const (
	pkPrefix = "POST#"
	skMeta   = "META"
	skMedia  = "MEDIA#"
	skResult = "RESULT#"
)

// DynamoStore implements PostStore using AWS DynamoDB.
type DynamoStore struct {
	client    *dynamodb.Client
	tableName string
}

// Compile-time interface check.
var _ PostStore = (*DynamoStore)(nil)

// NewDynamoStore creates a DynamoStore for the given table.
// The client should be initialized from the shared AWS config.
func NewDynamoStore(client *dynamodb.Client, tableName string) *DynamoStore {
	return &DynamoStore{
		client:    client,
		tableName: tableName,
	}
}

// --- Internal helpers ---

// postPK returns the partition key for a post.
func postPK(postID string) string {
	return pkPrefix + postID
}

// mediaSK returns the sort key for a media record. The index is
// zero-padded so lexicographic SK order matches upload order.
func mediaSK(index int) string {
	return fmt.Sprintf("%s%04d", skMedia, index)
}

// putItem marshals a domain object and writes it to DynamoDB with PK and SK.
// The domain object should use dynamodbav:"-" for fields derived from PK/SK.
func (s *DynamoStore) putItem(ctx context.Context, pk, sk string, data interface{}) error {
	item, err := attributevalue.MarshalMap(data)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	item["PK"] = &types.AttributeValueMemberS{Value: pk}
	item["SK"] = &types.AttributeValueMemberS{Value: sk}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: &s.tableName,
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("PutItem PK=%s SK=%s: %w", pk, sk, err)
	}
	return nil
}

// getItem reads a single item from DynamoDB and unmarshals it into out.
// Returns false if the item does not exist (out is not modified).
func (s *DynamoStore) getItem(ctx context.Context, pk, sk string, out interface{}) (bool, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: pk},
			"SK": &types.AttributeValueMemberS{Value: sk},
		},
	})
	if err != nil {
		return false, fmt.Errorf("GetItem PK=%s SK=%s: %w", pk, sk, err)
	}
	if result.Item == nil {
		return false, nil
	}
	if err := attributevalue.UnmarshalMap(result.Item, out); err != nil {
		return false, fmt.Errorf("unmarshal PK=%s SK=%s: %w", pk, sk, err)
	}
	return true, nil
}

// queryBySKPrefix queries all items for a post where SK begins with the
// given prefix. Returns raw DynamoDB items for flexible processing by the
// caller.
func (s *DynamoStore) queryBySKPrefix(ctx context.Context, postID, skPrefix string) ([]map[string]types.AttributeValue, error) {
	pk := postPK(postID)

	input := &dynamodb.QueryInput{
		TableName:              &s.tableName,
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :skPrefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":       &types.AttributeValueMemberS{Value: pk},
			":skPrefix": &types.AttributeValueMemberS{Value: skPrefix},
		},
	}

	var allItems []map[string]types.AttributeValue

	// Handle pagination — DynamoDB returns up to 1MB per Query call.
	for {
		result, err := s.client.Query(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("Query PK=%s SK prefix=%s: %w", pk, skPrefix, err)
		}
		allItems = append(allItems, result.Items...)

		if result.LastEvaluatedKey == nil {
			break
		}
		input.ExclusiveStartKey = result.LastEvaluatedKey
	}

	return allItems, nil
}

// skValue extracts the string SK attribute from a raw item.
func skValue(item map[string]types.AttributeValue) string {
	if sk, ok := item["SK"].(*types.AttributeValueMemberS); ok {
		return sk.Value
	}
	return ""
}

// --- Post operations ---

func (s *DynamoStore) CreatePost(ctx context.Context, userID, caption string) (string, error) {
	post := &Post{
		ID:        uuid.NewString(),
		UserID:    userID,
		Caption:   caption,
		CreatedAt: time.Now().Unix(),
	}

	if err := s.putItem(ctx, postPK(post.ID), skMeta, post); err != nil {
		return "", fmt.Errorf("create post for user %s: %w", userID, err)
	}

	log.Debug().Str("postId", post.ID).Str("userId", userID).Msg("Post record created")
	return post.ID, nil
}

func (s *DynamoStore) GetPost(ctx context.Context, postID string) (*Post, error) {
	var post Post
	found, err := s.getItem(ctx, postPK(postID), skMeta, &post)
	if err != nil {
		return nil, fmt.Errorf("get post %s: %w", postID, err)
	}
	if !found {
		return nil, nil
	}
	post.ID = postID
	return &post, nil
}

// --- Media operations ---

func (s *DynamoStore) PutMediaRecord(ctx context.Context, postID string, rec *MediaRecord) error {
	if rec.UploadedAt == 0 {
		rec.UploadedAt = time.Now().Unix()
	}

	if err := s.putItem(ctx, postPK(postID), mediaSK(rec.Index), rec); err != nil {
		return fmt.Errorf("put media record %d for post %s: %w", rec.Index, postID, err)
	}

	log.Debug().Str("postId", postID).Int("index", rec.Index).Str("key", rec.Key).Msg("Media record persisted")
	return nil
}

func (s *DynamoStore) GetMediaRecords(ctx context.Context, postID string) ([]*MediaRecord, error) {
	items, err := s.queryBySKPrefix(ctx, postID, skMedia)
	if err != nil {
		return nil, fmt.Errorf("get media records for post %s: %w", postID, err)
	}

	records := make([]*MediaRecord, 0, len(items))
	for _, item := range items {
		var rec MediaRecord
		if err := attributevalue.UnmarshalMap(item, &rec); err != nil {
			return nil, fmt.Errorf("unmarshal media record: %w", err)
		}
		rec.PostID = postID
		idx, err := strconv.Atoi(strings.TrimPrefix(skValue(item), skMedia))
		if err != nil {
			return nil, fmt.Errorf("parse media index from SK %q: %w", skValue(item), err)
		}
		rec.Index = idx
		records = append(records, &rec)
	}

	sort.Slice(records, func(i, j int) bool { return records[i].Index < records[j].Index })
	return records, nil
}

// --- Publish result operations ---

func (s *DynamoStore) PutPublishResult(ctx context.Context, postID string, res *PublishResult) error {
	if res.PublishedAt == 0 {
		res.PublishedAt = time.Now().Unix()
	}

	if err := s.putItem(ctx, postPK(postID), skResult+res.DestinationID, res); err != nil {
		return fmt.Errorf("put publish result for destination %s: %w", res.DestinationID, err)
	}

	log.Debug().
		Str("postId", postID).
		Str("destinationId", res.DestinationID).
		Str("externalMediaId", res.ExternalMediaID).
		Msg("Publish result persisted")
	return nil
}

func (s *DynamoStore) GetPublishResults(ctx context.Context, postID string) ([]*PublishResult, error) {
	items, err := s.queryBySKPrefix(ctx, postID, skResult)
	if err != nil {
		return nil, fmt.Errorf("get publish results for post %s: %w", postID, err)
	}

	results := make([]*PublishResult, 0, len(items))
	for _, item := range items {
		var res PublishResult
		if err := attributevalue.UnmarshalMap(item, &res); err != nil {
			return nil, fmt.Errorf("unmarshal publish result: %w", err)
		}
		res.PostID = postID
		res.DestinationID = strings.TrimPrefix(skValue(item), skResult)
		results = append(results, &res)
	}

	return results, nil
}
