package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"realty-assistant/internal/domain"
)

const (
	pkPrefixAudio = "AUDIO#"
	// skManifest holds the chunk count; chunks live under skChunkPrefix.
	skManifest    = "MP3"
	skChunkPrefix = "MP3#"
	// DynamoDB caps items at 400 KB; leave room for keys and attributes.
	chunkBytes = 350 * 1024
	maxChunks  = 64
)

// dynamodbAPI is the minimal DynamoDB interface required by AudioClient.
// Defined here for testability.
type dynamodbAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// AudioClient stores cached speech in a DynamoDB table. Each entry is a
// manifest item plus one or more chunk items under the same partition key.
// Chunks are written first and the manifest last, so an interrupted Put reads
// as a miss. It satisfies audiocache.Storage.
type AudioClient struct {
	api       dynamodbAPI
	tableName string
	now       func() time.Time
	newGen    func() string
}

// New creates a new repository AudioClient.
func New(api dynamodbAPI, tableName string) (*AudioClient, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &AudioClient{api: api, tableName: tableName, now: time.Now, newGen: uuid.NewString}, nil
}

// audioPK returns the partition key for a cache key.
func audioPK(key string) string {
	return pkPrefixAudio + key
}

// chunkSK addresses chunk i of one write generation. A new generation per Put
// keeps an overwrite from mixing its chunks with those of an earlier write.
func chunkSK(gen string, i int) string {
	return fmt.Sprintf("%s%s#%04d", skChunkPrefix, gen, i)
}

// Get reads and reassembles the audio blob for key. A missing manifest yields
// domain.ErrNotFound.
func (c *AudioClient) Get(ctx context.Context, key string) ([]byte, error) {
	if strings.TrimSpace(key) == "" {
		return nil, errors.New("repository: Get: key is required")
	}
	manifest, err := c.getItem(ctx, audioPK(key), skManifest)
	if err != nil {
		return nil, fmt.Errorf("repository: Get manifest: %w", err)
	}
	if len(manifest) == 0 {
		return nil, domain.ErrNotFound
	}
	gen, err := strAttr(manifest, "generation")
	if err != nil {
		return nil, fmt.Errorf("repository: Get manifest: %w", err)
	}
	chunks, err := intAttr(manifest, "chunks")
	if err != nil {
		return nil, fmt.Errorf("repository: Get manifest: %w", err)
	}
	size, err := intAttr(manifest, "bytes")
	if err != nil {
		return nil, fmt.Errorf("repository: Get manifest: %w", err)
	}
	if chunks < 1 || chunks > maxChunks {
		return nil, fmt.Errorf("repository: Get manifest: invalid chunk count %d", chunks)
	}

	data := make([]byte, 0, size)
	for i := 0; i < chunks; i++ {
		item, err := c.getItem(ctx, audioPK(key), chunkSK(gen, i))
		if err != nil {
			return nil, fmt.Errorf("repository: Get chunk %d: %w", i, err)
		}
		if len(item) == 0 {
			return nil, fmt.Errorf("repository: Get chunk %d of %d is missing", i, chunks)
		}
		part, err := binAttr(item, "audio")
		if err != nil {
			return nil, fmt.Errorf("repository: Get decode audio: %w", err)
		}
		data = append(data, part...)
	}
	if len(data) != size {
		return nil, fmt.Errorf("repository: Get: reassembled %d bytes, manifest says %d", len(data), size)
	}
	return data, nil
}

// Put writes or replaces the audio blob for key.
func (c *AudioClient) Put(ctx context.Context, key string, data []byte) error {
	if strings.TrimSpace(key) == "" {
		return errors.New("repository: Put: key is required")
	}
	if len(data) == 0 {
		return errors.New("repository: Put: audio is empty")
	}
	parts := splitChunks(data, chunkBytes)
	if len(parts) > maxChunks {
		return fmt.Errorf("repository: Put: audio is %d bytes, limit is %d", len(data), maxChunks*chunkBytes)
	}

	gen := c.newGen()
	for i, part := range parts {
		if err := c.putItem(ctx, chunkItem(key, gen, i, part)); err != nil {
			return fmt.Errorf("repository: Put chunk %d: %w", i, err)
		}
	}
	if err := c.putItem(ctx, manifestItem(key, gen, len(parts), len(data), c.now().UTC())); err != nil {
		return fmt.Errorf("repository: Put manifest: %w", err)
	}
	return nil
}

func (c *AudioClient) getItem(ctx context.Context, pk, sk string) (map[string]types.AttributeValue, error) {
	out, err := c.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(c.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: pk},
			"SK": &types.AttributeValueMemberS{Value: sk},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if out == nil {
		return nil, nil
	}
	return out.Item, nil
}

func (c *AudioClient) putItem(ctx context.Context, item map[string]types.AttributeValue) error {
	_, err := c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(c.tableName),
		Item:      item,
	})
	return err
}

func splitChunks(data []byte, size int) [][]byte {
	var parts [][]byte
	for len(data) > size {
		parts = append(parts, data[:size])
		data = data[size:]
	}
	return append(parts, data)
}

func manifestItem(key, gen string, chunks, size int, createdAt time.Time) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK":         &types.AttributeValueMemberS{Value: audioPK(key)},
		"SK":         &types.AttributeValueMemberS{Value: skManifest},
		"cacheKey":   &types.AttributeValueMemberS{Value: key},
		"generation": &types.AttributeValueMemberS{Value: gen},
		"chunks":     &types.AttributeValueMemberN{Value: strconv.Itoa(chunks)},
		"bytes":      &types.AttributeValueMemberN{Value: strconv.Itoa(size)},
		"createdAt":  &types.AttributeValueMemberS{Value: createdAt.Format(time.RFC3339)},
	}
}

func chunkItem(key, gen string, i int, part []byte) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK":    &types.AttributeValueMemberS{Value: audioPK(key)},
		"SK":    &types.AttributeValueMemberS{Value: chunkSK(gen, i)},
		"audio": &types.AttributeValueMemberB{Value: part},
	}
}

func strAttr(item map[string]types.AttributeValue, key string) (string, error) {
	v, ok := item[key].(*types.AttributeValueMemberS)
	if !ok || v.Value == "" {
		return "", fmt.Errorf("repository: missing string attribute %q", key)
	}
	return v.Value, nil
}

func intAttr(item map[string]types.AttributeValue, key string) (int, error) {
	v, ok := item[key].(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("repository: missing number attribute %q", key)
	}
	n, err := strconv.Atoi(v.Value)
	if err != nil {
		return 0, fmt.Errorf("repository: attribute %q: %w", key, err)
	}
	return n, nil
}

func binAttr(item map[string]types.AttributeValue, key string) ([]byte, error) {
	v, ok := item[key]
	if !ok {
		return nil, fmt.Errorf("repository: missing attribute %q", key)
	}
	b, ok := v.(*types.AttributeValueMemberB)
	if !ok {
		return nil, fmt.Errorf("repository: attribute %q is not binary", key)
	}
	return b.Value, nil
}
