package dynamodb

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/dgduncan/wheretogo"
	"github.com/dgduncan/wheretogo/caches"
)

// DefaultTable is the table used when Config.Table is empty.
const DefaultTable = "wheretogo_cache"

// Config defines the configuration options for the DynamoDB cache implementation.
type Config struct {
	DeleteExpiredItems bool // Controls if a the expired_at TTL property is put in the database to allow automatic deletion of expired items

	TTL   time.Duration // How long a cached event list stays readable. Zero uses caches.DefaultExpiredDuration.
	Table string
}

// API is the subset of *dynamodb.Client used by Cache.
type API interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// Cache implements the wheretogo.Cache interface using Amazon DynamoDB as the storage backend.
type Cache struct {
	client API

	table         string
	ttl           time.Duration
	setExpiration bool
	now           func() time.Time
}

type cacheItem struct {
	Key       string `dynamodbav:"key"`
	Events    []byte `dynamodbav:"events"`
	CreatedAt int64  `dynamodbav:"created_at"`
	ExpiredAt int64  `dynamodbav:"expired_at,omitempty"`
}

func (c *Cache) key(k string) (map[string]types.AttributeValue, error) {
	key, err := attributevalue.Marshal(k)
	if err != nil {
		return nil, err
	}
	return map[string]types.AttributeValue{"key": key}, nil
}

// Get retrieves the event list stored under k. An item at least TTL old is
// deleted and reported as wheretogo.ErrNotFound.
func (c *Cache) Get(ctx context.Context, k string) ([]wheretogo.Event, error) {
	key, err := c.key(k)
	if err != nil {
		return nil, err
	}

	output, err := c.client.GetItem(ctx, &dynamodb.GetItemInput{
		Key:            key,
		ConsistentRead: aws.Bool(true),
		TableName:      aws.String(c.table),
	})
	if err != nil {
		return nil, err
	}

	if output.Item == nil {
		return nil, wheretogo.ErrNotFound
	}

	var item cacheItem
	if err := attributevalue.UnmarshalMap(output.Item, &item); err != nil {
		return nil, err
	}

	if caches.Expired(time.Unix(0, item.CreatedAt), c.now(), c.ttl) {
		if err := c.evict(ctx, key, item.CreatedAt); err != nil {
			return nil, err
		}
		return nil, wheretogo.ErrNotFound
	}

	return decodeEvents(item.Events)
}

// evict deletes the item only if it is still the one written at createdAt.
func (c *Cache) evict(ctx context.Context, key map[string]types.AttributeValue, createdAt int64) error {
	_, err := c.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:           aws.String(c.table),
		Key:                 key,
		ConditionExpression: aws.String("created_at = :created_at"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":created_at": &types.AttributeValueMemberN{
				Value: strconv.FormatInt(createdAt, 10),
			},
		},
	})

	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return nil
	}
	return err
}

// Set stores the event list under k, replacing any previous item.
func (c *Cache) Set(ctx context.Context, k string, v []wheretogo.Event) error {
	createdAt := c.now()

	enc, err := encodeEvents(v)
	if err != nil {
		return err
	}

	i := cacheItem{
		Key:       k,
		Events:    enc,
		CreatedAt: createdAt.UnixNano(),
	}
	if c.setExpiration {
		i.ExpiredAt = createdAt.Add(c.ttl).Unix()
	}

	av, err := attributevalue.MarshalMap(i)
	if err != nil {
		return err
	}

	input := dynamodb.PutItemInput{
		TableName: aws.String(c.table),
		Item:      av,
	}

	_, err = c.client.PutItem(ctx, &input)
	return err
}

// Delete removes the item stored under k. It returns wheretogo.ErrNotFound
// if there is none.
func (c *Cache) Delete(ctx context.Context, k string) error {
	key, err := c.key(k)
	if err != nil {
		return err
	}

	output, err := c.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:    aws.String(c.table),
		Key:          key,
		ReturnValues: types.ReturnValueAllOld,
	})
	if err != nil {
		return err
	}

	if len(output.Attributes) == 0 {
		return wheretogo.ErrNotFound
	}

	return nil
}

// New creates a new DynamoDB cache instance with the provided configuration.
// It validates the configuration and sets default values where appropriate.
// Returns an error if the client is nil.
func New(ctx context.Context, client API, config *Config) (*Cache, error) {
	if client == nil {
		return nil, caches.ValidationError{
			Reason: "nil client",
		}
	}

	if config == nil {
		config = &Config{}
	}

	var ttl time.Duration
	if config.TTL == 0 {
		ttl = caches.DefaultExpiredDuration
	} else {
		ttl = config.TTL
	}

	table := config.Table
	if table == "" {
		table = DefaultTable
	}

	return &Cache{
		client: client,

		table:         table,
		ttl:           ttl,
		setExpiration: config.DeleteExpiredItems,
		now:           time.Now,
	}, nil
}
