package index

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DefaultPassTTL bounds how long an indexing pass may hold a folder lock
// before a crashed pass is considered abandoned.
const DefaultPassTTL = 15 * time.Minute

// ErrPassInFlight is returned when a folder already has a running
// indexing pass.
var ErrPassInFlight = errors.New("an indexing pass is already running for this folder")

// Locker serializes indexing passes per folder. Passes for different
// folders proceed independently.
type Locker interface {
	Acquire(ctx context.Context, folderID string) error
	Release(ctx context.Context, folderID string) error
}

// PassLock is a DynamoDB-backed Locker using a conditional put with TTL,
// so a crashed pass never wedges its folder permanently.
type PassLock struct {
	client    *dynamodb.Client
	tableName string
	ttl       time.Duration
}

// NewPassLock creates a PassLock.
func NewPassLock(client *dynamodb.Client, tableName string) *PassLock {
	return &PassLock{
		client:    client,
		tableName: tableName,
		ttl:       DefaultPassTTL,
	}
}

// Acquire takes the folder's lock. It succeeds if no lock exists or the
// existing lock has expired; otherwise it returns ErrPassInFlight.
func (l *PassLock) Acquire(ctx context.Context, folderID string) error {
	now := time.Now().Unix()
	expiresAt := now + int64(l.ttl.Seconds())

	_, err := l.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(l.tableName),
		Item: map[string]types.AttributeValue{
			"folder_id":  &types.AttributeValueMemberS{Value: folderID},
			"expires_at": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", expiresAt)},
		},
		ConditionExpression: aws.String("attribute_not_exists(folder_id) OR expires_at < :now"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":now": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", now)},
		},
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return ErrPassInFlight
		}
		return fmt.Errorf("failed to acquire folder lock: %w", err)
	}
	return nil
}

// Release drops the folder's lock.
func (l *PassLock) Release(ctx context.Context, folderID string) error {
	_, err := l.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(l.tableName),
		Key: map[string]types.AttributeValue{
			"folder_id": &types.AttributeValueMemberS{Value: folderID},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to release folder lock: %w", err)
	}
	return nil
}

// MemoryLock is an in-process Locker for dev mode and tests.
type MemoryLock struct {
	mu    sync.Mutex
	ttl   time.Duration
	locks map[string]int64
}

// NewMemoryLock creates a MemoryLock.
func NewMemoryLock() *MemoryLock {
	return &MemoryLock{
		ttl:   DefaultPassTTL,
		locks: make(map[string]int64),
	}
}

// Acquire takes the folder's lock or returns ErrPassInFlight.
func (l *MemoryLock) Acquire(_ context.Context, folderID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now().Unix()
	if expiresAt, ok := l.locks[folderID]; ok && expiresAt >= now {
		return ErrPassInFlight
	}
	l.locks[folderID] = now + int64(l.ttl.Seconds())
	return nil
}

// Release drops the folder's lock.
func (l *MemoryLock) Release(_ context.Context, folderID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.locks, folderID)
	return nil
}
