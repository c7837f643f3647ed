package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/HandsomeSB/Askit/internal/model"
)

// DefaultStateTTL bounds how long an issued OAuth state token stays valid.
const DefaultStateTTL = 10 * time.Minute

// StateStore issues and consumes single-use OAuth state tokens.
// With a DynamoDB client the table's TTL attribute sweeps expired tokens;
// the in-memory fallback sweeps lazily on access.
type StateStore struct {
	client    *dynamodb.Client
	tableName string
	ttl       time.Duration

	mu     sync.Mutex
	tokens map[string]model.OAuthStateToken
	now    func() time.Time
}

// NewStateStore creates a StateStore. A nil client selects the in-memory
// fallback, as with the other DynamoDB-backed stores.
func NewStateStore(client *dynamodb.Client, tableName string, ttl time.Duration) *StateStore {
	if ttl <= 0 {
		ttl = DefaultStateTTL
	}
	return &StateStore{
		client:    client,
		tableName: tableName,
		ttl:       ttl,
		tokens:    make(map[string]model.OAuthStateToken),
		now:       time.Now,
	}
}

// Issue creates and stores a fresh state token and returns its value.
func (s *StateStore) Issue(ctx context.Context) (string, error) {
	now := s.now()
	token := model.OAuthStateToken{
		StateValue: uuid.New().String(),
		IssuedAt:   now,
		ExpiresAt:  now.Add(s.ttl).Unix(),
	}

	if s.client == nil {
		s.mu.Lock()
		s.sweepLocked(now)
		s.tokens[token.StateValue] = token
		s.mu.Unlock()
		return token.StateValue, nil
	}

	item, err := attributevalue.MarshalMap(token)
	if err != nil {
		return "", fmt.Errorf("failed to marshal state token: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	})
	if err != nil {
		return "", fmt.Errorf("failed to store state token: %w", err)
	}
	return token.StateValue, nil
}

// Consume validates and deletes a state token in one step. A token can be
// consumed exactly once; a missing, already-consumed, or expired token
// yields model.ErrInvalidState.
func (s *StateStore) Consume(ctx context.Context, state string) error {
	if state == "" {
		return model.ErrInvalidState
	}
	now := s.now()

	if s.client == nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.sweepLocked(now)
		token, ok := s.tokens[state]
		if !ok || token.ExpiresAt < now.Unix() {
			return model.ErrInvalidState
		}
		delete(s.tokens, state)
		return nil
	}

	// Conditional delete: succeeds only for an existing, unexpired token,
	// so two callbacks racing on the same value cannot both pass.
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"state_value": &types.AttributeValueMemberS{Value: state},
		},
		ConditionExpression: aws.String("attribute_exists(state_value) AND expires_at >= :now"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":now": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", now.Unix())},
		},
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return model.ErrInvalidState
		}
		return fmt.Errorf("failed to consume state token: %w", err)
	}
	return nil
}

// Sweep removes expired tokens from the in-memory fallback and returns how
// many were removed. DynamoDB tables rely on the expires_at TTL attribute.
func (s *StateStore) Sweep(ctx context.Context) int {
	if s.client != nil {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sweepLocked(s.now())
}

func (s *StateStore) sweepLocked(now time.Time) int {
	removed := 0
	for state, token := range s.tokens {
		if token.ExpiresAt < now.Unix() {
			delete(s.tokens, state)
			removed++
		}
	}
	return removed
}
