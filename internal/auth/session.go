package auth

import (
	"context"
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

// DefaultSessionTTL is the lifetime of a login session.
const DefaultSessionTTL = 24 * time.Hour

// SessionStore creates, validates and destroys login sessions. Sessions
// are never silently renewed: an expired session is rejected on use and
// the user must log in again.
type SessionStore struct {
	client    *dynamodb.Client
	tableName string
	ttl       time.Duration

	mu       sync.Mutex
	sessions map[string]model.SessionRecord
	now      func() time.Time
}

// NewSessionStore creates a SessionStore. A nil client selects the
// in-memory fallback.
func NewSessionStore(client *dynamodb.Client, tableName string, ttl time.Duration) *SessionStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionStore{
		client:    client,
		tableName: tableName,
		ttl:       ttl,
		sessions:  make(map[string]model.SessionRecord),
		now:       time.Now,
	}
}

// TTL returns the configured session lifetime.
func (s *SessionStore) TTL() time.Duration { return s.ttl }

// Create issues a new session for the given user identity.
func (s *SessionStore) Create(ctx context.Context, userID string) (*model.SessionRecord, error) {
	now := s.now()
	record := model.SessionRecord{
		SessionID: uuid.New().String(),
		UserID:    userID,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.ttl).Unix(),
	}

	if s.client == nil {
		s.mu.Lock()
		s.sweepLocked(now)
		s.sessions[record.SessionID] = record
		s.mu.Unlock()
		return &record, nil
	}

	item, err := attributevalue.MarshalMap(record)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal session: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store session: %w", err)
	}
	return &record, nil
}

// Validate looks up a session and checks its expiry. Expired sessions are
// deleted and reported as model.ErrSessionExpired.
func (s *SessionStore) Validate(ctx context.Context, sessionID string) (*model.SessionRecord, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("no session id")
	}
	now := s.now()

	if s.client == nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		record, ok := s.sessions[sessionID]
		if !ok {
			return nil, fmt.Errorf("session not found")
		}
		if record.ExpiresAt < now.Unix() {
			delete(s.sessions, sessionID)
			return nil, model.ErrSessionExpired
		}
		return &record, nil
	}

	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"session_id": &types.AttributeValueMemberS{Value: sessionID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if out.Item == nil {
		return nil, fmt.Errorf("session not found")
	}

	var record model.SessionRecord
	if err := attributevalue.UnmarshalMap(out.Item, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	// DynamoDB TTL deletion lags; enforce expiry on read.
	if record.ExpiresAt < now.Unix() {
		_ = s.Delete(ctx, sessionID)
		return nil, model.ErrSessionExpired
	}
	return &record, nil
}

// Delete destroys a session (logout).
func (s *SessionStore) Delete(ctx context.Context, sessionID string) error {
	if s.client == nil {
		s.mu.Lock()
		delete(s.sessions, sessionID)
		s.mu.Unlock()
		return nil
	}

	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"session_id": &types.AttributeValueMemberS{Value: sessionID},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// Sweep removes expired sessions from the in-memory fallback.
func (s *SessionStore) Sweep(ctx context.Context) int {
	if s.client != nil {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sweepLocked(s.now())
}

func (s *SessionStore) sweepLocked(now time.Time) int {
	removed := 0
	for id, record := range s.sessions {
		if record.ExpiresAt < now.Unix() {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}
