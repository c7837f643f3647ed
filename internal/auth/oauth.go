package auth

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"golang.org/x/oauth2"

	"github.com/HandsomeSB/Askit/internal/crypto"
	"github.com/HandsomeSB/Askit/internal/model"
)

// Service handles the OAuth2 flow and refresh token management.
type Service struct {
	oauthConfig  *oauth2.Config
	dynamoClient *dynamodb.Client
	tableName    string
	kmsService   crypto.Encryptor

	// In-memory fallback
	tokens map[string]model.UserToken
	mu     sync.RWMutex
}

// Config returns the OAuth2 config.
func (s *Service) Config() *oauth2.Config {
	return s.oauthConfig
}

// NewService creates a new auth Service.
// The oauthConfig should be constructed by the caller (e.g., from environment variables).
func NewService(oauthConfig *oauth2.Config, dynamoClient *dynamodb.Client, tableName string, kmsService crypto.Encryptor) *Service {
	return &Service{
		oauthConfig:  oauthConfig,
		dynamoClient: dynamoClient,
		tableName:    tableName,
		kmsService:   kmsService,
		tokens:       make(map[string]model.UserToken),
	}
}

// GenerateAuthURL returns the URL to redirect the user to for Google login.
// The state must come from StateStore.Issue so the callback can verify it.
func (s *Service) GenerateAuthURL(state string) string {
	return s.oauthConfig.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// ExchangeCode exchanges the authorization code for an access token.
func (s *Service) ExchangeCode(ctx context.Context, code string) (*oauth2.Token, error) {
	return s.oauthConfig.Exchange(ctx, code)
}

// SaveToken encrypts the refresh token and stores it in DynamoDB.
func (s *Service) SaveToken(ctx context.Context, userID string, token *oauth2.Token) error {
	if token.RefreshToken == "" {
		return fmt.Errorf("no refresh token in response")
	}

	encrypted, err := s.kmsService.Encrypt(ctx, token.RefreshToken)
	if err != nil {
		return fmt.Errorf("failed to encrypt refresh token: %w", err)
	}

	userToken := model.UserToken{
		UserID:                userID,
		EncryptedRefreshToken: encrypted,
		UpdatedAt:             time.Now(),
	}

	// In-memory fallback
	if s.dynamoClient == nil {
		s.mu.Lock()
		s.tokens[userID] = userToken
		s.mu.Unlock()
		return nil
	}

	item, err := attributevalue.MarshalMap(userToken)
	if err != nil {
		return fmt.Errorf("failed to marshal user token: %w", err)
	}

	_, err = s.dynamoClient.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("failed to save token to DynamoDB: %w", err)
	}

	return nil
}

// GetUserToken retrieves the UserToken from DynamoDB.
func (s *Service) GetUserToken(ctx context.Context, userID string) (*model.UserToken, error) {
	var userToken model.UserToken

	if s.dynamoClient == nil {
		s.mu.RLock()
		t, ok := s.tokens[userID]
		s.mu.RUnlock()
		if !ok {
			return nil, fmt.Errorf("user not found")
		}
		userToken = t
	} else {
		out, err := s.dynamoClient.GetItem(ctx, &dynamodb.GetItemInput{
			TableName: aws.String(s.tableName),
			Key: map[string]types.AttributeValue{
				"user_id": &types.AttributeValueMemberS{Value: userID},
			},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to get item from DynamoDB: %w", err)
		}
		if out.Item == nil {
			return nil, fmt.Errorf("user not found")
		}

		err = attributevalue.UnmarshalMap(out.Item, &userToken)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal user token: %w", err)
		}
	}
	return &userToken, nil
}

// GetClient returns an authenticated http.Client for the user.
func (s *Service) GetClient(ctx context.Context, userID string) (*http.Client, error) {
	userToken, err := s.GetUserToken(ctx, userID)
	if err != nil {
		return nil, err
	}

	refreshToken, err := s.kmsService.Decrypt(ctx, userToken.EncryptedRefreshToken)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt refresh token: %w", err)
	}

	token := &oauth2.Token{
		RefreshToken: refreshToken,
		Expiry:       time.Now().Add(-1 * time.Hour), // Force refresh
	}

	tokenSource := s.oauthConfig.TokenSource(ctx, token)

	return oauth2.NewClient(ctx, tokenSource), nil
}
