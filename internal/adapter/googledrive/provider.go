package googledrive

import (
	"context"
	"fmt"
	"time"

	"github.com/HandsomeSB/Askit/internal/adapter"
	"github.com/HandsomeSB/Askit/internal/auth"
)

// Provider implements adapter.StorageProvider for Google Drive.
type Provider struct {
	authService *auth.Service
	timeout     time.Duration
}

// NewProvider creates a new Google Drive provider.
func NewProvider(authService *auth.Service, timeout time.Duration) *Provider {
	return &Provider{authService: authService, timeout: timeout}
}

// GetAdapter returns a DriveAdapter for the given user ID.
func (p *Provider) GetAdapter(ctx context.Context, userID string) (adapter.StorageAdapter, error) {
	client, err := p.authService.GetClient(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get authenticated client: %w", err)
	}

	storage, err := NewDriveAdapter(ctx, client, p.timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to create drive adapter: %w", err)
	}

	return storage, nil
}
