package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/joshdurbin/shortlink-console/internal/domain"
)

// URLService is a mock implementation of controller.URLService
type URLService struct {
	mock.Mock
}

// ListURLs returns one page of links
func (m *URLService) ListURLs(ctx context.Context, page, size int) (*domain.ListURLsResponse, error) {
	args := m.Called(ctx, page, size)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ListURLsResponse), args.Error(1)
}

// DeleteURL deletes a link
func (m *URLService) DeleteURL(ctx context.Context, shortCode string) error {
	args := m.Called(ctx, shortCode)
	return args.Error(0)
}

// UpdateURLExpiry updates a link's expiry
func (m *URLService) UpdateURLExpiry(ctx context.Context, shortCode string, expiresAt time.Time) error {
	args := m.Called(ctx, shortCode, expiresAt)
	return args.Error(0)
}
