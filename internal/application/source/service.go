package source

import (
	"context"
	"errors"

	"github.com/retailpulse/backend/internal/domain/shared"
	"github.com/retailpulse/backend/internal/domain/source"
	"go.uber.org/zap"
)

// TabLister reads the tab titles of a spreadsheet.
type TabLister interface {
	ListTabs(ctx context.Context, sheetID string) ([]string, error)
}

// Subscriber manages the change channel kept on a source.
type Subscriber interface {
	Subscribe(ctx context.Context, src *source.LinkedSource) (*source.WatchSubscription, error)
	Unsubscribe(ctx context.Context, userID string) error
}

// Invalidator drops a user's cached report.
type Invalidator interface {
	Invalidate(userID string)
}

// ConnectResponse is returned after linking a spreadsheet.
type ConnectResponse struct {
	Message         string   `json:"message"`
	SheetURL        string   `json:"sheetUrl"`
	SheetsAvailable []string `json:"sheetsAvailable"`
}

// LinkedResponse reports the linked spreadsheet URL, null when none.
type LinkedResponse struct {
	SheetURL *string `json:"sheetUrl"`
	Message  string  `json:"message,omitempty"`
}

// Service is the registry of linked spreadsheets.
type Service struct {
	repo       source.SourceRepository
	tabs       TabLister
	subscriber Subscriber
	cache      Invalidator
	logger     *zap.Logger
}

// NewService creates a new source service
func NewService(repo source.SourceRepository, tabs TabLister, subscriber Subscriber, cache Invalidator, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:       repo,
		tabs:       tabs,
		subscriber: subscriber,
		cache:      cache,
		logger:     logger,
	}
}

// Connect links sheetURL to userID, replacing any previous source, and
// subscribes to its changes.
func (s *Service) Connect(ctx context.Context, userID, sheetURL string) (*ConnectResponse, error) {
	src, err := source.NewLinkedSource(userID, sheetURL)
	if err != nil {
		return nil, err
	}

	tabs, err := s.tabs.ListTabs(ctx, src.SheetID)
	if err != nil {
		return nil, err
	}
	if len(tabs) == 0 {
		return nil, shared.ErrNoTabs
	}

	if err := s.subscriber.Unsubscribe(ctx, userID); err != nil {
		s.logger.Warn("Failed to release previous subscription", zap.String("user_id", userID), zap.Error(err))
	}
	if err := s.repo.Replace(ctx, src); err != nil {
		return nil, err
	}
	s.cache.Invalidate(userID)

	if _, err := s.subscriber.Subscribe(ctx, src); err != nil {
		s.logger.Error("Failed to subscribe to spreadsheet changes",
			zap.String("user_id", userID),
			zap.String("sheet_id", src.SheetID),
			zap.Error(err))
		return nil, err
	}

	s.logger.Info("Spreadsheet connected",
		zap.String("user_id", userID),
		zap.String("sheet_id", src.SheetID),
		zap.Int("tabs", len(tabs)))

	return &ConnectResponse{
		Message:         "Google Sheet connected & webhook subscribed.",
		SheetURL:        src.SheetURL,
		SheetsAvailable: tabs,
	}, nil
}

// GetLinked returns the user's linked URL.
func (s *Service) GetLinked(ctx context.Context, userID string) (*LinkedResponse, error) {
	src, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return &LinkedResponse{Message: "No inventory connected."}, nil
		}
		return nil, err
	}
	url := src.SheetURL
	return &LinkedResponse{SheetURL: &url}, nil
}

// Disconnect closes the change channel and removes the user's source.
func (s *Service) Disconnect(ctx context.Context, userID string) error {
	if err := s.subscriber.Unsubscribe(ctx, userID); err != nil {
		s.logger.Warn("Failed to release subscription on disconnect", zap.String("user_id", userID), zap.Error(err))
	}
	if _, err := s.repo.DeleteByUserID(ctx, userID); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return shared.WithMessage(shared.ErrNotFound, "No inventory connected")
		}
		return err
	}
	s.cache.Invalidate(userID)
	s.logger.Info("Spreadsheet disconnected", zap.String("user_id", userID))
	return nil
}
