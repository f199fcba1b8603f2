package service

import (
	"context"

	"acmdaily/internal/target/repository"
	pkgerrors "acmdaily/pkg/errors"
	"acmdaily/pkg/utils/logger"

	"go.uber.org/zap"
)

// TargetService manages which chat targets receive the daily set.
type TargetService struct {
	targets repository.TargetRepository
}

// NewTargetService creates a new TargetService.
func NewTargetService(targets repository.TargetRepository) *TargetService {
	return &TargetService{targets: targets}
}

// Subscribe marks a target to receive future distributions.
func (s *TargetService) Subscribe(ctx context.Context, targetID string) error {
	return s.setSubscription(ctx, targetID, true)
}

// Unsubscribe stops distributions to a target without deleting it.
func (s *TargetService) Unsubscribe(ctx context.Context, targetID string) error {
	return s.setSubscription(ctx, targetID, false)
}

func (s *TargetService) setSubscription(ctx context.Context, targetID string, subscribed bool) error {
	if targetID == "" {
		return pkgerrors.New(pkgerrors.InvalidParams)
	}
	if err := s.targets.Upsert(ctx, nil, targetID, subscribed); err != nil {
		return pkgerrors.Wrap(err, pkgerrors.DatabaseError)
	}
	logger.Info(ctx, "target subscription updated",
		zap.String("target_id", targetID),
		zap.Bool("subscribed", subscribed),
	)
	return nil
}

// Subscribed lists every target currently receiving distributions.
func (s *TargetService) Subscribed(ctx context.Context) ([]*repository.Target, error) {
	targets, err := s.targets.ListSubscribed(ctx, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.DatabaseError)
	}
	return targets, nil
}
