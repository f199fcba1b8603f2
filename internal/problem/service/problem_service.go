package service

import (
	"context"
	"errors"

	accountrepo "acmdaily/internal/account/repository"
	"acmdaily/internal/problem/repository"
	pkgerrors "acmdaily/pkg/errors"
	"acmdaily/pkg/utils/logger"

	"go.uber.org/zap"
)

// ProblemService handles manual problem queueing.
type ProblemService struct {
	problems repository.ProblemRepository
	accounts accountrepo.AccountRepository
	catalog  CatalogClient
	tier     TierConfig
}

// NewProblemService creates a new ProblemService.
func NewProblemService(
	problems repository.ProblemRepository,
	accounts accountrepo.AccountRepository,
	catalog CatalogClient,
	tier TierConfig,
) *ProblemService {
	return &ProblemService{
		problems: problems,
		accounts: accounts,
		catalog:  catalog,
		tier:     tier.Normalized(),
	}
}

// Emplace queues a specific problem for a future distribution cycle. The
// caller must be bound; their handle becomes the record's pusher and is
// excluded from credit on it.
func (s *ProblemService) Emplace(ctx context.Context, chatID, ref string) (*repository.Problem, error) {
	key, err := ParseProblemRef(ref)
	if err != nil {
		return nil, err
	}

	account, err := s.accounts.GetByChatID(ctx, nil, chatID)
	if err != nil {
		if errors.Is(err, accountrepo.ErrAccountNotFound) {
			return nil, pkgerrors.New(pkgerrors.AccountNotBound)
		}
		return nil, pkgerrors.Wrap(err, pkgerrors.DatabaseError)
	}

	existing, err := s.problems.GetByKey(ctx, nil, key)
	switch {
	case err == nil:
		if !existing.Active {
			return nil, pkgerrors.Newf(pkgerrors.ProblemAlreadyQueued, "problem %d%s is already queued", key.ContestID, key.Index)
		}
		// A previously distributed problem goes back to the queue with
		// a clean ledger and the new pusher.
		if err := s.problems.Requeue(ctx, nil, key, account.Handle); err != nil {
			return nil, pkgerrors.Wrap(err, pkgerrors.StoreWriteFailed)
		}
		existing.Active = false
		existing.ActivationDate = ""
		existing.Solved = []string{}
		existing.Pusher = account.Handle
		logger.Info(ctx, "problem requeued",
			zap.Int64("contest_id", key.ContestID),
			zap.String("index", key.Index),
			zap.String("pusher", account.Handle),
		)
		return existing, nil
	case !errors.Is(err, repository.ErrProblemNotFound):
		return nil, pkgerrors.Wrap(err, pkgerrors.DatabaseError)
	}

	catalog, err := s.catalog.FetchCatalog(ctx)
	if err != nil {
		return nil, err
	}
	var found *repository.Problem
	for _, candidate := range catalog {
		if candidate.Key() != key {
			continue
		}
		if candidate.Rating == 0 {
			return nil, pkgerrors.Newf(pkgerrors.ProblemNotRated, "problem %d%s has no rating", key.ContestID, key.Index)
		}
		found = &repository.Problem{
			ContestID: candidate.ContestID,
			Index:     candidate.Index,
			Rating:    candidate.Rating,
			Name:      candidate.Name,
			Tier:      s.tier.TierOf(candidate.Rating),
			Solved:    []string{},
			Pusher:    account.Handle,
		}
		break
	}
	if found == nil {
		return nil, pkgerrors.Newf(pkgerrors.ProblemNotFound, "problem %d%s not found in catalog", key.ContestID, key.Index)
	}

	if _, err := s.problems.Create(ctx, nil, found); err != nil {
		if errors.Is(err, repository.ErrProblemExists) {
			return nil, pkgerrors.New(pkgerrors.ProblemAlreadyQueued)
		}
		return nil, pkgerrors.Wrap(err, pkgerrors.StoreWriteFailed)
	}
	logger.Info(ctx, "problem queued",
		zap.Int64("contest_id", key.ContestID),
		zap.String("index", key.Index),
		zap.String("tier", found.Tier.String()),
		zap.String("pusher", account.Handle),
	)
	return found, nil
}
