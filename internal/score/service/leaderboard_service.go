package service

import (
	"context"

	accountrepo "acmdaily/internal/account/repository"
	problemrepo "acmdaily/internal/problem/repository"
	pkgerrors "acmdaily/pkg/errors"
)

// LeaderboardEntry is one ranked row of the standings.
type LeaderboardEntry struct {
	Rank   int    `json:"rank"`
	Handle string `json:"handle"`
	Score  int64  `json:"score"`
}

// ProblemStatus is the per-problem solve state shown next to the
// standings for today's set.
type ProblemStatus struct {
	Tier      string   `json:"tier"`
	ContestID int64    `json:"contest_id"`
	Index     string   `json:"index"`
	Name      string   `json:"name"`
	Rating    int      `json:"rating"`
	Pusher    string   `json:"pusher,omitempty"`
	SolvedBy  []string `json:"solved_by"`
}

// Leaderboard is one page of standings plus today's solve state.
type Leaderboard struct {
	Entries []LeaderboardEntry `json:"entries"`
	Total   int64              `json:"total"`
	Today   []ProblemStatus    `json:"today"`
}

// LeaderboardService serves standings. Every read runs a reconciliation
// pass first so the board never lags the feed by more than one request.
type LeaderboardService struct {
	reconciler *ReconcileService
	accounts   accountrepo.AccountRepository
	problems   problemrepo.ProblemRepository
}

// NewLeaderboardService creates a new LeaderboardService.
func NewLeaderboardService(reconciler *ReconcileService, accounts accountrepo.AccountRepository, problems problemrepo.ProblemRepository) *LeaderboardService {
	return &LeaderboardService{
		reconciler: reconciler,
		accounts:   accounts,
		problems:   problems,
	}
}

// Leaderboard returns one page of standings ordered by score descending.
// A failed reconciliation pass fails the read; a stale board would
// otherwise be indistinguishable from a fresh one.
func (s *LeaderboardService) Leaderboard(ctx context.Context, page, size int) (*Leaderboard, error) {
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 100 {
		size = 20
	}

	if err := s.reconciler.Reconcile(ctx); err != nil {
		return nil, err
	}

	accounts, err := s.accounts.ListRanked(ctx, nil, size, (page-1)*size)
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.DatabaseError)
	}
	total, err := s.accounts.Count(ctx, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.DatabaseError)
	}

	entries := make([]LeaderboardEntry, 0, len(accounts))
	for i, account := range accounts {
		entries = append(entries, LeaderboardEntry{
			Rank:   (page-1)*size + i + 1,
			Handle: account.Handle,
			Score:  account.Score,
		})
	}

	today, err := s.todayStatuses(ctx)
	if err != nil {
		return nil, err
	}

	return &Leaderboard{Entries: entries, Total: total, Today: today}, nil
}

func (s *LeaderboardService) todayStatuses(ctx context.Context) ([]ProblemStatus, error) {
	date := s.reconciler.cfg.Now().Format(dateLayout)
	active, err := s.problems.ListActiveOn(ctx, nil, date)
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.DatabaseError)
	}
	statuses := make([]ProblemStatus, 0, len(active))
	for _, problem := range active {
		statuses = append(statuses, ProblemStatus{
			Tier:      problem.Tier.String(),
			ContestID: problem.ContestID,
			Index:     problem.Index,
			Name:      problem.Name,
			Rating:    problem.Rating,
			Pusher:    problem.Pusher,
			SolvedBy:  problem.Solved,
		})
	}
	return statuses, nil
}
