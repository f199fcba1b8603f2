package service

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	accountrepo "acmdaily/internal/account/repository"
	"acmdaily/internal/codeforces"
	"acmdaily/internal/common/cache"
	problemrepo "acmdaily/internal/problem/repository"
	pkgerrors "acmdaily/pkg/errors"
	"acmdaily/pkg/utils/contextkey"
	"acmdaily/pkg/utils/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	reconcileLockKey = "score:reconcile:lock"
	dateLayout       = "2006-01-02"

	// maxBonus is the early-solver bonus of the first credited solve;
	// it decays by one per credited entry, floor zero.
	maxBonus = 5
)

// FeedClient fetches per-contest submission history, newest first.
type FeedClient interface {
	FetchSubmissions(ctx context.Context, contestID int64) ([]codeforces.Submission, error)
}

// ReconcileConfig holds reconciliation engine configuration.
type ReconcileConfig struct {
	// LockTTL bounds how long a crashed pass can shut out the next one.
	LockTTL time.Duration

	// FeedTimeout is the per-request budget for one submission fetch.
	FeedTimeout time.Duration

	// MaxConcurrent bounds how many problems are processed at once.
	MaxConcurrent int

	// CASRetries is how often a version conflict on one problem's
	// ledger is retried within a pass.
	CASRetries int

	// Now exists for deterministic tests; zero falls back to the wall
	// clock.
	Now func() time.Time
}

// ReconcileService diffs the submission feed against each active
// problem's ledger and applies score increments exactly once per solve.
type ReconcileService struct {
	problems problemrepo.ProblemRepository
	accounts accountrepo.AccountRepository
	feed     FeedClient
	locker   cache.LockOps
	cfg      ReconcileConfig
}

// NewReconcileService creates a new ReconcileService.
func NewReconcileService(
	problems problemrepo.ProblemRepository,
	accounts accountrepo.AccountRepository,
	feed FeedClient,
	locker cache.LockOps,
	cfg ReconcileConfig,
) *ReconcileService {
	if cfg.LockTTL == 0 {
		cfg.LockTTL = 2 * time.Minute
	}
	if cfg.FeedTimeout == 0 {
		cfg.FeedTimeout = 10 * time.Second
	}
	if cfg.MaxConcurrent == 0 {
		cfg.MaxConcurrent = 3
	}
	if cfg.CASRetries == 0 {
		cfg.CASRetries = 3
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &ReconcileService{
		problems: problems,
		accounts: accounts,
		feed:     feed,
		locker:   locker,
		cfg:      cfg,
	}
}

// credit is one participant's score increment from one problem.
type credit struct {
	Handle string
	Delta  int64
}

// Reconcile runs one reconciliation pass over every problem active today.
// It is idempotent: with no new feed data a second pass changes nothing.
// A feed failure skips only the affected problem; store failures surface
// in the returned error after the remaining work has been attempted.
func (s *ReconcileService) Reconcile(ctx context.Context) error {
	ctx = context.WithValue(ctx, contextkey.PassID, uuid.NewString())

	// Two passes must never interleave on the same ledger, or both
	// could read the same stale solved list and double-credit. The
	// version check in AppendSolved backstops this lock.
	acquired, err := s.locker.TryLock(ctx, reconcileLockKey, s.cfg.LockTTL)
	if err != nil {
		return pkgerrors.Wrap(err, pkgerrors.CacheError)
	}
	if !acquired {
		logger.Info(ctx, "reconciliation pass already running, skipping")
		return nil
	}
	defer func() {
		if err := s.locker.Unlock(context.WithoutCancel(ctx), reconcileLockKey); err != nil {
			logger.Warn(ctx, "release reconcile lock failed", zap.Error(err))
		}
	}()

	today := s.cfg.Now().Format(dateLayout)
	active, err := s.problems.ListActiveOn(ctx, nil, today)
	if err != nil {
		return pkgerrors.Wrap(err, pkgerrors.DatabaseError)
	}
	if len(active) == 0 {
		return nil
	}

	bound, err := s.boundHandles(ctx)
	if err != nil {
		return err
	}

	var (
		mu         sync.Mutex
		increments = make(map[string]int64)
		storeErrs  []error
	)

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(s.cfg.MaxConcurrent)
	for _, problem := range active {
		problem := problem
		group.Go(func() error {
			credits, err := s.creditProblem(groupCtx, problem, bound)
			if err != nil {
				if pkgerrors.Is(err, pkgerrors.FeedUnavailable) || pkgerrors.Is(err, pkgerrors.FeedMalformed) {
					logger.Warn(groupCtx, "feed unavailable, skipping problem",
						zap.Int64("contest_id", problem.ContestID),
						zap.String("index", problem.Index),
						zap.Error(err),
					)
					return nil
				}
				mu.Lock()
				storeErrs = append(storeErrs, err)
				mu.Unlock()
				return nil
			}
			if len(credits) == 0 {
				return nil
			}
			mu.Lock()
			for _, c := range credits {
				increments[c.Handle] += c.Delta
			}
			mu.Unlock()
			return nil
		})
	}
	_ = group.Wait()

	applyErrs := s.applyIncrements(ctx, increments)

	if len(storeErrs) > 0 || len(applyErrs) > 0 {
		all := errors.Join(append(storeErrs, applyErrs...)...)
		return pkgerrors.Wrapf(all, pkgerrors.ScoreApplyFailed,
			"reconciliation pass finished with %d ledger and %d score errors", len(storeErrs), len(applyErrs))
	}
	return nil
}

// creditProblem computes and commits the new credits for one problem.
// The returned credits are ordered oldest solve first, which drives the
// decaying bonus.
func (s *ReconcileService) creditProblem(ctx context.Context, problem *problemrepo.Problem, bound map[string]struct{}) ([]credit, error) {
	feedCtx, cancel := context.WithTimeout(ctx, s.cfg.FeedTimeout)
	defer cancel()
	submissions, err := s.feed.FetchSubmissions(feedCtx, problem.ContestID)
	if err != nil {
		if feedCtx.Err() != nil && ctx.Err() == nil {
			return nil, pkgerrors.Wrapf(err, pkgerrors.FeedUnavailable, "submission fetch for contest %d timed out", problem.ContestID)
		}
		return nil, err
	}

	record := problem
	for attempt := 0; attempt <= s.cfg.CASRetries; attempt++ {
		if attempt > 0 {
			record, err = s.problems.GetByKey(ctx, nil, problem.Key())
			if err != nil {
				return nil, pkgerrors.Wrap(err, pkgerrors.DatabaseError)
			}
		}

		newcomers := newSolvers(record, submissions, bound)
		if len(newcomers) == 0 {
			return nil, nil
		}

		merged := append(slices.Clone(record.Solved), newcomers...)
		err = s.problems.AppendSolved(ctx, nil, record.Key(), merged, record.Version)
		if errors.Is(err, problemrepo.ErrVersionConflict) {
			// The ledger moved under us; re-read and diff again.
			continue
		}
		if err != nil {
			return nil, pkgerrors.Wrapf(err, pkgerrors.StoreWriteFailed,
				"append solved for problem %d%s failed", record.ContestID, record.Index)
		}

		base := int64(record.Rating / 100)
		credited := len(record.Solved)
		credits := make([]credit, 0, len(newcomers))
		for _, handle := range newcomers {
			bonus := maxBonus - credited
			if bonus < 0 {
				bonus = 0
			}
			credits = append(credits, credit{Handle: handle, Delta: base + int64(bonus)})
			credited++
		}
		logger.Info(ctx, "problem credited",
			zap.Int64("contest_id", record.ContestID),
			zap.String("index", record.Index),
			zap.Int("new_solvers", len(newcomers)),
		)
		return credits, nil
	}
	return nil, pkgerrors.Newf(pkgerrors.StoreWriteFailed,
		"version conflicts exhausted for problem %d%s", problem.ContestID, problem.Index)
}

// newSolvers filters the feed down to bound participants who solved the
// problem on its activation date and are not yet in the ledger. The feed
// is newest first; the result is reversed into solve order.
func newSolvers(record *problemrepo.Problem, submissions []codeforces.Submission, bound map[string]struct{}) []string {
	already := make(map[string]struct{}, len(record.Solved))
	for _, handle := range record.Solved {
		already[handle] = struct{}{}
	}

	seen := make(map[string]struct{})
	var fresh []string
	for _, submission := range submissions {
		if submission.Verdict != codeforces.VerdictAccepted || submission.Problem.Index != record.Index {
			continue
		}
		if dateOf(submission.CreationTimeSeconds) != record.ActivationDate {
			continue
		}
		handle := submission.Handle()
		if handle == "" || handle == record.Pusher {
			continue
		}
		if _, ok := bound[handle]; !ok {
			continue
		}
		if _, ok := already[handle]; ok {
			continue
		}
		if _, ok := seen[handle]; ok {
			continue
		}
		seen[handle] = struct{}{}
		fresh = append(fresh, handle)
	}

	slices.Reverse(fresh)
	return fresh
}

func (s *ReconcileService) boundHandles(ctx context.Context) (map[string]struct{}, error) {
	accounts, err := s.accounts.List(ctx, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.DatabaseError)
	}
	bound := make(map[string]struct{}, len(accounts))
	for _, account := range accounts {
		bound[account.Handle] = struct{}{}
	}
	return bound, nil
}

func (s *ReconcileService) applyIncrements(ctx context.Context, increments map[string]int64) []error {
	var errs []error
	for handle, delta := range increments {
		if delta == 0 {
			continue
		}
		if err := s.accounts.AddScore(ctx, nil, handle, delta); err != nil {
			errs = append(errs, pkgerrors.Wrapf(err, pkgerrors.ScoreApplyFailed,
				"add score %d to %s failed", delta, handle))
			continue
		}
		logger.Debug(ctx, "score applied", zap.String("handle", handle), zap.Int64("delta", delta))
	}
	return errs
}

func dateOf(unixSeconds int64) string {
	return time.Unix(unixSeconds, 0).Format(dateLayout)
}
