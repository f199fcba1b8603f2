package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"acmdaily/internal/codeforces"
	"acmdaily/internal/common/mq"
	"acmdaily/internal/problem/repository"
	targetrepo "acmdaily/internal/target/repository"
	pkgerrors "acmdaily/pkg/errors"
	"acmdaily/pkg/utils/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const dateLayout = "2006-01-02"

// CatalogClient fetches the upstream problem catalog.
type CatalogClient interface {
	FetchCatalog(ctx context.Context) ([]codeforces.CatalogProblem, error)
}

// PoolConfig holds pool manager configuration.
type PoolConfig struct {
	Tier TierConfig

	// Topic is the queue topic distribution messages are published to.
	Topic string

	// Now and Pick exist for deterministic tests; zero values fall back
	// to the wall clock and math/rand.
	Now  func() time.Time
	Pick func(n int) int
}

// PoolService selects the next problem per tier and runs the daily
// distribution cycle.
type PoolService struct {
	problems repository.ProblemRepository
	targets  targetrepo.TargetRepository
	catalog  CatalogClient
	producer mq.Producer
	cfg      PoolConfig
}

// NewPoolService creates a new PoolService.
func NewPoolService(
	problems repository.ProblemRepository,
	targets targetrepo.TargetRepository,
	catalog CatalogClient,
	producer mq.Producer,
	cfg PoolConfig,
) *PoolService {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Pick == nil {
		cfg.Pick = rand.Intn
	}
	if cfg.Topic == "" {
		cfg.Topic = "daily-problems"
	}
	cfg.Tier = cfg.Tier.Normalized()

	return &PoolService{
		problems: problems,
		targets:  targets,
		catalog:  catalog,
		producer: producer,
		cfg:      cfg,
	}
}

// DailySet is one distribution cycle's worth of problems, one per tier.
type DailySet struct {
	Easy *repository.Problem
	Mid  *repository.Problem
	Hard *repository.Problem
}

// ByTier returns the problem distributed under the given tier.
func (s *DailySet) ByTier(tier repository.Tier) *repository.Problem {
	switch tier {
	case repository.TierEasy:
		return s.Easy
	case repository.TierMid:
		return s.Mid
	case repository.TierHard:
		return s.Hard
	default:
		return nil
	}
}

func (s *DailySet) set(tier repository.Tier, problem *repository.Problem) {
	switch tier {
	case repository.TierEasy:
		s.Easy = problem
	case repository.TierMid:
		s.Mid = problem
	case repository.TierHard:
		s.Hard = problem
	}
}

// SelectNext returns the next problem to activate for the tier. A queued
// record always wins over a random catalog draw, so manually curated
// problems go out first. The candidate pool must already be filtered to
// the tier and to exclude distributed records.
func (s *PoolService) SelectNext(ctx context.Context, tier repository.Tier, pool []codeforces.CatalogProblem) (*repository.Problem, error) {
	today := s.today()

	queued, err := s.problems.FirstInactiveByTier(ctx, nil, tier)
	switch {
	case err == nil:
		if err := s.problems.MarkActive(ctx, nil, queued.Key(), today); err != nil {
			return nil, pkgerrors.Wrapf(err, pkgerrors.StoreWriteFailed, "activate queued problem %d%s failed", queued.ContestID, queued.Index)
		}
		queued.Active = true
		queued.ActivationDate = today
		return queued, nil
	case !errors.Is(err, repository.ErrProblemNotFound):
		return nil, pkgerrors.Wrap(err, pkgerrors.DatabaseError)
	}

	if len(pool) == 0 {
		return nil, pkgerrors.Newf(pkgerrors.PoolExhausted, "no candidate problem for tier %s", tier)
	}

	candidate := pool[s.cfg.Pick(len(pool))]
	record := &repository.Problem{
		ContestID:      candidate.ContestID,
		Index:          candidate.Index,
		Rating:         candidate.Rating,
		Name:           candidate.Name,
		Tier:           tier,
		Active:         true,
		ActivationDate: today,
		Solved:         []string{},
	}
	if _, err := s.problems.Create(ctx, nil, record); err != nil {
		return nil, pkgerrors.Wrapf(err, pkgerrors.StoreWriteFailed, "persist drawn problem %d%s failed", candidate.ContestID, candidate.Index)
	}
	return record, nil
}

// DistributeDaily runs one full distribution cycle: one problem per tier,
// all-or-nothing, then a formatted message to every subscribed target.
func (s *PoolService) DistributeDaily(ctx context.Context) (*DailySet, error) {
	catalog, err := s.catalog.FetchCatalog(ctx)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, pkgerrors.DistributionFailed, "fetch catalog failed")
	}
	pools := PartitionByTier(s.cfg.Tier, catalog)

	distributed, err := s.problems.ListDistributedKeys(ctx, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.DatabaseError)
	}

	set := &DailySet{}
	for _, tier := range repository.AllTiers() {
		problem, err := s.SelectNext(ctx, tier, filterCandidates(pools[tier], distributed))
		if err != nil {
			return nil, pkgerrors.Wrapf(err, pkgerrors.DistributionFailed, "distribution failed for tier %s", tier)
		}
		set.set(tier, problem)
		logger.Info(ctx, "problem activated",
			zap.String("tier", tier.String()),
			zap.Int64("contest_id", problem.ContestID),
			zap.String("index", problem.Index),
			zap.Int("rating", problem.Rating),
		)
	}

	if err := s.publish(ctx, set); err != nil {
		return nil, err
	}
	return set, nil
}

// TodayProblems returns the set active today.
func (s *PoolService) TodayProblems(ctx context.Context) (*DailySet, error) {
	problems, err := s.problems.ListActiveOn(ctx, nil, s.today())
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.DatabaseError)
	}
	if len(problems) == 0 {
		return nil, pkgerrors.New(pkgerrors.NoProblemsToday)
	}
	set := &DailySet{}
	for _, problem := range problems {
		set.set(problem.Tier, problem)
	}
	return set, nil
}

// RandomSet draws one catalog problem per tier without persisting
// anything.
func (s *PoolService) RandomSet(ctx context.Context) (*DailySet, error) {
	catalog, err := s.catalog.FetchCatalog(ctx)
	if err != nil {
		return nil, err
	}
	pools := PartitionByTier(s.cfg.Tier, catalog)

	set := &DailySet{}
	for _, tier := range repository.AllTiers() {
		pool := pools[tier]
		if len(pool) == 0 {
			return nil, pkgerrors.Newf(pkgerrors.PoolExhausted, "no candidate problem for tier %s", tier)
		}
		candidate := pool[s.cfg.Pick(len(pool))]
		set.set(tier, &repository.Problem{
			ContestID: candidate.ContestID,
			Index:     candidate.Index,
			Rating:    candidate.Rating,
			Name:      candidate.Name,
			Tier:      tier,
		})
	}
	return set, nil
}

// distributionPayload is the message body the chat collaborator consumes.
type distributionPayload struct {
	TargetID string `json:"target_id"`
	Text     string `json:"text"`
}

func (s *PoolService) publish(ctx context.Context, set *DailySet) error {
	targets, err := s.targets.ListSubscribed(ctx, nil)
	if err != nil {
		return pkgerrors.Wrap(err, pkgerrors.DatabaseError)
	}
	if len(targets) == 0 {
		logger.Info(ctx, "no subscribed targets, skipping delivery")
		return nil
	}

	text := FormatDailySet(set, "Today's problems")
	messages := make([]*mq.Message, 0, len(targets))
	for _, target := range targets {
		body, err := json.Marshal(distributionPayload{TargetID: target.TargetID, Text: text})
		if err != nil {
			return fmt.Errorf("marshal distribution payload failed: %w", err)
		}
		message := mq.NewMessage(body)
		message.ID = uuid.NewString()
		message.SetHeader("target_id", target.TargetID)
		messages = append(messages, message)
	}

	if err := s.producer.PublishBatch(ctx, s.cfg.Topic, messages); err != nil {
		return pkgerrors.Wrapf(err, pkgerrors.DistributionFailed, "publish distribution messages failed")
	}
	logger.Info(ctx, "distribution published", zap.Int("targets", len(targets)))
	return nil
}

func (s *PoolService) today() string {
	return s.cfg.Now().Format(dateLayout)
}

func filterCandidates(pool []codeforces.CatalogProblem, distributed map[codeforces.ProblemKey]struct{}) []codeforces.CatalogProblem {
	if len(distributed) == 0 {
		return pool
	}
	filtered := make([]codeforces.CatalogProblem, 0, len(pool))
	for _, candidate := range pool {
		if _, ok := distributed[candidate.Key()]; ok {
			continue
		}
		filtered = append(filtered, candidate)
	}
	return filtered
}
