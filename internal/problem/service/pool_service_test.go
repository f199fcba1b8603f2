package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"acmdaily/internal/codeforces"
	"acmdaily/internal/common/db"
	"acmdaily/internal/common/mq"
	"acmdaily/internal/problem/repository"
	"acmdaily/internal/problem/service"
	targetrepo "acmdaily/internal/target/repository"
	pkgerrors "acmdaily/pkg/errors"
)

var testDay = time.Date(2026, time.August, 28, 8, 0, 0, 0, time.Local)

func testDate() string {
	return testDay.Format("2006-01-02")
}

func catalogEntry(contestID int64, index string, rating int) codeforces.CatalogProblem {
	return codeforces.CatalogProblem{ContestID: contestID, Index: index, Name: "P" + index, Rating: rating}
}

func newPoolService(problems *fakeProblemStore, targets *fakeTargetStore, catalog []codeforces.CatalogProblem, producer *fakeProducer) *service.PoolService {
	return service.NewPoolService(problems, targets, &fakeCatalog{problems: catalog}, producer, service.PoolConfig{
		Now:  func() time.Time { return testDay },
		Pick: func(n int) int { return 0 },
	})
}

func TestSelectNextPrefersQueued(t *testing.T) {
	queued := &repository.Problem{
		ContestID: 1500, Index: "A", Rating: 900, Tier: repository.TierEasy,
		Solved: []string{}, Pusher: "alice",
	}
	problems := newFakeProblemStore(queued)

	svc := newPoolService(problems, newFakeTargetStore(), nil, &fakeProducer{})
	pool := []codeforces.CatalogProblem{catalogEntry(1600, "A", 1000)}
	selected, err := svc.SelectNext(context.Background(), repository.TierEasy, pool)
	if err != nil {
		t.Fatalf("SelectNext: %v", err)
	}

	if selected.ContestID != 1500 || selected.Index != "A" {
		t.Fatalf("selected %d%s, want queued 1500A", selected.ContestID, selected.Index)
	}
	if !selected.Active || selected.ActivationDate != testDate() {
		t.Errorf("queued problem not activated for today: %+v", selected)
	}
	if selected.Pusher != "alice" {
		t.Errorf("pusher = %q, want alice", selected.Pusher)
	}
}

func TestSelectNextDrawsFromPool(t *testing.T) {
	problems := newFakeProblemStore()

	svc := newPoolService(problems, newFakeTargetStore(), nil, &fakeProducer{})
	pool := []codeforces.CatalogProblem{
		catalogEntry(1600, "A", 1000),
		catalogEntry(1601, "B", 1100),
	}
	selected, err := svc.SelectNext(context.Background(), repository.TierEasy, pool)
	if err != nil {
		t.Fatalf("SelectNext: %v", err)
	}

	if selected.ContestID != 1600 || selected.Index != "A" {
		t.Fatalf("selected %d%s, want 1600A", selected.ContestID, selected.Index)
	}
	stored := problems.get(t, 1600, "A")
	if !stored.Active || stored.ActivationDate != testDate() {
		t.Errorf("drawn problem not persisted active for today: %+v", stored)
	}
}

func TestSelectNextEmptyPool(t *testing.T) {
	svc := newPoolService(newFakeProblemStore(), newFakeTargetStore(), nil, &fakeProducer{})

	_, err := svc.SelectNext(context.Background(), repository.TierHard, nil)
	if !pkgerrors.Is(err, pkgerrors.PoolExhausted) {
		t.Fatalf("err = %v, want PoolExhausted", err)
	}
}

func TestDistributeDailyExcludesDistributed(t *testing.T) {
	previous := &repository.Problem{
		ContestID: 1600, Index: "A", Rating: 1000, Tier: repository.TierEasy,
		Active: true, ActivationDate: "2026-08-27", Solved: []string{},
	}
	problems := newFakeProblemStore(previous)
	targets := newFakeTargetStore("group-1", "group-2")
	producer := &fakeProducer{}
	catalog := []codeforces.CatalogProblem{
		catalogEntry(1600, "A", 1000),
		catalogEntry(1601, "A", 1100),
		catalogEntry(1700, "B", 1600),
		catalogEntry(1800, "C", 2400),
	}

	svc := newPoolService(problems, targets, catalog, producer)
	set, err := svc.DistributeDaily(context.Background())
	if err != nil {
		t.Fatalf("DistributeDaily: %v", err)
	}

	if set.Easy.ContestID != 1601 {
		t.Errorf("easy = %d%s, want 1601A (1600A already distributed)", set.Easy.ContestID, set.Easy.Index)
	}
	if set.Mid.ContestID != 1700 || set.Hard.ContestID != 1800 {
		t.Errorf("mid/hard = %d/%d, want 1700/1800", set.Mid.ContestID, set.Hard.ContestID)
	}

	if len(producer.messages) != 2 {
		t.Fatalf("published %d messages, want 2", len(producer.messages))
	}
	var payload struct {
		TargetID string `json:"target_id"`
		Text     string `json:"text"`
	}
	if err := json.Unmarshal(producer.messages[0].Body, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.TargetID != "group-1" || payload.Text == "" {
		t.Errorf("payload = %+v, want group-1 with text", payload)
	}
}

func TestDistributeDailyAllOrNothing(t *testing.T) {
	producer := &fakeProducer{}
	// No hard-tier candidate anywhere.
	catalog := []codeforces.CatalogProblem{
		catalogEntry(1600, "A", 1000),
		catalogEntry(1700, "B", 1600),
	}

	svc := newPoolService(newFakeProblemStore(), newFakeTargetStore("group-1"), catalog, producer)
	_, err := svc.DistributeDaily(context.Background())
	if !pkgerrors.Is(err, pkgerrors.DistributionFailed) {
		t.Fatalf("err = %v, want DistributionFailed", err)
	}
	if len(producer.messages) != 0 {
		t.Errorf("published %d messages on failed cycle, want 0", len(producer.messages))
	}
}

func TestTodayProblemsEmpty(t *testing.T) {
	svc := newPoolService(newFakeProblemStore(), newFakeTargetStore(), nil, &fakeProducer{})

	_, err := svc.TodayProblems(context.Background())
	if !pkgerrors.Is(err, pkgerrors.NoProblemsToday) {
		t.Fatalf("err = %v, want NoProblemsToday", err)
	}
}

func TestRandomSetDoesNotPersist(t *testing.T) {
	problems := newFakeProblemStore()
	catalog := []codeforces.CatalogProblem{
		catalogEntry(1600, "A", 1000),
		catalogEntry(1700, "B", 1600),
		catalogEntry(1800, "C", 2400),
	}

	svc := newPoolService(problems, newFakeTargetStore(), catalog, &fakeProducer{})
	set, err := svc.RandomSet(context.Background())
	if err != nil {
		t.Fatalf("RandomSet: %v", err)
	}
	if set.Easy == nil || set.Mid == nil || set.Hard == nil {
		t.Fatalf("incomplete set: %+v", set)
	}
	if n := problems.count(); n != 0 {
		t.Errorf("store holds %d records after RandomSet, want 0", n)
	}
}

type fakeProblemStore struct {
	mu      sync.Mutex
	records map[codeforces.ProblemKey]*repository.Problem
	nextID  int64
}

func newFakeProblemStore(records ...*repository.Problem) *fakeProblemStore {
	store := &fakeProblemStore{records: make(map[codeforces.ProblemKey]*repository.Problem)}
	for _, record := range records {
		store.nextID++
		record.ID = store.nextID
		store.records[record.Key()] = record
	}
	return store
}

func (s *fakeProblemStore) get(t *testing.T, contestID int64, index string) *repository.Problem {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[codeforces.ProblemKey{ContestID: contestID, Index: index}]
	if !ok {
		t.Fatalf("problem %d%s not in store", contestID, index)
	}
	return record
}

func (s *fakeProblemStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

func (s *fakeProblemStore) Create(ctx context.Context, tx db.Transaction, problem *repository.Problem) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[problem.Key()]; ok {
		return 0, repository.ErrProblemExists
	}
	s.nextID++
	problem.ID = s.nextID
	s.records[problem.Key()] = problem
	return problem.ID, nil
}

func (s *fakeProblemStore) GetByKey(ctx context.Context, tx db.Transaction, key codeforces.ProblemKey) (*repository.Problem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[key]
	if !ok {
		return nil, repository.ErrProblemNotFound
	}
	return record, nil
}

func (s *fakeProblemStore) FirstInactiveByTier(ctx context.Context, tx db.Transaction, tier repository.Tier) (*repository.Problem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var oldest *repository.Problem
	for _, record := range s.records {
		if record.Active || record.Tier != tier {
			continue
		}
		if oldest == nil || record.ID < oldest.ID {
			oldest = record
		}
	}
	if oldest == nil {
		return nil, repository.ErrProblemNotFound
	}
	return oldest, nil
}

func (s *fakeProblemStore) MarkActive(ctx context.Context, tx db.Transaction, key codeforces.ProblemKey, date string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[key]
	if !ok {
		return repository.ErrProblemNotFound
	}
	record.Active = true
	record.ActivationDate = date
	return nil
}

func (s *fakeProblemStore) Requeue(ctx context.Context, tx db.Transaction, key codeforces.ProblemKey, pusher string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[key]
	if !ok {
		return repository.ErrProblemNotFound
	}
	record.Active = false
	record.ActivationDate = ""
	record.Solved = []string{}
	record.Pusher = pusher
	return nil
}

func (s *fakeProblemStore) ListActiveOn(ctx context.Context, tx db.Transaction, date string) ([]*repository.Problem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var active []*repository.Problem
	for _, record := range s.records {
		if record.Active && record.ActivationDate == date {
			active = append(active, record)
		}
	}
	return active, nil
}

func (s *fakeProblemStore) ListDistributedKeys(ctx context.Context, tx db.Transaction) (map[codeforces.ProblemKey]struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make(map[codeforces.ProblemKey]struct{})
	for key, record := range s.records {
		if record.Active {
			keys[key] = struct{}{}
		}
	}
	return keys, nil
}

func (s *fakeProblemStore) AppendSolved(ctx context.Context, tx db.Transaction, key codeforces.ProblemKey, solved []string, expectedVersion int64) error {
	return errors.New("not implemented")
}

type fakeCatalog struct {
	problems []codeforces.CatalogProblem
	err      error
}

func (c *fakeCatalog) FetchCatalog(ctx context.Context) ([]codeforces.CatalogProblem, error) {
	if c.err != nil {
		return nil, c.err
	}
	return c.problems, nil
}

type fakeTargetStore struct {
	targets []*targetrepo.Target
}

func newFakeTargetStore(ids ...string) *fakeTargetStore {
	store := &fakeTargetStore{}
	for i, id := range ids {
		store.targets = append(store.targets, &targetrepo.Target{ID: int64(i + 1), TargetID: id, Subscribed: true})
	}
	return store
}

func (s *fakeTargetStore) Upsert(ctx context.Context, tx db.Transaction, targetID string, subscribed bool) error {
	return errors.New("not implemented")
}

func (s *fakeTargetStore) Get(ctx context.Context, tx db.Transaction, targetID string) (*targetrepo.Target, error) {
	return nil, errors.New("not implemented")
}

func (s *fakeTargetStore) ListSubscribed(ctx context.Context, tx db.Transaction) ([]*targetrepo.Target, error) {
	return s.targets, nil
}

type fakeProducer struct {
	mu       sync.Mutex
	messages []*mq.Message
}

func (p *fakeProducer) Publish(ctx context.Context, topic string, message *mq.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, message)
	return nil
}

func (p *fakeProducer) PublishBatch(ctx context.Context, topic string, messages []*mq.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, messages...)
	return nil
}

func (p *fakeProducer) Ping(ctx context.Context) error { return nil }

func (p *fakeProducer) Close() error { return nil }
