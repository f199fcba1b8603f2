package service_test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	accountrepo "acmdaily/internal/account/repository"
	"acmdaily/internal/codeforces"
	"acmdaily/internal/common/db"
	problemrepo "acmdaily/internal/problem/repository"
	"acmdaily/internal/score/service"
	pkgerrors "acmdaily/pkg/errors"
)

var testDay = time.Date(2026, time.August, 28, 12, 0, 0, 0, time.Local)

func testDate() string {
	return testDay.Format("2006-01-02")
}

func at(offset time.Duration) int64 {
	return testDay.Add(offset).Unix()
}

func accepted(handle string, contestID int64, index string, offset time.Duration) codeforces.Submission {
	return submission(handle, contestID, index, "OK", offset)
}

func submission(handle string, contestID int64, index, verdict string, offset time.Duration) codeforces.Submission {
	return codeforces.Submission{
		CreationTimeSeconds: at(offset),
		Problem:             codeforces.SubmissionProblem{ContestID: contestID, Index: index},
		Author:              codeforces.SubmissionAuthor{Members: []codeforces.Member{{Handle: handle}}},
		Verdict:             verdict,
	}
}

func activeProblem(contestID int64, index string, rating int, pusher string, solved ...string) *problemrepo.Problem {
	if solved == nil {
		solved = []string{}
	}
	return &problemrepo.Problem{
		ContestID:      contestID,
		Index:          index,
		Rating:         rating,
		Tier:           problemrepo.TierMid,
		Active:         true,
		ActivationDate: testDate(),
		Solved:         solved,
		Pusher:         pusher,
	}
}

func newReconcileService(problems *fakeProblemStore, accounts *fakeAccountStore, feed *fakeFeed, locker *fakeLocker) *service.ReconcileService {
	return service.NewReconcileService(problems, accounts, feed, locker, service.ReconcileConfig{
		MaxConcurrent: 1,
		Now:           func() time.Time { return testDay },
	})
}

func TestReconcileCreditsInSolveOrder(t *testing.T) {
	problems := newFakeProblemStore(activeProblem(1700, "B", 1600, "alice"))
	accounts := newFakeAccountStore("alice", "bob", "carol")
	// Newest first, like the remote feed: carol solved after bob.
	feed := newFakeFeed(map[int64][]codeforces.Submission{
		1700: {
			accepted("carol", 1700, "B", 5*time.Minute),
			accepted("dave", 1700, "B", 4*time.Minute),
			accepted("alice", 1700, "B", 3*time.Minute),
			submission("bob", 1700, "B", "WRONG_ANSWER", 2*time.Minute),
			accepted("bob", 1700, "B", time.Minute),
		},
	})

	svc := newReconcileService(problems, accounts, feed, &fakeLocker{})
	if err := svc.Reconcile(context.Background()); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}

	// bob solved first: base 16 plus bonus 5, carol gets 16 plus 4.
	if got := accounts.score("bob"); got != 21 {
		t.Errorf("bob score = %d, want 21", got)
	}
	if got := accounts.score("carol"); got != 20 {
		t.Errorf("carol score = %d, want 20", got)
	}
	if got := accounts.score("alice"); got != 0 {
		t.Errorf("pusher alice score = %d, want 0", got)
	}
	if _, ok := accounts.scores["dave"]; ok {
		t.Error("unbound dave was credited")
	}

	record := problems.get(t, 1700, "B")
	wantSolved := []string{"bob", "carol"}
	if len(record.Solved) != len(wantSolved) {
		t.Fatalf("solved = %v, want %v", record.Solved, wantSolved)
	}
	for i, handle := range wantSolved {
		if record.Solved[i] != handle {
			t.Fatalf("solved = %v, want %v", record.Solved, wantSolved)
		}
	}
	if record.Version != 1 {
		t.Errorf("version = %d, want 1", record.Version)
	}
}

func TestReconcileSecondPassAddsNothing(t *testing.T) {
	problems := newFakeProblemStore(activeProblem(1700, "B", 1600, "alice"))
	accounts := newFakeAccountStore("bob")
	feed := newFakeFeed(map[int64][]codeforces.Submission{
		1700: {accepted("bob", 1700, "B", time.Minute)},
	})

	svc := newReconcileService(problems, accounts, feed, &fakeLocker{})
	for i := 0; i < 2; i++ {
		if err := svc.Reconcile(context.Background()); err != nil {
			t.Fatalf("Reconcile pass %d: %v", i+1, err)
		}
	}

	if got := accounts.score("bob"); got != 21 {
		t.Errorf("bob score after two passes = %d, want 21", got)
	}
	if got := problems.get(t, 1700, "B").Version; got != 1 {
		t.Errorf("version after two passes = %d, want 1", got)
	}
}

func TestReconcileBonusDecaysAcrossHistory(t *testing.T) {
	// Three earlier solvers already in the ledger; the next one gets
	// bonus 2, then 1, then 0.
	problems := newFakeProblemStore(activeProblem(1700, "B", 1600, "", "e1", "e2", "e3"))
	accounts := newFakeAccountStore("frank", "grace", "heidi")
	feed := newFakeFeed(map[int64][]codeforces.Submission{
		1700: {
			accepted("heidi", 1700, "B", 3*time.Minute),
			accepted("grace", 1700, "B", 2*time.Minute),
			accepted("frank", 1700, "B", time.Minute),
		},
	})

	svc := newReconcileService(problems, accounts, feed, &fakeLocker{})
	if err := svc.Reconcile(context.Background()); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}

	if got := accounts.score("frank"); got != 18 {
		t.Errorf("frank score = %d, want 18", got)
	}
	if got := accounts.score("grace"); got != 17 {
		t.Errorf("grace score = %d, want 17", got)
	}
	if got := accounts.score("heidi"); got != 16 {
		t.Errorf("heidi score = %d, want 16", got)
	}
}

func TestReconcileUnboundDoesNotConsumeBonus(t *testing.T) {
	problems := newFakeProblemStore(activeProblem(1700, "B", 1600, ""))
	accounts := newFakeAccountStore("bob")
	feed := newFakeFeed(map[int64][]codeforces.Submission{
		1700: {
			accepted("bob", 1700, "B", 2*time.Minute),
			accepted("dave", 1700, "B", time.Minute),
		},
	})

	svc := newReconcileService(problems, accounts, feed, &fakeLocker{})
	if err := svc.Reconcile(context.Background()); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}

	// dave solved first but is unbound; bob keeps the full bonus.
	if got := accounts.score("bob"); got != 21 {
		t.Errorf("bob score = %d, want 21", got)
	}
}

func TestReconcileIgnoresOtherDays(t *testing.T) {
	problems := newFakeProblemStore(activeProblem(1700, "B", 1600, ""))
	accounts := newFakeAccountStore("bob")
	feed := newFakeFeed(map[int64][]codeforces.Submission{
		1700: {accepted("bob", 1700, "B", -25 * time.Hour)},
	})

	svc := newReconcileService(problems, accounts, feed, &fakeLocker{})
	if err := svc.Reconcile(context.Background()); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}

	if got := accounts.score("bob"); got != 0 {
		t.Errorf("bob score = %d, want 0", got)
	}
	if got := problems.get(t, 1700, "B").Version; got != 0 {
		t.Errorf("version = %d, want 0", got)
	}
}

func TestReconcileFeedErrorSkipsOnlyThatProblem(t *testing.T) {
	broken := activeProblem(1700, "B", 1600, "")
	healthy := activeProblem(1800, "C", 2000, "")
	problems := newFakeProblemStore(broken, healthy)
	accounts := newFakeAccountStore("bob")
	feed := newFakeFeed(map[int64][]codeforces.Submission{
		1800: {accepted("bob", 1800, "C", time.Minute)},
	})
	feed.fail(1700, pkgerrors.New(pkgerrors.FeedUnavailable))

	svc := newReconcileService(problems, accounts, feed, &fakeLocker{})
	if err := svc.Reconcile(context.Background()); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}

	if got := accounts.score("bob"); got != 25 {
		t.Errorf("bob score = %d, want 25", got)
	}
	if got := problems.get(t, 1700, "B").Version; got != 0 {
		t.Errorf("broken problem version = %d, want 0", got)
	}
}

func TestReconcileSkipsWhenLockHeld(t *testing.T) {
	problems := newFakeProblemStore(activeProblem(1700, "B", 1600, ""))
	accounts := newFakeAccountStore("bob")
	feed := newFakeFeed(map[int64][]codeforces.Submission{
		1700: {accepted("bob", 1700, "B", time.Minute)},
	})

	svc := newReconcileService(problems, accounts, feed, &fakeLocker{held: true})
	if err := svc.Reconcile(context.Background()); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}

	if feed.calls() != 0 {
		t.Errorf("feed calls = %d, want 0", feed.calls())
	}
	if got := accounts.score("bob"); got != 0 {
		t.Errorf("bob score = %d, want 0", got)
	}
}

func TestReconcileRetriesVersionConflict(t *testing.T) {
	record := activeProblem(1700, "B", 1600, "")
	problems := newFakeProblemStore(record)
	// First append observes a concurrent writer who already credited
	// mallory; the retry must diff against the fresh ledger.
	problems.conflictThen(func() {
		fresh := problems.get(t, 1700, "B")
		fresh.Solved = []string{"mallory"}
		fresh.Version = 1
	})
	accounts := newFakeAccountStore("bob", "mallory")
	feed := newFakeFeed(map[int64][]codeforces.Submission{
		1700: {
			accepted("bob", 1700, "B", 2*time.Minute),
			accepted("mallory", 1700, "B", time.Minute),
		},
	})

	svc := newReconcileService(problems, accounts, feed, &fakeLocker{})
	if err := svc.Reconcile(context.Background()); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}

	// mallory was credited by the other writer; this pass only adds
	// bob, at the second bonus slot.
	if got := accounts.score("bob"); got != 20 {
		t.Errorf("bob score = %d, want 20", got)
	}
	if got := accounts.score("mallory"); got != 0 {
		t.Errorf("mallory score = %d, want 0", got)
	}
	final := problems.get(t, 1700, "B")
	if len(final.Solved) != 2 || final.Solved[0] != "mallory" || final.Solved[1] != "bob" {
		t.Errorf("solved = %v, want [mallory bob]", final.Solved)
	}
}

type fakeProblemStore struct {
	mu       sync.Mutex
	records  map[codeforces.ProblemKey]*problemrepo.Problem
	conflict func()
}

func newFakeProblemStore(records ...*problemrepo.Problem) *fakeProblemStore {
	store := &fakeProblemStore{records: make(map[codeforces.ProblemKey]*problemrepo.Problem)}
	for _, record := range records {
		store.records[record.Key()] = record
	}
	return store
}

// conflictThen makes the next AppendSolved fail with a version conflict
// after running mutate, which plays the concurrent writer.
func (s *fakeProblemStore) conflictThen(mutate func()) {
	s.conflict = mutate
}

func (s *fakeProblemStore) get(t *testing.T, contestID int64, index string) *problemrepo.Problem {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[codeforces.ProblemKey{ContestID: contestID, Index: index}]
	if !ok {
		t.Fatalf("problem %d%s not in store", contestID, index)
	}
	return record
}

func (s *fakeProblemStore) GetByKey(ctx context.Context, tx db.Transaction, key codeforces.ProblemKey) (*problemrepo.Problem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[key]
	if !ok {
		return nil, problemrepo.ErrProblemNotFound
	}
	clone := *record
	clone.Solved = append([]string(nil), record.Solved...)
	return &clone, nil
}

func (s *fakeProblemStore) ListActiveOn(ctx context.Context, tx db.Transaction, date string) ([]*problemrepo.Problem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var active []*problemrepo.Problem
	for _, record := range s.records {
		if record.Active && record.ActivationDate == date {
			clone := *record
			clone.Solved = append([]string(nil), record.Solved...)
			active = append(active, &clone)
		}
	}
	return active, nil
}

func (s *fakeProblemStore) AppendSolved(ctx context.Context, tx db.Transaction, key codeforces.ProblemKey, solved []string, expectedVersion int64) error {
	s.mu.Lock()
	conflict := s.conflict
	s.conflict = nil
	s.mu.Unlock()
	if conflict != nil {
		conflict()
		return problemrepo.ErrVersionConflict
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[key]
	if !ok {
		return problemrepo.ErrProblemNotFound
	}
	if record.Version != expectedVersion {
		return problemrepo.ErrVersionConflict
	}
	record.Solved = append([]string(nil), solved...)
	record.Version++
	return nil
}

func (s *fakeProblemStore) Create(ctx context.Context, tx db.Transaction, problem *problemrepo.Problem) (int64, error) {
	return 0, errors.New("not implemented")
}

func (s *fakeProblemStore) FirstInactiveByTier(ctx context.Context, tx db.Transaction, tier problemrepo.Tier) (*problemrepo.Problem, error) {
	return nil, errors.New("not implemented")
}

func (s *fakeProblemStore) MarkActive(ctx context.Context, tx db.Transaction, key codeforces.ProblemKey, date string) error {
	return errors.New("not implemented")
}

func (s *fakeProblemStore) Requeue(ctx context.Context, tx db.Transaction, key codeforces.ProblemKey, pusher string) error {
	return errors.New("not implemented")
}

func (s *fakeProblemStore) ListDistributedKeys(ctx context.Context, tx db.Transaction) (map[codeforces.ProblemKey]struct{}, error) {
	return nil, errors.New("not implemented")
}

type fakeAccountStore struct {
	mu     sync.Mutex
	bound  []string
	scores map[string]int64
}

func newFakeAccountStore(handles ...string) *fakeAccountStore {
	return &fakeAccountStore{bound: handles, scores: make(map[string]int64)}
}

func (s *fakeAccountStore) score(handle string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scores[handle]
}

func (s *fakeAccountStore) List(ctx context.Context, tx db.Transaction) ([]*accountrepo.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	accounts := make([]*accountrepo.Account, 0, len(s.bound))
	for i, handle := range s.bound {
		accounts = append(accounts, &accountrepo.Account{
			ID:     int64(i + 1),
			ChatID: "chat-" + handle,
			Handle: handle,
			Score:  s.scores[handle],
		})
	}
	return accounts, nil
}

func (s *fakeAccountStore) AddScore(ctx context.Context, tx db.Transaction, handle string, delta int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scores[handle] += delta
	return nil
}

func (s *fakeAccountStore) Create(ctx context.Context, tx db.Transaction, account *accountrepo.Account) (int64, error) {
	return 0, errors.New("not implemented")
}

func (s *fakeAccountStore) GetByChatID(ctx context.Context, tx db.Transaction, chatID string) (*accountrepo.Account, error) {
	return nil, errors.New("not implemented")
}

func (s *fakeAccountStore) GetByHandle(ctx context.Context, tx db.Transaction, handle string) (*accountrepo.Account, error) {
	return nil, errors.New("not implemented")
}

func (s *fakeAccountStore) ListRanked(ctx context.Context, tx db.Transaction, limit, offset int) ([]*accountrepo.Account, error) {
	accounts, _ := s.List(ctx, tx)
	sort.Slice(accounts, func(i, j int) bool {
		if accounts[i].Score != accounts[j].Score {
			return accounts[i].Score > accounts[j].Score
		}
		return accounts[i].ID < accounts[j].ID
	})
	if offset >= len(accounts) {
		return nil, nil
	}
	accounts = accounts[offset:]
	if limit < len(accounts) {
		accounts = accounts[:limit]
	}
	return accounts, nil
}

func (s *fakeAccountStore) Count(ctx context.Context, tx db.Transaction) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.bound)), nil
}

func (s *fakeAccountStore) Delete(ctx context.Context, tx db.Transaction, chatID string) error {
	return errors.New("not implemented")
}

type fakeFeed struct {
	mu          sync.Mutex
	submissions map[int64][]codeforces.Submission
	failures    map[int64]error
	fetches     int
}

func newFakeFeed(submissions map[int64][]codeforces.Submission) *fakeFeed {
	return &fakeFeed{submissions: submissions, failures: make(map[int64]error)}
}

func (f *fakeFeed) fail(contestID int64, err error) {
	f.failures[contestID] = err
}

func (f *fakeFeed) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches
}

func (f *fakeFeed) FetchSubmissions(ctx context.Context, contestID int64) ([]codeforces.Submission, error) {
	f.mu.Lock()
	f.fetches++
	f.mu.Unlock()
	if err := f.failures[contestID]; err != nil {
		return nil, err
	}
	return f.submissions[contestID], nil
}

type fakeLocker struct {
	mu       sync.Mutex
	held     bool
	acquired int
	released int
}

func (l *fakeLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held {
		return false, nil
	}
	l.held = true
	l.acquired++
	return true, nil
}

func (l *fakeLocker) Unlock(ctx context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.held = false
	l.released++
	return nil
}

func (l *fakeLocker) ExtendLock(ctx context.Context, key string, ttl time.Duration) error {
	return nil
}
