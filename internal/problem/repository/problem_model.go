package repository

import "acmdaily/internal/codeforces"

// Tier is one of the three difficulty bands a problem is distributed under.
type Tier int8

const (
	TierEasy Tier = 1
	TierMid  Tier = 2
	TierHard Tier = 3
)

// AllTiers lists tiers in distribution order.
func AllTiers() []Tier {
	return []Tier{TierEasy, TierMid, TierHard}
}

func (t Tier) String() string {
	switch t {
	case TierEasy:
		return "easy"
	case TierMid:
		return "mid"
	case TierHard:
		return "hard"
	default:
		return "unknown"
	}
}

// Problem is one tracked problem record. A record is created either when a
// participant queues a problem manually (Active=false) or when the pool
// manager draws a fresh catalog problem (Active=true with today's date).
type Problem struct {
	ID        int64
	ContestID int64
	Index     string
	Rating    int
	Name      string
	Tier      Tier

	// Active marks the problem as distributed. Together with
	// ActivationDate it scopes which submissions can earn credit.
	Active         bool
	ActivationDate string

	// Solved is the append-only credit ledger, oldest solver first.
	Solved []string

	// Pusher is the handle that queued the problem; it never earns
	// credit for solving it.
	Pusher string

	// Version guards the read-modify-write of Solved.
	Version int64
}

// Key returns the unique (contest, index) identity of the record.
func (p *Problem) Key() codeforces.ProblemKey {
	return codeforces.ProblemKey{ContestID: p.ContestID, Index: p.Index}
}
