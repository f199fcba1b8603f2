package service

import (
	"acmdaily/internal/codeforces"
	"acmdaily/internal/problem/repository"
)

const (
	defaultEasyMax = 1200
	defaultMidMax  = 2000
)

// TierConfig holds the rating thresholds that split the catalog into
// difficulty tiers. It is passed explicitly into every partitioning call;
// nothing reads ambient tuning state.
type TierConfig struct {
	// EasyMax is the inclusive rating ceiling of the easy tier.
	EasyMax int
	// MidMax is the inclusive rating ceiling of the mid tier. Anything
	// above it is hard.
	MidMax int
}

// Normalized returns a copy with defaults applied and MidMax corrected to
// sit above EasyMax, the way the thresholds are documented to behave.
func (c TierConfig) Normalized() TierConfig {
	if c.EasyMax == 0 {
		c.EasyMax = defaultEasyMax
	}
	if c.MidMax == 0 {
		c.MidMax = defaultMidMax
	}
	if c.MidMax < c.EasyMax {
		c.MidMax = c.EasyMax + 100
	}
	return c
}

// TierOf maps a rating to its difficulty tier.
func (c TierConfig) TierOf(rating int) repository.Tier {
	switch {
	case rating <= c.EasyMax:
		return repository.TierEasy
	case rating <= c.MidMax:
		return repository.TierMid
	default:
		return repository.TierHard
	}
}

// PartitionByTier splits catalog problems into difficulty tiers. Problems
// without a rating cannot be tiered and are dropped.
func PartitionByTier(cfg TierConfig, problems []codeforces.CatalogProblem) map[repository.Tier][]codeforces.CatalogProblem {
	cfg = cfg.Normalized()
	pools := make(map[repository.Tier][]codeforces.CatalogProblem, 3)
	for _, problem := range problems {
		if problem.Rating == 0 {
			continue
		}
		tier := cfg.TierOf(problem.Rating)
		pools[tier] = append(pools[tier], problem)
	}
	return pools
}
