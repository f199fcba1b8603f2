package service_test

import (
	"testing"

	"acmdaily/internal/codeforces"
	"acmdaily/internal/problem/repository"
	"acmdaily/internal/problem/service"
)

func TestTierOfBoundaries(t *testing.T) {
	cfg := service.TierConfig{EasyMax: 1200, MidMax: 2000}

	cases := []struct {
		rating int
		want   repository.Tier
	}{
		{800, repository.TierEasy},
		{1200, repository.TierEasy},
		{1201, repository.TierMid},
		{2000, repository.TierMid},
		{2001, repository.TierHard},
		{3500, repository.TierHard},
	}
	for _, tc := range cases {
		if got := cfg.TierOf(tc.rating); got != tc.want {
			t.Errorf("TierOf(%d) = %s, want %s", tc.rating, got, tc.want)
		}
	}
}

func TestNormalizedCorrectsInvertedThresholds(t *testing.T) {
	cfg := service.TierConfig{EasyMax: 1800, MidMax: 1000}.Normalized()
	if cfg.MidMax != 1900 {
		t.Errorf("MidMax = %d, want 1900", cfg.MidMax)
	}
}

func TestPartitionByTierDropsUnrated(t *testing.T) {
	pools := service.PartitionByTier(service.TierConfig{}, []codeforces.CatalogProblem{
		{ContestID: 1, Index: "A", Rating: 900},
		{ContestID: 2, Index: "B", Rating: 0},
		{ContestID: 3, Index: "C", Rating: 1600},
		{ContestID: 4, Index: "D", Rating: 2400},
	})

	if len(pools[repository.TierEasy]) != 1 || pools[repository.TierEasy][0].ContestID != 1 {
		t.Errorf("easy pool = %+v, want contest 1 only", pools[repository.TierEasy])
	}
	if len(pools[repository.TierMid]) != 1 || len(pools[repository.TierHard]) != 1 {
		t.Errorf("mid/hard pools = %+v / %+v", pools[repository.TierMid], pools[repository.TierHard])
	}
}
