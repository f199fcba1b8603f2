package service

import (
	"fmt"
	"strings"

	"acmdaily/internal/problem/repository"
)

// ProblemLink builds the canonical problemset URL for a record.
func ProblemLink(problem *repository.Problem) string {
	return fmt.Sprintf("https://codeforces.com/problemset/problem/%d/%s", problem.ContestID, problem.Index)
}

// FormatDailySet renders a distribution set into the delivery text.
func FormatDailySet(set *DailySet, title string) string {
	var builder strings.Builder
	builder.WriteString(title)
	builder.WriteString(":\n")

	sections := []struct {
		label   string
		problem *repository.Problem
	}{
		{"Easy", set.Easy},
		{"Mid", set.Mid},
		{"Hard", set.Hard},
	}
	for _, section := range sections {
		if section.problem == nil {
			continue
		}
		builder.WriteString(fmt.Sprintf("\n%s:\n%s\n%s (%d)\n",
			section.label, section.problem.Name, ProblemLink(section.problem), section.problem.Rating))
	}
	return builder.String()
}
