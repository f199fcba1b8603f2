package service

import (
	"regexp"
	"strconv"
	"strings"

	"acmdaily/internal/codeforces"
	pkgerrors "acmdaily/pkg/errors"
)

var (
	problemURLPattern     = regexp.MustCompile(`codeforces\.com/(?:contest|problemset)/(?:problem/)?(\d+)/(?:problem/)?([A-Za-z]+\d?)`)
	problemCompactPattern = regexp.MustCompile(`^(\d+)([A-Za-z]+\d?)$`)
)

// ParseProblemRef parses a problem reference in any of the accepted
// forms: a problemset/contest URL, "1234/A", "1234 A", or "1234A".
func ParseProblemRef(ref string) (codeforces.ProblemKey, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return codeforces.ProblemKey{}, pkgerrors.New(pkgerrors.InvalidProblemRef)
	}

	if match := problemURLPattern.FindStringSubmatch(ref); match != nil {
		return buildKey(match[1], match[2])
	}

	parts := strings.FieldsFunc(ref, func(r rune) bool { return r == '/' || r == ' ' })
	switch len(parts) {
	case 2:
		return buildKey(parts[0], parts[1])
	case 1:
		if match := problemCompactPattern.FindStringSubmatch(parts[0]); match != nil {
			return buildKey(match[1], match[2])
		}
	}
	return codeforces.ProblemKey{}, pkgerrors.Newf(pkgerrors.InvalidProblemRef, "cannot parse problem reference %q", ref)
}

func buildKey(contest, index string) (codeforces.ProblemKey, error) {
	contestID, err := strconv.ParseInt(contest, 10, 64)
	if err != nil {
		return codeforces.ProblemKey{}, pkgerrors.Newf(pkgerrors.InvalidProblemRef, "invalid contest id %q", contest)
	}
	return codeforces.ProblemKey{ContestID: contestID, Index: strings.ToUpper(index)}, nil
}
