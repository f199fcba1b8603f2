package codeforces

// VerdictAccepted is the verdict string Codeforces assigns to accepted submissions.
const VerdictAccepted = "OK"

// CatalogProblem is one entry of the problemset catalog.
type CatalogProblem struct {
	ContestID int64  `json:"contestId"`
	Index     string `json:"index"`
	Name      string `json:"name"`
	Rating    int    `json:"rating"`
}

// Key returns the unique (contest, index) identity of the problem.
func (p CatalogProblem) Key() ProblemKey {
	return ProblemKey{ContestID: p.ContestID, Index: p.Index}
}

// ProblemKey identifies a problem by its (contest, index) pair.
type ProblemKey struct {
	ContestID int64
	Index     string
}

// Member is a single participant of a submission's author party.
type Member struct {
	Handle string `json:"handle"`
}

// SubmissionAuthor is the party that made a submission.
type SubmissionAuthor struct {
	Members []Member `json:"members"`
}

// SubmissionProblem is the problem a submission was made against.
type SubmissionProblem struct {
	ContestID int64  `json:"contestId"`
	Index     string `json:"index"`
}

// Submission is one entry of a contest submission feed, newest first.
type Submission struct {
	ID                  int64             `json:"id"`
	CreationTimeSeconds int64             `json:"creationTimeSeconds"`
	Problem             SubmissionProblem `json:"problem"`
	Author              SubmissionAuthor  `json:"author"`
	Verdict             string            `json:"verdict"`
}

// Handle returns the handle of the first author member, or empty for a
// malformed entry.
func (s Submission) Handle() string {
	if len(s.Author.Members) == 0 {
		return ""
	}
	return s.Author.Members[0].Handle
}

// User is one entry of a user.info response.
type User struct {
	Handle string `json:"handle"`
	Rating int    `json:"rating"`
}
