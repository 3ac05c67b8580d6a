package workload

import (
	"context"
	"time"

	"github.com/taskops/assignbot/internal/api"
	"github.com/taskops/assignbot/internal/logging"
	"github.com/taskops/assignbot/internal/models"
)

// IssueSource finds a user's assigned open issues.
type IssueSource interface {
	SearchAssignedIssues(ctx context.Context, scope, username string) ([]models.Issue, error)
	ListOpenIssuesByAssignee(ctx context.Context, owner, repo, assignee string) ([]models.Issue, error)
}

// PullSource finds a user's open pull requests with review state.
type PullSource interface {
	OpenPullRequestsByAuthor(ctx context.Context, scope, author string) ([]models.PullRequest, error)
}

// Counter computes a participant's current load: assigned open issues minus
// open PRs still awaiting review.
type Counter struct {
	issues    IssueSource
	pulls     PullSource
	scope     string // search clause, e.g. "org:acme" or "repo:acme/widgets"
	owner     string
	repo      string
	tolerance time.Duration
	now       func() time.Time
	log       *logging.Logger
}

// NewCounter creates a workload counter. owner/repo name the repository used
// by the enumeration fallback when the search API fails.
func NewCounter(issues IssueSource, pulls PullSource, scope, owner, repo string, tolerance time.Duration, log *logging.Logger) *Counter {
	return &Counter{
		issues:    issues,
		pulls:     pulls,
		scope:     scope,
		owner:     owner,
		repo:      repo,
		tolerance: tolerance,
		now:       time.Now,
		log:       log,
	}
}

// Load is a participant's current workload.
type Load struct {
	AssignedIssues []models.Issue
	PendingPRs     []models.PullRequest
}

// WithinLimit reports whether taking one more task would stay inside the
// participant's limit. Pending PRs reduce effective load, but via abs() the
// count floors at the raw difference rather than clamping at zero, so a user
// with more pending PRs than issues widens their effective capacity. That
// asymmetry is the documented behavior; do not clamp without confirming with
// the system owner.
func (l Load) WithinLimit(limit int) bool {
	diff := len(l.AssignedIssues) - len(l.PendingPRs)
	if diff < 0 {
		diff = -diff
	}
	return diff < limit
}

// Compute fetches the user's assigned issues and pending-review PRs.
func (c *Counter) Compute(ctx context.Context, username string) (Load, error) {
	assigned, err := c.issues.SearchAssignedIssues(ctx, c.scope, username)
	if err != nil {
		if !api.IsNotFound(err) {
			return Load{}, err
		}
		// Users with private activity 404 on search; enumerate instead.
		c.log.Debug("issue search returned 404, falling back to enumeration", "user", username)
		assigned, err = c.issues.ListOpenIssuesByAssignee(ctx, c.owner, c.repo, username)
		if err != nil {
			return Load{}, err
		}
	}

	prs, err := c.pulls.OpenPullRequestsByAuthor(ctx, c.scope, username)
	if err != nil {
		return Load{}, err
	}

	now := c.now()
	var pending []models.PullRequest
	for _, pr := range prs {
		if c.isPendingReview(pr, now) {
			pending = append(pending, pr)
		}
	}

	return Load{AssignedIssues: assigned, PendingPRs: pending}, nil
}

// isPendingReview decides whether an open PR is still awaiting review and so
// reduces the author's effective load. A PR stops counting once it has an
// approval from a reviewer not currently re-requested and the wait has
// exceeded the tolerance.
func (c *Counter) isPendingReview(pr models.PullRequest, now time.Time) bool {
	start := pr.CreatedAt
	if pr.ReviewRequestedAt != nil {
		start = *pr.ReviewRequestedAt
	}
	waited := now.Sub(start)

	approved := false
	changesRequested := false
	for _, review := range pr.Reviews {
		switch review.State {
		case "CHANGES_REQUESTED":
			changesRequested = true
		case "APPROVED":
			if !pr.ReviewRequestedFrom(review.Author) {
				approved = true
			}
		}
	}

	if changesRequested {
		return true
	}
	if approved {
		return false
	}
	if len(pr.Reviews) == 0 {
		return waited < c.tolerance
	}
	return waited <= c.tolerance
}
