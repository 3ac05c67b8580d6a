package assignment

import (
	"context"
	"fmt"
	"time"

	"github.com/taskops/assignbot/internal/labels"
	"github.com/taskops/assignbot/internal/logging"
	"github.com/taskops/assignbot/internal/models"
)

// API is the slice of the GitHub surface the executor writes through.
type API interface {
	User(ctx context.Context, login string) (*models.User, error)
	LatestCommitSHA(ctx context.Context, owner, repo string) (string, error)
	AddAssignees(ctx context.Context, owner, repo string, number int, usernames []string) error
	CreateComment(ctx context.Context, owner, repo string, number int, body string) error
	IsPrivateRepo(ctx context.Context, owner, repo string) (bool, error)
}

// Executor performs a validated assignment: resolves user IDs, computes the
// deadline, calls the assign API and posts the assignment comment.
type Executor struct {
	api          API
	staleTimeout time.Duration
	log          *logging.Logger
	now          func() time.Time
}

// NewExecutor creates an executor.
func NewExecutor(api API, staleTimeout time.Duration, log *logging.Logger) *Executor {
	return &Executor{api: api, staleTimeout: staleTimeout, log: log, now: time.Now}
}

// Result reports a completed assignment.
type Result struct {
	Content   string
	Assignees []string
	Deadline  *time.Time
}

// Perform assigns the given users to the issue. Any user-ID lookup failure
// aborts the whole assignment; the commit-SHA fetch is best effort.
func (e *Executor) Perform(ctx context.Context, issue *models.Issue, toAssign []string, wallet string) (*Result, error) {
	if len(toAssign) == 0 {
		return nil, fmt.Errorf("nothing to assign on issue #%d", issue.Number)
	}

	for _, username := range toAssign {
		if _, err := e.api.User(ctx, username); err != nil {
			return nil, fmt.Errorf("failed to resolve user %s: %w", username, err)
		}
	}

	revision, err := e.api.LatestCommitSHA(ctx, issue.Owner, issue.Repo)
	if err != nil {
		e.log.Warn("could not fetch latest commit for audit metadata", "issue", issue.Number, "error", err)
		revision = ""
	}

	now := e.now()
	var deadline *time.Time
	if d, ok := labels.ShortestDuration(issue.Labels); ok {
		t := now.Add(d)
		deadline = &t
	}
	stale := e.staleTimeout > 0 && now.Sub(issue.CreatedAt) > e.staleTimeout

	// One request for all assignees so the write is atomic.
	if err := e.api.AddAssignees(ctx, issue.Owner, issue.Repo, issue.Number, toAssign); err != nil {
		return nil, err
	}

	if len(toAssign) > 1 {
		if private, err := e.api.IsPrivateRepo(ctx, issue.Owner, issue.Repo); err != nil {
			e.log.Warn("could not determine repo visibility", "issue", issue.Number, "error", err)
		} else if private {
			e.log.Warn("private repositories may silently drop extra assignees",
				"issue", issue.Number, "assignees", len(toAssign))
		}
	}

	priceLabel, _ := labels.FindPriceLabel(issue.Labels)
	body, err := renderAssignmentComment(stale, deadline, wallet, Metadata{
		Assignees:  toAssign,
		PriceLabel: priceLabel,
		Deadline:   deadline,
		Revision:   revision,
	})
	if err != nil {
		return nil, err
	}

	if err := e.api.CreateComment(ctx, issue.Owner, issue.Repo, issue.Number, body); err != nil {
		return nil, err
	}

	return &Result{
		Content:   "Task assigned successfully",
		Assignees: toAssign,
		Deadline:  deadline,
	}, nil
}
