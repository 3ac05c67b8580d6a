package eligibility

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/taskops/assignbot/internal/logging"
	"github.com/taskops/assignbot/internal/models"
)

// CommentPoster posts a comment on an issue.
type CommentPoster interface {
	CreateComment(ctx context.Context, owner, repo string, number int, body string) error
}

// Status is the terminal disposition of a handled evaluation.
type Status int

const (
	StatusOK Status = iota
	// StatusNotModified means the request was understood and answered with
	// a comment, but nothing was assigned.
	StatusNotModified
)

// Outcome is a non-error terminal response from the classifier.
type Outcome struct {
	Status  Status
	Content string
}

// Responder picks the single most relevant error from a failed evaluation
// and decides whether to answer with a posted comment or a returned error.
type Responder struct {
	comments CommentPoster
	log      *logging.Logger
}

// NewResponder creates a responder.
func NewResponder(comments CommentPoster, log *logging.Logger) *Responder {
	return &Responder{comments: comments, log: log}
}

// HandleFailure applies the precedence rules to a failed evaluation:
// unassignment outranks everything; parent-issue is surfaced (with a posted
// comment) unless a missing price label must be reported first; an all-quota
// failure either summarizes the teammates or answers the sender with their
// assigned-task list; anything else is returned as-is or joined.
func (r *Responder) HandleFailure(ctx context.Context, issue *models.Issue, res *Result) (*Outcome, error) {
	if len(res.Errors) == 0 {
		return nil, fmt.Errorf("HandleFailure called on a passing evaluation")
	}

	for _, err := range res.Errors {
		var unassigned *UnassignedError
		if errors.As(err, &unassigned) {
			return nil, unassigned
		}
	}

	var parent *ParentIssueError
	priceRequired := false
	for _, err := range res.Errors {
		var p *ParentIssueError
		if errors.As(err, &p) {
			parent = p
		}
		var pr *PriceLabelRequiredError
		if errors.As(err, &pr) {
			priceRequired = true
		}
	}
	if parent != nil && !priceRequired {
		body := fmt.Sprintf("Issue #%d tracks sub-issues. Start one of the listed sub-issues instead.", parent.Number)
		if err := r.comments.CreateComment(ctx, issue.Owner, issue.Repo, issue.Number, body); err != nil {
			r.log.Error("failed to post parent-issue comment", "issue", issue.Number, "error", err)
		}
		return nil, parent
	}

	if allQuotaRelated(res.Errors) {
		if len(res.Computed.ToAssign) == 0 && res.Computed.ConsideredCount > 1 {
			for _, err := range res.Errors {
				var reached *AllTeammatesReachedError
				if errors.As(err, &reached) {
					return nil, reached
				}
			}
			return nil, &AllTeammatesReachedError{Considered: res.Computed.ConsideredCount}
		}

		if quota := senderQuotaError(res.Errors); quota != nil {
			body := renderAssignedIssues(quota, res.Computed.AssignedIssues)
			if err := r.comments.CreateComment(ctx, issue.Owner, issue.Repo, issue.Number, body); err != nil {
				r.log.Error("failed to post quota comment", "issue", issue.Number, "error", err)
			}
			return &Outcome{Status: StatusNotModified, Content: quota.Error()}, nil
		}
	}

	if len(res.Errors) > 1 {
		return nil, errors.Join(res.Errors...)
	}
	return nil, res.Errors[0]
}

func allQuotaRelated(errs []error) bool {
	for _, err := range errs {
		if !isQuotaRelated(err) {
			return false
		}
	}
	return len(errs) > 0
}

// senderQuotaError returns the quota error when the sender is the only
// participant at their limit.
func senderQuotaError(errs []error) *QuotaError {
	if len(errs) != 1 {
		return nil
	}
	var quota *QuotaError
	if errors.As(errs[0], &quota) && quota.IsSender {
		return quota
	}
	return nil
}

// renderAssignedIssues lists the sender's current tasks, reformatting GitHub
// issue URLs into "org/repo - title #N" markdown links.
func renderAssignedIssues(quota *QuotaError, assigned []models.Issue) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s, you have reached your limit of %d concurrent tasks. Complete one of your current tasks before starting another:\n", quota.Username, quota.Limit)
	for _, issue := range assigned {
		fmt.Fprintf(&b, "- [%s/%s - %s #%d](%s)\n", issue.Owner, issue.Repo, issue.Title, issue.Number, issue.HTMLURL)
	}
	return b.String()
}
