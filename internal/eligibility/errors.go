package eligibility

import (
	"fmt"
	"strings"

	"github.com/taskops/assignbot/internal/gates"
	"github.com/taskops/assignbot/internal/models"
)

// The evaluator reports failures as tagged variants so the classifier and the
// HTTP layer can switch on type, never on rendered text.

// MissingSenderError aborts an evaluation with no identifiable sender.
type MissingSenderError struct{}

func (e *MissingSenderError) Error() string {
	return "cannot evaluate a start request without a sender"
}

// IssueClosedError aborts a start against a closed issue.
type IssueClosedError struct {
	Number int
}

func (e *IssueClosedError) Error() string {
	return fmt.Sprintf("issue #%d is closed", e.Number)
}

// AlreadyAssignedError aborts a start against an issue that already has
// assignees.
type AlreadyAssignedError struct {
	Number    int
	Assignees []string
}

func (e *AlreadyAssignedError) Error() string {
	return fmt.Sprintf("issue #%d is already assigned to %s", e.Number, strings.Join(e.Assignees, ", "))
}

// ParentIssueError aborts a start against an issue whose body tracks
// sub-issues; parents are coordination points, not tasks.
type ParentIssueError struct {
	Number int
}

func (e *ParentIssueError) Error() string {
	return fmt.Sprintf("issue #%d is a parent issue and cannot be assigned directly", e.Number)
}

// PriceLabelRequiredError aborts a contributor's start against an unpriced
// issue.
type PriceLabelRequiredError struct{}

func (e *PriceLabelRequiredError) Error() string {
	return "this task requires a price label before it can be started"
}

// RoleNotAllowedError aborts a start when a label rule excludes the sender's
// role.
type RoleNotAllowedError struct {
	Role  models.Role
	Label string
}

func (e *RoleNotAllowedError) Error() string {
	return fmt.Sprintf("the %q label does not permit starts by the %s role", e.Label, e.Role)
}

// UnassignedError blocks a participant who was previously force-unassigned
// from the issue. It outranks every other error in the classifier.
type UnassignedError struct {
	Username string
}

func (e *UnassignedError) Error() string {
	return fmt.Sprintf("%s was previously unassigned from this task and cannot pick it up again", e.Username)
}

// QuotaError blocks a participant who is at their concurrent-task limit.
type QuotaError struct {
	Username string
	IsSender bool
	Limit    int
	Assigned int
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("%s has reached their concurrent task limit of %d", e.Username, e.Limit)
}

// AllTeammatesReachedError summarizes an evaluation where every considered
// participant was blocked and more than one was considered.
type AllTeammatesReachedError struct {
	Considered int
}

func (e *AllTeammatesReachedError) Error() string {
	return fmt.Sprintf("all %d requested teammates have reached their task limits", e.Considered)
}

// MaxTaskLimitError summarizes an evaluation where the sole participant could
// not be assigned.
type MaxTaskLimitError struct {
	Username string
}

func (e *MaxTaskLimitError) Error() string {
	return fmt.Sprintf("%s cannot take on another task right now", e.Username)
}

// ParticipantCheckError wraps an unexpected failure during one participant's
// checks so it blocks that participant without crashing the evaluation.
type ParticipantCheckError struct {
	Username string
	Err      error
}

func (e *ParticipantCheckError) Error() string {
	return fmt.Sprintf("could not evaluate %s: %v", e.Username, e.Err)
}

func (e *ParticipantCheckError) Unwrap() error {
	return e.Err
}

// isQuotaRelated reports whether an error belongs to the quota family the
// classifier special-cases.
func isQuotaRelated(err error) bool {
	switch err.(type) {
	case *QuotaError, *AllTeammatesReachedError, *MaxTaskLimitError:
		return true
	}
	return false
}

// blockedUsername returns the participant a blocking error applies to, for
// pruning toAssign after the gates run.
func blockedUsername(err error) string {
	switch e := err.(type) {
	case *gates.AccountAgeError:
		return e.Username
	case *gates.ExperienceError:
		return e.Username
	case *gates.ExperienceUnverifiableError:
		return e.Username
	}
	return ""
}
