package models

import (
	"time"
)

// Role is a participant's access level within the organization or repository.
type Role string

const (
	RoleAdmin        Role = "admin"
	RoleCollaborator Role = "collaborator"
	RoleContributor  Role = "contributor"
)

// IsPrivileged reports whether the role is exempt from the account-age and
// experience gates.
func (r Role) IsPrivileged() bool {
	return r == RoleAdmin || r == RoleCollaborator
}

// Participant represents a user considered for assignment, with their resolved
// role and concurrent-task limit. Resolved per evaluation, never persisted.
type Participant struct {
	Username string
	Role     Role
	Limit    int
}

// Issue represents a GitHub issue as seen by the eligibility engine.
type Issue struct {
	Number    int
	Owner     string
	Repo      string
	HTMLURL   string
	Title     string
	Body      string
	State     string
	CreatedAt time.Time
	Labels    []string
	Assignees []string
}

// User represents a GitHub user profile.
type User struct {
	ID        int64
	Login     string
	Type      string
	CreatedAt time.Time
}

// Comment represents an issue comment.
type Comment struct {
	Author    string
	Body      string
	CreatedAt time.Time
}

// TimelineEvent represents an assigned/unassigned event on an issue timeline.
type TimelineEvent struct {
	Event     string // "assigned" or "unassigned"
	Assignee  string
	ActorType string // "User", "Bot", ...
	CreatedAt time.Time
}

// UnassignReason records who ended an assignment period.
type UnassignReason string

const (
	UnassignedByBot  UnassignReason = "bot"
	UnassignedByUser UnassignReason = "user"
	// Reserved for moderation flows.
	UnassignedByAdmin UnassignReason = "admin"
)

// AssignmentPeriod is one span during which a user was assigned to an issue.
// Derived from the issue's event history on every evaluation, never stored.
type AssignmentPeriod struct {
	AssignedAt   time.Time
	UnassignedAt *time.Time
	Reason       UnassignReason
}

// Review represents a single pull request review.
type Review struct {
	Author      string
	State       string // "APPROVED", "CHANGES_REQUESTED", "COMMENTED", ...
	SubmittedAt time.Time
}

// PullRequest represents an open pull request with the review state needed to
// decide whether it is still awaiting review.
type PullRequest struct {
	Number             int
	HTMLURL            string
	CreatedAt          time.Time
	ReviewRequestedAt  *time.Time
	Reviews            []Review
	RequestedReviewers []string
}

// ReviewRequestedFrom reports whether a review is currently re-requested from
// the given user, which voids their earlier approval.
func (pr *PullRequest) ReviewRequestedFrom(login string) bool {
	for _, r := range pr.RequestedReviewers {
		if r == login {
			return true
		}
	}
	return false
}
