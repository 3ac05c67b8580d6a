package eligibility

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/taskops/assignbot/internal/logging"
	"github.com/taskops/assignbot/internal/models"
)

type fakePoster struct {
	bodies []string
}

func (f *fakePoster) CreateComment(ctx context.Context, owner, repo string, number int, body string) error {
	f.bodies = append(f.bodies, body)
	return nil
}

func classifyIssue() *models.Issue {
	return &models.Issue{Number: 7, Owner: "acme", Repo: "widgets"}
}

func TestUnassignedOutranksEverything(t *testing.T) {
	poster := &fakePoster{}
	responder := NewResponder(poster, logging.Discard())

	res := &Result{Errors: []error{
		&ParentIssueError{Number: 7},
		&QuotaError{Username: "alice", IsSender: true, Limit: 2},
		&UnassignedError{Username: "alice"},
	}}

	_, err := responder.HandleFailure(context.Background(), classifyIssue(), res)

	var unassigned *UnassignedError
	if !errors.As(err, &unassigned) {
		t.Fatalf("error = %v, want the unassigned error alone", err)
	}
	if len(poster.bodies) != 0 {
		t.Errorf("posted %v, want no comment", poster.bodies)
	}
}

func TestParentIssuePostsComment(t *testing.T) {
	poster := &fakePoster{}
	responder := NewResponder(poster, logging.Discard())

	res := &Result{Errors: []error{&ParentIssueError{Number: 7}}}

	_, err := responder.HandleFailure(context.Background(), classifyIssue(), res)

	var parent *ParentIssueError
	if !errors.As(err, &parent) {
		t.Fatalf("error = %v, want parent-issue error", err)
	}
	if len(poster.bodies) != 1 {
		t.Fatalf("posted %d comments, want 1", len(poster.bodies))
	}
}

func TestPriceRequiredSuppressesParentComment(t *testing.T) {
	poster := &fakePoster{}
	responder := NewResponder(poster, logging.Discard())

	res := &Result{Errors: []error{
		&ParentIssueError{Number: 7},
		&PriceLabelRequiredError{},
	}}

	_, err := responder.HandleFailure(context.Background(), classifyIssue(), res)
	if err == nil {
		t.Fatal("expected an error")
	}
	if len(poster.bodies) != 0 {
		t.Errorf("posted %v, want no parent comment when the price label is missing", poster.bodies)
	}
	// Both findings survive in the joined error.
	if !strings.Contains(err.Error(), "price label") {
		t.Errorf("error %q should mention the missing price label", err.Error())
	}
}

func TestAllTeammatesReached(t *testing.T) {
	poster := &fakePoster{}
	responder := NewResponder(poster, logging.Discard())

	res := &Result{
		Errors: []error{
			&QuotaError{Username: "bob", Limit: 2},
			&QuotaError{Username: "carol", Limit: 2},
		},
		Computed: Computed{ConsideredCount: 3},
	}

	_, err := responder.HandleFailure(context.Background(), classifyIssue(), res)

	var reached *AllTeammatesReachedError
	if !errors.As(err, &reached) {
		t.Fatalf("error = %v, want all-teammates-reached", err)
	}
}

func TestSenderQuotaAnswersWithComment(t *testing.T) {
	poster := &fakePoster{}
	responder := NewResponder(poster, logging.Discard())

	res := &Result{
		Errors: []error{&QuotaError{Username: "alice", IsSender: true, Limit: 2, Assigned: 2}},
		Computed: Computed{
			ConsideredCount: 1,
			AssignedIssues: []models.Issue{
				{Owner: "acme", Repo: "widgets", Number: 3, Title: "Fix parser", HTMLURL: "https://github.com/acme/widgets/issues/3"},
				{Owner: "acme", Repo: "gears", Number: 9, Title: "Add cache", HTMLURL: "https://github.com/acme/gears/issues/9"},
			},
		},
	}

	outcome, err := responder.HandleFailure(context.Background(), classifyIssue(), res)
	if err != nil {
		t.Fatalf("HandleFailure() error = %v, want comment outcome", err)
	}
	if outcome.Status != StatusNotModified {
		t.Errorf("status = %v, want StatusNotModified", outcome.Status)
	}
	if len(poster.bodies) != 1 {
		t.Fatalf("posted %d comments, want 1", len(poster.bodies))
	}
	if !strings.Contains(poster.bodies[0], "[acme/widgets - Fix parser #3](https://github.com/acme/widgets/issues/3)") {
		t.Errorf("comment missing reformatted issue link:\n%s", poster.bodies[0])
	}
}

func TestAggregateAndSingleErrors(t *testing.T) {
	responder := NewResponder(&fakePoster{}, logging.Discard())

	single := &Result{Errors: []error{&IssueClosedError{Number: 7}}}
	_, err := responder.HandleFailure(context.Background(), classifyIssue(), single)
	var closed *IssueClosedError
	if !errors.As(err, &closed) {
		t.Errorf("single error = %v, want IssueClosedError back", err)
	}

	multi := &Result{Errors: []error{
		&IssueClosedError{Number: 7},
		&AlreadyAssignedError{Number: 7, Assignees: []string{"bob"}},
	}}
	_, err = responder.HandleFailure(context.Background(), classifyIssue(), multi)
	if err == nil || !strings.Contains(err.Error(), "closed") || !strings.Contains(err.Error(), "already assigned") {
		t.Errorf("aggregate error = %v, want both messages", err)
	}
}
