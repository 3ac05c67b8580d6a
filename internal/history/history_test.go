package history

import (
	"context"
	"testing"
	"time"

	"github.com/taskops/assignbot/internal/models"
)

var base = time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)

func at(hours int) time.Time { return base.Add(time.Duration(hours) * time.Hour) }

func TestBuildPeriods(t *testing.T) {
	tests := []struct {
		name        string
		events      []models.TimelineEvent
		comments    []models.Comment
		wantReasons []models.UnassignReason
	}{
		{
			name: "bot unassignment stays attributed to bot",
			events: []models.TimelineEvent{
				{Event: "assigned", Assignee: "alice", ActorType: "Bot", CreatedAt: at(0)},
				{Event: "unassigned", Assignee: "alice", ActorType: "Bot", CreatedAt: at(5)},
			},
			wantReasons: []models.UnassignReason{models.UnassignedByBot},
		},
		{
			name: "stop comment inside the period reclassifies to user",
			events: []models.TimelineEvent{
				{Event: "assigned", Assignee: "alice", ActorType: "Bot", CreatedAt: at(0)},
				{Event: "unassigned", Assignee: "alice", ActorType: "Bot", CreatedAt: at(5)},
			},
			comments: []models.Comment{
				{Author: "alice", Body: " /stop ", CreatedAt: at(3)},
			},
			wantReasons: []models.UnassignReason{models.UnassignedByUser},
		},
		{
			name: "stop comment outside the period does not reclassify",
			events: []models.TimelineEvent{
				{Event: "assigned", Assignee: "alice", ActorType: "Bot", CreatedAt: at(0)},
				{Event: "unassigned", Assignee: "alice", ActorType: "Bot", CreatedAt: at(5)},
			},
			comments: []models.Comment{
				{Author: "alice", Body: "/stop", CreatedAt: at(8)},
			},
			wantReasons: []models.UnassignReason{models.UnassignedByBot},
		},
		{
			name: "non-bot actor closing the period means self-unassignment",
			events: []models.TimelineEvent{
				{Event: "assigned", Assignee: "alice", ActorType: "Bot", CreatedAt: at(0)},
				{Event: "unassigned", Assignee: "alice", ActorType: "User", CreatedAt: at(5)},
			},
			wantReasons: []models.UnassignReason{models.UnassignedByUser},
		},
		{
			name: "other users' events are ignored",
			events: []models.TimelineEvent{
				{Event: "assigned", Assignee: "bob", ActorType: "Bot", CreatedAt: at(0)},
				{Event: "unassigned", Assignee: "bob", ActorType: "Bot", CreatedAt: at(2)},
				{Event: "assigned", Assignee: "alice", ActorType: "Bot", CreatedAt: at(1)},
				{Event: "unassigned", Assignee: "alice", ActorType: "User", CreatedAt: at(4)},
			},
			wantReasons: []models.UnassignReason{models.UnassignedByUser},
		},
		{
			name: "two periods keep independent reasons",
			events: []models.TimelineEvent{
				{Event: "assigned", Assignee: "alice", ActorType: "Bot", CreatedAt: at(0)},
				{Event: "unassigned", Assignee: "alice", ActorType: "User", CreatedAt: at(2)},
				{Event: "assigned", Assignee: "alice", ActorType: "Bot", CreatedAt: at(4)},
				{Event: "unassigned", Assignee: "alice", ActorType: "Bot", CreatedAt: at(6)},
			},
			wantReasons: []models.UnassignReason{models.UnassignedByUser, models.UnassignedByBot},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			periods := BuildPeriods(tt.events, tt.comments, "alice")
			if len(periods) != len(tt.wantReasons) {
				t.Fatalf("got %d periods, want %d", len(periods), len(tt.wantReasons))
			}
			for i, want := range tt.wantReasons {
				if periods[i].Reason != want {
					t.Errorf("period %d reason = %s, want %s", i, periods[i].Reason, want)
				}
			}
		})
	}
}

type fakeEvents struct {
	events   []models.TimelineEvent
	comments []models.Comment
}

func (f *fakeEvents) IssueTimeline(ctx context.Context, owner, repo string, number int) ([]models.TimelineEvent, error) {
	return f.events, nil
}

func (f *fakeEvents) IssueComments(ctx context.Context, owner, repo string, number int) ([]models.Comment, error) {
	return f.comments, nil
}

func TestWasForceUnassigned(t *testing.T) {
	issue := &models.Issue{Owner: "acme", Repo: "widgets", Number: 7}

	tests := []struct {
		name string
		src  fakeEvents
		want bool
	}{
		{
			name: "bot-closed period blocks",
			src: fakeEvents{events: []models.TimelineEvent{
				{Event: "assigned", Assignee: "alice", ActorType: "Bot", CreatedAt: at(0)},
				{Event: "unassigned", Assignee: "alice", ActorType: "Bot", CreatedAt: at(5)},
			}},
			want: true,
		},
		{
			name: "self stop never blocks",
			src: fakeEvents{
				events: []models.TimelineEvent{
					{Event: "assigned", Assignee: "alice", ActorType: "Bot", CreatedAt: at(0)},
					{Event: "unassigned", Assignee: "alice", ActorType: "Bot", CreatedAt: at(5)},
				},
				comments: []models.Comment{{Author: "alice", Body: "/stop", CreatedAt: at(2)}},
			},
			want: false,
		},
		{
			name: "open period alone does not block",
			src: fakeEvents{events: []models.TimelineEvent{
				{Event: "assigned", Assignee: "alice", ActorType: "Bot", CreatedAt: at(0)},
			}},
			want: false,
		},
		{
			name: "no history",
			src:  fakeEvents{},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracker := NewTracker(&tt.src)
			got, err := tracker.WasForceUnassigned(context.Background(), issue, "alice")
			if err != nil {
				t.Fatalf("WasForceUnassigned() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("WasForceUnassigned() = %v, want %v", got, tt.want)
			}
		})
	}
}
