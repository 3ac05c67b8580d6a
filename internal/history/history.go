package history

import (
	"context"
	"sort"
	"strings"

	"github.com/taskops/assignbot/internal/models"
)

// StopCommand is the comment body a user posts to walk away from a task.
const StopCommand = "/stop"

// EventSource provides an issue's assignment history.
type EventSource interface {
	IssueTimeline(ctx context.Context, owner, repo string, number int) ([]models.TimelineEvent, error)
	IssueComments(ctx context.Context, owner, repo string, number int) ([]models.Comment, error)
}

// Tracker replays an issue's assignment/unassignment events to decide whether
// a user was force-unassigned rather than walking away on their own.
type Tracker struct {
	src EventSource
}

// NewTracker creates a tracker.
func NewTracker(src EventSource) *Tracker {
	return &Tracker{src: src}
}

// WasForceUnassigned reports whether the user was previously unassigned from
// the issue by the bot rather than by their own action. A force-unassigned
// user must not be silently re-offered the task.
func (t *Tracker) WasForceUnassigned(ctx context.Context, issue *models.Issue, username string) (bool, error) {
	events, err := t.src.IssueTimeline(ctx, issue.Owner, issue.Repo, issue.Number)
	if err != nil {
		return false, err
	}

	comments, err := t.src.IssueComments(ctx, issue.Owner, issue.Repo, issue.Number)
	if err != nil {
		return false, err
	}

	periods := BuildPeriods(events, comments, username)
	for _, period := range periods {
		if period.UnassignedAt == nil {
			// Still assigned; the already-assigned check owns this case.
			continue
		}
		if period.Reason == models.UnassignedByBot || period.Reason == models.UnassignedByAdmin {
			return true, nil
		}
	}

	return false, nil
}

// BuildPeriods reconstructs the user's assignment periods from the issue's
// chronological event history. Each assigned event opens a period with reason
// bot; an unassigned event closes the most recent open one. A closed period
// is reclassified as a self-unassignment when the closing actor is not a bot
// or when the user's own /stop comment falls inside the period.
func BuildPeriods(events []models.TimelineEvent, comments []models.Comment, username string) []models.AssignmentPeriod {
	sorted := make([]models.TimelineEvent, 0, len(events))
	for _, ev := range events {
		if ev.Assignee == username {
			sorted = append(sorted, ev)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
	})

	var periods []models.AssignmentPeriod
	for _, ev := range sorted {
		switch ev.Event {
		case "assigned":
			periods = append(periods, models.AssignmentPeriod{
				AssignedAt: ev.CreatedAt,
				Reason:     models.UnassignedByBot,
			})
		case "unassigned":
			period := lastOpenPeriod(periods)
			if period == nil {
				continue
			}
			closedAt := ev.CreatedAt
			period.UnassignedAt = &closedAt
			if ev.ActorType != "Bot" {
				period.Reason = models.UnassignedByUser
			}
		}
	}

	for _, comment := range comments {
		if comment.Author != username || strings.TrimSpace(comment.Body) != StopCommand {
			continue
		}
		for i := range periods {
			if periods[i].UnassignedAt == nil {
				continue
			}
			if !comment.CreatedAt.Before(periods[i].AssignedAt) && !comment.CreatedAt.After(*periods[i].UnassignedAt) {
				periods[i].Reason = models.UnassignedByUser
			}
		}
	}

	return periods
}

func lastOpenPeriod(periods []models.AssignmentPeriod) *models.AssignmentPeriod {
	for i := len(periods) - 1; i >= 0; i-- {
		if periods[i].UnassignedAt == nil {
			return &periods[i]
		}
	}
	return nil
}
