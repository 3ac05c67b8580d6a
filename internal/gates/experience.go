package gates

import (
	"context"
	"errors"

	"github.com/taskops/assignbot/internal/labels"
	"github.com/taskops/assignbot/internal/logging"
	"github.com/taskops/assignbot/internal/models"
)

// XPSource returns a user's total XP from the experience service.
type XPSource interface {
	UserXP(ctx context.Context, login string) (int, error)
}

// Experience checks participant XP against thresholds keyed by the issue's
// priority labels. Collaborators and admins are exempt, and an XP-service
// outage must not prevent legitimate low-priority task starts.
type Experience struct {
	xp         XPSource
	thresholds map[string]int
	log        *logging.Logger
}

// NewExperience creates the gate. thresholds maps priority label names to
// minimum XP.
func NewExperience(xp XPSource, thresholds map[string]int, log *logging.Logger) *Experience {
	return &Experience{xp: xp, thresholds: thresholds, log: log}
}

// ExperienceResult is the gate's outcome.
type ExperienceResult struct {
	// Blocking per-participant errors.
	Errors []error
	// Warnings carries the sender's own unverifiable-XP message when it is
	// the only finding, downgraded so an XP outage doesn't block the sender.
	Warnings []string
	// Required is the XP threshold in effect; Applied is false when no
	// priority label matched and the gate was a no-op.
	Required int
	Applied  bool
}

// Check evaluates all non-privileged participants against the issue's
// priority threshold.
func (g *Experience) Check(ctx context.Context, participants []models.Participant, labelNames []string, sender string) ExperienceResult {
	required, ok := labels.RequiredExperience(labelNames, g.thresholds)
	if !ok {
		return ExperienceResult{}
	}

	result := ExperienceResult{Required: required, Applied: true}

	for _, p := range participants {
		if p.Role.IsPrivileged() {
			continue
		}

		xp, err := g.xp.UserXP(ctx, p.Username)
		if err != nil {
			g.log.Warn("XP service lookup failed", "user", p.Username, "error", err)
			result.Errors = append(result.Errors, &ExperienceUnverifiableError{Username: p.Username})
			continue
		}

		if xp < required {
			result.Errors = append(result.Errors, &ExperienceError{
				Username: p.Username,
				XP:       xp,
				Required: required,
			})
		}
	}

	// An unverifiable sender with no other findings is a warning, not a
	// blocker.
	if len(result.Errors) == 1 {
		var unverifiable *ExperienceUnverifiableError
		if errors.As(result.Errors[0], &unverifiable) && unverifiable.Username == sender {
			result.Warnings = append(result.Warnings, unverifiable.Error())
			result.Errors = nil
		}
	}

	return result
}
