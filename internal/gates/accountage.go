package gates

import (
	"context"
	"fmt"
	"time"

	"github.com/taskops/assignbot/internal/models"
)

// ProfileSource fetches GitHub user profiles.
type ProfileSource interface {
	User(ctx context.Context, login string) (*models.User, error)
}

// AccountAge checks contributor account creation dates against a configured
// minimum age. Collaborators and admins are exempt.
type AccountAge struct {
	profiles    ProfileSource
	minimumDays int
	now         func() time.Time
}

// NewAccountAge creates the gate. A minimumDays of zero or less disables it.
func NewAccountAge(profiles ProfileSource, minimumDays int) *AccountAge {
	return &AccountAge{profiles: profiles, minimumDays: minimumDays, now: time.Now}
}

// Check returns one blocking error per participant under the threshold. A
// profile fetch failure is fatal to the whole evaluation, unlike the
// experience gate: without the creation date the gate cannot be applied
// safely in either direction.
func (g *AccountAge) Check(ctx context.Context, participants []models.Participant) ([]error, error) {
	if g.minimumDays <= 0 {
		return nil, nil
	}

	profiles := make(map[string]*models.User)
	var violations []error

	for _, p := range participants {
		if p.Role.IsPrivileged() {
			continue
		}

		profile, ok := profiles[p.Username]
		if !ok {
			var err error
			profile, err = g.profiles.User(ctx, p.Username)
			if err != nil {
				return nil, fmt.Errorf("failed to fetch profile for account-age check: %w", err)
			}
			profiles[p.Username] = profile
		}

		if profile == nil || profile.CreatedAt.IsZero() {
			violations = append(violations, &AccountAgeError{
				Username:    p.Username,
				MinimumDays: g.minimumDays,
				Unknown:     true,
			})
			continue
		}

		ageDays := int(g.now().Sub(profile.CreatedAt).Hours() / 24)
		if ageDays < g.minimumDays {
			violations = append(violations, &AccountAgeError{
				Username:    p.Username,
				AgeDays:     ageDays,
				MinimumDays: g.minimumDays,
			})
		}
	}

	return violations, nil
}
