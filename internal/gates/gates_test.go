package gates

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/taskops/assignbot/internal/logging"
	"github.com/taskops/assignbot/internal/models"
)

type fakeProfiles struct {
	users map[string]*models.User
	err   error
	calls int
}

func (f *fakeProfiles) User(ctx context.Context, login string) (*models.User, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.users[login], nil
}

func contributor(name string) models.Participant {
	return models.Participant{Username: name, Role: models.RoleContributor, Limit: 2}
}

func TestAccountAgeCheck(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	young := now.AddDate(0, 0, -10)
	old := now.AddDate(-2, 0, 0)

	profiles := &fakeProfiles{users: map[string]*models.User{
		"newbie":  {Login: "newbie", CreatedAt: young},
		"veteran": {Login: "veteran", CreatedAt: old},
		"ghost":   {Login: "ghost"},
	}}

	gate := NewAccountAge(profiles, 30)
	gate.now = func() time.Time { return now }

	violations, err := gate.Check(context.Background(), []models.Participant{
		contributor("newbie"),
		contributor("veteran"),
		contributor("ghost"),
		{Username: "boss", Role: models.RoleAdmin},
	})
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}

	if len(violations) != 2 {
		t.Fatalf("got %d violations, want 2: %v", len(violations), violations)
	}

	var ageErr *AccountAgeError
	if !errors.As(violations[0], &ageErr) || ageErr.Username != "newbie" || ageErr.AgeDays != 10 {
		t.Errorf("first violation = %v, want newbie at 10 days", violations[0])
	}
	if !errors.As(violations[1], &ageErr) || ageErr.Username != "ghost" || !ageErr.Unknown {
		t.Errorf("second violation = %v, want ghost with unknown creation date", violations[1])
	}

	// Admin was never fetched.
	if profiles.calls != 3 {
		t.Errorf("profile fetches = %d, want 3", profiles.calls)
	}
}

func TestAccountAgeDisabled(t *testing.T) {
	profiles := &fakeProfiles{err: errors.New("unreachable")}
	gate := NewAccountAge(profiles, 0)

	violations, err := gate.Check(context.Background(), []models.Participant{contributor("anyone")})
	if err != nil || violations != nil {
		t.Errorf("disabled gate = (%v, %v), want (nil, nil)", violations, err)
	}
	if profiles.calls != 0 {
		t.Error("disabled gate must not fetch profiles")
	}
}

func TestAccountAgeFetchFailureIsFatal(t *testing.T) {
	gate := NewAccountAge(&fakeProfiles{err: errors.New("boom")}, 30)

	if _, err := gate.Check(context.Background(), []models.Participant{contributor("alice")}); err == nil {
		t.Error("expected fatal error on profile fetch failure")
	}
}

type fakeXP struct {
	totals map[string]int
	errs   map[string]error
}

func (f *fakeXP) UserXP(ctx context.Context, login string) (int, error) {
	if err := f.errs[login]; err != nil {
		return 0, err
	}
	return f.totals[login], nil
}

func TestExperienceCheck(t *testing.T) {
	thresholds := map[string]int{"Priority: 4 (Urgent)": 1000}
	urgent := []string{"Priority: 4 (Urgent)", "Price: 500"}

	t.Run("no-op without matching priority label", func(t *testing.T) {
		gate := NewExperience(&fakeXP{}, thresholds, logging.Discard())
		result := gate.Check(context.Background(), []models.Participant{contributor("alice")}, []string{"bug"}, "alice")
		if result.Applied {
			t.Error("gate should not apply without a matching label")
		}
	})

	t.Run("blocks below threshold, passes above", func(t *testing.T) {
		xp := &fakeXP{totals: map[string]int{"alice": 1500, "bob": 200}}
		gate := NewExperience(xp, thresholds, logging.Discard())

		result := gate.Check(context.Background(), []models.Participant{contributor("alice"), contributor("bob")}, urgent, "alice")
		if !result.Applied || result.Required != 1000 {
			t.Fatalf("result = %+v", result)
		}
		if len(result.Errors) != 1 {
			t.Fatalf("errors = %v, want one for bob", result.Errors)
		}
		var xpErr *ExperienceError
		if !errors.As(result.Errors[0], &xpErr) || xpErr.Username != "bob" {
			t.Errorf("error = %v, want bob's", result.Errors[0])
		}
	})

	t.Run("privileged roles skipped", func(t *testing.T) {
		xp := &fakeXP{errs: map[string]error{"boss": errors.New("down")}}
		gate := NewExperience(xp, thresholds, logging.Discard())

		result := gate.Check(context.Background(), []models.Participant{{Username: "boss", Role: models.RoleCollaborator}}, urgent, "boss")
		if len(result.Errors) != 0 {
			t.Errorf("errors = %v, want none for collaborator", result.Errors)
		}
	})

	t.Run("sender-only outage downgraded to warning", func(t *testing.T) {
		xp := &fakeXP{errs: map[string]error{"alice": errors.New("down")}}
		gate := NewExperience(xp, thresholds, logging.Discard())

		result := gate.Check(context.Background(), []models.Participant{contributor("alice")}, urgent, "alice")
		if len(result.Errors) != 0 {
			t.Errorf("errors = %v, want downgrade to warning", result.Errors)
		}
		if len(result.Warnings) != 1 {
			t.Errorf("warnings = %v, want one", result.Warnings)
		}
	})

	t.Run("teammate outage stays blocking", func(t *testing.T) {
		xp := &fakeXP{totals: map[string]int{"alice": 2000}, errs: map[string]error{"bob": errors.New("down")}}
		gate := NewExperience(xp, thresholds, logging.Discard())

		result := gate.Check(context.Background(), []models.Participant{contributor("alice"), contributor("bob")}, urgent, "alice")
		if len(result.Errors) != 1 {
			t.Errorf("errors = %v, want bob's unverifiable error", result.Errors)
		}
	})
}

func TestCheckPrice(t *testing.T) {
	ceilings := map[string]float64{"collaborator": 2000, "contributor": 500}

	tests := []struct {
		name     string
		p        models.Participant
		price    float64
		ceilings map[string]float64
		wantErr  any
	}{
		{
			name:     "within ceiling",
			p:        contributor("alice"),
			price:    400,
			ceilings: ceilings,
		},
		{
			name:     "exceeds ceiling",
			p:        contributor("alice"),
			price:    800,
			ceilings: ceilings,
			wantErr:  &PriceLimitError{},
		},
		{
			name:     "admin exempt even above every ceiling",
			p:        models.Participant{Username: "boss", Role: models.RoleAdmin},
			price:    5000,
			ceilings: ceilings,
		},
		{
			name:     "unknown role falls back to smallest ceiling",
			p:        models.Participant{Username: "x", Role: models.Role("member")},
			price:    600,
			ceilings: ceilings,
			wantErr:  &PriceLimitError{},
		},
		{
			name:     "negative ceiling is preservation mode",
			p:        contributor("alice"),
			price:    1,
			ceilings: map[string]float64{"contributor": -1},
			wantErr:  &PreservationModeError{},
		},
		{
			name:  "no ceilings configured disables the gate",
			p:     contributor("alice"),
			price: 10000,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckPrice(tt.p, tt.price, tt.ceilings)
			switch want := tt.wantErr.(type) {
			case nil:
				if err != nil {
					t.Errorf("CheckPrice() = %v, want nil", err)
				}
			case *PriceLimitError:
				var e *PriceLimitError
				if !errors.As(err, &e) {
					t.Errorf("CheckPrice() = %v, want PriceLimitError", err)
				}
			case *PreservationModeError:
				var e *PreservationModeError
				if !errors.As(err, &e) {
					t.Errorf("CheckPrice() = %v, want PreservationModeError", err)
				}
			default:
				t.Fatalf("unhandled want %T", want)
			}
		})
	}
}
