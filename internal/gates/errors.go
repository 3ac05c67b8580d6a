package gates

import "fmt"

// AccountAgeError blocks a participant whose GitHub account is too young.
type AccountAgeError struct {
	Username    string
	AgeDays     int
	MinimumDays int
	// Unknown is set when the profile carried no usable creation date.
	Unknown bool
}

func (e *AccountAgeError) Error() string {
	if e.Unknown {
		return fmt.Sprintf("%s's account age could not be determined; a minimum of %d days is required", e.Username, e.MinimumDays)
	}
	return fmt.Sprintf("%s's account is %d days old, below the required minimum of %d days", e.Username, e.AgeDays, e.MinimumDays)
}

// ExperienceError blocks a participant whose XP is below the issue's
// priority threshold.
type ExperienceError struct {
	Username string
	XP       int
	Required int
}

func (e *ExperienceError) Error() string {
	return fmt.Sprintf("%s has %d XP but this task requires %d", e.Username, e.XP, e.Required)
}

// ExperienceUnverifiableError reports that the XP service could not vouch for
// a participant. It blocks teammates but is downgraded to a warning when the
// sender is the only participant affected.
type ExperienceUnverifiableError struct {
	Username string
}

func (e *ExperienceUnverifiableError) Error() string {
	return fmt.Sprintf("unable to verify experience for %s", e.Username)
}

// PriceFormatError blocks the evaluation when the price label carries no
// parsable amount.
type PriceFormatError struct {
	Label string
}

func (e *PriceFormatError) Error() string {
	return fmt.Sprintf("price label %q has no parsable amount", e.Label)
}

// PriceLimitError blocks a participant whose role ceiling is below the task
// price.
type PriceLimitError struct {
	Username string
	Price    float64
	Ceiling  float64
}

func (e *PriceLimitError) Error() string {
	return fmt.Sprintf("%s exceeds their price limit: this task pays %.0f USD but their ceiling is %.0f USD", e.Username, e.Price, e.Ceiling)
}

// PreservationModeError blocks a participant whose role ceiling is negative,
// the org-wide signal that paid tasks are closed to that role.
type PreservationModeError struct {
	Username string
}

func (e *PreservationModeError) Error() string {
	return fmt.Sprintf("paid tasks are currently closed to %s's role (preservation mode)", e.Username)
}
