package gates

import (
	"github.com/taskops/assignbot/internal/models"
)

// CheckPrice evaluates one participant against the role-keyed USD price
// ceilings. Admins are exempt entirely. A role without a configured ceiling
// falls back to the smallest configured one; a negative ceiling means
// preservation mode and blocks regardless of the price.
func CheckPrice(p models.Participant, price float64, ceilings map[string]float64) error {
	if p.Role == models.RoleAdmin {
		return nil
	}
	if len(ceilings) == 0 {
		return nil
	}

	ceiling, ok := ceilings[string(p.Role)]
	if !ok {
		for _, v := range ceilings {
			if !ok || v < ceiling {
				ceiling = v
			}
			ok = true
		}
	}

	if ceiling < 0 {
		return &PreservationModeError{Username: p.Username}
	}
	if price > ceiling {
		return &PriceLimitError{Username: p.Username, Price: price, Ceiling: ceiling}
	}

	return nil
}
