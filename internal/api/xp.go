package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/taskops/assignbot/internal/logging"
)

// XPClient queries the external experience service.
type XPClient struct {
	baseURL string
	client  *http.Client
	log     *logging.Logger
}

// NewXPClient creates a client for the XP service at the given base URL.
func NewXPClient(baseURL string, log *logging.Logger) *XPClient {
	return &XPClient{
		baseURL: baseURL,
		client:  http.DefaultClient,
		log:     log,
	}
}

// XPRecord is one user entry in the XP service response.
type XPRecord struct {
	Login       string `json:"login"`
	ID          int64  `json:"id"`
	HasData     bool   `json:"hasData"`
	Total       int    `json:"total"`
	PermitCount int    `json:"permitCount"`
}

type xpResponse struct {
	Users []XPRecord `json:"users"`
}

// UserXP returns the user's total XP. A user absent from the service's
// response has zero XP; that is a valid answer, not an error.
func (c *XPClient) UserXP(ctx context.Context, login string) (int, error) {
	endpoint := fmt.Sprintf("%s/xp?user=%s", c.baseURL, url.QueryEscape(login))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to build XP request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to query XP service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("XP service returned status %d", resp.StatusCode)
	}

	var body xpResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, fmt.Errorf("failed to parse XP response: %w", err)
	}

	for _, user := range body.Users {
		if user.Login == login {
			return user.Total, nil
		}
	}

	c.log.Info("user absent from XP service response, treating as zero XP", "user", login)
	return 0, nil
}
