package eligibility

import (
	"context"
	"regexp"
	"sync"
	"time"

	"github.com/taskops/assignbot/config"
	"github.com/taskops/assignbot/internal/gates"
	"github.com/taskops/assignbot/internal/labels"
	"github.com/taskops/assignbot/internal/logging"
	"github.com/taskops/assignbot/internal/models"
	"github.com/taskops/assignbot/internal/workload"
)

// RoleResolver resolves a participant's role and limit.
type RoleResolver interface {
	Resolve(ctx context.Context, owner, repo, username string) models.Participant
}

// WorkloadCounter computes a participant's current load.
type WorkloadCounter interface {
	Compute(ctx context.Context, username string) (workload.Load, error)
}

// HistoryTracker decides whether a user was force-unassigned from an issue.
type HistoryTracker interface {
	WasForceUnassigned(ctx context.Context, issue *models.Issue, username string) (bool, error)
}

// AgeGate checks participant account ages.
type AgeGate interface {
	Check(ctx context.Context, participants []models.Participant) ([]error, error)
}

// XPGate checks participant experience against the issue's priority labels.
type XPGate interface {
	Check(ctx context.Context, participants []models.Participant, labelNames []string, sender string) gates.ExperienceResult
}

// WalletSource looks up a user's registered wallet address.
type WalletSource interface {
	WalletFor(userID int64) (string, error)
}

// Request describes one start evaluation.
type Request struct {
	Issue     *models.Issue
	Sender    string
	SenderID  int64
	Teammates []string
}

// Computed carries the context every evaluation produces regardless of
// outcome; callers render it even on failure paths.
type Computed struct {
	Deadline         *time.Time
	IsTaskStale      bool
	RegisteredWallet string
	ToAssign         []string
	AssignedIssues   []models.Issue
	ConsideredCount  int
	SenderRole       models.Role
}

// Result is the evaluation outcome. Ok is true exactly when Errors is empty;
// ToAssign lists the participants who individually passed, which on failure
// paths tells the classifier who could still have been assigned.
type Result struct {
	Ok       bool
	Errors   []error
	Warnings []string
	Computed Computed
}

// Evaluator composes the role resolver, workload counter, history tracker and
// gates into one pass over {sender} ∪ teammates. It never returns an error
// for policy failures; the only error return is the account-age gate's fatal
// profile-fetch failure.
type Evaluator struct {
	Roles      RoleResolver
	Workload   WorkloadCounter
	History    HistoryTracker
	AccountAge AgeGate
	Experience XPGate
	Wallets    WalletSource

	Ceilings     map[string]float64
	LabelRules   []config.LabelRule
	StaleTimeout time.Duration
	Log          *logging.Logger

	now func() time.Time
}

func (e *Evaluator) clock() time.Time {
	if e.now != nil {
		return e.now()
	}
	return time.Now()
}

// Checklist items referencing other issues mark a parent issue.
var parentIssuePattern = regexp.MustCompile(`(?m)^\s*-\s*\[[ xX]?\]\s+#\d+`)

// IsParentIssue reports whether the issue body tracks sub-issues.
func IsParentIssue(body string) bool {
	return parentIssuePattern.MatchString(body)
}

// EvaluateStart runs the full eligibility pipeline for a /start request.
func (e *Evaluator) EvaluateStart(ctx context.Context, req Request) (*Result, error) {
	res := &Result{}
	now := e.clock()

	if req.Sender == "" {
		res.Errors = append(res.Errors, &MissingSenderError{})
		return e.finish(ctx, req, res, now), nil
	}

	issue := req.Issue
	res.Computed.ConsideredCount = 1 + len(req.Teammates)

	sender := e.Roles.Resolve(ctx, issue.Owner, issue.Repo, req.Sender)
	res.Computed.SenderRole = sender.Role

	// Global checks: collected together, and any failure here skips the
	// per-participant pass entirely.
	if issue.State != "open" {
		res.Errors = append(res.Errors, &IssueClosedError{Number: issue.Number})
	}
	if len(issue.Assignees) > 0 {
		res.Errors = append(res.Errors, &AlreadyAssignedError{Number: issue.Number, Assignees: issue.Assignees})
	}
	if IsParentIssue(issue.Body) {
		res.Errors = append(res.Errors, &ParentIssueError{Number: issue.Number})
	}

	priceLabel, hasPrice := labels.FindPriceLabel(issue.Labels)
	if !hasPrice && sender.Role == models.RoleContributor {
		res.Errors = append(res.Errors, &PriceLabelRequiredError{})
	}

	if err := e.checkLabelRules(issue, sender.Role); err != nil {
		res.Errors = append(res.Errors, err)
	}

	if len(res.Errors) > 0 {
		return e.finish(ctx, req, res, now), nil
	}

	var price float64
	if hasPrice {
		parsed, err := labels.ParsePrice(priceLabel)
		if err != nil {
			res.Errors = append(res.Errors, &gates.PriceFormatError{Label: priceLabel})
			return e.finish(ctx, req, res, now), nil
		}
		price = parsed
	}

	// Teammate roles are independent reads; resolve them concurrently.
	participants := make([]models.Participant, 1+len(req.Teammates))
	participants[0] = sender
	var wg sync.WaitGroup
	for i, teammate := range req.Teammates {
		wg.Add(1)
		go func(i int, username string) {
			defer wg.Done()
			participants[1+i] = e.Roles.Resolve(ctx, issue.Owner, issue.Repo, username)
		}(i, teammate)
	}
	wg.Wait()

	// The per-participant loop stays sequential: error ordering must be
	// deterministic for user-facing messages.
	quotaReported := false
	for _, p := range participants {
		blocked := e.checkParticipant(ctx, req, res, p, hasPrice, price)
		if blocked != nil {
			res.Errors = append(res.Errors, blocked)
			if isQuotaRelated(blocked) {
				quotaReported = true
			}
			continue
		}
		res.Computed.ToAssign = append(res.Computed.ToAssign, p.Username)
	}

	ageErrors, err := e.AccountAge.Check(ctx, participants)
	if err != nil {
		// Intentionally fatal: without profile data the gate cannot be
		// applied in either direction.
		return nil, err
	}
	for _, ageErr := range ageErrors {
		res.Errors = append(res.Errors, ageErr)
		res.Computed.ToAssign = removeUser(res.Computed.ToAssign, blockedUsername(ageErr))
	}

	xp := e.Experience.Check(ctx, participants, issue.Labels, req.Sender)
	res.Warnings = append(res.Warnings, xp.Warnings...)
	for _, xpErr := range xp.Errors {
		res.Errors = append(res.Errors, xpErr)
		res.Computed.ToAssign = removeUser(res.Computed.ToAssign, blockedUsername(xpErr))
	}

	// Summarize only when no quota error already tells the story.
	if len(res.Computed.ToAssign) == 0 && !quotaReported {
		if res.Computed.ConsideredCount > 1 {
			res.Errors = append(res.Errors, &AllTeammatesReachedError{Considered: res.Computed.ConsideredCount})
		} else {
			res.Errors = append(res.Errors, &MaxTaskLimitError{Username: req.Sender})
		}
	}

	return e.finish(ctx, req, res, now), nil
}

// checkParticipant runs the per-participant sequence: unassignment history
// first (it outranks quota), then quota, then the price ceiling. Unexpected
// failures block only this participant.
func (e *Evaluator) checkParticipant(ctx context.Context, req Request, res *Result, p models.Participant, hasPrice bool, price float64) error {
	forced, err := e.History.WasForceUnassigned(ctx, req.Issue, p.Username)
	if err != nil {
		e.Log.Error("history check failed", "user", p.Username, "error", err)
		return &ParticipantCheckError{Username: p.Username, Err: err}
	}
	if forced {
		return &UnassignedError{Username: p.Username}
	}

	load, err := e.Workload.Compute(ctx, p.Username)
	if err != nil {
		e.Log.Error("workload check failed", "user", p.Username, "error", err)
		return &ParticipantCheckError{Username: p.Username, Err: err}
	}
	if p.Username == req.Sender {
		res.Computed.AssignedIssues = load.AssignedIssues
	}

	if p.Role != models.RoleAdmin && !load.WithinLimit(p.Limit) {
		return &QuotaError{
			Username: p.Username,
			IsSender: p.Username == req.Sender,
			Limit:    p.Limit,
			Assigned: len(load.AssignedIssues),
		}
	}

	if hasPrice {
		if err := gates.CheckPrice(p, price, e.Ceilings); err != nil {
			return err
		}
	}

	return nil
}

// checkLabelRules enforces configured label/role restrictions on the issue.
func (e *Evaluator) checkLabelRules(issue *models.Issue, role models.Role) error {
	for _, rule := range e.LabelRules {
		if !hasLabel(issue.Labels, rule.Name) {
			continue
		}
		allowed := false
		for _, r := range rule.Roles {
			if models.Role(r) == role {
				allowed = true
				break
			}
		}
		if !allowed {
			return &RoleNotAllowedError{Role: role, Label: rule.Name}
		}
	}
	return nil
}

// finish populates the always-run computed block (deadline, staleness,
// wallet) and settles the Ok flag.
func (e *Evaluator) finish(ctx context.Context, req Request, res *Result, now time.Time) *Result {
	if req.Issue != nil {
		if d, ok := labels.ShortestDuration(req.Issue.Labels); ok {
			deadline := now.Add(d)
			res.Computed.Deadline = &deadline
		} else {
			res.Warnings = append(res.Warnings, "this task has no time label, so no deadline will be set")
		}

		if e.StaleTimeout > 0 && now.Sub(req.Issue.CreatedAt) > e.StaleTimeout {
			res.Computed.IsTaskStale = true
			res.Warnings = append(res.Warnings, "this task was created a while ago; check with the maintainers that it is still relevant")
		}
	}

	if e.Wallets != nil && req.SenderID != 0 {
		wallet, err := e.Wallets.WalletFor(req.SenderID)
		if err != nil {
			e.Log.Warn("wallet lookup failed", "user", req.Sender, "error", err)
		}
		res.Computed.RegisteredWallet = wallet
	}
	if res.Computed.RegisteredWallet == "" {
		res.Warnings = append(res.Warnings, "no wallet is registered for payouts; register one to receive rewards")
	}

	res.Ok = len(res.Errors) == 0
	return res
}

func hasLabel(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}

func removeUser(users []string, username string) []string {
	if username == "" {
		return users
	}
	out := users[:0]
	for _, u := range users {
		if u != username {
			out = append(out, u)
		}
	}
	return out
}
