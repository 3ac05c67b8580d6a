package server

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/taskops/assignbot/config"
	"github.com/taskops/assignbot/internal/assignment"
	"github.com/taskops/assignbot/internal/eligibility"
	"github.com/taskops/assignbot/internal/gates"
	"github.com/taskops/assignbot/internal/history"
	"github.com/taskops/assignbot/internal/labels"
	"github.com/taskops/assignbot/internal/logging"
	"github.com/taskops/assignbot/internal/models"
	"github.com/taskops/assignbot/internal/roles"
	"github.com/taskops/assignbot/internal/workload"
)

// GitHub is the REST surface the engine consumes, satisfied by
// api.GitHubClient.
type GitHub interface {
	Issue(ctx context.Context, owner, repo string, number int) (*models.Issue, error)
	IssueTimeline(ctx context.Context, owner, repo string, number int) ([]models.TimelineEvent, error)
	IssueComments(ctx context.Context, owner, repo string, number int) ([]models.Comment, error)
	OrgMemberRole(ctx context.Context, org, username string) (string, error)
	RepoPermission(ctx context.Context, owner, repo, username string) (string, error)
	SearchAssignedIssues(ctx context.Context, scope, username string) ([]models.Issue, error)
	ListOpenIssuesByAssignee(ctx context.Context, owner, repo, assignee string) ([]models.Issue, error)
	User(ctx context.Context, login string) (*models.User, error)
	UserByID(ctx context.Context, id int64) (*models.User, error)
	LatestCommitSHA(ctx context.Context, owner, repo string) (string, error)
	AddAssignees(ctx context.Context, owner, repo string, number int, usernames []string) error
	RemoveAssignees(ctx context.Context, owner, repo string, number int, usernames []string) error
	CreateComment(ctx context.Context, owner, repo string, number int, body string) error
	IsPrivateRepo(ctx context.Context, owner, repo string) (bool, error)
}

// Pulls is the GraphQL surface, satisfied by api.GraphQLClient.
type Pulls interface {
	OpenPullRequestsByAuthor(ctx context.Context, scope, author string) ([]models.PullRequest, error)
}

// XP is the experience service surface, satisfied by api.XPClient.
type XP interface {
	UserXP(ctx context.Context, login string) (int, error)
}

// Wallets is the wallet store surface, satisfied by db.DB.
type Wallets interface {
	WalletFor(userID int64) (string, error)
}

// Engine ties the eligibility evaluator, classifier and executor to the
// external collaborators. It is stateless: every call rebuilds its view of
// the world from GitHub.
type Engine struct {
	cfg     *config.Config
	gh      GitHub
	pulls   Pulls
	xp      XP
	wallets Wallets
	log     *logging.Logger

	tolerance    time.Duration
	staleTimeout time.Duration
}

// NewEngine creates the engine, parsing the duration knobs once.
func NewEngine(cfg *config.Config, gh GitHub, pulls Pulls, xp XP, wallets Wallets, log *logging.Logger) (*Engine, error) {
	tolerance, err := labels.ParseDuration(cfg.ReviewDelayTolerance)
	if err != nil {
		return nil, fmt.Errorf("invalid review_delay_tolerance: %w", err)
	}

	var staleTimeout time.Duration
	if cfg.TaskStaleTimeout != "" {
		staleTimeout, err = labels.ParseDuration(cfg.TaskStaleTimeout)
		if err != nil {
			return nil, fmt.Errorf("invalid task_stale_timeout: %w", err)
		}
	}

	return &Engine{
		cfg:          cfg,
		gh:           gh,
		pulls:        pulls,
		xp:           xp,
		wallets:      wallets,
		log:          log,
		tolerance:    tolerance,
		staleTimeout: staleTimeout,
	}, nil
}

// RequestError marks a caller mistake that maps to HTTP 400.
type RequestError struct {
	Msg string
}

func (e *RequestError) Error() string {
	return e.Msg
}

var issueURLPattern = regexp.MustCompile(`github\.com/([^/]+)/([^/]+)/issues/(\d+)$`)

// ParseIssueURL extracts owner, repo and issue number from a GitHub issue
// URL.
func ParseIssueURL(url string) (string, string, int, error) {
	m := issueURLPattern.FindStringSubmatch(strings.TrimSuffix(url, "/"))
	if m == nil {
		return "", "", 0, &RequestError{Msg: fmt.Sprintf("issueUrl %q is not a GitHub issue URL", url)}
	}
	number, err := strconv.Atoi(m[3])
	if err != nil {
		return "", "", 0, &RequestError{Msg: fmt.Sprintf("issueUrl %q has an invalid issue number", url)}
	}
	return m[1], m[2], number, nil
}

// searchScope builds the search clause for the configured task access scope.
func (e *Engine) searchScope(owner, repo string) string {
	if e.cfg.TaskAccessScope == "repo" {
		return fmt.Sprintf("repo:%s/%s", owner, repo)
	}
	return fmt.Sprintf("org:%s", e.cfg.Org)
}

// evaluator assembles the per-request dependency bundle for one issue.
func (e *Engine) evaluator(owner, repo string) *eligibility.Evaluator {
	return &eligibility.Evaluator{
		Roles:        roles.NewResolver(e.gh, e.cfg.Org, e.cfg.RoleLimits, e.log),
		Workload:     workload.NewCounter(e.gh, e.pulls, e.searchScope(owner, repo), owner, repo, e.tolerance, e.log),
		History:      history.NewTracker(e.gh),
		AccountAge:   gates.NewAccountAge(e.gh, e.cfg.MinAccountAgeDays),
		Experience:   gates.NewExperience(e.xp, e.cfg.XPThresholds, e.log),
		Wallets:      e.wallets,
		Ceilings:     e.cfg.UsdPriceMax,
		LabelRules:   e.cfg.RequiredLabels,
		StaleTimeout: e.staleTimeout,
		Log:          e.log,
	}
}

// StartRequest identifies a start attempt from either surface.
type StartRequest struct {
	Owner     string
	Repo      string
	Number    int
	Sender    string
	SenderID  int64
	Teammates []string
}

// resolveAPIRequest turns the public API inputs into a StartRequest.
func (e *Engine) resolveAPIRequest(ctx context.Context, userID int64, issueURL string) (*StartRequest, error) {
	owner, repo, number, err := ParseIssueURL(issueURL)
	if err != nil {
		return nil, err
	}

	user, err := e.gh.UserByID(ctx, userID)
	if err != nil {
		return nil, &RequestError{Msg: fmt.Sprintf("unknown userId %d", userID)}
	}

	return &StartRequest{
		Owner:    owner,
		Repo:     repo,
		Number:   number,
		Sender:   user.Login,
		SenderID: userID,
	}, nil
}

// Validate runs the eligibility pipeline without side effects.
func (e *Engine) Validate(ctx context.Context, userID int64, issueURL string) (*eligibility.Result, error) {
	req, err := e.resolveAPIRequest(ctx, userID, issueURL)
	if err != nil {
		return nil, err
	}
	return e.evaluate(ctx, req)
}

func (e *Engine) evaluate(ctx context.Context, req *StartRequest) (*eligibility.Result, error) {
	issue, err := e.gh.Issue(ctx, req.Owner, req.Repo, req.Number)
	if err != nil {
		return nil, err
	}

	return e.evaluator(req.Owner, req.Repo).EvaluateStart(ctx, eligibility.Request{
		Issue:     issue,
		Sender:    req.Sender,
		SenderID:  req.SenderID,
		Teammates: req.Teammates,
	})
}

// ExecuteOutcome is the terminal answer of an execute-mode start.
type ExecuteOutcome struct {
	Ok        bool
	Content   string
	Assignees []string
	Deadline  *time.Time
	// Commented is set when a refusal was already answered with a posted
	// issue comment, so the webhook path does not post it twice.
	Commented bool
}

// commentRecorder wraps the comment API to remember whether the classifier
// posted anything while handling a failure.
type commentRecorder struct {
	gh     GitHub
	posted bool
}

func (c *commentRecorder) CreateComment(ctx context.Context, owner, repo string, number int, body string) error {
	c.posted = true
	return c.gh.CreateComment(ctx, owner, repo, number, body)
}

// Execute runs the pipeline and performs the assignment when it passes. A
// failed evaluation is answered through the classifier: either a comment
// (quota, parent issue) or an error.
func (e *Engine) Execute(ctx context.Context, userID int64, issueURL string) (*ExecuteOutcome, error) {
	req, err := e.resolveAPIRequest(ctx, userID, issueURL)
	if err != nil {
		return nil, err
	}
	return e.ExecuteStart(ctx, req)
}

// ExecuteStart runs the pipeline for an already-resolved request.
func (e *Engine) ExecuteStart(ctx context.Context, req *StartRequest) (*ExecuteOutcome, error) {
	issue, err := e.gh.Issue(ctx, req.Owner, req.Repo, req.Number)
	if err != nil {
		return nil, err
	}

	res, err := e.evaluator(req.Owner, req.Repo).EvaluateStart(ctx, eligibility.Request{
		Issue:     issue,
		Sender:    req.Sender,
		SenderID:  req.SenderID,
		Teammates: req.Teammates,
	})
	if err != nil {
		return nil, err
	}

	if !res.Ok {
		recorder := &commentRecorder{gh: e.gh}
		responder := eligibility.NewResponder(recorder, e.log)
		outcome, err := responder.HandleFailure(ctx, issue, res)
		if err != nil {
			// The classifier returns domain errors; execute mode answers
			// them rather than failing the request.
			return &ExecuteOutcome{Ok: false, Content: err.Error(), Commented: recorder.posted}, nil
		}
		return &ExecuteOutcome{Ok: false, Content: outcome.Content, Commented: recorder.posted}, nil
	}

	executor := assignment.NewExecutor(e.gh, e.staleTimeout, e.log)
	result, err := executor.Perform(ctx, issue, res.Computed.ToAssign, res.Computed.RegisteredWallet)
	if err != nil {
		return nil, err
	}

	return &ExecuteOutcome{
		Ok:        true,
		Content:   result.Content,
		Assignees: result.Assignees,
		Deadline:  result.Deadline,
	}, nil
}

// PostComment posts a bot comment on an issue.
func (e *Engine) PostComment(ctx context.Context, owner, repo string, number int, body string) error {
	return e.gh.CreateComment(ctx, owner, repo, number, body)
}

// Stop handles a /stop command: a current assignee may release the task.
func (e *Engine) Stop(ctx context.Context, req *StartRequest) (*ExecuteOutcome, error) {
	issue, err := e.gh.Issue(ctx, req.Owner, req.Repo, req.Number)
	if err != nil {
		return nil, err
	}

	assigned := false
	for _, a := range issue.Assignees {
		if a == req.Sender {
			assigned = true
			break
		}
	}
	if !assigned {
		return nil, &RequestError{Msg: fmt.Sprintf("%s is not assigned to issue #%d", req.Sender, issue.Number)}
	}

	if err := e.gh.RemoveAssignees(ctx, req.Owner, req.Repo, req.Number, []string{req.Sender}); err != nil {
		return nil, err
	}

	body := fmt.Sprintf("@%s has released this task. It is open for a new assignee.", req.Sender)
	if err := e.gh.CreateComment(ctx, req.Owner, req.Repo, req.Number, body); err != nil {
		e.log.Error("failed to post stop acknowledgement", "issue", issue.Number, "error", err)
	}

	return &ExecuteOutcome{Ok: true, Content: "Task unassigned"}, nil
}
