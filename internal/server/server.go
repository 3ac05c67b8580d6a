package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/taskops/assignbot/config"
	"github.com/taskops/assignbot/internal/eligibility"
	"github.com/taskops/assignbot/internal/logging"
	"github.com/taskops/assignbot/internal/models"
)

// Core is the engine surface the HTTP layer depends on.
type Core interface {
	Validate(ctx context.Context, userID int64, issueURL string) (*eligibility.Result, error)
	Execute(ctx context.Context, userID int64, issueURL string) (*ExecuteOutcome, error)
	ExecuteStart(ctx context.Context, req *StartRequest) (*ExecuteOutcome, error)
	Stop(ctx context.Context, req *StartRequest) (*ExecuteOutcome, error)
	PostComment(ctx context.Context, owner, repo string, number int, body string) error
}

// Server is the HTTP front: the public eligibility API plus the webhook.
type Server struct {
	core     Core
	cfg      *config.Config
	limiter  *RateLimiter
	log      *logging.Logger
	botLogin string
}

// New creates the HTTP server around an engine.
func New(core Core, cfg *config.Config, log *logging.Logger) *Server {
	return &Server{
		core:     core,
		cfg:      cfg,
		limiter:  NewRateLimiter(time.Minute),
		log:      log,
		botLogin: cfg.BotLogin,
	}
}

// Router builds the chi router with the middleware stack.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(RecoveryMiddleware(s.log))
	r.Use(LoggingMiddleware(s.log))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})

	r.Get("/health", s.handleHealth)
	r.Post("/webhook", s.handleWebhook)

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.cfg.APIKeys))
		r.Get("/eligibility", s.handleValidate)
		r.Post("/start", s.handleExecute)
	})

	return r
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// clientKey identifies the caller for rate limiting: the API key when one is
// presented, the remote host otherwise.
func clientKey(r *http.Request) string {
	if key := r.Header.Get("X-Api-Key"); key != "" {
		return key
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (s *Server) allow(r *http.Request, userID int64, mode string, limit int) bool {
	key := clientKey(r) + "|" + strconv.FormatInt(userID, 10) + "|" + mode
	return s.limiter.Allow(key, limit)
}

type issueRef struct {
	Number int    `json:"number"`
	Title  string `json:"title"`
	URL    string `json:"url"`
}

type computedResponse struct {
	Deadline         *time.Time  `json:"deadline"`
	IsTaskStale      bool        `json:"isTaskStale"`
	RegisteredWallet string      `json:"registeredWallet,omitempty"`
	ToAssign         []string    `json:"toAssign"`
	AssignedIssues   []issueRef  `json:"assignedIssues,omitempty"`
	ConsideredCount  int         `json:"consideredCount"`
	SenderRole       models.Role `json:"senderRole,omitempty"`
}

type validateResponse struct {
	Ok       bool             `json:"ok"`
	Reasons  []string         `json:"reasons"`
	Warnings []string         `json:"warnings"`
	Computed computedResponse `json:"computed"`
}

func renderComputed(c eligibility.Computed) computedResponse {
	out := computedResponse{
		Deadline:         c.Deadline,
		IsTaskStale:      c.IsTaskStale,
		RegisteredWallet: c.RegisteredWallet,
		ToAssign:         c.ToAssign,
		ConsideredCount:  c.ConsideredCount,
		SenderRole:       c.SenderRole,
	}
	if out.ToAssign == nil {
		out.ToAssign = []string{}
	}
	for _, issue := range c.AssignedIssues {
		out.AssignedIssues = append(out.AssignedIssues, issueRef{
			Number: issue.Number,
			Title:  issue.Title,
			URL:    issue.HTMLURL,
		})
	}
	return out
}

func renderResult(res *eligibility.Result) validateResponse {
	reasons := make([]string, 0, len(res.Errors))
	for _, err := range res.Errors {
		reasons = append(reasons, err.Error())
	}
	warnings := res.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	return validateResponse{
		Ok:       res.Ok,
		Reasons:  reasons,
		Warnings: warnings,
		Computed: renderComputed(res.Computed),
	}
}

// apiInputs pulls userId and issueUrl out of either the query string (GET) or
// a JSON body (POST).
func apiInputs(r *http.Request) (int64, string, error) {
	if r.Method == http.MethodGet {
		raw := r.URL.Query().Get("userId")
		userID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || userID <= 0 {
			return 0, "", &RequestError{Msg: "userId must be a positive integer"}
		}
		issueURL := r.URL.Query().Get("issueUrl")
		if issueURL == "" {
			return 0, "", &RequestError{Msg: "issueUrl is required"}
		}
		return userID, issueURL, nil
	}

	var body struct {
		UserID   int64  `json:"userId"`
		IssueURL string `json:"issueUrl"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return 0, "", &RequestError{Msg: "request body must be JSON with userId and issueUrl"}
	}
	if body.UserID <= 0 {
		return 0, "", &RequestError{Msg: "userId must be a positive integer"}
	}
	if body.IssueURL == "" {
		return 0, "", &RequestError{Msg: "issueUrl is required"}
	}
	return body.UserID, body.IssueURL, nil
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	userID, issueURL, err := apiInputs(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if !s.allow(r, userID, "validate", s.cfg.RateLimits.ValidatePerMinute) {
		writeError(w, http.StatusTooManyRequests, "rate limit exceeded for validate")
		return
	}

	res, err := s.core.Validate(r.Context(), userID, issueURL)
	if err != nil {
		s.respondFailure(w, err)
		return
	}

	writeJSON(w, http.StatusOK, renderResult(res))
}

type executeResponse struct {
	Ok       bool            `json:"ok"`
	Content  string          `json:"content"`
	Metadata executeMetadata `json:"metadata"`
}

type executeMetadata struct {
	Assignees []string   `json:"assignees"`
	Deadline  *time.Time `json:"deadline,omitempty"`
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	userID, issueURL, err := apiInputs(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if !s.allow(r, userID, "execute", s.cfg.RateLimits.ExecutePerMinute) {
		writeError(w, http.StatusTooManyRequests, "rate limit exceeded for execute")
		return
	}

	outcome, err := s.core.Execute(r.Context(), userID, issueURL)
	if err != nil {
		s.respondFailure(w, err)
		return
	}

	assignees := outcome.Assignees
	if assignees == nil {
		assignees = []string{}
	}
	writeJSON(w, http.StatusOK, executeResponse{
		Ok:      outcome.Ok,
		Content: outcome.Content,
		Metadata: executeMetadata{
			Assignees: assignees,
			Deadline:  outcome.Deadline,
		},
	})
}

// respondFailure maps engine errors to status codes: caller mistakes get 400,
// everything else is an upstream failure reported as 500.
func (s *Server) respondFailure(w http.ResponseWriter, err error) {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		writeError(w, http.StatusBadRequest, reqErr.Msg)
		return
	}
	s.log.Error("request failed", "error", err)
	writeError(w, http.StatusInternalServerError, "upstream request failed")
}
