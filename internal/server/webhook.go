package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/go-github/v57/github"
)

const (
	startCommand = "/start"
	stopCommand  = "/stop"
)

// parseCommand recognizes a slash command on the first line of a comment.
// "/start" may name teammates as @mentions; anything else is not a command.
func parseCommand(body string) (string, []string, bool) {
	line := body
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	fields := strings.Fields(strings.TrimSpace(line))
	if len(fields) == 0 {
		return "", nil, false
	}

	switch fields[0] {
	case stopCommand:
		return stopCommand, nil, true
	case startCommand:
		var teammates []string
		for _, f := range fields[1:] {
			if name := strings.TrimPrefix(f, "@"); name != f && name != "" {
				teammates = append(teammates, name)
			}
		}
		return startCommand, teammates, true
	}
	return "", nil, false
}

// handleWebhook dispatches issue_comment events to the engine. Signature
// verification is delegated to the deployment front (reverse proxy); the
// handler always answers 200 so GitHub does not retry on domain failures.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("X-GitHub-Event") != "issue_comment" {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	var event github.IssueCommentEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		writeError(w, http.StatusBadRequest, "malformed webhook payload")
		return
	}

	if event.GetAction() != "created" {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	sender := event.GetComment().GetUser()
	if sender.GetType() == "Bot" || sender.GetLogin() == s.botLogin {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	command, teammates, ok := parseCommand(event.GetComment().GetBody())
	if !ok {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	req := &StartRequest{
		Owner:     event.GetRepo().GetOwner().GetLogin(),
		Repo:      event.GetRepo().GetName(),
		Number:    event.GetIssue().GetNumber(),
		Sender:    sender.GetLogin(),
		SenderID:  sender.GetID(),
		Teammates: teammates,
	}

	switch command {
	case startCommand:
		outcome, err := s.core.ExecuteStart(r.Context(), req)
		switch {
		case err != nil:
			s.reportCommandFailure(r, req, err)
		case !outcome.Ok:
			s.reportStartRefusal(r, req, outcome)
		}
	case stopCommand:
		if _, err := s.core.Stop(r.Context(), req); err != nil {
			s.reportCommandFailure(r, req, err)
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// reportStartRefusal surfaces a refused /start to the commenter. The
// classifier posts its own comments for the sender-quota and parent-issue
// branches; every other refusal is posted here.
func (s *Server) reportStartRefusal(r *http.Request, req *StartRequest, outcome *ExecuteOutcome) {
	s.log.Info("start refused", "sender", req.Sender, "issue", req.Number, "reason", outcome.Content)
	if outcome.Commented {
		return
	}
	if err := s.core.PostComment(r.Context(), req.Owner, req.Repo, req.Number, outcome.Content); err != nil {
		s.log.Error("failed to post refusal comment", "issue", req.Number, "error", err)
	}
}

// reportCommandFailure surfaces a command failure where the user can see it:
// caller mistakes become a comment on the issue, upstream failures are logged.
func (s *Server) reportCommandFailure(r *http.Request, req *StartRequest, err error) {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		if perr := s.core.PostComment(r.Context(), req.Owner, req.Repo, req.Number, reqErr.Msg); perr != nil {
			s.log.Error("failed to post command failure comment", "issue", req.Number, "error", perr)
		}
		return
	}
	s.log.Error("command failed", "sender", req.Sender, "issue", req.Number, "error", err)
}
