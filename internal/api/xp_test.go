package api

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/taskops/assignbot/internal/logging"
)

func xpTestServer(t *testing.T, body string, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/xp" || r.URL.Query().Get("user") == "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestUserXP(t *testing.T) {
	srv := xpTestServer(t, `{"users":[{"login":"alice","id":1,"hasData":true,"total":1500,"permitCount":3}]}`, http.StatusOK)

	c := NewXPClient(srv.URL, logging.Discard())
	xp, err := c.UserXP(context.Background(), "alice")
	if err != nil {
		t.Fatalf("UserXP() error = %v", err)
	}
	if xp != 1500 {
		t.Errorf("xp = %d, want 1500", xp)
	}
}

func TestUserXPAbsentUserIsZeroAndLogged(t *testing.T) {
	srv := xpTestServer(t, `{"users":[{"login":"alice","id":1,"hasData":true,"total":1500,"permitCount":3}]}`, http.StatusOK)

	var buf bytes.Buffer
	log := &logging.Logger{Logger: slog.New(slog.NewTextHandler(&buf, nil))}

	c := NewXPClient(srv.URL, log)
	xp, err := c.UserXP(context.Background(), "ghost")
	if err != nil {
		t.Fatalf("UserXP() error = %v", err)
	}
	if xp != 0 {
		t.Errorf("xp = %d, want 0 for an absent user", xp)
	}
	if !strings.Contains(buf.String(), "ghost") || !strings.Contains(buf.String(), "absent") {
		t.Errorf("log = %q, want the absent user recorded", buf.String())
	}
}

func TestUserXPServiceError(t *testing.T) {
	srv := xpTestServer(t, `oops`, http.StatusBadGateway)

	c := NewXPClient(srv.URL, logging.Discard())
	if _, err := c.UserXP(context.Background(), "alice"); err == nil {
		t.Fatal("expected an error on a non-200 response")
	}
}
