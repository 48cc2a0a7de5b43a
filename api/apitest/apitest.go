// Package apitest builds a wired server over a throwaway database.
package apitest

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"solarcycle.GO/api"
	"solarcycle.GO/config"
	"solarcycle.GO/core/app"
	"solarcycle.GO/model/modeltest"
	"solarcycle.GO/service/ledger"
)

const (
	User = "operator"
	Pass = "secret"
)

type Server struct {
	App    *app.App
	Ledger *ledger.MemoryClient
	Echo   *echo.Echo
}

func New(t testing.TB) *Server {
	t.Helper()
	db := modeltest.NewDB(t)
	if err := app.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	cfg := &config.Config{
		Ledger: config.Ledger{Driver: "memory", MaxAttempts: 3, TokensPerKg: 10},
		Triage: config.Triage{Strategy: "threshold", ReuseMinWatts: 150},
		API:    config.API{AuthType: "basic", User: User, Pass: Pass},
	}
	mem := ledger.NewMemoryClient()
	a := app.Build(cfg, db, mem, nil, nil)
	t.Cleanup(a.Ledger.Close)
	return &Server{App: a, Ledger: mem, Echo: api.NewServer(a)}
}

// Do sends an authenticated request. body is JSON-encoded when not nil.
func (s *Server) Do(t testing.TB, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	return s.do(t, method, path, body, true)
}

// DoAnonymous sends a request without credentials.
func (s *Server) DoAnonymous(t testing.TB, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	return s.do(t, method, path, body, false)
}

func (s *Server) do(t testing.TB, method, path string, body interface{}, authenticated bool) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if authenticated {
		req.SetBasicAuth(User, Pass)
	}
	rec := httptest.NewRecorder()
	s.Echo.ServeHTTP(rec, req)
	return rec
}

// Decode unmarshals the response body into v.
func Decode(t testing.TB, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}
