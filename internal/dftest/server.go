// Package dftest provides an in-process fake of the remote API for tests.
//
// The fake understands the subset of the API used by this module: session
// login/logout/refresh under user/session and record CRUD under
// SERVICE/_table/NAME. Responses can be scripted with Respond to exercise
// error and malformed-reply paths.
package dftest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	headerAPIKey         = "X-DreamFactory-Api-Key"
	headerSessionToken   = "X-DreamFactory-Session-Token"
	headerMethodOverride = "X-HTTP-METHOD"
)

// Request is a request received by the fake.
type Request struct {
	// Method is the effective method, after applying any X-HTTP-METHOD
	// override.
	Method string
	// WireMethod is the method actually used on the wire.
	WireMethod string
	Path       string
	Query      string
	Header     http.Header
	Body       []byte
}

type scripted struct {
	method string
	path   string
	status int
	body   any
}

type table struct {
	nextID int64
	rows   []map[string]any
}

// Server is a fake remote API.
type Server struct {
	*httptest.Server

	APIKey string

	// RequireSession rejects table requests without a valid session token.
	RequireSession bool

	mu       sync.Mutex
	users    map[string]string
	sessions map[string]string
	tables   map[string]*table
	requests []Request
	script   []scripted
	tokenSeq int
}

// NewServer starts a fake accepting apiKey. It is closed when the test ends.
func NewServer(t testing.TB, apiKey string) *Server {
	t.Helper()

	s := &Server{
		APIKey:   apiKey,
		users:    make(map[string]string),
		sessions: make(map[string]string),
		tables:   make(map[string]*table),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Close)
	return s
}

// BaseURL is the API endpoint to configure clients with.
func (s *Server) BaseURL() string {
	return s.URL + "/api/v2/"
}

// AddUser registers a user that can log in.
func (s *Server) AddUser(email, password string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[email] = password
}

// Seed inserts rows into a table and returns the ids assigned to them.
func (s *Server) Seed(service, name string, rows ...map[string]any) []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	tbl := s.table(service, name)
	ids := make([]int64, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, tbl.insert(row))
	}
	return ids
}

// Rows returns a copy of a table's rows.
func (s *Server) Rows(service, name string) []map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()

	tbl := s.table(service, name)
	out := make([]map[string]any, 0, len(tbl.rows))
	for _, row := range tbl.rows {
		out = append(out, copyRow(row))
	}
	return out
}

// Requests returns every request received so far.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// LastRequest returns the most recent request. It panics if there is none.
func (s *Server) LastRequest() Request {
	reqs := s.Requests()
	return reqs[len(reqs)-1]
}

// Respond scripts the next request matching method and path (relative to the
// API base, e.g. "db/_table/contact/") to receive status and body instead of
// the fake's normal behavior. Scripted replies are used once, in order.
func (s *Server) Respond(method, path string, status int, body any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.script = append(s.script, scripted{method: method, path: path, status: status, body: body})
}

// IssueToken creates a valid session for email without going through login.
func (s *Server) IssueToken(email string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.issueToken(email)
}

func (s *Server) issueToken(email string) string {
	s.tokenSeq++
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   email,
		Issuer:    "dftest",
		ID:        strconv.Itoa(s.tokenSeq),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("dftest"))
	if err != nil {
		panic(err)
	}
	s.sessions[token] = email
	return token
}

func (s *Server) table(service, name string) *table {
	key := service + "/" + name
	tbl, ok := s.tables[key]
	if !ok {
		tbl = &table{}
		s.tables[key] = tbl
	}
	return tbl
}

func (t *table) insert(row map[string]any) int64 {
	t.nextID++
	r := copyRow(row)
	r["id"] = t.nextID
	t.rows = append(t.rows, r)
	return t.nextID
}

func (t *table) index(id int64) int {
	for i, row := range t.rows {
		if row["id"] == id {
			return i
		}
	}
	return -1
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	method := r.Method
	if o := r.Header.Get(headerMethodOverride); o != "" && r.Method == http.MethodPost {
		method = o
	}
	path := strings.TrimPrefix(r.URL.Path, "/api/v2/")

	s.mu.Lock()
	defer s.mu.Unlock()

	s.requests = append(s.requests, Request{
		Method:     method,
		WireMethod: r.Method,
		Path:       path,
		Query:      r.URL.RawQuery,
		Header:     r.Header.Clone(),
		Body:       body,
	})

	for i, sc := range s.script {
		if sc.method == method && sc.path == path {
			s.script = append(s.script[:i], s.script[i+1:]...)
			writeJSON(w, sc.status, sc.body)
			return
		}
	}

	if r.Header.Get(headerAPIKey) != s.APIKey {
		writeError(w, http.StatusBadRequest, "No API Key detected in request.")
		return
	}

	var segments []string
	for _, seg := range strings.Split(path, "/") {
		if seg != "" {
			segments = append(segments, seg)
		}
	}

	switch {
	case len(segments) == 2 && segments[0] == "user" && segments[1] == "session":
		s.handleSession(w, r, method, body)
	case (len(segments) == 3 || len(segments) == 4) && segments[1] == "_table":
		if s.RequireSession {
			if _, ok := s.sessions[r.Header.Get(headerSessionToken)]; !ok {
				writeError(w, http.StatusUnauthorized, "Session not authorized.")
				return
			}
		}
		s.handleTable(w, r, method, segments, body)
	default:
		writeError(w, http.StatusNotFound, fmt.Sprintf("resource %q not found", path))
	}
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request, method string, body []byte) {
	switch method {
	case http.MethodPost:
		var creds struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := json.Unmarshal(body, &creds); err != nil {
			writeError(w, http.StatusBadRequest, "invalid body")
			return
		}
		if pw, ok := s.users[creds.Email]; !ok || pw != creds.Password {
			writeError(w, http.StatusUnauthorized, "Invalid credentials supplied.")
			return
		}
		token := s.issueToken(creds.Email)
		writeJSON(w, http.StatusOK, map[string]any{
			"session_token": token,
			"email":         creds.Email,
		})

	case http.MethodPut:
		email, ok := s.sessions[r.Header.Get(headerSessionToken)]
		if !ok {
			writeError(w, http.StatusUnauthorized, "Session not active.")
			return
		}
		delete(s.sessions, r.Header.Get(headerSessionToken))
		writeJSON(w, http.StatusOK, map[string]any{"session_token": s.issueToken(email)})

	case http.MethodDelete:
		delete(s.sessions, r.Header.Get(headerSessionToken))
		writeJSON(w, http.StatusOK, map[string]any{"success": true})

	case http.MethodGet:
		email, ok := s.sessions[r.Header.Get(headerSessionToken)]
		if !ok {
			writeError(w, http.StatusUnauthorized, "Session not active.")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"email": email})

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleTable(w http.ResponseWriter, r *http.Request, method string, segments []string, body []byte) {
	tbl := s.table(segments[0], segments[2])

	switch method {
	case http.MethodGet:
		if len(segments) == 4 {
			id, _ := strconv.ParseInt(segments[3], 10, 64)
			i := tbl.index(id)
			if i < 0 {
				writeError(w, http.StatusNotFound, "Record not found.")
				return
			}
			writeJSON(w, http.StatusOK, tbl.rows[i])
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"resource": selectRows(tbl, r)})

	case http.MethodPost:
		items, ok := decodeEnvelope(body)
		if !ok {
			writeError(w, http.StatusBadRequest, "No record(s) detected in request.")
			return
		}
		var out []map[string]any
		for _, item := range items {
			row, ok := item.(map[string]any)
			if !ok {
				writeError(w, http.StatusBadRequest, "invalid record")
				return
			}
			delete(row, "id")
			out = append(out, map[string]any{"id": tbl.insert(row)})
		}
		writeJSON(w, http.StatusOK, map[string]any{"resource": out})

	case http.MethodPatch:
		items, ok := decodeEnvelope(body)
		if !ok {
			writeError(w, http.StatusBadRequest, "No record(s) detected in request.")
			return
		}
		var out []map[string]any
		for _, item := range items {
			row, _ := item.(map[string]any)
			id := toID(row["id"])
			i := tbl.index(id)
			if i < 0 {
				writeError(w, http.StatusNotFound, fmt.Sprintf("Record with identifier '%d' not found.", id))
				return
			}
			for k, v := range row {
				if k != "id" {
					tbl.rows[i][k] = v
				}
			}
			out = append(out, map[string]any{"id": id})
		}
		writeJSON(w, http.StatusOK, map[string]any{"resource": out})

	case http.MethodDelete:
		items, ok := decodeEnvelope(body)
		if !ok {
			writeError(w, http.StatusBadRequest, "No record(s) detected in request.")
			return
		}
		var out []map[string]any
		for _, item := range items {
			id := toID(item)
			if m, ok := item.(map[string]any); ok {
				id = toID(m["id"])
			}
			i := tbl.index(id)
			if i < 0 {
				writeError(w, http.StatusNotFound, fmt.Sprintf("Record with identifier '%d' not found.", id))
				return
			}
			tbl.rows = append(tbl.rows[:i], tbl.rows[i+1:]...)
			out = append(out, map[string]any{"id": id})
		}
		writeJSON(w, http.StatusOK, map[string]any{"resource": out})

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// selectRows applies the ids, offset and limit query parameters.
func selectRows(tbl *table, r *http.Request) []map[string]any {
	q := r.URL.Query()

	rows := tbl.rows
	if ids := q.Get("ids"); ids != "" {
		want := map[int64]bool{}
		for _, s := range strings.Split(ids, ",") {
			id, _ := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
			want[id] = true
		}
		var filtered []map[string]any
		for _, row := range rows {
			if want[row["id"].(int64)] {
				filtered = append(filtered, row)
			}
		}
		rows = filtered
	}

	if order := q.Get("order"); order == "id desc" {
		sorted := append([]map[string]any(nil), rows...)
		sort.SliceStable(sorted, func(i, j int) bool {
			return sorted[i]["id"].(int64) > sorted[j]["id"].(int64)
		})
		rows = sorted
	}

	if offset, err := strconv.Atoi(q.Get("offset")); err == nil && offset > 0 {
		if offset >= len(rows) {
			rows = nil
		} else {
			rows = rows[offset:]
		}
	}
	if limit, err := strconv.Atoi(q.Get("limit")); err == nil && limit > 0 && limit < len(rows) {
		rows = rows[:limit]
	}

	out := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		out = append(out, copyRow(row))
	}
	return out
}

func decodeEnvelope(body []byte) ([]any, bool) {
	var env struct {
		Resource []any `json:"resource"`
	}
	if err := json.Unmarshal(body, &env); err != nil || len(env.Resource) == 0 {
		return nil, false
	}
	return env.Resource, true
}

func toID(v any) int64 {
	switch id := v.(type) {
	case float64:
		return int64(id)
	case int64:
		return id
	case string:
		n, _ := strconv.ParseInt(id, 10, 64)
		return n
	}
	return 0
}

func copyRow(row map[string]any) map[string]any {
	out := make(map[string]any, len(row))
	for k, v := range row {
		out[k] = v
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"code":    status,
			"message": message,
		},
	})
}
