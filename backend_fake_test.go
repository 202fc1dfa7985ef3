package chronoquest_test

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/chronoquest/chronoquest"
	"github.com/goccy/go-json"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const testUser = "3e8c1f2a-6b4d-4a7e-9c0b-5d2e1f3a4b60"

// testNow is a Wednesday, mid-day in UTC.
var testNow = time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)

func testToken(t *testing.T, sub string, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": sub, "exp": exp.Unix()})
	s, err := tok.SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("SignedString() returned error: %v", err)
	}
	return s
}

type row = map[string]any

// fakeBackend is a small in-memory PostgREST: eq, gte and is.null filters,
// limit, inserts, merge upserts, patches, deletes and named RPCs.
type fakeBackend struct {
	t   *testing.T
	srv *httptest.Server

	mu       sync.Mutex
	tables   map[string][]row
	rpcs     map[string]func(args row) (any, int)
	down     bool
	failures map[string]int // "METHOD table" -> status
	before   func(method, table string)
	requests []string
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()
	fb := &fakeBackend{
		t:        t,
		tables:   map[string][]row{},
		rpcs:     map[string]func(row) (any, int){},
		failures: map[string]int{},
	}
	fb.srv = httptest.NewServer(http.HandlerFunc(fb.serve))
	t.Cleanup(fb.srv.Close)
	return fb
}

func (fb *fakeBackend) URL() string { return fb.srv.URL }

func (fb *fakeBackend) seed(table string, rows ...row) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.tables[table] = append(fb.tables[table], rows...)
}

func (fb *fakeBackend) rows(table string) []row {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	out := make([]row, len(fb.tables[table]))
	copy(out, fb.tables[table])
	return out
}

func (fb *fakeBackend) setDown(down bool) {
	fb.mu.Lock()
	fb.down = down
	fb.mu.Unlock()
}

func (fb *fakeBackend) fail(method, table string, status int) {
	fb.mu.Lock()
	fb.failures[method+" "+table] = status
	fb.mu.Unlock()
}

// onRequest installs a hook run for every table request. It runs with the
// backend locked and may touch fb.tables directly.
func (fb *fakeBackend) onRequest(fn func(method, table string)) {
	fb.mu.Lock()
	fb.before = fn
	fb.mu.Unlock()
}

func (fb *fakeBackend) rpc(name string, fn func(args row) (any, int)) {
	fb.mu.Lock()
	fb.rpcs[name] = fn
	fb.mu.Unlock()
}

func (fb *fakeBackend) count(prefix string) int {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	n := 0
	for _, r := range fb.requests {
		if strings.HasPrefix(r, prefix) {
			n++
		}
	}
	return n
}

func (fb *fakeBackend) serve(w http.ResponseWriter, r *http.Request) {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	if fb.down {
		panic(http.ErrAbortHandler)
	}

	body, _ := io.ReadAll(r.Body)
	path := strings.TrimPrefix(r.URL.Path, "/rest/v1/")
	fb.requests = append(fb.requests, r.Method+" "+path)

	if r.URL.Path == "/auth/v1/token" {
		fb.signIn(w, body)
		return
	}
	if name, ok := strings.CutPrefix(path, "rpc/"); ok {
		fb.callRPC(w, name, body)
		return
	}

	table := path
	if fb.before != nil {
		fb.before(r.Method, table)
	}
	if status, ok := fb.failures[r.Method+" "+table]; ok {
		writeError(w, status, "P0001", "rejected by test")
		return
	}

	q := r.URL.Query()
	returnRows := strings.Contains(r.Header.Get("Prefer"), "return=representation")
	switch r.Method {
	case http.MethodGet:
		out := []row{}
		for _, rw := range fb.tables[table] {
			if matches(rw, q) {
				out = append(out, rw)
			}
		}
		if n, err := strconv.Atoi(q.Get("limit")); err == nil && n < len(out) {
			out = out[:n]
		}
		writeJSON(w, http.StatusOK, out)

	case http.MethodPost:
		var in []row
		if err := json.Unmarshal(body, &in); err != nil {
			writeError(w, http.StatusBadRequest, "PGRST102", "body must be an array")
			return
		}
		upsert := strings.Contains(r.Header.Get("Prefer"), "merge-duplicates")
		keys := strings.Split(q.Get("on_conflict"), ",")
		for i := range in {
			fb.fillDefaults(table, in[i])
			if upsert && fb.mergeExisting(table, keys, in[i]) {
				continue
			}
			if table == "profiles" && fb.exists(table, "id", in[i]["id"]) {
				writeError(w, http.StatusConflict, "23505", "duplicate key value violates unique constraint \"profiles_pkey\"")
				return
			}
			fb.tables[table] = append(fb.tables[table], in[i])
		}
		if returnRows {
			writeJSON(w, http.StatusCreated, in)
			return
		}
		w.WriteHeader(http.StatusCreated)

	case http.MethodPatch:
		var patch row
		if err := json.Unmarshal(body, &patch); err != nil {
			writeError(w, http.StatusBadRequest, "PGRST102", "bad patch")
			return
		}
		out := []row{}
		for _, rw := range fb.tables[table] {
			if matches(rw, q) {
				for k, v := range patch {
					rw[k] = v
				}
				out = append(out, rw)
			}
		}
		if returnRows {
			writeJSON(w, http.StatusOK, out)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	case http.MethodDelete:
		kept := fb.tables[table][:0]
		for _, rw := range fb.tables[table] {
			if !matches(rw, q) {
				kept = append(kept, rw)
			}
		}
		fb.tables[table] = kept
		w.WriteHeader(http.StatusNoContent)
	}
}

func (fb *fakeBackend) fillDefaults(table string, rw row) {
	if _, ok := rw["id"]; !ok && table != "task_daily_counters" {
		rw["id"] = uuid.NewString()
	}
	stamp := testNow.UTC().Format(time.RFC3339)
	switch table {
	case "task_completions":
		if _, ok := rw["completed_at"]; !ok {
			rw["completed_at"] = stamp
		}
	case "tasks", "ai_quest_suggestions":
		if _, ok := rw["created_at"]; !ok {
			rw["created_at"] = stamp
		}
	}
}

func (fb *fakeBackend) mergeExisting(table string, keys []string, in row) bool {
	for _, rw := range fb.tables[table] {
		same := true
		for _, k := range keys {
			if fmt.Sprint(rw[k]) != fmt.Sprint(in[k]) {
				same = false
				break
			}
		}
		if same {
			for k, v := range in {
				rw[k] = v
			}
			return true
		}
	}
	return false
}

func (fb *fakeBackend) exists(table, col string, v any) bool {
	for _, rw := range fb.tables[table] {
		if fmt.Sprint(rw[col]) == fmt.Sprint(v) {
			return true
		}
	}
	return false
}

func (fb *fakeBackend) callRPC(w http.ResponseWriter, name string, body []byte) {
	fn, ok := fb.rpcs[name]
	if !ok {
		writeError(w, http.StatusNotFound, "PGRST202", "function not found: "+name)
		return
	}
	var args row
	_ = json.Unmarshal(body, &args)
	out, status := fn(args)
	if status >= 300 {
		writeError(w, status, "P0001", fmt.Sprint(out))
		return
	}
	writeJSON(w, status, out)
}

func (fb *fakeBackend) signIn(w http.ResponseWriter, body []byte) {
	var creds struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	_ = json.Unmarshal(body, &creds)
	if creds.Password != "hunter2" {
		writeJSON(w, http.StatusBadRequest, row{"error": "invalid_grant", "error_description": "Invalid login credentials"})
		return
	}
	writeJSON(w, http.StatusOK, row{
		"access_token":  testToken(fb.t, testUser, testNow.Add(time.Hour)),
		"refresh_token": "refresh",
		"expires_in":    3600,
		"token_type":    "bearer",
		"user":          row{"id": testUser, "email": creds.Email},
	})
}

// matches applies the PostgREST filters in q to rw.
func matches(rw row, q map[string][]string) bool {
	for col, vals := range q {
		switch col {
		case "select", "order", "limit", "on_conflict":
			continue
		}
		for _, v := range vals {
			op, arg, _ := strings.Cut(v, ".")
			got, present := rw[col]
			switch op {
			case "eq":
				if !present || fmt.Sprint(got) != arg {
					return false
				}
			case "gte":
				if !present || fmt.Sprint(got) < arg {
					return false
				}
			case "is":
				if arg == "null" && present && got != nil {
					return false
				}
			}
		}
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, row{"code": code, "message": msg})
}

// newOnlineSession opens a session against fb with a fixed clock.
func newOnlineSession(t *testing.T, fb *fakeBackend) (*chronoquest.Client, *chronoquest.Session) {
	t.Helper()
	client, err := chronoquest.New(chronoquest.Config{
		BackendURL:  fb.URL(),
		AnonKey:     "anon",
		AccessToken: testToken(t, testUser, testNow.Add(time.Hour)),
		LocalPath:   filepath.Join(t.TempDir(), "cq.db"),
		Now:         func() time.Time { return testNow },
	})
	if err != nil {
		t.Fatalf("chronoquest.New() returned error: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	sess, err := client.Open(context.Background())
	if err != nil {
		t.Fatalf("Open() returned error: %v", err)
	}
	if err := sess.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() returned error: %v", err)
	}
	return client, sess
}

func taskRow(id, title string, extra row) row {
	rw := row{
		"id": id, "user_id": testUser, "title": title, "category": "exercise",
		"base_xp": 10, "effort_level": "standard", "repeat_type": "daily",
		"requires_count": false, "created_at": "2026-01-01T00:00:00Z",
	}
	for k, v := range extra {
		rw[k] = v
	}
	return rw
}

func profileRow(extra row) row {
	rw := row{
		"id": testUser, "level": 1, "xp": 0, "unspent_points": 0, "coins": 0,
		"display_name": "Hero", "stats_json": row{"str": 0, "int": 0, "will": 0, "cha": 0},
	}
	for k, v := range extra {
		rw[k] = v
	}
	return rw
}
