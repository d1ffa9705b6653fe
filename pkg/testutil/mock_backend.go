// Package testutil provides a mock energy backend for integration tests.
// The mock speaks the same HTTP contract as the real controller: password
// login with a session cookie, api/state polling with optional manual
// commands, and api/set.
package testutil

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
)

const sessionCookie = "session"

// MockBackend simulates the energy backend's web API
type MockBackend struct {
	server   *httptest.Server
	password string

	mu            sync.Mutex
	state         map[string]any
	sessions      map[string]bool
	manualSession string
	setCalls      []map[string]any
	manualCalls   []map[string]any
	statePolls    int
}

// NewMockBackend starts a mock backend accepting password. Call Close when
// done.
func NewMockBackend(password string) *MockBackend {
	b := &MockBackend{
		password: password,
		state:    map[string]any{},
		sessions: make(map[string]bool),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/login", b.handleLogin)
	mux.HandleFunc("/api/state", b.handleState)
	mux.HandleFunc("/api/set", b.handleSet)
	b.server = httptest.NewServer(mux)
	return b
}

// URL returns the base URL of the mock
func (b *MockBackend) URL() string {
	return b.server.URL
}

// Close shuts the mock down
func (b *MockBackend) Close() {
	b.server.Close()
}

// SetState replaces the state document. It is deep copied through JSON so
// later changes by the caller do not leak in.
func (b *MockBackend) SetState(state map[string]any) {
	data, _ := json.Marshal(state)
	var copied map[string]any
	_ = json.Unmarshal(data, &copied)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = copied
}

// InvalidateSessions forgets every session, the way a backend restart does
func (b *MockBackend) InvalidateSessions() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sessions = make(map[string]bool)
	b.manualSession = ""
}

// SessionCount returns the number of sessions handed out and still valid
func (b *MockBackend) SessionCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.sessions)
}

// GetSetCalls returns the accepted api/set bodies
func (b *MockBackend) GetSetCalls() []map[string]any {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]map[string]any(nil), b.setCalls...)
}

// GetManualCalls returns the bodies posted to api/state
func (b *MockBackend) GetManualCalls() []map[string]any {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]map[string]any(nil), b.manualCalls...)
}

// StatePolls returns how often api/state was requested
func (b *MockBackend) StatePolls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.statePolls
}

func (b *MockBackend) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, "<form method=post><input name=password type=password></form>")
		return
	}
	if r.FormValue("password") != b.password {
		w.WriteHeader(http.StatusOK) // the backend shows the form again
		return
	}

	id := newSessionID()
	b.mu.Lock()
	b.sessions[id] = true
	b.mu.Unlock()

	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: id, Path: "/"})
	http.Redirect(w, r, "/", http.StatusFound)
}

func (b *MockBackend) handleState(w http.ResponseWriter, r *http.Request) {
	var post map[string]any
	if r.Method == http.MethodPost {
		_ = json.NewDecoder(r.Body).Decode(&post)
	}
	session := sessionID(r)

	b.mu.Lock()
	b.statePolls++
	if post != nil {
		b.manualCalls = append(b.manualCalls, post)
	}
	data, _ := json.Marshal(b.snapshotLocked(session))
	b.mu.Unlock()

	writeJSON(w, data)
}

func (b *MockBackend) handleSet(w http.ResponseWriter, r *http.Request) {
	session := sessionID(r)

	var post map[string]any
	_ = json.NewDecoder(r.Body).Decode(&post)

	b.mu.Lock()
	if b.sessions[session] && post != nil {
		b.setCalls = append(b.setCalls, post)
		b.applyLocked(session, post)
	}
	data, _ := json.Marshal(b.snapshotLocked(session))
	b.mu.Unlock()

	writeJSON(w, data)
}

// applyLocked mirrors what the backend does with an accepted api/set
func (b *MockBackend) applyLocked(session string, post map[string]any) {
	ess, _ := b.state["ess"].(map[string]any)
	if ess == nil {
		ess = map[string]any{}
		b.state["ess"] = ess
	}

	if option, ok := post["option"].(float64); ok {
		ess["setting"] = option
	}
	if mode, ok := post["mode"].(string); ok {
		switch mode {
		case "off", "auto", "manual":
			ess["mode"] = mode
			if mode == "manual" {
				b.manualSession = session
			} else {
				b.manualSession = ""
			}
		}
	}
	if reset, ok := post["reset_error"].(bool); ok && reset {
		ess["state"] = "init"
	}
}

func (b *MockBackend) snapshotLocked(session string) map[string]any {
	state := make(map[string]any, len(b.state)+2)
	for k, v := range b.state {
		state[k] = v
	}

	mode := ""
	if ess, ok := b.state["ess"].(map[string]any); ok {
		mode, _ = ess["mode"].(string)
	}
	if mode == "manual" && b.manualSession != "" && session == b.manualSession {
		state["manual_auth"] = true
	}
	if !b.sessions[session] {
		state["session_invalid"] = true
	}
	return state
}

func sessionID(r *http.Request) string {
	cookie, err := r.Cookie(sessionCookie)
	if err != nil {
		return ""
	}
	return cookie.Value
}

func newSessionID() string {
	buf := make([]byte, 16)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func writeJSON(w http.ResponseWriter, data []byte) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(data)
}
