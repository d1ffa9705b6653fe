package backend

import (
	"context"
	"sync"
	"time"

	"energydash/internal/snapshot"
)

// StateCall records a State call for testing
type StateCall struct {
	Manual *ManualRequest
	Time   time.Time
}

// MockClient implements Backend for testing. Responses are scripted with
// SetState/SetStateError/SetSetResponse and every call is recorded.
type MockClient struct {
	mu sync.Mutex

	state    snapshot.Doc
	stateErr error
	setDoc   snapshot.Doc
	setErr   error
	password string

	stateCalls []StateCall
	setCalls   []SetRequest
	logins     int
}

// NewMockClient creates a mock backend returning an empty state
func NewMockClient() *MockClient {
	return &MockClient{state: snapshot.Doc{}}
}

// SetState sets the document returned by State and clears any error
func (m *MockClient) SetState(doc snapshot.Doc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = doc
	m.stateErr = nil
}

// SetStateError makes State fail
func (m *MockClient) SetStateError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stateErr = err
}

// SetSetResponse sets the result of Set. A nil doc makes Set return the
// current state.
func (m *MockClient) SetSetResponse(doc snapshot.Doc, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setDoc = doc
	m.setErr = err
}

// SetPassword makes Login accept only this password. Empty accepts any.
func (m *MockClient) SetPassword(password string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.password = password
}

// State returns the scripted state
func (m *MockClient) State(ctx context.Context, manual *ManualRequest) (snapshot.Doc, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var recorded *ManualRequest
	if manual != nil {
		cp := *manual
		recorded = &cp
	}
	m.stateCalls = append(m.stateCalls, StateCall{Manual: recorded, Time: time.Now()})

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.stateErr != nil {
		return nil, m.stateErr
	}
	return m.state, nil
}

// Set records the command and returns the scripted response
func (m *MockClient) Set(ctx context.Context, req SetRequest) (snapshot.Doc, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.setCalls = append(m.setCalls, req)

	if m.setErr != nil {
		return nil, m.setErr
	}
	if m.setDoc != nil {
		return m.setDoc, nil
	}
	return m.state, nil
}

// Login checks the password against SetPassword
func (m *MockClient) Login(ctx context.Context, password string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logins++
	if m.password != "" && password != m.password {
		return ErrLoginFailed
	}
	return nil
}

// GetStateCalls returns all recorded polls
func (m *MockClient) GetStateCalls() []StateCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	calls := make([]StateCall, len(m.stateCalls))
	copy(calls, m.stateCalls)
	return calls
}

// GetSetCalls returns all recorded commands
func (m *MockClient) GetSetCalls() []SetRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	calls := make([]SetRequest, len(m.setCalls))
	copy(calls, m.setCalls)
	return calls
}

// LoginCount returns how often Login was called
func (m *MockClient) LoginCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.logins
}

// ClearCalls forgets all recorded calls
func (m *MockClient) ClearCalls() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stateCalls = nil
	m.setCalls = nil
	m.logins = 0
}
