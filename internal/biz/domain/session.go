package domain

import "sync"

// ConnectionState is the lifecycle state of the external client connection.
type ConnectionState string

const (
	StateInitializing  ConnectionState = "INITIALIZING"
	StateQRPending     ConnectionState = "QR_PENDING"
	StateAuthenticated ConnectionState = "AUTHENTICATED"
	StateReady         ConnectionState = "READY"
	StateAuthFailure   ConnectionState = "AUTH_FAILURE"
	StateDisconnected  ConnectionState = "DISCONNECTED"
)

// External client states that mean another session has taken over. Seeing one
// of these forces both derived flags false regardless of prior state.
const (
	ClientStateConflict   = "CONFLICT"
	ClientStateUnlaunched = "UNLAUNCHED"
)

// SessionSnapshot is the published view of the session. The booleans are
// derived from the connection state, never stored independently.
type SessionSnapshot struct {
	State           ConnectionState `json:"state"`
	IsAuthenticated bool            `json:"isAuthenticated"`
	IsReady         bool            `json:"isReady"`
	QRCode          string          `json:"qrCode,omitempty"`
	ClientState     string          `json:"clientState,omitempty"`
	LastError       string          `json:"lastError,omitempty"`
}

// Session tracks the single process-wide connection/auth lifecycle of the
// external client. Created at process start, never destroyed; a fatal
// disconnect resets it back to INITIALIZING.
type Session struct {
	mu          sync.RWMutex
	state       ConnectionState
	pendingQR   string
	clientState string
	lastError   string
}

// NewSession creates the session in INITIALIZING state.
func NewSession() *Session {
	return &Session{state: StateInitializing}
}

// Snapshot returns the current published view.
func (s *Session) Snapshot() SessionSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() SessionSnapshot {
	return SessionSnapshot{
		State:           s.state,
		IsAuthenticated: s.state == StateAuthenticated || s.state == StateReady,
		IsReady:         s.state == StateReady,
		QRCode:          s.pendingQR,
		ClientState:     s.clientState,
		LastError:       s.lastError,
	}
}

// OnQR records a freshly issued QR payload and moves to QR_PENDING.
func (s *Session) OnQR(payload string) SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateQRPending
	s.pendingQR = payload
	s.lastError = ""
	return s.snapshotLocked()
}

// OnAuthenticated marks the session authenticated and clears the pending QR.
func (s *Session) OnAuthenticated() SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateAuthenticated
	s.pendingQR = ""
	s.lastError = ""
	return s.snapshotLocked()
}

// OnAuthFailure records a failed authentication. The state is retryable: the
// external client re-initializes and the machine returns to INITIALIZING.
func (s *Session) OnAuthFailure(reason string) SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateAuthFailure
	s.pendingQR = ""
	s.lastError = reason
	return s.snapshotLocked()
}

// OnReady marks the client fully operational.
func (s *Session) OnReady() SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateReady
	s.pendingQR = ""
	s.lastError = ""
	return s.snapshotLocked()
}

// OnClientState records an external state-change signal. CONFLICT and
// UNLAUNCHED mean another session took over: drop to DISCONNECTED so both
// derived flags read false.
func (s *Session) OnClientState(state string) SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clientState = state
	if state == ClientStateConflict || state == ClientStateUnlaunched {
		s.state = StateDisconnected
		s.pendingQR = ""
	}
	return s.snapshotLocked()
}

// OnDisconnected records a disconnect with its reason.
func (s *Session) OnDisconnected(reason string) SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateDisconnected
	s.pendingQR = ""
	s.lastError = reason
	return s.snapshotLocked()
}

// OnInitializing resets the machine after external re-initialization, or
// records a non-fatal initialization failure (reason != "") while staying
// retryable.
func (s *Session) OnInitializing(reason string) SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateInitializing
	s.pendingQR = ""
	s.lastError = reason
	return s.snapshotLocked()
}
