package session

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// GuestID is the identity id of an anonymous visitor
const GuestID = "guest"

// Kind separates buyer and seller identities. Tokens of one kind are never
// accepted by a session of the other.
type Kind string

const (
	Buyer  Kind = "buyer"
	Seller Kind = "seller"
)

// Audience is the token audience of the namespace
func (k Kind) Audience() string {
	return "storefront-" + string(k)
}

// State is the session lifecycle state
type State int

const (
	Anonymous State = iota
	Authenticating
	Authenticated
)

func (s State) String() string {
	switch s {
	case Anonymous:
		return "anonymous"
	case Authenticating:
		return "authenticating"
	case Authenticated:
		return "authenticated"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

var (
	ErrNotAuthenticated  = errors.New("session is not authenticated")
	ErrInProgress        = errors.New("authentication already in progress")
	ErrNotAuthenticating = errors.New("no authentication in progress")
	ErrWrongNamespace    = errors.New("token belongs to a different namespace")
	ErrTokenExpired      = errors.New("token has expired")
)

// Identity is the locally displayed account information
type Identity struct {
	ID       string   `json:"id"`
	Username string   `json:"username"`
	Email    string   `json:"email"`
	Score    *float64 `json:"score,omitempty"`
}

func guest() Identity {
	return Identity{ID: GuestID, Username: "Guest"}
}

// Session holds one buyer's or seller's authentication state. It is passed
// explicitly to the request layer instead of living in global state.
type Session struct {
	mu         sync.RWMutex
	kind       Kind
	state      State
	token      string
	expiresAt  time.Time
	identity   Identity
	returnPath string
	now        func() time.Time
}

// New creates an anonymous session of the given kind
func New(kind Kind) *Session {
	return &Session{
		kind:     kind,
		state:    Anonymous,
		identity: guest(),
		now:      time.Now,
	}
}

// Kind returns the session namespace
func (s *Session) Kind() Kind {
	return s.kind
}

// State returns the current lifecycle state
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Begin moves an anonymous session into authenticating
func (s *Session) Begin() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == Authenticating {
		return ErrInProgress
	}
	s.state = Authenticating
	return nil
}

// Complete finishes a login with the token issued by the server. The token's
// audience must match the session kind. Identity fields left empty are filled
// from the token claims.
func (s *Session) Complete(token string, id Identity) error {
	claims, err := DecodeClaims(token)
	if err != nil {
		s.Fail()
		return err
	}
	if !claims.InNamespace(s.kind) {
		s.Fail()
		return ErrWrongNamespace
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Authenticating {
		return ErrNotAuthenticating
	}
	if claims.ExpiresAt != nil && !claims.ExpiresAt.After(s.now()) {
		s.resetLocked()
		return ErrTokenExpired
	}

	if id.ID == "" {
		id.ID = claims.Subject(s.kind)
	}
	if id.Username == "" {
		id.Username = claims.Username
	}

	s.state = Authenticated
	s.token = token
	s.identity = id
	if claims.ExpiresAt != nil {
		s.expiresAt = claims.ExpiresAt.Time
	}
	return nil
}

// Fail abandons an authentication attempt
func (s *Session) Fail() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
}

// Logout drops the token and returns to a guest identity
func (s *Session) Logout() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
}

func (s *Session) resetLocked() {
	s.state = Anonymous
	s.token = ""
	s.expiresAt = time.Time{}
	s.identity = guest()
}

// Token returns the bearer token of an authenticated session. An expired
// token logs the session out.
func (s *Session) Token() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Authenticated || s.token == "" {
		return "", ErrNotAuthenticated
	}
	if !s.expiresAt.IsZero() && !s.expiresAt.After(s.now()) {
		s.resetLocked()
		return "", ErrTokenExpired
	}
	return s.token, nil
}

// Identity returns the current identity; guests get the guest identity
func (s *Session) Identity() Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity
}

// IsGuest reports whether the session has no usable identity
func (s *Session) IsGuest() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state != Authenticated || s.identity.ID == "" || s.identity.ID == GuestID
}

// UpdateIdentity refreshes display data after a session fetch
func (s *Session) UpdateIdentity(fn func(*Identity)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Authenticated {
		fn(&s.identity)
	}
}

// RememberReturnPath stores where to go after a successful login
func (s *Session) RememberReturnPath(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.returnPath = path
}

// TakeReturnPath returns and clears the stored destination, defaulting to "/"
func (s *Session) TakeReturnPath() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.returnPath
	s.returnPath = ""
	if p == "" {
		return "/"
	}
	return p
}
