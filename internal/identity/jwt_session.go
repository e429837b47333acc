package identity

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/MKhiriev/tabsync/internal/logger"
	"github.com/MKhiriev/tabsync/internal/utils"
	"github.com/MKhiriev/tabsync/models"
	"github.com/golang-jwt/jwt/v5"
)

// JWTSession is a [Provider] whose identity is set by logging in with a
// signed JWT. The token subject is the user id.
type JWTSession struct {
	signKey string
	issuer  string

	// transitionMu orders transitions so listeners observe them in the
	// order they happened.
	transitionMu sync.Mutex

	mu        sync.Mutex
	current   models.Identity
	listeners map[uint64]Listener
	order     []uint64
	nextID    uint64

	logger *logger.Logger
}

// NewJWTSession creates an unauthenticated session verifying tokens with
// signKey and issuer.
func NewJWTSession(signKey, issuer string, log *logger.Logger) (*JWTSession, error) {
	if signKey == "" {
		return nil, ErrNoSignKey
	}
	return &JWTSession{
		signKey:   signKey,
		issuer:    issuer,
		listeners: make(map[uint64]Listener),
		logger:    log.Component("identity"),
	}, nil
}

// Current implements [Provider].
func (s *JWTSession) Current() models.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// OnChange implements [Provider]. Listeners run in registration order on the
// goroutine that caused the transition.
func (s *JWTSession) OnChange(listener Listener) (unsubscribe func()) {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.listeners[id] = listener
	s.order = append(s.order, id)
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

// Login verifies tokenString and makes its subject the current user. Logging
// in as the user that is already current does not notify listeners.
func (s *JWTSession) Login(tokenString string) (models.Identity, error) {
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return models.Identity{}, ErrEmptyToken
	}

	userID, err := utils.ValidateAndParseJWTToken(tokenString, s.signKey, s.issuer)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return models.Identity{}, ErrTokenIsExpired
		}
		return models.Identity{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if userID == "" {
		return models.Identity{}, ErrNoSubject
	}

	next := models.Identity{UserID: userID, Authenticated: true}
	prev := s.set(next)

	s.logger.Info().
		Str("user_id", userID).
		Str("previous_user_id", prev.UserID).
		Msg("logged in")

	return next, nil
}

// Logout clears the current identity.
func (s *JWTSession) Logout() {
	prev := s.set(models.Identity{})
	if prev.Authenticated {
		s.logger.Info().Str("user_id", prev.UserID).Msg("logged out")
	}
}

// set replaces the identity and notifies listeners when it changed.
func (s *JWTSession) set(next models.Identity) (prev models.Identity) {
	s.transitionMu.Lock()
	defer s.transitionMu.Unlock()

	s.mu.Lock()
	prev = s.current
	if prev == next {
		s.mu.Unlock()
		return prev
	}
	s.current = next
	listeners := s.snapshotLocked()
	s.mu.Unlock()

	for _, listener := range listeners {
		listener(next)
	}
	return prev
}

func (s *JWTSession) snapshotLocked() []Listener {
	live := s.order[:0]
	listeners := make([]Listener, 0, len(s.listeners))
	for _, id := range s.order {
		if l, ok := s.listeners[id]; ok {
			live = append(live, id)
			listeners = append(listeners, l)
		}
	}
	s.order = live
	return listeners
}

// Static is a [Provider] with a fixed identity. It never changes, so its
// listeners are never called.
type Static struct {
	identity models.Identity
}

// NewStatic returns a provider authenticated as userID, or unauthenticated
// when userID is empty.
func NewStatic(userID string) *Static {
	return &Static{identity: models.Identity{UserID: userID, Authenticated: userID != ""}}
}

func (s *Static) Current() models.Identity {
	return s.identity
}

func (s *Static) OnChange(Listener) func() {
	return func() {}
}
