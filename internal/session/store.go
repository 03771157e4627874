package session

import (
	"strconv"
	"sync"

	"go.uber.org/zap"

	"github.com/joshdurbin/shortlink-console/internal/domain"
	"github.com/joshdurbin/shortlink-console/internal/logging"
	"github.com/joshdurbin/shortlink-console/internal/storage"
	"github.com/joshdurbin/shortlink-console/internal/token"
)

// Keys under which the session triple is persisted
const (
	KeyToken  = "token"
	KeyEmail  = "email"
	KeyUserID = "user_id"
)

// Store owns the session triple. It is the single authority for mutating
// it; every other component holds a *Store and only reads.
type Store struct {
	mu     sync.RWMutex
	token  string
	email  string
	userID int

	kv        storage.Store
	validator *token.Validator
	logger    *zap.Logger

	listenersMu sync.Mutex
	listeners   map[int]func(domain.Session)
	nextID      int
	onChange    func()
}

// Option configures a Store
type Option func(*Store)

// WithLogger sets the store's logger
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithChangeHook registers fn to run after every mutation, before the
// subscribers; used for metrics
func WithChangeHook(fn func()) Option {
	return func(s *Store) {
		s.onChange = fn
	}
}

// New creates an empty store backed by kv. Call Load to read the persisted
// triple.
func New(kv storage.Store, validator *token.Validator, opts ...Option) *Store {
	s := &Store{
		kv:        kv,
		validator: validator,
		listeners: make(map[int]func(domain.Session)),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.validator == nil {
		s.validator = token.NewValidator()
	}
	s.logger = logging.OrNop(s.logger)
	return s
}

// Load replaces the in-memory triple with the persisted one. A missing or
// unparsable user id loads as 0.
func (s *Store) Load() {
	tok, _ := s.kv.Get(KeyToken)
	email, _ := s.kv.Get(KeyEmail)
	rawID, _ := s.kv.Get(KeyUserID)

	userID, err := strconv.Atoi(rawID)
	if err != nil {
		if rawID != "" {
			s.logger.Debug("ignoring unparsable user id", zap.String("user_id", rawID))
		}
		userID = 0
	}

	s.mu.Lock()
	s.token = tok
	s.email = email
	s.userID = userID
	s.mu.Unlock()
}

// IsAuthenticated derives the authentication state from the current
// triple and the clock. It is never cached.
func (s *Store) IsAuthenticated() bool {
	s.mu.RLock()
	tok, email, userID := s.token, s.email, s.userID
	s.mu.RUnlock()

	return s.derive(tok, email, userID)
}

func (s *Store) derive(tok, email string, userID int) bool {
	return tok != "" && !s.validator.IsExpired(tok) && userID != 0 && email != ""
}

// Snapshot returns a consistent copy of the triple with its derived state
func (s *Store) Snapshot() domain.Session {
	s.mu.RLock()
	tok, email, userID := s.token, s.email, s.userID
	s.mu.RUnlock()

	return domain.Session{
		Token:           tok,
		Email:           email,
		UserID:          userID,
		IsAuthenticated: s.derive(tok, email, userID),
	}
}

// Token returns the current bearer token
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Email returns the current email
func (s *Store) Email() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.email
}

// UserID returns the current user id
func (s *Store) UserID() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userID
}

// SetAuth overwrites the triple and persists it with a single write. The
// write lock is held until the durable store has the new values, so no
// reader sees a partial update.
func (s *Store) SetAuth(tok, email string, userID int) {
	s.mu.Lock()
	s.token = tok
	s.email = email
	s.userID = userID
	s.kv.SetMany(map[string]string{
		KeyToken:  tok,
		KeyEmail:  email,
		KeyUserID: strconv.Itoa(userID),
	})
	s.mu.Unlock()

	s.logger.Debug("session updated", zap.String("email", email), zap.Int("user_id", userID))
	s.notify()
}

// Clear drops the session; equivalent to SetAuth("", "", 0)
func (s *Store) Clear() {
	s.SetAuth("", "", 0)
}

// Subscribe registers fn to be called with a fresh snapshot after every
// mutation. The returned function removes the subscription.
func (s *Store) Subscribe(fn func(domain.Session)) (unsubscribe func()) {
	s.listenersMu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.listenersMu.Unlock()

	return func() {
		s.listenersMu.Lock()
		delete(s.listeners, id)
		s.listenersMu.Unlock()
	}
}

func (s *Store) notify() {
	if s.onChange != nil {
		s.onChange()
	}

	s.listenersMu.Lock()
	fns := make([]func(domain.Session), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.listenersMu.Unlock()

	if len(fns) == 0 {
		return
	}
	snapshot := s.Snapshot()
	for _, fn := range fns {
		fn(snapshot)
	}
}
