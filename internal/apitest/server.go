// Package apitest runs an in-memory implementation of the shortener's
// /api surface for tests. It issues and verifies real HS256 tokens so the
// console's client-side token handling is exercised end to end.
package apitest

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/joshdurbin/shortlink-console/internal/token"
)

// DefaultCode is the verification code "emailed" to every address
const DefaultCode = "123456"

type user struct {
	id       int
	email    string
	password string
}

type link struct {
	id          int
	code        string
	originalURL string
	ownerID     int
	views       int
	isCustom    bool
	expiresAt   time.Time
}

// RecordedRequest is what the server saw of one request
type RecordedRequest struct {
	Method         string
	Path           string
	Authorization  string
	RequestIDValid bool
}

// Server is a fake shortener API backed by maps
type Server struct {
	// Now is the server clock
	Now func() time.Time
	// TokenTTL is the lifetime of issued tokens
	TokenTTL time.Duration

	mu         sync.Mutex
	secret     []byte
	users      map[string]*user
	codes      map[string]string
	shortCodes codec
	links      []*link
	nextUser   int
	nextLink   int
	failures   []int
	requests   []RecordedRequest

	httpServer *httptest.Server
}

// New starts a fake API on a random local port
func New() *Server {
	s := &Server{
		Now:        time.Now,
		TokenTTL:   time.Hour,
		secret:     []byte("apitest-secret"),
		users:      make(map[string]*user),
		codes:      make(map[string]string),
		shortCodes: newCodec(),
		nextUser:   1,
		nextLink:   1,
	}
	s.httpServer = httptest.NewServer(s.routes())
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(s.record)

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/login", s.handleLogin)
		r.Post("/auth/register", s.handleRegister)
		r.Get("/auth/register/{email}", s.handleSendCode)
		r.Post("/auth/forget", s.handleForget)

		r.Group(func(r chi.Router) {
			r.Use(s.authenticate)
			r.Use(s.injectFailures)
			r.Post("/url", s.handleCreate)
			r.Get("/urls", s.handleList)
			r.Patch("/url/{code}", s.handleUpdate)
			r.Delete("/url/{code}", s.handleDelete)
		})
	})

	r.Get("/{code}", s.handleRedirect)
	return r
}

// URL returns the server's base URL
func (s *Server) URL() string {
	return s.httpServer.URL
}

// Close shuts the server down
func (s *Server) Close() {
	s.httpServer.Close()
}

// AddUser registers an account directly and returns its id
func (s *Server) AddUser(email, password string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addUserLocked(email, password).id
}

func (s *Server) addUserLocked(email, password string) *user {
	u := &user{id: s.nextUser, email: email, password: password}
	s.nextUser++
	s.users[email] = u
	return u
}

// AddLinks creates n links owned by userID, returning their codes in
// creation order
func (s *Server) AddLinks(userID, n int) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	codes := make([]string, 0, n)
	for i := 0; i < n; i++ {
		l := s.addLinkLocked(userID, fmt.Sprintf("https://example.com/%d", s.nextLink), "", 24*time.Hour)
		codes = append(codes, l.code)
	}
	return codes
}

func (s *Server) addLinkLocked(ownerID int, originalURL, customCode string, ttl time.Duration) *link {
	l := &link{
		id:          s.nextLink,
		code:        customCode,
		originalURL: originalURL,
		ownerID:     ownerID,
		isCustom:    customCode != "",
		expiresAt:   s.Now().Add(ttl).UTC().Truncate(time.Second),
	}
	for seed := uint64(l.id); l.code == "" || s.findLocked(l.code) != nil; seed += 1 << 32 {
		l.code = s.shortCodes.encode(seed)
	}
	s.nextLink++
	s.links = append(s.links, l)
	return l
}

// LinkCount returns how many links userID owns
func (s *Server) LinkCount(userID int) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, l := range s.links {
		if l.ownerID == userID {
			n++
		}
	}
	return n
}

// ExpiryOf returns the expiry of the link with code
func (s *Server) ExpiryOf(code string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if l := s.findLocked(code); l != nil {
		return l.expiresAt, true
	}
	return time.Time{}, false
}

// FailNext makes the next n authenticated requests answer with status
func (s *Server) FailNext(n, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := 0; i < n; i++ {
		s.failures = append(s.failures, status)
	}
}

// Requests returns every request seen so far
func (s *Server) Requests() []RecordedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]RecordedRequest(nil), s.requests...)
}

// MintToken issues a signed token for the given identity
func (s *Server) MintToken(email string, userID int, ttl time.Duration) string {
	claims := token.Claims{
		Email:  email,
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(s.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(s.Now()),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		panic(fmt.Sprintf("apitest: failed to sign token: %v", err))
	}
	return signed
}

func (s *Server) findLocked(code string) *link {
	for _, l := range s.links {
		if l.code == code {
			return l
		}
	}
	return nil
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, err := uuid.Parse(r.Header.Get("X-Request-ID"))

		s.mu.Lock()
		s.requests = append(s.requests, RecordedRequest{
			Method:         r.Method,
			Path:           r.URL.Path,
			Authorization:  r.Header.Get("Authorization"),
			RequestIDValid: err == nil,
		})
		s.mu.Unlock()

		next.ServeHTTP(w, r)
	})
}
