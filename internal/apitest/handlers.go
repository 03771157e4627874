package apitest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"

	"github.com/joshdurbin/shortlink-console/internal/domain"
	"github.com/joshdurbin/shortlink-console/internal/token"
)

type ctxKey struct{}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, domain.ErrorResponse{Message: msg})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, domain.ErrorResponse{Error: msg})
}

func (s *Server) authResponse(u *user) domain.AuthResponse {
	return domain.AuthResponse{
		AccessToken: s.MintToken(u.email, u.id, s.TokenTTL),
		Email:       u.email,
		UserID:      u.id,
	}
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	s.mu.Lock()
	u, ok := s.users[req.Email]
	s.mu.Unlock()
	if !ok || u.password != req.Password {
		writeMessage(w, http.StatusBadRequest, "wrong email or password")
		return
	}

	writeJSON(w, http.StatusOK, s.authResponse(u))
}

func (s *Server) handleSendCode(w http.ResponseWriter, r *http.Request) {
	email := chi.URLParam(r, "email")
	if !strings.Contains(email, "@") {
		writeMessage(w, http.StatusBadRequest, "invalid email")
		return
	}

	s.mu.Lock()
	s.codes[email] = DefaultCode
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, domain.ErrorResponse{Message: "code sent"})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req domain.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[req.Email]; exists {
		writeMessage(w, http.StatusBadRequest, "email already registered")
		return
	}
	if code, ok := s.codes[req.Email]; !ok || code != req.EmailCode {
		writeMessage(w, http.StatusBadRequest, "invalid verification code")
		return
	}
	delete(s.codes, req.Email)

	u := s.addUserLocked(req.Email, req.Password)
	writeJSON(w, http.StatusOK, s.authResponse(u))
}

func (s *Server) handleForget(w http.ResponseWriter, r *http.Request) {
	var req domain.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u, exists := s.users[req.Email]
	if !exists {
		writeMessage(w, http.StatusBadRequest, "email not registered")
		return
	}
	if code, ok := s.codes[req.Email]; !ok || code != req.EmailCode {
		writeMessage(w, http.StatusBadRequest, "invalid verification code")
		return
	}
	delete(s.codes, req.Email)

	u.password = req.Password
	writeJSON(w, http.StatusOK, s.authResponse(u))
}

// authenticate verifies the bearer token and stores its claims in the context
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || raw == "" {
			writeMessage(w, http.StatusUnauthorized, "missing token")
			return
		}

		claims := &token.Claims{}
		_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("unexpected signing method")
			}
			return s.secret, nil
		}, jwt.WithTimeFunc(s.Now))
		if err != nil {
			writeMessage(w, http.StatusUnauthorized, "invalid token")
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, claims)))
	})
}

func (s *Server) injectFailures(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		status := 0
		if len(s.failures) > 0 {
			status = s.failures[0]
			s.failures = s.failures[1:]
		}
		s.mu.Unlock()

		if status != 0 {
			writeError(w, status, "injected failure")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func claimsFrom(r *http.Request) *token.Claims {
	claims, _ := r.Context().Value(ctxKey{}).(*token.Claims)
	return claims
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateURLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.OriginalURL == "" {
		writeError(w, http.StatusBadRequest, "original_url is required")
		return
	}

	claims := claimsFrom(r)
	if req.UserID != claims.UserID {
		writeError(w, http.StatusForbidden, "user mismatch")
		return
	}

	hours := 24
	if req.Duration != nil {
		hours = *req.Duration
	}

	s.mu.Lock()
	if req.CustomCode != "" && s.findLocked(req.CustomCode) != nil {
		s.mu.Unlock()
		writeError(w, http.StatusConflict, "short code already taken")
		return
	}
	l := s.addLinkLocked(claims.UserID, req.OriginalURL, req.CustomCode, time.Duration(hours)*time.Hour)
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, domain.CreateURLResponse{ShortURL: s.URL() + "/" + l.code})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		writeError(w, http.StatusBadRequest, "invalid page")
		return
	}
	size, err := strconv.Atoi(r.URL.Query().Get("size"))
	if err != nil || size < 1 {
		writeError(w, http.StatusBadRequest, "invalid size")
		return
	}

	claims := claimsFrom(r)

	s.mu.Lock()
	var owned []*link
	for _, l := range s.links {
		if l.ownerID == claims.UserID {
			owned = append(owned, l)
		}
	}
	s.mu.Unlock()

	sort.Slice(owned, func(i, j int) bool { return owned[i].id > owned[j].id })

	items := []domain.URLResource{}
	start := (page - 1) * size
	for i := start; i < len(owned) && i < start+size; i++ {
		l := owned[i]
		items = append(items, domain.URLResource{
			ID:          l.id,
			OriginalURL: l.originalURL,
			ShortURL:    s.URL() + "/" + l.code,
			Views:       l.views,
			ExpiresAt:   l.expiresAt,
			IsCustom:    l.isCustom,
		})
	}

	writeJSON(w, http.StatusOK, domain.ListURLsResponse{Items: items, Total: len(owned)})
}

func (s *Server) ownedLink(w http.ResponseWriter, r *http.Request) *link {
	code := chi.URLParam(r, "code")
	l := s.findLocked(code)
	if l == nil || l.ownerID != claimsFrom(r).UserID {
		writeError(w, http.StatusNotFound, "short link not found")
		return nil
	}
	return l
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var req domain.UpdateURLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	l := s.ownedLink(w, r)
	if l == nil {
		return
	}
	if !req.ExpiredAt.After(s.Now()) {
		writeError(w, http.StatusBadRequest, "expiry must be in the future")
		return
	}

	l.expiresAt = req.ExpiredAt.UTC()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l := s.ownedLink(w, r)
	if l == nil {
		return
	}

	for i, candidate := range s.links {
		if candidate == l {
			s.links = append(s.links[:i], s.links[i+1:]...)
			break
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRedirect(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	l := s.findLocked(chi.URLParam(r, "code"))
	if l != nil && l.expiresAt.After(s.Now()) {
		l.views++
	} else {
		l = nil
	}
	s.mu.Unlock()

	if l == nil {
		http.NotFound(w, r)
		return
	}
	http.Redirect(w, r, l.originalURL, http.StatusFound)
}
