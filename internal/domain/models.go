package domain

import (
	"time"
)

// URLResource represents one short link owned by the signed-in user
type URLResource struct {
	ID          int       `json:"id"`
	OriginalURL string    `json:"original_url"`
	ShortURL    string    `json:"short_url"`
	Views       int       `json:"views"`
	ExpiresAt   time.Time `json:"expired_at"`
	IsCustom    bool      `json:"is_custom,omitempty"`
}

// ResourcePage is one page of the user's short links as last fetched from the server
type ResourcePage struct {
	Items      []URLResource
	Page       int
	PageSize   int
	Total      int
	TotalPages int
}

// Session is the client-side authentication triple with its derived state
type Session struct {
	Token           string
	Email           string
	UserID          int
	IsAuthenticated bool
}

// LoginRequest represents the credentials sent to POST /api/auth/login
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterRequest is used by both registration and password reset
type RegisterRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	EmailCode string `json:"email_code"`
}

// AuthResponse is returned by login, register and password reset
type AuthResponse struct {
	AccessToken string `json:"access_token"`
	Email       string `json:"email"`
	UserID      int    `json:"user_id"`
}

// CreateURLRequest represents the request to create a short URL
type CreateURLRequest struct {
	OriginalURL string `json:"original_url"`
	CustomCode  string `json:"custom_code,omitempty"`
	Duration    *int   `json:"duration,omitempty"`
	UserID      int    `json:"user_id"`
}

// CreateURLResponse represents the response when creating a short URL
type CreateURLResponse struct {
	ShortURL string `json:"short_url"`
}

// ListURLsResponse is one page of GET /api/urls
type ListURLsResponse struct {
	Items []URLResource `json:"items"`
	Total int           `json:"total"`
}

// UpdateURLRequest is the body of PATCH /api/url/{code}
type UpdateURLRequest struct {
	ExpiredAt time.Time `json:"expired_at"`
}

// ErrorResponse covers both error body shapes the service uses
type ErrorResponse struct {
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}
