package apitest

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshdurbin/shortlink-console/internal/domain"
)

func send(t *testing.T, method, url, tok string, body any) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestServer_Login(t *testing.T) {
	srv := New()
	defer srv.Close()
	id := srv.AddUser("a@example.com", "Passw0rd")

	tests := []struct {
		name           string
		req            domain.LoginRequest
		expectedStatus int
	}{
		{"valid credentials", domain.LoginRequest{Email: "a@example.com", Password: "Passw0rd"}, http.StatusOK},
		{"wrong password", domain.LoginRequest{Email: "a@example.com", Password: "nope"}, http.StatusBadRequest},
		{"unknown user", domain.LoginRequest{Email: "b@example.com", Password: "Passw0rd"}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := send(t, http.MethodPost, srv.URL()+"/api/auth/login", "", tt.req)
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)

			if tt.expectedStatus == http.StatusOK {
				var auth domain.AuthResponse
				require.NoError(t, json.NewDecoder(resp.Body).Decode(&auth))
				assert.Equal(t, id, auth.UserID)
				assert.NotEmpty(t, auth.AccessToken)
			} else {
				var body domain.ErrorResponse
				require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
				assert.NotEmpty(t, body.Message)
			}
		})
	}
}

func TestServer_RegisterRequiresCode(t *testing.T) {
	srv := New()
	defer srv.Close()

	req := domain.RegisterRequest{Email: "new@example.com", Password: "Passw0rd", EmailCode: DefaultCode}

	resp := send(t, http.MethodPost, srv.URL()+"/api/auth/register", "", req)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = send(t, http.MethodGet, srv.URL()+"/api/auth/register/new@example.com", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = send(t, http.MethodPost, srv.URL()+"/api/auth/register", "", req)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = send(t, http.MethodPost, srv.URL()+"/api/auth/register", "", req)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServer_ProtectedRoutesRequireToken(t *testing.T) {
	srv := New()
	defer srv.Close()
	id := srv.AddUser("a@example.com", "Passw0rd")

	t.Run("missing token", func(t *testing.T) {
		resp := send(t, http.MethodGet, srv.URL()+"/api/urls?page=1&size=10", "", nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("expired token", func(t *testing.T) {
		tok := srv.MintToken("a@example.com", id, -time.Minute)
		resp := send(t, http.MethodGet, srv.URL()+"/api/urls?page=1&size=10", tok, nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("valid token", func(t *testing.T) {
		tok := srv.MintToken("a@example.com", id, time.Minute)
		resp := send(t, http.MethodGet, srv.URL()+"/api/urls?page=1&size=10", tok, nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})
}

func TestServer_ListPaginates(t *testing.T) {
	srv := New()
	defer srv.Close()
	id := srv.AddUser("a@example.com", "Passw0rd")
	other := srv.AddUser("b@example.com", "Passw0rd")
	srv.AddLinks(id, 25)
	srv.AddLinks(other, 3)
	tok := srv.MintToken("a@example.com", id, time.Minute)

	tests := []struct {
		page          int
		expectedItems int
	}{
		{1, 10},
		{2, 10},
		{3, 5},
		{4, 0},
	}

	for _, tt := range tests {
		resp := send(t, http.MethodGet, srv.URL()+"/api/urls?size=10&page="+strconv.Itoa(tt.page), tok, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var list domain.ListURLsResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
		assert.Equal(t, 25, list.Total)
		assert.Len(t, list.Items, tt.expectedItems, "page %d", tt.page)
	}
}

func TestServer_CreateUpdateDelete(t *testing.T) {
	srv := New()
	defer srv.Close()
	id := srv.AddUser("a@example.com", "Passw0rd")
	tok := srv.MintToken("a@example.com", id, time.Minute)

	duration := 2
	resp := send(t, http.MethodPost, srv.URL()+"/api/url", tok, domain.CreateURLRequest{
		OriginalURL: "https://example.com/long",
		CustomCode:  "mine",
		Duration:    &duration,
		UserID:      id,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created domain.CreateURLResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	assert.Equal(t, srv.URL()+"/mine", created.ShortURL)

	resp = send(t, http.MethodPost, srv.URL()+"/api/url", tok, domain.CreateURLRequest{
		OriginalURL: "https://example.com/other",
		CustomCode:  "mine",
		UserID:      id,
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	newExpiry := time.Now().Add(72 * time.Hour).UTC().Truncate(time.Second)
	resp = send(t, http.MethodPatch, srv.URL()+"/api/url/mine", tok, domain.UpdateURLRequest{ExpiredAt: newExpiry})
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	got, ok := srv.ExpiryOf("mine")
	require.True(t, ok)
	assert.True(t, newExpiry.Equal(got))

	resp = send(t, http.MethodPatch, srv.URL()+"/api/url/mine", tok, domain.UpdateURLRequest{ExpiredAt: time.Now().Add(-time.Hour)})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = send(t, http.MethodDelete, srv.URL()+"/api/url/mine", tok, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, 0, srv.LinkCount(id))

	resp = send(t, http.MethodDelete, srv.URL()+"/api/url/mine", tok, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_DeleteForeignLink(t *testing.T) {
	srv := New()
	defer srv.Close()
	owner := srv.AddUser("a@example.com", "Passw0rd")
	intruder := srv.AddUser("b@example.com", "Passw0rd")
	codes := srv.AddLinks(owner, 1)

	tok := srv.MintToken("b@example.com", intruder, time.Minute)
	resp := send(t, http.MethodDelete, srv.URL()+"/api/url/"+codes[0], tok, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, 1, srv.LinkCount(owner))
}

func TestServer_FailNext(t *testing.T) {
	srv := New()
	defer srv.Close()
	id := srv.AddUser("a@example.com", "Passw0rd")
	tok := srv.MintToken("a@example.com", id, time.Minute)

	srv.FailNext(1, http.StatusInternalServerError)

	resp := send(t, http.MethodGet, srv.URL()+"/api/urls?page=1&size=10", tok, nil)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	var body domain.ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "injected failure", body.Error)

	resp = send(t, http.MethodGet, srv.URL()+"/api/urls?page=1&size=10", tok, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServer_RecordsRequests(t *testing.T) {
	srv := New()
	defer srv.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL()+"/api/auth/register/a@example.com", nil)
	require.NoError(t, err)
	req.Header.Set("X-Request-ID", "not-a-uuid")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	reqs := srv.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, http.MethodGet, reqs[0].Method)
	assert.False(t, reqs[0].RequestIDValid)
}

func TestServer_RedirectCountsViews(t *testing.T) {
	srv := New()
	defer srv.Close()
	id := srv.AddUser("a@example.com", "Passw0rd")
	codes := srv.AddLinks(id, 1)

	httpClient := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}}
	resp, err := httpClient.Get(srv.URL() + "/" + codes[0])
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusFound, resp.StatusCode)

	tok := srv.MintToken("a@example.com", id, time.Minute)
	list := send(t, http.MethodGet, srv.URL()+"/api/urls?page=1&size=10", tok, nil)
	var page domain.ListURLsResponse
	require.NoError(t, json.NewDecoder(list.Body).Decode(&page))
	require.Len(t, page.Items, 1)
	assert.Equal(t, 1, page.Items[0].Views)
}
