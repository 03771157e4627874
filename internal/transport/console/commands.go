// Package console implements the shortctl commands on top of the session,
// the page controller and the API client.
package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/joshdurbin/shortlink-console/internal/controller"
	"github.com/joshdurbin/shortlink-console/internal/domain"
	"github.com/joshdurbin/shortlink-console/internal/metrics"
	"github.com/joshdurbin/shortlink-console/internal/notify"
	"github.com/joshdurbin/shortlink-console/internal/pagination"
	"github.com/joshdurbin/shortlink-console/internal/session"
	"github.com/joshdurbin/shortlink-console/internal/token"
	"github.com/joshdurbin/shortlink-console/internal/validation"
)

// ErrReported marks errors the user has already been notified about
var ErrReported = errors.New("reported")

func reported(err error) error {
	if err == nil || errors.Is(err, ErrReported) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrReported, err)
}

const timeLayout = "2006-01-02 15:04"

// API is the part of the REST client the commands use
type API interface {
	controller.URLService
	ServerURL() string
	Login(ctx context.Context, req domain.LoginRequest) (*domain.AuthResponse, error)
	Register(ctx context.Context, req domain.RegisterRequest) (*domain.AuthResponse, error)
	SendEmailCode(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, req domain.RegisterRequest) (*domain.AuthResponse, error)
	CreateURL(ctx context.Context, req domain.CreateURLRequest) (*domain.CreateURLResponse, error)
}

// Commands provides command-line operations for the console
type Commands struct {
	api      API
	session  *session.Store
	tokens   *token.Validator
	forms    *validation.Validator
	notifier notify.Notifier
	out      io.Writer
	logger   *zap.Logger
	metrics  *metrics.Metrics
	pageSize int
	now      func() time.Time
}

// Option configures Commands
type Option func(*Commands)

// WithOutput sets where tables and prompts are written
func WithOutput(out io.Writer) Option {
	return func(c *Commands) {
		c.out = out
	}
}

// WithNotifier sets the notification sink
func WithNotifier(n notify.Notifier) Option {
	return func(c *Commands) {
		c.notifier = n
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(c *Commands) {
		c.logger = logger
	}
}

// WithMetrics passes collectors on to the page controller
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Commands) {
		c.metrics = m
	}
}

// WithPageSize overrides the list page size
func WithPageSize(size int) Option {
	return func(c *Commands) {
		c.pageSize = size
	}
}

// WithClock sets the clock used for expiry parsing, form checks and
// token status
func WithClock(now func() time.Time) Option {
	return func(c *Commands) {
		c.now = now
	}
}

// NewCommands creates a new Commands instance
func NewCommands(api API, sess *session.Store, opts ...Option) *Commands {
	c := &Commands{
		api:      api,
		session:  sess,
		out:      os.Stdout,
		logger:   zap.NewNop(),
		pageSize: pagination.DefaultPageSize,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.notifier == nil {
		c.notifier = notify.NewConsole(c.out, c.logger)
	}

	c.tokens = token.NewValidator()
	c.tokens.Now = c.now
	c.forms = validation.New()
	c.forms.Now = c.now
	return c
}

// Login signs in and stores the returned session
func (c *Commands) Login(ctx context.Context, form validation.LoginForm) error {
	if err := c.check(&form); err != nil {
		return err
	}

	resp, err := c.api.Login(ctx, domain.LoginRequest{Email: form.Email, Password: form.Password})
	if err != nil {
		notify.Failure(c.notifier, err, "login failed")
		return reported(err)
	}
	return c.signIn(resp)
}

// SendCode asks the service to email a verification code
func (c *Commands) SendCode(ctx context.Context, form validation.SendCodeForm) error {
	if err := c.check(&form); err != nil {
		return err
	}

	if err := c.api.SendEmailCode(ctx, form.Email); err != nil {
		notify.Failure(c.notifier, err, "failed to send verification code")
		return reported(err)
	}
	c.notifier.Success("verification code sent to " + form.Email)
	return nil
}

// Register creates an account and signs in
func (c *Commands) Register(ctx context.Context, form validation.RegisterForm) error {
	if err := c.check(&form); err != nil {
		return err
	}

	resp, err := c.api.Register(ctx, registerRequest(form))
	if err != nil {
		notify.Failure(c.notifier, err, "registration failed")
		return reported(err)
	}
	return c.signIn(resp)
}

// ResetPassword sets a new password and signs in
func (c *Commands) ResetPassword(ctx context.Context, form validation.RegisterForm) error {
	if err := c.check(&form); err != nil {
		return err
	}

	resp, err := c.api.ResetPassword(ctx, registerRequest(form))
	if err != nil {
		notify.Failure(c.notifier, err, "password reset failed")
		return reported(err)
	}
	return c.signIn(resp)
}

// Logout clears the stored session
func (c *Commands) Logout() error {
	c.session.Clear()
	c.notifier.Success("signed out")
	return nil
}

// Status prints the stored session
func (c *Commands) Status() error {
	snap := c.session.Snapshot()
	if !snap.IsAuthenticated {
		fmt.Fprintln(c.out, "Not signed in")
		if snap.Token != "" {
			fmt.Fprintln(c.out, "Stored token is expired or unreadable")
		}
		return nil
	}

	fmt.Fprintf(c.out, "Signed in as: %s\n", snap.Email)
	fmt.Fprintf(c.out, "User ID: %d\n", snap.UserID)
	if exp, err := c.tokens.ExpiresAt(snap.Token); err == nil {
		fmt.Fprintf(c.out, "Token Expires: %s (in %s)\n",
			exp.Local().Format(time.RFC3339), exp.Sub(c.now()).Round(time.Second))
	}
	return nil
}

// Create creates a short URL and displays the result
func (c *Commands) Create(ctx context.Context, form validation.CreateURLForm) error {
	if err := c.check(&form); err != nil {
		return err
	}

	resp, err := c.api.CreateURL(ctx, domain.CreateURLRequest{
		OriginalURL: form.OriginalURL,
		CustomCode:  form.CustomCode,
		Duration:    form.Duration,
		UserID:      c.session.UserID(),
	})
	if err != nil {
		notify.Failure(c.notifier, err, "failed to create short link")
		return reported(err)
	}

	c.notifier.Success("short link created")
	fmt.Fprintf(c.out, "Short URL: %s\n", resp.ShortURL)
	fmt.Fprintf(c.out, "Original URL: %s\n", form.OriginalURL)
	return nil
}

// List displays one page of the user's short links
func (c *Commands) List(ctx context.Context, page int) error {
	ctrl := c.newController()
	if err := ctrl.FetchPage(ctx, max(1, page)); err != nil {
		return reported(err)
	}
	c.printPage(ctrl)
	return nil
}

// Delete removes the link identified by ref, an id on the given page or
// a short code, then shows the refreshed page
func (c *Commands) Delete(ctx context.Context, page int, ref string) error {
	ctrl := c.newController()
	resource, err := c.resolve(ctx, ctrl, page, ref)
	if err != nil {
		return err
	}

	if err := ctrl.Delete(ctx, resource); err != nil {
		return reported(err)
	}
	c.printPage(ctrl)
	return nil
}

// Update sets a new expiry on the link identified by ref
func (c *Commands) Update(ctx context.Context, page int, ref, expiry string) error {
	at, err := ParseExpiry(expiry, c.now())
	if err != nil {
		c.notifier.Error(err.Error())
		return reported(err)
	}
	if err := c.check(&validation.UpdateExpiryForm{ExpiresAt: at}); err != nil {
		return err
	}

	ctrl := c.newController()
	resource, err := c.resolve(ctx, ctrl, page, ref)
	if err != nil {
		return err
	}

	ctrl.BeginEdit(resource)
	if err := ctrl.Update(ctx, resource, at); err != nil {
		return reported(err)
	}
	c.printPage(ctrl)
	return nil
}

func (c *Commands) newController() *controller.PageController {
	return controller.New(c.api, c.notifier,
		controller.WithPageSize(c.pageSize),
		controller.WithLogger(c.logger),
		controller.WithMetrics(c.metrics),
	)
}

// resolve loads page and finds ref on it. A ref that is not on the page
// and is not numeric is taken to be a short code.
func (c *Commands) resolve(ctx context.Context, ctrl *controller.PageController, page int, ref string) (domain.URLResource, error) {
	if err := ctrl.FetchPage(ctx, max(1, page)); err != nil {
		return domain.URLResource{}, reported(err)
	}

	if resource, ok := ctrl.Lookup(ref); ok {
		return resource, nil
	}
	if _, err := strconv.Atoi(ref); err == nil {
		err := fmt.Errorf("no short link with id %s on page %d", ref, ctrl.CurrentPage())
		c.notifier.Error(err.Error())
		return domain.URLResource{}, reported(err)
	}
	return domain.URLResource{ShortURL: c.api.ServerURL() + "/" + ref}, nil
}

func (c *Commands) signIn(resp *domain.AuthResponse) error {
	c.session.SetAuth(resp.AccessToken, resp.Email, resp.UserID)
	if !c.session.IsAuthenticated() {
		c.logger.Warn("service issued a token that is already unusable", zap.String("email", resp.Email))
		err := errors.New("received an expired or unreadable token")
		c.notifier.Error(err.Error())
		return reported(err)
	}
	c.notifier.Success("signed in as " + resp.Email)
	return nil
}

// check validates form and reports each failing field
func (c *Commands) check(form any) error {
	err := c.forms.Validate(form)
	if err == nil {
		return nil
	}

	var invalid *validation.Error
	if errors.As(err, &invalid) {
		names := make([]string, 0, len(invalid.Fields))
		for name := range invalid.Fields {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			c.notifier.Error(name + ": " + invalid.Fields[name])
		}
	} else {
		c.notifier.Error(err.Error())
	}
	return reported(err)
}

func registerRequest(form validation.RegisterForm) domain.RegisterRequest {
	return domain.RegisterRequest{
		Email:     form.Email,
		Password:  form.Password,
		EmailCode: form.Code,
	}
}

// printPage displays the held page in a table format
func (c *Commands) printPage(ctrl *controller.PageController) {
	page := ctrl.Page()

	if len(page.Items) == 0 {
		fmt.Fprintln(c.out, "No short links found")
	} else {
		fmt.Fprintf(c.out, "%-6s %-32s %-40s %-6s %s\n", "ID", "Short URL", "Original URL", "Views", "Expires")
		fmt.Fprintln(c.out, strings.Repeat("-", 104))

		for _, item := range page.Items {
			originalURL := item.OriginalURL
			if len(originalURL) > 40 {
				originalURL = originalURL[:37] + "..."
			}
			expires := item.ExpiresAt.Local().Format(timeLayout)
			if !item.ExpiresAt.After(c.now()) {
				expires += " (expired)"
			}

			fmt.Fprintf(c.out, "%-6d %-32s %-40s %-6d %s\n",
				item.ID,
				item.ShortURL,
				originalURL,
				item.Views,
				expires,
			)
		}
	}

	fmt.Fprintf(c.out, "Page %d of %d (%d links)  %s\n",
		ctrl.CurrentPage(), ctrl.TotalPages(), page.Total, pagination.Render(ctrl.Window()))
}

// ParseExpiry reads an absolute RFC 3339 or "YYYY-MM-DD HH:MM" local time,
// or a "+duration" offset from now such as "+48h"
func ParseExpiry(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if rest, ok := strings.CutPrefix(s, "+"); ok {
		d, err := time.ParseDuration(rest)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid expiry offset %q", s)
		}
		return now.Add(d), nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation(timeLayout, s, time.Local); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid expiry %q: use RFC 3339, %q or +duration", s, timeLayout)
}
