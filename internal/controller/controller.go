package controller

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/joshdurbin/shortlink-console/internal/domain"
	"github.com/joshdurbin/shortlink-console/internal/logging"
	"github.com/joshdurbin/shortlink-console/internal/metrics"
	"github.com/joshdurbin/shortlink-console/internal/notify"
	"github.com/joshdurbin/shortlink-console/internal/pagination"
)

var (
	// ErrInvalidShortURL is returned when a link's short URL has no code segment
	ErrInvalidShortURL = errors.New("short URL has no short code")

	// ErrStaleResponse is returned by a fetch whose response was discarded
	// because a newer fetch had been issued
	ErrStaleResponse = errors.New("stale page response discarded")
)

// Notification texts
const (
	msgFetchFailed  = "failed to load short links"
	msgDeleted      = "short link deleted"
	msgDeleteFailed = "delete failed"
	msgUpdated      = "expiry updated"
	msgUpdateFailed = "update failed"
	msgInvalidLink  = "link has no short code"
)

// URLService is the remote collection the controller pages through
type URLService interface {
	// ListURLs returns items [(page-1)*size, page*size) and the total count
	ListURLs(ctx context.Context, page, size int) (*domain.ListURLsResponse, error)

	// DeleteURL deletes the link identified by shortCode
	DeleteURL(ctx context.Context, shortCode string) error

	// UpdateURLExpiry moves the expiry of the link identified by shortCode
	UpdateURLExpiry(ctx context.Context, shortCode string, expiresAt time.Time) error
}

// PageController keeps one locally held page of the user's links
// consistent with the remote collection
type PageController struct {
	service  URLService
	notifier notify.Notifier
	logger   *zap.Logger
	metrics  *metrics.Metrics
	pageSize int

	mu          sync.Mutex
	currentPage int
	page        domain.ResourcePage
	seq         uint64
	editing     *domain.URLResource
}

// Option configures a PageController
type Option func(*PageController)

// WithPageSize overrides pagination.DefaultPageSize
func WithPageSize(size int) Option {
	return func(c *PageController) {
		if size > 0 {
			c.pageSize = size
		}
	}
}

// WithLogger sets the controller's logger
func WithLogger(logger *zap.Logger) Option {
	return func(c *PageController) {
		c.logger = logger
	}
}

// WithMetrics counts discarded stale responses in m
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *PageController) {
		c.metrics = m
	}
}

// New creates a controller positioned on page 1 with nothing fetched yet
func New(service URLService, notifier notify.Notifier, opts ...Option) *PageController {
	c := &PageController{
		service:     service,
		notifier:    notifier,
		pageSize:    pagination.DefaultPageSize,
		currentPage: 1,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.OrNop(c.logger)
	c.page = domain.ResourcePage{Page: 1, PageSize: c.pageSize}
	return c
}

// PageSize returns the fixed page size
func (c *PageController) PageSize() int {
	return c.pageSize
}

// CurrentPage returns the page last fetched successfully
func (c *PageController) CurrentPage() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentPage
}

// Page returns a copy of the locally held page
func (c *PageController) Page() domain.ResourcePage {
	c.mu.Lock()
	defer c.mu.Unlock()

	page := c.page
	page.Items = append([]domain.URLResource(nil), c.page.Items...)
	return page
}

// TotalPages returns the page count used for display and navigation (at least 1)
func (c *PageController) TotalPages() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return max(1, c.page.TotalPages)
}

// Window returns the page numbers to show for the current page
func (c *PageController) Window() []pagination.Item {
	c.mu.Lock()
	defer c.mu.Unlock()
	return pagination.Window(c.currentPage, max(1, c.page.TotalPages))
}

// FetchPage loads page from the service and, on success, replaces the
// held page wholesale. On failure the held page is untouched and the
// notifier is told. A response is applied only if no newer fetch has been
// issued since; otherwise ErrStaleResponse is returned.
func (c *PageController) FetchPage(ctx context.Context, page int) error {
	c.mu.Lock()
	c.seq++
	seq := c.seq
	c.mu.Unlock()

	resp, err := c.service.ListURLs(ctx, page, c.pageSize)

	c.mu.Lock()
	if seq != c.seq {
		c.mu.Unlock()
		c.logger.Debug("discarding stale page response", zap.Int("page", page), zap.Uint64("seq", seq))
		if c.metrics != nil {
			c.metrics.StaleResponses.Inc()
		}
		return ErrStaleResponse
	}

	if err != nil {
		c.mu.Unlock()
		c.logger.Warn("failed to fetch page", zap.Int("page", page), zap.Error(err))
		notify.Failure(c.notifier, err, msgFetchFailed)
		return fmt.Errorf("failed to fetch page %d: %w", page, err)
	}

	items := resp.Items
	if len(items) > c.pageSize {
		c.logger.Warn("server returned more items than the page size",
			zap.Int("items", len(items)), zap.Int("page_size", c.pageSize))
		items = items[:c.pageSize]
	}

	c.page = domain.ResourcePage{
		Items:      append([]domain.URLResource(nil), items...),
		Page:       page,
		PageSize:   c.pageSize,
		Total:      max(0, resp.Total),
		TotalPages: pagination.TotalPages(resp.Total, c.pageSize),
	}
	c.currentPage = page
	c.mu.Unlock()

	return nil
}

// GoTo fetches page after clamping it to the known page range
func (c *PageController) GoTo(ctx context.Context, page int) error {
	return c.FetchPage(ctx, pagination.Clamp(page, c.TotalPages()))
}

// Next moves one page forward, staying on the last page
func (c *PageController) Next(ctx context.Context) error {
	return c.GoTo(ctx, c.CurrentPage()+1)
}

// Prev moves one page back, staying on page 1
func (c *PageController) Prev(ctx context.Context) error {
	return c.GoTo(ctx, c.CurrentPage()-1)
}

// Refresh refetches the current page
func (c *PageController) Refresh(ctx context.Context) error {
	return c.FetchPage(ctx, c.CurrentPage())
}

// Delete removes resource remotely and refetches the current page. The
// current page is not stepped back when it empties.
func (c *PageController) Delete(ctx context.Context, resource domain.URLResource) error {
	code, err := ShortCode(resource.ShortURL)
	if err != nil {
		c.notify(false, msgInvalidLink)
		return err
	}

	if err := c.service.DeleteURL(ctx, code); err != nil {
		c.logger.Warn("failed to delete link", zap.String("code", code), zap.Error(err))
		notify.Failure(c.notifier, err, msgDeleteFailed)
		return fmt.Errorf("failed to delete %s: %w", code, err)
	}

	c.notify(true, msgDeleted)
	return c.refreshAfterMutation(ctx)
}

// BeginEdit opens the expiry editor for resource
func (c *PageController) BeginEdit(resource domain.URLResource) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.editing = &resource
}

// Editing returns the resource whose editor is open
func (c *PageController) Editing() (domain.URLResource, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.editing == nil {
		return domain.URLResource{}, false
	}
	return *c.editing, true
}

// EditOpen reports whether the expiry editor is open
func (c *PageController) EditOpen() bool {
	_, open := c.Editing()
	return open
}

// CancelEdit closes the expiry editor without saving
func (c *PageController) CancelEdit() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.editing = nil
}

// Update sets a new expiry on resource. On success the editor closes and
// the current page is refetched; on failure the editor stays open.
func (c *PageController) Update(ctx context.Context, resource domain.URLResource, newExpiry time.Time) error {
	code, err := ShortCode(resource.ShortURL)
	if err != nil {
		c.notify(false, msgInvalidLink)
		return err
	}

	if err := c.service.UpdateURLExpiry(ctx, code, newExpiry); err != nil {
		c.logger.Warn("failed to update link", zap.String("code", code), zap.Error(err))
		notify.Failure(c.notifier, err, msgUpdateFailed)
		return fmt.Errorf("failed to update %s: %w", code, err)
	}

	c.notify(true, msgUpdated)
	c.CancelEdit()
	return c.refreshAfterMutation(ctx)
}

// Lookup finds a link on the held page by numeric id or short code. An id
// match anywhere on the page wins over a short code match, since custom
// codes may be all digits.
func (c *PageController) Lookup(ref string) (domain.URLResource, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if id, err := strconv.Atoi(ref); err == nil {
		for _, item := range c.page.Items {
			if item.ID == id {
				return item, true
			}
		}
	}
	for _, item := range c.page.Items {
		if code, err := ShortCode(item.ShortURL); err == nil && code == ref {
			return item, true
		}
	}
	return domain.URLResource{}, false
}

func (c *PageController) refreshAfterMutation(ctx context.Context) error {
	if err := c.Refresh(ctx); err != nil && !errors.Is(err, ErrStaleResponse) {
		return err
	}
	return nil
}

func (c *PageController) notify(success bool, msg string) {
	if c.notifier == nil {
		return
	}
	if success {
		c.notifier.Success(msg)
		return
	}
	c.notifier.Error(msg)
}

// ShortCode extracts the short code, the last non-empty path segment,
// from a short URL
func ShortCode(shortURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(shortURL))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidShortURL, err)
	}

	path := strings.TrimRight(u.Path, "/")
	if i := strings.LastIndex(path, "/"); i >= 0 {
		path = path[i+1:]
	}
	if path == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidShortURL, shortURL)
	}
	return path, nil
}
