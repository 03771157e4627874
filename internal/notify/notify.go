package notify

import (
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"

	"github.com/joshdurbin/shortlink-console/internal/logging"
	"github.com/joshdurbin/shortlink-console/internal/transport/client"
)

// Notifier shows short status messages to the user
type Notifier interface {
	Success(msg string)
	Error(msg string)
}

// Failure reports err through n using the user-facing message for its
// kind. fallback is used for failures that carry no server message.
func Failure(n Notifier, err error, fallback string) {
	if n == nil || err == nil {
		return
	}
	n.Error(client.UserMessage(err, fallback))
}

// Console writes notifications as single lines to an io.Writer
type Console struct {
	mu     sync.Mutex
	out    io.Writer
	logger *zap.Logger
}

// NewConsole creates a console notifier
func NewConsole(out io.Writer, logger *zap.Logger) *Console {
	return &Console{
		out:    out,
		logger: logging.OrNop(logger),
	}
}

// Success prints a success line
func (c *Console) Success(msg string) {
	c.write("✓", msg)
	c.logger.Debug("notification", zap.String("level", "success"), zap.String("message", msg))
}

// Error prints an error line
func (c *Console) Error(msg string) {
	c.write("✗", msg)
	c.logger.Debug("notification", zap.String("level", "error"), zap.String("message", msg))
}

func (c *Console) write(prefix, msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, "%s %s\n", prefix, msg)
}

// Recorder keeps notifications in memory
type Recorder struct {
	mu        sync.Mutex
	Successes []string
	Errors    []string
}

// Success records a success message
func (r *Recorder) Success(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Successes = append(r.Successes, msg)
}

// Error records an error message
func (r *Recorder) Error(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Errors = append(r.Errors, msg)
}

// LastError returns the most recent error message, or ""
func (r *Recorder) LastError() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.Errors) == 0 {
		return ""
	}
	return r.Errors[len(r.Errors)-1]
}

var (
	_ Notifier = (*Console)(nil)
	_ Notifier = (*Recorder)(nil)
)
