package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/joshdurbin/shortlink-console/internal/config"
	"github.com/joshdurbin/shortlink-console/internal/gate"
	"github.com/joshdurbin/shortlink-console/internal/logging"
	"github.com/joshdurbin/shortlink-console/internal/metrics"
	"github.com/joshdurbin/shortlink-console/internal/session"
	"github.com/joshdurbin/shortlink-console/internal/storage"
	"github.com/joshdurbin/shortlink-console/internal/storage/memory"
	"github.com/joshdurbin/shortlink-console/internal/storage/sqlite"
	"github.com/joshdurbin/shortlink-console/internal/token"
	"github.com/joshdurbin/shortlink-console/internal/transport/client"
	"github.com/joshdurbin/shortlink-console/internal/transport/console"
	"github.com/joshdurbin/shortlink-console/internal/validation"
)

const (
	loginRoute   = "login"
	landingRoute = "list"
	policyKey    = "policy"
)

// errAlreadySignedIn stops an auth entry command without failing the run
var errAlreadySignedIn = errors.New("already signed in")

var rootCmd = &cobra.Command{
	Use:               "shortctl",
	Short:             "Manage your short links from the terminal",
	Long:              "A console for the URL shortener service: sign in, then create, list, edit and delete your short links",
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

var loginCmd = &cobra.Command{
	Use:         "login",
	Short:       "Sign in",
	Args:        cobra.NoArgs,
	Annotations: entry(),
	RunE:        runLogin,
}

var registerCmd = &cobra.Command{
	Use:         "register",
	Short:       "Create an account with an emailed verification code",
	Args:        cobra.NoArgs,
	Annotations: entry(),
	RunE:        runRegister,
}

var sendCodeCmd = &cobra.Command{
	Use:         "send-code [EMAIL]",
	Short:       "Email a verification code for register or reset-password",
	Args:        cobra.ExactArgs(1),
	Annotations: entry(),
	RunE:        runSendCode,
}

var resetPasswordCmd = &cobra.Command{
	Use:         "reset-password",
	Short:       "Set a new password with an emailed verification code",
	Args:        cobra.NoArgs,
	Annotations: entry(),
	RunE:        runResetPassword,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return app.commands.Logout()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the stored session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return app.commands.Status()
	},
}

var createCmd = &cobra.Command{
	Use:         "create [URL]",
	Short:       "Create a short URL",
	Args:        cobra.ExactArgs(1),
	Annotations: auth(),
	RunE:        runCreate,
}

var listCmd = &cobra.Command{
	Use:         "list",
	Short:       "List your short URLs one page at a time",
	Args:        cobra.NoArgs,
	Annotations: auth(),
	RunE: func(cmd *cobra.Command, args []string) error {
		page, _ := cmd.Flags().GetInt("page")
		return app.commands.List(cmd.Context(), page)
	},
}

var deleteCmd = &cobra.Command{
	Use:         "delete [ID|SHORT_CODE]",
	Short:       "Delete a short URL",
	Args:        cobra.ExactArgs(1),
	Annotations: auth(),
	RunE: func(cmd *cobra.Command, args []string) error {
		page, _ := cmd.Flags().GetInt("page")
		return app.commands.Delete(cmd.Context(), page, args[0])
	},
}

var updateCmd = &cobra.Command{
	Use:   "update [ID|SHORT_CODE] [EXPIRY]",
	Short: "Change when a short URL expires",
	Long: "Change when a short URL expires. EXPIRY is an RFC 3339 time, a local\n" +
		"\"YYYY-MM-DD HH:MM\" time or an offset from now such as +48h.",
	Args:        cobra.MinimumNArgs(2),
	Annotations: auth(),
	RunE: func(cmd *cobra.Command, args []string) error {
		page, _ := cmd.Flags().GetInt("page")
		return app.commands.Update(cmd.Context(), page, args[0], strings.Join(args[1:], " "))
	},
}

var browseCmd = &cobra.Command{
	Use:         "browse",
	Short:       "Page through and edit your short URLs interactively",
	Args:        cobra.NoArgs,
	Annotations: auth(),
	RunE: func(cmd *cobra.Command, args []string) error {
		route := gate.Route{Name: cmd.Name(), Policy: gate.RequiresAuth}
		return app.commands.Browse(cmd.Context(), os.Stdin, app.gate, route)
	},
}

func entry() map[string]string { return map[string]string{policyKey: gate.AuthEntry.String()} }
func auth() map[string]string  { return map[string]string{policyKey: gate.RequiresAuth.String()} }

func policyOf(cmd *cobra.Command) gate.Policy {
	switch cmd.Annotations[policyKey] {
	case gate.RequiresAuth.String():
		return gate.RequiresAuth
	case gate.AuthEntry.String():
		return gate.AuthEntry
	default:
		return gate.Public
	}
}

func init() {
	// Connection and state flags
	rootCmd.PersistentFlags().StringP("server-url", "u", "http://localhost:8080", "Server URL")
	rootCmd.PersistentFlags().String("state", config.DefaultStatePath(), "Session state database path")
	rootCmd.PersistentFlags().Duration("timeout", 30*time.Second, "Request timeout")

	// Logging and metrics flags
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().String("metrics-file", "", "Write Prometheus metrics to this file after each command")

	for _, cmd := range []*cobra.Command{loginCmd, registerCmd, resetPasswordCmd} {
		cmd.Flags().StringP("email", "e", "", "Account email")
		cmd.Flags().StringP("password", "p", "", "Password (prompted when empty)")
	}
	for _, cmd := range []*cobra.Command{registerCmd, resetPasswordCmd} {
		cmd.Flags().StringP("code", "c", "", "Verification code from send-code")
		cmd.Flags().String("confirm", "", "Password confirmation (prompted when empty)")
	}

	createCmd.Flags().StringP("code", "c", "", "Custom short code (4-10 letters or digits)")
	createCmd.Flags().IntP("duration", "d", 0, "Hours until the link expires (1-100, server default when unset)")

	for _, cmd := range []*cobra.Command{listCmd, deleteCmd, updateCmd} {
		cmd.Flags().Int("page", 1, "Page of links to look on")
	}

	rootCmd.AddCommand(
		loginCmd, registerCmd, sendCodeCmd, resetPasswordCmd,
		logoutCmd, statusCmd,
		createCmd, listCmd, deleteCmd, updateCmd, browseCmd,
	)
}

// application holds everything built once per invocation
type application struct {
	cfg      *config.Config
	logger   *zap.Logger
	metrics  *metrics.Metrics
	store    storage.Store
	session  *session.Store
	gate     *gate.Gate
	commands *console.Commands
}

var app *application

func setup(cmd *cobra.Command, args []string) error {
	serverURL, _ := cmd.Flags().GetString("server-url")
	statePath, _ := cmd.Flags().GetString("state")
	timeout, _ := cmd.Flags().GetDuration("timeout")
	verbose, _ := cmd.Flags().GetBool("verbose")
	metricsFile, _ := cmd.Flags().GetString("metrics-file")

	cfg, err := config.FromEnv(serverURL, statePath, timeout, verbose, metricsFile)
	if err != nil {
		return fmt.Errorf("failed to create configuration: %w", err)
	}

	logger, err := logging.New(cfg.Logging.Verbose)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}

	m := metrics.New()

	var kv storage.Store
	store, err := sqlite.Open(cfg.Storage.Path, sqlite.WithLogger(logger), sqlite.WithMetrics(m))
	if err != nil {
		logger.Warn("session state unavailable, falling back to memory",
			zap.String("path", cfg.Storage.Path), zap.Error(err))
		kv = memory.New()
	} else {
		kv = store
	}

	sess := session.New(kv, token.NewValidator(),
		session.WithLogger(logger),
		session.WithChangeHook(m.SessionChanges.Inc),
	)
	sess.Load()

	api := client.NewClient(cfg.API.ServerURL,
		client.WithTokenSource(sess),
		client.WithTimeout(cfg.API.Timeout),
		client.WithLogger(logger),
		client.WithMetrics(m),
	)

	app = &application{
		cfg:     cfg,
		logger:  logger,
		metrics: m,
		store:   kv,
		session: sess,
		gate:    gate.New(sess, loginRoute, landingRoute),
		commands: console.NewCommands(api, sess,
			console.WithLogger(logger),
			console.WithMetrics(m),
		),
	}

	decision := app.gate.Check(gate.Route{Name: cmd.Name(), Policy: policyOf(cmd)})
	logger.Debug("route checked",
		zap.String("route", cmd.Name()),
		zap.Stringer("state", decision.State),
		zap.Bool("allowed", decision.Allowed),
	)
	if decision.Allowed {
		return nil
	}

	if decision.State == gate.Authenticated {
		fmt.Fprintf(os.Stderr, "Already signed in as %s; run `shortctl %s` or `shortctl logout`\n",
			sess.Email(), decision.Redirect)
		return errAlreadySignedIn
	}
	fmt.Fprintf(os.Stderr, "Not signed in; run `shortctl %s`\n", decision.Redirect)
	return fmt.Errorf("%w: not signed in", console.ErrReported)
}

// close writes the metrics file if configured and releases the state store
func (a *application) close() {
	if a == nil {
		return
	}
	if a.cfg.Metrics.File != "" {
		if err := a.metrics.WriteTextfile(a.cfg.Metrics.File); err != nil {
			a.logger.Warn("failed to write metrics", zap.Error(err))
		}
	}
	if err := a.store.Close(); err != nil {
		a.logger.Warn("error closing state store", zap.Error(err))
	}
	_ = a.logger.Sync()
}

var stdin = bufio.NewReader(os.Stdin)

// flagOrPrompt returns the flag value, asking on stderr when it is empty
func flagOrPrompt(cmd *cobra.Command, name, label string) string {
	value, _ := cmd.Flags().GetString(name)
	if value != "" {
		return value
	}
	fmt.Fprintf(os.Stderr, "%s: ", label)
	line, _ := stdin.ReadString('\n')
	return strings.TrimSpace(line)
}

func runLogin(cmd *cobra.Command, args []string) error {
	return app.commands.Login(cmd.Context(), validation.LoginForm{
		Email:    flagOrPrompt(cmd, "email", "Email"),
		Password: flagOrPrompt(cmd, "password", "Password"),
	})
}

func registerForm(cmd *cobra.Command) validation.RegisterForm {
	form := validation.RegisterForm{
		Email:    flagOrPrompt(cmd, "email", "Email"),
		Code:     flagOrPrompt(cmd, "code", "Verification code"),
		Password: flagOrPrompt(cmd, "password", "Password"),
	}
	form.ConfirmPassword = flagOrPrompt(cmd, "confirm", "Confirm password")
	return form
}

func runRegister(cmd *cobra.Command, args []string) error {
	return app.commands.Register(cmd.Context(), registerForm(cmd))
}

func runResetPassword(cmd *cobra.Command, args []string) error {
	return app.commands.ResetPassword(cmd.Context(), registerForm(cmd))
}

func runSendCode(cmd *cobra.Command, args []string) error {
	return app.commands.SendCode(cmd.Context(), validation.SendCodeForm{Email: args[0]})
}

func runCreate(cmd *cobra.Command, args []string) error {
	form := validation.CreateURLForm{OriginalURL: args[0]}
	form.CustomCode, _ = cmd.Flags().GetString("code")
	if cmd.Flags().Changed("duration") {
		duration, _ := cmd.Flags().GetInt("duration")
		form.Duration = &duration
	}
	return app.commands.Create(cmd.Context(), form)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	err := rootCmd.ExecuteContext(ctx)
	app.close()
	stop()

	switch {
	case err == nil, errors.Is(err, errAlreadySignedIn):
		return
	case errors.Is(err, console.ErrReported):
		os.Exit(1)
	default:
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
