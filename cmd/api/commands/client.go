package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/taskmaster/tracker/internal/client"
	"github.com/taskmaster/tracker/internal/client/offline"
	"github.com/taskmaster/tracker/internal/infrastructure/config"
	"github.com/taskmaster/tracker/internal/infrastructure/logger"
)

// clientOptions are the persistent flags of the client command
type clientOptions struct {
	baseURL string
	verbose bool
}

// clientEnv is everything one client invocation needs
type clientEnv struct {
	cfg         *config.Config
	logger      *logger.Logger
	baseURL     string
	sessionPath string
	session     *session
	store       offline.Store
	queue       *offline.Queue
	transport   http.RoundTripper
	api         *client.Client
}

// NewClientCommand creates the command line client
func NewClientCommand() *cobra.Command {
	opts := &clientOptions{}

	clientCmd := &cobra.Command{
		Use:   "client",
		Short: "Talk to a running tracker API",
		Long:  "Command line client. Writes made while the server is unreachable are queued and replayed by 'sync' or 'watch'.",
	}
	clientCmd.PersistentFlags().StringVar(&opts.baseURL, "api-url", "", "API base URL (default from TRACKER_API_URL)")
	clientCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log requests and retries")

	clientCmd.AddCommand(
		newRegisterCommand(opts),
		newLoginCommand(opts),
		newLogoutCommand(opts),
		newTasksCommand(opts),
		newDashboardCommand(opts),
		newSyncCommand(opts),
		newQueueCommand(opts),
		newWatchCommand(opts),
	)
	return clientCmd
}

func newClientEnv(opts *clientOptions) (*clientEnv, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logCfg := config.LoggerConfig{Level: "warn", Format: "console", Output: "stderr"}
	if opts.verbose {
		logCfg.Level = "debug"
	}
	appLogger, err := logger.New(logCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	env := &clientEnv{cfg: cfg, logger: appLogger, transport: http.DefaultTransport}

	env.sessionPath = cfg.Client.SessionPath
	if env.sessionPath == "" {
		if env.sessionPath, err = defaultSessionPath(); err != nil {
			return nil, err
		}
	}
	if env.session, err = loadSession(env.sessionPath); err != nil {
		return nil, err
	}

	env.baseURL = opts.baseURL
	if env.baseURL == "" {
		env.baseURL = env.session.BaseURL
	}
	if env.baseURL == "" {
		env.baseURL = cfg.Client.BaseURL
	}

	queuePath := cfg.Client.QueuePath
	if queuePath == "" {
		if queuePath, err = offline.DefaultQueuePath(); err != nil {
			return nil, err
		}
	}
	store, err := offline.NewSQLiteStore(queuePath)
	if err != nil {
		return nil, err
	}
	env.store = store
	env.queue = offline.NewQueue(store, env.transport, appLogger)

	env.api = client.New(client.Options{
		BaseURL:   env.baseURL,
		Timeout:   cfg.Client.Timeout,
		Transport: offline.NewInterceptor(env.transport, env.queue, appLogger),
		Logger:    appLogger,
	})
	env.api.SetToken(env.session.Token)
	env.api.RestoreLastKnownTasks(loadTasks(env.sessionPath))

	return env, nil
}

// Close persists the last known tasks and releases the queue database
func (e *clientEnv) Close() error {
	if tasks := e.api.LastKnownTasks(); len(tasks) > 0 {
		if err := saveTasks(e.sessionPath, tasks); err != nil {
			e.logger.Warnw("Failed to save task list", "error", err)
		}
	}
	e.logger.Sync()
	return e.store.Close()
}

// authed runs fn and, if the access token was rejected, refreshes it once
// and runs fn again.
func (e *clientEnv) authed(ctx context.Context, fn func() error) error {
	err := fn()
	var apiErr *client.APIError
	if !errors.As(err, &apiErr) || apiErr.Kind != client.KindUnauthorized || apiErr.Queued || e.session.RefreshToken == "" {
		return err
	}

	resp, refreshErr := e.api.Refresh(ctx, e.session.RefreshToken)
	if refreshErr != nil {
		e.logger.Debugw("Token refresh failed", "error", refreshErr)
		return err
	}
	e.session.Token = resp.Token
	e.session.RefreshToken = resp.RefreshToken
	if err := e.session.save(e.sessionPath); err != nil {
		return err
	}
	return fn()
}

// runClient builds the environment, runs fn and turns API errors into
// readable messages.
func runClient(cmd *cobra.Command, opts *clientOptions, fn func(ctx context.Context, env *clientEnv) error) error {
	env, err := newClientEnv(opts)
	if err != nil {
		return err
	}
	defer env.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	err = fn(ctx, env)
	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		env.logger.Debugw("Request failed", "kind", apiErr.Kind, "status", apiErr.Status, "error", apiErr.Message)
		if apiErr.Queued {
			fmt.Fprintln(cmd.ErrOrStderr(), "Saved offline, run 'tracker client sync' once the server is back.")
		}
		return errors.New(client.UserMessage(err))
	}
	return err
}

func newRegisterCommand(opts *clientOptions) *cobra.Command {
	var email, password, name string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and sign in",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClient(cmd, opts, func(ctx context.Context, env *clientEnv) error {
				resp, err := env.api.Register(ctx, registerRequest(email, passwordOrEnv(password), name))
				if err != nil {
					return err
				}
				return env.startSession(cmd.OutOrStdout(), resp.User.Email, resp.Token, resp.RefreshToken)
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Email address")
	cmd.Flags().StringVar(&password, "password", "", "Password (default from TRACKER_PASSWORD)")
	cmd.Flags().StringVar(&name, "name", "", "Display name")
	cmd.MarkFlagRequired("email")
	return cmd
}

func newLoginCommand(opts *clientOptions) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and remember the session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClient(cmd, opts, func(ctx context.Context, env *clientEnv) error {
				resp, err := env.api.Login(ctx, email, passwordOrEnv(password))
				if err != nil {
					return err
				}
				return env.startSession(cmd.OutOrStdout(), resp.User.Email, resp.Token, resp.RefreshToken)
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Email address")
	cmd.Flags().StringVar(&password, "password", "", "Password (default from TRACKER_PASSWORD)")
	cmd.MarkFlagRequired("email")
	return cmd
}

func newLogoutCommand(opts *clientOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Revoke the refresh token and forget the session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClient(cmd, opts, func(ctx context.Context, env *clientEnv) error {
				if env.session.RefreshToken != "" {
					if err := env.api.Logout(ctx, env.session.RefreshToken); err != nil {
						env.logger.Warnw("Server logout failed", "error", err)
					}
				}
				if err := os.Remove(env.sessionPath); err != nil && !errors.Is(err, os.ErrNotExist) {
					return err
				}
				os.Remove(tasksPath(env.sessionPath))
				fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
				return nil
			})
		},
	}
}

func (e *clientEnv) startSession(out io.Writer, email, token, refreshToken string) error {
	e.session = &session{BaseURL: e.baseURL, Email: email, Token: token, RefreshToken: refreshToken}
	if err := e.session.save(e.sessionPath); err != nil {
		return err
	}
	fmt.Fprintf(out, "Signed in as %s\n", email)
	return nil
}

func passwordOrEnv(password string) string {
	if password != "" {
		return password
	}
	return os.Getenv("TRACKER_PASSWORD")
}

func newSyncCommand(opts *clientOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Replay writes queued while offline",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClient(cmd, opts, func(ctx context.Context, env *clientEnv) error {
				result, err := env.queue.Sync(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Replayed %d, failed %d, remaining %d\n", result.Replayed, result.Failed, result.Remaining)
				return nil
			})
		},
	}
}

func newQueueCommand(opts *clientOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "queue",
		Short: "List writes waiting to be replayed",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClient(cmd, opts, func(ctx context.Context, env *clientEnv) error {
				entries, err := env.queue.Pending(ctx)
				if err != nil {
					return err
				}
				if len(entries) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}

				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tQUEUED\tREQUEST\tATTEMPTS\tLAST ERROR")
				for _, e := range entries {
					fmt.Fprintf(tw, "%d\t%s\t%s %s\t%d\t%s\n", e.ID, e.CreatedAt.Local().Format(time.DateTime),
						e.Method, e.URL, e.Attempts, e.LastError)
				}
				return tw.Flush()
			})
		},
	}
}

func newWatchCommand(opts *clientOptions) *cobra.Command {
	var interval time.Duration
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Replay the queue whenever the server comes back",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClient(cmd, opts, func(ctx context.Context, env *clientEnv) error {
				ctx, stop := signalContext(ctx)
				defer stop()

				watcher := offline.NewWatcher(env.baseURL, env.transport, env.queue, env.logger)
				fmt.Fprintf(cmd.OutOrStdout(), "Watching %s every %s\n", env.baseURL, interval)
				watcher.Run(ctx, interval)
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", 15*time.Second, "How often to poll the server")
	return cmd
}

func joinNonEmpty(parts ...string) string {
	var out []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, ", ")
}
