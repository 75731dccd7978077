// Package main implements the OAuth 2.0 device flow client
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wrale/oauth2-device-client/internal/deviceflow"
	"github.com/wrale/oauth2-device-client/internal/logging"
	"github.com/wrale/oauth2-device-client/internal/metrics"
	"github.com/wrale/oauth2-device-client/internal/oauth"
	"github.com/wrale/oauth2-device-client/internal/validation"
)

// Version is set by the build process
var Version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "oauth2-device-client",
		Short:        "Authenticate with an OAuth 2.0 provider using the device flow",
		Version:      Version,
		SilenceUsage: true,
	}
	cmd.AddCommand(loginCmd())
	cmd.AddCommand(statusCmd())
	cmd.AddCommand(logoutCmd())
	cmd.AddCommand(serveCmd())
	return cmd
}

// app holds the components shared by every command
type app struct {
	cfg      Config
	log      *zap.Logger
	auth     *deviceflow.Authenticator
	registry *prometheus.Registry
	close    func() error
}

func newApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	log, err := logging.New(cfg.Debug)
	if err != nil {
		return nil, err
	}

	providerCfg, err := cfg.providerConfig()
	if err != nil {
		return nil, err
	}
	provider, err := oauth.NewProvider(providerCfg)
	if err != nil {
		return nil, fmt.Errorf("creating provider: %w", err)
	}

	store, closeStore, err := cfg.newStore()
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	observer := deviceflow.Observers(
		logging.NewObserver(log),
		metrics.NewObserver(registry),
	)

	auth := deviceflow.NewAuthenticator(provider, store, cfg.ClientID,
		deviceflow.WithObserver(observer),
	)

	return &app{
		cfg:      cfg,
		log:      log,
		auth:     auth,
		registry: registry,
		close: func() error {
			_ = log.Sync()
			return closeStore()
		},
	}, nil
}

// withApp builds the app for a command and releases it afterwards
func withApp(fn func(cmd *cobra.Command, a *app) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer func() {
			if err := a.close(); err != nil {
				a.log.Warn("Error closing token store", zap.Error(err))
			}
		}()
		return fn(cmd, a)
	}
}

func loginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Sign in with the device flow",
		RunE: withApp(func(cmd *cobra.Command, a *app) error {
			out := cmd.OutOrStdout()
			outcome, err := a.auth.Login(cmd.Context(), func(start deviceflow.DeviceStart) {
				printInstructions(out, start)
			})
			if err != nil {
				var initErr *deviceflow.InitiationError
				if errors.As(err, &initErr) {
					a.log.Debug("Device authorization failed", zap.Error(initErr.Err))
					return errors.New(initErr.Message)
				}
				return err
			}
			return reportOutcome(out, outcome)
		}),
	}
}

func printInstructions(w io.Writer, start deviceflow.DeviceStart) {
	fmt.Fprintf(w, "To sign in, open %s\n", start.VerificationURI)
	fmt.Fprintf(w, "and enter the code: %s\n", validation.FormatCode(start.UserCode))
	if start.VerificationURIComplete != "" {
		fmt.Fprintf(w, "Or open %s\n", start.VerificationURIComplete)
	}
	fmt.Fprintln(w, "Waiting for authorization... (press Ctrl-C to cancel)")
}

// reportOutcome prints the result of an attempt, returning an error for
// anything but success
func reportOutcome(w io.Writer, outcome deviceflow.Outcome) error {
	if outcome.Succeeded() {
		fmt.Fprintln(w, outcome.Message)
		return nil
	}
	switch outcome.Guidance() {
	case deviceflow.GuidanceReauthenticate:
		fmt.Fprintln(w, "Run login again to get a new code.")
	case deviceflow.GuidanceCheckNetwork:
		fmt.Fprintln(w, "Check your network connection and run login again.")
	case deviceflow.GuidanceWaitAndRetry:
		fmt.Fprintln(w, "Wait a few minutes before running login again.")
	}
	return outcome.Err()
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether a token is stored",
		RunE: withApp(func(cmd *cobra.Command, a *app) error {
			ok, err := a.auth.IsAuthenticated(cmd.Context())
			if err != nil {
				return err
			}
			if ok {
				fmt.Fprintln(cmd.OutOrStdout(), "Signed in")
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "Not signed in")
			}
			return nil
		}),
	}
}

func logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the stored token",
		RunE: withApp(func(cmd *cobra.Command, a *app) error {
			if err := a.auth.SignOut(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
			return nil
		}),
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the authentication status server",
		RunE: withApp(func(cmd *cobra.Command, a *app) error {
			return serve(cmd.Context(), a.cfg, a.auth, a.registry, a.log)
		}),
	}
}
