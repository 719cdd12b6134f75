package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Rajarajeshwaripandikumar/Rent-a-Ride-Frontend-sub000/internal/config"
	"github.com/Rajarajeshwaripandikumar/Rent-a-Ride-Frontend-sub000/internal/logger"
)

// Build information. Populated at build-time.
var (
	version   = ""
	commit    = ""
	treeState = ""
	date      = ""
	builtBy   = ""
)

type globalFlags struct {
	configPath string
	baseURL    string
	token      string
	logLevel   string
}

// run executes the command line and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		printError(stderr, err)
		return 1
	}
	return 0
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	flags := &globalFlags{}
	var a *app

	root := &cobra.Command{
		Use:           "rentctl",
		Short:         "Rent-a-Ride admin list client",
		Long:          "List, filter, sort and update Rent-a-Ride vehicles, bookings, users, vendors and employees.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			log, err := logger.New(&logger.Config{
				Level:  cfg.Log.Level,
				Format: cfg.Log.Format,
				Output: cfg.Log.Output,
			})
			if err != nil {
				return fmt.Errorf("creating logger: %w", err)
			}
			cmd.SetContext(logger.WithContext(cmd.Context(), log.With(zap.String("command", cmd.Name()))))
			a, err = newApp(cfg, log)
			return err
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a != nil {
				_ = a.logger.Sync()
			}
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	pf := root.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "path to the YAML configuration file")
	pf.StringVar(&flags.baseURL, "base-url", "", "backend origin, overrides target.base_url")
	pf.StringVar(&flags.token, "token", "", "bearer token, overrides auth.token")
	pf.StringVar(&flags.logLevel, "log-level", "", "log level: debug, info, warn or error")

	appFn := func() *app { return a }
	root.AddCommand(
		newListCmd(appFn),
		newDeleteCmd(appFn),
		newSetStatusCmd(appFn),
		newWatchCmd(appFn),
		newNotifyCmd(appFn),
		newVersionCmd(),
	)
	return root
}

// loadConfig reads the configuration and applies command line overrides.
func loadConfig(flags *globalFlags) (*config.Config, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, err
	}
	if flags.baseURL != "" {
		cfg.Target.BaseURL = flags.baseURL
	}
	if flags.token != "" {
		cfg.Auth.Token = flags.token
	}
	if flags.logLevel != "" {
		cfg.Log.Level = flags.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var (
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true)
	detailStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")).Italic(true)
)

// commandError carries a user-facing message and the underlying cause.
type commandError struct {
	message string
	err     error
}

func (e *commandError) Error() string {
	if e.err == nil {
		return e.message
	}
	return e.message + ": " + e.err.Error()
}

func (e *commandError) Unwrap() error { return e.err }

func printError(w io.Writer, err error) {
	var cmdErr *commandError
	if errors.As(err, &cmdErr) {
		fmt.Fprintln(w, errorStyle.Render("error: "+cmdErr.message))
		if cmdErr.err != nil {
			fmt.Fprintln(w, detailStyle.Render("details: "+cmdErr.err.Error()))
		}
		return
	}
	fmt.Fprintln(w, errorStyle.Render("error: "+err.Error()))
}
