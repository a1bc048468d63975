package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"iqaudit/internal/config"
	"iqaudit/internal/telemetry"
)

var exit = os.Exit

// app carries the state shared by every subcommand of one invocation.
type app struct {
	v       *viper.Viper
	cfgFile string
	logger  *slog.Logger
	closer  io.Closer
}

// reportedError wraps an error the command has already shown to the user.
type reportedError struct {
	err error
}

func (e *reportedError) Error() string { return e.err.Error() }
func (e *reportedError) Unwrap() error { return e.err }

// Execute runs the command line and exits non-zero on failure.
func Execute() {
	if code := execute(newRootCmd()); code != 0 {
		exit(code)
	}
}

func execute(root *cobra.Command) int {
	err := root.Execute()
	if err == nil {
		return 0
	}
	var reported *reportedError
	if !errors.As(err, &reported) {
		fmt.Fprintf(root.ErrOrStderr(), "Error: %v\n", err)
	}
	return 1
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New(), logger: telemetry.Discard()}

	root := &cobra.Command{
		Use:   "iqaudit",
		Short: "Audit project dependencies against a Sonatype IQ server",
		Long: `iqaudit submits the dependency coordinates of a project to a Sonatype IQ
server for policy evaluation, waits for the report and fails the build when
the policy action is Failure.`,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.close()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "config file (default is ./iqaudit.yaml)")
	pf.String("server-url", "", "IQ server base URL")
	pf.String("user", "", "IQ server user name")
	pf.String("token", "", "IQ server token or password")
	pf.StringP("application", "a", "", "public ID of the IQ application")
	pf.String("stage", "develop", "IQ stage to evaluate against")
	pf.String("timeout", "300s", "how long to wait for the policy report")
	pf.String("poll-interval", "1s", "delay between status checks")
	pf.String("source-id", "iqaudit", "source identifier reported to the server")
	pf.String("history-type", "sqlite", "run history backend (sqlite, postgres, none)")
	pf.String("history-dsn", ".iqaudit.db", "SQLite path or Postgres DSN for run history")
	pf.BoolP("debug", "d", false, "enable debug logging")
	pf.String("log-file", "", "also write JSON logs to this file")

	root.AddCommand(newAuditCmd(a), newHistoryCmd(a))
	return root
}

func (a *app) init(cmd *cobra.Command) error {
	if err := config.Load(a.v, a.cfgFile); err != nil {
		return err
	}
	if err := config.BindFlags(a.v, cmd.Flags()); err != nil {
		return err
	}

	logger, closer, err := telemetry.NewLogger(cmd.ErrOrStderr(), a.v.GetBool(config.KeyDebug), a.v.GetString(config.KeyLogFile))
	if err != nil {
		return err
	}
	a.logger, a.closer = logger, closer
	if used := a.v.ConfigFileUsed(); used != "" {
		a.logger.Debug("using config file", "path", used)
	}
	return nil
}

func (a *app) close() error {
	if a.closer == nil {
		return nil
	}
	err := a.closer.Close()
	a.closer = nil
	return err
}
