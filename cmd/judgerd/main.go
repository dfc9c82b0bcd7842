// Command judgerd is the judging sandbox daemon: it loads a config
// file and a language plugin directory, then serves the Streaming
// Judge Service over gRPC until interrupted. Grounded on
// cmd/apptainer/cli.go + cmd/internal/cli/apptainer.go's cobra root
// command and signal-cancellable context, trimmed to judgerd's single
// subcommand-free entry point.
package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/Eason0729/mdoj/judger/pkg/sylog"
)

// Exit codes per spec §6.
const (
	exitOK             = 0
	exitConfigError    = 1
	exitPluginError    = 2
	exitIsolatorMissing = 3
)

// version is overridable at link time (-ldflags "-X main.version=...");
// left as a placeholder here since this repo has no release pipeline.
var version = "dev"

var configPath string

var rootCmd = &cobra.Command{
	Use:           "judgerd",
	Short:         "judging sandbox daemon",
	Version:       version,
	SilenceErrors: true,
	SilenceUsage:  true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDaemon(cmd.Context())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "/etc/judgerd/judgerd.toml", "path to judgerd's TOML config file")
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	go func() {
		select {
		case <-c:
			sylog.Debugf("judgerd: interrupt received, shutting down")
			cancel()
		case <-ctx.Done():
		}
	}()

	err := rootCmd.ExecuteContext(ctx)
	signal.Stop(c)
	cancel()

	if err == nil {
		os.Exit(exitOK)
	}
	sylog.Errorf("judgerd: %s", err)
	os.Exit(exitCodeFor(err))
}
