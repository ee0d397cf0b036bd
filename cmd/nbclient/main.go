// Command nbclient drives notebook kernel sessions and queries the notebook
// backend from the command line.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func main() {
	os.Exit(submain())
}

func submain() int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	root := newRootCmd(newApp())
	if err := root.ExecuteContext(ctx); err != nil {
		slog.Error("nbclient failed", "error", err)
		return 1
	}
	return 0
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "nbclient",
		Short:         "Notebook kernel client and backend tool",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.String("config", "", "path to config file (env NBCLIENT_CONFIG)")
	flags.String("log-level", "", "log level: debug, info, warn, error")
	flags.String("env-file", ".env", "dotenv file loaded before reading the environment")
	flags.String("environment", "", "deployment environment: local or hosted")
	flags.String("kernel-host", "", "kernel gateway host[:port]")
	flags.String("api-url", "", "notebook backend base URL")
	a.bindFlags(flags)

	root.AddCommand(newRunCmd(a))
	root.AddCommand(newJobsCmd(a))
	root.AddCommand(newSchedulesCmd(a))
	root.AddCommand(newConnectorsCmd(a))
	root.AddCommand(newWatchCmd(a))
	root.AddCommand(newVersionCmd())

	return root
}
