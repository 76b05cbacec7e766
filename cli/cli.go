package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/zazzle-agent/taskwatch/guard"
	"github.com/zazzle-agent/taskwatch/internals/cliutil"
	"github.com/zazzle-agent/taskwatch/internals/logging"
	"github.com/zazzle-agent/taskwatch/internals/schemas"
	"github.com/zazzle-agent/taskwatch/internals/timeouts"
	"github.com/zazzle-agent/taskwatch/sdk"
	"github.com/zazzle-agent/taskwatch/stubd"
	"github.com/zazzle-agent/taskwatch/tui"
	"github.com/zazzle-agent/taskwatch/watcher"
)

var (
	flagBaseURL string
	flagDryRun  bool
)

func newClient() *sdk.Client {
	var opts []sdk.Option
	if flagBaseURL != "" {
		opts = append(opts, sdk.WithBaseURL(flagBaseURL))
	}
	return sdk.NewClient(opts...)
}

func Execute() {
	root := &cobra.Command{
		Use:           "taskwatch",
		Short:         "Live dashboard for Zazzle Agent pipeline tasks",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flagBaseURL, "base-url", "", "backend base URL (defaults to TASKWATCH_BASE_URL)")

	root.AddCommand(newWatchCmd())
	root.AddCommand(newTasksCmd())
	root.AddCommand(newProductsCmd())
	root.AddCommand(newPublishCmd())
	root.AddCommand(newCommissionCmd())
	root.AddCommand(newStubdCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// waitForBackend gives a freshly started backend a moment to come up before
// long-lived commands dial it.
func waitForBackend(client *sdk.Client, logger *slog.Logger) error {
	if sdk.IsRunning(client.BaseURL()) {
		return nil
	}
	logger.Info("Backend not reachable yet, waiting", "base_url", client.BaseURL())
	if !sdk.WaitForStart(client.BaseURL(), logger) {
		return fmt.Errorf("backend at %s is not reachable", client.BaseURL())
	}
	return nil
}

func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Open the live task dashboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := logging.New(os.Stderr, slog.LevelWarn)
			client := newClient()
			if err := waitForBackend(client, logger); err != nil {
				return err
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			watch := watcher.New(watcher.Config{Client: client, Logger: logger})
			go func() {
				_ = watch.Run(ctx)
			}()

			pub := guard.New(client)
			return tui.Run(watch, pub, flagDryRun)
		},
	}
	cmd.Flags().BoolVar(&flagDryRun, "dry-run", true, "publish in dry-run mode")
	return cmd
}

func newTasksCmd() *cobra.Command {
	tasksCmd := &cobra.Command{
		Use:   "tasks",
		Short: "Inspect and cancel pipeline tasks",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "Print the current task snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeouts.SecondDefault)
			defer cancel()
			tasks, err := newClient().Tasks(ctx)
			if err != nil {
				return err
			}
			cliutil.PrintTasks(tasks)
			return nil
		},
	}

	var flagTaskType string
	cancelCmd := &cobra.Command{
		Use:   "cancel <task_id>",
		Short: "Cancel a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeouts.SecondDefault)
			defer cancel()
			if err := newClient().CancelTask(ctx, args[0], flagTaskType); err != nil {
				return err
			}
			fmt.Println("cancelled", args[0])
			return nil
		},
	}
	cancelCmd.Flags().StringVar(&flagTaskType, "type", "", "task type hint forwarded to the backend")

	tasksCmd.AddCommand(listCmd)
	tasksCmd.AddCommand(cancelCmd)
	return tasksCmd
}

func newProductsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "products",
		Short: "Print the generated product list",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeouts.SecondDefault)
			defer cancel()
			products, err := newClient().Products(ctx)
			if err != nil {
				return err
			}
			cliutil.PrintProducts(products)
			return nil
		},
	}
}

func newPublishCmd() *cobra.Command {
	var flagMode string
	var flagSubreddit string
	cmd := &cobra.Command{
		Use:   "publish <product_id>",
		Short: "Publish a product to Reddit (at most once per product and mode)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var mode schemas.InteractionMode
			if errs := schemas.InteractionModeSchema.Parse(flagMode, &mode); errs != nil {
				return fmt.Errorf("invalid mode %q: must be comment or post", flagMode)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeouts.SecondLong)
			defer cancel()

			pub := guard.New(newClient())
			record, err := pub.Submit(ctx, args[0], mode, sdk.SubmitOptions{
				DryRun:    flagDryRun,
				Subreddit: flagSubreddit,
			})
			if err != nil {
				return err
			}
			cliutil.PrintInteraction(record)
			return nil
		},
	}
	cmd.Flags().StringVar(&flagMode, "mode", "comment", "interaction mode: comment or post")
	cmd.Flags().StringVar(&flagSubreddit, "subreddit", "", "target subreddit")
	cmd.Flags().BoolVar(&flagDryRun, "dry-run", true, "do not actually post to Reddit")
	return cmd
}

func newCommissionCmd() *cobra.Command {
	var flagDonationID int64
	cmd := &cobra.Command{
		Use:   "commission",
		Short: "Commission a product generation task (stubd only)",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := logging.New(os.Stderr, slog.LevelInfo)
			client := newClient()
			if err := waitForBackend(client, logger); err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeouts.SecondDefault)
			defer cancel()
			task, err := client.Commission(ctx, flagDonationID)
			if err != nil {
				return err
			}
			fmt.Println("task:", task.TaskID)
			return nil
		},
	}
	cmd.Flags().Int64Var(&flagDonationID, "donation-id", 0, "donation to attribute the product to")
	return cmd
}

func newStubdCmd() *cobra.Command {
	var flagStepInterval time.Duration
	var flagPersistLag time.Duration
	var flagDataDir string
	cmd := &cobra.Command{
		Use:   "stubd",
		Short: "Run the development backend emulator",
		RunE: func(cmd *cobra.Command, args []string) error {
			dataDir, err := stubd.ResolveDataDir(flagDataDir)
			if err != nil {
				return err
			}
			logger, logFile := logging.NewWithFile(dataDir, slog.LevelDebug)
			defer logFile.Close()

			server, err := stubd.New(stubd.Config{
				Logger:       logger,
				DataDir:      dataDir,
				StepInterval: flagStepInterval,
				PersistLag:   flagPersistLag,
			})
			if err != nil {
				return err
			}

			errCh := make(chan error, 1)
			go func() {
				errCh <- server.Start()
			}()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

			select {
			case err := <-errCh:
				return err
			case <-sigCh:
				logger.Info("Shutting down")
				ctx, cancel := context.WithTimeout(context.Background(), timeouts.SecondShort)
				defer cancel()
				return server.Shutdown(ctx)
			}
		},
	}
	cmd.Flags().DurationVar(&flagStepInterval, "step-interval", 2*time.Second, "delay between simulated pipeline stages")
	cmd.Flags().DurationVar(&flagPersistLag, "persist-lag", 500*time.Millisecond, "delay between completion and product persistence")
	cmd.Flags().StringVar(&flagDataDir, "data-dir", "", "directory for the stubd database")
	return cmd
}
