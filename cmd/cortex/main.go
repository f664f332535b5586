// cortex is the execution core of the agent runtime: it owns the
// persistent graph-memory store, the handler dispatch gate, and the
// periodic trace consolidation job.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"cortex/internal/audit"
	"cortex/internal/config"
	"cortex/internal/consolidation"
	"cortex/internal/dispatch"
	"cortex/internal/logging"
	"cortex/internal/store"
	"cortex/internal/types"
)

var (
	configPath string
	verbose    bool

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "cortex",
	Short: "cortex - agent execution core",
	Long: `cortex is the execution core of an autonomous agent runtime.

It turns action decisions into audited, authorization-gated mutations of
a persistent graph-memory store, advances the task/thought lifecycle,
and periodically compresses raw telemetry spans into durable summary
nodes.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		return logging.Initialize(logging.Options{
			Debug:      verbose || cfg.Logging.DebugMode || cfg.Logging.Level == "debug",
			Categories: cfg.Logging.Categories,
			Dir:        cfg.Logging.Dir,
		})
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Sync()
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the periodic trace consolidation job",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := store.NewLocalStore(cfg.Memory.DatabasePath)
		if err != nil {
			return err
		}
		defer s.Close()

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		job := consolidation.NewJob(s, s, nil,
			cfg.Consolidation.PeriodDuration(), cfg.Consolidation.EdgeWorkers)
		job.Start(ctx)
		logging.Boot("cortex running (db=%s period=%s)", cfg.Memory.DatabasePath, cfg.Consolidation.PeriodDuration())

		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig

		logging.Boot("Shutting down")
		job.Stop()
		return nil
	},
}

var (
	memorizeNode    string
	memorizeTask    string
	memorizeChannel string
	memorizeWA      bool
)

var memorizeCmd = &cobra.Command{
	Use:   "memorize",
	Short: "Dispatch one memorize action against the graph store",
	Long: `memorize runs a single memorize decision through the full dispatch
path: audited, correlation-tracked, and gated by Wise Authority
approval for identity-scope nodes. The node is given as JSON via
--node.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if memorizeNode == "" {
			return fmt.Errorf("--node is required")
		}
		var node map[string]any
		if err := json.Unmarshal([]byte(memorizeNode), &node); err != nil {
			return fmt.Errorf("invalid --node JSON: %w", err)
		}

		s, err := store.NewLocalStore(cfg.Memory.DatabasePath)
		if err != nil {
			return err
		}
		defer s.Close()

		sink, err := audit.NewFileSink(cfg.Audit.Path, nil)
		if err != nil {
			return err
		}
		defer sink.Close()

		ctx := cmd.Context()
		clock := types.SystemClock{}
		now := clock.Now()

		taskID := memorizeTask
		if taskID == "" {
			taskID = uuid.NewString()
			task := &types.Task{
				TaskID:      taskID,
				Description: "memorize via cli",
				Status:      types.TaskActive,
				CreatedAt:   now,
				UpdatedAt:   now,
				Context:     types.TaskContext{ChannelID: memorizeChannel, CorrelationID: uuid.NewString()},
			}
			if err := s.AddTask(ctx, task); err != nil {
				return err
			}
		}

		thought := &types.Thought{
			ThoughtID:    uuid.NewString(),
			SourceTaskID: taskID,
			Content:      "memorize requested via cli",
			Status:       types.ThoughtProcessing,
			CreatedAt:    now,
			UpdatedAt:    now,
			Context: &types.ThoughtContext{
				TaskID:        taskID,
				ChannelID:     memorizeChannel,
				CorrelationID: uuid.NewString(),
			},
		}
		if err := s.AddThought(ctx, thought); err != nil {
			return err
		}

		handler := dispatch.NewMemorizeHandler(dispatch.Deps{
			Memory:       s,
			Thoughts:     s,
			Correlations: s,
			Audit:        sink,
			Clock:        clock,
		})
		result := &types.ActionSelectionResult{
			SelectedAction:   types.ActionMemorize,
			ActionParameters: map[string]any{"node": node},
		}
		dc := types.DispatchContext{
			ChannelID:    memorizeChannel,
			SourceTaskID: taskID,
			WAAuthorized: memorizeWA,
		}

		followUpID, err := handler.Handle(ctx, result, thought, dc)
		if err != nil {
			return err
		}

		followUp, err := s.GetThought(ctx, followUpID)
		if err != nil {
			return err
		}
		fmt.Printf("%s\n", followUp.Content)
		return nil
	},
}

var consolidateStart string

var consolidateCmd = &cobra.Command{
	Use:   "consolidate",
	Short: "Consolidate one telemetry window into a summary node",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := store.NewLocalStore(cfg.Memory.DatabasePath)
		if err != nil {
			return err
		}
		defer s.Close()

		period := cfg.Consolidation.PeriodDuration()
		start := time.Now().UTC().Truncate(period).Add(-period)
		if consolidateStart != "" {
			start, err = time.Parse(time.RFC3339, consolidateStart)
			if err != nil {
				return fmt.Errorf("invalid --start value: %w", err)
			}
		}

		job := consolidation.NewJob(s, s, nil, period, cfg.Consolidation.EdgeWorkers)
		if err := job.RunOnce(cmd.Context(), start); err != nil {
			return err
		}
		fmt.Printf("Consolidated window starting %s into %s\n",
			start.UTC().Truncate(period).Format(time.RFC3339), consolidation.SummaryID(start))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "cortex.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	consolidateCmd.Flags().StringVar(&consolidateStart, "start", "", "window start (RFC3339, defaults to the previous full window)")
	memorizeCmd.Flags().StringVar(&memorizeNode, "node", "", "graph node JSON (id, type, scope, attributes)")
	memorizeCmd.Flags().StringVar(&memorizeTask, "task", "", "existing task id (a new task is created when omitted)")
	memorizeCmd.Flags().StringVar(&memorizeChannel, "channel", "", "originating channel id")
	memorizeCmd.Flags().BoolVar(&memorizeWA, "wa", false, "carry Wise Authority approval for identity-scope nodes")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(consolidateCmd)
	rootCmd.AddCommand(memorizeCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
