// Command drawdrill records drawing practice sessions, tracks achievements and
// serves the practice dashboard over HTTP.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/drawdrill/drawdrill/config"
	"github.com/drawdrill/drawdrill/internal/application/ledger"
	"github.com/drawdrill/drawdrill/internal/domain/practice"
	httpapi "github.com/drawdrill/drawdrill/internal/interface/http"
	"github.com/drawdrill/drawdrill/internal/interface/http/handlers"
	"github.com/drawdrill/drawdrill/pkg/logger"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "drawdrill",
		Short:         "Drawing practice ledger and achievement tracker",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file (default $"+config.ConfigPathEnv+")")

	root.AddCommand(newRecordCmd(&configPath))
	root.AddCommand(newSessionsCmd(&configPath))
	root.AddCommand(newStatsCmd(&configPath))
	root.AddCommand(newAchievementsCmd(&configPath))
	root.AddCommand(newTipsCmd(&configPath))
	root.AddCommand(newDemoCmd(&configPath))
	root.AddCommand(newClearCmd(&configPath))
	root.AddCommand(newServeCmd(&configPath))
	return root
}

// ══════════════════════════════════════════════════════════════════════════════
// LEDGER COMMANDS
// ══════════════════════════════════════════════════════════════════════════════

type storageResult struct {
	Persisted bool   `json:"persisted"`
	Error     string `json:"error,omitempty"`
}

func storageOf(out ledger.Outcome) storageResult {
	if out.Persisted() {
		return storageResult{Persisted: true}
	}
	return storageResult{Error: out.StorageErr.Error()}
}

func newRecordCmd(configPath *string) *cobra.Command {
	var (
		sessionType string
		in          practice.SessionInput
		avgError    float64
		duration    float64
	)

	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record a finished practice session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			t, err := practice.ParseSessionType(sessionType)
			if err != nil {
				return err
			}
			in.Type = t
			if cmd.Flags().Changed("avg-error") {
				in.AverageError = practice.Float(avgError)
			}
			if cmd.Flags().Changed("duration") {
				in.Duration = practice.Float(duration)
			}

			a, err := loadApp(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.close()

			session, out := a.ledger.Append(cmd.Context(), in)
			return printJSON(cmd.OutOrStdout(), struct {
				Session  practice.Session       `json:"session"`
				Unlocked []practice.Achievement `json:"unlocked"`
				Storage  storageResult          `json:"storage"`
			}{session, out.Unlocked, storageOf(out)})
		},
	}

	f := cmd.Flags()
	f.StringVar(&sessionType, "type", "", "session type: length|angle|proportion")
	f.IntVar(&in.Score, "score", 0, "points earned")
	f.Float64Var(&in.Accuracy, "accuracy", 0, "accuracy in percent, 0-100")
	f.IntVar(&in.TotalQuestions, "total", 0, "questions asked")
	f.IntVar(&in.CorrectAnswers, "correct", 0, "questions answered correctly")
	f.Float64Var(&avgError, "avg-error", 0, "mean angular error in degrees (angle sessions)")
	f.IntVar(&in.Streak, "streak", 0, "longest run of correct answers")
	f.Float64Var(&duration, "duration", 0, "session length in seconds")
	_ = cmd.MarkFlagRequired("type")

	return cmd
}

func newSessionsCmd(configPath *string) *cobra.Command {
	var recent bool

	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List recorded sessions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.close()

			if recent {
				return printJSON(cmd.OutOrStdout(), a.ledger.RecentSessions())
			}
			return printJSON(cmd.OutOrStdout(), a.ledger.Sessions())
		},
	}
	cmd.Flags().BoolVar(&recent, "recent", false, "only the newest sessions, newest first")
	return cmd
}

func newStatsCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show the practice dashboard",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.close()

			d := a.ledger.Dashboard()
			if !a.cfg.Features.IsEnabled(config.FeatureTips) {
				d.Tips = nil
			}
			return printJSON(cmd.OutOrStdout(), d)
		},
	}
}

func newAchievementsCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "achievements",
		Short: "List achievements and progress",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.close()

			w := cmd.OutOrStdout()
			for _, ach := range a.ledger.Achievements() {
				mark := " "
				if ach.Earned {
					mark = "x"
				}
				_, _ = fmt.Fprintf(w, "[%s] %s %-22s %5.1f%%  %s\n", mark, ach.Icon, ach.Title, ach.Progress, ach.Description)
			}
			return nil
		},
	}
}

func newTipsCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "tips",
		Short: "Show personalized practice tips",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.close()

			if !a.cfg.Features.IsEnabled(config.FeatureTips) {
				return fmt.Errorf("tips are disabled by feature flag %s", config.FeatureTips)
			}

			w := cmd.OutOrStdout()
			for _, tip := range a.ledger.Tips() {
				_, _ = fmt.Fprintf(w, "%s %s: %s\n", tip.Icon, tip.Title, tip.Content)
			}
			return nil
		},
	}
}

func newDemoCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "demo",
		Short: "Replace the history with two weeks of demo sessions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.close()

			if !a.cfg.Features.IsEnabled(config.FeatureDemoData) {
				return fmt.Errorf("demo data is disabled by feature flag %s", config.FeatureDemoData)
			}

			out := a.ledger.GenerateDemoData(cmd.Context())
			return printJSON(cmd.OutOrStdout(), struct {
				TotalSessions int                    `json:"totalSessions"`
				Unlocked      []practice.Achievement `json:"unlocked"`
				Storage       storageResult          `json:"storage"`
			}{a.ledger.Len(), out.Unlocked, storageOf(out)})
		},
	}
}

func newClearCmd(configPath *string) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every session and reset achievements",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return fmt.Errorf("refusing to clear without --yes")
			}

			a, err := loadApp(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.close()

			out := a.ledger.Clear(cmd.Context())
			return printJSON(cmd.OutOrStdout(), storageOf(out))
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm clearing all data")
	return cmd
}

// ══════════════════════════════════════════════════════════════════════════════
// SERVER
// ══════════════════════════════════════════════════════════════════════════════

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.close()

			return serve(a)
		},
	}
}

func serve(a *app) error {
	health := handlers.NewCompositeHealthChecker(a.cfg.App.Version)
	health.SetTimeout(a.cfg.Storage.OpTimeout)
	if p, ok := a.store.(handlers.Pinger); ok {
		health.AddCheck("storage", handlers.NewStorageCheck(p))
	}
	health.AddCheck("persistence", handlers.NewPersistenceCheck(a.ledger))

	httpCfg := httpapi.FromAppConfig(a.cfg.HTTP, a.cfg.App.Version)
	server := httpapi.NewServer(httpCfg, httpapi.Dependencies{
		Ledger:        a.ledger,
		Features:      a.cfg.Features,
		Logger:        a.log,
		HealthChecker: health,
	})

	errCh := server.StartAsync()

	a.log.Info("drawdrill is running",
		logger.String("http_address", httpCfg.Address()),
		logger.Backend(a.cfg.Storage.Backend),
		logger.Count(a.ledger.Len()),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		a.log.Info("received shutdown signal", logger.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			a.log.Error("server error", logger.Err(err))
			return err
		}
		return nil
	}

	a.log.Info("starting graceful shutdown", logger.Duration("timeout", a.cfg.App.ShutdownTimeout))

	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.App.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		a.log.Error("failed to stop HTTP server gracefully", logger.Err(err))
		return err
	}

	a.log.Info("shutdown completed successfully")
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
