/*
main.go - Application entry point

PURPOSE:
  Starts the leave engine server and exposes the operational commands
  (accrual runs, year-close, seeding) as subcommands so ops scripts
  don't need a running server plus curl.

COMMANDS:
  serve               Run the HTTP server with graceful shutdown
  accrue              Run accrual for --month YYYY-MM or --year YYYY
  year-close          Run year-close for --year YYYY
  seed                Load roles, demo org, holidays, default policy

GLOBAL FLAGS:
  --config   TOML config file path (env vars override, see config/)

GRACEFUL SHUTDOWN (serve):
  On SIGINT/SIGTERM:
  1. Stop the accrual scheduler
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection
  5. Exit

EXAMPLES:
  ./server serve --config ./leave.toml
  ./server accrue --month 2025-07
  ./server year-close --year 2024
  ./server seed --year 2025

SEE ALSO:
  - config/config.go: Configuration loading
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/warp/leave-engine/api"
	"github.com/warp/leave-engine/config"
	"github.com/warp/leave-engine/engine"
	"github.com/warp/leave-engine/store/sqlite"
)

func main() {
	var configPath string

	root := &cobra.Command{
		Use:           "server",
		Short:         "Leave and attendance balance engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "TOML config file path")

	root.AddCommand(
		serveCmd(&configPath),
		accrueCmd(&configPath),
		yearCloseCmd(&configPath),
		seedCmd(&configPath),
	)

	if err := root.Execute(); err != nil {
		log.Fatal(err)
	}
}

// setup loads config and opens the store; callers must Close it.
func setup(configPath string) (config.Config, *sqlite.Store, *api.Handler, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, nil, nil, fmt.Errorf("load config: %w", err)
	}

	store, err := sqlite.New(cfg.Storage.Path)
	if err != nil {
		return cfg, nil, nil, fmt.Errorf("open database: %w", err)
	}

	auth := api.NewAuth(cfg.Auth.JWTSecret, time.Duration(cfg.Auth.TokenTTLHours)*time.Hour, store)
	handler := api.NewHandler(store, auth)
	handler.Compoff.ExpiryDays = cfg.Leave.CompoffExpiryDays
	return cfg, store, handler, nil
}

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, store, handler, err := setup(*configPath)
			if err != nil {
				return err
			}
			defer store.Close()

			router := api.NewRouter(handler, api.RouterOptions{
				CORSOrigins:    cfg.Server.CORSOrigins,
				MetricsEnabled: cfg.Metrics.Enabled,
			})

			scheduler := api.NewAccrualScheduler(handler)
			scheduler.Start()

			server := &http.Server{
				Addr:         cfg.Server.Addr,
				Handler:      router,
				ReadTimeout:  15 * time.Second,
				WriteTimeout: 15 * time.Second,
				IdleTimeout:  60 * time.Second,
			}

			go func() {
				log.Printf("Server starting on %s", cfg.Server.Addr)
				log.Printf("API available at http://localhost%s/api/v1", cfg.Server.Addr)
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatalf("Server failed: %v", err)
				}
			}()

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
			<-quit

			log.Println("Shutting down server...")
			scheduler.Stop()

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := server.Shutdown(ctx); err != nil {
				return fmt.Errorf("forced shutdown: %w", err)
			}

			log.Println("Server stopped")
			return nil
		},
	}
}

func accrueCmd(configPath *string) *cobra.Command {
	var monthFlag string
	var yearFlag int

	cmd := &cobra.Command{
		Use:   "accrue",
		Short: "Run accrual for a month or a whole year",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, store, handler, err := setup(*configPath)
			if err != nil {
				return err
			}
			defer store.Close()

			ctx := context.Background()
			var result *engine.AccrualRunResult
			switch {
			case monthFlag != "":
				month, err := engine.ParseMonth(monthFlag)
				if err != nil {
					return fmt.Errorf("expected --month YYYY-MM: %w", err)
				}
				result, err = handler.Accrual.RunMonthly(ctx, month)
				if err != nil {
					return err
				}
			case yearFlag != 0:
				result, err = handler.Accrual.RunYearly(ctx, yearFlag)
				if err != nil {
					return err
				}
			default:
				return fmt.Errorf("either --month or --year is required")
			}

			log.Printf("Accrual done: %d credited, %d skipped (eligibility), %d skipped (inactive), %d employees",
				result.CreditedCount, result.SkippedNotEligible, result.SkippedInactive, result.TotalEmployeesProcessed)
			return nil
		},
	}
	cmd.Flags().StringVar(&monthFlag, "month", "", "month to credit (YYYY-MM)")
	cmd.Flags().IntVar(&yearFlag, "year", 0, "year to catch up (YYYY)")
	return cmd
}

func yearCloseCmd(configPath *string) *cobra.Command {
	var yearFlag int

	cmd := &cobra.Command{
		Use:   "year-close",
		Short: "Lapse, carry forward, and encash balances for a completed year",
		RunE: func(cmd *cobra.Command, args []string) error {
			if yearFlag == 0 {
				return fmt.Errorf("--year is required")
			}
			_, store, handler, err := setup(*configPath)
			if err != nil {
				return err
			}
			defer store.Close()

			result, err := handler.YearClose.Run(context.Background(), yearFlag)
			if err != nil {
				return err
			}
			log.Printf("Year-close %d: %d processed, %d already closed, %d failed; lapsed=%s carried=%s encashed=%s",
				result.Year, result.Processed, result.AlreadyClosed, result.Failed,
				result.TotalLapsed, result.TotalCarried, result.TotalEncashed)
			return nil
		},
	}
	cmd.Flags().IntVar(&yearFlag, "year", 0, "year to close (YYYY)")
	return cmd
}

func seedCmd(configPath *string) *cobra.Command {
	var yearFlag int

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load roles, a demo organization, holidays, and the default policy",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, store, _, err := setup(*configPath)
			if err != nil {
				return err
			}
			defer store.Close()

			year := yearFlag
			if year == 0 {
				year = time.Now().Year()
			}
			if err := api.Seed(context.Background(), store, year); err != nil {
				return err
			}
			log.Printf("Seeded demo organization and %d policy (password: changeme)", year)
			return nil
		},
	}
	cmd.Flags().IntVar(&yearFlag, "year", 0, "policy year to seed (defaults to current)")
	return cmd
}
