package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"medassist/internal/bootstrap"
	"medassist/internal/config"
	server "medassist/internal/http"
	"medassist/internal/intake"
	"medassist/internal/jobs"
	"medassist/internal/migrate"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "medassist",
		Short:         "Healthcare assistant API server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().String("config", "", "path to config file (YAML)")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(extractCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command) *config.Config {
	path, _ := cmd.Flags().GetString("config")
	return config.Load(path)
}

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{}))
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and/or the retention worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			role, _ := cmd.Flags().GetString("role")
			switch role {
			case "api", "worker", "all":
			default:
				return fmt.Errorf("invalid role: %s (expected api|worker|all)", role)
			}

			cfg := loadConfig(cmd)
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			logger := newLogger()
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			app, err := bootstrap.Run(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer app.Close()

			if role == "worker" || role == "all" {
				if app.Store == nil {
					if role == "worker" {
						return errors.New("worker role requires database.dsn")
					}
					logger.Info("retention worker not started", "reason", "no database.dsn")
				} else {
					go jobs.NewRunner(cfg, app.Store, logger).Start(ctx)
				}
			}

			if role == "worker" {
				<-ctx.Done()
				return nil
			}

			s := server.NewServer(cfg, server.Deps{
				Analysis: app.Analysis,
				Store:    app.Store,
				Redis:    app.Redis,
				Guard:    app.Guard,
				Provider: string(app.Gateway.Provider()),
				Model:    app.Gateway.Model(),
			}, logger)

			errCh := make(chan error, 1)
			go func() { errCh <- s.Listen() }()

			select {
			case err := <-errCh:
				return fmt.Errorf("server failed: %w", err)
			case <-ctx.Done():
			}

			logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			return s.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().String("role", "all", "process role: api|worker|all")
	return cmd
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply audit-log database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig(cmd)
			if cfg.Database.DSN == "" {
				return errors.New("database.dsn (MEDASSIST_DATABASE_DSN) is required")
			}
			if err := migrate.Run(cfg.Database.DSN); err != nil {
				return fmt.Errorf("migrations failed: %w", err)
			}
			fmt.Println("migrations applied")
			return nil
		},
	}
}

func extractCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extract <file>",
		Short: "Extract vitals, lab and imaging values from a PDF or DOCX report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig(cmd)
			if err := intake.SetPDFLicense(cfg.Intake.PDFLicenseKey); err != nil {
				return err
			}
			table, err := bootstrap.ExtractorTable(cfg)
			if err != nil {
				return err
			}

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			text, err := intake.ExtractText(args[0], f)
			if err != nil {
				return err
			}

			var out any = table.Extract(text)
			if all, _ := cmd.Flags().GetBool("all"); all {
				out = table.ExtractAll(text)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			enc.SetEscapeHTML(false)
			return enc.Encode(out)
		},
	}
	cmd.Flags().Bool("all", false, "print every match instead of the last value per keyword")
	return cmd
}
