package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"
	_ "time/tzdata"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ayurcare/panchakarma/internal/catalog"
	"github.com/ayurcare/panchakarma/internal/config"
	"github.com/ayurcare/panchakarma/internal/domain/session"
	"github.com/ayurcare/panchakarma/internal/platform/db"
	"github.com/ayurcare/panchakarma/internal/platform/planner"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "panchakarma-server",
		Short: "Panchakarma therapy session planner",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(planCmd())
	rootCmd.AddCommand(catalogCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) zerolog.Logger {
	if cfg != nil && cfg.IsDev() {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the planner API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return runServer(cfg, newLogger(cfg))
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the session table schema",
	}

	withMigrator := func(dir string, fn func(ctx context.Context, m *db.Migrator) error) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if !cfg.UsesDatabase() {
			return fmt.Errorf("DATABASE_URL is not set")
		}
		ctx := context.Background()
		pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			return err
		}
		defer pool.Close()
		return fn(ctx, db.NewMigrator(pool, os.DirFS(dir)))
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")
			return withMigrator(dir, func(ctx context.Context, m *db.Migrator) error {
				count, err := m.Up(ctx)
				if err != nil {
					return fmt.Errorf("migration failed: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s).\n", count)
				return nil
			})
		},
	}
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")
			return withMigrator(dir, func(ctx context.Context, m *db.Migrator) error {
				statuses, err := m.Status(ctx)
				if err != nil {
					return fmt.Errorf("migration status: %w", err)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%-8s %-36s %-8s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
				for _, s := range statuses {
					status, at := "pending", ""
					if s.Applied {
						status = "applied"
						if s.AppliedAt != nil {
							at = s.AppliedAt.Format("2006-01-02 15:04:05")
						}
					}
					fmt.Fprintf(out, "%-8d %-36s %-8s %s\n", s.Version, s.Name, status, at)
				}
				return nil
			})
		},
	}
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	return cmd
}

// planCmd previews a protocol plan against an empty schedule and prints it as JSON.
func planCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Work with treatment plans offline",
	}

	gen := &cobra.Command{
		Use:   "generate",
		Short: "Generate the sessions of a protocol for one patient",
		RunE: func(cmd *cobra.Command, args []string) error {
			f := cmd.Flags()
			catalogFile, _ := f.GetString("catalog")
			protocolID, _ := f.GetString("protocol")
			patient, _ := f.GetString("patient")
			start, _ := f.GetString("start")
			window, _ := f.GetString("window")
			therapist, _ := f.GetString("therapist")
			room, _ := f.GetString("room")

			cat, err := catalog.Load(catalogFile)
			if err != nil {
				return err
			}
			svc, err := newOfflineService(cat)
			if err != nil {
				return err
			}
			res, err := svc.PreviewPlan(cmd.Context(), protocolID, planner.Config{
				PatientName: patient,
				StartDate:   start,
				Therapist:   session.ResourceRef{Name: therapist},
				Room:        session.ResourceRef{Name: room},
				TimeWindow:  planner.TimeWindow(window),
			})
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}
	gen.Flags().String("catalog", "", "Catalog YAML file (defaults to the built-in catalog)")
	gen.Flags().String("protocol", "", "Protocol template id")
	gen.Flags().String("patient", "", "Patient name")
	gen.Flags().String("start", "", "First day of treatment (YYYY-MM-DD)")
	gen.Flags().String("window", string(planner.WindowMorning), "Time window: morning or afternoon")
	gen.Flags().String("therapist", "", "Therapist name")
	gen.Flags().String("room", "", "Room name")
	_ = gen.MarkFlagRequired("protocol")
	_ = gen.MarkFlagRequired("patient")
	_ = gen.MarkFlagRequired("start")
	cmd.AddCommand(gen)

	return cmd
}

func catalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect the protocol and resource catalog",
	}
	check := &cobra.Command{
		Use:   "check [file]",
		Short: "Validate a catalog file, or the built-in catalog when none is given",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			cat, err := catalog.Load(path)
			if err != nil {
				return err
			}
			protocols, reg, err := cat.Build()
			if err != nil {
				return fmt.Errorf("catalog invalid: %w", err)
			}
			list, err := protocols.List(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ok: %d protocols, %d therapists, %d rooms\n",
				len(list), len(reg.Therapists()), len(reg.Rooms()))
			return nil
		},
	}
	cmd.AddCommand(check)
	return cmd
}
