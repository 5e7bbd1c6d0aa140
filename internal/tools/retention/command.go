package retention

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/reposync/admin-backend/internal/config"
	"github.com/reposync/admin-backend/internal/database"
	"github.com/reposync/admin-backend/internal/tools/common"
	"github.com/reposync/admin-backend/internal/tools/ui"
)

type options struct {
	envFile             string
	auditRetentionDays  int
	importRetentionDays int
	ci                  bool
}

func NewRootCommand() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{Use: "retention", Short: "Data retention tooling"}
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "path to env file")
	cmd.PersistentFlags().IntVar(&opts.auditRetentionDays, "audit-retention-days", -1, "override audit retention window in days")
	cmd.PersistentFlags().IntVar(&opts.importRetentionDays, "import-retention-days", -1, "override import retention window in days")
	cmd.PersistentFlags().BoolVar(&opts.ci, "ci", false, "non-interactive machine-readable output")
	cmd.AddCommand(newPruneCommand(opts), newDryRunCommand(opts))
	return cmd
}

func newPruneCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Delete audit entries and finished import jobs past their retention window",
		RunE: func(cmd *cobra.Command, args []string) error {
			details, err := run(opts, "retention prune", func(ctx context.Context) ([]string, error) {
				cfg, db, err := loadConfigDB(opts.envFile)
				if err != nil {
					return nil, err
				}
				sqlDB, _ := db.DB()
				defer func() { _ = sqlDB.Close() }()

				auditWindow, importWindow := windows(cfg, opts)
				report, err := database.PruneRetention(db, auditWindow, importWindow, time.Now().UTC())
				if err != nil {
					return nil, err
				}
				return []string{
					fmt.Sprintf("deleted_audits=%d", report.DeletedAudits),
					fmt.Sprintf("deleted_import_jobs=%d", report.DeletedImportJobs),
					fmt.Sprintf("deleted_import_rows=%d", report.DeletedImportRows),
				}, nil
			})
			if opts.ci {
				common.PrintCIResult(err == nil, "retention prune", details, err)
			}
			if err != nil {
				os.Exit(3)
			}
			return nil
		},
	}
}

func newDryRunCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "dry-run",
		Short: "Show what pruning would do",
		RunE: func(cmd *cobra.Command, args []string) error {
			details, err := run(opts, "retention dry-run", func(ctx context.Context) ([]string, error) {
				cfg, db, err := loadConfigDB(opts.envFile)
				if err != nil {
					return nil, err
				}
				sqlDB, _ := db.DB()
				defer func() { _ = sqlDB.Close() }()

				auditWindow, importWindow := windows(cfg, opts)
				details := []string{}
				if auditWindow > 0 {
					details = append(details, fmt.Sprintf("would delete sync_audit rows older than %s", auditWindow))
				} else {
					details = append(details, "audit pruning disabled (window is zero)")
				}
				if importWindow > 0 {
					details = append(details, fmt.Sprintf("would delete completed and failed import jobs older than %s", importWindow))
					details = append(details, "pending and running jobs are never pruned")
				} else {
					details = append(details, "import pruning disabled (window is zero)")
				}
				details = append(details, "no mutation executed in dry-run mode")
				return details, nil
			})
			if opts.ci {
				common.PrintCIResult(err == nil, "retention dry-run", details, err)
			}
			if err != nil {
				os.Exit(3)
			}
			return nil
		},
	}
}

func windows(cfg *config.Config, opts *options) (time.Duration, time.Duration) {
	auditDays := cfg.AuditRetentionDays
	if opts.auditRetentionDays >= 0 {
		auditDays = opts.auditRetentionDays
	}
	importDays := cfg.ImportRetentionDays
	if opts.importRetentionDays >= 0 {
		importDays = opts.importRetentionDays
	}
	return time.Duration(auditDays) * 24 * time.Hour, time.Duration(importDays) * 24 * time.Hour
}

func run(opts *options, title string, fn func(context.Context) ([]string, error)) ([]string, error) {
	if opts.ci {
		return fn(context.Background())
	}
	return ui.Run(title, fn)
}

func loadConfigDB(envFile string) (*config.Config, *gorm.DB, error) {
	if err := common.LoadEnvFile(envFile); err != nil {
		return nil, nil, err
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	db, err := database.Open(cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, db, nil
}
