package cmd

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/Togather-Foundation/eventplanner/internal/config"
	"github.com/Togather-Foundation/eventplanner/internal/domain/backups"
	"github.com/Togather-Foundation/eventplanner/internal/storage/postgres"
)

var backupLimit int

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Create and list JSON database snapshots",
	Long: `Create and list the same JSON snapshots the admin API schedules.

The create subcommand writes the snapshot in-process instead of through the
job queue, so it works while the server is stopped.`,
}

var backupCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Write a snapshot now",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := commandContext(cmd)
		svc, repo, closeFn, err := openBackups(ctx)
		if err != nil {
			return err
		}
		defer closeFn()

		b, err := svc.Request(ctx, "cli")
		if err != nil {
			return fmt.Errorf("backup failed: %w", err)
		}
		done, err := repo.GetByID(ctx, b.ID)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "backup %s written to %s (%s)\n", done.ID, done.FileName, humanSize(done.SizeBytes))
		return nil
	},
}

var backupListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded snapshots, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := commandContext(cmd)
		svc, _, closeFn, err := openBackups(ctx)
		if err != nil {
			return err
		}
		defer closeFn()

		list, total, err := svc.List(ctx, backupLimit, 0)
		if err != nil {
			return err
		}
		return printBackups(cmd.OutOrStdout(), list, total)
	},
}

func init() {
	backupListCmd.Flags().IntVar(&backupLimit, "limit", 20, "maximum number of backups to show")
	backupCmd.AddCommand(backupCreateCmd, backupListCmd)
}

// syncEnqueuer runs the snapshot immediately instead of scheduling a job.
type syncEnqueuer struct {
	svc *backups.Service
}

func (e *syncEnqueuer) EnqueueBackup(ctx context.Context, backupID string) error {
	return e.svc.Write(ctx, backupID)
}

func openBackups(ctx context.Context) (*backups.Service, *postgres.BackupRepository, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("config error: %w", err)
	}
	logger := config.NewLogger(cfg.Logging)

	pool, err := openPool(ctx, cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	repo, err := postgres.NewRepository(pool)
	if err != nil {
		pool.Close()
		return nil, nil, nil, err
	}
	enq := &syncEnqueuer{}
	svc := backups.NewService(repo.Backups(), enq, repo, cfg.Backup.Dir, logger)
	enq.svc = svc
	return svc, repo.Backups(), pool.Close, nil
}

func printBackups(w io.Writer, list []*backups.Backup, total int) error {
	if len(list) == 0 {
		_, err := fmt.Fprintln(w, "no backups recorded")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tFILE\tSIZE\tCREATED BY\tCREATED")
	for _, b := range list {
		file := b.FileName
		if file == "" {
			file = "-"
		}
		if b.Status == backups.StatusFailed && b.Error != "" {
			file = "error: " + b.Error
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			b.ID, b.Status, file, humanSize(b.SizeBytes), b.CreatedBy, b.CreatedAt.Format(time.RFC3339))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if total > len(list) {
		_, err := fmt.Fprintf(w, "showing %d of %d backups\n", len(list), total)
		return err
	}
	return nil
}

func humanSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%dB", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f%cB", float64(n)/float64(div), "KMGT"[exp])
}
