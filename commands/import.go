package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"listings-api/dto"
	"listings-api/migrations"
)

// newMigratedApp is newApp plus pending migrations, for batch commands
// that may run against a fresh database.
func newMigratedApp(ctx context.Context, cmd *cobra.Command) (*app, error) {
	a, err := newApp(ctx, cmd)
	if err != nil {
		return nil, err
	}
	if _, err := migrations.NewMigrator(a.db).Up(); err != nil {
		a.Close(ctx)
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return a, nil
}

func ImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import a listings spreadsheet (.csv, .xlsx)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, _ := cmd.Flags().GetString("mode")
			dryRun, _ := cmd.Flags().GetBool("dry-run")

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			ctx := cmd.Context()
			a, err := newMigratedApp(ctx, cmd)
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			report, err := a.imports.Import(ctx, dto.ImportRequest{
				FileName: filepath.Base(args[0]),
				Mode:     mode,
				DryRun:   dryRun,
			}, f)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), report)
		},
	}
	cmd.Flags().String("mode", dto.ImportModeSync, "sync (update in place) or replace (delete everything first)")
	cmd.Flags().Bool("dry-run", false, "report what would change without writing")
	return cmd
}

func MatchMemosCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "match-memos <file>",
		Short: "Attach a chat log export (.txt, .html) to listings as notes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dryRun, _ := cmd.Flags().GetBool("dry-run")

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			ctx := cmd.Context()
			a, err := newMigratedApp(ctx, cmd)
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			report, err := a.memos.Import(ctx, filepath.Base(args[0]), f, dryRun)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), report)
		},
	}
	cmd.Flags().Bool("dry-run", false, "report matches without writing")
	return cmd
}
