package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"listings-api/migrations"
)

func MigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}
	cmd.AddCommand(migrateUpCmd(), migrateDownCmd(), migrateStatusCmd(), migrateHistoryCmd())
	return cmd
}

// withMigrator opens the database for one migrate subcommand.
func withMigrator(cmd *cobra.Command, fn func(m *migrations.Migrator) error) error {
	_, logger, db, err := openDB(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()
	defer closeDB(db)
	return fn(migrations.NewMigrator(db))
}

func closeDB(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}
}

func migrateUpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd, func(m *migrations.Migrator) error {
				applied, err := m.Up()
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(applied) == 0 {
					fmt.Fprintln(out, "No pending migrations.")
					return nil
				}
				for _, v := range applied {
					fmt.Fprintf(out, "Applied %s\n", v)
				}
				return nil
			})
		},
	}
}

func migrateDownCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "down",
		Short: "Roll back the last applied migration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd, func(m *migrations.Migrator) error {
				record, err := m.Down()
				if err != nil {
					return err
				}
				if record == nil {
					fmt.Fprintln(cmd.OutOrStdout(), "Nothing to roll back.")
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Rolled back %s (%s)\n", record.Version, record.Name)
				return nil
			})
		},
	}
}

func migrateStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show status of all migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd, func(m *migrations.Migrator) error {
				statuses, err := m.Status()
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "VERSION\tNAME\tSTATUS")
				for _, s := range statuses {
					status := "Pending"
					if s.Applied {
						status = "Applied"
					}
					fmt.Fprintf(w, "%s\t%s\t%s\n", s.Version, s.Name, status)
				}
				return w.Flush()
			})
		},
	}
}

func migrateHistoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "List applied migrations, oldest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd, func(m *migrations.Migrator) error {
				records, err := m.History()
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "VERSION\tNAME\tAPPLIED AT")
				for _, r := range records {
					fmt.Fprintf(w, "%s\t%s\t%s\n", r.Version, r.Name, r.AppliedAt.Format("2006-01-02 15:04:05"))
				}
				return w.Flush()
			})
		},
	}
}
