package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/turtacn/dossier-engine/pkg/errors"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	up := &cobra.Command{
		Use:   "up",
		Short: "Apply every pending migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			if err := cc.Factory.Migrator(cc.Config).Up(); err != nil {
				return err
			}
			return printMigrationStatus(cmd, cc)
		},
	}

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back the last migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if steps < 1 {
				return errors.InvalidParam("--steps must be at least 1")
			}
			cc, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			if err := cc.Factory.Migrator(cc.Config).Rollback(steps); err != nil {
				return err
			}
			return printMigrationStatus(cmd, cc)
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")

	status := &cobra.Command{
		Use:   "status",
		Short: "Print the schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			return printMigrationStatus(cmd, cc)
		},
	}

	force := &cobra.Command{
		Use:   "force <version>",
		Short: "Set the schema version without running migrations, clearing the dirty flag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := strconv.Atoi(args[0])
			if err != nil {
				return errors.InvalidParam(fmt.Sprintf("invalid version %q", args[0]))
			}
			cc, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			if err := cc.Factory.Migrator(cc.Config).Force(version); err != nil {
				return err
			}
			return printMigrationStatus(cmd, cc)
		},
	}

	cmd.AddCommand(up, down, status, force)
	return cmd
}

type migrationStatus struct {
	Version uint `json:"version"`
	Dirty   bool `json:"dirty"`
}

func (s migrationStatus) String() string {
	if s.Dirty {
		return fmt.Sprintf("Schema version %d (dirty)", s.Version)
	}
	return fmt.Sprintf("Schema version %d", s.Version)
}

func printMigrationStatus(cmd *cobra.Command, cc *CLIContext) error {
	version, dirty, err := cc.Factory.Migrator(cc.Config).Status()
	if err != nil {
		return err
	}
	return PrintResult(cmd, migrationStatus{Version: version, Dirty: dirty})
}
