package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/turtacn/dossier-engine/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/dossier-engine/pkg/errors"
	"github.com/turtacn/dossier-engine/pkg/types/common"
)

func newScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Run the alert scan or read its last report",
	}
	cmd.AddCommand(newScanRunCmd(), newScanLastCmd())
	return cmd
}

func scanTenants(cc *CLIContext, all bool) ([]common.TenantID, error) {
	if !all {
		tenant, err := cc.RequireTenant()
		if err != nil {
			return nil, err
		}
		return []common.TenantID{tenant}, nil
	}
	if len(cc.Config.Scan.Tenants) == 0 {
		return nil, errors.InvalidParam("--all needs scan.tenants in the configuration")
	}
	out := make([]common.TenantID, 0, len(cc.Config.Scan.Tenants))
	for _, t := range cc.Config.Scan.Tenants {
		out = append(out, common.TenantID(t))
	}
	return out, nil
}

func newScanRunCmd() *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Scan open dossiers now: overdue marking, inactivity, priority and alerts",
		Long: `Run performs the same pass as the worker for one tenant, or for every
configured tenant with --all.  A tenant whose scan lock is held by another
process is skipped.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(cmd, func(ctx context.Context, cc *CLIContext, b Backend) error {
				tenants, err := scanTenants(cc, all)
				if err != nil {
					return err
				}
				failed := 0
				for _, tenant := range tenants {
					report, err := b.Scanner().Run(ctx, tenant)
					switch {
					case errors.IsCode(err, errors.CodeLockNotAcquired):
						fmt.Fprintf(cmd.ErrOrStderr(), "Skipped %s: a scan is already running\n", tenant)
						if !all {
							return err
						}
						continue
					case err != nil:
						cc.Logger.Error("Scan failed", logging.String("tenant_id", string(tenant)), logging.Err(err))
						if !all {
							return err
						}
						failed++
						continue
					}
					if err := PrintResult(cmd, scanReportView{r: report}); err != nil {
						return err
					}
				}
				if failed > 0 {
					return errors.Newf(errors.ErrCodeInternal, "%d of %d tenant scans failed", failed, len(tenants))
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "scan every tenant listed in scan.tenants")
	return cmd
}

func newScanLastCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "last",
		Short: "Show the last scan report of the tenant",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(cmd, func(ctx context.Context, cc *CLIContext, b Backend) error {
				tenant, err := cc.RequireTenant()
				if err != nil {
					return err
				}
				report, err := b.Reports().Last(ctx, tenant)
				if errors.IsNotFound(err) {
					return PrintResult(cmd, fmt.Sprintf("No scan report for %s.", tenant))
				}
				if err != nil {
					return err
				}
				return PrintResult(cmd, scanReportView{r: report})
			})
		},
	}
}
