package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	app "github.com/turtacn/dossier-engine/internal/application/dossier"
	domain "github.com/turtacn/dossier-engine/internal/domain/dossier"
	"github.com/turtacn/dossier-engine/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/dossier-engine/pkg/errors"
	"github.com/turtacn/dossier-engine/pkg/types/common"
)

func newDossierCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "dossier",
		Aliases: []string{"d"},
		Short:   "Create, inspect and move dossiers through their lifecycle",
	}
	cmd.AddCommand(
		newDossierCreateCmd(),
		newDossierGetCmd(),
		newDossierListCmd(),
		newDossierOpenCmd(),
		newDossierStatusCmd(),
		newDossierTransitionCmd("complete", "Mark a dossier done", app.Service.Complete),
		newDossierTransitionCmd("reopen", "Reopen a done dossier", app.Service.Reopen),
		newDossierTransitionCmd("archive", "Archive a dossier", app.Service.Archive),
		newDossierRegenerateCmd(),
		newDossierGeneratePeriodCmd(),
	)
	return cmd
}

// lookupDossier accepts an ID or a reference.
func lookupDossier(ctx context.Context, svc app.Service, tenant common.TenantID, arg string) (*domain.Dossier, error) {
	if common.ID(arg).Validate() == nil {
		return svc.Get(ctx, tenant, common.ID(arg))
	}
	return svc.GetByReference(ctx, tenant, arg)
}

func dossierID(ctx context.Context, svc app.Service, tenant common.TenantID, arg string) (common.ID, error) {
	if common.ID(arg).Validate() == nil {
		return common.ID(arg), nil
	}
	d, err := svc.GetByReference(ctx, tenant, arg)
	if err != nil {
		return "", err
	}
	return d.ID, nil
}

func parseDate(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation(dateLayout, raw, time.UTC)
	if err != nil {
		return nil, errors.InvalidParam(fmt.Sprintf("invalid date %q, expected YYYY-MM-DD", raw))
	}
	return &t, nil
}

func splitList(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, strings.ToLower(p))
		}
	}
	return out
}

func parseStatuses(raw string) ([]domain.Status, error) {
	var out []domain.Status
	for _, p := range splitList(raw) {
		s := domain.Status(p)
		if !s.IsValid() {
			return nil, errors.InvalidParam(fmt.Sprintf("invalid status %q", p))
		}
		out = append(out, s)
	}
	return out, nil
}

func parsePriorities(raw string) ([]domain.Priority, error) {
	var out []domain.Priority
	for _, p := range splitList(raw) {
		pr := domain.Priority(p)
		if !pr.IsValid() {
			return nil, errors.InvalidParam(fmt.Sprintf("invalid priority %q", p))
		}
		out = append(out, pr)
	}
	return out, nil
}

func newDossierCreateCmd() *cobra.Command {
	var (
		client, clientID, service, form, cadence string
		reference, due, description, assign      string
		period, also                             string
		year, referenceYear                      int
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Open an engagement and generate its obligations",
		Example: `  dossierctl -t cabinet-1 dossier create --client "Boulangerie Martin" \
      --service bookkeeping --form SARL --year 2025

  dossierctl -t cabinet-1 dossier create --client "Garage Leroy" \
      --service bookkeeping --also tax,payroll --period "January 2025"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			svcType, known := domain.ParseServiceType(service)
			c := domain.PeriodCadence(strings.ToLower(cadence))
			if cadence != "" && !c.IsValid() {
				return errors.InvalidParam(fmt.Sprintf("invalid cadence %q (monthly, quarterly, annual)", cadence))
			}
			dueDate, err := parseDate(due)
			if err != nil {
				return err
			}
			var siblings []domain.ServiceType
			for _, raw := range splitList(also) {
				st, ok := domain.ParseServiceType(raw)
				if !ok {
					return errors.InvalidParam(fmt.Sprintf("--also: unknown service %q", raw))
				}
				siblings = append(siblings, st)
			}

			return withBackend(cmd, func(ctx context.Context, cc *CLIContext, b Backend) error {
				tenant, err := cc.RequireTenant()
				if err != nil {
					return err
				}
				if !known {
					cc.Logger.Warn("Unknown service, using other", logging.String("service", service))
				}
				res, err := b.Service().Create(ctx, &app.CreateRequest{
					TenantID:      tenant,
					Reference:     reference,
					ClientName:    client,
					ClientID:      clientID,
					Service:       svcType,
					Services:      siblings,
					LegalForm:     domain.LegalForm(form),
					Cadence:       c,
					FiscalYear:    year,
					ReferenceYear: referenceYear,
					DueDate:       dueDate,
					Period:        period,
					Description:   description,
					AssignedTo:    common.UserID(assign),
					Actor:         cc.Actor,
				})
				if err != nil {
					return err
				}
				return PrintResult(cmd, createView{res: res})
			})
		},
	}

	f := cmd.Flags()
	f.StringVar(&client, "client", "", "client name")
	f.StringVar(&clientID, "client-id", "", "client identifier in the practice's records")
	f.StringVar(&service, "service", "", "service line (bookkeeping, tax, payroll, legal, audit, advisory, other)")
	f.StringVar(&form, "form", "", "legal form of the client (SARL, SAS, EI, MICRO_ENTREPRISE...)")
	f.StringVar(&cadence, "cadence", "", "period cadence (monthly, quarterly, annual); default monthly")
	f.IntVar(&year, "year", time.Now().Year(), "fiscal year")
	f.IntVar(&referenceYear, "reference-year", 0, "year the service échéances are generated for (default: fiscal year)")
	f.StringVar(&reference, "reference", "", "dossier reference (default: assigned from the tenant counter)")
	f.StringVar(&due, "due", "", "engagement due date (YYYY-MM-DD)")
	f.StringVar(&period, "period", "", `period the engagement covers, e.g. "March 2025"; sets the due date when --due is omitted`)
	f.StringVar(&also, "also", "", "comma-separated further services, each opened as a sibling dossier")
	f.StringVar(&description, "description", "", "free-text description")
	f.StringVar(&assign, "assign", "", "user the dossier is assigned to")
	_ = cmd.MarkFlagRequired("client")
	_ = cmd.MarkFlagRequired("service")
	return cmd
}

func newDossierGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id|reference>",
		Short: "Show a dossier with its obligations and active alerts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(cmd, func(ctx context.Context, cc *CLIContext, b Backend) error {
				tenant, err := cc.RequireTenant()
				if err != nil {
					return err
				}
				d, err := lookupDossier(ctx, b.Service(), tenant, args[0])
				if err != nil {
					return err
				}
				return PrintResult(cmd, dossierView{d: d})
			})
		},
	}
}

func newDossierListCmd() *cobra.Command {
	var (
		status, priority, service, search string
		year, page, pageSize              int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List dossiers by priority then due date",
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses, err := parseStatuses(status)
			if err != nil {
				return err
			}
			priorities, err := parsePriorities(priority)
			if err != nil {
				return err
			}
			filter := domain.ListFilter{
				Status:     statuses,
				Priority:   priorities,
				FiscalYear: year,
				Search:     search,
				Page:       common.Pagination{Page: page, PageSize: pageSize},
			}
			if service != "" {
				s, ok := domain.ParseServiceType(service)
				if !ok {
					return errors.InvalidParam(fmt.Sprintf("invalid service %q", service))
				}
				filter.Service = s
			}

			return withBackend(cmd, func(ctx context.Context, cc *CLIContext, b Backend) error {
				tenant, err := cc.RequireTenant()
				if err != nil {
					return err
				}
				res, err := b.Service().List(ctx, tenant, filter)
				if err != nil {
					return err
				}
				return PrintResult(cmd, listView{res: res})
			})
		},
	}

	f := cmd.Flags()
	f.StringVar(&status, "status", "", "comma-separated statuses (new, in_progress, waiting, done, archived)")
	f.StringVar(&priority, "priority", "", "comma-separated priorities (low, normal, high, urgent)")
	f.StringVar(&service, "service", "", "service line")
	f.StringVar(&search, "search", "", "match on reference or client name")
	f.IntVar(&year, "year", 0, "fiscal year")
	f.IntVar(&page, "page", 1, "page number")
	f.IntVar(&pageSize, "page-size", 50, "page size (max 500)")
	return cmd
}

func newDossierOpenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "open <id|reference>",
		Short: "Start work on a new dossier",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return mutateDossier(cmd, args[0], func(ctx context.Context, svc app.Service, cc *CLIContext, id common.ID) (*app.Result, error) {
				return svc.Open(ctx, cc.Tenant, id, cc.Actor)
			})
		},
	}
}

func newDossierStatusCmd() *cobra.Command {
	var comment string
	cmd := &cobra.Command{
		Use:   "status <id|reference> <status>",
		Short: "Set the status of a dossier by hand",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			status := domain.Status(strings.ToLower(args[1]))
			if !status.IsValid() {
				return errors.InvalidParam(fmt.Sprintf("invalid status %q", args[1]))
			}
			return mutateDossier(cmd, args[0], func(ctx context.Context, svc app.Service, cc *CLIContext, id common.ID) (*app.Result, error) {
				return svc.ChangeStatus(ctx, cc.Tenant, id, status, comment, cc.Actor)
			})
		},
	}
	cmd.Flags().StringVarP(&comment, "comment", "m", "", "comment recorded in the history")
	return cmd
}

type commentedTransition func(svc app.Service, ctx context.Context, tenant common.TenantID, id common.ID, comment string, actor common.UserID) (*app.Result, error)

func newDossierTransitionCmd(use, short string, call commentedTransition) *cobra.Command {
	var comment string
	cmd := &cobra.Command{
		Use:   use + " <id|reference>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return mutateDossier(cmd, args[0], func(ctx context.Context, svc app.Service, cc *CLIContext, id common.ID) (*app.Result, error) {
				return call(svc, ctx, cc.Tenant, id, comment, cc.Actor)
			})
		},
	}
	cmd.Flags().StringVarP(&comment, "comment", "m", "", "comment recorded in the history")
	return cmd
}

func newDossierRegenerateCmd() *cobra.Command {
	var year int
	cmd := &cobra.Command{
		Use:   "regenerate <id|reference>",
		Short: "Generate the obligations of another reference year",
		Long: `Regenerate runs the obligation generator again for the given reference year.
Obligations that already exist are kept; only missing ones are added.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return mutateDossier(cmd, args[0], func(ctx context.Context, svc app.Service, cc *CLIContext, id common.ID) (*app.Result, error) {
				return svc.Regenerate(ctx, cc.Tenant, id, year, cc.Actor)
			})
		},
	}
	cmd.Flags().IntVar(&year, "year", time.Now().Year(), "reference year")
	return cmd
}

func newDossierGeneratePeriodCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "generate-period <id|reference> <label>",
		Short: "Generate the échéance of one month (\"March 2025\", \"mars 2025\", 03/2025 or 2025-03)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return mutateDossier(cmd, args[0], func(ctx context.Context, svc app.Service, cc *CLIContext, id common.ID) (*app.Result, error) {
				return svc.GenerateForPeriod(ctx, cc.Tenant, id, args[1], cc.Actor)
			})
		},
	}
}

type dossierMutation func(ctx context.Context, svc app.Service, cc *CLIContext, id common.ID) (*app.Result, error)

func mutateDossier(cmd *cobra.Command, arg string, fn dossierMutation) error {
	return withBackend(cmd, func(ctx context.Context, cc *CLIContext, b Backend) error {
		tenant, err := cc.RequireTenant()
		if err != nil {
			return err
		}
		id, err := dossierID(ctx, b.Service(), tenant, arg)
		if err != nil {
			return err
		}
		res, err := fn(ctx, b.Service(), cc, id)
		if err != nil {
			return err
		}
		return PrintResult(cmd, resultView{res: res})
	})
}
