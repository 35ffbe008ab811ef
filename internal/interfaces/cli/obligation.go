package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	app "github.com/turtacn/dossier-engine/internal/application/dossier"
	domain "github.com/turtacn/dossier-engine/internal/domain/dossier"
	"github.com/turtacn/dossier-engine/pkg/errors"
	"github.com/turtacn/dossier-engine/pkg/types/common"
)

func newObligationCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "obligation",
		Aliases: []string{"ob"},
		Short:   "Record progress on ledger entries, échéances, documents and declarations",
		Long: `Obligation commands address a child of a dossier by its ID, as shown by
"dossierctl dossier get".  The owning dossier's status and priority are
recomputed after every change.`,
	}
	cmd.AddCommand(
		newEntryCmd(),
		newEcheanceCmd(),
		newDocumentCmd(),
		newDeclarationCmd(),
	)
	return cmd
}

// childMutation runs fn against the child named by args[0].
func childMutation(cmd *cobra.Command, rawID string, fn func(ctx context.Context, svc app.Service, cc *CLIContext, id common.ID) (*app.Result, error)) error {
	id := common.ID(rawID)
	if err := id.Validate(); err != nil {
		return errors.InvalidParam(err.Error())
	}
	return withBackend(cmd, func(ctx context.Context, cc *CLIContext, b Backend) error {
		if _, err := cc.RequireTenant(); err != nil {
			return err
		}
		res, err := fn(ctx, b.Service(), cc, id)
		if err != nil {
			return err
		}
		return PrintResult(cmd, resultView{res: res})
	})
}

func newEntryCmd() *cobra.Command {
	var undo bool
	cmd := &cobra.Command{
		Use:   "entry-done <entry-id>",
		Short: "Mark a ledger entry done",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return childMutation(cmd, args[0], func(ctx context.Context, svc app.Service, cc *CLIContext, id common.ID) (*app.Result, error) {
				return svc.SetEntryDone(ctx, cc.Tenant, id, !undo, cc.Actor)
			})
		},
	}
	cmd.Flags().BoolVar(&undo, "undo", false, "mark the entry not done")
	return cmd
}

func newEcheanceCmd() *cobra.Command {
	var undo bool
	cmd := &cobra.Command{
		Use:   "echeance-done <echeance-id>",
		Short: "Mark an échéance and all its entries done",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return childMutation(cmd, args[0], func(ctx context.Context, svc app.Service, cc *CLIContext, id common.ID) (*app.Result, error) {
				return svc.SetEcheanceDone(ctx, cc.Tenant, id, !undo, cc.Actor)
			})
		},
	}
	cmd.Flags().BoolVar(&undo, "undo", false, "reopen the échéance")
	return cmd
}

func newDocumentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "document",
		Short: "Track the documents a client must provide",
	}

	var missing bool
	provided := &cobra.Command{
		Use:   "provided <document-id>",
		Short: "Record that a document was received",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return childMutation(cmd, args[0], func(ctx context.Context, svc app.Service, cc *CLIContext, id common.ID) (*app.Result, error) {
				return svc.SetDocumentProvided(ctx, cc.Tenant, id, !missing, cc.Actor)
			})
		},
	}
	provided.Flags().BoolVar(&missing, "undo", false, "mark the document missing again")

	var notApplicable bool
	applicable := &cobra.Command{
		Use:   "applicable <document-id>",
		Short: "Mark a document applicable, or not with --no",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return childMutation(cmd, args[0], func(ctx context.Context, svc app.Service, cc *CLIContext, id common.ID) (*app.Result, error) {
				return svc.SetDocumentApplicable(ctx, cc.Tenant, id, !notApplicable, cc.Actor)
			})
		},
	}
	applicable.Flags().BoolVar(&notApplicable, "no", false, "the document does not apply to this client")

	cmd.AddCommand(provided, applicable)
	return cmd
}

func newDeclarationCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "declaration",
		Aliases: []string{"decl"},
		Short:   "Move declarations through their filing workflow",
	}
	cmd.AddCommand(
		newDeclarationStatusCmd(),
		newDeclarationFileCmd(),
		newDeclarationCorrectiveCmd(),
	)
	return cmd
}

func newDeclarationStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <declaration-id> <status>",
		Short: "Set a declaration status (todo, in_progress, ready, filed, validated)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			status := domain.DeclarationStatus(strings.ToLower(args[1]))
			if !status.IsValid() {
				return errors.InvalidParam(fmt.Sprintf("invalid declaration status %q", args[1]))
			}
			return childMutation(cmd, args[0], func(ctx context.Context, svc app.Service, cc *CLIContext, id common.ID) (*app.Result, error) {
				return svc.SetDeclarationStatus(ctx, cc.Tenant, id, status, cc.Actor)
			})
		},
	}
}

func parseAmount(flag, raw string) (decimal.NullDecimal, error) {
	if raw == "" {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.NullDecimal{}, errors.InvalidParam(fmt.Sprintf("--%s: invalid amount %q", flag, raw))
	}
	return decimal.NewNullDecimal(d), nil
}

func newDeclarationFileCmd() *cobra.Command {
	var (
		reference, filedOn, paidOn, notes string
		base, tax, credit, payable        string
	)

	cmd := &cobra.Command{
		Use:   "file <declaration-id>",
		Short: "Record the filing of a declaration with its amounts",
		Long: `File marks a declaration filed.  When --payable is omitted and --tax is
given, the amount payable is tax minus credit.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := domain.FilingInput{Reference: reference, Notes: notes}
			var err error
			amounts := []struct {
				flag, raw string
				dst       *decimal.NullDecimal
			}{
				{"base", base, &in.TaxableBase},
				{"tax", tax, &in.TaxAmount},
				{"credit", credit, &in.Credit},
				{"payable", payable, &in.AmountPayable},
			}
			for _, a := range amounts {
				if *a.dst, err = parseAmount(a.flag, a.raw); err != nil {
					return err
				}
			}
			filed, err := parseDate(filedOn)
			if err != nil {
				return err
			}
			if filed != nil {
				in.FiledAt = *filed
			}
			if in.PaidOn, err = parseDate(paidOn); err != nil {
				return err
			}

			return childMutation(cmd, args[0], func(ctx context.Context, svc app.Service, cc *CLIContext, id common.ID) (*app.Result, error) {
				return svc.FileDeclaration(ctx, cc.Tenant, id, in, cc.Actor)
			})
		},
	}

	f := cmd.Flags()
	f.StringVar(&reference, "filing-ref", "", "acknowledgement reference from the tax office")
	f.StringVar(&filedOn, "filed-on", "", "filing date (YYYY-MM-DD, default: now)")
	f.StringVar(&paidOn, "paid-on", "", "payment date (YYYY-MM-DD)")
	f.StringVar(&base, "base", "", "taxable base")
	f.StringVar(&tax, "tax", "", "tax amount")
	f.StringVar(&credit, "credit", "", "credit offset against the tax")
	f.StringVar(&payable, "payable", "", "amount payable")
	f.StringVar(&notes, "notes", "", "free-text notes")
	return cmd
}

func newDeclarationCorrectiveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "corrective <declaration-id>",
		Short: "Open a corrective declaration for a filed one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return childMutation(cmd, args[0], func(ctx context.Context, svc app.Service, cc *CLIContext, id common.ID) (*app.Result, error) {
				return svc.CreateCorrective(ctx, cc.Tenant, id, cc.Actor)
			})
		},
	}
}

func newAlertCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "alert",
		Short: "Act on dossier alerts",
	}

	var note string
	resolve := &cobra.Command{
		Use:   "resolve <alert-id>",
		Short: "Resolve an active alert",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return childMutation(cmd, args[0], func(ctx context.Context, svc app.Service, cc *CLIContext, id common.ID) (*app.Result, error) {
				return svc.ResolveAlert(ctx, cc.Tenant, id, note, cc.Actor)
			})
		},
	}
	resolve.Flags().StringVarP(&note, "note", "m", "", "resolution note")

	cmd.AddCommand(resolve)
	return cmd
}
