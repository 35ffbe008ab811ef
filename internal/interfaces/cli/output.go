package cli

import (
	"fmt"
	"sort"
	"strings"

	app "github.com/turtacn/dossier-engine/internal/application/dossier"
	domain "github.com/turtacn/dossier-engine/internal/domain/dossier"
)

const dateLayout = "2006-01-02"

// The views below adapt application results to PrintResult: String for
// text, TableHeaders/TableRows for table and JSONValue for json.

type dossierView struct {
	d *domain.Dossier
}

func (v dossierView) JSONValue() interface{} { return v.d }

func (v dossierView) String() string {
	d := v.d
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s  %s\n", d.Reference, d.ClientName)
	fmt.Fprintf(&sb, "ID:        %s\n", d.ID)
	fmt.Fprintf(&sb, "Service:   %s (%s, %s)\n", d.Service, d.LegalForm, d.Cadence)
	fmt.Fprintf(&sb, "Year:      %d\n", d.FiscalYear)
	fmt.Fprintf(&sb, "Status:    %s\n", d.Status)
	fmt.Fprintf(&sb, "Priority:  %s\n", d.Priority)
	if d.AssignedTo != "" {
		fmt.Fprintf(&sb, "Assigned:  %s\n", d.AssignedTo)
	}

	if len(d.Echeances) > 0 {
		sb.WriteString("\nEcheances\n")
		sb.WriteString(FormatTable(v.TableHeaders(), v.TableRows()))
	}
	if len(d.Declarations) > 0 {
		sb.WriteString("\nDeclarations\n")
		sb.WriteString(FormatTable(declarationHeaders, declarationRows(d.Declarations)))
	}
	if missing := missingDocuments(d); len(missing) > 0 {
		sb.WriteString("\nMissing documents\n")
		sb.WriteString(FormatTable(documentHeaders, documentRows(missing)))
	}
	if active := activeAlerts(d); len(active) > 0 {
		sb.WriteString("\nActive alerts\n")
		sb.WriteString(FormatTable(alertHeaders, alertRows(active)))
	}
	return sb.String()
}

func (v dossierView) TableHeaders() []string {
	return []string{"ID", "CATEGORY", "PERIOD", "DUE", "STATUS"}
}

func (v dossierView) TableRows() [][]string {
	echeances := append([]*domain.Echeance(nil), v.d.Echeances...)
	sort.SliceStable(echeances, func(i, j int) bool { return echeances[i].DueDate.Before(echeances[j].DueDate) })
	rows := make([][]string, 0, len(echeances))
	for _, e := range echeances {
		rows = append(rows, []string{
			e.ID.String(), e.Category, e.PeriodLabel, e.DueDate.Format(dateLayout), string(e.Status),
		})
	}
	return rows
}

var declarationHeaders = []string{"ID", "TYPE", "PERIOD", "DUE", "STATUS", "PAYABLE"}

func declarationRows(decls []*domain.Declaration) [][]string {
	rows := make([][]string, 0, len(decls))
	for _, d := range decls {
		payable := ""
		if d.AmountPayable.Valid {
			payable = d.AmountPayable.Decimal.StringFixed(2)
		}
		typ := string(d.Type)
		if d.Corrective {
			typ += " (corrective)"
		}
		rows = append(rows, []string{
			d.ID.String(),
			typ,
			d.PeriodStart.Format(dateLayout) + ".." + d.PeriodEnd.Format(dateLayout),
			d.DueDate.Format(dateLayout),
			string(d.Status),
			payable,
		})
	}
	return rows
}

var documentHeaders = []string{"ID", "CATEGORY", "MONTH"}

func missingDocuments(d *domain.Dossier) []*domain.RequiredDocument {
	var out []*domain.RequiredDocument
	for _, doc := range d.Documents {
		if doc.IsMissing() {
			out = append(out, doc)
		}
	}
	return out
}

func documentRows(docs []*domain.RequiredDocument) [][]string {
	rows := make([][]string, 0, len(docs))
	for _, doc := range docs {
		rows = append(rows, []string{doc.ID.String(), string(doc.Category), fmt.Sprintf("%d-%02d", doc.Year, int(doc.Month))})
	}
	return rows
}

var alertHeaders = []string{"ID", "KIND", "SEVERITY", "RAISED", "MESSAGE"}

func activeAlerts(d *domain.Dossier) []*domain.Alert {
	var out []*domain.Alert
	for _, a := range d.Alerts {
		if a.Active {
			out = append(out, a)
		}
	}
	return out
}

func alertRows(alerts []*domain.Alert) [][]string {
	rows := make([][]string, 0, len(alerts))
	for _, a := range alerts {
		rows = append(rows, []string{
			a.ID.String(), string(a.Kind), string(a.Severity), a.CreatedAt.Format(dateLayout), a.Message,
		})
	}
	return rows
}

type listView struct {
	res *app.ListResult
}

func (v listView) JSONValue() interface{} { return v.res }

func (v listView) TableHeaders() []string {
	return []string{"REFERENCE", "CLIENT", "SERVICE", "YEAR", "STATUS", "PRIORITY", "ID"}
}

func (v listView) TableRows() [][]string {
	rows := make([][]string, 0, len(v.res.Dossiers))
	for _, d := range v.res.Dossiers {
		rows = append(rows, []string{
			d.Reference, d.ClientName, string(d.Service), fmt.Sprint(d.FiscalYear),
			string(d.Status), string(d.Priority), d.ID.String(),
		})
	}
	return rows
}

func (v listView) String() string {
	if len(v.res.Dossiers) == 0 {
		return "No dossiers found."
	}
	return FormatTable(v.TableHeaders(), v.TableRows()) +
		fmt.Sprintf("\nTotal: %d (page %d, %d per page)", v.res.Total, v.res.Page, v.res.PageSize)
}

type createView struct {
	res *app.CreateResult
}

func (v createView) JSONValue() interface{} { return v.res }

func (v createView) String() string {
	d := v.res.Dossier
	s := fmt.Sprintf("Created %s for %s (%s)", d.Reference, d.ClientName, d.ID)
	if v.res.Generated != nil {
		s += "\nGenerated " + v.res.Generated.Summary()
	}
	for _, sib := range v.res.Siblings {
		s += "\n" + createView{res: sib}.String()
	}
	return s
}

type resultView struct {
	res *app.Result
}

func (v resultView) JSONValue() interface{} { return v.res }

func (v resultView) String() string {
	r := v.res
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s: %s, priority %s", r.Dossier.Reference, r.Dossier.Status, r.Dossier.Priority)
	if !r.Changed {
		sb.WriteString(" (no change)")
		return sb.String()
	}
	for _, t := range r.Transitions {
		fmt.Fprintf(&sb, "\n  status %s -> %s", t.From, t.To)
	}
	if r.Priority != nil {
		fmt.Fprintf(&sb, "\n  priority %s -> %s", r.Priority.From, r.Priority.To)
	}
	if r.Generated != nil && !r.Generated.Empty() {
		fmt.Fprintf(&sb, "\n  generated %s", r.Generated.Summary())
	}
	for _, a := range r.AlertsRaised {
		fmt.Fprintf(&sb, "\n  alert raised: %s (%s) %s", a.Kind, a.Severity, a.Message)
	}
	for _, a := range r.AlertsResolved {
		fmt.Fprintf(&sb, "\n  alert resolved: %s", a.Kind)
	}
	return sb.String()
}

type scanReportView struct {
	r *app.ScanReport
}

func (v scanReportView) JSONValue() interface{} { return v.r }

func (v scanReportView) TableHeaders() []string {
	return []string{"TENANT", "STARTED", "DURATION", "SCANNED", "OVERDUE", "WAITING", "RAISED", "RESOLVED", "ERRORS"}
}

func (v scanReportView) TableRows() [][]string {
	r := v.r
	return [][]string{{
		string(r.TenantID),
		r.StartedAt.Format("2006-01-02 15:04:05"),
		r.Duration.String(),
		fmt.Sprint(r.Scanned),
		fmt.Sprint(r.MarkedOverdue),
		fmt.Sprint(r.MovedToWaiting),
		fmt.Sprint(r.TotalRaised()),
		fmt.Sprint(r.AlertsResolved),
		fmt.Sprint(r.Errors),
	}}
}

func (v scanReportView) String() string {
	r := v.r
	var sb strings.Builder
	fmt.Fprintf(&sb, "Scan of %s at %s (%s)\n", r.TenantID, r.StartedAt.Format("2006-01-02 15:04:05"), r.Duration)
	fmt.Fprintf(&sb, "  scanned:           %d\n", r.Scanned)
	fmt.Fprintf(&sb, "  marked overdue:    %d\n", r.MarkedOverdue)
	fmt.Fprintf(&sb, "  moved to waiting:  %d\n", r.MovedToWaiting)
	fmt.Fprintf(&sb, "  priority changed:  %d\n", r.PriorityChanged)
	fmt.Fprintf(&sb, "  alerts raised:     %d", r.TotalRaised())
	if len(r.AlertsRaised) > 0 {
		kinds := make([]string, 0, len(r.AlertsRaised))
		for k, n := range r.AlertsRaised {
			kinds = append(kinds, fmt.Sprintf("%s=%d", k, n))
		}
		sort.Strings(kinds)
		fmt.Fprintf(&sb, " (%s)", strings.Join(kinds, ", "))
	}
	fmt.Fprintf(&sb, "\n  alerts suppressed: %d\n", r.AlertsSuppressed)
	fmt.Fprintf(&sb, "  alerts resolved:   %d\n", r.AlertsResolved)
	fmt.Fprintf(&sb, "  errors:            %d", r.Errors)
	return sb.String()
}
