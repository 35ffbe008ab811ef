package obligation

import (
	"fmt"
	"time"

	"github.com/turtacn/dossier-engine/internal/domain/calendar"
	"github.com/turtacn/dossier-engine/internal/domain/dossier"
	apperrors "github.com/turtacn/dossier-engine/pkg/errors"
	"github.com/turtacn/dossier-engine/pkg/types/common"
)

// ErrInvalidPeriodLabel is returned by GenerateForPeriod when the label
// cannot be parsed.  Nothing is generated in that case.
var ErrInvalidPeriodLabel = apperrors.New(apperrors.ErrCodeInvalidPeriodLabel, "invalid period label")

// GeneratedSet holds the rows created by one generation call.  Rows already
// present on the dossier are not repeated; Skipped counts them.
type GeneratedSet struct {
	Echeances    []*dossier.Echeance         `json:"echeances"`
	Entries      []*dossier.LedgerEntry      `json:"entries"`
	Documents    []*dossier.RequiredDocument `json:"documents"`
	Declarations []*dossier.Declaration      `json:"declarations"`
	Skipped      int                         `json:"skipped"`
	// FallbackService is set when the service type was not in the catalog.
	FallbackService bool `json:"fallback_service,omitempty"`
	// FallbackLegalForm is set when the legal form got the default
	// declaration set.
	FallbackLegalForm bool `json:"fallback_legal_form,omitempty"`
}

// Count returns the number of new rows.
func (s *GeneratedSet) Count() int {
	return len(s.Echeances) + len(s.Entries) + len(s.Documents) + len(s.Declarations)
}

// Empty reports whether nothing new was generated.
func (s *GeneratedSet) Empty() bool { return s.Count() == 0 }

// ApplyTo appends the generated rows to the dossier's collections.
func (s *GeneratedSet) ApplyTo(d *dossier.Dossier) {
	d.Echeances = append(d.Echeances, s.Echeances...)
	d.Entries = append(d.Entries, s.Entries...)
	d.Documents = append(d.Documents, s.Documents...)
	d.Declarations = append(d.Declarations, s.Declarations...)
}

// Summary renders the counts for history comments.
func (s *GeneratedSet) Summary() string {
	return fmt.Sprintf("%d echeances, %d entries, %d documents, %d declarations",
		len(s.Echeances), len(s.Entries), len(s.Documents), len(s.Declarations))
}

// Generator expands dossiers with a Catalog.
type Generator struct {
	catalog *Catalog
}

// NewGenerator returns a Generator over catalog; nil selects DefaultCatalog.
func NewGenerator(catalog *Catalog) *Generator {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	return &Generator{catalog: catalog}
}

// Catalog exposes the catalog in use.
func (g *Generator) Catalog() *Catalog { return g.catalog }

// Generate produces the obligations of d for referenceYear.  Calling it
// again with the same arguments produces an empty set.
func (g *Generator) Generate(d *dossier.Dossier, referenceYear int, now time.Time) (*GeneratedSet, error) {
	if referenceYear < 1900 || referenceYear > 9999 {
		return nil, apperrors.New(apperrors.ErrCodeInvalidReferenceYear, "reference year out of range").
			WithDetailf("year=%d", referenceYear)
	}

	rule, known := g.catalog.ServiceRule(d.Service)
	b := newBuilder(d, now)
	b.set.FallbackService = !known

	switch rule.Mode {
	case ModeEcheances:
		for _, p := range monthlyPeriods(referenceYear) {
			b.serviceEcheance(rule, p)
		}
	case ModeDeclarations:
		rules, knownForm := g.catalog.DeclarationsFor(d.LegalForm)
		b.set.FallbackLegalForm = !knownForm
		for _, r := range rules {
			b.declarations(r, referenceYear)
		}
		for _, r := range g.catalog.PriorYearRules(d.LegalForm) {
			b.declarations(r, referenceYear-1)
		}
		b.declarationEcheances()
	case ModeOnDemand:
	}
	return b.set, nil
}

// GenerateForPeriod adds the service échéance of a single period given by
// its label, e.g. "March 2025".  An unparseable label yields
// ErrInvalidPeriodLabel and no rows.
func (g *Generator) GenerateForPeriod(d *dossier.Dossier, label string, now time.Time) (*GeneratedSet, error) {
	month, year, ok := calendar.ParsePeriodLabel(label)
	if !ok {
		return nil, ErrInvalidPeriodLabel.WithDetailf("label=%q", label)
	}
	rule, known := g.catalog.ServiceRule(d.Service)
	b := newBuilder(d, now)
	b.set.FallbackService = !known
	b.serviceEcheance(rule, period{
		year: year, month: month, label: calendar.MonthLabel(month, year),
	})
	return b.set, nil
}

// DeriveEcheances adds the échéances of declarations of d that have none,
// such as a corrective opened after generation.
func (g *Generator) DeriveEcheances(d *dossier.Dossier, now time.Time) *GeneratedSet {
	b := newBuilder(d, now)
	b.declarationEcheances()
	return b.set
}

// PeriodDueDate is the due date of the period labelled label for service:
// the service due day in the following month, rolled past a weekend.
func (g *Generator) PeriodDueDate(service dossier.ServiceType, label string) (time.Time, error) {
	month, year, ok := calendar.ParsePeriodLabel(label)
	if !ok {
		return time.Time{}, ErrInvalidPeriodLabel.WithDetailf("label=%q", label)
	}
	rule, _ := g.catalog.ServiceRule(service)
	return calendar.RollForwardIfWeekend(calendar.DueInFollowingMonth(year, month, rule.DueDay)), nil
}

// ─────────────────────────────────────────────────────────────────────────────
// periods
// ─────────────────────────────────────────────────────────────────────────────

// period is one service échéance slot; the due date falls in the month
// after month.
type period struct {
	year  int
	month time.Month
	label string
}

// monthlyPeriods yields the twelve monthly slots of year.  The dossier
// cadence is descriptive and never changes the slot count.
func monthlyPeriods(year int) []period {
	out := make([]period, 0, 12)
	for m := time.January; m <= time.December; m++ {
		out = append(out, period{year: year, month: m, label: calendar.MonthLabel(m, year)})
	}
	return out
}

// ─────────────────────────────────────────────────────────────────────────────
// builder
// ─────────────────────────────────────────────────────────────────────────────

type builder struct {
	d         *dossier.Dossier
	now       time.Time
	set       *GeneratedSet
	echeances map[string]*dossier.Echeance
	entries   map[string]bool
	documents map[string]bool
	decls     map[string]*dossier.Declaration
}

func newBuilder(d *dossier.Dossier, now time.Time) *builder {
	b := &builder{
		d:         d,
		now:       now,
		set:       &GeneratedSet{},
		echeances: make(map[string]*dossier.Echeance, len(d.Echeances)),
		entries:   make(map[string]bool, len(d.Entries)),
		documents: make(map[string]bool, len(d.Documents)),
		decls:     make(map[string]*dossier.Declaration, len(d.Declarations)),
	}
	for _, e := range d.Echeances {
		b.echeances[e.Key()] = e
	}
	for _, l := range d.Entries {
		b.entries[entryKey(l.EcheanceID, l.Journal)] = true
	}
	for _, doc := range d.Documents {
		b.documents[documentKey(doc.EcheanceID, doc.Category)] = true
	}
	for _, decl := range d.Declarations {
		b.decls[decl.Key()] = decl
	}
	return b
}

func entryKey(echeanceID common.ID, j dossier.JournalCategory) string {
	return string(echeanceID) + "|" + string(j)
}

func documentKey(echeanceID common.ID, c dossier.DocumentCategory) string {
	return string(echeanceID) + "|" + string(c)
}

func (b *builder) serviceEcheance(rule ServiceRule, p period) {
	category := string(rule.Service)
	e, exists := b.echeances[dossier.EcheanceKey(category, p.year, p.month)]
	if exists {
		b.set.Skipped++
	} else {
		due := calendar.RollForwardIfWeekend(calendar.DueInFollowingMonth(p.year, p.month, rule.DueDay))
		e = b.newEcheance(category, p.year, p.month, p.label, due, nil)
	}

	for _, j := range rule.Journals {
		k := entryKey(e.ID, j)
		if b.entries[k] {
			b.set.Skipped++
			continue
		}
		b.entries[k] = true
		b.set.Entries = append(b.set.Entries, &dossier.LedgerEntry{
			ID:         common.NewID(),
			DossierID:  b.d.ID,
			EcheanceID: e.ID,
			Journal:    j,
			Month:      p.month,
			Year:       p.year,
		})
	}
	for _, c := range rule.Documents {
		k := documentKey(e.ID, c)
		if b.documents[k] {
			b.set.Skipped++
			continue
		}
		b.documents[k] = true
		b.set.Documents = append(b.set.Documents, &dossier.RequiredDocument{
			ID:         common.NewID(),
			DossierID:  b.d.ID,
			EcheanceID: e.ID,
			Category:   c,
			Month:      p.month,
			Year:       p.year,
			Applicable: true,
		})
	}
}

func (b *builder) newEcheance(category string, year int, month time.Month, label string, due time.Time, declID *common.ID) *dossier.Echeance {
	e := &dossier.Echeance{
		ID:            common.NewID(),
		DossierID:     b.d.ID,
		Category:      category,
		Month:         month,
		Year:          year,
		PeriodLabel:   label,
		DueDate:       due,
		Status:        dossier.EcheanceTodo,
		DeclarationID: declID,
		CreatedAt:     b.now,
		UpdatedAt:     b.now,
	}
	b.echeances[e.Key()] = e
	b.set.Echeances = append(b.set.Echeances, e)
	return e
}

// declarations expands one rule over the periods of fiscalYear.
func (b *builder) declarations(r DeclarationRule, fiscalYear int) {
	switch r.Regime {
	case dossier.RegimeMonthly:
		for m := time.January; m <= time.December; m++ {
			start, end := calendar.MonthBounds(fiscalYear, m)
			due := calendar.DueInFollowingMonth(fiscalYear, m, r.DueDay)
			b.declaration(r, start, end, due, calendar.MonthLabel(m, fiscalYear))
		}
	case dossier.RegimeQuarterly:
		for q := 1; q <= 4; q++ {
			start, end := calendar.QuarterBounds(fiscalYear, q)
			due := calendar.DueInFollowingMonth(fiscalYear, end.Month(), r.DueDay)
			b.declaration(r, start, end, due, calendar.QuarterLabel(q, fiscalYear))
		}
	case dossier.RegimeAnnual:
		start := calendar.Date(fiscalYear, time.January, 1)
		end := calendar.Date(fiscalYear, time.December, 31)
		due := calendar.Date(fiscalYear+r.DueYearOffset, r.DueMonth, r.DueDay)
		b.declaration(r, start, end, due, calendar.FiscalYearLabel(fiscalYear))
	}
}

func (b *builder) declaration(r DeclarationRule, start, end, due time.Time, periodLabel string) {
	key := dossier.DeclarationKey(r.Type, start)
	if _, exists := b.decls[key]; exists {
		b.set.Skipped++
		return
	}
	if r.CalendarShift {
		due = calendar.RollForwardIfWeekend(due)
	}
	decl := &dossier.Declaration{
		ID:          common.NewID(),
		DossierID:   b.d.ID,
		Type:        r.Type,
		Regime:      r.Regime,
		PeriodStart: start,
		PeriodEnd:   end,
		DueDate:     due,
		Status:      dossier.DeclarationTodo,
		Form:        r.Form,
		Description: r.Description + " - " + periodLabel,
		CreatedAt:   b.now,
		UpdatedAt:   b.now,
	}
	b.decls[key] = decl
	b.set.Declarations = append(b.set.Declarations, decl)
}

// declarationEcheances derives one échéance per declaration that does not
// have one yet, new and pre-existing declarations alike.  A corrective gets
// its own échéance beside its origin's.
func (b *builder) declarationEcheances() {
	all := make([]*dossier.Declaration, 0, len(b.d.Declarations)+len(b.set.Declarations))
	all = append(all, b.d.Declarations...)
	all = append(all, b.set.Declarations...)
	byID := make(map[common.ID]*dossier.Declaration, len(all))
	for _, decl := range all {
		byID[decl.ID] = decl
	}

	for _, decl := range all {
		category := echeanceCategory(decl, byID)
		key := dossier.EcheanceKey(category, decl.PeriodStart.Year(), decl.PeriodStart.Month())
		if _, exists := b.echeances[key]; exists {
			b.set.Skipped++
			continue
		}
		id := decl.ID
		e := b.newEcheance(category, decl.PeriodStart.Year(), decl.PeriodStart.Month(),
			echeanceLabel(decl), decl.DueDate, &id)
		if decl.IsDone() {
			e.MarkDone(b.now)
		}
	}
}

// echeanceCategory is the declaration type, suffixed for a corrective by
// its rank in the amendment chain: TVA, TVA_RECT, TVA_RECT2.
func echeanceCategory(decl *dossier.Declaration, byID map[common.ID]*dossier.Declaration) string {
	rank := 0
	for cur := decl; cur != nil && cur.Corrective && cur.OriginID != nil && rank <= len(byID); cur = byID[*cur.OriginID] {
		rank++
	}
	switch rank {
	case 0:
		return string(decl.Type)
	case 1:
		return string(decl.Type) + "_RECT"
	default:
		return fmt.Sprintf("%s_RECT%d", decl.Type, rank)
	}
}

func echeanceLabel(decl *dossier.Declaration) string {
	if decl.Corrective {
		return periodLabel(decl) + " (rectificative)"
	}
	return periodLabel(decl)
}

func periodLabel(decl *dossier.Declaration) string {
	switch decl.Regime {
	case dossier.RegimeMonthly:
		return fmt.Sprintf("%s %s", decl.Type, calendar.MonthLabel(decl.PeriodStart.Month(), decl.PeriodStart.Year()))
	case dossier.RegimeQuarterly:
		return fmt.Sprintf("%s %s", decl.Type, calendar.QuarterLabel(calendar.QuarterOf(decl.PeriodStart.Month()), decl.PeriodStart.Year()))
	case dossier.RegimeAnnual:
		return fmt.Sprintf("%s %s", decl.Type, calendar.FiscalYearLabel(decl.PeriodStart.Year()))
	}
	return string(decl.Type)
}
