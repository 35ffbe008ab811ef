// Package obligation expands a dossier into its periodic obligations.  The
// Catalog holds the mapping tables and is immutable once built; the
// Generator applies it to a loaded dossier.
package obligation

import (
	"strings"
	"time"

	"github.com/turtacn/dossier-engine/internal/domain/dossier"
)

// GenerationMode tells the generator which obligation family a service
// produces.
type GenerationMode string

const (
	// ModeEcheances produces one échéance per period with ledger entries
	// and required documents.
	ModeEcheances GenerationMode = "echeances"
	// ModeDeclarations produces tax declarations and their échéances.
	ModeDeclarations GenerationMode = "declarations"
	// ModeOnDemand produces nothing at creation; periods are added one by
	// one through GenerateForPeriod.
	ModeOnDemand GenerationMode = "on_demand"
)

// ServiceRule describes what a service line generates.
type ServiceRule struct {
	Service   dossier.ServiceType
	Mode      GenerationMode
	DueDay    int
	Journals  []dossier.JournalCategory
	Documents []dossier.DocumentCategory
}

// DeclarationRule describes one declaration of the legal-form table.
type DeclarationRule struct {
	Type        dossier.DeclarationType
	Regime      dossier.Regime
	Form        string
	Description string
	// DueDay is the day of the due month.
	DueDay int
	// DueMonth and DueYearOffset place annual declarations: the due date
	// is DueMonth/DueDay of fiscal year + DueYearOffset.  Monthly and
	// quarterly declarations fall due in the month after the period.
	DueMonth      time.Month
	DueYearOffset int
	// CalendarShift rolls the due date forward over weekends.
	CalendarShift bool
}

// Catalog is the immutable table set consumed by the Generator.
type Catalog struct {
	services     map[dossier.ServiceType]ServiceRule
	byClass      map[dossier.FormClass][]DeclarationRule
	universal    []DeclarationRule
	priorYearLag map[dossier.LegalForm][]dossier.DeclarationType
	lagByClass   map[dossier.FormClass][]dossier.DeclarationType
}

// Option adjusts a catalog under construction.
type Option func(*Catalog)

var (
	ruleTVA = DeclarationRule{
		Type: dossier.DeclTVA, Regime: dossier.RegimeMonthly, Form: "3310-CA3",
		Description: "Déclaration de TVA", DueDay: 15,
	}
	ruleIS = DeclarationRule{
		Type: dossier.DeclIS, Regime: dossier.RegimeAnnual, Form: "2065",
		Description: "Impôt sur les Sociétés", DueMonth: time.April, DueDay: 30, DueYearOffset: 1,
	}
	ruleLiasse = DeclarationRule{
		Type: dossier.DeclLiasseFiscale, Regime: dossier.RegimeAnnual, Form: "2050",
		Description: "Liasse fiscale", DueMonth: time.April, DueDay: 30, DueYearOffset: 1,
	}
	ruleCVAE = DeclarationRule{
		Type: dossier.DeclCVAE, Regime: dossier.RegimeAnnual, Form: "1330-CVAE",
		Description: "Cotisation sur la Valeur Ajoutée des Entreprises", DueMonth: time.May, DueDay: 31,
	}
	ruleBIC = DeclarationRule{
		Type: dossier.DeclBIC, Regime: dossier.RegimeAnnual, Form: "2031",
		Description: "Bénéfices Industriels et Commerciaux", DueMonth: time.May, DueDay: 31, DueYearOffset: 1,
	}
	ruleMicroBIC = DeclarationRule{
		Type: dossier.DeclMicroBIC, Regime: dossier.RegimeQuarterly, Form: "2042-C-PRO",
		Description: "Déclaration Micro-entreprise BIC", DueDay: 30,
	}
	ruleCFE = DeclarationRule{
		Type: dossier.DeclCFE, Regime: dossier.RegimeAnnual, Form: "1447-C",
		Description: "Cotisation Foncière des Entreprises", DueMonth: time.December, DueDay: 15,
	}
)

// DefaultCatalog returns the statutory tables.
func DefaultCatalog(opts ...Option) *Catalog {
	c := &Catalog{
		services: map[dossier.ServiceType]ServiceRule{
			dossier.ServiceBookkeeping: {
				Service: dossier.ServiceBookkeeping, Mode: ModeEcheances, DueDay: 10,
				Journals: []dossier.JournalCategory{
					dossier.JournalBank, dossier.JournalCash, dossier.JournalMisc,
					dossier.JournalPurchase, dossier.JournalSales, dossier.JournalPayroll,
				},
				Documents: []dossier.DocumentCategory{
					dossier.DocBankStatement, dossier.DocPurchaseInvoice, dossier.DocSalesInvoice,
				},
			},
			dossier.ServicePayroll: {
				Service: dossier.ServicePayroll, Mode: ModeEcheances, DueDay: 5,
				Journals: []dossier.JournalCategory{
					dossier.JournalDSN, dossier.JournalPayslips, dossier.JournalSocialCharges,
					dossier.JournalSocialDeclaration, dossier.JournalCharges,
				},
				Documents: []dossier.DocumentCategory{dossier.DocPayslip, dossier.DocSocialDeclaration},
			},
			dossier.ServiceTax: {
				Service: dossier.ServiceTax, Mode: ModeDeclarations, DueDay: 15,
				Documents: []dossier.DocumentCategory{dossier.DocVATReturn, dossier.DocTaxReturn},
			},
			dossier.ServiceLegal: {
				Service: dossier.ServiceLegal, Mode: ModeOnDemand, DueDay: 20,
				Documents: []dossier.DocumentCategory{dossier.DocContract, dossier.DocCorrespondence},
			},
			dossier.ServiceAudit: {
				Service: dossier.ServiceAudit, Mode: ModeOnDemand, DueDay: 30,
				Documents: []dossier.DocumentCategory{
					dossier.DocBankStatement, dossier.DocPurchaseInvoice, dossier.DocSalesInvoice,
				},
			},
			dossier.ServiceAdvisory: {
				Service: dossier.ServiceAdvisory, Mode: ModeOnDemand, DueDay: 15,
				Documents: []dossier.DocumentCategory{dossier.DocContract, dossier.DocCorrespondence},
			},
			dossier.ServiceOther: {
				Service: dossier.ServiceOther, Mode: ModeOnDemand, DueDay: 15,
				Documents: []dossier.DocumentCategory{dossier.DocMisc},
			},
		},
		byClass: map[dossier.FormClass][]DeclarationRule{
			dossier.ClassCorporate:      {ruleTVA, ruleIS, ruleLiasse, ruleCVAE},
			dossier.ClassSoleProprietor: {ruleTVA, ruleBIC},
			dossier.ClassMicro:          {ruleMicroBIC},
			dossier.ClassMicroExempt:    {ruleMicroBIC},
			dossier.ClassUnknown:        {ruleTVA},
		},
		universal:    []DeclarationRule{ruleCFE},
		priorYearLag: map[dossier.LegalForm][]dossier.DeclarationType{},
		lagByClass: map[dossier.FormClass][]dossier.DeclarationType{
			dossier.ClassCorporate: {dossier.DeclIS, dossier.DeclLiasseFiscale},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithDeclarationShift sets CalendarShift on every declaration rule.
func WithDeclarationShift(shift bool) Option {
	return func(c *Catalog) {
		for class, rules := range c.byClass {
			c.byClass[class] = shiftRules(rules, shift)
		}
		c.universal = shiftRules(c.universal, shift)
	}
}

func shiftRules(rules []DeclarationRule, shift bool) []DeclarationRule {
	out := make([]DeclarationRule, len(rules))
	for i, r := range rules {
		r.CalendarShift = shift
		out[i] = r
	}
	return out
}

// WithPriorYearLag sets the declaration types regenerated for the previous
// fiscal year for one legal form.  An empty list disables the lag for it.
func WithPriorYearLag(form dossier.LegalForm, types ...dossier.DeclarationType) Option {
	return func(c *Catalog) {
		c.priorYearLag[form.Normalize()] = append([]dossier.DeclarationType(nil), types...)
	}
}

// WithServiceRule replaces the rule of one service line.
func WithServiceRule(rule ServiceRule) Option {
	return func(c *Catalog) {
		c.services[rule.Service] = rule
	}
}

// WithDeclarationRules replaces the declaration list of a form class.
func WithDeclarationRules(class dossier.FormClass, rules ...DeclarationRule) Option {
	return func(c *Catalog) {
		c.byClass[class] = append([]DeclarationRule(nil), rules...)
	}
}

// FromConfig turns string settings into options.  Unknown declaration codes
// are ignored.
func FromConfig(shiftDeclarations bool, lag map[string][]string) []Option {
	opts := []Option{WithDeclarationShift(shiftDeclarations)}
	for form, codes := range lag {
		var types []dossier.DeclarationType
		for _, code := range codes {
			t := dossier.DeclarationType(strings.ToUpper(strings.TrimSpace(code)))
			if t.IsValid() {
				types = append(types, t)
			}
		}
		opts = append(opts, WithPriorYearLag(dossier.LegalForm(form), types...))
	}
	return opts
}

// ServiceRule returns the rule of s.  Unknown services get the rule of
// ServiceOther and ok=false.
func (c *Catalog) ServiceRule(s dossier.ServiceType) (ServiceRule, bool) {
	if r, ok := c.services[s]; ok {
		return copyServiceRule(r), true
	}
	return copyServiceRule(c.services[dossier.ServiceOther]), false
}

func copyServiceRule(r ServiceRule) ServiceRule {
	r.Journals = append([]dossier.JournalCategory(nil), r.Journals...)
	r.Documents = append([]dossier.DocumentCategory(nil), r.Documents...)
	return r
}

// DeclarationsFor returns the declaration rules of a legal form, universal
// rules included.  known is false when the form fell back to the default
// set.
func (c *Catalog) DeclarationsFor(form dossier.LegalForm) (rules []DeclarationRule, known bool) {
	class := form.Class()
	rules = append(rules, c.byClass[class]...)
	rules = append(rules, c.universal...)
	return rules, class != dossier.ClassUnknown
}

// PriorYearRules returns the rules generated again for the previous fiscal
// year.  A per-form override wins over the class default.
func (c *Catalog) PriorYearRules(form dossier.LegalForm) []DeclarationRule {
	types, ok := c.priorYearLag[form.Normalize()]
	if !ok {
		types = c.lagByClass[form.Class()]
	}
	if len(types) == 0 {
		return nil
	}
	all, _ := c.DeclarationsFor(form)
	var out []DeclarationRule
	for _, t := range types {
		for _, r := range all {
			if r.Type == t && r.Regime == dossier.RegimeAnnual {
				out = append(out, r)
				break
			}
		}
	}
	return out
}
