package obligation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/dossier-engine/internal/domain/dossier"
	apperrors "github.com/turtacn/dossier-engine/pkg/errors"
)

var now = time.Date(2025, 1, 6, 8, 30, 0, 0, time.UTC)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func newDossier(t *testing.T, service dossier.ServiceType, form dossier.LegalForm) *dossier.Dossier {
	t.Helper()
	d, err := dossier.NewDossier(dossier.NewDossierParams{
		TenantID:   "cabinet-1",
		ClientName: "Client",
		Service:    service,
		LegalForm:  form,
		FiscalYear: 2025,
	}, now)
	require.NoError(t, err)
	return d
}

func generate(t *testing.T, g *Generator, d *dossier.Dossier, year int) *GeneratedSet {
	t.Helper()
	set, err := g.Generate(d, year, now)
	require.NoError(t, err)
	set.ApplyTo(d)
	return set
}

func TestGenerate_BookkeepingYear(t *testing.T) {
	d := newDossier(t, dossier.ServiceBookkeeping, dossier.FormSARL)
	set := generate(t, NewGenerator(nil), d, 2025)

	require.Len(t, set.Echeances, 12)
	assert.Len(t, set.Entries, 12*6)
	assert.Len(t, set.Documents, 12*3)
	assert.Empty(t, set.Declarations)

	for _, e := range set.Echeances {
		entries := d.EntriesOf(e.ID)
		docs := d.DocumentsOf(e.ID)
		require.Len(t, entries, 6, e.PeriodLabel)
		require.Len(t, docs, 3, e.PeriodLabel)

		journals := make([]dossier.JournalCategory, 0, 6)
		for _, l := range entries {
			journals = append(journals, l.Journal)
			assert.False(t, l.Done)
			assert.Equal(t, e.Month, l.Month)
		}
		assert.ElementsMatch(t, []dossier.JournalCategory{
			dossier.JournalBank, dossier.JournalCash, dossier.JournalMisc,
			dossier.JournalPurchase, dossier.JournalSales, dossier.JournalPayroll,
		}, journals)

		categories := make([]dossier.DocumentCategory, 0, 3)
		for _, doc := range docs {
			categories = append(categories, doc.Category)
			assert.True(t, doc.Applicable)
			assert.False(t, doc.Provided)
		}
		assert.ElementsMatch(t, []dossier.DocumentCategory{
			dossier.DocBankStatement, dossier.DocPurchaseInvoice, dossier.DocSalesInvoice,
		}, categories)

		assert.Equal(t, dossier.EcheanceTodo, e.Status)
		assert.NotEqual(t, time.Saturday, e.DueDate.Weekday())
		assert.NotEqual(t, time.Sunday, e.DueDate.Weekday())
	}

	march := set.Echeances[2]
	assert.Equal(t, time.March, march.Month)
	assert.Equal(t, "March 2025", march.PeriodLabel)
	assert.Equal(t, day(2025, 4, 10), march.DueDate)
	assert.Equal(t, time.Thursday, march.DueDate.Weekday())

	december := set.Echeances[11]
	assert.Equal(t, day(2026, 1, 12), december.DueDate, "2026-01-10 is a Saturday")
}

func TestGenerate_WeekendRollForward(t *testing.T) {
	d := newDossier(t, dossier.ServiceBookkeeping, "")
	set := generate(t, NewGenerator(nil), d, 2025)

	for _, e := range set.Echeances {
		y, m := e.Year, e.Month+1
		if m > time.December {
			y, m = y+1, time.January
		}
		naive := day(y, m, 10)
		switch naive.Weekday() {
		case time.Saturday:
			assert.Equal(t, naive.AddDate(0, 0, 2), e.DueDate, e.PeriodLabel)
		case time.Sunday:
			assert.Equal(t, naive.AddDate(0, 0, 1), e.DueDate, e.PeriodLabel)
		default:
			assert.Equal(t, naive, e.DueDate, e.PeriodLabel)
		}
	}
}

func TestGenerate_Payroll(t *testing.T) {
	d := newDossier(t, dossier.ServicePayroll, dossier.FormSAS)
	set := generate(t, NewGenerator(nil), d, 2025)

	assert.Len(t, set.Echeances, 12)
	assert.Len(t, set.Entries, 12*5)
	assert.Len(t, set.Documents, 12*2)
	// 2025-04-05 is a Saturday
	assert.Equal(t, day(2025, 4, 7), set.Echeances[2].DueDate)
}

func TestGenerate_CadenceKeepsMonthlyEcheances(t *testing.T) {
	for _, cadence := range []dossier.PeriodCadence{dossier.CadenceQuarterly, dossier.CadenceAnnual} {
		t.Run(string(cadence), func(t *testing.T) {
			d := newDossier(t, dossier.ServiceBookkeeping, dossier.FormSARL)
			d.Cadence = cadence
			set := generate(t, NewGenerator(nil), d, 2025)

			require.Len(t, set.Echeances, 12)
			assert.Equal(t, "January 2025", set.Echeances[0].PeriodLabel)
			assert.Equal(t, time.January, set.Echeances[0].Month)
			assert.Equal(t, day(2025, 2, 10), set.Echeances[0].DueDate)
			assert.Len(t, set.Entries, 12*6)
		})
	}
}

func TestGenerate_Idempotent(t *testing.T) {
	g := NewGenerator(nil)
	for _, service := range []dossier.ServiceType{dossier.ServiceBookkeeping, dossier.ServicePayroll, dossier.ServiceTax} {
		t.Run(string(service), func(t *testing.T) {
			d := newDossier(t, service, dossier.FormSARL)
			first := generate(t, g, d, 2025)
			require.False(t, first.Empty())

			second := generate(t, g, d, 2025)
			assert.True(t, second.Empty(), second.Summary())
			assert.Equal(t, first.Count(), second.Skipped)

			seen := map[string]bool{}
			for _, e := range d.Echeances {
				assert.False(t, seen[e.Key()], "duplicate echeance %s", e.Key())
				seen[e.Key()] = true
			}
		})
	}
}

func TestGenerate_FillsMissingChildrenOfExistingEcheance(t *testing.T) {
	g := NewGenerator(nil)
	d := newDossier(t, dossier.ServiceBookkeeping, dossier.FormSARL)
	generate(t, g, d, 2025)

	// drop the cash entry of January
	jan := d.Echeances[0]
	kept := d.Entries[:0]
	for _, l := range d.Entries {
		if l.EcheanceID == jan.ID && l.Journal == dossier.JournalCash {
			continue
		}
		kept = append(kept, l)
	}
	d.Entries = kept

	set := generate(t, g, d, 2025)
	assert.Empty(t, set.Echeances)
	require.Len(t, set.Entries, 1)
	assert.Equal(t, jan.ID, set.Entries[0].EcheanceID)
	assert.Equal(t, dossier.JournalCash, set.Entries[0].Journal)
}

func TestGenerate_NextYearAddsRows(t *testing.T) {
	g := NewGenerator(nil)
	d := newDossier(t, dossier.ServiceBookkeeping, dossier.FormSARL)
	generate(t, g, d, 2025)
	set := generate(t, g, d, 2026)
	assert.Len(t, set.Echeances, 12)
	assert.Len(t, d.Echeances, 24)
}

func findDecl(set *GeneratedSet, t dossier.DeclarationType, fiscalYear int, month time.Month) *dossier.Declaration {
	for _, decl := range set.Declarations {
		if decl.Type == t && decl.PeriodStart.Year() == fiscalYear && decl.PeriodStart.Month() == month {
			return decl
		}
	}
	return nil
}

func TestGenerate_TaxLimitedLiabilityCompany(t *testing.T) {
	d := newDossier(t, dossier.ServiceTax, dossier.FormSARL)
	set := generate(t, NewGenerator(nil), d, 2025)

	vat := 0
	for _, decl := range set.Declarations {
		if decl.Type == dossier.DeclTVA {
			vat++
			assert.Equal(t, dossier.RegimeMonthly, decl.Regime)
			assert.Equal(t, 15, decl.DueDate.Day())
			assert.Equal(t, "3310-CA3", decl.Form)
		}
		assert.Equal(t, dossier.DeclarationTodo, decl.Status)
	}
	assert.Equal(t, 12, vat)

	jan := findDecl(set, dossier.DeclTVA, 2025, time.January)
	require.NotNil(t, jan)
	assert.Equal(t, day(2025, 2, 15), jan.DueDate)
	assert.Equal(t, day(2025, 1, 31), jan.PeriodEnd)
	assert.Equal(t, "Déclaration de TVA - January 2025", jan.Description)

	is2024 := findDecl(set, dossier.DeclIS, 2024, time.January)
	require.NotNil(t, is2024, "prior-year corporate income tax")
	assert.Equal(t, day(2025, 4, 30), is2024.DueDate)
	assert.Equal(t, day(2024, 12, 31), is2024.PeriodEnd)
	assert.Equal(t, "2065", is2024.Form)

	liasse2024 := findDecl(set, dossier.DeclLiasseFiscale, 2024, time.January)
	require.NotNil(t, liasse2024, "prior-year tax return bundle")
	assert.Equal(t, day(2025, 4, 30), liasse2024.DueDate)

	cfe := findDecl(set, dossier.DeclCFE, 2025, time.January)
	require.NotNil(t, cfe)
	assert.Equal(t, day(2025, 12, 15), cfe.DueDate)

	cvae := findDecl(set, dossier.DeclCVAE, 2025, time.January)
	require.NotNil(t, cvae)
	assert.Equal(t, day(2025, 5, 31), cvae.DueDate)

	is2025 := findDecl(set, dossier.DeclIS, 2025, time.January)
	require.NotNil(t, is2025)
	assert.Equal(t, day(2026, 4, 30), is2025.DueDate)

	assert.Len(t, set.Declarations, 12+4+2)
	assert.False(t, set.FallbackLegalForm)
}

func TestGenerate_TaxDerivesOneEcheancePerDeclaration(t *testing.T) {
	d := newDossier(t, dossier.ServiceTax, dossier.FormSARL)
	set := generate(t, NewGenerator(nil), d, 2025)

	require.Len(t, set.Echeances, len(set.Declarations))
	for _, decl := range set.Declarations {
		e := d.EcheanceForDeclaration(decl.ID)
		require.NotNil(t, e, decl.Description)
		assert.Equal(t, decl.DueDate, e.DueDate)
		assert.Equal(t, string(decl.Type), e.Category)
	}
	jan := findDecl(set, dossier.DeclTVA, 2025, time.January)
	assert.Equal(t, "TVA January 2025", d.EcheanceForDeclaration(jan.ID).PeriodLabel)
	is2024 := findDecl(set, dossier.DeclIS, 2024, time.January)
	assert.Equal(t, "IS Exercice 2024", d.EcheanceForDeclaration(is2024.ID).PeriodLabel)
	assert.Empty(t, set.Entries)
}

func TestGenerate_TaxByLegalForm(t *testing.T) {
	cases := []struct {
		name     string
		form     dossier.LegalForm
		want     map[dossier.DeclarationType]int
		fallback bool
	}{
		{
			name: "sole proprietor",
			form: dossier.FormEI,
			want: map[dossier.DeclarationType]int{dossier.DeclTVA: 12, dossier.DeclBIC: 1, dossier.DeclCFE: 1},
		},
		{
			name: "micro enterprise",
			form: dossier.FormMicroEntreprise,
			want: map[dossier.DeclarationType]int{dossier.DeclMicroBIC: 4, dossier.DeclCFE: 1},
		},
		{
			name: "sasu lags like other corporate forms",
			form: dossier.FormSASU,
			want: map[dossier.DeclarationType]int{
				dossier.DeclTVA: 12, dossier.DeclIS: 2, dossier.DeclLiasseFiscale: 2,
				dossier.DeclCVAE: 1, dossier.DeclCFE: 1,
			},
		},
		{
			name:     "unknown form falls back",
			form:     "SCI",
			want:     map[dossier.DeclarationType]int{dossier.DeclTVA: 12, dossier.DeclCFE: 1},
			fallback: true,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := newDossier(t, dossier.ServiceTax, tc.form)
			set := generate(t, NewGenerator(nil), d, 2025)

			got := map[dossier.DeclarationType]int{}
			for _, decl := range set.Declarations {
				got[decl.Type]++
			}
			assert.Equal(t, tc.want, got)
			assert.Equal(t, tc.fallback, set.FallbackLegalForm)
		})
	}
}

func TestGenerate_MicroQuarterlyDueDates(t *testing.T) {
	d := newDossier(t, dossier.ServiceTax, dossier.FormMicroEntreprise)
	set := generate(t, NewGenerator(nil), d, 2025)

	q1 := findDecl(set, dossier.DeclMicroBIC, 2025, time.January)
	require.NotNil(t, q1)
	assert.Equal(t, day(2025, 4, 30), q1.DueDate)
	assert.Equal(t, day(2025, 3, 31), q1.PeriodEnd)
	assert.Equal(t, "Déclaration Micro-entreprise BIC - T1 2025", q1.Description)

	q4 := findDecl(set, dossier.DeclMicroBIC, 2025, time.October)
	require.NotNil(t, q4)
	assert.Equal(t, day(2026, 1, 30), q4.DueDate)
}

func TestGenerate_DeclarationShiftOption(t *testing.T) {
	d := newDossier(t, dossier.ServiceTax, dossier.FormSARL)
	set := generate(t, NewGenerator(DefaultCatalog(WithDeclarationShift(true))), d, 2025)

	jan := findDecl(set, dossier.DeclTVA, 2025, time.January)
	assert.Equal(t, day(2025, 2, 17), jan.DueDate, "2025-02-15 is a Saturday")
	cvae := findDecl(set, dossier.DeclCVAE, 2025, time.January)
	assert.Equal(t, day(2025, 6, 2), cvae.DueDate)
}

func TestGenerate_PriorYearLagOverride(t *testing.T) {
	g := NewGenerator(DefaultCatalog(
		WithPriorYearLag(dossier.FormEI, dossier.DeclBIC),
		WithPriorYearLag(dossier.FormSARL),
	))

	ei := newDossier(t, dossier.ServiceTax, dossier.FormEI)
	set := generate(t, g, ei, 2025)
	bic2024 := findDecl(set, dossier.DeclBIC, 2024, time.January)
	require.NotNil(t, bic2024)
	assert.Equal(t, day(2025, 5, 31), bic2024.DueDate)

	sarl := newDossier(t, dossier.ServiceTax, dossier.FormSARL)
	set = generate(t, g, sarl, 2025)
	assert.Nil(t, findDecl(set, dossier.DeclIS, 2024, time.January))
}

func TestGenerate_OnDemandServicesStartEmpty(t *testing.T) {
	for _, s := range []dossier.ServiceType{dossier.ServiceLegal, dossier.ServiceAudit, dossier.ServiceAdvisory, dossier.ServiceOther} {
		d := newDossier(t, s, dossier.FormSARL)
		set := generate(t, NewGenerator(nil), d, 2025)
		assert.True(t, set.Empty(), string(s))
	}
}

func TestGenerate_UnknownServiceFallsBack(t *testing.T) {
	d := newDossier(t, dossier.ServiceBookkeeping, dossier.FormSARL)
	d.Service = "astrology"
	set, err := NewGenerator(nil).Generate(d, 2025, now)
	require.NoError(t, err)
	assert.True(t, set.FallbackService)
	assert.True(t, set.Empty())
}

func TestGenerate_RejectsBadYear(t *testing.T) {
	d := newDossier(t, dossier.ServiceBookkeeping, dossier.FormSARL)
	_, err := NewGenerator(nil).Generate(d, 0, now)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeInvalidReferenceYear))
}

func TestGenerateForPeriod(t *testing.T) {
	g := NewGenerator(nil)
	d := newDossier(t, dossier.ServiceLegal, dossier.FormSARL)

	set, err := g.GenerateForPeriod(d, "March 2025", now)
	require.NoError(t, err)
	set.ApplyTo(d)
	require.Len(t, set.Echeances, 1)
	assert.Equal(t, day(2025, 4, 21), set.Echeances[0].DueDate, "2025-04-20 is a Sunday")
	assert.Len(t, set.Documents, 2)
	assert.Empty(t, set.Entries)

	again, err := g.GenerateForPeriod(d, "mars 2025", now)
	require.NoError(t, err)
	assert.True(t, again.Empty())
}

func TestGenerateForPeriod_AuditDayClampsInFebruary(t *testing.T) {
	d := newDossier(t, dossier.ServiceAudit, dossier.FormSARL)
	set, err := NewGenerator(nil).GenerateForPeriod(d, "January 2025", now)
	require.NoError(t, err)
	// day 30 in February 2025 clamps to the 28th, a Friday
	assert.Equal(t, day(2025, 2, 28), set.Echeances[0].DueDate)
}

func TestGenerateForPeriod_InvalidLabel(t *testing.T) {
	d := newDossier(t, dossier.ServiceBookkeeping, dossier.FormSARL)
	set, err := NewGenerator(nil).GenerateForPeriod(d, "Smarch 2025", now)
	require.Error(t, err)
	assert.Nil(t, set)
	assert.ErrorIs(t, err, ErrInvalidPeriodLabel)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeInvalidPeriodLabel))
}

func TestPeriodDueDate(t *testing.T) {
	g := NewGenerator(nil)
	cases := []struct {
		service dossier.ServiceType
		label   string
		want    time.Time
	}{
		{dossier.ServiceBookkeeping, "January 2025", day(2025, 2, 10)},
		// the 5th of April 2025 is a Saturday
		{dossier.ServicePayroll, "mars 2025", day(2025, 4, 7)},
		{dossier.ServiceLegal, "2025-03", day(2025, 4, 21)},
		{dossier.ServiceBookkeeping, "12/2025", day(2026, 1, 12)},
	}
	for _, tc := range cases {
		t.Run(string(tc.service)+" "+tc.label, func(t *testing.T) {
			due, err := g.PeriodDueDate(tc.service, tc.label)
			require.NoError(t, err)
			assert.Equal(t, tc.want, due)
		})
	}

	_, err := g.PeriodDueDate(dossier.ServiceBookkeeping, "Smarch 2025")
	assert.ErrorIs(t, err, ErrInvalidPeriodLabel)
}

func TestDeriveEcheances_Correctives(t *testing.T) {
	g := NewGenerator(nil)
	d := newDossier(t, dossier.ServiceTax, dossier.FormSARL)
	generate(t, g, d, 2025)
	before := len(d.Echeances)

	origin := d.Declarations[0]
	require.NoError(t, origin.TransitionTo(dossier.DeclarationFiled, now))
	first, err := dossier.NewCorrective(origin, now)
	require.NoError(t, err)
	d.Declarations = append(d.Declarations, first)

	set := g.DeriveEcheances(d, now)
	require.Len(t, set.Echeances, 1)
	set.ApplyTo(d)
	e := d.EcheanceForDeclaration(first.ID)
	require.NotNil(t, e)
	assert.Equal(t, string(origin.Type)+"_RECT", e.Category)
	assert.Equal(t, origin.DueDate, e.DueDate)
	assert.Contains(t, e.PeriodLabel, "(rectificative)")
	assert.Equal(t, dossier.EcheanceTodo, e.Status)

	require.NoError(t, first.TransitionTo(dossier.DeclarationFiled, now))
	second, err := dossier.NewCorrective(first, now)
	require.NoError(t, err)
	d.Declarations = append(d.Declarations, second)
	set = g.DeriveEcheances(d, now)
	require.Len(t, set.Echeances, 1)
	assert.Equal(t, string(origin.Type)+"_RECT2", set.Echeances[0].Category)
	set.ApplyTo(d)

	assert.True(t, g.DeriveEcheances(d, now).Empty())
	_, total, basis := d.Completion()
	assert.Equal(t, dossier.BasisEcheances, basis)
	assert.Equal(t, before+2, total)
}
