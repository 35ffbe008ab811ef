package dossier

import "strings"

// ServiceType is the primary service line of a dossier.
type ServiceType string

const (
	ServiceBookkeeping ServiceType = "bookkeeping"
	ServiceTax         ServiceType = "tax"
	ServicePayroll     ServiceType = "payroll"
	ServiceLegal       ServiceType = "legal"
	ServiceAudit       ServiceType = "audit"
	ServiceAdvisory    ServiceType = "advisory"
	ServiceOther       ServiceType = "other"
)

// AllServiceTypes lists every service type in display order.
var AllServiceTypes = []ServiceType{
	ServiceBookkeeping, ServiceTax, ServicePayroll, ServiceLegal,
	ServiceAudit, ServiceAdvisory, ServiceOther,
}

func (s ServiceType) String() string { return string(s) }

func (s ServiceType) IsValid() bool {
	switch s {
	case ServiceBookkeeping, ServiceTax, ServicePayroll, ServiceLegal,
		ServiceAudit, ServiceAdvisory, ServiceOther:
		return true
	}
	return false
}

// ParseServiceType maps raw input onto a ServiceType.  Unknown values map to
// ServiceOther with ok=false so onboarding never fails on a service label.
func ParseServiceType(raw string) (ServiceType, bool) {
	s := ServiceType(strings.ToLower(strings.TrimSpace(raw)))
	if s.IsValid() {
		return s, true
	}
	return ServiceOther, false
}

// LegalForm is the legal status of the client entity.  Any string is
// accepted; Class decides which declaration family applies.
type LegalForm string

const (
	FormSARL                    LegalForm = "SARL"
	FormEURL                    LegalForm = "EURL"
	FormSAS                     LegalForm = "SAS"
	FormSASU                    LegalForm = "SASU"
	FormSA                      LegalForm = "SA"
	FormEI                      LegalForm = "EI"
	FormEIRL                    LegalForm = "EIRL"
	FormMicroEntreprise         LegalForm = "MICRO_ENTREPRISE"
	FormMicroEntrepriseExoneree LegalForm = "MICRO_ENTREPRISE_EXONEREE"
)

func (f LegalForm) String() string { return string(f) }

// Normalize upper-cases and trims the form.
func (f LegalForm) Normalize() LegalForm {
	return LegalForm(strings.ToUpper(strings.TrimSpace(string(f))))
}

// FormClass groups legal forms sharing one declaration regime.
type FormClass string

const (
	ClassCorporate      FormClass = "corporate"
	ClassSoleProprietor FormClass = "sole_proprietor"
	ClassMicro          FormClass = "micro"
	ClassMicroExempt    FormClass = "micro_exempt"
	ClassUnknown        FormClass = "unknown"
)

// Class returns the declaration family of the form.
func (f LegalForm) Class() FormClass {
	switch f.Normalize() {
	case FormSARL, FormEURL, FormSAS, FormSASU, FormSA:
		return ClassCorporate
	case FormEI, FormEIRL:
		return ClassSoleProprietor
	case FormMicroEntreprise:
		return ClassMicro
	case FormMicroEntrepriseExoneree:
		return ClassMicroExempt
	default:
		return ClassUnknown
	}
}

// PeriodCadence is the accounting period cadence of a dossier.
type PeriodCadence string

const (
	CadenceMonthly   PeriodCadence = "monthly"
	CadenceQuarterly PeriodCadence = "quarterly"
	CadenceAnnual    PeriodCadence = "annual"
)

func (c PeriodCadence) String() string { return string(c) }

func (c PeriodCadence) IsValid() bool {
	switch c {
	case CadenceMonthly, CadenceQuarterly, CadenceAnnual:
		return true
	}
	return false
}

// Status is the lifecycle state of a dossier.
type Status string

const (
	StatusNew        Status = "new"
	StatusInProgress Status = "in_progress"
	StatusWaiting    Status = "waiting"
	StatusDone       Status = "done"
	StatusArchived   Status = "archived"
)

func (s Status) String() string { return string(s) }

func (s Status) IsValid() bool {
	switch s {
	case StatusNew, StatusInProgress, StatusWaiting, StatusDone, StatusArchived:
		return true
	}
	return false
}

// IsOpen reports whether the dossier still takes part in periodic scans.
func (s Status) IsOpen() bool {
	switch s {
	case StatusNew, StatusInProgress, StatusWaiting:
		return true
	case StatusDone, StatusArchived:
		return false
	}
	return false
}

// Priority is the derived urgency of a dossier.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

func (p Priority) String() string { return string(p) }

func (p Priority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// Rank orders priorities, low being 0.
func (p Priority) Rank() int {
	switch p {
	case PriorityLow:
		return 0
	case PriorityNormal:
		return 1
	case PriorityHigh:
		return 2
	case PriorityUrgent:
		return 3
	}
	return 1
}

// EcheanceStatus is the completion state of an échéance.
type EcheanceStatus string

const (
	EcheanceTodo       EcheanceStatus = "todo"
	EcheanceInProgress EcheanceStatus = "in_progress"
	EcheanceDone       EcheanceStatus = "done"
	EcheanceOverdue    EcheanceStatus = "overdue"
)

func (s EcheanceStatus) String() string { return string(s) }

func (s EcheanceStatus) IsValid() bool {
	switch s {
	case EcheanceTodo, EcheanceInProgress, EcheanceDone, EcheanceOverdue:
		return true
	}
	return false
}

// JournalCategory labels one ledger-entry checklist item.
type JournalCategory string

const (
	JournalBank     JournalCategory = "bank"
	JournalCash     JournalCategory = "cash"
	JournalMisc     JournalCategory = "misc"
	JournalPurchase JournalCategory = "purchases"
	JournalSales    JournalCategory = "sales"
	JournalPayroll  JournalCategory = "payroll"

	JournalDSN               JournalCategory = "dsn"
	JournalPayslips          JournalCategory = "payslips"
	JournalSocialCharges     JournalCategory = "social_charges_filing"
	JournalSocialDeclaration JournalCategory = "social_declaration"
	JournalCharges           JournalCategory = "charges"
)

func (j JournalCategory) String() string { return string(j) }

// DocumentCategory labels one required-document checklist item.
type DocumentCategory string

const (
	DocBankStatement     DocumentCategory = "bank_statement"
	DocPurchaseInvoice   DocumentCategory = "purchase_invoice"
	DocSalesInvoice      DocumentCategory = "sales_invoice"
	DocPayslip           DocumentCategory = "payslip"
	DocSocialDeclaration DocumentCategory = "social_declaration"
	DocContract          DocumentCategory = "contract"
	DocCorrespondence    DocumentCategory = "correspondence"
	DocVATReturn         DocumentCategory = "vat_return"
	DocTaxReturn         DocumentCategory = "tax_return"
	DocMisc              DocumentCategory = "misc"
)

func (c DocumentCategory) String() string { return string(c) }

// DeclarationType is the code of a tax declaration.
type DeclarationType string

const (
	DeclTVA           DeclarationType = "TVA"
	DeclIS            DeclarationType = "IS"
	DeclLiasseFiscale DeclarationType = "LIASSE_FISCALE"
	DeclCVAE          DeclarationType = "CVAE"
	DeclCFE           DeclarationType = "CFE"
	DeclBIC           DeclarationType = "BIC"
	DeclBNC           DeclarationType = "BNC"
	DeclMicroBIC      DeclarationType = "MICRO_BIC"
	DeclMicroBNC      DeclarationType = "MICRO_BNC"
	DeclCET           DeclarationType = "CET"
)

func (t DeclarationType) String() string { return string(t) }

func (t DeclarationType) IsValid() bool {
	switch t {
	case DeclTVA, DeclIS, DeclLiasseFiscale, DeclCVAE, DeclCFE,
		DeclBIC, DeclBNC, DeclMicroBIC, DeclMicroBNC, DeclCET:
		return true
	}
	return false
}

// Regime is the recurrence of an obligation.
type Regime string

const (
	RegimeMonthly   Regime = "monthly"
	RegimeQuarterly Regime = "quarterly"
	RegimeAnnual    Regime = "annual"
)

func (r Regime) String() string { return string(r) }

func (r Regime) IsValid() bool {
	switch r {
	case RegimeMonthly, RegimeQuarterly, RegimeAnnual:
		return true
	}
	return false
}

// PeriodsPerYear returns 12, 4 or 1.
func (r Regime) PeriodsPerYear() int {
	switch r {
	case RegimeMonthly:
		return 12
	case RegimeQuarterly:
		return 4
	case RegimeAnnual:
		return 1
	}
	return 0
}

// DeclarationStatus is the filing workflow state of a declaration.
type DeclarationStatus string

const (
	DeclarationTodo       DeclarationStatus = "todo"
	DeclarationInProgress DeclarationStatus = "in_progress"
	DeclarationReady      DeclarationStatus = "ready"
	DeclarationFiled      DeclarationStatus = "filed"
	DeclarationValidated  DeclarationStatus = "validated"
)

func (s DeclarationStatus) String() string { return string(s) }

func (s DeclarationStatus) IsValid() bool {
	switch s {
	case DeclarationTodo, DeclarationInProgress, DeclarationReady, DeclarationFiled, DeclarationValidated:
		return true
	}
	return false
}

// IsDone reports whether the declaration counts as completed.
func (s DeclarationStatus) IsDone() bool {
	switch s {
	case DeclarationFiled, DeclarationValidated:
		return true
	case DeclarationTodo, DeclarationInProgress, DeclarationReady:
		return false
	}
	return false
}

// AlertKind classifies alerts.
type AlertKind string

const (
	AlertOverdue             AlertKind = "overdue"
	AlertDeadlineApproaching AlertKind = "deadline_approaching"
	AlertDocumentMissing     AlertKind = "document_missing"
	AlertActionRequired      AlertKind = "action_required"
	AlertReminder            AlertKind = "reminder"
)

func (k AlertKind) String() string { return string(k) }

func (k AlertKind) IsValid() bool {
	switch k {
	case AlertOverdue, AlertDeadlineApproaching, AlertDocumentMissing, AlertActionRequired, AlertReminder:
		return true
	}
	return false
}

// Severity grades an alert.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityUrgent  Severity = "urgent"
)

func (s Severity) String() string { return string(s) }

func (s Severity) IsValid() bool {
	switch s {
	case SeverityInfo, SeverityWarning, SeverityUrgent:
		return true
	}
	return false
}
