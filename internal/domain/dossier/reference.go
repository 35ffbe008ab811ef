package dossier

import (
	"fmt"
	"regexp"
)

// ReferencePrefix returns the reference prefix of a service line.
func ReferencePrefix(s ServiceType) string {
	switch s {
	case ServiceBookkeeping:
		return "COMPTA"
	case ServiceTax:
		return "FISCAL"
	case ServicePayroll:
		return "PAIE"
	case ServiceLegal:
		return "JURID"
	case ServiceAudit:
		return "AUDIT"
	case ServiceAdvisory:
		return "CONSEIL"
	case ServiceOther:
		return "AUTRE"
	}
	return "AUTRE"
}

// FormatReference renders PREFIX-YYYY-NNNN.
func FormatReference(prefix string, year, seq int) string {
	return fmt.Sprintf("%s-%04d-%04d", prefix, year, seq)
}

var referencePattern = regexp.MustCompile(`^[A-Z]{2,10}-\d{4}-\d{4,}$`)

// ValidReference reports whether ref has the PREFIX-YYYY-NNNN shape.
func ValidReference(ref string) bool {
	return referencePattern.MatchString(ref)
}
