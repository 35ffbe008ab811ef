package errors

import (
	"net/http"
	"strings"
)

// ErrorCode is a string representation of a specific error condition.
// Codes are prefixed with the module that owns them (COMMON, DOS, OBL, ALR).
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// Common Error Codes
const (
	ErrCodeInternal           ErrorCode = "COMMON_001"
	ErrCodeBadRequest         ErrorCode = "COMMON_002"
	ErrCodeNotFound           ErrorCode = "COMMON_005"
	ErrCodeConflict           ErrorCode = "COMMON_006"
	ErrCodeServiceUnavailable ErrorCode = "COMMON_008"
	ErrCodeTimeout            ErrorCode = "COMMON_009"
	ErrCodeValidation         ErrorCode = "COMMON_010"
	ErrCodeSerialization      ErrorCode = "COMMON_011"
	ErrCodeDatabaseError      ErrorCode = "COMMON_012"
	ErrCodeCacheError         ErrorCode = "COMMON_013"
	ErrCodeMessagingError     ErrorCode = "COMMON_014"
	ErrCodeLockNotAcquired    ErrorCode = "COMMON_015"
)

// Short aliases used at call sites.
const (
	CodeOK           = ErrorCode("OK")
	CodeUnknown      = ErrorCode("UNKNOWN")
	CodeInternal     = ErrCodeInternal
	CodeInvalidParam = ErrCodeBadRequest
	CodeNotFound     = ErrCodeNotFound
	CodeConflict     = ErrCodeConflict
	CodeValidation   = ErrCodeValidation

	CodeDBConnectionError = ErrCodeDatabaseError
	CodeDBQueryError      = ErrCodeDatabaseError
	CodeCacheError        = ErrCodeCacheError
	CodeMessagingError    = ErrCodeMessagingError
	CodeLockNotAcquired   = ErrCodeLockNotAcquired
)

// Dossier Module Error Codes
const (
	ErrCodeDossierNotFound          ErrorCode = "DOS_001"
	ErrCodeDossierReferenceTaken    ErrorCode = "DOS_002"
	ErrCodeDossierIllegalTransition ErrorCode = "DOS_003"
	ErrCodeDossierNoObligations     ErrorCode = "DOS_004"
	ErrCodeDossierArchived          ErrorCode = "DOS_005"
	ErrCodeDossierInvalidService    ErrorCode = "DOS_006"
)

// Obligation Module Error Codes
const (
	ErrCodeInvalidPeriodLabel    ErrorCode = "OBL_001"
	ErrCodeEcheanceNotFound      ErrorCode = "OBL_002"
	ErrCodeEntryNotFound         ErrorCode = "OBL_003"
	ErrCodeDocumentNotFound      ErrorCode = "OBL_004"
	ErrCodeDeclarationNotFound   ErrorCode = "OBL_005"
	ErrCodeDeclarationTransition ErrorCode = "OBL_006"
	ErrCodeInvalidReferenceYear  ErrorCode = "OBL_007"
)

// Alert Module Error Codes
const (
	ErrCodeAlertNotFound        ErrorCode = "ALR_001"
	ErrCodeAlertAlreadyResolved ErrorCode = "ALR_002"
)

// ErrorCodeHTTPStatus maps codes to the status the ops surface answers with.
var ErrorCodeHTTPStatus = map[ErrorCode]int{
	ErrCodeInternal:           http.StatusInternalServerError,
	ErrCodeBadRequest:         http.StatusBadRequest,
	ErrCodeNotFound:           http.StatusNotFound,
	ErrCodeConflict:           http.StatusConflict,
	ErrCodeServiceUnavailable: http.StatusServiceUnavailable,
	ErrCodeTimeout:            http.StatusGatewayTimeout,
	ErrCodeValidation:         http.StatusBadRequest,
	ErrCodeSerialization:      http.StatusInternalServerError,
	ErrCodeDatabaseError:      http.StatusInternalServerError,
	ErrCodeCacheError:         http.StatusInternalServerError,
	ErrCodeMessagingError:     http.StatusBadGateway,
	ErrCodeLockNotAcquired:    http.StatusConflict,

	ErrCodeDossierNotFound:          http.StatusNotFound,
	ErrCodeDossierReferenceTaken:    http.StatusConflict,
	ErrCodeDossierIllegalTransition: http.StatusConflict,
	ErrCodeDossierNoObligations:     http.StatusUnprocessableEntity,
	ErrCodeDossierArchived:          http.StatusConflict,
	ErrCodeDossierInvalidService:    http.StatusBadRequest,

	ErrCodeInvalidPeriodLabel:    http.StatusBadRequest,
	ErrCodeEcheanceNotFound:      http.StatusNotFound,
	ErrCodeEntryNotFound:         http.StatusNotFound,
	ErrCodeDocumentNotFound:      http.StatusNotFound,
	ErrCodeDeclarationNotFound:   http.StatusNotFound,
	ErrCodeDeclarationTransition: http.StatusConflict,
	ErrCodeInvalidReferenceYear:  http.StatusBadRequest,

	ErrCodeAlertNotFound:        http.StatusNotFound,
	ErrCodeAlertAlreadyResolved: http.StatusConflict,
}

// ErrorCodeMessage holds a default message per code.
var ErrorCodeMessage = map[ErrorCode]string{
	ErrCodeInternal:           "internal error",
	ErrCodeBadRequest:         "bad request",
	ErrCodeNotFound:           "resource not found",
	ErrCodeConflict:           "resource conflict",
	ErrCodeServiceUnavailable: "service unavailable",
	ErrCodeTimeout:            "operation timed out",
	ErrCodeValidation:         "validation failed",
	ErrCodeSerialization:      "serialization failed",
	ErrCodeDatabaseError:      "database error",
	ErrCodeCacheError:         "cache error",
	ErrCodeMessagingError:     "messaging error",
	ErrCodeLockNotAcquired:    "lock not acquired",

	ErrCodeDossierNotFound:          "dossier not found",
	ErrCodeDossierReferenceTaken:    "dossier reference already used",
	ErrCodeDossierIllegalTransition: "illegal dossier status transition",
	ErrCodeDossierNoObligations:     "dossier has no obligations",
	ErrCodeDossierArchived:          "dossier is archived",
	ErrCodeDossierInvalidService:    "invalid service type",

	ErrCodeInvalidPeriodLabel:    "invalid period label",
	ErrCodeEcheanceNotFound:      "echeance not found",
	ErrCodeEntryNotFound:         "ledger entry not found",
	ErrCodeDocumentNotFound:      "required document not found",
	ErrCodeDeclarationNotFound:   "declaration not found",
	ErrCodeDeclarationTransition: "illegal declaration status transition",
	ErrCodeInvalidReferenceYear:  "invalid reference year",

	ErrCodeAlertNotFound:        "alert not found",
	ErrCodeAlertAlreadyResolved: "alert already resolved",
}

// HTTPStatusForCode returns the HTTP status code for an ErrorCode.
func HTTPStatusForCode(code ErrorCode) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DefaultMessageForCode returns the default message for an ErrorCode.
func DefaultMessageForCode(code ErrorCode) string {
	if msg, ok := ErrorCodeMessage[code]; ok {
		return msg
	}
	return "unknown error"
}

// IsClientError returns true if the ErrorCode corresponds to a 4xx HTTP status.
func IsClientError(code ErrorCode) bool {
	status := HTTPStatusForCode(code)
	return status >= 400 && status < 500
}

// IsServerError returns true if the ErrorCode corresponds to a 5xx HTTP status.
func IsServerError(code ErrorCode) bool {
	status := HTTPStatusForCode(code)
	return status >= 500 && status < 600
}

// ModuleForCode returns the module prefix of an ErrorCode.
func ModuleForCode(code ErrorCode) string {
	parts := strings.Split(string(code), "_")
	if len(parts) > 1 && parts[0] != "" {
		return parts[0]
	}
	return "UNKNOWN"
}
