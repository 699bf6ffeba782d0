package engine

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"recordgrid/internal/grid"
	"recordgrid/internal/store"
	"recordgrid/internal/views"
	"recordgrid/internal/workspace"
)

type AppError struct {
	Code    string        `json:"code"`
	Status  int           `json:"-"`
	Message string        `json:"message"`
	Details []ErrorDetail `json:"details,omitempty"`
}

type ErrorDetail struct {
	Row     string `json:"row,omitempty"`
	Field   string `json:"field,omitempty"`
	Rule    string `json:"rule,omitempty"`
	Message string `json:"message"`
}

func (e *AppError) Error() string {
	return e.Message
}

type ErrorResponse struct {
	Error *AppError `json:"error"`
}

func NewAppError(code string, status int, msg string) *AppError {
	return &AppError{Code: code, Status: status, Message: msg}
}

func NotFoundError(kind, id string) *AppError {
	return &AppError{
		Code:    "NOT_FOUND",
		Status:  404,
		Message: fmt.Sprintf("%s %s not found", kind, id),
	}
}

func UnknownSchemaError(name string) *AppError {
	return &AppError{
		Code:    "UNKNOWN_SCHEMA",
		Status:  404,
		Message: fmt.Sprintf("Unknown schema: %s", name),
	}
}

func ValidationError(details []ErrorDetail) *AppError {
	return &AppError{
		Code:    "VALIDATION_FAILED",
		Status:  422,
		Message: "Validation failed",
		Details: details,
	}
}

func ConflictError(msg string) *AppError {
	return &AppError{Code: "CONFLICT", Status: 409, Message: msg}
}

func UnauthorizedError(msg string) *AppError {
	return &AppError{Code: "UNAUTHORIZED", Status: 401, Message: msg}
}

func ForbiddenError(msg string) *AppError {
	return &AppError{Code: "FORBIDDEN", Status: 403, Message: msg}
}

func InvalidPayloadError(msg string) *AppError {
	return &AppError{Code: "INVALID_PAYLOAD", Status: 400, Message: msg}
}

// domainErrors maps engine sentinels to their HTTP shape.
var domainErrors = []struct {
	err    error
	code   string
	status int
}{
	{views.ErrEmptyName, "EMPTY_NAME", 422},
	{views.ErrReservedName, "RESERVED_NAME", 422},
	{views.ErrNameConflict, "NAME_CONFLICT", 409},
	{views.ErrViewNotFound, "VIEW_NOT_FOUND", 404},
	{views.ErrDefaultReadOnly, "DEFAULT_READ_ONLY", 409},
	{views.ErrSwitchPending, "SWITCH_PENDING", 409},
	{views.ErrNoPendingSwitch, "NO_PENDING_SWITCH", 409},
	{views.ErrBadResolution, "INVALID_RESOLUTION", 400},
	{grid.ErrRowNotFound, "ROW_NOT_FOUND", 404},
	{grid.ErrUnknownField, "UNKNOWN_FIELD", 400},
	{grid.ErrAutoField, "AUTO_FIELD", 400},
	{grid.ErrInvalidOption, "INVALID_OPTION", 400},
	{grid.ErrNoActiveEdit, "NO_ACTIVE_EDIT", 409},
	{workspace.ErrUnknownAggregate, "UNKNOWN_AGGREGATE", 400},
	{workspace.ErrNothingToSave, "NOTHING_TO_SAVE", 409},
	{store.ErrUniqueViolation, "CONFLICT", 409},
}

// ToAppError converts err into an *AppError when it is a known domain
// error. It returns nil for anything else.
func ToAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	var verr *grid.ValidationError
	if errors.As(err, &verr) {
		return ValidationError(validationDetails(verr))
	}
	for _, d := range domainErrors {
		if errors.Is(err, d.err) {
			return &AppError{Code: d.code, Status: d.status, Message: err.Error()}
		}
	}
	return nil
}

// validationDetails flattens a ValidationError into one detail per missing
// field, ordered by row id.
func validationDetails(verr *grid.ValidationError) []ErrorDetail {
	ids := make([]string, 0, len(verr.Rows))
	for id := range verr.Rows {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var details []ErrorDetail
	for _, id := range ids {
		for _, field := range verr.Rows[id] {
			details = append(details, ErrorDetail{
				Row:     id,
				Field:   field,
				Rule:    "required",
				Message: fmt.Sprintf("%s is required", strings.TrimSpace(field)),
			})
		}
	}
	return details
}
