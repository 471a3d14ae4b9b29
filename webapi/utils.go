package webapi

import (
	"errors"

	"github.com/finwire/backoffice/pkg/domain/ledger"
	"github.com/finwire/backoffice/pkg/domain/money"
	"github.com/finwire/backoffice/pkg/service/operation"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// Response defines the standard API response structure for success cases.
type Response struct {
	Status  int    `json:"status"`         // HTTP status code
	Message string `json:"message"`        // Human-readable explanation
	Data    any    `json:"data,omitempty"` // Response data
}

// ProblemDetails follows RFC 9457 Problem Details for HTTP APIs.
type ProblemDetails struct {
	Type     string `json:"type,omitempty"`     // A URI reference that identifies the problem type
	Title    string `json:"title"`              // Short, human-readable summary
	Status   int    `json:"status"`             // HTTP status code
	Detail   string `json:"detail,omitempty"`   // Human-readable explanation
	Instance string `json:"instance,omitempty"` // URI reference that identifies the specific occurrence
	Errors   any    `json:"errors,omitempty"`   // Optional: additional error details
}

// ErrorResponseJSON returns a response following RFC 9457 Problem Details.
func ErrorResponseJSON(
	c *fiber.Ctx,
	status int,
	title string,
	detail any,
) error {
	pd := ProblemDetails{
		Type:   "about:blank",
		Title:  title,
		Status: status,
	}
	if detail != nil {
		if s, ok := detail.(string); ok {
			pd.Detail = s
		} else {
			pd.Errors = detail
		}
	}
	pd.Instance = c.OriginalURL()

	return c.Status(status).JSON(pd, "application/problem+json")
}

// ErrorToStatusCode maps domain errors to appropriate HTTP status codes.
func ErrorToStatusCode(err error) int {
	switch {
	case errors.Is(err, ledger.ErrAccountNotFound),
		errors.Is(err, ledger.ErrOperationNotFound),
		errors.Is(err, ledger.ErrTransactionNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, money.ErrInvalidCurrencyCode),
		errors.Is(err, money.ErrTooManyDecimals):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, ledger.ErrCurrencyMismatch):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, ledger.ErrLimitExceeded):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, ledger.ErrRefundUnavailable),
		errors.Is(err, ledger.ErrOperationNotPending):
		return fiber.StatusConflict
	case errors.Is(err, ledger.ErrDuplicateReference):
		return fiber.StatusConflict
	case errors.Is(err, operation.ErrReconciliationMismatch):
		return fiber.StatusConflict
	case errors.Is(err, ledger.ErrCommissionMissing),
		errors.Is(err, ledger.ErrSystemAccountMissing),
		errors.Is(err, ledger.ErrFeeAccountMissing):
		return fiber.StatusUnprocessableEntity
	default:
		return fiber.StatusInternalServerError
	}
}

// BindAndValidate parses the request body and validates it using
// go-playground/validator. On failure it writes an error response and
// returns a non-nil error.
func BindAndValidate[T any](c *fiber.Ctx) (*T, error) {
	var input T
	if err := c.BodyParser(&input); err != nil {
		ErrorResponseJSON(c, fiber.StatusBadRequest, "Invalid request body", err.Error())
		return nil, err
	}
	validate := validator.New()
	if err := validate.Struct(input); err != nil {
		ErrorResponseJSON(c, fiber.StatusBadRequest, "Validation failed", err.Error())
		return nil, err
	}
	return &input, nil
}
