// Operation routes:
//   - POST /operation                : start a new operation and drive it
//   - POST /operation/:id/advance    : retry the pending transition
//   - POST /operation/:id/refund     : compensate a pending top-up
//   - GET  /operation/:id            : operation with its fee projection
//   - GET  /operation/:id/transactions : postings of the operation

package webapi

import (
	"github.com/finwire/backoffice/pkg/currency"
	"github.com/finwire/backoffice/pkg/domain/ledger"
	"github.com/finwire/backoffice/pkg/domain/money"
	"github.com/finwire/backoffice/pkg/repository"
	"github.com/finwire/backoffice/pkg/service/operation"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type CreateOperationRequest struct {
	Type          string  `json:"type" validate:"required,oneof=wire_topup card_topup crypto_withdrawal wire_withdrawal"`
	FromAccountID string  `json:"from_account_id" validate:"required,uuid4"`
	ToAccountID   string  `json:"to_account_id" validate:"required,uuid4"`
	Amount        float64 `json:"amount" validate:"required,gt=0"`
	Currency      string  `json:"currency" validate:"required,min=3,max=4,uppercase"`
	AmountEUR     float64 `json:"amount_eur" validate:"required,gt=0"`
	ProfileID     string  `json:"profile_id" validate:"required,uuid4"`
}

// OperationDTO is the API response representation of an operation.
type OperationDTO struct {
	ID             string   `json:"id"`
	Type           string   `json:"type"`
	Status         string   `json:"status"`
	Step           int      `json:"step"`
	FromAccountID  string   `json:"from_account_id"`
	ToAccountID    string   `json:"to_account_id"`
	Amount         float64  `json:"amount"`
	Currency       string   `json:"currency"`
	AmountEUR      float64  `json:"amount_eur"`
	ReceivedAmount *float64 `json:"received_amount,omitempty"`
	ExchangeRate   *float64 `json:"exchange_rate,omitempty"`
	CreatedAt      string   `json:"created_at"`
}

// OperationFeeDTO is the fee projection in minor units per bucket.
type OperationFeeDTO struct {
	ClientFiat     int64 `json:"client_fiat"`
	ClientCrypto   int64 `json:"client_crypto"`
	ProviderFiat   int64 `json:"provider_fiat"`
	ProviderCrypto int64 `json:"provider_crypto"`
	SystemFiat     int64 `json:"system_fiat"`
	SystemCrypto   int64 `json:"system_crypto"`
}

// TransactionDTO is the API response representation of a posting.
type TransactionDTO struct {
	ID              string   `json:"id"`
	Type            string   `json:"type"`
	Status          string   `json:"status"`
	FromAccountID   string   `json:"from_account_id"`
	ToAccountID     string   `json:"to_account_id"`
	Amount          float64  `json:"amount"`
	Currency        string   `json:"currency"`
	RecipientAmount *float64 `json:"recipient_amount,omitempty"`
	ParentID        *string  `json:"parent_id,omitempty"`
	TxID            *string  `json:"tx_id,omitempty"`
	CreatedAt       string   `json:"created_at"`
}

const timeLayout = "2006-01-02T15:04:05Z07:00"

// ToOperationDTO maps a domain operation to its API representation.
func ToOperationDTO(op *ledger.Operation) *OperationDTO {
	dto := &OperationDTO{
		ID:            op.ID.String(),
		Type:          string(op.Type),
		Status:        string(op.Status),
		Step:          op.Step,
		FromAccountID: op.FromAccountID.String(),
		ToAccountID:   op.ToAccountID.String(),
		Amount:        op.Amount.AmountFloat(),
		Currency:      string(op.Amount.Currency()),
		AmountEUR:     op.AmountEUR.AmountFloat(),
		ExchangeRate:  op.ExchangeRate,
		CreatedAt:     op.CreatedAt.Format(timeLayout),
	}
	if op.ReceivedAmount != nil {
		received := op.ReceivedAmount.AmountFloat()
		dto.ReceivedAmount = &received
	}
	return dto
}

// ToTransactionDTO maps a domain posting to its API representation.
func ToTransactionDTO(tx *ledger.Transaction) *TransactionDTO {
	dto := &TransactionDTO{
		ID:            tx.ID.String(),
		Type:          string(tx.Type),
		Status:        string(tx.Status),
		FromAccountID: tx.FromAccountID.String(),
		ToAccountID:   tx.ToAccountID.String(),
		Amount:        tx.Amount.AmountFloat(),
		Currency:      string(tx.Amount.Currency()),
		TxID:          tx.TxID,
		CreatedAt:     tx.CreatedAt.Format(timeLayout),
	}
	if tx.RecipientAmount != nil {
		recipient := tx.RecipientAmount.AmountFloat()
		dto.RecipientAmount = &recipient
	}
	if tx.ParentID != nil {
		parent := tx.ParentID.String()
		dto.ParentID = &parent
	}
	return dto
}

// OperationRoutes registers the operation endpoints.
func OperationRoutes(app *fiber.App, svc *operation.Service, uow repository.UnitOfWork) {
	app.Post("/operation", func(c *fiber.Ctx) error {
		input, err := BindAndValidate[CreateOperationRequest](c)
		if err != nil {
			return nil
		}
		code := currency.Code(input.Currency)
		amount, err := money.New(input.Amount, code)
		if err != nil {
			return ErrorResponseJSON(c, ErrorToStatusCode(err), "Invalid amount", err.Error())
		}
		amountEUR, err := money.New(input.AmountEUR, ledger.ReportingCurrency)
		if err != nil {
			return ErrorResponseJSON(c, ErrorToStatusCode(err), "Invalid amount", err.Error())
		}
		op, err := svc.Create(c.Context(), operation.CreateParams{
			Type:          ledger.OperationType(input.Type),
			FromAccountID: uuid.MustParse(input.FromAccountID),
			ToAccountID:   uuid.MustParse(input.ToAccountID),
			Amount:        amount,
			AmountEUR:     amountEUR,
			ProfileID:     uuid.MustParse(input.ProfileID),
		})
		if err != nil {
			return ErrorResponseJSON(c, ErrorToStatusCode(err), "Operation rejected", err.Error())
		}
		// Best effort: a transition failure leaves the operation pending at
		// its current step for a later advance, not an API error.
		if err := svc.Drive(c.Context(), op.ID); err != nil {
			return refreshed(c, uow, op.ID, fiber.StatusAccepted, "Operation created, transition pending")
		}
		return refreshed(c, uow, op.ID, fiber.StatusCreated, "Operation created")
	})

	app.Post("/operation/:id/advance", func(c *fiber.Ctx) error {
		id, err := uuid.Parse(c.Params("id"))
		if err != nil {
			return ErrorResponseJSON(c, fiber.StatusBadRequest, "Invalid operation id", err.Error())
		}
		if err := svc.Drive(c.Context(), id); err != nil {
			return ErrorResponseJSON(c, ErrorToStatusCode(err), "Transition failed", err.Error())
		}
		return refreshed(c, uow, id, fiber.StatusOK, "Operation advanced")
	})

	app.Post("/operation/:id/refund", func(c *fiber.Ctx) error {
		id, err := uuid.Parse(c.Params("id"))
		if err != nil {
			return ErrorResponseJSON(c, fiber.StatusBadRequest, "Invalid operation id", err.Error())
		}
		if err := svc.Refund(c.Context(), id); err != nil {
			return ErrorResponseJSON(c, ErrorToStatusCode(err), "Refund rejected", err.Error())
		}
		return refreshed(c, uow, id, fiber.StatusOK, "Operation refunded")
	})

	app.Get("/operation/:id", func(c *fiber.Ctx) error {
		id, err := uuid.Parse(c.Params("id"))
		if err != nil {
			return ErrorResponseJSON(c, fiber.StatusBadRequest, "Invalid operation id", err.Error())
		}
		opRepo, err := uow.OperationRepository()
		if err != nil {
			return ErrorResponseJSON(c, fiber.StatusInternalServerError, "Internal Server Error", err.Error())
		}
		op, err := opRepo.Get(c.Context(), id)
		if err != nil {
			return ErrorResponseJSON(c, ErrorToStatusCode(err), "Operation not found", err.Error())
		}
		body := struct {
			Operation *OperationDTO    `json:"operation"`
			Fees      *OperationFeeDTO `json:"fees,omitempty"`
		}{Operation: ToOperationDTO(op)}
		if feeRepo, err := uow.OperationFeeRepository(); err == nil {
			if fee, err := feeRepo.Get(c.Context(), id); err == nil {
				body.Fees = &OperationFeeDTO{
					ClientFiat:     fee.ClientFiat,
					ClientCrypto:   fee.ClientCrypto,
					ProviderFiat:   fee.ProviderFiat,
					ProviderCrypto: fee.ProviderCrypto,
					SystemFiat:     fee.SystemFiat,
					SystemCrypto:   fee.SystemCrypto,
				}
			}
		}
		return c.JSON(Response{Status: fiber.StatusOK, Message: "OK", Data: body})
	})

	app.Get("/operation/:id/transactions", func(c *fiber.Ctx) error {
		id, err := uuid.Parse(c.Params("id"))
		if err != nil {
			return ErrorResponseJSON(c, fiber.StatusBadRequest, "Invalid operation id", err.Error())
		}
		txRepo, err := uow.TransactionRepository()
		if err != nil {
			return ErrorResponseJSON(c, fiber.StatusInternalServerError, "Internal Server Error", err.Error())
		}
		txs, err := txRepo.ListByOperation(c.Context(), id)
		if err != nil {
			return ErrorResponseJSON(c, ErrorToStatusCode(err), "Lookup failed", err.Error())
		}
		dtos := make([]*TransactionDTO, 0, len(txs))
		for _, tx := range txs {
			dtos = append(dtos, ToTransactionDTO(tx))
		}
		return c.JSON(Response{Status: fiber.StatusOK, Message: "OK", Data: dtos})
	})
}

// refreshed re-reads the operation and writes it as the response body.
func refreshed(c *fiber.Ctx, uow repository.UnitOfWork, id uuid.UUID, status int, msg string) error {
	opRepo, err := uow.OperationRepository()
	if err != nil {
		return ErrorResponseJSON(c, fiber.StatusInternalServerError, "Internal Server Error", err.Error())
	}
	op, err := opRepo.Get(c.Context(), id)
	if err != nil {
		return ErrorResponseJSON(c, ErrorToStatusCode(err), "Operation not found", err.Error())
	}
	return c.Status(status).JSON(Response{Status: status, Message: msg, Data: ToOperationDTO(op)})
}
