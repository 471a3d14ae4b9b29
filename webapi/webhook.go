// Webhook routes:
//   - POST /webhook/gateway : card gateway capture results (HMAC signed)
//   - POST /webhook/wallet  : custody transfer notifications

package webapi

import (
	"errors"
	"time"

	"github.com/finwire/backoffice/pkg/domain/ledger"
	"github.com/finwire/backoffice/pkg/provider"
	"github.com/finwire/backoffice/pkg/repository"
	"github.com/finwire/backoffice/pkg/service/confirmqueue"
	"github.com/finwire/backoffice/pkg/service/operation"
	"github.com/gofiber/fiber/v2"
)

type WalletTransferRequest struct {
	TxID      string   `json:"txid" validate:"required"`
	Type      string   `json:"type" validate:"required,oneof=send receive"`
	State     string   `json:"state" validate:"required,oneof=pending approved failed"`
	Value     int64    `json:"value" validate:"required,gt=0"`
	Inputs    []string `json:"inputs"`
	CreatedAt string   `json:"created_at"`
}

// WebhookRoutes registers the external notification endpoints.
func WebhookRoutes(
	app *fiber.App,
	svc *operation.Service,
	gateway provider.PaymentGateway,
	confirm *confirmqueue.Service,
	uow repository.UnitOfWork,
) {
	app.Post("/webhook/gateway", func(c *fiber.Ctx) error {
		signature := c.Get("X-Signature")
		result, err := gateway.VerifyWebhook(c.Context(), c.Body(), signature)
		if err != nil {
			return ErrorResponseJSON(c, fiber.StatusUnauthorized, "Webhook rejected", err.Error())
		}
		if err := svc.HandleGatewayResult(c.Context(), result); err != nil {
			return ErrorResponseJSON(c, ErrorToStatusCode(err), "Webhook processing failed", err.Error())
		}
		return c.JSON(Response{Status: fiber.StatusOK, Message: "OK"})
	})

	app.Post("/webhook/wallet", func(c *fiber.Ctx) error {
		input, err := BindAndValidate[WalletTransferRequest](c)
		if err != nil {
			return nil
		}
		transfer := provider.Transfer{
			TxID:   input.TxID,
			Type:   input.Type,
			State:  provider.TransferState(input.State),
			Value:  input.Value,
			Inputs: input.Inputs,
		}
		if input.CreatedAt != "" {
			if t, err := time.Parse(time.RFC3339, input.CreatedAt); err == nil {
				transfer.CreatedAt = t
			}
		}
		if err := svc.HandleWalletTransfer(c.Context(), transfer); err != nil {
			return ErrorResponseJSON(c, ErrorToStatusCode(err), "Webhook processing failed", err.Error())
		}
		// A transfer custody has not approved yet stays pending; queue it so
		// the confirmation worker keeps retrying.
		if transfer.Type == "receive" {
			if pending, err := isPendingTransfer(c, uow, input.TxID); err == nil && pending {
				if err := confirm.Enqueue(c.Context(), input.TxID); err != nil {
					return ErrorResponseJSON(c, fiber.StatusInternalServerError,
						"Webhook processing failed", err.Error())
				}
			}
		}
		return c.JSON(Response{Status: fiber.StatusOK, Message: "OK"})
	})
}

func isPendingTransfer(c *fiber.Ctx, uow repository.UnitOfWork, txID string) (bool, error) {
	txRepo, err := uow.TransactionRepository()
	if err != nil {
		return false, err
	}
	tx, err := txRepo.ByTxID(c.Context(), txID)
	if err != nil {
		if errors.Is(err, ledger.ErrTransactionNotFound) {
			return false, nil
		}
		return false, err
	}
	return tx.Status == ledger.TransactionPending, nil
}
