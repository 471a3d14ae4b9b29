package operation

import (
	"context"

	"github.com/finwire/backoffice/pkg/domain/ledger"
	"github.com/finwire/backoffice/pkg/domain/money"
	"github.com/finwire/backoffice/pkg/repository"
	"github.com/google/uuid"
)

func (s *Service) readAccount(ctx context.Context, id uuid.UUID) (*ledger.Account, error) {
	var acc *ledger.Account
	err := s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		accRepo, err := uow.AccountRepository()
		if err != nil {
			return err
		}
		acc, err = accRepo.Get(ctx, id)
		return err
	})
	return acc, err
}

// exchangeCreditedIn returns the crypto amount the exchange leg credited.
func (s *Service) exchangeCreditedIn(
	ctx context.Context,
	uow repository.UnitOfWork,
	operationID uuid.UUID,
) (money.Money, error) {
	txRepo, err := uow.TransactionRepository()
	if err != nil {
		return money.Money{}, err
	}
	txs, err := txRepo.ListByOperation(ctx, operationID)
	if err != nil {
		return money.Money{}, err
	}
	for _, tx := range txs {
		if tx.Type == ledger.TransactionExchange && tx.Status == ledger.TransactionSuccessful {
			return tx.CreditedAmount(), nil
		}
	}
	return money.Money{}, ledger.ErrTransactionNotFound
}

func (s *Service) exchangeCredited(ctx context.Context, operationID uuid.UUID) (money.Money, error) {
	var amount money.Money
	err := s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		var err error
		amount, err = s.exchangeCreditedIn(ctx, uow, operationID)
		return err
	})
	return amount, err
}

// pendingDeliveryIn returns the operation's pending externally referenced
// crypto delivery, if one was already posted.
func (s *Service) pendingDeliveryIn(
	ctx context.Context,
	uow repository.UnitOfWork,
	operationID uuid.UUID,
) (*ledger.Transaction, error) {
	txRepo, err := uow.TransactionRepository()
	if err != nil {
		return nil, err
	}
	txs, err := txRepo.ListByOperation(ctx, operationID)
	if err != nil {
		return nil, err
	}
	for _, tx := range txs {
		if tx.Type == ledger.TransactionCrypto &&
			tx.Status == ledger.TransactionPending && tx.TxID != nil {
			return tx, nil
		}
	}
	return nil, nil
}

func (s *Service) pendingDelivery(ctx context.Context, operationID uuid.UUID) (*ledger.Transaction, error) {
	var tx *ledger.Transaction
	err := s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		var err error
		tx, err = s.pendingDeliveryIn(ctx, uow, operationID)
		return err
	})
	return tx, err
}
