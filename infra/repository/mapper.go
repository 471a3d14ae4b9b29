package repository

import (
	"github.com/finwire/backoffice/pkg/currency"
	"github.com/finwire/backoffice/pkg/domain/ledger"
	"github.com/finwire/backoffice/pkg/domain/money"
)

func toDomainAccount(m *Account) (*ledger.Account, error) {
	balance, err := money.NewFromMinor(m.Balance, currency.Code(m.Currency))
	if err != nil {
		return nil, err
	}
	return &ledger.Account{
		ID:              m.ID,
		OwnerType:       ledger.OwnerType(m.OwnerType),
		AccountType:     ledger.AccountType(m.AccountType),
		Currency:        currency.Code(m.Currency),
		Balance:         balance,
		Role:            ledger.ProviderRole(m.Role),
		ParentID:        m.ParentID,
		ExternalAddress: m.ExternalAddress,
		Active:          m.Active,
		RiskScore:       m.RiskScore,
		VerifiedAt:      m.VerifiedAt,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}, nil
}

func fromDomainAccount(a *ledger.Account) *Account {
	return &Account{
		ID:              a.ID,
		OwnerType:       string(a.OwnerType),
		AccountType:     string(a.AccountType),
		Currency:        string(a.Currency),
		Balance:         a.Balance.Amount(),
		Role:            string(a.Role),
		ParentID:        a.ParentID,
		ExternalAddress: a.ExternalAddress,
		Active:          a.Active,
		RiskScore:       a.RiskScore,
		VerifiedAt:      a.VerifiedAt,
		CreatedAt:       a.CreatedAt,
		UpdatedAt:       a.UpdatedAt,
	}
}

func toDomainCommission(m *Commission) *ledger.Commission {
	return &ledger.Commission{
		ID:             m.ID,
		AccountID:      m.AccountID,
		RateTemplateID: m.RateTemplateID,
		Type:           ledger.CommissionType(m.Type),
		Context:        ledger.CommissionContext(m.Context),
		Currency:       currency.Code(m.Currency),
		Percent:        m.Percent,
		Fixed:          m.Fixed,
		Min:            m.Min,
		Max:            m.Max,
		RefundPercent:  m.RefundPercent,
		RefundFixed:    m.RefundFixed,
		RefundMin:      m.RefundMin,
		Active:         m.Active,
		CreatedAt:      m.CreatedAt,
	}
}

func fromDomainCommission(c *ledger.Commission) *Commission {
	return &Commission{
		ID:             c.ID,
		AccountID:      c.AccountID,
		RateTemplateID: c.RateTemplateID,
		Type:           string(c.Type),
		Context:        string(c.Context),
		Currency:       string(c.Currency),
		Percent:        c.Percent,
		Fixed:          c.Fixed,
		Min:            c.Min,
		Max:            c.Max,
		RefundPercent:  c.RefundPercent,
		RefundFixed:    c.RefundFixed,
		RefundMin:      c.RefundMin,
		Active:         c.Active,
		CreatedAt:      c.CreatedAt,
	}
}

func toDomainLimit(m *Limit) *ledger.Limit {
	return &ledger.Limit{
		ID:                   m.ID,
		RateTemplateID:       m.RateTemplateID,
		ComplianceLevel:      m.ComplianceLevel,
		TransactionAmountMax: m.TransactionAmountMax,
		MonthlyAmountMax:     m.MonthlyAmountMax,
	}
}

func toDomainOperation(m *Operation) (*ledger.Operation, error) {
	amount, err := money.NewFromMinor(m.Amount, currency.Code(m.Currency))
	if err != nil {
		return nil, err
	}
	amountEUR, err := money.NewFromMinor(m.AmountEUR, ledger.ReportingCurrency)
	if err != nil {
		return nil, err
	}
	op := &ledger.Operation{
		ID:            m.ID,
		Type:          ledger.OperationType(m.Type),
		Status:        ledger.OperationStatus(m.Status),
		Step:          m.Step,
		FromAccountID: m.FromAccountID,
		ToAccountID:   m.ToAccountID,
		Amount:        amount,
		AmountEUR:     amountEUR,
		ExchangeRate:  m.ExchangeRate,
		ProfileID:     m.ProfileID,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
	if m.ReceivedAmount != nil {
		code := currency.Code(m.Currency)
		if m.ReceivedCurrency != nil {
			code = currency.Code(*m.ReceivedCurrency)
		}
		received, err := money.NewFromMinor(*m.ReceivedAmount, code)
		if err != nil {
			return nil, err
		}
		op.ReceivedAmount = &received
	}
	return op, nil
}

func fromDomainOperation(o *ledger.Operation) *Operation {
	m := &Operation{
		ID:            o.ID,
		Type:          string(o.Type),
		Status:        string(o.Status),
		Step:          o.Step,
		FromAccountID: o.FromAccountID,
		ToAccountID:   o.ToAccountID,
		Amount:        o.Amount.Amount(),
		Currency:      string(o.Amount.Currency()),
		AmountEUR:     o.AmountEUR.Amount(),
		ExchangeRate:  o.ExchangeRate,
		ProfileID:     o.ProfileID,
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
	}
	if o.ReceivedAmount != nil {
		amount := o.ReceivedAmount.Amount()
		code := string(o.ReceivedAmount.Currency())
		m.ReceivedAmount = &amount
		m.ReceivedCurrency = &code
	}
	return m
}

func toDomainTransaction(m *Transaction) (*ledger.Transaction, error) {
	amount, err := money.NewFromMinor(m.Amount, currency.Code(m.Currency))
	if err != nil {
		return nil, err
	}
	tx := &ledger.Transaction{
		ID:               m.ID,
		Type:             ledger.TransactionType(m.Type),
		OperationID:      m.OperationID,
		Amount:           amount,
		FromAccountID:    m.FromAccountID,
		ToAccountID:      m.ToAccountID,
		Status:           ledger.TransactionStatus(m.Status),
		ParentID:         m.ParentID,
		FromCommissionID: m.FromCommissionID,
		ToCommissionID:   m.ToCommissionID,
		TxID:             m.TxID,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
	if m.RecipientAmount != nil {
		code := currency.Code(m.Currency)
		if m.RecipientCurrency != nil {
			code = currency.Code(*m.RecipientCurrency)
		}
		recipient, err := money.NewFromMinor(*m.RecipientAmount, code)
		if err != nil {
			return nil, err
		}
		tx.RecipientAmount = &recipient
	}
	return tx, nil
}

func fromDomainTransaction(t *ledger.Transaction) *Transaction {
	m := &Transaction{
		ID:               t.ID,
		Type:             string(t.Type),
		OperationID:      t.OperationID,
		Amount:           t.Amount.Amount(),
		Currency:         string(t.Amount.Currency()),
		FromAccountID:    t.FromAccountID,
		ToAccountID:      t.ToAccountID,
		Status:           string(t.Status),
		ParentID:         t.ParentID,
		FromCommissionID: t.FromCommissionID,
		ToCommissionID:   t.ToCommissionID,
		TxID:             t.TxID,
		CreatedAt:        t.CreatedAt,
		UpdatedAt:        t.UpdatedAt,
	}
	if t.RecipientAmount != nil {
		amount := t.RecipientAmount.Amount()
		code := string(t.RecipientAmount.Currency())
		m.RecipientAmount = &amount
		m.RecipientCurrency = &code
	}
	return m
}
