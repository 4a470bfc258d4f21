package payouts

import (
	"context"

	"github.com/arenalabs/escrowd/src/model"
	"github.com/google/uuid"
)

// Payer emits the actual value transfers for settled payout credits. The
// real implementation is the host chain's transfer transport, which is out
// of scope here; services embed the mock or bring their own.
type Payer interface {
	Send(ctx context.Context, to model.Address, balance model.Balance) (txID string, err error)
}

type Transaction struct {
	TxID    string
	To      model.Address
	Balance model.Balance
}

// MockPayer records transactions instead of sending them.
type MockPayer struct {
	transactions []*Transaction
}

func NewMockPayer() *MockPayer {
	return &MockPayer{}
}

func (mp *MockPayer) Send(ctx context.Context, to model.Address, balance model.Balance) (string, error) {
	tx := &Transaction{
		TxID:    uuid.NewString(),
		To:      to,
		Balance: balance.Clone(),
	}
	mp.transactions = append(mp.transactions, tx)
	return tx.TxID, nil
}

func (mp *MockPayer) Transactions() []*Transaction {
	return mp.transactions
}
