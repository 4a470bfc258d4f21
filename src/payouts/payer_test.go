package payouts

import (
	"context"
	"math/big"
	"testing"

	"github.com/arenalabs/escrowd/src/model"
	"github.com/google/go-cmp/cmp"
)

var bigIntCmp = cmp.Comparer(func(a, b *big.Int) bool { return a.Cmp(b) == 0 })

func TestMockPayerRecordsTransactions(t *testing.T) {
	payer := NewMockPayer()
	balance := model.Balance{Native: []model.NativeEntry{{Denom: "uusd", Amount: big.NewInt(100)}}}

	txID, err := payer.Send(context.Background(), "alice", balance)
	if err != nil {
		t.Fatal(err)
	}
	if txID == "" {
		t.Fatal("expected a tx id")
	}

	txs := payer.Transactions()
	if len(txs) != 1 {
		t.Fatalf("expected 1 recorded transaction, got %d", len(txs))
	}
	if txs[0].To != "alice" {
		t.Fatalf("wrong recipient: %s", txs[0].To)
	}
	if d := cmp.Diff(balance, txs[0].Balance, bigIntCmp); d != "" {
		t.Fatalf("wrong balance recorded: %s", d)
	}
}
