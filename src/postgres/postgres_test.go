package postgres

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"testing"

	"github.com/arenalabs/escrowd/src/model"
	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
)

// These tests expect the docker-compose postgres from the repo root. If it's
// not up we bail instead of failing, so the pure in-memory suites still run.
// Rows are keyed by fresh uuids so suites sharing the database don't step on
// each other.
func TestMain(m *testing.M) {
	ConfigureDockerConnection()
	conn, err := GetConnection(context.Background())
	if err != nil {
		fmt.Println("postgres unavailable, skipping postgres tests")
		os.Exit(0)
	}
	conn.Close(context.Background())
	if err := InitSchema(context.Background()); err != nil {
		panic(err)
	}
	m.Run()
}

var bigIntCmp = cmp.Comparer(func(a, b *big.Int) bool { return a.Cmp(b) == 0 })
var bigRatCmp = cmp.Comparer(func(a, b *big.Rat) bool { return a.Cmp(b) == 0 })

func testBalance(amount int64) model.Balance {
	return model.Balance{
		Native: []model.NativeEntry{{Denom: "uusd", Amount: big.NewInt(amount)}},
	}
}

func TestEscrowRoundTrip(t *testing.T) {
	competition := "comp-" + uuid.NewString()
	row := EscrowRow{
		ID:          uuid.NewString(),
		Competition: competition,
		Owner:       "arena_admin",
		Status:      "open",
	}
	dues := []model.Due{
		{Party: "alice", Balance: testBalance(100)},
		{Party: "bob", Balance: testBalance(200)},
	}
	if err := PutEscrow(context.Background(), row, dues); err != nil {
		t.Fatal(err)
	}

	fetched, fetchedDues, err := GetEscrow(context.Background(), row.ID)
	if err != nil {
		t.Fatal(err)
	}
	if d := cmp.Diff(&row, fetched); d != "" {
		t.Fatalf("escrow mismatch: %s", d)
	}
	if d := cmp.Diff(dues, fetchedDues, bigIntCmp); d != "" {
		t.Fatalf("dues mismatch: %s", d)
	}

	// lookup by competition hits the same row
	byComp, _, err := GetEscrow(context.Background(), competition)
	if err != nil {
		t.Fatal(err)
	}
	if byComp.ID != row.ID {
		t.Fatalf("expected %s, got %s", row.ID, byComp.ID)
	}

	if err := UpdateEscrowStatus(context.Background(), row.ID, "settled", 777); err != nil {
		t.Fatal(err)
	}
	settled, err := GetEscrowsByStatus(context.Background(), "settled", 4096)
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, s := range settled {
		if s.ID == row.ID {
			found = s.SettledHeight == 777
		}
	}
	if !found {
		t.Fatalf("settled escrow %s not returned with height 777", row.ID)
	}
}

func TestDepositJournalReplay(t *testing.T) {
	row := EscrowRow{ID: uuid.NewString(), Competition: "comp-" + uuid.NewString(), Owner: "arena_admin", Status: "open"}
	if err := PutEscrow(context.Background(), row, nil); err != nil {
		t.Fatal(err)
	}
	for i, amount := range []int64{40, 60, 25} {
		party := model.Address("alice")
		if i == 2 {
			party = "bob"
		}
		if err := PutDeposit(context.Background(), row.ID, party, testBalance(amount), uint64(i)); err != nil {
			t.Fatal(err)
		}
	}

	journal, err := GetDeposits(context.Background(), row.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(journal["alice"]) != 2 || len(journal["bob"]) != 1 {
		t.Fatalf("unexpected journal shape: %+v", journal)
	}
	if journal["alice"][0].Native[0].Amount.Int64() != 40 {
		t.Fatal("journal replay order lost")
	}
}

func TestSnapshotLog(t *testing.T) {
	owner := model.Address("owner-" + uuid.NewString())
	distA := &model.Distribution{
		MemberPercentages: []model.MemberPercentage{
			{Addr: "alice", Percentage: big.NewRat(1, 2)},
			{Addr: "bob", Percentage: big.NewRat(1, 2)},
		},
		RemainderAddr: "treasury",
	}
	distB := distA.Clone()
	distB.MemberPercentages[0].Percentage = big.NewRat(3, 4)
	distB.MemberPercentages[1].Percentage = big.NewRat(1, 4)

	if err := PutSnapshot(context.Background(), owner, 100, distA); err != nil {
		t.Fatal(err)
	}
	if err := PutSnapshot(context.Background(), owner, 200, &distB); err != nil {
		t.Fatal(err)
	}
	if err := PutSnapshot(context.Background(), owner, 300, nil); err != nil { // cleared
		t.Fatal(err)
	}

	at150 := uint64(150)
	got, err := GetSnapshotAt(context.Background(), owner, &at150)
	if err != nil {
		t.Fatal(err)
	}
	if d := cmp.Diff(distA, got, bigRatCmp); d != "" {
		t.Fatalf("snapshot at 150 mismatch: %s", d)
	}

	latest, err := GetSnapshotAt(context.Background(), owner, nil)
	if err != nil {
		t.Fatal(err)
	}
	if latest != nil {
		t.Fatalf("expected cleared latest snapshot, got %+v", latest)
	}

	heights, dists, err := GetSnapshotLog(context.Background(), owner)
	if err != nil {
		t.Fatal(err)
	}
	if d := cmp.Diff([]uint64{100, 200, 300}, heights); d != "" {
		t.Fatalf("heights mismatch: %s", d)
	}
	if dists[2] != nil {
		t.Fatal("expected nil distribution for cleared height")
	}

	owners, err := GetSnapshotOwners(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, o := range owners {
		if o == owner {
			found = true
		}
	}
	if !found {
		t.Fatalf("owner %s missing from snapshot owners", owner)
	}
}

func TestPayoutLifecycle(t *testing.T) {
	escrowID := uuid.NewString()
	alice := model.Address("alice-" + uuid.NewString())
	bob := model.Address("bob-" + uuid.NewString())
	payouts := map[model.Address]model.Balance{
		alice: testBalance(50),
		bob:   testBalance(50),
	}
	if err := PutCredits(context.Background(), escrowID, payouts, 42); err != nil {
		t.Fatal(err)
	}

	creditsFor := func(status model.PayoutStatus) []model.PayoutCredit {
		fetched, err := GetCreditsByStatus(context.Background(), status, 4096)
		if err != nil {
			t.Fatal(err)
		}
		mine := []model.PayoutCredit{}
		for _, c := range fetched {
			if c.EscrowID == escrowID {
				mine = append(mine, c)
			}
		}
		return mine
	}

	if owed := creditsFor(model.PayoutStatusOwed); len(owed) != 2 {
		t.Fatalf("expected 2 owed credits, got %d", len(owed))
	}

	pending, err := GetPendingForAddr(context.Background(), alice)
	if err != nil {
		t.Fatal(err)
	}
	if pending.Native[0].Amount.Int64() != 50 {
		t.Fatalf("unexpected pending balance: %+v", pending)
	}

	if err := MarkCreditSubmitted(context.Background(), escrowID, alice, "tx-abc"); err != nil {
		t.Fatal(err)
	}
	submitted := creditsFor(model.PayoutStatusSubmitted)
	if len(submitted) != 1 || submitted[0].TxId == nil || *submitted[0].TxId != "tx-abc" {
		t.Fatalf("unexpected submitted credits: %+v", submitted)
	}

	if err := MarkCreditStatus(context.Background(), escrowID, alice, model.PayoutStatusConfirmed); err != nil {
		t.Fatal(err)
	}
	if owed := creditsFor(model.PayoutStatusOwed); len(owed) != 1 || owed[0].Addr != bob {
		t.Fatalf("expected only %s still owed, got %+v", bob, owed)
	}
}
