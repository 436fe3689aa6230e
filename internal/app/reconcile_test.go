package app

import (
	"context"
	"testing"
	"time"

	"github.com/vaultline/ledger-service/internal/domain"
	"github.com/vaultline/ledger-service/internal/store"
)

// writeUnlinkedLeg persists a transfer leg without the sibling backfill,
// simulating a transfer interrupted between recording and linking.
func writeUnlinkedLeg(t *testing.T, st *store.MemoryStore, accountID int64, kind domain.TransactionType, net int64, counterparty string, createdAt time.Time) int64 {
	t.Helper()
	var id int64
	err := st.Transact(context.Background(), func(tx store.Tx) error {
		saved, err := tx.SaveTransaction(context.Background(), &domain.Transaction{
			AccountID:                 accountID,
			Type:                      kind,
			GrossAmount:               net,
			NetAmount:                 net,
			CounterpartyAccountNumber: &counterparty,
			DateStamp:                 "20260314",
			CreatedAt:                 createdAt,
		})
		if err != nil {
			return err
		}
		id = saved.ID
		return nil
	})
	if err != nil {
		t.Fatalf("writeUnlinkedLeg: %v", err)
	}
	return id
}

func findTransaction(t *testing.T, svc *Service, accountID, txnID int64) domain.Transaction {
	t.Helper()
	txns, err := svc.TransactionHistory(context.Background(), accountID, 100, 0)
	if err != nil {
		t.Fatalf("TransactionHistory: %v", err)
	}
	for _, txn := range txns {
		if txn.ID == txnID {
			return txn
		}
	}
	t.Fatalf("transaction %d not found on account %d", txnID, accountID)
	return domain.Transaction{}
}

func TestReconcilePairsMatchingLegs(t *testing.T) {
	svc, st := newTestService(t)
	src, _ := mustCreateAccount(t, svc, "hana", "010-1111-2222")
	dst, _ := mustCreateAccount(t, svc, "minsu", "010-3333-4444")

	at := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	debitID := writeUnlinkedLeg(t, st, src.ID, domain.TransactionTypeTransfer, 5_000, dst.AccountNumber, at)
	creditID := writeUnlinkedLeg(t, st, dst.ID, domain.TransactionTypeDeposit, 5_000, src.AccountNumber, at.Add(30*time.Second))

	// A credit with a different amount must not be claimed.
	decoyID := writeUnlinkedLeg(t, st, dst.ID, domain.TransactionTypeDeposit, 7_000, src.AccountNumber, at)

	repaired, err := svc.ReconcileUnlinkedTransfers(context.Background())
	if err != nil {
		t.Fatalf("ReconcileUnlinkedTransfers() error: %v", err)
	}
	if repaired != 1 {
		t.Fatalf("repaired = %d, want 1", repaired)
	}

	debit := findTransaction(t, svc, src.ID, debitID)
	credit := findTransaction(t, svc, dst.ID, creditID)
	if debit.SiblingID == nil || *debit.SiblingID != creditID {
		t.Errorf("debit sibling = %v, want %d", debit.SiblingID, creditID)
	}
	if credit.SiblingID == nil || *credit.SiblingID != debitID {
		t.Errorf("credit sibling = %v, want %d", credit.SiblingID, debitID)
	}
	decoy := findTransaction(t, svc, dst.ID, decoyID)
	if decoy.SiblingID != nil {
		t.Errorf("decoy leg was linked to %d", *decoy.SiblingID)
	}
}

func TestReconcilePrefersClosestInTime(t *testing.T) {
	svc, st := newTestService(t)
	src, _ := mustCreateAccount(t, svc, "hana", "010-1111-2222")
	dst, _ := mustCreateAccount(t, svc, "minsu", "010-3333-4444")

	at := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	debitID := writeUnlinkedLeg(t, st, src.ID, domain.TransactionTypeTransfer, 5_000, dst.AccountNumber, at)
	farID := writeUnlinkedLeg(t, st, dst.ID, domain.TransactionTypeDeposit, 5_000, src.AccountNumber, at.Add(4*time.Minute))
	nearID := writeUnlinkedLeg(t, st, dst.ID, domain.TransactionTypeDeposit, 5_000, src.AccountNumber, at.Add(10*time.Second))

	repaired, err := svc.ReconcileUnlinkedTransfers(context.Background())
	if err != nil {
		t.Fatalf("ReconcileUnlinkedTransfers() error: %v", err)
	}
	if repaired != 1 {
		t.Fatalf("repaired = %d, want 1", repaired)
	}

	debit := findTransaction(t, svc, src.ID, debitID)
	if debit.SiblingID == nil || *debit.SiblingID != nearID {
		t.Errorf("debit sibling = %v, want the closer credit %d", debit.SiblingID, nearID)
	}
	far := findTransaction(t, svc, dst.ID, farID)
	if far.SiblingID != nil {
		t.Errorf("distant credit was linked to %d", *far.SiblingID)
	}
}

func TestReconcileSkipsLegsOutsideWindow(t *testing.T) {
	svc, st := newTestService(t)
	src, _ := mustCreateAccount(t, svc, "hana", "010-1111-2222")
	dst, _ := mustCreateAccount(t, svc, "minsu", "010-3333-4444")

	at := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	writeUnlinkedLeg(t, st, src.ID, domain.TransactionTypeTransfer, 5_000, dst.AccountNumber, at)
	writeUnlinkedLeg(t, st, dst.ID, domain.TransactionTypeDeposit, 5_000, src.AccountNumber, at.Add(10*time.Minute))

	repaired, err := svc.ReconcileUnlinkedTransfers(context.Background())
	if err != nil {
		t.Fatalf("ReconcileUnlinkedTransfers() error: %v", err)
	}
	if repaired != 0 {
		t.Errorf("repaired = %d, want 0", repaired)
	}
}
