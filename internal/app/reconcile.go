package app

import (
	"context"
	"log"
	"time"

	"github.com/vaultline/ledger-service/internal/domain"
	"github.com/vaultline/ledger-service/internal/store"
)

// reconcileMatchWindow bounds how far apart in wall-clock time the two legs
// of one transfer can be and still be considered a pair.
const reconcileMatchWindow = 5 * time.Minute

// ReconcileUnlinkedTransfers scans the current day's ledger for transfer
// legs whose sibling reference was never backfilled and pairs them up. A
// debit leg matches a credit leg when the net amounts agree, each leg names
// the other's account number as its counterparty, and the rows were written
// within the match window. The closest candidate in time wins. Returns the
// number of pairs repaired.
func (s *Service) ReconcileUnlinkedTransfers(ctx context.Context) (int, error) {
	return s.reconcileDay(ctx, s.clk.DateStamp(s.clk.Now()))
}

func (s *Service) reconcileDay(ctx context.Context, day string) (int, error) {
	legs, err := s.store.FindUnlinkedTransferLegs(ctx, day)
	if err != nil {
		return 0, err
	}

	var debits, credits []store.UnlinkedLeg
	for _, l := range legs {
		switch l.Leg.Type {
		case domain.TransactionTypeTransfer:
			debits = append(debits, l)
		case domain.TransactionTypeDeposit:
			credits = append(credits, l)
		}
	}

	repaired := 0
	claimed := make(map[int64]bool)
	for _, d := range debits {
		best := -1
		var bestGap time.Duration
		for i, c := range credits {
			if claimed[c.Leg.ID] {
				continue
			}
			if !legsMatch(d, c) {
				continue
			}
			gap := absDuration(c.Leg.CreatedAt.Sub(d.Leg.CreatedAt))
			if gap > reconcileMatchWindow {
				continue
			}
			if best == -1 || gap < bestGap {
				best, bestGap = i, gap
			}
		}
		if best == -1 {
			log.Printf("level=warn component=reconciler msg=\"no matching credit leg\" transaction_id=%d account_number=%s date_stamp=%s", d.Leg.ID, d.AccountNumber, day)
			continue
		}

		credit := credits[best]
		err := s.store.Transact(ctx, func(tx store.Tx) error {
			return tx.LinkTransactions(ctx, d.Leg.ID, credit.Leg.ID)
		})
		if err != nil {
			log.Printf("level=error component=reconciler msg=\"failed to link legs\" debit_id=%d credit_id=%d error=%v", d.Leg.ID, credit.Leg.ID, err)
			continue
		}
		claimed[credit.Leg.ID] = true
		repaired++
		log.Printf("level=info component=reconciler msg=\"legs linked\" debit_id=%d credit_id=%d", d.Leg.ID, credit.Leg.ID)
	}

	if repaired > 0 || len(debits)+len(credits) > 0 {
		log.Printf("level=info component=reconciler msg=\"sweep finished\" date_stamp=%s unlinked=%d repaired=%d", day, len(legs), repaired)
	}
	s.metrics.AddReconciled(repaired)
	return repaired, nil
}

// legsMatch reports whether the two legs name each other's accounts and
// carry the same net amount.
func legsMatch(debit, credit store.UnlinkedLeg) bool {
	if debit.Leg.NetAmount != credit.Leg.NetAmount {
		return false
	}
	if debit.Leg.CounterpartyAccountNumber == nil || credit.Leg.CounterpartyAccountNumber == nil {
		return false
	}
	return *debit.Leg.CounterpartyAccountNumber == credit.AccountNumber &&
		*credit.Leg.CounterpartyAccountNumber == debit.AccountNumber
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
