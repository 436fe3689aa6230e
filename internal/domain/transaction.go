/**
 * @description
 * This file defines the Transaction model (one ledger leg) and the request
 * DTOs for the account API. A transaction row is append-only: it is written
 * exactly once per ledger leg and never updated afterwards, except for the
 * one-time backfill of the SiblingID cross-reference between the two legs of
 * a transfer.
 */

package domain

import "time"

// TransactionType enumerates the kinds of ledger legs.
type TransactionType string

const (
	TransactionTypeDeposit  TransactionType = "DEPOSIT"
	TransactionTypeWithdraw TransactionType = "WITHDRAW"
	TransactionTypeTransfer TransactionType = "TRANSFER"
)

// Transaction is one persisted ledger leg: the effect of a single operation
// on a single account. For a transfer, exactly two rows exist: the
// TRANSFER-kind debit leg on the source and a DEPOSIT-kind credit leg on the
// destination, linked bidirectionally by SiblingID after both are persisted.
//
// Invariant: PostBalance - PrevBalance equals the signed net effect of the
// operation on the owning account.
type Transaction struct {
	ID          int64           `json:"id"`
	AccountID   int64           `json:"account_id"`
	Type        TransactionType `json:"type"`
	GrossAmount int64           `json:"gross_amount"` // fee-inclusive debit on the source
	NetAmount   int64           `json:"net_amount"`   // amount the counterparty actually receives
	Fee         int64           `json:"fee"`
	FeeRateBps  int32           `json:"fee_rate_bps"` // basis points; 100 = 1%
	PrevBalance int64           `json:"prev_balance"`
	PostBalance int64           `json:"post_balance"`

	// SiblingID links the two legs of a transfer. It is backfilled after both
	// rows exist, so a crash between insert and link can leave it empty; the
	// reconciliation pass repairs such pairs.
	SiblingID *int64 `json:"sibling_id,omitempty"`

	// Counterparty identity, present on transfer legs only.
	CounterpartyName          *string `json:"counterparty_name,omitempty"`
	CounterpartyAccountNumber *string `json:"counterparty_account_number,omitempty"`

	// DateStamp is the calendar day (yyyyMMdd in the canonical zone) used for
	// daily-limit aggregation. A plain date, not a timestamp.
	DateStamp string    `json:"date_stamp"`
	Memo      *string   `json:"memo,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// IsTransferLeg reports whether this row is one side of a transfer pair.
func (t *Transaction) IsTransferLeg() bool {
	return t.CounterpartyAccountNumber != nil
}

// CreateAccountRequest is the DTO for opening a new account. The owning user
// is found or created lazily, keyed by phone number.
type CreateAccountRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

// DepositRequest is the DTO for a deposit into an account.
type DepositRequest struct {
	Amount int64 `json:"amount"` // in minor units
}

// WithdrawRequest is the DTO for a withdrawal from an account.
type WithdrawRequest struct {
	Amount int64 `json:"amount"` // in minor units
}

// TransferRequest is the DTO for a peer-to-peer transfer. Amount is the net
// amount the counterparty should receive; the transfer fee is added on top
// when debiting the source.
type TransferRequest struct {
	CounterpartyAccountNumber string  `json:"counterparty_account_number"`
	Amount                    int64   `json:"amount"` // in minor units
	Memo                      *string `json:"memo,omitempty"`
}
