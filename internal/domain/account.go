/**
 * @description
 * This file defines the Account model and its invariant-preserving balance
 * transitions. Deposit, Withdraw and Close are the only mutations the rest of
 * the system is allowed to perform on an account; they assume the caller has
 * already acquired an exclusive lock on the account row for the duration of
 * the surrounding unit of work. Persisting the mutated account and recording
 * the ledger entry are the caller's responsibility.
 *
 * @notes
 * - Balances are int64 values in the smallest currency unit, which avoids
 *   floating-point inaccuracies with financial data.
 * - Accounts are never physically removed; deletion is a terminal status.
 */

package domain

import "time"

// AccountStatus enumerates the lifecycle states of an account.
type AccountStatus string

const (
	AccountStatusActive   AccountStatus = "ACTIVE"
	AccountStatusInactive AccountStatus = "INACTIVE"
	AccountStatusDormant  AccountStatus = "DORMANT"
	AccountStatusDeleted  AccountStatus = "DELETED"
)

// IsActive reports whether the account can be mutated or closed.
func (s AccountStatus) IsActive() bool { return s == AccountStatusActive }

// Account represents a single bank account row. The balance is exclusively
// owned by the account and changes only through Deposit and Withdraw.
type Account struct {
	ID                   int64         `json:"id"`
	AccountNumber        string        `json:"account_number"`
	PasswordHash         string        `json:"-"`
	Balance              int64         `json:"balance"` // in minor units
	Status               AccountStatus `json:"status"`
	UserID               int64         `json:"user_id"`
	LastBalanceChangedAt *time.Time    `json:"last_balance_changed_at,omitempty"`
	CreatedAt            time.Time     `json:"created_at"`
	UpdatedAt            time.Time     `json:"updated_at"`
}

// Deposit adds amount to the balance. The caller supplies the current time so
// the account stays clock-agnostic.
func (a *Account) Deposit(amount int64, now time.Time) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	a.Balance += amount
	a.LastBalanceChangedAt = &now
	return nil
}

// Withdraw subtracts amount from the balance. The balance is left untouched
// on any failure.
func (a *Account) Withdraw(amount int64, now time.Time) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if a.Balance < amount {
		return ErrInsufficientBalance
	}
	a.Balance -= amount
	a.LastBalanceChangedAt = &now
	return nil
}

// Close transitions the account to the terminal Deleted status. Only an
// active account with a zero balance can be closed; the transition is never
// reversed.
func (a *Account) Close() error {
	if !a.Status.IsActive() {
		return ErrAccountNotActive
	}
	if a.Balance != 0 {
		return ErrBalanceRemaining
	}
	a.Status = AccountStatusDeleted
	return nil
}

// AccountView is the API representation of an account.
type AccountView struct {
	ID                   int64      `json:"id"`
	AccountNumber        string     `json:"account_number"`
	Balance              int64      `json:"balance"`
	Status               string     `json:"status"`
	Username             string     `json:"username,omitempty"`
	LastBalanceChangedAt *time.Time `json:"last_balance_changed_at,omitempty"`
}

// View converts the account to its API representation. The owner's username
// is resolved by the caller since the account itself only carries the user id.
func (a *Account) View(username string) AccountView {
	return AccountView{
		ID:                   a.ID,
		AccountNumber:        a.AccountNumber,
		Balance:              a.Balance,
		Status:               string(a.Status),
		Username:             username,
		LastBalanceChangedAt: a.LastBalanceChangedAt,
	}
}
