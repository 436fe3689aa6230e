/**
 * @description
 * This file defines the business error kinds surfaced by the ledger core.
 * Each error is a sentinel value so callers can classify failures with
 * errors.Is after the service layer has wrapped them with context. None of
 * these are retryable: retrying a failed withdrawal does not change an
 * insufficient balance.
 */

package domain

import "errors"

var (
	// ErrInvalidAmount is returned when a deposit or withdrawal amount is zero or negative.
	ErrInvalidAmount = errors.New("amount must be greater than zero")

	// ErrInsufficientBalance is returned when a withdrawal or transfer debit exceeds the current balance.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrLimitExceeded is returned when an operation would push today's aggregate past the user's daily ceiling.
	ErrLimitExceeded = errors.New("daily limit exceeded")

	// ErrAccountNotFound is returned when the referenced account id has no matching row.
	ErrAccountNotFound = errors.New("account not found")

	// ErrCounterpartyNotFound is returned when a transfer destination account number has no matching row.
	ErrCounterpartyNotFound = errors.New("counterparty account not found")

	// ErrAccountNotActive is returned when closure is attempted on a non-active account.
	ErrAccountNotActive = errors.New("account is not active")

	// ErrBalanceRemaining is returned when closure is attempted while a balance remains.
	ErrBalanceRemaining = errors.New("balance remaining on account")

	// ErrUserNotFound is returned when the referenced user has no matching row.
	ErrUserNotFound = errors.New("user not found")
)
