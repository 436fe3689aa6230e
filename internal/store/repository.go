/**
 * @description
 * This file defines the storage contract for the ledger core. By defining the
 * Store and Tx interfaces here, the business logic stays decoupled from the
 * concrete backend: the PostgreSQL implementation maps a unit of work onto a
 * database transaction with SELECT ... FOR UPDATE row locks, while the
 * in-memory implementation backs tests with a mutex-map lock manager.
 *
 * @dependencies
 * - context: Standard Go library.
 * - internal/domain: The service's domain models.
 */

package store

import (
	"context"

	"github.com/vaultline/ledger-service/internal/domain"
)

// Store is the top-level data access contract. Reads outside a unit of work
// observe committed state only.
type Store interface {
	// Transact runs fn within one atomic unit of work. If fn returns an
	// error the whole unit is discarded: no partial balance change, no
	// orphan ledger row. Row locks acquired through the Tx are held until
	// the unit completes.
	Transact(ctx context.Context, fn func(tx Tx) error) error

	// Account reads and creation.
	GetAccount(ctx context.Context, id int64) (*domain.Account, error)
	GetAccountByNumber(ctx context.Context, number string) (*domain.Account, error)
	CreateAccount(ctx context.Context, account *domain.Account) (*domain.Account, error)

	// User lookup and lazy creation, keyed by phone number.
	FindUserByPhone(ctx context.Context, phone string) (*domain.User, error)
	CreateUser(ctx context.Context, user *domain.User) (*domain.User, error)
	GetUserByID(ctx context.Context, id int64) (*domain.User, error)

	// Transaction history, ordered by id descending.
	FindTransactionsByAccount(ctx context.Context, accountID int64, limit, offset int) ([]domain.Transaction, error)

	// FindUnlinkedTransferLegs returns transfer legs for the given calendar
	// day whose sibling cross-reference is still missing, together with the
	// owning account's number so pairs can be matched.
	FindUnlinkedTransferLegs(ctx context.Context, dateStamp string) ([]UnlinkedLeg, error)
}

// Tx is the view of the store inside one unit of work.
type Tx interface {
	// GetAccount reads an account without locking it.
	GetAccount(ctx context.Context, id int64) (*domain.Account, error)

	// GetAccountForUpdate reads an account under an exclusive row lock held
	// until the unit of work completes. Re-acquiring a lock already held by
	// this unit is a no-op that returns the same state.
	GetAccountForUpdate(ctx context.Context, id int64) (*domain.Account, error)

	// GetAccountByNumber reads an account by its unique number, unlocked.
	GetAccountByNumber(ctx context.Context, number string) (*domain.Account, error)

	// SaveAccount persists the mutated fields of a previously read account.
	SaveAccount(ctx context.Context, account *domain.Account) error

	// SaveTransaction appends one ledger leg and returns it with its id set.
	SaveTransaction(ctx context.Context, txn *domain.Transaction) (*domain.Transaction, error)

	// LinkTransactions backfills the sibling id on both legs of a transfer.
	LinkTransactions(ctx context.Context, aID, bID int64) error

	// SumNetAmountByDay sums the net amounts of all legs of the given kind,
	// across every account owned by the user, for one calendar day. The read
	// observes committed history only.
	SumNetAmountByDay(ctx context.Context, userID int64, kind domain.TransactionType, dateStamp string) (int64, error)

	GetUserByID(ctx context.Context, id int64) (*domain.User, error)
}

// UnlinkedLeg pairs a sibling-less transfer leg with the number of the
// account that owns it, for reconciliation matching.
type UnlinkedLeg struct {
	Leg           domain.Transaction
	AccountNumber string
}
