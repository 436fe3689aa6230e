/**
 * @description
 * This file provides the PostgreSQL implementation of the Store and Tx
 * interfaces. A unit of work maps onto a single database transaction;
 * exclusive account locks are taken with SELECT ... FOR UPDATE, which blocks
 * every other locker of the same row until the transaction commits or rolls
 * back. Ledger rows are append-only inserts; the only update ever applied to
 * a transaction row is the one-time sibling-link backfill.
 *
 * @dependencies
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - internal/domain: Contains the domain models used for data transfer.
 */

package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vaultline/ledger-service/internal/domain"
)

const accountColumns = `id, account_number, password_hash, balance, status, user_id, last_balance_changed_at, created_at, updated_at`

const transactionColumns = `id, account_id, type, gross_amount, net_amount, fee, fee_rate_bps, prev_balance, post_balance,
	sibling_id, counterparty_name, counterparty_account_number, date_stamp, memo, created_at`

// PostgresStore is the concrete Store backed by a pgx connection pool.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// row abstracts pgx.Row for the scan helpers.
type row interface {
	Scan(dest ...any) error
}

func scanAccount(r row) (*domain.Account, error) {
	var a domain.Account
	err := r.Scan(
		&a.ID, &a.AccountNumber, &a.PasswordHash, &a.Balance, &a.Status,
		&a.UserID, &a.LastBalanceChangedAt, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, err
	}
	return &a, nil
}

func scanTransaction(r row) (*domain.Transaction, error) {
	var t domain.Transaction
	err := r.Scan(
		&t.ID, &t.AccountID, &t.Type, &t.GrossAmount, &t.NetAmount, &t.Fee, &t.FeeRateBps,
		&t.PrevBalance, &t.PostBalance, &t.SiblingID, &t.CounterpartyName,
		&t.CounterpartyAccountNumber, &t.DateStamp, &t.Memo, &t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func scanUser(r row) (*domain.User, error) {
	var u domain.User
	err := r.Scan(&u.ID, &u.Username, &u.Email, &u.Phone, &u.DailyWithdrawalLimit, &u.DailyTransferLimit, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

// Transact runs fn inside one database transaction.
func (s *PostgresStore) Transact(ctx context.Context, fn func(tx Tx) error) error {
	dbTx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin unit of work: %w", err)
	}
	defer dbTx.Rollback(ctx)

	if err := fn(&postgresTx{q: dbTx}); err != nil {
		return err
	}
	if err := dbTx.Commit(ctx); err != nil {
		return fmt.Errorf("commit unit of work: %w", err)
	}
	return nil
}

// GetAccount reads an account without locking.
func (s *PostgresStore) GetAccount(ctx context.Context, id int64) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	return scanAccount(s.db.QueryRow(ctx, query, id))
}

// GetAccountByNumber reads an account by its unique number.
func (s *PostgresStore) GetAccountByNumber(ctx context.Context, number string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE account_number = $1`
	return scanAccount(s.db.QueryRow(ctx, query, number))
}

// CreateAccount inserts a new account row and returns it with its id set.
func (s *PostgresStore) CreateAccount(ctx context.Context, account *domain.Account) (*domain.Account, error) {
	query := `
		INSERT INTO accounts (account_number, password_hash, balance, status, user_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`
	err := s.db.QueryRow(ctx, query,
		account.AccountNumber, account.PasswordHash, account.Balance, account.Status, account.UserID,
	).Scan(&account.ID, &account.CreatedAt, &account.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert account: %w", err)
	}
	return account, nil
}

// FindUserByPhone retrieves a user by the phone-number uniqueness key.
func (s *PostgresStore) FindUserByPhone(ctx context.Context, phone string) (*domain.User, error) {
	query := `SELECT id, username, email, phone, daily_withdrawal_limit, daily_transfer_limit, created_at
		FROM users WHERE phone = $1`
	return scanUser(s.db.QueryRow(ctx, query, phone))
}

// CreateUser inserts a new user row and returns it with its id set.
func (s *PostgresStore) CreateUser(ctx context.Context, user *domain.User) (*domain.User, error) {
	query := `
		INSERT INTO users (username, email, phone, daily_withdrawal_limit, daily_transfer_limit)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`
	err := s.db.QueryRow(ctx, query,
		user.Username, user.Email, user.Phone, user.DailyWithdrawalLimit, user.DailyTransferLimit,
	).Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return user, nil
}

// GetUserByID retrieves a user by id.
func (s *PostgresStore) GetUserByID(ctx context.Context, id int64) (*domain.User, error) {
	query := `SELECT id, username, email, phone, daily_withdrawal_limit, daily_transfer_limit, created_at
		FROM users WHERE id = $1`
	return scanUser(s.db.QueryRow(ctx, query, id))
}

// FindTransactionsByAccount returns the account's ledger legs, newest first.
func (s *PostgresStore) FindTransactionsByAccount(ctx context.Context, accountID int64, limit, offset int) ([]domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + `
		FROM transactions
		WHERE account_id = $1
		ORDER BY id DESC
		LIMIT $2 OFFSET $3`
	rows, err := s.db.Query(ctx, query, accountID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

// FindUnlinkedTransferLegs returns transfer legs (either side of a pair) for
// one calendar day whose sibling link is still missing.
func (s *PostgresStore) FindUnlinkedTransferLegs(ctx context.Context, dateStamp string) ([]UnlinkedLeg, error) {
	query := `
		SELECT t.id, t.account_id, t.type, t.gross_amount, t.net_amount, t.fee, t.fee_rate_bps,
		       t.prev_balance, t.post_balance, t.sibling_id, t.counterparty_name,
		       t.counterparty_account_number, t.date_stamp, t.memo, t.created_at,
		       a.account_number
		FROM transactions t
		JOIN accounts a ON a.id = t.account_id
		WHERE t.date_stamp = $1
		  AND t.sibling_id IS NULL
		  AND t.counterparty_account_number IS NOT NULL
		ORDER BY t.id
	`
	rows, err := s.db.Query(ctx, query, dateStamp)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []UnlinkedLeg
	for rows.Next() {
		var leg UnlinkedLeg
		t := &leg.Leg
		err := rows.Scan(
			&t.ID, &t.AccountID, &t.Type, &t.GrossAmount, &t.NetAmount, &t.Fee, &t.FeeRateBps,
			&t.PrevBalance, &t.PostBalance, &t.SiblingID, &t.CounterpartyName,
			&t.CounterpartyAccountNumber, &t.DateStamp, &t.Memo, &t.CreatedAt,
			&leg.AccountNumber,
		)
		if err != nil {
			return nil, err
		}
		out = append(out, leg)
	}
	return out, rows.Err()
}

// postgresTx is the Tx view over an open pgx transaction.
type postgresTx struct {
	q pgx.Tx
}

func (t *postgresTx) GetAccount(ctx context.Context, id int64) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	return scanAccount(t.q.QueryRow(ctx, query, id))
}

// GetAccountForUpdate acquires the exclusive row lock for this unit of work.
// FOR UPDATE is reentrant within one transaction, so re-locking a row already
// held here just returns its current state.
func (t *postgresTx) GetAccountForUpdate(ctx context.Context, id int64) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1 FOR UPDATE`
	return scanAccount(t.q.QueryRow(ctx, query, id))
}

func (t *postgresTx) GetAccountByNumber(ctx context.Context, number string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE account_number = $1`
	return scanAccount(t.q.QueryRow(ctx, query, number))
}

func (t *postgresTx) SaveAccount(ctx context.Context, account *domain.Account) error {
	query := `
		UPDATE accounts
		SET balance = $2, status = $3, last_balance_changed_at = $4, updated_at = NOW()
		WHERE id = $1
	`
	tag, err := t.q.Exec(ctx, query, account.ID, account.Balance, account.Status, account.LastBalanceChangedAt)
	if err != nil {
		return fmt.Errorf("update account %d: %w", account.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}

func (t *postgresTx) SaveTransaction(ctx context.Context, txn *domain.Transaction) (*domain.Transaction, error) {
	query := `
		INSERT INTO transactions (
			account_id, type, gross_amount, net_amount, fee, fee_rate_bps,
			prev_balance, post_balance, counterparty_name, counterparty_account_number,
			date_stamp, memo
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at
	`
	err := t.q.QueryRow(ctx, query,
		txn.AccountID, txn.Type, txn.GrossAmount, txn.NetAmount, txn.Fee, txn.FeeRateBps,
		txn.PrevBalance, txn.PostBalance, txn.CounterpartyName, txn.CounterpartyAccountNumber,
		txn.DateStamp, txn.Memo,
	).Scan(&txn.ID, &txn.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert ledger leg: %w", err)
	}
	return txn, nil
}

func (t *postgresTx) LinkTransactions(ctx context.Context, aID, bID int64) error {
	query := `
		UPDATE transactions
		SET sibling_id = CASE id WHEN $1 THEN $2::bigint WHEN $2 THEN $1::bigint END
		WHERE id IN ($1, $2)
	`
	tag, err := t.q.Exec(ctx, query, aID, bID)
	if err != nil {
		return fmt.Errorf("link ledger legs %d<->%d: %w", aID, bID, err)
	}
	if tag.RowsAffected() != 2 {
		return fmt.Errorf("link ledger legs %d<->%d: expected 2 rows, got %d", aID, bID, tag.RowsAffected())
	}
	return nil
}

func (t *postgresTx) SumNetAmountByDay(ctx context.Context, userID int64, kind domain.TransactionType, dateStamp string) (int64, error) {
	query := `
		SELECT COALESCE(SUM(t.net_amount), 0)
		FROM transactions t
		JOIN accounts a ON a.id = t.account_id
		WHERE a.user_id = $1
		  AND t.type = $2
		  AND t.date_stamp = $3
	`
	var sum int64
	if err := t.q.QueryRow(ctx, query, userID, kind, dateStamp).Scan(&sum); err != nil {
		return 0, fmt.Errorf("sum net amounts for user %d: %w", userID, err)
	}
	return sum, nil
}

func (t *postgresTx) GetUserByID(ctx context.Context, id int64) (*domain.User, error) {
	query := `SELECT id, username, email, phone, daily_withdrawal_limit, daily_transfer_limit, created_at
		FROM users WHERE id = $1`
	return scanUser(t.q.QueryRow(ctx, query, id))
}
