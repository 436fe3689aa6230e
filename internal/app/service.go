/**
 * @description
 * Application service for the ledger. Every balance-changing operation runs
 * inside a single storage transaction: row locks are taken on the accounts
 * involved, the balance mutation is applied, and the ledger legs are
 * recorded against the same unit of work so a failure at any step leaves
 * no partial state behind.
 *
 * Daily limits are checked against the persisted ledger, not an in-memory
 * counter, so they survive restarts. The limit read for transfers happens
 * before the source row lock is taken; two requests racing the same limit
 * can both pass the check. The balance itself is never at risk because the
 * debit runs under the row lock.
 *
 * @dependencies
 * - internal/store: Transactional persistence boundary.
 * - internal/domain: Account and transaction invariants.
 * - pkg/clock: Canonical-zone timestamps and date stamps.
 * - pkg/metrics: Operation counters and latency histograms.
 * - pkg/rabbitmq: Post-commit domain events.
 * - github.com/google/uuid: Account number generation.
 * - golang.org/x/crypto/bcrypt: Account password hashing.
 */
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/vaultline/ledger-service/internal/domain"
	"github.com/vaultline/ledger-service/internal/store"
	"github.com/vaultline/ledger-service/pkg/clock"
	"github.com/vaultline/ledger-service/pkg/metrics"
	"github.com/vaultline/ledger-service/pkg/rabbitmq"
)

// ErrMissingRequiredField is returned when an account creation request
// omits a field the service cannot default.
var ErrMissingRequiredField = errors.New("required field missing")

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

// Service implements the account operations exposed over the API.
type Service struct {
	store   store.Store
	clk     clock.Clock
	events  rabbitmq.Publisher
	metrics *metrics.Collector

	feeRateBps             int32
	defaultWithdrawalLimit int64
	defaultTransferLimit   int64
}

// NewService wires the service with its persistence, clock and event
// dependencies. events and collector may be nil; the service then runs
// without publishing or metrics.
func NewService(st store.Store, clk clock.Clock, events rabbitmq.Publisher, collector *metrics.Collector, feeRateBps int32, defaultWithdrawalLimit, defaultTransferLimit int64) *Service {
	return &Service{
		store:                  st,
		clk:                    clk,
		events:                 events,
		metrics:                collector,
		feeRateBps:             feeRateBps,
		defaultWithdrawalLimit: defaultWithdrawalLimit,
		defaultTransferLimit:   defaultTransferLimit,
	}
}

// CreateAccount opens a new active account with a zero balance. The owning
// user is resolved by phone number and created with the default daily
// limits when unknown.
func (s *Service) CreateAccount(ctx context.Context, req domain.CreateAccountRequest) (*domain.Account, *domain.User, error) {
	start := time.Now()

	if strings.TrimSpace(req.Username) == "" || strings.TrimSpace(req.Phone) == "" || req.Password == "" {
		s.metrics.ObserveOperation("create_account", start, ErrMissingRequiredField)
		return nil, nil, fmt.Errorf("username, phone and password are mandatory: %w", ErrMissingRequiredField)
	}

	user, err := s.store.FindUserByPhone(ctx, req.Phone)
	if errors.Is(err, domain.ErrUserNotFound) {
		user, err = s.store.CreateUser(ctx, &domain.User{
			Username:             req.Username,
			Email:                req.Email,
			Phone:                req.Phone,
			DailyWithdrawalLimit: s.defaultWithdrawalLimit,
			DailyTransferLimit:   s.defaultTransferLimit,
			CreatedAt:            s.clk.Now(),
		})
	}
	if err != nil {
		s.metrics.ObserveOperation("create_account", start, err)
		return nil, nil, fmt.Errorf("failed to resolve account owner: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		s.metrics.ObserveOperation("create_account", start, err)
		return nil, nil, fmt.Errorf("failed to hash account password: %w", err)
	}

	now := s.clk.Now()
	account, err := s.store.CreateAccount(ctx, &domain.Account{
		AccountNumber: newAccountNumber(),
		PasswordHash:  string(hash),
		Balance:       0,
		Status:        domain.AccountStatusActive,
		UserID:        user.ID,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	s.metrics.ObserveOperation("create_account", start, err)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create account: %w", err)
	}

	log.Printf("level=info component=service msg=\"account created\" account_id=%d account_number=%s user_id=%d", account.ID, account.AccountNumber, user.ID)
	return account, user, nil
}

// CloseAccount marks an account deleted. Only active accounts with a zero
// balance can be closed; the row stays in place so its ledger history
// remains reachable.
func (s *Service) CloseAccount(ctx context.Context, accountID int64) error {
	start := time.Now()

	err := s.store.Transact(ctx, func(tx store.Tx) error {
		account, err := tx.GetAccountForUpdate(ctx, accountID)
		if err != nil {
			return err
		}
		if err := account.Close(); err != nil {
			return err
		}
		account.UpdatedAt = s.clk.Now()
		return tx.SaveAccount(ctx, account)
	})
	s.metrics.ObserveOperation("close_account", start, err)
	if err != nil {
		return err
	}

	s.publish(ctx, rabbitmq.RoutingKeyAccountClosed, rabbitmq.AccountClosedEvent{
		AccountID:  accountID,
		OccurredAt: s.clk.Now(),
	})
	log.Printf("level=info component=service msg=\"account closed\" account_id=%d", accountID)
	return nil
}

// Deposit credits amount to the account. Deposits carry no fee and are not
// subject to any daily limit.
func (s *Service) Deposit(ctx context.Context, accountID, amount int64) (*domain.Account, error) {
	start := time.Now()

	var updated *domain.Account
	err := s.store.Transact(ctx, func(tx store.Tx) error {
		account, err := tx.GetAccountForUpdate(ctx, accountID)
		if err != nil {
			return err
		}
		if !account.Status.IsActive() {
			return domain.ErrAccountNotActive
		}

		now := s.clk.Now()
		prev := account.Balance
		if err := account.Deposit(amount, now); err != nil {
			return err
		}
		account.UpdatedAt = now
		if err := tx.SaveAccount(ctx, account); err != nil {
			return err
		}

		if _, err := s.recordLeg(ctx, tx, legParams{
			account:     account,
			kind:        domain.TransactionTypeDeposit,
			gross:       amount,
			net:         amount,
			prevBalance: prev,
			now:         now,
		}); err != nil {
			return err
		}
		updated = account
		return nil
	})
	s.metrics.ObserveOperation("deposit", start, err)
	if err != nil {
		return nil, err
	}

	log.Printf("level=info component=service msg=\"deposit settled\" account_id=%d amount=%d balance=%d", accountID, amount, updated.Balance)
	return updated, nil
}

// Withdraw debits amount from the account after checking the owner's daily
// withdrawal limit against the ledger. Withdrawals carry no fee.
func (s *Service) Withdraw(ctx context.Context, accountID, amount int64) (*domain.Account, error) {
	start := time.Now()

	var updated *domain.Account
	err := s.store.Transact(ctx, func(tx store.Tx) error {
		account, err := tx.GetAccountForUpdate(ctx, accountID)
		if err != nil {
			return err
		}
		if !account.Status.IsActive() {
			return domain.ErrAccountNotActive
		}

		user, err := tx.GetUserByID(ctx, account.UserID)
		if err != nil {
			return err
		}

		now := s.clk.Now()
		day := s.clk.DateStamp(now)
		remaining, err := s.remainingDailyLimit(ctx, tx, user.ID, domain.TransactionTypeWithdraw, user.DailyWithdrawalLimit, amount, day)
		if err != nil {
			return err
		}
		if remaining < 0 {
			return fmt.Errorf("daily withdrawal limit %d exceeded: %w", user.DailyWithdrawalLimit, domain.ErrLimitExceeded)
		}

		prev := account.Balance
		if err := account.Withdraw(amount, now); err != nil {
			return err
		}
		account.UpdatedAt = now
		if err := tx.SaveAccount(ctx, account); err != nil {
			return err
		}

		if _, err := s.recordLeg(ctx, tx, legParams{
			account:     account,
			kind:        domain.TransactionTypeWithdraw,
			gross:       amount,
			net:         amount,
			prevBalance: prev,
			now:         now,
		}); err != nil {
			return err
		}
		updated = account
		return nil
	})
	s.metrics.ObserveOperation("withdraw", start, err)
	if err != nil {
		return nil, err
	}

	log.Printf("level=info component=service msg=\"withdrawal settled\" account_id=%d amount=%d balance=%d", accountID, amount, updated.Balance)
	return updated, nil
}

// Transfer moves req.Amount from the source account to the account with
// req.CounterpartyAccountNumber. The source is debited the amount plus the
// fee, the destination is credited the amount, and both ledger legs are
// written and cross-linked in the same transaction. Row locks are taken in
// ascending account id order.
func (s *Service) Transfer(ctx context.Context, sourceID int64, req domain.TransferRequest) (*domain.Account, error) {
	start := time.Now()

	var (
		updated   *domain.Account
		debitLeg  *domain.Transaction
		creditLeg *domain.Transaction
		fee       int64
		dstID     int64
	)
	err := s.store.Transact(ctx, func(tx store.Tx) error {
		source, err := tx.GetAccount(ctx, sourceID)
		if err != nil {
			return err
		}
		user, err := tx.GetUserByID(ctx, source.UserID)
		if err != nil {
			return err
		}

		now := s.clk.Now()
		day := s.clk.DateStamp(now)
		remaining, err := s.remainingDailyLimit(ctx, tx, user.ID, domain.TransactionTypeTransfer, user.DailyTransferLimit, req.Amount, day)
		if err != nil {
			return err
		}
		if remaining < 0 {
			return fmt.Errorf("daily transfer limit %d exceeded: %w", user.DailyTransferLimit, domain.ErrLimitExceeded)
		}

		dest, err := tx.GetAccountByNumber(ctx, req.CounterpartyAccountNumber)
		if err != nil {
			if errors.Is(err, domain.ErrAccountNotFound) {
				return fmt.Errorf("account number %s: %w", req.CounterpartyAccountNumber, domain.ErrCounterpartyNotFound)
			}
			return err
		}

		// Lock both rows in ascending id order so two opposite-direction
		// transfers between the same pair cannot deadlock.
		first, second := source.ID, dest.ID
		if second < first {
			first, second = second, first
		}
		if _, err := tx.GetAccountForUpdate(ctx, first); err != nil {
			return err
		}
		if second != first {
			if _, err := tx.GetAccountForUpdate(ctx, second); err != nil {
				return err
			}
		}
		// Re-read under the locks; the pre-lock snapshots may be stale.
		if source, err = tx.GetAccountForUpdate(ctx, source.ID); err != nil {
			return err
		}
		if dest, err = tx.GetAccountForUpdate(ctx, dest.ID); err != nil {
			return err
		}
		if dest.ID == source.ID {
			dest = source
		}
		if !source.Status.IsActive() || !dest.Status.IsActive() {
			return domain.ErrAccountNotActive
		}

		destUser, err := tx.GetUserByID(ctx, dest.UserID)
		if err != nil {
			return err
		}

		var gross int64
		fee, gross = ComputeTransferFee(req.Amount, s.feeRateBps)
		dstID = dest.ID

		prevSource := source.Balance
		if err := source.Withdraw(gross, now); err != nil {
			return err
		}
		source.UpdatedAt = now
		if err := tx.SaveAccount(ctx, source); err != nil {
			return err
		}
		debitLeg, err = s.recordLeg(ctx, tx, legParams{
			account:      source,
			kind:         domain.TransactionTypeTransfer,
			gross:        gross,
			net:          req.Amount,
			fee:          fee,
			feeRateBps:   s.feeRateBps,
			prevBalance:  prevSource,
			counterparty: dest,
			counterName:  destUser.Username,
			memo:         req.Memo,
			now:          now,
		})
		if err != nil {
			return err
		}

		prevDest := dest.Balance
		if err := dest.Deposit(req.Amount, now); err != nil {
			return err
		}
		dest.UpdatedAt = now
		if err := tx.SaveAccount(ctx, dest); err != nil {
			return err
		}
		creditLeg, err = s.recordLeg(ctx, tx, legParams{
			account:      dest,
			kind:         domain.TransactionTypeDeposit,
			gross:        req.Amount,
			net:          req.Amount,
			prevBalance:  prevDest,
			counterparty: source,
			counterName:  user.Username,
			memo:         req.Memo,
			now:          now,
		})
		if err != nil {
			return err
		}

		if err := tx.LinkTransactions(ctx, debitLeg.ID, creditLeg.ID); err != nil {
			return err
		}
		updated = source
		return nil
	})
	s.metrics.ObserveOperation("transfer", start, err)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, rabbitmq.RoutingKeyTransferCompleted, rabbitmq.TransferCompletedEvent{
		SourceAccountID:      sourceID,
		DestinationAccountID: dstID,
		DebitLegID:           debitLeg.ID,
		CreditLegID:          creditLeg.ID,
		Amount:               req.Amount,
		Fee:                  fee,
		OccurredAt:           s.clk.Now(),
	})
	log.Printf("level=info component=service msg=\"transfer settled\" source_account_id=%d destination_account_id=%d amount=%d fee=%d", sourceID, dstID, req.Amount, fee)
	return updated, nil
}

// TransactionHistory returns the account's ledger rows, newest first. The
// page size defaults to 20 and is capped at 100.
func (s *Service) TransactionHistory(ctx context.Context, accountID int64, limit, offset int) ([]domain.Transaction, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	if offset < 0 {
		offset = 0
	}

	if _, err := s.store.GetAccount(ctx, accountID); err != nil {
		return nil, err
	}
	return s.store.FindTransactionsByAccount(ctx, accountID, limit, offset)
}

// GetAccount returns the current account row.
func (s *Service) GetAccount(ctx context.Context, accountID int64) (*domain.Account, error) {
	return s.store.GetAccount(ctx, accountID)
}

// AccountDetail returns the account together with its owning user.
func (s *Service) AccountDetail(ctx context.Context, accountID int64) (*domain.Account, *domain.User, error) {
	account, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		return nil, nil, err
	}
	user, err := s.store.GetUserByID(ctx, account.UserID)
	if err != nil {
		return nil, nil, err
	}
	return account, user, nil
}

type legParams struct {
	account      *domain.Account
	kind         domain.TransactionType
	gross        int64
	net          int64
	fee          int64
	feeRateBps   int32
	prevBalance  int64
	counterparty *domain.Account
	counterName  string
	memo         *string
	now          time.Time
}

// recordLeg appends one ledger row for the account's current state. The
// post balance is read from the account after the mutation, so the row
// always reflects the balance the account carried when the leg settled.
func (s *Service) recordLeg(ctx context.Context, tx store.Tx, p legParams) (*domain.Transaction, error) {
	txn := &domain.Transaction{
		AccountID:   p.account.ID,
		Type:        p.kind,
		GrossAmount: p.gross,
		NetAmount:   p.net,
		Fee:         p.fee,
		FeeRateBps:  p.feeRateBps,
		PrevBalance: p.prevBalance,
		PostBalance: p.account.Balance,
		DateStamp:   s.clk.DateStamp(p.now),
		Memo:        p.memo,
		CreatedAt:   p.now,
	}
	if p.counterparty != nil {
		name := p.counterName
		number := p.counterparty.AccountNumber
		txn.CounterpartyName = &name
		txn.CounterpartyAccountNumber = &number
	}
	return tx.SaveTransaction(ctx, txn)
}

// remainingDailyLimit computes limit − (requested + already used today)
// from the persisted ledger. A zero remainder is still within the limit.
func (s *Service) remainingDailyLimit(ctx context.Context, tx store.Tx, userID int64, kind domain.TransactionType, limit, requested int64, day string) (int64, error) {
	used, err := tx.SumNetAmountByDay(ctx, userID, kind, day)
	if err != nil {
		return 0, err
	}
	return limit - (requested + used), nil
}

func (s *Service) publish(ctx context.Context, routingKey string, event any) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, routingKey, event); err != nil {
		log.Printf("level=warn component=service msg=\"failed to publish event\" routing_key=%s error=%v", routingKey, err)
	}
}

// newAccountNumber derives a 16 character account number from a fresh
// UUID's hex representation.
func newAccountNumber() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:16]
}
