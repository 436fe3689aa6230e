/**
 * @description
 * This file provides the in-memory implementation of the Store and Tx
 * interfaces. It mirrors the PostgreSQL semantics the core depends on: an
 * exclusive per-account lock held for the whole unit of work, reads of
 * committed state only, and atomic commit of all staged writes. It backs the
 * test suite and lets the service boot without a database.
 *
 * The lock manager is a mutex map keyed by account id. Callers are expected
 * to acquire locks in ascending id order; within one unit of work
 * GetAccountForUpdate is reentrant.
 */

package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/vaultline/ledger-service/internal/domain"
)

// MemoryStore is an in-process Store. All committed state lives behind mu;
// rowLocks serializes units of work that mutate the same account.
type MemoryStore struct {
	mu           sync.Mutex
	accounts     map[int64]*domain.Account
	byNumber     map[string]int64
	users        map[int64]*domain.User
	byPhone      map[string]int64
	transactions map[int64]*domain.Transaction

	nextAccountID int64
	nextUserID    int64
	nextTxnID     int64

	rowLocks map[int64]*sync.Mutex
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts:     make(map[int64]*domain.Account),
		byNumber:     make(map[string]int64),
		users:        make(map[int64]*domain.User),
		byPhone:      make(map[string]int64),
		transactions: make(map[int64]*domain.Transaction),
		rowLocks:     make(map[int64]*sync.Mutex),
	}
}

func cloneAccount(a *domain.Account) *domain.Account {
	c := *a
	if a.LastBalanceChangedAt != nil {
		ts := *a.LastBalanceChangedAt
		c.LastBalanceChangedAt = &ts
	}
	return &c
}

func cloneTransaction(t *domain.Transaction) *domain.Transaction {
	c := *t
	if t.SiblingID != nil {
		v := *t.SiblingID
		c.SiblingID = &v
	}
	if t.CounterpartyName != nil {
		v := *t.CounterpartyName
		c.CounterpartyName = &v
	}
	if t.CounterpartyAccountNumber != nil {
		v := *t.CounterpartyAccountNumber
		c.CounterpartyAccountNumber = &v
	}
	if t.Memo != nil {
		v := *t.Memo
		c.Memo = &v
	}
	return &c
}

func cloneUser(u *domain.User) *domain.User {
	c := *u
	return &c
}

// rowLock returns the lock for one account id, creating it on first use.
func (s *MemoryStore) rowLock(id int64) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.rowLocks[id]
	if !ok {
		l = &sync.Mutex{}
		s.rowLocks[id] = l
	}
	return l
}

// Transact runs fn as one unit of work. Staged writes become visible
// atomically on commit; on error everything staged is discarded. Row locks
// are released only after the commit (or the discard), so waiters always
// observe the updated state.
func (s *MemoryStore) Transact(ctx context.Context, fn func(tx Tx) error) error {
	tx := &memoryTx{
		s:      s,
		locked: make(map[int64]*domain.Account),
		saved:  make(map[int64]*domain.Account),
		staged: make(map[int64]*domain.Transaction),
	}
	defer tx.release()

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		return err
	}
	tx.commit()
	return nil
}

// GetAccount reads committed account state.
func (s *MemoryStore) GetAccount(ctx context.Context, id int64) (*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return cloneAccount(a), nil
}

// GetAccountByNumber reads committed account state by number.
func (s *MemoryStore) GetAccountByNumber(ctx context.Context, number string) (*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byNumber[number]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return cloneAccount(s.accounts[id]), nil
}

// CreateAccount assigns an id and stores the account.
func (s *MemoryStore) CreateAccount(ctx context.Context, account *domain.Account) (*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextAccountID++
	account.ID = s.nextAccountID
	now := time.Now()
	account.CreatedAt = now
	account.UpdatedAt = now
	s.accounts[account.ID] = cloneAccount(account)
	s.byNumber[account.AccountNumber] = account.ID
	return account, nil
}

// FindUserByPhone looks up a user by the phone uniqueness key.
func (s *MemoryStore) FindUserByPhone(ctx context.Context, phone string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byPhone[phone]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return cloneUser(s.users[id]), nil
}

// CreateUser assigns an id and stores the user.
func (s *MemoryStore) CreateUser(ctx context.Context, user *domain.User) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextUserID++
	user.ID = s.nextUserID
	user.CreatedAt = time.Now()
	s.users[user.ID] = cloneUser(user)
	s.byPhone[user.Phone] = user.ID
	return user, nil
}

// GetUserByID reads committed user state.
func (s *MemoryStore) GetUserByID(ctx context.Context, id int64) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return cloneUser(u), nil
}

// FindTransactionsByAccount returns the account's legs ordered by id
// descending, sliced by limit and offset.
func (s *MemoryStore) FindTransactionsByAccount(ctx context.Context, accountID int64, limit, offset int) ([]domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []*domain.Transaction
	for _, t := range s.transactions {
		if t.AccountID == accountID {
			matched = append(matched, t)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID > matched[j].ID })

	if offset >= len(matched) {
		return nil, nil
	}
	matched = matched[offset:]
	if limit < len(matched) {
		matched = matched[:limit]
	}

	out := make([]domain.Transaction, 0, len(matched))
	for _, t := range matched {
		out = append(out, *cloneTransaction(t))
	}
	return out, nil
}

// FindUnlinkedTransferLegs returns committed transfer legs for one day that
// still lack their sibling cross-reference.
func (s *MemoryStore) FindUnlinkedTransferLegs(ctx context.Context, dateStamp string) ([]UnlinkedLeg, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []UnlinkedLeg
	for _, t := range s.transactions {
		if t.DateStamp != dateStamp || t.SiblingID != nil || t.CounterpartyAccountNumber == nil {
			continue
		}
		acct, ok := s.accounts[t.AccountID]
		if !ok {
			continue
		}
		out = append(out, UnlinkedLeg{Leg: *cloneTransaction(t), AccountNumber: acct.AccountNumber})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Leg.ID < out[j].Leg.ID })
	return out, nil
}

// memoryTx stages writes for one unit of work.
type memoryTx struct {
	s         *MemoryStore
	locked    map[int64]*domain.Account // working copies under row lock
	held      []*sync.Mutex             // acquisition order, for release
	saved     map[int64]*domain.Account     // accounts staged for write-back
	staged    map[int64]*domain.Transaction // pending ledger rows, id preassigned
	stagedIDs []int64
	links     [][2]int64
	done      bool
}

func (tx *memoryTx) GetAccount(ctx context.Context, id int64) (*domain.Account, error) {
	if a, ok := tx.locked[id]; ok {
		return a, nil
	}
	return tx.s.GetAccount(ctx, id)
}

func (tx *memoryTx) GetAccountForUpdate(ctx context.Context, id int64) (*domain.Account, error) {
	if a, ok := tx.locked[id]; ok {
		return a, nil
	}

	// Existence check before blocking on the row lock, so a lookup of a
	// missing account never waits behind a writer.
	if _, err := tx.s.GetAccount(ctx, id); err != nil {
		return nil, err
	}

	l := tx.s.rowLock(id)
	l.Lock()

	a, err := tx.s.GetAccount(ctx, id)
	if err != nil {
		l.Unlock()
		return nil, err
	}
	tx.locked[id] = a
	tx.held = append(tx.held, l)
	return a, nil
}

func (tx *memoryTx) GetAccountByNumber(ctx context.Context, number string) (*domain.Account, error) {
	a, err := tx.s.GetAccountByNumber(ctx, number)
	if err != nil {
		return nil, err
	}
	if held, ok := tx.locked[a.ID]; ok {
		return held, nil
	}
	return a, nil
}

func (tx *memoryTx) SaveAccount(ctx context.Context, account *domain.Account) error {
	tx.s.mu.Lock()
	_, exists := tx.s.accounts[account.ID]
	tx.s.mu.Unlock()
	if !exists {
		return domain.ErrAccountNotFound
	}
	tx.saved[account.ID] = cloneAccount(account)
	return nil
}

func (tx *memoryTx) SaveTransaction(ctx context.Context, txn *domain.Transaction) (*domain.Transaction, error) {
	tx.s.mu.Lock()
	tx.s.nextTxnID++
	txn.ID = tx.s.nextTxnID
	tx.s.mu.Unlock()

	if txn.CreatedAt.IsZero() {
		txn.CreatedAt = time.Now()
	}
	tx.staged[txn.ID] = cloneTransaction(txn)
	tx.stagedIDs = append(tx.stagedIDs, txn.ID)
	return txn, nil
}

func (tx *memoryTx) LinkTransactions(ctx context.Context, aID, bID int64) error {
	tx.links = append(tx.links, [2]int64{aID, bID})
	return nil
}

func (tx *memoryTx) SumNetAmountByDay(ctx context.Context, userID int64, kind domain.TransactionType, dateStamp string) (int64, error) {
	tx.s.mu.Lock()
	defer tx.s.mu.Unlock()

	var sum int64
	for _, t := range tx.s.transactions {
		if t.Type != kind || t.DateStamp != dateStamp {
			continue
		}
		acct, ok := tx.s.accounts[t.AccountID]
		if !ok || acct.UserID != userID {
			continue
		}
		sum += t.NetAmount
	}
	return sum, nil
}

func (tx *memoryTx) GetUserByID(ctx context.Context, id int64) (*domain.User, error) {
	return tx.s.GetUserByID(ctx, id)
}

// commit publishes every staged write atomically.
func (tx *memoryTx) commit() {
	s := tx.s
	s.mu.Lock()
	for id, a := range tx.saved {
		a.UpdatedAt = time.Now()
		s.accounts[id] = a
	}
	for _, id := range tx.stagedIDs {
		s.transactions[id] = tx.staged[id]
	}
	for _, pair := range tx.links {
		tx.applyLink(pair[0], pair[1])
		tx.applyLink(pair[1], pair[0])
	}
	s.mu.Unlock()

	tx.releaseLocks()
	tx.done = true
}

// applyLink sets sibling on a row that is either part of this unit of work or
// already committed. Caller holds s.mu.
func (tx *memoryTx) applyLink(id, siblingID int64) {
	sid := siblingID
	if t, ok := tx.s.transactions[id]; ok {
		t.SiblingID = &sid
	}
}

func (tx *memoryTx) releaseLocks() {
	for i := len(tx.held) - 1; i >= 0; i-- {
		tx.held[i].Unlock()
	}
	tx.held = nil
}

// release discards staged state when the unit of work failed.
func (tx *memoryTx) release() {
	if tx.done {
		return
	}
	tx.releaseLocks()
}
