package repositories

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"yawatu/internal/models"
)

// memoryLedger is an in-memory LedgerRepository used by unit tests and local
// development. A single mutex stands in for row locking: everything is
// serialized, which trivially satisfies single-writer-per-wallet.
type memoryLedger struct {
	mu       *sync.Mutex
	inTx     bool
	wallets  map[uint]*models.Wallet
	txs      map[string]*models.Transaction
	nextID   *uint
	sequence *int64
}

// NewMemoryLedgerRepository returns an empty in-memory ledger.
func NewMemoryLedgerRepository() LedgerRepository {
	var id uint = 1
	var seq int64
	return &memoryLedger{
		mu:       &sync.Mutex{},
		wallets:  make(map[uint]*models.Wallet),
		txs:      make(map[string]*models.Transaction),
		nextID:   &id,
		sequence: &seq,
	}
}

func (m *memoryLedger) lock() func() {
	if m.inTx {
		return func() {}
	}
	m.mu.Lock()
	return m.mu.Unlock
}

func copyWallet(w *models.Wallet) *models.Wallet {
	c := *w
	return &c
}

func copyTransaction(t *models.Transaction) *models.Transaction {
	c := *t
	return &c
}

func (m *memoryLedger) CreateWallet(w *models.Wallet) error {
	defer m.lock()()
	for _, existing := range m.wallets {
		if existing.UserID == w.UserID && existing.Currency == w.Currency {
			return ErrDuplicateWallet
		}
	}
	if w.ID == 0 {
		w.ID = *m.nextID
		*m.nextID++
	}
	now := time.Now()
	w.CreatedAt = now
	w.UpdatedAt = now
	m.wallets[w.ID] = copyWallet(w)
	return nil
}

func (m *memoryLedger) GetWallet(id uint) (*models.Wallet, error) {
	defer m.lock()()
	w, ok := m.wallets[id]
	if !ok {
		return nil, ErrWalletNotFound
	}
	return copyWallet(w), nil
}

func (m *memoryLedger) GetWalletByUser(userID uint, currency string) (*models.Wallet, error) {
	defer m.lock()()
	for _, w := range m.wallets {
		if w.UserID == userID && w.Currency == currency {
			return copyWallet(w), nil
		}
	}
	return nil, ErrWalletNotFound
}

func (m *memoryLedger) GetWalletForUpdate(id uint) (*models.Wallet, error) {
	return m.GetWallet(id)
}

func (m *memoryLedger) UpdateWallet(w *models.Wallet) error {
	defer m.lock()()
	if _, ok := m.wallets[w.ID]; !ok {
		return ErrWalletNotFound
	}
	w.UpdatedAt = time.Now()
	m.wallets[w.ID] = copyWallet(w)
	return nil
}

func (m *memoryLedger) CreateTransaction(t *models.Transaction) error {
	defer m.lock()()
	now := time.Now()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now
	*m.sequence++
	m.txs[t.ID] = copyTransaction(t)
	return nil
}

func (m *memoryLedger) GetTransaction(id string) (*models.Transaction, error) {
	defer m.lock()()
	t, ok := m.txs[id]
	if !ok {
		return nil, ErrTransactionNotFound
	}
	return copyTransaction(t), nil
}

func (m *memoryLedger) GetTransactionForUpdate(id string) (*models.Transaction, error) {
	return m.GetTransaction(id)
}

func (m *memoryLedger) GetTransactionByReference(userID uint, reference string) (*models.Transaction, error) {
	defer m.lock()()
	for _, t := range m.txs {
		if t.UserID == userID && t.GatewayReference == reference {
			return copyTransaction(t), nil
		}
	}
	return nil, ErrTransactionNotFound
}

func (m *memoryLedger) UpdateTransaction(t *models.Transaction) error {
	defer m.lock()()
	if _, ok := m.txs[t.ID]; !ok {
		return ErrTransactionNotFound
	}
	t.UpdatedAt = time.Now()
	m.txs[t.ID] = copyTransaction(t)
	return nil
}

func (m *memoryLedger) ListTransactions(ctx context.Context, userID uint, limit, offset int) ([]models.Transaction, error) {
	defer m.lock()()
	var out []models.Transaction
	for _, t := range m.txs {
		if t.UserID == userID {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (m *memoryLedger) ListByStatus(statuses []string, olderThan time.Time, limit int) ([]models.Transaction, error) {
	defer m.lock()()
	var out []models.Transaction
	for _, t := range m.txs {
		if t.UpdatedAt.Before(olderThan) && containsStatus(statuses, t.Status) {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func containsStatus(statuses []string, s string) bool {
	for _, status := range statuses {
		if strings.EqualFold(status, s) {
			return true
		}
	}
	return false
}

func (m *memoryLedger) SumCompletedInWindow(ctx context.Context, userID uint, txType string, start, end time.Time) (int64, error) {
	defer m.lock()()
	var total int64
	for _, t := range m.txs {
		if t.UserID != userID || t.Type != txType || t.Status != models.StatusCompleted {
			continue
		}
		if t.CreatedAt.Before(start) || !t.CreatedAt.Before(end) {
			continue
		}
		if t.Amount < 0 {
			total -= t.Amount
		} else {
			total += t.Amount
		}
	}
	return total, nil
}

func (m *memoryLedger) CountByUserSince(ctx context.Context, userID uint, since time.Time) (int64, error) {
	defer m.lock()()
	var count int64
	for _, t := range m.txs {
		if t.UserID == userID && !t.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (m *memoryLedger) ExecuteInTransaction(fn func(LedgerRepository) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Snapshot for rollback on error.
	walletSnap := make(map[uint]*models.Wallet, len(m.wallets))
	for id, w := range m.wallets {
		walletSnap[id] = copyWallet(w)
	}
	txSnap := make(map[string]*models.Transaction, len(m.txs))
	for id, t := range m.txs {
		txSnap[id] = copyTransaction(t)
	}

	inner := &memoryLedger{
		mu:       m.mu,
		inTx:     true,
		wallets:  m.wallets,
		txs:      m.txs,
		nextID:   m.nextID,
		sequence: m.sequence,
	}
	if err := fn(inner); err != nil {
		m.wallets = walletSnap
		m.txs = txSnap
		return err
	}
	return nil
}

// memoryCache is an in-memory CacheRepository for tests.
type memoryCache struct {
	mu      sync.Mutex
	entries map[string]memoryCacheEntry
}

type memoryCacheEntry struct {
	value     string
	expiresAt time.Time
}

// NewMemoryCache returns an empty in-memory cache.
func NewMemoryCache() CacheRepository {
	return &memoryCache{entries: make(map[string]memoryCacheEntry)}
}

func (c *memoryCache) Get(ctx context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || (!e.expiresAt.IsZero() && time.Now().After(e.expiresAt)) {
		delete(c.entries, key)
		return "", ErrCacheMiss
	}
	return e.value, nil
}

func (c *memoryCache) Set(ctx context.Context, key, value string, expiration time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = memoryCacheEntry{value: value, expiresAt: expiry(expiration)}
	return nil
}

func (c *memoryCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	return nil
}

func (c *memoryCache) SetNX(ctx context.Context, key, value string, expiration time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok && (e.expiresAt.IsZero() || time.Now().Before(e.expiresAt)) {
		return false, nil
	}
	c.entries[key] = memoryCacheEntry{value: value, expiresAt: expiry(expiration)}
	return true, nil
}

func (c *memoryCache) Close() error { return nil }

func expiry(d time.Duration) time.Time {
	if d <= 0 {
		return time.Time{}
	}
	return time.Now().Add(d)
}
