package integration

import (
	"context"
	"sort"
	"sync"
	"time"

	"invest-ledger/internal/core/domain"
	"invest-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// In-memory repository implementations faithful to the postgres adapters'
// contracts: check-and-set transitions return ports.ErrStaleStatus, debits
// below zero return ports.ErrInsufficientFunds, and every map access is
// mutex-guarded so concurrency tests exercise real interleavings.

// fakeTx satisfies pgx.Tx for code paths that only Commit or Rollback.
type fakeTx struct {
	pgx.Tx
}

func (fakeTx) Commit(ctx context.Context) error   { return nil }
func (fakeTx) Rollback(ctx context.Context) error { return nil }

type inMemoryTransactor struct{}

func (inMemoryTransactor) Begin(ctx context.Context) (pgx.Tx, error) { return fakeTx{}, nil }

// --- Balances ---

type inMemoryBalanceRepo struct {
	mu       sync.Mutex
	balances map[uuid.UUID]*domain.Balance
}

func newInMemoryBalanceRepo() *inMemoryBalanceRepo {
	return &inMemoryBalanceRepo{balances: make(map[uuid.UUID]*domain.Balance)}
}

func (r *inMemoryBalanceRepo) Get(ctx context.Context, userID uuid.UUID) (*domain.Balance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.balances[userID]
	if !ok {
		return nil, nil
	}
	cp := *b
	return &cp, nil
}

func (r *inMemoryBalanceRepo) Credit(ctx context.Context, tx pgx.Tx, userID uuid.UUID, pool domain.BalancePool, amount decimal.Decimal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.balances[userID]
	if !ok {
		b = domain.ZeroBalance(userID)
		b.ID = uuid.New()
		b.CreatedAt = time.Now()
		r.balances[userID] = b
	}
	r.apply(b, pool, amount)
	return nil
}

func (r *inMemoryBalanceRepo) Debit(ctx context.Context, tx pgx.Tx, userID uuid.UUID, pool domain.BalancePool, amount decimal.Decimal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.balances[userID]
	if !ok || b.Pool(pool).LessThan(amount) {
		return ports.ErrInsufficientFunds
	}
	r.apply(b, pool, amount.Neg())
	return nil
}

func (r *inMemoryBalanceRepo) apply(b *domain.Balance, pool domain.BalancePool, delta decimal.Decimal) {
	switch pool {
	case domain.PoolMain:
		b.MainBalance = b.MainBalance.Add(delta)
	case domain.PoolInterest:
		b.InterestBalance = b.InterestBalance.Add(delta)
	case domain.PoolInvestment:
		b.InvestmentBalance = b.InvestmentBalance.Add(delta)
	}
	b.TotalBalance = b.Sum()
	b.UpdatedAt = time.Now()
}

// --- Journal ---

type inMemoryTransactionRepo struct {
	mu  sync.Mutex
	txs map[uuid.UUID]*domain.Transaction
}

func newInMemoryTransactionRepo() *inMemoryTransactionRepo {
	return &inMemoryTransactionRepo{txs: make(map[uuid.UUID]*domain.Transaction)}
}

func (r *inMemoryTransactionRepo) Create(ctx context.Context, tx pgx.Tx, t *domain.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	cp := *t
	r.txs[t.ID] = &cp
	return nil
}

func (r *inMemoryTransactionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.txs[id]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (r *inMemoryTransactionRepo) GetByTxHash(ctx context.Context, tx pgx.Tx, userID uuid.UUID, txHash string) (*domain.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.txs {
		if t.UserID == userID && t.TxHash != nil && *t.TxHash == txHash {
			cp := *t
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *inMemoryTransactionRepo) UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.TransactionStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.txs[id]
	if !ok {
		return pgx.ErrNoRows
	}
	t.Status = status
	t.UpdatedAt = time.Now()
	return nil
}

func (r *inMemoryTransactionRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Transaction
	for _, t := range r.txs {
		if t.UserID == userID {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

// --- Pending transfers ---

type inMemoryPendingRepo struct {
	mu      sync.Mutex
	records map[uuid.UUID]*domain.PendingTransfer
}

func newInMemoryPendingRepo() *inMemoryPendingRepo {
	return &inMemoryPendingRepo{records: make(map[uuid.UUID]*domain.PendingTransfer)}
}

func (r *inMemoryPendingRepo) Create(ctx context.Context, tx pgx.Tx, p *domain.PendingTransfer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	// Mirrors the partial unique index on (user_id, tx_hash) WHERE
	// status = 'pending'.
	for _, q := range r.records {
		if q.UserID == p.UserID && q.TxHash == p.TxHash && q.Status == domain.PendingTransferPending {
			return ports.ErrDuplicateTxHash
		}
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	cp := *p
	r.records[p.ID] = &cp
	return nil
}

func (r *inMemoryPendingRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.PendingTransfer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.records[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (r *inMemoryPendingRepo) GetByTxHash(ctx context.Context, userID uuid.UUID, txHash string) (*domain.PendingTransfer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest *domain.PendingTransfer
	for _, p := range r.records {
		if p.UserID == userID && p.TxHash == txHash {
			if latest == nil || p.CreatedAt.After(latest.CreatedAt) {
				latest = p
			}
		}
	}
	if latest == nil {
		return nil, nil
	}
	cp := *latest
	return &cp, nil
}

func (r *inMemoryPendingRepo) Resolve(ctx context.Context, tx pgx.Tx, id uuid.UUID, to domain.PendingTransferStatus, reviewedBy *uuid.UUID, notes *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.records[id]
	if !ok {
		return pgx.ErrNoRows
	}
	if p.Status != domain.PendingTransferPending {
		return ports.ErrStaleStatus
	}
	p.Status = to
	p.ReviewedBy = reviewedBy
	p.AdminNotes = notes
	p.UpdatedAt = time.Now()
	return nil
}

// mutate edits a stored record in place; tests use it to backdate the
// staging deadline.
func (r *inMemoryPendingRepo) mutate(id uuid.UUID, fn func(*domain.PendingTransfer)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.records[id]; ok {
		fn(p)
	}
}

func (r *inMemoryPendingRepo) ListExpired(ctx context.Context, now time.Time, limit int) ([]domain.PendingTransfer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.PendingTransfer
	for _, p := range r.records {
		if p.Status == domain.PendingTransferPending && p.Expired(now) {
			out = append(out, *p)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (r *inMemoryPendingRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.PendingTransfer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.PendingTransfer
	for _, p := range r.records {
		if p.UserID == userID {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// --- Investments ---

type inMemoryInvestmentRepo struct {
	mu      sync.Mutex
	records map[uuid.UUID]*domain.Investment
}

func newInMemoryInvestmentRepo() *inMemoryInvestmentRepo {
	return &inMemoryInvestmentRepo{records: make(map[uuid.UUID]*domain.Investment)}
}

func (r *inMemoryInvestmentRepo) Create(ctx context.Context, tx pgx.Tx, inv *domain.Investment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if inv.ID == uuid.Nil {
		inv.ID = uuid.New()
	}
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = time.Now()
	}
	cp := *inv
	r.records[inv.ID] = &cp
	return nil
}

func (r *inMemoryInvestmentRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Investment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.records[id]
	if !ok {
		return nil, nil
	}
	cp := *inv
	return &cp, nil
}

func (r *inMemoryInvestmentRepo) Activate(ctx context.Context, tx pgx.Tx, id uuid.UUID, start, end time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.records[id]
	if !ok {
		return pgx.ErrNoRows
	}
	if inv.Status != domain.InvestmentStatusPending {
		return ports.ErrStaleStatus
	}
	inv.Status = domain.InvestmentStatusActive
	inv.StartDate = &start
	inv.EndDate = &end
	watermark := start
	inv.LastProfitCalculation = &watermark
	inv.UpdatedAt = time.Now()
	return nil
}

func (r *inMemoryInvestmentRepo) RecordAccrual(ctx context.Context, tx pgx.Tx, id uuid.UUID, profit decimal.Decimal, calculatedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.records[id]
	if !ok {
		return pgx.ErrNoRows
	}
	if inv.Status != domain.InvestmentStatusActive {
		return ports.ErrStaleStatus
	}
	inv.ActualReturn = inv.ActualReturn.Add(profit)
	inv.TotalReturn = inv.TotalReturn.Add(profit)
	inv.LastProfitCalculation = &calculatedAt
	inv.UpdatedAt = time.Now()
	return nil
}

func (r *inMemoryInvestmentRepo) Complete(ctx context.Context, tx pgx.Tx, id uuid.UUID) (decimal.Decimal, decimal.Decimal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.records[id]
	if !ok {
		return decimal.Zero, decimal.Zero, ports.ErrStaleStatus
	}
	if inv.Status != domain.InvestmentStatusActive {
		return decimal.Zero, decimal.Zero, ports.ErrStaleStatus
	}
	accrued := inv.ActualReturn
	inv.Status = domain.InvestmentStatusCompleted
	inv.ActualReturn = inv.TotalReturn
	inv.UpdatedAt = time.Now()
	return inv.TotalReturn, accrued, nil
}

func (r *inMemoryInvestmentRepo) SetStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, from, to domain.InvestmentStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.records[id]
	if !ok {
		return pgx.ErrNoRows
	}
	if inv.Status != from {
		return ports.ErrStaleStatus
	}
	inv.Status = to
	inv.UpdatedAt = time.Now()
	return nil
}

// mutate edits a stored record in place; tests use it to backdate
// watermarks and term windows.
func (r *inMemoryInvestmentRepo) mutate(id uuid.UUID, fn func(*domain.Investment)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if inv, ok := r.records[id]; ok {
		fn(inv)
	}
}

func (r *inMemoryInvestmentRepo) ListDueAccrual(ctx context.Context, cutoff time.Time, limit int) ([]domain.Investment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Investment
	for _, inv := range r.records {
		if inv.Status == domain.InvestmentStatusActive &&
			inv.LastProfitCalculation != nil &&
			!inv.LastProfitCalculation.After(cutoff) {
			out = append(out, *inv)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (r *inMemoryInvestmentRepo) ListMatured(ctx context.Context, now time.Time, limit int) ([]domain.Investment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Investment
	for _, inv := range r.records {
		if inv.Status == domain.InvestmentStatusActive && inv.Matured(now) {
			out = append(out, *inv)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (r *inMemoryInvestmentRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Investment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Investment
	for _, inv := range r.records {
		if inv.UserID == userID {
			out = append(out, *inv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// --- Withdrawals ---

type inMemoryWithdrawalRepo struct {
	mu      sync.Mutex
	records map[uuid.UUID]*domain.WithdrawalRequest
}

func newInMemoryWithdrawalRepo() *inMemoryWithdrawalRepo {
	return &inMemoryWithdrawalRepo{records: make(map[uuid.UUID]*domain.WithdrawalRequest)}
}

func (r *inMemoryWithdrawalRepo) Create(ctx context.Context, w *domain.WithdrawalRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	if w.CreatedAt.IsZero() {
		w.CreatedAt = time.Now()
	}
	cp := *w
	r.records[w.ID] = &cp
	return nil
}

func (r *inMemoryWithdrawalRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.WithdrawalRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.records[id]
	if !ok {
		return nil, nil
	}
	cp := *w
	return &cp, nil
}

func (r *inMemoryWithdrawalRepo) UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, from, to domain.WithdrawalStatus, patch ports.WithdrawalPatch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.records[id]
	if !ok {
		return pgx.ErrNoRows
	}
	if w.Status != from {
		return ports.ErrStaleStatus
	}
	w.Status = to
	if patch.TransactionHash != nil {
		w.TransactionHash = patch.TransactionHash
	}
	if patch.ReviewedBy != nil {
		w.ReviewedBy = patch.ReviewedBy
	}
	if patch.AdminNotes != nil {
		w.AdminNotes = patch.AdminNotes
	}
	w.UpdatedAt = time.Now()
	return nil
}

func (r *inMemoryWithdrawalRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.WithdrawalRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.WithdrawalRequest
	for _, w := range r.records {
		if w.UserID == userID {
			out = append(out, *w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// --- Plans, users, notifications ---

type inMemoryPlanRepo struct {
	mu    sync.Mutex
	plans map[uuid.UUID]*domain.InvestmentPlan
}

func newInMemoryPlanRepo() *inMemoryPlanRepo {
	return &inMemoryPlanRepo{plans: make(map[uuid.UUID]*domain.InvestmentPlan)}
}

func (r *inMemoryPlanRepo) put(p *domain.InvestmentPlan) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.plans[p.ID] = p
}

func (r *inMemoryPlanRepo) GetPlan(ctx context.Context, id uuid.UUID) (*domain.InvestmentPlan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.plans[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

type inMemoryUserRepo struct {
	mu    sync.Mutex
	users map[uuid.UUID]*domain.User
}

func newInMemoryUserRepo() *inMemoryUserRepo {
	return &inMemoryUserRepo{users: make(map[uuid.UUID]*domain.User)}
}

func (r *inMemoryUserRepo) put(u *domain.User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[u.ID] = u
}

func (r *inMemoryUserRepo) GetUser(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

type inMemoryNotifier struct {
	mu      sync.Mutex
	notices []domain.Notification
}

func newInMemoryNotifier() *inMemoryNotifier {
	return &inMemoryNotifier{}
}

func (r *inMemoryNotifier) Emit(ctx context.Context, userID uuid.UUID, title, message string, priority domain.NotificationPriority, metadata map[string]string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, domain.Notification{
		ID:        uuid.New(),
		UserID:    userID,
		Title:     title,
		Message:   message,
		Priority:  priority,
		Metadata:  metadata,
		CreatedAt: time.Now(),
	})
	return nil
}

func (r *inMemoryNotifier) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.notices)
}
