package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"storefront/internal/models"
	"storefront/internal/repositories"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// memStore is an in-memory database with PostgreSQL-like row locks on the
// stock table: FOR UPDATE NOWAIT fails at once when another transaction
// holds the row, and locks taken inside a savepoint are dropped when the
// savepoint rolls back.
type memStore struct {
	mu       sync.Mutex
	users    map[uuid.UUID]*models.User
	products map[uuid.UUID]*models.Product
	stock    map[uuid.UUID]*memStockRow
	orders   []*models.Order
}

type memStockRow struct {
	row    models.Stock
	holder *memTx
}

func newMemStore() *memStore {
	return &memStore{
		users:    make(map[uuid.UUID]*models.User),
		products: make(map[uuid.UUID]*models.Product),
		stock:    make(map[uuid.UUID]*memStockRow),
	}
}

func (s *memStore) addUser() *models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := &models.User{ID: uuid.New(), Username: "user-" + uuid.NewString()[:8], Role: models.RoleUser}
	s.users[u.ID] = u
	return u
}

func (s *memStore) addProduct(price int64, quantity int) *models.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := &models.Product{ID: uuid.New(), Name: "product", Price: price}
	s.products[p.ID] = p
	s.stock[p.ID] = &memStockRow{row: models.Stock{ID: uuid.New(), ProductID: p.ID, Quantity: quantity}}
	return p
}

func (s *memStore) quantity(productID uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stock[productID].row.Quantity
}

func (s *memStore) orderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders)
}

// db returns a DBTX whose Begin starts an in-memory transaction
func (s *memStore) db() repositories.DBTX {
	return &memDB{store: s}
}

type memDB struct {
	repositories.DBTX
	store *memStore
}

func (d *memDB) Begin(ctx context.Context) (pgx.Tx, error) {
	return &memTx{store: d.store}, nil
}

type undoEntry struct {
	productID uuid.UUID
	quantity  int
}

// memTx implements the parts of pgx.Tx the services use. Calling anything
// else panics through the nil embedded interface.
type memTx struct {
	pgx.Tx
	store  *memStore
	locks  []uuid.UUID
	undo   []undoEntry
	orders []*models.Order
	closed bool
}

func (t *memTx) Begin(ctx context.Context) (pgx.Tx, error) {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	if t.closed {
		return nil, pgx.ErrTxClosed
	}
	return &memSavepoint{tx: t, locks: len(t.locks), undo: len(t.undo), orders: len(t.orders)}, nil
}

func (t *memTx) Commit(ctx context.Context) error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	if t.closed {
		return pgx.ErrTxClosed
	}
	t.store.orders = append(t.store.orders, t.orders...)
	t.releaseLocked(0)
	t.closed = true
	return nil
}

func (t *memTx) Rollback(ctx context.Context) error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	if t.closed {
		return pgx.ErrTxClosed
	}
	t.revertLocked(0, 0, 0)
	t.closed = true
	return nil
}

// revertLocked undoes writes and drops locks taken after the given marks.
// The store mutex must be held.
func (t *memTx) revertLocked(locks, undo, orders int) {
	for i := len(t.undo) - 1; i >= undo; i-- {
		t.store.stock[t.undo[i].productID].row.Quantity = t.undo[i].quantity
	}
	t.undo = t.undo[:undo]
	t.orders = t.orders[:orders]
	t.releaseLocked(locks)
}

func (t *memTx) releaseLocked(from int) {
	for _, id := range t.locks[from:] {
		if row, ok := t.store.stock[id]; ok && row.holder == t {
			row.holder = nil
		}
	}
	t.locks = t.locks[:from]
}

type memSavepoint struct {
	pgx.Tx
	tx     *memTx
	locks  int
	undo   int
	orders int
	closed bool
}

func (sp *memSavepoint) Commit(ctx context.Context) error {
	sp.closed = true
	return nil
}

func (sp *memSavepoint) Rollback(ctx context.Context) error {
	sp.tx.store.mu.Lock()
	defer sp.tx.store.mu.Unlock()
	if sp.closed {
		return pgx.ErrTxClosed
	}
	sp.tx.revertLocked(sp.locks, sp.undo, sp.orders)
	sp.closed = true
	return nil
}

func ownerOf(q repositories.DBTX) (*memTx, error) {
	switch v := q.(type) {
	case *memTx:
		return v, nil
	case *memSavepoint:
		return v.tx, nil
	}
	return nil, fmt.Errorf("memstore: unsupported querier %T", q)
}

type memUserRepo struct{ store *memStore }

func (r *memUserRepo) Create(ctx context.Context, user *models.User) error {
	return errors.New("memstore: not supported")
}

func (r *memUserRepo) GetByID(ctx context.Context, q repositories.DBTX, id uuid.UUID) (*models.User, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	u, ok := r.store.users[id]
	if !ok {
		return nil, fmt.Errorf("failed to get user: %w", repositories.ErrNotFound)
	}
	copied := *u
	return &copied, nil
}

func (r *memUserRepo) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return nil, errors.New("memstore: not supported")
}

type memProductRepo struct{ store *memStore }

func (r *memProductRepo) Create(ctx context.Context, q repositories.DBTX, product *models.Product) error {
	return errors.New("memstore: not supported")
}

func (r *memProductRepo) GetByID(ctx context.Context, q repositories.DBTX, id uuid.UUID) (*models.Product, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	p, ok := r.store.products[id]
	if !ok {
		return nil, fmt.Errorf("failed to get product: %w", repositories.ErrNotFound)
	}
	copied := *p
	return &copied, nil
}

func (r *memProductRepo) Update(ctx context.Context, product *models.Product) error {
	return errors.New("memstore: not supported")
}

func (r *memProductRepo) Delete(ctx context.Context, q repositories.DBTX, id uuid.UUID) error {
	return errors.New("memstore: not supported")
}

func (r *memProductRepo) List(ctx context.Context) ([]*models.Product, error) {
	return nil, errors.New("memstore: not supported")
}

type memStockRepo struct{ store *memStore }

func (r *memStockRepo) Create(ctx context.Context, q repositories.DBTX, stock *models.Stock) error {
	return errors.New("memstore: not supported")
}

func (r *memStockRepo) LockNoWait(ctx context.Context, q repositories.DBTX, productID uuid.UUID) (*models.Stock, error) {
	tx, err := ownerOf(q)
	if err != nil {
		return nil, err
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	row, ok := r.store.stock[productID]
	if !ok {
		return nil, fmt.Errorf("failed to lock stock: %w", repositories.ErrNotFound)
	}
	if row.holder != nil && row.holder != tx {
		return nil, fmt.Errorf("failed to lock stock: %w", repositories.ErrLockNotAvailable)
	}
	if row.holder == nil {
		row.holder = tx
		tx.locks = append(tx.locks, productID)
	}
	copied := row.row
	return &copied, nil
}

func (r *memStockRepo) Decrement(ctx context.Context, q repositories.DBTX, productID uuid.UUID, quantity int) (int, error) {
	return r.adjust(q, productID, -quantity)
}

func (r *memStockRepo) Increment(ctx context.Context, q repositories.DBTX, productID uuid.UUID, quantity int) (int, error) {
	return r.adjust(q, productID, quantity)
}

func (r *memStockRepo) adjust(q repositories.DBTX, productID uuid.UUID, delta int) (int, error) {
	tx, err := ownerOf(q)
	if err != nil {
		return 0, err
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	row, ok := r.store.stock[productID]
	if !ok {
		return 0, repositories.ErrNotFound
	}
	if row.holder != tx {
		// an UPDATE would block here; the services must never get this far
		return 0, errors.New("memstore: stock updated without holding its lock")
	}
	if row.row.Quantity+delta < 0 {
		return 0, repositories.ErrStockUnderflow
	}
	tx.undo = append(tx.undo, undoEntry{productID: productID, quantity: row.row.Quantity})
	row.row.Quantity += delta
	return row.row.Quantity, nil
}

func (r *memStockRepo) DeleteByProduct(ctx context.Context, q repositories.DBTX, productID uuid.UUID) error {
	return errors.New("memstore: not supported")
}

func (r *memStockRepo) GetByProduct(ctx context.Context, productID uuid.UUID) (*models.Stock, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	row, ok := r.store.stock[productID]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	copied := row.row
	return &copied, nil
}

func (r *memStockRepo) ListBelow(ctx context.Context, threshold int) ([]*models.LowStockItem, error) {
	return nil, errors.New("memstore: not supported")
}

type memOrderRepo struct{ store *memStore }

func (r *memOrderRepo) Create(ctx context.Context, q repositories.DBTX, order *models.Order) error {
	tx, err := ownerOf(q)
	if err != nil {
		return err
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	tx.orders = append(tx.orders, order)
	return nil
}

func (r *memOrderRepo) List(ctx context.Context) ([]*models.Order, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	orders := make([]*models.Order, len(r.store.orders))
	copy(orders, r.store.orders)
	return orders, nil
}
