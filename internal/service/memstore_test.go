package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/tudbom/counter-api/internal/database"
	"github.com/tudbom/counter-api/internal/enum"
)

// --- In-memory stores ---
//
// memDB stands in for one Postgres database. Transactions stage their
// writes and apply them on commit; a single row-lock token is taken by the
// first stock decrement of a transaction and held until it ends, which is
// enough to serialise competing orders the way row locks do.

type memProduct struct {
	name       string
	price      string
	categoryID int64
	stock      int32
}

type memAddon struct {
	name       string
	price      string
	categoryID int64
	stock      int32
}

type memDB struct {
	mu   sync.Mutex
	lock chan struct{}

	categories map[int64]string
	products   map[int64]*memProduct
	addons     map[int64]*memAddon

	orders       []database.Order
	items        []database.OrderItem
	itemAddons   []database.OrderItemAddon
	sales        []database.AddonSale
	movements    []*database.StockMovement
	applied      map[uuid.UUID]bool
	lockTimeouts []string

	nextID    int64
	begins    int
	commits   int
	rollbacks int

	failures  map[string]error
	hooks     map[string]func()
	commitErr error
}

func newMemDB() *memDB {
	return &memDB{
		lock:       make(chan struct{}, 1),
		categories: make(map[int64]string),
		products:   make(map[int64]*memProduct),
		addons:     make(map[int64]*memAddon),
		applied:    make(map[uuid.UUID]bool),
		failures:   make(map[string]error),
		hooks:      make(map[string]func()),
	}
}

func (db *memDB) id() int64 {
	db.nextID++
	return db.nextID
}

func (db *memDB) addCategory(name string) int64 {
	db.mu.Lock()
	defer db.mu.Unlock()
	id := db.id()
	db.categories[id] = name
	return id
}

func (db *memDB) addProduct(name, price string, categoryID int64, stock int32) int64 {
	db.mu.Lock()
	defer db.mu.Unlock()
	id := db.id()
	db.products[id] = &memProduct{name: name, price: price, categoryID: categoryID, stock: stock}
	return id
}

func (db *memDB) addAddon(name, price string, categoryID int64, stock int32) int64 {
	db.mu.Lock()
	defer db.mu.Unlock()
	id := db.id()
	db.addons[id] = &memAddon{name: name, price: price, categoryID: categoryID, stock: stock}
	return id
}

func (db *memDB) productStock(id int64) int32 {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.products[id].stock
}

func (db *memDB) addonStock(id int64) int32 {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.addons[id].stock
}

func (db *memDB) setProductStock(id int64, stock int32) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.products[id].stock = stock
}

// orderRowCount counts every committed order-side row.
func (db *memDB) orderRowCount() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return len(db.orders) + len(db.items) + len(db.itemAddons) + len(db.sales) + len(db.movements)
}

func (db *memDB) enter(method string) error {
	db.mu.Lock()
	hook := db.hooks[method]
	delete(db.hooks, method)
	err := db.failures[method]
	db.mu.Unlock()
	if hook != nil {
		hook()
	}
	return err
}

func (db *memDB) Begin(ctx context.Context) (pgx.Tx, error) {
	if err := db.enter("Begin"); err != nil {
		return nil, err
	}
	db.mu.Lock()
	db.begins++
	db.mu.Unlock()
	return &memTx{
		db:            db,
		productDeltas: make(map[int64]int32),
		addonDeltas:   make(map[int64]int32),
	}, nil
}

// memTx implements pgx.Tx. Statement methods panic: stores reach the data
// through memStore instead.
type memTx struct {
	db            *memDB
	staged        []func(db *memDB)
	productDeltas map[int64]int32
	addonDeltas   map[int64]int32
	holdsLock     bool
	done          bool
}

func (t *memTx) acquire(ctx context.Context) error {
	if t.holdsLock {
		return nil
	}
	select {
	case t.db.lock <- struct{}{}:
		t.holdsLock = true
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *memTx) finish() {
	t.done = true
	t.staged = nil
	if t.holdsLock {
		t.holdsLock = false
		<-t.db.lock
	}
}

func (t *memTx) Commit(ctx context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.db.mu.Lock()
	if err := t.db.commitErr; err != nil {
		t.db.mu.Unlock()
		t.finish()
		return err
	}
	for id, d := range t.productDeltas {
		t.db.products[id].stock -= d
	}
	for id, d := range t.addonDeltas {
		t.db.addons[id].stock -= d
	}
	for _, apply := range t.staged {
		apply(t.db)
	}
	t.db.commits++
	t.db.mu.Unlock()
	t.finish()
	return nil
}

func (t *memTx) Rollback(ctx context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.db.mu.Lock()
	t.db.rollbacks++
	t.db.mu.Unlock()
	t.finish()
	return nil
}

func (t *memTx) Begin(ctx context.Context) (pgx.Tx, error) { panic("not implemented") }
func (t *memTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	panic("not implemented")
}
func (t *memTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	panic("not implemented")
}
func (t *memTx) LargeObjects() pgx.LargeObjects { panic("not implemented") }
func (t *memTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	panic("not implemented")
}
func (t *memTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	panic("not implemented")
}
func (t *memTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	panic("not implemented")
}
func (t *memTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	panic("not implemented")
}
func (t *memTx) Conn() *pgx.Conn { panic("not implemented") }

// memStore serves every store interface of the package. With tx nil it
// reads and writes committed state directly, like a pool.
type memStore struct {
	db *memDB
	tx *memTx
}

func memCatalogFactory(db database.DBTX) CatalogStore {
	tx := db.(*memTx)
	return &memStore{db: tx.db, tx: tx}
}

func memOrderFactory(db database.DBTX) OrderStore {
	tx := db.(*memTx)
	return &memStore{db: tx.db, tx: tx}
}

// write applies fn on commit, or immediately outside a transaction.
func (s *memStore) write(fn func(db *memDB)) {
	if s.tx != nil {
		s.tx.staged = append(s.tx.staged, fn)
		return
	}
	s.db.mu.Lock()
	fn(s.db)
	s.db.mu.Unlock()
}

func numeric(s string) pgtype.Numeric {
	return decimalToNumeric(decimal.RequireFromString(s))
}

func (s *memStore) productRow(id int64, p *memProduct) database.GetProductForOrderRow {
	row := database.GetProductForOrderRow{
		ID:    id,
		Name:  p.name,
		Price: numeric(p.price),
		Stock: p.stock,
	}
	if s.tx != nil {
		row.Stock -= s.tx.productDeltas[id]
	}
	if p.categoryID != 0 {
		row.CategoryID = pgtype.Int8{Int64: p.categoryID, Valid: true}
		if name, ok := s.db.categories[p.categoryID]; ok {
			row.CategoryName = pgtype.Text{String: name, Valid: true}
		}
	}
	return row
}

func (s *memStore) GetProductForOrder(ctx context.Context, id int64) (database.GetProductForOrderRow, error) {
	if err := s.db.enter("GetProductForOrder"); err != nil {
		return database.GetProductForOrderRow{}, err
	}
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	p, ok := s.db.products[id]
	if !ok {
		return database.GetProductForOrderRow{}, pgx.ErrNoRows
	}
	return s.productRow(id, p), nil
}

func (s *memStore) GetProductForOrderByName(ctx context.Context, name string) (database.GetProductForOrderRow, error) {
	if err := s.db.enter("GetProductForOrderByName"); err != nil {
		return database.GetProductForOrderRow{}, err
	}
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var ids []int64
	for id, p := range s.db.products {
		if strings.EqualFold(p.name, name) {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return database.GetProductForOrderRow{}, pgx.ErrNoRows
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return s.productRow(ids[0], s.db.products[ids[0]]), nil
}

func (s *memStore) ListAddonsByNames(ctx context.Context, lowerNames []string) ([]database.Addon, error) {
	if err := s.db.enter("ListAddonsByNames"); err != nil {
		return nil, err
	}
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	want := make(map[string]bool, len(lowerNames))
	for _, n := range lowerNames {
		want[n] = true
	}
	out := []database.Addon{}
	for id, a := range s.db.addons {
		if !want[strings.ToLower(a.name)] {
			continue
		}
		row := database.Addon{ID: id, Name: a.name, Price: numeric(a.price), Stock: a.stock}
		if s.tx != nil {
			row.Stock -= s.tx.addonDeltas[id]
		}
		if a.categoryID != 0 {
			row.CategoryID = pgtype.Int8{Int64: a.categoryID, Valid: true}
		}
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memStore) DecrementProductStock(ctx context.Context, arg database.DecrementStockParams) (int32, error) {
	if err := s.db.enter("DecrementProductStock"); err != nil {
		return 0, err
	}
	if err := s.tx.acquire(ctx); err != nil {
		return 0, fmt.Errorf("acquire row lock: %w", err)
	}
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	p, ok := s.db.products[arg.ID]
	if !ok {
		return 0, pgx.ErrNoRows
	}
	left := p.stock - s.tx.productDeltas[arg.ID]
	if left < arg.Quantity {
		return 0, pgx.ErrNoRows
	}
	s.tx.productDeltas[arg.ID] += arg.Quantity
	return left - arg.Quantity, nil
}

func (s *memStore) DecrementAddonStock(ctx context.Context, arg database.DecrementStockParams) (int32, error) {
	if err := s.db.enter("DecrementAddonStock"); err != nil {
		return 0, err
	}
	if err := s.tx.acquire(ctx); err != nil {
		return 0, fmt.Errorf("acquire row lock: %w", err)
	}
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	a, ok := s.db.addons[arg.ID]
	if !ok {
		return 0, pgx.ErrNoRows
	}
	left := a.stock - s.tx.addonDeltas[arg.ID]
	if left < arg.Quantity {
		return 0, pgx.ErrNoRows
	}
	s.tx.addonDeltas[arg.ID] += arg.Quantity
	return left - arg.Quantity, nil
}

func (s *memStore) GetProductStock(ctx context.Context, id int64) (int32, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	p, ok := s.db.products[id]
	if !ok {
		return 0, pgx.ErrNoRows
	}
	if s.tx != nil {
		return p.stock - s.tx.productDeltas[id], nil
	}
	return p.stock, nil
}

func (s *memStore) GetAddonStock(ctx context.Context, id int64) (int32, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	a, ok := s.db.addons[id]
	if !ok {
		return 0, pgx.ErrNoRows
	}
	if s.tx != nil {
		return a.stock - s.tx.addonDeltas[id], nil
	}
	return a.stock, nil
}

func (s *memStore) CreateAppliedStockMovement(ctx context.Context, id uuid.UUID) error {
	if err := s.db.enter("CreateAppliedStockMovement"); err != nil {
		return err
	}
	s.db.mu.Lock()
	exists := s.db.applied[id]
	s.db.mu.Unlock()
	if exists {
		return &pgconn.PgError{Code: "23505", Message: "duplicate key"}
	}
	s.write(func(db *memDB) { db.applied[id] = true })
	return nil
}

func (s *memStore) StockMovementApplied(ctx context.Context, id uuid.UUID) (bool, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	return s.db.applied[id], nil
}

func (s *memStore) SetLockTimeout(ctx context.Context, timeout string) error {
	if err := s.db.enter("SetLockTimeout"); err != nil {
		return err
	}
	s.db.mu.Lock()
	s.db.lockTimeouts = append(s.db.lockTimeouts, timeout)
	s.db.mu.Unlock()
	return nil
}

func (s *memStore) CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error) {
	if err := s.db.enter("CreateOrder"); err != nil {
		return database.Order{}, err
	}
	s.db.mu.Lock()
	o := database.Order{
		ID:              s.db.id(),
		CustomerName:    arg.CustomerName,
		FulfillmentType: arg.FulfillmentType,
		TotalValue:      arg.TotalValue,
		Status:          arg.Status,
		CreatedAt:       arg.CreatedAt,
	}
	s.db.mu.Unlock()
	s.write(func(db *memDB) { db.orders = append(db.orders, o) })
	return o, nil
}

func (s *memStore) CreateOrderItem(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error) {
	if err := s.db.enter("CreateOrderItem"); err != nil {
		return database.OrderItem{}, err
	}
	s.db.mu.Lock()
	it := database.OrderItem{
		ID:          s.db.id(),
		OrderID:     arg.OrderID,
		ProductName: arg.ProductName,
		Quantity:    arg.Quantity,
		UnitPrice:   arg.UnitPrice,
	}
	s.db.mu.Unlock()
	s.write(func(db *memDB) { db.items = append(db.items, it) })
	return it, nil
}

func (s *memStore) CreateOrderItemAddon(ctx context.Context, arg database.CreateOrderItemAddonParams) (database.OrderItemAddon, error) {
	if err := s.db.enter("CreateOrderItemAddon"); err != nil {
		return database.OrderItemAddon{}, err
	}
	s.db.mu.Lock()
	a := database.OrderItemAddon{
		ID:          s.db.id(),
		OrderItemID: arg.OrderItemID,
		AddonName:   arg.AddonName,
		Quantity:    arg.Quantity,
		UnitPrice:   arg.UnitPrice,
	}
	s.db.mu.Unlock()
	s.write(func(db *memDB) { db.itemAddons = append(db.itemAddons, a) })
	return a, nil
}

func (s *memStore) CreateAddonSale(ctx context.Context, arg database.CreateAddonSaleParams) (database.AddonSale, error) {
	if err := s.db.enter("CreateAddonSale"); err != nil {
		return database.AddonSale{}, err
	}
	s.db.mu.Lock()
	sale := database.AddonSale{
		ID:         s.db.id(),
		OrderID:    arg.OrderID,
		Category:   arg.Category,
		AddonName:  arg.AddonName,
		Quantity:   arg.Quantity,
		UnitPrice:  arg.UnitPrice,
		TotalValue: arg.TotalValue,
		SaleDate:   arg.SaleDate,
		SaleTime:   arg.SaleTime,
	}
	s.db.mu.Unlock()
	s.write(func(db *memDB) { db.sales = append(db.sales, sale) })
	return sale, nil
}

func (s *memStore) CreateStockMovement(ctx context.Context, arg database.CreateStockMovementParams) error {
	if err := s.db.enter("CreateStockMovement"); err != nil {
		return err
	}
	m := &database.StockMovement{
		ID:        arg.ID,
		OrderID:   arg.OrderID,
		Payload:   arg.Payload,
		Status:    enum.StockMovementPending,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	s.write(func(db *memDB) { db.movements = append(db.movements, m) })
	return nil
}

func (s *memStore) UpdateStockMovementStatus(ctx context.Context, arg database.UpdateStockMovementStatusParams) error {
	if err := s.db.enter("UpdateStockMovementStatus"); err != nil {
		return err
	}
	s.write(func(db *memDB) {
		for _, m := range db.movements {
			if m.ID == arg.ID {
				m.Status = arg.Status
				m.UpdatedAt = time.Now()
			}
		}
	})
	return nil
}

func (s *memStore) ListPendingStockMovements(ctx context.Context, arg database.ListPendingStockMovementsParams) ([]database.StockMovement, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	out := []database.StockMovement{}
	for _, m := range s.db.movements {
		if m.Status == enum.StockMovementPending && m.CreatedAt.Before(arg.CreatedBefore) {
			out = append(out, *m)
		}
		if int32(len(out)) == arg.Limit {
			break
		}
	}
	return out, nil
}

func (s *memStore) movementStatus(id uuid.UUID) string {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, m := range s.db.movements {
		if m.ID == id {
			return m.Status
		}
	}
	return ""
}

func (s *memStore) GetOrder(ctx context.Context, id int64) (database.Order, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, o := range s.db.orders {
		if o.ID == id {
			return o, nil
		}
	}
	return database.Order{}, pgx.ErrNoRows
}

func (s *memStore) ListOrdersByStatus(ctx context.Context, arg database.ListOrdersByStatusParams) ([]database.Order, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	want := make(map[string]bool)
	for _, st := range arg.Statuses {
		want[st] = true
	}
	var matched []database.Order
	for _, o := range s.db.orders {
		if want[o.Status] {
			matched = append(matched, o)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })
	out := []database.Order{}
	for i, o := range matched {
		if int32(i) < arg.Offset {
			continue
		}
		if int32(len(out)) == arg.Limit {
			break
		}
		out = append(out, o)
	}
	return out, nil
}

func (s *memStore) ListOrderItemsByOrders(ctx context.Context, orderIDs []int64) ([]database.OrderItem, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	want := make(map[int64]bool)
	for _, id := range orderIDs {
		want[id] = true
	}
	out := []database.OrderItem{}
	for _, it := range s.db.items {
		if want[it.OrderID] {
			out = append(out, it)
		}
	}
	return out, nil
}

func (s *memStore) ListOrderItemAddonsByItems(ctx context.Context, itemIDs []int64) ([]database.OrderItemAddon, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	want := make(map[int64]bool)
	for _, id := range itemIDs {
		want[id] = true
	}
	out := []database.OrderItemAddon{}
	for _, a := range s.db.itemAddons {
		if want[a.OrderItemID] {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *memStore) UpdateOrderStatus(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for i := range s.db.orders {
		if s.db.orders[i].ID == arg.ID {
			s.db.orders[i].Status = arg.Status
			return s.db.orders[i], nil
		}
	}
	return database.Order{}, pgx.ErrNoRows
}
