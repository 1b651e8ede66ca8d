// Package memory はテスト用のインメモリ実装。
// WithinTxはスナップショット上で実行し、エラーなら捨てる（ロールバック）。
// トランザクションは直列に実行されるので、条件付き減算は同時実行でも負にならない。
package memory

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"fashionshop/internal/domain/model"
	repo "fashionshop/internal/repository"
)

type state struct {
	products      map[int64]model.Product
	movements     map[int64]model.StockMovement
	carts         map[int64]model.Cart
	cartItems     map[int64]model.CartItem
	histories     map[int64]model.CartHistory
	addresses     map[int64]model.Address
	orders        map[int64]model.Order
	orderItems    map[int64]model.OrderItem
	notifications map[int64]model.UserStockNotification
	outbox        map[int64]model.OutboxEvent
	auditLogs     map[int64]model.AuditLog
	users         map[int64]model.User
}

func newState() *state {
	return &state{
		products:      map[int64]model.Product{},
		movements:     map[int64]model.StockMovement{},
		carts:         map[int64]model.Cart{},
		cartItems:     map[int64]model.CartItem{},
		histories:     map[int64]model.CartHistory{},
		addresses:     map[int64]model.Address{},
		orders:        map[int64]model.Order{},
		orderItems:    map[int64]model.OrderItem{},
		notifications: map[int64]model.UserStockNotification{},
		outbox:        map[int64]model.OutboxEvent{},
		auditLogs:     map[int64]model.AuditLog{},
		users:         map[int64]model.User{},
	}
}

func cloneMap[V any](m map[int64]V) map[int64]V {
	out := make(map[int64]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *state) clone() *state {
	return &state{
		products:      cloneMap(s.products),
		movements:     cloneMap(s.movements),
		carts:         cloneMap(s.carts),
		cartItems:     cloneMap(s.cartItems),
		histories:     cloneMap(s.histories),
		addresses:     cloneMap(s.addresses),
		orders:        cloneMap(s.orders),
		orderItems:    cloneMap(s.orderItems),
		notifications: cloneMap(s.notifications),
		outbox:        cloneMap(s.outbox),
		auditLogs:     cloneMap(s.auditLogs),
		users:         cloneMap(s.users),
	}
}

// ID順に並べる
func sortedValues[V any](m map[int64]V) []V {
	keys := make([]int64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	out := make([]V, 0, len(keys))
	for _, k := range keys {
		out = append(out, m[k])
	}
	return out
}

// トランザクション中の書き込み。コミット時に本体へ同じ順で適用する。
type txState struct {
	st      *state
	journal []func(st *state) error
}

type Store struct {
	txMu sync.Mutex
	mu   sync.Mutex
	st   *state
	seq  atomic.Int64

	failMu sync.Mutex
	fail   map[string]error

	txCount atomic.Int64
}

func NewStore() *Store {
	return &Store{st: newState(), fail: map[string]error{}}
}

// FailNext は次のop呼び出しでerrを返させる（例: "Outbox.Append"）。
func (s *Store) FailNext(op string, err error) {
	s.failMu.Lock()
	defer s.failMu.Unlock()
	s.fail[op] = err
}

func (s *Store) failure(op string) error {
	s.failMu.Lock()
	defer s.failMu.Unlock()
	err, ok := s.fail[op]
	if !ok {
		return nil
	}
	delete(s.fail, op)
	return err
}

func (s *Store) nextID() int64 {
	return s.seq.Add(1)
}

// Repos はトランザクション外で使うrepository一式。
func (s *Store) Repos() repo.TxRepos {
	return &repos{db: &db{s: s}}
}

// Committed はコミット済みのトランザクション数
func (s *Store) Committed() int64 {
	return s.txCount.Load()
}

func (s *Store) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	t := &txState{st: s.st.clone()}
	s.mu.Unlock()

	if err := fn(&repos{db: &db{s: s, tx: t}}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, op := range t.journal {
		if err := op(s.st); err != nil {
			return err
		}
	}
	s.txCount.Add(1)
	return nil
}

type db struct {
	s  *Store
	tx *txState
}

func (d *db) read(fn func(st *state) error) error {
	if d.tx != nil {
		return fn(d.tx.st)
	}
	d.s.mu.Lock()
	defer d.s.mu.Unlock()
	return fn(d.s.st)
}

// fnは同じ入力なら同じ結果になるように書く（コミット時に再実行する）
func (d *db) write(op string, fn func(st *state) error) error {
	if err := d.s.failure(op); err != nil {
		return err
	}
	if d.tx != nil {
		if err := fn(d.tx.st); err != nil {
			return err
		}
		d.tx.journal = append(d.tx.journal, fn)
		return nil
	}
	d.s.mu.Lock()
	defer d.s.mu.Unlock()
	return fn(d.s.st)
}

// =====================
// テストデータ投入・確認
// =====================

// AddProduct は商品を作り、在庫があればINITIALのINを記録する。
func (s *Store) AddProduct(p model.Product) model.Product {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID == 0 {
		p.ID = s.nextID()
	}
	now := time.Now()
	p.CreatedAt, p.UpdatedAt = now, now
	s.st.products[p.ID] = p

	if p.Stock > 0 {
		id := s.nextID()
		s.st.movements[id] = model.StockMovement{
			ID:          id,
			ProductID:   p.ID,
			Type:        model.MovementIn,
			Source:      model.MovementSourceInitial,
			Quantity:    p.Stock,
			StockAfter:  p.Stock,
			Description: "seed",
			CreatedAt:   now,
		}
	}
	return p
}

func (s *Store) AddUser(u model.User) model.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == 0 {
		u.ID = s.nextID()
	}
	s.st.users[u.ID] = u
	return u
}

// AddAddress は住所をそのまま入れる（デフォルトの整合はチェックしない）
func (s *Store) AddAddress(a model.Address) model.Address {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID == 0 {
		a.ID = s.nextID()
	}
	a.CreatedAt = time.Now()
	s.st.addresses[a.ID] = a
	return a
}

// AddOrder は任意の状態の注文と明細を入れる
func (s *Store) AddOrder(o model.Order, items ...model.OrderItem) model.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o.ID == 0 {
		o.ID = s.nextID()
	}
	if o.IdempotencyKey == "" {
		o.IdempotencyKey = "seed-" + time.Now().Format(time.RFC3339Nano)
	}
	o.CreatedAt = time.Now()
	s.st.orders[o.ID] = o
	for _, it := range items {
		it.ID = s.nextID()
		it.OrderID = o.ID
		s.st.orderItems[it.ID] = it
	}
	return o
}

func (s *Store) Product(id int64) model.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.products[id]
}

func (s *Store) Order(id int64) model.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.orders[id]
}

func (s *Store) Orders() []model.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedValues(s.st.orders)
}

func (s *Store) OrderItems(orderID int64) []model.OrderItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.OrderItem
	for _, it := range sortedValues(s.st.orderItems) {
		if it.OrderID == orderID {
			out = append(out, it)
		}
	}
	return out
}

func (s *Store) Movements(productID int64) []model.StockMovement {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.StockMovement
	for _, m := range sortedValues(s.st.movements) {
		if m.ProductID == productID {
			out = append(out, m)
		}
	}
	return out
}

// LedgerBalance はΣIN - ΣOUT
func (s *Store) LedgerBalance(productID int64) int64 {
	var sum int64
	for _, m := range s.Movements(productID) {
		if m.Type == model.MovementIn {
			sum += m.Quantity
		} else {
			sum -= m.Quantity
		}
	}
	return sum
}

func (s *Store) Events() []model.OutboxEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedValues(s.st.outbox)
}

func (s *Store) Carts(userID int64) []model.Cart {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Cart
	for _, c := range sortedValues(s.st.carts) {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	return out
}

func (s *Store) CartItems(cartID int64) []model.CartItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.CartItem
	for _, it := range sortedValues(s.st.cartItems) {
		if it.CartID == cartID {
			out = append(out, it)
		}
	}
	return out
}

func (s *Store) Addresses() []model.Address {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedValues(s.st.addresses)
}

func (s *Store) Notifications() []model.UserStockNotification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedValues(s.st.notifications)
}

func (s *Store) AuditLogs() []model.AuditLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedValues(s.st.auditLogs)
}
