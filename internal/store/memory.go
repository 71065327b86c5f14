package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"storefront/internal/lifecycle"
	"storefront/internal/models"
	"storefront/internal/trust"
)

type memProduct struct {
	models.Product
	sellerID int64
	deleted  bool
}

// MemoryStore is an in-memory implementation of the store used by the
// memory driver and by tests. It keeps the same semantics as Store,
// including conditional item updates.
type MemoryStore struct {
	mu sync.RWMutex

	sellers   map[int64]*models.Seller
	users     map[int64]*models.User
	products  map[int64]*memProduct
	reviews   []models.Review
	logs      []models.UserSessionLog
	orders    map[int64]*models.Order
	items     map[int64]*models.OrderItem
	returns   []models.Return
	processed map[string]string

	nextID int64
	now    func() time.Time
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sellers:   make(map[int64]*models.Seller),
		users:     make(map[int64]*models.User),
		products:  make(map[int64]*memProduct),
		orders:    make(map[int64]*models.Order),
		items:     make(map[int64]*models.OrderItem),
		processed: make(map[string]string),
		now:       time.Now,
	}
}

// SetClock replaces the time source
func (m *MemoryStore) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

func (m *MemoryStore) id() int64 {
	m.nextID++
	return m.nextID
}

// Migrate is a no-op
func (m *MemoryStore) Migrate(context.Context) error { return nil }

// Ping always succeeds
func (m *MemoryStore) Ping(context.Context) error { return nil }

// Close is a no-op
func (m *MemoryStore) Close() error { return nil }

// products

func (m *MemoryStore) productLocked(p *memProduct) models.Product {
	out := p.Product
	out.ImageURLs = append(out.ImageURLs[:0:0], p.ImageURLs...)
	if s, ok := m.sellers[p.sellerID]; ok {
		out.Seller = models.SellerSummary{
			ID:            s.ID,
			Name:          s.Name,
			SCSScore:      s.SCSScore,
			LastSCSUpdate: s.LastSCSUpdate,
		}
	}
	return out
}

func (m *MemoryStore) GetProducts(ctx context.Context) ([]models.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	products := make([]models.Product, 0, len(m.products))
	for _, p := range m.products {
		if !p.deleted {
			products = append(products, m.productLocked(p))
		}
	}
	sort.Slice(products, func(i, j int) bool { return products[i].ID < products[j].ID })
	return products, nil
}

func (m *MemoryStore) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.products[id]
	if !ok || p.deleted {
		return nil, fmt.Errorf("product %d: %w", id, ErrNotFound)
	}
	out := m.productLocked(p)
	return &out, nil
}

func (m *MemoryStore) GetProductsByIDs(ctx context.Context, ids []int64) ([]models.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	products := []models.Product{}
	for _, id := range ids {
		if p, ok := m.products[id]; ok && !p.deleted {
			products = append(products, m.productLocked(p))
		}
	}
	return products, nil
}

func (m *MemoryStore) CreateProduct(ctx context.Context, p *models.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sellers[p.Seller.ID]; !ok {
		return fmt.Errorf("seller %d: %w", p.Seller.ID, ErrNotFound)
	}
	p.ID = m.id()
	p.ListedAt = m.now()
	p.PISScore = 1.0
	m.products[p.ID] = &memProduct{Product: *p, sellerID: p.Seller.ID}
	return nil
}

func (m *MemoryStore) UpdateProduct(ctx context.Context, p *models.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.products[p.ID]
	if !ok || cur.deleted {
		return fmt.Errorf("product %d: %w", p.ID, ErrNotFound)
	}
	cur.Slug = p.Slug
	cur.Name = p.Name
	cur.Description = p.Description
	cur.Price = p.Price
	cur.Category = p.Category
	cur.ImageURLs = p.ImageURLs
	return nil
}

func (m *MemoryStore) DeleteProduct(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.products[id]
	if !ok || p.deleted {
		return fmt.Errorf("product %d: %w", id, ErrNotFound)
	}
	p.deleted = true
	return nil
}

func (m *MemoryStore) GetReviewsByProductID(ctx context.Context, productID int64) ([]models.Review, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	reviews := []models.Review{}
	for i := len(m.reviews) - 1; i >= 0; i-- {
		r := m.reviews[i]
		if r.ProductID != productID {
			continue
		}
		if u, ok := m.users[r.UserID]; ok {
			r.Username = u.Username
		}
		reviews = append(reviews, r)
	}
	return reviews, nil
}

func (m *MemoryStore) CreateReview(ctx context.Context, r *models.Review) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if p, ok := m.products[r.ProductID]; !ok || p.deleted {
		return fmt.Errorf("product %d: %w", r.ProductID, ErrNotFound)
	}
	r.ID = m.id()
	r.CreatedAt = m.now()
	m.reviews = append(m.reviews, *r)
	return nil
}

// accounts

func (m *MemoryStore) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[id]
	if !ok {
		return nil, fmt.Errorf("user %d: %w", id, ErrNotFound)
	}
	out := *u
	return &out, nil
}

func (m *MemoryStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, u := range m.users {
		if u.Username == username {
			out := *u
			return &out, nil
		}
	}
	return nil, fmt.Errorf("user %q: %w", username, ErrNotFound)
}

func (m *MemoryStore) CreateUser(ctx context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.users {
		if existing.Username == u.Username {
			return fmt.Errorf("create user: %w", ErrDuplicate)
		}
	}
	u.ID = m.id()
	u.CreatedAt = m.now()
	u.UBAScore = 1.0
	stored := *u
	m.users[u.ID] = &stored
	return nil
}

func (m *MemoryStore) GetSellerByID(ctx context.Context, id int64) (*models.Seller, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sellers[id]
	if !ok {
		return nil, fmt.Errorf("seller %d: %w", id, ErrNotFound)
	}
	out := *s
	return &out, nil
}

func (m *MemoryStore) GetSellerByName(ctx context.Context, name string) (*models.Seller, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, s := range m.sellers {
		if s.Name == name {
			out := *s
			return &out, nil
		}
	}
	return nil, fmt.Errorf("seller %q: %w", name, ErrNotFound)
}

func (m *MemoryStore) CreateSeller(ctx context.Context, s *models.Seller) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.sellers {
		if existing.Name == s.Name {
			return fmt.Errorf("create seller: %w", ErrDuplicate)
		}
	}
	s.ID = m.id()
	s.CreatedAt = m.now()
	s.SCSScore = 1.0
	stored := *s
	m.sellers[s.ID] = &stored
	return nil
}

func (m *MemoryStore) CreateSessionLog(ctx context.Context, l *models.UserSessionLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	l.ID = m.id()
	l.Timestamp = m.now()
	m.logs = append(m.logs, *l)
	return nil
}

func (m *MemoryStore) GetSessionLogs(ctx context.Context, userID int64) ([]models.UserSessionLog, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	logs := []models.UserSessionLog{}
	for i := len(m.logs) - 1; i >= 0; i-- {
		if m.logs[i].UserID == userID {
			logs = append(logs, m.logs[i])
		}
	}
	return logs, nil
}

// orders

func (m *MemoryStore) CreateOrder(ctx context.Context, order *models.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[order.UserID]
	if !ok {
		return fmt.Errorf("user %d: %w", order.UserID, ErrNotFound)
	}
	if order.IdempotencyKey != "" {
		for _, o := range m.orders {
			if o.IdempotencyKey == order.IdempotencyKey {
				return fmt.Errorf("create order: %w", ErrDuplicate)
			}
		}
	}
	seen := make(map[int64]bool, len(order.Items))
	for _, it := range order.Items {
		if seen[it.ProductID] {
			return fmt.Errorf("create item for product %d: %w", it.ProductID, ErrDuplicate)
		}
		seen[it.ProductID] = true
	}

	now := m.now()
	order.ID = m.id()
	order.CreatedAt = now
	order.Username = u.Username

	stored := *order
	stored.Items = nil
	for i := range order.Items {
		item := &order.Items[i]
		item.ID = m.id()
		item.OrderID = order.ID
		item.UpdatedAt = now
		cp := *item
		m.items[item.ID] = &cp
	}
	m.orders[order.ID] = &stored
	return nil
}

// orderLocked assembles an order with its items; sellerID > 0 filters items
func (m *MemoryStore) orderLocked(o *models.Order, sellerID int64) models.Order {
	out := *o
	if u, ok := m.users[o.UserID]; ok {
		out.Username = u.Username
	}
	out.Items = []models.OrderItem{}
	for _, it := range m.items {
		if it.OrderID == o.ID && (sellerID == 0 || it.SellerID == sellerID) {
			out.Items = append(out.Items, *it)
		}
	}
	sort.Slice(out.Items, func(i, j int) bool { return out.Items[i].ID < out.Items[j].ID })
	return out
}

func sortNewestFirst(orders []models.Order) {
	sort.Slice(orders, func(i, j int) bool {
		if !orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
			return orders[i].CreatedAt.After(orders[j].CreatedAt)
		}
		return orders[i].ID > orders[j].ID
	})
}

func (m *MemoryStore) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	o, ok := m.orders[id]
	if !ok {
		return nil, fmt.Errorf("order %d: %w", id, ErrNotFound)
	}
	out := m.orderLocked(o, 0)
	return &out, nil
}

func (m *MemoryStore) GetOrderByIdempotencyKey(ctx context.Context, userID int64, key string) (*models.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, o := range m.orders {
		if o.UserID == userID && key != "" && o.IdempotencyKey == key {
			out := m.orderLocked(o, 0)
			return &out, nil
		}
	}
	return nil, fmt.Errorf("order with key %q: %w", key, ErrNotFound)
}

func (m *MemoryStore) GetOrdersByUserID(ctx context.Context, userID int64) ([]models.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	orders := []models.Order{}
	for _, o := range m.orders {
		if o.UserID == userID {
			orders = append(orders, m.orderLocked(o, 0))
		}
	}
	sortNewestFirst(orders)
	return orders, nil
}

func (m *MemoryStore) GetOrdersBySellerID(ctx context.Context, sellerID int64) ([]models.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	orders := []models.Order{}
	for _, o := range m.orders {
		out := m.orderLocked(o, sellerID)
		if len(out.Items) > 0 {
			orders = append(orders, out)
		}
	}
	sortNewestFirst(orders)
	return orders, nil
}

func (m *MemoryStore) GetOrderItem(ctx context.Context, orderID, productID int64) (*models.OrderItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, it := range m.items {
		if it.OrderID == orderID && it.ProductID == productID {
			out := *it
			return &out, nil
		}
	}
	return nil, fmt.Errorf("item of product %d in order %d: %w", productID, orderID, ErrNotFound)
}

func (m *MemoryStore) UpdateItemStatus(ctx context.Context, u models.ItemStatusUpdate) (*models.OrderItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	it, ok := m.items[u.ItemID]
	if !ok || it.Status != u.From {
		return nil, fmt.Errorf("item %d not in %s: %w", u.ItemID, u.From, ErrStatusChanged)
	}

	it.Status = u.To
	it.CancelledBySeller = it.CancelledBySeller || u.CancelledBySeller
	if u.DeliveredOnTime != nil {
		v := *u.DeliveredOnTime
		it.DeliveredOnTime = &v
	}
	it.UpdatedAt = m.now()

	if r := u.Return; r != nil {
		r.ID = m.id()
		r.OrderItemID = it.ID
		r.CreatedAt = it.UpdatedAt
		m.returns = append(m.returns, *r)
	}

	out := *it
	return &out, nil
}

func (m *MemoryStore) HasDeliveredItem(ctx context.Context, userID, productID int64) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, it := range m.items {
		if it.ProductID != productID {
			continue
		}
		o, ok := m.orders[it.OrderID]
		if !ok || o.UserID != userID {
			continue
		}
		switch it.Status {
		case lifecycle.StatusDelivered, lifecycle.StatusReturned:
			return true, nil
		case lifecycle.StatusRefunded, lifecycle.StatusRefundRejected:
			// refunds also follow a cancellation of an undelivered item
			if it.DeliveredOnTime != nil {
				return true, nil
			}
		}
	}
	return false, nil
}

func (m *MemoryStore) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.processed[eventID]
	return ok, nil
}

func (m *MemoryStore) MarkEventProcessed(ctx context.Context, eventID, eventType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.processed[eventID]; !ok {
		m.processed[eventID] = eventType
	}
	return nil
}

// trust inputs

func (m *MemoryStore) GetSellerStats(ctx context.Context, sellerID int64) (trust.SellerStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sellers[sellerID]
	if !ok {
		return trust.SellerStats{}, fmt.Errorf("seller stats %d: %w", sellerID, ErrNotFound)
	}
	stats := trust.SellerStats{CreatedAt: s.CreatedAt}
	for _, it := range m.items {
		if it.SellerID != sellerID {
			continue
		}
		stats.TotalItems++
		if it.DeliveredOnTime != nil && *it.DeliveredOnTime {
			stats.OnTimeItems++
		}
		if it.CancelledBySeller {
			stats.CancelledItems++
		}
	}

	var pisSum float64
	var pisCount int
	for _, p := range m.products {
		if p.sellerID != sellerID {
			continue
		}
		if p.LastPISUpdate != nil {
			pisSum += p.PISScore
			pisCount++
		}
	}
	for _, r := range m.reviews {
		if p, ok := m.products[r.ProductID]; ok && p.sellerID == sellerID {
			stats.Reviews++
			if r.Positive() {
				stats.PositiveReviews++
			}
		}
	}
	if pisCount > 0 {
		avg := pisSum / float64(pisCount)
		stats.AveragePIS = &avg
	}
	return stats, nil
}

func (m *MemoryStore) GetUserStats(ctx context.Context, userID int64, now time.Time) (trust.UserStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[userID]
	if !ok {
		return trust.UserStats{}, fmt.Errorf("user stats %d: %w", userID, ErrNotFound)
	}
	stats := trust.UserStats{
		CreatedAt:           u.CreatedAt,
		ProfileCompleteness: u.ProfileCompletenessScore,
	}

	monthAgo := now.AddDate(0, 0, -30)
	ips := make(map[string]bool)
	for _, l := range m.logs {
		if l.UserID == userID && !l.Timestamp.Before(monthAgo) {
			ips[l.IPAddress] = true
		}
	}
	stats.UniqueIPsLast30Days = len(ips)

	weekAgo := now.AddDate(0, 0, -7)
	for _, r := range m.reviews {
		if r.UserID != userID {
			continue
		}
		stats.HasReviews = true
		if !r.CreatedAt.Before(weekAgo) {
			stats.ReviewsLast7Days++
		}
		if r.LinguisticAuthenticityScore != nil {
			stats.LinguisticScores = append(stats.LinguisticScores, *r.LinguisticAuthenticityScore)
		}
	}
	for _, o := range m.orders {
		if o.UserID == userID {
			stats.Orders++
		}
	}
	for _, r := range m.returns {
		if r.UserID == userID {
			stats.Returns++
		}
	}
	return stats, nil
}

func (m *MemoryStore) GetProductStats(ctx context.Context, productID int64) (trust.ProductStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.products[productID]
	if !ok {
		return trust.ProductStats{}, fmt.Errorf("product stats %d: %w", productID, ErrNotFound)
	}
	stats := trust.ProductStats{Price: p.Price.InexactFloat64()}

	var sum float64
	var n int
	for _, other := range m.products {
		if !other.deleted && other.Category == p.Category {
			sum += other.Price.InexactFloat64()
			n++
		}
	}
	if n > 0 {
		stats.AvgCategoryPrice = sum / float64(n)
	}

	for _, r := range m.reviews {
		if r.ProductID == productID {
			stats.Reviews++
			if r.Positive() {
				stats.PositiveReviews++
			}
		}
	}
	for _, it := range m.items {
		if it.ProductID == productID {
			stats.ItemsSold++
		}
	}
	for _, r := range m.returns {
		it, ok := m.items[r.OrderItemID]
		if ok && it.ProductID == productID && r.ReasonCategory.IsIntegrityIssue() {
			stats.IntegrityReturns++
		}
	}
	return stats, nil
}

func (m *MemoryStore) UpdateSellerScore(ctx context.Context, sellerID int64, score float64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sellers[sellerID]
	if !ok {
		return fmt.Errorf("seller %d: %w", sellerID, ErrNotFound)
	}
	s.SCSScore = score
	s.LastSCSUpdate = &at
	return nil
}

func (m *MemoryStore) UpdateUserScore(ctx context.Context, userID int64, score float64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[userID]
	if !ok {
		return fmt.Errorf("user %d: %w", userID, ErrNotFound)
	}
	u.UBAScore = score
	u.LastUBAUpdate = &at
	return nil
}

func (m *MemoryStore) UpdateProductScore(ctx context.Context, productID int64, score float64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.products[productID]
	if !ok {
		return fmt.Errorf("product %d: %w", productID, ErrNotFound)
	}
	p.PISScore = score
	p.LastPISUpdate = &at
	return nil
}
