package memory

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"warungpos/backend/internal/domain"
	"warungpos/backend/internal/store"
	"warungpos/backend/internal/xid"
)

// Store is a mutex-guarded in-memory repository used for dev mode and tests.
type Store struct {
	mu          sync.RWMutex
	customers   map[string]domain.Customer
	products    map[string]domain.Product
	sales       map[string]domain.Sale
	itemsBySale map[string][]domain.SaleItem
}

func New() *Store {
	return &Store{
		customers:   make(map[string]domain.Customer),
		products:    make(map[string]domain.Product),
		sales:       make(map[string]domain.Sale),
		itemsBySale: make(map[string][]domain.SaleItem),
	}
}

func NewSeeded() *Store {
	s := New()

	for _, name := range []string{
		"CUSTOMER A", "CUSTOMER B", "CUSTOMER C",
		"CUSTOMER D", "CUSTOMER E", "CUSTOMER F",
	} {
		c := domain.Customer{ID: xid.New("cus"), Name: name}
		s.customers[c.ID] = c
	}

	menu := []struct {
		code   string
		name   string
		price  int64
		status string
		stock  int
	}{
		{"PRD0000000001", "NASI GORENG", 13000, "Active", 50},
		{"PRD0000000002", "MIE GORENG", 12000, "Active", 50},
		{"PRD0000000003", "AYAM BAKAR", 18000, "Active", 40},
		{"PRD0000000004", "AYAM GORENG", 17000, "Active", 40},
		{"PRD0000000005", "SOTO AYAM", 14000, "Active", 35},
		{"PRD0000000006", "SATE AYAM", 20000, "Active", 30},
		{"PRD0000000007", "GADO GADO", 12000, "Active", 25},
		{"PRD0000000008", "PECEL LELE", 15000, "Active", 30},
		{"PRD0000000009", "ES TEH MANIS", 4000, "Active", 100},
		{"PRD0000000010", "ES JERUK", 5000, "Active", 100},
		{"PRD0000000011", "KOPI HITAM", 5000, "Active", 80},
		{"PRD0000000012", "TEMPE GORENG", 3000, "Active", 60},
		{"PRD0000000013", "TAHU ISI", 3500, "Active", 60},
		{"PRD0000000014", "RENDANG", 22000, "Hold", 0},
		{"PRD0000000015", "KAMBING GULING", 35000, "Hold", 3},
	}
	for _, m := range menu {
		p := domain.Product{
			ID:         xid.New("prd"),
			Code:       m.code,
			Name:       m.name,
			PriceCents: m.price,
			Status:     m.status,
			Stock:      m.stock,
		}
		s.products[p.ID] = p
	}

	return s
}

func (s *Store) CreateCustomer(_ context.Context, customer domain.Customer) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if customer.ID == "" {
		customer.ID = xid.New("cus")
	}
	s.customers[customer.ID] = customer
	return &customer, nil
}

func (s *Store) GetCustomer(_ context.Context, id string) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.customers[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &c, nil
}

func (s *Store) ListCustomers(_ context.Context, nameContains string) ([]domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	needle := strings.ToLower(nameContains)
	customers := make([]domain.Customer, 0, len(s.customers))
	for _, c := range s.customers {
		if needle != "" && !strings.Contains(strings.ToLower(c.Name), needle) {
			continue
		}
		customers = append(customers, c)
	}

	slices.SortFunc(customers, func(a, b domain.Customer) int {
		if a.Name == b.Name {
			return strings.Compare(a.ID, b.ID)
		}
		return strings.Compare(a.Name, b.Name)
	})
	return customers, nil
}

// DeleteCustomer removes the customer and severs every sale reference to it.
// The sales themselves stay.
func (s *Store) DeleteCustomer(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.customers[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.customers, id)

	for saleID, sale := range s.sales {
		if sale.CustomerID != nil && *sale.CustomerID == id {
			sale.CustomerID = nil
			s.sales[saleID] = sale
		}
	}
	return nil
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range s.products {
		if p.Code == product.Code {
			return nil, store.ErrDuplicateCode
		}
	}
	if product.ID == "" {
		product.ID = xid.New("prd")
	}
	s.products[product.ID] = product
	return &product, nil
}

func (s *Store) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &p, nil
}

func (s *Store) GetProductByCode(_ context.Context, code string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.products {
		if p.Code == code {
			return &p, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) ListProducts(_ context.Context, nameContains string) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	needle := strings.ToLower(nameContains)
	products := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		if needle != "" && !strings.Contains(strings.ToLower(p.Name), needle) {
			continue
		}
		products = append(products, p)
	}

	slices.SortFunc(products, func(a, b domain.Product) int {
		if a.Code == b.Code {
			return strings.Compare(a.ID, b.ID)
		}
		return strings.Compare(a.Code, b.Code)
	})
	return products, nil
}

func (s *Store) UpdateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.products[product.ID]; !ok {
		return nil, store.ErrNotFound
	}
	s.products[product.ID] = product
	return &product, nil
}

// CommitSale mirrors the transactional semantics of the postgres store:
// everything is staged against copies and only applied once the item loop
// finishes without a hard error.
func (s *Store) CommitSale(_ context.Context, sale domain.Sale, items []domain.SaleItemRequest) (*domain.SaleResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sale.CustomerID == nil {
		return nil, store.ErrInvalidSale
	}
	if _, ok := s.customers[*sale.CustomerID]; !ok {
		return nil, store.ErrNotFound
	}

	if sale.ID == "" {
		sale.ID = xid.New("sale")
	}

	var (
		hardErrors   []domain.SaleItemError
		stagedItems  []domain.SaleItem
		stagedStocks = map[string]int{}
		results      = make([]domain.SaleItemResult, 0, len(items))
		itemsTotal   int
	)

	for _, req := range items {
		product, ok := s.products[req.ProductID]
		if !ok {
			hardErrors = append(hardErrors, domain.SaleItemError{
				ProductID: req.ProductID,
				Error:     "Product not found",
			})
			continue
		}

		remaining, staged := stagedStocks[product.ID]
		if !staged {
			remaining = product.Stock
		}
		if req.Qty > remaining {
			results = append(results, domain.SaleItemResult{
				ProductID:  req.ProductID,
				PriceCents: req.PriceCents,
				Qty:        req.Qty,
				Status:     domain.ItemStatusFailed,
				Message:    "Insufficient stock",
			})
			continue
		}

		stagedStocks[product.ID] = remaining - req.Qty
		stagedItems = append(stagedItems, domain.SaleItem{
			ID:         xid.New("sli"),
			SaleID:     sale.ID,
			ProductID:  req.ProductID,
			PriceCents: req.PriceCents,
			Qty:        req.Qty,
			Verified:   true,
		})
		results = append(results, domain.SaleItemResult{
			ProductID:  req.ProductID,
			PriceCents: req.PriceCents,
			Qty:        req.Qty,
			Status:     domain.ItemStatusSuccess,
		})
		itemsTotal += req.Qty
	}

	if len(hardErrors) > 0 {
		return nil, &store.SaleValidationError{Errors: hardErrors}
	}

	sale.ItemsTotal = itemsTotal
	s.sales[sale.ID] = sale
	s.itemsBySale[sale.ID] = stagedItems
	for id, stock := range stagedStocks {
		p := s.products[id]
		p.Stock = stock
		s.products[id] = p
	}

	return &domain.SaleResult{
		SaleID:          sale.ID,
		CustomerID:      *sale.CustomerID,
		TransactionCode: sale.TransactionCode,
		TransactionDate: sale.SaleDate.UTC().Format(time.RFC3339),
		ItemsTotal:      itemsTotal,
		Items:           results,
	}, nil
}

// matchSale applies the shared search predicate: date range (unless
// filter.All) and keyword against transaction code or customer name.
func (s *Store) matchSale(sale domain.Sale, filter store.SaleFilter) bool {
	if !filter.All {
		if sale.SaleDate.Before(filter.Start) || sale.SaleDate.After(filter.End) {
			return false
		}
	}
	if filter.Keyword == "" {
		return true
	}

	needle := strings.ToLower(filter.Keyword)
	if strings.Contains(strings.ToLower(sale.TransactionCode), needle) {
		return true
	}
	if sale.CustomerID != nil {
		if c, ok := s.customers[*sale.CustomerID]; ok {
			return strings.Contains(strings.ToLower(c.Name), needle)
		}
	}
	return false
}

func (s *Store) SearchSales(_ context.Context, filter store.SaleFilter) ([]domain.SaleSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summaries := make([]domain.SaleSummary, 0)
	for _, sale := range s.sales {
		if !s.matchSale(sale, filter) {
			continue
		}

		var customerName string
		if sale.CustomerID != nil {
			if c, ok := s.customers[*sale.CustomerID]; ok {
				customerName = c.Name
			}
		}

		var total int64
		for _, item := range s.itemsBySale[sale.ID] {
			total += item.PriceCents * int64(item.Qty)
		}

		summaries = append(summaries, domain.SaleSummary{
			SaleID:          sale.ID,
			TransactionCode: sale.TransactionCode,
			SaleDate:        sale.SaleDate,
			CustomerName:    customerName,
			ItemsTotal:      sale.ItemsTotal,
			TotalPriceCents: total,
		})
	}

	slices.SortFunc(summaries, func(a, b domain.SaleSummary) int {
		if a.SaleDate.Equal(b.SaleDate) {
			return strings.Compare(b.SaleID, a.SaleID)
		}
		if a.SaleDate.After(b.SaleDate) {
			return -1
		}
		return 1
	})
	return summaries, nil
}

func (s *Store) RevenueByMinute(_ context.Context, filter store.SaleFilter) ([]domain.RevenuePoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type bucketKey struct {
		date   string
		hour   int
		minute int
	}
	totals := map[bucketKey]int64{}

	for _, sale := range s.sales {
		if !s.matchSale(sale, filter) {
			continue
		}
		at := sale.SaleDate.UTC()
		key := bucketKey{at.Format("2006-01-02"), at.Hour(), at.Minute()}

		// A sale without items still registers the bucket at zero.
		totals[key] += 0
		for _, item := range s.itemsBySale[sale.ID] {
			totals[key] += item.PriceCents * int64(item.Qty)
		}
	}

	points := make([]domain.RevenuePoint, 0, len(totals))
	for key, total := range totals {
		points = append(points, domain.RevenuePoint{
			Date:       key.date,
			Hour:       key.hour,
			Minute:     key.minute,
			TotalCents: total,
		})
	}

	slices.SortFunc(points, func(a, b domain.RevenuePoint) int {
		if a.Date != b.Date {
			return strings.Compare(a.Date, b.Date)
		}
		if a.Hour != b.Hour {
			return a.Hour - b.Hour
		}
		return a.Minute - b.Minute
	})
	return points, nil
}

func (s *Store) TopProducts(_ context.Context, start time.Time, end time.Time, limit int) ([]domain.TopProduct, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type agg struct {
		items int
		total int64
	}
	byProduct := map[string]*agg{}

	for _, sale := range s.sales {
		if sale.SaleDate.Before(start) || sale.SaleDate.After(end) {
			continue
		}
		for _, item := range s.itemsBySale[sale.ID] {
			a, ok := byProduct[item.ProductID]
			if !ok {
				a = &agg{}
				byProduct[item.ProductID] = a
			}
			a.items += item.Qty
			a.total += item.PriceCents * int64(item.Qty)
		}
	}

	ranked := make([]domain.TopProduct, 0, len(byProduct))
	for productID, a := range byProduct {
		top := domain.TopProduct{
			ProductID:       productID,
			TotalItems:      a.items,
			TotalPriceCents: a.total,
		}
		if p, ok := s.products[productID]; ok {
			top.ProductCode = p.Code
			top.ProductName = p.Name
		}
		ranked = append(ranked, top)
	}

	slices.SortFunc(ranked, func(a, b domain.TopProduct) int {
		if a.TotalPriceCents != b.TotalPriceCents {
			if a.TotalPriceCents > b.TotalPriceCents {
				return -1
			}
			return 1
		}
		return strings.Compare(a.ProductID, b.ProductID)
	})

	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked, nil
}
