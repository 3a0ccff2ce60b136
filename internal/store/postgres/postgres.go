package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"warungpos/backend/internal/domain"
	"warungpos/backend/internal/store"
	"warungpos/backend/internal/xid"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	if customer.ID == "" {
		customer.ID = xid.New("cus")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO customers (id, name, created_at)
		VALUES ($1,$2,now())
	`, customer.ID, customer.Name)
	if err != nil {
		return nil, err
	}

	created := customer
	return &created, nil
}

func (s *Store) GetCustomer(ctx context.Context, id string) (*domain.Customer, error) {
	var customer domain.Customer
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name
		FROM customers
		WHERE id = $1
	`, id).Scan(&customer.ID, &customer.Name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &customer, nil
}

func (s *Store) ListCustomers(ctx context.Context, nameContains string) ([]domain.Customer, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name
		FROM customers
		WHERE $1 = '' OR name ILIKE '%' || $1 || '%'
		ORDER BY name, id
	`, nameContains)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	customers := make([]domain.Customer, 0, 32)
	for rows.Next() {
		var c domain.Customer
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, err
		}
		customers = append(customers, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return customers, nil
}

// DeleteCustomer severs sale references before removing the row, so sales
// survive with a NULL customer.
func (s *Store) DeleteCustomer(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		UPDATE sales SET customer_id = NULL WHERE customer_id = $1
	`, id); err != nil {
		return err
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM customers WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}

	return tx.Commit()
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.ID == "" {
		product.ID = xid.New("prd")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO products (id, code, name, price_cents, status, stock, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,now(),now())
	`, product.ID, product.Code, product.Name, product.PriceCents, product.Status, product.Stock)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrDuplicateCode
		}
		return nil, err
	}

	created := product
	return &created, nil
}

func (s *Store) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	return s.getProductWhere(ctx, `id = $1`, id)
}

func (s *Store) GetProductByCode(ctx context.Context, code string) (*domain.Product, error) {
	return s.getProductWhere(ctx, `code = $1`, code)
}

func (s *Store) getProductWhere(ctx context.Context, where string, arg any) (*domain.Product, error) {
	var product domain.Product
	err := s.db.QueryRowContext(ctx, `
		SELECT id, code, name, price_cents, status, stock
		FROM products
		WHERE `+where, arg).Scan(&product.ID, &product.Code, &product.Name, &product.PriceCents, &product.Status, &product.Stock)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &product, nil
}

func (s *Store) ListProducts(ctx context.Context, nameContains string) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, code, name, price_cents, status, stock
		FROM products
		WHERE $1 = '' OR name ILIKE '%' || $1 || '%'
		ORDER BY code, id
	`, nameContains)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 64)
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Code, &p.Name, &p.PriceCents, &p.Status, &p.Stock); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return products, nil
}

func (s *Store) UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET name = $2, price_cents = $3, status = $4, stock = $5, updated_at = now()
		WHERE id = $1
	`, product.ID, product.Name, product.PriceCents, product.Status, product.Stock)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}

	updated := product
	return &updated, nil
}

// CommitSale records a sale in one serializable transaction. Unknown products
// are hard errors that roll everything back; an item asking for more than the
// available stock is skipped and reported as Failed while the rest commits.
// Stock is taken with a conditional decrement, so two concurrent sales can
// never drive it below zero.
func (s *Store) CommitSale(ctx context.Context, sale domain.Sale, items []domain.SaleItemRequest) (*domain.SaleResult, error) {
	if sale.CustomerID == nil {
		return nil, store.ErrInvalidSale
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var customerID string
	err = tx.QueryRowContext(ctx, `
		SELECT id FROM customers WHERE id = $1
	`, *sale.CustomerID).Scan(&customerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	if sale.ID == "" {
		sale.ID = xid.New("sale")
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO sales (id, sale_date, customer_id, transaction_code, items_total, created_at)
		VALUES ($1,$2,$3,$4,0,now())
	`, sale.ID, sale.SaleDate, customerID, sale.TransactionCode)
	if err != nil {
		return nil, err
	}

	var (
		hardErrors []domain.SaleItemError
		results    = make([]domain.SaleItemResult, 0, len(items))
		itemsTotal int
	)
	for _, req := range items {
		var productID string
		err := tx.QueryRowContext(ctx, `
			SELECT id FROM products WHERE id = $1
		`, req.ProductID).Scan(&productID)
		if errors.Is(err, sql.ErrNoRows) {
			hardErrors = append(hardErrors, domain.SaleItemError{
				ProductID: req.ProductID,
				Error:     "Product not found",
			})
			continue
		}
		if err != nil {
			return nil, err
		}

		res, err := tx.ExecContext(ctx, `
			UPDATE products
			SET stock = stock - $2, updated_at = now()
			WHERE id = $1 AND stock >= $2
		`, req.ProductID, req.Qty)
		if err != nil {
			return nil, err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return nil, err
		}
		if affected == 0 {
			results = append(results, domain.SaleItemResult{
				ProductID:  req.ProductID,
				PriceCents: req.PriceCents,
				Qty:        req.Qty,
				Status:     domain.ItemStatusFailed,
				Message:    "Insufficient stock",
			})
			continue
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO sale_items (id, sale_id, product_id, price_cents, qty, verified)
			VALUES ($1,$2,$3,$4,$5,true)
		`, xid.New("sli"), sale.ID, req.ProductID, req.PriceCents, req.Qty)
		if err != nil {
			return nil, err
		}

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

	if _, err := tx.ExecContext(ctx, `
		UPDATE sales SET items_total = $2 WHERE id = $1
	`, sale.ID, itemsTotal); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return &domain.SaleResult{
		SaleID:          sale.ID,
		CustomerID:      customerID,
		TransactionCode: sale.TransactionCode,
		TransactionDate: sale.SaleDate.UTC().Format(time.RFC3339),
		ItemsTotal:      itemsTotal,
		Items:           results,
	}, nil
}

// saleFilterSQL is the shared search predicate: date range (disabled when the
// filter asks for everything) and keyword against the transaction code or the
// customer name.
const saleFilterSQL = `
	($3 OR s.sale_date BETWEEN $1 AND $2)
	AND ($4 = '' OR s.transaction_code ILIKE '%' || $4 || '%' OR c.name ILIKE '%' || $4 || '%')
`

func (s *Store) SearchSales(ctx context.Context, filter store.SaleFilter) ([]domain.SaleSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.transaction_code, s.sale_date, COALESCE(c.name, ''), s.items_total,
		       COALESCE(SUM(i.price_cents * i.qty), 0)
		FROM sales s
		LEFT JOIN customers c ON c.id = s.customer_id
		LEFT JOIN sale_items i ON i.sale_id = s.id
		WHERE `+saleFilterSQL+`
		GROUP BY s.id, s.transaction_code, s.sale_date, c.name, s.items_total
		ORDER BY s.sale_date DESC, s.id DESC
	`, filter.Start, filter.End, filter.All, filter.Keyword)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	summaries := make([]domain.SaleSummary, 0, 64)
	for rows.Next() {
		var sum domain.SaleSummary
		if err := rows.Scan(&sum.SaleID, &sum.TransactionCode, &sum.SaleDate, &sum.CustomerName, &sum.ItemsTotal, &sum.TotalPriceCents); err != nil {
			return nil, err
		}
		sum.SaleDate = sum.SaleDate.UTC()
		summaries = append(summaries, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return summaries, nil
}

func (s *Store) RevenueByMinute(ctx context.Context, filter store.SaleFilter) ([]domain.RevenuePoint, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT to_char(s.sale_date AT TIME ZONE 'UTC', 'YYYY-MM-DD') AS sale_day,
		       EXTRACT(HOUR FROM s.sale_date AT TIME ZONE 'UTC')::int AS sale_hour,
		       EXTRACT(MINUTE FROM s.sale_date AT TIME ZONE 'UTC')::int AS sale_minute,
		       COALESCE(SUM(i.price_cents * i.qty), 0)
		FROM sales s
		LEFT JOIN customers c ON c.id = s.customer_id
		LEFT JOIN sale_items i ON i.sale_id = s.id
		WHERE `+saleFilterSQL+`
		GROUP BY sale_day, sale_hour, sale_minute
		ORDER BY sale_day, sale_hour, sale_minute
	`, filter.Start, filter.End, filter.All, filter.Keyword)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	points := make([]domain.RevenuePoint, 0, 64)
	for rows.Next() {
		var p domain.RevenuePoint
		if err := rows.Scan(&p.Date, &p.Hour, &p.Minute, &p.TotalCents); err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return points, nil
}

func (s *Store) TopProducts(ctx context.Context, start time.Time, end time.Time, limit int) ([]domain.TopProduct, error) {
	if limit < 1 {
		limit = 5
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.code, p.name, SUM(i.qty)::int, SUM(i.price_cents * i.qty)
		FROM sale_items i
		JOIN sales s ON s.id = i.sale_id
		JOIN products p ON p.id = i.product_id
		WHERE s.sale_date BETWEEN $1 AND $2
		GROUP BY p.id, p.code, p.name
		ORDER BY SUM(i.price_cents * i.qty) DESC, p.id ASC
		LIMIT $3
	`, start, end, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ranked := make([]domain.TopProduct, 0, limit)
	for rows.Next() {
		var top domain.TopProduct
		if err := rows.Scan(&top.ProductID, &top.ProductCode, &top.ProductName, &top.TotalItems, &top.TotalPriceCents); err != nil {
			return nil, err
		}
		ranked = append(ranked, top)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ranked, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
