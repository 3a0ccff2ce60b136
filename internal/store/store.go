package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"warungpos/backend/internal/domain"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrInvalidSale   = errors.New("invalid sale")
	ErrDuplicateCode = errors.New("duplicate code")
)

// SaleValidationError aggregates the hard errors of a rejected sale commit.
// When a commit returns it, nothing was persisted.
type SaleValidationError struct {
	Errors []domain.SaleItemError
}

func (e *SaleValidationError) Error() string {
	return fmt.Sprintf("sale rejected: %d invalid item(s)", len(e.Errors))
}

// SaleFilter narrows sale summaries to a date range and an optional keyword
// matched against the transaction code or the customer name.
type SaleFilter struct {
	Start   time.Time
	End     time.Time
	Keyword string
	// All disables the range predicate; keyword still applies.
	All bool
}

type Repository interface {
	CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error)
	GetCustomer(ctx context.Context, id string) (*domain.Customer, error)
	ListCustomers(ctx context.Context, nameContains string) ([]domain.Customer, error)
	DeleteCustomer(ctx context.Context, id string) error

	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	GetProductByCode(ctx context.Context, code string) (*domain.Product, error)
	ListProducts(ctx context.Context, nameContains string) ([]domain.Product, error)
	UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)

	// CommitSale runs the whole sale commit in one write transaction. Hard
	// errors (unknown customer, unknown product) abort everything; soft
	// failures (insufficient stock) are reported per item and the rest
	// commits.
	CommitSale(ctx context.Context, sale domain.Sale, items []domain.SaleItemRequest) (*domain.SaleResult, error)

	// SearchSales returns the full filtered result set ordered by sale date
	// descending, then id descending. Pagination happens in the service.
	SearchSales(ctx context.Context, filter SaleFilter) ([]domain.SaleSummary, error)

	// RevenueByMinute groups snapshot revenue of matching sales into
	// (date, hour, minute) buckets. Sales without items contribute a zero
	// bucket so their date still appears.
	RevenueByMinute(ctx context.Context, filter SaleFilter) ([]domain.RevenuePoint, error)

	// TopProducts ranks products sold in [start, end] by snapshot revenue
	// descending, ties broken by product id ascending.
	TopProducts(ctx context.Context, start time.Time, end time.Time, limit int) ([]domain.TopProduct, error)
}
