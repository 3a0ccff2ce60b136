package domain

import "time"

type Customer struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type CustomerCreateRequest struct {
	Name string `json:"name"`
}

type Product struct {
	ID         string `json:"id"`
	Code       string `json:"code"`
	Name       string `json:"name"`
	PriceCents int64  `json:"price_cents"`
	Status     string `json:"status"`
	Stock      int    `json:"stock"`
}

type ProductCreateRequest struct {
	Code       string `json:"code"`
	Name       string `json:"name"`
	PriceCents int64  `json:"price_cents"`
	Status     string `json:"status"`
	Stock      int    `json:"stock"`
}

type ProductUpdateRequest struct {
	Name       *string `json:"name,omitempty"`
	PriceCents *int64  `json:"price_cents,omitempty"`
	Status     *string `json:"status,omitempty"`
	Stock      *int    `json:"stock,omitempty"`
}

// ProductLookupResponse carries the availability messages the cashier UI
// shows when scanning a product by code.
type ProductLookupResponse struct {
	Product  Product  `json:"product"`
	Messages []string `json:"messages,omitempty"`
}

// Sale is the persisted sale header. CustomerID is a weak reference: deleting
// the customer leaves the sale in place with a nil CustomerID.
type Sale struct {
	ID              string    `json:"id"`
	SaleDate        time.Time `json:"sale_date"`
	CustomerID      *string   `json:"customer_id"`
	TransactionCode string    `json:"transaction_code"`
	ItemsTotal      int       `json:"items_total"`
}

// SaleItem records the unit price as a snapshot taken at commit time.
// Later catalog price changes never touch it.
type SaleItem struct {
	ID         string `json:"id"`
	SaleID     string `json:"sale_id"`
	ProductID  string `json:"product_id"`
	PriceCents int64  `json:"price_cents"`
	Qty        int    `json:"qty"`
	Verified   bool   `json:"verified"`
}

type SaleItemRequest struct {
	ProductID  string `json:"product_id"`
	Qty        int    `json:"qty"`
	PriceCents int64  `json:"price_cents"`
}

type SaleRequest struct {
	CustomerID      string            `json:"customer_id"`
	SaleDate        string            `json:"sale_date,omitempty"`
	TransactionCode string            `json:"transaction_code,omitempty"`
	Items           []SaleItemRequest `json:"items"`
}

type SaleItemResult struct {
	ProductID  string `json:"product_id"`
	PriceCents int64  `json:"price_cents"`
	Qty        int    `json:"qty"`
	Status     string `json:"status"`
	Message    string `json:"message,omitempty"`
}

type SaleResult struct {
	SaleID          string           `json:"sale_id"`
	CustomerID      string           `json:"customer_id"`
	TransactionCode string           `json:"transaction_code"`
	TransactionDate string           `json:"transaction_date"`
	ItemsTotal      int              `json:"items_total"`
	Items           []SaleItemResult `json:"items"`
}

// SaleItemError is one hard error from a sale commit attempt. Any hard error
// rolls the whole attempt back.
type SaleItemError struct {
	ProductID string `json:"product_id"`
	Error     string `json:"error"`
}

type TransactionQuery struct {
	PeriodStart string
	PeriodEnd   string
	Keyword     string
	PageSize    int
	Page        int
}

type TransactionRow struct {
	TransactionCode string `json:"transaction_code"`
	SaleDate        string `json:"sale_date"`
	Customer        string `json:"customer"`
	TotalItem       int    `json:"total_item"`
	TotalPriceCents int64  `json:"total_price_cents"`
}

type TransactionPageParams struct {
	Keyword     string `json:"keyword"`
	PeriodStart string `json:"period_start"`
	PeriodEnd   string `json:"period_end"`
	PageSize    int    `json:"page_size"`
}

type TransactionPage struct {
	Params     TransactionPageParams `json:"params"`
	TotalData  int                   `json:"total_data"`
	TotalPages int                   `json:"total_pages"`
	Page       int                   `json:"page"`
	Rows       []TransactionRow      `json:"rows"`
}

type RevenueBucket struct {
	Time       string `json:"time"`
	TotalCents int64  `json:"total_cents"`
}

type RevenueComparisonParams struct {
	Keyword string   `json:"keyword"`
	Dates   []string `json:"dates"`
}

// RevenueComparison groups per-minute revenue buckets under a "date:YYYY-MM-DD"
// key, one map entry per distinct sale date.
type RevenueComparison struct {
	Params RevenueComparisonParams      `json:"params"`
	Data   []map[string][]RevenueBucket `json:"data"`
}

type TopProduct struct {
	ProductID       string `json:"product_id"`
	ProductCode     string `json:"product_code"`
	ProductName     string `json:"product_name"`
	TotalItems      int    `json:"total_items"`
	TotalPriceCents int64  `json:"total_price_cents"`
}

type TopProductsParams struct {
	PeriodStart string `json:"period_start"`
	PeriodEnd   string `json:"period_end"`
	Limit       int    `json:"limit"`
}

type TopProductsReport struct {
	Params TopProductsParams `json:"params"`
	Data   []TopProduct      `json:"data"`
}

// SaleSummary is the joined row the transaction search reads: one sale with
// its customer display name (empty when the reference is severed) and the
// total price derived from item snapshots.
type SaleSummary struct {
	SaleID          string
	TransactionCode string
	SaleDate        time.Time
	CustomerName    string
	ItemsTotal      int
	TotalPriceCents int64
}

// RevenuePoint is one (date, hour, minute) bucket of summed snapshot revenue.
type RevenuePoint struct {
	Date       string
	Hour       int
	Minute     int
	TotalCents int64
}

const (
	ItemStatusSuccess = "Success"
	ItemStatusFailed  = "Failed"
)

const (
	ProductStatusActive = "active"
	ProductStatusHold   = "hold"
)

// DefaultTransactionCode is stored when a sale request omits the code.
const DefaultTransactionCode = "N/A"

// MissingCustomerName is the display sentinel for sales whose customer
// reference has been severed.
const MissingCustomerName = "N/A"
