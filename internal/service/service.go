package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"regexp"
	"strings"
	"time"

	"warungpos/backend/internal/cache"
	"warungpos/backend/internal/domain"
	"warungpos/backend/internal/store"
)

var (
	ErrInvalidRange    = errors.New("invalid period range")
	ErrInvalidKeyword  = errors.New("invalid keyword")
	ErrInvalidCustomer = errors.New("invalid customer")
	ErrInvalidProduct  = errors.New("invalid product")
)

// customerKeywordPattern allow-lists search keywords to letters, digits and
// whitespace.
var customerKeywordPattern = regexp.MustCompile(`^[a-zA-Z0-9\s]+$`)

type Service struct {
	repo            store.Repository
	reports         cache.ReportCache
	reportTTL       time.Duration
	defaultPageSize int
	now             func() time.Time
}

func New(repo store.Repository, reports cache.ReportCache, reportTTL time.Duration, defaultPageSize int) *Service {
	if reports == nil {
		reports = cache.NoopReportCache{}
	}
	if reportTTL <= 0 {
		reportTTL = 60 * time.Second
	}
	if defaultPageSize < 1 {
		defaultPageSize = 10
	}

	return &Service{
		repo:            repo,
		reports:         reports,
		reportTTL:       reportTTL,
		defaultPageSize: defaultPageSize,
		now:             func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) CreateCustomer(ctx context.Context, req domain.CustomerCreateRequest) (domain.Customer, error) {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return domain.Customer{}, ErrInvalidCustomer
	}

	created, err := s.repo.CreateCustomer(ctx, domain.Customer{Name: req.Name})
	if err != nil {
		return domain.Customer{}, err
	}
	return *created, nil
}

func (s *Service) GetCustomer(ctx context.Context, id string) (domain.Customer, error) {
	customer, err := s.repo.GetCustomer(ctx, id)
	if err != nil {
		return domain.Customer{}, err
	}
	return *customer, nil
}

func (s *Service) ListCustomers(ctx context.Context, nameContains string) ([]domain.Customer, error) {
	return s.repo.ListCustomers(ctx, strings.TrimSpace(nameContains))
}

// SearchCustomers is the allow-listed variant of ListCustomers: keywords may
// only contain letters, digits and whitespace.
func (s *Service) SearchCustomers(ctx context.Context, keyword string) ([]domain.Customer, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword != "" && !customerKeywordPattern.MatchString(keyword) {
		return nil, ErrInvalidKeyword
	}
	return s.repo.ListCustomers(ctx, keyword)
}

// ListCustomersByIDs resolves a comma-separated batch of customer ids.
// Unknown ids are silently skipped.
func (s *Service) ListCustomersByIDs(ctx context.Context, rawIDs string) ([]domain.Customer, error) {
	customers := make([]domain.Customer, 0, 4)
	for _, id := range strings.Split(rawIDs, ",") {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		customer, err := s.repo.GetCustomer(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		customers = append(customers, *customer)
	}
	return customers, nil
}

func (s *Service) DeleteCustomer(ctx context.Context, id string) error {
	return s.repo.DeleteCustomer(ctx, id)
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (domain.Product, error) {
	req.Code = strings.ToUpper(strings.TrimSpace(req.Code))
	req.Name = strings.TrimSpace(req.Name)
	if req.Code == "" || req.Name == "" || req.PriceCents < 1 || req.Stock < 0 {
		return domain.Product{}, ErrInvalidProduct
	}
	if req.Status == "" {
		req.Status = domain.ProductStatusActive
	}

	created, err := s.repo.CreateProduct(ctx, domain.Product{
		Code:       req.Code,
		Name:       req.Name,
		PriceCents: req.PriceCents,
		Status:     req.Status,
		Stock:      req.Stock,
	})
	if err != nil {
		return domain.Product{}, err
	}
	return *created, nil
}

func (s *Service) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	product, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}
	return *product, nil
}

func (s *Service) ListProducts(ctx context.Context, nameContains string) ([]domain.Product, error) {
	return s.repo.ListProducts(ctx, strings.TrimSpace(nameContains))
}

func (s *Service) UpdateProduct(ctx context.Context, id string, req domain.ProductUpdateRequest) (domain.Product, error) {
	existing, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}

	if req.Name != nil {
		existing.Name = strings.TrimSpace(*req.Name)
	}
	if req.PriceCents != nil {
		existing.PriceCents = *req.PriceCents
	}
	if req.Status != nil {
		existing.Status = *req.Status
	}
	if req.Stock != nil {
		existing.Stock = *req.Stock
	}
	if existing.Name == "" || existing.PriceCents < 1 || existing.Stock < 0 {
		return domain.Product{}, ErrInvalidProduct
	}

	updated, err := s.repo.UpdateProduct(ctx, *existing)
	if err != nil {
		return domain.Product{}, err
	}
	return *updated, nil
}

// LookupProductByCode resolves a product by its catalog code and attaches the
// availability message the cashier screen shows.
func (s *Service) LookupProductByCode(ctx context.Context, code string) (domain.ProductLookupResponse, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return domain.ProductLookupResponse{}, ErrInvalidProduct
	}

	product, err := s.repo.GetProductByCode(ctx, code)
	if err != nil {
		return domain.ProductLookupResponse{}, err
	}

	var message string
	onHold := strings.EqualFold(product.Status, domain.ProductStatusHold)
	switch {
	case onHold && product.Stock == 0:
		message = "Product is on hold and out of stock."
	case onHold:
		message = "Product is on hold."
	case product.Stock == 0:
		message = "Product stock is not ready."
	default:
		message = "Product stock is ready."
	}

	return domain.ProductLookupResponse{
		Product:  *product,
		Messages: []string{message},
	}, nil
}

// RecordSale commits a sale. Hard errors (unknown customer or product) reject
// the whole request; insufficient stock only fails the affected line.
func (s *Service) RecordSale(ctx context.Context, req domain.SaleRequest) (domain.SaleResult, error) {
	if strings.TrimSpace(req.CustomerID) == "" {
		return domain.SaleResult{}, store.ErrNotFound
	}

	saleDate := s.now()
	if req.SaleDate != "" {
		parsed, err := parseFlexibleTime(req.SaleDate)
		if err != nil {
			return domain.SaleResult{}, ErrInvalidRange
		}
		saleDate = parsed
	}

	code := strings.TrimSpace(req.TransactionCode)
	if code == "" {
		code = domain.DefaultTransactionCode
	}

	customerID := req.CustomerID
	result, err := s.repo.CommitSale(ctx, domain.Sale{
		SaleDate:        saleDate,
		CustomerID:      &customerID,
		TransactionCode: code,
	}, req.Items)
	if err != nil {
		return domain.SaleResult{}, err
	}
	return *result, nil
}

// ListTransactions pages through sales in a date range, matched by keyword
// against the transaction code or customer name.
func (s *Service) ListTransactions(ctx context.Context, q domain.TransactionQuery) (domain.TransactionPage, error) {
	if q.PeriodStart == "" || q.PeriodEnd == "" {
		return domain.TransactionPage{}, ErrInvalidRange
	}
	start, err := parseFlexibleTime(q.PeriodStart)
	if err != nil {
		return domain.TransactionPage{}, ErrInvalidRange
	}
	end, err := parseFlexibleTime(q.PeriodEnd)
	if err != nil {
		return domain.TransactionPage{}, ErrInvalidRange
	}
	end = endOfDay(end)

	pageSize := q.PageSize
	if pageSize < 1 {
		pageSize = s.defaultPageSize
	}
	page := q.Page
	if page < 1 {
		page = 1
	}

	summaries, err := s.repo.SearchSales(ctx, store.SaleFilter{
		Start:   start,
		End:     end,
		Keyword: strings.TrimSpace(q.Keyword),
	})
	if err != nil {
		return domain.TransactionPage{}, fmt.Errorf("search sales: %w", err)
	}

	totalData := len(summaries)
	totalPages := int(math.Ceil(float64(totalData) / float64(pageSize)))

	from := (page - 1) * pageSize
	to := from + pageSize
	if from > totalData {
		from = totalData
	}
	if to > totalData {
		to = totalData
	}

	rows := make([]domain.TransactionRow, 0, to-from)
	for _, sum := range summaries[from:to] {
		customer := sum.CustomerName
		if customer == "" {
			customer = domain.MissingCustomerName
		}
		rows = append(rows, domain.TransactionRow{
			TransactionCode: sum.TransactionCode,
			SaleDate:        sum.SaleDate.Format("02/01/06"),
			Customer:        customer,
			TotalItem:       sum.ItemsTotal,
			TotalPriceCents: sum.TotalPriceCents,
		})
	}

	return domain.TransactionPage{
		Params: domain.TransactionPageParams{
			Keyword:     strings.TrimSpace(q.Keyword),
			PeriodStart: start.Format("02/01/2006"),
			PeriodEnd:   end.Format("02/01/2006"),
			PageSize:    pageSize,
		},
		TotalData:  totalData,
		TotalPages: totalPages,
		Page:       page,
		Rows:       rows,
	}, nil
}

// CompareRevenue buckets sale revenue per minute for every distinct sale date
// matching the filter. The range only applies when both bounds arrive; a lone
// bound reads as no range at all. The end bound is the parsed instant, not the
// end of its day. When the filter matches no dates the report deliberately
// widens to every recorded sale; the echoed params keep the pre-fallback date
// list.
func (s *Service) CompareRevenue(ctx context.Context, periodStart, periodEnd, keyword string) (domain.RevenueComparison, error) {
	keyword = strings.TrimSpace(keyword)

	filter := store.SaleFilter{Keyword: keyword, All: true}
	if periodStart != "" && periodEnd != "" {
		start, err := parseFlexibleTime(periodStart)
		if err != nil {
			return domain.RevenueComparison{}, ErrInvalidRange
		}
		end, err := parseFlexibleTime(periodEnd)
		if err != nil {
			return domain.RevenueComparison{}, ErrInvalidRange
		}
		filter = store.SaleFilter{Start: start, End: end, Keyword: keyword}
	}

	cacheKey := fmt.Sprintf("reports:revenue-comparison:%s|%s|%s", periodStart, periodEnd, keyword)
	var cached domain.RevenueComparison
	if ok := s.cachedReport(ctx, cacheKey, &cached); ok {
		return cached, nil
	}

	points, err := s.repo.RevenueByMinute(ctx, filter)
	if err != nil {
		return domain.RevenueComparison{}, fmt.Errorf("revenue by minute: %w", err)
	}

	dates := distinctDates(points)
	report := domain.RevenueComparison{
		Params: domain.RevenueComparisonParams{Keyword: keyword, Dates: dates},
	}

	if len(dates) == 0 {
		points, err = s.repo.RevenueByMinute(ctx, store.SaleFilter{All: true})
		if err != nil {
			return domain.RevenueComparison{}, fmt.Errorf("revenue by minute: %w", err)
		}
	}

	buckets := map[string][]domain.RevenueBucket{}
	for _, p := range points {
		buckets[p.Date] = append(buckets[p.Date], domain.RevenueBucket{
			Time:       fmt.Sprintf("%02d:%02d", p.Hour, p.Minute),
			TotalCents: p.TotalCents,
		})
	}

	report.Data = make([]map[string][]domain.RevenueBucket, 0, len(buckets))
	for _, date := range distinctDates(points) {
		report.Data = append(report.Data, map[string][]domain.RevenueBucket{
			"date:" + date: buckets[date],
		})
	}

	s.storeReport(ctx, cacheKey, report)
	return report, nil
}

// TopProducts ranks products by revenue in the period, highest first, ties
// broken by product id so repeated calls return a stable order.
func (s *Service) TopProducts(ctx context.Context, periodStart, periodEnd string, limit int) (domain.TopProductsReport, error) {
	if periodStart == "" || periodEnd == "" {
		return domain.TopProductsReport{}, ErrInvalidRange
	}
	start, err := parseFlexibleTime(periodStart)
	if err != nil {
		return domain.TopProductsReport{}, ErrInvalidRange
	}
	end, err := parseFlexibleTime(periodEnd)
	if err != nil {
		return domain.TopProductsReport{}, ErrInvalidRange
	}
	// The end bound stretches one day minus a second past the parsed instant,
	// so a bare date covers its whole calendar day.
	end = end.AddDate(0, 0, 1).Add(-time.Second)

	if limit < 1 {
		limit = 5
	}

	cacheKey := fmt.Sprintf("reports:top-products:%s|%s|%d", periodStart, periodEnd, limit)
	var cached domain.TopProductsReport
	if ok := s.cachedReport(ctx, cacheKey, &cached); ok {
		return cached, nil
	}

	ranked, err := s.repo.TopProducts(ctx, start, end, limit)
	if err != nil {
		return domain.TopProductsReport{}, fmt.Errorf("top products: %w", err)
	}

	report := domain.TopProductsReport{
		Params: domain.TopProductsParams{
			PeriodStart: start.Format("02/01/2006"),
			PeriodEnd:   end.Format("02/01/2006"),
			Limit:       limit,
		},
		Data: ranked,
	}

	s.storeReport(ctx, cacheKey, report)
	return report, nil
}

func (s *Service) cachedReport(ctx context.Context, key string, out any) bool {
	payload, ok, err := s.reports.Get(ctx, key)
	if err != nil {
		log.Printf("[service] WARN: report cache get %s: %v", key, err)
		return false
	}
	if !ok {
		return false
	}
	if err := json.Unmarshal(payload, out); err != nil {
		log.Printf("[service] WARN: report cache decode %s: %v", key, err)
		return false
	}
	return true
}

func (s *Service) storeReport(ctx context.Context, key string, report any) {
	payload, err := json.Marshal(report)
	if err != nil {
		log.Printf("[service] WARN: report cache encode %s: %v", key, err)
		return
	}
	if err := s.reports.Set(ctx, key, payload, s.reportTTL); err != nil {
		log.Printf("[service] WARN: report cache set %s: %v", key, err)
	}
}

func parseFlexibleTime(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, ErrInvalidRange
}

func endOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 23, 59, 59, 0, time.UTC)
}

func distinctDates(points []domain.RevenuePoint) []string {
	dates := make([]string, 0, 8)
	seen := map[string]bool{}
	for _, p := range points {
		if seen[p.Date] {
			continue
		}
		seen[p.Date] = true
		dates = append(dates, p.Date)
	}
	return dates
}
