package service

import (
	"context"
	"strings"
	"sync"

	"github.com/halver/shopcore/internal/models"
	"go.uber.org/zap"
)

// defaults used when no tenant configuration is reachable; resolution
// must never block order creation
const (
	defaultLocale             = "en"
	defaultCurrency           = "EUR"
	defaultFreeDeliveryMinQty = 3000
	defaultDeliveryFeeCents   = 2500
)

// TenantRepository is interface for reading tenant configuration
type TenantRepository interface {
	// ListTenants returns all tenant rows
	ListTenants(ctx context.Context) ([]models.Tenant, error)
	// GetTenantByID returns tenant by id
	GetTenantByID(ctx context.Context, id uint64) (*models.Tenant, error)
}

// TenantService resolves an origin domain to a tenant context.
// Tenant rows change rarely, so they are cached after the first load.
type TenantService struct {
	repo   TenantRepository
	logger *zap.Logger

	mu      sync.RWMutex
	tenants []models.Tenant
	loaded  bool
}

// NewTenantService creates new TenantService instance
func NewTenantService(repo TenantRepository, logger *zap.Logger) *TenantService {
	return &TenantService{
		repo:   repo,
		logger: logger,
	}
}

// Resolve maps an origin domain to a tenant context. The most specific
// (longest) configured domain contained in originDomain wins; with no
// match the root tenant is used. Resolution is side-effect free and
// never blocks order creation on missing tenant data.
func (ts *TenantService) Resolve(ctx context.Context, originDomain string) (models.TenantContext, error) {
	tenants, err := ts.load(ctx)
	if err != nil {
		ts.logger.Warn("tenant resolution failing open to defaults", zap.Error(err))
		return defaultTenantContext(), nil
	}

	var best *models.Tenant
	var root *models.Tenant

	origin := strings.ToLower(originDomain)

	for i := range tenants {
		t := &tenants[i]
		if t.IsRoot {
			root = t
		}
		if t.Domain == "" {
			continue
		}
		if !strings.Contains(origin, strings.ToLower(t.Domain)) {
			continue
		}
		if best == nil || len(t.Domain) > len(best.Domain) {
			best = t
		}
	}

	if best == nil {
		best = root
	}
	if best == nil {
		return defaultTenantContext(), nil
	}

	return tenantContext(best), nil
}

// Refresh drops the cached tenant rows so the next Resolve re-reads them
func (ts *TenantService) Refresh() {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.loaded = false
	ts.tenants = nil
}

func (ts *TenantService) load(ctx context.Context) ([]models.Tenant, error) {
	ts.mu.RLock()
	if ts.loaded {
		tenants := ts.tenants
		ts.mu.RUnlock()
		return tenants, nil
	}
	ts.mu.RUnlock()

	ts.mu.Lock()
	defer ts.mu.Unlock()

	if ts.loaded {
		return ts.tenants, nil
	}

	tenants, err := ts.repo.ListTenants(ctx)
	if err != nil {
		return nil, err
	}

	ts.tenants = tenants
	ts.loaded = true

	return tenants, nil
}

func tenantContext(t *models.Tenant) models.TenantContext {
	tc := models.TenantContext{
		ShopID:               t.ID,
		ShopName:             t.Name,
		DefaultBankAccountID: t.DefaultBankAccountID,
		Locale:               t.Locale,
		Currency:             t.Currency,
		AutoInvoice:          t.AutoInvoice,
		FreeDeliveryMinQty:   t.FreeDeliveryMinQty,
		DeliveryFeeCents:     t.DeliveryFeeCents,
	}
	if tc.Locale == "" {
		tc.Locale = defaultLocale
	}
	if tc.Currency == "" {
		tc.Currency = defaultCurrency
	}
	return tc
}

func defaultTenantContext() models.TenantContext {
	return models.TenantContext{
		Locale:             defaultLocale,
		Currency:           defaultCurrency,
		FreeDeliveryMinQty: defaultFreeDeliveryMinQty,
		DeliveryFeeCents:   defaultDeliveryFeeCents,
	}
}
