package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"union-data/internal/domain"
	"union-data/internal/repository"
	"union-data/internal/store"
)

func TestConsentRate(t *testing.T) {
	cases := []struct {
		agreed, total int
		want          int
	}{
		{0, 0, 0}, // no owners: zero, not a division error
		{3, 4, 75},
		{1, 3, 33},
		{2, 3, 67}, // rounds up
		{4, 4, 100},
		{0, 5, 0},
	}
	for _, c := range cases {
		if got := consentRate(c.agreed, c.total); got != c.want {
			t.Errorf("consentRate(%d, %d) = %d, want %d", c.agreed, c.total, got, c.want)
		}
	}
}

func TestDisplayStatus(t *testing.T) {
	cases := []struct {
		totalOwners, rate int
		want              string
	}{
		{0, 0, domain.DisplayNotSubmitted},
		{4, 100, domain.DisplayFullAgreed},
		{4, 75, domain.DisplayPartialAgreed},
		{4, 0, domain.DisplayNoneAgreed},
		{1, 100, domain.DisplayFullAgreed},
	}
	for _, c := range cases {
		if got := displayStatus(c.totalOwners, c.rate); got != c.want {
			t.Errorf("displayStatus(%d, %d) = %s, want %s", c.totalOwners, c.rate, got, c.want)
		}
	}
}

func TestTenantRate(t *testing.T) {
	if got := tenantRate(0, 0); got != 0 {
		t.Errorf("tenantRate(0, 0) = %v, want 0", got)
	}
	if got := tenantRate(75, 100); got != 75.0 {
		t.Errorf("tenantRate(75, 100) = %v, want 75.0", got)
	}
	if got := tenantRate(1, 3); got != 33.3 {
		t.Errorf("tenantRate(1, 3) = %v, want 33.3", got)
	}
}

func TestAreaRate(t *testing.T) {
	if got := areaRate(0, 0); got != 0 {
		t.Errorf("areaRate(0, 0) = %v, want 0", got)
	}
	if got := areaRate(300, 400); got != 75.0 {
		t.Errorf("areaRate(300, 400) = %v, want 75.0", got)
	}
}

// fakeKV in-memory KV with TTL, mirroring the Redis contract.
type fakeKV struct {
	mu   sync.Mutex
	data map[string]fakeKVItem
	sets int
}

type fakeKVItem struct {
	value   string
	expires time.Time
}

func newFakeKV() *fakeKV {
	return &fakeKV{data: make(map[string]fakeKVItem)}
}

func (f *fakeKV) Get(ctx context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.data[key]
	if !ok {
		return "", store.ErrMiss
	}
	if !item.expires.IsZero() && time.Now().After(item.expires) {
		delete(f.data, key)
		return "", store.ErrMiss
	}
	return item.value, nil
}

func (f *fakeKV) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	item := fakeKVItem{value: value}
	if ttl > 0 {
		item.expires = time.Now().Add(ttl)
	}
	f.data[key] = item
	f.sets++
	return nil
}

func (f *fakeKV) Del(ctx context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range keys {
		delete(f.data, k)
	}
	return nil
}

func (f *fakeKV) ScanKeys(ctx context.Context, pattern string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	// Only the "prefix:*" form is used by the service.
	prefix := pattern
	if n := len(pattern); n > 0 && pattern[n-1] == '*' {
		prefix = pattern[:n-1]
	}
	out := []string{}
	for k := range f.data {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			out = append(out, k)
		}
	}
	return out, nil
}

type fakeConsentsRepo struct {
	stages     map[string]*domain.ConsentStage
	statusRows []repository.ParcelStatusRow
	queries    int
}

func (f *fakeConsentsRepo) ListStages(ctx context.Context, tenantID string) ([]*domain.ConsentStage, error) {
	out := []*domain.ConsentStage{}
	for _, s := range f.stages {
		out = append(out, s)
	}
	return out, nil
}

func (f *fakeConsentsRepo) GetStage(ctx context.Context, tenantID, stageID string) (*domain.ConsentStage, error) {
	s, ok := f.stages[stageID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return s, nil
}

func (f *fakeConsentsRepo) CreateStage(ctx context.Context, tenantID string, s *domain.ConsentStage) (string, error) {
	return "stage-new", nil
}

func (f *fakeConsentsRepo) UpsertConsent(ctx context.Context, tenantID string, c *domain.MemberConsent) error {
	return nil
}

func (f *fakeConsentsRepo) ParcelConsentCounts(ctx context.Context, tenantID, parcelCode, stageID string) (repository.ConsentCounts, error) {
	return repository.ConsentCounts{}, nil
}

func (f *fakeConsentsRepo) TenantAgreedCount(ctx context.Context, tenantID, stageID string) (int, error) {
	return 0, nil
}

func (f *fakeConsentsRepo) AreaCounts(ctx context.Context, tenantID, stageID string) (float64, float64, error) {
	return 0, 0, nil
}

func (f *fakeConsentsRepo) ParcelStatusRows(ctx context.Context, tenantID, stageID string) ([]repository.ParcelStatusRow, error) {
	f.queries++
	return f.statusRows, nil
}

type fakeTenantsRepo struct {
	tenant *domain.Tenant
}

func (f *fakeTenantsRepo) ListTenants(ctx context.Context, search string) ([]*domain.Tenant, error) {
	return []*domain.Tenant{f.tenant}, nil
}

func (f *fakeTenantsRepo) GetTenant(ctx context.Context, tenantID string) (*domain.Tenant, error) {
	return f.tenant, nil
}

func (f *fakeTenantsRepo) GetTenantBySlug(ctx context.Context, slug string) (*domain.Tenant, error) {
	return f.tenant, nil
}

func (f *fakeTenantsRepo) CreateTenant(ctx context.Context, tnt *domain.Tenant) (string, error) {
	return f.tenant.TenantID, nil
}

func (f *fakeTenantsRepo) UpdateTenant(ctx context.Context, tenantID string, tnt *domain.Tenant) error {
	return nil
}

func (f *fakeTenantsRepo) UpdateMemberCount(ctx context.Context, tenantID string, memberCount int) error {
	return nil
}

func TestMapOverview_CachesResult(t *testing.T) {
	repo := &fakeConsentsRepo{
		stages: map[string]*domain.ConsentStage{
			"stage-1": {StageID: "stage-1", BusinessType: domain.BusinessTypeRedevelopment, StageName: "조합설립", RequiredRate: 75},
		},
		statusRows: []repository.ParcelStatusRow{
			{ParcelCode: "1111010100100010000", TotalOwners: 4, AgreedOwners: 3},
			{ParcelCode: "1111010100100020000", TotalOwners: 0, AgreedOwners: 0},
		},
	}
	tenants := &fakeTenantsRepo{tenant: &domain.Tenant{
		TenantID:     "t-1",
		BusinessType: domain.BusinessTypeRedevelopment,
		MemberCount:  100,
	}}
	kv := newFakeKV()
	svc := NewConsentService(repo, tenants, kv, zap.NewNop())
	ctx := context.Background()

	first, err := svc.MapOverview(ctx, "t-1", "stage-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(first) != 2 {
		t.Fatalf("expected 2 parcels, got %d", len(first))
	}
	if first[0].ConsentRate != 75 || first[0].DisplayStatus != domain.DisplayPartialAgreed {
		t.Errorf("parcel 1: rate=%d status=%s, want 75/%s", first[0].ConsentRate, first[0].DisplayStatus, domain.DisplayPartialAgreed)
	}
	if first[1].DisplayStatus != domain.DisplayNotSubmitted {
		t.Errorf("zero-owner parcel: status=%s, want %s", first[1].DisplayStatus, domain.DisplayNotSubmitted)
	}

	// Second call is served from the cache.
	second, err := svc.MapOverview(ctx, "t-1", "stage-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(second) != 2 {
		t.Fatalf("expected 2 parcels from cache, got %d", len(second))
	}
	if repo.queries != 1 {
		t.Errorf("expected 1 repository query, got %d", repo.queries)
	}
}

func TestSetConsent_RejectsBusinessTypeMismatch(t *testing.T) {
	repo := &fakeConsentsRepo{
		stages: map[string]*domain.ConsentStage{
			"stage-recon": {StageID: "stage-recon", BusinessType: domain.BusinessTypeReconstruction, StageName: "안전진단", RequiredRate: 50},
		},
	}
	tenants := &fakeTenantsRepo{tenant: &domain.Tenant{
		TenantID:     "t-1",
		BusinessType: domain.BusinessTypeRedevelopment,
	}}
	svc := NewConsentService(repo, tenants, newFakeKV(), zap.NewNop())

	err := svc.SetConsent(context.Background(), "t-1", "m-1", "stage-recon", domain.ConsentAgreed, nil)
	if err == nil {
		t.Fatal("expected business type mismatch error")
	}
}

func TestSetConsent_RejectsUnknownStatus(t *testing.T) {
	svc := NewConsentService(&fakeConsentsRepo{}, &fakeTenantsRepo{}, newFakeKV(), zap.NewNop())
	if err := svc.SetConsent(context.Background(), "t-1", "m-1", "stage-1", "maybe", nil); err == nil {
		t.Fatal("expected invalid status error")
	}
}

func TestSetConsent_InvalidatesOverviewCache(t *testing.T) {
	repo := &fakeConsentsRepo{
		stages: map[string]*domain.ConsentStage{
			"stage-1": {StageID: "stage-1", BusinessType: domain.BusinessTypeRedevelopment, StageName: "조합설립", RequiredRate: 75},
		},
		statusRows: []repository.ParcelStatusRow{
			{ParcelCode: "1111010100100010000", TotalOwners: 2, AgreedOwners: 1},
		},
	}
	tenants := &fakeTenantsRepo{tenant: &domain.Tenant{
		TenantID:     "t-1",
		BusinessType: domain.BusinessTypeRedevelopment,
		MemberCount:  10,
	}}
	kv := newFakeKV()
	svc := NewConsentService(repo, tenants, kv, zap.NewNop())
	ctx := context.Background()

	if _, err := svc.MapOverview(ctx, "t-1", "stage-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := svc.SetConsent(ctx, "t-1", "m-1", "stage-1", domain.ConsentAgreed, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.MapOverview(ctx, "t-1", "stage-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.queries != 2 {
		t.Errorf("expected cache invalidation to force a second query, got %d queries", repo.queries)
	}
}
