package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/foliodesk/internal/cache"
	"github.com/foliodesk/internal/constants"
	"github.com/foliodesk/internal/models"
)

type fakeSubscriptionSource struct {
	subs  []models.Subscription
	err   error
	calls int
}

func (f *fakeSubscriptionSource) ListActive(ctx context.Context, token string) ([]models.Subscription, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.subs, nil
}

type fakeBundleSource struct {
	bundles map[string]*models.Bundle
	err     error
}

func (f *fakeBundleSource) GetByID(ctx context.Context, token, bundleID string) (*models.Bundle, error) {
	if f.err != nil {
		return nil, f.err
	}
	bundle, ok := f.bundles[bundleID]
	if !ok {
		return nil, errors.New("bundle not found")
	}
	return bundle, nil
}

func newAccessFixture(subs *fakeSubscriptionSource, bundles *fakeBundleSource) *AccessService {
	if bundles == nil {
		bundles = &fakeBundleSource{}
	}
	return NewAccessService(subs, bundles, &fakeTokens{token: "tok"}, cache.NewMemoryStore(), time.Minute)
}

func activeBundleSub(id, category string) models.Subscription {
	return models.Subscription{
		ID:             id,
		ProductType:    constants.ProductTypeBundle,
		IsActive:       true,
		BundleCategory: category,
		ProductRef:     "bundle-" + id,
	}
}

func TestGetAccessPremiumWinsOverBasic(t *testing.T) {
	source := &fakeSubscriptionSource{subs: []models.Subscription{
		activeBundleSub("s1", constants.PlanCategoryBasic),
		activeBundleSub("s2", constants.PlanCategoryPremium),
	}}
	svc := newAccessFixture(source, nil)

	access := svc.GetAccess(context.Background(), "dev-1")
	if !access.HasPremium || !access.HasBasic {
		t.Fatalf("unexpected flags: %+v", access)
	}
	if access.Level != constants.AccessLevelPremium {
		t.Fatalf("expected premium level, got %q", access.Level)
	}
}

func TestGetAccessIndividualPortfolios(t *testing.T) {
	source := &fakeSubscriptionSource{subs: []models.Subscription{
		{
			ID:          "s1",
			ProductType: constants.ProductTypePortfolio,
			IsActive:    true,
			ProductRef:  "pf-1",
		},
		{
			ID:          "s2",
			ProductType: constants.ProductTypePortfolio,
			IsActive:    true,
			ProductRef:  "pf-1",
		},
	}}
	svc := newAccessFixture(source, nil)

	access := svc.GetAccess(context.Background(), "dev-1")
	if access.Level != constants.AccessLevelIndividual {
		t.Fatalf("expected individual level, got %q", access.Level)
	}
	if len(access.PortfolioAccess) != 1 || access.PortfolioAccess[0] != "pf-1" {
		t.Fatalf("portfolio list not deduped: %v", access.PortfolioAccess)
	}
	if !access.HasPortfolioAccess("pf-1") || access.HasPortfolioAccess("pf-2") {
		t.Fatalf("portfolio access lookup wrong: %+v", access)
	}
}

func TestGetAccessUnknownCategoryGrantsPremium(t *testing.T) {
	source := &fakeSubscriptionSource{subs: []models.Subscription{
		activeBundleSub("s1", "mystery-tier"),
	}}
	svc := newAccessFixture(source, &fakeBundleSource{err: errors.New("bundle api down")})

	access := svc.GetAccess(context.Background(), "dev-1")
	if !access.HasPremium {
		t.Fatalf("unknown category must grant premium, got %+v", access)
	}
}

func TestGetAccessFallsBackToBundleLookup(t *testing.T) {
	source := &fakeSubscriptionSource{subs: []models.Subscription{
		activeBundleSub("s1", ""),
	}}
	bundles := &fakeBundleSource{bundles: map[string]*models.Bundle{
		"bundle-s1": {ID: "bundle-s1", Category: constants.PlanCategoryBasic},
	}}
	svc := newAccessFixture(source, bundles)

	access := svc.GetAccess(context.Background(), "dev-1")
	if access.HasPremium || !access.HasBasic {
		t.Fatalf("expected basic via bundle lookup, got %+v", access)
	}
}

func TestGetAccessFetchFailureIsZero(t *testing.T) {
	source := &fakeSubscriptionSource{err: errors.New("upstream down")}
	svc := newAccessFixture(source, nil)

	access := svc.GetAccess(context.Background(), "dev-1")
	if access.HasPremium || access.HasBasic || len(access.PortfolioAccess) != 0 {
		t.Fatalf("fetch failure must yield zero access, got %+v", access)
	}
	if access.Level != constants.AccessLevelNone {
		t.Fatalf("expected none level, got %q", access.Level)
	}
}

func TestGetAccessUsesCacheUntilInvalidated(t *testing.T) {
	source := &fakeSubscriptionSource{subs: []models.Subscription{
		activeBundleSub("s1", constants.PlanCategoryPremium),
	}}
	svc := newAccessFixture(source, nil)

	svc.GetAccess(context.Background(), "dev-1")
	svc.GetAccess(context.Background(), "dev-1")
	if source.calls != 1 {
		t.Fatalf("second read should hit cache, calls=%d", source.calls)
	}

	svc.Invalidate(context.Background(), "dev-1")
	svc.GetAccess(context.Background(), "dev-1")
	if source.calls != 2 {
		t.Fatalf("invalidate should force re-resolve, calls=%d", source.calls)
	}
}

func TestForceRefreshBypassesCache(t *testing.T) {
	source := &fakeSubscriptionSource{subs: []models.Subscription{
		activeBundleSub("s1", constants.PlanCategoryBasic),
	}}
	svc := newAccessFixture(source, nil)

	svc.GetAccess(context.Background(), "dev-1")
	svc.ForceRefresh(context.Background(), "dev-1")
	if source.calls != 2 {
		t.Fatalf("force refresh must bypass cache, calls=%d", source.calls)
	}
}

func TestGetAccessAnonymousIsZero(t *testing.T) {
	source := &fakeSubscriptionSource{subs: []models.Subscription{
		activeBundleSub("s1", constants.PlanCategoryPremium),
	}}
	svc := NewAccessService(source, &fakeBundleSource{}, &fakeTokens{}, cache.NewMemoryStore(), time.Minute)

	access := svc.GetAccess(context.Background(), "dev-1")
	if access.Level != constants.AccessLevelNone || source.calls != 0 {
		t.Fatalf("anonymous must be zero access without upstream call, got %+v calls=%d", access, source.calls)
	}
}
