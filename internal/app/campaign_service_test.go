package app_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"raven-iq-service/internal/app"
	"raven-iq-service/internal/domain"
)

func newCampaignService(t *testing.T) (*app.CampaignService, app.CampaignStore) {
	t.Helper()
	store := newTestStore(t)
	return app.NewCampaignService(store, zap.NewNop()), store
}

func TestCreateCampaignSlugShape(t *testing.T) {
	ctx := context.Background()
	service, _ := newCampaignService(t)

	created, err := service.Create(ctx, "Spring Hiring 2024")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !created.Enabled {
		t.Fatalf("new campaigns start enabled")
	}
	if !strings.HasPrefix(created.Slug, "spring-hiring-2024-") {
		t.Fatalf("expected slugified prefix, got %q", created.Slug)
	}
	if suffix := created.Slug[strings.LastIndex(created.Slug, "-")+1:]; len(suffix) != 4 {
		t.Fatalf("expected 4-char random suffix, got %q", suffix)
	}
}

func TestCreateCampaignRejectsDuplicateName(t *testing.T) {
	ctx := context.Background()
	service, _ := newCampaignService(t)

	if _, err := service.Create(ctx, "Spring Hiring 2024"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := service.Create(ctx, "Spring Hiring 2024"); !errors.Is(err, domain.ErrCampaignNameTaken) {
		t.Fatalf("expected name conflict, got %v", err)
	}

	campaigns, err := service.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(campaigns) != 1 {
		t.Fatalf("conflict must not add a row, got %d", len(campaigns))
	}
}

func TestCreateCampaignRequiresName(t *testing.T) {
	service, _ := newCampaignService(t)
	if _, err := service.Create(context.Background(), "   "); !errors.Is(err, domain.ErrInvalidSubmission) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestResolveEntryGates(t *testing.T) {
	ctx := context.Background()
	service, _ := newCampaignService(t)

	created, err := service.Create(ctx, "Autumn Outreach")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := service.ResolveEntry(ctx, created.Slug); err != nil {
		t.Fatalf("enabled campaign must resolve: %v", err)
	}

	if err := service.SetEnabled(ctx, created.Slug, false); err != nil {
		t.Fatalf("disable: %v", err)
	}
	if _, err := service.ResolveEntry(ctx, created.Slug); !errors.Is(err, domain.ErrCampaignDisabled) {
		t.Fatalf("expected disabled error, got %v", err)
	}

	if _, err := service.ResolveEntry(ctx, "nope-0000"); !errors.Is(err, domain.ErrCampaignNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestNameBySlugToleratesDangling(t *testing.T) {
	campaigns := []domain.Campaign{{Slug: "live-aaaa", Name: "Live", Enabled: true}}
	if got := app.NameBySlug(campaigns, "live-aaaa"); got != "Live" {
		t.Fatalf("expected campaign name, got %q", got)
	}
	if got := app.NameBySlug(campaigns, "deleted-bbbb"); got != "Direct/Untagged" {
		t.Fatalf("expected dangling slug fallback, got %q", got)
	}
	if got := app.NameBySlug(campaigns, ""); got != "Direct/Untagged" {
		t.Fatalf("expected direct traffic fallback, got %q", got)
	}
}
