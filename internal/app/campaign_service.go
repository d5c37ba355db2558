package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/gosimple/slug"
	"go.uber.org/zap"

	"raven-iq-service/internal/domain"
)

// CampaignService manages shareable attribution links.
type CampaignService struct {
	store CampaignStore
	log   *zap.Logger
}

func NewCampaignService(store CampaignStore, log *zap.Logger) *CampaignService {
	return &CampaignService{store: store, log: log}
}

// Create generates a slug for the name and persists the campaign enabled.
// Duplicate names surface as domain.ErrCampaignNameTaken.
func (s *CampaignService) Create(ctx context.Context, name string) (domain.Campaign, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Campaign{}, fmt.Errorf("%w: campaign name required", domain.ErrInvalidSubmission)
	}

	token, err := randomToken()
	if err != nil {
		return domain.Campaign{}, fmt.Errorf("generate campaign slug: %w", err)
	}
	campaign := domain.Campaign{
		Slug:    campaignSlug(name, token),
		Name:    name,
		Enabled: true,
	}
	if err := s.store.CreateCampaign(ctx, campaign); err != nil {
		return domain.Campaign{}, err
	}
	s.log.Info("campaign created", zap.String("slug", campaign.Slug), zap.String("name", name))
	return campaign, nil
}

// List returns all campaigns ordered by name.
func (s *CampaignService) List(ctx context.Context) ([]domain.Campaign, error) {
	return s.store.ListCampaigns(ctx)
}

// ResolveEntry gates incoming campaign links: unknown slugs are not found,
// disabled ones are rejected while their stored results stay reachable.
func (s *CampaignService) ResolveEntry(ctx context.Context, slug string) (domain.Campaign, error) {
	campaign, err := s.store.CampaignBySlug(ctx, slug)
	if err != nil {
		return domain.Campaign{}, err
	}
	if !campaign.Enabled {
		return domain.Campaign{}, domain.ErrCampaignDisabled
	}
	return campaign, nil
}

// Delete removes the campaign. Results keep the dangling slug and are shown
// as direct traffic from then on.
func (s *CampaignService) Delete(ctx context.Context, slug string) error {
	if err := s.store.DeleteCampaign(ctx, slug); err != nil {
		return err
	}
	s.log.Info("campaign deleted", zap.String("slug", slug))
	return nil
}

// SetEnabled toggles whether the campaign accepts new traffic.
func (s *CampaignService) SetEnabled(ctx context.Context, slug string, enabled bool) error {
	if err := s.store.SetCampaignEnabled(ctx, slug, enabled); err != nil {
		return err
	}
	s.log.Info("campaign toggled", zap.String("slug", slug), zap.Bool("enabled", enabled))
	return nil
}

// NameBySlug maps a result's campaign slug to a display name, tolerating
// dangling references.
func NameBySlug(campaigns []domain.Campaign, slug string) string {
	for _, c := range campaigns {
		if c.Slug == slug {
			return c.Name
		}
	}
	return "Direct/Untagged"
}

// campaignSlug builds a short public token: a slugified name prefix plus a
// random suffix so two similar names never race for the same slug.
func campaignSlug(name, token string) string {
	base := slug.Make(name)
	if len(base) > 24 {
		base = base[:24]
	}
	base = strings.Trim(base, "-")
	if base == "" {
		return token
	}
	return base + "-" + token
}

func randomToken() (string, error) {
	buf := make([]byte, 2)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
