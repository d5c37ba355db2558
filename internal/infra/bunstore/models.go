package bunstore

import (
	"github.com/uptrace/bun"

	"raven-iq-service/internal/domain"
)

// resultRow is the bun mapping for the results table. Optional columns use
// nullzero so absent values land as NULL (the payment_id UNIQUE constraint
// relies on that).
type resultRow struct {
	bun.BaseModel `bun:"table:results"`

	ID             string `bun:"id,pk"`
	Score          int    `bun:"score"`
	Age            int    `bun:"age"`
	SubmitTime     int64  `bun:"submit_time"`
	PaymentID      string `bun:"payment_id,nullzero"`
	UserName       string `bun:"user_name"`
	ResultTier     int    `bun:"result_tier"`
	Email          string `bun:"email,nullzero"`
	TestDuration   int    `bun:"test_duration,nullzero"`
	CorrectAnswers int    `bun:"correct_answers,nullzero"`
	CampaignSlug   string `bun:"campaign_slug,nullzero"`
}

type campaignRow struct {
	bun.BaseModel `bun:"table:campaigns"`

	Slug    string `bun:"slug,pk"`
	Name    string `bun:"name"`
	Enabled bool   `bun:"enabled"`
}

func rowFromResult(r domain.Result) resultRow {
	return resultRow{
		ID:             r.ID,
		Score:          r.Score,
		Age:            r.Age,
		SubmitTime:     r.SubmitTime,
		PaymentID:      r.PaymentID,
		UserName:       r.UserName,
		ResultTier:     int(r.Tier),
		Email:          r.Email,
		TestDuration:   r.TestDuration,
		CorrectAnswers: r.CorrectAnswers,
		CampaignSlug:   r.CampaignSlug,
	}
}

func (r resultRow) toDomain() domain.Result {
	return domain.Result{
		ID:             r.ID,
		Score:          r.Score,
		Age:            r.Age,
		SubmitTime:     r.SubmitTime,
		PaymentID:      r.PaymentID,
		UserName:       r.UserName,
		Tier:           domain.ResultTier(r.ResultTier),
		Email:          r.Email,
		TestDuration:   r.TestDuration,
		CorrectAnswers: r.CorrectAnswers,
		CampaignSlug:   r.CampaignSlug,
	}
}

func (c campaignRow) toDomain() domain.Campaign {
	return domain.Campaign{Slug: c.Slug, Name: c.Name, Enabled: c.Enabled}
}
