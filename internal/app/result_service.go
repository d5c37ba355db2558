package app

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"raven-iq-service/internal/domain"
	"raven-iq-service/internal/scoring"
)

// ResultStore abstracts result persistence (bun over SQLite or Postgres).
type ResultStore interface {
	InsertResult(ctx context.Context, result domain.Result) error
	GetResult(ctx context.Context, id string) (domain.Result, error)
	ListResults(ctx context.Context) ([]domain.Result, error)
	DeleteResult(ctx context.Context, id string) error
	FindByPayment(ctx context.Context, paymentID string) (domain.Result, error)
	ResultIDExists(ctx context.Context, id string) (bool, error)
	EmailExists(ctx context.Context, email string) (bool, error)
}

// CampaignStore abstracts campaign persistence.
type CampaignStore interface {
	CreateCampaign(ctx context.Context, campaign domain.Campaign) error
	ListCampaigns(ctx context.Context) ([]domain.Campaign, error)
	CampaignBySlug(ctx context.Context, slug string) (domain.Campaign, error)
	DeleteCampaign(ctx context.Context, slug string) error
	SetCampaignEnabled(ctx context.Context, slug string, enabled bool) error
}

// VerifiedPayment is the shape the lifecycle manager needs from the payment
// provider: session state and the payment link that selects the tier.
type VerifiedPayment struct {
	Status        string
	PaymentStatus string
	PaymentLinkID string
}

// PaymentVerifier checks a checkout session against the provider. The
// implementation is treated as untrusted: any error is a verification
// failure, never retried here.
type PaymentVerifier interface {
	Retrieve(ctx context.Context, paymentID string) (VerifiedPayment, error)
}

// idAllocAttempts bounds the unique-id retry loop. The 12-digit space makes
// collisions negligible, so running out of attempts means the store is
// corrupt or the id space is exhausted.
const idAllocAttempts = 10

// submissionRules mirrors domain.AnswerSheet for input validation.
type submissionRules struct {
	Answers  []int  `validate:"len=60,dive,min=0,max=7"`
	Age      int    `validate:"gt=0,lt=130"`
	UserName string `validate:"required,max=120"`
	Email    string `validate:"omitempty,email"`
}

// ResultService is the result lifecycle manager: it scores submissions,
// allocates public ids, persists finished records and never writes partial
// state.
type ResultService struct {
	store     ResultStore
	campaigns CampaignStore
	verifier  PaymentVerifier
	feed      *Feed
	log       *zap.Logger
	validate  *validator.Validate

	tierByLink    map[string]domain.ResultTier
	tier1Lifetime time.Duration
	now           func() time.Time
}

// ResultServiceOptions carries the knobs the lifecycle manager needs.
type ResultServiceOptions struct {
	// TierLinks maps payment-link ids to the tier they purchase.
	TierLinks map[string]domain.ResultTier
	// Tier1Lifetime is the retention window for temporary results.
	Tier1Lifetime time.Duration
}

func NewResultService(store ResultStore, campaigns CampaignStore, verifier PaymentVerifier, feed *Feed, log *zap.Logger, opts ResultServiceOptions) *ResultService {
	return &ResultService{
		store:         store,
		campaigns:     campaigns,
		verifier:      verifier,
		feed:          feed,
		log:           log,
		validate:      validator.New(),
		tierByLink:    opts.TierLinks,
		tier1Lifetime: opts.Tier1Lifetime,
		now:           time.Now,
	}
}

// WithClock is test-only for deterministic timestamps.
func (s *ResultService) WithClock(now func() time.Time) *ResultService {
	s.now = now
	return s
}

// CreateDirect handles the free-submission path: validate, score, allocate
// an id and persist with the certificate tier.
func (s *ResultService) CreateDirect(ctx context.Context, sheet domain.AnswerSheet) (domain.Result, error) {
	return s.create(ctx, sheet, "", domain.TierCertificate)
}

// AcceptPayment handles the payment-gated path. Replays of an already
// registered payment id return the stored result untouched.
func (s *ResultService) AcceptPayment(ctx context.Context, sheet domain.AnswerSheet, paymentID string) (domain.Result, error) {
	if paymentID == "" {
		return domain.Result{}, domain.ErrInvalidSubmission
	}

	previous, err := s.store.FindByPayment(ctx, paymentID)
	if err == nil {
		s.log.Info("payment already registered, replaying result",
			zap.String("payment_id", paymentID), zap.String("result_id", previous.ID))
		return previous, nil
	}
	if !errors.Is(err, domain.ErrResultNotFound) {
		return domain.Result{}, err
	}

	payment, err := s.verifier.Retrieve(ctx, paymentID)
	if err != nil {
		s.log.Warn("payment verification failed", zap.String("payment_id", paymentID), zap.Error(err))
		return domain.Result{}, domain.ErrPaymentNotCompleted
	}
	if payment.Status != "complete" {
		s.log.Warn("session status is not complete, aborting payment",
			zap.String("payment_id", paymentID), zap.String("status", payment.Status))
		return domain.Result{}, domain.ErrPaymentNotCompleted
	}
	if payment.PaymentStatus != "paid" {
		s.log.Warn("session payment status is not paid, aborting payment",
			zap.String("payment_id", paymentID), zap.String("payment_status", payment.PaymentStatus))
		return domain.Result{}, domain.ErrPaymentNotCompleted
	}

	tier, ok := s.tierByLink[payment.PaymentLinkID]
	if !ok || !tier.Valid() {
		s.log.Warn("payment link maps to no tier", zap.String("payment_link", payment.PaymentLinkID))
		return domain.Result{}, domain.ErrUnknownPaymentTier
	}

	return s.create(ctx, sheet, paymentID, tier)
}

func (s *ResultService) create(ctx context.Context, sheet domain.AnswerSheet, paymentID string, tier domain.ResultTier) (domain.Result, error) {
	rules := submissionRules{
		Answers:  sheet.Answers,
		Age:      sheet.Age,
		UserName: sheet.UserName,
		Email:    sheet.Email,
	}
	if err := s.validate.Struct(rules); err != nil {
		return domain.Result{}, fmt.Errorf("%w: %v", domain.ErrInvalidSubmission, err)
	}

	campaignSlug := ""
	if sheet.CampaignSlug != "" {
		// The entry URL is the primary gate; this backstop drops slugs for
		// campaigns that vanished or were disabled mid-test.
		campaign, err := s.campaigns.CampaignBySlug(ctx, sheet.CampaignSlug)
		if err == nil && campaign.Enabled {
			campaignSlug = campaign.Slug
		}
	}

	id, err := s.allocateID(ctx)
	if err != nil {
		return domain.Result{}, err
	}

	iq, correct := scoring.Score(sheet.Answers, sheet.Age)
	result := domain.Result{
		ID:             id,
		Score:          iq,
		Age:            sheet.Age,
		SubmitTime:     s.now().Unix(),
		PaymentID:      paymentID,
		UserName:       sheet.UserName,
		Tier:           tier,
		Email:          sheet.Email,
		TestDuration:   sheet.TestDuration,
		CorrectAnswers: correct,
		CampaignSlug:   campaignSlug,
	}

	if err := s.store.InsertResult(ctx, result); err != nil {
		return domain.Result{}, err
	}
	s.log.Info("result created",
		zap.String("result_id", result.ID),
		zap.Int("score", result.Score),
		zap.Int("tier", int(result.Tier)),
		zap.String("campaign", campaignSlug))
	s.feed.Publish(result)
	return result, nil
}

// allocateID rolls random 12-digit ids until one is free, bounded so a
// misbehaving store surfaces as an error instead of a spin loop.
func (s *ResultService) allocateID(ctx context.Context) (string, error) {
	for attempt := 0; attempt < idAllocAttempts; attempt++ {
		id, err := randomResultID()
		if err != nil {
			return "", fmt.Errorf("roll result id: %w", err)
		}
		exists, err := s.store.ResultIDExists(ctx, id)
		if err != nil {
			return "", err
		}
		if !exists {
			return id, nil
		}
		s.log.Warn("result id collision, re-rolling", zap.String("id", id), zap.Int("attempt", attempt+1))
	}
	return "", domain.ErrIDSpaceExhausted
}

const idDigits = 12

var idSpan = new(big.Int).Sub(
	new(big.Int).Exp(big.NewInt(10), big.NewInt(idDigits), nil),
	new(big.Int).Exp(big.NewInt(10), big.NewInt(idDigits-1), nil),
)

func randomResultID() (string, error) {
	n, err := rand.Int(rand.Reader, idSpan)
	if err != nil {
		return "", err
	}
	low := new(big.Int).Exp(big.NewInt(10), big.NewInt(idDigits-1), nil)
	return n.Add(n, low).String(), nil
}

// Get returns the stored result for a public id.
func (s *ResultService) Get(ctx context.Context, id string) (domain.Result, error) {
	return s.store.GetResult(ctx, id)
}

// List returns all results, newest first.
func (s *ResultService) List(ctx context.Context) ([]domain.Result, error) {
	return s.store.ListResults(ctx)
}

// Delete removes a result record for good.
func (s *ResultService) Delete(ctx context.Context, id string) error {
	if err := s.store.DeleteResult(ctx, id); err != nil {
		return err
	}
	s.log.Info("result deleted", zap.String("result_id", id))
	return nil
}

// EmailExists reports whether a result already carries the email.
func (s *ResultService) EmailExists(ctx context.Context, email string) (bool, error) {
	return s.store.EmailExists(ctx, email)
}

// Expired reports whether a temporary result has outlived its retention
// window. This is a render-time check only; the record itself stays.
func (s *ResultService) Expired(result domain.Result) bool {
	if result.Tier != domain.TierTemporary {
		return false
	}
	deadline := result.SubmitTime + int64(s.tier1Lifetime/time.Second)
	return deadline < s.now().Unix()
}
