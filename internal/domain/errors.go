package domain

import "errors"

var (
	// ErrInvalidSubmission is returned when a test submission is missing
	// required fields or carries malformed answers.
	ErrInvalidSubmission = errors.New("invalid test submission")
	// ErrResultNotFound is returned when no result exists for an id.
	ErrResultNotFound = errors.New("result not found")
	// ErrCampaignNotFound is returned when no campaign exists for a slug.
	ErrCampaignNotFound = errors.New("campaign not found")
	// ErrCampaignDisabled is returned when a disabled campaign link is opened.
	ErrCampaignDisabled = errors.New("campaign is disabled")
	// ErrCampaignNameTaken is returned when a campaign name is already in use.
	ErrCampaignNameTaken = errors.New("campaign name already in use")
	// ErrPaymentNotCompleted indicates the external payment check did not pass.
	ErrPaymentNotCompleted = errors.New("payment not completed")
	// ErrUnknownPaymentTier indicates a paid session that maps to no result tier.
	ErrUnknownPaymentTier = errors.New("payment maps to no result tier")
	// ErrIDSpaceExhausted is returned when result id allocation keeps colliding;
	// it signals store corruption or id exhaustion and is not retried.
	ErrIDSpaceExhausted = errors.New("result id space exhausted")
)
