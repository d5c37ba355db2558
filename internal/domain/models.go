package domain

// ResultTier selects which presentation variant a result gets.
type ResultTier int

const (
	// TierTemporary shows the plain score and expires after a configured window.
	TierTemporary ResultTier = 1
	// TierPlain shows the plain score and never expires.
	TierPlain ResultTier = 2
	// TierCertificate shows the downloadable certificate image.
	TierCertificate ResultTier = 3
)

// Valid reports whether the tier is one of the three known variants.
func (t ResultTier) Valid() bool {
	return t == TierTemporary || t == TierPlain || t == TierCertificate
}

// Result is one persisted, scored test attempt. Score, tier and submit time
// are immutable once the record is written.
type Result struct {
	ID             string     `json:"id"`
	Score          int        `json:"score"`
	Age            int        `json:"age"`
	SubmitTime     int64      `json:"submitTime"`
	PaymentID      string     `json:"-"`
	UserName       string     `json:"userName"`
	Tier           ResultTier `json:"resultTier"`
	Email          string     `json:"email,omitempty"`
	TestDuration   int        `json:"testDuration,omitempty"`
	CorrectAnswers int        `json:"correctAnswers,omitempty"`
	CampaignSlug   string     `json:"campaignSlug,omitempty"`
}

// Campaign is a named attribution tag attached to a shareable access link.
// Disabled campaigns reject new traffic; results that already reference them
// stay valid.
type Campaign struct {
	Slug    string `json:"slug"`
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
}

// AnswerSheet is the respondent input for one test attempt.
type AnswerSheet struct {
	Answers      []int
	Age          int
	UserName     string
	Email        string
	TestDuration int
	CampaignSlug string
}
