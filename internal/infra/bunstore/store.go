// Package bunstore persists results and campaigns through bun, backed by a
// single-file SQLite database by default or Postgres when a URL is
// configured. It is the sole writer of persisted state.
package bunstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/driver/sqliteshim"

	"raven-iq-service/internal/domain"
)

// Store implements the result and campaign persistence contract.
type Store struct {
	db *bun.DB
}

func New(db *bun.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying handle for migrations.
func (s *Store) DB() *bun.DB { return s.db }

func (s *Store) Close() error { return s.db.Close() }

// OpenSQLite opens the single-file store. One writer connection keeps the
// store within SQLite's single-writer model.
func OpenSQLite(path string) (*bun.DB, error) {
	dsn := fmt.Sprintf("file:%s?cache=shared", path)
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	sqldb.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := sqldb.Exec(pragma); err != nil {
			return nil, fmt.Errorf("apply sqlite pragma %q: %w", pragma, err)
		}
	}
	return bun.NewDB(sqldb, sqlitedialect.New()), nil
}

// OpenPostgres opens the optional Postgres backend.
func OpenPostgres(dsn string) (*bun.DB, error) {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// InsertResult writes a finished record. The lifecycle manager guarantees
// the record is complete before it gets here; nothing is ever updated.
func (s *Store) InsertResult(ctx context.Context, result domain.Result) error {
	row := rowFromResult(result)
	if _, err := s.db.NewInsert().Model(&row).Exec(ctx); err != nil {
		return fmt.Errorf("insert result: %w", err)
	}
	return nil
}

func (s *Store) GetResult(ctx context.Context, id string) (domain.Result, error) {
	var row resultRow
	err := s.db.NewSelect().Model(&row).Where("id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Result{}, domain.ErrResultNotFound
	}
	if err != nil {
		return domain.Result{}, fmt.Errorf("get result: %w", err)
	}
	return row.toDomain(), nil
}

// ListResults returns every result, newest first.
func (s *Store) ListResults(ctx context.Context) ([]domain.Result, error) {
	var rows []resultRow
	if err := s.db.NewSelect().Model(&rows).Order("submit_time DESC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	results := make([]domain.Result, 0, len(rows))
	for _, row := range rows {
		results = append(results, row.toDomain())
	}
	return results, nil
}

func (s *Store) DeleteResult(ctx context.Context, id string) error {
	res, err := s.db.NewDelete().Model((*resultRow)(nil)).Where("id = ?", id).Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete result: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrResultNotFound
	}
	return nil
}

// FindByPayment looks up the result tied to a payment reference, if any.
func (s *Store) FindByPayment(ctx context.Context, paymentID string) (domain.Result, error) {
	var row resultRow
	err := s.db.NewSelect().Model(&row).Where("payment_id = ?", paymentID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Result{}, domain.ErrResultNotFound
	}
	if err != nil {
		return domain.Result{}, fmt.Errorf("find by payment: %w", err)
	}
	return row.toDomain(), nil
}

func (s *Store) ResultIDExists(ctx context.Context, id string) (bool, error) {
	exists, err := s.db.NewSelect().Model((*resultRow)(nil)).Where("id = ?", id).Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("check result id: %w", err)
	}
	return exists, nil
}

func (s *Store) EmailExists(ctx context.Context, email string) (bool, error) {
	exists, err := s.db.NewSelect().Model((*resultRow)(nil)).Where("email = ?", email).Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("check email: %w", err)
	}
	return exists, nil
}

// CreateCampaign inserts a campaign; a name collision maps to
// domain.ErrCampaignNameTaken so callers can report it without leaking
// driver detail.
func (s *Store) CreateCampaign(ctx context.Context, campaign domain.Campaign) error {
	row := campaignRow{Slug: campaign.Slug, Name: campaign.Name, Enabled: campaign.Enabled}
	if _, err := s.db.NewInsert().Model(&row).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return domain.ErrCampaignNameTaken
		}
		return fmt.Errorf("create campaign: %w", err)
	}
	return nil
}

// ListCampaigns returns all campaigns ordered by name.
func (s *Store) ListCampaigns(ctx context.Context) ([]domain.Campaign, error) {
	var rows []campaignRow
	if err := s.db.NewSelect().Model(&rows).Order("name ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("list campaigns: %w", err)
	}
	campaigns := make([]domain.Campaign, 0, len(rows))
	for _, row := range rows {
		campaigns = append(campaigns, row.toDomain())
	}
	return campaigns, nil
}

func (s *Store) CampaignBySlug(ctx context.Context, slug string) (domain.Campaign, error) {
	var row campaignRow
	err := s.db.NewSelect().Model(&row).Where("slug = ?", slug).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Campaign{}, domain.ErrCampaignNotFound
	}
	if err != nil {
		return domain.Campaign{}, fmt.Errorf("campaign by slug: %w", err)
	}
	return row.toDomain(), nil
}

// DeleteCampaign removes the campaign; results keep their dangling slug and
// are displayed as direct traffic.
func (s *Store) DeleteCampaign(ctx context.Context, slug string) error {
	if _, err := s.db.NewDelete().Model((*campaignRow)(nil)).Where("slug = ?", slug).Exec(ctx); err != nil {
		return fmt.Errorf("delete campaign: %w", err)
	}
	return nil
}

func (s *Store) SetCampaignEnabled(ctx context.Context, slug string, enabled bool) error {
	res, err := s.db.NewUpdate().Model((*campaignRow)(nil)).
		Set("enabled = ?", enabled).
		Where("slug = ?", slug).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("set campaign enabled: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrCampaignNotFound
	}
	return nil
}

// isUniqueViolation matches unique-constraint errors from both backends:
// pgdriver reports SQLSTATE 23505, the sqlite shim reports a textual
// "UNIQUE constraint failed" error. Other constraint classes (NOT NULL,
// CHECK) stay plain store failures.
func isUniqueViolation(err error) bool {
	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) {
		return pgErr.Field('C') == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
