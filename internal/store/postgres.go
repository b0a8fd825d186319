package store

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-engine/internal/db"
	"github.com/sells-group/lead-engine/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"get_lead":            `SELECT ` + leadColumns + ` FROM leads WHERE id = $1`,
	"get_signal":          `SELECT id, text, source_type, source_url, company_id, company_name, company_website, industry, posted_at, created_at FROM signals WHERE id = $1`,
	"update_lead_status":  `UPDATE leads SET status = $1, updated_at = $2 WHERE id = $3`,
	"update_lead_dossier": `UPDATE leads SET dossier = $1, updated_at = $2 WHERE id = $3`,
	"list_overrides":      `SELECT id, lead_id, previous_score, new_score, reason, actor, created_at FROM score_overrides WHERE lead_id = $1 ORDER BY created_at DESC, seq DESC`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS companies (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	name       TEXT NOT NULL,
	name_key   TEXT NOT NULL UNIQUE,
	website    TEXT NOT NULL DEFAULT '',
	industry   TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS signals (
	id              TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	text            TEXT NOT NULL,
	source_type     TEXT NOT NULL DEFAULT 'manual',
	source_url      TEXT NOT NULL DEFAULT '',
	company_id      TEXT REFERENCES companies(id),
	company_name    TEXT NOT NULL DEFAULT '',
	company_website TEXT NOT NULL DEFAULT '',
	industry        TEXT NOT NULL DEFAULT '',
	posted_at       TIMESTAMPTZ,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS leads (
	id             TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	company_id     TEXT REFERENCES companies(id),
	signal_id      TEXT NOT NULL REFERENCES signals(id),
	classification JSONB NOT NULL,
	breakdown      JSONB NOT NULL,
	final_score    DOUBLE PRECISION NOT NULL,
	bucket         TEXT NOT NULL,
	status         TEXT NOT NULL DEFAULT 'new',
	override_score DOUBLE PRECISION,
	overridden_at  TIMESTAMPTZ,
	scored_at      TIMESTAMPTZ NOT NULL,
	dossier        JSONB,
	notes          TEXT NOT NULL DEFAULT '',
	auto_parked_at TIMESTAMPTZ,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS score_overrides (
	id             TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	seq            BIGSERIAL,
	lead_id        TEXT NOT NULL REFERENCES leads(id),
	previous_score DOUBLE PRECISION NOT NULL,
	new_score      DOUBLE PRECISION NOT NULL,
	reason         TEXT NOT NULL DEFAULT '',
	actor          TEXT NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS funding_events (
	id             TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	company_id     TEXT NOT NULL DEFAULT '',
	company_name   TEXT NOT NULL,
	company_key    TEXT NOT NULL,
	event_type     TEXT NOT NULL DEFAULT '',
	amount_usd     DOUBLE PRECISION NOT NULL DEFAULT 0,
	announced_date TIMESTAMPTZ NOT NULL,
	source         TEXT NOT NULL DEFAULT '',
	UNIQUE (company_key, event_type, announced_date)
);

CREATE INDEX IF NOT EXISTS idx_leads_status_created ON leads(status, created_at);
CREATE INDEX IF NOT EXISTS idx_leads_bucket ON leads(bucket);
CREATE INDEX IF NOT EXISTS idx_leads_company_id ON leads(company_id);
CREATE INDEX IF NOT EXISTS idx_score_overrides_lead_id ON score_overrides(lead_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_funding_events_company_key ON funding_events(company_key, announced_date DESC);
CREATE INDEX IF NOT EXISTS idx_funding_events_company_id ON funding_events(company_id, announced_date DESC);
`

// Pool returns the underlying database pool.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// --- companies ---

func (s *PostgresStore) UpsertCompany(ctx context.Context, name, website, industry string) (*model.Company, error) {
	key := model.NormalizeCompanyName(name)
	if key == "" {
		return nil, eris.New("postgres: upsert company: empty name")
	}

	var c model.Company
	err := s.pool.QueryRow(ctx,
		`INSERT INTO companies (id, name, name_key, website, industry, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (name_key) DO UPDATE SET
			website  = COALESCE(NULLIF(EXCLUDED.website, ''), companies.website),
			industry = COALESCE(NULLIF(EXCLUDED.industry, ''), companies.industry)
		 RETURNING id, name, website, industry, created_at`,
		uuid.New().String(), strings.TrimSpace(name), key, website, industry, time.Now().UTC(),
	).Scan(&c.ID, &c.Name, &c.Website, &c.Industry, &c.CreatedAt)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: upsert company %q", name)
	}
	return &c, nil
}

func (s *PostgresStore) GetCompany(ctx context.Context, id string) (*model.Company, error) {
	var c model.Company
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, website, industry, created_at FROM companies WHERE id = $1`, id,
	).Scan(&c.ID, &c.Name, &c.Website, &c.Industry, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "company %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get company %s", id)
	}
	return &c, nil
}

// --- signals ---

func (s *PostgresStore) CreateSignal(ctx context.Context, sig *model.Signal) error {
	prepareSignal(sig)
	_, err := s.pool.Exec(ctx,
		`INSERT INTO signals (id, text, source_type, source_url, company_id, company_name, company_website, industry, posted_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		sig.ID, sig.Text, string(sig.SourceType), sig.SourceURL, nilIfEmpty(sig.CompanyID),
		sig.CompanyName, sig.CompanyWebsite, sig.Industry, sig.PostedAt, sig.CreatedAt,
	)
	return eris.Wrap(err, "postgres: insert signal")
}

func (s *PostgresStore) GetSignal(ctx context.Context, id string) (*model.Signal, error) {
	var (
		sig       model.Signal
		companyID *string
	)
	err := s.pool.QueryRow(ctx, "get_signal", id).Scan(
		&sig.ID, &sig.Text, &sig.SourceType, &sig.SourceURL, &companyID,
		&sig.CompanyName, &sig.CompanyWebsite, &sig.Industry, &sig.PostedAt, &sig.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "signal %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get signal %s", id)
	}
	if companyID != nil {
		sig.CompanyID = *companyID
	}
	return &sig, nil
}

// --- leads ---

func (s *PostgresStore) CreateLead(ctx context.Context, l *model.Lead) error {
	prepareLead(l)
	cls, breakdown, dossier, err := encodeLead(l)
	if err != nil {
		return eris.Wrap(err, "postgres: encode lead")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO leads (id, company_id, signal_id, classification, breakdown, final_score, bucket, status,
			override_score, overridden_at, scored_at, dossier, notes, auto_parked_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		l.ID, nilIfEmpty(l.CompanyID), l.SignalID, cls, breakdown, l.Breakdown.Final,
		string(l.Bucket), string(l.Status), l.OverrideScore, l.OverriddenAt, l.ScoredAt,
		dossier, l.Notes, l.AutoParkedAt, l.CreatedAt, l.UpdatedAt,
	)
	return eris.Wrap(err, "postgres: insert lead")
}

func (s *PostgresStore) GetLead(ctx context.Context, id string) (*model.Lead, error) {
	l, err := scanPostgresLead(s.pool.QueryRow(ctx, "get_lead", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "lead %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get lead %s", id)
	}
	return l, nil
}

func (s *PostgresStore) ListLeads(ctx context.Context, filter LeadFilter) ([]model.Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE 1=1`
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if filter.Status != "" {
		query += ` AND status = ` + arg(string(filter.Status))
	}
	if filter.Bucket != "" {
		query += ` AND bucket = ` + arg(string(filter.Bucket))
	}
	if filter.CompanyID != "" {
		query += ` AND company_id = ` + arg(filter.CompanyID)
	}
	if !filter.CreatedBefore.IsZero() {
		query += ` AND created_at < ` + arg(filter.CreatedBefore.UTC())
	}
	query += ` ORDER BY created_at DESC, id`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ` + arg(limit)
	if filter.Offset > 0 {
		query += ` OFFSET ` + arg(filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list leads")
	}
	defer rows.Close()

	var leads []model.Lead
	for rows.Next() {
		l, err := scanPostgresLead(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan lead")
		}
		leads = append(leads, *l)
	}
	return leads, eris.Wrap(rows.Err(), "postgres: list leads iterate")
}

func (s *PostgresStore) UpdateLeadScore(ctx context.Context, leadID string, cls model.ClassificationResult, b model.ScoreBreakdown) error {
	l := model.Lead{Classification: cls, Breakdown: b}
	clsJSON, bJSON, _, err := encodeLead(&l)
	if err != nil {
		return eris.Wrap(err, "postgres: encode score")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin score tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var (
		override     *float64
		overriddenAt *time.Time
	)
	err = tx.QueryRow(ctx,
		`SELECT override_score, overridden_at FROM leads WHERE id = $1 FOR UPDATE`, leadID,
	).Scan(&override, &overriddenAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return eris.Wrapf(ErrNotFound, "lead %s", leadID)
	}
	if err != nil {
		return eris.Wrapf(err, "postgres: lock lead %s", leadID)
	}

	bucket := scoredBucket(b, override, overriddenAt)
	if _, err := tx.Exec(ctx,
		`UPDATE leads SET classification = $1, breakdown = $2, final_score = $3, bucket = $4, scored_at = $5, updated_at = $6
		 WHERE id = $7`,
		clsJSON, bJSON, b.Final, string(bucket), b.ComputedAt.UTC(), time.Now().UTC(), leadID,
	); err != nil {
		return eris.Wrapf(err, "postgres: update lead score %s", leadID)
	}

	if err := tx.Commit(ctx); err != nil {
		return eris.Wrap(err, "postgres: commit score")
	}
	return nil
}

func (s *PostgresStore) UpdateLeadDossier(ctx context.Context, leadID string, d model.Dossier) error {
	l := model.Lead{Dossier: &d}
	_, _, dJSON, err := encodeLead(&l)
	if err != nil {
		return eris.Wrap(err, "postgres: encode dossier")
	}
	tag, err := s.pool.Exec(ctx, "update_lead_dossier", dJSON, time.Now().UTC(), leadID)
	if err != nil {
		return eris.Wrapf(err, "postgres: update lead dossier %s", leadID)
	}
	return checkTag(tag.RowsAffected(), "lead", leadID)
}

func (s *PostgresStore) UpdateLeadStatus(ctx context.Context, leadID string, status model.LeadStatus) error {
	tag, err := s.pool.Exec(ctx, "update_lead_status", string(status), time.Now().UTC(), leadID)
	if err != nil {
		return eris.Wrapf(err, "postgres: update lead status %s", leadID)
	}
	return checkTag(tag.RowsAffected(), "lead", leadID)
}

func (s *PostgresStore) ParkLead(ctx context.Context, leadID string, at time.Time, note string) (bool, error) {
	at = at.UTC()
	tag, err := s.pool.Exec(ctx,
		`UPDATE leads SET status = $1, auto_parked_at = $2, updated_at = $2,
			notes = CASE WHEN notes = '' THEN $3 ELSE notes || E'\n' || $3 END
		 WHERE id = $4 AND status = $5`,
		string(model.StatusParked), at, note, leadID, string(model.StatusNew),
	)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: park lead %s", leadID)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) CountLeads(ctx context.Context) (*LeadCounts, error) {
	rows, err := s.pool.Query(ctx, `SELECT bucket, status, COUNT(*) FROM leads GROUP BY bucket, status`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: count leads")
	}
	defer rows.Close()

	counts := newLeadCounts()
	for rows.Next() {
		var (
			bucket, status string
			n              int64
		)
		if err := rows.Scan(&bucket, &status, &n); err != nil {
			return nil, eris.Wrap(err, "postgres: scan lead count")
		}
		counts.Total += int(n)
		counts.ByBucket[model.Bucket(bucket)] += int(n)
		counts.ByStatus[model.LeadStatus(status)] += int(n)
	}
	return counts, eris.Wrap(rows.Err(), "postgres: count leads iterate")
}

// --- overrides ---

// ApplyOverride locks the lead row for the duration of the transaction so
// concurrent overrides of one lead apply in sequence.
func (s *PostgresStore) ApplyOverride(ctx context.Context, leadID string, newScore float64, reason, actor string, at time.Time) (*model.ScoreOverride, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: begin override tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var (
		final        float64
		override     *float64
		overriddenAt *time.Time
		scoredAt     time.Time
	)
	err = tx.QueryRow(ctx,
		`SELECT final_score, override_score, overridden_at, scored_at FROM leads WHERE id = $1 FOR UPDATE`, leadID,
	).Scan(&final, &override, &overriddenAt, &scoredAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "lead %s", leadID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: lock lead %s", leadID)
	}

	ov := &model.ScoreOverride{
		ID:            uuid.New().String(),
		LeadID:        leadID,
		PreviousScore: previousEffective(final, override, overriddenAt, scoredAt),
		NewScore:      newScore,
		Reason:        reason,
		Actor:         actor,
		CreatedAt:     overrideTime(at, scoredAt),
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO score_overrides (id, lead_id, previous_score, new_score, reason, actor, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		ov.ID, ov.LeadID, ov.PreviousScore, ov.NewScore, ov.Reason, ov.Actor, ov.CreatedAt,
	); err != nil {
		return nil, eris.Wrap(err, "postgres: insert override")
	}

	if _, err := tx.Exec(ctx,
		`UPDATE leads SET override_score = $1, overridden_at = $2, bucket = $3, updated_at = $2 WHERE id = $4`,
		newScore, ov.CreatedAt, string(model.BucketFor(newScore)), leadID,
	); err != nil {
		return nil, eris.Wrapf(err, "postgres: apply override to lead %s", leadID)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, eris.Wrap(err, "postgres: commit override")
	}
	return ov, nil
}

func (s *PostgresStore) ListOverrides(ctx context.Context, leadID string) ([]model.ScoreOverride, error) {
	rows, err := s.pool.Query(ctx, "list_overrides", leadID)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list overrides %s", leadID)
	}
	defer rows.Close()

	var out []model.ScoreOverride
	for rows.Next() {
		var o model.ScoreOverride
		if err := rows.Scan(&o.ID, &o.LeadID, &o.PreviousScore, &o.NewScore, &o.Reason, &o.Actor, &o.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan override")
		}
		out = append(out, o)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list overrides iterate")
}

// --- funding events ---

var fundingColumns = []string{
	"id", "company_id", "company_name", "company_key", "event_type", "amount_usd", "announced_date", "source",
}

// InsertFundingEvents bulk-loads events through COPY, skipping duplicates
// of an existing (company, type, date).
func (s *PostgresStore) InsertFundingEvents(ctx context.Context, events []model.FundingEvent) (int, error) {
	rows := make([][]any, 0, len(events))
	for _, e := range events {
		ev := prepareFundingEvent(e)
		rows = append(rows, []any{
			ev.ID, ev.CompanyID, ev.CompanyName, model.NormalizeCompanyName(ev.CompanyName),
			ev.EventType, ev.AmountUSD, ev.AnnouncedDate, ev.Source,
		})
	}

	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "funding_events",
		Columns:      fundingColumns,
		ConflictKeys: []string{"company_key", "event_type", "announced_date"},
		UpdateCols:   []string{},
	}, rows)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: insert funding events")
	}
	return int(n), nil
}

func (s *PostgresStore) ListFundingEvents(ctx context.Context, companyID, companyName string, since time.Time) ([]model.FundingEvent, error) {
	key := model.NormalizeCompanyName(companyName)
	if companyID == "" && key == "" {
		return nil, nil
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, company_id, company_name, event_type, amount_usd, announced_date, source
		 FROM funding_events
		 WHERE announced_date >= $1 AND (($2 <> '' AND company_id = $2) OR ($3 <> '' AND company_key = $3))
		 ORDER BY announced_date DESC`,
		since.UTC(), companyID, key,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list funding events")
	}
	defer rows.Close()

	var out []model.FundingEvent
	for rows.Next() {
		var ev model.FundingEvent
		if err := rows.Scan(&ev.ID, &ev.CompanyID, &ev.CompanyName, &ev.EventType, &ev.AmountUSD, &ev.AnnouncedDate, &ev.Source); err != nil {
			return nil, eris.Wrap(err, "postgres: scan funding event")
		}
		out = append(out, ev)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list funding events iterate")
}

// helpers

func scanPostgresLead(row pgx.Row) (*model.Lead, error) {
	var (
		l                       model.Lead
		companyID               *string
		clsJSON, bJSON, dossier []byte
	)
	err := row.Scan(&l.ID, &companyID, &l.SignalID, &clsJSON, &bJSON, &l.Bucket, &l.Status,
		&l.OverrideScore, &l.OverriddenAt, &l.ScoredAt, &dossier, &l.Notes, &l.AutoParkedAt, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if companyID != nil {
		l.CompanyID = *companyID
	}
	if err := decodeLead(&l, clsJSON, bJSON, dossier); err != nil {
		return nil, err
	}
	return &l, nil
}

func checkTag(n int64, entity, id string) error {
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "%s %s", entity, id)
	}
	return nil
}

func nilIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
