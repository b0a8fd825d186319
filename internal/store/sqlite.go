package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/lead-engine/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB

	// writeMu serializes read-modify-write transactions such as overrides.
	writeMu sync.Mutex
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS companies (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	name_key   TEXT NOT NULL UNIQUE,
	website    TEXT NOT NULL DEFAULT '',
	industry   TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS signals (
	id              TEXT PRIMARY KEY,
	text            TEXT NOT NULL,
	source_type     TEXT NOT NULL DEFAULT 'manual',
	source_url      TEXT NOT NULL DEFAULT '',
	company_id      TEXT REFERENCES companies(id),
	company_name    TEXT NOT NULL DEFAULT '',
	company_website TEXT NOT NULL DEFAULT '',
	industry        TEXT NOT NULL DEFAULT '',
	posted_at       DATETIME,
	created_at      DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS leads (
	id             TEXT PRIMARY KEY,
	company_id     TEXT REFERENCES companies(id),
	signal_id      TEXT NOT NULL REFERENCES signals(id),
	classification TEXT NOT NULL,
	breakdown      TEXT NOT NULL,
	final_score    REAL NOT NULL,
	bucket         TEXT NOT NULL,
	status         TEXT NOT NULL DEFAULT 'new',
	override_score REAL,
	overridden_at  DATETIME,
	scored_at      DATETIME NOT NULL,
	dossier        TEXT,
	notes          TEXT NOT NULL DEFAULT '',
	auto_parked_at DATETIME,
	created_at     DATETIME NOT NULL,
	updated_at     DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS score_overrides (
	id             TEXT PRIMARY KEY,
	lead_id        TEXT NOT NULL REFERENCES leads(id),
	previous_score REAL NOT NULL,
	new_score      REAL NOT NULL,
	reason         TEXT NOT NULL DEFAULT '',
	actor          TEXT NOT NULL,
	created_at     DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS funding_events (
	id             TEXT PRIMARY KEY,
	company_id     TEXT NOT NULL DEFAULT '',
	company_name   TEXT NOT NULL,
	company_key    TEXT NOT NULL,
	event_type     TEXT NOT NULL DEFAULT '',
	amount_usd     REAL NOT NULL DEFAULT 0,
	announced_date DATETIME NOT NULL,
	source         TEXT NOT NULL DEFAULT '',
	UNIQUE (company_key, event_type, announced_date)
);

CREATE INDEX IF NOT EXISTS idx_leads_status_created ON leads(status, created_at);
CREATE INDEX IF NOT EXISTS idx_leads_bucket ON leads(bucket);
CREATE INDEX IF NOT EXISTS idx_leads_company_id ON leads(company_id);
CREATE INDEX IF NOT EXISTS idx_score_overrides_lead_id ON score_overrides(lead_id, created_at);
CREATE INDEX IF NOT EXISTS idx_funding_events_company_key ON funding_events(company_key, announced_date);
CREATE INDEX IF NOT EXISTS idx_funding_events_company_id ON funding_events(company_id, announced_date);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- companies ---

func (s *SQLiteStore) UpsertCompany(ctx context.Context, name, website, industry string) (*model.Company, error) {
	key := model.NormalizeCompanyName(name)
	if key == "" {
		return nil, eris.New("sqlite: upsert company: empty name")
	}

	row := s.db.QueryRowContext(ctx,
		`INSERT INTO companies (id, name, name_key, website, industry, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(name_key) DO UPDATE SET
			website  = CASE WHEN excluded.website != '' THEN excluded.website ELSE companies.website END,
			industry = CASE WHEN excluded.industry != '' THEN excluded.industry ELSE companies.industry END
		 RETURNING id, name, website, industry, created_at`,
		uuid.New().String(), strings.TrimSpace(name), key, website, industry, time.Now().UTC(),
	)

	var c model.Company
	if err := row.Scan(&c.ID, &c.Name, &c.Website, &c.Industry, &c.CreatedAt); err != nil {
		return nil, eris.Wrapf(err, "sqlite: upsert company %q", name)
	}
	return &c, nil
}

func (s *SQLiteStore) GetCompany(ctx context.Context, id string) (*model.Company, error) {
	var c model.Company
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, website, industry, created_at FROM companies WHERE id = ?`, id,
	).Scan(&c.ID, &c.Name, &c.Website, &c.Industry, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, eris.Wrapf(ErrNotFound, "company %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get company %s", id)
	}
	return &c, nil
}

// --- signals ---

func (s *SQLiteStore) CreateSignal(ctx context.Context, sig *model.Signal) error {
	prepareSignal(sig)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO signals (id, text, source_type, source_url, company_id, company_name, company_website, industry, posted_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sig.ID, sig.Text, string(sig.SourceType), sig.SourceURL, nullString(sig.CompanyID),
		sig.CompanyName, sig.CompanyWebsite, sig.Industry, nullTime(sig.PostedAt), sig.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: insert signal")
}

func (s *SQLiteStore) GetSignal(ctx context.Context, id string) (*model.Signal, error) {
	var (
		sig       model.Signal
		companyID sql.NullString
		postedAt  sql.NullTime
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, text, source_type, source_url, company_id, company_name, company_website, industry, posted_at, created_at
		 FROM signals WHERE id = ?`, id,
	).Scan(&sig.ID, &sig.Text, &sig.SourceType, &sig.SourceURL, &companyID,
		&sig.CompanyName, &sig.CompanyWebsite, &sig.Industry, &postedAt, &sig.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, eris.Wrapf(ErrNotFound, "signal %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get signal %s", id)
	}
	sig.CompanyID = companyID.String
	if postedAt.Valid {
		t := postedAt.Time
		sig.PostedAt = &t
	}
	return &sig, nil
}

// --- leads ---

const leadColumns = `id, company_id, signal_id, classification, breakdown, bucket, status,
	override_score, overridden_at, scored_at, dossier, notes, auto_parked_at, created_at, updated_at`

func (s *SQLiteStore) CreateLead(ctx context.Context, l *model.Lead) error {
	prepareLead(l)
	cls, breakdown, dossier, err := encodeLead(l)
	if err != nil {
		return eris.Wrap(err, "sqlite: encode lead")
	}

	var dossierArg any
	if dossier != nil {
		dossierArg = string(dossier)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO leads (id, company_id, signal_id, classification, breakdown, final_score, bucket, status,
			override_score, overridden_at, scored_at, dossier, notes, auto_parked_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.ID, nullString(l.CompanyID), l.SignalID, string(cls), string(breakdown), l.Breakdown.Final,
		string(l.Bucket), string(l.Status), l.OverrideScore, nullTime(l.OverriddenAt), l.ScoredAt,
		dossierArg, l.Notes, nullTime(l.AutoParkedAt), l.CreatedAt, l.UpdatedAt,
	)
	return eris.Wrap(err, "sqlite: insert lead")
}

func (s *SQLiteStore) GetLead(ctx context.Context, id string) (*model.Lead, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = ?`, id)
	l, err := scanSQLiteLead(row)
	if err == sql.ErrNoRows {
		return nil, eris.Wrapf(ErrNotFound, "lead %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get lead %s", id)
	}
	return l, nil
}

func (s *SQLiteStore) ListLeads(ctx context.Context, filter LeadFilter) ([]model.Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.Bucket != "" {
		query += ` AND bucket = ?`
		args = append(args, string(filter.Bucket))
	}
	if filter.CompanyID != "" {
		query += ` AND company_id = ?`
		args = append(args, filter.CompanyID)
	}
	if !filter.CreatedBefore.IsZero() {
		query += ` AND created_at < ?`
		args = append(args, filter.CreatedBefore.UTC())
	}
	query += ` ORDER BY created_at DESC, id`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list leads")
	}
	defer rows.Close()

	var leads []model.Lead
	for rows.Next() {
		l, err := scanSQLiteLead(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan lead")
		}
		leads = append(leads, *l)
	}
	return leads, eris.Wrap(rows.Err(), "sqlite: list leads iterate")
}

func (s *SQLiteStore) UpdateLeadScore(ctx context.Context, leadID string, cls model.ClassificationResult, b model.ScoreBreakdown) error {
	clsJSON, err := json.Marshal(cls)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal classification")
	}
	bJSON, err := json.Marshal(b)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal breakdown")
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin score tx")
	}
	defer tx.Rollback() //nolint:errcheck

	var (
		override     sql.NullFloat64
		overriddenAt sql.NullTime
	)
	err = tx.QueryRowContext(ctx,
		`SELECT override_score, overridden_at FROM leads WHERE id = ?`, leadID,
	).Scan(&override, &overriddenAt)
	if err == sql.ErrNoRows {
		return eris.Wrapf(ErrNotFound, "lead %s", leadID)
	}
	if err != nil {
		return eris.Wrapf(err, "sqlite: read lead %s", leadID)
	}

	bucket := scoredBucket(b, floatPtr(override), timePtr(overriddenAt))
	if _, err := tx.ExecContext(ctx,
		`UPDATE leads SET classification = ?, breakdown = ?, final_score = ?, bucket = ?, scored_at = ?, updated_at = ?
		 WHERE id = ?`,
		string(clsJSON), string(bJSON), b.Final, string(bucket), b.ComputedAt.UTC(), time.Now().UTC(), leadID,
	); err != nil {
		return eris.Wrapf(err, "sqlite: update lead score %s", leadID)
	}

	if err := tx.Commit(); err != nil {
		return eris.Wrap(err, "sqlite: commit score")
	}
	return nil
}

func (s *SQLiteStore) UpdateLeadDossier(ctx context.Context, leadID string, d model.Dossier) error {
	dJSON, err := json.Marshal(d)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal dossier")
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE leads SET dossier = ?, updated_at = ? WHERE id = ?`,
		string(dJSON), time.Now().UTC(), leadID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update lead dossier %s", leadID)
	}
	return checkRowsAffected(res, "lead", leadID)
}

func (s *SQLiteStore) UpdateLeadStatus(ctx context.Context, leadID string, status model.LeadStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE leads SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), leadID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update lead status %s", leadID)
	}
	return checkRowsAffected(res, "lead", leadID)
}

func (s *SQLiteStore) ParkLead(ctx context.Context, leadID string, at time.Time, note string) (bool, error) {
	at = at.UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE leads SET status = ?, auto_parked_at = ?, updated_at = ?,
			notes = CASE WHEN notes = '' THEN ? ELSE notes || char(10) || ? END
		 WHERE id = ? AND status = ?`,
		string(model.StatusParked), at, at, note, note, leadID, string(model.StatusNew),
	)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: park lead %s", leadID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrap(err, "sqlite: rows affected")
	}
	return n > 0, nil
}

func (s *SQLiteStore) CountLeads(ctx context.Context) (*LeadCounts, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT bucket, status, COUNT(*) FROM leads GROUP BY bucket, status`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: count leads")
	}
	defer rows.Close()

	counts := newLeadCounts()
	for rows.Next() {
		var (
			bucket model.Bucket
			status model.LeadStatus
			n      int
		)
		if err := rows.Scan(&bucket, &status, &n); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan lead count")
		}
		counts.Total += n
		counts.ByBucket[bucket] += n
		counts.ByStatus[status] += n
	}
	return counts, eris.Wrap(rows.Err(), "sqlite: count leads iterate")
}

// --- overrides ---

func (s *SQLiteStore) ApplyOverride(ctx context.Context, leadID string, newScore float64, reason, actor string, at time.Time) (*model.ScoreOverride, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: begin override tx")
	}
	defer tx.Rollback() //nolint:errcheck

	var (
		final        float64
		override     sql.NullFloat64
		overriddenAt sql.NullTime
		scoredAt     time.Time
	)
	err = tx.QueryRowContext(ctx,
		`SELECT final_score, override_score, overridden_at, scored_at FROM leads WHERE id = ?`, leadID,
	).Scan(&final, &override, &overriddenAt, &scoredAt)
	if err == sql.ErrNoRows {
		return nil, eris.Wrapf(ErrNotFound, "lead %s", leadID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: read lead %s", leadID)
	}

	prev := previousEffective(final, floatPtr(override), timePtr(overriddenAt), scoredAt)
	ov := &model.ScoreOverride{
		ID:            uuid.New().String(),
		LeadID:        leadID,
		PreviousScore: prev,
		NewScore:      newScore,
		Reason:        reason,
		Actor:         actor,
		CreatedAt:     overrideTime(at, scoredAt),
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO score_overrides (id, lead_id, previous_score, new_score, reason, actor, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ov.ID, ov.LeadID, ov.PreviousScore, ov.NewScore, ov.Reason, ov.Actor, ov.CreatedAt,
	); err != nil {
		return nil, eris.Wrap(err, "sqlite: insert override")
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE leads SET override_score = ?, overridden_at = ?, bucket = ?, updated_at = ? WHERE id = ?`,
		newScore, ov.CreatedAt, string(model.BucketFor(newScore)), ov.CreatedAt, leadID,
	); err != nil {
		return nil, eris.Wrapf(err, "sqlite: apply override to lead %s", leadID)
	}

	if err := tx.Commit(); err != nil {
		return nil, eris.Wrap(err, "sqlite: commit override")
	}
	return ov, nil
}

func (s *SQLiteStore) ListOverrides(ctx context.Context, leadID string) ([]model.ScoreOverride, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, lead_id, previous_score, new_score, reason, actor, created_at
		 FROM score_overrides WHERE lead_id = ? ORDER BY created_at DESC, rowid DESC`, leadID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list overrides %s", leadID)
	}
	defer rows.Close()

	var out []model.ScoreOverride
	for rows.Next() {
		var o model.ScoreOverride
		if err := rows.Scan(&o.ID, &o.LeadID, &o.PreviousScore, &o.NewScore, &o.Reason, &o.Actor, &o.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan override")
		}
		out = append(out, o)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list overrides iterate")
}

// --- funding events ---

// InsertFundingEvents inserts events, skipping duplicates of an existing
// (company, type, date). It returns the number of new rows.
func (s *SQLiteStore) InsertFundingEvents(ctx context.Context, events []model.FundingEvent) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin funding tx")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR IGNORE INTO funding_events (id, company_id, company_name, company_key, event_type, amount_usd, announced_date, source)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare funding insert")
	}
	defer stmt.Close()

	inserted := 0
	for i := range events {
		ev := prepareFundingEvent(events[i])
		res, err := stmt.ExecContext(ctx, ev.ID, ev.CompanyID, ev.CompanyName,
			model.NormalizeCompanyName(ev.CompanyName), ev.EventType, ev.AmountUSD, ev.AnnouncedDate, ev.Source)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: insert funding event for %q", ev.CompanyName)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			inserted++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit funding events")
	}
	return inserted, nil
}

func (s *SQLiteStore) ListFundingEvents(ctx context.Context, companyID, companyName string, since time.Time) ([]model.FundingEvent, error) {
	key := model.NormalizeCompanyName(companyName)
	if companyID == "" && key == "" {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, company_id, company_name, event_type, amount_usd, announced_date, source
		 FROM funding_events
		 WHERE announced_date >= ? AND ((? != '' AND company_id = ?) OR (? != '' AND company_key = ?))
		 ORDER BY announced_date DESC`,
		since.UTC(), companyID, companyID, key, key,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list funding events")
	}
	defer rows.Close()

	var out []model.FundingEvent
	for rows.Next() {
		var ev model.FundingEvent
		if err := rows.Scan(&ev.ID, &ev.CompanyID, &ev.CompanyName, &ev.EventType, &ev.AmountUSD, &ev.AnnouncedDate, &ev.Source); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan funding event")
		}
		out = append(out, ev)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list funding events iterate")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "%s %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanSQLiteLead(row scannable) (*model.Lead, error) {
	var (
		l              model.Lead
		companyID      sql.NullString
		clsJSON, bJSON string
		dossierJSON    sql.NullString
		override       sql.NullFloat64
		overriddenAt   sql.NullTime
		autoParkedAt   sql.NullTime
	)
	err := row.Scan(&l.ID, &companyID, &l.SignalID, &clsJSON, &bJSON, &l.Bucket, &l.Status,
		&override, &overriddenAt, &l.ScoredAt, &dossierJSON, &l.Notes, &autoParkedAt, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, err
	}

	l.CompanyID = companyID.String
	l.OverrideScore = floatPtr(override)
	l.OverriddenAt = timePtr(overriddenAt)
	l.AutoParkedAt = timePtr(autoParkedAt)

	var dossier []byte
	if dossierJSON.Valid {
		dossier = []byte(dossierJSON.String)
	}
	if err := decodeLead(&l, []byte(clsJSON), []byte(bJSON), dossier); err != nil {
		return nil, err
	}
	return &l, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func floatPtr(f sql.NullFloat64) *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Float64
	return &v
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
