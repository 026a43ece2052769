// Package results persists the latest scan summary of each skill in SQLite.
package results

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/jingkaihe/skillscan/pkg/db"
	"github.com/jingkaihe/skillscan/pkg/db/migrations"
	"github.com/jingkaihe/skillscan/pkg/report"
	"github.com/jingkaihe/skillscan/pkg/rules"
)

// ErrNotFound is returned when no result is stored for a skill.
var ErrNotFound = errors.New("scan result not found")

// Record is a stored scan summary together with its identity.
type Record struct {
	SkillID   string `json:"skill_id"`
	SkillPath string `json:"skill_path"`
	RunID     string `json:"run_id"`
	report.Summary
}

// Stats aggregates over all stored results.
type Stats struct {
	TotalScanned int `json:"total_scanned" db:"total_scanned"`
	HighRisk     int `json:"high_risk" db:"high_risk"`
}

type row struct {
	SkillID       string `db:"skill_id"`
	SkillPath     string `db:"skill_path"`
	RunID         string `db:"run_id"`
	Severity      string `db:"severity"`
	FindingsCount int    `db:"findings_count"`
	Categories    string `db:"categories"`
	Findings      string `db:"findings"`
	ScannedAt     string `db:"scanned_at"`
}

func (r row) record() (Record, error) {
	rec := Record{
		SkillID:   r.SkillID,
		SkillPath: r.SkillPath,
		RunID:     r.RunID,
		Summary: report.Summary{
			Severity:      rules.Severity(r.Severity),
			FindingsCount: r.FindingsCount,
			Timestamp:     r.ScannedAt,
		},
	}
	if err := json.Unmarshal([]byte(r.Categories), &rec.Categories); err != nil {
		return Record{}, errors.Wrapf(err, "invalid categories stored for %s", r.SkillID)
	}
	if err := json.Unmarshal([]byte(r.Findings), &rec.Findings); err != nil {
		return Record{}, errors.Wrapf(err, "invalid findings stored for %s", r.SkillID)
	}
	return rec, nil
}

// Store reads and writes scan results.
type Store struct {
	db *sqlx.DB
}

// Open opens the store at dbPath and brings its schema up to date.
func Open(ctx context.Context, dbPath string) (*Store, error) {
	sqlDB, err := db.OpenMigrated(ctx, dbPath, migrations.All())
	if err != nil {
		return nil, errors.Wrap(err, "failed to open result store")
	}
	return &Store{db: sqlDB}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save stores summary as the latest result of skillID, replacing any
// previous one, and returns the run id assigned to it.
func (s *Store) Save(ctx context.Context, skillID, skillPath string, summary report.Summary) (string, error) {
	categories := summary.Categories
	if categories == nil {
		categories = []rules.Category{}
	}
	findings := summary.Findings
	if findings == nil {
		findings = []report.SummaryFinding{}
	}

	categoriesJSON, err := json.Marshal(categories)
	if err != nil {
		return "", errors.Wrap(err, "failed to encode categories")
	}
	findingsJSON, err := json.Marshal(findings)
	if err != nil {
		return "", errors.Wrap(err, "failed to encode findings")
	}

	runID := uuid.NewString()
	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO scan_results
			(skill_id, skill_path, run_id, severity, findings_count, categories, findings, scanned_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		skillID, skillPath, runID, string(summary.Severity), summary.FindingsCount,
		string(categoriesJSON), string(findingsJSON), summary.Timestamp)
	if err != nil {
		return "", errors.Wrapf(err, "failed to save scan result for %s", skillID)
	}
	return runID, nil
}

// Get returns the stored result of skillID, or ErrNotFound.
func (s *Store) Get(ctx context.Context, skillID string) (Record, error) {
	var r row
	err := s.db.GetContext(ctx, &r, "SELECT * FROM scan_results WHERE skill_id = ?", skillID)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, errors.Wrapf(ErrNotFound, "%s", skillID)
	}
	if err != nil {
		return Record{}, errors.Wrapf(err, "failed to load scan result for %s", skillID)
	}
	return r.record()
}

// ListOptions filters List.
type ListOptions struct {
	MinSeverity rules.Severity
	Limit       int
}

// List returns stored results, most severe first, then by skill id.
func (s *Store) List(ctx context.Context, opts ListOptions) ([]Record, error) {
	query := `
		SELECT * FROM scan_results
		WHERE CASE severity WHEN 'HIGH' THEN 3 WHEN 'MEDIUM' THEN 2 WHEN 'LOW' THEN 1 ELSE 0 END >= ?
		ORDER BY CASE severity WHEN 'HIGH' THEN 3 WHEN 'MEDIUM' THEN 2 WHEN 'LOW' THEN 1 ELSE 0 END DESC,
			findings_count DESC, skill_id ASC`
	args := []any{opts.MinSeverity.Rank()}
	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	var rows []row
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "failed to list scan results")
	}

	records := make([]Record, 0, len(rows))
	for _, r := range rows {
		rec, err := r.record()
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// Delete removes the stored result of skillID, returning ErrNotFound when
// there was none.
func (s *Store) Delete(ctx context.Context, skillID string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM scan_results WHERE skill_id = ?", skillID)
	if err != nil {
		return errors.Wrapf(err, "failed to delete scan result for %s", skillID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to count deleted rows")
	}
	if n == 0 {
		return errors.Wrapf(ErrNotFound, "%s", skillID)
	}
	return nil
}

// Stats returns how many skills have stored results and how many of them
// are high risk.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.db.GetContext(ctx, &st, `
		SELECT COUNT(*) AS total_scanned,
			COALESCE(SUM(CASE WHEN severity = 'HIGH' THEN 1 ELSE 0 END), 0) AS high_risk
		FROM scan_results`)
	if err != nil {
		return Stats{}, errors.Wrap(err, "failed to compute scan stats")
	}
	return st, nil
}
