package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/mchmarny/loanscore/pkg/loan"
)

const (
	timeFormat = "2006-01-02T15:04:05.000000000Z"

	SourceCLI   = "cli"
	SourceBatch = "batch"
	SourceAPI   = "api"

	insertAssessmentSQL = `INSERT INTO assessment
		(id, model_version, probability, decision, source, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	selectAssessmentSQL = `SELECT id, model_version, probability, decision, source, created_at
		FROM assessment
		WHERE id = ?
	`

	listAssessmentsSQL = `SELECT id, model_version, probability, decision, source, created_at
		FROM assessment
		ORDER BY created_at DESC, id
	`

	deleteAssessmentsSQL = `DELETE FROM assessment`
)

// Assessment is the stored outcome of one prediction. Applicant inputs are
// never stored.
type Assessment struct {
	ID           string        `json:"id" yaml:"id"`
	ModelVersion string        `json:"model_version" yaml:"model_version"`
	Probability  float64       `json:"probability" yaml:"probability"`
	Decision     loan.Decision `json:"decision" yaml:"decision"`
	Source       string        `json:"source" yaml:"source"`
	CreatedAt    time.Time     `json:"created_at" yaml:"created_at"`
}

// NewAssessment captures a prediction result.
func NewAssessment(modelVersion, source string, res *loan.Result) *Assessment {
	return &Assessment{
		ID:           uuid.NewString(),
		ModelVersion: modelVersion,
		Probability:  res.Probability,
		Decision:     res.Decision,
		Source:       source,
		CreatedAt:    time.Now().UTC(),
	}
}

// Query selects assessments. Zero Limit means no limit.
type Query struct {
	Limit  int
	Filter *Filter
}

// Store persists assessments.
type Store interface {
	Save(ctx context.Context, a *Assessment) error
	SaveAll(ctx context.Context, list []*Assessment) error
	Get(ctx context.Context, id string) (*Assessment, error)
	List(ctx context.Context, q Query) ([]*Assessment, error)
	Purge(ctx context.Context) (int64, error)
	Close() error
}

var _ Store = (*SQLStore)(nil)

// SQLStore implements Store on sqlite or postgres.
type SQLStore struct {
	db      *sql.DB
	dialect dialect
}

func (s *SQLStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLStore) Save(ctx context.Context, a *Assessment) error {
	if s == nil || s.db == nil {
		return errDBNotInitialized
	}
	if a == nil {
		return errors.New("assessment required")
	}
	_, err := s.db.ExecContext(ctx, s.dialect.rebind(insertAssessmentSQL),
		a.ID, a.ModelVersion, a.Probability, a.Decision.Code(), a.Source,
		a.CreatedAt.UTC().Format(timeFormat))
	if err != nil {
		return fmt.Errorf("error saving assessment %s: %w", a.ID, err)
	}
	return nil
}

// SaveAll stores the assessments in one transaction. Either all of them
// are saved or none are.
func (s *SQLStore) SaveAll(ctx context.Context, list []*Assessment) error {
	if s == nil || s.db == nil {
		return errDBNotInitialized
	}
	if len(list) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, s.dialect.rebind(insertAssessmentSQL))
	if err != nil {
		rollback(tx)
		return fmt.Errorf("failed to prepare assessment insert statement: %w", err)
	}
	defer stmt.Close()

	for i, a := range list {
		if a == nil {
			rollback(tx)
			return fmt.Errorf("assessment[%d] required", i)
		}
		if _, err := stmt.ExecContext(ctx, a.ID, a.ModelVersion, a.Probability,
			a.Decision.Code(), a.Source, a.CreatedAt.UTC().Format(timeFormat)); err != nil {
			rollback(tx)
			return fmt.Errorf("error saving assessment[%d] %s: %w", i, a.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func rollback(tx *sql.Tx) {
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		slog.Error("failed to rollback transaction", "error", err)
	}
}

func (s *SQLStore) Get(ctx context.Context, id string) (*Assessment, error) {
	if s == nil || s.db == nil {
		return nil, errDBNotInitialized
	}
	row := s.db.QueryRowContext(ctx, s.dialect.rebind(selectAssessmentSQL), id)
	a, err := scanAssessment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("error getting assessment %s: %w", id, err)
	}
	return a, nil
}

// List returns assessments newest first. The filter runs after the rows
// are read, so the limit counts matching rows only.
func (s *SQLStore) List(ctx context.Context, q Query) ([]*Assessment, error) {
	if s == nil || s.db == nil {
		return nil, errDBNotInitialized
	}

	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(listAssessmentsSQL))
	if err != nil {
		return nil, fmt.Errorf("error listing assessments: %w", err)
	}
	defer rows.Close()

	list := make([]*Assessment, 0)
	for rows.Next() {
		a, err := scanAssessment(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning assessment: %w", err)
		}
		if q.Filter != nil {
			ok, err := q.Filter.Match(a)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
		}
		list = append(list, a)
		if q.Limit > 0 && len(list) >= q.Limit {
			break
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating assessments: %w", err)
	}
	return list, nil
}

// Purge deletes every assessment and returns the number removed.
func (s *SQLStore) Purge(ctx context.Context) (int64, error) {
	if s == nil || s.db == nil {
		return 0, errDBNotInitialized
	}
	res, err := s.db.ExecContext(ctx, deleteAssessmentsSQL)
	if err != nil {
		return 0, fmt.Errorf("error purging assessments: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("error counting purged assessments: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAssessment(r scanner) (*Assessment, error) {
	var (
		a        Assessment
		decision string
		created  string
	)
	if err := r.Scan(&a.ID, &a.ModelVersion, &a.Probability, &decision, &a.Source, &created); err != nil {
		return nil, err
	}
	d, err := loan.ParseDecision(decision)
	if err != nil {
		return nil, err
	}
	a.Decision = d
	if a.CreatedAt, err = time.Parse(timeFormat, created); err != nil {
		return nil, fmt.Errorf("invalid created_at %q: %w", created, err)
	}
	return &a, nil
}

// DecisionCount is the number of assessments with a decision.
type DecisionCount struct {
	Decision loan.Decision `json:"decision" yaml:"decision"`
	Count    int           `json:"count" yaml:"count"`
}

// Summarize counts assessments per decision, best decision first. Every
// decision is listed, including those with no assessments.
func Summarize(list []*Assessment) []DecisionCount {
	counts := make(map[loan.Decision]int)
	for _, a := range list {
		counts[a.Decision]++
	}
	out := make([]DecisionCount, 0, len(counts))
	for _, d := range loan.Decisions() {
		out = append(out, DecisionCount{Decision: d, Count: counts[d]})
	}
	return out
}
