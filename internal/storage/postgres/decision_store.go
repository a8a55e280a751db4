package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"dex-sniper-core/internal/domain"
	"dex-sniper-core/internal/storage"
)

// DecisionStore implements storage.DecisionStore using PostgreSQL.
type DecisionStore struct {
	pool *Pool
}

// NewDecisionStore creates a new DecisionStore.
func NewDecisionStore(pool *Pool) *DecisionStore {
	return &DecisionStore{pool: pool}
}

// Compile-time interface check.
var _ storage.DecisionStore = (*DecisionStore)(nil)

const decisionColumns = `
	decision_id, user_id, config_id, chain, pool_address, token_quoted,
	outcome, reasons, risk_score, risk_level, info_revision, decided_at
`

// Insert adds a new decision. Returns ErrDuplicateKey if decision_id exists.
func (s *DecisionStore) Insert(ctx context.Context, d *domain.AdmissionDecision) error {
	if d == nil || d.DecisionID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO admission_decisions (` + decisionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := s.pool.Exec(ctx, query,
		d.DecisionID, d.UserID, d.ConfigID, d.Chain, d.PoolAddress, d.TokenQuoted,
		string(d.Outcome), d.Reasons, d.RiskScore, string(d.RiskLevel), d.InfoRevision, d.DecidedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert admission decision: %w", err)
	}
	return nil
}

// GetByID retrieves a decision by its ID. Returns ErrNotFound if not exists.
func (s *DecisionStore) GetByID(ctx context.Context, decisionID string) (*domain.AdmissionDecision, error) {
	query := `SELECT ` + decisionColumns + ` FROM admission_decisions WHERE decision_id = $1`

	row := s.pool.QueryRow(ctx, query, decisionID)
	d, err := scanDecision(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get decision by id: %w", err)
	}
	return d, nil
}

// GetByUser retrieves the most recent decisions for a user, newest first.
func (s *DecisionStore) GetByUser(ctx context.Context, userID string, limit int) ([]*domain.AdmissionDecision, error) {
	query := `
		SELECT ` + decisionColumns + `
		FROM admission_decisions
		WHERE user_id = $1
		ORDER BY decided_at DESC, decision_id ASC
	`
	args := []interface{}{userID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("get decisions by user: %w", err)
	}
	defer rows.Close()

	return scanDecisions(rows)
}

// GetByPool retrieves all decisions for a pool, newest first.
func (s *DecisionStore) GetByPool(ctx context.Context, chain, poolAddress string) ([]*domain.AdmissionDecision, error) {
	query := `
		SELECT ` + decisionColumns + `
		FROM admission_decisions
		WHERE chain = $1 AND pool_address = $2
		ORDER BY decided_at DESC, decision_id ASC
	`

	rows, err := s.pool.Query(ctx, query, chain, poolAddress)
	if err != nil {
		return nil, fmt.Errorf("get decisions by pool: %w", err)
	}
	defer rows.Close()

	return scanDecisions(rows)
}

func scanDecision(row pgx.Row) (*domain.AdmissionDecision, error) {
	var d domain.AdmissionDecision
	var outcome, level string
	err := row.Scan(
		&d.DecisionID, &d.UserID, &d.ConfigID, &d.Chain, &d.PoolAddress, &d.TokenQuoted,
		&outcome, &d.Reasons, &d.RiskScore, &level, &d.InfoRevision, &d.DecidedAt,
	)
	if err != nil {
		return nil, err
	}
	d.Outcome = domain.Outcome(outcome)
	d.RiskLevel = domain.RiskLevel(level)
	return &d, nil
}

func scanDecisions(rows pgx.Rows) ([]*domain.AdmissionDecision, error) {
	var result []*domain.AdmissionDecision
	for rows.Next() {
		d, err := scanDecision(rows)
		if err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		result = append(result, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate decisions: %w", err)
	}
	return result, nil
}
