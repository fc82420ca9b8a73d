package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/vietddude/payroll/internal/core/domain"
	"github.com/vietddude/payroll/internal/infra/storage"
)

// AttemptRepo implements storage.AttemptRepository using PostgreSQL.
type AttemptRepo struct {
	db *DB
}

// NewAttemptRepo creates a new PostgreSQL attempt repository.
func NewAttemptRepo(db *DB) *AttemptRepo {
	return &AttemptRepo{db: db}
}

type attemptRow struct {
	ID             string         `db:"id"`
	ChainID        string         `db:"chain_id"`
	Account        string         `db:"account"`
	TokenSymbol    string         `db:"token_symbol"`
	TokenAddress   string         `db:"token_address"`
	TokenDecimals  int16          `db:"token_decimals"`
	Recipients     pq.StringArray `db:"recipients"`
	Amounts        pq.StringArray `db:"amounts"`
	Total          string         `db:"total"`
	Value          string         `db:"value"`
	ApprovalTxHash string         `db:"approval_tx_hash"`
	TransferTxHash string         `db:"transfer_tx_hash"`
	Phase          string         `db:"phase"`
	ErrorKind      string         `db:"error_kind"`
	Error          string         `db:"error"`
	CreatedAt      time.Time      `db:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at"`
}

const attemptColumns = `
	id, chain_id, account, token_symbol, token_address, token_decimals,
	recipients, amounts, total::text AS total, value::text AS value,
	approval_tx_hash, transfer_tx_hash, phase, error_kind, error,
	created_at, updated_at`

// Save upserts an attempt. created_at is kept from the first insert.
func (r *AttemptRepo) Save(ctx context.Context, attempt *domain.Attempt) error {
	query := `
		INSERT INTO payment_attempts (
			id, chain_id, account, token_symbol, token_address, token_decimals,
			recipients, amounts, total, value,
			approval_tx_hash, transfer_tx_hash, phase, error_kind, error,
			created_at, updated_at
		) VALUES (
			:id, :chain_id, :account, :token_symbol, :token_address, :token_decimals,
			:recipients, :amounts, :total, :value,
			:approval_tx_hash, :transfer_tx_hash, :phase, :error_kind, :error,
			:created_at, :updated_at
		)
		ON CONFLICT (id) DO UPDATE SET
			approval_tx_hash = EXCLUDED.approval_tx_hash,
			transfer_tx_hash = EXCLUDED.transfer_tx_hash,
			phase = EXCLUDED.phase,
			error_kind = EXCLUDED.error_kind,
			error = EXCLUDED.error,
			updated_at = EXCLUDED.updated_at
	`
	if _, err := r.db.NamedExecContext(ctx, query, toRow(attempt)); err != nil {
		return fmt.Errorf("failed to save attempt: %w", err)
	}
	return nil
}

// Get retrieves an attempt by ID.
func (r *AttemptRepo) Get(ctx context.Context, id string) (*domain.Attempt, error) {
	var row attemptRow
	err := r.db.GetContext(ctx, &row, `SELECT `+attemptColumns+` FROM payment_attempts WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrAttemptNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get attempt: %w", err)
	}
	return row.toDomain()
}

// List returns attempts newest first.
func (r *AttemptRepo) List(
	ctx context.Context,
	filter storage.AttemptFilter,
) ([]*domain.Attempt, error) {
	query, args := listQuery(filter)

	var rows []attemptRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list attempts: %w", err)
	}

	out := make([]*domain.Attempt, 0, len(rows))
	for _, row := range rows {
		a, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// DeleteFinishedBefore removes terminal attempts last updated before cutoff.
func (r *AttemptRepo) DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM payment_attempts WHERE phase IN ($1, $2) AND updated_at < $3`,
		string(domain.PhaseCompleted), string(domain.PhaseFailed), cutoff.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to prune attempts: %w", err)
	}
	return res.RowsAffected()
}

func listQuery(filter storage.AttemptFilter) (string, []any) {
	var (
		where []string
		args  []any
	)
	if filter.ChainID != "" {
		args = append(args, string(filter.ChainID))
		where = append(where, fmt.Sprintf("chain_id = $%d", len(args)))
	}
	if filter.Phase != "" {
		args = append(args, string(filter.Phase))
		where = append(where, fmt.Sprintf("phase = $%d", len(args)))
	}

	var b strings.Builder
	b.WriteString("SELECT " + attemptColumns + " FROM payment_attempts")
	if len(where) > 0 {
		b.WriteString(" WHERE " + strings.Join(where, " AND "))
	}
	b.WriteString(" ORDER BY created_at DESC")
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		fmt.Fprintf(&b, " LIMIT $%d", len(args))
	}
	return b.String(), args
}

func toRow(a *domain.Attempt) attemptRow {
	amounts := make(pq.StringArray, len(a.Amounts))
	for i, amt := range a.Amounts {
		amounts[i] = intString(amt)
	}
	return attemptRow{
		ID:             a.ID,
		ChainID:        string(a.ChainID),
		Account:        a.Account,
		TokenSymbol:    a.Token.Symbol,
		TokenAddress:   a.Token.Address,
		TokenDecimals:  int16(a.Token.Decimals),
		Recipients:     pq.StringArray(append([]string(nil), a.Recipients...)),
		Amounts:        amounts,
		Total:          intString(a.Total),
		Value:          intString(a.Value),
		ApprovalTxHash: a.ApprovalTxHash,
		TransferTxHash: a.TransferTxHash,
		Phase:          string(a.Phase),
		ErrorKind:      string(a.ErrorKind),
		Error:          a.Error,
		CreatedAt:      a.CreatedAt.UTC(),
		UpdatedAt:      a.UpdatedAt.UTC(),
	}
}

func (row attemptRow) toDomain() (*domain.Attempt, error) {
	amounts := make([]*big.Int, len(row.Amounts))
	for i, s := range row.Amounts {
		v, err := parseInt(s)
		if err != nil {
			return nil, fmt.Errorf("attempt %s amount %d: %w", row.ID, i, err)
		}
		amounts[i] = v
	}
	total, err := parseInt(row.Total)
	if err != nil {
		return nil, fmt.Errorf("attempt %s total: %w", row.ID, err)
	}
	value, err := parseInt(row.Value)
	if err != nil {
		return nil, fmt.Errorf("attempt %s value: %w", row.ID, err)
	}

	return &domain.Attempt{
		ID:      row.ID,
		ChainID: domain.ChainID(row.ChainID),
		Account: row.Account,
		Token: domain.Token{
			Symbol:   row.TokenSymbol,
			Address:  row.TokenAddress,
			Decimals: uint8(row.TokenDecimals),
		},
		Recipients:     []string(row.Recipients),
		Amounts:        amounts,
		Total:          total,
		Value:          value,
		ApprovalTxHash: row.ApprovalTxHash,
		TransferTxHash: row.TransferTxHash,
		Phase:          domain.Phase(row.Phase),
		ErrorKind:      domain.ErrorKind(row.ErrorKind),
		Error:          row.Error,
		CreatedAt:      row.CreatedAt,
		UpdatedAt:      row.UpdatedAt,
	}, nil
}

func intString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func parseInt(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid integer %q", s)
	}
	return v, nil
}
