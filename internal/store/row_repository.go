package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/MKhiriev/tabsync/internal/logger"
	"github.com/MKhiriev/tabsync/models"
	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgerrcode"
)

// RowRepository reads the current state of synchronised rows.
type RowRepository interface {
	// GetRow returns the row id of table owned by ownerID as a column map.
	GetRow(ctx context.Context, table, id, ownerID string) (models.Row, error)
	// Retryable reports whether a GetRow error is transient.
	Retryable(err error) bool
}

const (
	idColumn    = "id"
	ownerColumn = "user_id"
)

// rowRepository is the PostgreSQL-backed implementation of [RowRepository].
// Rows are read as JSON with row_to_json so every table shares one query
// shape.
type rowRepository struct {
	db     *DB
	tables map[string]struct{}
	psql   sq.StatementBuilderType
	logger *logger.Logger
}

// NewRowRepository constructs a [RowRepository] restricted to tables.
func NewRowRepository(db *DB, tables []string, logger *logger.Logger) RowRepository {
	logger.Debug().Strs("tables", tables).Msg("creating row repository")

	allowed := make(map[string]struct{}, len(tables))
	for _, table := range tables {
		allowed[table] = struct{}{}
	}

	return &rowRepository{
		db:     db,
		tables: allowed,
		psql:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
		logger: logger,
	}
}

// GetRow implements [RowRepository].
//
// Error handling:
//   - table outside the configured set → [ErrUnknownTable].
//   - no matching row, or PostgreSQL no_data_found (P0002) → [ErrRowNotFound].
//   - query build failure → [ErrBuildingSQLQuery].
//   - any other driver-level error → [ErrExecutingQuery].
//   - JSON decode failure → [ErrScanningRow].
func (r *rowRepository) GetRow(ctx context.Context, table, id, ownerID string) (models.Row, error) {
	log := logger.FromContext(ctx)

	if _, ok := r.tables[table]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTable, table)
	}

	query, args, err := r.getRowQuery(table, id, ownerID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	var raw []byte
	err = r.db.QueryRowContext(ctx, query, args...).Scan(&raw)
	switch {
	case errors.Is(err, sql.ErrNoRows), postgresError(err) == pgerrcode.NoDataFound:
		return nil, ErrRowNotFound
	case err != nil:
		log.Err(err).
			Str("func", "*rowRepository.GetRow").
			Str("table", table).
			Str("id", id).
			Msg("failed to query row")
		return nil, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}

	var row models.Row
	if err = json.Unmarshal(raw, &row); err != nil {
		log.Err(err).
			Str("func", "*rowRepository.GetRow").
			Str("table", table).
			Msg("failed to decode row")
		return nil, fmt.Errorf("%w: %w", ErrScanningRow, err)
	}

	return row, nil
}

// Retryable implements [RowRepository].
func (r *rowRepository) Retryable(err error) bool {
	return r.db.Retryable(err)
}

// getRowQuery builds
//
//	SELECT row_to_json(t) FROM <table> AS t WHERE t.id = $1 AND t.user_id = $2
//
// table must already be validated.
func (r *rowRepository) getRowQuery(table, id, ownerID string) (string, []any, error) {
	return r.psql.
		Select("row_to_json(t)").
		From(table + " AS t").
		Where(sq.Eq{"t." + idColumn: id}).
		Where(sq.Eq{"t." + ownerColumn: ownerID}).
		ToSql()
}
