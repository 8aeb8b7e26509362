// Package tenderstore persists tender records in SQLite.
//
// It uses modernc.org/sqlite (pure Go, no cgo) through database/sql.
// Embedding vectors are stored as little-endian float32 BLOBs next to the
// descriptive columns, so one filtered read returns candidates ready for
// vector search.
package tenderstore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/zakupki-tools/tendex/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS tenders (
	id                   INTEGER PRIMARY KEY,
	name                 TEXT,
	price                REAL,
	law_type             TEXT,
	purchase_method      TEXT,
	okpd2_code           TEXT,
	publish_date         TEXT,
	end_date             TEXT,
	results_date         TEXT,
	customer_inn         TEXT,
	customer_name        TEXT,
	region               TEXT NOT NULL,
	date_added           TEXT NOT NULL,
	stage                TEXT,
	name_vector          BLOB,
	customer_name_vector BLOB
);
CREATE INDEX IF NOT EXISTS idx_region_date ON tenders(region, date_added);
CREATE INDEX IF NOT EXISTS idx_price ON tenders(price);
CREATE INDEX IF NOT EXISTS idx_law_type ON tenders(law_type);
CREATE INDEX IF NOT EXISTS idx_purchase_method ON tenders(purchase_method);
CREATE INDEX IF NOT EXISTS idx_customer_inn ON tenders(customer_inn);
CREATE INDEX IF NOT EXISTS idx_okpd2 ON tenders(okpd2_code);
`

const tenderColumns = `id, name, price, law_type, purchase_method, okpd2_code,
	publish_date, end_date, results_date, customer_inn, customer_name,
	region, date_added, stage, name_vector, customer_name_vector`

// Store is a SQLite-backed tender repository.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewStore opens (and if needed creates) the tender database at path.
func NewStore(path string, logger *zap.Logger) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Store{db: db, logger: logger}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks database availability.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}

// GetByID returns a single tender or domain.ErrTenderNotFound.
func (s *Store) GetByID(ctx context.Context, id int64) (domain.Tender, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+tenderColumns+" FROM tenders WHERE id = ?", id)

	t, err := scanTender(row)
	if err == sql.ErrNoRows {
		return domain.Tender{}, domain.ErrTenderNotFound
	}
	if err != nil {
		return domain.Tender{}, fmt.Errorf("%w: get tender %d: %v", domain.ErrStoreUnavailable, id, err)
	}
	return t, nil
}

// GetFiltered returns tenders matching the structured constraints.
// Every absent constraint is simply omitted from the WHERE clause.
func (s *Store) GetFiltered(ctx context.Context, f domain.TenderFilter) ([]domain.Tender, error) {
	query := "SELECT " + tenderColumns + " FROM tenders WHERE 1=1"
	var args []interface{}

	if f.Region != "" {
		query += " AND region = ?"
		args = append(args, f.Region)
	}
	if f.Date != "" {
		query += " AND date_added > ?"
		args = append(args, f.Date)
	}
	if f.MinPrice != nil {
		query += " AND price >= ?"
		args = append(args, *f.MinPrice)
	}
	if f.MaxPrice != nil {
		query += " AND price <= ?"
		args = append(args, *f.MaxPrice)
	}
	if f.LawType != "" {
		cond, vals := wordLikeGroup("law_type", f.LawType)
		query += cond
		args = append(args, vals...)
	}
	if f.PurchaseMethod != "" {
		cond, vals := wordLikeGroup("purchase_method", f.PurchaseMethod)
		query += cond
		args = append(args, vals...)
	}
	if f.OKPD2Code != "" {
		query += " AND okpd2_code = ?"
		args = append(args, f.OKPD2Code)
	}
	if f.CustomerINN != "" {
		query += " AND customer_inn = ?"
		args = append(args, f.CustomerINN)
	}
	if len(f.Keywords) > 0 {
		conds := make([]string, len(f.Keywords))
		for i, kw := range f.Keywords {
			conds[i] = "name LIKE ?"
			args = append(args, "%"+kw+"%")
		}
		query += " AND (" + strings.Join(conds, " OR ") + ")"
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: filter tenders: %v", domain.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var tenders []domain.Tender
	for rows.Next() {
		t, err := scanTender(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan tender: %v", domain.ErrStoreUnavailable, err)
		}
		tenders = append(tenders, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate tenders: %v", domain.ErrStoreUnavailable, err)
	}
	return tenders, nil
}

// wordLikeGroup builds an OR group of substring matches, one per word of
// the value. Portal law types and purchase methods are phrased
// inconsistently across notifications, so any word is accepted. LIKE is
// kept bare: SQLite's UPPER/LOWER only fold ASCII and would silently
// break Cyrillic values.
func wordLikeGroup(column, value string) (string, []interface{}) {
	words := strings.Fields(value)
	conds := make([]string, len(words))
	args := make([]interface{}, len(words))
	for i, w := range words {
		conds[i] = column + " LIKE ?"
		args[i] = "%" + w + "%"
	}
	return " AND (" + strings.Join(conds, " OR ") + ")", args
}

// Upsert inserts or replaces tender records. A failed row is logged and
// skipped; the count of stored rows is returned.
func (s *Store) Upsert(ctx context.Context, tenders []domain.Tender) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: begin tx: %v", domain.ErrStoreUnavailable, err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO tenders (
			id, name, price, law_type, purchase_method, okpd2_code,
			publish_date, end_date, results_date, customer_inn, customer_name,
			region, date_added, stage
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("%w: prepare upsert: %v", domain.ErrStoreUnavailable, err)
	}
	defer stmt.Close()

	count := 0
	for _, t := range tenders {
		_, err := stmt.ExecContext(ctx,
			t.ID, t.Name, nullFloat(t.Price), nullStr(t.LawType), nullStr(t.PurchaseMethod),
			nullStr(t.OKPD2Code), nullStr(t.PublishDate), nullStr(t.EndDate), nullStr(t.ResultsDate),
			nullStr(t.CustomerINN), nullStr(t.CustomerName), t.Region, t.DateAdded, nullStr(t.Stage),
		)
		if err != nil {
			s.logger.Error("failed to store tender", zap.Int64("id", t.ID), zap.Error(err))
			continue
		}
		count++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%w: commit upsert: %v", domain.ErrStoreUnavailable, err)
	}
	return count, nil
}

// ListUnvectorized returns tenders whose name vector is still missing,
// oldest first. limit <= 0 means no limit.
func (s *Store) ListUnvectorized(ctx context.Context, limit int) ([]domain.Tender, error) {
	query := "SELECT " + tenderColumns + " FROM tenders WHERE name_vector IS NULL ORDER BY date_added, id"
	var args []interface{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: list unvectorized: %v", domain.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var tenders []domain.Tender
	for rows.Next() {
		t, err := scanTender(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan tender: %v", domain.ErrStoreUnavailable, err)
		}
		tenders = append(tenders, t)
	}
	return tenders, rows.Err()
}

// UpdateVectors stores name and customer-name vectors for the given ids.
// A nil vector leaves the corresponding column untouched.
func (s *Store) UpdateVectors(ctx context.Context, ids []int64, nameVectors, customerVectors [][]float32) error {
	if len(nameVectors) != len(ids) || len(customerVectors) != len(ids) {
		return fmt.Errorf("%w: %d ids, %d name vectors, %d customer vectors",
			domain.ErrVectorDimMismatch, len(ids), len(nameVectors), len(customerVectors))
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin tx: %v", domain.ErrStoreUnavailable, err)
	}
	defer tx.Rollback()

	for i, id := range ids {
		if nameVectors[i] != nil {
			if _, err := tx.ExecContext(ctx,
				"UPDATE tenders SET name_vector = ? WHERE id = ?",
				domain.VectorToBytes(nameVectors[i]), id); err != nil {
				return fmt.Errorf("%w: update name vector %d: %v", domain.ErrStoreUnavailable, id, err)
			}
		}
		if customerVectors[i] != nil {
			if _, err := tx.ExecContext(ctx,
				"UPDATE tenders SET customer_name_vector = ? WHERE id = ?",
				domain.VectorToBytes(customerVectors[i]), id); err != nil {
				return fmt.Errorf("%w: update customer vector %d: %v", domain.ErrStoreUnavailable, id, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit vectors: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTender(row rowScanner) (domain.Tender, error) {
	var (
		t                  domain.Tender
		price              sql.NullFloat64
		lawType, method    sql.NullString
		okpd2, pubDate     sql.NullString
		endDate, resDate   sql.NullString
		inn, customer      sql.NullString
		stage, name        sql.NullString
		nameVec, custVec   []byte
	)
	err := row.Scan(
		&t.ID, &name, &price, &lawType, &method, &okpd2,
		&pubDate, &endDate, &resDate, &inn, &customer,
		&t.Region, &t.DateAdded, &stage, &nameVec, &custVec,
	)
	if err != nil {
		return domain.Tender{}, err
	}

	t.Name = name.String
	if price.Valid {
		v := price.Float64
		t.Price = &v
	}
	t.LawType = lawType.String
	t.PurchaseMethod = method.String
	t.OKPD2Code = okpd2.String
	t.PublishDate = pubDate.String
	t.EndDate = endDate.String
	t.ResultsDate = resDate.String
	t.CustomerINN = inn.String
	t.CustomerName = customer.String
	t.Stage = stage.String

	if t.NameVector, err = domain.VectorFromBytes(nameVec); err != nil {
		return domain.Tender{}, fmt.Errorf("tender %d name vector: %w", t.ID, err)
	}
	if t.CustomerNameVector, err = domain.VectorFromBytes(custVec); err != nil {
		return domain.Tender{}, fmt.Errorf("tender %d customer vector: %w", t.ID, err)
	}
	return t, nil
}

func nullStr(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}
