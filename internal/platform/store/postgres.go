package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/DBEST-EZRA/HMIS/internal/platform/apperr"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type txKey struct{}

// PostgresStore keeps every collection in the records table (see
// migrations/001_records.sql). Fields are stored in a json column, which
// keeps key order, rather than jsonb.
type PostgresStore struct {
	pool  *pgxpool.Pool
	clock func() time.Time
}

// NewPostgresStore wraps an existing pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, clock: time.Now}
}

func (s *PostgresStore) conn(ctx context.Context) queryable {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return tx
	}
	return s.pool
}

const recordCols = `id, created_at, fields`

func scanRecord(row pgx.Row) (Record, error) {
	var r Record
	var raw []byte
	if err := row.Scan(&r.ID, &r.CreatedAt, &raw); err != nil {
		return Record{}, err
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &r.Fields); err != nil {
			return Record{}, fmt.Errorf("decode fields of %s: %w", r.ID, err)
		}
	}
	return r, nil
}

func (s *PostgresStore) GetAll(ctx context.Context, collection string) ([]Record, error) {
	return s.GetWhere(ctx, collection)
}

func (s *PostgresStore) GetWhere(ctx context.Context, collection string, preds ...Predicate) ([]Record, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT ` + recordCols + ` FROM records WHERE collection = $1`)
	args := []interface{}{collection}
	var residual []Predicate
	for _, p := range preds {
		op, ok := sqlOperators[p.Op]
		if !ok {
			return nil, apperr.Invalid("op", "unsupported operator %q", p.Op)
		}
		if !p.Pushdown() {
			residual = append(residual, p)
			continue
		}
		args = append(args, p.Value)
		switch p.Field {
		case "id":
			fmt.Fprintf(&sb, ` AND id %s $%d::text`, op, len(args))
		case "createdAt":
			fmt.Fprintf(&sb, ` AND created_at %s $%d::text`, op, len(args))
		default:
			args = append(args, p.Field)
			fmt.Fprintf(&sb, ` AND fields->>($%d::text) %s $%d::text`, len(args), op, len(args)-1)
		}
	}
	sb.WriteString(` ORDER BY seq`)

	rows, err := s.conn(ctx).Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, apperr.WrapStore("get", collection, err)
	}
	defer rows.Close()
	out := []Record{}
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, apperr.WrapStore("get", collection, err)
		}
		if MatchAll(r, residual) {
			out = append(out, r)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.WrapStore("get", collection, err)
	}
	return out, nil
}

func (s *PostgresStore) Get(ctx context.Context, collection, id string) (Record, error) {
	r, err := scanRecord(s.conn(ctx).QueryRow(ctx,
		`SELECT `+recordCols+` FROM records WHERE collection = $1 AND id = $2`, collection, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, fmt.Errorf("%s/%s: %w", collection, id, apperr.ErrNotFound)
	}
	if err != nil {
		return Record{}, apperr.WrapStore("get", collection, err)
	}
	return r, nil
}

func (s *PostgresStore) Add(ctx context.Context, collection string, fields Fields) (string, error) {
	id := NewID()
	if err := s.Transact(ctx, AddOp{Collection: collection, ID: id, Fields: fields}); err != nil {
		return "", err
	}
	return id, nil
}

func (s *PostgresStore) Update(ctx context.Context, collection, id string, partial Fields) error {
	return s.Transact(ctx, UpdateOp{Collection: collection, ID: id, Fields: partial})
}

func (s *PostgresStore) Delete(ctx context.Context, collection, id string) error {
	return s.Transact(ctx, DeleteOp{Collection: collection, ID: id})
}

func (s *PostgresStore) Transact(ctx context.Context, ops ...Op) error {
	if _, nested := ctx.Value(txKey{}).(pgx.Tx); nested {
		return s.apply(ctx, ops)
	}
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return apperr.WrapStore("begin", "", err)
	}
	defer tx.Rollback(ctx)

	if err := s.apply(context.WithValue(ctx, txKey{}, tx), ops); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return apperr.WrapStore("commit", "", err)
	}
	return nil
}

func (s *PostgresStore) apply(ctx context.Context, ops []Op) error {
	for _, op := range ops {
		var err error
		switch o := op.(type) {
		case AddOp:
			err = s.insert(ctx, o)
		case UpdateOp:
			err = s.mutate(ctx, o.Collection, o.ID, func(r *Record) error {
				r.Fields = r.Fields.Merge(o.Fields)
				return nil
			})
		case DeleteOp:
			err = s.delete(ctx, o.Collection, o.ID)
		case MutateOp:
			err = s.mutate(ctx, o.Collection, o.ID, o.Apply)
		default:
			err = fmt.Errorf("unsupported op %T", op)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *PostgresStore) insert(ctx context.Context, o AddOp) error {
	id := o.ID
	if id == "" {
		id = NewID()
	}
	raw, err := json.Marshal(o.Fields)
	if err != nil {
		return apperr.WrapStore("add", o.Collection, err)
	}
	_, err = s.conn(ctx).Exec(ctx, `
		INSERT INTO records (collection, id, created_at, fields)
		VALUES ($1, $2, $3, $4::json)`,
		o.Collection, id, FormatTime(s.clock()), string(raw))
	return apperr.WrapStore("add", o.Collection, err)
}

func (s *PostgresStore) mutate(ctx context.Context, collection, id string, apply func(*Record) error) error {
	r, err := scanRecord(s.conn(ctx).QueryRow(ctx,
		`SELECT `+recordCols+` FROM records WHERE collection = $1 AND id = $2 FOR UPDATE`, collection, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s/%s: %w", collection, id, apperr.ErrNotFound)
	}
	if err != nil {
		return apperr.WrapStore("update", collection, err)
	}
	if err := apply(&r); err != nil {
		return err
	}
	raw, err := json.Marshal(r.Fields)
	if err != nil {
		return apperr.WrapStore("update", collection, err)
	}
	_, err = s.conn(ctx).Exec(ctx,
		`UPDATE records SET fields = $3::json WHERE collection = $1 AND id = $2`,
		collection, id, string(raw))
	return apperr.WrapStore("update", collection, err)
}

func (s *PostgresStore) delete(ctx context.Context, collection, id string) error {
	tag, err := s.conn(ctx).Exec(ctx, `DELETE FROM records WHERE collection = $1 AND id = $2`, collection, id)
	if err != nil {
		return apperr.WrapStore("delete", collection, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s/%s: %w", collection, id, apperr.ErrNotFound)
	}
	return nil
}

// Close is a no-op: the pool belongs to the caller.
func (s *PostgresStore) Close(context.Context) error { return nil }
