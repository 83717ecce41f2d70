package storage

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	logx "alertbot/pkg/logx"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed postgres.sql
var postgresMigrations string

type postgresStore struct {
	pool *pgxpool.Pool
	log  logx.Logger
}

func openPostgres(cfg Config, log logx.Logger) (Store, error) {
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, errors.New("postgres dsn is required")
	}
	pcfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	pcfg.MaxConns = 8
	pcfg.MinConns = 1

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresMigrations); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres migrate: %w", err)
	}
	return &postgresStore{pool: pool, log: log}, nil
}

func (s *postgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *postgresStore) PutNotification(ctx context.Context, rec *Record) error {
	var fire *time.Time
	if !rec.FireAt.IsZero() {
		fire = &rec.FireAt
	}
	return s.pool.QueryRow(ctx,
		`INSERT INTO alert_notifications(id, created_at, fire_at, state, read, data)
		 VALUES($1, $2, $3, $4, $5, $6)
		 ON CONFLICT(id) DO UPDATE SET
		   created_at = EXCLUDED.created_at,
		   fire_at = EXCLUDED.fire_at,
		   state = EXCLUDED.state,
		   read = EXCLUDED.read,
		   data = EXCLUDED.data
		 RETURNING seq`,
		rec.ID, rec.CreatedAt, fire, rec.State, rec.Read, []byte(rec.Data),
	).Scan(&rec.Seq)
}

const postgresSelect = `SELECT id, seq, created_at, fire_at, state, read, data FROM alert_notifications`

func scanPostgres(row pgx.Row) (Record, error) {
	var (
		r    Record
		fire *time.Time
		data []byte
	)
	if err := row.Scan(&r.ID, &r.Seq, &r.CreatedAt, &fire, &r.State, &r.Read, &data); err != nil {
		return Record{}, err
	}
	if fire != nil {
		r.FireAt = *fire
	}
	r.Data = data
	return r, nil
}

func (s *postgresStore) GetNotification(ctx context.Context, id string) (Record, error) {
	r, err := scanPostgres(s.pool.QueryRow(ctx, postgresSelect+` WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("get notification: %w", err)
	}
	return r, nil
}

func (s *postgresStore) DeleteNotification(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM alert_notifications WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete notification: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *postgresStore) ListNotifications(ctx context.Context) ([]Record, error) {
	rows, err := s.pool.Query(ctx, postgresSelect+` ORDER BY created_at DESC, seq DESC`)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()
	var out []Record
	for rows.Next() {
		r, err := scanPostgres(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *postgresStore) DeleteAllNotifications(ctx context.Context) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM alert_notifications`)
	if err != nil {
		return 0, fmt.Errorf("clear notifications: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *postgresStore) CountUnread(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM alert_notifications WHERE NOT read`).Scan(&n)
	return n, err
}

func (s *postgresStore) AppendAudit(ctx context.Context, e AuditEntry) error {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO alert_audit(at, actor, action, target, ok, err, meta) VALUES($1,$2,$3,$4,$5,$6,$7)`,
		e.At, e.Actor, e.Action, nullStr(e.Target), e.OK, nullStr(e.Error), nullStr(e.Meta),
	)
	return err
}

func (s *postgresStore) ListAudit(ctx context.Context, limit int) ([]AuditEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT at, actor, action, COALESCE(target,''), ok, COALESCE(err,''), COALESCE(meta,'')
		 FROM alert_audit ORDER BY id DESC LIMIT $1`, auditLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list audit: %w", err)
	}
	defer rows.Close()
	var out []AuditEntry
	for rows.Next() {
		var e AuditEntry
		if err := rows.Scan(&e.At, &e.Actor, &e.Action, &e.Target, &e.OK, &e.Error, &e.Meta); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *postgresStore) PutDedup(ctx context.Context, key string, until time.Time) error {
	if key == "" {
		return nil
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO alert_dedup(key, until) VALUES($1,$2)
		 ON CONFLICT(key) DO UPDATE SET until = EXCLUDED.until`,
		key, until,
	)
	return err
}

func (s *postgresStore) GetDedup(ctx context.Context, key string) (time.Time, bool, error) {
	if key == "" {
		return time.Time{}, false, nil
	}
	var until time.Time
	err := s.pool.QueryRow(ctx, `SELECT until FROM alert_dedup WHERE key = $1`, key).Scan(&until)
	if errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	return until, true, nil
}
