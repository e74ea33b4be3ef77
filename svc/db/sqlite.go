package db

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/binary"
	"sync/atomic"
	"time"

	"clipbin/pkg/domain"
	"clipbin/svc/util"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

var ErrCircuitOpen = errors.New("database circuit breaker open")

const (
	circuitClosed   = 0
	circuitOpen     = 1
	circuitHalfOpen = 2
	maxFailures     = 5
	cooldownSeconds = 30

	minDeleteTime     = 50 * time.Millisecond
	deleteTimeJitter  = 20 * time.Millisecond
	sweepBatchSize    = 100
	sweepMaxBatches   = 10000
	sweepBatchBackoff = 10 * time.Millisecond
)

const (
	defaultMaxOpenConns = 100
	defaultMaxIdleConns = 10
	defaultQueryTimeout = 5 * time.Second
)

// SQLite is the authoritative paste store. Per-key exclusivity comes from
// SQLite's atomic conditional writes: consume and delete are single
// conditional statements, so two operations on one id never interleave their
// read-modify-write, while reads of distinct ids proceed from WAL snapshots
// without contending.
type SQLite struct {
	db            *sql.DB
	maxPastes     int64
	failures      int32
	circuitState  int32
	circuitOpened int64
	queryTimeout  time.Duration
}

func (s *SQLite) DB() *sql.DB {
	return s.db
}

func NewSQLite(path string, maxPastes int64) (*SQLite, error) {
	return NewSQLiteWithConfig(path, maxPastes, defaultMaxOpenConns, defaultMaxIdleConns, defaultQueryTimeout)
}

func NewSQLiteWithConfig(path string, maxPastes int64, maxOpenConns, maxIdleConns int, queryTimeout time.Duration) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open db")
	}
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(1 * time.Hour)
	db.SetConnMaxIdleTime(10 * time.Minute)
	if err := db.Ping(); err != nil {
		return nil, errors.Wrap(err, "failed to ping db")
	}
	s := &SQLite{
		db:           db,
		maxPastes:    maxPastes,
		queryTimeout: queryTimeout,
	}
	if err := s.migrate(); err != nil {
		return nil, errors.Wrap(err, "migration failed")
	}
	return s, nil
}

func (s *SQLite) checkCircuit() error {
	state := atomic.LoadInt32(&s.circuitState)
	switch state {
	case circuitClosed:
		return nil
	case circuitOpen:
		opened := atomic.LoadInt64(&s.circuitOpened)
		if time.Now().Unix()-opened >= cooldownSeconds {
			if atomic.CompareAndSwapInt32(&s.circuitState, circuitOpen, circuitHalfOpen) {
				return nil
			}
		}
		return ErrCircuitOpen
	case circuitHalfOpen:
		return nil
	default:
		return nil
	}
}

func (s *SQLite) recordError(err error) {
	if err == nil {
		atomic.StoreInt32(&s.failures, 0)
		atomic.StoreInt32(&s.circuitState, circuitClosed)
		return
	}
	if errors.Is(err, sql.ErrNoRows) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) {
		return
	}
	failures := atomic.AddInt32(&s.failures, 1)
	if atomic.LoadInt32(&s.circuitState) == circuitHalfOpen {
		atomic.StoreInt32(&s.circuitState, circuitOpen)
		atomic.StoreInt64(&s.circuitOpened, time.Now().Unix())
		atomic.StoreInt32(&s.failures, 0)
		return
	}
	if failures >= maxFailures && atomic.LoadInt32(&s.circuitState) == circuitClosed {
		atomic.StoreInt32(&s.circuitState, circuitOpen)
		atomic.StoreInt64(&s.circuitOpened, time.Now().Unix())
	}
}

func (s *SQLite) migrate() error {
	if _, err := s.db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return errors.Wrap(err, "enable WAL mode")
	}
	if _, err := s.db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		return errors.Wrap(err, "set busy timeout")
	}
	if _, err := s.db.Exec("PRAGMA synchronous=FULL"); err != nil {
		return errors.Wrap(err, "set synchronous mode")
	}
	query := `
	CREATE TABLE IF NOT EXISTS pastes (
		id TEXT PRIMARY KEY,
		token_hash BLOB NOT NULL,
		owner TEXT,
		title TEXT,
		content BLOB NOT NULL,
		language TEXT,
		keeping TEXT NOT NULL,
		burn INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		expires_at DATETIME
	);
	CREATE INDEX IF NOT EXISTS idx_expires_at ON pastes(expires_at);
	`
	_, err := s.db.Exec(query)
	return err
}

// normalizeDeleteTime pads delete handling to a jittered floor so an unknown
// id and a wrong token are indistinguishable by response time.
func normalizeDeleteTime(start time.Time) {
	elapsed := time.Since(start)
	var jitterNanos int64
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		jitterNanos = int64(deleteTimeJitter)
	} else {
		jitterNanos = int64(binary.BigEndian.Uint64(b[:]) % uint64(deleteTimeJitter))
	}
	target := minDeleteTime + time.Duration(jitterNanos)
	if elapsed < target {
		time.Sleep(target - elapsed)
	}
}

// Create inserts a fully-populated record. The capacity bound is enforced in
// the same statement as the insert, so a rejected create never reports an id
// the caller could believe is valid.
func (s *SQLite) Create(ctx context.Context, p *domain.Paste) error {
	if err := s.checkCircuit(); err != nil {
		return err
	}
	queryCtx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()
	var expiresAt interface{}
	if p.ExpiresAt != nil {
		expiresAt = *p.ExpiresAt
	}
	q := `
	INSERT INTO pastes (id, token_hash, owner, title, content, language, keeping, burn, created_at, expires_at)
	SELECT ?, ?, ?, ?, ?, ?, ?, ?, ?, ?
	WHERE (SELECT COUNT(*) FROM pastes) < ?
	`
	res, err := s.db.ExecContext(queryCtx, q,
		p.ID, p.TokenHash, p.Owner, p.Title, []byte(p.Content), p.Language, p.Keeping, p.Burn, p.CreatedAt, expiresAt,
		s.maxPastes,
	)
	s.recordError(err)
	if err != nil {
		return errors.Wrap(err, "db create")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "db create rows affected")
	}
	if n == 0 {
		return domain.ErrStoreFull
	}
	return nil
}

// Get returns the record if present, not expired, and not already consumed.
// For a burn paste the read is the consumption: the row is removed by a
// conditional delete, and only the caller whose delete took effect observes
// the content. Time expiry is also checked lazily here so correctness does
// not depend on the reaper's schedule.
func (s *SQLite) Get(ctx context.Context, id string) (*domain.Paste, error) {
	if err := s.checkCircuit(); err != nil {
		return nil, err
	}
	queryCtx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()
	q := `
	SELECT id, token_hash, owner, title, content, language, keeping, burn, created_at, expires_at
	FROM pastes WHERE id = ?
	`
	var p domain.Paste
	var content []byte
	var expiresAt sql.NullTime
	err := s.db.QueryRowContext(queryCtx, q, id).Scan(
		&p.ID, &p.TokenHash, &p.Owner, &p.Title, &content, &p.Language, &p.Keeping, &p.Burn, &p.CreatedAt, &expiresAt,
	)
	if err == sql.ErrNoRows {
		return nil, domain.ErrPasteNotFound
	}
	s.recordError(err)
	if err != nil {
		return nil, errors.Wrap(err, "db get")
	}
	p.Content = string(content)
	if expiresAt.Valid {
		t := expiresAt.Time
		p.ExpiresAt = &t
	}
	if p.Expired(time.Now()) {
		// Lazy expiry. The sweep may remove the row first; either way the
		// caller sees not-found.
		if _, err := s.db.ExecContext(queryCtx, `DELETE FROM pastes WHERE id = ?`, id); err != nil {
			util.Warn().Err(err).Str("id", id).Msg("lazy expiry delete failed")
		}
		return nil, domain.ErrPasteNotFound
	}
	if p.Burn {
		res, err := s.db.ExecContext(queryCtx, `DELETE FROM pastes WHERE id = ? AND burn = 1`, id)
		s.recordError(err)
		if err != nil {
			return nil, errors.Wrap(err, "consume burn paste")
		}
		n, err := res.RowsAffected()
		if err != nil {
			return nil, errors.Wrap(err, "consume rows affected")
		}
		if n == 0 {
			// A concurrent reader consumed it between our select and delete.
			return nil, domain.ErrPasteNotFound
		}
	}
	return &p, nil
}

// Delete removes the record only when the presented token hashes to the
// stored digest. Unknown id and wrong token both come back as ErrForbidden so
// the store reveals nothing about which ids exist; handling time is
// normalized for the same reason.
func (s *SQLite) Delete(ctx context.Context, id, token string) error {
	start := time.Now()
	defer normalizeDeleteTime(start)
	if err := s.checkCircuit(); err != nil {
		return err
	}
	queryCtx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()
	var tokenHash []byte
	var expiresAt sql.NullTime
	err := s.db.QueryRowContext(queryCtx, `SELECT token_hash, expires_at FROM pastes WHERE id = ?`, id).
		Scan(&tokenHash, &expiresAt)
	if err == sql.ErrNoRows {
		// Burn the same comparison work as the found path.
		util.VerifyToken(token, make([]byte, 32))
		return domain.ErrForbidden
	}
	s.recordError(err)
	if err != nil {
		return errors.Wrap(err, "db delete lookup")
	}
	if expiresAt.Valid && !expiresAt.Time.After(time.Now()) {
		util.VerifyToken(token, make([]byte, 32))
		if _, err := s.db.ExecContext(queryCtx, `DELETE FROM pastes WHERE id = ?`, id); err != nil {
			util.Warn().Err(err).Str("id", id).Msg("lazy expiry delete failed")
		}
		return domain.ErrForbidden
	}
	if !util.VerifyToken(token, tokenHash) {
		return domain.ErrForbidden
	}
	res, err := s.db.ExecContext(queryCtx, `DELETE FROM pastes WHERE id = ?`, id)
	s.recordError(err)
	if err != nil {
		return errors.Wrap(err, "db delete")
	}
	// Zero rows means the sweep or a concurrent consume won; deletion is
	// terminal and idempotent, so that is still success.
	_, _ = res.RowsAffected()
	return nil
}

// SweepExpired removes every record whose expiry has passed, in bounded
// batches so the sweep never holds the write lock for a full-table scan.
func (s *SQLite) SweepExpired(ctx context.Context) (int, error) {
	if err := s.checkCircuit(); err != nil {
		return 0, err
	}
	totalDeleted := 0
	for i := 0; i < sweepMaxBatches; i++ {
		select {
		case <-ctx.Done():
			return totalDeleted, ctx.Err()
		default:
		}
		queryCtx, cancel := context.WithTimeout(ctx, s.queryTimeout)
		result, err := s.db.ExecContext(queryCtx, `
			DELETE FROM pastes
			WHERE id IN (
				SELECT id FROM pastes
				WHERE expires_at IS NOT NULL AND expires_at <= ?
				LIMIT ?
			)
		`, time.Now(), sweepBatchSize)
		cancel()
		s.recordError(err)
		if err != nil {
			return totalDeleted, errors.Wrap(err, "sweep batch failed")
		}
		deleted, _ := result.RowsAffected()
		totalDeleted += int(deleted)
		if deleted == 0 {
			break
		}
		select {
		case <-ctx.Done():
			return totalDeleted, ctx.Err()
		case <-time.After(sweepBatchBackoff):
		}
	}
	return totalDeleted, nil
}

func (s *SQLite) Exists(ctx context.Context, id string) (bool, error) {
	if err := s.checkCircuit(); err != nil {
		return false, err
	}
	queryCtx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()
	var exists int
	q := `SELECT 1 FROM pastes WHERE id = ? LIMIT 1`
	err := s.db.QueryRowContext(queryCtx, q, id).Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	s.recordError(err)
	if err != nil {
		return false, errors.Wrap(err, "exists check failed")
	}
	return exists == 1, nil
}

func (s *SQLite) Count(ctx context.Context) (int64, error) {
	queryCtx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()
	var n int64
	err := s.db.QueryRowContext(queryCtx, `SELECT COUNT(*) FROM pastes`).Scan(&n)
	if err != nil {
		return 0, errors.Wrap(err, "count")
	}
	return n, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
