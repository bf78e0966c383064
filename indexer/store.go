package indexer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"bazaar/core/events"
	"bazaar/core/types"
)

var (
	// ErrIdempotencyMismatch is returned when a key is reused with a different
	// request body.
	ErrIdempotencyMismatch = errors.New("indexer: idempotency key reused with a different request")
	errNilDB               = errors.New("indexer: database not configured")
)

const defaultListLimit = 100

// Store archives committed events and idempotent responses.
type Store struct {
	db     *gorm.DB
	logger *slog.Logger
	now    func() time.Time
}

// Open connects to dsn and migrates the schema. postgres:// and postgresql://
// DSNs use the postgres driver; anything else is handed to sqlite.
func Open(dsn string) (*Store, error) {
	trimmed := strings.TrimSpace(dsn)
	if trimmed == "" {
		return nil, fmt.Errorf("indexer: dsn required")
	}
	var dialector gorm.Dialector
	switch {
	case strings.HasPrefix(trimmed, "postgres://"), strings.HasPrefix(trimmed, "postgresql://"):
		dialector = postgres.Open(trimmed)
	default:
		dialector = sqlite.Open(strings.TrimPrefix(trimmed, "sqlite://"))
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("indexer: open: %w", err)
	}
	if err := AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("indexer: migrate: %w", err)
	}
	return New(db), nil
}

// New wraps an already migrated database handle.
func New(db *gorm.DB) *Store {
	return &Store{
		db:     db,
		logger: slog.Default().With("component", "indexer"),
		now:    time.Now,
	}
}

// DB exposes the underlying handle.
func (s *Store) DB() *gorm.DB { return s.db }

// Close releases the connection pool.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Emit archives committed events delivered by the node. Anything that is not
// a recorded event is ignored; insert failures are logged since the node has
// already committed.
func (s *Store) Emit(evt events.Event) {
	rec, ok := evt.(events.Recorded)
	if !ok {
		return
	}
	if err := s.Record(context.Background(), rec.Record); err != nil {
		s.logger.Warn("archive event failed", "sequence", rec.Record.Sequence, "type", rec.Record.Type, "error", err)
	}
}

// Record inserts rec. Re-archiving an existing sequence is a no-op.
func (s *Store) Record(ctx context.Context, rec types.EventRecord) error {
	if s == nil || s.db == nil {
		return errNilDB
	}
	attrs, err := json.Marshal(rec.Attributes)
	if err != nil {
		return fmt.Errorf("indexer: encode attributes: %w", err)
	}
	row := &EventRecord{
		Sequence:   rec.Sequence,
		Type:       rec.Type,
		Timestamp:  rec.Timestamp,
		Attributes: string(attrs),
		CreatedAt:  s.now().UTC(),
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(row).Error
}

// List returns archived events with a sequence above after, oldest first.
func (s *Store) List(ctx context.Context, after uint64, limit int) ([]types.EventRecord, error) {
	if s == nil || s.db == nil {
		return nil, errNilDB
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	var rows []EventRecord
	err := s.db.WithContext(ctx).
		Where("sequence > ?", after).
		Order("sequence asc").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]types.EventRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := row.toRecord()
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// LatestSequence reports the highest archived sequence, if any.
func (s *Store) LatestSequence(ctx context.Context) (uint64, bool, error) {
	if s == nil || s.db == nil {
		return 0, false, errNilDB
	}
	var row EventRecord
	err := s.db.WithContext(ctx).Order("sequence desc").Limit(1).Find(&row).Error
	if err != nil {
		return 0, false, err
	}
	if row.Type == "" {
		return 0, false, nil
	}
	return row.Sequence, true, nil
}

func (r EventRecord) toRecord() (types.EventRecord, error) {
	attrs := map[string]string{}
	if r.Attributes != "" {
		if err := json.Unmarshal([]byte(r.Attributes), &attrs); err != nil {
			return types.EventRecord{}, fmt.Errorf("indexer: decode attributes for %d: %w", r.Sequence, err)
		}
	}
	return types.EventRecord{
		Sequence:   r.Sequence,
		Timestamp:  r.Timestamp,
		Type:       r.Type,
		Attributes: attrs,
	}, nil
}

// LookupIdempotency returns the stored response for (principal, key), nil
// when none exists, or ErrIdempotencyMismatch when the key was used for a
// different request.
func (s *Store) LookupIdempotency(ctx context.Context, principal, key, requestHash string) (*IdempotencyRecord, error) {
	if s == nil || s.db == nil {
		return nil, errNilDB
	}
	var rec IdempotencyRecord
	err := s.db.WithContext(ctx).Where("key = ? AND principal = ?", key, principal).Limit(1).Find(&rec).Error
	if err != nil {
		return nil, err
	}
	if rec.Key == "" {
		return nil, nil
	}
	if rec.RequestHash != requestHash {
		return nil, ErrIdempotencyMismatch
	}
	return &rec, nil
}

// SaveIdempotency stores a served response. The first writer for a key wins.
func (s *Store) SaveIdempotency(ctx context.Context, rec *IdempotencyRecord) error {
	if s == nil || s.db == nil {
		return errNilDB
	}
	if rec.RequestID == "" {
		rec.RequestID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now().UTC()
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(rec).Error
}
