package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

// DBTX is the subset of pgxpool.Pool used by PGStore.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PGStore writes entries into access_logs.
type PGStore struct {
	db DBTX
}

// NewPGStore returns a new PGStore.
func NewPGStore(db DBTX) *PGStore {
	return &PGStore{db: db}
}

const insertAccessLog = `INSERT INTO access_logs (id, user_id, route_id, event_type, occurred_at, ip_address, user_agent, metadata)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (id) DO NOTHING`

// LogAccessEvent persists the entry.
func (s *PGStore) LogAccessEvent(ctx context.Context, e Entry) error {
	if s == nil || s.db == nil {
		return ErrStoreNotConfigured
	}
	if e.ID == "" || e.UserID == "" || e.RouteID == "" || e.EventType == "" {
		return errors.New("audit: entry requires id/user_id/route_id/event_type")
	}
	metaJSON, err := json.Marshal(e.Metadata)
	if err != nil {
		return fmt.Errorf("audit: encode metadata: %w", err)
	}
	_, err = s.db.Exec(ctx, insertAccessLog,
		e.ID, e.UserID, e.RouteID, string(e.EventType), e.Timestamp,
		optionalText(e.IPAddress), optionalText(e.UserAgent), metaJSON)
	if err != nil {
		return fmt.Errorf("audit: insert access log: %w", err)
	}
	return nil
}

const timelineQuery = `SELECT id::text, user_id, route_id, event_type, occurred_at, ip_address, user_agent, metadata
FROM access_logs
WHERE ($1::timestamptz IS NULL OR occurred_at >= $1)
  AND ($2::timestamptz IS NULL OR occurred_at < $2)
  AND ($3::text IS NULL OR user_id = $3)
  AND ($4::text IS NULL OR event_type = $4)
  AND ($5::text IS NULL OR route_id LIKE $5 || '%' ESCAPE '\')
ORDER BY occurred_at DESC, id
LIMIT $6 OFFSET $7`

// Timeline pages through access_logs newest first.
func (s *PGStore) Timeline(ctx context.Context, filters TimelineFilters) (Result, error) {
	if s == nil || s.db == nil {
		return Result{}, ErrStoreNotConfigured
	}
	page, pageSize := filters.normalized()
	offset := (page - 1) * pageSize
	rows, err := s.db.Query(ctx, timelineQuery,
		toPgTime(filters.From), toPgTime(filters.To),
		optionalText(filters.UserID), optionalText(string(filters.EventType)), optionalText(likePrefix.Replace(filters.RoutePrefix)),
		pageSize+1, offset)
	if err != nil {
		return Result{}, fmt.Errorf("audit: query timeline: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0, pageSize+1)
	for rows.Next() {
		var (
			e         Entry
			eventType string
			at        pgtype.Timestamptz
			ip, ua    pgtype.Text
			meta      []byte
		)
		if err := rows.Scan(&e.ID, &e.UserID, &e.RouteID, &eventType, &at, &ip, &ua, &meta); err != nil {
			return Result{}, fmt.Errorf("audit: scan timeline: %w", err)
		}
		e.EventType = EventType(eventType)
		if at.Valid {
			e.Timestamp = at.Time
		}
		e.IPAddress = ip.String
		e.UserAgent = ua.String
		if len(meta) > 0 {
			_ = json.Unmarshal(meta, &e.Metadata)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return Result{}, fmt.Errorf("audit: iterate timeline: %w", err)
	}
	return paginate(entries, page, pageSize), nil
}

func toPgTime(t time.Time) pgtype.Timestamptz {
	if t.IsZero() {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: t, Valid: true}
}

func optionalText(value string) pgtype.Text {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: trimmed, Valid: true}
}

// likePrefix escapes LIKE wildcards so a route filter matches literally.
var likePrefix = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

var _ Store = (*PGStore)(nil)
