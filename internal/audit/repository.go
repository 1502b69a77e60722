package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/odyssey-erp/bookkeeping/internal/platform/db"
)

// Store membaca audit_logs dari PostgreSQL.
type Store struct {
	db db.DBTX
}

// NewStore membuat Store di atas pool atau transaksi.
func NewStore(conn db.DBTX) *Store {
	return &Store{db: conn}
}

// Timeline mengembalikan baris audit sesuai filter, terbaru lebih dulu.
func (s *Store) Timeline(ctx context.Context, p WindowParams) ([]TimelineRow, error) {
	query := `SELECT occurred_at, actor_id, action, entity, entity_id, meta FROM audit_logs
WHERE tenant_id=$1
AND ($2::timestamptz IS NULL OR occurred_at >= $2)
AND ($3::timestamptz IS NULL OR occurred_at < $3)
AND ($4::text IS NULL OR actor_id = $4)
AND ($5::text IS NULL OR entity = $5)
AND ($6::text IS NULL OR entity_id = $6)
AND ($7::text IS NULL OR action = $7)
ORDER BY occurred_at DESC, id DESC`
	args := []any{p.TenantID, toPgTime(p.From), toPgTime(p.To), optionalText(p.Actor), optionalText(p.Entity), optionalText(p.EntityID), optionalText(p.Action)}
	if p.Limit > 0 {
		query += ` LIMIT $8 OFFSET $9`
		args = append(args, p.Limit, p.Offset)
	}
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("audit: timeline: %w", err)
	}
	defer rows.Close()
	var out []TimelineRow
	for rows.Next() {
		var (
			at   pgtype.Timestamptz
			row  TimelineRow
			meta []byte
		)
		if err := rows.Scan(&at, &row.Actor, &row.Action, &row.Entity, &row.EntityID, &meta); err != nil {
			return nil, err
		}
		if at.Valid {
			row.At = at.Time.UTC()
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &row.Meta); err != nil {
				return nil, fmt.Errorf("audit: decode meta: %w", err)
			}
		}
		out = append(out, row)
	}
	return out, rows.Err()
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
