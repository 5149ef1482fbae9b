// Package audit appends best-effort audit records. Failures are logged and
// never fail the primary transaction.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/ponselpay/financing-engine/internal/domain"
)

// Entry is one (actor, action, resource, detail) audit tuple.
type Entry struct {
	Actor        domain.Actor
	Action       string
	ResourceType string
	ResourceID   string
	Detail       string
}

// Sink records audit entries.
type Sink interface {
	Record(ctx context.Context, entry Entry)
}

type sqlSink struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewSink(db *sqlx.DB, logger *zap.Logger) Sink {
	return &sqlSink{db: db, logger: logger}
}

func (s *sqlSink) Record(ctx context.Context, entry Entry) {
	query := `
		INSERT INTO audit_logs (id, actor, action, resource_type, resource_id, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := s.db.ExecContext(ctx, query,
		uuid.New(),
		entry.Actor.String(),
		entry.Action,
		entry.ResourceType,
		entry.ResourceID,
		entry.Detail,
		time.Now(),
	)
	if err != nil {
		s.logger.Warn("audit record dropped",
			zap.String("action", entry.Action),
			zap.String("resource_type", entry.ResourceType),
			zap.String("resource_id", entry.ResourceID),
			zap.Error(err),
		)
	}
}

// NopSink discards entries; used in tests.
type NopSink struct{}

func (NopSink) Record(context.Context, Entry) {}
