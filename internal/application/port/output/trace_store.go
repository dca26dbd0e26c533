package output

import (
	"context"

	"webmcp-agent/internal/domain/entity"
)

// TraceStore archives exported traces.
type TraceStore interface {
	Save(ctx context.Context, rec entity.TraceRecord) error
	Get(ctx context.Context, conversationID string) (*entity.TraceRecord, error)
	List(ctx context.Context, limit int) ([]entity.TraceRecord, error)
	Close() error
}
