package store

import (
	"context"

	"github.com/dunamismax/enlarge/internal/domain"
)

// UsageStore receives one record per finished run.
type UsageStore interface {
	CreateUsageLog(ctx context.Context, usage domain.RunUsage) error
}
