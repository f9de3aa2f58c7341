package port

import "context"

// Cache holds best-effort once-only markers. Callers set a marker only after
// the guarded action has happened, and must tolerate the cache being
// unavailable: the database compare-and-set remains the correctness guard.
type Cache interface {
	// MarkOnce sets a marker key, returning false if it already existed.
	MarkOnce(ctx context.Context, key string) (bool, error)
}
