package sqlite

import (
	"context"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/rushbq/Familypoints-Pages/household"
)

// Estimate reports database usage as page_count * page_size. The quota is
// the configured one, or free space plus usage on the database's
// filesystem. In-memory databases without a configured quota report 0.
func (s *Store) Estimate(ctx context.Context) (household.StorageEstimate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var pageCount, pageSize int64
	if err := s.db.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount); err != nil {
		return household.StorageEstimate{}, classify("page count", err)
	}
	if err := s.db.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize); err != nil {
		return household.StorageEstimate{}, classify("page size", err)
	}

	est := household.StorageEstimate{UsageBytes: pageCount * pageSize, QuotaBytes: s.quota}
	if est.QuotaBytes > 0 || s.inMemory() {
		return est, nil
	}

	free, err := freeBytes(filepath.Dir(s.path))
	if err != nil {
		s.logger.Debug("filesystem quota unavailable", zap.Error(err))
		return est, nil
	}
	est.QuotaBytes = free + est.UsageBytes
	return est, nil
}

func (s *Store) inMemory() bool {
	return s.path == ":memory:" || strings.Contains(s.path, "mode=memory")
}
