package notifications

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/umar/livesync/internal/models"
)

const DefaultMaxPages = 500

// FetchAll walks pages 1..totalPages, re-reading totalPages from every
// response. On the first failure it stops and returns what it has together
// with the error; callers treat the items as a usable partial result.
// maxPages <= 0 means DefaultMaxPages.
func FetchAll(ctx context.Context, f Fetcher, maxPages int, logger *slog.Logger) ([]models.Notification, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}

	all := []models.Notification{}
	totalPages := 1
	for page := 1; page <= totalPages; page++ {
		if page > maxPages {
			err := fmt.Errorf("notification page cap %d reached (server reports %d pages)", maxPages, totalPages)
			logger.Warn("exhaustive fetch stopped", "page", page, "error", err)
			return all, err
		}
		res, err := f.FetchPage(ctx, page)
		if err != nil {
			logger.Error("exhaustive fetch aborted", "page", page, "fetched", len(all), "error", err)
			return all, err
		}
		all = append(all, res.Items...)
		totalPages = res.TotalPages
	}
	logger.Debug("exhaustive fetch complete", "pages", totalPages, "count", len(all))
	return all, nil
}
