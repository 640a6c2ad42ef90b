package syncer

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/kailas-cloud/propindex/internal/domain"
	"github.com/kailas-cloud/propindex/internal/domain/project"
	"github.com/kailas-cloud/propindex/internal/metrics"
)

// Summary aggregates a full resync. Partial is set when a listing page after the
// first one failed and the remaining records were never seen.
type Summary struct {
	Total         int
	Indexed       int
	Errors        int
	OwnerDegraded int
	Partial       bool
}

// Resync reindexes every record of the canonical store. Only a failure to list the
// first page aborts the run; per-record failures are logged, counted and skipped.
func (s *Service) Resync(ctx context.Context) (Summary, error) {
	if s.lister == nil {
		return Summary{}, fmt.Errorf("canonical store not configured: %w", domain.ErrUpstreamUnavailable)
	}
	if !s.resyncMu.TryLock() {
		return Summary{}, fmt.Errorf("resync already running: %w", domain.ErrConflict)
	}
	defer s.resyncMu.Unlock()

	var (
		sum      Summary
		indexed  atomic.Int64
		failed   atomic.Int64
		degraded atomic.Int64
		wg       sync.WaitGroup
	)

	seen := make(map[string]struct{})
	for skip := 0; ; {
		page, err := s.lister.ListPage(ctx, skip)
		if err != nil {
			if skip == 0 {
				observe("resync", err)
				return Summary{}, fmt.Errorf("list projects: %w", err)
			}
			s.logger.Error("Resync listing interrupted, indexing what was fetched",
				zap.Int("skip", skip), zap.Error(err))
			sum.Partial = true
			break
		}
		if len(page) == 0 {
			break
		}

		fresh := newRecords(page, seen)
		// A store that ignores skip serves the same records again.
		if len(fresh) == 0 {
			s.logger.Debug("Resync listing repeated itself, stopping", zap.Int("skip", skip))
			break
		}

		sum.Total += len(fresh)
		for _, raw := range fresh {
			wg.Add(1)
			task := func() {
				defer wg.Done()
				ownerDegraded, err := s.resyncOne(ctx, raw)
				if err != nil {
					failed.Add(1)
					metrics.ResyncRecordsTotal.WithLabelValues("error").Inc()
					return
				}
				if ownerDegraded {
					degraded.Add(1)
				}
				indexed.Add(1)
				metrics.ResyncRecordsTotal.WithLabelValues("indexed").Inc()
			}
			if err := s.pool.Submit(task); err != nil {
				wg.Done()
				failed.Add(1)
				metrics.ResyncRecordsTotal.WithLabelValues("error").Inc()
				s.logger.Error("Resync task rejected", zap.Error(err))
			}
		}

		// Page until an empty page: the store may cap limit below our page size,
		// so a short page does not mean the listing is exhausted.
		skip += len(page)
	}

	wg.Wait()

	sum.Indexed = int(indexed.Load())
	sum.Errors = int(failed.Load())
	sum.OwnerDegraded = int(degraded.Load())
	observe("resync", nil)

	s.logger.Info("Resync finished",
		zap.Int("total", sum.Total),
		zap.Int("indexed", sum.Indexed),
		zap.Int("errors", sum.Errors),
		zap.Int("owner_degraded", sum.OwnerDegraded),
		zap.Bool("partial", sum.Partial),
	)
	return sum, nil
}

func (s *Service) resyncOne(ctx context.Context, raw json.RawMessage) (ownerDegraded bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
		if err != nil {
			s.logger.Warn("Resync record failed", zap.Error(err))
		}
	}()

	p, err := project.Decode(raw)
	if err != nil {
		return false, err
	}
	res, err := s.upsert(ctx, &p)
	if err != nil {
		return false, err
	}
	return res.OwnerDegraded, nil
}

// newRecords returns the records of page not seen before, recording them in
// seen. Records are keyed by project id; ones without a readable id fall back to
// their raw bytes so they are still counted once and fail in resyncOne.
func newRecords(page []json.RawMessage, seen map[string]struct{}) []json.RawMessage {
	out := make([]json.RawMessage, 0, len(page))
	for _, raw := range page {
		key := recordKey(raw)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, raw)
	}
	return out
}

func recordKey(raw json.RawMessage) string {
	var rec struct {
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(raw, &rec); err == nil && len(rec.ID) > 0 && string(rec.ID) != "null" {
		return "id:" + string(rec.ID)
	}
	return "raw:" + string(raw)
}
