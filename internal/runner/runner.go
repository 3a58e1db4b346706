// Package runner orchestrates one end-to-end daily analysis: load the prior
// book, firewall it, fetch news candidates, screen them, ask the advisor for
// a proposal, reconcile, persist, publish. At most one run executes at a
// time; concurrent triggers are rejected, never queued.
package runner

import (
	"context"
	"errors"
	"log"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dansontsui/aistock-analysis/internal/analysis"
	"github.com/dansontsui/aistock-analysis/internal/firewall"
	"github.com/dansontsui/aistock-analysis/internal/marketdata"
	"github.com/dansontsui/aistock-analysis/internal/metrics"
	"github.com/dansontsui/aistock-analysis/internal/models"
	"github.com/dansontsui/aistock-analysis/internal/rebalance"
	"github.com/dansontsui/aistock-analysis/internal/screener"
)

// ErrRunInProgress is returned when a run is triggered while another is
// still executing.
var ErrRunInProgress = errors.New("analysis run already in progress")

// Store is the report persistence the runner needs.
type Store interface {
	GetLatestReport() (*models.Report, error)
	InsertReport(*models.Report) error
	ReplaceFinalists(id int64, finalists []models.Position) (bool, error)
}

// Advisor is the external proposal source. Both calls are allowed to fail;
// the run degrades instead of aborting.
type Advisor interface {
	Candidates(ctx context.Context) (string, []string, []models.Candidate, error)
	Propose(ctx context.Context, newsSummary string, current []models.Position, watchlist []models.ScreenedCandidate) ([]models.ProposedEntry, error)
}

// PriceCache is the shared quote cache. A manual refresh drops the book's
// cached quotes first so it reaches the upstream instead of the cache.
type PriceCache interface {
	InvalidatePrice(ctx context.Context, codes ...string) error
}

// Publisher emits run outcome events.
type Publisher interface {
	PublishReportCreated(ctx context.Context, report *models.Report) error
	PublishPositionsSold(ctx context.Context, report *models.Report) error
}

// Runner wires the pipeline together. The screener and firewall are built
// per run so they share the run's memoized market view.
type Runner struct {
	store         Store
	market        marketdata.Service
	analyzer      *analysis.Analyzer
	reconciler    *rebalance.Reconciler
	advisor       Advisor
	publisher     Publisher
	cache         PriceCache
	minVolumeLots int64

	running atomic.Bool
	now     func() time.Time
}

// New creates a Runner. cache may be nil when no quote cache is configured.
func New(store Store, market marketdata.Service, analyzer *analysis.Analyzer, rec *rebalance.Reconciler, adv Advisor, pub Publisher, cache PriceCache, minVolumeLots int64) *Runner {
	return &Runner{
		store:         store,
		market:        market,
		analyzer:      analyzer,
		reconciler:    rec,
		advisor:       adv,
		publisher:     pub,
		cache:         cache,
		minVolumeLots: minVolumeLots,
		now:           time.Now,
	}
}

// Run executes one full analysis and returns the persisted report. Only one
// run may be active; others get ErrRunInProgress immediately.
func (r *Runner) Run(ctx context.Context) (*models.Report, error) {
	if !r.running.CompareAndSwap(false, true) {
		return nil, ErrRunInProgress
	}
	defer r.running.Store(false)

	start := r.now()
	report, err := r.run(ctx)
	metrics.RunDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.RunsTotal.WithLabelValues("failure").Inc()
		return nil, err
	}
	metrics.RunsTotal.WithLabelValues("success").Inc()
	return report, nil
}

func (r *Runner) run(ctx context.Context) (*models.Report, error) {
	log.Println("[Runner] starting daily analysis")

	// One fetch per symbol per run.
	market := marketdata.NewMemo(r.market)

	prior, err := r.store.GetLatestReport()
	if err != nil {
		return nil, err
	}
	priorBook := []models.Position{}
	if prior != nil {
		priorBook = prior.Data.Finalists
	}
	log.Printf("[Runner] prior book holds %d positions", len(priorBook))

	// The keep/exit partition is fixed before the advisor is consulted.
	fw := firewall.New(market, r.analyzer)
	part := fw.Split(ctx, priorBook)

	var summary string
	var themes []string
	var candidates []models.Candidate
	if r.advisor == nil {
		log.Println("[Runner] no advisor configured, rebalancing on keepers only")
	} else if summary, themes, candidates, err = r.advisor.Candidates(ctx); err != nil {
		log.Printf("[Runner] candidate generation failed, running with empty watchlist: %v", err)
		summary, themes, candidates = "", nil, nil
	}

	watchlist := screener.New(market, r.minVolumeLots).Screen(ctx, candidates)

	var proposal []models.ProposedEntry
	if r.advisor != nil {
		if proposal, err = r.advisor.Propose(ctx, summary, priorBook, watchlist); err != nil {
			log.Printf("[Runner] proposal failed, rebalancing on keepers only: %v", err)
			proposal = nil
		}
	}

	fresh := r.freshPrices(ctx, market, priorBook, proposal)

	result := r.reconciler.Reconcile(rebalance.Input{
		PriorBook:     priorBook,
		Keepers:       part.Keepers,
		LeaverReasons: part.LeaverReasons(),
		Proposal:      proposal,
		FreshPrices:   fresh,
	})

	now := r.now()
	report := &models.Report{
		Date:        now.Format("2006-01-02"),
		Timestamp:   now.UnixMilli(),
		NewsSummary: summary,
		Data: models.ReportData{
			Candidates: watchlist,
			Finalists:  result.Finalists,
			Sold:       result.Sold,
			Themes:     themes,
		},
	}
	if err := r.store.InsertReport(report); err != nil {
		return nil, err
	}

	metrics.OpenPositions.Set(float64(len(report.Data.Finalists)))
	for _, s := range report.Data.Sold {
		metrics.PositionsSold.WithLabelValues(metrics.SoldReasonClass(s.Reason)).Inc()
	}

	if err := r.publisher.PublishReportCreated(ctx, report); err != nil {
		log.Printf("[Runner] report event publish failed: %v", err)
	}
	if err := r.publisher.PublishPositionsSold(ctx, report); err != nil {
		log.Printf("[Runner] sold event publish failed: %v", err)
	}

	log.Printf("[Runner] run complete: report %d, %d finalists, %d sold", report.ID, len(report.Data.Finalists), len(report.Data.Sold))
	return report, nil
}

// freshPrices quotes every code the reconciler may touch: the whole prior
// book plus every proposed entry. Unavailable quotes are omitted so the
// reconciler falls through to its stale-price chain.
func (r *Runner) freshPrices(ctx context.Context, market marketdata.Service, priorBook []models.Position, proposal []models.ProposedEntry) map[string]decimal.Decimal {
	fresh := make(map[string]decimal.Decimal)
	quote := func(rawCode string) {
		code := models.CanonicalCode(rawCode)
		if code == "" {
			return
		}
		if _, done := fresh[code]; done {
			return
		}
		if px := market.Price(ctx, code); px > 0 {
			fresh[code] = decimal.NewFromFloat(px)
		}
	}
	for _, p := range priorBook {
		quote(p.Code)
	}
	for _, p := range proposal {
		quote(p.Code)
	}
	return fresh
}

// RefreshPrices re-quotes the latest report's open book and persists the
// updated prices and ROIs. Entry prices are never touched. Returns the
// refreshed report, or nil when there is no history yet.
func (r *Runner) RefreshPrices(ctx context.Context) (*models.Report, error) {
	latest, err := r.store.GetLatestReport()
	if err != nil {
		return nil, err
	}
	if latest == nil {
		return nil, nil
	}

	// Drop the book's cached quotes so the refresh reaches the upstream.
	if r.cache != nil && len(latest.Data.Finalists) > 0 {
		codes := make([]string, len(latest.Data.Finalists))
		for i, pos := range latest.Data.Finalists {
			codes[i] = pos.Code
		}
		if err := r.cache.InvalidatePrice(ctx, codes...); err != nil {
			log.Printf("[Runner] quote cache invalidation failed: %v", err)
		}
	}

	market := marketdata.NewMemo(r.market)
	updated := 0
	for i := range latest.Data.Finalists {
		pos := &latest.Data.Finalists[i]
		px := market.Price(ctx, pos.Code)
		if px <= 0 {
			continue
		}
		pos.CurrentPrice = decimal.NewFromFloat(px)
		pos.ROI = models.ComputeROI(pos.EntryPrice, pos.CurrentPrice)
		updated++
	}
	if updated > 0 {
		if _, err := r.store.ReplaceFinalists(latest.ID, latest.Data.Finalists); err != nil {
			return nil, err
		}
	}
	log.Printf("[Runner] refreshed %d of %d quotes in report %d", updated, len(latest.Data.Finalists), latest.ID)
	return latest, nil
}
