// Package rebalance merges the kept book with an untrusted advisor proposal
// into the next portfolio state. The advisor output is advisory only: keepers
// survive regardless of proposal content, the book never exceeds the slot cap,
// and the hard stop-loss overrides everything including the keep guarantee.
package rebalance

import (
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dansontsui/aistock-analysis/internal/models"
)

const forcedKeepReason = "forced keep: held position retained"

// Config carries the reconciliation thresholds.
type Config struct {
	// MaxPositions is the hard slot cap for the open book.
	MaxPositions int
	// StopLossPct is the force-exit threshold, e.g. -10 exits any position
	// whose ROI is at or below -10%.
	StopLossPct float64
}

// DefaultConfig returns the production thresholds.
func DefaultConfig() Config {
	return Config{MaxPositions: 5, StopLossPct: -10}
}

// Input bundles everything a reconciliation consumes. All code lookups use
// canonical codes; callers may pass raw codes and they are normalized here.
type Input struct {
	// PriorBook is the full open book before this run, keepers and leavers.
	PriorBook []models.Position
	// Keepers are the positions guaranteed to survive (stop-loss aside).
	Keepers []models.Position
	// LeaverReasons maps canonical code to the technical exit reason.
	LeaverReasons map[string]string
	// Proposal is the advisor's suggested book. Treated as untrusted.
	Proposal []models.ProposedEntry
	// FreshPrices maps canonical code to the latest quote. Missing or
	// non-positive entries fall back to proposal prices, then stale book
	// prices.
	FreshPrices map[string]decimal.Decimal
}

// Result is the reconciled outcome of one run.
type Result struct {
	Finalists []models.Position
	Sold      []models.SoldPosition
}

// Reconciler applies the merge algorithm with fixed thresholds.
type Reconciler struct {
	cfg Config
	now func() time.Time
}

// New creates a Reconciler.
func New(cfg Config) *Reconciler {
	return &Reconciler{cfg: cfg, now: time.Now}
}

type staged struct {
	pos        models.Position
	proposalPx float64
	forced     bool
	keeper     bool
}

// Reconcile merges keepers and the proposal into the next book.
//
// Steps: canonicalize codes, re-insert keepers missing from the proposal at
// the front, dedupe (last-seen metadata wins, forced keeps are never
// overwritten), truncate to the slot cap with keepers prioritized, resolve
// prices and entry data, then apply the stop-loss. Every prior-book code
// absent from the finalists is emitted exactly once as a SoldPosition.
func (r *Reconciler) Reconcile(in Input) Result {
	today := r.now().Format("2006-01-02")

	keeperSet := make(map[string]bool, len(in.Keepers))
	for _, k := range in.Keepers {
		if code := models.CanonicalCode(k.Code); code != "" {
			keeperSet[code] = true
		}
	}

	priorByCode := make(map[string]models.Position, len(in.PriorBook))
	for _, p := range in.PriorBook {
		code := models.CanonicalCode(p.Code)
		if code == "" {
			continue
		}
		if _, ok := priorByCode[code]; !ok {
			priorByCode[code] = p
		}
	}

	proposed := make(map[string]bool, len(in.Proposal))
	for _, p := range in.Proposal {
		if code := models.CanonicalCode(p.Code); code != "" {
			proposed[code] = true
		}
	}

	// Forced keeps go to the front so truncation favors them.
	var list []staged
	index := make(map[string]int)
	for _, k := range in.Keepers {
		code := models.CanonicalCode(k.Code)
		if code == "" || proposed[code] {
			continue
		}
		if _, dup := index[code]; dup {
			continue
		}
		pos := k
		pos.Code = code
		pos.Reason = forcedKeepReason
		index[code] = len(list)
		list = append(list, staged{pos: pos, forced: true, keeper: true})
	}

	for _, p := range in.Proposal {
		code := models.CanonicalCode(p.Code)
		if code == "" {
			continue
		}
		entry := staged{
			pos: models.Position{
				Code:     code,
				Name:     p.Name,
				Industry: p.Industry,
				Reason:   p.Reason,
			},
			proposalPx: p.CurrentPrice,
			keeper:     keeperSet[code],
		}
		if i, seen := index[code]; seen {
			if list[i].forced {
				continue
			}
			list[i] = entry
			continue
		}
		index[code] = len(list)
		list = append(list, entry)
	}

	// Price and entry resolution happens before truncation so keeper
	// overflow can order by current ROI.
	for i := range list {
		r.resolve(&list[i], priorByCode, in.FreshPrices, today)
	}

	// Keepers stable-sort ahead of new entries. A proposal may list a
	// keeper anywhere; it still outranks every new entry at the cap.
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].keeper && !list[j].keeper
	})
	keeperCount := 0
	for _, s := range list {
		if s.keeper {
			keeperCount++
		}
	}
	if keeperCount > r.cfg.MaxPositions {
		seg := list[:keeperCount]
		sort.SliceStable(seg, func(i, j int) bool {
			if !seg[i].pos.ROI.Equal(seg[j].pos.ROI) {
				return seg[i].pos.ROI.GreaterThan(seg[j].pos.ROI)
			}
			return seg[i].pos.Code < seg[j].pos.Code
		})
		log.Printf("[Reconciler] keeper overflow: %d keepers for %d slots, dropping lowest ROI", keeperCount, r.cfg.MaxPositions)
	}
	if len(list) > r.cfg.MaxPositions {
		list = list[:r.cfg.MaxPositions]
	}

	// Stop-loss runs after truncation and overrides the keep guarantee.
	// Freed slots are not backfilled. Positions with no resolvable price
	// are skipped; an unknown quote is not a loss.
	stopLoss := decimal.NewFromFloat(r.cfg.StopLossPct)
	stopLossReasons := make(map[string]string)
	finalists := []models.Position{}
	for _, s := range list {
		if s.pos.CurrentPrice.IsPositive() && s.pos.ROI.LessThanOrEqual(stopLoss) {
			stopLossReasons[s.pos.Code] = fmt.Sprintf("stop loss triggered (roi %s%%)", s.pos.ROI.StringFixed(1))
			log.Printf("[Reconciler] %s force-exited: %s", s.pos.Code, stopLossReasons[s.pos.Code])
			continue
		}
		finalists = append(finalists, s.pos)
	}

	finalSet := make(map[string]bool, len(finalists))
	for _, f := range finalists {
		finalSet[f.Code] = true
	}

	sold := []models.SoldPosition{}
	seen := make(map[string]bool)
	for _, prior := range in.PriorBook {
		code := models.CanonicalCode(prior.Code)
		if code == "" || seen[code] || finalSet[code] {
			continue
		}
		seen[code] = true

		exit := prior.CurrentPrice
		if fp, ok := in.FreshPrices[code]; ok && fp.IsPositive() {
			exit = fp
		}
		reason := in.LeaverReasons[code]
		if reason == "" {
			reason = stopLossReasons[code]
		}
		if reason == "" {
			reason = "portfolio rebalanced"
		}
		sold = append(sold, models.SoldPosition{
			Code:       code,
			Name:       prior.Name,
			EntryPrice: prior.EntryPrice,
			ExitPrice:  exit,
			ROI:        models.ComputeROI(prior.EntryPrice, exit),
			Reason:     reason,
			SoldDate:   today,
		})
	}

	log.Printf("[Reconciler] reconciled: %d finalists, %d sold", len(finalists), len(sold))
	return Result{Finalists: finalists, Sold: sold}
}

// resolve fills currentPrice, entryPrice, entryDate, status and ROI for one
// staged entry. Price order: fresh quote, proposal price, stale book price,
// zero. Entry data carries from the prior book; a true new entry, or a held
// code with a zero entry price, self-heals to the current price dated today.
func (r *Reconciler) resolve(s *staged, priorByCode map[string]models.Position, fresh map[string]decimal.Decimal, today string) {
	code := s.pos.Code

	cur := decimal.Zero
	if fp, ok := fresh[code]; ok && fp.IsPositive() {
		cur = fp
	} else if s.proposalPx > 0 {
		cur = decimal.NewFromFloat(s.proposalPx)
	} else if prior, held := priorByCode[code]; held && prior.CurrentPrice.IsPositive() {
		cur = prior.CurrentPrice
	}
	s.pos.CurrentPrice = cur

	prior, held := priorByCode[code]
	if held {
		s.pos.Status = models.StatusHold
		if s.pos.Name == "" {
			s.pos.Name = prior.Name
		}
		if s.pos.Industry == "" {
			s.pos.Industry = prior.Industry
		}
	} else {
		s.pos.Status = models.StatusNew
	}
	if held && prior.EntryPrice.IsPositive() {
		s.pos.EntryPrice = prior.EntryPrice
		s.pos.EntryDate = prior.EntryDate
	} else {
		s.pos.EntryPrice = cur
		s.pos.EntryDate = today
	}
	s.pos.ROI = models.ComputeROI(s.pos.EntryPrice, s.pos.CurrentPrice)
}
