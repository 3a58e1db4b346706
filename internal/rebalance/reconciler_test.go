package rebalance

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dansontsui/aistock-analysis/internal/models"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func newTestReconciler() *Reconciler {
	r := New(DefaultConfig())
	r.now = func() time.Time {
		return time.Date(2026, 3, 16, 17, 30, 0, 0, time.UTC)
	}
	return r
}

func heldPosition(code string, entry, current float64) models.Position {
	e := decimal.NewFromFloat(entry)
	c := decimal.NewFromFloat(current)
	return models.Position{
		Code:         code,
		Name:         "Stock " + code,
		EntryPrice:   e,
		EntryDate:    "2026-02-02",
		CurrentPrice: c,
		ROI:          models.ComputeROI(e, c),
		Status:       models.StatusHold,
	}
}

func proposedEntry(code string, price float64) models.ProposedEntry {
	return models.ProposedEntry{
		Code:         code,
		Name:         "Stock " + code,
		Industry:     "Semiconductors",
		Reason:       "momentum pick",
		CurrentPrice: price,
	}
}

func prices(pairs map[string]float64) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(pairs))
	for code, px := range pairs {
		out[code] = decimal.NewFromFloat(px)
	}
	return out
}

func finalistCodes(res Result) []string {
	codes := make([]string, 0, len(res.Finalists))
	for _, f := range res.Finalists {
		codes = append(codes, f.Code)
	}
	return codes
}

// ---------------------------------------------------------------------------
// Keep guarantee
// ---------------------------------------------------------------------------

func TestReconcile_KeeperSurvivesEmptyProposal(t *testing.T) {
	keeper := heldPosition("2330", 500, 520)
	in := Input{
		PriorBook:   []models.Position{keeper},
		Keepers:     []models.Position{keeper},
		FreshPrices: prices(map[string]float64{"2330": 520}),
	}

	res := newTestReconciler().Reconcile(in)

	require.Len(t, res.Finalists, 1)
	assert.Empty(t, res.Sold)

	got := res.Finalists[0]
	assert.Equal(t, "2330", got.Code)
	assert.Equal(t, models.StatusHold, got.Status)
	assert.True(t, got.EntryPrice.Equal(decimal.NewFromInt(500)), "entry price must carry over")
	assert.Equal(t, "2026-02-02", got.EntryDate, "entry date must not be re-dated")
	assert.Equal(t, forcedKeepReason, got.Reason)
	assert.True(t, got.ROI.Equal(decimal.NewFromInt(4)))
}

func TestReconcile_KeeperSurvivesCrowdedProposal(t *testing.T) {
	keeper := heldPosition("2330", 500, 520)
	proposal := []models.ProposedEntry{
		proposedEntry("1101", 35), proposedEntry("2002", 28),
		proposedEntry("2317", 190), proposedEntry("2454", 1200),
		proposedEntry("2603", 160), proposedEntry("3008", 2400),
	}
	in := Input{
		PriorBook:   []models.Position{keeper},
		Keepers:     []models.Position{keeper},
		Proposal:    proposal,
		FreshPrices: prices(map[string]float64{"2330": 520}),
	}

	res := newTestReconciler().Reconcile(in)

	require.Len(t, res.Finalists, 5)
	assert.Contains(t, finalistCodes(res), "2330")
	assert.Empty(t, res.Sold)
}

func TestReconcile_KeeperListedInProposalStillOutranksNewEntries(t *testing.T) {
	keeper := heldPosition("2330", 500, 520)
	// proposal lists the keeper last, after five new names
	proposal := []models.ProposedEntry{
		proposedEntry("1101", 35), proposedEntry("2002", 28),
		proposedEntry("2317", 190), proposedEntry("2454", 1200),
		proposedEntry("2603", 160), proposedEntry("2330", 520),
	}
	in := Input{
		PriorBook: []models.Position{keeper},
		Keepers:   []models.Position{keeper},
		Proposal:  proposal,
	}

	res := newTestReconciler().Reconcile(in)

	require.Len(t, res.Finalists, 5)
	assert.Contains(t, finalistCodes(res), "2330")
	assert.Empty(t, res.Sold)
}

// ---------------------------------------------------------------------------
// Size bound and truncation
// ---------------------------------------------------------------------------

func TestReconcile_SevenProposalsTruncateToFive(t *testing.T) {
	proposal := []models.ProposedEntry{
		proposedEntry("1101", 35), proposedEntry("2002", 28),
		proposedEntry("2317", 190), proposedEntry("2330", 520),
		proposedEntry("2454", 1200), proposedEntry("2603", 160),
		proposedEntry("3008", 2400),
	}

	res := newTestReconciler().Reconcile(Input{Proposal: proposal})

	require.Len(t, res.Finalists, 5)
	assert.Equal(t, []string{"1101", "2002", "2317", "2330", "2454"}, finalistCodes(res))
	assert.Empty(t, res.Sold, "never-held entries are omitted, not sold")
}

func TestReconcile_KeeperOverflowDropsLowestROI(t *testing.T) {
	keepers := []models.Position{
		heldPosition("1101", 100, 110), // +10%
		heldPosition("2002", 100, 102), // +2%
		heldPosition("2317", 100, 108), // +8%
		heldPosition("2330", 100, 105), // +5%
		heldPosition("2454", 100, 101), // +1%   <- dropped
		heldPosition("2603", 100, 106), // +6%
	}
	in := Input{PriorBook: keepers, Keepers: keepers}

	res := newTestReconciler().Reconcile(in)

	require.Len(t, res.Finalists, 5)
	assert.NotContains(t, finalistCodes(res), "2454")
	require.Len(t, res.Sold, 1)
	assert.Equal(t, "2454", res.Sold[0].Code)
	assert.Equal(t, "portfolio rebalanced", res.Sold[0].Reason)
}

// ---------------------------------------------------------------------------
// Sold construction
// ---------------------------------------------------------------------------

func TestReconcile_LeaverSoldWithFirewallReason(t *testing.T) {
	keeper := heldPosition("2330", 500, 520)
	leaver := heldPosition("2603", 200, 170)
	in := Input{
		PriorBook:     []models.Position{keeper, leaver},
		Keepers:       []models.Position{keeper},
		LeaverReasons: map[string]string{"2603": "technical sell signal: RSI weak"},
		FreshPrices:   prices(map[string]float64{"2330": 520, "2603": 168}),
	}

	res := newTestReconciler().Reconcile(in)

	assert.Equal(t, []string{"2330"}, finalistCodes(res))
	require.Len(t, res.Sold, 1)

	s := res.Sold[0]
	assert.Equal(t, "2603", s.Code)
	assert.Equal(t, "technical sell signal: RSI weak", s.Reason)
	assert.True(t, s.ExitPrice.Equal(decimal.NewFromInt(168)), "exit uses fresh price")
	assert.True(t, s.ROI.Equal(decimal.NewFromInt(-16)))
	assert.Equal(t, "2026-03-16", s.SoldDate)
}

func TestReconcile_SoldExitFallsBackToLastKnownPrice(t *testing.T) {
	leaver := heldPosition("2603", 200, 170)
	in := Input{
		PriorBook:     []models.Position{leaver},
		LeaverReasons: map[string]string{"2603": "technical sell signal: below MA20"},
	}

	res := newTestReconciler().Reconcile(in)

	require.Len(t, res.Sold, 1)
	assert.True(t, res.Sold[0].ExitPrice.Equal(decimal.NewFromInt(170)))
}

func TestReconcile_DuplicatePriorBookRowsSoldOnce(t *testing.T) {
	leaver := heldPosition("2603", 200, 170)
	dup := leaver
	dup.Code = " 2603.TW "
	in := Input{PriorBook: []models.Position{leaver, dup}}

	res := newTestReconciler().Reconcile(in)

	require.Len(t, res.Sold, 1)
	assert.Equal(t, "2603", res.Sold[0].Code)
}

// ---------------------------------------------------------------------------
// Stop-loss
// ---------------------------------------------------------------------------

func TestReconcile_StopLossOverridesKeepGuarantee(t *testing.T) {
	keeper := heldPosition("2330", 500, 440) // -12%
	in := Input{
		PriorBook:   []models.Position{keeper},
		Keepers:     []models.Position{keeper},
		FreshPrices: prices(map[string]float64{"2330": 440}),
	}

	res := newTestReconciler().Reconcile(in)

	assert.Empty(t, res.Finalists)
	require.Len(t, res.Sold, 1)
	assert.Contains(t, res.Sold[0].Reason, "stop loss")
	assert.True(t, res.Sold[0].ROI.Equal(decimal.NewFromInt(-12)))
}

func TestReconcile_StopLossBoundaryExitsAtExactlyMinusTen(t *testing.T) {
	keeper := heldPosition("2330", 500, 450) // exactly -10%
	in := Input{
		PriorBook: []models.Position{keeper},
		Keepers:   []models.Position{keeper},
	}

	res := newTestReconciler().Reconcile(in)

	assert.Empty(t, res.Finalists)
	require.Len(t, res.Sold, 1)
}

func TestReconcile_SmallLossStaysHeld(t *testing.T) {
	keeper := heldPosition("2330", 500, 460) // -8%
	in := Input{
		PriorBook: []models.Position{keeper},
		Keepers:   []models.Position{keeper},
	}

	res := newTestReconciler().Reconcile(in)

	require.Len(t, res.Finalists, 1)
	assert.Empty(t, res.Sold)
}

func TestReconcile_UnpricedPositionNotStopLossed(t *testing.T) {
	keeper := heldPosition("2330", 500, 0)
	keeper.CurrentPrice = decimal.Zero
	keeper.ROI = decimal.Zero
	in := Input{
		PriorBook: []models.Position{keeper},
		Keepers:   []models.Position{keeper},
	}

	res := newTestReconciler().Reconcile(in)

	require.Len(t, res.Finalists, 1, "unknown quote must not trigger the stop-loss")
}

// ---------------------------------------------------------------------------
// Entry resolution
// ---------------------------------------------------------------------------

func TestReconcile_NewEntryFirstSight(t *testing.T) {
	in := Input{
		Proposal:    []models.ProposedEntry{proposedEntry("2454", 1200)},
		FreshPrices: prices(map[string]float64{"2454": 1180}),
	}

	res := newTestReconciler().Reconcile(in)

	require.Len(t, res.Finalists, 1)
	got := res.Finalists[0]
	assert.Equal(t, models.StatusNew, got.Status)
	assert.True(t, got.CurrentPrice.Equal(decimal.NewFromInt(1180)), "fresh price beats proposal price")
	assert.True(t, got.EntryPrice.Equal(got.CurrentPrice))
	assert.Equal(t, "2026-03-16", got.EntryDate)
	assert.True(t, got.ROI.IsZero())
}

func TestReconcile_NewEntryFallsBackToProposalPrice(t *testing.T) {
	res := newTestReconciler().Reconcile(Input{
		Proposal: []models.ProposedEntry{proposedEntry("2454", 1200)},
	})

	require.Len(t, res.Finalists, 1)
	assert.True(t, res.Finalists[0].CurrentPrice.Equal(decimal.NewFromInt(1200)))
}

func TestReconcile_ZeroEntryPriceSelfHeals(t *testing.T) {
	broken := heldPosition("2330", 0, 520)
	broken.EntryPrice = decimal.Zero
	in := Input{
		PriorBook:   []models.Position{broken},
		Keepers:     []models.Position{broken},
		FreshPrices: prices(map[string]float64{"2330": 520}),
	}

	res := newTestReconciler().Reconcile(in)

	require.Len(t, res.Finalists, 1)
	got := res.Finalists[0]
	assert.True(t, got.EntryPrice.Equal(decimal.NewFromInt(520)))
	assert.Equal(t, "2026-03-16", got.EntryDate)
	assert.Equal(t, models.StatusHold, got.Status)
	assert.True(t, got.ROI.IsZero())
}

func TestReconcile_KeeperWithoutFreshPriceKeepsStaleQuote(t *testing.T) {
	keeper := heldPosition("2330", 500, 515)
	in := Input{
		PriorBook: []models.Position{keeper},
		Keepers:   []models.Position{keeper},
	}

	res := newTestReconciler().Reconcile(in)

	require.Len(t, res.Finalists, 1)
	assert.True(t, res.Finalists[0].CurrentPrice.Equal(decimal.NewFromInt(515)))
	assert.True(t, res.Finalists[0].ROI.Equal(decimal.NewFromInt(3)))
}

// ---------------------------------------------------------------------------
// Dedupe and canonicalization
// ---------------------------------------------------------------------------

func TestReconcile_DuplicateProposalLastMetadataWins(t *testing.T) {
	first := proposedEntry("2454", 1200)
	second := proposedEntry("2454.TW", 1250)
	second.Reason = "updated pick"
	in := Input{Proposal: []models.ProposedEntry{first, second}}

	res := newTestReconciler().Reconcile(in)

	require.Len(t, res.Finalists, 1)
	assert.Equal(t, "updated pick", res.Finalists[0].Reason)
	assert.True(t, res.Finalists[0].CurrentPrice.Equal(decimal.NewFromInt(1250)))
}

func TestReconcile_ReproposedKeeperKeepsEntryData(t *testing.T) {
	keeper := heldPosition("2330", 500, 520)
	repick := proposedEntry(" 2330.tw ", 525)
	repick.Reason = "still strong"
	in := Input{
		PriorBook: []models.Position{keeper},
		Keepers:   []models.Position{keeper, keeper},
		Proposal:  []models.ProposedEntry{repick},
	}

	res := newTestReconciler().Reconcile(in)

	require.Len(t, res.Finalists, 1)
	got := res.Finalists[0]
	assert.Equal(t, "2330", got.Code)
	assert.Equal(t, "still strong", got.Reason, "proposal metadata wins for a re-proposed keeper")
	assert.True(t, got.EntryPrice.Equal(decimal.NewFromInt(500)), "entry data still carries from the book")
	assert.Equal(t, "2026-02-02", got.EntryDate)
	assert.Equal(t, models.StatusHold, got.Status)
}

// ---------------------------------------------------------------------------
// Idempotence
// ---------------------------------------------------------------------------

func TestReconcile_IdempotentOnKeepers(t *testing.T) {
	keeper := heldPosition("2330", 500, 520)
	fresh := prices(map[string]float64{"2330": 520})
	r := newTestReconciler()

	first := r.Reconcile(Input{
		PriorBook:   []models.Position{keeper},
		Keepers:     []models.Position{keeper},
		FreshPrices: fresh,
	})
	require.Len(t, first.Finalists, 1)
	require.Empty(t, first.Sold)

	second := r.Reconcile(Input{
		PriorBook:   first.Finalists,
		Keepers:     first.Finalists,
		FreshPrices: fresh,
	})

	assert.Equal(t, first.Finalists, second.Finalists)
	assert.Empty(t, second.Sold)
}
