package recon

import (
	"strings"

	"github.com/shopspring/decimal"

	"gstrecon/internal"
	"gstrecon/internal/util"
)

var hundred = decimal.NewFromInt(100)

const (
	reasonExtractionFailed = "failed to extract invoice data"
	reasonNotInGSTR2B      = "no matching invoice in GSTR2B"
	reasonNotInBooks       = "not recorded in books"
)

// Fuzzy score blend. Invoice-number similarity dominates; amount and date
// proximity break the remaining ambiguity.
const (
	fuzzyWeightNumber = 0.5
	fuzzyWeightAmount = 0.3
	fuzzyWeightDate   = 0.2
)

type Matcher struct {
	cfg Config
}

func NewMatcher(cfg Config) *Matcher {
	return &Matcher{cfg: cfg}
}

type poolEntry struct {
	rec      internal.InvoiceRecord
	key      Key
	consumed bool
}

// Match pairs extracted invoices against GSTR2B invoices: an exact pass on
// the (GSTIN, invoice number) key first, then a fuzzy pass per supplier over
// the remaining pool. Each GSTR2B record is consumed at most once, so
// pairing is 1:1. Output order follows input order on both sides, and ties
// are broken by amount closeness, then earliest GSTR2B date, then
// lexicographic invoice number, which makes the result reproducible
// bit-for-bit for identical inputs.
func (m *Matcher) Match(extracted, gstr2b []internal.InvoiceRecord) (pairs []internal.MatchPair, missing, extra []internal.Residue) {
	pairs = make([]internal.MatchPair, 0, len(extracted))
	missing = make([]internal.Residue, 0)
	extra = make([]internal.Residue, 0)

	pool := make([]poolEntry, len(gstr2b))
	index := make(map[Key][]int, len(gstr2b))
	for i, rec := range gstr2b {
		key := KeyOf(rec)
		pool[i] = poolEntry{rec: rec, key: key}
		if rec.Status != internal.StatusError {
			index[key] = append(index[key], i)
		}
	}

	// Pass 1: exact key lookup, consuming on hit.
	pending := make([]int, 0, len(extracted))
	for i, rec := range extracted {
		if rec.Status == internal.StatusError {
			missing = append(missing, internal.Residue{Record: rec, Origin: internal.MissingFromGSTR2B, Reason: reasonExtractionFailed})
			continue
		}
		hit := -1
		for _, idx := range index[KeyOf(rec)] {
			if !pool[idx].consumed {
				hit = idx
				break
			}
		}
		if hit >= 0 {
			pool[hit].consumed = true
			pairs = append(pairs, internal.MatchPair{Extracted: rec, GSTR2B: pool[hit].rec})
			continue
		}
		pending = append(pending, i)
	}

	// Pass 2: fuzzy matching against the remaining pool, same supplier only.
	for _, i := range pending {
		rec := extracted[i]
		best := m.bestCandidate(rec, pool)
		if best < 0 {
			missing = append(missing, internal.Residue{Record: rec, Origin: internal.MissingFromGSTR2B, Reason: reasonNotInGSTR2B})
			continue
		}
		pool[best].consumed = true
		pairs = append(pairs, internal.MatchPair{Extracted: rec, GSTR2B: pool[best].rec})
	}

	for _, entry := range pool {
		if !entry.consumed {
			reason := reasonNotInBooks
			if entry.rec.Status == internal.StatusError {
				reason = reasonExtractionFailed
			}
			extra = append(extra, internal.Residue{Record: entry.rec, Origin: internal.ExtraInGSTR2B, Reason: reason})
		}
	}

	return pairs, missing, extra
}

func (m *Matcher) bestCandidate(rec internal.InvoiceRecord, pool []poolEntry) int {
	key := KeyOf(rec)
	bestIdx := -1
	var bestScore, bestAmount float64

	for idx := range pool {
		entry := &pool[idx]
		if entry.consumed || entry.rec.Status == internal.StatusError || entry.key.GSTIN != key.GSTIN {
			continue
		}

		amountScore := amountCloseness(rec.TotalAmount, entry.rec.TotalAmount, m.cfg.AmountTolerancePct)
		score := fuzzyWeightNumber*util.StringSimilarity(key.InvoiceNumber, entry.key.InvoiceNumber) +
			fuzzyWeightAmount*amountScore +
			fuzzyWeightDate*dateProximity(rec, entry.rec, m.cfg.DateToleranceDays)

		if score < m.cfg.MatchMinScore {
			continue
		}
		if bestIdx < 0 || score > bestScore {
			bestIdx, bestScore, bestAmount = idx, score, amountScore
			continue
		}
		if score == bestScore && betterTie(entry, &pool[bestIdx], amountScore, bestAmount) {
			bestIdx, bestAmount = idx, amountScore
		}
	}

	return bestIdx
}

// betterTie decides whether candidate beats the incumbent at equal score:
// highest amount closeness, then earliest date, then lexicographic invoice
// number.
func betterTie(candidate, incumbent *poolEntry, candAmount, incAmount float64) bool {
	if candAmount != incAmount {
		return candAmount > incAmount
	}
	cHas, iHas := candidate.rec.HasDate(), incumbent.rec.HasDate()
	if cHas && iHas && !candidate.rec.InvoiceDate.Equal(incumbent.rec.InvoiceDate) {
		return candidate.rec.InvoiceDate.Before(incumbent.rec.InvoiceDate)
	}
	if cHas != iHas {
		return cHas
	}
	return strings.Compare(candidate.key.InvoiceNumber, incumbent.key.InvoiceNumber) < 0
}

// amountCloseness maps the relative difference of two totals into [0,1],
// reaching zero at the percentage tolerance boundary.
func amountCloseness(a, b decimal.Decimal, tolerancePct float64) float64 {
	if b.IsZero() {
		if a.IsZero() {
			return 1
		}
		return 0
	}
	diffPct, _ := a.Sub(b).Abs().Div(b.Abs()).Mul(hundred).Float64()
	if tolerancePct <= 0 {
		if diffPct == 0 {
			return 1
		}
		return 0
	}
	closeness := 1 - diffPct/tolerancePct
	if closeness < 0 {
		return 0
	}
	return closeness
}

// dateProximity is 1 on the same day and decays linearly inside the day
// tolerance window. Records without a parseable date score zero.
func dateProximity(a, b internal.InvoiceRecord, toleranceDays int) float64 {
	if !a.HasDate() || !b.HasDate() {
		return 0
	}
	days := util.DaysBetween(a.InvoiceDate, b.InvoiceDate)
	if days == 0 {
		return 1
	}
	closeness := 1 - float64(days)/float64(toleranceDays+1)
	if closeness < 0 {
		return 0
	}
	return closeness
}
