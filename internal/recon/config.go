package recon

// Config carries every tunable of the reconciliation engine. Defaults match
// the documented policy; callers load overrides from the environment.
type Config struct {
	// MatchMinScore is the fuzzy-match acceptance threshold in [0,1].
	MatchMinScore float64

	// AmountTolerancePct and AmountToleranceAbs define the amount tolerance:
	// max(pct of the reported value, abs rupees).
	AmountTolerancePct float64
	AmountToleranceAbs float64

	// DateToleranceDays is the allowed invoice-date drift. Zero means same
	// day only; raise it for invoice-date vs. filing-date drift.
	DateToleranceDays int

	// MinorIssueLimit caps how many findings still count as minor
	// discrepancies; MatchedRatioFloor separates major discrepancies from
	// non-compliance.
	MinorIssueLimit   int
	MatchedRatioFloor float64
}

func DefaultConfig() Config {
	return Config{
		MatchMinScore:      0.60,
		AmountTolerancePct: 1.0,
		AmountToleranceAbs: 1.0,
		DateToleranceDays:  0,
		MinorIssueLimit:    3,
		MatchedRatioFloor:  0.8,
	}
}
