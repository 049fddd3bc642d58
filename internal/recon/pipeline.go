package recon

import (
	"github.com/sirupsen/logrus"

	"gstrecon/internal"
)

// Run executes the whole engine over two collections: normalize both sides,
// match, evaluate every pair, aggregate. It is a pure synchronous
// computation with no shared state, so it is safe to call concurrently for
// different inputs, and repeated runs over identical inputs produce an
// identical ReportCard.
func Run(cfg Config, log *logrus.Logger, extracted, gstr2b []internal.InvoiceRecord) internal.ReportCard {
	ext := NormalizeAll(extracted)
	rep := NormalizeAll(gstr2b)

	matcher := NewMatcher(cfg)
	pairs, missing, extra := matcher.Match(ext, rep)

	evaluator := NewEvaluator(cfg, log)
	pairs = evaluator.EvaluateAll(pairs)

	return Aggregate(cfg, pairs, missing, extra)
}
