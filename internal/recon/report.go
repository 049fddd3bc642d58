package recon

import "gstrecon/internal"

// Aggregate rolls every match outcome into summary counts and a compliance
// verdict. Classification is ordered, first match wins:
//
//	COMPLIANT            no discrepancies, nothing missing, nothing extra
//	MINOR_DISCREPANCIES  few findings and none beyond twice its tolerance
//	MAJOR_DISCREPANCIES  anything larger, but matched ratio still acceptable
//	NON_COMPLIANT        matched ratio below the floor
//
// The thresholds are policy defaults, not statute; keep them configurable.
func Aggregate(cfg Config, pairs []internal.MatchPair, missing, extra []internal.Residue) internal.ReportCard {
	summary := internal.Summary{
		TotalInvoicesExtracted: len(pairs) + len(missing),
		TotalInvoicesGSTR2B:    len(pairs) + len(extra),
		MissingFromGSTR2B:      len(missing),
		ExtraInGSTR2B:          len(extra),
	}

	mismatches := make([]internal.MismatchDetail, 0)
	hasMajor := false
	for _, pair := range pairs {
		if !pair.Discrepant() {
			summary.SuccessfullyMatched++
			continue
		}
		summary.DiscrepanciesFound++
		texts := make([]string, 0, len(pair.Issues))
		for _, issue := range pair.Issues {
			texts = append(texts, issue.Message)
			if issue.Severity == internal.SeverityMajor {
				hasMajor = true
			}
		}
		mismatches = append(mismatches, internal.MismatchDetail{
			InvoiceNumber: pair.Extracted.InvoiceNumber,
			MatchScore:    pair.MatchScore,
			Issues:        texts,
		})
	}

	summary.ComplianceStatus = classify(cfg, summary, hasMajor)

	return internal.ReportCard{
		Summary: summary,
		Detail:  internal.ReportDetail{Mismatches: mismatches},
		Pairs:   pairs,
		Missing: missing,
		Extra:   extra,
	}
}

func classify(cfg Config, s internal.Summary, hasMajor bool) internal.ComplianceStatus {
	findings := s.DiscrepanciesFound + s.MissingFromGSTR2B + s.ExtraInGSTR2B
	if findings == 0 {
		return internal.Compliant
	}
	if findings <= cfg.MinorIssueLimit && !hasMajor {
		return internal.MinorDiscrepancies
	}
	matched := s.SuccessfullyMatched + s.DiscrepanciesFound
	ratio := 0.0
	if s.TotalInvoicesExtracted > 0 {
		ratio = float64(matched) / float64(s.TotalInvoicesExtracted)
	}
	if ratio >= cfg.MatchedRatioFloor {
		return internal.MajorDiscrepancies
	}
	return internal.NonCompliant
}
