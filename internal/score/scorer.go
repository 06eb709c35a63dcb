// Package score aggregates per-category evidence into a single confidence-
// scored verdict, resolving conflicts between competing pattern labels.
package score

import (
	"math"
	"sort"

	"patternguard/internal/evidence"
)

const (
	// halfSaturation controls how fast confidence saturates: a raw signal
	// (distinct files x average strength) equal to halfSaturation scores 50.
	halfSaturation = 1.5

	// singleHitCeiling caps the confidence a single evidence item can ever
	// reach. One line in one file is never near-certainty.
	singleHitCeiling = 60

	// maxEvidencePerVerdict caps the evidence list kept on a verdict.
	maxEvidencePerVerdict = 8

	// Conflict thresholds: a label enters conflict resolution once it has
	// this much evidence or this much confidence.
	minConflictEvidence   = 2
	minConflictConfidence = 25
)

// labelGroup is the per-label aggregate the scorer builds before resolution.
type labelGroup struct {
	label      string
	items      []evidence.Evidence
	confidence int
}

// Score aggregates one category's evidence into a PatternVerdict. Zero
// evidence yields the well-formed (unknown, 0) verdict, never an absent one.
// When more than one label clears the conflict threshold, the resolver picks
// a winner; every non-winning label is retained on the verdict, so no signal
// is silently dropped.
func Score(cat evidence.Category, items []evidence.Evidence) evidence.PatternVerdict {
	if len(items) == 0 {
		return evidence.UnknownVerdict(cat)
	}

	groups := groupByLabel(items)
	for i := range groups {
		groups[i].confidence = confidenceFor(groups[i].items)
	}

	winner, rejected := resolve(groups)

	verdict := evidence.PatternVerdict{
		Category:   cat,
		Label:      winner.label,
		Confidence: winner.confidence,
		Tier:       evidence.TierForConfidence(winner.confidence),
		Evidence:   rankEvidence(winner.items),
	}
	for _, r := range rejected {
		verdict.Rejected = append(verdict.Rejected, evidence.RejectedLabel{
			Label:         r.label,
			Confidence:    r.confidence,
			EvidenceCount: len(r.items),
			Evidence:      rankEvidence(r.items),
		})
	}
	return verdict
}

// confidenceFor computes the 0-100 confidence for one label's evidence:
// a saturating function of distinct supporting files x average strength.
// Many weak hits across many files can reach high confidence; a single hit
// never exceeds singleHitCeiling.
func confidenceFor(items []evidence.Evidence) int {
	if len(items) == 0 {
		return 0
	}

	files := make(map[string]bool, len(items))
	var total float64
	for _, ev := range items {
		files[ev.File] = true
		total += ev.Strength
	}
	avg := total / float64(len(items))

	raw := float64(len(files)) * avg
	score := int(math.Round(100 * raw / (raw + halfSaturation)))

	if len(items) == 1 && score > singleHitCeiling {
		score = singleHitCeiling
	}
	if score > 100 {
		score = 100
	}
	return score
}

// groupByLabel buckets evidence by pattern label, in deterministic order.
func groupByLabel(items []evidence.Evidence) []labelGroup {
	byLabel := make(map[string][]evidence.Evidence)
	for _, ev := range items {
		byLabel[ev.Label] = append(byLabel[ev.Label], ev)
	}

	labels := make([]string, 0, len(byLabel))
	for l := range byLabel {
		labels = append(labels, l)
	}
	sort.Strings(labels)

	groups := make([]labelGroup, 0, len(labels))
	for _, l := range labels {
		groups = append(groups, labelGroup{label: l, items: byLabel[l]})
	}
	return groups
}

// rankEvidence orders evidence strongest first, then most recent, then by
// file and line for determinism, capped at maxEvidencePerVerdict.
func rankEvidence(items []evidence.Evidence) []evidence.Evidence {
	ranked := make([]evidence.Evidence, len(items))
	copy(ranked, items)

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Strength != ranked[j].Strength {
			return ranked[i].Strength > ranked[j].Strength
		}
		if !ranked[i].ModTime.Equal(ranked[j].ModTime) {
			return ranked[i].ModTime.After(ranked[j].ModTime)
		}
		if ranked[i].File != ranked[j].File {
			return ranked[i].File < ranked[j].File
		}
		return ranked[i].Line < ranked[j].Line
	})

	if len(ranked) > maxEvidencePerVerdict {
		ranked = ranked[:maxEvidencePerVerdict]
	}
	return ranked
}
