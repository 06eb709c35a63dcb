package score

import (
	"sort"
	"time"
)

// resolve picks a single winning label from the scored groups. It is total:
// one or more groups always produces exactly one winner, and it never blends
// two labels into a synthetic third pattern.
//
// When two or more labels clear the conflict threshold, the policy is, in
// order:
//  1. a label whose supporting files are all strictly more recently
//     modified than every other candidate's wins (an in-progress migration:
//     recent code reflects the live convention);
//  2. otherwise the higher aggregate confidence wins;
//  3. ties break by evidence count, then by first-seen file path, then by
//     label, so repeated resolution of the same evidence set is identical
//     in any process.
//
// Every non-winning group is returned as rejected, whether or not it
// cleared the threshold.
func resolve(groups []labelGroup) (labelGroup, []labelGroup) {
	if len(groups) == 1 {
		return groups[0], nil
	}

	candidates := conflictCandidates(groups)

	var winner labelGroup
	if len(candidates) >= 2 {
		if recent, ok := strictlyMostRecent(candidates); ok {
			winner = recent
		} else {
			winner = bestByConfidence(candidates)
		}
	} else {
		// No real conflict: the strongest group wins outright.
		winner = bestByConfidence(groups)
	}

	rejected := make([]labelGroup, 0, len(groups)-1)
	for _, g := range groups {
		if g.label != winner.label {
			rejected = append(rejected, g)
		}
	}
	sort.Slice(rejected, func(i, j int) bool {
		if rejected[i].confidence != rejected[j].confidence {
			return rejected[i].confidence > rejected[j].confidence
		}
		return rejected[i].label < rejected[j].label
	})
	return winner, rejected
}

// conflictCandidates returns the groups clearing the minimum evidentiary
// threshold.
func conflictCandidates(groups []labelGroup) []labelGroup {
	var out []labelGroup
	for _, g := range groups {
		if len(g.items) >= minConflictEvidence || g.confidence >= minConflictConfidence {
			out = append(out, g)
		}
	}
	return out
}

// strictlyMostRecent reports the candidate whose oldest supporting file is
// newer than every other candidate's newest supporting file, if one exists.
func strictlyMostRecent(candidates []labelGroup) (labelGroup, bool) {
	for i, g := range candidates {
		oldest := oldestModTime(g)
		wins := true
		for j, other := range candidates {
			if i == j {
				continue
			}
			if !oldest.After(newestModTime(other)) {
				wins = false
				break
			}
		}
		if wins {
			return g, true
		}
	}
	return labelGroup{}, false
}

func oldestModTime(g labelGroup) time.Time {
	t := g.items[0].ModTime
	for _, ev := range g.items[1:] {
		if ev.ModTime.Before(t) {
			t = ev.ModTime
		}
	}
	return t
}

func newestModTime(g labelGroup) time.Time {
	t := g.items[0].ModTime
	for _, ev := range g.items[1:] {
		if ev.ModTime.After(t) {
			t = ev.ModTime
		}
	}
	return t
}

// bestByConfidence picks the group with the highest confidence, breaking
// ties by evidence count, first-seen file path, then label.
func bestByConfidence(groups []labelGroup) labelGroup {
	best := groups[0]
	for _, g := range groups[1:] {
		if beats(g, best) {
			best = g
		}
	}
	return best
}

func beats(a, b labelGroup) bool {
	if a.confidence != b.confidence {
		return a.confidence > b.confidence
	}
	if len(a.items) != len(b.items) {
		return len(a.items) > len(b.items)
	}
	pa, pb := firstSeenPath(a), firstSeenPath(b)
	if pa != pb {
		return pa < pb
	}
	return a.label < b.label
}

func firstSeenPath(g labelGroup) string {
	first := g.items[0].File
	for _, ev := range g.items[1:] {
		if ev.File < first {
			first = ev.File
		}
	}
	return first
}
