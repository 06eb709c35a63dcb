package evidence

import "testing"

func TestKnownLabel(t *testing.T) {
	tests := []struct {
		cat   Category
		label string
		want  bool
	}{
		{CategoryAuthentication, LabelCookieToken, true},
		{CategoryAuthentication, LabelEnvelopeSuccessError, false}, // wrong category
		{CategoryAPIResponses, LabelEnvelopeSuccessError, true},
		{CategoryErrorHandling, LabelCatchLog, true},
		{CategoryErrorHandling, LabelUnknown, false}, // never measurable
		{CategoryAuthentication, "made-up", false},
	}
	for _, tt := range tests {
		if got := KnownLabel(tt.cat, tt.label); got != tt.want {
			t.Errorf("KnownLabel(%s, %s) = %v, want %v", tt.cat, tt.label, got, tt.want)
		}
	}
}

func TestVocabularyCoversAllCategories(t *testing.T) {
	vocab := Vocabulary()
	for _, cat := range Categories() {
		labels, ok := vocab[cat]
		if !ok || len(labels) == 0 {
			t.Errorf("category %s has no vocabulary", cat)
		}
		for _, l := range labels {
			if l == LabelUnknown {
				t.Errorf("category %s vocabulary must not contain %q", cat, LabelUnknown)
			}
		}
	}
}

func TestTierForConfidence(t *testing.T) {
	tests := []struct {
		score int
		want  ConfidenceTier
	}{
		{0, TierLow},
		{39, TierLow},
		{40, TierMedium},
		{69, TierMedium},
		{70, TierHigh},
		{100, TierHigh},
	}
	for _, tt := range tests {
		if got := TierForConfidence(tt.score); got != tt.want {
			t.Errorf("TierForConfidence(%d) = %v, want %v", tt.score, got, tt.want)
		}
	}
}

func TestUnknownVerdictWellFormed(t *testing.T) {
	for _, cat := range Categories() {
		v := UnknownVerdict(cat)
		if v.Label != LabelUnknown || v.Confidence != 0 {
			t.Errorf("UnknownVerdict(%s) = (%s, %d), want (%s, 0)", cat, v.Label, v.Confidence, LabelUnknown)
		}
		if v.Category != cat {
			t.Errorf("UnknownVerdict(%s) category = %s", cat, v.Category)
		}
	}
}
