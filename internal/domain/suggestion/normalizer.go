package suggestion

import (
	"github.com/google/uuid"
)

// IDGenerator issues suggestion ids. Implementations must be safe for
// concurrent use.
type IDGenerator interface {
	NewID() string
}

// UUIDGenerator issues random v4 UUIDs.
type UUIDGenerator struct{}

func (UUIDGenerator) NewID() string { return uuid.NewString() }

// NormalizerOption configures a Normalizer.
type NormalizerOption func(*Normalizer)

// WithIDGenerator replaces the default UUID generator.
func WithIDGenerator(ids IDGenerator) NormalizerOption {
	return func(n *Normalizer) {
		if ids != nil {
			n.ids = ids
		}
	}
}

// WithSummaryFallback makes the normalizer emit a single "Clinical Analysis
// Summary" card from the payload's raw_text when no section matched.
func WithSummaryFallback(enabled bool) NormalizerOption {
	return func(n *Normalizer) { n.summaryFallback = enabled }
}

// Normalizer converts raw agent results into ordered suggestion cards. It
// holds no mutable state and may be shared across goroutines.
type Normalizer struct {
	ids             IDGenerator
	summaryFallback bool
}

func NewNormalizer(opts ...NormalizerOption) *Normalizer {
	n := &Normalizer{ids: UUIDGenerator{}}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Normalize never fails: unusable input yields an empty list.
func (n *Normalizer) Normalize(in RawInput) []*Suggestion {
	out, _ := n.NormalizeChecked(in)
	return out
}

// NormalizeChecked is Normalize plus the reason the payload could not be
// read, if any. The returned list is never nil.
func (n *Normalizer) NormalizeChecked(in RawInput) ([]*Suggestion, error) {
	out := []*Suggestion{}
	payload, err := in.payload()
	if err != nil {
		return out, err
	}

	for _, sec := range sections {
		for _, d := range sec.Extract(payload) {
			out = append(out, n.newSuggestion(d))
		}
	}

	if len(out) == 0 && n.summaryFallback {
		if summary := cleanJoined(payload["raw_text"]); summary != "" {
			out = append(out, n.newSuggestion(draft{
				Type:       TypeDiagnosis,
				Title:      "Clinical Analysis Summary",
				Content:    summary,
				Confidence: 70,
			}))
		}
	}
	return out, nil
}

func (n *Normalizer) newSuggestion(d draft) *Suggestion {
	return &Suggestion{
		ID:         n.ids.NewID(),
		Type:       d.Type,
		Title:      d.Title,
		Content:    d.Content,
		Confidence: d.Confidence,
		Status:     StatusPending,
	}
}
