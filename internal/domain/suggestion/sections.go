package suggestion

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// draft is a suggestion before it receives an id and status.
type draft struct {
	Type       Type
	Title      string
	Content    string
	Confidence int
}

// section extracts zero or more drafts from its own subtree of the payload.
type section struct {
	Name    string
	Extract func(p map[string]any) []draft
}

// sections is the output order of suggestion cards. Red flags sit right
// after the primary diagnosis so clinicians see them first.
var sections = []section{
	{Name: "primary_diagnosis", Extract: extractPrimaryDiagnosis},
	{Name: "red_flags", Extract: extractRedFlags},
	{Name: "symptoms", Extract: extractSymptoms},
	{Name: "icd_codes", Extract: extractICDCodes},
	{Name: "contraindications", Extract: extractContraindications},
	{Name: "prescriptions", Extract: extractPrescriptions},
	{Name: "immediate_management", Extract: extractImmediateManagement},
	{Name: "lifestyle", Extract: extractLifestyle},
	{Name: "follow_ups", Extract: extractFollowUps},
}

// SectionNames lists the extraction rules in output order.
func SectionNames() []string {
	names := make([]string, len(sections))
	for i, s := range sections {
		names[i] = s.Name
	}
	return names
}

const (
	defaultDiagnosisConfidence = 0.85
	defaultICDConfidence       = 0.9
	defaultRationale           = "Analysis complete."
	defaultTimeframe           = "as needed"
)

// medicationPattern flags treatment lines that read as a prescription.
// Matching is by substring, so "iv" also hits words such as "give".
var medicationPattern = regexp.MustCompile(`(?i)mg|tablet|capsule|oral|iv|dose|daily|take|amoxicillin|paracetamol|acetaminophen|ibuprofen|aspirin`)

// IsMedicationLine reports whether a cleaned treatment line belongs in the
// prescription card rather than the immediate-management card.
func IsMedicationLine(line string) bool {
	return medicationPattern.MatchString(line)
}

func extractPrimaryDiagnosis(p map[string]any) []draft {
	primary := lookup(p, "diagnosis", "primary")

	var condition, rationale string
	confidence := defaultDiagnosisConfidence
	switch t := primary.(type) {
	case string:
		condition = cleanJoined(t)
	case map[string]any:
		condition = cleanJoined(t["condition"])
		rationale = cleanJoined(t["rationale"])
		if f, ok := asFloat(t["confidence"]); ok {
			confidence = f
		}
	}
	if condition == "" {
		return nil
	}
	if rationale == "" {
		rationale = defaultRationale
	}
	return []draft{{
		Type:       TypeDiagnosis,
		Title:      "Primary Diagnosis",
		Content:    condition + "\n\nRationale: " + rationale,
		Confidence: scaleConfidence(confidence, defaultDiagnosisConfidence),
	}}
}

func extractRedFlags(p map[string]any) []draft {
	flags := Clean(lookup(p, "safety", "red_flags"))
	if len(flags) == 0 {
		return nil
	}
	return []draft{{
		Type:       TypeWarning,
		Title:      "CRITICAL: Red Flags",
		Content:    prefixLines("⚠️ ", flags),
		Confidence: 100,
	}}
}

func extractSymptoms(p map[string]any) []draft {
	primary := Clean(lookup(p, "diagnosis", "symptoms", "primary"))
	secondary := Clean(lookup(p, "diagnosis", "symptoms", "secondary"))

	var lines []string
	if len(primary) > 0 {
		lines = append(lines, "Primary: "+strings.Join(primary, ", "))
	}
	if len(secondary) > 0 {
		lines = append(lines, "Secondary: "+strings.Join(secondary, ", "))
	}
	if len(lines) == 0 {
		return nil
	}
	return []draft{{
		Type:       TypeDiagnosis,
		Title:      "Symptoms Detected",
		Content:    strings.Join(lines, "\n"),
		Confidence: 85,
	}}
}

func extractICDCodes(p map[string]any) []draft {
	var out []draft
	for _, entry := range asList(p["icd_codes"]) {
		icd, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		code := cleanJoined(icd["code"])
		description := cleanJoined(icd["description"])
		if code == "" || description == "" {
			continue
		}
		confidence := defaultICDConfidence
		if f, ok := asFloat(icd["confidence"]); ok {
			confidence = f
		}
		out = append(out, draft{
			Type:       TypeICD,
			Title:      "ICD-10 Classification",
			Content:    code + " — " + description,
			Confidence: scaleConfidence(confidence, defaultICDConfidence),
		})
	}
	return out
}

func extractContraindications(p map[string]any) []draft {
	items := Clean(lookup(p, "safety", "contraindications_found"))
	if len(items) == 0 {
		return nil
	}
	return []draft{{
		Type:       TypeWarning,
		Title:      "Personalization Alert",
		Content:    prefixLines("❌ Avoid: ", items),
		Confidence: 100,
	}}
}

// treatmentLines is the union of immediate and ongoing treatment steps.
func treatmentLines(p map[string]any) []string {
	lines := Clean(lookup(p, "treatment_plan", "immediate"))
	return append(lines, Clean(lookup(p, "treatment_plan", "ongoing"))...)
}

func extractPrescriptions(p map[string]any) []draft {
	seen := make(map[string]bool)
	var meds []string
	for _, line := range treatmentLines(p) {
		if !IsMedicationLine(line) || seen[line] {
			continue
		}
		seen[line] = true
		meds = append(meds, line)
	}
	if len(meds) == 0 {
		return nil
	}
	return []draft{{
		Type:       TypePrescription,
		Title:      "Prescription Suggestions",
		Content:    prefixLines("• ", meds),
		Confidence: 95,
	}}
}

func extractImmediateManagement(p map[string]any) []draft {
	var steps []string
	for _, line := range treatmentLines(p) {
		if !IsMedicationLine(line) {
			steps = append(steps, line)
		}
	}
	if len(steps) == 0 {
		return nil
	}
	return []draft{{
		Type:       TypeTreatment,
		Title:      "Immediate Management",
		Content:    prefixLines("• ", steps),
		Confidence: 90,
	}}
}

func extractLifestyle(p map[string]any) []draft {
	advice := Clean(lookup(p, "treatment_plan", "lifestyle"))
	if len(advice) == 0 {
		return nil
	}
	return []draft{{
		Type:       TypeTreatment,
		Title:      "Lifestyle Advice",
		Content:    prefixLines("• ", advice),
		Confidence: 80,
	}}
}

func extractFollowUps(p map[string]any) []draft {
	var lines []string
	for _, entry := range asList(p["follow_ups"]) {
		var action, timeframe string
		switch t := entry.(type) {
		case map[string]any:
			action = cleanJoined(t["action"])
			timeframe = cleanJoined(t["timeframe"])
		default:
			action = cleanJoined(t)
		}
		if action == "" {
			continue
		}
		if timeframe == "" {
			timeframe = defaultTimeframe
		}
		lines = append(lines, "• "+action+" ("+timeframe+")")
	}
	if len(lines) == 0 {
		return nil
	}
	return []draft{{
		Type:       TypeFollowUp,
		Title:      "Follow-Up Plan",
		Content:    strings.Join(lines, "\n"),
		Confidence: 90,
	}}
}

// lookup walks nested objects; any missing or non-object step yields nil.
func lookup(v any, path ...string) any {
	for _, key := range path {
		m, ok := v.(map[string]any)
		if !ok {
			return nil
		}
		v = m[key]
	}
	return v
}

// asList treats a lone object or scalar as a one-element list.
func asList(v any) []any {
	switch t := v.(type) {
	case nil:
		return nil
	case []any:
		return t
	}
	return []any{v}
}

func asFloat(v any) (float64, bool) {
	var f float64
	switch t := v.(type) {
	case json.Number:
		n, err := t.Float64()
		if err != nil {
			return 0, false
		}
		f = n
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(t), "%")), 64)
		if err != nil {
			return 0, false
		}
		f = n
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// scaleConfidence turns a [0,1] fraction into a whole percentage. Values
// in (1,100] are taken as percentages already; the result is clamped.
func scaleConfidence(f, fallback float64) int {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		f = fallback
	}
	if f <= 1 {
		f *= 100
	}
	pct := int(math.Floor(f + 0.5))
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}

func prefixLines(prefix string, items []string) string {
	lines := make([]string, len(items))
	for i, item := range items {
		lines[i] = prefix + item
	}
	return strings.Join(lines, "\n")
}
