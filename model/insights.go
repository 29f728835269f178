package model

import (
	"encoding/json"
	"strings"
)

// InsightBundle is the structured output of the analysis service
type InsightBundle struct {
	Summary                 string                  `json:"summary"`
	KeyTerms                []KeyTerm               `json:"keyTerms"`
	Entities                []Entity                `json:"entities"`
	DetailedInsights        []DetailedInsight       `json:"detailedInsights"`
	ContractAnalysisSummary ContractAnalysisSummary `json:"contractAnalysisSummary"`
	SuggestedQuestions      []string                `json:"suggestedQuestions"`
}

// Clone returns a deep copy of the bundle
func (b *InsightBundle) Clone() *InsightBundle {
	if b == nil {
		return nil
	}
	out := *b
	if b.KeyTerms != nil {
		out.KeyTerms = make([]KeyTerm, len(b.KeyTerms))
		for i, kt := range b.KeyTerms {
			out.KeyTerms[i] = kt
			out.KeyTerms[i].Locations = cloneLocations(kt.Locations)
		}
	}
	if b.Entities != nil {
		out.Entities = append(make([]Entity, 0, len(b.Entities)), b.Entities...)
	}
	if b.DetailedInsights != nil {
		out.DetailedInsights = make([]DetailedInsight, len(b.DetailedInsights))
		for i, d := range b.DetailedInsights {
			out.DetailedInsights[i] = d
			out.DetailedInsights[i].Items = cloneStrings(d.Items)
		}
	}
	out.ContractAnalysisSummary.Strengths = cloneStrings(b.ContractAnalysisSummary.Strengths)
	out.ContractAnalysisSummary.Concerns = cloneStrings(b.ContractAnalysisSummary.Concerns)
	out.SuggestedQuestions = cloneStrings(b.SuggestedQuestions)
	return &out
}

func cloneLocations(in []Location) []Location {
	if in == nil {
		return nil
	}
	out := make([]Location, len(in))
	for i, loc := range in {
		out[i] = Location{Page: loc.Page, Coords: append(make([]float64, 0, len(loc.Coords)), loc.Coords...)}
		if loc.Coords == nil {
			out[i].Coords = nil
		}
	}
	return out
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	return append(make([]string, 0, len(in)), in...)
}

// HasSummary reports whether the bundle carries a usable analysis
func (b *InsightBundle) HasSummary() bool {
	return b != nil && strings.TrimSpace(b.Summary) != ""
}

// KeyTerm is a literal span of the document flagged with a risk level
type KeyTerm struct {
	Term      string     `json:"term"`
	Risk      Risk       `json:"risk"`
	Locations []Location `json:"locations,omitempty"`
}

// HasLocations reports whether the term is addressed by page coordinates
func (k KeyTerm) HasLocations() bool {
	return len(k.Locations) > 0
}

// Location is a rectangle [x0, y0, x1, y1] on a 1-based page
type Location struct {
	Page   int       `json:"page"`
	Coords []float64 `json:"coords"`
}

type Entity struct {
	Name string `json:"name"`
	Role string `json:"role"`
}

type DetailedInsight struct {
	Category  string   `json:"category"`
	RiskLevel Risk     `json:"riskLevel"`
	Items     []string `json:"items"`
}

// UnmarshalJSON accepts the analysis service's "level" key as well
func (d *DetailedInsight) UnmarshalJSON(data []byte) error {
	var raw struct {
		Category  string   `json:"category"`
		RiskLevel Risk     `json:"riskLevel"`
		Level     Risk     `json:"level"`
		Items     []string `json:"items"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	d.Category = raw.Category
	d.RiskLevel = raw.RiskLevel
	if d.RiskLevel == "" {
		d.RiskLevel = raw.Level
	}
	if d.RiskLevel == "" {
		d.RiskLevel = RiskUnknown
	}
	d.Items = raw.Items
	return nil
}

type ContractAnalysisSummary struct {
	Strengths []string `json:"strengths"`
	Concerns  []string `json:"concerns"`
}

// Risk is the normalized risk level of a term or insight
type Risk string

const (
	RiskHigh    Risk = "high"
	RiskMedium  Risk = "medium"
	RiskLow     Risk = "low"
	RiskUnknown Risk = "unknown"
)

// ParseRisk maps "High", "medium", ... onto a Risk; anything else is unknown
func ParseRisk(s string) Risk {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high":
		return RiskHigh
	case "medium":
		return RiskMedium
	case "low":
		return RiskLow
	}
	return RiskUnknown
}

func (r *Risk) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*r = ParseRisk(s)
	return nil
}
