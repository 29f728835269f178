// Package highlight decides where key terms are marked on a rendered
// document: as rectangles on fixed-layout pages or as ranges of flowed text.
package highlight

import (
	"fmt"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/Areen-09/legal-doc-demystifier/model"
)

// RiskColor is the translucent fill used for a risk level
func RiskColor(risk model.Risk) string {
	switch risk {
	case model.RiskHigh:
		return "rgba(239, 68, 68, 0.4)"
	case model.RiskMedium:
		return "rgba(245, 158, 11, 0.4)"
	case model.RiskLow:
		return "rgba(34, 197, 94, 0.4)"
	default:
		return "rgba(156, 163, 175, 0.4)"
	}
}

// RiskClass is the CSS class flowed-text marks carry
func RiskClass(risk model.Risk) string {
	if risk == "" {
		risk = model.RiskUnknown
	}
	return "highlight-" + string(risk)
}

// Marker is a rectangle over one key term location, in page points
type Marker struct {
	Term   string     `json:"term"`
	Risk   model.Risk `json:"risk"`
	Page   int        `json:"page"`
	X      float64    `json:"x"`
	Y      float64    `json:"y"`
	Width  float64    `json:"width"`
	Height float64    `json:"height"`
	Color  string     `json:"color"`
}

// Style renders the marker as an absolutely positioned overlay that never
// takes pointer events from the page beneath.
func (m Marker) Style() string {
	return fmt.Sprintf("position:absolute;left:%gpt;top:%gpt;width:%gpt;height:%gpt;background-color:%s;pointer-events:none",
		m.X, m.Y, m.Width, m.Height, m.Color)
}

// Title is the hover text for the marker
func (m Marker) Title() string {
	return fmt.Sprintf("Risk: %s - %s", m.Risk, m.Term)
}

// PageMarkers returns a marker for every location on page, in term order.
// Locations that aren't a page >= 1 with four coordinates are skipped.
func PageMarkers(terms []model.KeyTerm, page int) []Marker {
	var markers []Marker
	for _, term := range terms {
		for _, loc := range term.Locations {
			if loc.Page != page || loc.Page < 1 || len(loc.Coords) != 4 {
				continue
			}
			x0, y0, x1, y1 := loc.Coords[0], loc.Coords[1], loc.Coords[2], loc.Coords[3]
			risk := term.Risk
			if risk == "" {
				risk = model.RiskUnknown
			}
			markers = append(markers, Marker{
				Term:   term.Term,
				Risk:   risk,
				Page:   page,
				X:      x0,
				Y:      y0,
				Width:  x1 - x0,
				Height: y1 - y0,
				Color:  RiskColor(risk),
			})
		}
	}
	return markers
}

// Mark is a byte range of flowed text to highlight
type Mark struct {
	Start int        `json:"start"`
	End   int        `json:"end"`
	Term  string     `json:"term"`
	Risk  model.Risk `json:"risk"`
}

// Class is the CSS class for the mark
func (m Mark) Class() string {
	return RiskClass(m.Risk)
}

// MarkText finds every case-insensitive occurrence of the terms that have no
// coordinates. Marks never overlap; where two terms compete, the one listed
// first wins. The result is sorted by Start.
func MarkText(content string, terms []model.KeyTerm) []Mark {
	var marks []Mark
	for _, term := range terms {
		if term.HasLocations() || strings.TrimSpace(term.Term) == "" {
			continue
		}
		risk := term.Risk
		if risk == "" {
			risk = model.RiskUnknown
		}

		for i := 0; i < len(content); {
			end, ok := matchFold(content, i, term.Term)
			if ok && !overlaps(marks, i, end) {
				marks = append(marks, Mark{Start: i, End: end, Term: term.Term, Risk: risk})
				i = end
				continue
			}
			_, size := utf8.DecodeRuneInString(content[i:])
			i += size
		}
	}

	sort.Slice(marks, func(i, j int) bool {
		return marks[i].Start < marks[j].Start
	})
	return marks
}

// matchFold reports whether term matches content at byte offset start under
// simple case folding, and where the match ends.
func matchFold(content string, start int, term string) (int, bool) {
	i := start
	for _, tr := range term {
		if i >= len(content) {
			return 0, false
		}
		cr, size := utf8.DecodeRuneInString(content[i:])
		if !equalFold(cr, tr) {
			return 0, false
		}
		i += size
	}
	return i, true
}

func equalFold(a, b rune) bool {
	if a == b {
		return true
	}
	for r := unicode.SimpleFold(a); r != a; r = unicode.SimpleFold(r) {
		if r == b {
			return true
		}
	}
	return false
}

func overlaps(marks []Mark, start, end int) bool {
	for _, m := range marks {
		if start < m.End && m.Start < end {
			return true
		}
	}
	return false
}
