package synthesis

import (
	"sort"
	"strings"
)

var actionMarkers = map[string]bool{
	"start":     true,
	"create":    true,
	"practice":  true,
	"build":     true,
	"establish": true,
	"begin":     true,
	"schedule":  true,
	"commit":    true,
	"write":     true,
	"set":       true,
}

// IsActionable reports whether text contains an imperative marker word.
func IsActionable(text string) bool {
	for _, w := range words(text) {
		if actionMarkers[w] {
			return true
		}
	}
	return false
}

// Theme labels.
const (
	ThemeRelational    = "relational"
	ThemeDailyPractice = "daily-practice"
	ThemeManifestation = "manifestation"
	ThemeHarmony       = "harmony"
	ThemeFoundation    = "foundation"
	ThemeGeneral       = "general"
)

type themeRule struct {
	theme    string
	keywords []string
}

// First matching rule wins.
var themeRules = []themeRule{
	{ThemeRelational, []string{"relationship", "love", "family", "friend", "kindness", "connection", "partner"}},
	{ThemeDailyPractice, []string{"daily", "each day", "every day", "morning", "routine", "habit", "practice"}},
	{ThemeManifestation, []string{"manifest", "action", "practical", "result", "create", "goal"}},
	{ThemeHarmony, []string{"balance", "harmony", "peace", "integrat"}},
	{ThemeFoundation, []string{"foundation", "stable", "ground", "root", "trust", "security"}},
}

// ClassifyTheme returns the theme for one guidance string.
func ClassifyTheme(text string) string {
	lower := strings.ToLower(text)
	for _, rule := range themeRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return rule.theme
			}
		}
	}
	return ThemeGeneral
}

// Themes returns the sorted set of themes across guidance.
func Themes(guidance []string) []string {
	set := map[string]bool{}
	for _, g := range guidance {
		set[ClassifyTheme(g)] = true
	}
	out := make([]string, 0, len(set))
	for t := range set {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Roadmap buckets guidance by time horizon. Every bucket is non-empty.
type Roadmap struct {
	Immediate []string `json:"immediate"`
	Weekly    []string `json:"weekly"`
	Monthly   []string `json:"monthly"`
	Ongoing   []string `json:"ongoing"`
}

// Default entries for empty roadmap buckets.
const (
	DefaultImmediate = "Take one small step on the clearest insight today"
	DefaultWeekly    = "Review what changed at the end of the week"
	DefaultMonthly   = "Reassess direction at the end of the month"
	DefaultOngoing   = "Keep returning to the practice that resonates most"
)

// Roadmap markers match whole words; multi-word markers match word runs.
var (
	immediateMarkers = []string{"today", "now", "immediately", "right away"}
	weeklyMarkers    = []string{"weekly", "regularly", "each week", "every week", "this week"}
	monthlyMarkers   = []string{"month", "months", "monthly", "long term", "quarter"}
)

func hasMarker(padded string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(padded, " "+m+" ") {
			return true
		}
	}
	return false
}

// BuildRoadmap classifies guidance into time buckets.
func BuildRoadmap(guidance []string) Roadmap {
	var r Roadmap
	for _, g := range guidance {
		padded := " " + strings.Join(words(g), " ") + " "
		switch {
		case hasMarker(padded, immediateMarkers):
			r.Immediate = append(r.Immediate, g)
		case hasMarker(padded, weeklyMarkers):
			r.Weekly = append(r.Weekly, g)
		case hasMarker(padded, monthlyMarkers):
			r.Monthly = append(r.Monthly, g)
		default:
			r.Ongoing = append(r.Ongoing, g)
		}
	}
	if len(r.Immediate) == 0 {
		r.Immediate = []string{DefaultImmediate}
	}
	if len(r.Weekly) == 0 {
		r.Weekly = []string{DefaultWeekly}
	}
	if len(r.Monthly) == 0 {
		r.Monthly = []string{DefaultMonthly}
	}
	if len(r.Ongoing) == 0 {
		r.Ongoing = []string{DefaultOngoing}
	}
	return r
}
