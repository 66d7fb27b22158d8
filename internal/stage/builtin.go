package stage

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
)

// Template describes a keyword-driven stage. Confidence grows with the share
// of keywords found in the input.
type Template struct {
	StageID  string
	Focus    string
	Keywords []string
	Insights []string
	Guidance []string
}

// TemplateStage is a deterministic Stage backed by a Template.
type TemplateStage struct {
	tmpl  Template
	calls atomic.Int64
}

// NewTemplateStage creates a TemplateStage.
func NewTemplateStage(t Template) *TemplateStage {
	return &TemplateStage{tmpl: t}
}

func (s *TemplateStage) ID() string { return s.tmpl.StageID }

func (s *TemplateStage) Process(ctx context.Context, input string, sctx map[string]any) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.calls.Add(1)

	if strings.TrimSpace(input) == "" {
		return &Result{StageID: s.tmpl.StageID, Error: "empty input"}, nil
	}

	lower := strings.ToLower(input)
	var matched []string
	for _, kw := range s.tmpl.Keywords {
		if strings.Contains(lower, kw) {
			matched = append(matched, kw)
		}
	}

	confidence := 0.55
	if n := len(s.tmpl.Keywords); n > 0 {
		confidence += 0.4 * float64(len(matched)) / float64(n)
	}
	if confidence > 0.95 {
		confidence = 0.95
	}

	insights := make([]string, 0, len(s.tmpl.Insights)+1)
	insights = append(insights, s.tmpl.Insights...)
	if prev, ok := sctx[ContextPreviousResults].([]Result); ok && len(prev) > 0 {
		insights = append(insights, fmt.Sprintf("The %s perspective builds on %d earlier stage(s)", s.tmpl.Focus, len(prev)))
	}

	meta := map[string]any{
		"focus":            s.tmpl.Focus,
		"matched_keywords": matched,
	}
	if pos, ok := sctx[ContextPosition]; ok {
		meta["position"] = pos
	}

	return &Result{
		StageID:    s.tmpl.StageID,
		Success:    true,
		Confidence: confidence,
		Payload: Payload{
			Insights: insights,
			Guidance: append([]string(nil), s.tmpl.Guidance...),
			Metadata: meta,
		},
	}, nil
}

func (s *TemplateStage) HealthCheck(context.Context) map[string]any {
	return map[string]any{
		"status": "healthy",
		"type":   "template",
		"focus":  s.tmpl.Focus,
		"calls":  s.calls.Load(),
	}
}

// Canonical stage IDs in registration (top-down) order.
const (
	Keter   = "keter"
	Chokmah = "chokmah"
	Binah   = "binah"
	Chesed  = "chesed"
	Gevurah = "gevurah"
	Tiferet = "tiferet"
	Netzach = "netzach"
	Hod     = "hod"
	Yesod   = "yesod"
	Malchut = "malchut"
)

// BuiltinTemplates returns the templates for the ten built-in stages.
func BuiltinTemplates() []Template {
	return []Template{
		{
			StageID:  Keter,
			Focus:    "purpose",
			Keywords: []string{"purpose", "meaning", "vision", "why", "direction", "goal"},
			Insights: []string{"Clarity about purpose shapes every later choice"},
			Guidance: []string{
				"Write down the one purpose that matters most today",
				"Reflect on what meaning this situation holds for you",
			},
		},
		{
			StageID:  Chokmah,
			Focus:    "insight",
			Keywords: []string{"idea", "insight", "creative", "new", "inspiration", "possibility"},
			Insights: []string{"Fresh ideas arrive when attention is open rather than forced"},
			Guidance: []string{
				"Create space each morning for new ideas",
				"Consider which possibility excites you most",
			},
		},
		{
			StageID:  Binah,
			Focus:    "understanding",
			Keywords: []string{"understand", "analyze", "structure", "plan", "think", "pattern"},
			Insights: []string{"Structure turns scattered thoughts into understanding"},
			Guidance: []string{
				"Build a simple plan with three concrete steps this week",
				"Notice the pattern that keeps repeating",
			},
		},
		{
			StageID:  Chesed,
			Focus:    "generosity",
			Keywords: []string{"love", "give", "kindness", "family", "friend", "relationship"},
			Insights: []string{"Generosity toward others also restores your own energy"},
			Guidance: []string{
				"Practice one act of kindness toward someone close to you today",
				"Appreciate the relationships that already support you",
			},
		},
		{
			StageID:  Gevurah,
			Focus:    "boundaries",
			Keywords: []string{"boundary", "discipline", "limit", "strength", "control", "refuse"},
			Insights: []string{"Healthy limits give generosity a sustainable shape"},
			Guidance: []string{
				"Establish one clear boundary and review it each week",
				"Recognize where saying no protects your energy",
			},
		},
		{
			StageID:  Tiferet,
			Focus:    "harmony",
			Keywords: []string{"balance", "harmony", "beauty", "conflict", "peace", "integrate"},
			Insights: []string{"Harmony comes from holding opposing needs together"},
			Guidance: []string{
				"Begin each day with five minutes of balance practice",
				"Reflect on where harmony already exists in your life",
			},
		},
		{
			StageID:  Netzach,
			Focus:    "persistence",
			Keywords: []string{"persist", "victory", "effort", "motivation", "endurance", "energy"},
			Insights: []string{"Persistence matters more than intensity over time"},
			Guidance: []string{
				"Commit to a small daily habit for the next month",
				"Honor the effort you have already made",
			},
		},
		{
			StageID:  Hod,
			Focus:    "humility",
			Keywords: []string{"gratitude", "humble", "acknowledge", "learn", "communicate", "feedback"},
			Insights: []string{"Gratitude reframes obstacles as teachers"},
			Guidance: []string{
				"Schedule a weekly gratitude review",
				"Consider what recent feedback is trying to teach you",
			},
		},
		{
			StageID:  Yesod,
			Focus:    "foundation",
			Keywords: []string{"foundation", "connect", "trust", "stable", "root", "security"},
			Insights: []string{"A stable foundation lets change happen without collapse"},
			Guidance: []string{
				"Set a regular routine that grounds your foundation",
				"Trust the connections already in place",
			},
		},
		{
			StageID:  Malchut,
			Focus:    "manifestation",
			Keywords: []string{"action", "manifest", "real", "practical", "result", "world"},
			Insights: []string{"Small practical actions make intentions real"},
			Guidance: []string{
				"Start with one practical action now",
				"Consider how long-term results grow from small steps",
			},
		},
	}
}

// Builtins returns the ten built-in template stages in canonical order.
func Builtins() []Stage {
	tmpls := BuiltinTemplates()
	out := make([]Stage, 0, len(tmpls))
	for _, t := range tmpls {
		out = append(out, NewTemplateStage(t))
	}
	return out
}

// CanonicalOrder returns the built-in stage IDs top-down.
func CanonicalOrder() []string {
	return []string{Keter, Chokmah, Binah, Chesed, Gevurah, Tiferet, Netzach, Hod, Yesod, Malchut}
}
