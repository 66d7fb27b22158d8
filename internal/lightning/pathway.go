package lightning

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/fyrsmithlabs/stagehand/internal/stage"
)

// Pathway is an ordered traversal of stages.
type Pathway struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Stages      []string `json:"stages"`
	// EnergyBase is the weight of the first step. Weights rise linearly to
	// 1.0 at the last step.
	EnergyBase float64 `json:"energy_base"`
}

// Energy returns the deterministic energy weight of step i (0-based).
func (p Pathway) Energy(i int) float64 {
	n := len(p.Stages)
	if n <= 1 {
		return 1
	}
	w := p.EnergyBase + (1-p.EnergyBase)*float64(i)/float64(n-1)
	return math.Round(w*1000) / 1000
}

// PathwayInfo describes a pathway to callers deciding whether to consent.
type PathwayInfo struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Stages      []string `json:"stages"`
	StageCount  int      `json:"stage_count"`
}

func (p Pathway) info() PathwayInfo {
	return PathwayInfo{
		Name:        p.Name,
		Description: p.Description,
		Stages:      append([]string(nil), p.Stages...),
		StageCount:  len(p.Stages),
	}
}

var pathways = map[string]Pathway{
	"classic": {
		Name:        "classic",
		Description: "Top-down descent from crown to kingdom",
		Stages:      stage.CanonicalOrder(),
		EnergyBase:  0.6,
	},
	"ascent": {
		Name:        "ascent",
		Description: "Bottom-up climb from kingdom to crown",
		Stages:      reversed(stage.CanonicalOrder()),
		EnergyBase:  0.55,
	},
	"centered": {
		Name:        "centered",
		Description: "Starts at the heart and moves outward",
		Stages: []string{
			stage.Tiferet, stage.Yesod, stage.Gevurah, stage.Chesed, stage.Hod,
			stage.Netzach, stage.Binah, stage.Chokmah, stage.Malchut, stage.Keter,
		},
		EnergyBase: 0.7,
	},
	"cascade": {
		Name:        "cascade",
		Description: "Moves pillar by pillar: expansion, restraint, then the middle",
		Stages: []string{
			stage.Chokmah, stage.Chesed, stage.Netzach,
			stage.Binah, stage.Gevurah, stage.Hod,
			stage.Keter, stage.Tiferet, stage.Yesod, stage.Malchut,
		},
		EnergyBase: 0.5,
	},
	"spiral": {
		Name:        "spiral",
		Description: "Alternates between the ends and spirals inward",
		Stages:      spiral(stage.CanonicalOrder()),
		EnergyBase:  0.65,
	},
}

// LookupPathway returns the named pathway.
func LookupPathway(name string) (Pathway, error) {
	p, ok := pathways[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Pathway{}, fmt.Errorf("%w: %q", ErrUnknownPathway, name)
	}
	p.Stages = append([]string(nil), p.Stages...)
	return p, nil
}

// Pathways lists every pathway sorted by name.
func Pathways() []PathwayInfo {
	out := make([]PathwayInfo, 0, len(pathways))
	for _, p := range pathways {
		out = append(out, p.info())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func reversed(ids []string) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[len(ids)-1-i] = id
	}
	return out
}

// spiral takes ids from alternating ends until they meet.
func spiral(ids []string) []string {
	out := make([]string, 0, len(ids))
	lo, hi := 0, len(ids)-1
	for lo <= hi {
		out = append(out, ids[lo])
		if lo != hi {
			out = append(out, ids[hi])
		}
		lo++
		hi--
	}
	return out
}

// Intensity selects a pacing profile.
type Intensity string

const (
	Gentle       Intensity = "gentle"
	Moderate     Intensity = "moderate"
	Intense      Intensity = "intense"
	Breakthrough Intensity = "breakthrough"
)

// Profile is the pacing of one intensity.
type Profile struct {
	Intensity Intensity     `json:"intensity"`
	BaseDelay time.Duration `json:"base_delay"`
	// PauseSteps are 0-based step indices preceded by an integration pause.
	PauseSteps    []int         `json:"pause_steps,omitempty"`
	PauseDuration time.Duration `json:"pause_duration,omitempty"`
}

var profiles = map[Intensity]Profile{
	Gentle:       {Intensity: Gentle, BaseDelay: 3 * time.Second, PauseSteps: []int{2, 5, 8}, PauseDuration: 8 * time.Second},
	Moderate:     {Intensity: Moderate, BaseDelay: 1500 * time.Millisecond, PauseSteps: []int{3, 7}, PauseDuration: 5 * time.Second},
	Intense:      {Intensity: Intense, BaseDelay: 500 * time.Millisecond, PauseSteps: []int{5}, PauseDuration: 2 * time.Second},
	Breakthrough: {Intensity: Breakthrough, BaseDelay: 50 * time.Millisecond},
}

// ProfileFor returns the pacing profile of i.
func ProfileFor(i Intensity) (Profile, error) {
	p, ok := profiles[Intensity(strings.ToLower(string(i)))]
	if !ok {
		return Profile{}, fmt.Errorf("%w: %q", ErrUnknownIntensity, i)
	}
	p.PauseSteps = append([]int(nil), p.PauseSteps...)
	return p, nil
}

// Delays returns the inter-step delay after each of n steps. The sequence
// accelerates linearly from the base delay to half of it.
func (p Profile) Delays(n int) []time.Duration {
	out := make([]time.Duration, n)
	for i := range out {
		if n == 1 {
			out[i] = p.BaseDelay
			continue
		}
		cut := time.Duration(float64(p.BaseDelay/2) * float64(i) / float64(n-1))
		out[i] = p.BaseDelay - cut
	}
	return out
}

// PausesBefore reports whether step i is preceded by an integration pause.
func (p Profile) PausesBefore(i int) bool {
	for _, s := range p.PauseSteps {
		if s == i {
			return true
		}
	}
	return false
}
