package integration

import (
	"github.com/fyrsmithlabs/stagehand/internal/stage"
)

// Built-in external module names.
const (
	ModuleJournaling    = "journaling"
	ModuleMeditation    = "meditation"
	ModuleRelationships = "relationships"
	ModuleCreativity    = "creativity"
	ModuleLearning      = "learning"
)

// DefaultMappings maps each built-in module to the stages that refine its
// output.
func DefaultMappings() map[string][]string {
	return map[string][]string{
		ModuleJournaling:    {stage.Yesod, stage.Malchut},
		ModuleMeditation:    {stage.Keter, stage.Tiferet},
		ModuleRelationships: {stage.Chesed, stage.Gevurah, stage.Tiferet},
		ModuleCreativity:    {stage.Chokmah, stage.Netzach, stage.Hod},
		ModuleLearning:      {stage.Binah, stage.Hod},
	}
}

// BuiltinModules returns template-backed implementations of the built-in
// modules so the adapter works without external services.
func BuiltinModules() []stage.Stage {
	tmpls := []stage.Template{
		{
			StageID:  ModuleJournaling,
			Focus:    "journaling",
			Keywords: []string{"journal", "write", "notice", "today", "feel"},
			Insights: []string{"Writing things down turns scattered impressions into patterns you can see"},
			Guidance: []string{"Write three lines about today before bed"},
		},
		{
			StageID:  ModuleMeditation,
			Focus:    "meditation",
			Keywords: []string{"calm", "breath", "still", "quiet", "mind"},
			Insights: []string{"A settled mind makes the next decision easier to see"},
			Guidance: []string{"Begin with five minutes of quiet breathing each morning"},
		},
		{
			StageID:  ModuleRelationships,
			Focus:    "relationships",
			Keywords: []string{"partner", "friend", "family", "trust", "together"},
			Insights: []string{"How you listen shapes how close people feel to you"},
			Guidance: []string{"Schedule one unhurried conversation with someone close this week"},
		},
		{
			StageID:  ModuleCreativity,
			Focus:    "creativity",
			Keywords: []string{"create", "idea", "art", "play", "imagine"},
			Insights: []string{"Creative work grows from small, regular experiments"},
			Guidance: []string{"Create something small without judging it"},
		},
		{
			StageID:  ModuleLearning,
			Focus:    "learning",
			Keywords: []string{"learn", "study", "understand", "skill", "practice"},
			Insights: []string{"Understanding deepens when you explain an idea in your own words"},
			Guidance: []string{"Practice one new skill for twenty minutes"},
		},
	}
	out := make([]stage.Stage, 0, len(tmpls))
	for _, t := range tmpls {
		out = append(out, stage.NewTemplateStage(t))
	}
	return out
}
