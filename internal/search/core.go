package search

import "strings"

type coreSkill struct {
	trigger string
	signal  string
	context string
}

var coreSkills = []coreSkill{
	{"/lets-go", "start resume begin progress initiate priority", "task work project logic flow next"},
	{"/run-task", "create build generate implement develop make new", "feature page component task logic"},
	{"/investigate", "debug analyze investigate audit verify check find fix scanner sentinel validate explore", "bug error log issue login confirm test"},
	{"/wrap-it-up", "finish complete finalize quit exit done stop end wrap", "session day close work"},
	{"SovereignFish", "polish improve refine aesthetics visuals style clean", "visual structural ui ux design"},
}

// CoreSkills returns the built-in workflow skills. Their signal words are
// also activation words, and the text is repeated to weigh term frequency
// toward them.
func CoreSkills() []SkillDoc {
	out := make([]SkillDoc, 0, len(coreSkills))
	for _, c := range coreSkills {
		words := c.signal + " " + c.context + " "
		out = append(out, SkillDoc{
			ID:              c.trigger,
			Trigger:         c.trigger,
			Name:            c.trigger,
			Description:     c.signal,
			ActivationWords: strings.Fields(c.signal),
			Text:            strings.Repeat(words, 3),
		})
	}
	return out
}
