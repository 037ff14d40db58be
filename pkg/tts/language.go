package tts

import "golang.org/x/text/language"

// DefaultLanguages is the candidate list used when none is configured.
var DefaultLanguages = []language.Tag{
	language.AmericanEnglish,
	language.BritishEnglish,
	language.English,
}

// SelectLanguage returns the first candidate, in priority order, that one
// of the installed languages can serve. The installed tag is returned so it
// can be passed back to the engine unchanged.
func SelectLanguage(candidates, installed []language.Tag) (language.Tag, bool) {
	if len(candidates) == 0 || len(installed) == 0 {
		return language.Und, false
	}

	m := language.NewMatcher(installed)
	for _, c := range candidates {
		_, idx, conf := m.Match(c)
		if conf == language.No {
			continue
		}
		return installed[idx], true
	}
	return language.Und, false
}

// ParseLanguages parses BCP 47 tags, skipping any that do not parse.
func ParseLanguages(tags []string) []language.Tag {
	out := make([]language.Tag, 0, len(tags))
	for _, s := range tags {
		t, err := language.Parse(s)
		if err != nil {
			continue
		}
		out = append(out, t)
	}
	return out
}
