package samples

import (
	"fmt"
	"strings"
)

// Voices returns the sample voices in catalogue order with resolved paths.
func (c *Catalog) Voices() []Voice {
	out := make([]Voice, len(c.voices))
	for i, v := range c.voices {
		v.Audio = c.AudioPath(v.Audio)
		out[i] = v
	}
	return out
}

// VoiceOptions returns the dropdown entries for the sample voices, in
// catalogue order.
func (c *Catalog) VoiceOptions() []Option {
	out := make([]Option, len(c.voices))
	for i, v := range c.voices {
		out[i] = Option{Value: v.ID, Label: v.Label()}
	}
	return out
}

// VoiceByID returns the voice registered under id. An unknown id yields the
// zero Voice and false.
func (c *Catalog) VoiceByID(id string) (Voice, bool) {
	for _, v := range c.voices {
		if v.ID == id {
			v.Audio = c.AudioPath(v.Audio)
			return v, true
		}
	}
	return Voice{}, false
}

// ResolveVoice maps a dropdown selection to a voice. The selection is tried
// as a voice id first and then compared against the rendered option labels,
// because browsers and older clients sometimes submit the label instead of
// the value. When two voices share a label the first in catalogue order wins.
func (c *Catalog) ResolveVoice(selection string) (Voice, bool) {
	if v, ok := c.VoiceByID(selection); ok {
		return v, true
	}
	for _, opt := range c.VoiceOptions() {
		if opt.Label == selection {
			return c.VoiceByID(opt.Value)
		}
	}
	return Voice{}, false
}

// LanguageSamples returns every language prompt keyed by language code, with
// resolved audio paths.
func (c *Catalog) LanguageSamples() map[string]Sample {
	out := make(map[string]Sample, len(c.languages))
	for code, l := range c.languages {
		out[code] = Sample{Audio: c.AudioPath(l.Audio), Text: l.Text}
	}
	return out
}

// Language returns the record for code with a resolved audio path.
func (c *Catalog) Language(code string) (Language, bool) {
	l, ok := c.languages[code]
	if !ok {
		return Language{}, false
	}
	l.Audio = c.AudioPath(l.Audio)
	return l, true
}

// Languages returns all languages sorted by code.
func (c *Catalog) Languages() []Language {
	out := make([]Language, 0, len(c.codes))
	for _, code := range c.codes {
		l, _ := c.Language(code)
		out = append(out, l)
	}
	return out
}

// DefaultAudioForLang returns the prompt clip for code, or "" if the
// language is not in the catalogue.
func (c *Catalog) DefaultAudioForLang(code string) string {
	l, ok := c.Language(code)
	if !ok {
		return ""
	}
	return l.Audio
}

// DefaultTextForLang returns the example text for code, or "" if the
// language is not in the catalogue.
func (c *Catalog) DefaultTextForLang(code string) string {
	return c.languages[code].Text
}

// SupportedLanguagesMarkdown renders the supported-languages panel: a header
// with the total followed by the languages, sorted by code, split over two
// bullet-joined lines.
func (c *Catalog) SupportedLanguagesMarkdown() string {
	items := make([]string, 0, len(c.codes))
	for _, code := range c.codes {
		items = append(items, fmt.Sprintf("**%s** (`%s`)", c.languages[code].Name, code))
	}
	mid := len(items) / 2

	var b strings.Builder
	fmt.Fprintf(&b, "\n### 🌍 Supported Languages (%d total)\n", len(items))
	b.WriteString(strings.Join(items[:mid], " • "))
	b.WriteString("\n\n")
	b.WriteString(strings.Join(items[mid:], " • "))
	b.WriteString("\n")
	return b.String()
}

// LanguageCandidates returns the strings a misspelt language may be matched
// against: every code and every display name.
func (c *Catalog) LanguageCandidates() []string {
	out := make([]string, 0, 2*len(c.codes))
	for _, code := range c.codes {
		out = append(out, code, c.languages[code].Name)
	}
	return out
}

// LanguageCodeFor maps a code or display name (case-insensitive) to a code.
func (c *Catalog) LanguageCodeFor(s string) (string, bool) {
	if _, ok := c.languages[s]; ok {
		return s, true
	}
	for _, code := range c.codes {
		if strings.EqualFold(c.languages[code].Name, s) || strings.EqualFold(code, s) {
			return code, true
		}
	}
	return "", false
}
