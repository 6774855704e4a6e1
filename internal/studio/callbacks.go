package studio

// OnLanguageChange returns the prompt clip and example text that pre-fill
// the multilingual form for lang. Both are empty for an unknown language.
func (s *Service) OnLanguageChange(lang string) (audioPath, text string) {
	cat := s.catalog()
	return cat.DefaultAudioForLang(lang), cat.DefaultTextForLang(lang)
}

// OnVoiceChange returns the reference clip the Classic form should hold
// after the voice dropdown changes to selection.
//
// A known voice replaces the current reference only when there is none or
// the user confirmed clearing it. An unknown selection keeps currentRef.
func (s *Service) OnVoiceChange(selection, currentRef string, clearExisting bool) string {
	v, ok := s.catalog().ResolveVoice(selection)
	if !ok || v.Audio == "" {
		return currentRef
	}
	if currentRef != "" && !clearExisting {
		return currentRef
	}
	return v.Audio
}

// LanguageHint returns the catalogue code closest to an unknown lang, or "".
func (s *Service) LanguageHint(lang string) string {
	_, err := resolveLanguage(s.catalog(), lang)
	if lerr, ok := err.(*LanguageError); ok {
		return lerr.Suggestion
	}
	return ""
}
