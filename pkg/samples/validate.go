package samples

import "os"

// Validate returns the resolved paths of every configured clip that cannot be
// found at call time. Any stat failure counts, so a samples dir that is a
// regular file or cannot be read reports every clip. The default TTS prompt is checked first, then the
// voices in catalogue order, then the languages sorted by code. A clip
// referenced by several records is reported once per reference.
//
// Validate never fails; callers decide whether missing files matter.
func (c *Catalog) Validate() []string {
	var missing []string
	check := func(rel string) {
		p := c.AudioPath(rel)
		if _, err := os.Stat(p); err != nil {
			missing = append(missing, p)
		}
	}

	check(c.defaultTTS.Audio)
	for _, v := range c.voices {
		check(v.Audio)
	}
	for _, code := range c.codes {
		check(c.languages[code].Audio)
	}
	return missing
}

// Referenced returns every configured clip path (resolved), in the same
// order as [Catalog.Validate] checks them.
func (c *Catalog) Referenced() []string {
	out := []string{c.AudioPath(c.defaultTTS.Audio)}
	for _, v := range c.voices {
		out = append(out, c.AudioPath(v.Audio))
	}
	for _, code := range c.codes {
		out = append(out, c.AudioPath(c.languages[code].Audio))
	}
	return out
}
