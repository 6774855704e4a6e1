// Package samples holds the reference-audio catalogue of the voice studio:
// per-language prompt clips with example text, the sample voices offered in
// the Classic TTS dropdown, the Turbo event tags, and the advisory file
// requirements for user supplied reference clips.
//
// Catalogue paths are stored relative to a samples directory and resolved
// against it on access. A [Catalog] is immutable after construction and safe
// for concurrent use.
package samples

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var builtinCatalog []byte

// Sample is a reference clip together with the text shown next to it.
type Sample struct {
	Audio string
	Text  string
}

// Voice is a sample voice offered in the Classic TTS dropdown.
type Voice struct {
	ID          string
	Name        string
	Audio       string
	Description string
}

// Label returns the dropdown label, "{name} - {description}".
func (v Voice) Label() string {
	return v.Name + " - " + v.Description
}

// Language is a multilingual prompt record.
type Language struct {
	Code  string
	Name  string
	Audio string
	Text  string
}

// Option is a dropdown entry.
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// FileRequirements describes what a good reference clip looks like. The
// values are advisory; see [FileRequirements.Check].
type FileRequirements struct {
	Formats     []string      `yaml:"formats" json:"formats"`
	SampleRates []int         `yaml:"sample_rates" json:"sample_rates"`
	Channels    []string      `yaml:"channels" json:"channels"`
	MinDuration time.Duration `yaml:"min_duration" json:"min_duration"`
	MaxDuration time.Duration `yaml:"max_duration" json:"max_duration"`
	Quality     string        `yaml:"quality" json:"quality"`
}

// catalogFile is the YAML layout of a catalogue.
type catalogFile struct {
	DefaultTTS struct {
		Audio string `yaml:"audio"`
		Text  string `yaml:"text"`
	} `yaml:"default_tts"`
	DefaultVoice    string `yaml:"default_voice"`
	TurboText       string `yaml:"turbo_text"`
	InitialLanguage string `yaml:"initial_language"`
	Voices          []struct {
		ID          string `yaml:"id"`
		Name        string `yaml:"name"`
		Audio       string `yaml:"audio"`
		Description string `yaml:"description"`
	} `yaml:"voices"`
	Languages map[string]struct {
		Name  string `yaml:"name"`
		Audio string `yaml:"audio"`
		Text  string `yaml:"text"`
	} `yaml:"languages"`
	EventTags    []string         `yaml:"event_tags"`
	Requirements FileRequirements `yaml:"requirements"`
}

// Catalog is a loaded sample catalogue bound to a samples directory.
type Catalog struct {
	baseDir         string
	defaultTTS      Sample
	defaultVoice    string
	turboText       string
	initialLanguage string
	voices          []Voice
	languages       map[string]Language
	codes           []string
	eventTags       []string
	requirements    FileRequirements
}

// Builtin returns the catalogue that ships with the binary, bound to baseDir.
func Builtin(baseDir string) (*Catalog, error) {
	return Parse(strings.NewReader(string(builtinCatalog)), baseDir)
}

// LoadFile reads a YAML catalogue from path and binds it to baseDir.
func LoadFile(path, baseDir string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("samples: open catalogue %q: %w", path, err)
	}
	defer f.Close()
	c, err := Parse(f, baseDir)
	if err != nil {
		return nil, fmt.Errorf("samples: parse catalogue %q: %w", path, err)
	}
	return c, nil
}

// Parse decodes a YAML catalogue from r and binds it to baseDir. baseDir is
// made absolute so that resolved paths do not depend on later changes of the
// working directory.
func Parse(r io.Reader, baseDir string) (*Catalog, error) {
	var cf catalogFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cf); err != nil {
		return nil, fmt.Errorf("samples: decode yaml: %w", err)
	}

	if baseDir == "" {
		baseDir = "."
	}
	abs, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("samples: resolve base dir %q: %w", baseDir, err)
	}

	c := &Catalog{
		baseDir:         abs,
		defaultTTS:      Sample{Audio: cf.DefaultTTS.Audio, Text: cf.DefaultTTS.Text},
		defaultVoice:    cf.DefaultVoice,
		turboText:       cf.TurboText,
		initialLanguage: cf.InitialLanguage,
		languages:       make(map[string]Language, len(cf.Languages)),
		eventTags:       slices.Clone(cf.EventTags),
		requirements:    cf.Requirements,
	}

	var errs []error
	seen := make(map[string]int, len(cf.Voices))
	for i, v := range cf.Voices {
		if v.ID == "" {
			errs = append(errs, fmt.Errorf("voices[%d].id is required", i))
			continue
		}
		if prev, dup := seen[v.ID]; dup {
			errs = append(errs, fmt.Errorf("voices[%d].id %q is a duplicate of voices[%d]", i, v.ID, prev))
			continue
		}
		seen[v.ID] = i
		c.voices = append(c.voices, Voice{ID: v.ID, Name: v.Name, Audio: v.Audio, Description: v.Description})
	}
	for code, l := range cf.Languages {
		if l.Audio == "" {
			errs = append(errs, fmt.Errorf("languages.%s.audio is required", code))
		}
		c.languages[code] = Language{Code: code, Name: l.Name, Audio: l.Audio, Text: l.Text}
		c.codes = append(c.codes, code)
	}
	slices.Sort(c.codes)

	if c.defaultVoice != "" {
		if _, ok := seen[c.defaultVoice]; !ok {
			errs = append(errs, fmt.Errorf("default_voice %q is not a configured voice", c.defaultVoice))
		}
	}
	if c.initialLanguage != "" {
		if _, ok := c.languages[c.initialLanguage]; !ok {
			errs = append(errs, fmt.Errorf("initial_language %q is not a configured language", c.initialLanguage))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("samples: invalid catalogue: %w", err)
	}
	return c, nil
}

// BaseDir returns the absolute samples directory.
func (c *Catalog) BaseDir() string { return c.baseDir }

// AudioPath resolves rel against the samples directory. Absolute paths are
// returned cleaned but otherwise unchanged, so AudioPath(AudioPath(p)) ==
// AudioPath(p).
func (c *Catalog) AudioPath(rel string) string {
	if filepath.IsAbs(rel) {
		return filepath.Clean(rel)
	}
	return filepath.Join(c.baseDir, rel)
}

// Rel reports the path of p relative to the samples directory, using forward
// slashes. ok is false when p lies outside the directory.
func (c *Catalog) Rel(p string) (rel string, ok bool) {
	r, err := filepath.Rel(c.baseDir, c.AudioPath(p))
	if err != nil || r == ".." || strings.HasPrefix(r, ".."+string(filepath.Separator)) {
		return "", false
	}
	return filepath.ToSlash(r), true
}

// DefaultTTSSample returns the Classic TTS pre-fill with a resolved path.
func (c *Catalog) DefaultTTSSample() Sample {
	return Sample{Audio: c.AudioPath(c.defaultTTS.Audio), Text: c.defaultTTS.Text}
}

// DefaultVoiceID returns the voice preselected in the dropdown.
func (c *Catalog) DefaultVoiceID() string { return c.defaultVoice }

// TurboText returns the Turbo TTS pre-fill text.
func (c *Catalog) TurboText() string { return c.turboText }

// InitialLanguage returns the language preselected on the multilingual tab.
func (c *Catalog) InitialLanguage() string { return c.initialLanguage }

// EventTags returns the Turbo paralinguistic tags in display order.
func (c *Catalog) EventTags() []string { return slices.Clone(c.eventTags) }

// Requirements returns the advisory reference clip requirements.
func (c *Catalog) Requirements() FileRequirements { return c.requirements }
