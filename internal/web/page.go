package web

import (
	"embed"
	"net/http"
	"strings"

	"github.com/MrWong99/voxstudio/internal/observe"
	"github.com/MrWong99/voxstudio/internal/studio"
	"github.com/MrWong99/voxstudio/pkg/samples"
)

//go:embed templates/*.html.tmpl static/*
var assets embed.FS

type pageData struct {
	Root    string
	BaseURL string

	Classic      studio.ClassicParams
	ClassicRef   sampleRef
	Voices       []samples.Option
	DefaultVoice string

	Turbo     studio.TurboParams
	EventTags []string

	MTL          studio.MultilingualParams
	MTLRef       sampleRef
	Languages    []samples.Language
	LanguageRows [][]samples.Language
	MaxMTLChars  int

	Requirements requirementsResponse
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	cat := s.svc.Catalog()

	def := cat.DefaultTTSSample()
	classic := studio.DefaultClassicParams()
	classic.Text = def.Text

	turbo := studio.DefaultTurboParams()
	turbo.Text = cat.TurboText()

	lang := cat.InitialLanguage()
	mtlAudio, mtlText := s.svc.OnLanguageChange(lang)
	mtl := studio.DefaultMultilingualParams(lang)
	mtl.Text = mtlText

	langs := cat.Languages()
	mid := len(langs) / 2

	data := pageData{
		Root:         s.root,
		BaseURL:      Scheme(r) + "://" + r.Host + s.root,
		Classic:      classic,
		ClassicRef:   s.refFor(cat, def.Audio),
		Voices:       cat.VoiceOptions(),
		DefaultVoice: cat.DefaultVoiceID(),
		Turbo:        turbo,
		EventTags:    cat.EventTags(),
		MTL:          mtl,
		MTLRef:       s.refFor(cat, mtlAudio),
		Languages:    langs,
		LanguageRows: [][]samples.Language{langs[:mid], langs[mid:]},
		MaxMTLChars:  studio.MaxMultilingualChars,
		Requirements: requirementsJSON(cat.Requirements()),
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Security-Policy", cspUpgrade)
	var b strings.Builder
	if err := s.page.ExecuteTemplate(&b, "index.html.tmpl", data); err != nil {
		observe.Logger(r.Context()).Error("render page", "err", err)
		http.Error(w, "render page", http.StatusInternalServerError)
		return
	}
	w.Write([]byte(b.String()))
}
