package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/MrWong99/voxstudio/internal/app"
	"github.com/MrWong99/voxstudio/internal/config"
	"github.com/MrWong99/voxstudio/pkg/samples"
)

// runCheck prints the sample catalogue diagnostics to w: missing clips, the
// voice dropdown, the language panel and per-clip requirement findings. It
// returns the process exit code: 1 if the catalogue cannot be loaded or a
// clip is missing or unreadable.
func runCheck(w io.Writer, cfg *config.Config) int {
	cat, err := app.LoadCatalog(cfg.Samples)
	if err != nil {
		fmt.Fprintf(w, "catalogue: %v\n", err)
		return 1
	}
	failed := false

	fmt.Fprintf(w, "Samples directory: %s\n", cat.BaseDir())
	if cfg.Samples.CatalogFile != "" {
		fmt.Fprintf(w, "Catalogue file:    %s\n", cfg.Samples.CatalogFile)
	} else {
		fmt.Fprintln(w, "Catalogue file:    (built-in)")
	}

	// ── Missing files ─────────────────────────────────────────────────────────
	missing := cat.Validate()
	fmt.Fprintf(w, "\n== Sample files (%d referenced, %d missing)\n", len(cat.Referenced()), len(missing))
	for _, p := range missing {
		fmt.Fprintf(w, "  MISSING %s\n", p)
	}
	if len(missing) > 0 {
		failed = true
	}

	// ── Voice dropdown ────────────────────────────────────────────────────────
	fmt.Fprintf(w, "\n== Voice options (default %q)\n", cat.DefaultVoiceID())
	for _, o := range cat.VoiceOptions() {
		fmt.Fprintf(w, "  %-24s %s\n", o.Value, o.Label)
	}

	// ── Languages ─────────────────────────────────────────────────────────────
	fmt.Fprintf(w, "\n== Supported languages (initial %q)\n", cat.InitialLanguage())
	fmt.Fprintln(w, cat.SupportedLanguagesMarkdown())

	// ── Clip requirements ─────────────────────────────────────────────────────
	req := cat.Requirements()
	fmt.Fprintln(w, "\n== Reference clip requirements")
	fmt.Fprintf(w, "  formats %v, sample rates %v, channels %v, %s to %s\n",
		req.Formats, req.SampleRates, req.Channels, req.MinDuration, req.MaxDuration)

	seen := make(map[string]bool)
	for _, p := range cat.Referenced() {
		if seen[p] {
			continue
		}
		seen[p] = true
		if _, err := os.Stat(p); err != nil {
			continue
		}
		info, err := samples.Inspect(p)
		if err != nil {
			fmt.Fprintf(w, "  ERROR   %s: %v\n", p, err)
			failed = true
			continue
		}
		fmt.Fprintf(w, "  %s (%s)\n", p, describeClip(info))
		for _, finding := range req.Check(info) {
			fmt.Fprintf(w, "    - %s\n", finding)
		}
	}

	if failed {
		fmt.Fprintln(w, "\ncheck FAILED")
		return 1
	}
	fmt.Fprintln(w, "\ncheck passed")
	return 0
}

func describeClip(info samples.ClipInfo) string {
	return fmt.Sprintf("%s, %d Hz, %d ch, %d-bit, %s, %s",
		info.Format, info.SampleRate, info.Channels, info.BitDepth,
		info.Duration.Round(100*time.Millisecond), humanize.Bytes(uint64(info.Size)))
}
