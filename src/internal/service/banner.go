package service

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/fatih/color"

	"nutrishaweb/src/internal/domain"
)

const bannerWidth = 58

func serverURL(port string) string {
	return "http://localhost:" + port
}

// PrintBanner writes the operator-facing startup box. The API backend is
// listed for orientation only; nothing here contacts it.
func PrintBanner(out io.Writer, cfg domain.Config, port string) {
	title := color.New(color.FgGreen, color.Bold).SprintFunc()
	link := color.New(color.FgCyan).SprintFunc()
	dim := color.New(color.Faint).SprintFunc()

	base := serverURL(port)

	var b strings.Builder
	border := strings.Repeat("═", bannerWidth)
	line := func(text string, style func(...interface{}) string) {
		pad := bannerWidth - 2 - utf8.RuneCountInString(text)
		if pad < 0 {
			pad = 0
		}
		styled := text
		if style != nil {
			styled = style(text)
		}
		fmt.Fprintf(&b, "║  %s%s║\n", styled, strings.Repeat(" ", pad))
	}
	blank := func() { line("", nil) }

	fmt.Fprintf(&b, "\n╔%s╗\n", border)
	blank()
	line("NutrishaAI Website Server", title)
	blank()
	fmt.Fprintf(&b, "╠%s╣\n", border)
	blank()
	line("Server running at: "+base, link)
	blank()
	line("Pages available:", nil)
	for _, p := range cfg.Pages {
		line(fmt.Sprintf("• %-13s %s%s", p.Name+":", base, p.Path), link)
	}
	blank()
	line("API Backend:    "+cfg.APIBackend, link)
	line("Swagger UI:     "+cfg.APIBackend, link)
	if cfg.LiveReload {
		line("Live reload:    "+base+domain.LiveReloadScript, link)
	}
	if cfg.OnChange != "" {
		line("On change:      "+cfg.OnChange, nil)
	}
	blank()
	line("Press Ctrl+C to stop the server", dim)
	blank()
	fmt.Fprintf(&b, "╚%s╝\n", border)

	io.WriteString(out, b.String())
}
