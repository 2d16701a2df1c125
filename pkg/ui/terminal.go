package ui

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/mattn/go-isatty"
)

// Banner is printed at the start of a crawl
const Banner = `
    ╔══════════════════════════════════════════╗
    ║   ARCHIVE SCRAPER · THREAD MEDIA HARVEST  ║
    ╚══════════════════════════════════════════╝
`

// Color functions for terminal output
var (
	Cyan    = colorize("\033[36m%s\033[0m")
	Yellow  = colorize("\033[33m%s\033[0m")
	Red     = colorize("\033[31m%s\033[0m")
	Green   = colorize("\033[32m%s\033[0m")
	Magenta = colorize("\033[35m%s\033[0m")
	Dim     = colorize("\033[2m%s\033[0m")
)

// colorize returns a function that wraps text with ANSI color codes
func colorize(colorString string) func(string) string {
	return func(text string) string {
		return fmt.Sprintf(colorString, text)
	}
}

// Printer writes human-facing CLI output. Structured logs go to the logger;
// this is only for banners, key facts and the final summary.
type Printer struct {
	out   io.Writer
	quiet bool
	color bool
}

// NewPrinter creates a Printer. Colors are enabled only when out is a
// terminal and NO_COLOR is unset. In quiet mode only errors are printed.
func NewPrinter(out io.Writer, quiet bool) *Printer {
	color := false
	if f, ok := out.(*os.File); ok && os.Getenv("NO_COLOR") == "" {
		color = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return &Printer{out: out, quiet: quiet, color: color}
}

func (p *Printer) paint(fn func(string) string, s string) string {
	if !p.color {
		return s
	}
	return fn(s)
}

// Banner prints the application banner
func (p *Printer) Banner() {
	if p.quiet {
		return
	}
	fmt.Fprint(p.out, p.paint(Cyan, Banner))
}

// Error prints an error message in red. Errors are printed even when quiet.
func (p *Printer) Error(msg string, err error) {
	if err != nil {
		msg = msg + ": " + err.Error()
	}
	fmt.Fprintln(p.out, p.paint(Red, msg))
}

// Success prints a success message in green
func (p *Printer) Success(msg string) {
	if p.quiet {
		return
	}
	fmt.Fprintln(p.out, p.paint(Green, msg))
}

// Warning prints a warning message in yellow
func (p *Printer) Warning(msg string) {
	if p.quiet {
		return
	}
	fmt.Fprintln(p.out, p.paint(Yellow, msg))
}

// Info prints a label and value
func (p *Printer) Info(label, value string) {
	if p.quiet {
		return
	}
	fmt.Fprintf(p.out, "%s: %s\n", p.paint(Cyan, label), p.paint(Yellow, value))
}

// Highlight prints a highlighted message in magenta
func (p *Printer) Highlight(msg string) {
	if p.quiet {
		return
	}
	fmt.Fprintln(p.out, p.paint(Magenta, msg))
}

// Summary prints a titled block of counters sorted by key
func (p *Printer) Summary(title string, fields map[string]interface{}) {
	if p.quiet {
		return
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	p.Highlight(title)
	for _, k := range keys {
		fmt.Fprintf(p.out, "  %s %v\n", p.paint(Dim, k+":"), fields[k])
	}
}
