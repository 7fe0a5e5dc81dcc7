package main

import (
	"io"
	"path/filepath"
	"time"

	"github.com/wgdzlh/georef"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

// 终端进度行
type progressPrinter struct {
	georef.Canceler
	w       io.Writer
	started time.Time
	last    string
}

func newProgressPrinter(w io.Writer) *progressPrinter {
	p := &progressPrinter{w: w, started: time.Now()}
	p.OnProgress = p.print
	return p
}

func (p *progressPrinter) print(pct float64, msg string) {
	line := printer.Sprintf("[%5.1f%%] %s", pct, msg)
	if line == p.last {
		return
	}
	p.last = line
	printer.Fprintf(p.w, "\r\033[K%s", line)
}

func (p *progressPrinter) finish() {
	if p.last != "" {
		printer.Fprintln(p.w)
	}
}

func printReport(w io.Writer, r *georef.BatchReport) {
	ok, failed := r.Succeeded(), r.Failed()
	printer.Fprintf(w, "batch %s %s: %d of %d images georeferenced in %v\n",
		r.ID, r.State, len(ok), len(r.Results), r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond))
	if len(ok) > 0 {
		printer.Fprintln(w, "succeeded:")
		for _, v := range ok {
			printer.Fprintf(w, "  %s -> %s (%dx%d px, %d inliers)\n",
				filepath.Base(v.Input), v.Output, v.Width, v.Height, v.Inliers)
		}
	}
	if len(failed) > 0 {
		printer.Fprintln(w, "failed:")
		for _, v := range failed {
			printer.Fprintf(w, "  %s [%s]: %s\n", filepath.Base(v.Input), v.KindName(), v.Message)
		}
	}
}
