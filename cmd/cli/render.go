package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"

	"github.com/yourusername/ytrelay-go/internal/domain"
)

// renderInfo formats metadata followed by the quality table
func renderInfo(info *domain.MediaInfo) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Title:    %s\n", info.Title)
	fmt.Fprintf(&b, "Uploader: %s\n", info.Uploader)
	fmt.Fprintf(&b, "Duration: %s\n", time.Duration(info.Duration)*time.Second)
	fmt.Fprintf(&b, "Views:    %s\n", humanize.Comma(info.ViewCount))
	fmt.Fprintf(&b, "URL:      %s\n", info.WebpageURL)
	fmt.Fprintf(&b, "Audio:    %s\n\n", sizeOrUnknown(info.AudioFilesize))
	b.WriteString(renderQualities(info.Qualities))
	b.WriteString("\n")
	return b.String()
}

func renderQualities(qualities []domain.Quality) string {
	if len(qualities) == 0 {
		return "No video qualities available"
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"Quality", "Size", "Format"})
	for _, q := range qualities {
		tw.AppendRow(table.Row{fmt.Sprintf("%dp", q.Height), sizeOrUnknown(q.Filesize), q.FormatID})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight, AlignHeader: text.AlignLeft},
		{Number: 2, Align: text.AlignRight, AlignHeader: text.AlignLeft},
	})
	return tw.Render()
}

func sizeOrUnknown(size int64) string {
	if size <= 0 {
		return "unknown"
	}
	return humanize.IBytes(uint64(size))
}

// progressLine renders one progress event for the terminal
func progressLine(event domain.ProgressEvent) string {
	switch event.Status {
	case domain.ProgressFinished:
		return fmt.Sprintf("finished: %s", event.Filename)
	case domain.ProgressError:
		return fmt.Sprintf("error: %s", event.Message)
	}

	line := fmt.Sprintf("%5.1f%%", event.Percentage)
	if event.Speed > 0 {
		line += fmt.Sprintf("  %s/s", humanize.IBytes(uint64(event.Speed)))
	}
	if event.ETA > 0 {
		line += fmt.Sprintf("  eta %s", time.Duration(event.ETA)*time.Second)
	}
	if event.Filename != "" {
		line += "  " + event.Filename
	}
	return line
}

// isTerminal reports whether w is an interactive terminal
func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// progressPrinter rewrites a single line on a terminal and prints one line
// per event otherwise.
type progressPrinter struct {
	w    io.Writer
	live bool
	last string
}

func newProgressPrinter(w io.Writer) *progressPrinter {
	return &progressPrinter{w: w, live: isTerminal(w)}
}

func (p *progressPrinter) Print(event domain.ProgressEvent) {
	line := progressLine(event)
	if !p.live {
		if line != p.last {
			fmt.Fprintln(p.w, line)
		}
		p.last = line
		return
	}

	pad := ""
	if len(p.last) > len(line) {
		pad = strings.Repeat(" ", len(p.last)-len(line))
	}
	fmt.Fprintf(p.w, "\r%s%s", line, pad)
	if event.IsTerminal() {
		fmt.Fprintln(p.w)
	}
	p.last = line
}

// byteCounter reports relay progress as bytes arrive
type byteCounter struct {
	w       io.Writer
	status  io.Writer
	live    bool
	total   int64
	printed time.Time
}

func newByteCounter(w, status io.Writer) *byteCounter {
	return &byteCounter{w: w, status: status, live: isTerminal(status)}
}

func (c *byteCounter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.total += int64(n)
	if c.live && time.Since(c.printed) > 200*time.Millisecond {
		fmt.Fprintf(c.status, "\r%s received", humanize.IBytes(uint64(c.total)))
		c.printed = time.Now()
	}
	return n, err
}

func (c *byteCounter) Done() {
	if c.live {
		fmt.Fprintln(c.status)
	}
}
