package main

import (
	"os"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
)

var stdoutIsTerminal = isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())

// formatTimestamp renders a stored RFC3339 timestamp as a relative time on
// interactive terminals and verbatim otherwise, so piped output stays
// machine-parseable.
func formatTimestamp(createdAtUTC string) string {
	if !stdoutIsTerminal {
		return createdAtUTC
	}
	parsed, err := time.Parse(time.RFC3339Nano, createdAtUTC)
	if err != nil {
		return createdAtUTC
	}
	return humanize.Time(parsed)
}

func formatCount(n int) string {
	if !stdoutIsTerminal {
		return strconv.Itoa(n)
	}
	return humanize.Comma(int64(n))
}
