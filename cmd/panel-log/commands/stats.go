package commands

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/mash-protocol/mash-panel/pkg/log"
)

// Stats holds aggregate statistics about a log file.
type Stats struct {
	TotalEvents       int
	EventsByChannel   map[log.Channel]int
	EventsByCategory  map[log.Category]int
	EventsByDirection map[log.Direction]int
	Paths             map[string]*PathStats
	Errors            int
	DecodeErrors      int
	Fallbacks         int
	TimeRange         struct {
		Start time.Time
		End   time.Time
	}
}

// PathStats holds statistics for a single request path.
type PathStats struct {
	Exchanges int
	Bytes     int
}

// RunStats analyzes the log file and prints statistics.
func RunStats(path string, w io.Writer) error {
	reader, err := log.NewReader(path)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	stats := &Stats{
		EventsByChannel:   make(map[log.Channel]int),
		EventsByCategory:  make(map[log.Category]int),
		EventsByDirection: make(map[log.Direction]int),
		Paths:             make(map[string]*PathStats),
	}

	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		stats.add(event)
	}

	printStats(w, stats)
	return nil
}

func (s *Stats) add(event log.Event) {
	s.TotalEvents++
	s.EventsByChannel[event.Channel]++
	s.EventsByCategory[event.Category]++
	s.EventsByDirection[event.Direction]++

	// Track time range
	if s.TimeRange.Start.IsZero() || event.Timestamp.Before(s.TimeRange.Start) {
		s.TimeRange.Start = event.Timestamp
	}
	if event.Timestamp.After(s.TimeRange.End) {
		s.TimeRange.End = event.Timestamp
	}

	if ex := event.Exchange; ex != nil {
		ps := s.path(ex.Path)
		ps.Exchanges++
		ps.Bytes += ex.Size
	}

	if e := event.Error; e != nil {
		s.Errors++
		if e.Stage == log.StageDecode {
			s.DecodeErrors++
		}
		if e.Fallback {
			s.Fallbacks++
		}
	}
}

func (s *Stats) path(p string) *PathStats {
	ps, ok := s.Paths[p]
	if !ok {
		ps = &PathStats{}
		s.Paths[p] = ps
	}
	return ps
}

func printStats(w io.Writer, stats *Stats) {
	fmt.Fprintln(w, "=== Panel Protocol Log Statistics ===")
	fmt.Fprintln(w)

	// Time range
	if stats.TotalEvents > 0 {
		fmt.Fprintf(w, "Time Range: %s to %s\n",
			stats.TimeRange.Start.Format(time.RFC3339),
			stats.TimeRange.End.Format(time.RFC3339))
		fmt.Fprintf(w, "Duration:   %s\n", stats.TimeRange.End.Sub(stats.TimeRange.Start).Round(time.Second))
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Total Events: %d\n", stats.TotalEvents)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Channel:")
	for _, ch := range []log.Channel{log.ChannelHTTP, log.ChannelSSE} {
		if count := stats.EventsByChannel[ch]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", ch.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Category:")
	for _, cat := range []log.Category{log.CategoryExchange, log.CategoryError} {
		if count := stats.EventsByCategory[cat]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", cat.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Direction:")
	for _, dir := range []log.Direction{log.DirectionIn, log.DirectionOut} {
		if count := stats.EventsByDirection[dir]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", dir.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Paths: %d\n", len(stats.Paths))
	if len(stats.Paths) > 0 {
		paths := make([]string, 0, len(stats.Paths))
		for p := range stats.Paths {
			paths = append(paths, p)
		}
		sort.Strings(paths)

		for _, p := range paths {
			ps := stats.Paths[p]
			fmt.Fprintf(w, "  %s: %d exchanges, %d bytes\n", p, ps.Exchanges, ps.Bytes)
		}
	}

	if stats.Errors > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Errors: %d\n", stats.Errors)
		if stats.DecodeErrors > 0 {
			fmt.Fprintf(w, "  Decode:    %d\n", stats.DecodeErrors)
		}
		if stats.Fallbacks > 0 {
			fmt.Fprintf(w, "  Fallbacks: %d\n", stats.Fallbacks)
		}
	}
}
