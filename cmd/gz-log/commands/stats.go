package commands

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"time"

	"github.com/muskanmahajan37/gazebo/pkg/log"
)

// Stats aggregates a log file.
type Stats struct {
	TotalEvents       int
	Errors            int
	First, Last       time.Time
	EventsByLayer     map[log.Layer]int
	EventsByCategory  map[log.Category]int
	EventsByDirection map[log.Direction]int
	Connections       map[string]*ConnectionStats
	Topics            map[string]*TopicStats
}

// ConnectionStats aggregates the events of one connection.
type ConnectionStats struct {
	FirstSeen, LastSeen time.Time
	Events              int
	Bytes               int
	RemoteAddr          string
}

// TopicStats aggregates the events of one topic.
type TopicStats struct {
	Endpoints map[uint64]struct{}
	Frames    int
	Controls  int
	Errors    int
}

func newStats() *Stats {
	return &Stats{
		EventsByLayer:     map[log.Layer]int{},
		EventsByCategory:  map[log.Category]int{},
		EventsByDirection: map[log.Direction]int{},
		Connections:       map[string]*ConnectionStats{},
		Topics:            map[string]*TopicStats{},
	}
}

// RunStats prints a summary of the log file at path.
func RunStats(path string, w io.Writer) error {
	s, err := collectStats(path)
	if err != nil {
		return err
	}
	s.print(w)
	return nil
}

func collectStats(path string) (*Stats, error) {
	s := newStats()
	if err := eachEvent(path, FilterOptions{}, func(e log.Event) error {
		s.add(e)
		return nil
	}); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Stats) add(e log.Event) {
	s.TotalEvents++
	s.EventsByLayer[e.Layer]++
	s.EventsByCategory[e.Category]++
	s.EventsByDirection[e.Direction]++
	if e.Error != nil {
		s.Errors++
	}

	if s.TotalEvents == 1 || e.Timestamp.Before(s.First) {
		s.First = e.Timestamp
	}
	if e.Timestamp.After(s.Last) {
		s.Last = e.Timestamp
	}

	if e.ConnectionID != "" {
		c := s.Connections[e.ConnectionID]
		if c == nil {
			c = &ConnectionStats{FirstSeen: e.Timestamp, LastSeen: e.Timestamp}
			s.Connections[e.ConnectionID] = c
		}
		c.Events++
		if e.Timestamp.After(c.LastSeen) {
			c.LastSeen = e.Timestamp
		}
		if c.RemoteAddr == "" {
			c.RemoteAddr = e.RemoteAddr
		}
		if e.Frame != nil {
			c.Bytes += e.Frame.Size
		}
	}

	if e.Topic == "" {
		return
	}
	t := s.Topics[e.Topic]
	if t == nil {
		t = &TopicStats{Endpoints: map[uint64]struct{}{}}
		s.Topics[e.Topic] = t
	}
	if e.EndpointID != 0 {
		t.Endpoints[e.EndpointID] = struct{}{}
	}
	switch {
	case e.Frame != nil:
		t.Frames++
	case e.Control != nil:
		t.Controls++
	case e.Error != nil:
		t.Errors++
	}
}

// breakdown prints the non-zero counts of m in the order of keys.
func breakdown[K interface {
	comparable
	String() string
}](w io.Writer, title string, m map[K]int, keys ...K) {
	fmt.Fprintf(w, "%s:\n", title)
	for _, k := range keys {
		if n := m[k]; n > 0 {
			fmt.Fprintf(w, "  %-14s %d\n", k.String()+":", n)
		}
	}
	fmt.Fprintln(w)
}

func (s *Stats) print(w io.Writer) {
	fmt.Fprint(w, "=== Topic Transport Log Statistics ===\n\n")

	if s.TotalEvents > 0 {
		fmt.Fprintf(w, "Time Range: %s to %s\n", s.First.Format(time.RFC3339), s.Last.Format(time.RFC3339))
		fmt.Fprintf(w, "Duration:   %s\n\n", s.Last.Sub(s.First).Round(time.Second))
	}
	fmt.Fprintf(w, "Total Events: %d\n\n", s.TotalEvents)

	breakdown(w, "Events by Layer", s.EventsByLayer,
		log.LayerTransport, log.LayerWire, log.LayerSubscription)
	breakdown(w, "Events by Category", s.EventsByCategory,
		log.CategoryMessage, log.CategoryControl, log.CategoryState, log.CategoryError)
	breakdown(w, "Events by Direction", s.EventsByDirection,
		log.DirectionIn, log.DirectionOut)

	fmt.Fprintf(w, "Connections: %d\n", len(s.Connections))
	ids := slices.SortedFunc(maps.Keys(s.Connections), func(a, b string) int {
		return s.Connections[a].FirstSeen.Compare(s.Connections[b].FirstSeen)
	})
	for _, id := range ids {
		c := s.Connections[id]
		fmt.Fprintf(w, "  [%s] %d events, %d bytes, duration %s\n",
			shortID(id), c.Events, c.Bytes, c.LastSeen.Sub(c.FirstSeen).Round(time.Millisecond))
		if c.RemoteAddr != "" {
			fmt.Fprintf(w, "           Remote: %s\n", c.RemoteAddr)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Topics: %d\n", len(s.Topics))
	for _, name := range slices.Sorted(maps.Keys(s.Topics)) {
		t := s.Topics[name]
		fmt.Fprintf(w, "  %s: %d endpoints, %d frames, %d control, %d errors\n",
			name, len(t.Endpoints), t.Frames, t.Controls, t.Errors)
	}

	if s.Errors > 0 {
		fmt.Fprintf(w, "\nErrors: %d\n", s.Errors)
	}
}
