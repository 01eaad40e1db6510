// Package commands implements the gz-log CLI commands.
package commands

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/muskanmahajan37/gazebo/pkg/log"
)

// FilterOptions holds the raw filter flags shared by view, export and filter.
type FilterOptions struct {
	ConnID    string
	Topic     string
	Endpoint  string
	TimeStart string
	TimeEnd   string
	Layer     string
	Direction string
	Category  string
}

var (
	layerNames = map[string]log.Layer{
		"transport":    log.LayerTransport,
		"wire":         log.LayerWire,
		"subscription": log.LayerSubscription,
	}
	directionNames = map[string]log.Direction{
		"in":  log.DirectionIn,
		"out": log.DirectionOut,
	}
	categoryNames = map[string]log.Category{
		"message": log.CategoryMessage,
		"control": log.CategoryControl,
		"state":   log.CategoryState,
		"error":   log.CategoryError,
	}
)

// lookup resolves a case-insensitive flag value against names. An empty
// value yields nil.
func lookup[T any](flag, value string, names map[string]T) (*T, error) {
	if value == "" {
		return nil, nil
	}
	if v, ok := names[strings.ToLower(value)]; ok {
		return &v, nil
	}
	valid := make([]string, 0, len(names))
	for k := range names {
		valid = append(valid, k)
	}
	sort.Strings(valid)
	return nil, fmt.Errorf("invalid %s %q (one of %s)", flag, value, strings.Join(valid, ", "))
}

func parseTime(flag, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", flag, err)
	}
	return &t, nil
}

// Build converts the flag values into a log.Filter.
func (o FilterOptions) Build() (log.Filter, error) {
	f := log.Filter{ConnectionID: o.ConnID, Topic: o.Topic}

	if o.Endpoint != "" {
		id, err := strconv.ParseUint(o.Endpoint, 10, 64)
		if err != nil {
			return log.Filter{}, fmt.Errorf("invalid endpoint id %q: %w", o.Endpoint, err)
		}
		f.EndpointID = id
	}

	var errs []error
	var err error
	f.TimeStart, err = parseTime("time-start", o.TimeStart)
	errs = append(errs, err)
	f.TimeEnd, err = parseTime("time-end", o.TimeEnd)
	errs = append(errs, err)
	f.Layer, err = lookup("layer", o.Layer, layerNames)
	errs = append(errs, err)
	f.Direction, err = lookup("direction", o.Direction, directionNames)
	errs = append(errs, err)
	f.Category, err = lookup("category", o.Category, categoryNames)
	errs = append(errs, err)

	if err := errors.Join(errs...); err != nil {
		return log.Filter{}, err
	}
	return f, nil
}

// eachEvent calls fn for every event in path that matches opts, stopping
// at the first error.
func eachEvent(path string, opts FilterOptions, fn func(log.Event) error) error {
	filter, err := opts.Build()
	if err != nil {
		return err
	}
	r, err := log.NewFilteredReader(path, filter)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer r.Close()

	for {
		event, err := r.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		if err := fn(event); err != nil {
			return err
		}
	}
}

// eventType returns a short label for the payload carried by an event.
func eventType(event log.Event) string {
	switch {
	case event.Frame != nil:
		return "Frame"
	case event.Control != nil:
		return event.Control.Kind
	case event.StateChange != nil:
		return "State"
	case event.Error != nil:
		return "Error"
	}
	return "Unknown"
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

const stampLayout = "2006-01-02T15:04:05.000000Z"
