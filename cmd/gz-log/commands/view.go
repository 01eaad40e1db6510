package commands

import (
	"encoding/hex"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"

	"github.com/muskanmahajan37/gazebo/pkg/log"
)

// RunView prints every event matching opts in human-readable form.
func RunView(path string, opts FilterOptions, w io.Writer) error {
	return eachEvent(path, opts, func(e log.Event) error {
		_, err := io.WriteString(w, render(e))
		return err
	})
}

// render formats one event as a header line, indented detail lines and a
// blank separator.
func render(e log.Event) string {
	var b strings.Builder

	layer := e.Layer.String()
	if e.Category == log.CategoryControl {
		layer = "CTRL"
	}
	fmt.Fprintf(&b, "%s [conn:%s] %-3s %s %s\n",
		e.Timestamp.UTC().Format(stampLayout), shortID(e.ConnectionID),
		e.Direction, layer, eventType(e))

	detail := func(format string, args ...any) {
		b.WriteString("  ")
		fmt.Fprintf(&b, format, args...)
		b.WriteByte('\n')
	}

	if e.Topic != "" || e.EndpointID != 0 {
		detail("Topic: %s  Endpoint: %d", e.Topic, e.EndpointID)
	}

	switch {
	case e.Frame != nil:
		detail("Size: %d bytes", e.Frame.Size)
		if len(e.Frame.Data) > 0 {
			suffix := ""
			if e.Frame.Truncated {
				suffix = " (truncated)"
			}
			detail("Data: %s%s", hex.EncodeToString(e.Frame.Data), suffix)
		}
	case e.Control != nil:
		if e.Control.MsgType != "" {
			detail("MsgType: %s", e.Control.MsgType)
		}
		if e.Control.Host != "" || e.Control.Port != 0 {
			detail("Subscriber: %s", net.JoinHostPort(e.Control.Host, strconv.Itoa(int(e.Control.Port))))
		}
	case e.StateChange != nil:
		s := e.StateChange
		detail("Entity: %s", s.Entity)
		detail("%s -> %s", s.OldState, s.NewState)
		if s.Reason != "" {
			detail("Reason: %s", s.Reason)
		}
	case e.Error != nil:
		detail("Layer: %s", e.Error.Layer)
		detail("Message: %s", e.Error.Message)
		if e.Error.Context != "" {
			detail("Context: %s", e.Error.Context)
		}
	}

	b.WriteByte('\n')
	return b.String()
}
