package commands

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/muskanmahajan37/gazebo/pkg/log"
)

var csvColumns = []string{
	"timestamp", "connection_id", "direction", "layer", "category",
	"topic", "endpoint_id", "type", "size",
}

// RunExport writes the events matching opts to w as jsonl or csv.
func RunExport(path, format string, opts FilterOptions, w io.Writer) error {
	switch format {
	case "jsonl":
		enc := json.NewEncoder(w)
		return eachEvent(path, opts, func(e log.Event) error {
			return enc.Encode(e)
		})
	case "csv":
		cw := csv.NewWriter(w)
		if err := cw.Write(csvColumns); err != nil {
			return err
		}
		if err := eachEvent(path, opts, func(e log.Event) error {
			return cw.Write(csvRow(e))
		}); err != nil {
			return err
		}
		cw.Flush()
		return cw.Error()
	}
	return fmt.Errorf("unknown format %q (jsonl or csv)", format)
}

func csvRow(e log.Event) []string {
	var endpoint, size string
	if e.EndpointID != 0 {
		endpoint = strconv.FormatUint(e.EndpointID, 10)
	}
	if e.Frame != nil {
		size = strconv.Itoa(e.Frame.Size)
	}
	return []string{
		e.Timestamp.UTC().Format(stampLayout),
		e.ConnectionID,
		e.Direction.String(),
		e.Layer.String(),
		e.Category.String(),
		e.Topic,
		endpoint,
		eventType(e),
		size,
	}
}
