package commands

import (
	"fmt"

	"github.com/muskanmahajan37/gazebo/pkg/log"
)

// RunFilter copies the events matching opts from path into output and
// returns how many were written.
func RunFilter(path, output string, opts FilterOptions) (int, error) {
	if _, err := opts.Build(); err != nil {
		return 0, err
	}
	sink, err := log.NewFileLogger(output)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", output, err)
	}

	readErr := eachEvent(path, opts, func(e log.Event) error {
		sink.Log(e)
		return nil
	})
	closeErr := sink.Close()

	n := sink.Written()
	switch {
	case readErr != nil:
		return n, readErr
	case closeErr != nil:
		return n, fmt.Errorf("write %s: %w", output, closeErr)
	case sink.Dropped() > 0:
		return n, fmt.Errorf("%d events could not be written", sink.Dropped())
	}
	return n, nil
}
