package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/fragdb/internal/hlc"
)

// timestampView is the output of clock.
type timestampView struct {
	Timestamp string `json:"timestamp"`
	Time      string `json:"time"`
	Counter   uint16 `json:"counter"`
	Node      string `json:"node"`
}

func newTimestampView(ts hlc.Timestamp) timestampView {
	return timestampView{
		Timestamp: ts.String(),
		Time:      ts.Time().Format(time.RFC3339Nano),
		Counter:   ts.Counter,
		Node:      ts.Origin(),
	}
}

func (v timestampView) WriteText(w io.Writer) error {
	_, err := fmt.Fprintf(w, "%s\n  time:    %s\n  counter: %d\n  node:    %s\n",
		v.Timestamp, v.Time, v.Counter, v.Node)
	return err
}

// NewClockCommand creates the clock command.
func NewClockCommand(opts *RootOptions) *cobra.Command {
	var newNode bool

	cmd := &cobra.Command{
		Use:   "clock [timestamp]",
		Short: "Issue or decode hybrid logical timestamps",
		Long: `Without arguments, issue a timestamp from this replica's clock.
With a timestamp argument, decode it into its parts.
With --new-node, print a freshly generated node id.

Examples:
  fragdb clock
  fragdb clock 2024-01-02T03:04:05.006Z-000a-0123456789abcdef
  fragdb clock --new-node`,
		Args: rangeArgs(0, 1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(opts, cmd)

			if newNode {
				if len(args) > 0 {
					return NewExitError(ExitCommandError, "--new-node takes no arguments")
				}
				return f.Success(nodeResult{NodeID: hlc.NewNodeID()})
			}

			if len(args) == 1 {
				ts, err := parseTimestamp(args[0])
				if err != nil {
					return err
				}
				return f.Success(newTimestampView(ts))
			}

			clock, err := newClock(opts, hlc.Timestamp{})
			if err != nil {
				return err
			}
			ts, err := clock.Now()
			if err != nil {
				return WrapExitError(ExitFailure, "failed to issue timestamp", err)
			}
			return f.Success(newTimestampView(ts))
		},
	}

	cmd.Flags().BoolVar(&newNode, "new-node", false, "generate a new node id")

	return cmd
}

type nodeResult struct {
	NodeID string `json:"node_id"`
}

func (r nodeResult) WriteText(w io.Writer) error {
	_, err := fmt.Fprintln(w, r.NodeID)
	return err
}
