// Command simlink-logdump prints SimLink protocol capture files in a
// human-readable format.
//
// Capture files are created by passing a protocol log to the client or
// channel, or with the -protocol-log flag of simlink-shell.
//
// Usage:
//
//	simlink-logdump [flags] <file.plog>
//
// Flags:
//
//	-conn-id string    Only events for this connection ID (prefix match)
//	-direction string  Only this direction: in, out
//	-layer string      Only this layer: transport, wire, client
//	-category string   Only this category: message, state, error
//	-since string      Only events at or after this time (RFC 3339)
//	-until string      Only events before this time (RFC 3339)
//	-stats             Print per-connection event counts instead of events
//
// Examples:
//
//	# Dump everything
//	simlink-logdump session.plog
//
//	# Only outgoing wire-layer messages
//	simlink-logdump -direction out -layer wire session.plog
//
//	# Only reconnect activity
//	simlink-logdump -category state session.plog
package main

import (
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/simlink-protocol/simlink-go/pkg/log"
)

var (
	flagConnID    = flag.String("conn-id", "", "Only events for this connection ID (prefix match)")
	flagDirection = flag.String("direction", "", "Only this direction: in, out")
	flagLayer     = flag.String("layer", "", "Only this layer: transport, wire, client")
	flagCategory  = flag.String("category", "", "Only this category: message, state, error")
	flagSince     = flag.String("since", "", "Only events at or after this time (RFC 3339)")
	flagUntil     = flag.String("until", "", "Only events before this time (RFC 3339)")
	flagStats     = flag.Bool("stats", false, "Print per-connection event counts instead of events")
)

func main() {
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: simlink-logdump [flags] <file.plog>")
		flag.PrintDefaults()
		os.Exit(1)
	}

	filter, err := buildFilter()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	reader, err := log.NewFilteredReader(flag.Arg(0), filter)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open log: %v\n", err)
		os.Exit(1)
	}
	defer reader.Close()

	if *flagStats {
		err = printStats(os.Stdout, reader)
	} else {
		err = printEvents(os.Stdout, reader)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func buildFilter() (log.Filter, error) {
	var filter log.Filter

	switch strings.ToLower(*flagDirection) {
	case "":
	case "in":
		d := log.DirectionIn
		filter.Direction = &d
	case "out":
		d := log.DirectionOut
		filter.Direction = &d
	default:
		return filter, fmt.Errorf("unknown direction %q (use in or out)", *flagDirection)
	}

	switch strings.ToLower(*flagLayer) {
	case "":
	case "transport":
		l := log.LayerTransport
		filter.Layer = &l
	case "wire":
		l := log.LayerWire
		filter.Layer = &l
	case "client":
		l := log.LayerClient
		filter.Layer = &l
	default:
		return filter, fmt.Errorf("unknown layer %q (use transport, wire or client)", *flagLayer)
	}

	switch strings.ToLower(*flagCategory) {
	case "":
	case "message":
		c := log.CategoryMessage
		filter.Category = &c
	case "state":
		c := log.CategoryState
		filter.Category = &c
	case "error":
		c := log.CategoryError
		filter.Category = &c
	default:
		return filter, fmt.Errorf("unknown category %q (use message, state or error)", *flagCategory)
	}

	if *flagSince != "" {
		t, err := time.Parse(time.RFC3339, *flagSince)
		if err != nil {
			return filter, fmt.Errorf("bad -since value: %v", err)
		}
		filter.TimeStart = &t
	}
	if *flagUntil != "" {
		t, err := time.Parse(time.RFC3339, *flagUntil)
		if err != nil {
			return filter, fmt.Errorf("bad -until value: %v", err)
		}
		filter.TimeEnd = &t
	}

	return filter, nil
}

func printEvents(w io.Writer, reader *log.Reader) error {
	for {
		event, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		if *flagConnID != "" && !strings.HasPrefix(event.ConnectionID, *flagConnID) {
			continue
		}
		formatEvent(w, event)
	}
}

// formatEvent writes one event: a header line followed by indented details.
func formatEvent(w io.Writer, event log.Event) {
	ts := event.Timestamp.UTC().Format("2006-01-02T15:04:05.000000Z")

	var typeLabel string
	switch {
	case event.Frame != nil:
		typeLabel = "Frame"
	case event.Message != nil:
		typeLabel = event.Message.Type
	case event.StateChange != nil:
		typeLabel = "State"
	case event.Error != nil:
		typeLabel = "Error"
	default:
		typeLabel = "Unknown"
	}

	fmt.Fprintf(w, "%s [conn:%s] %-3s %s %s\n",
		ts, shortenConnID(event.ConnectionID), event.Direction, event.Layer, typeLabel)

	switch {
	case event.Frame != nil:
		fmt.Fprintf(w, "  Size: %d bytes\n", event.Frame.Size)
		if len(event.Frame.Data) > 0 {
			fmt.Fprintf(w, "  Data: %s", hex.EncodeToString(event.Frame.Data))
			if event.Frame.Truncated {
				fmt.Fprint(w, " (truncated)")
			}
			fmt.Fprintln(w)
		}

	case event.Message != nil:
		if event.Message.Size > 0 {
			fmt.Fprintf(w, "  Size: %d bytes\n", event.Message.Size)
		}
		if event.Message.Err != "" {
			fmt.Fprintf(w, "  Error: %s\n", event.Message.Err)
		}

	case event.StateChange != nil:
		sc := event.StateChange
		if sc.OldState != "" {
			fmt.Fprintf(w, "  Transition: %s -> %s\n", sc.OldState, sc.NewState)
		} else {
			fmt.Fprintf(w, "  State: %s\n", sc.NewState)
		}
		if sc.Reason != "" {
			fmt.Fprintf(w, "  Reason: %s\n", sc.Reason)
		}
		if sc.Attempt > 0 {
			fmt.Fprintf(w, "  Attempt: %d (delay %s)\n", sc.Attempt, sc.Delay)
		}

	case event.Error != nil:
		fmt.Fprintf(w, "  Layer: %s\n", event.Error.Layer)
		fmt.Fprintf(w, "  Message: %s\n", event.Error.Message)
		if event.Error.Context != "" {
			fmt.Fprintf(w, "  Context: %s\n", event.Error.Context)
		}
		if event.Error.Terminal {
			fmt.Fprintln(w, "  Terminal: yes")
		}
	}

	fmt.Fprintln(w)
}

func printStats(w io.Writer, reader *log.Reader) error {
	type connStats struct {
		total  int
		in     int
		out    int
		errors int
		first  time.Time
		last   time.Time
	}

	stats := make(map[string]*connStats)
	var order []string

	for {
		event, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		if *flagConnID != "" && !strings.HasPrefix(event.ConnectionID, *flagConnID) {
			continue
		}

		s, ok := stats[event.ConnectionID]
		if !ok {
			s = &connStats{first: event.Timestamp}
			stats[event.ConnectionID] = s
			order = append(order, event.ConnectionID)
		}
		s.total++
		s.last = event.Timestamp
		if event.Category == log.CategoryError {
			s.errors++
		} else if event.Category == log.CategoryMessage {
			if event.Direction == log.DirectionIn {
				s.in++
			} else {
				s.out++
			}
		}
	}

	for _, id := range order {
		s := stats[id]
		fmt.Fprintf(w, "conn:%s  events:%d  in:%d  out:%d  errors:%d  span:%s\n",
			shortenConnID(id), s.total, s.in, s.out, s.errors,
			s.last.Sub(s.first).Round(time.Millisecond))
	}
	return nil
}

func shortenConnID(id string) string {
	if len(id) >= 8 {
		return id[:8]
	}
	return id
}
