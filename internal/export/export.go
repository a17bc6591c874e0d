package export

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"logscope/internal/model"
)

var ErrNoEntries = errors.New("no entries")

var columns = []string{"timestamp", "level", "logger", "traceId", "content", "source", "continuation"}

func row(e model.LogEntry) []string {
	ts := e.Timestamp
	if e.Time != nil {
		ts = e.Time.Format(time.RFC3339Nano)
	}
	return []string{ts, e.Level, e.Logger, e.TraceID, e.Content, e.Source, strconv.Itoa(e.Continuation)}
}

func WriteCSV(w io.Writer, entries []model.LogEntry) error {
	if len(entries) == 0 {
		return ErrNoEntries
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(columns); err != nil {
		return err
	}
	for _, e := range entries {
		if err := cw.Write(row(e)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func WriteNDJSON(w io.Writer, entries []model.LogEntry) error {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	for _, e := range entries {
		if err := enc.Encode(e); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func ToCSV(path string, entries []model.LogEntry) error {
	return toFile(path, entries, WriteCSV)
}

func ToNDJSON(path string, entries []model.LogEntry) error {
	return toFile(path, entries, WriteNDJSON)
}

// Write dispatches on format ("csv" or "json"). A path of "-" writes to
// stdout.
func Write(format, path string, entries []model.LogEntry) error {
	var fn func(io.Writer, []model.LogEntry) error
	switch format {
	case "csv":
		fn = WriteCSV
	case "json", "ndjson":
		fn = WriteNDJSON
	default:
		return fmt.Errorf("unknown export format %q", format)
	}
	if path == "-" {
		return fn(os.Stdout, entries)
	}
	return toFile(path, entries, fn)
}

func toFile(path string, entries []model.LogEntry, fn func(io.Writer, []model.LogEntry) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := fn(f, entries); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
