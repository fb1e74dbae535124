package cmd

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/cloud-sim/cloud-sim/sim"
)

// recordWriter prints log records and optionally mirrors them to a CSV file.
type recordWriter struct {
	out  io.Writer
	csv  *csv.Writer
	file *os.File
}

// newRecordWriter creates a writer printing to out. When folder is set,
// records are also written to <folder>/<runID>.csv.
func newRecordWriter(out io.Writer, folder, runID string) (*recordWriter, error) {
	rw := &recordWriter{out: out}
	if folder == "" {
		return rw, nil
	}
	if err := os.MkdirAll(folder, 0o755); err != nil {
		return nil, fmt.Errorf("creating logs folder: %w", err)
	}
	f, err := os.Create(filepath.Join(folder, runID+".csv"))
	if err != nil {
		return nil, fmt.Errorf("creating log file: %w", err)
	}
	rw.file = f
	rw.csv = csv.NewWriter(f)
	if err := rw.csv.Write([]string{"tick", "severity", "actor_type", "actor_name", "message"}); err != nil {
		f.Close()
		return nil, fmt.Errorf("writing log header: %w", err)
	}
	return rw, nil
}

// Drain consumes records until the channel closes. It keeps consuming after
// a write error so the simulation never blocks; the first error is returned.
func (rw *recordWriter) Drain(records <-chan sim.Record) error {
	var firstErr error
	for r := range records {
		if firstErr != nil {
			continue
		}
		firstErr = rw.write(r)
	}
	if err := rw.close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

func (rw *recordWriter) write(r sim.Record) error {
	if rw.out != nil {
		if _, err := fmt.Fprintln(rw.out, formatRecord(r)); err != nil {
			return err
		}
	}
	if rw.csv != nil {
		return rw.csv.Write([]string{
			strconv.FormatInt(r.Time, 10),
			r.Severity.String(),
			r.ActorType,
			r.ActorName,
			r.Message,
		})
	}
	return nil
}

func (rw *recordWriter) close() error {
	if rw.csv == nil {
		return nil
	}
	rw.csv.Flush()
	if err := rw.csv.Error(); err != nil {
		rw.file.Close()
		return fmt.Errorf("writing log file: %w", err)
	}
	return rw.file.Close()
}

func formatRecord(r sim.Record) string {
	return fmt.Sprintf("[tick %07d] %-5s %-10s %-14s %s", r.Time, r.Severity, r.ActorType, r.ActorName, r.Message)
}
