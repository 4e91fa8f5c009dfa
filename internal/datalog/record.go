package datalog

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Record is one sample line: time of day and two sensor readings.
type Record struct {
	Time string // HH:MM:SS
	A    int
	B    int
}

// Line serializes the record as "HH:MM:SS,A,B\n".
func (r Record) Line() string {
	return fmt.Sprintf("%s,%d,%d\n", r.Time, r.A, r.B)
}

// ParseLine parses one line produced by Line. The newline is optional.
func ParseLine(line string) (Record, error) {
	parts := strings.Split(strings.TrimRight(line, "\r\n"), ",")
	if len(parts) != 3 {
		return Record{}, fmt.Errorf("datalog: want 3 fields, got %d in %q", len(parts), line)
	}
	if len(parts[0]) != len("00:00:00") {
		return Record{}, fmt.Errorf("datalog: bad time field %q", parts[0])
	}
	a, err := strconv.Atoi(parts[1])
	if err != nil {
		return Record{}, fmt.Errorf("datalog: sensor A: %w", err)
	}
	b, err := strconv.Atoi(parts[2])
	if err != nil {
		return Record{}, fmt.Errorf("datalog: sensor B: %w", err)
	}
	return Record{Time: parts[0], A: a, B: b}, nil
}

// Append opens path for appending (creating it if needed), writes exactly one
// record and closes the file before returning.
func Append(path string, rec Record) error {
	log.Printf("datalog: opening file %s", path)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o666)
	if err != nil {
		return fmt.Errorf("open %s for append: %w", path, err)
	}

	_, werr := f.WriteString(rec.Line())
	cerr := f.Close()
	if werr != nil {
		return fmt.Errorf("write %s: %w", path, werr)
	}
	if cerr != nil {
		return fmt.Errorf("close %s: %w", path, cerr)
	}

	log.Printf("datalog: file written")
	return nil
}

// ReadRecords parses every line of a day file.
func ReadRecords(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var recs []Record
	sc := bufio.NewScanner(f)
	for n := 1; sc.Scan(); n++ {
		rec, err := ParseLine(sc.Text())
		if err != nil {
			return recs, fmt.Errorf("%s:%d: %w", path, n, err)
		}
		recs = append(recs, rec)
	}
	return recs, sc.Err()
}

// Delete removes one log file. It is a maintenance operation, never part of
// the duty cycle.
func Delete(path string) error {
	if err := os.Remove(path); err != nil {
		log.Printf("datalog: error deleting file %s: %v", path, err)
		return err
	}
	log.Printf("datalog: file deleted successfully: %s", path)
	return nil
}

// Export copies every .csv file below src into the same relative location
// below dst. Files already present at dst with the same size are skipped.
// It returns the number of files copied.
func Export(src, dst string) (int, error) {
	copied := 0
	err := filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		if d.IsDir() {
			return os.MkdirAll(target, 0o777)
		}
		if filepath.Ext(path) != ".csv" {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		if ti, err := os.Stat(target); err == nil && ti.Size() == info.Size() {
			return nil
		}
		if err := copyFile(path, target); err != nil {
			return err
		}
		copied++
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) && copied == 0 {
		return 0, fmt.Errorf("export: nothing to export under %s: %w", src, err)
	}
	return copied, err
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := out.ReadFrom(in); err != nil {
		out.Close()
		return fmt.Errorf("copy %s: %w", src, err)
	}
	return out.Close()
}
