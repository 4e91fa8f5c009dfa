// Package datalog stores sensor records in date-partitioned CSV files on
// removable storage: <root>/<device-id>/<year>/<mon>/<dd-mm-yy>.csv.
package datalog

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
)

var monthAbbrev = [...]string{"jan", "feb", "mar", "apr", "may", "jun", "jul", "aug", "sep", "oct", "nov", "dec"}

// MonthAbbrev returns the lowercase three-letter month name.
// Months outside 1..12 (a degraded clock read) render as "unk".
func MonthAbbrev(month int) string {
	if month < 1 || month > 12 {
		return "unk"
	}
	return monthAbbrev[month-1]
}

// FileName returns dd-mm-yy.csv for the given date.
func FileName(year, month, day int) string {
	return fmt.Sprintf("%02d-%02d-%02d.csv", day, month, year%100)
}

// Resolver derives log file paths and creates their directories.
type Resolver struct {
	Root     string
	DeviceID string
}

// Path returns the log file path for a date without touching storage.
func (r Resolver) Path(year, month, day int) string {
	return filepath.Join(r.monthDir(year, month), FileName(year, month, day))
}

func (r Resolver) monthDir(year, month int) string {
	return filepath.Join(r.Root, r.DeviceID, fmt.Sprint(year), MonthAbbrev(month))
}

// Resolve returns the log file path for a date, creating the device, year and
// month directories in that order. A directory that already exists is fine.
// Other mkdir failures are logged and skipped: the append that follows will
// fail and report it.
func (r Resolver) Resolve(year, month, day int) (string, error) {
	if r.Root == "" || r.DeviceID == "" {
		return "", errors.New("datalog: root and device id are required")
	}

	dirs := []string{
		filepath.Join(r.Root, r.DeviceID),
		filepath.Join(r.Root, r.DeviceID, fmt.Sprint(year)),
		r.monthDir(year, month),
	}
	for _, dir := range dirs {
		ensureDir(dir)
	}

	return r.Path(year, month, day), nil
}

func ensureDir(dir string) {
	err := os.Mkdir(dir, 0o777)
	switch {
	case err == nil:
		log.Printf("datalog: directory created: %s", dir)
	case errors.Is(err, fs.ErrExist):
		log.Printf("datalog: directory already exists: %s", dir)
	default:
		log.Printf("datalog: failed to create directory %s: %v", dir, err)
	}
}
