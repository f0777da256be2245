// Package summary reads and writes the tabular summary artifacts.
package summary

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/lockwhz/secregress/models"
)

// Header is the column layout shared by per-repository and combined summaries.
var Header = []string{
	"Repository",
	"Commit",
	"High Severity",
	"Medium Severity",
	"Low Severity",
	"Unique CWE IDs",
}

var ErrBadHeader = errors.New("unexpected summary header")

// WriteCSV writes the header followed by one row per record.
func WriteCSV(w io.Writer, records []models.CommitRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, r := range records {
		row := []string{
			r.Repository,
			r.Commit,
			strconv.Itoa(r.High),
			strconv.Itoa(r.Medium),
			strconv.Itoa(r.Low),
			r.CWEString(),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteFile replaces path with a fresh summary.
func WriteFile(path string, records []models.CommitRecord) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create %s: %w", tmp, err)
	}
	if err := WriteCSV(f, records); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close %s: %w", tmp, err)
	}
	return os.Rename(tmp, path)
}

// ReadCSV parses a summary written by WriteCSV.
func ReadCSV(r io.Reader) ([]models.CommitRecord, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(Header)

	head, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	for i := range Header {
		if strings.TrimSpace(head[i]) != Header[i] {
			return nil, fmt.Errorf("%w: column %d is %q", ErrBadHeader, i, head[i])
		}
	}

	var out []models.CommitRecord
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		rec := models.CommitRecord{Repository: row[0], Commit: row[1], CWEs: splitCWEs(row[5])}
		counts := []*int{&rec.High, &rec.Medium, &rec.Low}
		for i, dst := range counts {
			n, err := strconv.Atoi(row[2+i])
			if err != nil {
				return nil, fmt.Errorf("row %s: %s: %w", rec.Commit, Header[2+i], err)
			}
			*dst = n
		}
		out = append(out, rec)
	}
}

// ReadFile reads one summary CSV.
func ReadFile(path string) ([]models.CommitRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	recs, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return recs, nil
}

func splitCWEs(s string) []string {
	out := []string{}
	for _, id := range strings.Split(s, strings.TrimSpace(models.CWESeparator)) {
		if id = strings.TrimSpace(id); id != "" {
			out = append(out, id)
		}
	}
	return out
}
