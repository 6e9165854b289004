// Package output writes scrape results: the CSV file, an optional JSON
// report, and the human summary on stdout.
package output

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"github.com/drewfead/curzon-listings/internal"
)

var csvHeader = []string{"date", "venue", "film", "venue_url"}

// WriteCSV writes one row per (venue, film). A venue with no films still gets
// a row, with the film column empty.
func WriteCSV(w io.Writer, results []internal.ListingResult) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, r := range results {
		if len(r.Films) == 0 {
			if err := cw.Write([]string{r.Date, r.Venue.Name, "", r.Venue.URL}); err != nil {
				return err
			}
			continue
		}
		for _, film := range r.Films {
			if err := cw.Write([]string{r.Date, r.Venue.Name, film, r.Venue.URL}); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteCSVFile creates (or truncates) path and writes the results to it.
func WriteCSVFile(path string, results []internal.ListingResult) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv %s: %w", path, err)
	}
	if err := WriteCSV(f, results); err != nil {
		_ = f.Close()
		return fmt.Errorf("write csv %s: %w", path, err)
	}
	return f.Close()
}
