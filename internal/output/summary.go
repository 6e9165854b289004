package output

import (
	"io"

	"github.com/drewfead/curzon-listings/internal"
	"github.com/jedib0t/go-pretty/v6/table"
)

const closedNote = "(no films found / venue may be closed today)"

// WriteSummary renders the run as a table: one row per film, or a single
// note row for a venue with none. A TMDB column appears when any film was enriched.
func WriteSummary(w io.Writer, results []internal.ListingResult) {
	enriched := false
	for _, r := range results {
		if len(r.Movies) > 0 {
			enriched = true
			break
		}
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	header := table.Row{"Venue", "Date", "Film"}
	if enriched {
		header = append(header, "TMDB")
	}
	t.AppendHeader(header)
	for _, r := range results {
		if len(r.Films) == 0 {
			t.AppendRow(table.Row{r.Venue.Name, r.Date, closedNote})
			t.AppendSeparator()
			continue
		}
		for _, film := range r.Films {
			row := table.Row{r.Venue.Name, r.Date, film}
			if enriched {
				row = append(row, tmdbLink(r.Movies[film]))
			}
			t.AppendRow(row)
		}
		t.AppendSeparator()
	}
	t.SetStyle(table.StyleRounded)
	t.Render()
}

func tmdbLink(m internal.MovieInfo) string {
	for _, l := range m.Links {
		if l.Display == "TMDB" {
			return l.Href
		}
	}
	return ""
}
