package output

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/drewfead/curzon-listings/internal"
)

// WriteJSONFile writes the full results, enrichment included, as indented JSON.
func WriteJSONFile(path string, results []internal.ListingResult) error {
	if results == nil {
		results = []internal.ListingResult{}
	}
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write report %s: %w", path, err)
	}
	return nil
}
