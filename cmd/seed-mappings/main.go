// seed-mappings writes the bundled fallback insurer mappings out as a
// starter mapping table. Operators extend the CSV from there; the server
// reads it via INSURER_MAPPINGS_CSV.
//
// Usage:
//   go run ./cmd/seed-mappings -out insurer_mappings.csv
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"os"
	"sort"

	"bitbucket.org/insurezeal/brokerage_backend/recon"
)

func main() {
	out := flag.String("out", "insurer_mappings.csv", "output path for the mapping table")
	flag.Parse()

	if _, err := os.Stat(*out); err == nil {
		fmt.Fprintf(os.Stderr, "%s already exists, refusing to overwrite\n", *out)
		os.Exit(1)
	}

	f, err := os.Create(*out)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer f.Close()

	w := csv.NewWriter(f)

	// Row 0: identity column + canonical headers.
	header := append([]string{"Insurer Name"}, recon.CanonicalHeaders...)
	if err := w.Write(header); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	fallback := recon.FallbackMappings()
	insurers := make([]string, 0, len(fallback))
	for name := range fallback {
		insurers = append(insurers, name)
	}
	sort.Strings(insurers)

	for _, insurer := range insurers {
		mapping := fallback[insurer]
		// Invert: canonical header -> raw column, positionally aligned.
		rawByCanonical := make(map[string]string, len(mapping))
		for raw, canonical := range mapping {
			rawByCanonical[canonical] = raw
		}
		row := make([]string, 0, len(header))
		row = append(row, insurer)
		for _, canonical := range recon.CanonicalHeaders {
			row = append(row, rawByCanonical[canonical])
		}
		if err := w.Write(row); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Printf("wrote %d insurer mappings to %s\n", len(insurers), *out)
}
