package app

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"

	payloadschema "github.com/Guqie/news-workflow/internal/schema"
)

func runValidate(args []string) int {
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "validate requires at least one payload file")
		return 2
	}

	failures := 0
	for _, path := range fs.Args() {
		if err := validateFile(path); err != nil {
			fmt.Fprintf(os.Stderr, "INVALID %s: %v\n", path, err)
			failures++
			continue
		}
		fmt.Printf("OK %s\n", path)
	}

	if failures > 0 {
		fmt.Fprintf(os.Stderr, "%d of %d files failed validation\n", failures, fs.NArg())
		return 1
	}
	return 0
}

// validateFile accepts either a single payload object or a JSON array of
// payloads.
func validateFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var batch []json.RawMessage
	if err := json.Unmarshal(raw, &batch); err != nil {
		// Not an array; validate as a single payload.
		_, err := payloadschema.ValidateRawItem(raw)
		return err
	}

	for i, payload := range batch {
		if _, err := payloadschema.ValidateRawItem(payload); err != nil {
			return fmt.Errorf("item %d: %w", i, err)
		}
	}
	return nil
}
