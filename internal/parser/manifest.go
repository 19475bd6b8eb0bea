package parser

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// ReadManifest reads a plain-text table of contents: one entry name per
// line. Carriage returns are stripped and blank lines skipped.
func ReadManifest(r io.Reader) ([]string, error) {
	var names []string

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		name := strings.TrimSpace(strings.TrimRight(sc.Text(), "\r"))
		if name == "" {
			continue
		}
		names = append(names, name)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	return names, nil
}
