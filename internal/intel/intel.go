// Package intel loads the auxiliary line-oriented lists the pipeline
// consumes: excluded feature columns and known-malware hashes.
package intel

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// loadLines reads a one-entry-per-line file, skipping blank lines and
// # comments.
func loadLines(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading %s: %w", path, err)
	}
	return lines, nil
}

// LoadExcludedColumns reads the excluded-column list: feature names dropped
// from every record before alignment. An empty path yields an empty set.
func LoadExcludedColumns(path string) (map[string]struct{}, error) {
	if path == "" {
		return map[string]struct{}{}, nil
	}

	lines, err := loadLines(path)
	if err != nil {
		return nil, err
	}

	set := make(map[string]struct{}, len(lines))
	for _, name := range lines {
		set[name] = struct{}{}
	}
	return set, nil
}

// LoadKnownHashes reads the known-malware hash set. Hashes are compared
// case-insensitively, so entries are lowercased on load. An empty path
// yields an empty set.
func LoadKnownHashes(path string) (map[string]struct{}, error) {
	if path == "" {
		return map[string]struct{}{}, nil
	}

	lines, err := loadLines(path)
	if err != nil {
		return nil, err
	}

	set := make(map[string]struct{}, len(lines))
	for _, hash := range lines {
		set[strings.ToLower(hash)] = struct{}{}
	}
	return set, nil
}
