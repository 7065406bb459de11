package main

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// readTSV reads a tab separated file. Rows may have any number of fields
// and stray quotes are kept as text.
func readTSV(r io.Reader) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.Comma = '\t'
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse tsv: %w", err)
	}
	return rows, nil
}

// objectKeysFromTSV returns the second column of every row, skipping rows
// that are too short or have an empty key.
func objectKeysFromTSV(r io.Reader) ([]string, error) {
	rows, err := readTSV(r)
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(rows))
	for _, row := range rows {
		if len(row) < 2 {
			continue
		}
		if key := strings.TrimSpace(row[1]); key != "" {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

// titlesFromTSV maps the "src" column to the "filename" column, located by
// header name. Rows without a filename map to their src.
func titlesFromTSV(r io.Reader) (map[string]string, error) {
	rows, err := readTSV(r)
	if err != nil {
		return nil, err
	}
	titles := make(map[string]string)
	if len(rows) == 0 {
		return titles, nil
	}

	srcCol, nameCol := -1, -1
	for i, name := range rows[0] {
		switch strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")) {
		case "src":
			srcCol = i
		case "filename":
			nameCol = i
		}
	}
	if srcCol < 0 {
		return nil, errors.New(`tsv header has no "src" column`)
	}

	for _, row := range rows[1:] {
		src := column(row, srcCol)
		if src == "" {
			continue
		}
		title := column(row, nameCol)
		if title == "" {
			title = src
		}
		titles[src] = title
	}
	return titles, nil
}

func column(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func openTSV(path string, parse func(io.Reader) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open tsv: %w", err)
	}
	defer func() { _ = f.Close() }()
	return parse(f)
}
