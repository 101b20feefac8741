package main

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/samirrijal/shopradar/internal/core/domain"
)

// shopNamespace derives stable ids for rows that carry none, so re-running
// the seeder updates rather than duplicates them.
var shopNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://shopradar.dev/shops"))

// parseShopsCSV reads rows with the header
// id,name,address,lat,lng,wifi,power_outlets,smoking,takeout.
// Only name, address, lat and lng are required columns. Rows are returned
// unvalidated; unparsable coordinates are left nil.
func parseShopsCSV(r io.Reader) ([]domain.ShopCandidate, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols := indexColumns(header)
	for _, required := range []string{"name", "address", "lat", "lng"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("missing column %q", required)
		}
	}

	var out []domain.ShopCandidate
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			continue
		}

		c := domain.ShopCandidate{
			ID:      getField(record, cols, "id"),
			Name:    getField(record, cols, "name"),
			Address: getField(record, cols, "address"),
			Lat:     parseCoord(getField(record, cols, "lat")),
			Lng:     parseCoord(getField(record, cols, "lng")),
			Amenities: domain.Amenities{
				Wifi:         parseFlag(getField(record, cols, "wifi")),
				PowerOutlets: parseFlag(getField(record, cols, "power_outlets")),
				Smoking:      parseFlag(getField(record, cols, "smoking")),
				Takeout:      parseFlag(getField(record, cols, "takeout")),
			},
		}
		if c.ID == "" && c.Name != "" {
			c.ID = uuid.NewSHA1(shopNamespace, []byte(c.Name+"|"+c.Address)).String()
		}
		out = append(out, c)
	}
	return out, nil
}

func indexColumns(header []string) map[string]int {
	m := make(map[string]int, len(header))
	for i, col := range header {
		// Strip BOM from first column
		col = strings.TrimPrefix(col, "\xef\xbb\xbf")
		m[strings.ToLower(strings.TrimSpace(col))] = i
	}
	return m
}

func getField(record []string, cols map[string]int, name string) string {
	idx, ok := cols[name]
	if !ok || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}

func parseCoord(s string) *float64 {
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

func parseFlag(s string) bool {
	switch strings.ToLower(s) {
	case "1", "true", "yes", "y":
		return true
	}
	return false
}
