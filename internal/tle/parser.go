package tle

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// prnPattern matches the PRN Celestrak puts in GPS names, e.g.
// "GPS BIIR-2  (PRN 13)".
var prnPattern = regexp.MustCompile(`\(PRN\s*(\d+)\)`)

// ParsePRN extracts the PRN from a satellite name.
func ParsePRN(name string) (int, bool) {
	m := prnPattern.FindStringSubmatch(name)
	if m == nil {
		return 0, false
	}
	prn, err := strconv.Atoi(m[1])
	if err != nil || prn <= 0 {
		return 0, false
	}
	return prn, true
}

// Parse reads 3-line TLE data from r. Malformed entries and entries whose
// name carries no PRN are skipped with a warning.
func Parse(r io.Reader, logger *slog.Logger) ([]Element, error) {
	scanner := bufio.NewScanner(r)
	var lines []string
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r\n ")
		if line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading TLE data: %w", err)
	}

	var elements []Element
	for i := 0; i+2 < len(lines); {
		name, line1, line2 := strings.TrimSpace(lines[i]), lines[i+1], lines[i+2]

		if !strings.HasPrefix(line1, "1 ") || !strings.HasPrefix(line2, "2 ") {
			// Resynchronise on the next line.
			logger.Warn("skipping malformed TLE entry", "line_index", i, "name", name)
			i++
			continue
		}
		i += 3

		if len(line1) < 32 {
			logger.Warn("skipping TLE entry with short line1", "name", name)
			continue
		}
		noradID, err := strconv.Atoi(strings.TrimSpace(line1[2:7]))
		if err != nil {
			logger.Warn("skipping TLE entry with invalid catalog number", "name", name)
			continue
		}
		epoch, err := parseEpoch(strings.TrimSpace(line1[18:32]))
		if err != nil {
			logger.Warn("skipping TLE entry with invalid epoch", "name", name, "error", err)
			continue
		}
		prn, ok := ParsePRN(name)
		if !ok {
			logger.Debug("skipping TLE entry without PRN", "name", name, "norad_id", noradID)
			continue
		}

		elements = append(elements, Element{
			PRN:     prn,
			NORADID: noradID,
			Name:    name,
			Epoch:   epoch,
			Line1:   line1,
			Line2:   line2,
		})
	}

	return elements, nil
}

// parseEpoch converts a YYDDD.DDDDDDDD epoch to time.Time.
// Years 57-99 are 19xx, 00-56 are 20xx.
func parseEpoch(s string) (time.Time, error) {
	if len(s) < 5 {
		return time.Time{}, fmt.Errorf("epoch string too short: %q", s)
	}

	year, err := strconv.Atoi(s[:2])
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid epoch year %q: %w", s[:2], err)
	}
	if year >= 57 {
		year += 1900
	} else {
		year += 2000
	}

	day, err := strconv.ParseFloat(s[2:], 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid epoch day %q: %w", s[2:], err)
	}

	// Day 1 is January 1st.
	start := time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC)
	return start.Add(time.Duration((day - 1) * float64(24*time.Hour))), nil
}
