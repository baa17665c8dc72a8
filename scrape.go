package main

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Fallback patterns for when the leaderboard markup changes under goquery.
var (
	reHeartRateAbbr = regexp.MustCompile(`(?i)(\d+)<abbr[^>]*title=["']beats per minute["']`)
	rePowerAbbr     = regexp.MustCompile(`(?i)(\d+)<abbr[^>]*title=["']watts["']`)
	rePowerMeter    = regexp.MustCompile(`(?i)title=["']Power Meter["']`)
	reDigits        = regexp.MustCompile(`\d+`)
)

// leaderStats fetches the segment page and extracts the leader's heart rate,
// power and whether the power reading came from a power meter. A reading the
// page does not show comes back nil.
func (c *apiClient) leaderStats(ctx context.Context, segmentID int64) (hr, power *int, verified bool, err error) {
	b, err := c.get(ctx, fmt.Sprintf("%s/segments/%d", c.baseURL, segmentID))
	if err != nil {
		return nil, nil, false, err
	}
	hr, power, verified = parseLeaderStats(b)
	return hr, power, verified, nil
}

// parseLeaderStats walks the first leaderboard row for bpm and watt cells,
// falling back to regexes over the raw page when the table is missing.
func parseLeaderStats(page []byte) (hr, power *int, verified bool) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err == nil {
		row := doc.Find("table.table-leaderboard tbody tr").First()
		row.Find("td").Each(func(_ int, cell *goquery.Selection) {
			text := strings.TrimSpace(cell.Text())

			if strings.Contains(text, "bpm") {
				if n, ok := firstInt(text); ok {
					hr = &n
				}
			}

			if strings.Contains(text, "W") && isPowerCell(cell) {
				if n, ok := firstInt(text); ok {
					power = &n
					if cell.Find(`span[title="Power Meter"]`).Length() > 0 {
						verified = true
					}
				}
			}
		})
		if hr != nil || power != nil {
			return hr, power, verified
		}
	}

	if m := reHeartRateAbbr.FindSubmatch(page); m != nil {
		if n, err := strconv.Atoi(string(m[1])); err == nil {
			hr = &n
		}
	}
	if m := rePowerAbbr.FindSubmatch(page); m != nil {
		if n, err := strconv.Atoi(string(m[1])); err == nil {
			power = &n
			verified = rePowerMeter.Match(page)
		}
	}
	return hr, power, verified
}

// isPowerCell reports whether the cell is marked as a power column, either
// on the cell itself or on a descendant.
func isPowerCell(cell *goquery.Selection) bool {
	if cls, ok := cell.Attr("class"); ok && strings.Contains(cls, "power") {
		return true
	}
	return cell.Find(`[class*="power"]`).Length() > 0
}

func firstInt(s string) (int, bool) {
	m := reDigits.FindString(s)
	if m == "" {
		return 0, false
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0, false
	}
	return n, true
}
