// Package ingest loads daily-bar spreadsheet exports into engine bar series.
// Exports from Korean brokerage tools arrive as UTF-16 (with BOM) or EUC-KR
// encoded CSV with localized headers and thousands separators; everything is
// normalized to UTF-8 and exact decimal prices before the engine sees it.
package ingest

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"swing-backtest/services/engine"
)

// column indexes resolved from the header row.
type columns struct {
	date, open, high, low, close, volume int
}

var headerNames = map[string]int{
	// Korean brokerage export headers.
	"일자": 0, "시가": 1, "고가": 2, "저가": 3, "종가": 4, "거래량": 5,
	// English equivalents.
	"date": 0, "open": 1, "high": 2, "low": 3, "close": 4, "volume": 5,
}

var dateLayouts = []string{"2006-01-02", "2006/01/02", "2006.01.02", "20060102"}

// LoadFile reads one spreadsheet export from disk.
func LoadFile(path string) ([]engine.Bar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	bars, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return bars, nil
}

// Parse decodes and parses a daily-bar CSV stream. Rows come back sorted
// ascending by date with duplicate dates collapsed to the last row seen.
func Parse(r io.Reader) ([]engine.Bar, error) {
	br, err := decoded(r)
	if err != nil {
		return nil, err
	}

	cr := csv.NewReader(br)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	var bars []engine.Bar
	cols := columns{0, 1, 2, 3, 4, 5}
	headerSeen := false
	row := 0
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: %v", engine.ErrMalformedInput, row+1, err)
		}
		row++
		if blank(rec) {
			continue
		}
		if !headerSeen {
			headerSeen = true
			if c, ok := headerColumns(rec); ok {
				cols = c
				continue
			}
		}
		if len(rec) <= cols.volume {
			return nil, fmt.Errorf("%w: row %d has %d fields", engine.ErrMalformedInput, row, len(rec))
		}

		b, err := parseRow(rec, cols)
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: %v", engine.ErrMalformedInput, row, err)
		}
		bars = append(bars, b)
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("%w: no data rows", engine.ErrMalformedInput)
	}
	return engine.SortAndDedup(bars), nil
}

func parseRow(rec []string, cols columns) (engine.Bar, error) {
	date, err := parseDate(rec[cols.date])
	if err != nil {
		return engine.Bar{}, err
	}
	prices := [4]decimal.Decimal{}
	for i, idx := range []int{cols.open, cols.high, cols.low, cols.close} {
		prices[i], err = parseNumber(rec[idx])
		if err != nil {
			return engine.Bar{}, err
		}
	}
	vol, err := parseNumber(rec[cols.volume])
	if err != nil {
		return engine.Bar{}, err
	}
	return engine.Bar{
		Date: date,
		Open: prices[0], High: prices[1], Low: prices[2], Close: prices[3],
		Volume: vol,
	}, nil
}

// decoded wraps r so the CSV reader always sees UTF-8. UTF-16 is detected by
// BOM; input that is not valid UTF-8 falls back to EUC-KR.
func decoded(r io.Reader) (*bufio.Reader, error) {
	br := bufio.NewReader(r)
	head, err := br.Peek(2)
	if err != nil && err != io.EOF {
		return nil, err
	}
	if len(head) >= 2 && ((head[0] == 0xFF && head[1] == 0xFE) || (head[0] == 0xFE && head[1] == 0xFF)) {
		endian := unicode.LittleEndian
		if head[0] == 0xFE {
			endian = unicode.BigEndian
		}
		dec := unicode.UTF16(endian, unicode.ExpectBOM).NewDecoder()
		return bufio.NewReader(transform.NewReader(br, dec)), nil
	}

	// Sniff a chunk: legacy exports are EUC-KR without any marker.
	sniff, err := br.Peek(4096)
	if err != nil && err != io.EOF {
		return nil, err
	}
	if !utf8.Valid(trimPartialRune(sniff)) {
		return bufio.NewReader(transform.NewReader(br, korean.EUCKR.NewDecoder())), nil
	}
	return br, nil
}

// trimPartialRune drops bytes of a rune cut off by the peek boundary so the
// validity check does not misfire on truncation.
func trimPartialRune(b []byte) []byte {
	for n := 0; n < 3 && len(b) > 0; n++ {
		r, size := utf8.DecodeLastRune(b)
		if r != utf8.RuneError || size != 1 {
			return b
		}
		b = b[:len(b)-1]
	}
	return b
}

func headerColumns(rec []string) (columns, bool) {
	cols := columns{-1, -1, -1, -1, -1, -1}
	for i, field := range rec {
		slot, ok := headerNames[strings.ToLower(cleanField(field))]
		if !ok {
			continue
		}
		switch slot {
		case 0:
			cols.date = i
		case 1:
			cols.open = i
		case 2:
			cols.high = i
		case 3:
			cols.low = i
		case 4:
			cols.close = i
		case 5:
			cols.volume = i
		}
	}
	if cols.date < 0 || cols.open < 0 || cols.high < 0 || cols.low < 0 ||
		cols.close < 0 || cols.volume < 0 {
		return columns{}, false
	}
	return cols, true
}

func parseDate(s string) (time.Time, error) {
	s = cleanField(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable date %q", s)
}

// parseNumber strips quoting and thousands separators before decimal parsing.
func parseNumber(s string) (decimal.Decimal, error) {
	s = strings.ReplaceAll(cleanField(s), ",", "")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("unparseable number %q", s)
	}
	return d, nil
}

func cleanField(s string) string {
	s = strings.TrimPrefix(s, "\ufeff")
	return strings.TrimSpace(strings.Trim(strings.TrimSpace(s), `"`))
}

func blank(rec []string) bool {
	return len(rec) == 0 || (len(rec) == 1 && strings.TrimSpace(rec[0]) == "")
}
