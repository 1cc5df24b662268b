package ingest

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"swing-backtest/services/engine"
)

const koreanCSV = "일자,시가,고가,저가,종가,거래량\n" +
	"2024/01/03,\"70,100\",\"71,000\",\"69,800\",\"70,500\",\"12,345,678\"\n" +
	"2024/01/02,70000,70400,69700,70200,9000000\n" +
	"2024/01/03,70150,71050,69850,70550,12345679\n"

func TestParseKoreanHeadersSortsAndDedups(t *testing.T) {
	bars, err := Parse(strings.NewReader(koreanCSV))
	require.NoError(t, err)
	require.Len(t, bars, 2)

	assert.True(t, bars[0].Date.Equal(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)))
	assert.True(t, bars[1].Date.Equal(time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)))
	// Last row for the duplicated date wins.
	assert.True(t, bars[1].Close.Equal(decimal.NewFromInt(70550)))
	// Thousands separators stripped on the surviving rows.
	assert.True(t, bars[0].Volume.Equal(decimal.NewFromInt(9_000_000)))
}

func TestParseEnglishHeadersAndDateFormats(t *testing.T) {
	in := "Date,Open,High,Low,Close,Volume\n" +
		"20240102,100,101,99,100.5,1000\n" +
		"2024-01-03,100.5,102,100,101.25,1100\n" +
		"2024.01.04,101.25,103,101,102,1200\n"

	bars, err := Parse(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, bars, 3)
	assert.True(t, bars[2].Date.Equal(time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC)))
	assert.True(t, bars[1].Close.Equal(decimal.RequireFromString("101.25")))
}

func TestParseHeaderless(t *testing.T) {
	in := "2024-01-02,100,101,99,100,1000\n2024-01-03,100,102,99,101,1100\n"
	bars, err := Parse(strings.NewReader(in))
	require.NoError(t, err)
	assert.Len(t, bars, 2)
}

func TestParseReorderedColumns(t *testing.T) {
	in := "close,volume,date,open,high,low\n" +
		"100.5,1000,2024-01-02,100,101,99\n"
	bars, err := Parse(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, bars, 1)
	assert.True(t, bars[0].Close.Equal(decimal.RequireFromString("100.5")))
	assert.True(t, bars[0].Low.Equal(decimal.NewFromInt(99)))
}

func TestParseUTF16LE(t *testing.T) {
	enc := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder()
	raw, _, err := transform.Bytes(enc, []byte(koreanCSV))
	require.NoError(t, err)
	require.Equal(t, byte(0xFF), raw[0], "sanity: BOM must be present")

	bars, err := Parse(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Len(t, bars, 2)
}

func TestParseEUCKR(t *testing.T) {
	raw, _, err := transform.Bytes(korean.EUCKR.NewEncoder(), []byte(koreanCSV))
	require.NoError(t, err)

	bars, err := Parse(bytes.NewReader(raw))
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.True(t, bars[1].High.Equal(decimal.NewFromInt(71050)))
}

func TestParseRejectsGarbageRow(t *testing.T) {
	in := "date,open,high,low,close,volume\n2024-01-02,100,101,99,abc,1000\n"
	_, err := Parse(strings.NewReader(in))
	assert.ErrorIs(t, err, engine.ErrMalformedInput)
}

func TestParseRejectsEmptyInput(t *testing.T) {
	_, err := Parse(strings.NewReader(""))
	assert.ErrorIs(t, err, engine.ErrMalformedInput)

	_, err = Parse(strings.NewReader("date,open,high,low,close,volume\n"))
	assert.ErrorIs(t, err, engine.ErrMalformedInput)
}
