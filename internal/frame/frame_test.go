package frame

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leeksaver/internal/errkind"
)

func sampleFrame() *Frame {
	return &Frame{
		Fields: []string{"code", "trade_date", "close", "note"},
		Items: [][]interface{}{
			{"000001.SZ", "20240115", 10.8, nil},
			{"000002.SZ", "20240115", "20.5", "  "},
		},
	}
}

func TestRequire_AllPresent(t *testing.T) {
	f := sampleFrame()
	err := f.Require("test.Op", "code", "trade_date", "close")
	require.NoError(t, err)
}

func TestRequire_Missing(t *testing.T) {
	f := sampleFrame()
	err := f.Require("test.Op", "code", "volume")
	require.Error(t, err)
	assert.True(t, errkind.Is(err, errkind.SchemaDrift))
}

func TestRow_StringAndFloat(t *testing.T) {
	f := sampleFrame()
	rows := f.Rows()
	require.Len(t, rows, 2)

	assert.Equal(t, "000001.SZ", rows[0].String("code"))
	assert.Equal(t, 10.8, rows[0].Float("close"))
	assert.Equal(t, int64(10), rows[0].Int("close"))

	// second row's close arrives as a string and should still parse
	assert.Equal(t, 20.5, rows[1].Float("close"))
}

func TestRow_IsNull(t *testing.T) {
	f := sampleFrame()
	rows := f.Rows()

	assert.True(t, rows[0].IsNull("note"))  // nil value
	assert.True(t, rows[1].IsNull("note"))  // whitespace-only string
	assert.False(t, rows[0].IsNull("code")) // populated
	assert.True(t, rows[0].IsNull("missing_column"))
}

func TestRow_Date(t *testing.T) {
	f := sampleFrame()
	rows := f.Rows()

	d, ok := rows[0].Date("trade_date")
	require.True(t, ok)
	assert.Equal(t, 2024, d.Year())
	assert.Equal(t, 1, int(d.Month()))
	assert.Equal(t, 15, d.Day())

	_, ok = rows[0].Date("note")
	assert.False(t, ok)
}

func TestRow_DateTime(t *testing.T) {
	f := &Frame{
		Fields: []string{"timestamp"},
		Items:  [][]interface{}{{"2024-01-15 09:30:00"}},
	}
	rows := f.Rows()
	ts, ok := rows[0].DateTime("timestamp")
	require.True(t, ok)
	assert.Equal(t, 9, ts.Hour())
	assert.Equal(t, 30, ts.Minute())
}
