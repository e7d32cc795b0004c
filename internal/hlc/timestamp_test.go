package hlc

import (
	"encoding/json"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	nodeA = "000000000000000a"
	nodeB = "000000000000000b"
)

func TestTimestamp_String(t *testing.T) {
	ts := Timestamp{Millis: 1704164645006, Counter: 10, Node: nodeA}
	assert.Equal(t, "2024-01-02T03:04:05.006Z-000a-000000000000000a", ts.String())
}

func TestParse_RoundTrip(t *testing.T) {
	ts := Timestamp{Millis: 1704164645006, Counter: 0xbeef, Node: nodeB}

	got, err := Parse(ts.String())
	require.NoError(t, err)
	assert.Equal(t, ts, got)
}

func TestParse_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"short", "2024-01-02T03:04:05.006Z-000a"},
		{"bad separator", "2024-01-02T03:04:05.006Z+000a-000000000000000a"},
		{"bad counter", "2024-01-02T03:04:05.006Z-zzzz-000000000000000a"},
		{"uppercase counter", "2024-01-02T03:04:05.006Z-000A-000000000000000a"},
		{"bad node", "2024-01-02T03:04:05.006Z-000a-000000000000000G"},
		{"bad time", "2024-13-02T03:04:05.006Z-000a-000000000000000a"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.input)
			assert.Error(t, err)
		})
	}
}

func TestMustParse_Panics(t *testing.T) {
	assert.Panics(t, func() { MustParse("nope") })
}

func TestCompare(t *testing.T) {
	base := Timestamp{Millis: 1000, Counter: 1, Node: nodeA}

	assert.Equal(t, 0, base.Compare(base))
	assert.Equal(t, -1, base.Compare(Timestamp{Millis: 1001, Counter: 0, Node: nodeA}))
	assert.Equal(t, -1, base.Compare(Timestamp{Millis: 1000, Counter: 2, Node: nodeA}))
	assert.Equal(t, -1, base.Compare(Timestamp{Millis: 1000, Counter: 1, Node: nodeB}))
	assert.Equal(t, 1, base.Compare(Timestamp{Millis: 999, Counter: 9, Node: nodeB}))
}

func TestStringOrderMatchesCompare(t *testing.T) {
	stamps := []Timestamp{
		{Millis: 1704164645006, Counter: 2, Node: nodeB},
		{Millis: 1704164645006, Counter: 2, Node: nodeA},
		{Millis: 1, Counter: 0xffff, Node: nodeA},
		{Millis: 1704164645007, Counter: 0, Node: nodeA},
		{Millis: 1704164645006, Counter: 16, Node: nodeA},
	}

	byCompare := append([]Timestamp(nil), stamps...)
	sort.Slice(byCompare, func(i, j int) bool { return byCompare[i].Compare(byCompare[j]) < 0 })

	byString := append([]Timestamp(nil), stamps...)
	sort.Slice(byString, func(i, j int) bool { return byString[i].String() < byString[j].String() })

	assert.Equal(t, byCompare, byString)
}

func TestOrigin(t *testing.T) {
	ts := Timestamp{Millis: 1, Node: nodeB}
	assert.Equal(t, nodeB, ts.Origin())
}

func TestTimestamp_Validate(t *testing.T) {
	y10k := time.Date(10000, time.January, 1, 0, 0, 0, 0, time.UTC).UnixMilli()

	assert.NoError(t, Timestamp{Millis: 5, Node: nodeA}.Validate())
	assert.NoError(t, Timestamp{Millis: y10k - 1, Counter: MaxCounter, Node: nodeA}.Validate())
	assert.Error(t, Timestamp{Millis: 5}.Validate())
	assert.Error(t, Timestamp{Millis: y10k, Node: nodeA}.Validate())

	// Whatever Validate accepts, Parse reads back.
	for _, ts := range []Timestamp{
		{Millis: 5, Node: nodeA},
		{Millis: y10k - 1, Counter: 7, Node: nodeB},
		{Millis: -1, Node: nodeA},
	} {
		require.NoError(t, ts.Validate())
		back, err := Parse(ts.String())
		require.NoError(t, err)
		assert.Equal(t, ts, back)
	}
}

func TestTimestamp_JSON(t *testing.T) {
	ts := Timestamp{Millis: 1704067200001, Counter: 2, Node: nodeA}

	data, err := json.Marshal(map[string]Timestamp{"timestamp": ts})
	require.NoError(t, err)
	assert.JSONEq(t, `{"timestamp":"2024-01-01T00:00:00.001Z-0002-000000000000000a"}`, string(data))

	var back map[string]Timestamp
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, ts, back["timestamp"])

	_, err = json.Marshal(Timestamp{Millis: 1})
	assert.Error(t, err, "a timestamp without a node has no stored form")

	var bad Timestamp
	assert.Error(t, json.Unmarshal([]byte(`"2024-01-01"`), &bad))
}

func TestValidateNodeID(t *testing.T) {
	assert.NoError(t, ValidateNodeID("0123456789abcdef"))
	assert.Error(t, ValidateNodeID("0123456789ABCDEF"))
	assert.Error(t, ValidateNodeID("abc"))
	assert.Error(t, ValidateNodeID(""))
}
