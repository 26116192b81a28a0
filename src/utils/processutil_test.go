package utils

import (
	"testing"

	"github.com/go-gota/gota/dataframe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDistinct(t *testing.T) {
	assert.Equal(t, []string{"Fall", "Spring", "Winter"},
		Distinct([]string{"Fall", "Spring", "Fall", "Winter", "Spring"}))
	assert.Empty(t, Distinct(nil))
}

func TestParseCode(t *testing.T) {
	for in, want := range map[string]int{"3": 3, " 4 ": 4, "2.0": 2, "-1": -1} {
		got, ok := ParseCode(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	for _, in := range []string{"", "2.5", "Spring", "NaN"} {
		_, ok := ParseCode(in)
		assert.False(t, ok, in)
	}
}

func TestColumnReaders(t *testing.T) {
	df := dataframe.LoadRecords([][]string{
		{"hr", "cnt", "label"},
		{"1", "10.5", "a"},
		{"2", "20", "b"},
	})
	require.NoError(t, df.Err)

	assert.True(t, HasColumn(df, "cnt"))
	assert.False(t, HasColumn(df, "yr"))

	hours, err := ColumnInts(df, "hr")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, hours)

	counts, err := ColumnFloats(df, "cnt")
	require.NoError(t, err)
	assert.Equal(t, []float64{10.5, 20}, counts)

	_, err = ColumnFloats(df, "label")
	assert.Error(t, err)
	_, err = ColumnInts(df, "yr")
	assert.Error(t, err)
	assert.True(t, Contains([]int{1, 2}, 2))
}
