package processor

import (
	"BikeRentalDashboard/src/config"
	"strconv"
	"testing"

	"github.com/go-gota/gota/dataframe"
	"github.com/stretchr/testify/require"
)

var testCols = ColumnsFrom(config.DefaultData())

func load(t *testing.T, records [][]string) dataframe.DataFrame {
	t.Helper()
	df := dataframe.LoadRecords(records)
	require.NoError(t, df.Err)
	return df
}

func weatherTable(t *testing.T) dataframe.DataFrame {
	return load(t, [][]string{
		{"weathersit", "cnt"},
		{"2", "300"},
		{"1", "500"},
		{"1", "700"},
		{"3", "100"},
		{"4", "20"},
		{"2", "340"},
	})
}

func seasonTable(t *testing.T) dataframe.DataFrame {
	return load(t, [][]string{
		{"season", "yr", "cnt"},
		{"1", "0", "1000"},
		{"4", "0", "1500"},
		{"4", "1", "2500"},
		{"2", "0", "3000"},
		{"4", "1", "3500"},
		{"3", "1", "4000"},
	})
}

// hourTable 0..23 时每个小时两行：工作日和非工作日
func hourTable(t *testing.T) dataframe.DataFrame {
	records := [][]string{{"hr", "weekday", "workingday", "cnt"}}
	for h := 0; h < 24; h++ {
		records = append(records,
			[]string{strconv.Itoa(h), "1", "1", strconv.Itoa(100 + h)},
			[]string{strconv.Itoa(h), "6", "0", strconv.Itoa(50 + h)},
		)
	}
	return load(t, records)
}

func newTestPipeline(t *testing.T) *Pipeline {
	t.Helper()
	p, err := NewPipeline(Tables{
		Weather: weatherTable(t),
		Season:  seasonTable(t),
		Hour:    hourTable(t),
	}, config.DefaultData(), RenderOptions{})
	require.NoError(t, err)
	return p
}
