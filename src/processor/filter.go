package processor

import (
	"BikeRentalDashboard/src/utils"
	"fmt"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// SelectHour 返回 hourCol 等于 hour 的行，保持原顺序；无匹配时返回空表
func SelectHour(df dataframe.DataFrame, hourCol string, hour int) (dataframe.DataFrame, error) {
	return selectEq(df, hourCol, hour)
}

// SelectSeason 返回已映射的季节列等于 label 的行，保持原顺序
func SelectSeason(df dataframe.DataFrame, seasonCol, label string) (dataframe.DataFrame, error) {
	return selectEq(df, seasonCol, label)
}

func selectEq(df dataframe.DataFrame, col string, value any) (dataframe.DataFrame, error) {
	if !utils.HasColumn(df, col) {
		return dataframe.DataFrame{}, fmt.Errorf("select: column %q not found", col)
	}
	filtered := df.Filter(
		dataframe.F{Colname: col, Comparator: series.Eq, Comparando: value},
	)
	if filtered.Err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("select %s == %v: %w", col, value, filtered.Err)
	}
	return filtered, nil
}
