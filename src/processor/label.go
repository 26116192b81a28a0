package processor

import (
	"BikeRentalDashboard/src/utils"
	"errors"
	"fmt"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// ErrUnmappedLabel 严格模式下出现查找表之外的编码
var ErrUnmappedLabel = errors.New("unmapped label code")

// MapStats 标签替换统计
type MapStats struct {
	Column   string
	Mapped   int
	Unmapped int
	Codes    []string // 未映射的原始值(去重)
}

// MapLabels 将 column 中的整数编码替换为可读标签，未命中的值保持原样。
// 结果列为字符串类型；对已映射的列再次调用不会改变结果。
func MapLabels(df dataframe.DataFrame, column string, lookup map[int]string) (dataframe.DataFrame, MapStats, error) {
	stats := MapStats{Column: column}
	if !utils.HasColumn(df, column) {
		return df, stats, fmt.Errorf("map labels: column %q not found", column)
	}

	records := df.Col(column).Records()
	mapped := make([]string, len(records))
	var unmapped []string
	for i, v := range records {
		if code, ok := utils.ParseCode(v); ok {
			if label, ok := lookup[code]; ok {
				mapped[i] = label
				stats.Mapped++
				continue
			}
		}
		mapped[i] = v
		if !isLabel(v, lookup) {
			stats.Unmapped++
			unmapped = append(unmapped, v)
		}
	}
	stats.Codes = utils.Distinct(unmapped)

	out := df.Mutate(series.New(mapped, series.String, column))
	if out.Err != nil {
		return df, stats, fmt.Errorf("map labels: %w", out.Err)
	}
	return out, stats, nil
}

// MapLabelsStrict 同 MapLabels，但存在未映射编码时返回 ErrUnmappedLabel
func MapLabelsStrict(df dataframe.DataFrame, column string, lookup map[int]string) (dataframe.DataFrame, MapStats, error) {
	out, stats, err := MapLabels(df, column, lookup)
	if err != nil {
		return df, stats, err
	}
	if stats.Unmapped > 0 {
		return df, stats, fmt.Errorf("%w: column %q values %v", ErrUnmappedLabel, column, stats.Codes)
	}
	return out, stats, nil
}

// isLabel 已经是查找表中的标签(重复映射时)不计为未映射
func isLabel(v string, lookup map[int]string) bool {
	for _, label := range lookup {
		if label == v {
			return true
		}
	}
	return false
}
