package utils

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/go-gota/gota/dataframe"
)

func Contains[T comparable](slice []T, item T) bool {
	for _, v := range slice {
		if v == item {
			return true
		}
	}
	return false
}

// 辅助函数：判断DataFrame是否有某列
func HasColumn(df dataframe.DataFrame, name string) bool {
	return Contains(df.Names(), name)
}

// Distinct 按首次出现顺序去重
func Distinct(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

// ParseCode 将 "3" 或 "3.0" 解析为整数编码
func ParseCode(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		return n, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != float64(int(f)) {
		return 0, false
	}
	return int(f), true
}

// ColumnInts 读取整数列
func ColumnInts(df dataframe.DataFrame, name string) ([]int, error) {
	if !HasColumn(df, name) {
		return nil, fmt.Errorf("column %q not found", name)
	}
	records := df.Col(name).Records()
	out := make([]int, len(records))
	for i, r := range records {
		n, ok := ParseCode(r)
		if !ok {
			return nil, fmt.Errorf("column %q row %d: %q is not an integer", name, i, r)
		}
		out[i] = n
	}
	return out, nil
}

// ColumnFloats 读取数值列
func ColumnFloats(df dataframe.DataFrame, name string) ([]float64, error) {
	if !HasColumn(df, name) {
		return nil, fmt.Errorf("column %q not found", name)
	}
	records := df.Col(name).Records()
	out := make([]float64, len(records))
	for i, r := range records {
		f, err := strconv.ParseFloat(strings.TrimSpace(r), 64)
		if err != nil {
			return nil, fmt.Errorf("column %q row %d: %q is not numeric", name, i, r)
		}
		out[i] = f
	}
	return out, nil
}
