// reader.go
package file

import (
	"BikeRentalDashboard/src/utils"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/hashicorp/go-multierror"
	"github.com/tealeg/xlsx"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"
)

// Options 读取选项
type Options struct {
	Encoding  string // 输入编码，空或 utf-8 表示不转换
	SheetName string // xlsx 工作表名，空表示第一个工作表
}

// Source 描述一张待加载的表
type Source struct {
	Table    string   // 表名，用于日志和错误
	Path     string   // 文件路径
	Required []string // 必须存在的列
}

// LoadTable 按扩展名读取 CSV 或 XLSX 为 DataFrame，保持列名和行顺序
func LoadTable(path string, opts Options) (dataframe.DataFrame, error) {
	var (
		df  dataframe.DataFrame
		err error
	)

	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		df, err = ReadXLSX(path, opts.SheetName)
	default:
		df, err = ReadCSV(path, opts.Encoding)
	}
	if err != nil {
		return dataframe.DataFrame{}, &DataUnavailableError{Path: path, Err: err}
	}
	if df.Ncol() == 0 {
		return dataframe.DataFrame{}, &DataUnavailableError{Path: path, Err: errors.New("no columns")}
	}
	return df, nil
}

// LoadTables 依次加载所有表，全部尝试后合并错误
func LoadTables(sources []Source, opts Options) (map[string]dataframe.DataFrame, error) {
	var errs *multierror.Error
	tables := make(map[string]dataframe.DataFrame, len(sources))

	for _, src := range sources {
		df, err := LoadTable(src.Path, opts)
		if err != nil {
			var due *DataUnavailableError
			if errors.As(err, &due) {
				due.Table = src.Table
			}
			errs = multierror.Append(errs, err)
			continue
		}

		var missing []string
		for _, col := range src.Required {
			if !utils.HasColumn(df, col) {
				missing = append(missing, col)
			}
		}
		if len(missing) > 0 {
			errs = multierror.Append(errs, &DataUnavailableError{
				Table: src.Table,
				Path:  src.Path,
				Err:   fmt.Errorf("missing columns %v (have %v)", missing, df.Names()),
			})
			continue
		}
		tables[src.Table] = df
	}

	if err := errs.ErrorOrNil(); err != nil {
		return nil, &DataUnavailableError{Err: err, Path: filepath.Dir(firstPath(sources))}
	}
	return tables, nil
}

func firstPath(sources []Source) string {
	if len(sources) == 0 {
		return "."
	}
	return sources[0].Path
}

// ReadCSV 读取 CSV，必要时先做编码转换
func ReadCSV(path, encoding string) (dataframe.DataFrame, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return dataframe.DataFrame{}, err
	}

	r, err := decodeReader(bytes.NewReader(data), encoding)
	if err != nil {
		return dataframe.DataFrame{}, err
	}

	df := dataframe.ReadCSV(r)
	if df.Err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("parse csv: %w", df.Err)
	}
	return df, nil
}

// decodeReader 使用 x/text 将指定编码转换为 UTF-8
func decodeReader(r io.Reader, encoding string) (io.Reader, error) {
	name := strings.ToLower(strings.TrimSpace(encoding))
	if name == "" || name == "utf-8" || name == "utf8" {
		return r, nil
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, fmt.Errorf("unsupported encoding %q: %w", encoding, err)
	}
	return transform.NewReader(r, enc.NewDecoder()), nil
}

// ReadXLSX 读取工作表，第一行为表头
func ReadXLSX(filePath, sheetName string) (dataframe.DataFrame, error) {

	// 1. 使用tealeg/xlsx打开Excel文件
	xlFile, err := xlsx.OpenFile(filePath)
	if err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("xlsx open file: %w", err)
	}

	// 2. 获取工作表
	if len(xlFile.Sheets) == 0 {
		return dataframe.DataFrame{}, errors.New("excel文件中没有工作表")
	}
	sheet := xlFile.Sheets[0]
	if sheetName != "" {
		s, ok := xlFile.Sheet[sheetName]
		if !ok {
			return dataframe.DataFrame{}, fmt.Errorf("sheet %q not found", sheetName)
		}
		sheet = s
	}

	// 3. 转换为Gota DataFrame
	return convertSheetToDataFrame(sheet)
}

// convertSheetToDataFrame 将xlsx.Sheet转换为dataframe.DataFrame
func convertSheetToDataFrame(sheet *xlsx.Sheet) (dataframe.DataFrame, error) {
	if len(sheet.Rows) == 0 {
		return dataframe.DataFrame{}, errors.New("sheet has no rows")
	}

	var headers []string
	for _, cell := range sheet.Rows[0].Cells {
		headers = append(headers, strings.TrimSpace(cell.String()))
	}
	if len(headers) == 0 {
		return dataframe.DataFrame{}, errors.New("sheet has no header")
	}

	records := make([][]string, 0, len(sheet.Rows))
	records = append(records, headers)
	for _, row := range sheet.Rows[1:] {
		if row == nil {
			continue
		}
		rec := make([]string, len(headers))
		empty := true
		for i, cell := range row.Cells {
			if i < len(headers) { // 确保不超出列数范围
				rec[i] = cell.String()
				if rec[i] != "" {
					empty = false
				}
			}
		}
		// 跳过完全空的行
		if empty {
			continue
		}
		records = append(records, rec)
	}

	// 自动推断列类型
	df := dataframe.LoadRecords(records)
	if df.Err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("convert sheet: %w", df.Err)
	}
	return df, nil
}
