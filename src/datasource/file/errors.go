package file

import (
	"errors"
	"fmt"
)

// ErrDataUnavailable 输入文件缺失或无法解析为表格
var ErrDataUnavailable = errors.New("data unavailable")

// DataUnavailableError 携带出错的表名和路径
type DataUnavailableError struct {
	Table string
	Path  string
	Err   error
}

func (e *DataUnavailableError) Error() string {
	if e.Table == "" {
		return fmt.Sprintf("data unavailable (%s): %v", e.Path, e.Err)
	}
	return fmt.Sprintf("data unavailable: table %s (%s): %v", e.Table, e.Path, e.Err)
}

func (e *DataUnavailableError) Unwrap() error { return e.Err }

func (e *DataUnavailableError) Is(target error) bool { return target == ErrDataUnavailable }
