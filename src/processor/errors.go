package processor

import (
	"errors"
	"fmt"
)

// ErrRenderFailure 图表无法生成
var ErrRenderFailure = errors.New("render failure")

// RenderError 单个图表渲染失败
type RenderError struct {
	Chart string
	Err   error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render %s chart: %v", e.Chart, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

func (e *RenderError) Is(target error) bool { return target == ErrRenderFailure }
