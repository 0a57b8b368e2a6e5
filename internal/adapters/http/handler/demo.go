package handler

import (
	"encoding/json"
	"fmt"
	"os"
)

// DemoSource は static モードで返す固定の社員データを提供します。
type DemoSource interface {
	Employees() ([]json.RawMessage, error)
}

// FileDemoSource はディスク上の JSON ファイル ({"employee_array": [...]}) を読み込みます。
type FileDemoSource struct {
	Path string
}

// Employees は呼び出しごとにファイルを読み込みます。
func (s FileDemoSource) Employees() ([]json.RawMessage, error) {
	b, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("demo: read %s: %w", s.Path, err)
	}

	var payload struct {
		EmployeeArray []json.RawMessage `json:"employee_array"`
	}
	if err := json.Unmarshal(b, &payload); err != nil {
		return nil, fmt.Errorf("demo: parse %s: %w", s.Path, err)
	}
	return payload.EmployeeArray, nil
}
