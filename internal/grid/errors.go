package grid

import "fmt"

// ConfigError 表示网格参数非法，构造阶段直接拒绝。
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return "grid config: " + e.Reason
	}
	return fmt.Sprintf("grid config: %s: %s", e.Field, e.Reason)
}

func configErrorf(field, format string, args ...any) error {
	return &ConfigError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
