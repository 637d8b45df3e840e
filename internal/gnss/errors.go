package gnss

import "fmt"

// ConfigError reports invalid session configuration. It is always fatal
// and is raised before any epoch is processed.
type ConfigError struct {
	Field string
	Msg   string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return "invalid configuration: " + e.Msg
	}
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Msg)
}

// ConfigErrorf builds a *ConfigError for the named setting.
func ConfigErrorf(field, format string, args ...any) error {
	return &ConfigError{Field: field, Msg: fmt.Sprintf(format, args...)}
}
