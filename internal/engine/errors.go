package engine

import (
	"errors"
	"fmt"
)

// ErrNotMonitoring — реплей пишет трафик в живой поток мониторинга, поэтому без него запрещен.
var ErrNotMonitoring = errors.New("monitoring is not active")

// ErrClosed — контроллер уже остановлен через Close.
var ErrClosed = errors.New("controller is closed")

// ValidationError — ошибка, найденная локально до любого сетевого вызова.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

func invalid(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}
