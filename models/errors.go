package models

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound = errors.New("not found")
	ErrBadData  = errors.New("bad data")
	ErrConflict = errors.New("conflict")
)

// ConfigurationError indica que falta ao projeto uma definição sem a qual a
// operação não roda (estado resolvido, severidade). Nunca é preenchida com padrão.
type ConfigurationError struct {
	Msg string
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Msg
}

func NewConfigurationError(format string, args ...any) error {
	return &ConfigurationError{Msg: fmt.Sprintf(format, args...)}
}

func IsConfigurationError(err error) bool {
	var cfgErr *ConfigurationError
	return errors.As(err, &cfgErr)
}

// BadData embrulha ErrBadData com uma mensagem para quem chamou.
func BadData(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrBadData, fmt.Sprintf(format, args...))
}
