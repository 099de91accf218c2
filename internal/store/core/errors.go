package core

import "errors"

// Errores comunes de repositorio.
var (
	// ErrNotFound indica que el registro no existe.
	ErrNotFound = errors.New("store: not found")

	// ErrAlreadyExists indica violación de unicidad (email, tenant).
	ErrAlreadyExists = errors.New("store: already exists")

	// ErrPreconditionFailed indica que una actualización condicional no
	// matcheó el estado esperado (match-then-set).
	ErrPreconditionFailed = errors.New("store: precondition failed")
)

// IsNotFound verifica si el error es por registro inexistente.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
