package repo

import "errors"

// Ошибки репозиториев.
var (
	// ErrJournal — запись в журнал не удалась.
	ErrJournal = errors.New("dispatch journal")

	// ErrNotFound — запись не найдена в БД.
	ErrNotFound = errors.New("not found")
)
