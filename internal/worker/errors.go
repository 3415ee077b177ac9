package worker

import "errors"

// Ошибки воркера.
var (
	// ErrDispatch — не удалось запустить процесс анализатора.
	ErrDispatch = errors.New("dispatch sandbox engine")

	// ErrHandlerPanic — обработчик сообщения упал с panic.
	ErrHandlerPanic = errors.New("handler panic")
)
