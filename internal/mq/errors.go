package mq

import "errors"

// Ошибки брокера и декодирования сообщений.
var (
	// ErrConnect — не удалось подключиться к брокеру или поднять топологию.
	ErrConnect = errors.New("connect to broker")

	// ErrChannelClosed — канал закрыт брокером. Это сигнал штатного завершения.
	ErrChannelClosed = errors.New("channel closed")

	// ErrAcknowledge — ack/nack не дошёл до брокера (проблема соединения, не сообщения).
	ErrAcknowledge = errors.New("acknowledge delivery")

	// ErrMalformedEncoding — тело сообщения не является корректным MessagePack.
	ErrMalformedEncoding = errors.New("malformed message encoding")

	// ErrSchemaMismatch — MessagePack корректен, но не соответствует AnalysisRequest.
	ErrSchemaMismatch = errors.New("message schema mismatch")
)
