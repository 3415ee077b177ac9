// Package repo хранит журнал запусков анализатора в Postgres.
//
// Журнал опционален: без DB_URL consumer работает без него.
// Запись в журнал происходит после ack, поэтому её ошибка
// не влияет на доставку сообщения.
package repo
