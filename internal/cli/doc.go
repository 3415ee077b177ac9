// Package cli — служебные команды malsmug-sandbox.
//
// Сейчас это одна команда: просмотр журнала запусков анализатора
// по analysis_id.
//
//	malsmug-sandbox dispatches 550e8400-e29b-41d4-a716-446655440000
//	malsmug-sandbox dispatches A1 --json | jq .
//
// Таблицы и JSON идут в stdout, сообщения — в stderr.
package cli
