// Package telemetry обеспечивает наблюдаемость consumer'а.
//
// Включает:
//   - logging.go — structured logging через slog
//   - metrics.go — Prometheus метрики
//
// Метрики экспортируются на /metrics рядом с /healthz.
package telemetry
