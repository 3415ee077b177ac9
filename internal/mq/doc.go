// Package mq предоставляет инфраструктуру для работы с RabbitMQ.
//
// Структура:
//   - broker.go     — интерфейсы соединения/канала и адаптер amqp091-go
//   - state.go      — таблица переходов состояния подключения
//   - connection.go — Manager: подключение с повтором, жизненный цикл канала
//   - topology.go   — объявление очереди и привязка к обменнику
//   - consumer.go   — регистрация consumer'а и цикл доставок
//   - message.go    — декодирование AnalysisRequest (MessagePack)
//
// Топология (из rabbitmq.yaml):
//
//	<main_exchange> (direct)
//	└── <core_files_queue> [routing: <core_files_queue>]
//	        Consumer: malsmug-sandbox, prefetch 1
//
// Manager держит одно соединение и один канал. Ошибка подключения —
// повтор через 5 секунд без ограничения числа попыток. Закрытый брокером
// канал — сигнал штатного завершения.
package mq
