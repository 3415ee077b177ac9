package mq

import (
	"fmt"
	"strings"
)

// Topology — очередь и её привязка к обменнику.
//
// Очередь всегда durable и auto-delete, routing key совпадает с именем очереди.
type Topology struct {
	Exchange string
	Queue    string
}

const (
	queueDurable    = true
	queueAutoDelete = true
)

// RoutingKey возвращает ключ маршрутизации очереди.
func (t Topology) RoutingKey() string {
	return t.Queue
}

// DeclareTopology объявляет очередь и привязывает её к обменнику.
//
// Обменник объявляет core; если его ещё нет, bind закроет канал
// и Manager повторит подключение.
func DeclareTopology(ch Channel, t Topology) error {
	_, err := ch.QueueDeclare(
		t.Queue,      // name
		queueDurable,    // durable
		queueAutoDelete, // delete when unused
		false,           // exclusive
		false,           // no-wait
		nil,             // arguments
	)
	if err != nil {
		return fmt.Errorf("declare queue %s: %w", t.Queue, err)
	}

	err = ch.QueueBind(
		t.Queue,        // queue name
		t.RoutingKey(), // routing key
		t.Exchange,     // exchange
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		return fmt.Errorf("bind queue %s to %s: %w", t.Queue, t.Exchange, err)
	}

	return nil
}

// Info возвращает описание топологии для логирования.
func (t Topology) Info() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (direct)\n", t.Exchange)
	fmt.Fprintf(&b, "└── %s [routing: %s, durable: %t, auto_delete: %t]\n",
		t.Queue, t.RoutingKey(), queueDurable, queueAutoDelete)
	b.WriteString("        Consumer: malsmug-sandbox (prefetch 1)\n")
	return b.String()
}
