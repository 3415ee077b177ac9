package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "malsmug_sandbox"

// Результаты обработки сообщений.
const (
	ResultAcked    = "acked"
	ResultRejected = "rejected"
	ResultDropped  = "dropped"
	ResultFailed   = "failed"
	ResultWritten  = "written"
	ResultSpawned  = "spawned"
)

var (
	// MessagesTotal — обработанные сообщения по результату.
	MessagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "messages_total",
		Help:      "Messages handled by the consumer, by result.",
	}, []string{"result"})

	// ReplicasTotal — записанные (или нет) реплики сэмплов.
	ReplicasTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "replicas_total",
		Help:      "Sample replicas materialized on disk, by result.",
	}, []string{"result"})

	// DispatchesTotal — попытки запуска анализатора.
	DispatchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "dispatches_total",
		Help:      "Sandbox engine spawn attempts, by result.",
	}, []string{"result"})

	// ConnectRetries — неудачные попытки подключения к брокеру.
	ConnectRetries = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "connect_retries_total",
		Help:      "Failed broker connection attempts.",
	})

	// ConnectionState — текущее состояние подключения (0 disconnected .. 3 consuming).
	ConnectionState = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "connection_state",
		Help:      "Broker connection state: 0 disconnected, 1 connecting, 2 bound, 3 consuming.",
	})
)
