package mq

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/Malsmug/internal/telemetry"
)

// DefaultRetryDelay — фиксированная задержка между попытками подключения.
const DefaultRetryDelay = 5 * time.Second

// Manager владеет соединением и каналом брокера.
//
// Особенности:
//   - Переподключение с фиксированной задержкой, без ограничения числа попыток
//   - Одно соединение и один канал, один consumer с prefetch 1
//   - Закрытие канала брокером — штатное завершение (Run возвращает ErrChannelClosed)
//
// Manager не потокобезопасен: Run вызывается из одной горутины.
type Manager struct {
	dialer      Dialer
	topology    Topology
	handler     Handler
	retryDelay  time.Duration
	consumerTag string
	sleep       func(ctx context.Context, d time.Duration) error
	logger      *slog.Logger

	state      State
	conn       Conn
	ch         Channel
	deliveries <-chan amqp.Delivery
}

// ManagerConfig — конфигурация Manager.
type ManagerConfig struct {
	// Dialer — подключение к брокеру.
	Dialer Dialer

	// Topology — очередь и обменник.
	Topology Topology

	// Handler — обработчик доставок.
	Handler Handler

	// RetryDelay — задержка между попытками (default: 5s).
	RetryDelay time.Duration

	// ConsumerTag — тег consumer'а (default: malsmug-sandbox-<uuid>).
	ConsumerTag string

	// Sleep — ожидание с учётом контекста (подменяется в тестах).
	Sleep func(ctx context.Context, d time.Duration) error

	// Logger
	Logger *slog.Logger
}

// NewManager создаёт новый Manager.
func NewManager(cfg ManagerConfig) *Manager {
	retryDelay := cfg.RetryDelay
	if retryDelay <= 0 {
		retryDelay = DefaultRetryDelay
	}

	consumerTag := cfg.ConsumerTag
	if consumerTag == "" {
		consumerTag = "malsmug-sandbox-" + uuid.New().String()
	}

	sleep := cfg.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Manager{
		dialer:      cfg.Dialer,
		topology:    cfg.Topology,
		handler:     cfg.Handler,
		retryDelay:  retryDelay,
		consumerTag: consumerTag,
		sleep:       sleep,
		logger:      logger,
		state:       StateDisconnected,
	}
}

// State возвращает текущее состояние.
func (m *Manager) State() State {
	return m.state
}

// Run подключается к брокеру и обрабатывает сообщения.
//
// Возвращает:
//   - ErrChannelClosed — канал закрыт брокером (штатное завершение)
//   - ctx.Err() — контекст отменён
func (m *Manager) Run(ctx context.Context) error {
	defer m.close()

	state, action := Next(m.state, EventStart)

	for {
		m.setState(state)

		var event Event
		switch action {
		case ActionDial:
			event = m.connect(ctx)

		case ActionWait:
			if err := m.sleep(ctx, m.retryDelay); err != nil {
				event = EventCancelled
			} else {
				event = EventRetryElapsed
			}

		case ActionConsume:
			if ctx.Err() != nil {
				event = EventCancelled
			} else {
				event = m.startConsume()
			}

		case ActionProcess:
			event = m.processDeliveries(ctx)

		case ActionShutdown:
			m.logger.Info("channel closed by broker, shutting down")
			return ErrChannelClosed

		case ActionStop:
			return ctx.Err()

		default:
			return fmt.Errorf("no transition from state %s", state)
		}

		m.logger.Debug("connection event", "state", state, "event", event)
		state, action = Next(state, event)
	}
}

// connect подключается к брокеру, открывает канал и объявляет топологию.
// Любая ошибка на этом этапе — повод для повторной попытки.
func (m *Manager) connect(ctx context.Context) Event {
	if ctx.Err() != nil {
		return EventCancelled
	}

	if err := m.dial(ctx); err != nil {
		if ctx.Err() != nil {
			return EventCancelled
		}
		telemetry.ConnectRetries.Inc()
		m.logger.Warn("error connecting, trying again",
			"delay", m.retryDelay,
			"error", err,
		)
		return EventConnectFailed
	}

	m.logger.Info("connected to RabbitMQ",
		"exchange", m.topology.Exchange,
		"queue", m.topology.Queue,
	)
	m.logger.Debug("topology declared\n" + m.topology.Info())

	return EventTopologyReady
}

func (m *Manager) dial(ctx context.Context) error {
	conn, err := m.dialer.Dial(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConnect, err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("%w: %v", ErrConnect, err)
	}

	if err := DeclareTopology(ch, m.topology); err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("%w: %v", ErrConnect, err)
	}

	m.conn = conn
	m.ch = ch
	return nil
}

// close закрывает канал и соединение, если они открыты.
func (m *Manager) close() {
	if m.ch != nil {
		if !m.ch.IsClosed() {
			if err := m.ch.Close(); err != nil {
				m.logger.Debug("close channel", "error", err)
			}
		}
		m.ch = nil
	}

	if m.conn != nil {
		if err := m.conn.Close(); err != nil {
			m.logger.Debug("close connection", "error", err)
		}
		m.conn = nil
	}

	m.setState(StateDisconnected)
}

func (m *Manager) setState(s State) {
	if m.state != s {
		m.logger.Info("connection state changed", "from", m.state, "to", s)
	}
	m.state = s
	telemetry.ConnectionState.Set(float64(s))
}

// sleepContext ждёт d или отмены контекста.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
