package mq

// State — состояние подключения к брокеру.
//
// Жизненный цикл:
//
//	Disconnected → Connecting → Bound → Consuming
//	      ↑            │          ↑  ↘      │
//	      └── wait ────┘          └─────────┘ (consumer отменён брокером)
//
// Закрытый канал в Bound или Consuming — штатное завершение процесса.
type State int

const (
	// StateDisconnected — нет соединения (начальное состояние).
	StateDisconnected State = iota

	// StateConnecting — dial, открытие канала, объявление топологии.
	StateConnecting

	// StateBound — очередь объявлена и привязана, consumer не зарегистрирован.
	StateBound

	// StateConsuming — consumer зарегистрирован, идут доставки.
	StateConsuming
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateBound:
		return "bound"
	case StateConsuming:
		return "consuming"
	default:
		return "unknown"
	}
}

// Event — результат выполнения действия.
type Event int

const (
	EventStart Event = iota
	EventConnectFailed
	EventTopologyReady
	EventRetryElapsed
	EventConsumeStarted
	EventConsumeFailed
	EventChannelClosed
	EventCancelled
)

func (e Event) String() string {
	switch e {
	case EventStart:
		return "start"
	case EventConnectFailed:
		return "connect_failed"
	case EventTopologyReady:
		return "topology_ready"
	case EventRetryElapsed:
		return "retry_elapsed"
	case EventConsumeStarted:
		return "consume_started"
	case EventConsumeFailed:
		return "consume_failed"
	case EventChannelClosed:
		return "channel_closed"
	case EventCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Action — что Manager должен сделать в новом состоянии.
type Action int

const (
	// ActionNone — переход не определён.
	ActionNone Action = iota

	// ActionDial — подключиться и объявить топологию.
	ActionDial

	// ActionWait — выждать фиксированную задержку.
	ActionWait

	// ActionConsume — установить prefetch и зарегистрировать consumer.
	ActionConsume

	// ActionProcess — обрабатывать доставки.
	ActionProcess

	// ActionShutdown — канал закрыт, завершить процесс штатно.
	ActionShutdown

	// ActionStop — контекст отменён.
	ActionStop
)

func (a Action) String() string {
	switch a {
	case ActionDial:
		return "dial"
	case ActionWait:
		return "wait"
	case ActionConsume:
		return "consume"
	case ActionProcess:
		return "process"
	case ActionShutdown:
		return "shutdown"
	case ActionStop:
		return "stop"
	default:
		return "none"
	}
}

// Next — таблица переходов. Чистая функция: (state, event) → (state, action).
//
// Неизвестная пара возвращает исходное состояние и ActionNone.
func Next(s State, e Event) (State, Action) {
	if e == EventCancelled {
		return StateDisconnected, ActionStop
	}

	switch s {
	case StateDisconnected:
		switch e {
		case EventStart, EventRetryElapsed:
			return StateConnecting, ActionDial
		}

	case StateConnecting:
		switch e {
		case EventConnectFailed:
			return StateDisconnected, ActionWait
		case EventTopologyReady:
			return StateBound, ActionConsume
		}

	case StateBound:
		switch e {
		case EventConsumeStarted:
			return StateConsuming, ActionProcess
		case EventConsumeFailed:
			return StateBound, ActionWait
		case EventRetryElapsed:
			return StateBound, ActionConsume
		case EventChannelClosed:
			return StateDisconnected, ActionShutdown
		}

	case StateConsuming:
		switch e {
		// Поток доставок закончился при живом канале — регистрируемся заново,
		// топологию не пересоздаём.
		case EventConsumeFailed:
			return StateBound, ActionConsume
		case EventChannelClosed:
			return StateDisconnected, ActionShutdown
		}
	}

	return s, ActionNone
}
