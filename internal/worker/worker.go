package worker

import (
	"context"
	"log/slog"

	"github.com/shaiso/Malsmug/internal/domain"
	"github.com/shaiso/Malsmug/internal/mq"
)

// Namer строит пути реплик для запроса.
type Namer interface {
	Name(req *domain.AnalysisRequest) []domain.ReplicaTask
}

// Writer записывает реплику на диск.
type Writer interface {
	Write(path string, content []byte) error
}

// Journal сохраняет попытки запуска анализатора.
type Journal interface {
	Record(ctx context.Context, rec *domain.DispatchRecord) error
}

// Worker — fan-out обработчик запросов на анализ.
//
// Для каждого сообщения:
//   - декодирует AnalysisRequest
//   - подтверждает сообщение (до любой записи и запуска)
//   - записывает по реплике на каждый bait target
//   - запускает анализатор для каждой реплики
type Worker struct {
	namer    Namer
	writer   Writer
	executor Executor
	journal  Journal
	logger   *slog.Logger
}

// Config — конфигурация Worker.
type Config struct {
	Namer    Namer
	Writer   Writer
	Executor Executor

	// Journal (опционально; если nil — попытки запуска не сохраняются)
	Journal Journal

	// Logger
	Logger *slog.Logger
}

// New создаёт новый Worker.
func New(cfg Config) *Worker {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Worker{
		namer:    cfg.Namer,
		writer:   cfg.Writer,
		executor: cfg.Executor,
		journal:  cfg.Journal,
		logger:   logger,
	}
}

// Handler возвращает обработчик доставок для mq.Manager.
func (w *Worker) Handler() mq.Handler {
	return w.HandleDelivery
}
