package worker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shaiso/Malsmug/internal/domain"
	"github.com/shaiso/Malsmug/internal/mq"
	"github.com/shaiso/Malsmug/internal/telemetry"
)

// HandleDelivery обрабатывает одно сообщение из очереди файлов.
//
// Порядок важен: ack отправляется сразу после успешного декодирования,
// до записи файлов и запуска анализаторов. Это доставка at-most-once:
// при падении процесса теряются нераспределённые реплики одного сообщения,
// но ни один анализ не запускается дважды.
//
// Ошибки сообщения (декодирование, запись, запуск) логируются, и метод
// возвращает nil. Ошибка возвращается только если ack/nack не дошёл до брокера.
func (w *Worker) HandleDelivery(ctx context.Context, d *mq.Delivery) (err error) {
	defer func() {
		if r := recover(); r != nil {
			telemetry.MessagesTotal.WithLabelValues(telemetry.ResultDropped).Inc()
			w.logger.Error("message handler panicked, message dropped",
				"delivery_tag", d.Raw.DeliveryTag,
				"error", fmt.Errorf("%w: %v", ErrHandlerPanic, r),
			)
			err = nil
		}
	}()

	w.logger.Debug("got message", "delivery_tag", d.Raw.DeliveryTag, "size", len(d.Body()))

	// 1. Декодируем
	req, decodeErr := mq.DecodeAnalysisRequest(d.Body())
	if decodeErr != nil {
		w.logger.Error("data received from queue is not a valid analysis request",
			"delivery_tag", d.Raw.DeliveryTag,
			"error", decodeErr,
		)
		telemetry.MessagesTotal.WithLabelValues(telemetry.ResultRejected).Inc()

		// Некорректное сообщение не станет корректным при повторе — без requeue
		return d.Nack(false)
	}

	logger := telemetry.WithFileHash(telemetry.WithAnalysisID(w.logger, req.AnalysisID), req.FileHash)
	ctx = telemetry.WithLogger(ctx, logger)

	// 2. Подтверждаем до fan-out
	if err := d.Ack(); err != nil {
		telemetry.MessagesTotal.WithLabelValues(telemetry.ResultFailed).Inc()
		return err
	}
	telemetry.MessagesTotal.WithLabelValues(telemetry.ResultAcked).Inc()

	logger.Info("file for analysis received",
		"file_name", req.FileName,
		"bait_targets", len(req.BaitTargets),
		"size", len(req.FileBytes),
	)

	// 3–4. Реплики
	w.fanOut(ctx, logger, req)

	return nil
}

// fanOut записывает и запускает реплики в порядке bait targets.
// Ошибка одной реплики не мешает остальным.
func (w *Worker) fanOut(ctx context.Context, logger *slog.Logger, req *domain.AnalysisRequest) {
	tasks := w.namer.Name(req)
	if len(tasks) == 0 {
		logger.Info("no bait targets, nothing to dispatch")
		return
	}

	for _, task := range tasks {
		if err := w.writer.Write(task.SamplePath, req.FileBytes); err != nil {
			telemetry.ReplicasTotal.WithLabelValues(telemetry.ResultFailed).Inc()
			logger.Error("failed to write sample, replica skipped",
				"replica", task.Index,
				"bait_target", task.BaitTarget,
				"error", err,
			)
			continue
		}
		telemetry.ReplicasTotal.WithLabelValues(telemetry.ResultWritten).Inc()

		pid, err := w.executor.Dispatch(ctx, task)
		if err != nil {
			telemetry.DispatchesTotal.WithLabelValues(telemetry.ResultFailed).Inc()
			logger.Error("failed to start sandbox engine",
				"replica", task.Index,
				"sample_path", task.SamplePath,
				"bait_target", task.BaitTarget,
				"error", err,
			)
		} else {
			telemetry.DispatchesTotal.WithLabelValues(telemetry.ResultSpawned).Inc()
			logger.Info("sandbox engine dispatched",
				"replica", task.Index,
				"sample_path", task.SamplePath,
				"bait_target", task.BaitTarget,
				"pid", pid,
			)
		}

		w.record(ctx, logger, req, task, pid, err)
	}
}

// record сохраняет попытку запуска в журнал, если он настроен.
func (w *Worker) record(ctx context.Context, logger *slog.Logger, req *domain.AnalysisRequest, task domain.ReplicaTask, pid int, dispatchErr error) {
	if w.journal == nil {
		return
	}

	rec := domain.NewDispatchRecord(req, task, pid, dispatchErr)
	if err := w.journal.Record(ctx, rec); err != nil {
		// Сообщение уже подтверждено — журнал только для наблюдения
		logger.Warn("failed to record dispatch", "replica", task.Index, "error", err)
	}
}
