// Package worker превращает сообщение из очереди в запуски анализатора.
//
// # Обзор
//
// Worker получает AnalysisRequest из очереди core_files_queue и для каждого
// bait target:
//
//   - записывает копию сэмпла под уникальным именем
//   - запускает sandbox engine отдельным процессом
//
// Из одного сэмпла получается N независимых анализов, по одному на сайт-приманку.
//
// # Ключевые компоненты
//
// ## Worker
//
// Создаётся через New(cfg Config); его Handler() передаётся в mq.Manager.
//
//	w := worker.New(worker.Config{
//	    Namer:    samples.NewNamer(samplesDir),
//	    Writer:   samples.NewWriter(),
//	    Executor: worker.NewProcessExecutor(execCfg),
//	    Logger:   logger,
//	})
//
// ## Executor
//
// Запускает анализатор для одной реплики:
//
//	type Executor interface {
//	    Dispatch(ctx context.Context, task domain.ReplicaTask) (int, error)
//	}
//
// ProcessExecutor запускает процесс с аргументами
// <sample_path> <bait_target> <config_dir> <analysis_id> и не ждёт его.
//
// # Обработка сообщения
//
//  1. Декодирование MessagePack → AnalysisRequest
//  2. Ошибка декодирования → nack без requeue, дальше ничего
//  3. Ack — до записи файлов и запуска процессов (at-most-once)
//  4. Namer → пути реплик, по одной на bait target
//  5. Для каждой реплики по порядку: запись, затем запуск
//  6. Ошибка записи → реплика пропускается, остальные продолжаются
//
// # Ошибки
//
// Пакет различает два уровня ошибок:
//   - Ошибки сообщения (формат, запись, запуск) — логируются, HandleDelivery возвращает nil
//   - Ошибки соединения (ack/nack не дошёл) — возвращаются в mq.Manager
package worker
