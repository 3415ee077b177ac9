package worker

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/shaiso/Malsmug/internal/domain"
	"github.com/shaiso/Malsmug/internal/telemetry"
)

// Executor запускает анализатор для одной реплики.
//
// Запуск fire-and-forget: Executor не ждёт процесс, не следит за ним
// и не ограничивает их число. Возвращается только результат самого запуска.
type Executor interface {
	Dispatch(ctx context.Context, task domain.ReplicaTask) (pid int, err error)
}

// ProcessExecutor запускает sandbox engine отдельным процессом:
//
//	<runtime> [<lib>] <sample_path> <bait_target> <config_dir> <analysis_id>
//
// Например: node /sandbox/lib/app.js /samples/abc_1_0 https://site /config A1.
type ProcessExecutor struct {
	runtime   string
	lib       string
	configDir string

	// start запускает команду (подменяется в тестах).
	start func(cmd *exec.Cmd) error
}

// ExecutorConfig — конфигурация ProcessExecutor.
type ExecutorConfig struct {
	// Runtime — исполняемый файл (например, node или сам анализатор).
	Runtime string

	// Lib — скрипт анализатора, первый аргумент runtime (опционально).
	Lib string

	// ConfigDir — каталог конфигурации, передаётся анализатору.
	ConfigDir string
}

// NewProcessExecutor создаёт новый ProcessExecutor.
func NewProcessExecutor(cfg ExecutorConfig) *ProcessExecutor {
	return &ProcessExecutor{
		runtime:   cfg.Runtime,
		lib:       cfg.Lib,
		configDir: cfg.ConfigDir,
		start:     startDetached,
	}
}

// Command собирает команду для реплики.
func (e *ProcessExecutor) Command(task domain.ReplicaTask) *exec.Cmd {
	args := make([]string, 0, 5)
	if e.lib != "" {
		args = append(args, e.lib)
	}
	args = append(args, task.SamplePath, task.BaitTarget, e.configDir, task.AnalysisID)

	cmd := exec.Command(e.runtime, args...)
	// Потоки не перехватываются: вывод анализатора идёт в вывод процесса.
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.SysProcAttr = detachedProcAttr()

	return cmd
}

// Dispatch запускает анализатор и сразу возвращает управление.
func (e *ProcessExecutor) Dispatch(ctx context.Context, task domain.ReplicaTask) (int, error) {
	cmd := e.Command(task)

	if err := e.start(cmd); err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrDispatch, e.runtime, err)
	}

	pid := 0
	if cmd.Process != nil {
		pid = cmd.Process.Pid
	}

	telemetry.FromContext(ctx).Debug("sandbox engine started",
		"pid", pid,
		"args", cmd.Args,
	)

	return pid, nil
}

// startDetached запускает процесс и забирает его в фоне, чтобы не копить зомби.
// Код завершения не используется.
func startDetached(cmd *exec.Cmd) error {
	if err := cmd.Start(); err != nil {
		return err
	}

	go func() {
		_ = cmd.Wait()
	}()

	return nil
}
