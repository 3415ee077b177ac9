package samples

import (
	"fmt"
	"os"
)

// Права на файлы и каталог сэмплов.
const (
	dirMode  = 0o755
	fileMode = 0o644
)

// EnsureDir создаёт каталог сэмплов (вместе с родительскими), если его нет.
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, dirMode); err != nil {
		return fmt.Errorf("create samples dir %s: %w", dir, err)
	}
	return nil
}

// Writer записывает реплики на диск.
// Каталог должен существовать (см. EnsureDir).
type Writer struct{}

// NewWriter создаёт новый Writer.
func NewWriter() *Writer {
	return &Writer{}
}

// Write записывает content по пути path байт в байт.
// Существующий файл перезаписывается.
func (w *Writer) Write(path string, content []byte) error {
	if err := os.WriteFile(path, content, fileMode); err != nil {
		return fmt.Errorf("%w %s: %v", ErrWrite, path, err)
	}
	return nil
}
