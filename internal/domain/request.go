package domain

import (
	"time"

	"github.com/google/uuid"
)

// AnalysisRequest — запрос на анализ файла, полученный из очереди.
//
// Один запрос порождает по одной реплике сэмпла на каждый bait target.
type AnalysisRequest struct {
	// FileName — исходное имя сэмпла (только для логов).
	FileName string `json:"file_name"`

	// FileHash — хеш содержимого, основа имени реплики.
	// Против FileBytes не перепроверяется.
	FileHash string `json:"file_hash"`

	// AnalysisID — идентификатор, общий для всех реплик одного запроса.
	AnalysisID string `json:"analysis_id"`

	// BaitTargets — сайты-приманки (URL), порядок сохраняется.
	// Может быть пустым: тогда реплик нет.
	BaitTargets []string `json:"bait_targets"`

	// FileBytes — содержимое сэмпла.
	FileBytes []byte `json:"-"`
}

// ReplicaTask — одна пара (запрос, bait target).
//
// Живёт только внутри обработки одного сообщения и никуда не сохраняется.
type ReplicaTask struct {
	// Index — позиция bait target в запросе (с 0).
	Index int

	// SamplePath — путь к файлу реплики, уникальный в пределах процесса.
	SamplePath string

	BaitTarget string
	AnalysisID string
}

// DispatchRecord — запись журнала о попытке запуска анализатора.
type DispatchRecord struct {
	ID         uuid.UUID `json:"id"`
	AnalysisID string    `json:"analysis_id"`
	FileHash   string    `json:"file_hash"`
	Index      int       `json:"replica_index"`
	SamplePath string    `json:"sample_path"`
	BaitTarget string    `json:"bait_target"`

	// PID — pid запущенного процесса, 0 если запуск не удался.
	PID int `json:"pid"`

	// Error — текст ошибки запуска.
	Error string `json:"error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// NewDispatchRecord создаёт запись журнала для реплики.
func NewDispatchRecord(req *AnalysisRequest, task ReplicaTask, pid int, err error) *DispatchRecord {
	rec := &DispatchRecord{
		ID:         uuid.New(),
		AnalysisID: task.AnalysisID,
		FileHash:   req.FileHash,
		Index:      task.Index,
		SamplePath: task.SamplePath,
		BaitTarget: task.BaitTarget,
		PID:        pid,
		CreatedAt:  time.Now(),
	}
	if err != nil {
		rec.Error = err.Error()
	}
	return rec
}

// Succeeded возвращает true, если процесс был запущен.
func (r *DispatchRecord) Succeeded() bool {
	return r.Error == ""
}
