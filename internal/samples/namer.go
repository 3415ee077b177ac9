package samples

import (
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/shaiso/Malsmug/internal/domain"
)

// Namer строит уникальные пути реплик.
//
// Метка времени в микросекундах строго возрастает в пределах процесса:
// если часы не ушли вперёд с прошлого вызова, берётся last+1.
// Вместе с индексом это исключает совпадения и для одинаковых хешей
// в разных запросах, и для реплик одного запроса.
type Namer struct {
	dir string
	now func() time.Time

	mu   sync.Mutex
	last int64
}

// NewNamer создаёт Namer для каталога dir.
func NewNamer(dir string) *Namer {
	return &Namer{dir: dir, now: time.Now}
}

// Name возвращает по одной ReplicaTask на каждый bait target, в том же порядке.
// Пустой список целей — пустой результат.
func (n *Namer) Name(req *domain.AnalysisRequest) []domain.ReplicaTask {
	if len(req.BaitTargets) == 0 {
		return nil
	}

	stamp := strconv.FormatInt(n.stamp(), 10)

	tasks := make([]domain.ReplicaTask, len(req.BaitTargets))
	for i, target := range req.BaitTargets {
		name := req.FileHash + "_" + stamp + "_" + strconv.Itoa(i)
		tasks[i] = domain.ReplicaTask{
			Index:      i,
			SamplePath: filepath.Join(n.dir, name),
			BaitTarget: target,
			AnalysisID: req.AnalysisID,
		}
	}
	return tasks
}

func (n *Namer) stamp() int64 {
	n.mu.Lock()
	defer n.mu.Unlock()

	ts := n.now().UnixMicro()
	if ts <= n.last {
		ts = n.last + 1
	}
	n.last = ts
	return ts
}
