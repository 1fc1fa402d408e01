package audit

import (
	"io"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/workshop/vehicleapi/internal/logger"
)

// LogEntry defines the structured audit log
type LogEntry struct {
	Timestamp time.Time              `json:"timestamp"`
	RequestID string                 `json:"request_id,omitempty"`
	ActorID   string                 `json:"actor_id"`
	Action    string                 `json:"action"`   // method + route
	Resource  string                 `json:"resource"` // path
	Status    int                    `json:"status"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

type Logger interface {
	Log(entry LogEntry)
}

// JSONLogger writes one JSON document per line.
type JSONLogger struct {
	mu  sync.Mutex
	out io.Writer
}

func NewJSONLogger(w io.Writer) *JSONLogger {
	return &JSONLogger{out: w}
}

func (l *JSONLogger) Log(entry LogEntry) {
	if entry.Metadata != nil {
		entry.Metadata = maskSensitive(entry.Metadata)
	}

	bytes, err := json.Marshal(entry)
	if err != nil {
		logger.Default().WithError(err).Error("audit log entry dropped")
		return
	}
	bytes = append(bytes, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.out.Write(bytes); err != nil {
		logger.Default().WithError(err).Error("audit log write failed")
	}
}

var sensitiveKeys = []string{"authorization", "password", "token", "secret"}

// maskSensitive returns a copy of m with sensitive values redacted.
func maskSensitive(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		lowerK := strings.ToLower(k)
		for _, s := range sensitiveKeys {
			if strings.Contains(lowerK, s) {
				v = "***REDACTED***"
				break
			}
		}
		out[k] = v
	}
	return out
}
