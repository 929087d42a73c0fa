package logger

import (
	"context"
	"sync"

	log_model "github.com/jibzus/bluefleet-sub001/models/log"
	"github.com/jibzus/bluefleet-sub001/types"
)

// LogSink persists request logs; database.Store and memstore.Store both qualify
type LogSink interface {
	SaveRequestLog(ctx context.Context, l *log_model.Log) error
}

type AsyncLogger struct {
	sink    LogSink
	channel chan types.LogEntry
	done    chan struct{}
	once    sync.Once
}

func NewAsyncLogger(sink LogSink, buffer int) *AsyncLogger {
	if buffer <= 0 {
		buffer = 100
	}
	return &AsyncLogger{
		sink:    sink,
		channel: make(chan types.LogEntry, buffer),
		done:    make(chan struct{}),
	}
}

// ProcessLog drains the channel until Close is called
func (logger *AsyncLogger) ProcessLog() {
	defer close(logger.done)
	Debug("Starting asynchronous request logger")

	for logEntry := range logger.channel {
		dbLog := log_model.Log{
			Method:          logEntry.Method,
			URL:             logEntry.URL,
			ActorID:         logEntry.ActorID,
			RequestBody:     logEntry.RequestBody,
			ResponseBody:    logEntry.ResponseBody,
			RequestHeaders:  logEntry.RequestHeaders,
			ResponseHeaders: logEntry.ResponseHeaders,
			StatusCode:      logEntry.StatusCode,
			LatencyMs:       logEntry.LatencyMs,
			CreatedAt:       logEntry.CreatedAt,
		}

		if err := logger.sink.SaveRequestLog(context.Background(), &dbLog); err != nil {
			Error("Failed to insert request log", err)
		}
	}
}

// Log queues an entry. When the buffer is full the entry is dropped so that
// request handling never waits on the log sink.
func (logger *AsyncLogger) Log(entry types.LogEntry) {
	select {
	case logger.channel <- entry:
	default:
		Warning("Request log buffer full, dropping " + entry.Method + " " + entry.URL)
	}
}

// Close stops accepting entries and waits for queued ones to be written
func (logger *AsyncLogger) Close() {
	logger.once.Do(func() { close(logger.channel) })
	<-logger.done
}
