package checkpoint

import (
	"encoding/json"
	"log"
	"time"
)

// Logger is a simple structured logger interface.
type Logger interface {
	Info(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
}

// StdLogger implements Logger using the standard log package with JSON output.
type StdLogger struct{}

func (l *StdLogger) Info(msg string, fields map[string]interface{}) {
	l.write("info", msg, fields)
}

func (l *StdLogger) Error(msg string, fields map[string]interface{}) {
	l.write("error", msg, fields)
}

func (l *StdLogger) write(level, msg string, fields map[string]interface{}) {
	record := make(map[string]interface{}, len(fields)+3)
	for k, v := range fields {
		record[k] = v
	}
	record["level"] = level
	record["msg"] = msg
	record["ts"] = time.Now().Format(time.RFC3339)
	b, _ := json.Marshal(record)
	log.Println(string(b))
}

type nopLogger struct{}

func (nopLogger) Info(string, map[string]interface{})  {}
func (nopLogger) Error(string, map[string]interface{}) {}
