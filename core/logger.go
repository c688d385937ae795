package core

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// ProductionLogger emits structured log lines: JSON by default, or plain
// text when the format is "text". It implements Logger and is the logger
// the facade wires when no WithLogger option is given; components accept
// any Logger.
type ProductionLogger struct {
	level       string
	serviceName string
	format      string
	output      io.Writer
}

// NewProductionLogger creates a logger from LoggingConfig
func NewProductionLogger(logging LoggingConfig, serviceName string) Logger {
	var output io.Writer = os.Stdout
	if logging.Output == "stderr" {
		output = os.Stderr
	}

	return &ProductionLogger{
		level:       strings.ToLower(logging.Level),
		serviceName: serviceName,
		format:      logging.Format,
		output:      output,
	}
}

func (p *ProductionLogger) enabled(level string) bool {
	order := map[string]int{"debug": 0, "info": 1, "warn": 2, "error": 3}
	threshold, ok := order[p.level]
	if !ok {
		threshold = 1
	}
	return order[level] >= threshold
}

func (p *ProductionLogger) log(level, msg string, fields map[string]interface{}) {
	if !p.enabled(level) {
		return
	}

	if p.format == "text" {
		fmt.Fprintf(p.output, "%s %-5s %s %v\n", time.Now().Format(time.RFC3339), strings.ToUpper(level), msg, fields)
		return
	}

	entry := make(map[string]interface{}, len(fields)+4)
	for k, v := range fields {
		entry[k] = v
	}
	entry["time"] = time.Now().Format(time.RFC3339Nano)
	entry["level"] = level
	entry["service"] = p.serviceName
	entry["message"] = msg

	line, err := json.Marshal(entry)
	if err != nil {
		// Fields that cannot marshal still produce a log line.
		line, _ = json.Marshal(map[string]interface{}{
			"time":    time.Now().Format(time.RFC3339Nano),
			"level":   level,
			"service": p.serviceName,
			"message": msg,
		})
	}
	fmt.Fprintln(p.output, string(line))
}

func (p *ProductionLogger) Info(msg string, fields map[string]interface{})  { p.log("info", msg, fields) }
func (p *ProductionLogger) Error(msg string, fields map[string]interface{}) { p.log("error", msg, fields) }
func (p *ProductionLogger) Warn(msg string, fields map[string]interface{})  { p.log("warn", msg, fields) }
func (p *ProductionLogger) Debug(msg string, fields map[string]interface{}) { p.log("debug", msg, fields) }

func (p *ProductionLogger) InfoWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	p.log("info", msg, fields)
}
func (p *ProductionLogger) ErrorWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	p.log("error", msg, fields)
}
func (p *ProductionLogger) WarnWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	p.log("warn", msg, fields)
}
func (p *ProductionLogger) DebugWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	p.log("debug", msg, fields)
}
