// Package logx provides structured logging with env-driven debug domain filtering.
package logx

import (
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"time"
)

// Logger writes component-tagged log lines to stderr.
type Logger struct {
	component string
	logger    *log.Logger
}

type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

// DebugConfig controls debug logging behavior.
type DebugConfig struct {
	Enabled bool
	Domains map[string]bool // Which domains to enable debug for (nil = all)
}

// LogEntry represents a structured log entry kept in the in-memory buffer.
type LogEntry struct {
	Timestamp string `json:"timestamp"`
	Component string `json:"component"`
	Level     string `json:"level"`
	Message   string `json:"message"`
}

// InMemoryLogBuffer stores recent log entries for post-run inspection.
type InMemoryLogBuffer struct {
	entries []LogEntry
	mutex   sync.RWMutex
	maxSize int
}

//nolint:gochecknoglobals // Intentional global debug configuration and log buffer
var (
	debugConfig = &DebugConfig{}
	debugMutex  sync.RWMutex

	logBuffer = &InMemoryLogBuffer{
		entries: make([]LogEntry, 0),
		maxSize: 1000, // Keep last 1000 log entries
	}
)

//nolint:gochecknoinits // Required for env var initialization
func init() {
	initDebugFromEnv()
}

// initDebugFromEnv initializes debug configuration from environment variables.
//
//	DEBUG=1                               # Enable debug for all domains
//	DEBUG=1 DEBUG_DOMAINS=orchestrator    # Enable debug only for one domain
//	DEBUG=1 DEBUG_DOMAINS=atlas,human     # Enable debug for multiple domains
func initDebugFromEnv() {
	debugMutex.Lock()
	defer debugMutex.Unlock()

	if debug := os.Getenv("DEBUG"); debug == "1" || strings.EqualFold(debug, "true") {
		debugConfig.Enabled = true
	}

	if domains := os.Getenv("DEBUG_DOMAINS"); domains != "" {
		debugConfig.Domains = make(map[string]bool)
		for _, domain := range strings.Split(domains, ",") {
			debugConfig.Domains[strings.TrimSpace(domain)] = true
		}
	}
}

// NewLogger creates a logger tagged with the given component name.
func NewLogger(component string) *Logger {
	return &Logger{
		component: component,
		logger:    log.New(os.Stderr, "", 0), // Log to stderr for CLI compatibility
	}
}

// SetDebugConfig configures global debug logging settings.
func SetDebugConfig(enabled bool) {
	debugMutex.Lock()
	defer debugMutex.Unlock()
	debugConfig.Enabled = enabled
}

// SetDebugDomains configures which domains should have debug logging enabled.
// An empty list enables all domains.
func SetDebugDomains(domains []string) {
	debugMutex.Lock()
	defer debugMutex.Unlock()

	if len(domains) == 0 {
		debugConfig.Domains = nil
		return
	}
	debugConfig.Domains = make(map[string]bool)
	for _, domain := range domains {
		debugConfig.Domains[strings.TrimSpace(domain)] = true
	}
}

// IsDebugEnabled returns whether debug logging is enabled.
func IsDebugEnabled() bool {
	debugMutex.RLock()
	defer debugMutex.RUnlock()
	return debugConfig.Enabled
}

// IsDebugEnabledForDomain returns whether debug logging is enabled for a domain.
func IsDebugEnabledForDomain(domain string) bool {
	debugMutex.RLock()
	defer debugMutex.RUnlock()

	if !debugConfig.Enabled {
		return false
	}
	if debugConfig.Domains == nil {
		return true
	}
	return debugConfig.Domains[domain]
}

// AddLogEntry adds a log entry to the in-memory buffer.
func (b *InMemoryLogBuffer) AddLogEntry(entry *LogEntry) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	b.entries = append(b.entries, *entry)
	if len(b.entries) > b.maxSize {
		b.entries = b.entries[len(b.entries)-b.maxSize:]
	}
}

// GetLogEntries returns a copy of current log entries, optionally filtered by component.
func (b *InMemoryLogBuffer) GetLogEntries(component string) []LogEntry {
	b.mutex.RLock()
	defer b.mutex.RUnlock()

	filtered := make([]LogEntry, 0, len(b.entries))
	for i := range b.entries {
		entry := &b.entries[i]
		if component != "" && !strings.EqualFold(entry.Component, component) {
			continue
		}
		filtered = append(filtered, *entry)
	}
	return filtered
}

// GetRecentLogEntries returns recent log entries from the global buffer.
func GetRecentLogEntries(component string) []LogEntry {
	return logBuffer.GetLogEntries(component)
}

func (l *Logger) log(level Level, format string, args ...any) {
	timestamp := time.Now().UTC().Format("2006-01-02T15:04:05.000Z")
	message := fmt.Sprintf(format, args...)
	l.logger.Printf("[%s] [%s] %s: %s", timestamp, l.component, level, message)

	logBuffer.AddLogEntry(&LogEntry{
		Timestamp: timestamp,
		Component: l.component,
		Level:     string(level),
		Message:   message,
	})
}

// Debug logs a debug message if debug logging is enabled for this logger's component.
func (l *Logger) Debug(format string, args ...any) {
	if !IsDebugEnabledForDomain(l.component) {
		return
	}
	l.log(LevelDebug, format, args...)
}

// Info logs an informational message.
func (l *Logger) Info(format string, args ...any) {
	l.log(LevelInfo, format, args...)
}

// Warn logs a warning message.
func (l *Logger) Warn(format string, args ...any) {
	l.log(LevelWarn, format, args...)
}

// Error logs an error message.
func (l *Logger) Error(format string, args ...any) {
	l.log(LevelError, format, args...)
}
