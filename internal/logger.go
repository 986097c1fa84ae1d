package internal

import (
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"windcave/services"
)

// LogMessage is a log record persisted through the database sink.
type LogMessage struct {
	Time     time.Time `json:"time" bson:"time"`
	Level    string    `json:"level" bson:"level"`
	Module   string    `json:"module" bson:"module"`
	Text     string    `json:"text" bson:"text"`
	ErrorMsg string    `json:"error,omitempty" bson:"error,omitempty"`
}

func (m *LogMessage) DataType() string {
	return "log"
}

// Logger implements services.LogHandler on a zap logger, with an optional
// database sink for warnings and errors.
type Logger struct {
	name     string
	debug    bool
	log      *zap.Logger
	database services.Database
}

// NewLogger creates a named logger. When debug is set, debug-level records
// are emitted and the development encoder is used. The database may be nil.
func NewLogger(name string, debug bool, database services.Database) *Logger {
	var cfg zap.Config
	if debug {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "timestamp"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	cfg.InitialFields = map[string]interface{}{
		"module": name,
	}

	log, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		log = zap.NewNop()
	}

	return &Logger{
		name:     name,
		debug:    debug,
		log:      log,
		database: database,
	}
}

func (l *Logger) Debug(message string) {
	if !l.debug {
		return
	}
	l.log.Debug(message)
}

func (l *Logger) Info(message string) {
	l.log.Info(message)
}

func (l *Logger) Warn(message string) {
	l.log.Warn(message)
	l.persist("warn", message, nil)
}

func (l *Logger) Error(message string, err error) {
	l.log.Error(message, zap.Error(err))
	l.persist("error", message, err)
}

func (l *Logger) persist(level, message string, err error) {
	if l.database == nil {
		return
	}
	record := &LogMessage{
		Time:   time.Now(),
		Level:  level,
		Module: l.name,
		Text:   message,
	}
	if err != nil {
		record.ErrorMsg = err.Error()
	}
	// the sink must never take the service down
	_ = l.database.WriteLogMessage(record)
}

// secret masks a sensitive value for logging, keeping a short prefix.
func secret(some string) string {
	if len(some) > 5 {
		return some[0:5] + "***"
	}
	if some == "" {
		return "?"
	}
	return "***"
}
