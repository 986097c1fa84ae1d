package services

// LogHandler is the logging contract injected into every service.
type LogHandler interface {
	Debug(message string)
	Info(message string)
	Warn(message string)
	Error(message string, err error)
}
