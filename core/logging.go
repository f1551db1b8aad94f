package core

// Logger is any service that can report app events and errors.
// Implementations may inspect args for errors or a tutor.Tutor to enrich reports.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}
