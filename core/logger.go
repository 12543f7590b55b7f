package core

// Logger is any service that can report application events.
// args may carry an error, a map[string]interface{} of extras and the authenticated identity.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}
