package core

// Logger is the app-wide logging contract. Implementations may ship entries
// to an error-tracking backend in addition to the local stream; a user.User
// passed in args identifies the affected account to such backends.
type Logger interface {
	Enable(enabled bool)
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}
