package inspection

// Logger receives load warnings, submission outcomes and archive failures
// from sessions and the service. args are slog-style key/value pairs,
// usually led by "inspection", <id>.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// NopLogger drops every entry. Callers that only want the returned
// LoadWarnings can pass it to Load.
type NopLogger struct{}

func NewNopLogger() *NopLogger { return &NopLogger{} }

func (*NopLogger) Debug(string, ...any) {}
func (*NopLogger) Info(string, ...any)  {}
func (*NopLogger) Warn(string, ...any)  {}
func (*NopLogger) Error(string, ...any) {}
