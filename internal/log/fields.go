package log

// Field names shared across components so log lines stay greppable.
const (
	FieldComponent = "component"
	FieldError     = "error"
	FieldDuration  = "duration_ms"
)

// Component names for the binaries and the default logger.
const (
	ComponentApp    = "app"
	ComponentWorker = "worker"
	ComponentSink   = "notification-sink"
)
