package orchestrator

import "context"

// Severity of a user-facing notification.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Notification is a toast shown to the visitor or operator.
type Notification struct {
	Severity Severity `json:"severity"`
	Title    string   `json:"title"`
	Message  string   `json:"message"`
	Kind     string   `json:"kind,omitempty"`
}

// Notifier delivers notifications. Implementations must be safe for
// concurrent use; Submit notifies from the caller's goroutine.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, n Notification)

// Notify calls f.
func (f NotifierFunc) Notify(ctx context.Context, n Notification) { f(ctx, n) }

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, Notification) {}

var kindTitles = map[Kind]string{
	ConfigurationMissing: "Configuration missing",
	FetchFailure:         "Error loading configuration",
	CompileFailure:       "Error building tracking script",
	ExecutionFailure:     "Error starting tracking",
	WidgetUnavailable:    "Chat unavailable",
	ValidationFailure:    "Invalid contact details",
}

// NotificationFor builds the notification for a classified error.
func NotificationFor(e *Error) Notification {
	sev := SeverityError
	if !e.Kind.Fatal() {
		sev = SeverityWarning
	}
	return Notification{
		Severity: sev,
		Title:    kindTitles[e.Kind],
		Message:  e.Error(),
		Kind:     e.Kind.String(),
	}
}
