package interaction

// Host is the environment that can put choices in front of a human and
// reach the clipboard. Prompt calls may pend indefinitely; ok=false means
// the prompt was dismissed or the host cannot ask, and callers must treat
// that the same as an explicit cancel.
type Host interface {
	// Confirm displays message with options and returns the chosen option.
	Confirm(message string, options ...string) (choice string, ok bool)
	// Notify surfaces message with optional follow-up actions.
	Notify(message string, actions ...string) (action string, ok bool)
	ReadClipboard() (string, error)
	WriteClipboard(text string) error
}
