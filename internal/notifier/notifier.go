package notifier

// TextNotifier pushes plain text to wherever the operator watches.
type TextNotifier interface {
	SendText(text string) error
}

// Noop discards everything; used when Telegram is not configured.
type Noop struct{}

func (Noop) SendText(string) error { return nil }
