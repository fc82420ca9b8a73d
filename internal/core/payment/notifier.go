package payment

import (
	"context"
	"log/slog"

	"github.com/vietddude/payroll/internal/core/domain"
)

// Notifier surfaces the outcome of a payment run to the user.
type Notifier interface {
	Notify(ctx context.Context, n domain.Notification) error
}

// LogNotifier writes notifications to the structured log.
type LogNotifier struct {
	log *slog.Logger
}

func NewLogNotifier(log *slog.Logger) *LogNotifier {
	if log == nil {
		log = slog.Default()
	}
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Notify(ctx context.Context, note domain.Notification) error {
	attrs := []any{
		"attempt", note.AttemptID,
		"chain", note.ChainID,
		"tx", note.TxHash,
	}
	if note.Level == domain.NotificationError {
		n.log.Error(note.Message, append(attrs, "kind", note.Kind)...)
		return nil
	}
	n.log.Info(note.Message, attrs...)
	return nil
}

// MultiNotifier fans a notification out to several sinks.
type MultiNotifier []Notifier

func (m MultiNotifier) Notify(ctx context.Context, note domain.Notification) error {
	var firstErr error
	for _, n := range m {
		if err := n.Notify(ctx, note); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
