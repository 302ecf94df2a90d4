package eventbus

import (
	"context"

	"github.com/annel0/pixel-canvas/internal/logging"
)

// StartLoggingListener подписывается на все события и пишет их в лог уровня DEBUG.
func StartLoggingListener(bus EventBus, logger *logging.Logger) (Subscription, error) {
	logger = logging.OrNop(logger)
	sub, err := bus.Subscribe(context.Background(), Filter{}, func(ctx context.Context, ev *Envelope) {
		logger.Debug("[EventBus] %s %s src=%s size=%dB", ev.ID, ev.EventType, ev.Source, len(ev.Payload))
	})
	if err != nil {
		return nil, err
	}
	logger.Info("LoggingListener: подписка на все события активирована")
	return sub, nil
}
