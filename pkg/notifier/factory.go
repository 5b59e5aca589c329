package notifier

import (
	"atomicdeploy/pkg/core/config"

	"go.uber.org/zap"
)

// AttachWebhooks 按配置创建 webhook 通知器并订阅到总线
func AttachWebhooks(bus *Bus, configs []config.NotifierConfig, logger *zap.Logger) error {
	for _, c := range configs {
		n, err := NewWebhookNotifier(WebhookNotifierConfig{
			Name:           c.Name,
			URL:            c.URL,
			Method:         c.Method,
			Headers:        c.Headers,
			TimeoutSeconds: c.Timeout,
		}, logger)
		if err != nil {
			return err
		}

		events := make([]Event, 0, len(c.Events))
		for _, e := range c.Events {
			events = append(events, Event(e))
		}
		bus.SubscribeNotifier(n, events...)
	}
	return nil
}
