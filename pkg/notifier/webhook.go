package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"text/template"
	"time"

	"go.uber.org/zap"
)

// WebhookNotifier Webhook通知器
type WebhookNotifier struct {
	config *WebhookNotifierConfig
	tmpl   *template.Template
	client *http.Client
	logger *zap.Logger
}

// 默认的请求体模板
const defaultWebhookBodyTemplate = `{
  "id": {{toJSON .ID}},
  "event": {{toJSON .Event}},
  "title": {{toJSON .Title}},
  "content": {{toJSON .Content}},
  "level": {{toJSON .Level}},
  "created_at": "{{formatTime .CreatedAt}}",
  "labels": {{toJSON .Labels}},
  "data": {{toJSON .Data}}
}`

var templateFuncs = template.FuncMap{
	"formatTime": func(t time.Time) string {
		return t.Format("2006-01-02T15:04:05Z07:00")
	},
	"toJSON": func(v interface{}) string {
		if v == nil {
			return "null"
		}
		b, err := json.Marshal(v)
		if err != nil {
			return "null"
		}
		return string(b)
	},
}

// NewWebhookNotifier 创建新的Webhook通知器，logger 为空时不输出日志
func NewWebhookNotifier(config WebhookNotifierConfig, logger *zap.Logger) (*WebhookNotifier, error) {
	if config.URL == "" {
		return nil, fmt.Errorf("Webhook URL不能为空")
	}

	if config.Method == "" {
		config.Method = http.MethodPost
	}
	if config.BodyTemplate == "" {
		config.BodyTemplate = defaultWebhookBodyTemplate
	}
	if config.TimeoutSeconds == 0 {
		config.TimeoutSeconds = 30
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	tmpl, err := template.New("body").Funcs(templateFuncs).Parse(config.BodyTemplate)
	if err != nil {
		return nil, fmt.Errorf("解析请求体模板失败: %w", err)
	}

	return &WebhookNotifier{
		config: &config,
		tmpl:   tmpl,
		client: &http.Client{Timeout: time.Duration(config.TimeoutSeconds) * time.Second},
		logger: logger,
	}, nil
}

// Send 发送Webhook通知
func (n *WebhookNotifier) Send(ctx context.Context, notification *Notification) (*NotificationResult, error) {
	result := &NotificationResult{
		NotifierName: n.config.Name,
	}
	start := time.Now()

	var bodyBuf bytes.Buffer
	if err := n.tmpl.Execute(&bodyBuf, notification); err != nil {
		result.Error = fmt.Sprintf("渲染请求体模板失败: %s", err.Error())
		return result, nil
	}

	req, err := http.NewRequestWithContext(ctx, n.config.Method, n.config.URL, &bodyBuf)
	if err != nil {
		result.Error = fmt.Sprintf("创建HTTP请求失败: %s", err.Error())
		return result, nil
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "AtomicDeploy-Notifier/1.0")
	for key, value := range n.config.Headers {
		req.Header.Set(key, value)
	}

	resp, err := n.client.Do(req)
	result.ResponseTime = time.Since(start).Milliseconds()
	if err != nil {
		result.Error = fmt.Sprintf("发送HTTP请求失败: %s", err.Error())
		n.logger.Warn("Webhook通知发送失败", zap.String("url", n.config.URL), zap.Error(err))
		return result, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		result.Error = fmt.Sprintf("HTTP响应状态异常: %d", resp.StatusCode)
		n.logger.Warn("Webhook通知发送失败", zap.String("url", n.config.URL), zap.Int("status_code", resp.StatusCode))
		return result, nil
	}

	result.Success = true
	n.logger.Info("Webhook通知发送成功",
		zap.String("id", notification.ID),
		zap.String("event", string(notification.Event)),
		zap.String("url", n.config.URL),
		zap.Int("status_code", resp.StatusCode))

	return result, nil
}

// GetName 获取通知器名称
func (n *WebhookNotifier) GetName() string {
	return n.config.Name
}
