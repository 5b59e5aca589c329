// Package notifier 提供部署事件的进程内分发和 webhook 通知
package notifier

import (
	"context"
	"time"
)

// Event 事件名
type Event string

const (
	// EventDeploymentSucceeded 部署成功
	EventDeploymentSucceeded Event = "DeploymentSucceeded"
	// EventDeploymentFailed 部署失败
	EventDeploymentFailed Event = "DeploymentFailed"
)

// NotificationLevel 表示通知级别
type NotificationLevel string

const (
	NotificationLevelInfo  NotificationLevel = "info"
	NotificationLevelError NotificationLevel = "error"
)

// Notification 表示一个通知消息
type Notification struct {
	ID        string                 `json:"id"`
	Event     Event                  `json:"event"`
	Title     string                 `json:"title"`
	Content   string                 `json:"content"`
	Level     NotificationLevel      `json:"level"`
	Labels    map[string]string      `json:"labels,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// NotificationResult 表示通知发送结果
type NotificationResult struct {
	NotifierName string `json:"notifier_name"`
	Success      bool   `json:"success"`
	// 错误信息（如果失败）
	Error string `json:"error,omitempty"`
	// 响应时间（毫秒）
	ResponseTime int64 `json:"response_time,omitempty"`
}

// Notifier 通知器接口
type Notifier interface {
	// Send 发送通知
	Send(ctx context.Context, notification *Notification) (*NotificationResult, error)
	// GetName 获取通知器名称
	GetName() string
}

// Publisher 发布部署事件
type Publisher interface {
	Publish(ctx context.Context, notification *Notification)
}

// WebhookNotifierConfig Webhook通知器配置
type WebhookNotifierConfig struct {
	Name string
	URL  string
	// HTTP方法
	Method  string
	Headers map[string]string
	// 请求体模板
	BodyTemplate string
	// 超时时间（秒）
	TimeoutSeconds int
}
