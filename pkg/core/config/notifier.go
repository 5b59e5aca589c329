package config

// NotifierConfig webhook 通知配置
type NotifierConfig struct {
	Name    string            `yaml:"name" validate:"required"`
	URL     string            `yaml:"url" validate:"required,url"`
	Method  string            `yaml:"method" validate:"omitempty,oneof=POST PUT"`
	Headers map[string]string `yaml:"headers"`
	// Timeout 单位秒
	Timeout int `yaml:"timeout" validate:"gte=0"`
	// Events 订阅的事件，为空表示全部
	Events []string `yaml:"events"`
}
