package config

const (
	NamingGit      = "git"
	NamingDatetime = "datetime"
	NamingRand     = "rand"

	ToolkitCommand = "command"
	ToolkitNative  = "native"

	OnLiveWarn  = "warn"
	OnLiveError = "error"
)

// DeployConfig 部署相关配置
type DeployConfig struct {
	// BuildPath 构建产物目录
	BuildPath string `yaml:"build-path" validate:"required,abspath"`
	// DeploymentsPath 版本目录的根目录
	DeploymentsPath string `yaml:"deployments-path" validate:"required,abspath"`
	// DeploymentLink 对外服务的软链接
	DeploymentLink string `yaml:"deployment-link" validate:"required,abspath"`
	// DirectoryNaming 版本目录命名方式：git / datetime / rand
	DirectoryNaming string `yaml:"directory-naming" validate:"omitempty,oneof=git datetime rand"`
	// Migrate 需要从上一版本迁移的 glob 列表，相对于版本目录
	Migrate []string `yaml:"migrate"`
	// Toolkit 文件操作实现：command 调用 rsync/ln/readlink，native 使用 Go 实现
	Toolkit   string          `yaml:"toolkit" validate:"omitempty,oneof=command native"`
	Retention RetentionConfig `yaml:"retention"`
}

// RetentionConfig 历史版本保留策略
type RetentionConfig struct {
	// Limit 保留最近成功部署的数量，0 表示不清理
	Limit int `yaml:"limit" validate:"gte=0"`
	// OnLive 待删除列表中出现在线版本时的处理方式：warn 告警并停止，error 返回错误
	OnLive string `yaml:"on-live" validate:"omitempty,oneof=warn error"`
}

// DefaultDeployConfig 返回默认配置
func DefaultDeployConfig() DeployConfig {
	return DeployConfig{
		DirectoryNaming: NamingGit,
		Toolkit:         ToolkitCommand,
		Retention: RetentionConfig{
			OnLive: OnLiveWarn,
		},
	}
}
