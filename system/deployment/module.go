package deployment

import (
	"atomicdeploy/pkg/core/config"
	"atomicdeploy/pkg/core/logger"
	"atomicdeploy/pkg/executor"
	"atomicdeploy/pkg/notifier"
	"atomicdeploy/system/deployment/api/client"
	"atomicdeploy/system/deployment/internal/app"

	"gorm.io/gorm"
)

// Module Deployment 组件模块门面（对外暴露的根对象）
// 封装了内部 app 和对外 client，只暴露需要的能力
type Module struct {
	// internalApp 内部应用实例，不对外暴露，仅供组件内部使用
	internalApp *app.App
	// Client 对外客户端
	Client *client.DeploymentClient
}

// NewModule 创建 Deployment 模块实例
func NewModule(db *gorm.DB, cfg config.DeployConfig, publisher notifier.Publisher, runner *executor.Runner, log *logger.Log) *Module {
	internalApp := app.NewApp(db, cfg, publisher, runner, log)
	return &Module{
		internalApp: internalApp,
		Client:      client.NewDeploymentClient(internalApp),
	}
}
