package app

import (
	"context"

	"atomicdeploy/pkg/core/config"
	errorc "atomicdeploy/pkg/core/err"
	"atomicdeploy/pkg/core/logger"
	"atomicdeploy/pkg/executor"
	"atomicdeploy/pkg/notifier"
	"atomicdeploy/system/deployment/internal/dao"
	"atomicdeploy/system/deployment/internal/service"

	"gorm.io/gorm"
)

// App Deployment 组件应用层
// 负责组合/调度 Service，实现部署、回切和清理
type App struct {
	// DAOs
	DeploymentDao *dao.DeploymentDao

	// Services
	DeploymentSvc *service.DeploymentService
	Toolkit       service.Toolkit
	Naming        *service.Naming
	Migrator      *service.Migrator
	Repairer      *service.SymlinkRepairer
	Cleaner       *Cleaner

	// 配置
	Config config.DeployConfig

	Publisher notifier.Publisher

	log *logger.Log
	err *errorc.ErrorBuilder
	db  *gorm.DB
}

// NewApp 创建 Deployment 组件应用层实例，toolkit 由配置决定
func NewApp(db *gorm.DB, cfg config.DeployConfig, publisher notifier.Publisher, runner *executor.Runner, log *logger.Log) *App {
	toolkit := service.NewToolkit(cfg.Toolkit, runner)
	revision := func(ctx context.Context, dir string) (string, error) {
		return runner.In(dir).GitRevision(ctx)
	}
	return NewAppWithToolkit(db, cfg, publisher, toolkit, service.NewNaming(cfg.DirectoryNaming, revision), log)
}

// NewAppWithToolkit 使用指定的 toolkit 和命名策略创建应用层
func NewAppWithToolkit(db *gorm.DB, cfg config.DeployConfig, publisher notifier.Publisher, toolkit service.Toolkit, naming *service.Naming, log *logger.Log) *App {
	deploymentDao := dao.NewDeploymentDao(db, log)
	deploymentSvc := service.NewDeploymentService(deploymentDao, toolkit, log)

	return &App{
		DeploymentDao: deploymentDao,
		DeploymentSvc: deploymentSvc,
		Toolkit:       toolkit,
		Naming:        naming,
		Migrator:      service.NewMigrator(toolkit, log),
		Repairer:      service.NewSymlinkRepairer(toolkit, log),
		Cleaner:       NewCleaner(deploymentSvc, cfg.Retention.OnLive, log),
		Config:        cfg,
		Publisher:     publisher,
		log:           log.WithEntryName("DeploymentApp"),
		err:           errorc.NewErrorBuilder("DeploymentApp"),
		db:            db,
	}
}
