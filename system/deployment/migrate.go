package deployment

import (
	"atomicdeploy/pkg/core/logger"
	"atomicdeploy/system/deployment/internal/model"

	"gorm.io/gorm"
)

// AutoMigrate 执行 Deployment 组件的数据库迁移
func AutoMigrate(db *gorm.DB, log *logger.Log) error {
	log.Info("开始执行 Deployment 组件数据库迁移...")

	if err := db.AutoMigrate(&model.AtomicDeployment{}); err != nil {
		log.WithErr(err).Error("Deployment 组件数据库迁移失败")
		return err
	}

	log.Info("Deployment 组件数据库迁移完成")
	return nil
}
