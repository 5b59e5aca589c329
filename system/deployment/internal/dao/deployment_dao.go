package dao

import (
	"context"
	"errors"

	errorc "atomicdeploy/pkg/core/err"
	"atomicdeploy/pkg/core/logger"
	"atomicdeploy/pkg/core/mvc"
	"atomicdeploy/system/deployment/internal/model"

	"gorm.io/gorm"
)

// DeploymentDao 部署记录数据访问层
type DeploymentDao struct {
	mvc.IBaseDao[model.AtomicDeployment]
	log *logger.Log
	err *errorc.ErrorBuilder
	db  *gorm.DB
}

// NewDeploymentDao 创建部署记录 DAO 实例
func NewDeploymentDao(db *gorm.DB, log *logger.Log) *DeploymentDao {
	return &DeploymentDao{
		IBaseDao: mvc.NewGormDao[model.AtomicDeployment](db),
		log:      log.WithEntryName("DeploymentDao"),
		err:      errorc.NewErrorBuilder("DeploymentDao"),
		db:       db,
	}
}

// Upsert 以 deployment_path 为键更新或创建未删除的记录
func (d *DeploymentDao) Upsert(ctx context.Context, record *model.AtomicDeployment) (*model.AtomicDeployment, error) {
	var existing model.AtomicDeployment
	err := d.db.WithContext(ctx).
		Where("deployment_path = ?", record.DeploymentPath).
		Order("id DESC").
		First(&existing).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, d.err.New("查询部署记录失败", err).DB()
	}

	if errors.Is(err, gorm.ErrRecordNotFound) {
		if err := d.Create(ctx, record); err != nil {
			return nil, err
		}
		return record, nil
	}

	// 使用 map 更新，避免 FAILED(0) 被当作零值忽略
	updates := map[string]interface{}{
		"commit_hash":       record.CommitHash,
		"build_path":        record.BuildPath,
		"deployment_link":   record.DeploymentLink,
		"deployment_status": record.DeploymentStatus,
	}
	if err := d.db.WithContext(ctx).Model(&existing).Updates(updates).Error; err != nil {
		return nil, d.err.New("更新部署记录失败", err).DB()
	}
	existing.CommitHash = record.CommitHash
	existing.BuildPath = record.BuildPath
	existing.DeploymentLink = record.DeploymentLink
	existing.DeploymentStatus = record.DeploymentStatus
	return &existing, nil
}

// FindByDirectory 根据目录名查询最新的未删除记录
func (d *DeploymentDao) FindByDirectory(ctx context.Context, directory string) (*model.AtomicDeployment, error) {
	var record model.AtomicDeployment
	err := d.db.WithContext(ctx).
		Where("commit_hash = ?", directory).
		Order("id DESC").
		First(&record).Error
	if err != nil {
		return nil, d.err.New("查询部署记录失败", err).DB()
	}
	return &record, nil
}

// FindSuccessfulByDirectory 根据目录名查询成功的未删除记录
func (d *DeploymentDao) FindSuccessfulByDirectory(ctx context.Context, directory string) (*model.AtomicDeployment, error) {
	var record model.AtomicDeployment
	err := d.db.WithContext(ctx).
		Where("commit_hash = ? AND deployment_status = ?", directory, model.DeploymentStatusSuccess).
		Order("id DESC").
		First(&record).Error
	if err != nil {
		return nil, d.err.New("查询部署记录失败", err).DB()
	}
	return &record, nil
}

// ListSuccessful 按时间倒序查询成功的记录，limit <= 0 时不限制数量
func (d *DeploymentDao) ListSuccessful(ctx context.Context, limit int) ([]*model.AtomicDeployment, error) {
	var list []*model.AtomicDeployment
	q := d.db.WithContext(ctx).
		Where("deployment_status = ?", model.DeploymentStatusSuccess).
		Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&list).Error; err != nil {
		return nil, d.err.New("查询部署记录失败", err).DB()
	}
	return list, nil
}

// ListOlderThan 查询 id 更小的已结束记录，按时间倒序
func (d *DeploymentDao) ListOlderThan(ctx context.Context, id int64) ([]*model.AtomicDeployment, error) {
	var list []*model.AtomicDeployment
	err := d.db.WithContext(ctx).
		Where("id < ? AND deployment_status IN ?", id, []model.DeploymentStatus{model.DeploymentStatusSuccess, model.DeploymentStatusFailed}).
		Order("id DESC").
		Find(&list).Error
	if err != nil {
		return nil, d.err.New("查询部署记录失败", err).DB()
	}
	return list, nil
}

// List 查询全部记录，withTrashed 为 true 时包含已软删除的记录
func (d *DeploymentDao) List(ctx context.Context, withTrashed bool) ([]*model.AtomicDeployment, error) {
	var list []*model.AtomicDeployment
	q := d.db.WithContext(ctx)
	if withTrashed {
		q = q.Unscoped()
	}
	if err := q.Order("id ASC").Find(&list).Error; err != nil {
		return nil, d.err.New("查询部署记录失败", err).DB()
	}
	return list, nil
}

// Count 统计记录数
func (d *DeploymentDao) Count(ctx context.Context, withTrashed bool) (int64, error) {
	var count int64
	q := d.db.WithContext(ctx).Model(&model.AtomicDeployment{})
	if withTrashed {
		q = q.Unscoped()
	}
	if err := q.Count(&count).Error; err != nil {
		return 0, d.err.New("统计部署记录失败", err).DB()
	}
	return count, nil
}

// Delete 删除记录，hard 为 true 时物理删除
func (d *DeploymentDao) Delete(ctx context.Context, id int64, hard bool) error {
	if !hard {
		return d.DeleteById(ctx, id)
	}
	res := d.db.WithContext(ctx).Unscoped().Delete(&model.AtomicDeployment{}, id)
	if res.Error != nil {
		return d.err.New("删除部署记录失败", res.Error).DB()
	}
	if res.RowsAffected == 0 {
		return d.err.New("要删除的记录不存在", nil).NotFound()
	}
	return nil
}

// WithTx 使用事务
func (d *DeploymentDao) WithTx(tx *gorm.DB) *DeploymentDao {
	return &DeploymentDao{
		IBaseDao: mvc.NewGormDao[model.AtomicDeployment](tx),
		log:      d.log,
		err:      d.err,
		db:       tx,
	}
}
