package service

import (
	"context"
	"os"

	errorc "atomicdeploy/pkg/core/err"
	"atomicdeploy/pkg/core/logger"
	"atomicdeploy/system/deployment/internal/dao"
	"atomicdeploy/system/deployment/internal/model"
)

// DeploymentService 部署记录服务
type DeploymentService struct {
	dao     *dao.DeploymentDao
	toolkit Toolkit
	log     *logger.Log
	err     *errorc.ErrorBuilder
}

// NewDeploymentService 创建部署记录服务实例
func NewDeploymentService(dao *dao.DeploymentDao, toolkit Toolkit, log *logger.Log) *DeploymentService {
	return &DeploymentService{
		dao:     dao,
		toolkit: toolkit,
		log:     log.WithEntryName("DeploymentService"),
		err:     errorc.NewErrorBuilder("DeploymentService"),
	}
}

// HasDeployment 版本目录是否仍然存在
func (s *DeploymentService) HasDeployment(record *model.AtomicDeployment) bool {
	fi, err := os.Stat(record.DeploymentPath)
	return err == nil && fi.IsDir()
}

// IsCurrentlyDeployed 版本目录存在且对外软链接正指向它
func (s *DeploymentService) IsCurrentlyDeployed(ctx context.Context, record *model.AtomicDeployment) (bool, error) {
	if !s.HasDeployment(record) {
		return false, nil
	}
	current, err := s.toolkit.ReadLink(ctx, record.DeploymentLink)
	if err != nil {
		return false, err
	}
	return current != "" && current == CanonicalPath(record.DeploymentPath), nil
}

// FindSuccessfulByDirectory 查询可重新上线的历史版本，目录已不存在时视为未找到
func (s *DeploymentService) FindSuccessfulByDirectory(ctx context.Context, directory string) (*model.AtomicDeployment, error) {
	record, err := s.dao.FindSuccessfulByDirectory(ctx, directory)
	if err != nil {
		return nil, err
	}
	if !s.HasDeployment(record) {
		return nil, s.err.New("版本目录已不存在: "+record.DeploymentPath, nil).NotFound()
	}
	return record, nil
}

// ListSuccessful 按时间倒序查询成功的记录
func (s *DeploymentService) ListSuccessful(ctx context.Context, limit int) ([]*model.AtomicDeployment, error) {
	return s.dao.ListSuccessful(ctx, limit)
}

// ListOlderThan 查询比 id 更早的已结束记录
func (s *DeploymentService) ListOlderThan(ctx context.Context, id int64) ([]*model.AtomicDeployment, error) {
	return s.dao.ListOlderThan(ctx, id)
}

// List 查询全部记录
func (s *DeploymentService) List(ctx context.Context, withTrashed bool) ([]*model.AtomicDeployment, error) {
	return s.dao.List(ctx, withTrashed)
}

// Count 统计记录数
func (s *DeploymentService) Count(ctx context.Context, withTrashed bool) (int64, error) {
	return s.dao.Count(ctx, withTrashed)
}

// Delete 删除记录及其版本目录，正在服务的版本拒绝删除
func (s *DeploymentService) Delete(ctx context.Context, record *model.AtomicDeployment, hard bool) error {
	live, err := s.IsCurrentlyDeployed(ctx, record)
	if err != nil {
		return err
	}
	if live {
		return s.err.New("不能删除正在服务的版本: "+record.DeploymentPath, nil).LiveDeployment()
	}

	if s.HasDeployment(record) {
		if err := os.RemoveAll(record.DeploymentPath); err != nil {
			return s.err.New("删除版本目录失败: "+record.DeploymentPath, err).Execution()
		}
	}

	if err := s.dao.Delete(ctx, record.ID, hard); err != nil {
		return err
	}

	s.log.WithRun(ctx).WithFields(map[string]interface{}{
		"id":        record.ID,
		"directory": record.CommitHash,
		"hard":      hard,
	}).Info("已删除部署")
	return nil
}
