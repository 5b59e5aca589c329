package app

import (
	"context"
	"fmt"

	"atomicdeploy/pkg/core/config"
	errorc "atomicdeploy/pkg/core/err"
	"atomicdeploy/pkg/core/logger"
	"atomicdeploy/system/deployment/internal/model"
	"atomicdeploy/system/deployment/internal/service"
)

// Cleaner 按保留数量清理历史版本
type Cleaner struct {
	svc    *service.DeploymentService
	onLive string
	log    *logger.Log
	err    *errorc.ErrorBuilder
}

func NewCleaner(svc *service.DeploymentService, onLive string, log *logger.Log) *Cleaner {
	if onLive == "" {
		onLive = config.OnLiveWarn
	}
	return &Cleaner{
		svc:    svc,
		onLive: onLive,
		log:    log.WithEntryName("Cleaner"),
		err:    errorc.NewErrorBuilder("Cleaner"),
	}
}

// CleanResult 清理结果
type CleanResult struct {
	Kept    []*model.AtomicDeployment
	Deleted []*model.AtomicDeployment
	// StoppedAtLive 候选列表中出现在线版本，清理提前结束
	StoppedAtLive bool
}

// Clean 保留最近 limit 个成功部署，删除更早的成功或失败记录及其目录。
// 运行中的记录不会被清理；遇到在线版本时按 onLive 配置告警停止或返回错误。
func (c *Cleaner) Clean(ctx context.Context, limit int, hard, dryRun bool) (*CleanResult, error) {
	log := c.log.WithRun(ctx)
	if limit <= 0 {
		return nil, c.err.New(fmt.Sprintf("保留数量必须大于0，当前为 %d", limit), nil).ValidWithCtx()
	}

	kept, err := c.svc.ListSuccessful(ctx, limit)
	if err != nil {
		return nil, err
	}
	result := &CleanResult{Kept: kept}
	if len(kept) < limit {
		log.WithFields(map[string]interface{}{"limit": limit, "count": len(kept)}).Info("成功部署数量未超过保留数量，无需清理")
		return result, nil
	}

	oldest := kept[len(kept)-1]
	candidates, err := c.svc.ListOlderThan(ctx, oldest.ID)
	if err != nil {
		return nil, err
	}

	for _, record := range candidates {
		live, err := c.svc.IsCurrentlyDeployed(ctx, record)
		if err != nil {
			return result, err
		}
		if live {
			result.StoppedAtLive = true
			if c.onLive == config.OnLiveError {
				return result, c.err.New(fmt.Sprintf("版本 %s 正在线上，不能删除", record.CommitHash), nil).LiveDeployment()
			}
			log.WithField("path", record.DeploymentPath).Warn("待清理版本正在线上，停止清理")
			return result, nil
		}

		if dryRun {
			log.WithFields(map[string]interface{}{
				"id":   record.ID,
				"path": record.DeploymentPath,
			}).Warn("Dry run，跳过删除")
			result.Deleted = append(result.Deleted, record)
			continue
		}

		if err := c.svc.Delete(ctx, record, hard); err != nil {
			return result, err
		}
		result.Deleted = append(result.Deleted, record)
	}

	log.WithFields(map[string]interface{}{
		"kept":    len(result.Kept),
		"deleted": len(result.Deleted),
		"hard":    hard,
	}).Info("历史版本清理完成")
	return result, nil
}
