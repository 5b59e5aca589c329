package app

import (
	"context"
	"fmt"

	errorc "atomicdeploy/pkg/core/err"
	"atomicdeploy/pkg/core/logger"
	"atomicdeploy/pkg/core/system"
	"atomicdeploy/system/deployment/internal/model"
	"atomicdeploy/system/deployment/internal/service"
)

// DeployRequest 部署请求
type DeployRequest struct {
	// Directory 显式指定版本目录名
	Directory string
	// Hash 指定时重新上线该历史版本，不做新的部署
	Hash   string
	DryRun bool
	// Clean 部署成功后按保留数量清理
	Clean bool
}

// DeployOutcome 部署结果
type DeployOutcome struct {
	RunID          string
	Success        bool
	Directory      string
	DeploymentPath string
	PreviousPath   string
	Stage          Stage
	Err            error
	Record         *model.AtomicDeployment
	// NotFound 按 Hash 回切时没有找到对应的成功部署
	NotFound bool
	Cleaned  *CleanResult
}

// Deploy 部署构建目录或按 Hash 回切。
// 目录名或路径不合法时在任何修改之前返回错误；部署过程中的失败会被回滚并体现在结果里。
func (a *App) Deploy(ctx context.Context, req *DeployRequest) (outcome *DeployOutcome, err error) {
	ctx, runID := logger.ContextWithRun(ctx)
	log := a.log.WithRun(ctx)

	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", r).Error("部署发生 panic")
			err = a.err.New(fmt.Sprintf("部署发生 panic: %v", r), nil)
		}
	}()

	if req.Hash != "" {
		return a.Redeploy(ctx, req.Hash, req.DryRun)
	}

	target, err := service.NewFreshTarget(ctx, service.TargetOptions{
		BuildPath:       a.Config.BuildPath,
		DeploymentsPath: a.Config.DeploymentsPath,
		DeploymentLink:  a.Config.DeploymentLink,
		Directory:       req.Directory,
	}, a.Naming, a.Toolkit, a.DeploymentDao)
	if err != nil {
		return nil, err
	}

	orch, err := a.newOrchestrator(ctx, target, req.DryRun)
	if err != nil {
		return nil, err
	}

	outcome = &DeployOutcome{
		RunID:          runID,
		Directory:      target.Directory(),
		DeploymentPath: target.Path(),
		PreviousPath:   orch.InitialDeploymentPath(),
	}

	log.WithFields(map[string]interface{}{
		"directory": target.Directory(),
		"path":      target.Path(),
		"link":      target.LinkPath(),
	}).Info("开始部署")

	unregister := system.RegisterClose(func() { orch.Abort(ctx) })
	defer unregister()

	outcome.Success = orch.Deploy(ctx, func(o *Orchestrator) {
		if !req.Clean && a.Config.Retention.Limit <= 0 {
			return
		}
		if a.Config.Retention.Limit <= 0 {
			log.Warn("未配置保留数量，跳过清理")
			return
		}
		cleaned, err := a.Cleaner.Clean(ctx, a.Config.Retention.Limit, false, o.IsDryRun())
		if err != nil {
			errorc.ParseError(err).ToLog(log.Entry, "清理历史版本失败")
		}
		outcome.Cleaned = cleaned
	}, nil)

	outcome.Stage = orch.Stage()
	outcome.Err = orch.Err()
	outcome.Record = target.Record()
	return outcome, nil
}

// Redeploy 把软链接切回指定 Hash 的成功部署，只做链接切换和确认。
// 找不到对应版本时只告警，不做任何修改。
func (a *App) Redeploy(ctx context.Context, hash string, dryRun bool) (*DeployOutcome, error) {
	ctx, runID := logger.ContextWithRun(ctx)
	log := a.log.WithRun(ctx).WithField("hash", hash)

	record, err := a.DeploymentSvc.FindSuccessfulByDirectory(ctx, hash)
	if err != nil {
		if errorc.IsNotFound(err) {
			log.Warn("Build not found for hash，未找到对应版本")
			return &DeployOutcome{RunID: runID, Directory: hash, NotFound: true}, nil
		}
		return nil, err
	}

	target := service.NewRehydratedTarget(record, a.Toolkit, a.DeploymentDao)
	orch, err := a.newOrchestrator(ctx, target, dryRun)
	if err != nil {
		return nil, err
	}

	unregister := system.RegisterClose(func() { orch.Abort(ctx) })
	defer unregister()

	outcome := &DeployOutcome{
		RunID:          runID,
		Directory:      target.Directory(),
		DeploymentPath: target.Path(),
		PreviousPath:   orch.InitialDeploymentPath(),
		Record:         record,
	}
	outcome.Success = orch.Relink(ctx)
	outcome.Stage = orch.Stage()
	outcome.Err = orch.Err()
	return outcome, nil
}

// Clean 手动清理历史版本
func (a *App) Clean(ctx context.Context, limit int, hard, dryRun bool) (*CleanResult, error) {
	ctx, _ = logger.ContextWithRun(ctx)
	if limit <= 0 {
		limit = a.Config.Retention.Limit
	}
	return a.Cleaner.Clean(ctx, limit, hard, dryRun)
}

func (a *App) newOrchestrator(ctx context.Context, target service.Target, dryRun bool) (*Orchestrator, error) {
	return NewOrchestrator(ctx, target, OrchestratorOptions{
		Migrator:  a.Migrator,
		Repairer:  a.Repairer,
		Publisher: a.Publisher,
		Migrate:   a.Config.Migrate,
		DryRun:    dryRun,
		Log:       a.log,
	})
}
