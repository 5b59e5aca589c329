package client

import (
	"context"
	"io"

	errorc "atomicdeploy/pkg/core/err"
	"atomicdeploy/system/deployment/api/dto"
	internalapp "atomicdeploy/system/deployment/internal/app"
	internalmodel "atomicdeploy/system/deployment/internal/model"
	"atomicdeploy/utils"
)

// DeploymentClient Deployment 组件对外客户端（进程内调用）
// 对外只暴露 api/dto，禁止泄漏 internal/model。
type DeploymentClient struct {
	app *internalapp.App
	err *errorc.ErrorBuilder
}

// NewDeploymentClient 创建 Deployment 客户端实例
func NewDeploymentClient(app *internalapp.App) *DeploymentClient {
	return &DeploymentClient{
		app: app,
		err: errorc.NewErrorBuilder("DeploymentClient"),
	}
}

// Deploy 部署或按 Hash 回切
func (c *DeploymentClient) Deploy(ctx context.Context, req *dto.DeployReq) (*dto.DeployResult, error) {
	outcome, err := c.app.Deploy(ctx, &internalapp.DeployRequest{
		Directory: req.Directory,
		Hash:      req.Hash,
		DryRun:    req.DryRun,
		Clean:     req.Clean,
	})
	if err != nil {
		return nil, err
	}

	result := &dto.DeployResult{
		RunID:          outcome.RunID,
		Success:        outcome.Success,
		NotFound:       outcome.NotFound,
		Directory:      outcome.Directory,
		DeploymentPath: outcome.DeploymentPath,
		PreviousPath:   outcome.PreviousPath,
		Stage:          outcome.Stage.String(),
	}
	if outcome.Err != nil {
		result.Error = errorc.ParseError(outcome.Err).RootCause()
	}
	if outcome.Record != nil {
		live, err := c.app.DeploymentSvc.IsCurrentlyDeployed(ctx, outcome.Record)
		if err != nil {
			return nil, err
		}
		result.Deployment = c.toDTO(outcome.Record, live)
	}
	if outcome.Cleaned != nil {
		result.Cleaned = c.toCleanResult(outcome.Cleaned)
	}
	return result, nil
}

// Clean 清理历史版本
func (c *DeploymentClient) Clean(ctx context.Context, req *dto.CleanReq) (*dto.CleanResult, error) {
	if msg, err := utils.Validate(req); err != nil {
		return nil, c.err.New(msg, err).ValidWithCtx()
	}
	result, err := c.app.Clean(ctx, req.Limit, req.Hard, req.DryRun)
	if err != nil {
		return nil, err
	}
	return c.toCleanResult(result), nil
}

// List 查询部署记录
func (c *DeploymentClient) List(ctx context.Context, withTrashed bool) ([]*dto.DeploymentDTO, error) {
	items, err := c.app.List(ctx, withTrashed)
	if err != nil {
		return nil, err
	}
	list := make([]*dto.DeploymentDTO, 0, len(items))
	for _, item := range items {
		list = append(list, c.toDTO(item.Record, item.Live))
	}
	return list, nil
}

// RenderList 以表格形式输出部署记录
func (c *DeploymentClient) RenderList(ctx context.Context, w io.Writer, withTrashed bool) error {
	items, err := c.app.List(ctx, withTrashed)
	if err != nil {
		return err
	}
	return internalapp.RenderList(w, items)
}

func (c *DeploymentClient) toDTO(record *internalmodel.AtomicDeployment, live bool) *dto.DeploymentDTO {
	d := &dto.DeploymentDTO{
		ID:               record.ID,
		CommitHash:       record.CommitHash,
		BuildPath:        record.BuildPath,
		DeploymentPath:   record.DeploymentPath,
		DeploymentLink:   record.DeploymentLink,
		DeploymentStatus: record.DeploymentStatus.String(),
		Live:             live,
		CreatedAt:        record.CreatedAt,
		UpdatedAt:        record.UpdatedAt,
	}
	if record.DeletedAt.Valid {
		deletedAt := record.DeletedAt.Time
		d.DeletedAt = &deletedAt
	}
	return d
}

func (c *DeploymentClient) toCleanResult(result *internalapp.CleanResult) *dto.CleanResult {
	deleted := make([]string, 0, len(result.Deleted))
	for _, record := range result.Deleted {
		deleted = append(deleted, record.CommitHash)
	}
	return &dto.CleanResult{
		Kept:          len(result.Kept),
		Deleted:       deleted,
		StoppedAtLive: result.StoppedAtLive,
	}
}
