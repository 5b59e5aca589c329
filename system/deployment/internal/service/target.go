package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	errorc "atomicdeploy/pkg/core/err"
	"atomicdeploy/system/deployment/internal/dao"
	"atomicdeploy/system/deployment/internal/model"
)

// Target 一次部署对应的版本目录及其记录
type Target interface {
	Directory() string
	Path() string
	BuildPath() string
	LinkPath() string
	// Record 最近一次写入或加载的记录，新部署在首次写状态前为 nil
	Record() *model.AtomicDeployment
	CreateDirectory(ctx context.Context) error
	CopyContents(ctx context.Context) error
	// Link 让对外软链接指向本版本目录
	Link(ctx context.Context) error
	// LinkTo 让对外软链接指向任意路径，回滚时使用
	LinkTo(ctx context.Context, path string) error
	CurrentPath(ctx context.Context) (string, error)
	IsDeployed(ctx context.Context) (bool, error)
	UpdateStatus(ctx context.Context, status model.DeploymentStatus) error
}

// TargetOptions 新部署的路径配置
type TargetOptions struct {
	BuildPath       string
	DeploymentsPath string
	DeploymentLink  string
	// Directory 显式指定的目录名，为空时使用命名策略
	Directory string
}

type baseTarget struct {
	directory      string
	buildPath      string
	deploymentPath string
	deploymentLink string
	record         *model.AtomicDeployment
	toolkit        Toolkit
	dao            *dao.DeploymentDao
	err            *errorc.ErrorBuilder
}

// FreshTarget 新构建的部署
type FreshTarget struct {
	baseTarget
}

// RehydratedTarget 由历史记录恢复的部署，用于重新指向旧版本
type RehydratedTarget struct {
	baseTarget
}

// NewFreshTarget 解析目录名并计算版本目录，任何文件系统修改之前完成路径校验
func NewFreshTarget(ctx context.Context, opts TargetOptions, naming *Naming, toolkit Toolkit, dao *dao.DeploymentDao) (*FreshTarget, error) {
	directory, err := naming.ResolveDirectoryName(ctx, opts.Directory, opts.BuildPath)
	if err != nil {
		return nil, err
	}

	path, err := ComputePath(opts.DeploymentsPath, opts.BuildPath, directory)
	if err != nil {
		return nil, err
	}

	return &FreshTarget{baseTarget{
		directory:      directory,
		buildPath:      filepath.Clean(opts.BuildPath),
		deploymentPath: path,
		deploymentLink: filepath.Clean(opts.DeploymentLink),
		toolkit:        toolkit,
		dao:            dao,
		err:            errorc.NewErrorBuilder("FreshTarget"),
	}}, nil
}

// NewRehydratedTarget 绑定到已有记录的路径
func NewRehydratedTarget(record *model.AtomicDeployment, toolkit Toolkit, dao *dao.DeploymentDao) *RehydratedTarget {
	return &RehydratedTarget{baseTarget{
		directory:      record.CommitHash,
		buildPath:      record.BuildPath,
		deploymentPath: record.DeploymentPath,
		deploymentLink: record.DeploymentLink,
		record:         record,
		toolkit:        toolkit,
		dao:            dao,
		err:            errorc.NewErrorBuilder("RehydratedTarget"),
	}}
}

// ComputePath 版本目录为 deploymentsPath/directory，两个根目录互相嵌套时拒绝
func ComputePath(deploymentsPath, buildPath, directory string) (string, error) {
	if directory == "" || directory == "." || directory == ".." || strings.ContainsRune(directory, filepath.Separator) {
		return "", errorc.New(fmt.Sprintf("非法的目录名: %q", directory), nil).InvalidPath()
	}

	root := filepath.Clean(deploymentsPath)
	build := filepath.Clean(buildPath)
	if IsWithin(root, build) || IsWithin(build, root) {
		return "", errorc.New(fmt.Sprintf("部署目录 %s 与构建目录 %s 不能互相嵌套", root, build), nil).InvalidPath()
	}

	return filepath.Join(root, directory), nil
}

// IsWithin child 是否等于 parent 或位于其下
func IsWithin(child, parent string) bool {
	rel, err := filepath.Rel(parent, child)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func (t *baseTarget) Directory() string { return t.directory }

func (t *baseTarget) Path() string { return t.deploymentPath }

func (t *baseTarget) BuildPath() string { return t.buildPath }

func (t *baseTarget) LinkPath() string { return t.deploymentLink }

func (t *baseTarget) Record() *model.AtomicDeployment { return t.record }

func (t *baseTarget) CreateDirectory(ctx context.Context) error {
	if err := os.MkdirAll(t.deploymentPath, 0o755); err != nil {
		return t.err.New("创建部署目录失败: "+t.deploymentPath, err).Execution()
	}
	return nil
}

func (t *baseTarget) CopyContents(ctx context.Context) error {
	for _, p := range []string{t.buildPath, t.deploymentPath} {
		if _, err := os.Stat(p); err != nil {
			return t.err.New(p+" 不存在", err).InvalidPath()
		}
	}
	return t.toolkit.CopyContents(ctx, t.buildPath, t.deploymentPath)
}

func (t *baseTarget) Link(ctx context.Context) error {
	return t.LinkTo(ctx, t.deploymentPath)
}

func (t *baseTarget) LinkTo(ctx context.Context, path string) error {
	return t.toolkit.Link(ctx, path, t.deploymentLink)
}

func (t *baseTarget) CurrentPath(ctx context.Context) (string, error) {
	return t.toolkit.ReadLink(ctx, t.deploymentLink)
}

func (t *baseTarget) IsDeployed(ctx context.Context) (bool, error) {
	current, err := t.CurrentPath(ctx)
	if err != nil {
		return false, err
	}
	return current != "" && current == CanonicalPath(t.deploymentPath), nil
}

func (t *baseTarget) UpdateStatus(ctx context.Context, status model.DeploymentStatus) error {
	record, err := t.dao.Upsert(ctx, &model.AtomicDeployment{
		CommitHash:       t.directory,
		BuildPath:        t.buildPath,
		DeploymentPath:   t.deploymentPath,
		DeploymentLink:   t.deploymentLink,
		DeploymentStatus: status,
	})
	if err != nil {
		return err
	}
	t.record = record
	return nil
}
