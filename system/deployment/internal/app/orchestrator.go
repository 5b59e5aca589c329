package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"atomicdeploy/pkg/core/consts"
	errorc "atomicdeploy/pkg/core/err"
	"atomicdeploy/pkg/core/logger"
	"atomicdeploy/pkg/notifier"
	"atomicdeploy/system/deployment/internal/model"
	"atomicdeploy/system/deployment/internal/service"
)

// Stage 部署流程所处阶段
type Stage int

const (
	StageInit Stage = iota
	StageRunning
	StageDirCreated
	StageContentCopied
	StageMigrated
	StageSymlinksFixed
	StageLinked
	StageConfirmed
	StageFailed
)

var stageNames = [...]string{
	StageInit:          "INIT",
	StageRunning:       "RUNNING",
	StageDirCreated:    "DIR_CREATED",
	StageContentCopied: "CONTENT_COPIED",
	StageMigrated:      "MIGRATED",
	StageSymlinksFixed: "SYMLINKS_FIXED",
	StageLinked:        "LINKED",
	StageConfirmed:     "CONFIRMED",
	StageFailed:        "FAILED",
}

func (s Stage) String() string {
	if s >= 0 && int(s) < len(stageNames) {
		return stageNames[s]
	}
	return "UNKNOWN"
}

// IsTerminal CONFIRMED 和 FAILED 为终态
func (s Stage) IsTerminal() bool {
	return s == StageConfirmed || s == StageFailed
}

// Callback 部署结束后的回调
type Callback func(o *Orchestrator)

// OrchestratorOptions 编排器依赖
type OrchestratorOptions struct {
	Migrator  *service.Migrator
	Repairer  *service.SymlinkRepairer
	Publisher notifier.Publisher
	// Migrate 需要从上一版本迁移的 glob 列表
	Migrate []string
	DryRun  bool
	Log     *logger.Log
}

// Orchestrator 驱动一次部署的状态机，负责失败回滚
type Orchestrator struct {
	target    service.Target
	migrator  *service.Migrator
	repairer  *service.SymlinkRepairer
	publisher notifier.Publisher
	migrate   []string
	dryRun    bool

	initialDeploymentPath string
	// persistStatus 为 false 时不写记录状态，重新上线历史版本时使用
	persistStatus bool

	mu       sync.Mutex
	stage    Stage
	lastErr  error
	aborted  bool
	failOnce sync.Once
	// commitMu 串行化写入记录状态、切换软链接与失败处理，避免中断与提交交错
	commitMu sync.Mutex

	log *logger.Log
	err *errorc.ErrorBuilder
}

// NewOrchestrator 在任何修改之前记录当前软链接指向的目录，作为回滚目标
func NewOrchestrator(ctx context.Context, target service.Target, opts OrchestratorOptions) (*Orchestrator, error) {
	initial, err := target.CurrentPath(ctx)
	if err != nil {
		return nil, err
	}

	return &Orchestrator{
		target:                target,
		migrator:              opts.Migrator,
		repairer:              opts.Repairer,
		publisher:             opts.Publisher,
		migrate:               opts.Migrate,
		dryRun:                opts.DryRun,
		initialDeploymentPath: initial,
		persistStatus:         true,
		stage:                 StageInit,
		log:                   opts.Log.WithEntryName("Orchestrator"),
		err:                   errorc.NewErrorBuilder("Orchestrator"),
	}, nil
}

func (o *Orchestrator) Target() service.Target { return o.target }

func (o *Orchestrator) InitialDeploymentPath() string { return o.initialDeploymentPath }

func (o *Orchestrator) IsDryRun() bool { return o.dryRun }

// Stage 当前阶段
func (o *Orchestrator) Stage() Stage {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.stage
}

// Err 导致部署失败的错误
func (o *Orchestrator) Err() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lastErr
}

// transition 进入终态后不再变更阶段
func (o *Orchestrator) transition(ctx context.Context, s Stage) bool {
	o.mu.Lock()
	current := o.stage
	if current.IsTerminal() {
		o.mu.Unlock()
		o.log.WithRun(ctx).WithFields(map[string]interface{}{
			"stage": current.String(),
			"to":    s.String(),
		}).Warn("部署已结束，忽略阶段变更")
		return false
	}
	o.stage = s
	o.mu.Unlock()
	o.log.WithRun(ctx).WithField("stage", s.String()).Debug("阶段变更")
	return true
}

func (o *Orchestrator) checkAborted() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.aborted || o.stage == StageFailed {
		return o.err.New("部署已被中断", nil).Aborted()
	}
	return nil
}

// exclusive 持有 commitMu 执行 fn，执行前确认部署未被中断
func (o *Orchestrator) exclusive(fn func() error) error {
	o.commitMu.Lock()
	defer o.commitMu.Unlock()
	if err := o.checkAborted(); err != nil {
		return err
	}
	return fn()
}

func (o *Orchestrator) setErr(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.lastErr == nil {
		o.lastErr = err
	}
}

// Deploy 执行完整部署。步骤中的错误在这里统一处理：回滚、通知并记录为失败，不向调用方返回。
// 返回值表示部署是否成功。
func (o *Orchestrator) Deploy(ctx context.Context, onSuccess, onFailure Callback) (ok bool) {
	log := o.log.WithRun(ctx)
	defer o.guard(ctx, &ok, onFailure)

	if o.dryRun {
		log.Warn("Dry run，不会做任何修改")
	}
	if o.initialDeploymentPath != "" {
		log.WithField("path", o.initialDeploymentPath).Info("检测到上一次部署")
	} else {
		log.Info("该链接没有上一次部署")
	}

	if err := o.runSteps(ctx); err != nil {
		o.handleFailure(ctx, err, onFailure)
		return false
	}

	o.publish(ctx, notifier.EventDeploymentSucceeded, nil)
	if onSuccess != nil {
		onSuccess(o)
	}
	return true
}

func (o *Orchestrator) runSteps(ctx context.Context) error {
	log := o.log.WithRun(ctx)
	err := o.exclusive(func() error {
		o.transition(ctx, StageRunning)
		return o.updateStatus(ctx, model.DeploymentStatusRunning)
	})
	if err != nil {
		return err
	}

	log.WithField("path", o.target.Path()).Info("创建部署目录")
	if err := o.checkAborted(); err != nil {
		return err
	}
	if o.dryRun {
		log.Warn("Dry run，跳过创建部署目录")
	} else if err := o.target.CreateDirectory(ctx); err != nil {
		return err
	}
	o.transition(ctx, StageDirCreated)

	log.Info("复制构建产物到部署目录")
	if err := o.checkAborted(); err != nil {
		return err
	}
	if o.dryRun {
		log.Warn("Dry run，跳过目录同步")
	} else if err := o.target.CopyContents(ctx); err != nil {
		return err
	}
	o.transition(ctx, StageContentCopied)

	if err := o.checkAborted(); err != nil {
		return err
	}
	if o.migrator != nil {
		if _, err := o.migrator.Migrate(ctx, o.initialDeploymentPath, o.target.Path(), o.migrate, o.dryRun); err != nil {
			return err
		}
	}
	o.transition(ctx, StageMigrated)

	log.Info("修正仍指向构建目录的软链接")
	if err := o.checkAborted(); err != nil {
		return err
	}
	if o.dryRun {
		log.Warn("Dry run，跳过软链接修正")
	} else if o.repairer != nil {
		n, err := o.repairer.Repair(ctx, o.target.BuildPath(), o.target.Path())
		if err != nil {
			return err
		}
		log.WithField("count", n).Info("软链接修正完成")
	}
	o.transition(ctx, StageSymlinksFixed)

	return o.exclusive(func() error { return o.linkAndConfirm(ctx) })
}

// Relink 只执行链接切换和确认，用于重新上线已存在的历史版本
func (o *Orchestrator) Relink(ctx context.Context) (ok bool) {
	o.persistStatus = false
	defer o.guard(ctx, &ok, nil)

	o.log.WithRun(ctx).WithField("path", o.target.Path()).Info("切换软链接到历史版本")
	err := o.exclusive(func() error {
		o.transition(ctx, StageRunning)
		return o.linkAndConfirm(ctx)
	})
	if err != nil {
		o.handleFailure(ctx, err, nil)
		return false
	}
	o.publish(ctx, notifier.EventDeploymentSucceeded, nil)
	return true
}

func (o *Orchestrator) linkAndConfirm(ctx context.Context) error {
	log := o.log.WithRun(ctx)

	log.WithFields(map[string]interface{}{
		"link": o.target.LinkPath(),
		"path": o.target.Path(),
	}).Info("创建软链接")
	if o.dryRun {
		log.Warn("Dry run，跳过软链接切换")
	} else if err := o.target.Link(ctx); err != nil {
		return err
	}
	o.transition(ctx, StageLinked)

	if err := o.confirm(ctx); err != nil {
		return err
	}
	if err := o.updateStatus(ctx, model.DeploymentStatusSuccess); err != nil {
		return err
	}
	o.transition(ctx, StageConfirmed)
	return nil
}

func (o *Orchestrator) confirm(ctx context.Context) error {
	log := o.log.WithRun(ctx)
	log.Info("确认软链接指向")
	if o.dryRun {
		log.Warn("Dry run，跳过软链接比对")
		return nil
	}

	deployed, err := o.target.IsDeployed(ctx)
	if err != nil {
		return err
	}
	if !deployed {
		current, _ := o.target.CurrentPath(ctx)
		return o.err.New(fmt.Sprintf("软链接应指向 %s，实际为 %s", o.target.Path(), current), nil).Confirmation()
	}
	log.Info("Build link confirmed")
	return nil
}

func (o *Orchestrator) handleFailure(ctx context.Context, err error, onFailure Callback) {
	o.setErr(err)
	errorc.ParseError(err).ToLog(o.log.WithRun(ctx).Entry, "部署失败")
	o.Fail(ctx)
	if onFailure != nil {
		onFailure(o)
	}
}

// guard 在 panic 或提前退出（未到达终态）时走同一条失败路径
func (o *Orchestrator) guard(ctx context.Context, ok *bool, onFailure Callback) {
	r := recover()
	if r != nil {
		o.setErr(o.err.New(fmt.Sprintf("panic: %v", r), nil))
		o.log.WithRun(ctx).WithField("panic", r).Error("部署过程发生 panic，执行回滚")
	}
	if o.Stage().IsTerminal() {
		if r != nil {
			*ok = o.Stage() == StageConfirmed
		}
		return
	}
	*ok = false
	o.Fail(ctx)
	if onFailure != nil {
		onFailure(o)
	}
}

// Fail 回滚、发送失败通知并记录为失败，多次调用只执行一次
func (o *Orchestrator) Fail(ctx context.Context) {
	o.commitMu.Lock()
	defer o.commitMu.Unlock()
	o.fail(ctx)
}

// fail 调用方需持有 commitMu
func (o *Orchestrator) fail(ctx context.Context) {
	o.failOnce.Do(func() {
		_ = o.Rollback(ctx)
		o.publish(ctx, notifier.EventDeploymentFailed, o.Err())
		if err := o.updateStatus(ctx, model.DeploymentStatusFailed); err != nil {
			o.log.WithRun(ctx).WithErr(err).Error("记录失败状态失败")
		}
		o.transition(ctx, StageFailed)
	})
}

// Abort 进程被信号中断时调用。正在切换软链接时等待其完成，已到达终态则忽略；
// 否则回滚并记录为失败，部署主流程在下一步之前返回 Aborted 错误。
// 不能在软链接切换过程中同步调用，信号处理运行在独立的 goroutine 上。
func (o *Orchestrator) Abort(ctx context.Context) {
	o.commitMu.Lock()
	defer o.commitMu.Unlock()

	o.mu.Lock()
	if o.stage.IsTerminal() {
		o.mu.Unlock()
		return
	}
	o.aborted = true
	o.mu.Unlock()

	o.log.WithRun(ctx).Error("部署被中断，请求回滚")
	o.setErr(o.err.New("部署被中断", nil).Aborted())
	o.fail(ctx)
}

// Rollback 软链接已被改动时恢复到部署前的目标。恢复后校验失败需要人工介入，返回 UnrecoverableRollback 错误。
func (o *Orchestrator) Rollback(ctx context.Context) error {
	log := o.log.WithRun(ctx)
	log.Warn("请求回滚部署")

	if o.dryRun {
		log.Info("无需回滚")
		return nil
	}

	current, err := o.target.CurrentPath(ctx)
	if err != nil {
		log.WithErr(err).Warn("读取当前软链接失败")
	}
	if o.initialDeploymentPath == "" || o.initialDeploymentPath == current {
		log.Info("无需回滚")
		return nil
	}

	log.WithField("path", o.initialDeploymentPath).Error("尝试恢复软链接")
	cause := o.target.LinkTo(ctx, o.initialDeploymentPath)
	if cause == nil {
		current, cause = o.target.CurrentPath(ctx)
		if cause == nil && current == o.initialDeploymentPath {
			log.Info("软链接已回滚")
			return nil
		}
		if cause == nil {
			cause = fmt.Errorf("link resolves to %q", current)
		}
	}

	e := o.err.New("回滚软链接失败，需要人工介入: "+o.initialDeploymentPath, cause).UnrecoverableRollback()
	o.log.WithRun(ctx).WithErr(e).WithField("Severity", "emergency").Error("回滚软链接失败")
	return e
}

func (o *Orchestrator) updateStatus(ctx context.Context, status model.DeploymentStatus) error {
	if !o.persistStatus {
		return nil
	}
	if o.dryRun {
		o.log.WithRun(ctx).WithField("status", status.String()).Warn("Dry run，跳过状态更新")
		return nil
	}
	return o.target.UpdateStatus(ctx, status)
}

func (o *Orchestrator) publish(ctx context.Context, event notifier.Event, cause error) {
	if o.publisher == nil {
		return
	}
	if o.dryRun {
		o.log.WithRun(ctx).WithField("event", event).Warn("Dry run，跳过通知")
		return
	}

	n := &notifier.Notification{
		Event:     event,
		Title:     "部署成功",
		Level:     notifier.NotificationLevelInfo,
		CreatedAt: time.Now(),
		Labels: map[string]string{
			"directory": o.target.Directory(),
		},
		Data: map[string]interface{}{
			"directory":      o.target.Directory(),
			"deploymentPath": o.target.Path(),
			"deploymentLink": o.target.LinkPath(),
			"buildPath":      o.target.BuildPath(),
			"previousPath":   o.initialDeploymentPath,
			"stage":          o.Stage().String(),
		},
	}
	if id, ok := ctx.Value(consts.RunKey).(string); ok {
		n.ID = id
	}
	if record := o.target.Record(); record != nil {
		n.Data["id"] = record.ID
	}
	if event == notifier.EventDeploymentFailed {
		n.Title = "部署失败"
		n.Level = notifier.NotificationLevelError
		if cause != nil {
			n.Content = errorc.ParseError(cause).RootCause()
		}
	}
	o.publisher.Publish(ctx, n)
}
