package app

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"

	errorc "atomicdeploy/pkg/core/err"
	"atomicdeploy/pkg/core/system"
	"atomicdeploy/pkg/notifier"
	"atomicdeploy/system/deployment/internal/model"
	"atomicdeploy/system/deployment/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStage(t *testing.T) {
	assert.Equal(t, "SYMLINKS_FIXED", StageSymlinksFixed.String())
	assert.Equal(t, "UNKNOWN", Stage(42).String())
	assert.True(t, StageConfirmed.IsTerminal())
	assert.True(t, StageFailed.IsTerminal())
	assert.False(t, StageLinked.IsTerminal())
}

func TestOrchestratorRollback(t *testing.T) {
	t.Run("恢复失败返回不可恢复错误", func(t *testing.T) {
		broken := false
		var inner service.Toolkit
		f := newFixture(t, nil, func(tk service.Toolkit) service.Toolkit {
			inner = tk
			return &faultyToolkit{Toolkit: tk, link: func(target, link string) error {
				if broken {
					return errors.New("read-only file system")
				}
				return inner.Link(context.Background(), target, link)
			}}
		})
		require.True(t, f.deploy(t, "test-dir-1").Success)
		require.True(t, f.deploy(t, "test-dir-2").Success)

		// 以 test-dir-1 为初始版本构造编排器，再让软链接恢复失败
		target := service.NewRehydratedTarget(mustFind(t, f, "test-dir-1"), f.app.Toolkit, f.app.DeploymentDao)
		require.NoError(t, target.Link(context.Background()))
		orch, err := f.app.newOrchestrator(context.Background(), target, false)
		require.NoError(t, err)
		require.NoError(t, inner.Link(context.Background(), filepath.Join(f.deployments, "test-dir-2"), f.link))

		buf := &bytes.Buffer{}
		orch.log.SetOutput(buf)
		broken = true
		err = orch.Rollback(context.Background())
		require.Error(t, err)
		assert.True(t, errorc.Is(err, errorc.ErrorCodeUnrecoverableRollback))
		assert.Contains(t, buf.String(), "emergency")
	})

	t.Run("dry run 不回滚", func(t *testing.T) {
		f := newFixture(t, nil, nil)
		require.True(t, f.deploy(t, "test-dir-1").Success)
		target := service.NewRehydratedTarget(mustFind(t, f, "test-dir-1"), f.app.Toolkit, f.app.DeploymentDao)
		orch, err := f.app.newOrchestrator(context.Background(), target, true)
		require.NoError(t, err)
		assert.NoError(t, orch.Rollback(context.Background()))
	})

	t.Run("中断只生效一次", func(t *testing.T) {
		f := newFixture(t, nil, nil)
		require.True(t, f.deploy(t, "test-dir-1").Success)
		target := service.NewRehydratedTarget(mustFind(t, f, "test-dir-1"), f.app.Toolkit, f.app.DeploymentDao)
		orch, err := f.app.newOrchestrator(context.Background(), target, false)
		require.NoError(t, err)

		orch.Abort(context.Background())
		orch.Abort(context.Background())
		assert.Equal(t, StageFailed, orch.Stage())
		assert.Error(t, orch.Err())
		assert.Len(t, f.eventNames(), 2)
	})
}

func TestOrchestratorAbort(t *testing.T) {
	t.Run("复制过程中被中断不再切换软链接", func(t *testing.T) {
		interrupt := false
		f := newFixture(t, nil, func(tk service.Toolkit) service.Toolkit {
			return &faultyToolkit{Toolkit: tk, copyContents: func(from, to string) error {
				if interrupt {
					system.RunCloses()
				}
				return nil
			}}
		})
		require.True(t, f.deploy(t, "test-dir-1").Success)

		interrupt = true
		outcome := f.deploy(t, "test-dir-2")

		assert.False(t, outcome.Success)
		assert.Equal(t, StageFailed, outcome.Stage)
		assert.True(t, errorc.Is(outcome.Err, errorc.ErrorCodeAborted))
		assert.Equal(t, f.path("test-dir-1"), f.current(t))
		require.NotNil(t, outcome.Record)
		assert.Equal(t, model.DeploymentStatusFailed, outcome.Record.DeploymentStatus)
		assert.Equal(t, []notifier.Event{
			notifier.EventDeploymentSucceeded,
			notifier.EventDeploymentFailed,
		}, f.eventNames())
	})

	t.Run("切换软链接时收到中断等待提交完成", func(t *testing.T) {
		interrupt := false
		done := make(chan struct{})
		var inner service.Toolkit
		f := newFixture(t, nil, func(tk service.Toolkit) service.Toolkit {
			inner = tk
			return &faultyToolkit{Toolkit: tk, link: func(target, link string) error {
				if interrupt {
					interrupt = false
					go func() {
						system.RunCloses()
						close(done)
					}()
				}
				return inner.Link(context.Background(), target, link)
			}}
		})
		require.True(t, f.deploy(t, "test-dir-1").Success)

		interrupt = true
		outcome := f.deploy(t, "test-dir-2")
		<-done

		assert.True(t, outcome.Success)
		assert.Equal(t, StageConfirmed, outcome.Stage)
		assert.NoError(t, outcome.Err)
		assert.Equal(t, f.path("test-dir-2"), f.current(t))
		assert.Equal(t, model.DeploymentStatusSuccess, outcome.Record.DeploymentStatus)
		assert.Equal(t, []notifier.Event{
			notifier.EventDeploymentSucceeded,
			notifier.EventDeploymentSucceeded,
		}, f.eventNames())
	})

	t.Run("终态之后不再变更阶段", func(t *testing.T) {
		f := newFixture(t, nil, nil)
		require.True(t, f.deploy(t, "test-dir-1").Success)
		target := service.NewRehydratedTarget(mustFind(t, f, "test-dir-1"), f.app.Toolkit, f.app.DeploymentDao)
		orch, err := f.app.newOrchestrator(context.Background(), target, false)
		require.NoError(t, err)

		orch.Abort(context.Background())
		assert.False(t, orch.transition(context.Background(), StageConfirmed))
		assert.Equal(t, StageFailed, orch.Stage())

		assert.False(t, orch.Deploy(context.Background(), nil, nil))
		assert.Equal(t, StageFailed, orch.Stage())
		assert.True(t, errorc.Is(orch.Err(), errorc.ErrorCodeAborted))
		assert.Len(t, f.eventNames(), 2)
	})
}

func mustFind(t *testing.T, f *fixture, directory string) *model.AtomicDeployment {
	t.Helper()
	record, err := f.app.DeploymentSvc.FindSuccessfulByDirectory(context.Background(), directory)
	require.NoError(t, err)
	return record
}
