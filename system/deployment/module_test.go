package deployment

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"atomicdeploy/pkg/core/config"
	"atomicdeploy/pkg/core/logger"
	"atomicdeploy/pkg/executor"
	"atomicdeploy/pkg/notifier"
	"atomicdeploy/system/deployment/api/dto"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestModule(t *testing.T) (*Module, config.DeployConfig) {
	t.Helper()
	root := t.TempDir()
	log := logger.New("debug", &bytes.Buffer{})

	cfg := config.DefaultDeployConfig()
	cfg.BuildPath = filepath.Join(root, "build")
	cfg.DeploymentsPath = filepath.Join(root, "deployments")
	cfg.DeploymentLink = filepath.Join(root, "current")
	cfg.Toolkit = config.ToolkitNative
	require.NoError(t, os.MkdirAll(cfg.BuildPath, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.BuildPath, "index.html"), []byte("ok"), 0o644))

	db, err := config.InitSqlite(config.Database{Dsn: filepath.Join(root, "deploy.db")})
	require.NoError(t, err)
	require.NoError(t, AutoMigrate(db, log))

	runner := executor.NewRunner(log, time.Minute)
	return NewModule(db, cfg, notifier.NewBus(log), runner, log), cfg
}

func TestModule(t *testing.T) {
	ctx := context.Background()

	t.Run("部署并列出记录", func(t *testing.T) {
		m, cfg := newTestModule(t)

		first, err := m.Client.Deploy(ctx, &dto.DeployReq{Directory: "test-dir-1"})
		require.NoError(t, err)
		require.True(t, first.Success)
		assert.Equal(t, "CONFIRMED", first.Stage)
		require.NotNil(t, first.Deployment)
		assert.Equal(t, "SUCCESS", first.Deployment.DeploymentStatus)
		assert.NotEmpty(t, first.RunID)

		second, err := m.Client.Deploy(ctx, &dto.DeployReq{Directory: "test-dir-2"})
		require.NoError(t, err)
		require.True(t, second.Success)

		list, err := m.Client.List(ctx, false)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.False(t, list[0].Live)
		assert.True(t, list[1].Live)
		assert.Equal(t, cfg.DeploymentLink, list[1].DeploymentLink)

		buf := &bytes.Buffer{}
		require.NoError(t, m.Client.RenderList(ctx, buf, true))
		assert.Contains(t, buf.String(), "Commit Hash")
		assert.Contains(t, buf.String(), "test-dir-2")
		assert.True(t, second.Deployment.Live)

		// dry run 回切不改动软链接，结果里的 Live 反映真实指向
		preview, err := m.Client.Deploy(ctx, &dto.DeployReq{Hash: "test-dir-1", DryRun: true})
		require.NoError(t, err)
		require.True(t, preview.Success)
		require.NotNil(t, preview.Deployment)
		assert.Equal(t, "test-dir-1", preview.Deployment.CommitHash)
		assert.False(t, preview.Deployment.Live)
	})

	t.Run("清理参数校验", func(t *testing.T) {
		m, _ := newTestModule(t)
		_, err := m.Client.Clean(ctx, &dto.CleanReq{Limit: -1})
		require.Error(t, err)
	})

	t.Run("清理后保留数量", func(t *testing.T) {
		m, _ := newTestModule(t)
		for _, dir := range []string{"a", "b", "c"} {
			res, err := m.Client.Deploy(ctx, &dto.DeployReq{Directory: dir})
			require.NoError(t, err)
			require.True(t, res.Success)
		}

		res, err := m.Client.Clean(ctx, &dto.CleanReq{Limit: 1})
		require.NoError(t, err)
		assert.Equal(t, 1, res.Kept)
		assert.Equal(t, []string{"b", "a"}, res.Deleted)

		list, err := m.Client.List(ctx, true)
		require.NoError(t, err)
		require.Len(t, list, 3)
		assert.NotNil(t, list[0].DeletedAt)
	})
}
