package start

import (
	"os"
	"path/filepath"
	"testing"

	"atomicdeploy/pkg/core/config"
	errorc "atomicdeploy/pkg/core/err"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYaml = `
app-name: shop
log:
  level: debug
db:
  driver: sqlite
  dsn: /var/lib/atomic/deploy.db
deploy:
  build-path: /srv/build
  deployments-path: /srv/deployments
  deployment-link: /srv/current
  directory-naming: datetime
  migrate:
    - storage/*
    - .env
  retention:
    limit: 3
notifiers:
  - name: ops
    url: https://hooks.example.com/deploy
`

func TestNewConfigures(t *testing.T) {
	t.Run("解析并保留默认值", func(t *testing.T) {
		c, err := NewConfigures([]byte(sampleYaml))
		require.NoError(t, err)

		assert.Equal(t, "shop", c.Config.AppName)
		assert.Equal(t, "/srv/build", c.Config.Deploy.BuildPath)
		assert.Equal(t, config.NamingDatetime, c.Config.Deploy.DirectoryNaming)
		assert.Equal(t, []string{"storage/*", ".env"}, c.Config.Deploy.Migrate)
		assert.Equal(t, 3, c.Config.Deploy.Retention.Limit)
		assert.Equal(t, config.OnLiveWarn, c.Config.Deploy.Retention.OnLive)
		assert.Equal(t, config.ToolkitCommand, c.Config.Deploy.Toolkit)
		require.Len(t, c.Config.Notifiers, 1)
		assert.NotNil(t, c.Logger)
	})

	t.Run("环境变量覆盖", func(t *testing.T) {
		t.Setenv("ATOMIC_DEPLOY_TOOLKIT", "native")
		t.Setenv("ATOMIC_DEPLOY_RETENTION_LIMIT", "5")
		t.Setenv("ATOMIC_DEPLOY_MIGRATE", "uploads/*, cache")

		c, err := NewConfigures([]byte(sampleYaml))
		require.NoError(t, err)
		assert.Equal(t, config.ToolkitNative, c.Config.Deploy.Toolkit)
		assert.Equal(t, 5, c.Config.Deploy.Retention.Limit)
		assert.Equal(t, []string{"uploads/*", "cache"}, c.Config.Deploy.Migrate)
	})

	t.Run("非法保留数量", func(t *testing.T) {
		t.Setenv("ATOMIC_DEPLOY_RETENTION_LIMIT", "abc")
		_, err := NewConfigures([]byte(sampleYaml))
		require.Error(t, err)
		assert.True(t, errorc.Is(err, errorc.ErrorCodeValid))
	})

	t.Run("缺少必填路径", func(t *testing.T) {
		_, err := NewConfigures([]byte("deploy:\n  build-path: relative/path\n"))
		require.Error(t, err)
		assert.True(t, errorc.Is(err, errorc.ErrorCodeValid))
		assert.Contains(t, err.Error(), "build-path必须是绝对路径")
		assert.Contains(t, err.Error(), "deployments-path不能为空")
	})

	t.Run("非法命名方式", func(t *testing.T) {
		_, err := NewConfigures([]byte("deploy:\n  build-path: /a\n  deployments-path: /b\n  deployment-link: /c\n  directory-naming: svn\n"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "directory-naming必须是[git datetime rand]中的一个")
	})
}

func TestLoadEnvFiles(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("ATOMIC_DEPLOY_DIRECTORY_NAMING=rand\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("ATOMIC_DEPLOY_DIRECTORY_NAMING") })

	require.NoError(t, LoadEnvFiles(filepath.Join(dir, "missing.env"), envFile))

	c, err := NewConfigures([]byte(sampleYaml))
	require.NoError(t, err)
	assert.Equal(t, config.NamingRand, c.Config.Deploy.DirectoryNaming)
}
