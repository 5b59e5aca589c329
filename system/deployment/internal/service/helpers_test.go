package service

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"atomicdeploy/pkg/core/config"
	"atomicdeploy/pkg/core/logger"
	"atomicdeploy/system/deployment/internal/dao"
	"atomicdeploy/system/deployment/internal/model"

	"github.com/stretchr/testify/require"
)

func testLog() *logger.Log {
	return logger.New("debug", &bytes.Buffer{})
}

func newTestDao(t *testing.T) *dao.DeploymentDao {
	t.Helper()
	db, err := config.InitSqlite(config.Database{Dsn: filepath.Join(t.TempDir(), "deploy.db")})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.AtomicDeployment{}))
	return dao.NewDeploymentDao(db, testLog())
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(b)
}
