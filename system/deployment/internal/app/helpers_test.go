package app

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"atomicdeploy/pkg/core/config"
	"atomicdeploy/pkg/core/logger"
	"atomicdeploy/pkg/notifier"
	"atomicdeploy/system/deployment/internal/model"
	"atomicdeploy/system/deployment/internal/service"

	"github.com/stretchr/testify/require"
)

type fixture struct {
	root        string
	build       string
	deployments string
	link        string
	app         *App

	mu     sync.Mutex
	events []*notifier.Notification
}

func testLog() *logger.Log {
	return logger.New("debug", &bytes.Buffer{})
}

// newFixture 使用 native toolkit 和 sqlite 搭建一套部署环境
func newFixture(t *testing.T, mutate func(cfg *config.DeployConfig), wrap func(service.Toolkit) service.Toolkit) *fixture {
	t.Helper()
	root := t.TempDir()
	f := &fixture{
		root:        root,
		build:       filepath.Join(root, "build"),
		deployments: filepath.Join(root, "deployments"),
		link:        filepath.Join(root, "current"),
	}

	writeFile(t, filepath.Join(f.build, "index.html"), "v1")

	cfg := config.DefaultDeployConfig()
	cfg.BuildPath = f.build
	cfg.DeploymentsPath = f.deployments
	cfg.DeploymentLink = f.link
	cfg.Toolkit = config.ToolkitNative
	if mutate != nil {
		mutate(&cfg)
	}

	db, err := config.InitSqlite(config.Database{Dsn: filepath.Join(root, "deploy.db")})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.AtomicDeployment{}))

	log := testLog()
	bus := notifier.NewBus(log)
	bus.Subscribe(func(ctx context.Context, n *notifier.Notification) error {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.events = append(f.events, n)
		return nil
	})

	var toolkit service.Toolkit = service.NewNativeToolkit()
	if wrap != nil {
		toolkit = wrap(toolkit)
	}
	naming := service.NewNaming(config.NamingDatetime, nil)
	f.app = NewAppWithToolkit(db, cfg, bus, toolkit, naming, log)
	return f
}

func (f *fixture) deploy(t *testing.T, directory string) *DeployOutcome {
	t.Helper()
	outcome, err := f.app.Deploy(context.Background(), &DeployRequest{Directory: directory})
	require.NoError(t, err)
	return outcome
}

func (f *fixture) current(t *testing.T) string {
	t.Helper()
	current, err := f.app.Toolkit.ReadLink(context.Background(), f.link)
	require.NoError(t, err)
	return current
}

func (f *fixture) path(directory string) string {
	return service.CanonicalPath(filepath.Join(f.deployments, directory))
}

func (f *fixture) eventNames() []notifier.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]notifier.Event, 0, len(f.events))
	for _, n := range f.events {
		names = append(names, n.Event)
	}
	return names
}

func (f *fixture) count(t *testing.T, withTrashed bool) int64 {
	t.Helper()
	n, err := f.app.DeploymentSvc.Count(context.Background(), withTrashed)
	require.NoError(t, err)
	return n
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

// faultyToolkit 在指定操作上注入故障
type faultyToolkit struct {
	service.Toolkit
	copyContents func(from, to string) error
	link         func(target, link string) error
}

func (t *faultyToolkit) CopyContents(ctx context.Context, from, to string) error {
	if t.copyContents != nil {
		if err := t.copyContents(from, to); err != nil {
			return err
		}
	}
	return t.Toolkit.CopyContents(ctx, from, to)
}

func (t *faultyToolkit) Link(ctx context.Context, target, link string) error {
	if t.link != nil {
		return t.link(target, link)
	}
	return t.Toolkit.Link(ctx, target, link)
}
