package service

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"

	"atomicdeploy/pkg/executor"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func toolkits(t *testing.T) map[string]Toolkit {
	kits := map[string]Toolkit{"native": NewNativeToolkit()}
	if runtime.GOOS != "linux" {
		return kits
	}
	for _, tool := range []string{"sh", "rsync", "ln", "mv", "readlink"} {
		if _, err := exec.LookPath(tool); err != nil {
			return kits
		}
	}
	kits["command"] = NewCommandToolkit(executor.NewRunner(testLog(), 0))
	return kits
}

func TestToolkitLink(t *testing.T) {
	for name, kit := range toolkits(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			dir := t.TempDir()
			a := filepath.Join(dir, "a")
			b := filepath.Join(dir, "b")
			link := filepath.Join(dir, "current")
			require.NoError(t, os.Mkdir(a, 0o755))
			require.NoError(t, os.Mkdir(b, 0o755))

			current, err := kit.ReadLink(ctx, link)
			require.NoError(t, err)
			assert.Empty(t, current, "链接不存在时返回空串")

			require.NoError(t, kit.Link(ctx, a, link))
			current, err = kit.ReadLink(ctx, link)
			require.NoError(t, err)
			assert.Equal(t, CanonicalPath(a), current)

			require.NoError(t, kit.Link(ctx, b, link))
			current, err = kit.ReadLink(ctx, link)
			require.NoError(t, err)
			assert.Equal(t, CanonicalPath(b), current)

			entries, err := os.ReadDir(dir)
			require.NoError(t, err)
			assert.Len(t, entries, 3, "不应残留临时链接")

			plain := filepath.Join(dir, "plain")
			require.NoError(t, os.Mkdir(plain, 0o755))
			current, err = kit.ReadLink(ctx, plain)
			require.NoError(t, err)
			assert.Empty(t, current, "普通目录不是软链接")
		})
	}
}

func TestToolkitCopy(t *testing.T) {
	for name, kit := range toolkits(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			dir := t.TempDir()
			build := filepath.Join(dir, "build")
			dest := filepath.Join(dir, "dest")

			writeFile(t, filepath.Join(build, "index.html"), "v2")
			writeFile(t, filepath.Join(build, "assets", "app.js"), "js")
			require.NoError(t, os.Symlink("assets/app.js", filepath.Join(build, "app.js")))
			writeFile(t, filepath.Join(dest, "stale.txt"), "old")

			require.NoError(t, kit.CopyContents(ctx, build, dest))

			assert.Equal(t, "v2", readFile(t, filepath.Join(dest, "index.html")))
			assert.Equal(t, "js", readFile(t, filepath.Join(dest, "assets", "app.js")))
			assert.Equal(t, "old", readFile(t, filepath.Join(dest, "stale.txt")), "复制是增量的")

			target, err := os.Readlink(filepath.Join(dest, "app.js"))
			require.NoError(t, err)
			assert.Equal(t, "assets/app.js", target, "软链接原样保留")

			// 目录整体复制到同名目标，不多嵌套一层
			writeFile(t, filepath.Join(dir, "old", "storage", "a.txt"), "a")
			to := filepath.Join(dir, "new", "storage")
			require.NoError(t, os.MkdirAll(filepath.Dir(to), 0o755))
			require.NoError(t, kit.CopyPath(ctx, filepath.Join(dir, "old", "storage"), to))
			assert.Equal(t, "a", readFile(t, filepath.Join(to, "a.txt")))
			assert.NoDirExists(t, filepath.Join(to, "storage"))

			// 源与目标不同名时同样复制到精确路径
			renamed := filepath.Join(dir, "new", "uploads")
			require.NoError(t, kit.CopyPath(ctx, filepath.Join(dir, "old", "storage"), renamed))
			assert.Equal(t, "a", readFile(t, filepath.Join(renamed, "a.txt")))
			assert.NoDirExists(t, filepath.Join(renamed, "storage"))

			// 单个文件复制到不同名的目标文件
			writeFile(t, filepath.Join(dir, "old", ".env"), "APP=1")
			envTo := filepath.Join(dir, "new", ".env.production")
			require.NoError(t, kit.CopyPath(ctx, filepath.Join(dir, "old", ".env"), envTo))
			assert.Equal(t, "APP=1", readFile(t, envTo))
		})
	}
}

func TestCanonicalPath(t *testing.T) {
	assert.Equal(t, "", CanonicalPath(""))
	assert.Equal(t, "/not/exist", CanonicalPath("/not/exist/"))
}
