package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"atomicdeploy/pkg/core/config"
	errorc "atomicdeploy/pkg/core/err"
	"atomicdeploy/pkg/executor"

	"github.com/otiai10/copy"
)

// Toolkit 部署过程中的文件系统操作
type Toolkit interface {
	// ReadLink 解析链接的最终目标，链接不存在或解析到自身时返回空串
	ReadLink(ctx context.Context, link string) (string, error)
	// Link 原子地让 link 指向 target
	Link(ctx context.Context, target, link string) error
	// CopyContents 把 from 目录下的内容归档复制到 to 目录，不删除 to 中多余的文件
	CopyContents(ctx context.Context, from, to string) error
	// CopyPath 把单个文件或目录复制到精确的目标路径
	CopyPath(ctx context.Context, from, to string) error
}

// NewToolkit 按配置选择实现
func NewToolkit(kind string, runner *executor.Runner) Toolkit {
	if kind == config.ToolkitNative {
		return NewNativeToolkit()
	}
	return NewCommandToolkit(runner)
}

// CanonicalPath 解析路径中的软链接，失败时返回清理后的原路径
func CanonicalPath(p string) string {
	if p == "" {
		return ""
	}
	if resolved, err := filepath.EvalSymlinks(p); err == nil {
		return resolved
	}
	return filepath.Clean(p)
}

// CommandToolkit 调用 readlink / ln / rsync 完成操作
type CommandToolkit struct {
	runner *executor.Runner
}

func NewCommandToolkit(runner *executor.Runner) *CommandToolkit {
	return &CommandToolkit{runner: runner}
}

func (t *CommandToolkit) ReadLink(ctx context.Context, link string) (string, error) {
	if !isSymlink(link) {
		return "", nil
	}
	out, err := t.runner.ReadLink(ctx, link)
	if err != nil {
		return "", err
	}
	if out == link {
		return "", nil
	}
	return out, nil
}

func (t *CommandToolkit) Link(ctx context.Context, target, link string) error {
	return t.runner.Link(ctx, target, link)
}

func (t *CommandToolkit) CopyContents(ctx context.Context, from, to string) error {
	return t.runner.Sync(ctx, withTrailingSlash(from), withTrailingSlash(to))
}

// CopyPath 目录以 "from/" 同步到 "to/"，不依赖两者同名
func (t *CommandToolkit) CopyPath(ctx context.Context, from, to string) error {
	info, err := os.Stat(from)
	if err != nil {
		return errorc.New(from+" 不存在", err).InvalidPath()
	}
	if !info.IsDir() {
		return t.runner.Sync(ctx, from, to)
	}
	if err := os.MkdirAll(to, info.Mode().Perm()); err != nil {
		return errorc.New("创建目录失败: "+to, err).Execution()
	}
	return t.runner.Sync(ctx, withTrailingSlash(from), withTrailingSlash(to))
}

// NativeToolkit 纯 Go 实现，不依赖外部命令
type NativeToolkit struct {
	options copy.Options
}

func NewNativeToolkit() *NativeToolkit {
	return &NativeToolkit{
		options: copy.Options{
			OnSymlink: func(string) copy.SymlinkAction {
				return copy.Shallow
			},
			PreserveTimes: true,
		},
	}
}

func (t *NativeToolkit) ReadLink(ctx context.Context, link string) (string, error) {
	if !isSymlink(link) {
		return "", nil
	}

	resolved, err := filepath.EvalSymlinks(link)
	if err != nil {
		// 悬空链接返回其指向的路径
		target, rerr := os.Readlink(link)
		if rerr != nil {
			return "", errorc.New("读取软链接失败: "+link, err).Execution()
		}
		if !filepath.IsAbs(target) {
			target = filepath.Join(filepath.Dir(link), target)
		}
		return filepath.Clean(target), nil
	}
	return resolved, nil
}

// Link 先创建临时链接再 rename 覆盖，rename 不会跟随目标链接
func (t *NativeToolkit) Link(ctx context.Context, target, link string) error {
	tmp := fmt.Sprintf("%s.tmp-%d", link, time.Now().UnixNano())
	if err := os.Symlink(target, tmp); err != nil {
		return errorc.New("创建临时软链接失败: "+tmp, err).Execution()
	}
	if err := os.Rename(tmp, link); err != nil {
		_ = os.Remove(tmp)
		return errorc.New("替换软链接失败: "+link, err).Execution()
	}
	return nil
}

func (t *NativeToolkit) CopyContents(ctx context.Context, from, to string) error {
	if err := copy.Copy(from, to, t.options); err != nil {
		return errorc.New(fmt.Sprintf("复制目录失败: %s -> %s", from, to), err).Execution()
	}
	return nil
}

func (t *NativeToolkit) CopyPath(ctx context.Context, from, to string) error {
	if err := copy.Copy(from, to, t.options); err != nil {
		return errorc.New(fmt.Sprintf("复制失败: %s -> %s", from, to), err).Execution()
	}
	return nil
}

func isSymlink(p string) bool {
	fi, err := os.Lstat(p)
	return err == nil && fi.Mode()&os.ModeSymlink != 0
}

func withTrailingSlash(p string) string {
	return strings.TrimRight(p, string(filepath.Separator)) + string(filepath.Separator)
}
