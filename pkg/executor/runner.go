package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	errorc "atomicdeploy/pkg/core/err"
	"atomicdeploy/pkg/core/logger"

	"github.com/alessio/shellescape"
)

// ExecutionFailure 命令以非零状态退出
type ExecutionFailure struct {
	Command  string
	ExitCode int
	Stderr   string
}

func (e *ExecutionFailure) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("command %q exited with code %d: %s", e.Command, e.ExitCode, e.Stderr)
	}
	return fmt.Sprintf("command %q exited with code %d", e.Command, e.ExitCode)
}

// Runner 通过 sh -c 执行单条命令
type Runner struct {
	dir     string
	timeout time.Duration
	log     *logger.Log
	err     *errorc.ErrorBuilder
}

// NewRunner 创建命令执行器，timeout 为 0 时不限制执行时间
func NewRunner(log *logger.Log, timeout time.Duration) *Runner {
	return &Runner{
		timeout: timeout,
		log:     log.WithEntryName("Runner"),
		err:     errorc.NewErrorBuilder("Runner"),
	}
}

// In 返回一个在 dir 目录下执行命令的副本
func (r *Runner) In(dir string) *Runner {
	cp := *r
	cp.dir = dir
	return &cp
}

// Render 将每个参数单独转义后代入模板，模板使用 %s 占位
func Render(template string, args ...string) string {
	quoted := make([]interface{}, len(args))
	for i, a := range args {
		quoted[i] = shellescape.Quote(a)
	}
	return fmt.Sprintf(template, quoted...)
}

// Run 执行命令并返回去除首尾空白的标准输出
func (r *Runner) Run(ctx context.Context, template string, args ...string) (string, error) {
	command := Render(template, args...)

	cmdCtx := ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		cmdCtx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(cmdCtx, "sh", "-c", command)
	cmd.Dir = r.dir
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	output := strings.TrimSpace(stdout.String())

	r.log.WithFields(map[string]interface{}{
		"command": command,
		"output":  output,
	}).Debug("执行命令")

	if err != nil {
		failure := &ExecutionFailure{
			Command:  command,
			ExitCode: -1,
			Stderr:   strings.TrimSpace(stderr.String()),
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			failure.ExitCode = exitErr.ExitCode()
		}
		if cmdCtx.Err() == context.DeadlineExceeded {
			return output, r.err.New("命令执行超时", failure).Execution()
		}
		return output, r.err.New(fmt.Sprintf("命令执行失败: %s", command), failure).Execution()
	}

	return output, nil
}

// ReadLink 解析路径的最终目标
func (r *Runner) ReadLink(ctx context.Context, path string) (string, error) {
	return r.Run(ctx, "readlink -f %s", path)
}

// Link 先在同目录创建临时链接，再用 rename 覆盖 link，链接不会出现缺失窗口
func (r *Runner) Link(ctx context.Context, target, link string) error {
	tmp := fmt.Sprintf("%s.tmp-%d", link, time.Now().UnixNano())
	_, err := r.Run(ctx, "ln -sfn %s %s && mv -fT %s %s", target, tmp, tmp, link)
	return err
}

// Sync 归档方式复制，保留软链接，不压缩，不删除目标端多余文件
func (r *Runner) Sync(ctx context.Context, from, to string) error {
	_, err := r.Run(ctx, "rsync -aW --no-compress %s %s", from, to)
	return err
}

// GitRevision 返回当前目录 HEAD 的短 hash
func (r *Runner) GitRevision(ctx context.Context) (string, error) {
	return r.Run(ctx, "git log --pretty=%%h -n1 HEAD")
}

// ExitCode 从错误链中取出命令退出码，不是命令失败时返回 false
func ExitCode(err error) (int, bool) {
	var failure *ExecutionFailure
	if errors.As(err, &failure) {
		return failure.ExitCode, true
	}
	return 0, false
}
