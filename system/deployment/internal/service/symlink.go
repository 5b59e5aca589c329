package service

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	errorc "atomicdeploy/pkg/core/err"
	"atomicdeploy/pkg/core/logger"
)

// SymlinkRepairer 修正复制后仍指向构建目录的软链接
type SymlinkRepairer struct {
	toolkit Toolkit
	log     *logger.Log
	err     *errorc.ErrorBuilder
}

func NewSymlinkRepairer(toolkit Toolkit, log *logger.Log) *SymlinkRepairer {
	return &SymlinkRepairer{
		toolkit: toolkit,
		log:     log.WithEntryName("SymlinkRepairer"),
		err:     errorc.NewErrorBuilder("SymlinkRepairer"),
	}
}

// Repair 遍历 deploymentPath，把目标位于 buildPath 下的软链接改为指向 deploymentPath，返回改写数量。
// 改写后的目标不再位于 buildPath 下，重复执行不会再次修改。
func (r *SymlinkRepairer) Repair(ctx context.Context, buildPath, deploymentPath string) (int, error) {
	build := filepath.Clean(buildPath)
	prefix := build + string(filepath.Separator)
	rewritten := 0

	err := filepath.WalkDir(deploymentPath, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.Type()&fs.ModeSymlink == 0 {
			return nil
		}

		target, err := os.Readlink(path)
		if err != nil {
			return err
		}
		if target != build && !strings.HasPrefix(target, prefix) {
			return nil
		}

		newTarget := deploymentPath + strings.TrimPrefix(target, build)
		if newTarget == target {
			return nil
		}
		if err := r.toolkit.Link(ctx, newTarget, path); err != nil {
			return err
		}

		r.log.WithRun(ctx).WithFields(map[string]interface{}{
			"link": path,
			"from": target,
			"to":   newTarget,
		}).Debug("修正软链接")
		rewritten++
		return nil
	})
	if err != nil {
		return rewritten, r.err.New("修正软链接失败", err).Execution()
	}
	return rewritten, nil
}
