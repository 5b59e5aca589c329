package service

import (
	"context"
	"os"
	"path/filepath"

	errorc "atomicdeploy/pkg/core/err"
	"atomicdeploy/pkg/core/logger"
)

// Migrator 把上一版本中匹配 glob 的文件带到新版本
type Migrator struct {
	toolkit Toolkit
	log     *logger.Log
	err     *errorc.ErrorBuilder
}

func NewMigrator(toolkit Toolkit, log *logger.Log) *Migrator {
	return &Migrator{
		toolkit: toolkit,
		log:     log.WithEntryName("Migrator"),
		err:     errorc.NewErrorBuilder("Migrator"),
	}
}

// Migrate 按声明顺序处理每个 pattern，返回复制的路径数，任一复制失败即返回
func (m *Migrator) Migrate(ctx context.Context, from, to string, patterns []string, dryRun bool) (int, error) {
	if from == "" || len(patterns) == 0 {
		return 0, nil
	}

	log := m.log.WithRun(ctx)
	if dryRun {
		log.Warn("Dry run，跳过迁移")
	}

	migrated := 0
	for _, pattern := range patterns {
		if !dryRun {
			log.WithField("pattern", pattern).Info("开始迁移")
		}

		matches, err := filepath.Glob(filepath.Join(from, pattern))
		if err != nil {
			return migrated, m.err.New("非法的迁移规则: "+pattern, err).ValidWithCtx()
		}

		for _, src := range matches {
			rel, err := filepath.Rel(from, src)
			if err != nil {
				return migrated, m.err.New("计算迁移路径失败: "+src, err).Execution()
			}
			dst := filepath.Join(to, rel)

			if dryRun {
				log.WithFields(map[string]interface{}{"from": src, "to": dst}).Warn("Dry run，跳过迁移")
				continue
			}

			if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
				return migrated, m.err.New("创建迁移目录失败: "+filepath.Dir(dst), err).Execution()
			}
			if err := m.toolkit.CopyPath(ctx, src, dst); err != nil {
				return migrated, err
			}
			migrated++
		}

		if !dryRun {
			log.WithField("pattern", pattern).Info("迁移完成")
		}
	}
	return migrated, nil
}
