package service

import (
	"context"
	"strconv"
	"strings"
	"time"

	"atomicdeploy/pkg/core/config"
	errorc "atomicdeploy/pkg/core/err"

	"github.com/google/uuid"
)

// DatetimeLayout datetime 命名使用的格式，字典序即时间序
const DatetimeLayout = "2006-01-02_15-04-05"

// RevisionFunc 获取 dir 下源码仓库当前 HEAD 的短 hash
type RevisionFunc func(ctx context.Context, dir string) (string, error)

// Naming 版本目录命名策略
type Naming struct {
	strategy string
	revision RevisionFunc
	now      func() time.Time
	err      *errorc.ErrorBuilder
}

func NewNaming(strategy string, revision RevisionFunc) *Naming {
	if strategy == "" {
		strategy = config.NamingGit
	}
	return &Naming{
		strategy: strategy,
		revision: revision,
		now:      time.Now,
		err:      errorc.NewErrorBuilder("Naming"),
	}
}

// ResolveDirectoryName 指定了名称时直接使用，否则按策略生成
func (n *Naming) ResolveDirectoryName(ctx context.Context, explicit, buildPath string) (string, error) {
	if name := strings.TrimSpace(explicit); name != "" {
		return name, nil
	}

	switch n.strategy {
	case config.NamingDatetime:
		return n.now().Format(DatetimeLayout), nil
	case config.NamingRand:
		token := strings.ReplaceAll(uuid.NewString(), "-", "")[:5]
		return token + strconv.FormatInt(n.now().Unix(), 10), nil
	case config.NamingGit:
		if n.revision == nil {
			return "", n.err.New("未配置版本号来源", nil).Naming()
		}
		hash, err := n.revision(ctx, buildPath)
		if err != nil {
			return "", n.err.New("获取当前提交失败", err).Naming()
		}
		if hash = strings.TrimSpace(hash); hash == "" {
			return "", n.err.New("当前提交为空", nil).Naming()
		}
		return hash, nil
	default:
		return "", n.err.New("未知的目录命名方式: "+n.strategy, nil).Naming()
	}
}
