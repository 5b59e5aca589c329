package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"atomicdeploy/pkg/core/start"
	"atomicdeploy/pkg/core/system"
	"atomicdeploy/pkg/executor"
	"atomicdeploy/pkg/notifier"
	"atomicdeploy/system/deployment"
	"atomicdeploy/system/deployment/api/dto"

	json "github.com/json-iterator/go"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const usage = `用法: atomic-deploy <command> [flags]

命令:
  deploy   部署构建目录，或使用 --hash 回切到历史版本
  list     列出部署记录
  clean    按保留数量清理历史版本
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cmd, args := os.Args[1], os.Args[2:]
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	configFile := fs.String("config", "atomic-deploy.yaml", "配置文件路径")
	envFile := fs.String("env-file", ".env", "环境变量文件，不存在时忽略")
	asJSON := fs.Bool("json", false, "以 JSON 输出结果")

	var run func(ctx context.Context, m *deployment.Module) (int, error)
	switch cmd {
	case "deploy":
		req := &dto.DeployReq{}
		fs.StringVar(&req.Directory, "directory", "", "指定版本目录名，默认按 directory-naming 生成")
		fs.StringVar(&req.Hash, "hash", "", "回切到指定的历史版本")
		fs.BoolVar(&req.DryRun, "dry-run", false, "只输出将要执行的操作")
		fs.BoolVar(&req.Clean, "clean", false, "部署成功后按保留数量清理")
		run = func(ctx context.Context, m *deployment.Module) (int, error) {
			res, err := m.Client.Deploy(ctx, req)
			if err != nil {
				return 1, err
			}
			if *asJSON {
				return exitCode(res.Success || res.NotFound), printJSON(res)
			}
			switch {
			case res.NotFound:
				fmt.Printf("Build not found for hash %s\n", req.Hash)
			case res.Success:
				fmt.Printf("部署成功: %s -> %s\n", res.Directory, res.DeploymentPath)
			default:
				fmt.Printf("部署失败 (%s): %s\n", res.Stage, res.Error)
			}
			return exitCode(res.Success || res.NotFound), nil
		}
	case "list":
		withTrashed := fs.Bool("with-trashed", false, "包含已删除的记录")
		run = func(ctx context.Context, m *deployment.Module) (int, error) {
			if *asJSON {
				list, err := m.Client.List(ctx, *withTrashed)
				if err != nil {
					return 1, err
				}
				return 0, printJSON(list)
			}
			if err := m.Client.RenderList(ctx, os.Stdout, *withTrashed); err != nil {
				return 1, err
			}
			return 0, nil
		}
	case "clean":
		req := &dto.CleanReq{}
		fs.IntVar(&req.Limit, "limit", 0, "保留的成功部署数量，默认使用配置")
		fs.BoolVar(&req.Hard, "hard", false, "物理删除记录")
		fs.BoolVar(&req.DryRun, "dry-run", false, "只输出将要删除的版本")
		run = func(ctx context.Context, m *deployment.Module) (int, error) {
			res, err := m.Client.Clean(ctx, req)
			if err != nil {
				return 1, err
			}
			if *asJSON {
				return 0, printJSON(res)
			}
			fmt.Printf("保留 %d 个版本，删除 %v\n", res.Kept, res.Deleted)
			return 0, nil
		}
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	_ = fs.Parse(args)

	if err := start.LoadEnvFiles(*envFile); err != nil {
		panic(fmt.Sprintf("加载环境变量失败,因为：%v", err))
	}
	configures, err := start.ReadConfigures(*configFile)
	if err != nil {
		panic(fmt.Sprintf("读取配置文件失败,因为：%v", err))
	}
	log := configures.Logger

	db := configures.EnableDatabase()
	if err := deployment.AutoMigrate(db, log); err != nil {
		log.Panic(fmt.Sprintf("数据库迁移失败: %v", err))
	}

	zapLogger, err := createZapLogger(configures.Config.Env)
	if err != nil {
		log.Panic(fmt.Sprintf("创建 zap logger 失败: %v", err))
	}

	bus := notifier.NewBus(log)
	if err := notifier.AttachWebhooks(bus, configures.Config.Notifiers, zapLogger); err != nil {
		log.Panic(fmt.Sprintf("初始化通知失败: %v", err))
	}

	runner := executor.NewRunner(log, 30*time.Minute)
	m := deployment.NewModule(db, configures.Config.Deploy, bus, runner, log)

	// 收到中断信号时回滚正在进行的部署
	stop := system.Listen(130)
	code, err := run(context.Background(), m)
	stop()
	if err != nil {
		log.WithErr(err).Error("执行失败")
		fmt.Fprintln(os.Stderr, err)
	}
	_ = zapLogger.Sync()
	os.Exit(code)
}

func exitCode(ok bool) int {
	if ok {
		return 0
	}
	return 1
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// createZapLogger 创建 zap logger 用于 webhook 通知
func createZapLogger(env string) (*zap.Logger, error) {
	var config zap.Config

	if env == "prod" {
		config = zap.NewProductionConfig()
		config.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	} else {
		config = zap.NewDevelopmentConfig()
		config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	config.EncoderConfig.TimeKey = "time"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return config.Build()
}
