package start

import (
	"os"
	"strconv"
	"strings"

	"atomicdeploy/pkg/core/config"
	"atomicdeploy/pkg/core/consts"
	errorc "atomicdeploy/pkg/core/err"
	"atomicdeploy/pkg/core/logger"
	"atomicdeploy/utils"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
)

type Config struct {
	AppName   string                  `yaml:"app-name"`
	Env       string                  `yaml:"env"`
	Log       config.LogConfig        `yaml:"log"`
	Database  config.Database         `yaml:"db"`
	Deploy    config.DeployConfig     `yaml:"deploy"`
	Notifiers []config.NotifierConfig `yaml:"notifiers" validate:"dive"`
}

type Configures struct {
	Config Config
	Logger *logger.Log
}

// DefaultConfig 返回填充了默认值的配置，yaml 中未出现的键保留默认值
func DefaultConfig() Config {
	return Config{
		AppName:  "atomic-deploy",
		Env:      "prod",
		Log:      config.LogConfig{Level: "info"},
		Database: config.Database{Driver: config.DriverSqlite},
		Deploy:   config.DefaultDeployConfig(),
	}
}

// LoadEnvFiles 加载 .env 文件，文件不存在时忽略
func LoadEnvFiles(files ...string) error {
	for _, f := range files {
		if f == "" {
			continue
		}
		if _, err := os.Stat(f); os.IsNotExist(err) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return errorc.New("加载环境变量文件失败: "+f, err).ValidWithCtx()
		}
	}
	return nil
}

// NewConfigures 解析配置文件内容，叠加环境变量后校验
func NewConfigures(file []byte) (*Configures, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(file, &cfg); err != nil {
		return nil, errorc.New("读取配置文件失败", err).ValidWithCtx()
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, err
	}

	if msg, err := utils.Validate(cfg); err != nil {
		return nil, errorc.New("配置校验失败: "+msg, err).ValidWithCtx()
	}

	return &Configures{
		Config: cfg,
		Logger: logger.InitLogger(cfg.Log.Level),
	}, nil
}

// ReadConfigures 从文件读取配置
func ReadConfigures(filename string) (*Configures, error) {
	file, err := os.ReadFile(filename)
	if err != nil {
		return nil, errorc.New("读取配置文件失败: "+filename, err).ValidWithCtx()
	}
	return NewConfigures(file)
}

func applyEnvOverrides(cfg *Config) error {
	str := map[string]*string{
		"LOG_LEVEL":         &cfg.Log.Level,
		"DB_DRIVER":         &cfg.Database.Driver,
		"DB_DSN":            &cfg.Database.Dsn,
		"BUILD_PATH":        &cfg.Deploy.BuildPath,
		"DEPLOYMENTS_PATH":  &cfg.Deploy.DeploymentsPath,
		"DEPLOYMENT_LINK":   &cfg.Deploy.DeploymentLink,
		"DIRECTORY_NAMING":  &cfg.Deploy.DirectoryNaming,
		"TOOLKIT":           &cfg.Deploy.Toolkit,
		"RETENTION_ON_LIVE": &cfg.Deploy.Retention.OnLive,
	}
	for key, target := range str {
		if v, ok := os.LookupEnv(consts.EnvPrefix + key); ok {
			*target = strings.TrimSpace(v)
		}
	}

	if v, ok := os.LookupEnv(consts.EnvPrefix + "MIGRATE"); ok {
		cfg.Deploy.Migrate = nil
		for _, p := range strings.Split(v, ",") {
			if p = strings.TrimSpace(p); p != "" {
				cfg.Deploy.Migrate = append(cfg.Deploy.Migrate, p)
			}
		}
	}

	if v, ok := os.LookupEnv(consts.EnvPrefix + "RETENTION_LIMIT"); ok {
		limit, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return errorc.New("环境变量 "+consts.EnvPrefix+"RETENTION_LIMIT 不是整数", err).ValidWithCtx()
		}
		cfg.Deploy.Retention.Limit = limit
	}
	return nil
}

// EnableDatabase 打开部署记录所在的数据库
func (c *Configures) EnableDatabase() *gorm.DB {
	db, err := config.OpenDatabase(c.Config.Database)
	if err != nil {
		c.Logger.WithField("driver", c.Config.Database.Driver).WithField("err", err).Panic("failed connect database")
	}
	c.Logger.Info("connect database success")
	return db
}
