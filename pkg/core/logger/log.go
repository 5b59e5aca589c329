package logger

import (
	"context"
	"io"
	"sync"

	"atomicdeploy/pkg/core/consts"

	"github.com/google/uuid"
	json "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
)

type Log struct {
	*logrus.Entry
}

var (
	log *Log
	mu  sync.Mutex
)

func newLogrus(level string) *logrus.Logger {
	logger := logrus.New()

	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	logLevel := logrus.InfoLevel
	switch level {
	case "debug":
		logLevel = logrus.DebugLevel
	case "warn":
		logLevel = logrus.WarnLevel
	case "error":
		logLevel = logrus.ErrorLevel
	case "info":
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)
	return logger
}

// InitLogger 初始化根日志器，只应由入口调用一次，之后通过构造函数注入到各组件
func InitLogger(level string) *Log {
	mu.Lock()
	defer mu.Unlock()

	log = &Log{Entry: logrus.NewEntry(newLogrus(level))}

	return log
}

// New 创建一个独立的日志器，输出到指定 writer（测试中用于捕获输出）
func New(level string, out io.Writer) *Log {
	logger := newLogrus(level)
	if out != nil {
		logger.SetOutput(out)
	}
	return &Log{Entry: logrus.NewEntry(logger)}
}

func GetLogger() *Log {
	mu.Lock()
	defer mu.Unlock()
	if log != nil {
		return log
	}

	return &Log{Entry: logrus.NewEntry(newLogrus("debug"))}
}

func (l *Log) SetOutput(out io.Writer) {
	l.Entry.Logger.SetOutput(out)
}

func (l *Log) WithField(key string, value interface{}) *Log {
	return &Log{l.Entry.WithField(key, value)}
}

func (l *Log) GetLogger() *logrus.Entry {
	return l.Entry
}

func (l *Log) WithFields(arg interface{}) *Log {
	var jsonMap map[string]interface{}
	bytes, err := json.Marshal(arg)
	if err != nil {
		return l.WithField("arg", arg)
	}
	err = json.Unmarshal(bytes, &jsonMap)
	if err != nil {
		return l.WithField("arg", arg)
	}

	return &Log{l.Entry.WithFields(jsonMap)}
}

func (l *Log) WithEntryName(entryName string) *Log {
	return l.WithField("EntryName", entryName)
}

func (l *Log) WithErr(err error) *Log {
	if err == nil {
		return l
	}
	return l.WithField("Err", err.Error())
}

// WithRun 附加本次部署的 RunId，context 中没有时不附加
func (l *Log) WithRun(ctx context.Context) *Log {
	if ctx == nil {
		return l
	}
	if runID, ok := ctx.Value(consts.RunKey).(string); ok && runID != "" {
		return l.WithField("RunId", runID)
	}
	return l
}

// ContextWithRun 生成新的 RunId 并写入 context
func ContextWithRun(ctx context.Context) (context.Context, string) {
	if runID, ok := ctx.Value(consts.RunKey).(string); ok && runID != "" {
		return ctx, runID
	}
	runID := uuid.NewString()
	return context.WithValue(ctx, consts.RunKey, runID), runID
}
