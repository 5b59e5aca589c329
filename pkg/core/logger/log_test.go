package logger

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLog(t *testing.T) {
	t.Run("附加字段", func(t *testing.T) {
		buf := &bytes.Buffer{}
		l := New("info", buf)
		l.WithEntryName("Orchestrator").WithErr(errors.New("boom")).Info("部署失败")

		out := buf.String()
		assert.Contains(t, out, "EntryName=Orchestrator")
		assert.Contains(t, out, "Err=boom")
	})

	t.Run("WithFields 接受结构体", func(t *testing.T) {
		buf := &bytes.Buffer{}
		l := New("info", buf)
		l.WithFields(struct {
			Path string `json:"path"`
		}{Path: "/srv/app"}).Info("ok")
		assert.Contains(t, buf.String(), "path=/srv/app")
	})

	t.Run("级别过滤", func(t *testing.T) {
		buf := &bytes.Buffer{}
		l := New("warn", buf)
		l.Info("hidden")
		l.Warn("shown")
		assert.NotContains(t, buf.String(), "hidden")
		assert.Contains(t, buf.String(), "shown")
	})

	t.Run("RunId 在同一个 context 中保持不变", func(t *testing.T) {
		ctx, runID := ContextWithRun(context.Background())
		require.NotEmpty(t, runID)
		_, again := ContextWithRun(ctx)
		assert.Equal(t, runID, again)

		buf := &bytes.Buffer{}
		New("info", buf).WithRun(ctx).Info("run")
		assert.Contains(t, buf.String(), "RunId="+runID)

		buf.Reset()
		New("info", buf).WithRun(context.Background()).Info("no run")
		assert.NotContains(t, buf.String(), "RunId")
	})
}
