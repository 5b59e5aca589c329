package system

import (
	"os"
	"os/signal"
	"sync"
	"syscall"
)

var (
	closes = map[int]func(){}
	nextID = 0
	mu     = sync.Mutex{}
)

// RegisterClose 注册退出时执行的函数，返回值用于取消注册
func RegisterClose(f func()) func() {
	mu.Lock()
	defer mu.Unlock()

	id := nextID
	nextID++
	closes[id] = f

	return func() {
		mu.Lock()
		defer mu.Unlock()
		delete(closes, id)
	}
}

// RunCloses 按注册顺序执行所有关闭函数
func RunCloses() {
	mu.Lock()
	fs := make([]func(), 0, len(closes))
	for i := 0; i < nextID; i++ {
		if f, ok := closes[i]; ok {
			fs = append(fs, f)
		}
	}
	mu.Unlock()

	for _, f := range fs {
		f()
	}
}

// Listen 监听退出信号，收到信号后执行关闭函数并以 exitCode 退出进程
func Listen(exitCode int) (stop func()) {
	ch := make(chan os.Signal, 1)
	done := make(chan struct{})
	signal.Notify(ch, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		select {
		case <-ch:
			RunCloses()
			os.Exit(exitCode)
		case <-done:
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			signal.Stop(ch)
			close(done)
		})
	}
}
