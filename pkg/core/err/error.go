package errorc

import (
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type ErrorBuilder struct {
	entryName string
}

func NewErrorBuilder(entryName string) *ErrorBuilder {
	return &ErrorBuilder{entryName: entryName}
}

func (e *ErrorBuilder) New(msg string, err error) *Error {
	out := caller(2)
	out.Msg = msg
	out.Cause = err
	out.Entry = e.entryName
	out.ErrorCode = getErrCode(err)
	return out
}

// New err or msg can nil
func New(msg string, err error) *Error {
	out := caller(2)
	out.Msg = msg
	out.Cause = err
	out.ErrorCode = getErrCode(err)
	return out
}

func (e *Error) WithCode(code *ErrorCode) *Error {
	e.ErrorCode = code
	return e
}

func (e *Error) DB() *Error {
	if IsNotFound(e.Cause) {
		return e.WithCode(ErrorCodeNotFound)
	}
	return e.WithCode(ErrorCodeDB)
}

func (e *Error) ValidWithCtx() *Error { return e.WithCode(ErrorCodeValid) }

func (e *Error) InvalidPath() *Error { return e.WithCode(ErrorCodeInvalidPath) }

func (e *Error) Execution() *Error { return e.WithCode(ErrorCodeExecution) }

func (e *Error) Naming() *Error { return e.WithCode(ErrorCodeNaming) }

func (e *Error) Confirmation() *Error { return e.WithCode(ErrorCodeConfirmation) }

func (e *Error) UnrecoverableRollback() *Error { return e.WithCode(ErrorCodeUnrecoverableRollback) }

func (e *Error) LiveDeployment() *Error { return e.WithCode(ErrorCodeLiveDeployment) }

func (e *Error) Aborted() *Error { return e.WithCode(ErrorCodeAborted) }

func (e *Error) NotFound() *Error { return e.WithCode(ErrorCodeNotFound) }

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// chain 展开错误链，返回各层 *Error 以及链尾的非 *Error 原始错误
func (e *Error) chain() ([]*Error, error) {
	var levels []*Error
	var err error = e
	for err != nil {
		var cur *Error
		if !errors.As(err, &cur) {
			return levels, err
		}
		levels = append(levels, cur)
		err = cur.Cause
	}
	return levels, nil
}

// Error 输出单行错误链: [602: ExecutionFailure] 复制失败: rsync 执行失败: exit status 23
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	levels, origin := e.chain()
	parts := make([]string, 0, len(levels)+1)
	for _, l := range levels {
		if l.Msg != "" {
			parts = append(parts, l.Msg)
		}
	}
	if origin != nil {
		parts = append(parts, origin.Error())
	}
	msg := strings.Join(parts, ": ")
	if e.ErrorCode != nil {
		msg = fmt.Sprintf("[%s] %s", e.ErrorCode, msg)
	}
	return msg
}

// RootCause 返回最内层的错误描述，用于通知内容和命令行输出
func (e *Error) RootCause() string {
	if e == nil {
		return ""
	}
	levels, origin := e.chain()
	root := levels[len(levels)-1]
	msg := root.Msg
	if origin != nil {
		if msg == "" {
			msg = origin.Error()
		} else {
			msg = msg + ": " + origin.Error()
		}
	}
	if root.FileName != "" {
		msg = fmt.Sprintf("%s (%s:%d)", msg, filepath.Base(root.FileName), root.Line)
	}
	return msg
}

// ToLog 以结构化字段记录整条错误链
func (e *Error) ToLog(log *logrus.Entry, msgs ...string) *Error {
	if e == nil || log == nil {
		return e
	}
	levels, origin := e.chain()
	trace := make([]string, 0, len(levels))
	for _, l := range levels {
		code := ""
		if l.ErrorCode != nil {
			code = l.ErrorCode.Name
		}
		trace = append(trace, fmt.Sprintf("%s|%s|%s:%d", code, l.Msg, filepath.Base(l.FileName), l.Line))
	}

	fields := logrus.Fields{
		"error_chain": trace,
		"root_cause":  e.RootCause(),
	}
	if e.ErrorCode != nil {
		fields["error_code"] = e.ErrorCode.Code
	}
	if e.Entry != "" {
		fields["entry"] = e.Entry
	}
	if origin != nil {
		fields["origin"] = origin.Error()
	}

	msg := strings.Join(msgs, " ")
	if msg == "" {
		msg = e.Msg
	}
	log.WithFields(fields).Error(msg)
	return e
}

func caller(skip int) *Error {
	pc, file, line, ok := runtime.Caller(skip)
	if !ok {
		return &Error{FileName: "<unknown>", FuncName: "<unknown>"}
	}
	funcName := "<unknown>"
	if details := runtime.FuncForPC(pc); details != nil {
		funcName = details.Name()
	}
	return &Error{FileName: file, Line: line, FuncName: funcName}
}

var notfounds = []error{gorm.ErrRecordNotFound}

func getErrCode(err error) *ErrorCode {
	if err == nil {
		return ErrorCodeUnknown
	}
	for _, e := range notfounds {
		if errors.Is(err, e) {
			return ErrorCodeNotFound
		}
	}
	return ErrorCodeUnknown
}

// ParseError 取出链上的 *Error，没有则包装原始错误
func ParseError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{Cause: err, ErrorCode: getErrCode(err)}
}

func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	var e *Error
	if errors.As(err, &e) && e.ErrorCode == ErrorCodeNotFound {
		return true
	}
	for _, target := range notfounds {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// Is 判断错误链中是否存在指定错误码
func Is(err error, code *ErrorCode) bool {
	if err == nil || code == nil {
		return false
	}
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}
		if e.ErrorCode == code {
			return true
		}
		err = e.Cause
	}
	return false
}
