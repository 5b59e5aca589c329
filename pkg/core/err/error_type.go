package errorc

import "fmt"

type Error struct {
	*ErrorCode
	Msg      string
	Cause    error
	Entry    string `json:"-"`
	FileName string `json:"-"`
	Line     int    `json:"-"`
	FuncName string `json:"-"`
}

type ErrorCode struct {
	Code int
	Name string
}

func (c *ErrorCode) String() string {
	return fmt.Sprintf("%d: %s", c.Code, c.Name)
}

var (
	ErrorCodeUnknown  *ErrorCode = &ErrorCode{500, "Unknown"}
	ErrorCodeDB       *ErrorCode = &ErrorCode{501, "DB"}
	ErrorCodeValid    *ErrorCode = &ErrorCode{400, "ValidWithCtx"}
	ErrorCodeNotFound *ErrorCode = &ErrorCode{404, "NotFound"}

	// 部署相关错误码
	ErrorCodeInvalidPath           *ErrorCode = &ErrorCode{601, "InvalidPath"}
	ErrorCodeExecution             *ErrorCode = &ErrorCode{602, "ExecutionFailure"}
	ErrorCodeNaming                *ErrorCode = &ErrorCode{603, "NamingFailure"}
	ErrorCodeConfirmation          *ErrorCode = &ErrorCode{604, "ConfirmationMismatch"}
	ErrorCodeUnrecoverableRollback *ErrorCode = &ErrorCode{605, "UnrecoverableRollback"}
	ErrorCodeLiveDeployment        *ErrorCode = &ErrorCode{606, "LiveDeployment"}
	// 部署被信号或外部调用中断
	ErrorCodeAborted *ErrorCode = &ErrorCode{607, "Aborted"}
)
