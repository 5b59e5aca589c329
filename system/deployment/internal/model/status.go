package model

// DeploymentStatus 部署状态，数值与历史数据保持一致
type DeploymentStatus int

const (
	// DeploymentStatusFailed 失败
	DeploymentStatusFailed DeploymentStatus = 0
	// DeploymentStatusRunning 执行中，正常结束的部署不会停留在该状态
	DeploymentStatusRunning DeploymentStatus = 1
	// DeploymentStatusSuccess 成功
	DeploymentStatusSuccess DeploymentStatus = 2
)

var deploymentStatusNames = map[DeploymentStatus]string{
	DeploymentStatusFailed:  "FAILED",
	DeploymentStatusRunning: "RUNNING",
	DeploymentStatusSuccess: "SUCCESS",
}

func (s DeploymentStatus) String() string {
	if name, ok := deploymentStatusNames[s]; ok {
		return name
	}
	return "UNKNOWN"
}

// IsTerminal SUCCESS 和 FAILED 为终态
func (s DeploymentStatus) IsTerminal() bool {
	return s == DeploymentStatusSuccess || s == DeploymentStatusFailed
}

// ParseDeploymentStatus 根据名称解析状态
func ParseDeploymentStatus(name string) (DeploymentStatus, bool) {
	for s, n := range deploymentStatusNames {
		if n == name {
			return s, true
		}
	}
	return 0, false
}
