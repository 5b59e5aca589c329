package dto

import "time"

// DeploymentDTO 部署记录对外 DTO
type DeploymentDTO struct {
	ID               int64      `json:"id"`
	CommitHash       string     `json:"commitHash"`
	BuildPath        string     `json:"buildPath"`
	DeploymentPath   string     `json:"deploymentPath"`
	DeploymentLink   string     `json:"deploymentLink"`
	DeploymentStatus string     `json:"deploymentStatus"`
	Live             bool       `json:"live"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
	DeletedAt        *time.Time `json:"deletedAt,omitempty"`
}

// DeployReq 部署请求
type DeployReq struct {
	Directory string `json:"directory"`
	// Hash 指定时回切到该历史版本
	Hash   string `json:"hash"`
	DryRun bool   `json:"dryRun"`
	Clean  bool   `json:"clean"`
}

// DeployResult 部署结果
type DeployResult struct {
	RunID          string         `json:"runId"`
	Success        bool           `json:"success"`
	NotFound       bool           `json:"notFound"`
	Directory      string         `json:"directory"`
	DeploymentPath string         `json:"deploymentPath"`
	PreviousPath   string         `json:"previousPath"`
	Stage          string         `json:"stage"`
	Error          string         `json:"error,omitempty"`
	Deployment     *DeploymentDTO `json:"deployment,omitempty"`
	Cleaned        *CleanResult   `json:"cleaned,omitempty"`
}

// CleanReq 清理请求，Limit 为 0 时使用配置的保留数量
type CleanReq struct {
	Limit  int  `json:"limit" validate:"gte=0"`
	Hard   bool `json:"hard"`
	DryRun bool `json:"dryRun"`
}

// CleanResult 清理结果
type CleanResult struct {
	Kept          int      `json:"kept"`
	Deleted       []string `json:"deleted"`
	StoppedAtLive bool     `json:"stoppedAtLive"`
}
