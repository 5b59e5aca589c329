package model

import (
	"atomicdeploy/pkg/core/model/common"
)

// AtomicDeployment 部署记录，以 DeploymentPath 作为业务主键
type AtomicDeployment struct {
	common.Model
	CommitHash       string           `gorm:"size:255;index" json:"commitHash" comment:"版本目录名"`
	BuildPath        string           `gorm:"size:512;not null" json:"buildPath" comment:"构建目录"`
	DeploymentPath   string           `gorm:"size:512;not null;index" json:"deploymentPath" comment:"版本目录"`
	DeploymentLink   string           `gorm:"size:512;not null" json:"deploymentLink" comment:"对外软链接"`
	DeploymentStatus DeploymentStatus `gorm:"not null" json:"deploymentStatus" comment:"状态：0 失败 1 执行中 2 成功"`
}

func (AtomicDeployment) TableName() string {
	return "atomic_deployments"
}

// IsTrashed 是否已软删除
func (d *AtomicDeployment) IsTrashed() bool {
	return d.DeletedAt.Valid
}
