package app

import (
	"context"
	"io"
	"strconv"

	"atomicdeploy/system/deployment/internal/model"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// ListItem 列表中的一条记录及其是否在线
type ListItem struct {
	Record *model.AtomicDeployment
	Live   bool
}

// List 查询部署记录，标记当前软链接指向的版本
func (a *App) List(ctx context.Context, withTrashed bool) ([]*ListItem, error) {
	records, err := a.DeploymentSvc.List(ctx, withTrashed)
	if err != nil {
		return nil, err
	}

	items := make([]*ListItem, 0, len(records))
	for _, record := range records {
		live := false
		if !record.IsTrashed() {
			if live, err = a.DeploymentSvc.IsCurrentlyDeployed(ctx, record); err != nil {
				return nil, err
			}
		}
		items = append(items, &ListItem{Record: record, Live: live})
	}
	return items, nil
}

var cellStyle = lipgloss.NewStyle().Padding(0, 1)

// RenderList 以表格形式输出部署记录
func RenderList(w io.Writer, items []*ListItem) error {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		r := item.Record
		live := ""
		if item.Live {
			live = "*"
		}
		status := r.DeploymentStatus.String()
		if r.IsTrashed() {
			status += " (deleted)"
		}
		rows = append(rows, []string{
			strconv.FormatInt(r.ID, 10),
			r.CommitHash,
			r.DeploymentPath,
			r.DeploymentLink,
			status,
			r.CreatedAt.Format("2006-01-02 15:04:05"),
			live,
		})
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		StyleFunc(func(row, col int) lipgloss.Style { return cellStyle }).
		Headers("ID", "Commit Hash", "Path", "SymLink", "Status", "Created", "Live").
		Rows(rows...)

	_, err := io.WriteString(w, t.String()+"\n")
	return err
}
