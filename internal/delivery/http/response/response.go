package response

import (
	"time"

	"github.com/user/linkchecker-service/internal/entity"
)

// GenerateResponse acknowledges a queued generation job.
type GenerateResponse struct {
	Status string `json:"status"`
	JobID  string `json:"jobId"`
}

// StatusResponse is returned by fix-link. It mirrors entity.Status.
type StatusResponse struct {
	StatusCode    int    `json:"statusCode"`
	StatusMessage string `json:"statusMessage"`
}

// GridRow is one report row as the UI grid shows it.
type GridRow struct {
	Link          string `json:"link"`
	Type          string `json:"type"`
	StatusCode    int    `json:"statusCode"`
	StatusMessage string `json:"statusMessage"`
	Page          string `json:"page"`
	PagePath      string `json:"pagePath"`
	ComponentName string `json:"componentName"`
	ComponentType string `json:"componentType"`
	ResourcePath  string `json:"resourcePath"`
	PropertyName  string `json:"propertyName"`
}

// ReportPage is a page of report rows.
type ReportPage struct {
	Items []GridRow `json:"items"`
	Total int       `json:"total"`
	Page  int       `json:"page"`
	Size  int       `json:"size"`
}

// NewGridRow converts a report row.
func NewGridRow(r entity.GridResource) GridRow {
	return GridRow{
		Link:          r.Link.Href,
		Type:          r.Link.TypeName(),
		StatusCode:    r.Link.Status.Code,
		StatusMessage: r.Link.Status.Message,
		Page:          r.PageName(),
		PagePath:      r.PagePath(),
		ComponentName: r.ComponentName(),
		ComponentType: r.ResourceType,
		ResourcePath:  r.ResourcePath,
		PropertyName:  r.PropertyName,
	}
}

type UpdatedItemsResponse struct {
	UpdatedItemsCount int `json:"updatedItemsCount"`
}

type ResourceExistsResponse struct {
	ResourceExists bool `json:"resourceExists"`
}

type PendingResponse struct {
	Pending bool `json:"pending"`
}

// JobResponse reports a generation job.
type JobResponse struct {
	ID         string     `json:"id"`
	State      string     `json:"state"`
	Message    string     `json:"message,omitempty"`
	EnqueuedAt time.Time  `json:"enqueuedAt"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`
}

func NewJobResponse(j *entity.JobResult) JobResponse {
	return JobResponse{
		ID:         j.ID,
		State:      string(j.State),
		Message:    j.Message,
		EnqueuedAt: j.EnqueuedAt,
		FinishedAt: j.FinishedAt,
	}
}

// HealthResponse follows the shape of the health endpoint: overall status plus
// one entry per dependency.
type HealthResponse struct {
	Status       string            `json:"status"`
	Dependencies map[string]string `json:"dependencies"`
}
