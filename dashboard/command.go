// Package dashboard routes dashboard commands (a page plus an action) to the
// code that answers them and wraps the outcome in a Panel the client renders.
package dashboard

import (
	"droughtdash/charts"
	"droughtdash/dataset"
	"droughtdash/predict"
)

// Page is a dashboard page.
type Page string

const (
	PageMap     Page = "map"
	PageHeatmap Page = "heatmap"
	PageModel   Page = "model"
)

// Pages lists the pages in navigation order.
func Pages() []Page {
	return []Page{PageMap, PageHeatmap, PageModel}
}

// Action is what a command asks of its page.
type Action string

const (
	ActionRender  Action = "render"
	ActionPredict Action = "predict"
)

// Command is one user interaction.
type Command struct {
	Page    Page   `json:"page"`
	Action  Action `json:"action"`
	GeoCode string `json:"geo_code,omitempty"`
	Year    int    `json:"year,omitempty"`
	Column  string `json:"column,omitempty"`
	Classes int    `json:"classes,omitempty"`
	Locale  string `json:"locale,omitempty"`
}

// Status tells the client how to present a Panel.
type Status string

const (
	StatusOK      Status = "ok"
	StatusWarning Status = "warning"
	StatusError   Status = "error"
	StatusInvalid Status = "invalid"
)

// Panel is the answer to a Command.
type Panel struct {
	Page    Page   `json:"page"`
	Action  Action `json:"action"`
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// MapData is the payload of the map page.
type MapData struct {
	Year   int            `json:"year"`
	Column dataset.Column `json:"column"`
	*charts.Classification
}

// FormData is the payload of the model page before any prediction: the
// defaults of the code field and the year slider.
type FormData struct {
	GeoCode string `json:"geo_code"`
	Year    int    `json:"year"`
	MinYear int    `json:"min_year"`
	MaxYear int    `json:"max_year"`
}

// PredictionData is the payload of the model page.
type PredictionData struct {
	*predict.View
	Summary     string   `json:"summary"`
	ClassLabels []string `json:"class_labels"`
	Notice      string   `json:"notice,omitempty"`
}
