// Package api holds the request and response types of the rstile HTTP API
// and the chi routing that binds them to a ServerInterface.
package api

import (
	"time"

	openapi_types "github.com/oapi-codegen/runtime/types"
)

// Defines values for HealthResponseStatus.
const (
	Healthy   HealthResponseStatus = "healthy"
	Unhealthy HealthResponseStatus = "unhealthy"
)

// Defines values for JobKind.
const (
	Clip    JobKind = "clip"
	Convert JobKind = "convert"
	Stitch  JobKind = "stitch"
)

// Defines values for JobState.
const (
	Pending   JobState = "pending"
	Running   JobState = "running"
	Succeeded JobState = "succeeded"
	Failed    JobState = "failed"
	Canceled  JobState = "canceled"
)

// Defines values for ClipRequestPolicy.
const (
	Drop ClipRequestPolicy = "drop"
	Pad  ClipRequestPolicy = "pad"
)

// Defines values for ValidationErrorResponseError.
const (
	VALIDATIONERROR ValidationErrorResponseError = "VALIDATION_ERROR"
)

// HealthResponse defines model for HealthResponse.
type HealthResponse struct {
	Status    HealthResponseStatus `json:"status"`
	Timestamp time.Time            `json:"timestamp"`

	// Uptime Server uptime in seconds
	Uptime  *int    `json:"uptime,omitempty"`
	Version *string `json:"version,omitempty"`

	// Drivers Raster drivers compiled into the server
	Drivers *[]string `json:"drivers,omitempty"`
}

// HealthResponseStatus defines model for HealthResponse.Status.
type HealthResponseStatus string

// ClipRequest cuts one raster into a grid of tiles.
type ClipRequest struct {
	// Input Path of the source raster on the server
	Input string `json:"input"`

	// OutputDir Directory receiving 0000.tiff, 0001.tiff, ...
	OutputDir      string `json:"output_dir"`
	BlockWidth     int    `json:"block_width"`
	BlockHeight    int    `json:"block_height"`
	OverlapPercent int    `json:"overlap_percent"`

	Policy    *ClipRequestPolicy `json:"policy,omitempty"`
	Manifest  *bool              `json:"manifest,omitempty"`
	WorldFile *bool              `json:"world_file,omitempty"`
	Workers   *int               `json:"workers,omitempty"`
}

// ClipRequestPolicy defines model for ClipRequest.Policy.
type ClipRequestPolicy string

// ConvertRequest stretches a directory of rasters with one reference.
type ConvertRequest struct {
	Reference string `json:"reference"`
	InputDir  string `json:"input_dir"`
	OutputDir string `json:"output_dir"`

	// Bands One-based band order, e.g. [3, 2, 1]
	Bands       *[]int   `json:"bands,omitempty"`
	LowPercent  *float64 `json:"low_percent,omitempty"`
	HighPercent *float64 `json:"high_percent,omitempty"`
	WorldFile   *bool    `json:"world_file,omitempty"`
	Workers     *int     `json:"workers,omitempty"`
}

// StitchRequest rebuilds a raster from clipped tiles.
type StitchRequest struct {
	// Manifest Path of the manifest.yaml written by a clip job
	Manifest  string `json:"manifest"`
	Output    string `json:"output"`
	WorldFile *bool  `json:"world_file,omitempty"`
}

// JobAccepted is returned when a job was queued.
type JobAccepted struct {
	JobId openapi_types.UUID `json:"job_id"`
}

// JobKind defines model for Job.Kind.
type JobKind string

// JobState defines model for Job.State.
type JobState string

// Job defines model for Job.
type Job struct {
	Id         openapi_types.UUID `json:"id"`
	Kind       JobKind            `json:"kind"`
	State      JobState           `json:"state"`
	Completed  int                `json:"completed"`
	Total      int                `json:"total"`
	CreatedAt  time.Time          `json:"created_at"`
	FinishedAt *time.Time         `json:"finished_at,omitempty"`
	Error      *string            `json:"error,omitempty"`
	Result     *JobResult         `json:"result,omitempty"`
}

// JobResult summarises a finished job. Clip jobs fill Columns, Rows and
// Files; convert jobs fill Bands, Extremum, Written and Skipped; stitch
// jobs fill Output, Width, Height and Files.
type JobResult struct {
	Output   *string        `json:"output,omitempty"`
	Width    *int           `json:"width,omitempty"`
	Height   *int           `json:"height,omitempty"`
	Columns  *int           `json:"columns,omitempty"`
	Rows     *int           `json:"rows,omitempty"`
	Files    *int           `json:"files,omitempty"`
	Bands    *[]int         `json:"bands,omitempty"`
	Extremum *[]Extremum    `json:"extremum,omitempty"`
	Written  *int           `json:"written,omitempty"`
	Skipped  *[]SkippedFile `json:"skipped,omitempty"`
}

// Extremum defines model for Extremum.
type Extremum struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

// SkippedFile defines model for SkippedFile.
type SkippedFile struct {
	File   string `json:"file"`
	Reason string `json:"reason"`
}

// ErrorResponse defines model for ErrorResponse.
type ErrorResponse struct {
	Details   *map[string]interface{} `json:"details,omitempty"`
	Error     string                  `json:"error"`
	Message   string                  `json:"message"`
	RequestId *string                 `json:"request_id,omitempty"`
}

// ValidationErrorResponse defines model for ValidationErrorResponse.
type ValidationErrorResponse struct {
	Error            ValidationErrorResponseError `json:"error"`
	Message          string                       `json:"message"`
	RequestId        *string                      `json:"request_id,omitempty"`
	ValidationErrors []struct {
		Code    *string `json:"code,omitempty"`
		Field   string  `json:"field"`
		Message string  `json:"message"`
	} `json:"validation_errors"`
}

// ValidationErrorResponseError defines model for ValidationErrorResponse.Error.
type ValidationErrorResponseError string
