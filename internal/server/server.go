package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	openapi_types "github.com/oapi-codegen/runtime/types"

	"github.com/kiesman99/rstile/internal/api"
	"github.com/kiesman99/rstile/internal/exporter"
	"github.com/kiesman99/rstile/internal/normalize"
	"github.com/kiesman99/rstile/internal/raster"
	"github.com/kiesman99/rstile/internal/stitch"
	"github.com/kiesman99/rstile/internal/stretch"
	"github.com/kiesman99/rstile/pkg/tile"
)

// Server implements the ServerInterface from the api package
type Server struct {
	startTime time.Time
	version   string
	driver    raster.Driver
	root      string
	jobs      *jobStore
}

// NewServer creates a new server instance reading and writing rasters
// with driver. Paths in requests are resolved against root and may not
// leave it.
func NewServer(version string, driver raster.Driver, root string) (*Server, error) {
	root, err := resolveRoot(root)
	if err != nil {
		return nil, err
	}
	return &Server{
		startTime: time.Now(),
		version:   version,
		driver:    driver,
		root:      root,
		jobs:      newJobStore(),
	}, nil
}

// Root is the directory request paths are confined to
func (s *Server) Root() string {
	return s.root
}

// Close cancels running jobs and waits for them to stop
func (s *Server) Close() {
	s.jobs.close()
}

// GetHealth implements the health check endpoint
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	uptime := int(time.Since(s.startTime).Seconds())
	drivers := raster.Drivers()

	response := api.HealthResponse{
		Status:    api.Healthy,
		Timestamp: time.Now(),
		Uptime:    &uptime,
		Version:   &s.version,
		Drivers:   &drivers,
	}

	s.writeJSON(w, http.StatusOK, response)
}

// CreateClipJob validates a clip request and runs it in the background
func (s *Server) CreateClipJob(w http.ResponseWriter, r *http.Request) {
	requestID := generateRequestID()

	var req api.ClipRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, "INVALID_JSON",
			"Invalid JSON in request body", &requestID, nil)
		return
	}

	spec, field, err := s.validateClipRequest(&req)
	if err != nil {
		s.writeValidationErrorResponse(w, field, err.Error(), &requestID)
		return
	}

	opts := exporter.Options{
		Manifest:  req.Manifest != nil && *req.Manifest,
		WorldFile: req.WorldFile != nil && *req.WorldFile,
	}
	if req.Workers != nil {
		opts.Workers = *req.Workers
	}

	j := s.jobs.start(api.Clip, func(ctx context.Context, j *job) (*api.JobResult, error) {
		src, err := s.driver.Open(req.Input)
		if err != nil {
			return nil, err
		}
		defer src.Close()

		opts.Progress = j
		result, err := exporter.New(s.driver, opts).Export(ctx, src, spec, req.OutputDir)
		if err != nil {
			return nil, err
		}

		files := result.Count()
		return &api.JobResult{Columns: &result.Columns, Rows: &result.Rows, Files: &files}, nil
	})

	log.Printf("[%s] clip job %s: %s -> %s", requestID, j.id, req.Input, req.OutputDir)
	s.writeAccepted(w, r, j, requestID)
}

// validateClipRequest returns the grid of a clip request, or the field
// that is wrong
func (s *Server) validateClipRequest(req *api.ClipRequest) (tile.GridSpec, string, error) {
	var err error
	if req.Input, err = s.resolvePath("input", req.Input); err != nil {
		return tile.GridSpec{}, "input", err
	}
	if req.OutputDir, err = s.resolvePath("output_dir", req.OutputDir); err != nil {
		return tile.GridSpec{}, "output_dir", err
	}
	if req.Workers != nil && *req.Workers < 0 {
		return tile.GridSpec{}, "workers", fmt.Errorf("workers must not be negative")
	}

	spec := tile.GridSpec{
		BlockWidth:     req.BlockWidth,
		BlockHeight:    req.BlockHeight,
		OverlapPercent: req.OverlapPercent,
	}
	if req.Policy != nil {
		policy, err := tile.ParsePolicy(string(*req.Policy))
		if err != nil {
			return spec, "policy", err
		}
		spec.Policy = policy
	}
	if _, _, err := spec.Stride(); err != nil {
		field := "block_width"
		switch {
		case req.BlockWidth > 0 && req.BlockHeight <= 0:
			field = "block_height"
		case req.BlockWidth > 0 && req.BlockHeight > 0:
			field = "overlap_percent"
		}
		return spec, field, err
	}

	return spec, "", nil
}

// CreateConvertJob validates a convert request and runs it in the background
func (s *Server) CreateConvertJob(w http.ResponseWriter, r *http.Request) {
	requestID := generateRequestID()

	var req api.ConvertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, "INVALID_JSON",
			"Invalid JSON in request body", &requestID, nil)
		return
	}

	opts, field, err := s.convertToNormalizeOptions(&req)
	if err != nil {
		s.writeValidationErrorResponse(w, field, err.Error(), &requestID)
		return
	}

	j := s.jobs.start(api.Convert, func(ctx context.Context, j *job) (*api.JobResult, error) {
		opts.Progress = j
		result, err := normalize.New(s.driver, opts).Normalize(ctx, req.Reference, req.InputDir, req.OutputDir)
		if err != nil {
			return nil, err
		}
		return convertResult(result), nil
	})

	log.Printf("[%s] convert job %s: %s -> %s", requestID, j.id, req.InputDir, req.OutputDir)
	s.writeAccepted(w, r, j, requestID)
}

// convertToNormalizeOptions converts a convert request to normalizer options
func (s *Server) convertToNormalizeOptions(req *api.ConvertRequest) (normalize.Options, string, error) {
	var opts normalize.Options

	var err error
	if req.Reference, err = s.resolvePath("reference", req.Reference); err != nil {
		return opts, "reference", err
	}
	if req.InputDir, err = s.resolvePath("input_dir", req.InputDir); err != nil {
		return opts, "input_dir", err
	}
	if req.OutputDir, err = s.resolvePath("output_dir", req.OutputDir); err != nil {
		return opts, "output_dir", err
	}

	if req.Bands != nil {
		if len(*req.Bands) == 0 {
			return opts, "bands", fmt.Errorf("bands must not be empty")
		}
		for _, b := range *req.Bands {
			if b < 1 {
				return opts, "bands", fmt.Errorf("band numbers start at 1, got %d", b)
			}
			opts.Bands = append(opts.Bands, b-1)
		}
	}

	opts.WorldFile = req.WorldFile != nil && *req.WorldFile
	opts.Stretch = stretch.DefaultSpec
	if req.LowPercent != nil {
		opts.Stretch.LowPercent = *req.LowPercent
	}
	if req.HighPercent != nil {
		opts.Stretch.HighPercent = *req.HighPercent
	}
	if err := opts.Stretch.Validate(); err != nil {
		return opts, "low_percent", err
	}

	if req.Workers != nil {
		if *req.Workers < 0 {
			return opts, "workers", fmt.Errorf("workers must not be negative")
		}
		opts.Workers = *req.Workers
	}

	return opts, "", nil
}

func convertResult(result *normalize.Result) *api.JobResult {
	bands := make([]int, len(result.Bands))
	for i, b := range result.Bands {
		bands[i] = b + 1
	}
	extremum := make([]api.Extremum, len(result.Extremum))
	for i, e := range result.Extremum {
		extremum[i] = api.Extremum{Low: e.Low, High: e.High}
	}
	skipped := make([]api.SkippedFile, len(result.Skipped))
	for i, sk := range result.Skipped {
		skipped[i] = api.SkippedFile{File: sk.File, Reason: sk.Err.Error()}
	}
	written := len(result.Written)

	return &api.JobResult{
		Bands:    &bands,
		Extremum: &extremum,
		Written:  &written,
		Skipped:  &skipped,
	}
}

// CreateStitchJob validates a stitch request and runs it in the background
func (s *Server) CreateStitchJob(w http.ResponseWriter, r *http.Request) {
	requestID := generateRequestID()

	var req api.StitchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, "INVALID_JSON",
			"Invalid JSON in request body", &requestID, nil)
		return
	}
	var err error
	if req.Manifest, err = s.resolvePath("manifest", req.Manifest); err != nil {
		s.writeValidationErrorResponse(w, "manifest", err.Error(), &requestID)
		return
	}
	if req.Output, err = s.resolvePath("output", req.Output); err != nil {
		s.writeValidationErrorResponse(w, "output", err.Error(), &requestID)
		return
	}

	opts := stitch.Options{WorldFile: req.WorldFile != nil && *req.WorldFile}
	j := s.jobs.start(api.Stitch, func(ctx context.Context, j *job) (*api.JobResult, error) {
		opts.Progress = j
		result, err := stitch.New(s.driver, opts).Stitch(ctx, req.Manifest, req.Output)
		if err != nil {
			return nil, err
		}
		return &api.JobResult{
			Output: &result.Output,
			Width:  &result.Width,
			Height: &result.Height,
			Files:  &result.Tiles,
		}, nil
	})

	log.Printf("[%s] stitch job %s: %s -> %s", requestID, j.id, req.Manifest, req.Output)
	s.writeAccepted(w, r, j, requestID)
}

// GetJob returns the state of a job
func (s *Server) GetJob(w http.ResponseWriter, r *http.Request, jobId openapi_types.UUID) {
	j, ok := s.jobs.get(jobId)
	if !ok {
		s.writeErrorResponse(w, http.StatusNotFound, "JOB_NOT_FOUND",
			fmt.Sprintf("No job with id %s", jobId), nil, nil)
		return
	}
	s.writeJSON(w, http.StatusOK, j.snapshot())
}

// CancelJob stops a running job. Tiles or files already written stay on disk.
func (s *Server) CancelJob(w http.ResponseWriter, r *http.Request, jobId openapi_types.UUID) {
	j, ok := s.jobs.get(jobId)
	if !ok {
		s.writeErrorResponse(w, http.StatusNotFound, "JOB_NOT_FOUND",
			fmt.Sprintf("No job with id %s", jobId), nil, nil)
		return
	}
	if j.finished() {
		s.writeErrorResponse(w, http.StatusConflict, "JOB_FINISHED",
			fmt.Sprintf("Job %s already finished", jobId), nil, map[string]interface{}{
				"state": j.snapshot().State,
			})
		return
	}

	j.cancel()
	log.Printf("job %s: cancel requested", j.id)
	s.writeJSON(w, http.StatusAccepted, j.snapshot())
}

func (s *Server) writeAccepted(w http.ResponseWriter, r *http.Request, j *job, requestID string) {
	base := r.URL.Path[:strings.LastIndex(r.URL.Path, "/")]
	w.Header().Set("Location", fmt.Sprintf("%s/jobs/%s", base, j.id))
	w.Header().Set("X-Request-ID", requestID)
	s.writeJSON(w, http.StatusAccepted, api.JobAccepted{JobId: j.id})
}

func (s *Server) writeJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

// writeErrorResponse writes a standard error response
func (s *Server) writeErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string, requestID *string, details map[string]interface{}) {
	response := api.ErrorResponse{
		Error:     errorCode,
		Message:   message,
		RequestId: requestID,
	}

	if details != nil {
		response.Details = &details
	}

	s.writeJSON(w, statusCode, response)
}

// writeValidationErrorResponse writes a validation error response
func (s *Server) writeValidationErrorResponse(w http.ResponseWriter, field, message string, requestID *string) {
	response := api.ValidationErrorResponse{
		Error:     api.VALIDATIONERROR,
		Message:   message,
		RequestId: requestID,
		ValidationErrors: []struct {
			Code    *string `json:"code,omitempty"`
			Field   string  `json:"field"`
			Message string  `json:"message"`
		}{
			{
				Field:   field,
				Message: message,
			},
		},
	}

	s.writeJSON(w, http.StatusBadRequest, response)
}

// generateRequestID generates a unique request ID
func generateRequestID() string {
	return fmt.Sprintf("req_%d", time.Now().UnixNano())
}
