package api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
	openapi_types "github.com/oapi-codegen/runtime/types"
)

// ServerInterface represents all server handlers.
type ServerInterface interface {
	// Health check
	// (GET /health)
	GetHealth(w http.ResponseWriter, r *http.Request)
	// Queue a clip job
	// (POST /clip)
	CreateClipJob(w http.ResponseWriter, r *http.Request)
	// Queue a convert job
	// (POST /convert)
	CreateConvertJob(w http.ResponseWriter, r *http.Request)
	// Queue a stitch job
	// (POST /stitch)
	CreateStitchJob(w http.ResponseWriter, r *http.Request)
	// Job status
	// (GET /jobs/{jobId})
	GetJob(w http.ResponseWriter, r *http.Request, jobId openapi_types.UUID)
	// Cancel a job
	// (DELETE /jobs/{jobId})
	CancelJob(w http.ResponseWriter, r *http.Request, jobId openapi_types.UUID)
}

// MiddlewareFunc wraps a single operation handler
type MiddlewareFunc func(http.Handler) http.Handler

// ServerInterfaceWrapper converts contexts to parameters.
type ServerInterfaceWrapper struct {
	Handler            ServerInterface
	HandlerMiddlewares []MiddlewareFunc
	ErrorHandlerFunc   func(w http.ResponseWriter, r *http.Request, err error)
}

func (siw *ServerInterfaceWrapper) serve(w http.ResponseWriter, r *http.Request, h http.HandlerFunc) {
	handler := http.Handler(h)
	for _, middleware := range siw.HandlerMiddlewares {
		handler = middleware(handler)
	}
	handler.ServeHTTP(w, r)
}

// jobID binds the {jobId} path parameter
func (siw *ServerInterfaceWrapper) jobID(w http.ResponseWriter, r *http.Request) (openapi_types.UUID, bool) {
	var jobId openapi_types.UUID
	err := runtime.BindStyledParameterWithOptions("simple", "jobId", chi.URLParam(r, "jobId"), &jobId,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		siw.ErrorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: "jobId", Err: err})
		return jobId, false
	}
	return jobId, true
}

// GetHealth operation middleware
func (siw *ServerInterfaceWrapper) GetHealth(w http.ResponseWriter, r *http.Request) {
	siw.serve(w, r, siw.Handler.GetHealth)
}

// CreateClipJob operation middleware
func (siw *ServerInterfaceWrapper) CreateClipJob(w http.ResponseWriter, r *http.Request) {
	siw.serve(w, r, siw.Handler.CreateClipJob)
}

// CreateConvertJob operation middleware
func (siw *ServerInterfaceWrapper) CreateConvertJob(w http.ResponseWriter, r *http.Request) {
	siw.serve(w, r, siw.Handler.CreateConvertJob)
}

// CreateStitchJob operation middleware
func (siw *ServerInterfaceWrapper) CreateStitchJob(w http.ResponseWriter, r *http.Request) {
	siw.serve(w, r, siw.Handler.CreateStitchJob)
}

// GetJob operation middleware
func (siw *ServerInterfaceWrapper) GetJob(w http.ResponseWriter, r *http.Request) {
	jobId, ok := siw.jobID(w, r)
	if !ok {
		return
	}
	siw.serve(w, r, func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.GetJob(w, r, jobId)
	})
}

// CancelJob operation middleware
func (siw *ServerInterfaceWrapper) CancelJob(w http.ResponseWriter, r *http.Request) {
	jobId, ok := siw.jobID(w, r)
	if !ok {
		return
	}
	siw.serve(w, r, func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.CancelJob(w, r, jobId)
	})
}

// InvalidParamFormatError is passed to ErrorHandlerFunc when a path
// parameter does not parse
type InvalidParamFormatError struct {
	ParamName string
	Err       error
}

func (e *InvalidParamFormatError) Error() string {
	return fmt.Sprintf("Invalid format for parameter %s: %s", e.ParamName, e.Err.Error())
}

func (e *InvalidParamFormatError) Unwrap() error {
	return e.Err
}

// ChiServerOptions configures HandlerWithOptions
type ChiServerOptions struct {
	BaseURL          string
	BaseRouter       chi.Router
	Middlewares      []MiddlewareFunc
	ErrorHandlerFunc func(w http.ResponseWriter, r *http.Request, err error)
}

// Handler creates http.Handler with routing matching the API.
func Handler(si ServerInterface) http.Handler {
	return HandlerWithOptions(si, ChiServerOptions{})
}

// HandlerWithOptions creates http.Handler with additional options
func HandlerWithOptions(si ServerInterface, options ChiServerOptions) http.Handler {
	r := options.BaseRouter

	if r == nil {
		r = chi.NewRouter()
	}
	if options.ErrorHandlerFunc == nil {
		options.ErrorHandlerFunc = func(w http.ResponseWriter, r *http.Request, err error) {
			http.Error(w, err.Error(), http.StatusBadRequest)
		}
	}
	wrapper := ServerInterfaceWrapper{
		Handler:            si,
		HandlerMiddlewares: options.Middlewares,
		ErrorHandlerFunc:   options.ErrorHandlerFunc,
	}

	r.Group(func(r chi.Router) {
		r.Get(options.BaseURL+"/health", wrapper.GetHealth)
		r.Post(options.BaseURL+"/clip", wrapper.CreateClipJob)
		r.Post(options.BaseURL+"/convert", wrapper.CreateConvertJob)
		r.Post(options.BaseURL+"/stitch", wrapper.CreateStitchJob)
		r.Get(options.BaseURL+"/jobs/{jobId}", wrapper.GetJob)
		r.Delete(options.BaseURL+"/jobs/{jobId}", wrapper.CancelJob)
	})

	return r
}
