// Package httpapi adapts the atomic operations pipeline to HTTP. It owns
// content negotiation for the JSON:API atomic extension media type and the
// translation between pipeline errors and wire-level error documents.
package httpapi

import (
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	json "github.com/goccy/go-json"

	"github.com/openarc/strata/internal/atomic"
	"github.com/openarc/strata/internal/jsonapi"
)

// DefaultMaxBodyBytes caps request bodies at 4 MiB unless configured.
const DefaultMaxBodyBytes = 4 << 20

// Handler serves the atomic operations endpoint.
type Handler struct {
	proc         *atomic.Processor
	logger       *slog.Logger
	maxBodyBytes int64
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the request logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) {
		h.logger = l
	}
}

// WithMaxBodyBytes overrides the request body size limit.
func WithMaxBodyBytes(n int64) Option {
	return func(h *Handler) {
		h.maxBodyBytes = n
	}
}

// NewHandler creates a handler over the given processor.
func NewHandler(proc *atomic.Processor, opts ...Option) *Handler {
	h := &Handler{
		proc:         proc,
		logger:       slog.Default(),
		maxBodyBytes: DefaultMaxBodyBytes,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Router builds the HTTP routing tree. The operations endpoint accepts
// POST only; everything else on the path answers 405.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, &atomic.Error{
			Code:   "METHOD_NOT_ALLOWED",
			Status: http.StatusMethodNotAllowed,
			Title:  "The endpoint only supports POST requests.",
		})
	})

	r.Post("/operations", h.ServeOperations)
	return r
}

// ServeOperations handles one atomic batch request.
func (h *Handler) ServeOperations(w http.ResponseWriter, r *http.Request) {
	if err := checkContentType(r.Header.Get("Content-Type")); err != nil {
		writeError(w, err)
		return
	}
	if err := checkAccept(r.Header.Get("Accept")); err != nil {
		writeError(w, err)
		return
	}

	body, readErr := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	if readErr != nil {
		status := http.StatusBadRequest
		if _, ok := readErr.(*http.MaxBytesError); ok {
			status = http.StatusRequestEntityTooLarge
		}
		writeError(w, &atomic.Error{
			Code:   "BODY_READ_FAILED",
			Status: status,
			Title:  "Failed to read the request body.",
			Detail: readErr.Error(),
		})
		return
	}

	doc, decodeErr := jsonapi.DecodeOperationsDocument(body)
	if decodeErr != nil {
		writeError(w, &atomic.Error{
			Code:   "MALFORMED_DOCUMENT",
			Status: http.StatusUnprocessableEntity,
			Title:  "Failed to deserialize request body.",
			Detail: decodeErr.Error(),
			Meta:   map[string]any{"requestBody": string(body)},
		})
		return
	}

	results, procErr := h.proc.Process(r.Context(), doc)
	if procErr != nil {
		h.logger.Info("batch rejected",
			"status", procErr.Status,
			"code", procErr.Code,
			"pointer", procErr.Pointer)
		if procErr.Status == http.StatusUnprocessableEntity {
			if procErr.Meta == nil {
				procErr.Meta = make(map[string]any, 1)
			}
			procErr.Meta["requestBody"] = string(body)
		}
		writeError(w, procErr)
		return
	}

	status, resDoc := atomic.BuildResponse(results)
	if resDoc == nil {
		w.WriteHeader(status)
		return
	}
	writeJSON(w, status, resDoc)
}

// checkContentType requires the JSON:API media type with the atomic
// extension. Requests without it answer 415 per the extension's
// negotiation rules.
func checkContentType(value string) *atomic.Error {
	if value == "" {
		return unsupportedMediaType("The Content-Type header is required.")
	}
	mediaType, params, err := mime.ParseMediaType(value)
	if err != nil {
		return unsupportedMediaType("The Content-Type header is not a valid media type.")
	}
	if mediaType != jsonapi.MediaType {
		return unsupportedMediaType("Expected the JSON:API media type " + jsonapi.MediaType + ".")
	}
	if !extListContains(params["ext"], jsonapi.AtomicExtension) {
		return unsupportedMediaType("The atomic operations extension must be named in the 'ext' media type parameter.")
	}
	return nil
}

// checkAccept rejects requests whose Accept header cannot be satisfied by
// the atomic media type. An absent header accepts anything.
func checkAccept(value string) *atomic.Error {
	if value == "" {
		return nil
	}
	for _, alt := range strings.Split(value, ",") {
		mediaType, params, err := mime.ParseMediaType(strings.TrimSpace(alt))
		if err != nil {
			continue
		}
		switch mediaType {
		case "*/*", "application/*":
			return nil
		case jsonapi.MediaType:
			// The extension must be named explicitly: responses always
			// carry it, so a bare JSON:API Accept cannot be satisfied.
			if extListContains(params["ext"], jsonapi.AtomicExtension) {
				return nil
			}
		}
	}
	return &atomic.Error{
		Code:   "NOT_ACCEPTABLE",
		Status: http.StatusNotAcceptable,
		Title:  "The Accept header does not allow the JSON:API atomic operations media type.",
	}
}

// extListContains reports whether a space-separated extension list names
// the given URI.
func extListContains(list, uri string) bool {
	for _, e := range strings.Fields(list) {
		if e == uri {
			return true
		}
	}
	return false
}

func unsupportedMediaType(detail string) *atomic.Error {
	return &atomic.Error{
		Code:   "UNSUPPORTED_MEDIA_TYPE",
		Status: http.StatusUnsupportedMediaType,
		Title:  "Unsupported media type.",
		Detail: detail,
	}
}

func writeError(w http.ResponseWriter, err *atomic.Error) {
	writeJSON(w, err.Status, err.Document())
}

func writeJSON(w http.ResponseWriter, status int, doc any) {
	w.Header().Set("Content-Type", jsonapi.MediaTypeAtomic)
	w.WriteHeader(status)

	enc := json.NewEncoder(w)
	if err := enc.Encode(doc); err != nil {
		slog.Default().Error("write response", "error", err)
	}
}
