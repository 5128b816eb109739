// Package server exposes the recognition pipeline over HTTP. Each request is
// driven through decode, preprocess, recognize, and assemble in order, and
// every failure is translated into a stable error code before it reaches the
// wire.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wudi/ocrkit/assemble"
	"github.com/wudi/ocrkit/config"
	"github.com/wudi/ocrkit/observability"
	"github.com/wudi/ocrkit/ocr"
	"github.com/wudi/ocrkit/preprocess"
	"github.com/wudi/ocrkit/raster"
)

// Server handles OCR uploads. It holds no per-request state, so one instance
// serves any number of worker goroutines or processes.
type Server struct {
	mux    *http.ServeMux
	engine ocr.Engine
	cfg    config.Config
	log    observability.Logger
}

// New constructs a server around the given engine. A nil engine selects the
// process default; a nil logger disables logging.
func New(engine ocr.Engine, cfg config.Config, log observability.Logger) *Server {
	if engine == nil {
		engine = ocr.DefaultEngine()
	}
	if log == nil {
		log = observability.NopLogger{}
	}
	s := &Server{
		mux:    http.NewServeMux(),
		engine: engine,
		cfg:    cfg,
		log:    log,
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	s.mux.HandleFunc("/ocr", s.handleRecognize)
	s.mux.HandleFunc("/healthz", s.handleHealth)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	if p, ok := s.engine.(ocr.Pinger); ok {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := p.Ping(ctx); err != nil {
			s.log.Warn("engine unreachable", observability.Error("err", err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "degraded",
				"engine": s.engine.Name(),
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"engine": s.engine.Name(),
	})
}

func (s *Server) handleRecognize(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	start := time.Now()
	requestID := uuid.NewString()
	log := s.log.With(observability.String("request_id", requestID))
	stage := "receiving"

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)

	fail := func(err error) {
		status, code, msg := mapError(err)
		log.Warn("request failed",
			observability.String("stage", stage),
			observability.String("error_code", code),
			observability.Error("err", err))
		writeErrorCode(w, status, code, msg)
	}

	data, contentType, err := s.readUpload(r)
	if err != nil {
		fail(err)
		return
	}
	params, err := s.parseParams(r)
	if err != nil {
		fail(err)
		return
	}

	stage = "decoding"
	decodeStart := time.Now()
	// Pixel-count cap bounds decode memory; the per-request max_dimension is
	// applied by downscaling, not rejection.
	limits := raster.Limits{MaxPixels: int64(s.cfg.MaxDimension) * int64(s.cfg.MaxDimension)}
	img, err := raster.Decode(data, contentType, limits)
	if err != nil {
		fail(err)
		return
	}

	stage = "preprocessing"
	preprocessStart := time.Now()
	img = preprocess.Apply(img, params.preprocess)

	stage = "recognizing"
	engineStart := time.Now()
	opts := []ocr.InputOption{ocr.WithID(requestID), ocr.WithLanguages(params.language)}
	if s.cfg.PSM > 0 {
		opts = append(opts, ocr.WithTesseractPSM(s.cfg.PSM))
	}
	if s.cfg.CharWhitelist != "" {
		opts = append(opts, ocr.WithTesseractWhitelist(s.cfg.CharWhitelist))
	}
	result, err := ocr.Recognize(r.Context(), s.engine, img, params.timeout, opts...)
	if err != nil {
		fail(err)
		return
	}

	stage = "assembling"
	payload := assemble.Build(result, assemble.Options{
		MinConfidence: params.minConfidence,
		Format:        params.format,
	})

	log.Info("request served",
		observability.Int64(observability.MetricRequestBytes, int64(len(data))),
		observability.Duration(observability.MetricDecodeTime, preprocessStart.Sub(decodeStart)),
		observability.Duration(observability.MetricPreprocessTime, engineStart.Sub(preprocessStart)),
		observability.Duration(observability.MetricEngineTime, time.Since(engineStart)),
		observability.Duration(observability.MetricRequestTime, time.Since(start)),
		observability.Int(observability.MetricTokenCount, len(result.Tokens)))

	if params.format == assemble.FormatText {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(payload.Text))
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

// mapError translates pipeline failures into the wire taxonomy. Nothing
// leaves this function unmapped.
func mapError(err error) (status int, code, message string) {
	var maxBytesErr *http.MaxBytesError
	var engineErr *ocr.EngineError
	switch {
	case errors.As(err, &maxBytesErr):
		return http.StatusRequestEntityTooLarge, "PayloadTooLarge", "request body exceeds the upload limit"
	case errors.Is(err, raster.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType, "UnsupportedFormat", err.Error()
	case errors.Is(err, raster.ErrCorruptImage):
		return http.StatusBadRequest, "CorruptImage", err.Error()
	case errors.Is(err, raster.ErrTooLarge):
		return http.StatusRequestEntityTooLarge, "ImageTooLarge", err.Error()
	case errors.Is(err, ocr.ErrTimeout):
		return http.StatusGatewayTimeout, "OCRTimeout", err.Error()
	case errors.As(err, &engineErr):
		return http.StatusBadGateway, "OCREngineError", engineErr.Message
	case errors.Is(err, errBadParam):
		return http.StatusBadRequest, "BadRequest", err.Error()
	default:
		return http.StatusInternalServerError, "Internal", "internal error"
	}
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(payload)
}

func writeErrorCode(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{
		"error_code": code,
		"message":    message,
	})
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	if len(allowed) > 0 {
		w.Header().Set("Allow", strings.Join(allowed, ", "))
	}
	writeErrorCode(w, http.StatusMethodNotAllowed, "BadRequest", "method not allowed")
}
