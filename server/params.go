package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/wudi/ocrkit/assemble"
	"github.com/wudi/ocrkit/preprocess"
)

// errBadParam marks client-supplied parameter faults; the handler maps it to
// HTTP 400.
var errBadParam = errors.New("invalid parameter")

type requestParams struct {
	language      string
	format        assemble.Format
	minConfidence float64
	timeout       time.Duration
	preprocess    preprocess.Options
}

// parseParams reads tunables from the query string and, for multipart
// uploads, the form fields. Defaults come from the process configuration.
func (s *Server) parseParams(r *http.Request) (requestParams, error) {
	p := requestParams{
		language:      s.cfg.DefaultLanguage,
		format:        assemble.FormatText,
		minConfidence: s.cfg.MinConfidence,
		timeout:       s.cfg.DefaultTimeout,
		preprocess: preprocess.Options{
			Grayscale:    s.cfg.Grayscale,
			Binarize:     s.cfg.Binarize,
			Threshold:    s.cfg.BinarizeThreshold,
			Deskew:       s.cfg.Deskew,
			MaxDimension: s.cfg.MaxDimension,
		},
	}

	if v := formValue(r, "language"); v != "" {
		if !validLanguage(v) {
			return p, fmt.Errorf("%w: language %q", errBadParam, v)
		}
		p.language = v
	}
	if v := formValue(r, "format"); v != "" {
		switch assemble.Format(v) {
		case assemble.FormatText, assemble.FormatJSON:
			p.format = assemble.Format(v)
		default:
			return p, fmt.Errorf("%w: format %q", errBadParam, v)
		}
	}
	if v := formValue(r, "min_confidence"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 || f > 101 {
			return p, fmt.Errorf("%w: min_confidence %q", errBadParam, v)
		}
		p.minConfidence = f
	}
	if v := formValue(r, "max_dimension"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return p, fmt.Errorf("%w: max_dimension %q", errBadParam, v)
		}
		if n > s.cfg.MaxDimension {
			n = s.cfg.MaxDimension
		}
		p.preprocess.MaxDimension = n
	}
	if v := formValue(r, "timeout_ms"); v != "" {
		ms, err := strconv.Atoi(v)
		if err != nil || ms <= 0 {
			return p, fmt.Errorf("%w: timeout_ms %q", errBadParam, v)
		}
		p.timeout = time.Duration(ms) * time.Millisecond
		if s.cfg.MaxTimeout > 0 && p.timeout > s.cfg.MaxTimeout {
			p.timeout = s.cfg.MaxTimeout
		}
	}
	if v := formValue(r, "grayscale"); v != "" {
		b, err := parseBool(v)
		if err != nil {
			return p, fmt.Errorf("%w: grayscale %q", errBadParam, v)
		}
		p.preprocess.Grayscale = b
	}
	if v := formValue(r, "deskew"); v != "" {
		b, err := parseBool(v)
		if err != nil {
			return p, fmt.Errorf("%w: deskew %q", errBadParam, v)
		}
		p.preprocess.Deskew = b
	}
	if v := formValue(r, "binarize"); v != "" {
		switch strings.ToLower(v) {
		case "off", "false", "0", "no":
			p.preprocess.Binarize = false
		case "auto", "true", "on", "yes":
			p.preprocess.Binarize = true
			p.preprocess.Threshold = 0
		default:
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 || n > 255 {
				return p, fmt.Errorf("%w: binarize %q", errBadParam, v)
			}
			p.preprocess.Binarize = true
			p.preprocess.Threshold = n
		}
	}
	return p, nil
}

// formValue prefers the query string and falls back to multipart form fields.
// Raw-body uploads carry the image in the body, so only the query applies.
func formValue(r *http.Request, key string) string {
	if v := r.URL.Query().Get(key); v != "" {
		return v
	}
	if r.MultipartForm != nil {
		if vs := r.MultipartForm.Value[key]; len(vs) > 0 {
			return vs[0]
		}
	}
	return ""
}

// validLanguage accepts Tesseract language identifiers, including "+" joined
// combinations like "eng+deu".
func validLanguage(s string) bool {
	if s == "" || len(s) > 64 {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '_' || r == '+' || r == '-':
		default:
			return false
		}
	}
	return true
}

func parseBool(v string) (bool, error) {
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		return true, nil
	case "0", "false", "no", "off":
		return false, nil
	}
	return false, fmt.Errorf("not a boolean: %q", v)
}
