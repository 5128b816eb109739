package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// maxMultipartMemory bounds the in-memory part of multipart parsing; larger
// parts spill to disk and are still subject to the request body cap.
const maxMultipartMemory = 8 << 20

// readUpload extracts the image bytes and their declared content type from
// either a multipart "image" field or a raw request body. The body has
// already been wrapped by MaxBytesReader, so oversized uploads surface here
// as *http.MaxBytesError.
func (s *Server) readUpload(r *http.Request) ([]byte, string, error) {
	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "multipart/form-data") {
		if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
			if tooLarge(err) {
				return nil, "", &http.MaxBytesError{Limit: s.cfg.MaxUploadBytes}
			}
			return nil, "", fmt.Errorf("%w: malformed multipart body: %v", errBadParam, err)
		}
		file, header, err := r.FormFile("image")
		if err != nil {
			return nil, "", fmt.Errorf("%w: missing multipart field %q", errBadParam, "image")
		}
		defer file.Close()
		data, err := io.ReadAll(file)
		if err != nil {
			return nil, "", err
		}
		return data, sniffType(header.Header.Get("Content-Type"), data), nil
	}

	data, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, "", err
	}
	return data, sniffType(contentType, data), nil
}

// sniffType falls back to content sniffing when the declared type is absent
// or generic.
func sniffType(declared string, data []byte) string {
	declared = strings.TrimSpace(declared)
	if declared == "" || strings.HasPrefix(declared, "application/octet-stream") {
		return http.DetectContentType(data)
	}
	return declared
}

func tooLarge(err error) bool {
	var maxBytesErr *http.MaxBytesError
	return errors.As(err, &maxBytesErr) ||
		strings.Contains(err.Error(), "request body too large")
}
