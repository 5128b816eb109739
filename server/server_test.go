package server

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/wudi/ocrkit/assemble"
	"github.com/wudi/ocrkit/config"
	"github.com/wudi/ocrkit/ocr"
)

type fakeEngine struct {
	result  ocr.Result
	err     error
	hang    bool
	pingErr error
}

func (f *fakeEngine) Name() string { return "fake" }

func (f *fakeEngine) Recognize(ctx context.Context, in ocr.Input) (ocr.Result, error) {
	if f.hang {
		<-ctx.Done()
		return ocr.Result{}, ctx.Err()
	}
	return f.result, f.err
}

func (f *fakeEngine) Ping(ctx context.Context) error { return f.pingErr }

func helloResult() ocr.Result {
	return ocr.Result{
		Text: "HELLO",
		Tokens: []ocr.Token{
			{Text: "HELLO", Confidence: 95, Bounds: ocr.Box{X: 10, Y: 40, Width: 60, Height: 13}},
		},
	}
}

func testConfig() config.Config {
	return config.Config{
		Port:            "0",
		MaxUploadBytes:  1 << 20,
		MaxConns:        4,
		MaxDimension:    2000,
		Grayscale:       true,
		Engine:          config.EngineTesseract,
		DefaultLanguage: "eng",
		DefaultTimeout:  2 * time.Second,
		MaxTimeout:      5 * time.Second,
	}
}

// helloPNG renders "HELLO" in black on a white 100x100 canvas.
func helloPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 100, 100))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	d := &font.Drawer{
		Dst:  img,
		Src:  image.Black,
		Face: basicfont.Face7x13,
		Dot:  fixed.P(10, 50),
	}
	d.DrawString("HELLO")
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func postImage(t *testing.T, srv *Server, path string, body []byte, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

type errorEnvelope struct {
	ErrorCode string `json:"error_code"`
	Message   string `json:"message"`
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorEnvelope {
	t.Helper()
	var env errorEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode error body %q: %v", rec.Body.String(), err)
	}
	return env
}

func TestRecognizeTextScenario(t *testing.T) {
	srv := New(&fakeEngine{result: helloResult()}, testConfig(), nil)
	rec := postImage(t, srv, "/ocr", helloPNG(t), "image/png")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Fatalf("unexpected content type: %s", ct)
	}
	if !strings.Contains(strings.ToUpper(rec.Body.String()), "HELLO") {
		t.Fatalf("body missing HELLO: %q", rec.Body.String())
	}
}

func TestRecognizeJSONFiltersTokens(t *testing.T) {
	engine := &fakeEngine{result: ocr.Result{
		Text: "HELLO noise",
		Tokens: []ocr.Token{
			{Text: "HELLO", Confidence: 95, Bounds: ocr.Box{X: 1, Y: 1, Width: 10, Height: 5}},
			{Text: "noise", Confidence: 12, Bounds: ocr.Box{X: 20, Y: 1, Width: 10, Height: 5}},
		},
	}}
	srv := New(engine, testConfig(), nil)
	rec := postImage(t, srv, "/ocr?format=json&min_confidence=50", helloPNG(t), "image/png")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var payload assemble.Payload
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.Text != "HELLO" || len(payload.Tokens) != 1 {
		t.Fatalf("unexpected payload: %+v", payload)
	}
	if payload.Tokens[0].Confidence != 95 {
		t.Fatalf("unexpected token: %+v", payload.Tokens[0])
	}
}

func TestRecognizeMultipartUpload(t *testing.T) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("format", "json"); err != nil {
		t.Fatalf("write field: %v", err)
	}
	fw, err := mw.CreateFormFile("image", "hello.png")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := fw.Write(helloPNG(t)); err != nil {
		t.Fatalf("write image: %v", err)
	}
	mw.Close()

	srv := New(&fakeEngine{result: helloResult()}, testConfig(), nil)
	rec := postImage(t, srv, "/ocr", body.Bytes(), mw.FormDataContentType())
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var payload assemble.Payload
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.Text != "HELLO" || len(payload.Tokens) != 1 {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestPayloadTooLarge(t *testing.T) {
	cfg := testConfig()
	cfg.MaxUploadBytes = 1024
	srv := New(&fakeEngine{result: helloResult()}, cfg, nil)
	rec := postImage(t, srv, "/ocr", make([]byte, 4096), "image/png")
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if env := decodeError(t, rec); env.ErrorCode != "PayloadTooLarge" {
		t.Fatalf("unexpected error code: %+v", env)
	}
}

func TestUnsupportedFormat(t *testing.T) {
	srv := New(&fakeEngine{result: helloResult()}, testConfig(), nil)
	rec := postImage(t, srv, "/ocr", helloPNG(t), "image/gif")
	if rec.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if env := decodeError(t, rec); env.ErrorCode != "UnsupportedFormat" {
		t.Fatalf("unexpected error code: %+v", env)
	}
}

func TestCorruptImage(t *testing.T) {
	srv := New(&fakeEngine{result: helloResult()}, testConfig(), nil)
	rec := postImage(t, srv, "/ocr", []byte("not an image at all"), "image/png")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if env := decodeError(t, rec); env.ErrorCode != "CorruptImage" {
		t.Fatalf("unexpected error code: %+v", env)
	}
}

func TestImageTooLarge(t *testing.T) {
	cfg := testConfig()
	cfg.MaxDimension = 50
	srv := New(&fakeEngine{result: helloResult()}, cfg, nil)
	rec := postImage(t, srv, "/ocr", helloPNG(t), "image/png")
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if env := decodeError(t, rec); env.ErrorCode != "ImageTooLarge" {
		t.Fatalf("unexpected error code: %+v", env)
	}
}

func TestOCRTimeout(t *testing.T) {
	srv := New(&fakeEngine{hang: true}, testConfig(), nil)
	start := time.Now()
	rec := postImage(t, srv, "/ocr?timeout_ms=100", helloPNG(t), "image/png")
	if rec.Code != http.StatusGatewayTimeout {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if env := decodeError(t, rec); env.ErrorCode != "OCRTimeout" {
		t.Fatalf("unexpected error code: %+v", env)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("timeout not enforced promptly: %s", elapsed)
	}
}

func TestEngineErrorMapsToBadGateway(t *testing.T) {
	engine := &fakeEngine{err: &ocr.EngineError{Engine: "fake", Message: "missing language pack"}}
	srv := New(engine, testConfig(), nil)
	rec := postImage(t, srv, "/ocr", helloPNG(t), "image/png")
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	env := decodeError(t, rec)
	if env.ErrorCode != "OCREngineError" || env.Message != "missing language pack" {
		t.Fatalf("unexpected error: %+v", env)
	}
}

func TestBlankImageIsNotAnError(t *testing.T) {
	srv := New(&fakeEngine{}, testConfig(), nil)
	rec := postImage(t, srv, "/ocr?format=json", helloPNG(t), "image/png")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var payload assemble.Payload
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.Text != "" || payload.MeanConfidence != 0 || len(payload.Tokens) != 0 {
		t.Fatalf("expected empty payload, got %+v", payload)
	}
}

func TestBadParameter(t *testing.T) {
	srv := New(&fakeEngine{result: helloResult()}, testConfig(), nil)
	cases := []string{
		"/ocr?format=xml",
		"/ocr?min_confidence=abc",
		"/ocr?timeout_ms=-5",
		"/ocr?binarize=900",
		"/ocr?language=eng%3Brm",
	}
	for _, path := range cases {
		rec := postImage(t, srv, path, helloPNG(t), "image/png")
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: status = %d, body = %s", path, rec.Code, rec.Body.String())
		}
		if env := decodeError(t, rec); env.ErrorCode != "BadRequest" {
			t.Fatalf("%s: unexpected error code: %+v", path, env)
		}
	}
}

func TestMethodNotAllowed(t *testing.T) {
	srv := New(&fakeEngine{}, testConfig(), nil)
	req := httptest.NewRequest(http.MethodGet, "/ocr", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d", rec.Code)
	}
	if allow := rec.Header().Get("Allow"); allow != http.MethodPost {
		t.Fatalf("unexpected Allow header: %s", allow)
	}
}

func TestHealthz(t *testing.T) {
	srv := New(&fakeEngine{}, testConfig(), nil)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}

func TestHealthzDegraded(t *testing.T) {
	srv := New(&fakeEngine{pingErr: &ocr.EngineError{Engine: "fake", Message: "down"}}, testConfig(), nil)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
}
