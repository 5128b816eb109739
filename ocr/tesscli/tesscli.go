// Package tesscli implements the OCR engine contract by spawning the
// tesseract binary. Unlike the in-process library engine, a subprocess can be
// killed mid-recognition, which gives the invoker's timeout a hard guarantee
// that no engine work survives an expired request.
package tesscli

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/wudi/ocrkit/ocr"
)

// DefaultPath is where the deployment installs the tesseract binary.
const DefaultPath = "/usr/bin/tesseract"

// Engine runs tesseract as a child process, feeding the image on stdin and
// parsing the TSV output for token text, geometry, and confidence.
type Engine struct {
	path string
}

// NewEngine constructs a subprocess-backed engine. An empty path selects
// DefaultPath.
func NewEngine(path string) *Engine {
	if path == "" {
		path = DefaultPath
	}
	return &Engine{path: path}
}

func (e *Engine) Name() string { return "tesseract-cli" }

// Ping checks that the binary exists and answers --version.
func (e *Engine) Ping(ctx context.Context) error {
	if _, err := exec.LookPath(e.path); err != nil {
		return &ocr.EngineError{Engine: e.Name(), Message: fmt.Sprintf("binary not found: %v", err)}
	}
	if err := exec.CommandContext(ctx, e.path, "--version").Run(); err != nil {
		return &ocr.EngineError{Engine: e.Name(), Message: fmt.Sprintf("version check failed: %v", err)}
	}
	return nil
}

// Recognize pipes the image through tesseract in TSV mode. Context expiry
// kills the child before the invoker reports the timeout, so no process is
// left behind.
func (e *Engine) Recognize(ctx context.Context, in ocr.Input) (ocr.Result, error) {
	args := []string{"stdin", "stdout"}
	if len(in.Languages) > 0 {
		args = append(args, "-l", strings.Join(in.Languages, "+"))
	}
	if in.DPI > 0 {
		args = append(args, "--dpi", strconv.Itoa(in.DPI))
	}
	if psm, ok := in.Metadata["tessedit_pageseg_mode"]; ok {
		args = append(args, "--psm", psm)
	}
	for k, v := range in.Metadata {
		if k == "tessedit_pageseg_mode" {
			continue
		}
		args = append(args, "-c", k+"="+v)
	}
	args = append(args, "tsv")

	cmd := exec.CommandContext(ctx, e.path, args...)
	cmd.Stdin = bytes.NewReader(in.Image)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ocr.Result{}, ctx.Err()
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return ocr.Result{}, &ocr.EngineError{Engine: e.Name(), Message: msg}
	}

	tokens := parseTSV(stdout.String())
	return ocr.Result{
		InputID:  in.ID,
		Text:     joinTokens(tokens),
		Tokens:   tokens,
		Language: firstLanguage(in.Languages),
	}, nil
}

// TSV columns emitted by tesseract.
const (
	tsvLevel      = 0
	tsvLeft       = 6
	tsvTop        = 7
	tsvWidth      = 8
	tsvHeight     = 9
	tsvConf       = 10
	tsvText       = 11
	tsvFieldCount = 12
	// tsvWordLevel marks word rows; other levels describe pages and blocks.
	tsvWordLevel = "5"
)

func parseTSV(out string) []ocr.Token {
	var tokens []ocr.Token
	for i, line := range strings.Split(out, "\n") {
		if i == 0 || strings.TrimSpace(line) == "" {
			// First row is the column header.
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) < tsvFieldCount || fields[tsvLevel] != tsvWordLevel {
			continue
		}
		text := strings.TrimSpace(fields[tsvText])
		if text == "" {
			continue
		}
		conf, err := strconv.ParseFloat(fields[tsvConf], 64)
		if err != nil || conf < 0 {
			// Confidence -1 marks non-text rows.
			continue
		}
		x, _ := strconv.Atoi(fields[tsvLeft])
		y, _ := strconv.Atoi(fields[tsvTop])
		w, _ := strconv.Atoi(fields[tsvWidth])
		h, _ := strconv.Atoi(fields[tsvHeight])
		tokens = append(tokens, ocr.Token{
			Text:       text,
			Bounds:     ocr.Box{X: x, Y: y, Width: w, Height: h},
			Confidence: conf,
		})
	}
	return tokens
}

func joinTokens(tokens []ocr.Token) string {
	parts := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		parts = append(parts, tok.Text)
	}
	return strings.Join(parts, " ")
}

func firstLanguage(langs []string) string {
	if len(langs) == 0 {
		return ""
	}
	return langs[0]
}
