package tesseract

import (
	"context"
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"github.com/wudi/ocrkit/ocr"
)

func init() {
	ocr.SetDefaultEngine(NewEngine())
}

// Engine implements ocr.Engine using the gosseract client as the default
// in-process OCR provider.
type Engine struct {
	clientFactory func() *gosseract.Client
}

// NewEngine constructs a Tesseract-backed OCR engine.
func NewEngine() *Engine {
	return &Engine{clientFactory: gosseract.NewClient}
}

func (e *Engine) Name() string { return "tesseract" }

// Ping verifies that the Tesseract library can be initialized.
func (e *Engine) Ping(ctx context.Context) error {
	c := e.clientFactory()
	defer c.Close()
	if v := c.Version(); v == "" {
		return &ocr.EngineError{Engine: e.Name(), Message: "tesseract library unavailable"}
	}
	return nil
}

// Recognize performs OCR on a single image input. A fresh client is created
// per call so nothing is shared across requests.
func (e *Engine) Recognize(ctx context.Context, in ocr.Input) (ocr.Result, error) {
	c := e.clientFactory()
	defer c.Close()
	if err := e.configure(c, in); err != nil {
		return ocr.Result{}, err
	}
	text, err := c.Text()
	if err != nil {
		return ocr.Result{}, &ocr.EngineError{Engine: e.Name(), Message: fmt.Sprintf("recognize text: %v", err)}
	}
	plain := strings.TrimSpace(text)

	tokens := extractTokens(c)
	if len(tokens) == 0 {
		plain = ""
	}
	return ocr.Result{
		InputID:  in.ID,
		Text:     plain,
		Tokens:   tokens,
		Language: firstLanguage(in.Languages),
	}, nil
}

func (e *Engine) configure(c *gosseract.Client, in ocr.Input) error {
	if err := c.SetImageFromBytes(in.Image); err != nil {
		return &ocr.EngineError{Engine: e.Name(), Message: fmt.Sprintf("set image: %v", err)}
	}
	if len(in.Languages) > 0 {
		if err := c.SetLanguage(in.Languages...); err != nil {
			return &ocr.EngineError{Engine: e.Name(), Message: fmt.Sprintf("set languages: %v", err)}
		}
	}
	if in.DPI > 0 {
		if err := c.SetVariable(gosseract.SettableVariable("user_defined_dpi"), fmt.Sprint(in.DPI)); err != nil {
			return &ocr.EngineError{Engine: e.Name(), Message: fmt.Sprintf("set dpi: %v", err)}
		}
	}
	for k, v := range in.Metadata {
		if err := c.SetVariable(gosseract.SettableVariable(k), v); err != nil {
			return &ocr.EngineError{Engine: e.Name(), Message: fmt.Sprintf("set variable %s: %v", k, err)}
		}
	}
	return nil
}

func extractTokens(c *gosseract.Client) []ocr.Token {
	boxes, err := c.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil || len(boxes) == 0 {
		return nil
	}
	tokens := make([]ocr.Token, 0, len(boxes))
	for _, b := range boxes {
		word := strings.TrimSpace(b.Word)
		if word == "" {
			continue
		}
		tokens = append(tokens, ocr.Token{
			Text: word,
			Bounds: ocr.Box{
				X:      b.Box.Min.X,
				Y:      b.Box.Min.Y,
				Width:  b.Box.Dx(),
				Height: b.Box.Dy(),
			},
			Confidence: b.Confidence,
		})
	}
	return tokens
}

func firstLanguage(langs []string) string {
	if len(langs) == 0 {
		return ""
	}
	return langs[0]
}
