// Command ocrserved runs the OCR HTTP service. One process handles requests
// sequentially up to the connection cap; horizontal capacity comes from
// running more processes behind the same port.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/net/netutil"

	"github.com/wudi/ocrkit/config"
	"github.com/wudi/ocrkit/observability"
	"github.com/wudi/ocrkit/ocr"
	"github.com/wudi/ocrkit/ocr/tesscli"
	"github.com/wudi/ocrkit/ocr/tesseract"
	"github.com/wudi/ocrkit/server"
)

func main() {
	cfg := config.Load()
	log := observability.NewStdLogger("ocrserved")

	engine, err := buildEngine(cfg)
	if err != nil {
		log.Error("engine setup failed", observability.Error("err", err))
		os.Exit(1)
	}

	srv := server.New(engine, cfg, log)
	httpSrv := &http.Server{
		Handler:     srv.Handler(),
		ReadTimeout: 30 * time.Second,
		// Recognition happens inside the handler, so the write timeout must
		// outlast the OCR timeout.
		WriteTimeout: cfg.MaxTimeout + 30*time.Second,
	}

	ln, err := net.Listen("tcp", ":"+cfg.Port)
	if err != nil {
		log.Error("listen failed", observability.String("port", cfg.Port), observability.Error("err", err))
		os.Exit(1)
	}
	if cfg.MaxConns > 0 {
		ln = netutil.LimitListener(ln, cfg.MaxConns)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
	}()

	log.Info("listening",
		observability.String("addr", ln.Addr().String()),
		observability.String("engine", engine.Name()))
	if err := httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("server failed", observability.Error("err", err))
		os.Exit(1)
	}
	log.Info("shutdown complete")
}

func buildEngine(cfg config.Config) (ocr.Engine, error) {
	switch cfg.Engine {
	case config.EngineTesseract:
		return tesseract.NewEngine(), nil
	case config.EngineTesseractCLI:
		return tesscli.NewEngine(cfg.TesseractPath), nil
	}
	return nil, fmt.Errorf("unknown OCR engine %q", cfg.Engine)
}
