// Command surged wires up a Surge origin server with a small demo route
// table and a static-file mount, the same way the teacher's
// bolt/examples/hello/main.go wires up a bolt app. Configuration here is
// hardcoded rather than read from flags or the environment — spec.md §6
// keeps the CLI/config layer external to the core, so this is a sample
// wiring, not the configuration surface itself.
package main

import (
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/tidwall/gjson"

	"github.com/wattlab/surge/internal/logx"
	"github.com/wattlab/surge/pkg/surge"
	"github.com/wattlab/surge/pkg/surge/cache"
	"github.com/wattlab/surge/pkg/surge/middleware"
	"github.com/wattlab/surge/pkg/surge/router"
	"github.com/wattlab/surge/pkg/surge/server"
)

func main() {
	cfg := surge.DefaultConfig()
	cfg.StaticRoot = "./public"

	logger := logx.New(os.Stdout, logx.LevelInfo)

	r := router.New()
	r.Use(middleware.Recovery(logger), middleware.Logger(logger))

	r.Get("/", func(req *surge.Request, params map[string]string, jsonBody gjson.Result) *surge.Response {
		return surge.NewResponse(surge.StatusOK, "text/plain", []byte("ok"))
	})

	r.Get("/user/:id", func(req *surge.Request, params map[string]string, jsonBody gjson.Result) *surge.Response {
		return surge.NewResponse(surge.StatusOK, "application/json", []byte(`{"id":"`+params["id"]+`"}`))
	})

	r.Post("/form", func(req *surge.Request, params map[string]string, jsonBody gjson.Result) *surge.Response {
		a := req.FormParams["a"]
		return surge.NewResponse(surge.StatusOK, "application/json", []byte(`{"a_count":`+strconv.Itoa(len(a))+`}`))
	})

	if cfg.StaticRoot != "" {
		fileCache := cache.New(cfg.CacheCapacity)
		statics, err := router.NewStaticHandler(cfg.StaticRoot, cfg.StaticPrefix, fileCache)
		if err != nil {
			log.Fatalf("static handler: %v", err)
		}
		r.SetStatic(statics)
	}

	srv := server.New(cfg, r, logger)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutting down")
		srv.Stop()
	}()

	if err := srv.ListenAndServe(); err != nil {
		log.Fatalf("listen: %v", err)
	}
	srv.Wait()
}
