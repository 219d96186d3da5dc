// Command venuerec 启动混合推荐服务：HTTP 接口与周期训练由 suture 监督运行。
//
// 配置来源依次为内置默认值、YAML 文件（CONFIG_PATH 或 ./venuerec.yaml）、
// VENUEREC_ 前缀的环境变量，例如 VENUEREC_REDIS__ADDR=localhost:6379。
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/thejerf/suture/v4"

	"github.com/rushteam/venuerec/api"
	"github.com/rushteam/venuerec/config"
	"github.com/rushteam/venuerec/pkg/logging"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "venuerec: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load("")
	if err != nil {
		return err
	}

	logger := logging.New(logging.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Caller: cfg.Log.Caller,
		Output: os.Stdout,
	})
	logger.Info().
		Str("addr", cfg.Server.Addr()).
		Bool("postgres", cfg.Database.DSN != "").
		Bool("redis", cfg.Redis.Addr != "").
		Msg("starting venuerec")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	app, err := build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      app.handler.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	sup := suture.New("venuerec", suture.Spec{
		EventHook: func(e suture.Event) {
			logger.Warn().Fields(e.Map()).Msg(e.String())
		},
	})
	sup.Add(api.NewServerService(server, cfg.Server.ShutdownTimeout))
	sup.Add(app.trainer)

	logger.Info().Msg("supervisor starting")
	if err := sup.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("supervisor stopped with error")
		return err
	}

	if unstopped, err := sup.UnstoppedServiceReport(); err == nil {
		for _, svc := range unstopped {
			logger.Warn().Str("service", svc.Name).Msg("service failed to stop")
		}
	}
	logger.Info().Msg("venuerec stopped")
	return nil
}
