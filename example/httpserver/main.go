//go:build linux
// +build linux

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/panjf2000/gnet/v2/pkg/logging"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"

	"github.com/y001j/uringhttp"
	"github.com/y001j/uringhttp/config"
	"github.com/y001j/uringhttp/logger"
	"github.com/y001j/uringhttp/resource"
	"github.com/y001j/uringhttp/ring"
	socket "github.com/y001j/uringhttp/sockets"
)

type httpServer struct {
	uringhttp.BuiltinEventEngine

	log logging.Logger
}

func (hs *httpServer) OnBoot(srv *uringhttp.Server) uringhttp.Action {
	hs.log.Infof("http server is ready, %d connections live", srv.Live())
	return uringhttp.None
}

func (hs *httpServer) OnOpen(c uringhttp.Conn) uringhttp.Action {
	hs.log.Debugf("opened %s", c)
	return uringhttp.None
}

func (hs *httpServer) OnClose(c uringhttp.Conn, err error) uringhttp.Action {
	if err != nil {
		hs.log.Debugf("closed %s: %v", c, err)
	} else {
		hs.log.Debugf("closed %s", c)
	}
	return uringhttp.None
}

func (hs *httpServer) OnShutdown(srv *uringhttp.Server) {
	hs.log.Infof("http server stopped: %s", srv.Stats().Snapshot())
}

func main() {
	configPath := pflag.StringP("config", "c", "", "path to a yaml, toml or json config file")
	pflag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log, flush, err := logger.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = flush() }()

	if err := run(cfg, log); err != nil {
		log.Errorf("http server: %v", err)
		_ = flush()
		os.Exit(1)
	}
}

func run(cfg *config.Config, log logging.Logger) error {
	registry, err := resource.Load(cfg.Resources(), cfg.FixedResources)
	if err != nil {
		return err
	}
	defer func() {
		if err := registry.Close(); err != nil {
			log.Warnf("close resources: %v", err)
		}
	}()

	fd, addr, err := socket.Listen(cfg.Network, cfg.Addr, cfg.SocketOptions())
	if err != nil {
		return err
	}
	defer unix.Close(fd)

	r, err := ring.Setup(cfg.RingEntries)
	if err != nil {
		return err
	}
	srv, err := uringhttp.NewFromRing(r, registry, fd, cfg.Options(log, &httpServer{log: log}))
	if err != nil {
		_ = r.Close()
		return err
	}
	defer func() {
		if err := srv.Close(); err != nil {
			log.Warnf("close server: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Infof("listening on %s://%s", cfg.Network, addr)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Serve(ctx)
	})
	if cfg.StatsInterval > 0 {
		g.Go(func() error {
			reportStats(ctx, srv, cfg.StatsInterval, log)
			return nil
		})
	}
	return g.Wait()
}

func reportStats(ctx context.Context, srv *uringhttp.Server, every time.Duration, log logging.Logger) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			log.Infof("stats: %s", srv.Stats().Snapshot())
		}
	}
}
