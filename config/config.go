// Package config loads server settings from defaults, an optional config
// file and URINGHTTP_* environment variables, in increasing precedence.
package config

import (
	"strings"
	"time"

	"github.com/panjf2000/gnet/v2/pkg/logging"
	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/y001j/uringhttp"
	"github.com/y001j/uringhttp/resource"
	socket "github.com/y001j/uringhttp/sockets"
)

// EnvPrefix prefixes every environment override, e.g. URINGHTTP_ADDR.
const EnvPrefix = "URINGHTTP"

type Config struct {
	Network string `mapstructure:"network"`
	Addr    string `mapstructure:"addr"`

	RingEntries    uint32        `mapstructure:"ring_entries"`
	BacklogHint    int           `mapstructure:"backlog_hint"`
	AcceptCapacity int           `mapstructure:"accept_capacity"`
	InitialAccepts int           `mapstructure:"initial_accepts"`
	BufferSize     int           `mapstructure:"buffer_size"`
	TickInterval   time.Duration `mapstructure:"tick_interval"`

	FixedResources bool   `mapstructure:"fixed_resources"`
	HelloPath      string `mapstructure:"hello_path"`
	NotFoundPath   string `mapstructure:"not_found_path"`

	ReuseAddr     bool `mapstructure:"reuse_addr"`
	ReusePort     bool `mapstructure:"reuse_port"`
	NoDelay       bool `mapstructure:"no_delay"`
	RecvBuffer    int  `mapstructure:"recv_buffer"`
	SendBuffer    int  `mapstructure:"send_buffer"`
	ListenBacklog int  `mapstructure:"listen_backlog"`

	LogLevel      string        `mapstructure:"log_level"`
	LogFile       string        `mapstructure:"log_file"`
	StatsInterval time.Duration `mapstructure:"stats_interval"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("network", "tcp")
	v.SetDefault("addr", "127.0.0.1:7777")

	v.SetDefault("ring_entries", 128)
	v.SetDefault("backlog_hint", uringhttp.DefaultBacklogHint)
	v.SetDefault("accept_capacity", uringhttp.DefaultAcceptCapacity)
	v.SetDefault("initial_accepts", uringhttp.DefaultInitialAccepts)
	v.SetDefault("buffer_size", uringhttp.DefaultBufferSize)
	v.SetDefault("tick_interval", time.Second)

	v.SetDefault("fixed_resources", false)
	v.SetDefault("hello_path", "www/hello.html")
	v.SetDefault("not_found_path", "www/404.html")

	v.SetDefault("reuse_addr", true)
	v.SetDefault("reuse_port", false)
	v.SetDefault("no_delay", true)
	v.SetDefault("recv_buffer", 0)
	v.SetDefault("send_buffer", 0)
	v.SetDefault("listen_backlog", 0)

	v.SetDefault("log_level", "info")
	v.SetDefault("log_file", "")
	v.SetDefault("stats_interval", 10*time.Second)
}

// Load reads the configuration. path may be empty, in which case only
// defaults and the environment apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config %s", path)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate rejects settings the server cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return errors.New("config: addr is empty")
	case c.RingEntries == 0:
		return errors.New("config: ring_entries must be positive")
	case c.AcceptCapacity <= 0:
		return errors.Errorf("config: accept_capacity must be positive, got %d", c.AcceptCapacity)
	case c.InitialAccepts <= 0 || c.InitialAccepts > c.AcceptCapacity:
		return errors.Errorf("config: initial_accepts must be in [1, %d], got %d", c.AcceptCapacity, c.InitialAccepts)
	case c.BufferSize <= 0:
		return errors.Errorf("config: buffer_size must be positive, got %d", c.BufferSize)
	case c.BacklogHint < 0:
		return errors.Errorf("config: backlog_hint must not be negative, got %d", c.BacklogHint)
	case c.TickInterval < 0:
		return errors.Errorf("config: tick_interval must not be negative, got %s", c.TickInterval)
	case c.HelloPath == "" || c.NotFoundPath == "":
		return errors.New("config: hello_path and not_found_path are required")
	}
	return nil
}

// Options maps the configuration onto server options.
func (c *Config) Options(logger logging.Logger, handler uringhttp.EventHandler) uringhttp.Options {
	return uringhttp.Options{
		BacklogHint:    c.BacklogHint,
		AcceptCapacity: c.AcceptCapacity,
		InitialAccepts: c.InitialAccepts,
		BufferSize:     c.BufferSize,
		TickInterval:   c.TickInterval,
		Handler:        handler,
		Logger:         logger,
	}
}

// SocketOptions maps the configuration onto listener options.
func (c *Config) SocketOptions() socket.SocketOptions {
	opts := socket.SocketOptions{
		ReuseAddr:        c.ReuseAddr,
		ReusePort:        c.ReusePort,
		TCPNoDelay:       socket.TCPDelay,
		SocketRecvBuffer: c.RecvBuffer,
		SocketSendBuffer: c.SendBuffer,
		ListenBacklog:    c.ListenBacklog,
	}
	if c.NoDelay {
		opts.TCPNoDelay = socket.TCPNoDelay
	}
	return opts
}

// Resources lists the files the server answers with.
func (c *Config) Resources() []resource.Spec {
	return []resource.Spec{
		{ID: resource.Hello, Path: c.HelloPath},
		{ID: resource.NotFound, Path: c.NotFoundPath},
	}
}
