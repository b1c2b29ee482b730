package config

import (
	"flag"
	"os"
	"strconv"
)

// Config holds the server's startup configuration, parsed once from flags.
// Fields also readable through a Manager (idle-timeout-ms, max-conns) can be
// adjusted at runtime; everything else is fixed for the process lifetime.
type Config struct {
	Port          int
	TriggerMode   int
	IdleTimeoutMS int
	Linger        bool
	Workers       int
	DocRoot       string
	CGIDir        string
	MaxConns      int
	Env           string
}

// New loads configuration from command-line flags.
func New() *Config {
	cfg := &Config{}

	flag.IntVar(&cfg.Port, "port", 9190, "listen port (1024-65535)")
	flag.IntVar(&cfg.TriggerMode, "trigger-mode", 3, "epoll/kqueue trigger mode: bit0=conn ET, bit1=listener ET")
	flag.IntVar(&cfg.IdleTimeoutMS, "idle-timeout-ms", 0, "idle connection timeout in milliseconds (0 disables)")
	flag.BoolVar(&cfg.Linger, "linger", false, "enable SO_LINGER with a 1 second timeout on accepted sockets")
	flag.IntVar(&cfg.Workers, "workers", 0, "worker pool size (0 = number of CPUs)")
	flag.StringVar(&cfg.DocRoot, "doc-root", "./resources", "static file document root")
	flag.StringVar(&cfg.CGIDir, "cgi-dir", "./cgi-bin", "CGI script directory")
	flag.IntVar(&cfg.MaxConns, "max-conns", 65536, "soft ceiling on concurrent connections")
	flag.StringVar(&cfg.Env, "env", "development", "environment (development/production)")

	flag.Parse()

	if port := os.Getenv("PORT"); port != "" {
		if v, err := strconv.Atoi(port); err == nil {
			cfg.Port = v
		}
	}

	return cfg
}
