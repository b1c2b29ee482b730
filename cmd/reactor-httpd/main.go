// Command reactor-httpd runs the static-file and CGI HTTP server.
package main

import (
	"github.com/searchktools/reactor-httpd/app"
	"github.com/searchktools/reactor-httpd/config"
)

func main() {
	cfg := config.New()

	mgr := config.NewManager()
	mgr.LoadFromEnv("REACTOR_HTTPD")

	application := app.New(cfg, mgr)
	application.Run()
}
