package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/danmuck/reguctl/internal/observability"
	"github.com/danmuck/reguctl/internal/server"
)

func main() {
	var configPath string
	var installationPath string
	flag.StringVar(&configPath, "config", "", "service config TOML; defaults apply when empty")
	flag.StringVar(&installationPath, "installation", "", "installation TOML; overrides the config file entry")
	flag.Parse()

	observability.InitLogger("reguctl")

	cfg, inst, err := loadRuntime(configPath, installationPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "reguctl: %v\n", err)
		os.Exit(1)
	}
	svc, err := server.NewService(cfg, inst)
	if err != nil {
		fmt.Fprintf(os.Stderr, "reguctl: %v\n", err)
		os.Exit(1)
	}
	if err := svc.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "reguctl: %v\n", err)
		os.Exit(1)
	}
}
