package main

import (
	"flag"
	"log"

	"github.com/danmuck/reguctl/internal/config"
)

func main() {
	kind := flag.String("kind", "service", "config kind: service|installation")
	output := flag.String("output", "", "output path for config template")
	validate := flag.Bool("validate", false, "validate an existing config file")
	input := flag.String("input", "", "config path for validation (defaults to per-kind path)")
	force := flag.Bool("force", false, "overwrite existing config file")
	flag.Parse()

	if *validate {
		path := *input
		if path == "" {
			switch *kind {
			case "service":
				path = "reguctl.toml"
			case "installation":
				path = "installation.toml"
			default:
				log.Fatalf("unknown kind: %s", *kind)
			}
		}

		switch *kind {
		case "service":
			if err := config.ValidateServiceFile(path); err != nil {
				log.Fatal(err)
			}
		case "installation":
			if _, err := config.LoadInstallation(path); err != nil {
				log.Fatal(err)
			}
		default:
			log.Fatalf("unknown kind: %s", *kind)
		}
		log.Printf("Validated %s config at %s", *kind, path)
		return
	}

	target := *output
	if target == "" {
		switch *kind {
		case "service":
			target = "reguctl.toml"
		case "installation":
			target = "installation.toml"
		default:
			log.Fatalf("unknown kind: %s", *kind)
		}
	}

	if err := config.WriteTemplate(target, *kind, *force); err != nil {
		log.Fatal(err)
	}
	log.Printf("Wrote %s config template to %s", *kind, target)
}
