package main

import (
	"fmt"
	"log"
	"os"

	"github.com/jessevdk/go-flags"

	"quill/pkg/cli"
	"quill/pkg/config"
)

var version = "dev"

type options struct {
	Config   string `short:"c" long:"config" description:"YAML config file with snapshot/prompt preferences" value-name:"filename"`
	Snapshot string `short:"s" long:"snapshot" description:"Snapshot file to load at startup and save on exit" value-name:"filename"`
	Help     bool   `long:"help" description:"Show this help"`
	Version  bool   `long:"version" description:"Show this version"`
}

func parseOptions(args []string) *options {
	var opts options
	parser := flags.NewParser(&opts, flags.None)
	parser.Usage = "[option...]"
	if _, err := parser.ParseArgs(args); err != nil {
		log.Fatal(err)
	}

	if opts.Help {
		parser.WriteHelp(os.Stdout)
		os.Exit(0)
	}
	if opts.Version {
		fmt.Println(version)
		os.Exit(0)
	}
	return &opts
}

func main() {
	opts := parseOptions(os.Args[1:])

	cfg := config.Default()
	if opts.Config != "" {
		loaded, err := config.Load(opts.Config)
		if err != nil {
			log.Fatal(err)
		}
		cfg = loaded
	}

	snapshotPath := cfg.SnapshotPath
	if opts.Snapshot != "" {
		snapshotPath = opts.Snapshot
	}

	openPath := ""
	if cfg.AutoLoad || opts.Snapshot != "" {
		openPath = snapshotPath
	}

	repl, err := cli.NewREPL(openPath, os.Stdout, os.Stderr)
	if err != nil {
		log.Fatal(err)
	}
	defer repl.Close()

	repl.SetPrompt(cfg.Prompt)
	repl.Run()

	if (cfg.AutoSave || opts.Snapshot != "") && snapshotPath != "" && repl.ExitRequested() {
		if err := repl.SaveSnapshot(snapshotPath, cfg.PrettySnapshot); err != nil {
			fmt.Fprintf(os.Stderr, "Error saving snapshot: %v\n", err)
		}
	}
}
