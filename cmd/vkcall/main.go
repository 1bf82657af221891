// Package main provides the vkcall entry point.
// vkcall creates a VK Calls meeting, copies its join link to the clipboard
// and signs in to VK ID in the browser when no usable token is stored.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/vkcalls/vkcall/internal/buildinfo"
	"github.com/vkcalls/vkcall/internal/cmd"
	"github.com/vkcalls/vkcall/internal/config"
	"github.com/vkcalls/vkcall/internal/logging"
)

var (
	Version           = "dev"
	Commit            = "none"
	BuildDate         = "unknown"
	DefaultConfigPath = ""
)

// init initializes the shared logger setup.
func init() {
	logging.SetupBaseLogger()
	buildinfo.Version = Version
	buildinfo.Commit = Commit
	buildinfo.BuildDate = BuildDate
}

func main() {
	os.Exit(run())
}

func run() int {
	var configPath string
	var noBrowser bool
	var wait bool
	var resume string
	var deviceID string
	var code string
	var logout bool
	var printLink bool
	var showVersion bool

	flag.StringVar(&configPath, "config", DefaultConfigPath, "Configure File Path")
	flag.BoolVar(&noBrowser, "no-browser", false, "Print the authorization URL instead of opening the browser")
	flag.BoolVar(&wait, "wait", false, "Wait for the browser authorization and create the call in the same run")
	flag.StringVar(&resume, "resume", "", "Deep link that relaunched vkcall after authorization")
	flag.StringVar(&deviceID, "device-id", "", "Device id returned by VK ID (use with -code)")
	flag.StringVar(&code, "code", "", "Authorization code returned by VK ID (use with -device-id)")
	flag.BoolVar(&logout, "logout", false, "Remove stored tokens and exit")
	flag.BoolVar(&printLink, "print", false, "Print the join link to stdout")
	flag.BoolVar(&showVersion, "version", false, "Print version information and exit")

	flag.CommandLine.Usage = func() {
		out := flag.CommandLine.Output()
		_, _ = fmt.Fprintf(out, "Usage of %s [flags] [title...]\n", os.Args[0])
		flag.CommandLine.VisitAll(func(f *flag.Flag) {
			s := fmt.Sprintf("  -%s", f.Name)
			name, unquoteUsage := flag.UnquoteUsage(f)
			if name != "" {
				s += " " + name
			}
			s += "\n    " + unquoteUsage
			if f.DefValue != "" && f.DefValue != "false" {
				s += fmt.Sprintf(" (default %s)", f.DefValue)
			}
			_, _ = fmt.Fprint(out, s+"\n")
		})
	}

	flag.Parse()

	if showVersion {
		fmt.Printf("vkcall Version: %s, Commit: %s, BuiltAt: %s\n", buildinfo.Version, buildinfo.Commit, buildinfo.BuildDate)
		return 0
	}

	wd, err := os.Getwd()
	if err != nil {
		log.Errorf("failed to get working directory: %v", err)
		return 1
	}

	// Load environment variables from .env if present.
	if errLoad := godotenv.Load(filepath.Join(wd, ".env")); errLoad != nil {
		if !errors.Is(errLoad, os.ErrNotExist) {
			log.WithError(errLoad).Warn("failed to load .env file")
		}
	}

	optional := configPath == ""
	if configPath == "" {
		configPath = config.DefaultConfigPath()
	}
	cfg, err := config.LoadConfigOptional(configPath, optional)
	if err != nil {
		log.Errorf("failed to load config: %v", err)
		return 1
	}

	if err = logging.ConfigureLogOutput(cfg); err != nil {
		log.Errorf("failed to configure log output: %v", err)
		return 1
	}
	defer logging.Close()
	logging.AttachRunID(log.StandardLogger(), logging.NewRunID())

	log.Debugf("vkcall Version: %s, Commit: %s, BuiltAt: %s", buildinfo.Version, buildinfo.Commit, buildinfo.BuildDate)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if logout {
		return cmd.DoLogout(ctx, cfg)
	}

	return cmd.DoCreateCall(ctx, cfg, &cmd.CreateCallOptions{
		Title:     strings.TrimSpace(strings.Join(flag.Args(), " ")),
		Resume:    resume,
		DeviceID:  deviceID,
		Code:      code,
		NoBrowser: noBrowser,
		Wait:      wait,
		Print:     printLink,
	})
}
