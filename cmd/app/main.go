package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/hubertat/servicemaker"

	"github.com/hubertat/curtainkit"
)

var (
	Version string
	Build   string

	config      = flag.String("config", "config.json", "path of the configuration file (.json or .yaml)")
	flagInstall = flag.Bool("install", false, "Install service in os")
	flagDebug   = flag.Bool("debug", false, "enable debug logging, overrides log_level")

	ckService = servicemaker.ServiceMaker{
		User:               "curtainkit",
		UserGroups:         []string{"bluetooth"},
		ServicePath:        "/etc/systemd/system/curtainkit.service",
		ServiceDescription: "CurtainKit service: HomeKit bridge for a SwitchBot Curtain over BLE. github.com/hubertat/curtainkit",
		ExecDir:            "/srv/curtainkit",
		ExecName:           "curtainkit",
	}
)

func main() {
	flag.Parse()
	log.Info("curtainkit started", "version", Version, "build", Build)

	if *flagInstall {
		err := ckService.InstallService()
		if err != nil {
			log.Fatal("failed to install service", "err", err)
		}
		log.Info("service installed!")
		return
	}

	ck, err := curtainkit.LoadConfig(*config)
	if err != nil {
		log.Fatal("can't load config, will terminate", "path", *config, "err", err)
	}

	if len(ck.LogLevel) > 0 {
		level, _ := log.ParseLevel(ck.LogLevel)
		log.SetLevel(level)
	}
	if *flagDebug {
		log.SetLevel(log.DebugLevel)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	log.Info("will init curtain driver...")
	err = ck.InitDriver(ctx)
	defer ck.Close()
	if err != nil {
		log.Error("driver init failed", "err", err)
		return
	}

	log.Info("will init curtain...")
	err = ck.InitCurtain()
	if err != nil {
		log.Error("curtain init failed", "err", err)
		return
	}

	err = ck.InitHistory(ctx)
	if err != nil {
		log.Error("history disabled, we will proceed", "err", err)
	}

	if ck.Mqtt != nil {
		err = ck.InitMqtt(ctx)
		if err != nil {
			log.Error("mqtt init returned error, we will proceed", "err", err)
		}
	}

	err = ck.Start(ctx)
	if err != nil {
		log.Error("start failed", "err", err)
		return
	}

	ck.PrintStatus(os.Stdout)

	if len(ck.HkPin) == 8 {
		log.Info("Starting with HomeKit server")
		err = ck.StartHomeKit(ctx, Version)
		if err != nil {
			log.Error("HomeKit server stopped", "err", err)
		}
		return
	}

	log.Info("HomeKit not configured, disabled")
	<-ctx.Done()
}
