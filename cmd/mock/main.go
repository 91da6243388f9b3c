package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/charmbracelet/log"

	"github.com/hubertat/curtainkit"
	"github.com/hubertat/curtainkit/drivers"
)

var (
	Version string
	Build   string
)

func main() {
	var err error

	log.SetLevel(log.DebugLevel)
	log.Info("curtainkit started")
	log.Info("mock instance for testing purposes, should work on MacOs")

	ck := &curtainkit.CurtainKit{}

	ck.HkPin = "88008800"
	ck.HkDirectory = "./mock_homekit"
	ck.Curtain = &curtainkit.Curtain{Id: "c0:ff:ee:00:00:01", Name: "fake curtain", DriverName: "mock_driver"}
	ck.FakeDriver = &drivers.MockCurtainDriver{Position: 100, MoveDuration: "3s"}
	ck.ApplyDefaults()

	err = ck.Validate()
	if err != nil {
		log.Error("invalid mock config", "err", err)
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	log.Info("will init curtainkit driver...")
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

	ck.FakeDriver.MonitorMoves(os.Stdout)

	err = ck.Start(ctx)
	if err != nil {
		log.Error("start failed", "err", err)
		return
	}

	ck.PrintStatus(os.Stdout)

	log.Info("starting mock with HomeKit service")
	err = ck.StartHomeKit(ctx, "mock: "+Version)
	if err != nil {
		log.Error("HomeKit server stopped", "err", err)
	}
}
