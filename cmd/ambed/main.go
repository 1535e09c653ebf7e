// Command ambed serves one AMBE vocoder chip over a websocket, sharing its
// channels across concurrently connected clients. It mirrors
// original_source/ambed.cc's AmbeServiceImpl: attach to the chip, run its
// power-on sequence, then accept connections until killed.
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/janakj/ambe/pkg/api"
	"github.com/janakj/ambe/pkg/config"
	"github.com/janakj/ambe/pkg/device"
	"github.com/janakj/ambe/pkg/manager"
	"github.com/janakj/ambe/pkg/remote"
	"github.com/janakj/ambe/pkg/scheduler"
	"github.com/janakj/ambe/pkg/serialdev"
	"github.com/janakj/ambe/pkg/uri"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML/JSON config file")
	serialPath := flag.String("s", "", "serial port URI, e.g. usb:/dev/ttyUSB0 (overrides config)")
	listenAddr := flag.String("p", "", "address to listen on, e.g. :8443 (overrides config)")
	flag.Parse()

	cfg, err := config.LoadServerConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if *serialPath != "" {
		cfg.SerialPath = *serialPath
	}
	if *listenAddr != "" {
		cfg.ListenAddr = *listenAddr
	}

	log := logrus.New()
	if lvl, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(lvl)
	}

	if err := run(cfg, log); err != nil {
		log.Fatal(err)
	}
}

func run(cfg *config.ServerConfig, log *logrus.Logger) error {
	u, err := uri.Parse(cfg.SerialPath)
	if err != nil || u.Type != uri.USB {
		return fmt.Errorf("ambed: invalid serial device URI %q", cfg.SerialPath)
	}

	var dev device.FifoDevice

	switch cfg.SerialVariant {
	case "usb3000":
		dev = serialdev.NewUsb3000(u.Authority)
	case "usb3003", "":
		dev = serialdev.NewUsb3003(u.Authority)
	default:
		return fmt.Errorf("ambed: unknown serial variant %q", cfg.SerialVariant)
	}

	sched, err := scheduler.NewMultiQueueScheduler(dev, dev.Channels())
	if err != nil {
		return err
	}
	a := api.New(dev, sched, true)

	if err := dev.Start(); err != nil {
		return fmt.Errorf("ambed: starting device: %w", err)
	}
	if err := sched.Start(); err != nil {
		return fmt.Errorf("ambed: starting scheduler: %w", err)
	}

	if err := initChip(a, cfg.SerialPath, log); err != nil {
		return fmt.Errorf("ambed: initializing chip: %w", err)
	}

	mgr := manager.New()
	if err := mgr.Add(cfg.SerialPath, dev, sched, dev.Channels()); err != nil {
		return err
	}

	h := remote.NewHandler(mgr, cfg.SerialPath, log)
	mux := http.NewServeMux()
	mux.HandleFunc("/bind", h.ServeWS)
	mux.HandleFunc("/ping", h.ServePing)

	log.WithField("addr", cfg.ListenAddr).Info("ambe server listening")
	return http.ListenAndServe(cfg.ListenAddr, mux)
}

// initChip runs the same power-on sequence original_source/ambed.cc's
// AmbeServiceImpl constructor does: hard reset, log identity, then disable
// parity and companding so every connected client starts from a known
// baseline.
func initChip(a *api.API, id string, log *logrus.Logger) error {
	log.WithField("device", id).Info("resetting AMBE chip")
	if err := a.Reset(true); err != nil {
		return err
	}

	prodID, err := a.ProdID()
	if err != nil {
		return err
	}
	verString, err := a.VerString()
	if err != nil {
		return err
	}
	log.WithFields(logrus.Fields{"prodid": prodID, "verstring": verString}).Info("found AMBE chip")

	log.Info("disabling parity")
	if err := a.ParityMode(false); err != nil {
		return err
	}

	log.Info("disabling companding")
	return a.Compand(false, false)
}
