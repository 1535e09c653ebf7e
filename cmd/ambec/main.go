// Command ambec is a thin diagnostic client for an AMBE device, local or
// remote. It supplements original_source/ambec.cc's file-oriented client
// with a stdin/stdout-oriented one, per this module's design: audio file
// I/O stays outside the module's scope, so ambec only ever moves raw
// little-endian PCM and length-prefixed AMBE bit frames through pipes.
package main

import (
	"encoding/binary"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/janakj/ambe/pkg/api"
	"github.com/janakj/ambe/pkg/config"
	"github.com/janakj/ambe/pkg/remote"
	"github.com/janakj/ambe/pkg/scheduler"
	"github.com/janakj/ambe/pkg/serialdev"
	"github.com/janakj/ambe/pkg/uri"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML/JSON config file")
	deviceURI := flag.String("u", "", "AMBE device URI, e.g. usb:/dev/ttyUSB0 or ws:host:port (overrides config)")
	channel := flag.Int("c", 0, "channel to use")
	rateArg := flag.String("x", "", "AMBE_RATET index or 6 comma-delimited AMBE_RATEP words (for the rate/encode/decode commands)")
	hard := flag.Bool("hard", true, "perform a hardware reset for the reset command (soft reset otherwise)")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: ambec [options] reset|info|rate|encode|decode")
		os.Exit(1)
	}
	cmd := flag.Arg(0)

	cfg, err := config.LoadClientConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if *deviceURI != "" {
		cfg.DeviceURI = *deviceURI
	}

	log := logrus.New()
	if lvl, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(lvl)
	}

	if err := run(cfg, cmd, *channel, *rateArg, *hard, log); err != nil {
		fmt.Fprintln(os.Stderr, "ambec:", err)
		os.Exit(1)
	}
}

// session bundles the API façade with whatever cleanup its underlying
// transport needs.
type session struct {
	api   *api.API
	close func() error
}

// dial opens the device named by cfg.DeviceURI, running the same power-on
// sequence original_source/ambec.cc's RunUSBMode does for a local device,
// or trusting the server's own initialization (RunGRPCMode's behavior) for
// a remote one.
func dial(cfg *config.ClientConfig) (*session, error) {
	u, err := uri.Parse(cfg.DeviceURI)
	if err != nil {
		return nil, fmt.Errorf("parsing device URI: %w", err)
	}

	switch u.Type {
	case uri.USB:
		dev := serialdev.NewUsb3003(u.Authority)
		sched, err := scheduler.NewMultiQueueScheduler(dev, dev.Channels())
		if err != nil {
			return nil, err
		}
		a := api.New(dev, sched, true)

		if err := dev.Start(); err != nil {
			return nil, fmt.Errorf("starting device: %w", err)
		}
		if err := sched.Start(); err != nil {
			dev.Stop()
			return nil, fmt.Errorf("starting scheduler: %w", err)
		}
		if err := a.Reset(true); err != nil {
			return nil, fmt.Errorf("resetting device: %w", err)
		}
		if err := a.ParityMode(false); err != nil {
			return nil, fmt.Errorf("disabling parity: %w", err)
		}
		if err := a.Compand(false, false); err != nil {
			return nil, fmt.Errorf("disabling companding: %w", err)
		}

		return &session{api: a, close: func() error {
			sched.Stop()
			return dev.Stop()
		}}, nil

	case uri.WS:
		dev := remote.NewRemoteDevice("ws://" + u.Authority + "/bind")
		sched := scheduler.NewFifoScheduler(dev)
		a := api.New(dev, sched, true)

		if err := dev.Start(); err != nil {
			return nil, fmt.Errorf("connecting to %s: %w", cfg.DeviceURI, err)
		}
		if err := sched.Start(); err != nil {
			dev.Stop()
			return nil, fmt.Errorf("starting scheduler: %w", err)
		}

		return &session{api: a, close: func() error {
			sched.Stop()
			return dev.Stop()
		}}, nil

	default:
		return nil, fmt.Errorf("unsupported device URI scheme %q", u.Scheme)
	}
}

func run(cfg *config.ClientConfig, cmd string, channel int, rateArg string, hard bool, log *logrus.Logger) error {
	s, err := dial(cfg)
	if err != nil {
		return err
	}
	defer s.close()

	switch cmd {
	case "reset":
		return s.api.Reset(hard)
	case "info":
		return printInfo(s.api)
	case "rate":
		return setRate(s.api, channel, rateArg)
	case "encode":
		if err := setRate(s.api, channel, rateArg); err != nil {
			return err
		}
		return encode(s.api, channel, os.Stdin, os.Stdout)
	case "decode":
		if err := setRate(s.api, channel, rateArg); err != nil {
			return err
		}
		return decode(s.api, channel, os.Stdin, os.Stdout)
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func printInfo(a *api.API) error {
	prodID, err := a.ProdID()
	if err != nil {
		return err
	}
	verString, err := a.VerString()
	if err != nil {
		return err
	}
	fmt.Printf("Product ID: %s\nVersion: %s\n", prodID, verString)
	return nil
}

func setRate(a *api.API, channel int, rateArg string) error {
	if rateArg == "" {
		return nil
	}
	r, err := api.ParseRate(rateArg)
	if err != nil {
		return fmt.Errorf("invalid rate %q: %w", rateArg, err)
	}
	if err := a.Rate(channel, r); err != nil {
		return err
	}
	return a.Init(channel, true, true)
}

// encode reads consecutive 20ms little-endian PCM frames from r and writes
// each compressed frame to w as a 2-byte little-endian bit count followed
// by ceil(bits/8) packed bytes.
func encode(a *api.API, channel int, r io.Reader, w io.Writer) error {
	for {
		var frame api.AudioFrame
		if err := binary.Read(r, binary.LittleEndian, &frame); err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("reading PCM frame: %w", err)
		}

		result := <-a.Compress(channel, frame)
		if result.Err != nil {
			return result.Err
		}

		if err := binary.Write(w, binary.LittleEndian, uint16(result.Ambe.Bits)); err != nil {
			return err
		}
		if _, err := w.Write(result.Ambe.Data); err != nil {
			return err
		}
	}
}

// decode reads the encode format back from r and writes decompressed
// little-endian PCM frames to w.
func decode(a *api.API, channel int, r io.Reader, w io.Writer) error {
	for {
		var bits uint16
		if err := binary.Read(r, binary.LittleEndian, &bits); err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("reading bit count: %w", err)
		}

		data := make([]byte, (int(bits)+7)/8)
		if _, err := io.ReadFull(r, data); err != nil {
			return fmt.Errorf("reading AMBE frame: %w", err)
		}

		result := <-a.Decompress(channel, api.AmbeFrame{Bits: int(bits), Data: data})
		if result.Err != nil {
			return result.Err
		}

		if err := binary.Write(w, binary.LittleEndian, result.Samples); err != nil {
			return err
		}
	}
}
