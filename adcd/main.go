// Command adcd runs the acquisition engine against a sampler board (or the
// built-in mock) and serves channel values over a minimal stdin console.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nicekhan23/analog-digital-converter/pkg/adc"
	"github.com/nicekhan23/analog-digital-converter/pkg/config"
	"github.com/nicekhan23/analog-digital-converter/pkg/driver"
	"github.com/nicekhan23/analog-digital-converter/pkg/store"
)

func main() {
	var (
		portFlag   = flag.String("p", "", "Serial port override (e.g., /dev/ttyACM0)")
		configFlag = flag.String("config", "config.yaml", "Configuration file path")
		mockFlag   = flag.Bool("mock", false, "Use mocked device instead of serial port")
		storeFlag  = flag.String("store", "", "Tuning file override")
		printFlag  = flag.Duration("print", 0, "Print channel values at this interval (0 = disabled)")
		listFlag   = flag.Bool("list", false, "List available serial ports and exit")
	)
	flag.Parse()

	if *listFlag {
		ports, err := driver.Ports()
		if err != nil {
			log.Fatalf("Failed to list serial ports: %v", err)
		}
		for _, p := range ports {
			fmt.Println(p.Name)
		}
		return
	}

	// Load configuration
	cfg, err := config.Load(*configFlag)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Override serial port and tuning file if provided via command line
	if *portFlag != "" {
		cfg.Serial.Port = *portFlag
	}
	if *storeFlag != "" {
		cfg.Store.Path = *storeFlag
	}

	var dev driver.Device
	if *mockFlag {
		dev = driver.NewMock(mockOptions(cfg))
		log.Printf("Using mocked device")
	} else {
		dev = driver.NewSerial(cfg.Serial.Port, cfg.Serial.Baud)
		log.Printf("Using serial port %s", cfg.Serial.Port)
	}

	eng, err := adc.New(cfg, dev, store.NewFile(cfg.Store.Path))
	if err != nil {
		log.Fatalf("Failed to build acquisition engine: %v", err)
	}

	if err := run(eng, *printFlag); err != nil {
		log.Fatalf("Fatal: %v", err)
	}
}

// run starts the engine and serves the console until a signal or a quit
// command arrives.
func run(eng *adc.Engine, printInterval time.Duration) error {
	if err := eng.Start(); err != nil {
		return fmt.Errorf("failed to start acquisition: %w", err)
	}
	log.Printf("Acquisition started: %d channels", eng.Channels())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	var tick <-chan time.Time
	if printInterval > 0 {
		ticker := time.NewTicker(printInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	lines := readLines(os.Stdin)

	for {
		select {
		case sig := <-sigCh:
			log.Printf("Received %v, shutting down", sig)
			return eng.Stop()
		case <-tick:
			printValues(eng)
		case line, ok := <-lines:
			if !ok {
				// stdin closed (piped input ended or daemonized); keep
				// running on signals alone.
				lines = nil
				continue
			}
			if quit := execute(eng, line); quit {
				return eng.Stop()
			}
		}
	}
}

func mockOptions(cfg *config.Config) *driver.MockConfig {
	return &driver.MockConfig{
		SampleRate: cfg.Mock.SampleRate,
		FrameSize:  cfg.Mock.FrameSize,
		Period:     cfg.Mock.Period,
		Center:     cfg.Mock.Center,
		Amplitude:  cfg.Mock.Amplitude,
		Jitter:     cfg.Mock.Jitter,
	}
}
