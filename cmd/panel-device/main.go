// Command panel-device runs a mock device that speaks the control panel
// protocol: CBOR request and response bodies and a Server-Sent-Events
// telemetry stream carrying base64 CBOR.
//
// It offers:
//   - Settings API backed by SQLite (GET/PUT/POST/DELETE)
//   - Simulated telemetry stream (EVSE, inverter or battery profile)
//   - Echo endpoint for codec conformance checks
//   - Optional mDNS advertisement as _mashpanel._tcp
//
// Usage:
//
//	panel-device [flags]
//
// Flags:
//
//	-port int              HTTP server port (default 8080)
//	-db string             SQLite database path (default "./panel-device.db")
//	-config string         YAML device config (serial, model, type, settings)
//	-token string          Bearer token required by the API (default: none)
//	-interval duration     Telemetry period (default 1s)
//	-advertise             Advertise the device via mDNS
//	-protocol-log string   Write protocol events to a CBOR log file
//	-log-level string      Log level: debug, info, warn, error (default "info")
//
// Examples:
//
//	# Start with defaults
//	panel-device
//
//	# Battery profile with seeded settings and a token
//	panel-device -config battery.yaml -token secret -advertise
//
//	# Use an in-memory database and log every exchange
//	panel-device -db :memory: -protocol-log device.plog -log-level debug
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	stdlog "log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mash-protocol/mash-panel/pkg/discovery"
	"github.com/mash-protocol/mash-panel/pkg/log"
)

// Version information - set at build time via ldflags
var (
	Version   = "0.1.0"
	BuildDate = "dev"
	GitCommit = "unknown"
)

var (
	port        = flag.Int("port", discovery.DefaultPort, "HTTP server port")
	dbPath      = flag.String("db", "./panel-device.db", "SQLite database path")
	configPath  = flag.String("config", "", "YAML device config file")
	token       = flag.String("token", "", "Bearer token required by the API")
	interval    = flag.Duration("interval", time.Second, "Telemetry period")
	advertise   = flag.Bool("advertise", false, "Advertise the device via mDNS")
	protocolLog = flag.String("protocol-log", "", "Write protocol events to a CBOR log file")
	logLevel    = flag.String("log-level", "info", "Log level: debug, info, warn, error")
	showVersion = flag.Bool("version", false, "Show version information")
)

func main() {
	os.Exit(run())
}

func run() int {
	flag.Parse()

	if *showVersion {
		fmt.Printf("panel-device %s (built %s, commit %s)\n", Version, BuildDate, GitCommit)
		return 0
	}

	setupLogging(*logLevel)

	device := DefaultDeviceConfig()
	if *configPath != "" {
		var err error
		device, err = LoadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
	}

	protocolLogger, closeLog, err := setupProtocolLogging(*protocolLog, *logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to create protocol logger: %v\n", err)
		return 1
	}
	defer closeLog()

	srv, err := NewServer(ServerConfig{
		Port:     *port,
		DBPath:   *dbPath,
		Token:    *token,
		Interval: *interval,
		Version:  Version,
		Device:   device,
		Logger:   protocolLogger,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to create server: %v\n", err)
		return 1
	}
	defer srv.Close()

	if *advertise {
		adv := discovery.NewAdvertiser(discovery.AdvertiserConfig{})
		info := &discovery.DeviceInfo{
			Port:    uint16(*port),
			Serial:  device.Serial,
			Model:   device.Model,
			APIPath: discovery.DefaultAPIPath,
			Auth:    discovery.AuthNone,
		}
		if *token != "" {
			info.Auth = discovery.AuthBearer
		}
		if err := adv.Advertise(info); err != nil {
			stdlog.Printf("Warning: mDNS advertisement failed: %v", err)
		} else {
			stdlog.Printf("Advertising %s as %s", info.InstanceName(), discovery.ServiceType)
			defer adv.Stop()
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stdlog.Printf("Starting panel device %s (%s, %s) on http://localhost:%d", device.Serial, device.Model, device.Type, *port)
	stdlog.Printf("Database: %s", *dbPath)
	if *protocolLog != "" {
		stdlog.Printf("Protocol logging to: %s", *protocolLog)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			fmt.Fprintf(os.Stderr, "Error: server failed: %v\n", err)
			return 1
		}
	case <-ctx.Done():
		stdlog.Println("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			stdlog.Printf("Error during shutdown: %v", err)
		}
	}

	return 0
}

func setupLogging(level string) {
	stdlog.SetFlags(stdlog.Ldate | stdlog.Ltime)

	switch level {
	case "debug":
		stdlog.SetFlags(stdlog.Ldate | stdlog.Ltime | stdlog.Lmicroseconds | stdlog.Lshortfile)
	case "warn", "error":
		stdlog.SetFlags(stdlog.Ltime)
	}
}

// setupProtocolLogging combines the file logger and, at debug level, a
// console slog adapter. The returned func closes the file.
func setupProtocolLogging(path, level string) (log.Logger, func(), error) {
	var loggers []log.Logger
	closeFn := func() {}

	if path != "" {
		fl, err := log.NewFileLogger(path)
		if err != nil {
			return nil, closeFn, err
		}
		loggers = append(loggers, fl)
		closeFn = func() { fl.Close() }
	}

	if level == "debug" {
		handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})
		loggers = append(loggers, log.NewSlogAdapter(slog.New(handler)))
	}

	switch len(loggers) {
	case 0:
		return nil, closeFn, nil
	case 1:
		return loggers[0], closeFn, nil
	default:
		return log.NewMultiLogger(loggers...), closeFn, nil
	}
}
