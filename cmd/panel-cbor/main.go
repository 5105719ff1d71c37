// Command panel-cbor encodes, decodes and exchanges CBOR values with a
// panel device.
//
// Usage:
//
//	panel-cbor <command> [flags] [args]
//
// Commands:
//
//	encode    Encode YAML/JSON from stdin or a file to CBOR
//	decode    Decode CBOR (hex, base64 or raw) to YAML, JSON or diagnostic notation
//	get       GET a device path and print the decoded body
//	put       PUT a YAML/JSON value to a device path
//	post      POST a YAML/JSON value (merge patch on settings)
//	delete    DELETE a device path
//	watch     Follow a device event stream
//	discover  Browse for devices on the local network
//	repl      Interactive encode/decode shell
//
// Examples:
//
//	# Encode a value
//	echo '{limit: 16, mode: eco}' | panel-cbor encode
//
//	# Decode a base64 payload from an event stream
//	echo oWFhAQ== | panel-cbor decode -in base64 -out json
//
//	# Read all settings from a device found via mDNS
//	panel-cbor get -serial SN-0001 /api/v1/settings
//
//	# Follow telemetry, keeping a protocol log
//	panel-cbor watch -url http://device:8080 -follow -protocol-log panel.plog /api/v1/telemetry
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mash-protocol/mash-panel/cmd/panel-cbor/commands"
	"github.com/mash-protocol/mash-panel/pkg/discovery"
	"github.com/mash-protocol/mash-panel/pkg/log"
	"github.com/mash-protocol/mash-panel/pkg/transport"
)

// Version information - set at build time via ldflags
var (
	Version   = "0.1.0"
	BuildDate = "dev"
	GitCommit = "unknown"
)

const usage = `panel-cbor - CBOR tool for the control panel protocol

Usage:
  panel-cbor <command> [flags] [args]

Commands:
  encode    Encode YAML/JSON from stdin or a file to CBOR
  decode    Decode CBOR (hex, base64 or raw) to YAML, JSON or diagnostic notation
  get       GET a device path and print the decoded body
  put       PUT a YAML/JSON value to a device path
  post      POST a YAML/JSON value (merge patch on settings)
  delete    DELETE a device path
  watch     Follow a device event stream
  discover  Browse for devices on the local network
  repl      Interactive encode/decode shell
  version   Show version information

Use "panel-cbor <command> -help" for more information about a command.
`

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) < 1 {
		fmt.Fprint(os.Stderr, usage)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmd, args := args[0], args[1:]

	var err error
	switch cmd {
	case "encode":
		err = runEncode(args)
	case "decode":
		err = runDecode(args)
	case "get":
		err = runGet(ctx, args)
	case "put":
		err = runSend(ctx, http.MethodPut, args)
	case "post":
		err = runSend(ctx, http.MethodPost, args)
	case "delete":
		err = runDelete(ctx, args)
	case "watch":
		err = runWatch(ctx, args)
	case "discover":
		err = runDiscover(ctx, args)
	case "repl":
		err = runREPL(ctx, args)
	case "version", "-version", "--version":
		fmt.Printf("panel-cbor %s (built %s, commit %s)\n", Version, BuildDate, GitCommit)
	case "-h", "-help", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		fmt.Fprint(os.Stderr, usage)
		return 1
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// newFlagSet creates a flag set with the shared usage layout.
func newFlagSet(name, synopsis, args string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `panel-cbor %s - %s

Usage:
  panel-cbor %s [flags] %s

Flags:
`, name, synopsis, name, args)
		fs.PrintDefaults()
	}
	return fs
}

// openInput returns the named file, or stdin for "" and "-".
func openInput(path string) (io.ReadCloser, error) {
	if path == "" || path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	return os.Open(path)
}

func runEncode(args []string) error {
	fs := newFlagSet("encode", "Encode YAML/JSON to CBOR", "[file]")
	out := fs.String("out", commands.WireHex, "Output encoding (hex, base64, raw)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	in, err := openInput(fs.Arg(0))
	if err != nil {
		return err
	}
	defer in.Close()

	return commands.RunEncode(in, os.Stdout, *out)
}

func runDecode(args []string) error {
	fs := newFlagSet("decode", "Decode CBOR to a readable form", "[file]")
	in := fs.String("in", commands.WireHex, "Input encoding (hex, base64, raw)")
	out := fs.String("out", commands.FormatYAML, "Output format (yaml, json, diag)")
	strict := fs.Bool("strict", false, "Reject trailing bytes after the first item")
	if err := fs.Parse(args); err != nil {
		return err
	}

	r, err := openInput(fs.Arg(0))
	if err != nil {
		return err
	}
	defer r.Close()

	return commands.RunDecode(r, os.Stdout, commands.DecodeOptions{
		Input:  *in,
		Output: *out,
		Strict: *strict,
	})
}

// connFlags are the device connection flags shared by the remote commands.
type connFlags struct {
	url         *string
	serial      *string
	token       *string
	timeout     *time.Duration
	protocolLog *string
	verbose     *bool
}

func addConnFlags(fs *flag.FlagSet) *connFlags {
	return &connFlags{
		url:         fs.String("url", envOr("PANEL_URL", "http://localhost:8080"), "Device base URL (env PANEL_URL)"),
		serial:      fs.String("serial", "", "Find the device by serial via mDNS instead of -url"),
		token:       fs.String("token", os.Getenv("PANEL_TOKEN"), "Bearer token (env PANEL_TOKEN)"),
		timeout:     fs.Duration("timeout", transport.DefaultTimeout, "Request timeout"),
		protocolLog: fs.String("protocol-log", "", "Write protocol events to a CBOR log file"),
		verbose:     fs.Bool("v", false, "Print protocol events to stderr"),
	}
}

// client builds the transport client. The returned func closes the
// protocol log.
func (f *connFlags) client(ctx context.Context) (*transport.Client, func(), error) {
	baseURL := *f.url
	if *f.serial != "" {
		browser := discovery.NewBrowser(discovery.BrowserConfig{})
		resolved, err := commands.ResolveDevice(ctx, browser, *f.serial)
		if err != nil {
			return nil, func() {}, fmt.Errorf("failed to find device %s: %w", *f.serial, err)
		}
		baseURL = resolved
	}

	logger, closeLog, err := setupProtocolLogging(*f.protocolLog, *f.verbose)
	if err != nil {
		return nil, func() {}, err
	}

	c, err := transport.NewClient(transport.ClientConfig{
		BaseURL: baseURL,
		Token:   *f.token,
		Timeout: *f.timeout,
		Logger:  logger,
	})
	if err != nil {
		closeLog()
		return nil, func() {}, err
	}
	return c, closeLog, nil
}

func runGet(ctx context.Context, args []string) error {
	fs := newFlagSet("get", "GET a device path", "<path>")
	conn := addConnFlags(fs)
	format := fs.String("format", commands.FormatYAML, "Output format (yaml, json, diag)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		fs.Usage()
		return fmt.Errorf("path required")
	}

	c, closeLog, err := conn.client(ctx)
	if err != nil {
		return err
	}
	defer closeLog()

	return commands.RunGet(ctx, c, fs.Arg(0), *format, os.Stdout)
}

func runSend(ctx context.Context, method string, args []string) error {
	name := strings.ToLower(method)
	fs := newFlagSet(name, method+" a YAML/JSON value", "<path> [value]")
	conn := addConnFlags(fs)
	format := fs.String("format", commands.FormatYAML, "Output format (yaml, json, diag)")
	file := fs.String("f", "", "Read the value from a file ('-' for stdin)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		fs.Usage()
		return fmt.Errorf("path required")
	}

	var body []byte
	switch {
	case *file != "":
		r, err := openInput(*file)
		if err != nil {
			return err
		}
		body, err = io.ReadAll(r)
		r.Close()
		if err != nil {
			return err
		}
	case fs.NArg() >= 2:
		body = []byte(strings.Join(fs.Args()[1:], " "))
	default:
		fs.Usage()
		return fmt.Errorf("value required")
	}

	c, closeLog, err := conn.client(ctx)
	if err != nil {
		return err
	}
	defer closeLog()

	return commands.RunSend(ctx, c, method, fs.Arg(0), body, *format, os.Stdout)
}

func runDelete(ctx context.Context, args []string) error {
	fs := newFlagSet("delete", "DELETE a device path", "<path>")
	conn := addConnFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		fs.Usage()
		return fmt.Errorf("path required")
	}

	c, closeLog, err := conn.client(ctx)
	if err != nil {
		return err
	}
	defer closeLog()

	return commands.RunDelete(ctx, c, fs.Arg(0))
}

func runWatch(ctx context.Context, args []string) error {
	fs := newFlagSet("watch", "Follow a device event stream", "[path]")
	conn := addConnFlags(fs)
	format := fs.String("format", commands.FormatDiag, "Output format (yaml, json, diag)")
	events := fs.String("events", "", "Comma-separated event names to show (default: all)")
	limit := fs.Int("n", 0, "Stop after this many messages (0: no limit)")
	follow := fs.Bool("follow", false, "Reconnect with backoff when the stream ends")
	if err := fs.Parse(args); err != nil {
		return err
	}

	path := "/api/v1/telemetry"
	if fs.NArg() > 0 {
		path = fs.Arg(0)
	}

	c, closeLog, err := conn.client(ctx)
	if err != nil {
		return err
	}
	defer closeLog()

	opts := commands.WatchOptions{Format: *format, Limit: *limit, Follow: *follow}
	if *events != "" {
		opts.Events = strings.Split(*events, ",")
	}
	return commands.RunWatch(ctx, c, path, opts, os.Stdout)
}

func runDiscover(ctx context.Context, args []string) error {
	fs := newFlagSet("discover", "Browse for devices", "")
	timeout := fs.Duration("timeout", discovery.BrowseTimeout, "How long to browse")
	iface := fs.String("interface", "", "Network interface to browse on (default: all)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	browser := discovery.NewBrowser(discovery.BrowserConfig{Interface: *iface, Timeout: *timeout})
	n, err := commands.RunDiscover(ctx, browser, os.Stdout)
	if err != nil {
		return err
	}
	fmt.Printf("Found %d device(s)\n", n)
	return nil
}

func runREPL(ctx context.Context, args []string) error {
	fs := newFlagSet("repl", "Interactive encode/decode shell", "")
	conn := addConnFlags(fs)
	offline := fs.Bool("offline", false, "Start without a device connection")
	history := fs.String("history", "", "History file (default: none)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var c *transport.Client
	if !*offline {
		var closeLog func()
		var err error
		c, closeLog, err = conn.client(ctx)
		if err != nil {
			return err
		}
		defer closeLog()
	}

	repl, err := commands.NewREPL(c, *history)
	if err != nil {
		return err
	}
	repl.Run(ctx)
	return nil
}

// setupProtocolLogging opens the protocol log file and, when verbose,
// mirrors events to stderr. The returned func closes the file.
func setupProtocolLogging(path string, verbose bool) (log.Logger, func(), error) {
	var loggers []log.Logger
	closeFn := func() {}

	if path != "" {
		fl, err := log.NewFileLogger(path)
		if err != nil {
			return nil, closeFn, fmt.Errorf("failed to create protocol logger: %w", err)
		}
		loggers = append(loggers, fl)
		closeFn = func() { fl.Close() }
	}
	if verbose {
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

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
