package commands

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/chzyer/readline"

	"github.com/mash-protocol/mash-panel/pkg/cbor"
	"github.com/mash-protocol/mash-panel/pkg/transport"
)

// REPL is the interactive encode/decode shell.
type REPL struct {
	client *transport.Client
	rl     *readline.Instance
	out    io.Writer
	format string
}

// NewREPL creates the shell. client may be nil, in which case the device
// commands report that no device is connected.
func NewREPL(client *transport.Client, historyFile string) (*REPL, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "cbor> ",
		HistoryFile:     historyFile,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}

	return &REPL{
		client: client,
		rl:     rl,
		out:    rl.Stdout(),
		format: FormatDiag,
	}, nil
}

// Run starts the interactive command loop.
func (r *REPL) Run(ctx context.Context) {
	defer r.rl.Close()

	r.printHelp()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := r.rl.Readline()
		if err != nil {
			// EOF or interrupt
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(r.out, "Exiting...")
			return
		}

		if quit := r.Execute(ctx, line); quit {
			return
		}
	}
}

// Execute runs one command line. It returns true when the shell should exit.
func (r *REPL) Execute(ctx context.Context, line string) bool {
	input := strings.TrimSpace(line)
	if input == "" {
		return false
	}

	cmd, rest, _ := strings.Cut(input, " ")
	cmd = strings.ToLower(cmd)
	rest = strings.TrimSpace(rest)

	switch cmd {
	case "help", "?":
		r.printHelp()

	case "encode", "e":
		r.cmdEncode(rest)

	case "decode", "d":
		r.cmdDecode(rest)

	case "format", "f":
		r.cmdFormat(rest)

	case "get", "g":
		r.cmdGet(ctx, rest)

	case "put":
		r.cmdSend(ctx, http.MethodPut, rest)

	case "post":
		r.cmdSend(ctx, http.MethodPost, rest)

	case "delete", "del":
		r.cmdDelete(ctx, rest)

	case "quit", "exit", "q":
		fmt.Fprintln(r.out, "Exiting...")
		return true

	default:
		fmt.Fprintf(r.out, "Unknown command: %s (type 'help' for commands)\n", cmd)
	}
	return false
}

func (r *REPL) printHelp() {
	fmt.Fprintln(r.out, `
Panel CBOR Commands:
  Codec:
    encode <yaml|json>   - Encode a value and show its hex bytes
    decode <hex>         - Decode hex bytes and show the value
    format <yaml|json|diag> - Set the output format (current value shown without argument)

  Device:
    get <path>           - GET a device path
    put <path> <value>   - PUT a YAML/JSON value
    post <path> <value>  - POST a YAML/JSON value
    delete <path>        - DELETE a device path

  Other:
    help                 - Show this help
    quit                 - Exit`)
}

func (r *REPL) cmdEncode(arg string) {
	if arg == "" {
		fmt.Fprintln(r.out, "Usage: encode <yaml|json>")
		return
	}
	v, err := ParseInput([]byte(arg))
	if err != nil {
		fmt.Fprintf(r.out, "Error: %v\n", err)
		return
	}
	data := cbor.Encode(v)
	fmt.Fprintf(r.out, "%s  (%d bytes)\n", hex.EncodeToString(data), len(data))
}

func (r *REPL) cmdDecode(arg string) {
	if arg == "" {
		fmt.Fprintln(r.out, "Usage: decode <hex>")
		return
	}
	data, err := DecodeWire([]byte(arg), WireHex)
	if err != nil {
		fmt.Fprintf(r.out, "Error: %v\n", err)
		return
	}
	v, rest, err := cbor.DecodeFirst(data)
	if err != nil {
		fmt.Fprintf(r.out, "Error: %v\n", err)
		return
	}
	r.print(v)
	if len(rest) > 0 {
		fmt.Fprintf(r.out, "(%d trailing bytes ignored)\n", len(rest))
	}
}

func (r *REPL) cmdFormat(arg string) {
	switch arg {
	case "":
		fmt.Fprintf(r.out, "Format: %s\n", r.format)
	case FormatYAML, FormatJSON, FormatDiag:
		r.format = arg
		fmt.Fprintf(r.out, "Format: %s\n", r.format)
	default:
		fmt.Fprintf(r.out, "Unknown format: %s (yaml, json, diag)\n", arg)
	}
}

func (r *REPL) cmdGet(ctx context.Context, path string) {
	if !r.connected() {
		return
	}
	if path == "" {
		fmt.Fprintln(r.out, "Usage: get <path>")
		return
	}
	v, err := r.client.Get(ctx, path)
	if err != nil {
		fmt.Fprintf(r.out, "Error: %v\n", err)
		return
	}
	r.print(v)
}

func (r *REPL) cmdSend(ctx context.Context, method, arg string) {
	if !r.connected() {
		return
	}
	path, body, _ := strings.Cut(arg, " ")
	if path == "" || strings.TrimSpace(body) == "" {
		fmt.Fprintf(r.out, "Usage: %s <path> <value>\n", strings.ToLower(method))
		return
	}
	v, err := ParseInput([]byte(body))
	if err != nil {
		fmt.Fprintf(r.out, "Error: %v\n", err)
		return
	}

	var resp cbor.Value
	if method == http.MethodPut {
		resp, err = r.client.Put(ctx, path, v)
	} else {
		resp, err = r.client.Post(ctx, path, v)
	}
	if err != nil {
		fmt.Fprintf(r.out, "Error: %v\n", err)
		return
	}
	r.print(resp)
}

func (r *REPL) cmdDelete(ctx context.Context, path string) {
	if !r.connected() {
		return
	}
	if path == "" {
		fmt.Fprintln(r.out, "Usage: delete <path>")
		return
	}
	if err := r.client.Delete(ctx, path); err != nil {
		fmt.Fprintf(r.out, "Error: %v\n", err)
		return
	}
	fmt.Fprintln(r.out, "Deleted")
}

func (r *REPL) connected() bool {
	if r.client == nil {
		fmt.Fprintln(r.out, "Not connected (start with -url or -serial)")
		return false
	}
	return true
}

func (r *REPL) print(v cbor.Value) {
	if err := WriteValue(r.out, v, r.format); err != nil {
		fmt.Fprintf(r.out, "Error: %v\n", err)
	}
}
