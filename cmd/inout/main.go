package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/alverad/inout/internal/config"
	"github.com/alverad/inout/internal/daemon"
	"github.com/alverad/inout/pkg/protocol"
)

const usage = `usage: inout <command> [args]

commands:
  status                          report daemon liveness without the RPC surface
  health                          daemon status
  stores                          list stores
  store create <name>             create a named store
  store destroy <name>            destroy a named store
  providers <store>               list provider registrations
  processors <store>              list processor registrations
  register <file.json>            register bindings from a file ("-" for stdin)
  dispose <token>                 dispose a registration token
  provide <store> <type>          resolve a value
  process <store> <type> <value>  send a value through processors
  reload                          reload the catalog
  audit recent [limit]            recent audit events
  audit stats                     audit aggregates
  stop                            shut the daemon down
`

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "inout: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	socketPath := flag.String("socket", "", "daemon socket path (default from config)")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg := config.Load()
	path := *socketPath
	if path == "" {
		path = cfg.SocketPath
	}

	// status works against a dead daemon, so it never dials.
	if args[0] == "status" {
		return printStatus(cfg, path)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := daemon.Dial(ctx, path)
	if err != nil {
		return err
	}
	defer client.Close()

	return dispatch(ctx, client, args)
}

func dispatch(ctx context.Context, client *daemon.Client, args []string) error {
	switch args[0] {
	case "health":
		var resp protocol.HealthResponse
		if err := client.Call(ctx, "health", nil, &resp); err != nil {
			return err
		}
		return printJSON(resp)

	case "stores":
		var resp protocol.ListStoresResponse
		if err := client.Call(ctx, "store.list", nil, &resp); err != nil {
			return err
		}
		return printJSON(resp)

	case "store":
		if len(args) < 3 {
			return fmt.Errorf("usage: inout store create|destroy <name>")
		}
		switch args[1] {
		case "create":
			var resp protocol.StoreInfo
			if err := client.Call(ctx, "store.create", protocol.StoreRequest{Name: args[2]}, &resp); err != nil {
				return err
			}
			return printJSON(resp)
		case "destroy":
			return client.Call(ctx, "store.destroy", protocol.StoreRequest{Name: args[2]}, nil)
		}
		return fmt.Errorf("unknown store subcommand %q", args[1])

	case "providers", "processors":
		if len(args) < 2 {
			return fmt.Errorf("usage: inout %s <store>", args[0])
		}
		method := "providers.list"
		if args[0] == "processors" {
			method = "processors.list"
		}
		var resp protocol.RegistrationList
		if err := client.Call(ctx, method, protocol.StoreRequest{Name: args[1]}, &resp); err != nil {
			return err
		}
		return printJSON(resp)

	case "register":
		if len(args) < 2 {
			return fmt.Errorf("usage: inout register <file.json>")
		}
		req, err := readBindings(args[1])
		if err != nil {
			return err
		}
		var resp protocol.RegisterResponse
		if err := client.Call(ctx, "binding.register", req, &resp); err != nil {
			return err
		}
		return printJSON(resp)

	case "dispose":
		if len(args) < 2 {
			return fmt.Errorf("usage: inout dispose <token>")
		}
		var resp protocol.DisposeResponse
		if err := client.Call(ctx, "binding.dispose", protocol.DisposeRequest{Token: args[1]}, &resp); err != nil {
			return err
		}
		return printJSON(resp)

	case "provide":
		if len(args) < 3 {
			return fmt.Errorf("usage: inout provide <store> <type>")
		}
		var resp protocol.ProvideResponse
		req := protocol.ProvideRequest{Store: storeArg(args[1]), Type: args[2]}
		if err := client.Call(ctx, "provide", req, &resp); err != nil {
			return err
		}
		return printJSON(resp)

	case "process":
		if len(args) < 4 {
			return fmt.Errorf("usage: inout process <store> <type> <value>")
		}
		value, err := parseValue(args[3])
		if err != nil {
			return err
		}
		var resp protocol.ProcessResponse
		req := protocol.ProcessRequest{Store: storeArg(args[1]), Type: args[2], Value: value}
		if err := client.Call(ctx, "process", req, &resp); err != nil {
			return err
		}
		return printJSON(resp)

	case "reload":
		return client.Call(ctx, "catalog.reload", nil, nil)

	case "audit":
		if len(args) < 2 {
			return fmt.Errorf("usage: inout audit recent|stats")
		}
		switch args[1] {
		case "recent":
			req := protocol.AuditRecentRequest{Limit: 50}
			if len(args) > 2 {
				n, err := strconv.Atoi(args[2])
				if err != nil {
					return fmt.Errorf("invalid limit %q", args[2])
				}
				req.Limit = n
			}
			var resp protocol.AuditRecentResponse
			if err := client.Call(ctx, "audit.recent", req, &resp); err != nil {
				return err
			}
			return printJSON(resp)
		case "stats":
			var resp protocol.AuditStatsResponse
			if err := client.Call(ctx, "audit.stats", nil, &resp); err != nil {
				return err
			}
			return printJSON(resp)
		}
		return fmt.Errorf("unknown audit subcommand %q", args[1])

	case "stop":
		return client.Call(ctx, "shutdown", nil, nil)
	}

	flag.Usage()
	return fmt.Errorf("unknown command %q", args[0])
}

// printStatus checks the PID file and probes the socket directly, so it
// reports a wedged or half-dead daemon instead of just failing to dial.
func printStatus(cfg *config.Config, socketPath string) error {
	lc := daemon.NewLifecycle(
		filepath.Join(filepath.Dir(cfg.PIDPath), "daemon.lock"),
		cfg.PIDPath,
		socketPath,
	)

	pid, err := lc.PIDFile().Read()
	if err != nil {
		return fmt.Errorf("read %s: %w", lc.PIDFile().Path(), err)
	}

	status := struct {
		Running          bool   `json:"running"`
		PID              int    `json:"pid,omitempty"`
		SocketResponsive bool   `json:"socket_responsive"`
		PIDPath          string `json:"pid_path"`
		SocketPath       string `json:"socket_path"`
	}{
		PID:              pid,
		SocketResponsive: lc.IsSocketResponsive(),
		PIDPath:          lc.PIDFile().Path(),
		SocketPath:       socketPath,
	}
	status.Running = lc.PIDFile().IsProcessAlive() && status.SocketResponsive

	return printJSON(status)
}

// storeArg maps the CLI convention "global" (or "-") to the default store.
func storeArg(s string) string {
	if s == "-" {
		return ""
	}
	return s
}

// parseValue interprets the CLI value argument as JSON when possible, and
// as a bare string otherwise, so `inout process global string hello` works
// without quoting.
func parseValue(s string) (any, error) {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return s, nil
	}
	return v, nil
}

func readBindings(path string) (*protocol.RegisterRequest, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, err
	}

	var req protocol.RegisterRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("parse bindings: %w", err)
	}
	return &req, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
