// Command simlink-shell is an interactive console for a SimLink simulator.
//
// It opens a session, performs the version exchange and then reads commands
// from the terminal, sending each as a typed request and printing the
// response. Connection drops are handled transparently by the underlying
// channel; the shell keeps working across simulator restarts.
//
// Usage:
//
//	simlink-shell [flags]
//
// Flags:
//
//	-host string          Simulator host (default "127.0.0.1")
//	-port int             Simulator port (default 25100)
//	-framing string       Length-prefix encoding: binary, legacy (default "binary")
//	-config string        Configuration file path (YAML)
//	-protocol-log string  Write protocol capture events to this file
//	-connect-timeout duration  Per-attempt dial timeout (default 30s)
//
// Examples:
//
//	# Connect to a local simulator
//	simlink-shell -port 25100
//
//	# Capture all traffic for later analysis
//	simlink-shell -port 25100 -protocol-log session.plog
//
//	# Talk to an old simulator that still speaks the ASCII prefix
//	simlink-shell -port 25100 -framing legacy
//
// Interactive Commands:
//
//	send <Type> [json-args] - Send a request, e.g.: send Teleport {"x": 1, "y": 2}
//	status                  - Show channel state and connection ID
//	quit                    - Exit the shell
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"gopkg.in/yaml.v3"

	"github.com/simlink-protocol/simlink-go/pkg/client"
	"github.com/simlink-protocol/simlink-go/pkg/log"
	"github.com/simlink-protocol/simlink-go/pkg/transport"
	"github.com/simlink-protocol/simlink-go/pkg/version"
)

// Config holds the shell configuration. File values are overridden by any
// flag set explicitly on the command line.
type Config struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	Framing        string        `yaml:"framing"`
	ProtocolLog    string        `yaml:"protocol_log"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
}

var (
	config     Config
	configFile string
)

func init() {
	flag.StringVar(&config.Host, "host", "127.0.0.1", "Simulator host")
	flag.IntVar(&config.Port, "port", 25100, "Simulator port")
	flag.StringVar(&config.Framing, "framing", "binary", "Length-prefix encoding: binary, legacy")
	flag.StringVar(&config.ProtocolLog, "protocol-log", "", "Write protocol capture events to this file")
	flag.DurationVar(&config.ConnectTimeout, "connect-timeout", 30*time.Second, "Per-attempt dial timeout")
	flag.StringVar(&configFile, "config", "", "Configuration file path (YAML)")
}

func main() {
	flag.Parse()

	if configFile != "" {
		if err := loadConfigFile(configFile); err != nil {
			fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
			os.Exit(1)
		}
	}

	framing, err := parseFraming(config.Framing)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	var logger log.Logger
	if config.ProtocolLog != "" {
		fileLogger, err := log.NewFileLogger(config.ProtocolLog)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to open protocol log: %v\n", err)
			os.Exit(1)
		}
		defer fileLogger.Close()
		logger = fileLogger
	}

	fmt.Printf("simlink-shell %s (protocol v%d)\n", version.Library, version.Protocol)
	fmt.Printf("Connecting to %s:%d...\n", config.Host, config.Port)

	c, err := client.Open(context.Background(), client.Config{
		Host:           config.Host,
		Port:           config.Port,
		Framing:        framing,
		ConnectTimeout: config.ConnectTimeout,
		Logger:         logger,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect failed: %v\n", err)
		os.Exit(1)
	}
	defer c.Close()

	fmt.Printf("Connected (session %s)\n", c.Channel().ConnectionID())

	if err := runShell(c); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

// loadConfigFile applies file values for every flag the user did not set
// explicitly on the command line.
func loadConfigFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var fileConfig Config
	if err := yaml.Unmarshal(data, &fileConfig); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if !set["host"] && fileConfig.Host != "" {
		config.Host = fileConfig.Host
	}
	if !set["port"] && fileConfig.Port != 0 {
		config.Port = fileConfig.Port
	}
	if !set["framing"] && fileConfig.Framing != "" {
		config.Framing = fileConfig.Framing
	}
	if !set["protocol-log"] && fileConfig.ProtocolLog != "" {
		config.ProtocolLog = fileConfig.ProtocolLog
	}
	if !set["connect-timeout"] && fileConfig.ConnectTimeout != 0 {
		config.ConnectTimeout = fileConfig.ConnectTimeout
	}
	return nil
}

func parseFraming(name string) (transport.Framing, error) {
	switch name {
	case "binary":
		return transport.FramingBinary, nil
	case "legacy":
		return transport.FramingLegacyASCII, nil
	default:
		return 0, fmt.Errorf("unknown framing %q (use binary or legacy)", name)
	}
}

func runShell(c *client.Client) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "simlink> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("failed to create readline: %w", err)
	}
	defer rl.Close()

	printHelp(rl)

	for {
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			// EOF
			return nil
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		parts := strings.SplitN(input, " ", 2)
		cmd := strings.ToLower(parts[0])
		rest := ""
		if len(parts) > 1 {
			rest = strings.TrimSpace(parts[1])
		}

		switch cmd {
		case "help", "?":
			printHelp(rl)

		case "send", "s":
			cmdSend(rl, c, rest)

		case "status":
			fmt.Fprintf(rl.Stdout(), "state: %s\n", c.Channel().State())
			fmt.Fprintf(rl.Stdout(), "session: %s\n", c.Channel().ConnectionID())

		case "quit", "exit", "q":
			fmt.Fprintln(rl.Stdout(), "Exiting...")
			return nil

		default:
			fmt.Fprintf(rl.Stdout(), "Unknown command: %s (try 'help')\n", cmd)
		}
	}
}

func cmdSend(rl *readline.Instance, c *client.Client, rest string) {
	if rest == "" {
		fmt.Fprintln(rl.Stdout(), "Usage: send <Type> [json-args]")
		return
	}

	parts := strings.SplitN(rest, " ", 2)
	msgType := parts[0]

	var args map[string]any
	if len(parts) > 1 {
		if err := json.Unmarshal([]byte(parts[1]), &args); err != nil {
			fmt.Fprintf(rl.Stdout(), "Bad arguments: %v\n", err)
			return
		}
	}

	result, err := c.Request(msgType, args)
	if err != nil {
		fmt.Fprintf(rl.Stdout(), "Request failed: %v\n", err)
		return
	}
	if result == nil {
		fmt.Fprintln(rl.Stdout(), "OK")
		return
	}

	pretty, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		fmt.Fprintf(rl.Stdout(), "%v\n", result)
		return
	}
	fmt.Fprintf(rl.Stdout(), "%s\n", pretty)
}

func printHelp(rl *readline.Instance) {
	fmt.Fprint(rl.Stdout(), `Commands:
  send <Type> [json-args] - Send a request, e.g.: send Teleport {"x": 1, "y": 2}
  status                  - Show channel state and connection ID
  help                    - Show this help
  quit                    - Exit the shell
`)
}
