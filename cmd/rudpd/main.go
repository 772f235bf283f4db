// Package main implements rudpd, a standalone daemon that binds a UDP
// socket and serves it through the RUDP multiplexer: a reference host for
// the transport, analogous to the teacher's HTML5 gateway server binary.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/gorudp/rudp/internal/clock"
	"github.com/gorudp/rudp/internal/config"
	"github.com/gorudp/rudp/internal/echo"
	"github.com/gorudp/rudp/internal/logging"
	"github.com/gorudp/rudp/internal/transport/rudp"
)

var (
	appName    = "rudpd"
	appVersion = "dev" // injected at build time via -ldflags
)

func main() {
	args, action := parseFlags()
	if action != "" {
		return
	}
	if err := run(args); err != nil {
		log.Fatalln(err)
	}
}

// parsedArgs holds the parsed command line arguments.
type parsedArgs struct {
	host          string
	port          string
	logLevel      string
	relayEnabled  bool
	cryptoEnabled bool
}

// parseFlags parses command line flags and returns the parsed args.
// Returns a non-empty action string if help/version was shown (the
// caller should return early in that case).
func parseFlags() (parsedArgs, string) {
	return parseFlagsWithArgs(os.Args[1:])
}

func parseFlagsWithArgs(args []string) (parsedArgs, string) {
	fs := flag.NewFlagSet("rudpd", flag.ContinueOnError)
	hostFlag := fs.String("host", "", "public IP this node advertises as its own address")
	portFlag := fs.String("port", "", "UDP port to bind")
	logLevelFlag := fs.String("log-level", "", "log level (debug, info, warn, error)")
	relayFlag := fs.Bool("relay", false, "relay datagrams addressed to a different public IP")
	cryptoFlag := fs.Bool("crypto", false, "negotiate a confidential channel (Curve25519 + authenticated encryption) on new connections")
	helpFlag := fs.Bool("help", false, "show help")
	versionFlag := fs.Bool("version", false, "show version")

	_ = fs.Parse(args)

	if *helpFlag {
		showHelp()
		return parsedArgs{}, "help"
	}
	if *versionFlag {
		showVersion()
		return parsedArgs{}, "version"
	}

	return parsedArgs{
		host:          strings.TrimSpace(*hostFlag),
		port:          strings.TrimSpace(*portFlag),
		logLevel:      strings.TrimSpace(*logLevelFlag),
		relayEnabled:  *relayFlag,
		cryptoEnabled: *cryptoFlag,
	}, ""
}

// run loads configuration, binds the socket, and serves until the process
// receives an interrupt or termination signal.
func run(args parsedArgs) error {
	opts := config.LoadOptions{
		Host:          args.host,
		Port:          args.port,
		LogLevel:      args.logLevel,
		RelayEnabled:  args.relayEnabled,
		CryptoEnabled: args.cryptoEnabled,
	}

	cfg, err := config.LoadWithOverrides(opts)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := logging.New(os.Stderr, logging.ParseLevel(cfg.Logging.Level))

	publicIP := cfg.Relay.PublicIP
	if publicIP == "" {
		publicIP = cfg.Socket.Host
	}
	port, err := strconv.Atoi(cfg.Socket.Port)
	if err != nil {
		return fmt.Errorf("invalid socket port %q: %w", cfg.Socket.Port, err)
	}

	mux, socket, err := newMultiplexer(cfg, publicIP, port, logger)
	if err != nil {
		return err
	}

	logger.Info("%s %s listening on %s:%d (relay=%t crypto=%t)",
		appName, appVersion, publicIP, port, cfg.Relay.Enabled, cfg.Crypto.Enabled)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() { serveErr <- socket.Serve(ctx, mux) }()

	<-ctx.Done()
	logger.Info("%s: shutting down", appName)
	if err := mux.Shutdown(); err != nil {
		logger.Warn("%s: error during shutdown: %v", appName, err)
	}
	<-serveErr
	return nil
}

// newMultiplexer binds the UDP socket and wires a Multiplexer to it,
// selecting the crypto or plaintext connection factory per configuration.
func newMultiplexer(cfg *config.Config, publicIP string, port int, logger logging.Logger) (*rudp.Multiplexer, *rudp.UDPSocket, error) {
	socket, err := rudp.ListenUDPSocket(&net.UDPAddr{IP: net.ParseIP(cfg.Socket.Host), Port: port}, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to bind udp socket: %w", err)
	}

	rc := clock.NewRealClock()
	handlerFactory := &echo.Factory{Logger: logger}

	var factory rudp.ConnectionFactory
	if cfg.Crypto.Enabled {
		factory = &rudp.CryptoConnectionFactory{HandlerFactory: handlerFactory, Clock: rc, Logger: logger}
	} else {
		factory = &rudp.SimpleConnectionFactory{HandlerFactory: handlerFactory, Clock: rc, Logger: logger}
	}

	mux := rudp.NewMultiplexer(factory, socket, publicIP, port, cfg.Relay.Enabled, logger)
	return mux, socket, nil
}

func showHelp() {
	fmt.Println(appName)
	fmt.Println("USAGE: rudpd [options]")
	fmt.Println("OPTIONS:")
	fmt.Println("  -host         Public IP this node advertises (default 0.0.0.0)")
	fmt.Println("  -port         UDP port to bind (default 9000)")
	fmt.Println("  -log-level    Log level: debug, info, warn, error (default info)")
	fmt.Println("  -relay        Relay datagrams addressed to a different public IP")
	fmt.Println("  -crypto       Negotiate a confidential channel on new connections")
	fmt.Println("  -version      Show version information")
	fmt.Println("  -help         Show this help message")
	fmt.Println("ENVIRONMENT VARIABLES: RUDP_HOST, RUDP_PORT, RUDP_LOG_LEVEL, RUDP_RELAY_ENABLED, RUDP_PUBLIC_IP, RUDP_CRYPTO_ENABLED")
	fmt.Println("EXAMPLES: rudpd -host 0.0.0.0 -port 9000 -relay")
}

func showVersion() {
	fmt.Printf("%s %s\n", appName, appVersion)
}
