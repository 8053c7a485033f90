// Command server runs the evaluation side of the encrypted budget
// planner.
//
// The server listens for client connections and serves one session per
// connection: it adopts the client's cryptographic context and keys,
// evaluates the budget metrics on the received ciphertexts, and returns
// the encrypted results. It never holds a secret key and never sees a
// plaintext amount.
//
// # Configuration File
//
// Create a YAML file with server settings:
//
//	addr: "127.0.0.1:8080"
//	session_timeout: 2m   # per channel operation, 0 disables
//	quiet: false
//
// # Usage
//
//	go run ./cmd/server
//	go run ./cmd/server --addr=127.0.0.1:9000 --once
package main

import (
	"flag"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/naurayesh/fhe-cloud-financial-tool/common"
	"github.com/naurayesh/fhe-cloud-financial-tool/server"
)

func main() {
	var (
		configPath = flag.String("config", "", "Path to YAML config file")
		addr       = flag.String("addr", "", "Listen address (overrides config)")
		once       = flag.Bool("once", false, "Serve a single session, then exit")
	)
	flag.Parse()

	cfg := common.DefaultConfig()
	if *configPath != "" {
		var err error
		if cfg, err = common.LoadConfig(*configPath); err != nil {
			fmt.Printf("Error loading config: %v\n", err)
			os.Exit(1)
		}
	}
	if *addr != "" {
		cfg.Addr = *addr
	}

	log := common.NewLogger(os.Stdout)
	if cfg.Quiet {
		log = common.NewQuietLogger()
	}
	log.Header("Encrypted Budget Planner - Server")

	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		fmt.Printf("Listen error: %v\n", err)
		os.Exit(1)
	}
	defer ln.Close()
	log.Printf("Listening on %s.", ln.Addr())

	srv := server.New(log)
	for {
		conn, err := ln.Accept()
		if err != nil {
			fmt.Printf("Accept error: %v\n", err)
			os.Exit(1)
		}
		serveConn(srv, conn, cfg, log)
		if *once {
			return
		}
	}
}

func serveConn(srv *server.Server, conn net.Conn, cfg *common.Config, log common.Logger) {
	defer conn.Close()
	log.Printf("Client connected from %s.", conn.RemoteAddr())

	sess := srv.NewSession(conn)
	if cfg.SessionTimeout > 0 {
		sess.SetTimeout(time.Duration(cfg.SessionTimeout))
	}
	if err := sess.Run(); err != nil {
		log.Printf("Session error: %v", err)
	}
}
