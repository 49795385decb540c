// Command kvs-client sends a single set/get/rm request to a kvs-server
// and prints its reply. Subcommands and exit-code behavior are grounded
// on original_source's kvs-client.rs/kvs_client.rs: a reply body is
// printed verbatim, and an rm that comes back "Key not found" is treated
// as a client-side failure (non-zero exit), matching spec.md §6.
package main

import (
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"kvs/internal/codec"
	"kvs/internal/config"
	"kvs/internal/protocol"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("kvs-client", flag.ContinueOnError)
	addr := fs.String("addr", "127.0.0.1:4000", "server address")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	rest := fs.Args()
	if len(rest) < 1 {
		fmt.Fprintln(os.Stderr, "usage: kvs-client [--addr HOST:PORT] {set KEY VALUE|get KEY|rm KEY}")
		return 2
	}

	cfg := &config.ClientConfig{Addr: *addr}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	var rec codec.Record
	sub := rest[0]
	switch sub {
	case "set":
		if len(rest) != 3 {
			fmt.Fprintln(os.Stderr, "usage: kvs-client set KEY VALUE")
			return 2
		}
		rec = codec.Set(rest[1], rest[2])
	case "get":
		if len(rest) != 2 {
			fmt.Fprintln(os.Stderr, "usage: kvs-client get KEY")
			return 2
		}
		rec = codec.Get(rest[1])
	case "rm":
		if len(rest) != 2 {
			fmt.Fprintln(os.Stderr, "usage: kvs-client rm KEY")
			return 2
		}
		rec = codec.Remove(rest[1])
	default:
		fmt.Fprintf(os.Stderr, "unknown subcommand %q\n", sub)
		return 2
	}

	reply, err := send(cfg.Addr, rec)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	if reply != "" {
		fmt.Println(reply)
	}
	if sub == "rm" && reply == protocol.NotFound {
		return 1
	}
	return 0
}

func send(addr string, rec codec.Record) (string, error) {
	conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
	if err != nil {
		return "", fmt.Errorf("connect to %s: %w", addr, err)
	}
	defer conn.Close()

	if _, err := conn.Write(codec.Encode(rec)); err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	if tcpConn, ok := conn.(*net.TCPConn); ok {
		tcpConn.CloseWrite()
	}

	reply, err := io.ReadAll(conn)
	if err != nil {
		return "", fmt.Errorf("read reply: %w", err)
	}
	return string(reply), nil
}
