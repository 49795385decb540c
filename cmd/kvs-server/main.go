// Command kvs-server runs the key/value store's TCP server. Flag
// parsing, log-file setup, and graceful shutdown on SIGINT/SIGTERM are
// grounded on the teacher's cmd/server/main.go.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"kvs/internal/backup"
	"kvs/internal/config"
	"kvs/internal/engine"
	"kvs/internal/logger"
	"kvs/internal/server"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:4000", "address to listen on")
	dir := flag.String("dir", ".", "directory holding the log file")
	engineName := flag.String("engine", "kvs", "storage backend: kvs or sled")
	workers := flag.Int("workers", 4, "thread-pool size")
	quiet := flag.Bool("quiet", false, "disable info logging (log only errors)")
	maxRequestBytes := flag.Int64("max-request-bytes", config.DefaultMaxRequestBytes, "maximum request payload size")
	compactionThreshold := flag.Int("compaction-threshold", config.DefaultCompactionThreshold, "mutations between automatic compactions")
	exportDir := flag.String("export", "", "write a compacted, checksummed backup to this directory and exit")
	verifyOnly := flag.Bool("verify", false, "check the log against its index and report the result, then exit")
	flag.Parse()

	cfg := &config.ServerConfig{
		Addr:                *addr,
		DataPath:            *dir,
		Engine:              config.Engine(*engineName),
		Workers:             *workers,
		Quiet:               *quiet,
		MaxRequestBytes:     *maxRequestBytes,
		CompactionThreshold: *compactionThreshold,
		ExportPath:          *exportDir,
		VerifyOnly:          *verifyOnly,
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	logFile, err := os.OpenFile("server.log", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("failed to open log file: %v", err)
	}
	defer logFile.Close()

	logger.Setup(io.MultiWriter(os.Stdout, logFile))
	if cfg.Quiet {
		logger.SetLevel(logger.LevelError)
	} else {
		logger.SetLevel(logger.LevelInfo)
	}

	logger.Info("----------------------------------------")
	logger.Info("kvs-server initializing...")

	eng, err := engine.Open(cfg.DataPath, cfg.CompactionThreshold)
	if err != nil {
		logger.Fatal("failed to open engine: %v", err)
	}
	defer eng.Close()

	shared := engine.NewShared(eng)

	if cfg.VerifyOnly {
		report, err := shared.Verify()
		if err != nil {
			logger.Fatal("verify failed: %v", err)
		}
		logger.Info("verify: consistent=%v orphan=%d missing=%d", report.Consistent, len(report.OrphanKeys), len(report.MissingKeys))
		fmt.Printf("consistent: %v\n", report.Consistent)
		if len(report.OrphanKeys) > 0 {
			fmt.Printf("orphan keys: %v\n", report.OrphanKeys)
		}
		if len(report.MissingKeys) > 0 {
			fmt.Printf("missing keys: %v\n", report.MissingKeys)
		}
		if !report.Consistent {
			os.Exit(1)
		}
		return
	}

	if cfg.ExportPath != "" {
		entries, err := eng.Entries()
		if err != nil {
			logger.Fatal("failed to read entries for export: %v", err)
		}
		if err := backup.Export(entries, cfg.ExportPath); err != nil {
			logger.Fatal("export failed: %v", err)
		}
		logger.Info("export complete, exiting")
		return
	}

	srv := server.New(cfg.Addr, shared, cfg.Workers, cfg.MaxRequestBytes)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		if err := srv.ListenAndServe(); err != nil {
			logger.Fatal("server error: %v", err)
		}
	}()

	logger.Info("server started on %s with %d workers. Press Ctrl+C to stop.", cfg.Addr, cfg.Workers)
	<-sigChan
	logger.Info("shutting down...")
	srv.Close()
}
