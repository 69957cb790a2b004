// Command scan-server stores scans, reconstructs them on request and, when a
// scanner is attached, captures new scans over serial.
//
//	scan-server -port /dev/ttyUSB0 -db scans.db
//	scan-server -dev fixtures/scan.txt
//	scan-server migrate status
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/scanmesh/internal/api"
	"github.com/banshee-data/scanmesh/internal/config"
	"github.com/banshee-data/scanmesh/internal/db"
	"github.com/banshee-data/scanmesh/internal/scan/storage/sqlite"
	"github.com/banshee-data/scanmesh/internal/serialmux"
	"github.com/banshee-data/scanmesh/internal/version"
)

type serverFlags struct {
	listen         string
	dbPath         string
	port           string
	baud           int
	devFixture     string
	replayInterval time.Duration
	initCommands   string
	configPath     string
}

func parseServerFlags(args []string) (*serverFlags, []string, error) {
	fs := flag.NewFlagSet("scan-server", flag.ContinueOnError)
	f := &serverFlags{}
	fs.StringVar(&f.listen, "listen", ":8080", "Listen address")
	fs.StringVar(&f.dbPath, "db", "scans.db", "SQLite database path")
	fs.StringVar(&f.port, "port", "", "Scanner serial port, empty to run without a scanner")
	fs.IntVar(&f.baud, "baud", serialmux.DefaultBaudRate, "Scanner baud rate")
	fs.StringVar(&f.devFixture, "dev", "", "Replay this scan file instead of opening a serial port")
	fs.DurationVar(&f.replayInterval, "replay-interval", 5*time.Millisecond, "Delay between replayed lines in -dev mode")
	fs.StringVar(&f.initCommands, "init", "", "Comma-separated commands sent to the scanner after opening")
	fs.StringVar(&f.configPath, "config", "", "Reconstruction config JSON")
	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	if f.listen == "" {
		return nil, nil, errors.New("listen address is required")
	}
	return f, fs.Args(), nil
}

func main() {
	f, rest, err := parseServerFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		log.Fatal(err)
	}

	if len(rest) > 0 {
		if rest[0] != "migrate" {
			log.Fatalf("unknown subcommand %q", rest[0])
		}
		if err := db.RunMigrateCommand(rest[1:], f.dbPath, os.Stdout); err != nil {
			log.Fatal(err)
		}
		return
	}

	log.Printf("scan-server %s (%s)", version.Version, version.GitSHA)
	if err := serve(f); err != nil {
		log.Fatal(err)
	}
}

// openScanner returns the configured mux, or nil when no scanner is attached.
func openScanner(f *serverFlags) (serialmux.SerialMuxInterface, error) {
	var commands []string
	for _, c := range strings.Split(f.initCommands, ",") {
		if c = strings.TrimSpace(c); c != "" {
			commands = append(commands, c)
		}
	}

	switch {
	case f.devFixture != "":
		data, err := os.ReadFile(f.devFixture)
		if err != nil {
			return nil, fmt.Errorf("failed to open fixtures file: %w", err)
		}
		m := serialmux.NewReplaySerialMux(data, f.replayInterval)
		m.SetInitCommands(commands...)
		return m, nil
	case f.port != "":
		m, err := serialmux.NewRealSerialMux(f.port, serialmux.PortOptions{BaudRate: f.baud})
		if err != nil {
			return nil, fmt.Errorf("failed to open scanner port %s: %w", f.port, err)
		}
		m.SetInitCommands(commands...)
		return m, nil
	}
	return nil, nil
}

// newHandler mounts the API, the admin routes and request logging.
func newHandler(database *db.DB, scanner serialmux.SerialMuxInterface, rc *config.ReconstructionConfig) http.Handler {
	server := api.NewServer(
		sqlite.NewScanStore(database.DB),
		sqlite.NewMeshRunStore(database.DB),
		scanner,
		rc,
	)
	mux := server.ServeMux()
	database.AttachAdminRoutes(mux)
	if scanner != nil {
		scanner.AttachAdminRoutes(mux)
	} else {
		serialmux.NewDisabledSerialMux().AttachAdminRoutes(mux)
	}
	return api.LoggingMiddleware(mux)
}

func serve(f *serverFlags) error {
	rc := config.EmptyReconstructionConfig()
	if f.configPath != "" {
		var err error
		if rc, err = config.LoadReconstructionConfig(f.configPath); err != nil {
			return err
		}
	}

	database, err := db.NewDB(f.dbPath)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	scanner, err := openScanner(f)
	if err != nil {
		return err
	}

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if scanner != nil {
		defer scanner.Close()

		// run the monitor routine to manage IO on the serial port
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := scanner.Monitor(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("failed to monitor serial port: %v", err)
			}
			log.Print("monitor routine terminated")
		}()

		if err := scanner.Initialize(); err != nil {
			return fmt.Errorf("failed to initialize scanner: %w", err)
		}
	} else {
		log.Print("no scanner configured; capture endpoints disabled")
	}

	httpServer := &http.Server{
		Addr:              f.listen,
		Handler:           newHandler(database, scanner, rc),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Printf("listening on %s", f.listen)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case <-ctx.Done():
	case err := <-errc:
		if err != nil {
			stop()
			wg.Wait()
			return fmt.Errorf("failed to start server: %w", err)
		}
	}
	log.Println("shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
		if err := httpServer.Close(); err != nil {
			log.Printf("HTTP server force close error: %v", err)
		}
	}

	stop()
	wg.Wait()
	log.Printf("Graceful shutdown complete")
	return nil
}
