package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	_ "modernc.org/sqlite"

	uartlink "github.com/banshee-data/uartlink"
	"github.com/banshee-data/uartlink/internal/api"
	"github.com/banshee-data/uartlink/internal/config"
	"github.com/banshee-data/uartlink/internal/framedb"
	"github.com/banshee-data/uartlink/internal/framemux"
	"github.com/banshee-data/uartlink/internal/fsutil"
	"github.com/banshee-data/uartlink/internal/version"
)

var (
	listen        = flag.String("listen", ":8080", "HTTP listen address")
	device        = flag.String("device", uartlink.DefaultDevice, "Serial device to open")
	baudRate      = flag.Int("baud", uartlink.DefaultBaudRate, "Baud rate")
	markerFlag    = flag.String("marker", "0xAA", "Frame marker byte, hex (\"0xAA\") or decimal (\"170\")")
	maxPacket     = flag.Int("max-packet", uartlink.DefaultMaxPacketSize, "Maximum payload size in bytes")
	dataLenFlag   = flag.Int("data-len", 0, "Expected data frame payload length (0 reads command frames)")
	configPath    = flag.String("config", "", "Path to a JSON link config file (explicit flags override it)")
	dbFile        = flag.String("db", "uartlink.db", "Path to the SQLite database file")
	migrationsDir = flag.String("migrations", "migrations", "Path to the migrations directory")
	devMode       = flag.Bool("dev", false, "Run against a mock link emitting synthetic frames")
	disableUART   = flag.Bool("disable-uart", false, "Serve HTTP without opening any link")
	showVersion   = flag.Bool("version", false, "Print version and exit")
)

const mockFrameInterval = 500 * time.Millisecond

// runConfig is the resolved daemon configuration. Precedence, lowest to
// highest: normalize defaults, the config file, flags set explicitly on the
// command line.
type runConfig struct {
	link    uartlink.Config
	dataLen int
	poll    time.Duration
}

func resolveRunConfig(fsys fsutil.FileSystem, configFile string, explicit map[string]bool) (runConfig, error) {
	var rc runConfig

	if configFile != "" {
		fileCfg, err := config.LoadLinkConfig(fsys, configFile)
		if err != nil {
			return runConfig{}, err
		}
		rc.link = fileCfg.Link()
		rc.dataLen = fileCfg.GetDataLen()
		rc.poll = fileCfg.GetPollTimeout()
	}

	if explicit["device"] {
		rc.link.Device = *device
	}
	if explicit["baud"] {
		rc.link.BaudRate = *baudRate
	}
	if explicit["max-packet"] {
		rc.link.MaxPacketSize = *maxPacket
	}
	if explicit["data-len"] {
		rc.dataLen = *dataLenFlag
	}
	if explicit["marker"] {
		v, err := strconv.ParseUint(strings.TrimSpace(*markerFlag), 0, 8)
		if err != nil {
			return runConfig{}, fmt.Errorf("invalid marker %q: %v", *markerFlag, err)
		}
		if v == 0 {
			return runConfig{}, fmt.Errorf("marker must be non-zero, got %q", *markerFlag)
		}
		rc.link.Marker = byte(v)
	}

	if rc.dataLen < 0 {
		return runConfig{}, fmt.Errorf("data-len must be non-negative, got %d", rc.dataLen)
	}

	link, err := rc.link.Normalize()
	if err != nil {
		return runConfig{}, err
	}
	rc.link = link
	return rc, nil
}

// explicitFlags reports which flags were set on the command line, so defaults
// do not clobber config file values.
func explicitFlags() map[string]bool {
	explicit := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { explicit[f.Name] = true })
	return explicit
}

// serveHTTP runs the API server until ctx is cancelled, then drains it.
func serveHTTP(ctx context.Context, addr string, handler http.Handler) {
	server := &http.Server{Addr: addr, Handler: handler}

	go func() {
		log.Printf("HTTP server listening on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	<-ctx.Done()

	// Give in-flight requests a second to finish before forcing the close.
	drainCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := server.Shutdown(drainCtx); err != nil {
		log.Printf("HTTP shutdown: %v", err)
		if err := server.Close(); err != nil {
			log.Printf("HTTP close: %v", err)
		}
	}
	log.Print("HTTP server stopped")
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("uartmon %s\n", version.String())
		return
	}

	// `uartmon migrate <action>` manages the schema and exits.
	if flag.Arg(0) == "migrate" {
		framedb.RunMigrateCommand(flag.Args()[1:], *dbFile, *migrationsDir)
		return
	}

	if *listen == "" {
		log.Fatal("listen address must not be empty")
	}

	rc, err := resolveRunConfig(fsutil.OSFileSystem{}, *configPath, explicitFlags())
	if err != nil {
		log.Fatalf("Invalid link configuration: %v", err)
	}

	d, err := framedb.NewDB(*dbFile)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer d.Close()

	shouldExit, err := d.CheckAndPromptMigrations(*migrationsDir)
	if err != nil {
		log.Printf("Migration check: %v", err)
	}
	if shouldExit {
		os.Exit(1)
	}

	opts := framemux.Options{DataLen: rc.dataLen, PollTimeout: rc.poll}

	var mux framemux.MuxInterface
	switch {
	case *disableUART:
		log.Print("UART disabled; serving HTTP only")
		mux = framemux.NewDisabledMux()
	case *devMode:
		mux, err = framemux.NewMockMux(rc.link, mockFrameInterval, opts)
		if err != nil {
			log.Fatalf("Failed to create mock link: %v", err)
		}
		log.Printf("Running in dev mode with a mock link (marker %#02x)", rc.link.Marker)
	default:
		conn, err := uartlink.Open(rc.link)
		if err != nil {
			log.Fatalf("Failed to open %s: %v", rc.link.Device, err)
		}
		mux = framemux.NewMux(conn, opts)
	}
	defer mux.Close()

	sessionID, err := d.BeginSession(rc.link.Device, rc.link.BaudRate, rc.link.Marker)
	if err != nil {
		log.Fatalf("Failed to begin capture session: %v", err)
	}
	log.Printf("Capture session %s on %s @ %d baud (marker %#02x)",
		sessionID, rc.link.Device, rc.link.BaudRate, rc.link.Marker)

	// three routines to wait out: monitor, recorder, HTTP server
	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// the monitor owns all IO on the link; everything else sees frames
	// through subscriptions
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := mux.Monitor(ctx); err != nil && err != context.Canceled {
			log.Printf("link monitor: %v", err)
		}
		log.Print("link monitor stopped")
	}()

	// record every frame crossing the link into the capture log
	wg.Add(1)
	go func() {
		defer wg.Done()
		id, c := mux.Subscribe()
		defer mux.Unsubscribe(id)
		for {
			select {
			case frame, ok := <-c:
				if !ok {
					log.Print("recorder stopped: subscription closed")
					return
				}
				if err := framemux.HandleFrame(d, sessionID, frame); err != nil {
					log.Printf("recording frame: %v", err)
				}
			case <-ctx.Done():
				log.Print("recorder stopped")
				return
			}
		}
	}()

	// serve the API plus whatever admin routes the mux and the db contribute
	wg.Add(1)
	go func() {
		defer wg.Done()

		httpMux := api.NewServer(mux, d, rc.link, rc.dataLen).ServeMux()
		mux.AttachAdminRoutes(httpMux)
		d.AttachAdminRoutes(httpMux)

		serveHTTP(ctx, *listen, api.LoggingMiddleware(httpMux))
	}()

	wg.Wait()
	log.Print("shutdown complete")
}
