package framedb

import (
	"compress/gzip"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/tailscale/tailsql/server/tailsql"
	"tailscale.com/tsweb"
)

// AttachAdminRoutes mounts the capture database's debugging surface: a
// tailsql console for ad-hoc queries and a one-click gzipped backup.
func (db *DB) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)

	tsql, err := tailsql.NewServer(tailsql.Options{
		RoutePrefix: "/debug/tailsql/",
	})
	if err != nil {
		log.Fatalf("tailsql server: %v", err)
	}
	tsql.SetDB("sqlite://"+db.path, db.DB, &tailsql.DBOptions{
		Label: "Capture DB",
	})
	debug.Handle("tailsql/", "ad-hoc SQL against the capture database", tsql.NewMux())

	debug.Handle("backup", "snapshot the capture database and download it", http.HandlerFunc(db.handleBackup))
}

// handleBackup snapshots the database with VACUUM INTO and streams the
// result back gzipped. The snapshot file exists only for the request.
func (db *DB) handleBackup(w http.ResponseWriter, r *http.Request) {
	name := fmt.Sprintf("uartlink-backup-%d.db", time.Now().Unix())
	snapshot := filepath.Join(os.TempDir(), name)

	if _, err := db.Exec("VACUUM INTO ?", snapshot); err != nil {
		http.Error(w, fmt.Sprintf("backup failed: %v", err), http.StatusInternalServerError)
		return
	}
	defer func() {
		if err := os.Remove(snapshot); err != nil {
			log.Printf("removing backup snapshot: %v", err)
		}
	}()

	f, err := os.Open(snapshot)
	if err != nil {
		http.Error(w, fmt.Sprintf("backup unreadable: %v", err), http.StatusInternalServerError)
		return
	}
	defer f.Close()

	// Content-Encoding handles the compression, so clients save a plain .db.
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", name))
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Encoding", "gzip")

	gz := gzip.NewWriter(w)
	defer gz.Close()
	if _, err := io.Copy(gz, f); err != nil {
		// Too late for an error status once the body has started.
		log.Printf("streaming backup: %v", err)
	}
}
