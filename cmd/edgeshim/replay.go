package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/holon-run/edgeshim/pkg/app"
	"github.com/holon-run/edgeshim/pkg/fixture"
	edgelog "github.com/holon-run/edgeshim/pkg/log"
	"github.com/holon-run/edgeshim/pkg/record"
	"github.com/spf13/cobra"
)

var (
	replayDir      string
	replayWatch    bool
	replayStatic   string
	replayUpstream string
	replayRecord   string
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Replay a spool directory of events",
	Long: `Replay every event file (.json, .yaml, .yml) in a spool directory against
one local handler and write one NDJSON line per event.

With --watch, files added to the directory later are replayed as they appear
until the command is interrupted.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if replayDir == "" {
			return fmt.Errorf("--dir is required")
		}

		appOpts := app.Options{StaticDir: replayStatic, UpstreamURL: replayUpstream}
		if err := runPreflight(cmd.Context(), cfg, appOpts, replayDir); err != nil {
			return err
		}

		w := record.NewWriter(cmd.OutOrStdout())
		if replayRecord != "" {
			var err error
			w, err = record.Open(replayRecord)
			if err != nil {
				return err
			}
		}
		defer w.Close()

		s, err := newShim(cfg, appOpts)
		if err != nil {
			return err
		}
		defer s.Close()

		r := &replayer{shim: s, out: w}
		files, err := spoolFiles(replayDir)
		if err != nil {
			return err
		}
		r.replayAll(cmd.Context(), files)
		edgelog.Info("spool replayed", "dir", replayDir, "events", len(files))

		if !replayWatch {
			return nil
		}
		seen := make(map[string]bool, len(files))
		for _, f := range files {
			seen[f] = true
		}
		return watchSpool(cmd.Context(), replayDir, nil, func(path string) bool {
			if seen[path] {
				return true
			}
			if r.replay(cmd.Context(), path) {
				seen[path] = true
				return true
			}
			return false
		})
	},
}

type replayer struct {
	shim *shim
	out  *record.Writer
}

// replayAll forwards every file concurrently through the shared shim.
func (r *replayer) replayAll(ctx context.Context, files []string) {
	var wg sync.WaitGroup
	for _, f := range files {
		wg.Add(1)
		go func(path string) {
			defer wg.Done()
			r.replay(ctx, path)
		}(f)
	}
	wg.Wait()
}

// replay records the outcome of one file and reports whether the file could
// be parsed. Unparseable files are recorded too.
func (r *replayer) replay(ctx context.Context, path string) bool {
	start := time.Now()
	entry := record.Entry{Time: start.UTC(), Source: path}

	ev, err := fixture.Load(path)
	if err != nil {
		entry.Error = err.Error()
		r.write(entry)
		return false
	}
	if req, err := ev.Request(); err == nil {
		entry.Method = req.Method
		entry.URI = req.URI
	}

	resp, meta, err := r.shim.invoke(ctx, ev)
	entry.RequestID = meta.AWSRequestID
	entry.DurationMS = time.Since(start).Milliseconds()
	if err != nil {
		entry.Error = err.Error()
	} else {
		entry.Response = &resp
	}
	r.write(entry)
	return true
}

func (r *replayer) write(e record.Entry) {
	if err := r.out.Write(e); err != nil {
		edgelog.Error("failed to record replay", "source", e.Source, "error", err)
	}
}

// spoolFiles lists the event files in dir, sorted by name.
func spoolFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read spool dir: %w", err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !fixture.IsEventFile(e.Name()) {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}

// watchSpool calls handle for event files created or written in dir until ctx
// ends. A file is handed over again on later writes until handle returns true.
// ready, if set, is called once the watch is in place.
func watchSpool(ctx context.Context, dir string, ready func(), handle func(path string) bool) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create spool watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	if ready != nil {
		ready()
	}

	done := make(map[string]bool)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
				continue
			}
			if done[ev.Name] || !fixture.IsEventFile(ev.Name) {
				continue
			}
			if handle(ev.Name) {
				done[ev.Name] = true
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			edgelog.Warn("spool watcher error", "dir", dir, "error", err)
		}
	}
}

func init() {
	replayCmd.Flags().StringVarP(&replayDir, "dir", "d", "", "Spool directory of event files")
	replayCmd.Flags().BoolVarP(&replayWatch, "watch", "w", false, "Keep watching the directory for new events")
	replayCmd.Flags().StringVar(&replayStatic, "static", "", "Serve files from this directory")
	replayCmd.Flags().StringVar(&replayUpstream, "upstream", "", "Reverse proxy to this URL")
	replayCmd.Flags().StringVar(&replayRecord, "record", "", "Append results to this NDJSON file instead of stdout")
	rootCmd.AddCommand(replayCmd)
}
