package main

import (
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/holon-run/edgeshim/pkg/app"
	"github.com/holon-run/edgeshim/pkg/fixture"
	"github.com/holon-run/edgeshim/pkg/record"
	"github.com/spf13/cobra"
)

var (
	invokeEvent    string
	invokeStatic   string
	invokeUpstream string
	invokeRecord   string
)

var invokeCmd = &cobra.Command{
	Use:   "invoke",
	Short: "Send one event to the local handler and print the edge response",
	Long: `Send one event to the local handler and print the edge response.

The event file may be JSON or YAML, either a full {"Records": [...]} event or
a bare request object.

Examples:
  edgeshim invoke --event viewer-request.json
  edgeshim invoke --event req.yaml --static ./public --binary-types image/png
  edgeshim invoke --event req.json --upstream http://127.0.0.1:3000`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if invokeEvent == "" {
			return fmt.Errorf("--event is required")
		}
		ev, err := fixture.Load(invokeEvent)
		if err != nil {
			return err
		}

		appOpts := app.Options{StaticDir: invokeStatic, UpstreamURL: invokeUpstream}
		if err := runPreflight(cmd.Context(), cfg, appOpts, ""); err != nil {
			return err
		}
		s, err := newShim(cfg, appOpts)
		if err != nil {
			return err
		}
		defer s.Close()

		start := time.Now()
		resp, meta, err := s.invoke(cmd.Context(), ev)
		if err != nil {
			return err
		}

		if invokeRecord != "" {
			w, err := record.Open(invokeRecord)
			if err != nil {
				return err
			}
			defer w.Close()
			req, _ := ev.Request()
			if err := w.Write(record.Entry{
				Time:       start.UTC(),
				Source:     invokeEvent,
				RequestID:  meta.AWSRequestID,
				Method:     req.Method,
				URI:        req.URI,
				DurationMS: time.Since(start).Milliseconds(),
				Response:   &resp,
			}); err != nil {
				return err
			}
		}

		out, err := json.MarshalIndent(resp, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode response: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return nil
	},
}

func init() {
	invokeCmd.Flags().StringVarP(&invokeEvent, "event", "e", "", "Path to the event file (JSON or YAML)")
	invokeCmd.Flags().StringVar(&invokeStatic, "static", "", "Serve files from this directory")
	invokeCmd.Flags().StringVar(&invokeUpstream, "upstream", "", "Reverse proxy to this URL")
	invokeCmd.Flags().StringVar(&invokeRecord, "record", "", "Append the result to this NDJSON file")
	rootCmd.AddCommand(invokeCmd)
}
