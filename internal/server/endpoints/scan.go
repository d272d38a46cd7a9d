package endpoints

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/carepill/pillscan/internal/api"
	"github.com/carepill/pillscan/internal/config"
	"github.com/carepill/pillscan/internal/scan"
	"github.com/carepill/pillscan/internal/svcctx"
	"github.com/carepill/pillscan/internal/vision"
)

// ScanRequest is the body for POST /api/scan/envelope. Images are base64
// JPEG, optionally with a data: URL prefix. Meta entries ride along per
// shot for client-side bookkeeping and are not interpreted.
type ScanRequest struct {
	UserID   string           `json:"user_id"`
	Provider string           `json:"provider,omitempty"`
	Images   []string         `json:"images"`
	Meta     []map[string]any `json:"meta,omitempty"`
}

// ScanEndpoint handles POST /api/scan/envelope: one multi-shot envelope
// scan through the vision provider and the merge/reconcile pipeline.
type ScanEndpoint struct {
	ConfigManager *config.Manager
}

func (e *ScanEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/scan/envelope", e.handler
}

func (e *ScanEndpoint) RequiresInit() bool { return true }

func (e *ScanEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	var req ScanRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if len(req.Images) == 0 {
		writeError(w, http.StatusBadRequest, "images are required")
		return
	}

	maxShots := scan.MaxShots
	maxWorkers := 3
	if e.ConfigManager != nil {
		cfg := e.ConfigManager.Get()
		if cfg.MaxShots() < maxShots {
			maxShots = cfg.MaxShots()
		}
		maxWorkers = cfg.MaxWorkers()
	}
	if len(req.Images) > maxShots {
		req.Images = req.Images[:maxShots]
	}

	images := make([][]byte, len(req.Images))
	for i, img := range req.Images {
		data, err := decodeImage(img)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("image %d: %v", i, err))
			return
		}
		images[i] = data
	}

	extractor, err := e.resolveExtractor(r, req.Provider)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	logger := svcctx.LoggerFrom(r.Context())
	rawTexts := extractShots(r, extractor, images, maxWorkers)

	pipeline := svcctx.PipelineFrom(r.Context())
	outcome := pipeline.Process(r.Context(), rawTexts, strings.TrimSpace(req.UserID))

	if logger != nil {
		logger.Info("envelope scan complete",
			"user_id", req.UserID,
			"shots", len(rawTexts),
			"provider", extractor.Name(),
			"no_medicines", outcome.NoMedicinesFound,
		)
	}
	writeJSON(w, http.StatusOK, outcome)
}

func (e *ScanEndpoint) resolveExtractor(r *http.Request, name string) (vision.Extractor, error) {
	reg := svcctx.VisionFrom(r.Context())
	if reg == nil {
		return nil, fmt.Errorf("no vision providers configured")
	}
	if name != "" {
		return reg.Get(name)
	}
	return reg.Default()
}

// extractShots fans the images out over a bounded worker pool. A failed
// shot contributes an empty raw text; it still counts against confidence
// downstream but never fails the scan.
func extractShots(r *http.Request, extractor vision.Extractor, images [][]byte, maxWorkers int) []string {
	if maxWorkers <= 0 {
		maxWorkers = 1
	}
	logger := svcctx.LoggerFrom(r.Context())

	rawTexts := make([]string, len(images))
	sem := make(chan struct{}, maxWorkers)
	var wg sync.WaitGroup

	for i, img := range images {
		wg.Add(1)
		go func(i int, img []byte) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			text, err := extractor.ExtractEnvelope(r.Context(), img)
			if err != nil {
				if logger != nil {
					logger.Warn("shot extraction failed", "shot", i, "error", err)
				}
				return
			}
			rawTexts[i] = text
		}(i, img)
	}
	wg.Wait()
	return rawTexts
}

// decodeImage strips an optional data: URL prefix and base64-decodes.
func decodeImage(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty image")
	}
	if strings.HasPrefix(s, "data:") {
		idx := strings.Index(s, ",")
		if idx < 0 {
			return nil, fmt.Errorf("malformed data URL")
		}
		s = s[idx+1:]
	}
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid base64: %w", err)
	}
	return data, nil
}

func (e *ScanEndpoint) Command(getServerURL func() string) *cobra.Command {
	var userID, provider string

	cmd := &cobra.Command{
		Use:   "scan [images...]",
		Short: "Scan envelope photos and update the medication list",
		Long: `Scan sends one or more photos of the same medication envelope to the
server. The server extracts each photo independently, merges the results by
majority vote, and reconciles the medicines into the user's medication list.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := ScanRequest{UserID: userID, Provider: provider}
			for _, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("read %s: %w", path, err)
				}
				req.Images = append(req.Images, base64.StdEncoding.EncodeToString(data))
			}

			client := api.NewClient(getServerURL())
			var outcome scan.Outcome
			if err := client.Post(cmd.Context(), "/api/scan/envelope", req, &outcome); err != nil {
				return err
			}
			return api.Output(outcome)
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "User ID to reconcile medications for")
	cmd.Flags().StringVar(&provider, "provider", "", "Vision provider (default from config)")
	return cmd
}
