package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/xaenox/hopeconnect/internal/counselors"
	"github.com/xaenox/hopeconnect/internal/models"
	"github.com/xaenox/hopeconnect/internal/profile"
	"github.com/xaenox/hopeconnect/internal/speech"
	"github.com/xaenox/hopeconnect/internal/storage"
)

// localPrefix namespaces the profile used from the terminal.
const localPrefix = "local/"

var (
	audioDir string
	location string
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Talk to HopeConnect from the terminal",
	Long: `Talk to HopeConnect from the terminal. The first run walks you through
onboarding; the profile is kept in the configured storage.

Spoken replies are written as WAV files to --audio-dir when it is set.`,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVar(&audioDir, "audio-dir", "", "write spoken replies as WAV files to this directory")
	chatCmd.Flags().StringVar(&location, "location", "", "your position as \"latitude,longitude\" for counselor search")
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	locator, err := parseLocation(location)
	if err != nil {
		return err
	}

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	var sink speech.Sink = speech.DiscardSink{}
	if audioDir != "" {
		if err := os.MkdirAll(audioDir, 0o755); err != nil {
			return fmt.Errorf("failed to create audio directory: %w", err)
		}
		sink = &speech.WAVSink{Open: wavFileOpener(audioDir)}
	}

	store := profile.NewStore(ctx, storage.WithPrefix(a.storage, localPrefix), a.logger)
	speaker := speech.NewBridge(a.gateway, sink, a.logger)

	t := newTerminal(cmd.InOrStdin(), cmd.OutOrStdout(), store, a.gateway, speaker, locator, a.logger)
	return t.Run(ctx)
}

func wavFileOpener(dir string) func(ctx context.Context) (io.WriteCloser, error) {
	return func(ctx context.Context) (io.WriteCloser, error) {
		name := fmt.Sprintf("hopeconnect-%s.wav", time.Now().Format("20060102-150405.000"))
		return os.Create(filepath.Join(dir, name))
	}
}

// parseLocation reads "latitude,longitude". An empty value means no location.
func parseLocation(raw string) (counselors.Locator, error) {
	if raw == "" {
		return nil, nil
	}

	latRaw, lngRaw, ok := strings.Cut(raw, ",")
	if !ok {
		return nil, fmt.Errorf("invalid location %q: want latitude,longitude", raw)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(latRaw), 64)
	if err != nil || lat < -90 || lat > 90 {
		return nil, fmt.Errorf("invalid latitude %q", latRaw)
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(lngRaw), 64)
	if err != nil || lng < -180 || lng > 180 {
		return nil, fmt.Errorf("invalid longitude %q", lngRaw)
	}
	return counselors.Fixed(models.Coordinates{Latitude: lat, Longitude: lng}), nil
}
