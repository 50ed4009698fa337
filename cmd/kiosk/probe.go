package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-kiosk/internal/log"
	"github.com/teslashibe/go-kiosk/pkg/camera"
	"github.com/teslashibe/go-kiosk/pkg/protocol"
	"github.com/teslashibe/go-kiosk/pkg/transport"
)

var (
	probeLevel   int
	probeUUID    string
	probeTimeout time.Duration
)

var probeCmd = &cobra.Command{
	Use:   "probe <image>",
	Short: "Send one still image to the recognition service and print the answer",
	Args:  cobra.ExactArgs(1),
	RunE:  runProbe,
}

func init() {
	probeCmd.Flags().IntVar(&probeLevel, "level", 2, "Face level to send (1 near, 2 close)")
	probeCmd.Flags().StringVar(&probeUUID, "uuid", "", "Member id hint")
	probeCmd.Flags().DurationVar(&probeTimeout, "timeout", 5*time.Second, "Time to wait for the connection and the answer")
	rootCmd.AddCommand(probeCmd)
}

func runProbe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	camCfg := camera.DefaultConfig()
	camCfg.Width = cfg.Tuning.FrameWidth
	camCfg.Height = cfg.Tuning.FrameHeight
	camCfg.JPEGQuality = cfg.Tuning.JPEGQuality
	jpeg, err := camera.LoadJPEG(args[0], camCfg)
	if err != nil {
		return err
	}

	answers := make(chan json.RawMessage, 1)
	t := transport.New(cfg.LocalServerURL,
		transport.WithReconnect(false),
		transport.WithLogger(log.L()),
	)
	t.OnMessage(func(msg json.RawMessage) {
		select {
		case answers <- msg:
		default:
		}
	})
	defer t.Teardown()

	ctx, cancel := context.WithTimeout(cmd.Context(), probeTimeout)
	defer cancel()

	t.Connect()
	if err := t.WaitForOpen(ctx, probeTimeout); err != nil {
		return fmt.Errorf("connect %s: %w", cfg.LocalServerURL, err)
	}

	log.Debug("connected", "url", cfg.LocalServerURL, "image_bytes", len(jpeg))

	req := protocol.NewRecognitionRequest(base64.StdEncoding.EncodeToString(jpeg), probeLevel, probeUUID)
	sent := time.Now()
	if err := t.Write(req); err != nil {
		return fmt.Errorf("send: %w", err)
	}

	select {
	case msg := <-answers:
		resp, err := protocol.ParseRecognitionResponse(msg)
		if err != nil {
			return err
		}
		out, _ := json.MarshalIndent(resp, "", "  ")
		fmt.Fprintf(cmd.OutOrStdout(), "%s\n", out)
		fmt.Fprintf(cmd.OutOrStdout(), "identity=%q is_new=%v latency=%s\n", resp.Identity(), resp.IsNew, time.Since(sent).Round(time.Millisecond))
		return nil
	case <-ctx.Done():
		return fmt.Errorf("no answer within %s", probeTimeout)
	}
}
