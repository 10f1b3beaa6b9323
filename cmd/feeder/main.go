package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"hieasy-dvr-bridge/internal/config"
	"hieasy-dvr-bridge/internal/feeder"
	"hieasy-dvr-bridge/internal/logging"
)

const exitUsageError = 64

func main() {
	channel := flag.Int("channel", 0, "Camera channel (0-3)")
	streamType := flag.Int("stream-type", config.StreamMain, "Stream type: 0=main, 1=sub")
	host := flag.String("host", config.Env("DVR_HOST", ""), "DVR IP address (or set DVR_HOST)")
	cmdPort := flag.Int("cmd-port", config.EnvInt("DVR_CMD_PORT", config.DefaultDVRCmdPort), "DVR command port")
	mediaPort := flag.Int("media-port", config.EnvInt("DVR_MEDIA_PORT", config.DefaultDVRMediaPort), "DVR media port")
	username := flag.String("username", config.Env("DVR_USERNAME", config.DefaultUsername), "DVR username")
	password := flag.String("password", config.Env("DVR_PASSWORD", config.DefaultPassword), "DVR password")
	verbose := flag.Bool("v", false, "Verbose (debug) logging")
	flag.Parse()

	if *host == "" {
		fmt.Fprintln(os.Stderr, "feeder: DVR host is required: use --host or set DVR_HOST")
		os.Exit(exitUsageError)
	}
	if !config.IsValidChannel(*channel) {
		fmt.Fprintf(os.Stderr, "feeder: invalid channel %d (must be 0-%d)\n", *channel, config.MaxChannels-1)
		os.Exit(exitUsageError)
	}

	if *verbose {
		logging.SetDebugMode(true)
	}

	ctx, cancel := context.WithCancel(context.Background())
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		s := <-sig
		logging.Info("feeder: signal received, shutting down", "signal", s.String())
		cancel()
	}()

	code := feeder.Run(ctx, os.Stdout, feeder.Options{
		Host:       *host,
		CmdPort:    *cmdPort,
		MediaPort:  *mediaPort,
		Username:   *username,
		Password:   *password,
		Channel:    *channel,
		StreamType: *streamType,
	})
	os.Exit(int(code))
}
