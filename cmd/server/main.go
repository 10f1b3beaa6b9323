package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"hieasy-dvr-bridge/internal/config"
	"hieasy-dvr-bridge/internal/controlplane"
	"hieasy-dvr-bridge/internal/logging"
	"hieasy-dvr-bridge/internal/recorder"
)

func main() {
	configFile := flag.String("config-file", "", "optional KEY=VALUE env file, applied before flag defaults")
	port := flag.Int("port", 0, "control plane HTTP port")
	debug := flag.Bool("debug", false, "enable debug logging")
	noDiscovery := flag.Bool("no-discovery", false, "disable LAN discovery fallback")
	flag.Parse()

	if *configFile != "" {
		if err := loadEnvFile(*configFile); err != nil {
			fmt.Fprintf(os.Stderr, "reading -config-file %s: %v\n", *configFile, err)
			os.Exit(1)
		}
		// re-parse so flags explicitly given on the command line still win
		// over values the config file just injected into the environment.
		flag.Parse()
	}

	if *port == 0 {
		*port = config.EnvInt("DVR_WEB_PORT", config.DefaultWebPort)
	}

	host := config.Env("DVR_HOST", config.DefaultHost)
	cmdPort := config.EnvInt("DVR_CMD_PORT", config.DefaultDVRCmdPort)
	mediaPort := config.EnvInt("DVR_MEDIA_PORT", config.DefaultDVRMediaPort)
	username := config.Env("DVR_USERNAME", config.DefaultUsername)
	password := config.Env("DVR_PASSWORD", config.DefaultPassword)

	feederPath := config.Env("DVR_FEEDER_PATH", "hieasy-dvr-feeder")
	transcoderPath := config.Env("DVR_TRANSCODER_PATH", "ffmpeg")
	rtspPath := config.Env("DVR_RTSP_SERVER_PATH", "")
	rtspConfigPath := config.Env("DVR_RTSP_CONFIG_PATH", "")
	rtspBaseURL := config.Env("DVR_RTSP_BASE_URL", config.DefaultRTSPBaseURL)

	recordEnabled := config.EnvBool("DVR_RECORD_ENABLED", false)
	recordChannels := config.EnvIntList("DVR_RECORD_CHANNELS", []int{0})
	recordDir := config.Env("DVR_RECORD_DIR", "./recordings")
	recordScheduleRaw := config.Env("DVR_RECORD_SCHEDULE", "")
	segmentMinutes := config.EnvInt("DVR_RECORD_SEGMENT_MIN", config.DefaultSegmentMinutes)
	recordStreamType := config.EnvInt("DVR_RECORD_STREAM_TYPE", config.StreamSub)
	retentionHours := config.EnvInt("DVR_RECORD_RETENTION_HR", config.DefaultRetentionHours)
	minDiskMB := config.EnvInt("DVR_RECORD_MIN_DISK_MB", config.DefaultMinDiskMB)
	uploadCommand := config.Env("DVR_UPLOAD_COMMAND", "")
	deleteAfterUpload := config.EnvBool("DVR_DELETE_AFTER_UPLOAD", false)
	discoveryEnabled := config.EnvBool("DVR_DISCOVERY_ENABLED", true) && !*noDiscovery

	if *debug {
		logging.SetDebugMode(true)
	}

	schedule, err := recorder.ParseSchedule(recordScheduleRaw)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid DVR_RECORD_SCHEDULE %q: %v\n", recordScheduleRaw, err)
		os.Exit(1)
	}

	opts := controlplane.Options{
		Port: *port,

		DVRHost:      host,
		DVRCmdPort:   cmdPort,
		DVRMediaPort: mediaPort,
		Username:     username,
		Password:     password,

		FeederPath:     feederPath,
		TranscoderPath: transcoderPath,
		RTSPPath:       rtspPath,
		RTSPConfigPath: rtspConfigPath,
		RTSPBaseURL:    rtspBaseURL,

		EnableDiscovery: discoveryEnabled,

		Recorder: recorder.Options{
			Enabled:           recordEnabled,
			Channels:          recordChannels,
			SegmentMinutes:    segmentMinutes,
			StreamType:        recordStreamType,
			RetentionHours:    retentionHours,
			Schedule:          schedule,
			RecordDir:         recordDir,
			MinDiskMB:         int64(minDiskMB),
			RTSPBaseURL:       rtspBaseURL,
			TranscoderPath:    transcoderPath,
			UploadCommand:     uploadCommand,
			DeleteAfterUpload: deleteAfterUpload,
		},
	}

	logging.Info("hieasy-dvr-bridge starting", "port", *port, "dvr_host", host, "record_enabled", recordEnabled)

	srv := controlplane.New(opts)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := srv.Start(ctx); err != nil {
		logging.Error("control plane exited with error", "err", err)
		os.Exit(1)
	}
}

// loadEnvFile applies KEY=VALUE lines from path to the process environment,
// skipping blank lines and lines starting with #. Existing environment
// variables are left untouched so the real environment still wins over the
// file.
func loadEnvFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if _, exists := os.LookupEnv(key); exists {
			continue
		}
		os.Setenv(key, strings.TrimSpace(value))
	}
	return scanner.Err()
}
