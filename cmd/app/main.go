package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"speechgen/cfg"
	"speechgen/internal/app/api"
	"speechgen/internal/app/nvidia"
	"speechgen/internal/app/speech"
	"speechgen/pkg/ai"
	"speechgen/pkg/ffmpeg"
	"speechgen/pkg/spectrogram"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "cfg-path", "cfg/cfg.yaml", "path to config file")
	flag.Parse()

	cfg, err := cfg.Load(cfgPath)
	if err != nil {
		log.Fatal("failed to load config: ", err)
	}

	logger := cfg.Log.NewLogger()

	slog.SetDefault(logger)

	logger.Info("config loaded", "path", cfgPath, "engine", cfg.TTS.Engine, "response_mode", cfg.Api.ResponseMode)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	device := nvidia.Detect(ctx, &cfg.Nvidia, nvidia.ExecRunner, logger.WithGroup("nvidia"))

	httpClient := &http.Client{
		Timeout: cfg.TTS.Timeout,
	}

	tts, err := ai.New(&cfg.TTS, httpClient, device)
	if err != nil {
		log.Fatal("failed to init tts engine: ", err)
	}

	if xtts, ok := tts.(*ai.XTTSClient); ok {
		healthCtx, healthCancel := context.WithTimeout(ctx, 10*time.Second)
		if err := xtts.Health(healthCtx); err != nil {
			logger.Warn("tts server is not healthy yet", "err", err)
		}
		healthCancel()
	}

	if err := os.MkdirAll(cfg.Speech.OutputDir, 0o755); err != nil {
		log.Fatal("failed to create output dir: ", err)
	}

	if _, err := os.Stat(cfg.Speech.DefaultSpeakerWav); err != nil {
		logger.Warn("default speaker reference is missing, requests without an upload will fail", "path", cfg.Speech.DefaultSpeakerWav)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	ai.RegisterMetrics(reg)
	speech.RegisterMetrics(reg)
	nvidia.RegisterMetrics(reg)

	if cfg.Ffmpeg.TmpDir == "" {
		cfg.Ffmpeg.TmpDir = cfg.Speech.TmpDir
	}
	ff := ffmpeg.New(&cfg.Ffmpeg)

	health := &api.Health{
		Device:           device,
		TTSModel:         tts.Model(),
		SpectrogramModel: "disabled",
	}

	var renderer speech.SpectrogramRenderer
	if !cfg.Spectrogram.Disabled {
		if !ff.Available() {
			logger.Warn("ffmpeg not found, spectrograms will fail until it is installed")
		}

		r := spectrogram.New(&cfg.Spectrogram, ff)
		renderer = r
		health.SpectrogramModel = r.Name()
	}

	var trimmer speech.ReferenceTrimmer
	if cfg.Speech.MaxReferenceDuration > 0 {
		trimmer = ff
	}

	gen := speech.NewGenerator(&cfg.Speech, tts, renderer, trimmer)

	api := api.NewAPI(&cfg.Api, logger.WithGroup("api"), gen, health, cfg.Speech.MaxUploadBytes, reg)

	router := api.NewRouter()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	srv := &http.Server{
		Addr:           ":" + strconv.Itoa(cfg.Api.Port),
		Handler:        router,
		MaxHeaderBytes: 1 << 20,
	}

	wg := sync.WaitGroup{}

	if device == nvidia.DeviceCUDA && cfg.Nvidia.Monitor {
		wg.Add(1)
		go func() {
			defer wg.Done()

			nvidia.MonitoringLoop(ctx, &cfg.Nvidia, nvidia.ExecRunner, logger.WithGroup("nvidia"))
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer cancel()

		logger.Info("Starting server", "addr", srv.Addr, "device", device, "model", tts.Model())

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("ListenAndServe finished", "err", err)
		}
	}()

	select {
	case <-ctx.Done():
	case <-stop:
		logger.Info("Interrupt triggerred")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown server", "err", err)
	}

	cancel()

	wg.Wait()
}
