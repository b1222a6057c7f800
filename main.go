package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"

	"media-converter/acquire"
	"media-converter/config"
	"media-converter/converter"
	"media-converter/events"
	"media-converter/ffmpeg"
	"media-converter/handlers"
	"media-converter/jobs"
	"media-converter/media"
	"media-converter/ytdlp"
)

func newPublisher() events.Publisher {
	brokers := config.GetKafkaBrokers()
	if len(brokers) == 0 {
		log.Infoln("no Kafka brokers configured, job events disabled")
		return events.Nop{}
	}
	p, err := events.NewKafkaPublisher(brokers, config.GetKafkaTopic())
	if err != nil {
		log.Errorf("job events disabled: %v", err)
		return events.Nop{}
	}
	log.Infof("publishing job events to %s on %v", config.GetKafkaTopic(), brokers)
	return p
}

func main() {
	// a missing .env is fine
	envErr := godotenv.Load()

	initLogger()
	if envErr != nil && !errors.Is(envErr, os.ErrNotExist) {
		log.Warnf("load .env: %v", envErr)
	}

	log.Infof("GitSHA: %s", config.GetGitSHA())
	log.Infof("BuildDate: %s", config.GetBuildDate())

	acquire.Init(log)
	events.Init(log)
	ffmpeg.Init(log)
	handlers.Init(log)
	ytdlp.Init(log)

	dataDir := config.GetDataDir()
	if err := media.EnsureDir(dataDir); err != nil {
		log.Panicf("failed to create data dir %s: %v", dataDir, err)
	}
	log.Infof("storing media in %s", dataDir)

	encoder := ffmpeg.New(config.GetFfmpegPath(), config.GetFfprobePath())
	downloader := ytdlp.New(config.GetYtdlpPath())

	checkCtx, cancelCheck := context.WithTimeout(context.Background(), 10*time.Second)
	if version, err := downloader.Version(checkCtx); err != nil {
		log.Warnf("yt-dlp not available, YouTube URLs will fail: %v", err)
	} else {
		log.Infof("yt-dlp version: %s", version)
	}
	cancelCheck()

	svc := converter.New(jobs.NewStore(), converter.Options{
		DataDir:          dataDir,
		AudioFormat:      config.GetAudioFormat(),
		MaxDownloadBytes: config.GetMaxDownloadBytes(),
		Workers:          config.GetWorkers(),
		Encoder:          encoder,
		Extractor:        downloader,
		Publisher:        newPublisher(),
		Logger:           log.WithField("component", "converter"),
	})

	// Initialize Echo
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	h := handlers.New(svc, dataDir, map[string]handlers.VersionSource{
		"ffmpeg": encoder,
		"yt-dlp": downloader,
	})
	h.Register(e)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Infof("listening on %s with %d workers", config.GetAddr(), config.GetWorkers())
		if err := e.Start(config.GetAddr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server stopped")
		}
	}()

	<-ctx.Done()
	log.Infoln("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Errorf("http shutdown: %v", err)
	}
	if err := svc.Shutdown(shutdownCtx); err != nil {
		log.WithFields(logrus.Fields{"error": err}).Warn("jobs still running at exit")
	}
}
