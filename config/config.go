package config

import (
	"os"
	"strconv"
	"strings"
)

var gitSHA string
var buildDate string

const prefix = "MEDIA_CONVERTER_"

func lookup(name, fallback string) string {
	value, exists := os.LookupEnv(prefix + name)
	if exists && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func lookupInt(name string, fallback int) int {
	value, exists := os.LookupEnv(prefix + name)
	if !exists {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

// directory holding uploads, downloads and converted audio
func GetDataDir() string {
	return lookup("DATA_DIR", "media-storage")
}

func GetAddr() string {
	return lookup("ADDR", ":8080")
}

// number of jobs allowed to run at once
func GetWorkers() int {
	return lookupInt("WORKERS", 3)
}

func GetMaxDownloadBytes() int64 {
	return int64(lookupInt("MAX_DOWNLOAD_MB", 800)) * 1024 * 1024
}

func GetYtdlpPath() string {
	return lookup("YTDLP", "yt-dlp")
}

func GetFfmpegPath() string {
	return lookup("FFMPEG", "ffmpeg")
}

func GetFfprobePath() string {
	return lookup("FFPROBE", "ffprobe")
}

// codec requested from yt-dlp, also the extension of every output file
func GetAudioFormat() string {
	return strings.ToLower(lookup("AUDIO_FORMAT", "mp3"))
}

func GetLogLevel() string {
	return lookup("LOG_LEVEL", "debug")
}

// "text" or "json"
func GetLogFormat() string {
	return lookup("LOG_FORMAT", "text")
}

// empty when event publishing is disabled
func GetKafkaBrokers() []string {
	raw := lookup("KAFKA_BROKERS", "")
	if raw == "" {
		return nil
	}
	var brokers []string
	for _, b := range strings.Split(raw, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

func GetKafkaTopic() string {
	return lookup("KAFKA_TOPIC", "media-conversions")
}

func GetGitSHA() string {
	if gitSHA == "" {
		return "<not provided>"
	} else {
		return gitSHA
	}
}

func GetBuildDate() string {
	if buildDate == "" {
		return "<not provided>"
	} else {
		return buildDate
	}
}
