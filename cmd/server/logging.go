package main

import (
	"io"
	"os"

	"github.com/m2tx/live_bridge/internal/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

func initLogger(cfg *config.Config) error {
	var w io.Writer = os.Stderr
	if cfg.LogFormat == "text" {
		w = zerolog.ConsoleWriter{Out: os.Stderr}
	}

	if cfg.LogFile != "" {
		w = io.MultiWriter(w, &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
		})
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	zerolog.SetGlobalLevel(level)

	log.Logger = zerolog.New(w).With().Timestamp().Logger()
	return nil
}
