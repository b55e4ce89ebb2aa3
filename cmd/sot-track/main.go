package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/LdDl/sot-go/config"
	"github.com/LdDl/sot-go/internal/logging"
	"github.com/sirupsen/logrus"
)

var (
	paramsDir   = flag.String("params", "parameters", "Directory with hyperparams.json, design.json, environment.json, evaluation.json, run.json")
	envFile     = flag.String("env", ".env", "Dotenv file with SOT_* overrides")
	rootDataset = flag.String("root", "", "Root directory of datasets. Overrides environment.root_dataset")
	datasetName = flag.String("dataset", "", "Dataset directory under root. Overrides evaluation.dataset")
	videoName   = flag.String("video", "", "Video name or 'all'. Overrides evaluation.video. Single video is tracked from evaluation.start_frame, 'all' uses evaluation.n_subseq sub-sequences")
	outDir      = flag.String("out", "", "Directory for CSV boxes of every run")
	jsonFile    = flag.String("json", "", "File for JSON summary")
	dbPath      = flag.String("db", "", "SQLite database for runs and boxes")
	logFile     = flag.String("log-file", "", "Rotated log file. Overrides run.log_file")
	logLevel    = flag.String("log-level", "", "Log level. Overrides run.log_level")
	prefetch    = flag.Int("prefetch", 4, "Frames decoded ahead of the tracker")
	motion      = flag.Bool("motion", false, "Estimate object velocity with Kalman filter over tracked boxes")
	printConfig = flag.Bool("print-config", false, "Print effective parameters and exit")
)

func main() {
	flag.Parse()

	if err := config.LoadDotEnv(*envFile); err != nil {
		logrus.Fatalln(err)
	}
	cfg, err := config.Load(*paramsDir)
	if err != nil {
		logrus.Fatalln(err)
	}
	applyFlags(cfg)
	if err = cfg.Validate(); err != nil {
		logrus.Fatalln(err)
	}
	if *printConfig {
		if err = cfg.Write(os.Stdout); err != nil {
			logrus.Fatalln(err)
		}
		return
	}

	level := cfg.Run.LogLevel
	if cfg.Run.Debug {
		level = logrus.DebugLevel.String()
	}
	logger, err := logging.New(logging.Options{
		Level:        level,
		File:         cfg.Run.LogFile,
		ReportCaller: cfg.Run.Debug,
	})
	if err != nil {
		logrus.Fatalln(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(cfg, Options{
		OutDir:      *outDir,
		JSONFile:    *jsonFile,
		DBPath:      *dbPath,
		Prefetch:    *prefetch,
		MotionModel: *motion,
	}, logger)
	if err != nil {
		logger.Fatalln(err)
	}
	_, err = a.Run(ctx)
	if closeErr := a.Close(); closeErr != nil {
		logger.WithField("error", closeErr).Error("Can't close database")
	}
	if err != nil {
		logger.Fatalln(err)
	}
}

func applyFlags(cfg *config.Config) {
	if *rootDataset != "" {
		cfg.Environment.RootDataset = *rootDataset
	}
	if *datasetName != "" {
		cfg.Evaluation.Dataset = *datasetName
	}
	if *videoName != "" {
		cfg.Evaluation.Video = *videoName
	}
	if *logFile != "" {
		cfg.Run.LogFile = *logFile
	}
	if *logLevel != "" {
		cfg.Run.LogLevel = *logLevel
	}
}
