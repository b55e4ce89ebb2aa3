package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/LdDl/sot-go/config"
	"github.com/LdDl/sot-go/dataset"
	"github.com/LdDl/sot-go/evaluation"
	"github.com/LdDl/sot-go/sot"
	"github.com/LdDl/sot-go/store"
	"github.com/LdDl/sot-go/xcorr"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Options are command line settings which are not part of parameter files
type Options struct {
	// Directory for per-run CSV boxes. Empty disables export
	OutDir string
	// JSON summary file. Empty disables export
	JSONFile string
	// SQLite database of runs. Empty disables persistence
	DBPath string
	// Frames decoded ahead of the tracker
	Prefetch int
	// Kalman trajectory over emitted boxes
	MotionModel bool
}

// RunSummary is the outcome of one tracked (sub-)sequence
type RunSummary struct {
	ID         string             `json:"id"`
	Video      string             `json:"video"`
	StartFrame int                `json:"start_frame"`
	Metrics    evaluation.Metrics `json:"metrics"`
	Error      string             `json:"error,omitempty"`
}

// Summary is the outcome of the whole session
type Summary struct {
	Runs  []RunSummary                  `json:"runs"`
	Video map[string]evaluation.Metrics `json:"videos"`
	Total evaluation.Metrics            `json:"total"`
}

type app struct {
	cfg    *config.Config
	opts   Options
	logger *logrus.Logger
	scorer *xcorr.Scorer
	db     *store.Store
}

func newApp(cfg *config.Config, opts Options, logger *logrus.Logger) (*app, error) {
	scorer, err := xcorr.New(cfg.Design.Design, sot.FinalScoreSize(cfg.Hyperparams, cfg.Design.Design), xcorr.WithMeanPadding(cfg.Design.PadWithImageMean))
	if err != nil {
		return nil, errors.Wrap(err, "Can't create scorer")
	}
	a := &app{
		cfg:    cfg,
		opts:   opts,
		logger: logger,
		scorer: scorer,
	}
	if opts.DBPath != "" {
		if a.db, err = store.Open(opts.DBPath); err != nil {
			return nil, err
		}
	}
	if opts.OutDir != "" {
		if err = os.MkdirAll(opts.OutDir, 0o755); err != nil {
			return nil, errors.Wrapf(err, "Can't create output directory '%s'", opts.OutDir)
		}
	}
	return a, nil
}

func (a *app) Close() error {
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

// videos returns names of videos selected by configuration
func (a *app) videos() ([]string, error) {
	if a.cfg.Evaluation.Video != config.AllVideos {
		return []string{a.cfg.Evaluation.Video}, nil
	}
	return dataset.ListVideos(a.cfg.Environment.RootDataset, a.cfg.Evaluation.Dataset)
}

// Run tracks every selected video. Failed runs are logged and reported, other runs go on.
func (a *app) Run(ctx context.Context) (*Summary, error) {
	videos, err := a.videos()
	if err != nil {
		return nil, err
	}
	summary := &Summary{
		Runs:  []RunSummary{},
		Video: map[string]evaluation.Metrics{},
	}
	perVideo := []evaluation.Metrics{}
	failed := 0
	for _, video := range videos {
		if err = ctx.Err(); err != nil {
			return summary, err
		}
		seq, err := dataset.LoadSequence(filepath.Join(a.cfg.Environment.RootDataset, a.cfg.Evaluation.Dataset, video))
		if err != nil {
			a.logger.WithFields(logrus.Fields{"video": video, "error": err}).Error("Can't load sequence")
			summary.Runs = append(summary.Runs, RunSummary{Video: video, Error: err.Error()})
			failed++
			continue
		}
		// Whole dataset is evaluated on sub-sequences, single video from start frame
		starts := []int{a.cfg.Evaluation.StartFrame}
		if a.cfg.Evaluation.Video == config.AllVideos {
			starts = evaluation.SubsequenceStarts(seq.Len(), a.cfg.Evaluation.NSubseq)
		}
		runs := []evaluation.Metrics{}
		for _, start := range starts {
			run, err := a.track(ctx, seq, start)
			summary.Runs = append(summary.Runs, run)
			if err != nil {
				a.logger.WithFields(logrus.Fields{"video": video, "start_frame": start, "error": err}).Error("Tracking failed")
				failed++
				continue
			}
			runs = append(runs, run.Metrics)
		}
		if len(runs) == 0 {
			continue
		}
		metrics := evaluation.Aggregate(runs)
		summary.Video[video] = metrics
		perVideo = append(perVideo, metrics)
		a.logger.WithFields(logrus.Fields{
			"video":         video,
			"frames":        metrics.Frames,
			"precision":     fmt.Sprintf("%.2f", metrics.Precision),
			"precision_auc": fmt.Sprintf("%.2f", metrics.PrecisionAUC),
			"iou":           fmt.Sprintf("%.2f", metrics.IoU),
			"fps":           fmt.Sprintf("%.2f", metrics.FramesPerSecond),
		}).Info("Video done")
	}
	summary.Total = evaluation.Aggregate(perVideo)
	a.logger.WithFields(logrus.Fields{
		"videos":        len(perVideo),
		"frames":        summary.Total.Frames,
		"precision":     fmt.Sprintf("%.2f", summary.Total.Precision),
		"precision_auc": fmt.Sprintf("%.2f", summary.Total.PrecisionAUC),
		"iou":           fmt.Sprintf("%.2f", summary.Total.IoU),
		"fps":           fmt.Sprintf("%.2f", summary.Total.FramesPerSecond),
	}).Info("Evaluation done")
	if a.opts.JSONFile != "" {
		if err = writeSummary(a.opts.JSONFile, summary); err != nil {
			return summary, err
		}
	}
	if failed > 0 {
		return summary, errors.Errorf("%d runs failed", failed)
	}
	return summary, nil
}

func (a *app) track(ctx context.Context, seq *dataset.Sequence, start int) (RunSummary, error) {
	run := RunSummary{Video: seq.Name, StartFrame: start}
	sub, err := seq.From(start)
	if err != nil {
		run.Error = err.Error()
		return run, err
	}
	region, err := sub.InitialTarget()
	if err != nil {
		run.Error = err.Error()
		return run, err
	}
	options := []sot.TrackerOption{sot.WithLogger(a.logger.WithFields(logrus.Fields{"video": seq.Name, "start_frame": start}))}
	if a.opts.MotionModel {
		options = append(options, sot.WithMotionModel(1.0))
	}
	tracker, err := sot.NewTracker(a.scorer, a.cfg.Hyperparams, a.cfg.Design.Design, options...)
	if err != nil {
		run.Error = err.Error()
		return run, err
	}
	run.ID = tracker.GetID().String()

	loader := dataset.NewFrameLoader(sub.Frames, a.opts.Prefetch)
	result, err := tracker.Run(ctx, loader, region)
	loader.Close()
	if err != nil {
		run.Error = err.Error()
		return run, err
	}
	if result.Trajectory != nil {
		vx, vy, _, _ := result.Trajectory.GetVelocity()
		a.logger.WithFields(logrus.Fields{"video": seq.Name, "vx": vx, "vy": vy}).Debug("Final velocity")
	}

	gt, err := sub.GroundTruthBoxes()
	if err != nil {
		run.Error = err.Error()
		return run, err
	}
	metrics, err := evaluation.Evaluate(result.Boxes, gt, a.cfg.Evaluation.DistThreshold)
	if err != nil {
		run.Error = err.Error()
		return run, err
	}
	metrics.FramesPerSecond = result.FramesPerSecond()
	run.Metrics = metrics

	if a.opts.OutDir != "" {
		if err = writeBoxes(filepath.Join(a.opts.OutDir, fmt.Sprintf("%s_%d.csv", seq.Name, start)), result.Boxes); err != nil {
			run.Error = err.Error()
			return run, err
		}
	}
	if a.db != nil {
		err = a.db.SaveRun(ctx, store.Run{
			ID:         result.ID,
			Video:      seq.Name,
			StartFrame: start,
			Metrics:    metrics,
			Boxes:      result.Boxes,
		})
		if err != nil {
			run.Error = err.Error()
			return run, err
		}
	}
	return run, nil
}

func writeBoxes(path string, boxes []sot.Rectangle) error {
	file, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "Can't create '%s'", path)
	}
	defer file.Close()
	return dataset.WriteBoxes(file, boxes)
}

func writeSummary(path string, summary *Summary) error {
	content, err := jsoniter.ConfigCompatibleWithStandardLibrary.MarshalIndent(summary, "", "  ")
	if err != nil {
		return errors.Wrap(err, "Can't encode summary")
	}
	return errors.Wrapf(os.WriteFile(path, content, 0o644), "Can't write summary '%s'", path)
}
