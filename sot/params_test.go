package sot

import (
	"testing"

	"github.com/pkg/errors"
)

func TestHyperparamsValidate(t *testing.T) {
	if err := testHyperparams().Validate(); err != nil {
		t.Fatalf("Expected valid hyperparameters, got %v", err)
	}
	broken := map[string]func(hp *Hyperparams){
		"even scale number":     func(hp *Hyperparams) { hp.ScaleNum = 2 },
		"zero scale number":     func(hp *Hyperparams) { hp.ScaleNum = 0 },
		"scale step one":        func(hp *Hyperparams) { hp.ScaleStep = 1 },
		"scale rate above one":  func(hp *Hyperparams) { hp.ScaleLR = 1.5 },
		"scale penalty one":     func(hp *Hyperparams) { hp.ScalePenalty = 1 },
		"negative window":       func(hp *Hyperparams) { hp.WindowInfluence = -0.1 },
		"zero upsampling":       func(hp *Hyperparams) { hp.ResponseUp = 0 },
		"negative template lr":  func(hp *Hyperparams) { hp.ZLR = -0.01 },
		"zero scale min":        func(hp *Hyperparams) { hp.ScaleMin = 0 },
		"scale max below one":   func(hp *Hyperparams) { hp.ScaleMax = 0.5 },
		"scale min above one":   func(hp *Hyperparams) { hp.ScaleMin = 1.5 },
	}
	for name, breakIt := range broken {
		hp := testHyperparams()
		breakIt(&hp)
		if err := hp.Validate(); !errors.Is(err, ErrConfiguration) {
			t.Errorf("%s: expected configuration error, got %v", name, err)
		}
	}
}

func TestDesignValidate(t *testing.T) {
	if err := testDesign().Validate(); err != nil {
		t.Fatalf("Expected valid design, got %v", err)
	}
	design := testDesign()
	design.SearchSize = 20
	if err := design.Validate(); !errors.Is(err, ErrConfiguration) {
		t.Errorf("Search region smaller than exemplar: expected configuration error, got %v", err)
	}
	design = testDesign()
	design.TotalStride = 0
	if err := design.Validate(); !errors.Is(err, ErrConfiguration) {
		t.Errorf("Zero stride: expected configuration error, got %v", err)
	}
}

func TestFinalScoreSize(t *testing.T) {
	design := testDesign()
	design.ScoreSize = 17
	hp := testHyperparams()
	hp.ResponseUp = 16
	if size := FinalScoreSize(hp, design); size != 272 {
		t.Errorf("Expected 272, got %d", size)
	}
	hp.ResponseUp = 1
	if size := FinalScoreSize(hp, design); size != 17 {
		t.Errorf("Expected 17, got %d", size)
	}
}
