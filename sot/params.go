package sot

import (
	"math"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

// Hyperparams are tuning values of the tracker. Every field is required: the tracker has no defaults of its own.
type Hyperparams struct {
	// Ratio between neighbouring scales. Must be > 1
	ScaleStep float64 `json:"scale_step" validate:"gt=1"`
	// Number of scales searched per frame. Must be odd
	ScaleNum int `json:"scale_num" validate:"gt=0,odd"`
	// EMA rate for sizes
	ScaleLR float64 `json:"scale_lr" validate:"gte=0,lte=1"`
	// Multiplier applied to score maps of the smallest and the largest scale
	ScalePenalty float64 `json:"scale_penalty" validate:"gt=0,lt=1"`
	// Weight of the cosine window in the blended response
	WindowInfluence float64 `json:"window_influence" validate:"gte=0,lte=1"`
	// Upsampling factor of score maps before peak search
	ResponseUp float64 `json:"response_up" validate:"gt=0"`
	// EMA rate for the appearance template. Zero freezes the template
	ZLR float64 `json:"z_lr" validate:"gte=0,lte=1"`
	// Lower clamp of exemplar/search sizes relative to initial ones
	ScaleMin float64 `json:"scale_min" validate:"gt=0,lte=1"`
	// Upper clamp of exemplar/search sizes relative to initial ones
	ScaleMax float64 `json:"scale_max" validate:"gte=1,gtefield=ScaleMin"`
}

// Design holds constants tied to the scorer
type Design struct {
	// Contextual margin ratio added around the target
	Context float64 `json:"context" validate:"gte=0"`
	// Side of the exemplar crop fed to the scorer, pixels
	ExemplarSize float64 `json:"exemplar_sz" validate:"gt=0"`
	// Side of the search crop fed to the scorer, pixels
	SearchSize float64 `json:"search_sz" validate:"gt=0,gtefield=ExemplarSize"`
	// Downsampling factor of the scorer
	TotalStride float64 `json:"tot_stride" validate:"gt=0"`
	// Side of score maps before upsampling
	ScoreSize int `json:"score_sz" validate:"gt=0"`
}

// FinalScoreSize returns side of upsampled score maps: round(response_up * score_sz)
func FinalScoreSize(hp Hyperparams, design Design) int {
	return int(math.Round(hp.ResponseUp * float64(design.ScoreSize)))
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func paramsValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		err := validate.RegisterValidation("odd", func(fl validator.FieldLevel) bool {
			return fl.Field().Int()%2 != 0
		})
		if err != nil {
			panic(err)
		}
	})
	return validate
}

// Validate checks hyperparameters
func (hp Hyperparams) Validate() error {
	if err := paramsValidator().Struct(hp); err != nil {
		return errors.Wrapf(ErrConfiguration, "invalid hyperparameters: %s", err.Error())
	}
	return nil
}

// Validate checks design constants
func (design Design) Validate() error {
	if err := paramsValidator().Struct(design); err != nil {
		return errors.Wrapf(ErrConfiguration, "invalid design: %s", err.Error())
	}
	return nil
}
