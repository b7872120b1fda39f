package export

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
)

// Quality bounds and defaults.
const (
	DefaultQuality    = 90
	DefaultGIFQuality = 10
	MaxScale          = 4
	MaxFrameCount     = 600
)

// Request describes one user-invoked export. It is built fresh for every
// export and never reused.
type Request struct {
	Format                Format       `json:"format" yaml:"format" validate:"required,oneof=png jpeg svg pdf gif"`
	Scale                 int          `json:"scale" yaml:"scale" validate:"min=1,max=4"`
	Quality               int          `json:"quality,omitempty" yaml:"quality" validate:"min=0,max=100"`
	TransparentBackground bool         `json:"transparentBackground" yaml:"transparent_background"`
	IncludeDeviceFrame    bool         `json:"includeDeviceFrame" yaml:"include_device_frame"`
	FrameCount            int          `json:"frameCount,omitempty" yaml:"frame_count" validate:"min=0,max=600"`
	FrameDuration         int          `json:"frameDuration,omitempty" yaml:"frame_duration" validate:"min=0"` // milliseconds
	GIFQuality            int          `json:"gifQuality,omitempty" yaml:"gif_quality" validate:"min=0,max=30"`
	Repeat                int          `json:"repeat,omitempty" yaml:"repeat" validate:"min=-1"`
	Delivery              DeliveryMode `json:"delivery,omitempty" yaml:"delivery" validate:"omitempty,oneof=download clipboard"`
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func requestValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Validate checks the request. Options that are irrelevant for the format are
// not errors; see IgnoredOptions.
func (r Request) Validate() error {
	var problems []string

	if err := requestValidator().Struct(r.withoutUnusedOptions()); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return &ValidationError{Problems: []string{err.Error()}}
		}
		for _, fe := range fieldErrs {
			problems = append(problems, describeFieldError(fe))
		}
	}

	if r.Format.IsAnimated() {
		if r.FrameCount < 1 {
			problems = append(problems, "frameCount must be at least 1 for animated export")
		}
		if r.FrameDuration <= 0 {
			problems = append(problems, "frameDuration must be positive for animated export")
		}
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

// withoutUnusedOptions zeroes the tunables the format never reads so their
// range tags do not apply.
func (r Request) withoutUnusedOptions() Request {
	if !r.Format.IsLossy() {
		r.Quality = 0
	}
	if !r.Format.IsAnimated() {
		r.FrameCount = 0
		r.FrameDuration = 0
		r.GIFQuality = 0
		r.Repeat = 0
	}
	return r
}

func describeFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s], got %v", fe.Field(), fe.Param(), fe.Value())
	case "min":
		return fmt.Sprintf("%s must be at least %s, got %v", fe.Field(), fe.Param(), fe.Value())
	case "max":
		return fmt.Sprintf("%s must be at most %s, got %v", fe.Field(), fe.Param(), fe.Value())
	default:
		return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
	}
}

// WithDefaults returns a copy with zero-valued tunables replaced by the given
// defaults. Non-positive defaults fall back to the package defaults.
func (r Request) WithDefaults(quality, gifQuality int) Request {
	if quality <= 0 {
		quality = DefaultQuality
	}
	if gifQuality <= 0 {
		gifQuality = DefaultGIFQuality
	}
	if r.Quality == 0 {
		r.Quality = quality
	}
	if r.GIFQuality == 0 {
		r.GIFQuality = gifQuality
	}
	if r.Delivery == "" {
		r.Delivery = DeliverDownload
	}
	return r
}

// FrameDelay returns FrameDuration as a time.Duration.
func (r Request) FrameDelay() time.Duration {
	return time.Duration(r.FrameDuration) * time.Millisecond
}

// IgnoredOptions reports options that were set but have no effect for the
// requested format.
func (r Request) IgnoredOptions() []*UnsupportedOptionError {
	var ignored []*UnsupportedOptionError
	add := func(option string) {
		ignored = append(ignored, &UnsupportedOptionError{Format: r.Format, Option: option})
	}

	if r.Quality != 0 && !r.Format.IsLossy() {
		add("quality")
	}
	if !r.Format.IsAnimated() {
		if r.FrameCount != 0 {
			add("frameCount")
		}
		if r.FrameDuration != 0 {
			add("frameDuration")
		}
		if r.GIFQuality != 0 {
			add("gifQuality")
		}
		if r.Repeat != 0 {
			add("repeat")
		}
	}
	if r.TransparentBackground && r.Format == FormatJPEG {
		add("transparentBackground")
	}
	return ignored
}
