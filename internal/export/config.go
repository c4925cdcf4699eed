package export

import (
	"fmt"
	"time"

	dErrors "consentlake/pkg/domain-errors"
)

// DefaultServices are exported when a run names none.
var DefaultServices = []string{"chat-bot", "ai-service", "journal-service"}

// Config selects what a run reads and how candidates are filtered.
type Config struct {
	Services []string
	Start    time.Time
	End      time.Time

	// QualityThreshold is the minimum score kept when scoring is enabled.
	QualityThreshold float64
	// MaxTokens drops candidates whose prompt and completion together run
	// past this many whitespace-separated tokens. Zero disables the check.
	MaxTokens int

	AnonymizeData        bool
	FilterCrisisContent  bool
	EnableQualityScoring bool

	OutputPath string
	// RequestTimeout bounds each store call. Zero leaves calls unbounded.
	RequestTimeout time.Duration
}

// DefaultConfig returns the exporter defaults with an empty date range.
func DefaultConfig() Config {
	return Config{
		Services:             DefaultServices,
		QualityThreshold:     0.6,
		MaxTokens:            4096,
		AnonymizeData:        true,
		FilterCrisisContent:  true,
		EnableQualityScoring: true,
		OutputPath:           "processed/training-data",
		RequestTimeout:       30 * time.Second,
	}
}

func (c Config) validate() error {
	if len(c.Services) == 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "at least one service is required")
	}
	if c.Start.IsZero() || c.End.IsZero() {
		return dErrors.New(dErrors.CodeInvalidInput, "start and end dates are required")
	}
	if c.Start.After(c.End) {
		return dErrors.New(dErrors.CodeInvalidInput,
			fmt.Sprintf("start %s is after end %s", c.Start.Format(time.DateOnly), c.End.Format(time.DateOnly)))
	}
	if c.QualityThreshold < 0 || c.QualityThreshold > 1 {
		return dErrors.New(dErrors.CodeInvalidInput, "quality threshold must be within [0, 1]")
	}
	if c.MaxTokens < 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "max tokens must not be negative")
	}
	if c.OutputPath == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "output path is required")
	}
	return nil
}
