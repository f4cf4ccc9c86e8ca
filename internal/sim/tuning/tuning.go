package tuning

import (
	"errors"
	"fmt"
	"os"
	"runtime"

	"gopkg.in/yaml.v3"
)

var ErrInvalid = errors.New("invalid tuning")

type Tuning struct {
	Weeks        int     `yaml:"weeks" json:"weeks"`
	GrowFactor   float64 `yaml:"grow_factor" json:"grow_factor"`
	ShrinkFactor float64 `yaml:"shrink_factor" json:"shrink_factor"`

	MinGames     int `yaml:"min_games" json:"min_games"`
	MaxGames     int `yaml:"max_games" json:"max_games"`
	MinConfirmed int `yaml:"min_confirmed" json:"min_confirmed"`
	MaxConfirmed int `yaml:"max_confirmed" json:"max_confirmed"`

	Workers     int    `yaml:"workers" json:"workers"`
	ConfirmMode string `yaml:"confirm_mode" json:"confirm_mode"`

	ProgressEveryWeeks int `yaml:"progress_every_weeks" json:"progress_every_weeks"`
}

func Defaults() Tuning {
	return Tuning{
		GrowFactor:         1.05,
		ShrinkFactor:       0.95,
		MinGames:           5,
		MaxGames:           50,
		MinConfirmed:       20,
		MaxConfirmed:       50,
		ConfirmMode:        "position",
		ProgressEveryWeeks: 10000,
	}
}

// Load reads a tuning file over Defaults. Weeks stays unset unless the file provides it.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

// EffectiveWorkers resolves Workers=0 to one per CPU.
func (t Tuning) EffectiveWorkers() int {
	if t.Workers > 0 {
		return t.Workers
	}
	return runtime.NumCPU()
}

func (t Tuning) Validate() error {
	switch {
	case t.Weeks <= 0:
		return fmt.Errorf("%w: weeks must be a positive integer (got %d)", ErrInvalid, t.Weeks)
	case !(t.GrowFactor > 0):
		return fmt.Errorf("%w: grow_factor must be positive (got %v)", ErrInvalid, t.GrowFactor)
	case t.ShrinkFactor < 0 || t.ShrinkFactor > 1:
		return fmt.Errorf("%w: shrink_factor must be in [0,1] (got %v)", ErrInvalid, t.ShrinkFactor)
	case t.MinGames <= 0 || t.MaxGames < t.MinGames:
		return fmt.Errorf("%w: games range [%d,%d]", ErrInvalid, t.MinGames, t.MaxGames)
	case t.MinConfirmed < 0 || t.MaxConfirmed < t.MinConfirmed:
		return fmt.Errorf("%w: confirmed range [%d,%d]", ErrInvalid, t.MinConfirmed, t.MaxConfirmed)
	case t.Workers < 0:
		return fmt.Errorf("%w: workers must be >= 0 (got %d)", ErrInvalid, t.Workers)
	case t.ConfirmMode != "position" && t.ConfirmMode != "identity":
		return fmt.Errorf("%w: confirm_mode %q", ErrInvalid, t.ConfirmMode)
	}
	return nil
}
