package tuning

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_RepoTuning(t *testing.T) {
	tune, err := Load("../../../configs/tuning.yaml")
	if err != nil {
		t.Fatalf("load tuning.yaml: %v", err)
	}
	if err := tune.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if tune.GrowFactor != 1.05 || tune.ShrinkFactor != 0.95 {
		t.Fatalf("factors=%v/%v", tune.GrowFactor, tune.ShrinkFactor)
	}
	if tune.MinGames != 5 || tune.MaxGames != 50 || tune.MinConfirmed != 20 || tune.MaxConfirmed != 50 {
		t.Fatalf("ranges=%+v", tune)
	}
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	p := filepath.Join(t.TempDir(), "tuning.yaml")
	if err := os.WriteFile(p, []byte("weeks: 3\ngrow_factor: 1.2\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	tune, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if tune.Weeks != 3 || tune.GrowFactor != 1.2 || tune.ShrinkFactor != 0.95 || tune.MaxGames != 50 {
		t.Fatalf("unexpected tuning: %+v", tune)
	}
}

func TestLoad_BadYAML(t *testing.T) {
	p := filepath.Join(t.TempDir(), "tuning.yaml")
	if err := os.WriteFile(p, []byte("weeks: [\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(p); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestValidate(t *testing.T) {
	ok := Defaults()
	ok.Weeks = 1
	if err := ok.Validate(); err != nil {
		t.Fatalf("defaults with weeks=1: %v", err)
	}

	bad := []func(*Tuning){
		func(t *Tuning) { t.Weeks = 0 },
		func(t *Tuning) { t.GrowFactor = 0 },
		func(t *Tuning) { t.ShrinkFactor = 1.5 },
		func(t *Tuning) { t.ShrinkFactor = -0.1 },
		func(t *Tuning) { t.MinGames = 0 },
		func(t *Tuning) { t.MaxGames = 2 },
		func(t *Tuning) { t.MaxConfirmed = 10 },
		func(t *Tuning) { t.Workers = -1 },
		func(t *Tuning) { t.ConfirmMode = "random" },
	}
	for i, mutate := range bad {
		tune := ok
		mutate(&tune)
		if err := tune.Validate(); !errors.Is(err, ErrInvalid) {
			t.Fatalf("case %d: err=%v want ErrInvalid", i, err)
		}
	}
}

func TestEffectiveWorkers(t *testing.T) {
	tune := Defaults()
	if tune.EffectiveWorkers() < 1 {
		t.Fatalf("auto workers < 1")
	}
	tune.Workers = 3
	if tune.EffectiveWorkers() != 3 {
		t.Fatalf("workers=%d want 3", tune.EffectiveWorkers())
	}
}
