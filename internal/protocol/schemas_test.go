package protocol_test

import (
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"wanbingo.sim/internal/protocol"
	"wanbingo.sim/internal/sim/runner"
	"wanbingo.sim/internal/sim/stats"
)

func compile(t *testing.T, name string) *jsonschema.Schema {
	t.Helper()
	p := filepath.Join("..", "..", "schemas", name)
	s, err := jsonschema.Compile(p)
	if err != nil {
		t.Fatalf("compile %s: %v", name, err)
	}
	return s
}

// roundTrip marshals v and decodes it back into a generic value for validation.
func roundTrip(t *testing.T, v any) any {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return out
}

func TestSchemas_ValidateSamples(t *testing.T) {
	subSchema := compile(t, "subscribe.schema.json")
	tilesSchema := compile(t, "tiles.schema.json")

	var sub any
	_ = json.Unmarshal([]byte(`{"type":"SUBSCRIBE","protocol_version":"1.0","include_scores":true}`), &sub)
	if err := subSchema.Validate(sub); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	var tiles any
	_ = json.Unmarshal([]byte(`[{"id":"A1","x":2,"y":0.4},{"id":"B7","x":0,"y":1}]`), &tiles)
	if err := tilesSchema.Validate(tiles); err != nil {
		t.Fatalf("tiles: %v", err)
	}

	var bad any
	_ = json.Unmarshal([]byte(`[{"id":"A1","x":2,"y":1.5}]`), &bad)
	if err := tilesSchema.Validate(bad); err == nil {
		t.Fatalf("expected y > 1 rejected")
	}
}

func TestSchemas_ValidateServerMessages(t *testing.T) {
	weekSchema := compile(t, "week.schema.json")
	doneSchema := compile(t, "done.schema.json")

	entry := runner.WeekLogEntry{
		RunID:          "run-1",
		Week:           4,
		Games:          3,
		Wins:           1,
		Losses:         2,
		ConfirmedCount: 27,
		MeanFinal:      1.5,
		FinalScores:    []float64{0, 4.5, 0},
	}
	for _, withScores := range []bool{false, true} {
		if err := weekSchema.Validate(roundTrip(t, protocol.NewWeekMsg(entry, withScores))); err != nil {
			t.Fatalf("week (scores=%v): %v", withScores, err)
		}
	}

	agg := stats.NewAggregator()
	agg.RecordWeek(stats.NewWeek(1, 20, []stats.Game{{Final: 2, PotentialMax: 9}, {Final: 0, PotentialMax: 7}}))
	rep := runner.Report{RunInfo: runner.RunInfo{RunID: "run-1"}, Summary: agg.Summary()}

	ok := protocol.NewDoneMsg(rep, nil)
	if ok.ErrorCode != "" {
		t.Fatalf("unexpected error code %q", ok.ErrorCode)
	}
	if err := doneSchema.Validate(roundTrip(t, ok)); err != nil {
		t.Fatalf("done: %v", err)
	}

	failed := protocol.NewDoneMsg(rep, errors.New("disk full"))
	if failed.ErrorCode != protocol.ErrInternal || failed.Error != "disk full" {
		t.Fatalf("failed done: %+v", failed)
	}
	if err := doneSchema.Validate(roundTrip(t, failed)); err != nil {
		t.Fatalf("failed done: %v", err)
	}
}
