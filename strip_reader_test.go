package cassettereader

import (
	"context"
	"errors"
	"testing"

	"go.viam.com/rdk/testutils/inject"

	"cassettereader/reader"
)

func stripWith(readings map[string]interface{}, err error) *inject.Sensor {
	s := inject.NewSensor("strip")
	s.ReadingsFunc = func(ctx context.Context, extra map[string]interface{}) (map[string]interface{}, error) {
		return readings, err
	}
	return s
}

var panel3BTC = reader.Panel{
	Type:       reader.Cassette3BTC,
	Substances: []string{reader.BetaLactams, reader.Tetracyclines, reader.Cephalosporins},
}

func TestStripReader_ValueTypes(t *testing.T) {
	tests := []struct {
		name string
		val  interface{}
		want reader.Outcome
	}{
		{"string positive", "positive", reader.OutcomePositive},
		{"string negative", "negative", reader.OutcomeNegative},
		{"bool true", true, reader.OutcomePositive},
		{"bool false", false, reader.OutcomeNegative},
		{"ratio below threshold", 0.3, reader.OutcomePositive},
		{"ratio at threshold", 1.0, reader.OutcomeNegative},
		{"int ratio", 2, reader.OutcomeNegative},
		{"int64 ratio", int64(0), reader.OutcomePositive},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newSensorStripReader(stripWith(map[string]interface{}{
				reader.BetaLactams:    tt.val,
				reader.Tetracyclines:  "negative",
				reader.Cephalosporins: "negative",
			}, nil), 0)

			results, err := r.Evaluate(context.Background(), panel3BTC, reader.OutcomeNegative)
			if err != nil {
				t.Fatalf("Evaluate failed: %v", err)
			}
			if len(results) != 3 {
				t.Fatalf("expected 3 results, got %d", len(results))
			}
			if results[0].Name != reader.BetaLactams || results[0].Result != tt.want {
				t.Errorf("got %+v, want %s", results[0], tt.want)
			}
		})
	}
}

func TestStripReader_ShortLabels(t *testing.T) {
	r := newSensorStripReader(stripWith(map[string]interface{}{"B": false, "T": true, "C": false}, nil), 0)

	results, err := r.Evaluate(context.Background(), panel3BTC, reader.OutcomeNegative)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if results[1].Result != reader.OutcomePositive {
		t.Errorf("Tetracyclines: expected positive, got %s", results[1].Result)
	}
	if reader.Overall(results) != reader.OutcomePositive {
		t.Error("expected overall positive")
	}
}

func TestStripReader_CustomThreshold(t *testing.T) {
	r := newSensorStripReader(stripWith(map[string]interface{}{"B": 0.6, "T": 0.4, "C": 0.9}, nil), 0.5)

	results, err := r.Evaluate(context.Background(), panel3BTC, reader.OutcomePositive)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	want := []reader.Outcome{reader.OutcomeNegative, reader.OutcomePositive, reader.OutcomeNegative}
	for i, w := range want {
		if results[i].Result != w {
			t.Errorf("%s: expected %s, got %s", results[i].Name, w, results[i].Result)
		}
	}
}

func TestStripReader_PassesCassetteType(t *testing.T) {
	var gotType interface{}
	s := inject.NewSensor("strip")
	s.ReadingsFunc = func(ctx context.Context, extra map[string]interface{}) (map[string]interface{}, error) {
		gotType = extra["cassette_type"]
		return map[string]interface{}{"B": "negative", "T": "negative", "C": "negative"}, nil
	}

	if _, err := newSensorStripReader(s, 0).Evaluate(context.Background(), panel3BTC, reader.OutcomeNegative); err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if gotType != "3BTC" {
		t.Errorf("cassette_type = %v, want 3BTC", gotType)
	}
}

func TestStripReader_Errors(t *testing.T) {
	t.Run("sensor error", func(t *testing.T) {
		boom := errors.New("boom")
		r := newSensorStripReader(stripWith(nil, boom), 0)
		if _, err := r.Evaluate(context.Background(), panel3BTC, reader.OutcomeNegative); !errors.Is(err, boom) {
			t.Errorf("expected sensor error, got %v", err)
		}
	})

	t.Run("missing substance", func(t *testing.T) {
		r := newSensorStripReader(stripWith(map[string]interface{}{"B": true}, nil), 0)
		if _, err := r.Evaluate(context.Background(), panel3BTC, reader.OutcomeNegative); err == nil {
			t.Error("expected error for missing substances")
		}
	})

	t.Run("unknown result string", func(t *testing.T) {
		r := newSensorStripReader(stripWith(map[string]interface{}{"B": "maybe", "T": true, "C": true}, nil), 0)
		if _, err := r.Evaluate(context.Background(), panel3BTC, reader.OutcomeNegative); err == nil {
			t.Error("expected error for unknown result")
		}
	})

	t.Run("unsupported type", func(t *testing.T) {
		r := newSensorStripReader(stripWith(map[string]interface{}{"B": []int{1}, "T": true, "C": true}, nil), 0)
		if _, err := r.Evaluate(context.Background(), panel3BTC, reader.OutcomeNegative); err == nil {
			t.Error("expected error for unsupported reading type")
		}
	})
}
