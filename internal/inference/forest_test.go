package inference

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"Go2NetGuard/internal/features"
	"Go2NetGuard/internal/model"
)

const sampleModel = "../../configs/model/nids_model.json"

func loadSample(t *testing.T) *Forest {
	t.Helper()
	f, err := Load(sampleModel, 0.5)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return f
}

func vector(proto, length int, syn, ack bool) model.FeatureVector {
	v := make(model.FeatureVector, features.Width)
	v[features.IdxProtocol] = float64(proto)
	v[features.IdxSrcBytes] = float64(length)
	v[features.IdxSizeBucket] = float64(features.SizeBucket(length))
	if syn {
		v[features.IdxFlagSYN] = 1
	}
	if ack {
		v[features.IdxFlagACK] = 1
	}
	return v
}

func TestPredict_SampleModel(t *testing.T) {
	f := loadSample(t)

	testCases := []struct {
		name string
		vec  model.FeatureVector
		want model.Label
	}{
		{"ack data segment", vector(2, 1200, false, true), model.LabelNormal},
		{"syn-ack handshake", vector(2, 60, true, true), model.LabelNormal},
		{"syn-only probe", vector(2, 60, true, false), model.LabelAttack},
		{"oversized udp", vector(3, 4000, false, false), model.LabelAttack},
		{"oversized icmp", vector(0, 3500, false, false), model.LabelAttack},
		{"unknown protocol small", vector(features.UnknownCode, 100, false, false), model.LabelNormal},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p, err := f.Predict(tc.vec)
			if err != nil {
				t.Fatalf("Predict() error = %v", err)
			}
			if p.Label != tc.want {
				t.Errorf("Predict() label = %s (score %.3f), want %s", p.Label, p.Score, tc.want)
			}
			if p.Score < 0 || p.Score > 1 {
				t.Errorf("score %v outside [0,1]", p.Score)
			}
		})
	}
}

func TestPredict_DeterministicAndConcurrent(t *testing.T) {
	f := loadSample(t)
	v := vector(2, 60, true, false)
	want, _ := f.Predict(v)

	var wg sync.WaitGroup
	errs := make(chan string, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 500; j++ {
				got, err := f.Predict(v)
				if err != nil || got != want {
					errs <- "prediction changed between calls"
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for e := range errs {
		t.Fatal(e)
	}
}

func TestPredict_WidthMismatch(t *testing.T) {
	f := loadSample(t)
	_, err := f.Predict(make(model.FeatureVector, 3))
	if !errors.Is(err, ErrWidthMismatch) {
		t.Fatalf("expected ErrWidthMismatch, got %v", err)
	}
}

func TestCheckShape(t *testing.T) {
	f := loadSample(t)
	x := features.NewExtractor(nil)

	if err := f.CheckShape(x.Width(), x.Names()); err != nil {
		t.Fatalf("sample model should match the extractor: %v", err)
	}
	if err := f.CheckShape(9, nil); !errors.Is(err, ErrWidthMismatch) {
		t.Errorf("expected width mismatch, got %v", err)
	}
	names := x.Names()
	names[0], names[1] = names[1], names[0]
	if err := f.CheckShape(len(names), names); !errors.Is(err, ErrWidthMismatch) {
		t.Errorf("expected name mismatch, got %v", err)
	}
}

func TestDigest(t *testing.T) {
	a := loadSample(t)
	b := loadSample(t)
	if a.Digest() == "" || a.Digest() != b.Digest() {
		t.Fatalf("digest should be stable and non-empty: %q vs %q", a.Digest(), b.Digest())
	}

	data, err := os.ReadFile(sampleModel)
	if err != nil {
		t.Fatal(err)
	}
	c, err := Parse(append(data, '\n'), 0.5)
	if err != nil {
		t.Fatal(err)
	}
	if c.Digest() == a.Digest() {
		t.Errorf("digest should change with the artifact bytes")
	}
}

func TestLoad_Rejects(t *testing.T) {
	testCases := []struct {
		name    string
		content string
		errPart string
	}{
		{"corrupt json", `{"n_features": 2, "trees": [`, "corrupt"},
		{"no trees", `{"n_features": 2, "trees": []}`, "no trees"},
		{"zero width", `{"n_features": 0, "trees": [{}]}`, "n_features"},
		{"names length", `{"n_features": 2, "feature_names": ["a"], "trees": [{}]}`, "feature_names"},
		{"ragged arrays", `{"n_features": 1, "trees": [{"children_left":[-1],"children_right":[],"feature":[-2],"threshold":[-2],"value":[[1,0]]}]}`, "length"},
		{"backward child", `{"n_features": 1, "trees": [{"children_left":[1,0],"children_right":[1,-1],"feature":[0,-2],"threshold":[0,-2],"value":[[1,1],[1,0]]}]}`, "invalid children"},
		{"feature out of range", `{"n_features": 1, "trees": [{"children_left":[1,-1,-1],"children_right":[2,-1,-1],"feature":[4,-2,-2],"threshold":[0,-2,-2],"value":[[1,1],[1,0],[0,1]]}]}`, "outside"},
		{"bad leaf", `{"n_features": 1, "trees": [{"children_left":[-1],"children_right":[-1],"feature":[-2],"threshold":[-2],"value":[[0,0]]}]}`, "class weights"},
		{"unsupported type", `{"model_type": "svm", "n_features": 1, "trees": [{}]}`, "unsupported"},
	}

	dir := t.TempDir()
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(dir, strings.ReplaceAll(tc.name, " ", "_")+".json")
			if err := os.WriteFile(path, []byte(tc.content), 0644); err != nil {
				t.Fatal(err)
			}
			_, err := Load(path, 0.5)
			if err == nil || !strings.Contains(err.Error(), tc.errPart) {
				t.Errorf("Load() error = %v, want it to contain %q", err, tc.errPart)
			}
		})
	}

	if _, err := Load(filepath.Join(dir, "missing.json"), 0.5); err == nil {
		t.Errorf("expected an error for a missing artifact")
	}
}
