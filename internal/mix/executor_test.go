package mix

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/keagan/soundbed/internal/assets"
	"github.com/keagan/soundbed/internal/ffmpeg"
	"github.com/keagan/soundbed/internal/ffmpeg/ffmpegtest"
)

type recordingObserver struct {
	mu     sync.Mutex
	stages []string
	failed []string
}

func (r *recordingObserver) ObserveStage(stage string, _ time.Duration, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stages = append(r.stages, stage)
	if err != nil {
		r.failed = append(r.failed, stage)
	}
}

type fixture struct {
	store     *assets.Store
	toolkit   *ffmpegtest.Fake
	observer  *recordingObserver
	executor  *Executor
	narration Asset
	music     Asset
}

func newFixture(t *testing.T, narration, music float64, timeout time.Duration) *fixture {
	t.Helper()
	store, err := assets.New(zerolog.Nop(), t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	tk := ffmpegtest.New()
	obs := &recordingObserver{}

	f := &fixture{
		store:    store,
		toolkit:  tk,
		observer: obs,
		executor: NewExecutor(zerolog.Nop(), tk, store, Options{CallTimeout: timeout, Observer: obs}),
	}
	f.narration = Asset{Path: filepath.Join(store.Dir(), "narration.mp3"), Duration: narration}
	f.music = Asset{Path: filepath.Join(store.Dir(), "music.mp3"), Duration: music}
	if err := tk.WriteInput(f.narration.Path, narration); err != nil {
		t.Fatal(err)
	}
	if err := tk.WriteInput(f.music.Path, music); err != nil {
		t.Fatal(err)
	}
	return f
}

// files lists what is left in the asset area
func (f *fixture) files(t *testing.T) []string {
	t.Helper()
	entries, err := os.ReadDir(f.store.Dir())
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names
}

func (f *fixture) plan(t *testing.T, wait, fade int) Plan {
	t.Helper()
	plan, err := ComputePlan(f.narration.Duration, f.music.Duration, wait, fade)
	if err != nil {
		t.Fatal(err)
	}
	return plan
}

func TestExecuteWithDelayAndLongBed(t *testing.T) {
	f := newFixture(t, 10, 30, time.Minute)
	plan := f.plan(t, 3, 4)

	out, err := f.executor.Execute(context.Background(), f.narration, f.music, plan)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	expectedCalls := []string{"gain", "trim", "silence", "concatenate", "fadeout", "mix", "duration", "encode"}
	if got := f.toolkit.Calls(); strings.Join(got, ",") != strings.Join(expectedCalls, ",") {
		t.Errorf("expected calls %v, got %v", expectedCalls, got)
	}

	if d, _ := f.toolkit.Length(out.Path); d != 20 {
		t.Errorf("expected 20s output, got %g", d)
	}
	if !strings.HasSuffix(out.Filename, "_mix.mp3") || !strings.HasPrefix(out.Filename, out.ID+"_") {
		t.Errorf("unexpected output naming %+v", out)
	}
	if len(out.ID) != assets.IDLength {
		t.Errorf("expected %d char id, got %q", assets.IDLength, out.ID)
	}

	got, err := f.store.Lookup(out.Filename)
	if err != nil || got != out.Path {
		t.Errorf("output should be registered, got %q (%v)", got, err)
	}

	expectedFiles := []string{out.Filename, "music.mp3", "narration.mp3"}
	sort.Strings(expectedFiles)
	if got := f.files(t); strings.Join(got, ",") != strings.Join(expectedFiles, ",") {
		t.Errorf("intermediates leaked: %v", got)
	}
}

func TestExecuteLoopsShortBed(t *testing.T) {
	f := newFixture(t, 40, 10, time.Minute)
	plan := f.plan(t, 0, 0)

	out, err := f.executor.Execute(context.Background(), f.narration, f.music, plan)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	calls := f.toolkit.Calls()
	if calls[0] != "loop" {
		t.Fatalf("expected loop first, got %v", calls)
	}
	for _, c := range calls {
		if c == "silence" || c == "concatenate" {
			t.Errorf("no silence expected without a wait, got %v", calls)
		}
	}
	if d, _ := f.toolkit.Length(out.Path); d != 43 {
		t.Errorf("expected 43s output, got %g", d)
	}
	if len(f.files(t)) != 3 {
		t.Errorf("intermediates leaked: %v", f.files(t))
	}
}

func TestExecuteFadeoutFailureCleansUp(t *testing.T) {
	f := newFixture(t, 10, 5, time.Minute)
	f.toolkit.FailOn["fadeout"] = &ffmpeg.ToolkitError{Operation: "fadeout", Message: "Invalid argument"}
	plan := f.plan(t, 2, 1)

	out, err := f.executor.Execute(context.Background(), f.narration, f.music, plan)
	if out != nil {
		t.Fatalf("expected no output, got %+v", out)
	}

	var mixErr *MixExecutionError
	if !errors.As(err, &mixErr) {
		t.Fatalf("expected MixExecutionError, got %v", err)
	}
	if mixErr.Stage != StageFadeout {
		t.Errorf("expected stage fadeout, got %s", mixErr.Stage)
	}
	var tkErr *ffmpeg.ToolkitError
	if !errors.As(err, &tkErr) || tkErr.Message != "Invalid argument" {
		t.Errorf("expected toolkit cause to be preserved, got %v", err)
	}

	// extended, gained, trimmed, silence and delayed narration are all gone
	if got := f.files(t); strings.Join(got, ",") != "music.mp3,narration.mp3" {
		t.Errorf("expected only inputs to remain, got %v", got)
	}
	for _, c := range f.toolkit.Calls() {
		if c == "mix" || c == "encode" {
			t.Errorf("pipeline should stop at fadeout, got %v", f.toolkit.Calls())
		}
	}
	if len(f.observer.failed) != 1 || f.observer.failed[0] != StageFadeout {
		t.Errorf("expected observer to see fadeout failure, got %v", f.observer.failed)
	}
}

func TestExecuteEveryStageFailureCleansUp(t *testing.T) {
	for _, stage := range []string{"loop", "gain", "trim", "silence", "concatenate", "fadeout", "mix", "duration", "encode"} {
		t.Run(stage, func(t *testing.T) {
			f := newFixture(t, 10, 4, time.Minute)
			f.toolkit.FailOn[stage] = &ffmpeg.ToolkitError{Operation: stage, Message: "boom"}

			_, err := f.executor.Execute(context.Background(), f.narration, f.music, f.plan(t, 2, 0))

			var mixErr *MixExecutionError
			if !errors.As(err, &mixErr) || mixErr.Stage != stage {
				t.Fatalf("expected failure at %s, got %v", stage, err)
			}
			if got := f.files(t); strings.Join(got, ",") != "music.mp3,narration.mp3" {
				t.Errorf("expected only inputs to remain, got %v", got)
			}
		})
	}
}

func TestExecuteTimeout(t *testing.T) {
	f := newFixture(t, 10, 30, 20*time.Millisecond)
	f.toolkit.Block["mix"] = true

	_, err := f.executor.Execute(context.Background(), f.narration, f.music, f.plan(t, 1, 0))

	var mixErr *MixExecutionError
	if !errors.As(err, &mixErr) {
		t.Fatalf("expected MixExecutionError, got %v", err)
	}
	if mixErr.Stage != StageTimeout {
		t.Errorf("expected timeout stage, got %s", mixErr.Stage)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline cause, got %v", err)
	}
	if got := f.files(t); strings.Join(got, ",") != "music.mp3,narration.mp3" {
		t.Errorf("expected only inputs to remain, got %v", got)
	}
}

func TestExecuteIgnoresCallerCancellation(t *testing.T) {
	f := newFixture(t, 10, 30, time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out, err := f.executor.Execute(ctx, f.narration, f.music, f.plan(t, 0, 0))
	if err != nil {
		t.Fatalf("a dispatched mix should finish after the client leaves: %v", err)
	}
	if out == nil {
		t.Fatal("expected output")
	}
}

func TestScopeReleaseIsIdempotent(t *testing.T) {
	store, err := assets.New(zerolog.Nop(), t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	sc := newScope(store, zerolog.Nop())
	p := sc.allocate("silence", ".wav")
	if err := os.WriteFile(p, nil, 0644); err != nil {
		t.Fatal(err)
	}
	// deleted behind the scope's back
	os.Remove(p)

	sc.release()
	sc.release()

	if _, err := os.Stat(p); !os.IsNotExist(err) {
		t.Error("file should not exist")
	}
}
