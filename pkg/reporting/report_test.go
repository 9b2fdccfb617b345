package reporting

import (
	"os"
	"testing"

	"github.com/google/uuid"
)

func TestGenerateComputesInterceptRate(t *testing.T) {
	l := New("test-run")

	attack := uuid.New()
	defense := uuid.New()
	l.LogLaunch(attack, "attack", "A1-LAUNCH")
	l.LogLaunch(defense, "defense", "B1")
	l.LogIntercept(defense, attack)

	gen := NewGenerator(l, ReportConfig{OutputDir: t.TempDir(), Format: "json"})
	report, err := gen.Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if report.Summary.MissilesLaunched != 2 {
		t.Fatalf("expected 2 launches, got %d", report.Summary.MissilesLaunched)
	}
	if report.Summary.MissilesIntercepted != 1 {
		t.Fatalf("expected 1 intercept, got %d", report.Summary.MissilesIntercepted)
	}
	if report.Summary.InterceptRate != 0.5 {
		t.Fatalf("expected intercept rate 0.5, got %f", report.Summary.InterceptRate)
	}
}

func TestSaveWritesJSONFile(t *testing.T) {
	l := New("test-run")
	l.LogLaunch(uuid.New(), "attack", "A1-LAUNCH")

	dir := t.TempDir()
	gen := NewGenerator(l, ReportConfig{OutputDir: dir, Format: "json"})
	report, err := gen.Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	path, err := gen.Save(report)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected report file at %s: %v", path, err)
	}
}

func TestBatteryAnalysisTracksLaunchCallsign(t *testing.T) {
	l := New("test-run")
	l.LogLaunch(uuid.New(), "defense", "B1")
	l.LogLaunch(uuid.New(), "defense", "B1")
	l.LogLaunch(uuid.New(), "defense", "B2")

	gen := NewGenerator(l, ReportConfig{OutputDir: t.TempDir()})
	report, err := gen.Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if report.Batteries["B1"].LaunchesFired != 2 {
		t.Fatalf("expected B1 to show 2 launches, got %d", report.Batteries["B1"].LaunchesFired)
	}
	if report.Batteries["B2"].LaunchesFired != 1 {
		t.Fatalf("expected B2 to show 1 launch, got %d", report.Batteries["B2"].LaunchesFired)
	}
}
