package config

import (
	"testing"

	"github.com/paiban/campsched/pkg/scheduler/constraint"
	"github.com/paiban/campsched/pkg/scheduler/optimizer"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Scheduler.Limits() != constraint.DefaultLimits() {
		t.Errorf("Limits() = %+v, want defaults", cfg.Scheduler.Limits())
	}
	opts := cfg.Scheduler.EngineOptions(nil)
	if opts.Catalog == nil || opts.Solver == nil {
		t.Fatal("EngineOptions() should fill catalog and solver")
	}
	if opts.Solver.Weights[optimizer.TermPrimaryDay] != optimizer.DefaultWeights()[optimizer.TermPrimaryDay] {
		t.Error("default weights should be kept")
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("SCHEDULER_VOYAGEUR", "true")
	t.Setenv("CAMP_BEACH_STAFF_CAP", "5")
	t.Setenv("SCHEDULER_WEIGHTS", "area_day=7, primary_day=1")
	t.Setenv("API_CORS_ORIGINS", "https://camp.example, http://localhost")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	opts := cfg.Scheduler.EngineOptions(nil)
	if !opts.Voyageur {
		t.Error("Voyageur should be true")
	}
	if opts.Limits.BeachStaffCap != 5 {
		t.Errorf("BeachStaffCap = %d, want 5", opts.Limits.BeachStaffCap)
	}
	if opts.Solver.Weights[optimizer.TermAreaDay] != 7 || opts.Solver.Weights[optimizer.TermPrimaryDay] != 1 {
		t.Errorf("weights = %v", opts.Solver.Weights)
	}
	if len(cfg.API.CORS.Origins) != 2 {
		t.Errorf("Origins = %v", cfg.API.CORS.Origins)
	}
}

func TestParseWeights(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    int
		wantErr bool
	}{
		{"空字符串", "", 0, false},
		{"单个权重", "gap_closing=2.5", 1, false},
		{"未知评分项", "bogus=1", 0, true},
		{"缺少等号", "area_day", 0, true},
		{"不是数字", "area_day=x", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseWeights(tt.raw)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseWeights() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && len(got) != tt.want {
				t.Errorf("parseWeights() = %v, want %d entries", got, tt.want)
			}
		})
	}
}

func TestDSN(t *testing.T) {
	c := DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", Name: "camp", SSLMode: "disable"}
	want := "host=db port=5432 user=u password=p dbname=camp sslmode=disable"
	if got := c.DSN(); got != want {
		t.Errorf("DSN() = %q, want %q", got, want)
	}
}
