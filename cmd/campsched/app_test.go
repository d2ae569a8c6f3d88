package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/paiban/campsched/internal/config"
	"github.com/paiban/campsched/internal/loader"
	"github.com/paiban/campsched/pkg/errors"
)

const troopsYAML = `
week: 2026-W30
troops:
  - name: Tecumseh
    commissioner: Tecumseh
    preferences: [Aqua Trampoline, Archery, Troop Rifle, Hemp Craft, Sailing, Gaga Ball, Dr. DNA, Knots and Lashings, Fishing, Tie Dye]
  - name: Samoset
    commissioner: Samoset
    preferences: [Climbing Tower, Troop Canoe, Archery, Water Polo, Loon Lore, 9 Square, Trading Post, Orienteering, Disc Golf, "Monkey's Fist"]
  - name: Pontiac
    commissioner: Pontiac
    preferences: [Troop Kayak, Hemp Craft, Troop Rifle, Knots and Lashings, Nature Canoe, "Monkey's Fist", Disc Golf, Shower House, Nature Salad, 9 Square]
`

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("config.Load() error = %v", err)
	}
	cfg.Scheduler.CatalogFile = ""
	return cfg
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	app := newApp(testConfig(t))
	var out bytes.Buffer
	app.Writer = &out
	app.ErrWriter = &out
	err := app.Run(append([]string{"campsched"}, args...))
	return out.String(), err
}

func TestGenerateAndValidate(t *testing.T) {
	dir := t.TempDir()
	input := writeFile(t, dir, "troops.yaml", troopsYAML)
	output := filepath.Join(dir, "schedule.yaml")

	if _, err := run(t, "generate", "-i", input, "-o", output); err != nil {
		t.Fatalf("generate error = %v", err)
	}
	sched, err := loader.New(nil).LoadSchedule(output)
	if err != nil {
		t.Fatalf("LoadSchedule() error = %v", err)
	}
	if sched.Week != "2026-W30" || !sched.Success || len(sched.Grid) != 3 {
		t.Fatalf("schedule = week %q success %v grid %d", sched.Week, sched.Success, len(sched.Grid))
	}

	out, err := run(t, "validate", "-i", input, "-s", output)
	if err != nil {
		t.Fatalf("validate error = %v, output:\n%s", err, out)
	}

	// 去掉一个独占时段的记录后留下空档
	cells := make(map[string]int)
	for _, e := range sched.Entries {
		cells[fmt.Sprintf("%s/%s/%d", e.Troop, e.Day, e.Slot)]++
	}
	for i, e := range sched.Entries {
		if cells[fmt.Sprintf("%s/%s/%d", e.Troop, e.Day, e.Slot)] == 1 {
			sched.Entries = append(sched.Entries[:i:i], sched.Entries[i+1:]...)
			break
		}
	}
	broken := filepath.Join(dir, "broken.yaml")
	if err := loader.SaveSchedule(broken, sched); err != nil {
		t.Fatalf("SaveSchedule() error = %v", err)
	}
	out, err = run(t, "validate", "-i", input, "-s", broken)
	if !errors.Is(err, errors.CodeInvariantViolation) {
		t.Fatalf("validate error = %v, want INVARIANT_VIOLATION", err)
	}
	if !strings.Contains(out, "gap") {
		t.Errorf("validate output missing gap conflict:\n%s", out)
	}
}

func TestGenerate_Stdout(t *testing.T) {
	input := writeFile(t, t.TempDir(), "troops.yaml", troopsYAML)
	out, err := run(t, "generate", "--input", input, "--skip-polish")
	if err != nil {
		t.Fatalf("generate error = %v", err)
	}
	for _, want := range []string{"week: 2026-W30", "troop: Tecumseh", "entries:"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q", want)
		}
	}
}

func TestGenerate_Errors(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name string
		args []string
	}{
		{"缺少输入", []string{"generate"}},
		{"文件不存在", []string{"generate", "-i", filepath.Join(dir, "missing.yaml")}},
		{"未知活动", []string{"generate", "-i", writeFile(t, dir, "bad.yaml", "week: w\ntroops:\n  - name: A\n    preferences: [Bungee]\n")}},
		{"目录不存在", []string{"generate", "-i", writeFile(t, dir, "ok.yaml", troopsYAML), "-c", filepath.Join(dir, "none.yaml")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := run(t, tt.args...); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestCatalogAndRules(t *testing.T) {
	out, err := run(t, "catalog")
	if err != nil {
		t.Fatalf("catalog error = %v", err)
	}
	if !strings.Contains(out, "activities:") || !strings.Contains(out, "Archery") {
		t.Errorf("catalog output = %s", out)
	}

	out, err = run(t, "rules")
	if err != nil {
		t.Fatalf("rules error = %v", err)
	}
	if !strings.Contains(out, "display_name:") || !strings.Contains(out, "CAMP_FLEET_CAPACITY") {
		t.Errorf("rules output = %s", out)
	}
}
