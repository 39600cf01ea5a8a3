//go:build integration

package integration

import (
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

// binaryPath builds the CLI once per test binary into a temp dir
func binaryPath(t *testing.T) string {
	t.Helper()
	if p := os.Getenv("TASKLINK_BIN"); p != "" {
		return p
	}

	out := filepath.Join(t.TempDir(), "tasklink")
	cmd := exec.Command("go", "build", "-o", out, "../cmd/tasklink")
	if b, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("Failed to build binary: %v\n%s", err, b)
	}
	return out
}

// createTestConfig writes a config pointing at the fake services
func createTestConfig(t *testing.T, w *world, dbPath string) string {
	t.Helper()
	configPath := TempConfigPath(t)

	config := `[craft]
base_url = "` + w.craft.URL + `"
space_id = "` + space + `"
token = "craft-token"
projects_folder = "` + folder + `"

[motion]
base_url = "` + w.motion.URL + `"
api_key = "` + apiKey + `"
projects_workspace = "` + workspace + `"

[sync]
timezone = "UTC"

[storage]
backend = "sqlite"
database_path = "` + dbPath + `"

[notifications]
desktop = false

[web]
enabled = false
`
	if err := os.WriteFile(configPath, []byte(config), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return configPath
}

// runCLI returns the command's stdout; logs go to stderr
func runCLI(t *testing.T, binary string, args ...string) string {
	t.Helper()
	var stderr strings.Builder
	cmd := exec.Command(binary, args...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		t.Fatalf("%s failed: %v\n%s%s", strings.Join(args, " "), err, out, stderr.String())
	}
	return string(out)
}

// TestCLI_RunStatusMappings drives a pass through the binary and reads
// the results back with the read-only commands
func TestCLI_RunStatusMappings(t *testing.T) {
	binary := binaryPath(t)
	w := newWorld(t)
	dbPath := TempDBPath(t)
	configPath := createTestConfig(t, w, dbPath)

	out := runCLI(t, binary, "run", "--config", configPath)
	for _, want := range []string{"(Success)", "Created 3", "Linked 2"} {
		if !strings.Contains(out, want) {
			t.Errorf("run output missing %q, got: %s", want, out)
		}
	}

	out = runCLI(t, binary, "status", "--config", configPath)
	if !strings.Contains(out, "Mappings: 2 projects | 3 tasks") {
		t.Errorf("status output = %s", out)
	}

	out = runCLI(t, binary, "mappings", "--type", "task", "--format", "json", "--config", configPath)
	var rows []map[string]interface{}
	if err := json.Unmarshal([]byte(out), &rows); err != nil {
		t.Fatalf("mappings output is not JSON: %v\n%s", err, out)
	}
	if len(rows) != 3 {
		t.Errorf("task mappings = %d, want 3", len(rows))
	}
}

// TestCLI_RunRejectsIncompleteConfig checks startup fails fast when
// required settings are missing
func TestCLI_RunRejectsIncompleteConfig(t *testing.T) {
	binary := binaryPath(t)
	configPath := TempConfigPath(t)
	if err := os.WriteFile(configPath, []byte("[sync]\ntimezone = \"UTC\"\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cmd := exec.Command(binary, "run", "--config", configPath)
	cmd.Env = append(os.Environ(), "CRAFT_API_TOKEN=", "CRAFT_SPACE_ID=", "MOTION_API_KEY=")
	out, err := cmd.CombinedOutput()
	if err == nil {
		t.Fatalf("run should fail without credentials, got: %s", out)
	}
	if !strings.Contains(string(out), "motion.api_key is required") {
		t.Errorf("output should name the missing setting, got: %s", out)
	}
}
