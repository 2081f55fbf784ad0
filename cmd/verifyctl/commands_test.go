package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestRequirementsCommandListsDefaultSet(t *testing.T) {
	t.Setenv("REQUIREMENTS_FILE", "")
	out, err := runCmd(t, "requirements")
	if err != nil {
		t.Fatalf("requirements: %v", err)
	}
	if !strings.Contains(out, "ktp_uploaded") || !strings.Contains(out, "presence") {
		t.Fatalf("unexpected output:\n%s", out)
	}
}

func TestChecklistCommandWithInlineApplicant(t *testing.T) {
	t.Setenv("REQUIREMENTS_FILE", "")
	dir := t.TempDir()
	requestPath := filepath.Join(dir, "request.json")
	request := `{"applicant":{"fullName":"Siti Aminah","birthDate":"1990-01-05","educationLevel":"S1","major":"Teknik Informatika"},
"formasi":{"title":"Pranata Komputer","educationLevels":["S1"],"majors":["Teknik Informatika"],"minAge":18,"maxAge":40}}`
	if err := os.WriteFile(requestPath, []byte(request), 0o600); err != nil {
		t.Fatalf("write request: %v", err)
	}
	workbook := filepath.Join(dir, "out.xlsx")

	out, err := runCmd(t, "checklist", "--json", "--file", requestPath, "--xlsx", workbook)
	if err != nil {
		t.Fatalf("checklist: %v", err)
	}
	var checklist struct {
		Overall string `json:"overall"`
		Checks  []struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		} `json:"checks"`
	}
	if err := json.Unmarshal([]byte(out), &checklist); err != nil {
		t.Fatalf("decode output %q: %v", out, err)
	}
	if checklist.Overall != "failed" {
		t.Fatalf("expected failed without uploaded documents, got %q", checklist.Overall)
	}
	if info, err := os.Stat(workbook); err != nil || info.Size() == 0 {
		t.Fatalf("expected workbook at %s: %v", workbook, err)
	}
}

func TestChecklistCommandRequiresApplicant(t *testing.T) {
	if _, err := runCmd(t, "checklist"); err == nil || !strings.Contains(err.Error(), "applicant") {
		t.Fatalf("expected applicant error, got %v", err)
	}
}
