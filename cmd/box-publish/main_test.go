package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/erhudy/boxspiegel"
)

func writeFile(t *testing.T, path string, data string) string {
	t.Helper()
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunPublishesToDirectory(t *testing.T) {
	dir := t.TempDir()
	root := filepath.Join(dir, "www")
	box := writeFile(t, filepath.Join(dir, "base.box"), "box contents")
	config := writeFile(t, filepath.Join(dir, "config.yaml"), `
provider: virtualbox
baseurl: https://boxes.example.com
name: acme/base
description: base image
storage_type: fs
remotepath: `+root+`
`)

	var stderr bytes.Buffer
	code := run([]string{"-c", config, "--file", box, "--version", "1.0.0", "--staging-dir", dir}, &stderr)
	if code != 0 {
		t.Fatalf("exit code %d: %s", code, stderr.String())
	}

	doc, err := os.ReadFile(filepath.Join(root, "acme", "base", boxspiegel.METADATA_FILE))
	if err != nil {
		t.Fatalf("catalog not published: %v", err)
	}
	catalog, err := boxspiegel.ParseCatalog(doc)
	if err != nil {
		t.Fatal(err)
	}
	if catalog.Description != "base image" || len(catalog.Versions) != 1 {
		t.Errorf("unexpected catalog %#v", catalog)
	}
	if url := catalog.Versions[0].Providers[0].URL; url != "https://boxes.example.com/acme/base/boxes/base.box" {
		t.Errorf("url = %s", url)
	}

	code = run([]string{"-c", config, "--file", box, "--version", "1.0.0", "--staging-dir", dir}, &stderr)
	if code != 1 {
		t.Errorf("republishing a version: exit code %d, want 1", code)
	}
}

func TestRunConfigErrors(t *testing.T) {
	dir := t.TempDir()
	box := writeFile(t, filepath.Join(dir, "base.box"), "box")

	tests := []struct {
		name string
		args []string
	}{
		{"explicit config missing", []string{"-c", filepath.Join(dir, "missing.json")}},
		{"nothing configured", []string{"-c", filepath.Join(dir, "missing.json"), "--file", box}},
		{"no version", []string{"--file", box, "--provider", "virtualbox", "--baseurl", "https://x", "--storage-type", "fs", "--remotepath", dir}},
		{"bad retries", []string{"--file", box, "--provider", "virtualbox", "--baseurl", "https://x", "--version", "1", "--storage-type", "fs", "--remotepath", dir, "--retries", "-2"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// keep the default config.json lookup away from the working directory
			wd, err := os.Getwd()
			if err != nil {
				t.Fatal(err)
			}
			if err := os.Chdir(t.TempDir()); err != nil {
				t.Fatal(err)
			}
			t.Cleanup(func() { os.Chdir(wd) })
			var stderr bytes.Buffer
			if code := run(tt.args, &stderr); code != 1 {
				t.Errorf("exit code = %d, want 1", code)
			}
		})
	}
}
