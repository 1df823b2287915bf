/*
Copyright 2026 The Kubernetes Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package archive

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestWriteAndWalk(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	if err := os.MkdirAll(filepath.Join(src, "nested"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(src, "blueprint.yaml"), []byte("main"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(src, "nested", "inputs.yaml"), []byte("inputs"), 0644); err != nil {
		t.Fatal(err)
	}

	out := filepath.Join(dir, "out", "bundle.tgz")
	w, err := Create(out)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := w.AddBytes("METADATA", []byte("a: b\n")); err != nil {
		t.Fatalf("AddBytes: %v", err)
	}
	if err := w.AddDir("bp", src); err != nil {
		t.Fatalf("AddDir: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	got := map[string]string{}
	if err := Walk(out, func(name string, _ int64, r io.Reader) error {
		b, err := io.ReadAll(r)
		got[name] = string(b)
		return err
	}); err != nil {
		t.Fatalf("Walk: %v", err)
	}
	expected := map[string]string{
		"METADATA":              "a: b\n",
		"bp/blueprint.yaml":     "main",
		"bp/nested/inputs.yaml": "inputs",
	}
	if diff := cmp.Diff(expected, got); diff != "" {
		t.Errorf("archive contents differ (-want +got):\n%s", diff)
	}

	dest := filepath.Join(dir, "extracted")
	if err := Extract(out, dest); err != nil {
		t.Fatalf("Extract: %v", err)
	}
	b, err := os.ReadFile(filepath.Join(dest, "bp", "nested", "inputs.yaml"))
	if err != nil {
		t.Fatalf("reading extracted file: %v", err)
	}
	if string(b) != "inputs" {
		t.Errorf("extracted content %q", string(b))
	}
}

func TestAbortRemovesArchive(t *testing.T) {
	out := filepath.Join(t.TempDir(), "partial.tgz")
	w, err := Create(out)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.AddFile("missing", filepath.Join(t.TempDir(), "does-not-exist")); err == nil {
		t.Fatal("expected an error adding a missing file")
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Errorf("expected %s to be removed, stat returned %v", out, err)
	}
}

func TestCleanName(t *testing.T) {
	cases := []struct {
		name      string
		in        string
		expected  string
		expectErr bool
	}{
		{name: "plain", in: "a/b.wgn", expected: "a/b.wgn"},
		{name: "dot prefix", in: "./a/b", expected: "a/b"},
		{name: "windows separators", in: `a\b`, expected: "a/b"},
		{name: "absolute", in: "/etc/passwd", expectErr: true},
		{name: "traversal", in: "a/../../etc", expectErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := cleanName(tc.in)
			if (err != nil) != tc.expectErr {
				t.Fatalf("expected error %t, got %v", tc.expectErr, err)
			}
			if got != tc.expected {
				t.Errorf("expected %q, got %q", tc.expected, got)
			}
		})
	}
}
