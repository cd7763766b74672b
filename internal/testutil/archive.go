// Package testutil builds plugin archives and manifests for tests.
package testutil

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"testing"

	plugindomain "geektools.dev/cli/internal/core/domain/plugin"
)

// ArchiveBuilder assembles an in-memory plugin package
type ArchiveBuilder struct {
	files map[string][]byte
	modes map[string]int64
}

// NewArchiveBuilder creates an empty builder
func NewArchiveBuilder() *ArchiveBuilder {
	return &ArchiveBuilder{
		files: make(map[string][]byte),
		modes: make(map[string]int64),
	}
}

// NewPluginArchive creates a builder holding manifest as info.json and an
// executable stub for every declared script.
func NewPluginArchive(manifest plugindomain.Manifest) *ArchiveBuilder {
	b := NewArchiveBuilder().WithManifest(manifest)
	for _, s := range manifest.Scripts {
		b.WithScript(s.File, "#!/bin/sh\necho "+s.Name+"\n")
	}
	return b
}

// WithManifest stores manifest as info.json
func (b *ArchiveBuilder) WithManifest(manifest plugindomain.Manifest) *ArchiveBuilder {
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		panic(err)
	}
	return b.WithFile(plugindomain.ManifestFile, data)
}

// WithScript stores content under scripts/
func (b *ArchiveBuilder) WithScript(file, content string) *ArchiveBuilder {
	return b.WithFile(plugindomain.ScriptsDir+"/"+file, []byte(content))
}

// WithFile stores an arbitrary file at a slash-separated path
func (b *ArchiveBuilder) WithFile(name string, data []byte) *ArchiveBuilder {
	b.files[name] = data
	b.modes[name] = 0o644
	return b
}

// WithoutFile drops a previously added file
func (b *ArchiveBuilder) WithoutFile(name string) *ArchiveBuilder {
	delete(b.files, name)
	delete(b.modes, name)
	return b
}

// Bytes returns the gzip-compressed tar stream
func (b *ArchiveBuilder) Bytes() []byte {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)

	names := make([]string, 0, len(b.files))
	for name := range b.files {
		names = append(names, name)
	}
	sort.Strings(names)

	dirs := make(map[string]bool)
	for _, name := range names {
		for dir := filepath.ToSlash(filepath.Dir(name)); dir != "." && !dirs[dir]; dir = filepath.ToSlash(filepath.Dir(dir)) {
			dirs[dir] = true
			must(tw.WriteHeader(&tar.Header{Name: dir + "/", Typeflag: tar.TypeDir, Mode: 0o755}))
		}
		data := b.files[name]
		must(tw.WriteHeader(&tar.Header{Name: name, Typeflag: tar.TypeReg, Mode: b.modes[name], Size: int64(len(data))}))
		_, err := tw.Write(data)
		must(err)
	}

	must(tw.Close())
	must(gz.Close())
	return buf.Bytes()
}

// Write stores the archive as name inside dir and returns its path
func (b *ArchiveBuilder) Write(t testing.TB, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, b.Bytes(), 0o644); err != nil {
		t.Fatalf("failed to write archive: %v", err)
	}
	return path
}

// Manifest returns a valid manifest declaring one executable script per name
func Manifest(id string, scripts ...string) plugindomain.Manifest {
	m := plugindomain.Manifest{
		ID:          id,
		Name:        id + " plugin",
		Version:     "1.0.0",
		Description: "test plugin " + id,
		Author:      "tester",
		Tags:        []string{"test"},
	}
	for _, s := range scripts {
		m.Scripts = append(m.Scripts, plugindomain.ScriptEntry{
			Name:        s,
			File:        s + ".sh",
			Description: "runs " + s,
			Executable:  true,
		})
	}
	return m
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}
