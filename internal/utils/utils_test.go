package utils

import (
	"os"
	"path/filepath"
	"testing"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/sirupsen/logrus"
)

func TestSetLogLevel(t *testing.T) {
	tests := map[string]logrus.Level{
		"debug":   logrus.DebugLevel,
		"INFO":    logrus.InfoLevel,
		"warn":    logrus.WarnLevel,
		"warning": logrus.WarnLevel,
		"error":   logrus.ErrorLevel,
	}
	for in, want := range tests {
		SetLogLevel(in)
		if got := Log.GetLevel(); got != want {
			t.Fatalf("SetLogLevel(%q): got %v, want %v", in, got, want)
		}
	}
	SetLogLevel("info")
}

func TestGetAbsDBPath(t *testing.T) {
	p, err := GetAbsDBPath("")
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(p) != "opsconsole.sqlite" || !filepath.IsAbs(p) {
		t.Fatalf("unexpected default path %q", p)
	}

	p, err = GetAbsDBPath("snap.sqlite")
	if err != nil {
		t.Fatal(err)
	}
	if !filepath.IsAbs(p) {
		t.Fatalf("expected absolute path, got %q", p)
	}
}

func TestGetAbsDBPathFollowsHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	homedir.DisableCache = true
	t.Cleanup(func() { homedir.DisableCache = false })

	p, err := GetAbsDBPath("")
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join(home, ".config", "opsconsole", "opsconsole.sqlite"); p != want {
		t.Fatalf("got %q, want %q", p, want)
	}
}

func TestEnsureDir(t *testing.T) {
	target := filepath.Join(t.TempDir(), "a", "b", "db.sqlite")
	if err := EnsureDir(target); err != nil {
		t.Fatal(err)
	}
	if info, err := os.Stat(filepath.Dir(target)); err != nil || !info.IsDir() {
		t.Fatalf("directory not created: %v", err)
	}
}
