package cmd

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Angel-Nizama/web-operaciones-v2/internal/storage"
	"github.com/Angel-Nizama/web-operaciones-v2/pkg/matching"
)

func TestApplyScoringFlagsOverridesOnlyGivenFlags(t *testing.T) {
	cmd := &cobra.Command{Use: "test"}
	addScoringFlags(cmd)
	if err := cmd.ParseFlags([]string{"--dias-minimos", "7", "--monto-maximo", "0", "--peso-patron", "0.2"}); err != nil {
		t.Fatal(err)
	}

	cfg := matching.DefaultConfiguration()
	applyScoringFlags(cmd, &cfg)

	want := matching.DefaultConfiguration()
	want.MinimumDays = 7
	want.MaximumAmount = 0
	want.Weights.Pattern = 0.2
	if cfg != want {
		t.Fatalf("got %+v, want %+v", cfg, want)
	}
}

func TestOpenDBCreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "archive.sqlite")
	viper.Set("storage.dbpath", path)
	t.Cleanup(func() { viper.Set("storage.dbpath", "") })

	db, err := openDB()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	snap := matching.NewSnapshot([]matching.MatchResult{{AffiliateA: "Pérez", AffiliateB: "Gómez", Risk: 12}}, matching.DefaultConfiguration())
	if _, err := db.SaveSnapshot(context.Background(), snap); err != nil {
		t.Fatal(err)
	}
	_, got, err := db.LatestSnapshot(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got.Len() != 1 {
		t.Fatalf("expected 1 archived result, got %d", got.Len())
	}
}

func TestShowArchivedMarksStaleResult(t *testing.T) {
	path := filepath.Join(t.TempDir(), "archive.sqlite")
	viper.Set("storage.dbpath", path)
	t.Cleanup(func() { viper.Set("storage.dbpath", "") })

	cmd, o := newViewCmd(t, "--max-risk", "30")
	var buf bytes.Buffer
	if err := o.showArchived(context.Background(), cmd, &buf); !errors.Is(err, storage.ErrNoSnapshot) {
		t.Fatalf("expected ErrNoSnapshot on an empty archive, got %v", err)
	}
	if buf.Len() != 0 {
		t.Fatalf("nothing should be printed without an archive, got %q", buf.String())
	}

	db, err := openDB()
	if err != nil {
		t.Fatal(err)
	}
	snap := matching.NewSnapshot([]matching.MatchResult{
		{AffiliateA: "Pérez", AffiliateB: "Gómez", Risk: 12},
		{AffiliateA: "Ruiz", AffiliateB: "Soto", Risk: 70},
	}, matching.DefaultConfiguration())
	_, err = db.SaveSnapshot(context.Background(), snap)
	db.Close()
	if err != nil {
		t.Fatal(err)
	}

	if err := o.showArchived(context.Background(), cmd, &buf); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.HasPrefix(out, "STALE: showing archived calculation") {
		t.Fatalf("missing stale marker: %q", out)
	}
	if !strings.Contains(out, "Pérez") || strings.Contains(out, "Ruiz") {
		t.Fatalf("archived view should honor the filter flags: %q", out)
	}
}
