package corpus

import (
	"bufio"
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestSplitPassagesLineMode(t *testing.T) {
	got, err := splitPassages("שורה א\n\n  שורה ג  \n", "ספר", "/x/ספר.txt", []string{"t"}, ModeLine)
	if err != nil {
		t.Fatalf("splitPassages: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 passages, got %+v", got)
	}
	if got[1].Segment != 3 || got[1].Reference != "ספר 3" || got[1].Text != "שורה ג" {
		t.Fatalf("unexpected passage %+v", got[1])
	}
	if got[1].ID() != "/x/ספר.txt#3" {
		t.Fatalf("unexpected id %q", got[1].ID())
	}
}

func TestSplitPassagesFileMode(t *testing.T) {
	got, _ := splitPassages("a\nb\n", "ספר", "/x/ספר.txt", nil, ModeFile)
	if len(got) != 1 || got[0].Text != "a\nb" || got[0].Reference != "ספר" {
		t.Fatalf("unexpected passages %+v", got)
	}
	if blank, _ := splitPassages("  \n", "ספר", "p", nil, ModeFile); len(blank) != 0 {
		t.Fatalf("expected no passages for blank file")
	}
}

func TestSplitPassagesLineTooLong(t *testing.T) {
	body := "first\n" + strings.Repeat("x", maxLineBytes+1) + "\nthird\n"
	got, err := splitPassages(body, "ספר", "/x/ספר.txt", nil, ModeLine)
	if !errors.Is(err, bufio.ErrTooLong) {
		t.Fatalf("expected ErrTooLong, got passages=%d err=%v", len(got), err)
	}
}

func TestIngestDirFailsOnOversizedLine(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "big.txt"), "first\n"+strings.Repeat("x", 5*1024*1024)+"\nthird\n")
	idx, err := NewMemory()
	if err != nil {
		t.Fatalf("NewMemory: %v", err)
	}
	t.Cleanup(func() { _ = idx.Close() })
	n, err := NewIngester(idx, ModeLine, 10, zap.NewNop()).IngestDir(context.Background(), root)
	if !errors.Is(err, bufio.ErrTooLong) || !strings.Contains(err.Error(), "big.txt") {
		t.Fatalf("expected oversized line error naming the file, got n=%d err=%v", n, err)
	}
	if n != 0 {
		t.Fatalf("expected nothing indexed, got %d", n)
	}
}

func TestTopicsOf(t *testing.T) {
	if got := topicsOf("/c", "/c/תורה/חומש/בראשית.txt"); !reflect.DeepEqual(got, []string{"תורה", "חומש"}) {
		t.Fatalf("unexpected topics %v", got)
	}
	if got := topicsOf("/c", "/c/a.txt"); got != nil {
		t.Fatalf("expected no topics at root, got %v", got)
	}
}

func TestIngestDir(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "תורה", "בראשית.txt"), "בראשית ברא אלהים\nויאמר אלהים יהי אור\n")
	writeFile(t, filepath.Join(root, "תלמוד", "ברכות.txt"), "מאימתי קורין את שמע בערבין\n")
	writeFile(t, filepath.Join(root, "empty.txt"), "\n\n")
	writeFile(t, filepath.Join(root, "notes.md"), "# ignored\n")

	idx, err := NewMemory()
	if err != nil {
		t.Fatalf("NewMemory: %v", err)
	}
	defer idx.Close()

	n, err := NewIngester(idx, ModeLine, 2, zap.NewNop()).IngestDir(context.Background(), root)
	if err != nil {
		t.Fatalf("IngestDir: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 passages, got %d", n)
	}
	hits, err := idx.Search(context.Background(), "topics:תלמוד", 5)
	if err != nil || len(hits) != 1 || !strings.HasPrefix(hits[0].Reference, "ברכות") {
		t.Fatalf("expected topic search to find ברכות, got %+v (%v)", hits, err)
	}
}

func TestIngestDirCancelled(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.txt"), "x\n")
	idx, _ := NewMemory()
	defer idx.Close()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewIngester(idx, ModeLine, 10, nil).IngestDir(ctx, root); err == nil {
		t.Fatalf("expected cancellation error")
	}
}
