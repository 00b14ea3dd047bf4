package filehandler

import (
	"testing"

	"github.com/fpang/idcard-ocr/internal/idcard"
)

func TestAudit(t *testing.T) {
	pdfDir, imgDir := t.TempDir(), t.TempDir()
	for _, n := range []string{"alice.pdf", "bob.pdf", "carol.pdf", "notes.txt"} {
		touch(t, pdfDir, n)
	}
	for _, n := range []string{"alice_front.png", "alice_back.png", "bob_back.png", "dave_front.png"} {
		touch(t, imgDir, n)
	}

	r, err := Audit(pdfDir, imgDir)
	if err != nil {
		t.Fatalf("Audit error: %v", err)
	}
	if r.Inputs != 3 {
		t.Errorf("Inputs = %d, want 3", r.Inputs)
	}
	if len(r.Complete) != 1 || r.Complete[0].Name != "alice" {
		t.Errorf("Complete = %+v", r.Complete)
	}
	if len(r.Incomplete) != 1 || r.Incomplete[0].Name != "bob" {
		t.Fatalf("Incomplete = %+v", r.Incomplete)
	}
	if m := r.Incomplete[0].Missing; len(m) != 1 || m[0] != idcard.Front {
		t.Errorf("bob missing = %v, want [FRONT]", m)
	}
	if len(r.CompletelyMissing) != 1 || r.CompletelyMissing[0].Name != "carol" {
		t.Errorf("CompletelyMissing = %+v", r.CompletelyMissing)
	}
	if len(r.ExtraOutputs) != 1 || r.ExtraOutputs[0].Name != "dave" {
		t.Errorf("ExtraOutputs = %+v", r.ExtraOutputs)
	}
	if r.Skipped() != 2 {
		t.Errorf("Skipped() = %d, want 2", r.Skipped())
	}
}

func TestAuditMissingDirectory(t *testing.T) {
	if _, err := Audit(t.TempDir()+"/nope", t.TempDir()); err == nil {
		t.Error("expected error for missing pdf directory")
	}
}
