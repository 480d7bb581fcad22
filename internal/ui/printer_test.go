package ui

import (
	"bytes"
	"strings"
	"testing"
)

func TestPrinterStreamSplit(t *testing.T) {
	var out, errBuf bytes.Buffer
	p := NewTestPrinter(&out, &errBuf)

	p.Infof("scanning %s", "plugin")
	p.Successf("done")
	p.Warningf("slow venv")
	p.Errorf("boom")

	if !strings.Contains(out.String(), "scanning plugin") || !strings.Contains(out.String(), "done") {
		t.Errorf("stdout = %q", out.String())
	}
	if !strings.Contains(errBuf.String(), "warning: slow venv") || !strings.Contains(errBuf.String(), "error: boom") {
		t.Errorf("stderr = %q", errBuf.String())
	}
	if strings.Contains(out.String(), "\x1b[") || strings.Contains(errBuf.String(), "\x1b[") {
		t.Error("test printer must not emit color codes")
	}
}

func TestPrinterDebugGating(t *testing.T) {
	var out, errBuf bytes.Buffer
	p := NewTestPrinter(&out, &errBuf)

	p.Debugf("hidden")
	if errBuf.Len() != 0 {
		t.Errorf("debug line printed without verbose: %q", errBuf.String())
	}

	p.Verbose = true
	p.Debugf("shown")
	if !strings.Contains(errBuf.String(), "shown") {
		t.Errorf("verbose debug line missing: %q", errBuf.String())
	}
}
