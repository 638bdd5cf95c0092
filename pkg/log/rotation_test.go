// Log rotation tests
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package log

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRotatingFileWriter(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "mixer.log")

	writer, err := NewRotatingFileWriter(RotationConfig{Filename: logFile})
	if err != nil {
		t.Fatalf("failed to create rotating writer: %v", err)
	}
	defer writer.Close()

	msg := "test log message\n"
	n, err := writer.Write([]byte(msg))
	if err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if n != len(msg) {
		t.Errorf("expected %d bytes written, got %d", len(msg), n)
	}
	if writer.CurrentSize() != int64(len(msg)) {
		t.Errorf("expected size %d, got %d", len(msg), writer.CurrentSize())
	}
}

func TestRotatingFileWriterRotation(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "mixer.log")

	writer, err := NewRotatingFileWriter(RotationConfig{
		Filename:   logFile,
		MaxBytes:   16,
		MaxBackups: 2,
	})
	if err != nil {
		t.Fatalf("failed to create rotating writer: %v", err)
	}
	defer writer.Close()

	for _, line := range []string{"first line....\n", "second line...\n", "third line....\n", "fourth line...\n"} {
		if _, err := writer.Write([]byte(line)); err != nil {
			t.Fatalf("write failed: %v", err)
		}
	}

	current, _ := os.ReadFile(logFile)
	newest, _ := os.ReadFile(logFile + ".1")
	oldest, _ := os.ReadFile(logFile + ".2")
	if string(current) != "fourth line...\n" {
		t.Errorf("unexpected current file: %q", current)
	}
	if string(newest) != "third line....\n" {
		t.Errorf("unexpected .1 backup: %q", newest)
	}
	if string(oldest) != "second line...\n" {
		t.Errorf("unexpected .2 backup: %q", oldest)
	}
	if _, err := os.Stat(logFile + ".3"); !os.IsNotExist(err) {
		t.Errorf("expected only 2 backups, stat .3: %v", err)
	}
}

func TestNewFileLogger(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "sub", "mixer.log")

	logger, writer, err := NewFileLogger("file", RotationConfig{Filename: logFile})
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}
	logger.Info("to file")
	writer.Close()

	data, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "file: to file") {
		t.Errorf("unexpected file content: %s", data)
	}
	if strings.Contains(string(data), "\x1b[") {
		t.Error("file output should not be colorized")
	}
}

func TestRotatingFileWriterRequiresName(t *testing.T) {
	if _, err := NewRotatingFileWriter(RotationConfig{}); err == nil {
		t.Error("expected error for empty filename")
	}
}
