package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLogger_WriteAndStop(t *testing.T) {
	logPath := t.TempDir()
	l, e := NewLogger(logPath)
	if e != nil {
		t.Fatal(e)
	}

	GenerateInfoLog("Logger is Ready!")
	GenerateErrorLog(false, false, KeyIsNotExisted.Error(), "testKey")
	GenerateErrorLog(false, true, ParameterIsNotAllowed.Error(), "maxLevel", "0")
	l.StopLogger()
	l.StopLogger() // 重复停止不应该阻塞或者 panic

	files, e := filepath.Glob(filepath.Join(logPath, "log.*.misaka"))
	if e != nil {
		t.Fatal(e)
	}
	if len(files) != 1 {
		t.Fatalf("expect one log file, got %d", len(files))
	}
	content, e := os.ReadFile(files[0])
	if e != nil {
		t.Fatal(e)
	}
	t.Log(string(content))
	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	if !strings.HasPrefix(lines[0], string(Info)+" ") {
		t.Errorf("first line should be an info log: %s", lines[0])
	}
	if !strings.Contains(string(content), "testKey") {
		t.Error("error log parameters are missing")
	}
	if !strings.Contains(string(content), "Stack Trace") {
		t.Error("stack trace is missing")
	}
}

func TestGenerateInfoLog_WithoutLogger(t *testing.T) {
	// 没有 Logger 在监听时 log 直接打印 不能阻塞
	for i := 0; i < logChannelSize*2; i++ {
		GenerateInfoLog("no logger")
	}
}

func TestGenerateLogFilePath(t *testing.T) {
	result := GenerateLogFilePath("MisakaKVLog")
	t.Log(result)
	if !strings.HasPrefix(filepath.Base(result), "log.") || !strings.HasSuffix(result, ".misaka") {
		t.Errorf("unexpected log file name: %s", result)
	}
}
