package file

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFileIO(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.txt")
	f, e := NewFileIO(path, false)
	if e != nil {
		t.Fatal(e)
	}

	e = f.Write([]byte("111222"), 0)
	if e != nil {
		t.Fatal(e)
	}
	e = f.Write([]byte("333444"), 6)
	if e != nil {
		t.Fatal(e)
	}
	if e = f.Sync(); e != nil {
		t.Fatal(e)
	}

	length, e := f.Length()
	if e != nil {
		t.Fatal(e)
	}
	if length != 12 {
		t.Errorf("length should be 12, got %d", length)
	}

	data := make([]byte, 5)
	e = f.Read(data, 4)
	if e != nil {
		t.Fatal(e)
	}
	t.Log(string(data))
	if string(data) != "22333" {
		t.Errorf("unexpected content %s", string(data))
	}
	if e = f.Close(); e != nil {
		t.Fatal(e)
	}

	// 以清空的方式重新打开
	f, e = NewFileIO(path, true)
	if e != nil {
		t.Fatal(e)
	}
	if length, _ = f.Length(); length != 0 {
		t.Errorf("truncated file should be empty, got %d", length)
	}
	if e = f.Delete(); e != nil {
		t.Fatal(e)
	}
	if _, e = os.Stat(path); !os.IsNotExist(e) {
		t.Errorf("file should be removed, got %v", e)
	}
}
