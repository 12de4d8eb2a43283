package util

import (
	"errors"
	"testing"

	"MisakaKV/logger"
)

func TestEncodeAndDecodeRecord(t *testing.T) {
	line, e := EncodeRecord("19", "value:with:delimiter", ":")
	if e != nil {
		t.Fatal(e)
	}
	t.Log(line)
	key, value, e := DecodeRecord(line, ":")
	if e != nil {
		t.Fatal(e)
	}
	if key != "19" || value != "value:with:delimiter" {
		t.Errorf("unexpected key %s value %s", key, value)
	}

	key, value, e = DecodeRecord("k=>", "=>")
	if e != nil || key != "k" || value != "" {
		t.Errorf("empty value should be allowed, got %s %s %v", key, value, e)
	}
}

func TestEncodeRecord_Illegal(t *testing.T) {
	if _, e := EncodeRecord("a:b", "v", ":"); !errors.Is(e, logger.RecordIsIllegal) {
		t.Errorf("key with delimiter should be illegal, got %v", e)
	}
	if _, e := EncodeRecord("a", "line\nbreak", ":"); !errors.Is(e, logger.RecordIsIllegal) {
		t.Errorf("value with newline should be illegal, got %v", e)
	}
	if _, e := EncodeRecord("a", "v", ""); !errors.Is(e, logger.DelimiterIsIllegal) {
		t.Errorf("empty delimiter should be illegal, got %v", e)
	}
}

func TestDecodeRecord_Illegal(t *testing.T) {
	for _, line := range []string{"", "no delimiter"} {
		if _, _, e := DecodeRecord(line, ":"); !errors.Is(e, logger.RecordIsIllegal) {
			t.Errorf("line %q should be illegal, got %v", line, e)
		}
	}
}

func TestTurnByteArrayToString(t *testing.T) {
	if result := TurnByteArrayToString([]byte{1, 2}); result != "1 2 " {
		t.Errorf("unexpected result %q", result)
	}
}
