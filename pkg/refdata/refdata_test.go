package refdata

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type memReader map[string][]byte

func (m memReader) Get(ctx context.Context, container, path string) ([]byte, error) {
	data, ok := m[container+"/"+path]
	if !ok {
		return nil, errors.New("not found")
	}
	return data, nil
}

func TestParseCodes(t *testing.T) {
	csvData := "StateAbb,StateNum,StateNme\nUSA,2,United States of America\nIRQ, 645 ,Iraq\nAFG,700,Afghanistan\nIRQ,645,Iraq\n,,\n"

	codes, err := ParseCodes(strings.NewReader(csvData), DefaultColumn)
	if err != nil {
		t.Fatalf("ParseCodes() error = %v", err)
	}

	want := []int{2, 645, 700}
	if len(codes) != len(want) {
		t.Fatalf("codes = %v, want %v", codes, want)
	}
	for i := range want {
		if codes[i] != want[i] {
			t.Errorf("codes[%d] = %d, want %d", i, codes[i], want[i])
		}
	}
}

func TestParseCodes_Errors(t *testing.T) {
	if _, err := ParseCodes(strings.NewReader("a,b\n1,2\n"), "StateNum"); !errors.Is(err, ErrColumnNotFound) {
		t.Errorf("missing column error = %v, want ErrColumnNotFound", err)
	}
	if _, err := ParseCodes(strings.NewReader("StateNum\nabc\n"), "StateNum"); err == nil {
		t.Error("expected error for non-numeric code")
	}
	if _, err := ParseCodes(strings.NewReader(""), "StateNum"); err == nil {
		t.Error("expected error for empty input")
	}
}

func TestParseCodes_ByteOrderMark(t *testing.T) {
	codes, err := ParseCodes(strings.NewReader("\ufeffStateNum\n540\n"), "StateNum")
	if err != nil || len(codes) != 1 || codes[0] != 540 {
		t.Errorf("ParseCodes() = %v, %v", codes, err)
	}
}

func TestLoadCodes(t *testing.T) {
	src := memReader{"reference-data/gw_codes.csv": []byte("StateNum\n645\n700\n")}

	codes, err := LoadCodes(context.Background(), src, DefaultContainer, DefaultObject, DefaultColumn)
	if err != nil {
		t.Fatalf("LoadCodes() error = %v", err)
	}
	if len(codes) != 2 {
		t.Errorf("codes = %v", codes)
	}

	if _, err := LoadCodes(context.Background(), src, "other", "x.csv", DefaultColumn); err == nil {
		t.Error("expected error for missing object")
	}
}
