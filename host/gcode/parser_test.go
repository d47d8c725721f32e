package gcode

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"edmpulser/core"
)

func TestParse(t *testing.T) {
	tests := []struct {
		input string
		want  *Line
	}{
		{"M552 D300 I2.5 Q20", &Line{Letter: 'M', Number: 552, Words: map[byte]float64{'D': 300, 'I': 2.5, 'Q': 20}}},
		{"m551p1", &Line{Letter: 'M', Number: 551, Words: map[byte]float64{'P': 1}}},
		{"  M554\t", &Line{Letter: 'M', Number: 554, Words: map[byte]float64{}}},
		{"G1 X-10.5 Y+20 F3000", &Line{Letter: 'G', Number: 1, Words: map[byte]float64{'X': -10.5, 'Y': 20, 'F': 3000}}},
		{"M550 P1 ; dump", &Line{Letter: 'M', Number: 550, Words: map[byte]float64{'P': 1}, Comment: "; dump"}},
		{"(setup)", &Line{Words: map[byte]float64{}, Comment: "(setup)"}},
		{"S1000", &Line{Words: map[byte]float64{'S': 1000}}},
		{"", nil},
		{"   ", nil},
	}

	for _, test := range tests {
		got, err := Parse(test.input)
		if err != nil {
			t.Errorf("Parse(%q): %v", test.input, err)
			continue
		}
		if diff := cmp.Diff(test.want, got); diff != "" {
			t.Errorf("Parse(%q) mismatch (-want +got):\n%s", test.input, diff)
		}
	}
}

func TestParseErrors(t *testing.T) {
	for _, input := range []string{
		"M",
		"M552 D",
		"M552 Dxyz",
		"M552 D1.2.3",
		"M552 300",
		"M552 D-",
	} {
		if _, err := Parse(input); !errors.Is(err, ErrBadNumber) {
			t.Errorf("Parse(%q) = %v, want ErrBadNumber", input, err)
		}
	}
}

func TestBlock(t *testing.T) {
	l, err := Parse("M553 I1")
	if err != nil {
		t.Fatal(err)
	}
	b, err := l.Block()
	if err != nil {
		t.Fatal(err)
	}
	if b.Code != core.MCodeEnergizePositive {
		t.Errorf("code = %d, want %d", b.Code, core.MCodeEnergizePositive)
	}
	if v, ok := b.Value('I'); !ok || v != 1 {
		t.Errorf("I = %v, %t", v, ok)
	}

	g, err := Parse("G0 X1")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := g.Block(); !errors.Is(err, ErrNotMCode) {
		t.Errorf("G line Block() = %v, want ErrNotMCode", err)
	}
	var nilLine *Line
	if _, err := nilLine.Block(); !errors.Is(err, ErrNotMCode) {
		t.Errorf("nil Block() = %v, want ErrNotMCode", err)
	}
}
