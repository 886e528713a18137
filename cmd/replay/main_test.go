package main

import (
	"bytes"
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/freeeve/repower/internal/service"
)

type fakeReplayer map[string][]service.Divergence

func (f fakeReplayer) ReplayMatch(_ context.Context, id string) ([]service.Divergence, error) {
	divs, ok := f[id]
	if !ok {
		return nil, service.ErrMatchNotFound
	}
	return divs, nil
}

func TestSplitIDs(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"a", []string{"a"}},
		{" a, ,b ", []string{"a", "b"}},
	}
	for _, tt := range tests {
		if got := splitIDs(tt.in); !slices.Equal(got, tt.want) {
			t.Errorf("splitIDs(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestRun(t *testing.T) {
	r := fakeReplayer{
		"clean": nil,
		"bad":   {{Turn: 3, Reason: "board differs"}, {Turn: 4, Reason: "stored 1 battles, replayed 0"}},
	}
	var out bytes.Buffer
	n, err := run(context.Background(), r, []string{"clean", "bad"}, &out)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("expected one diverging match, got %d", n)
	}
	want := "clean: ok\nbad: turn 3: board differs\nbad: turn 4: stored 1 battles, replayed 0\n"
	if out.String() != want {
		t.Errorf("unexpected output:\n%s", out.String())
	}
}

func TestRunStopsOnError(t *testing.T) {
	var out bytes.Buffer
	_, err := run(context.Background(), fakeReplayer{}, []string{"missing"}, &out)
	if !errors.Is(err, service.ErrMatchNotFound) {
		t.Errorf("expected ErrMatchNotFound, got %v", err)
	}
}
