package brand

import (
	"testing"

	"github.com/google/uuid"

	"github.com/crafted/backend/internal/models"
)

func TestParseHex(t *testing.T) {
	tests := []struct {
		in      string
		r, g, b uint8
		wantErr bool
	}{
		{in: "FF5733", r: 0xFF, g: 0x57, b: 0x33},
		{in: "#ff5733", r: 0xFF, g: 0x57, b: 0x33},
		{in: "000000", r: 0, g: 0, b: 0},
		{in: "fff", wantErr: true},
		{in: "GGGGGG", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		r, g, b, err := ParseHex(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseHex(%q): want error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseHex(%q): %v", tt.in, err)
			continue
		}
		if r != tt.r || g != tt.g || b != tt.b {
			t.Errorf("ParseHex(%q) = %d,%d,%d, want %d,%d,%d", tt.in, r, g, b, tt.r, tt.g, tt.b)
		}
	}
}

func TestColorFamily(t *testing.T) {
	tests := []struct {
		name    string
		r, g, b uint8
		want    string
	}{
		{"pure red", 255, 0, 0, FamilyRed},
		{"orange", 255, 140, 0, FamilyOrange},
		{"yellow", 255, 225, 0, FamilyYellow},
		{"green", 0, 200, 0, FamilyGreen},
		{"teal", 0, 200, 200, FamilyCyan},
		{"blue", 20, 60, 230, FamilyBlue},
		{"purple", 140, 40, 220, FamilyPurple},
		{"magenta", 255, 0, 200, FamilyPink},
		{"white", 255, 255, 255, FamilyNeutral},
		{"black", 0, 0, 0, FamilyNeutral},
		{"gray", 128, 128, 128, FamilyNeutral},
		{"washed out blue", 176, 182, 189, FamilyNeutral},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ColorFamily(tt.r, tt.g, tt.b); got != tt.want {
				t.Errorf("ColorFamily(%d,%d,%d) = %q, want %q", tt.r, tt.g, tt.b, got, tt.want)
			}
		})
	}
}

func TestNearestOrdersByDistance(t *testing.T) {
	red := &models.StyleReference{ID: uuid.New(), R: 250, G: 10, B: 10, ColorFamily: FamilyRed}
	blue := &models.StyleReference{ID: uuid.New(), R: 10, G: 10, B: 250, ColorFamily: FamilyBlue}
	green := &models.StyleReference{ID: uuid.New(), R: 10, G: 250, B: 10, ColorFamily: FamilyGreen}
	refs := []*models.StyleReference{blue, green, red}

	got := Nearest(refs, 255, 0, 0, 2)
	if len(got) != 2 {
		t.Fatalf("got %d refs, want 2", len(got))
	}
	if got[0].ID != red.ID {
		t.Errorf("nearest to red = %s, want the red reference", got[0].ColorFamily)
	}
	// The input slice must not be reordered.
	if refs[0] != blue {
		t.Errorf("Nearest mutated its input")
	}
}

func TestNearestEmpty(t *testing.T) {
	if got := Nearest(nil, 1, 2, 3, 5); len(got) != 0 {
		t.Errorf("got %v, want empty", got)
	}
}
