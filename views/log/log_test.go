package log

import "testing"

func TestHeight(t *testing.T) {
	tests := []struct {
		screen, want int
	}{
		{0, 3},
		{12, 4},
		{30, 10},
		{90, 15},
	}
	for _, tt := range tests {
		if got := Height(tt.screen); got != tt.want {
			t.Errorf("Height(%d) = %d, want %d", tt.screen, got, tt.want)
		}
	}
}
