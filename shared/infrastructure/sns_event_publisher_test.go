package infrastructure

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitToChunks(t *testing.T) {
	tests := []struct {
		name  string
		size  int
		chunk int
		want  []int
	}{
		{"empty", 0, 10, nil},
		{"single partial chunk", 3, 10, []int{3}},
		{"exact chunks", 20, 10, []int{10, 10}},
		{"trailing partial chunk", 25, 10, []int{10, 10, 5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items := make([]int, tt.size)
			chunks := splitToChunks(items, tt.chunk)

			var sizes []int
			for _, c := range chunks {
				sizes = append(sizes, len(c))
			}
			assert.Equal(t, tt.want, sizes)
		})
	}
}
