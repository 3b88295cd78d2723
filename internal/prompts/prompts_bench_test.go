package prompts

import (
	"fmt"
	"strings"
	"testing"
)

// BenchmarkRenderSystem benchmarks rendering the system prompt for a 200-line document.
func BenchmarkRenderSystem(b *testing.B) {
	var lines []string
	for i := 1; i <= 200; i++ {
		lines = append(lines, fmt.Sprintf("%d:     - [ ] task %d", i, i))
	}
	numbered := strings.Join(lines, "\n")
	r := NewRenderer(NewStore(""))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := r.System("todo.md", numbered); err != nil {
			b.Fatalf("System failed: %v", err)
		}
	}
}
