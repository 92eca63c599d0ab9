package retrieval

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"pdfrag/internal/domain"
)

// FormatResults renders a search-result listing: rank, identity, distance,
// and text when present. Results are listed in ascending distance order no
// matter how the input is ordered. Pure function, no side effects.
func FormatResults(query string, results []domain.SearchResult) string {
	ordered := make([]domain.SearchResult, len(results))
	copy(ordered, results)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Distance < ordered[j].Distance
	})

	var b strings.Builder
	b.WriteString("_______QUERY_______\n")
	b.WriteString(query)
	b.WriteString("\n_______RESULTS_______\n")
	for i, r := range ordered {
		b.WriteString("-------------------\n")
		fmt.Fprintf(&b, "Rank: %d\n", i+1)
		fmt.Fprintf(&b, "File: %s\n", r.Chunk.Source)
		fmt.Fprintf(&b, "Chunk: %d\n", r.Chunk.Sequence)
		fmt.Fprintf(&b, "Distance: %s\n", strconv.FormatFloat(r.Distance, 'g', -1, 64))
		if r.Chunk.Text != "" {
			fmt.Fprintf(&b, "Text: %s\n", strings.TrimSpace(r.Chunk.Text))
		}
	}
	return b.String()
}

// FormatGeneratedAnswer renders the query/task/answer listing for a grouped
// generation. Pure function, no side effects.
func FormatGeneratedAnswer(query, task, generated string) string {
	var b strings.Builder
	b.WriteString("_______QUERY_______\n")
	b.WriteString(query)
	b.WriteString("\n_______TASK_______\n")
	b.WriteString(task)
	b.WriteString("\n_______GENERATED RESULT_______\n")
	b.WriteString(generated)
	b.WriteString("\n")
	return b.String()
}
