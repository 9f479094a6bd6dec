// Package chunking splits lease text into overlapping windows and tags each
// window with a coarse section label.
package chunking

import "strings"

const (
	// Size is the target window length in runes.
	Size = 1500
	// Overlap is how far each window reaches back into the previous one.
	Overlap = 200
)

// Chunk is one window of normalized document text.
type Chunk struct {
	Content string
	Index   int
	Section *string
	// Start and End are rune offsets of the window in the normalized text.
	Start int
	End   int
}

// Normalize collapses all whitespace runs to a single space and trims.
func Normalize(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// Split normalizes text and cuts it into chunks. Empty input yields no chunks.
func Split(text string) []Chunk {
	cleaned := []rune(Normalize(text))
	n := len(cleaned)
	if n == 0 {
		return nil
	}
	if n <= Size {
		content := string(cleaned)
		return []Chunk{{Content: content, Index: 0, Section: ClassifySection(content), End: n}}
	}

	var chunks []Chunk
	start := 0
	for start < n {
		end := start + Size
		if end < n {
			if sentenceEnd := lastIndex(cleaned, ". ", end); sentenceEnd > start+Size/2 {
				end = sentenceEnd + 1
			} else if spaceEnd := lastIndex(cleaned, " ", end); spaceEnd > start {
				end = spaceEnd
			}
		} else {
			end = n
		}

		content := strings.TrimSpace(string(cleaned[start:end]))
		if content != "" {
			chunks = append(chunks, Chunk{
				Content: content,
				Index:   len(chunks),
				Section: ClassifySection(content),
				Start:   start,
				End:     end,
			})
		}
		if end >= n {
			break
		}

		next := end - Overlap
		if next < 0 {
			next = 0
		}
		if next <= start {
			next = end
		}
		start = next
	}
	return chunks
}

// lastIndex finds the last occurrence of sep beginning at or before from.
func lastIndex(text []rune, sep string, from int) int {
	pattern := []rune(sep)
	if from > len(text)-len(pattern) {
		from = len(text) - len(pattern)
	}
	for i := from; i >= 0; i-- {
		match := true
		for j, r := range pattern {
			if text[i+j] != r {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}
