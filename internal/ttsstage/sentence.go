package ttsstage

import "strings"

// sentenceBuffer accumulates streamed LLM tokens and splits at sentence
// boundaries, grounded on hubenschmidt's pipeline/sentence.go.
type sentenceBuffer struct {
	buf        strings.Builder
	chunkEvery int // group this many sentences before returning one segment
	pending    []string
}

func newSentenceBuffer(chunkEvery int) *sentenceBuffer {
	if chunkEvery <= 0 {
		chunkEvery = 1
	}
	return &sentenceBuffer{chunkEvery: chunkEvery}
}

// Add appends a token and returns a segment once chunkEvery sentences have
// accumulated, or "" if none is ready yet.
func (s *sentenceBuffer) Add(token string) string {
	s.buf.WriteString(token)
	text := s.buf.String()
	complete, remainder := splitAtSentence(text)
	if complete == "" {
		return ""
	}
	s.buf.Reset()
	s.buf.WriteString(remainder)

	s.pending = append(s.pending, complete)
	if len(s.pending) < s.chunkEvery {
		return ""
	}
	segment := strings.Join(s.pending, " ")
	s.pending = nil
	return segment
}

// Flush returns everything left over — any pending whole sentences plus
// whatever trailing partial text never reached a boundary — for the final
// segment once generation ends.
func (s *sentenceBuffer) Flush() string {
	trailing := strings.TrimSpace(s.buf.String())
	s.buf.Reset()

	parts := s.pending
	s.pending = nil
	if trailing != "" {
		parts = append(parts, trailing)
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}

var sentenceEnders = map[byte]bool{'.': true, '!': true, '?': true}

func splitAtSentence(text string) (string, string) {
	lastIdx := -1
	for i := 0; i < len(text)-1; i++ {
		if sentenceEnders[text[i]] && isWordBoundary(text[i+1]) {
			lastIdx = i + 1
		}
	}
	if lastIdx < 0 {
		return "", text
	}
	return strings.TrimSpace(text[:lastIdx]), text[lastIdx:]
}

func isWordBoundary(ch byte) bool {
	return ch == ' ' || ch == '\n' || ch == '\t'
}
