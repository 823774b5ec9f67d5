package chunking

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// MinChunkLength is the shortest chunk, in runes, worth embedding.
const MinChunkLength = 30

// Chunk is a contiguous piece of document text.
// Offset is the byte offset in the source text of the first sentence the
// chunk introduces; text carried over as overlap is not counted.
type Chunk struct {
	Index  int
	Text   string
	Offset int
}

type sentence struct {
	text   string
	offset int
}

// Split breaks text into sentence-bounded chunks of at most p.ChunkSize
// runes. Sentences are accumulated greedily, joined by single spaces. When
// the next sentence does not fit, the current chunk is closed and the next
// one starts with the last p.Overlap runes of the closed chunk followed by
// that sentence. Sentences too long to ever fit are broken on whitespace
// first. Chunks shorter than MinChunkLength are discarded and the
// remaining chunks are indexed densely from zero.
func Split(text string, p Params) []Chunk {
	p = p.normalized()
	pieces := fitSentences(splitSentences(text), p.ChunkSize-p.Overlap-1)

	var (
		chunks    []Chunk
		cur       string
		curLen    int
		curOffset int
	)
	emit := func() {
		if curLen >= MinChunkLength {
			chunks = append(chunks, Chunk{Index: len(chunks), Text: cur, Offset: curOffset})
		}
	}

	for _, s := range pieces {
		sLen := utf8.RuneCountInString(s.text)
		if cur == "" {
			cur, curLen, curOffset = s.text, sLen, s.offset
			continue
		}
		if curLen+1+sLen <= p.ChunkSize {
			cur += " " + s.text
			curLen += 1 + sLen
			continue
		}

		emit()
		seed := OverlapSuffix(cur, p.Overlap)
		if seed == "" {
			cur, curLen = s.text, sLen
		} else {
			cur = seed + " " + s.text
			curLen = utf8.RuneCountInString(seed) + 1 + sLen
		}
		curOffset = s.offset
	}
	if cur != "" {
		emit()
	}
	return chunks
}

// OverlapSuffix returns the trailing n runes of s with leading spaces removed.
// It is the prefix the chunk following s starts with.
func OverlapSuffix(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) > n {
		runes = runes[len(runes)-n:]
	}
	return strings.TrimLeft(string(runes), " ")
}

// splitSentences splits text after runs of terminal punctuation that are
// followed by whitespace or the end of the text. Whitespace inside each
// sentence is collapsed to single spaces.
func splitSentences(text string) []sentence {
	var out []sentence
	start := 0
	for i := 0; i < len(text); {
		r, size := utf8.DecodeRuneInString(text[i:])
		if !isTerminal(r) {
			i += size
			continue
		}

		j := i + size
		for j < len(text) {
			next, n := utf8.DecodeRuneInString(text[j:])
			if !isTerminal(next) {
				break
			}
			j += n
		}
		if j < len(text) {
			next, _ := utf8.DecodeRuneInString(text[j:])
			if !unicode.IsSpace(next) {
				i = j
				continue
			}
		}
		out = appendSentence(out, text, start, j)
		start, i = j, j
	}
	return appendSentence(out, text, start, len(text))
}

func appendSentence(out []sentence, text string, start, end int) []sentence {
	seg := text[start:end]
	normalized := strings.Join(strings.Fields(seg), " ")
	if normalized == "" {
		return out
	}
	lead := len(seg) - len(strings.TrimLeftFunc(seg, unicode.IsSpace))
	return append(out, sentence{text: normalized, offset: start + lead})
}

func isTerminal(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

// fitSentences breaks every sentence longer than maxRunes into pieces of
// at most maxRunes, preferring word boundaries.
func fitSentences(sentences []sentence, maxRunes int) []sentence {
	if maxRunes < 1 {
		maxRunes = 1
	}
	out := make([]sentence, 0, len(sentences))
	for _, s := range sentences {
		if utf8.RuneCountInString(s.text) <= maxRunes {
			out = append(out, s)
			continue
		}
		for _, part := range splitToFit(s.text, maxRunes) {
			out = append(out, sentence{text: part.text, offset: s.offset + part.offset})
		}
	}
	return out
}

// splitToFit cuts text into parts of at most maxRunes runes. Parts end at
// spaces where possible; words longer than maxRunes are cut mid-word.
// Part offsets are byte offsets into text.
func splitToFit(text string, maxRunes int) []sentence {
	var (
		parts    []sentence
		cur      strings.Builder
		curLen   int
		curStart int
	)
	flush := func() {
		if curLen > 0 {
			parts = append(parts, sentence{text: cur.String(), offset: curStart})
			cur.Reset()
			curLen = 0
		}
	}

	pos := 0
	for _, word := range strings.SplitAfter(text, " ") {
		wordStart := pos
		pos += len(word)
		word = strings.TrimRight(word, " ")
		if word == "" {
			continue
		}
		wLen := utf8.RuneCountInString(word)

		if curLen > 0 && curLen+1+wLen <= maxRunes {
			cur.WriteByte(' ')
			cur.WriteString(word)
			curLen += 1 + wLen
			continue
		}
		flush()

		for wLen > maxRunes {
			runes := []rune(word)
			head := string(runes[:maxRunes])
			parts = append(parts, sentence{text: head, offset: wordStart})
			wordStart += len(head)
			word = string(runes[maxRunes:])
			wLen -= maxRunes
		}
		cur.WriteString(word)
		curLen = wLen
		curStart = wordStart
	}
	flush()
	return parts
}
