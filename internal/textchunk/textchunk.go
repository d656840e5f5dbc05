// Package textchunk splits outbound text into transport-sized messages.
// Splitting prefers paragraph boundaries, then line boundaries, and only
// hard-splits as a last resort. Fenced code blocks are kept intact where
// possible; an oversized fence is split with the fence closed and reopened
// so every chunk renders as valid markdown.
package textchunk

import (
	"strings"
	"unicode/utf8"
)

const fenceMarker = "```"

// Chunk returns ordered chunks of at most limit characters. Chunks are
// trimmed and empty chunks are dropped.
func Chunk(text string, limit int) []string {
	text = strings.TrimSpace(text)
	if text == "" || limit <= 0 {
		return nil
	}
	if utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}

	var chunks []string
	var cur strings.Builder
	flush := func() {
		c := strings.TrimSpace(cur.String())
		cur.Reset()
		if c != "" {
			chunks = append(chunks, c)
		}
	}
	add := func(seg string) {
		if cur.Len() == 0 {
			cur.WriteString(seg)
			return
		}
		if utf8.RuneCountInString(cur.String())+2+utf8.RuneCountInString(seg) <= limit {
			cur.WriteString("\n\n")
			cur.WriteString(seg)
			return
		}
		flush()
		cur.WriteString(seg)
	}

	for _, seg := range splitSegments(text) {
		if utf8.RuneCountInString(seg) <= limit {
			add(seg)
			continue
		}
		flush()
		for _, piece := range splitOversized(seg, limit) {
			add(piece)
		}
	}
	flush()
	return chunks
}

// splitSegments breaks text into paragraphs, keeping each fenced code block
// as a single segment regardless of blank lines inside it.
func splitSegments(text string) []string {
	lines := strings.Split(text, "\n")
	var segments []string
	var cur []string
	inFence := false

	flush := func() {
		seg := strings.TrimSpace(strings.Join(cur, "\n"))
		cur = cur[:0]
		if seg != "" {
			segments = append(segments, seg)
		}
	}

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, fenceMarker) {
			cur = append(cur, line)
			if inFence {
				inFence = false
				flush()
			} else {
				inFence = true
			}
			continue
		}
		if !inFence && trimmed == "" {
			flush()
			continue
		}
		cur = append(cur, line)
	}
	flush()
	return segments
}

func splitOversized(seg string, limit int) []string {
	if strings.HasPrefix(strings.TrimSpace(seg), fenceMarker) {
		return splitFenced(seg, limit)
	}
	return splitLines(strings.Split(seg, "\n"), limit)
}

func splitLines(lines []string, limit int) []string {
	var out []string
	var cur strings.Builder
	flush := func() {
		c := strings.TrimSpace(cur.String())
		cur.Reset()
		if c != "" {
			out = append(out, c)
		}
	}
	for _, line := range lines {
		if utf8.RuneCountInString(line) > limit {
			flush()
			out = append(out, hardSplit(line, limit)...)
			continue
		}
		if cur.Len() > 0 && utf8.RuneCountInString(cur.String())+1+utf8.RuneCountInString(line) > limit {
			flush()
		}
		if cur.Len() > 0 {
			cur.WriteString("\n")
		}
		cur.WriteString(line)
	}
	flush()
	return out
}

// splitFenced splits one oversized fenced block, re-opening the fence with
// its original info string at each chunk boundary.
func splitFenced(seg string, limit int) []string {
	lines := strings.Split(strings.TrimSpace(seg), "\n")
	if len(lines) < 2 {
		return hardSplit(seg, limit)
	}
	open := lines[0]
	body := lines[1:]
	if strings.TrimSpace(body[len(body)-1]) == fenceMarker {
		body = body[:len(body)-1]
	}

	overhead := utf8.RuneCountInString(open) + utf8.RuneCountInString(fenceMarker) + 2
	budget := limit - overhead
	if budget < 1 {
		return hardSplit(seg, limit)
	}

	var out []string
	var cur []string
	curLen := 0
	flush := func() {
		if len(cur) == 0 {
			return
		}
		out = append(out, open+"\n"+strings.Join(cur, "\n")+"\n"+fenceMarker)
		cur = cur[:0]
		curLen = 0
	}
	for _, line := range body {
		n := utf8.RuneCountInString(line)
		if n > budget {
			flush()
			for _, piece := range hardSplit(line, budget) {
				out = append(out, open+"\n"+piece+"\n"+fenceMarker)
			}
			continue
		}
		if curLen > 0 && curLen+1+n > budget {
			flush()
		}
		if curLen > 0 {
			curLen++
		}
		cur = append(cur, line)
		curLen += n
	}
	flush()
	return out
}

func hardSplit(text string, limit int) []string {
	runes := []rune(strings.TrimSpace(text))
	var out []string
	for len(runes) > 0 {
		n := limit
		if n > len(runes) {
			n = len(runes)
		}
		piece := strings.TrimSpace(string(runes[:n]))
		if piece != "" {
			out = append(out, piece)
		}
		runes = runes[n:]
	}
	return out
}
