package samples

// InsertTag places tag into text, replacing the selection [start, end).
// Offsets count runes and are clamped to the text. A separating space is
// added before the tag unless it lands at the start of the text or right
// after a space, and after the tag unless a space already follows.
func InsertTag(text, tag string, start, end int) string {
	rs := []rune(text)
	start = clamp(start, 0, len(rs))
	end = clamp(end, start, len(rs))

	prefix, suffix := " ", " "
	if start == 0 || rs[start-1] == ' ' {
		prefix = ""
	}
	if end < len(rs) && rs[end] == ' ' {
		suffix = ""
	}
	return string(rs[:start]) + prefix + tag + suffix + string(rs[end:])
}

// AppendTag is the fallback used when no cursor position is known: the tag
// is appended after a single space.
func AppendTag(text, tag string) string {
	return text + " " + tag
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
