package keyboard

import (
	"bufio"
	"io"
	"strconv"
	"strings"
)

// Parse reads the two-section keyboard description: a "Fingers" section
// mapping finger abbreviations to strength scores, then a "Keys" section of
// grid bands. Each band is three aligned pipe-separated rows (key cap,
// finger, positional score) between horizontal rules; empty cells mark
// positions with no key.
func Parse(r io.Reader) (*Keyboard, error) {
	lines, err := readLines(r)
	if err != nil {
		return nil, err
	}

	kb := &Keyboard{fingers: make(map[Finger]float64)}
	i, err := parseFingers(lines, kb)
	if err != nil {
		return nil, err
	}
	if err := parseKeys(lines, i, kb); err != nil {
		return nil, err
	}
	if err := kb.validate(); err != nil {
		return nil, err
	}
	return kb, nil
}

type line struct {
	no   int
	text string
}

func readLines(r io.Reader) ([]line, error) {
	var lines []line
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	no := 0
	for sc.Scan() {
		no++
		lines = append(lines, line{no: no, text: sc.Text()})
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}

// parseFingers consumes up to and including the "Keys" header and returns
// the index of the first grid line.
func parseFingers(lines []line, kb *Keyboard) (int, error) {
	i := 0
	for ; i < len(lines); i++ {
		if strings.TrimSpace(lines[i].text) == "Fingers" {
			break
		}
	}
	if i == len(lines) {
		return 0, parseErrf(0, "missing Fingers section")
	}
	i++
	for ; i < len(lines); i++ {
		text := strings.TrimSpace(lines[i].text)
		if text == "" {
			continue
		}
		if text == "Keys" {
			i++
			if len(kb.fingers) == 0 {
				return 0, parseErrf(lines[i-1].no, "Fingers section is empty")
			}
			return i, nil
		}
		abbrev, scoreText, ok := strings.Cut(text, ":")
		if !ok {
			return 0, parseErrf(lines[i].no, "finger line %q is not ABBREV: SCORE", text)
		}
		finger, ok := fingerByAbbrev[strings.TrimSpace(abbrev)]
		if !ok {
			return 0, parseErrf(lines[i].no, "unknown finger %q", strings.TrimSpace(abbrev))
		}
		score, err := parseScore(strings.TrimSpace(scoreText))
		if err != nil {
			return 0, parseErrf(lines[i].no, "finger %s: %v", strings.TrimSpace(abbrev), err)
		}
		kb.fingers[finger] = score
	}
	return 0, parseErrf(0, "missing Keys section")
}

// Scores are written as percentages in the description and held as (0, 1]
// fractions in memory.
func parseScore(text string) (float64, error) {
	v, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, err
	}
	return v / 100.0, nil
}

func parseKeys(lines []line, i int, kb *Keyboard) error {
	row := 0
	for i < len(lines) {
		// Skip trailing blank lines after the last rule.
		for i < len(lines) && strings.TrimSpace(lines[i].text) == "" {
			i++
		}
		if i == len(lines) {
			return nil
		}
		if !strings.HasPrefix(strings.TrimSpace(lines[i].text), "-") {
			return parseErrf(lines[i].no, "expected horizontal rule, got %q", lines[i].text)
		}
		i++
		if i == len(lines) || strings.TrimSpace(lines[i].text) == "" {
			// The closing rule of the last band.
			return nil
		}
		if i+2 >= len(lines) {
			return parseErrf(lines[i].no, "truncated key band")
		}
		caps, err := splitCells(lines[i])
		if err != nil {
			return err
		}
		fingers, err := splitCells(lines[i+1])
		if err != nil {
			return err
		}
		scores, err := splitCells(lines[i+2])
		if err != nil {
			return err
		}
		if len(caps) != len(fingers) || len(fingers) != len(scores) {
			return parseErrf(lines[i].no, "band rows disagree on width: %d caps, %d fingers, %d scores",
				len(caps), len(fingers), len(scores))
		}
		if err := appendBand(kb, lines[i].no, row, caps, fingers, scores); err != nil {
			return err
		}
		row++
		i += 3
	}
	return nil
}

func appendBand(kb *Keyboard, lineNo, row int, caps, fingers, scores []string) error {
	gridRow := make([]int, len(caps))
	for col := range caps {
		gridRow[col] = -1
		if caps[col] == "" {
			if fingers[col] != "" || scores[col] != "" {
				return parseErrf(lineNo, "column %d: blank key with finger or score", col)
			}
			continue
		}
		key, ok := cellToKey[caps[col]]
		if !ok {
			return parseErrf(lineNo, "unknown key token %q", caps[col])
		}
		if fingers[col] == "" || scores[col] == "" {
			return parseErrf(lineNo, "key %s is missing its finger or score", key)
		}
		finger, ok := fingerByAbbrev[fingers[col]]
		if !ok {
			return parseErrf(lineNo, "unknown finger %q for key %s", fingers[col], key)
		}
		score, err := parseScore(scores[col])
		if err != nil {
			return parseErrf(lineNo, "key %s: bad score %q", key, scores[col])
		}
		gridRow[col] = len(kb.slots)
		kb.slots = append(kb.slots, Slot{
			Key:    key,
			Finger: finger,
			Score:  score,
			Row:    row,
			Col:    col,
		})
	}
	kb.grid = append(kb.grid, gridRow)
	return nil
}

func splitCells(l line) ([]string, error) {
	text := strings.TrimSpace(l.text)
	if !strings.HasPrefix(text, "|") || !strings.HasSuffix(text, "|") || len(text) < 2 {
		return nil, parseErrf(l.no, "grid row must be pipe-delimited, got %q", l.text)
	}
	inner := text[1 : len(text)-1]
	parts := strings.Split(inner, "|")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts, nil
}
