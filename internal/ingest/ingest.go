// Package ingest reads coding problems from JSON Lines files.
package ingest

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/valpere/tracetran/internal"
)

// MaxLineBytes bounds a single JSON line. Problem statements with embedded
// examples can run to several hundred kilobytes.
const MaxLineBytes = 8 << 20

// ReadFile reads up to limit problems from the JSONL file at path.
func ReadFile(path string, limit int) ([]internal.Problem, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	defer f.Close()

	problems, err := ReadJSONL(f, limit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return problems, nil
}

// ReadJSONL decodes one {"title", "content"} object per line. Blank lines are
// skipped and limit <= 0 reads everything. Text is NFC-normalised and trimmed.
func ReadJSONL(r io.Reader, limit int) ([]internal.Problem, error) {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 64*1024), MaxLineBytes)

	var problems []internal.Problem
	lineNo := 0
	for s.Scan() {
		lineNo++
		line := strings.TrimSpace(s.Text())
		if line == "" {
			continue
		}

		var p internal.Problem
		if err := json.Unmarshal([]byte(line), &p); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		p.Title = normalize(p.Title)
		p.Content = normalize(p.Content)
		if p.Title == "" {
			return nil, fmt.Errorf("line %d: title is empty", lineNo)
		}
		if p.Content == "" {
			return nil, fmt.Errorf("line %d: content is empty", lineNo)
		}

		problems = append(problems, p)
		if limit > 0 && len(problems) >= limit {
			break
		}
	}
	if err := s.Err(); err != nil {
		return nil, fmt.Errorf("line %d: %w", lineNo+1, err)
	}
	return problems, nil
}

func normalize(text string) string {
	return norm.NFC.String(strings.TrimSpace(text))
}
