package benchmark

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

func readJSONL[T any](ctx context.Context, path string) ([]T, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("empty jsonl path")
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return decodeJSONLStream[T](ctx, f)
}

func decodeJSONLStream[T any](ctx context.Context, r io.Reader) ([]T, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 2*1024*1024)

	var out []T
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}

		var item T
		if err := json.Unmarshal(line, &item); err != nil {
			return out, fmt.Errorf("parse jsonl: %w", err)
		}
		out = append(out, item)
	}
	if err := sc.Err(); err != nil {
		return out, err
	}
	return out, nil
}

// readQrels parses a BEIR relevance file: tab-separated query-id, corpus-id,
// score rows under a header line. Judgments below minScore are ignored.
// Document order within a query follows the file.
func readQrels(path string, minScore int) (map[string][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("benchmark: qrels: %w", err)
	}
	defer f.Close()

	qrels := make(map[string][]string)
	seen := make(map[string]map[string]struct{})

	sc := bufio.NewScanner(f)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}

		fields := strings.Split(line, "\t")
		if len(fields) < 3 {
			return nil, fmt.Errorf("benchmark: qrels %q line %d: want 3 tab-separated columns, got %d", path, lineNo, len(fields))
		}

		queryID := strings.TrimSpace(fields[0])
		docID := strings.TrimSpace(fields[1])
		rawScore := strings.TrimSpace(fields[2])
		if lineNo == 1 && strings.EqualFold(queryID, "query-id") {
			continue
		}
		if queryID == "" || docID == "" {
			continue
		}

		score, err := strconv.Atoi(rawScore)
		if err != nil {
			return nil, fmt.Errorf("benchmark: qrels %q line %d: bad score %q", path, lineNo, rawScore)
		}
		if score < minScore {
			continue
		}

		if seen[queryID] == nil {
			seen[queryID] = make(map[string]struct{})
		}
		if _, dup := seen[queryID][docID]; dup {
			continue
		}
		seen[queryID][docID] = struct{}{}
		qrels[queryID] = append(qrels[queryID], docID)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("benchmark: qrels %q: %w", path, err)
	}

	return qrels, nil
}
