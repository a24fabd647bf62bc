package ocr

import (
	"fmt"
	"strconv"
	"strings"
)

const wordLevel = 5

type lineKey struct {
	page, block, paragraph, line int
}

// ParseTSV turns tesseract's tsv output into text, keeping only words whose
// confidence is above minConfidence. Words are regrouped into their lines.
// Fields are split on tabs only: recognised words may contain quote characters.
func ParseTSV(tsv string, minConfidence float64) (string, error) {
	rows := strings.Split(strings.ReplaceAll(tsv, "\r\n", "\n"), "\n")
	if len(rows) == 0 || strings.TrimSpace(rows[0]) == "" {
		return "", nil
	}

	header := strings.Split(rows[0], "\t")
	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.TrimSpace(name)] = i
	}
	for _, required := range []string{"level", "page_num", "block_num", "par_num", "line_num", "conf", "text"} {
		if _, ok := columns[required]; !ok {
			return "", fmt.Errorf("tsv missing column %q", required)
		}
	}

	var order []lineKey
	lines := make(map[lineKey][]string)

	for _, row := range rows[1:] {
		if row == "" {
			continue
		}
		record := strings.Split(row, "\t")
		if len(record) < len(header) {
			continue
		}

		if atoi(record[columns["level"]]) != wordLevel {
			continue
		}
		conf, err := strconv.ParseFloat(strings.TrimSpace(record[columns["conf"]]), 64)
		if err != nil || conf <= minConfidence {
			continue
		}
		word := strings.TrimSpace(record[columns["text"]])
		if word == "" {
			continue
		}

		key := lineKey{
			page:      atoi(record[columns["page_num"]]),
			block:     atoi(record[columns["block_num"]]),
			paragraph: atoi(record[columns["par_num"]]),
			line:      atoi(record[columns["line_num"]]),
		}
		if _, seen := lines[key]; !seen {
			order = append(order, key)
		}
		lines[key] = append(lines[key], word)
	}

	out := make([]string, 0, len(order))
	for _, key := range order {
		out = append(out, strings.Join(lines[key], " "))
	}
	return strings.Join(out, "\n"), nil
}

func atoi(value string) int {
	n, _ := strconv.Atoi(strings.TrimSpace(value))
	return n
}
