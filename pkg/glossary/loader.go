package glossary

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// LoadCSVFile 从文件加载术语表
func LoadCSVFile(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open glossary: %w", err)
	}
	defer f.Close()
	return LoadCSV(f)
}

// LoadCSV 读取 english,chinese[,source] 格式的 CSV。
// 首行若是表头（english/term/source 等）则跳过。
func LoadCSV(r io.Reader) ([]Entry, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	var entries []Entry
	first := true
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse glossary: %w", err)
		}
		if first {
			first = false
			if isHeader(record) {
				continue
			}
		}
		if len(record) < 2 {
			continue
		}
		e := Entry{
			English: strings.TrimSpace(strings.TrimPrefix(record[0], "\ufeff")),
			Chinese: strings.TrimSpace(record[1]),
		}
		if len(record) > 2 {
			e.Source = strings.TrimSpace(record[2])
		}
		if e.English == "" || e.Chinese == "" {
			continue
		}
		entries = append(entries, e)
	}

	if len(entries) == 0 {
		return nil, ErrEmptyGlossary
	}
	return entries, nil
}

func isHeader(record []string) bool {
	if len(record) == 0 {
		return false
	}
	first := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(record[0], "\ufeff")))
	switch first {
	case "english", "term", "en", "source term":
		return true
	}
	return false
}
