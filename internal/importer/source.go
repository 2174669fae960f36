package importer

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/xuri/excelize/v2"

	"cryptorecs/internal/files"
)

// recordSource yields the raw fields of one input file
type recordSource interface {
	// Next returns the fields of the next record and its 1-based line
	// number, or io.EOF.
	Next() (fields []string, line int, err error)
	Close() error
}

// openSource opens file with its first skip physical lines (or sheet rows)
// already consumed.
func openSource(file files.FileInfo, delimiter rune, skip int) (recordSource, error) {
	switch file.Format {
	case files.FormatXLSX:
		return openXLSX(file.Path, skip)
	default:
		return openCSV(file.Path, delimiter, skip)
	}
}

// csvSource reads delimited text. offset is the number of lines consumed
// before the csv.Reader took over.
type csvSource struct {
	f      *os.File
	r      *csv.Reader
	offset int
}

func openCSV(path string, delimiter rune, skip int) (*csvSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	br := bufio.NewReader(f)
	offset := 0
	for offset < skip {
		_, err := br.ReadString('\n')
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to skip header lines: %w", err)
		}
		offset++
	}

	r := csv.NewReader(br)
	r.Comma = delimiter
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	return &csvSource{f: f, r: r, offset: offset}, nil
}

func (s *csvSource) Next() ([]string, int, error) {
	fields, err := s.r.Read()
	if err != nil {
		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			return nil, parseErr.Line + s.offset, err
		}
		return nil, 0, err
	}
	line, _ := s.r.FieldPos(0)
	return fields, line + s.offset, nil
}

func (s *csvSource) Close() error {
	return s.f.Close()
}

// xlsxSource reads the first sheet of a workbook. Cells are read raw so
// epoch milliseconds are not rendered in scientific notation.
type xlsxSource struct {
	rows [][]string
	next int
}

func openXLSX(path string, skip int) (*xlsxSource, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook %s has no sheets", path)
	}

	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheets[0], err)
	}
	next := skip
	if next > len(rows) {
		next = len(rows)
	}
	return &xlsxSource{rows: rows, next: next}, nil
}

func (s *xlsxSource) Next() ([]string, int, error) {
	if s.next >= len(s.rows) {
		return nil, 0, io.EOF
	}
	row := s.rows[s.next]
	s.next++
	return row, s.next, nil
}

func (s *xlsxSource) Close() error {
	return nil
}
