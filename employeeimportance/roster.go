//go:build !solution

package employeeimportance

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode"

	"github.com/xuri/excelize/v2"
	"gopkg.in/yaml.v2"
)

var ErrBadRoster = errors.New("bad roster")

// Roster is the on-disk representation of the employee list.
type Roster struct {
	Employees []Employee `yaml:"employees" json:"employees"`
}

// LoadYAML decodes a roster document. JSON documents are accepted too.
func LoadYAML(r io.Reader) ([]Employee, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read roster: %w", err)
	}

	// Пустой файл - пустой список сотрудников
	if len(bytes.TrimSpace(data)) == 0 {
		return []Employee{}, nil
	}

	var roster Roster
	if err := yaml.UnmarshalStrict(data, &roster); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if roster.Employees == nil {
		roster.Employees = []Employee{}
	}
	return roster.Employees, nil
}

var xlsxColumns = []string{"id", "importance", "subordinates"}

// LoadXLSX reads employees from the first sheet of a workbook. The first row
// must name the columns id, importance and subordinates.
func LoadXLSX(r io.Reader) ([]Employee, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: workbook has no sheets", ErrBadRoster)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return []Employee{}, nil
	}

	// Ищем колонки по заголовку, порядок колонок произвольный
	colIdx := make(map[string]int, len(xlsxColumns))
	for i, name := range rows[0] {
		colIdx[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, name := range xlsxColumns[:2] {
		if _, ok := colIdx[name]; !ok {
			return nil, fmt.Errorf("%w: missing column %q", ErrBadRoster, name)
		}
	}

	cell := func(row []string, name string) string {
		i, ok := colIdx[name]
		// GetRows обрезает пустые ячейки в конце строки
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	employees := []Employee{}
	for n, row := range rows[1:] {
		line := n + 2
		if isEmptyRow(row) {
			continue
		}

		id, err := strconv.Atoi(cell(row, "id"))
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: id: %v", ErrBadRoster, line, err)
		}
		importance, err := strconv.Atoi(cell(row, "importance"))
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: importance: %v", ErrBadRoster, line, err)
		}
		subs, err := parseSubordinates(cell(row, "subordinates"))
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: subordinates: %v", ErrBadRoster, line, err)
		}

		employees = append(employees, Employee{ID: id, Importance: importance, Subordinates: subs})
	}
	return employees, nil
}

func isEmptyRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func parseSubordinates(s string) ([]int, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ';' || unicode.IsSpace(r)
	})
	subs := make([]int, 0, len(fields))
	for _, f := range fields {
		id, err := strconv.Atoi(f)
		if err != nil {
			return nil, err
		}
		subs = append(subs, id)
	}
	return subs, nil
}

// LoadFile picks the decoder by file extension.
func LoadFile(path string) ([]Employee, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open roster file: %w", err)
	}
	defer f.Close()

	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return LoadXLSX(f)
	}
	return LoadYAML(f)
}
