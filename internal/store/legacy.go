package store

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
)

// ReadRows reads the first worksheet of an .xls or .xlsx export.
func ReadRows(reader io.Reader, filename string) ([][]string, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xls":
		workbook, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
		if err != nil {
			return nil, err
		}
		if workbook.NumSheets() == 0 {
			return nil, fmt.Errorf("no worksheet found")
		}
		rows := workbook.ReadAllCells(100000)
		if len(rows) == 0 {
			return nil, fmt.Errorf("worksheet is empty")
		}
		return rows, nil
	default:
		file, err := excelize.OpenReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		defer func() { _ = file.Close() }()

		sheetName := file.GetSheetName(0)
		if sheetName == "" {
			return nil, fmt.Errorf("no worksheet found")
		}
		rows, err := file.GetRows(sheetName)
		if err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			return nil, fmt.Errorf("worksheet is empty")
		}
		return rows, nil
	}
}

// LegacyUser is a row of an old User sheet that still holds a plain-text
// password. It only exists long enough to be hashed.
type LegacyUser struct {
	Username string
	Name     string
	Branch   string
	Role     string
	Password string
}

// ParseLegacyUsers maps rows to users. usernameColumn names the login
// column explicitly because old sheets disagree on it ("Username" vs "Nama").
func ParseLegacyUsers(rows [][]string, usernameColumn string) ([]LegacyUser, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("worksheet is empty")
	}
	cols := headerIndex(rows[0])
	if _, ok := cols[normalizeHeader(usernameColumn)]; !ok {
		return nil, fmt.Errorf("column %q not found", usernameColumn)
	}
	if _, ok := cols["password"]; !ok {
		return nil, fmt.Errorf("column %q not found", "Password")
	}

	var out []LegacyUser
	for _, row := range rows[1:] {
		username := cols.exact(row, usernameColumn)
		if username == "" {
			continue
		}
		out = append(out, LegacyUser{
			Username: username,
			Name:     cols.get(row, "Name"),
			Branch:   cols.get(row, "Branch"),
			Role:     cols.get(row, "Role"),
			Password: cols.get(row, "Password"),
		})
	}
	return out, nil
}

// exact reads a column by its header only, ignoring aliases.
func (c columns) exact(row []string, name string) string {
	if idx, ok := c[normalizeHeader(name)]; ok {
		return cellValue(row, idx)
	}
	return ""
}
