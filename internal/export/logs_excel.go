// Package export renders the audit log as an Excel workbook.
package export

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/kauri-edtech/smssync/internal/models"
)

type SheetSpec struct {
	Title  string
	Header []string
	Rows   [][]string
}

type Workbook struct {
	File *excelize.File
}

var logsHeader = []string{
	"time", "schoolno", "target", "action", "error", "other", "origin", "ip", "userid", "info",
}

// NewLogsWorkbook builds a one-sheet workbook from audit entries, newest
// first as given.
func NewLogsWorkbook(entries []models.LogEntry, loc *time.Location) (*Workbook, error) {
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		info := ""
		if len(e.Info) > 0 {
			b, err := json.Marshal(e.Info)
			if err != nil {
				return nil, err
			}
			info = string(b)
		}
		rows = append(rows, []string{
			e.TimeCreated.In(loc).Format("2006-01-02 15:04:05"),
			strconv.FormatInt(e.SchoolNo, 10),
			e.Target,
			e.Action,
			e.Error,
			e.Other,
			e.Origin,
			e.IP,
			strconv.FormatInt(e.UserID, 10),
			info,
		})
	}
	return build([]SheetSpec{{Title: "logs", Header: logsHeader, Rows: rows}})
}

func build(sheets []SheetSpec) (*Workbook, error) {
	f := excelize.NewFile()

	bold, _ := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	for i, s := range sheets {
		name := s.Title
		if i == 0 {
			if err := f.SetSheetName("Sheet1", name); err != nil {
				return nil, fmt.Errorf("rename sheet: %w", err)
			}
		} else {
			if _, err := f.NewSheet(name); err != nil {
				return nil, fmt.Errorf("new sheet: %w", err)
			}
		}
		for col, h := range s.Header {
			cell := fmt.Sprintf("%s1", colName(col+1))
			if err := f.SetCellStr(name, cell, h); err != nil {
				return nil, fmt.Errorf("set cell %s: %w", cell, err)
			}
		}
		end := colName(len(s.Header)) + "1"
		_ = f.SetCellStyle(name, "A1", end, bold)
		_ = f.AutoFilter(name, "A1:"+end, nil)

		for r, row := range s.Rows {
			for c, val := range row {
				cell := fmt.Sprintf("%s%d", colName(c+1), r+2)
				if err := f.SetCellStr(name, cell, val); err != nil {
					return nil, fmt.Errorf("set cell %s: %w", cell, err)
				}
			}
		}
		// width heuristic from header and first rows
		for c := 1; c <= len(s.Header); c++ {
			maxim := len(s.Header[c-1])
			for r := 0; r < minim(50, len(s.Rows)); r++ {
				if l := len(s.Rows[r][c-1]); l > maxim {
					maxim = l
				}
			}
			w := float64(maxim) * 0.9
			if w < 12 {
				w = 12
			}
			if w > 40 {
				w = 40
			}
			_ = f.SetColWidth(name, colName(c), colName(c), w)
		}
	}
	return &Workbook{File: f}, nil
}

func colName(n int) string {
	s := ""
	for n > 0 {
		n--
		s = string(rune('A'+(n%26))) + s
		n /= 26
	}
	return s
}

func minim(a, b int) int {
	if a < b {
		return a
	}
	return b
}
