package processor

import (
	"context"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

const xlsxMime = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Spreadsheet renders every sheet of an OOXML workbook as tab-separated rows
// under a "# <sheet name>" heading.
type Spreadsheet struct{}

func (Spreadsheet) Name() string { return "spreadsheet" }

func (Spreadsheet) CanHandle(mime, ext string) bool {
	switch ext {
	case "xlsx", "xlsm":
		return true
	}
	return mime == xlsxMime
}

func (Spreadsheet) Extract(ctx context.Context, path string) (string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return "", fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	var b strings.Builder
	for i, sheet := range f.GetSheetList() {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		rows, err := f.GetRows(sheet)
		if err != nil {
			return "", fmt.Errorf("read sheet %q: %w", sheet, err)
		}
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString("# ")
		b.WriteString(sheet)
		b.WriteString("\n")
		for _, row := range rows {
			b.WriteString(strings.Join(row, "\t"))
			b.WriteString("\n")
		}
	}
	return b.String(), nil
}

func (Spreadsheet) Postprocess(text string) Result {
	sheets := 0
	for _, line := range strings.Split(text, "\n") {
		if strings.HasPrefix(line, "# ") {
			sheets++
		}
	}
	return Result{Text: text, Metadata: map[string]any{"sheets": sheets}}
}
