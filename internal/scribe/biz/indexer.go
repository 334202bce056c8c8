package biz

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	legacyxls "github.com/extrame/xls"
	"github.com/kart-io/logger"
	"github.com/xuri/excelize/v2"
)

// 文档类型。
const (
	FileTypeExcel = "Excel"
	FileTypeCSV   = "CSV"
)

// ErrUnsupportedFile 文件扩展名不在支持范围内。
var ErrUnsupportedFile = fmt.Errorf("unsupported file type, expected .xlsx, .xls or .csv")

// Document 归一化后的文本文档,向量索引的构建单元。
type Document struct {
	// Name 文档名,Excel 为 "文件名#工作表",CSV 为文件名。
	Name string
	// Text 归一化文本内容。
	Text string
}

// FileInfo 上传文件的预览元数据。
type FileInfo struct {
	// Type 文件类型,FileTypeExcel 或 FileTypeCSV。
	Type string `json:"type"`
	// Rows 数据行数(不含表头)。
	Rows int `json:"rows"`
	// Columns 声明顺序的列名。
	Columns []string `json:"columns"`
}

// Indexer 表格文档解析器:Excel 逐单元格提取,CSV 生成确定性摘要。
type Indexer struct {
	sampleRows int
}

// NewIndexer 创建文档解析器。sampleRows 为 CSV 摘要中的原始数据样本行数。
func NewIndexer(sampleRows int) *Indexer {
	return &Indexer{sampleRows: sampleRows}
}

// DetectFileType 按扩展名判定文件类型,不支持的扩展名返回 ErrUnsupportedFile。
func DetectFileType(filename string) (string, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".xls":
		return FileTypeExcel, nil
	case ".csv":
		return FileTypeCSV, nil
	default:
		return "", ErrUnsupportedFile
	}
}

// Index 将文件解析为归一化文档列表。
// 不可读或格式损坏的文件直接上报,不做部分恢复。
func (i *Indexer) Index(path string) ([]Document, *FileInfo, error) {
	fileType, err := DetectFileType(path)
	if err != nil {
		return nil, nil, err
	}

	name := filepath.Base(path)
	switch fileType {
	case FileTypeExcel:
		if strings.EqualFold(filepath.Ext(path), ".xls") {
			return i.indexLegacyExcel(path, name)
		}
		return i.indexExcel(path, name)
	default:
		return i.indexCSV(path, name)
	}
}

// indexExcel 逐工作表提取单元格文本,每个非空工作表一个文档。
func (i *Indexer) indexExcel(path, name string) ([]Document, *FileInfo, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open excel file: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	info := &FileInfo{Type: FileTypeExcel}

	var docs []Document
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read sheet %s: %w", sheet, err)
		}
		if len(rows) == 0 {
			continue
		}

		docs = appendSheetDoc(docs, info, name, sheet, rows)
	}

	if len(docs) == 0 {
		return nil, nil, fmt.Errorf("excel file %s contains no data", name)
	}

	logger.Infow("excel file indexed", "file", name, "sheets", len(docs))
	return docs, info, nil
}

// indexLegacyExcel 解析 BIFF 二进制格式的旧版 .xls 工作簿。
// excelize 只认 OOXML,旧格式走独立的读取器。
func (i *Indexer) indexLegacyExcel(path, name string) ([]Document, *FileInfo, error) {
	wb, err := legacyxls.Open(path, "utf-8")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open xls file: %w", err)
	}

	info := &FileInfo{Type: FileTypeExcel}

	var docs []Document
	for si := 0; si < wb.NumSheets(); si++ {
		sheet := wb.GetSheet(si)
		if sheet == nil {
			continue
		}

		var rows [][]string
		for ri := 0; ri <= int(sheet.MaxRow); ri++ {
			row := sheet.Row(ri)
			if row == nil {
				continue
			}

			var cells []string
			empty := true
			for ci := 0; ci < row.LastCol(); ci++ {
				cell := row.Col(ci)
				if strings.TrimSpace(cell) != "" {
					empty = false
				}
				cells = append(cells, cell)
			}
			if !empty {
				rows = append(rows, cells)
			}
		}
		if len(rows) == 0 {
			continue
		}

		docs = appendSheetDoc(docs, info, name, sheet.Name, rows)
	}

	if len(docs) == 0 {
		return nil, nil, fmt.Errorf("excel file %s contains no data", name)
	}

	logger.Infow("excel file indexed", "file", name, "sheets", len(docs))
	return docs, info, nil
}

// appendSheetDoc 将一张非空工作表的行拼为文档,并以第一个非空工作表填充预览元数据。
func appendSheetDoc(docs []Document, info *FileInfo, name, sheet string, rows [][]string) []Document {
	var sb strings.Builder
	for _, row := range rows {
		sb.WriteString(strings.Join(row, "\t"))
		sb.WriteString("\n")
	}

	docs = append(docs, Document{
		Name: name + "#" + sheet,
		Text: sb.String(),
	})

	if len(info.Columns) == 0 {
		info.Columns = rows[0]
		info.Rows = len(rows) - 1
	}
	return docs
}

// indexCSV 将整个 CSV 归纳为一份确定性文本摘要:
// 总行数、声明顺序的列名、每个数值列的均值(两位小数)/最小/最大值,
// 以及固定行数的原始数据样本。列的遍历顺序永远是声明顺序,
// 同一输入重复解析产生逐字节相同的摘要。
func (i *Indexer) indexCSV(path, name string) ([]Document, *FileInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open csv file: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	reader := csv.NewReader(f)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse csv file: %w", err)
	}
	if len(records) == 0 {
		return nil, nil, fmt.Errorf("csv file %s is empty", name)
	}

	header := records[0]
	rows := records[1:]

	var summary []string
	summary = append(summary, fmt.Sprintf("Total Records: %d", len(rows)))
	summary = append(summary, fmt.Sprintf("Columns: %s", strings.Join(header, ", ")))

	for col, colName := range header {
		values, ok := numericColumn(rows, col)
		if !ok {
			continue
		}

		stats := fmt.Sprintf("\n%s Statistics:", colName)
		stats += fmt.Sprintf("\n- Average: %.2f", mean(values))
		stats += fmt.Sprintf("\n- Minimum: %s", formatNumber(minOf(values)))
		stats += fmt.Sprintf("\n- Maximum: %s", formatNumber(maxOf(values)))
		summary = append(summary, stats)
	}

	sample := rows
	if len(sample) > i.sampleRows {
		sample = sample[:i.sampleRows]
	}
	summary = append(summary, fmt.Sprintf("\nRaw Data Sample (first %d rows):", i.sampleRows))
	summary = append(summary, renderSample(header, sample))

	doc := Document{
		Name: name,
		Text: strings.Join(summary, "\n"),
	}

	logger.Infow("csv file summarized", "file", name, "rows", len(rows), "columns", len(header))
	return []Document{doc}, &FileInfo{Type: FileTypeCSV, Rows: len(rows), Columns: header}, nil
}

// numericColumn 当列中所有非空值均可解析为数值且至少存在一个值时,
// 返回解析后的数值序列。
func numericColumn(rows [][]string, col int) ([]float64, bool) {
	var values []float64
	for _, row := range rows {
		if col >= len(row) {
			continue
		}
		cell := strings.TrimSpace(row[col])
		if cell == "" {
			continue
		}
		v, err := strconv.ParseFloat(cell, 64)
		if err != nil {
			return nil, false
		}
		values = append(values, v)
	}
	return values, len(values) > 0
}

func mean(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func minOf(values []float64) float64 {
	m := values[0]
	for _, v := range values[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

func maxOf(values []float64) float64 {
	m := values[0]
	for _, v := range values[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

// formatNumber 整数值不带小数点输出,其余按最短精确表示输出。
func formatNumber(v float64) string {
	if v == float64(int64(v)) {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// renderSample 渲染表头加样本行,制表符分隔。
func renderSample(header []string, rows [][]string) string {
	var sb strings.Builder
	sb.WriteString(strings.Join(header, "\t"))
	for _, row := range rows {
		sb.WriteString("\n")
		sb.WriteString(strings.Join(row, "\t"))
	}
	return sb.String()
}
