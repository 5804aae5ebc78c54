package ply

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Table 一个元素的全部数据，按属性分列
type Table struct {
	Element Element
	Columns [][]float64
}

// Len 行数
func (t *Table) Len() int { return t.Element.Count }

// Column 按属性名取列
func (t *Table) Column(name string) ([]float64, Property, bool) {
	for i, p := range t.Element.Properties {
		if p.Name == name {
			return t.Columns[i], p, true
		}
	}
	return nil, Property{}, false
}

// MustColumns 按顺序取多列，缺少任意一列返回 ErrSchemaMismatch
func (t *Table) MustColumns(names ...string) ([][]float64, error) {
	out := make([][]float64, len(names))
	for i, name := range names {
		col, _, ok := t.Column(name)
		if !ok {
			return nil, fmt.Errorf("%w: 缺少属性 %s", ErrSchemaMismatch, name)
		}
		out[i] = col
	}
	return out, nil
}

// PrefixedNames 以 prefix 开头、后缀为数字的属性名，按数字升序
func (t *Table) PrefixedNames(prefix string) []string {
	type indexed struct {
		name string
		idx  int
	}
	var found []indexed
	for _, p := range t.Element.Properties {
		if !strings.HasPrefix(p.Name, prefix) {
			continue
		}
		idx, err := strconv.Atoi(strings.TrimPrefix(p.Name, prefix))
		if err != nil {
			continue
		}
		found = append(found, indexed{p.Name, idx})
	}
	sort.Slice(found, func(i, j int) bool { return found[i].idx < found[j].idx })
	names := make([]string, len(found))
	for i, f := range found {
		names[i] = f.name
	}
	return names
}

// ReadElement 读取文件头并返回名为 name 的元素数据；之前的元素被跳过
func ReadElement(r io.Reader, name string) (*Table, error) {
	br := bufio.NewReader(r)
	h, err := ReadHeader(br)
	if err != nil {
		return nil, err
	}
	if _, _, ok := h.Element(name); !ok {
		return nil, fmt.Errorf("%w: 缺少元素 %s", ErrSchemaMismatch, name)
	}
	for _, e := range h.Elements {
		t, err := readTable(br, h.Format, e)
		if err != nil {
			return nil, fmt.Errorf("读取元素 %s 失败: %w", e.Name, err)
		}
		if e.Name == name {
			return t, nil
		}
	}
	return nil, fmt.Errorf("%w: 缺少元素 %s", ErrSchemaMismatch, name)
}

// maxPreallocRows 按文件头预分配的行数上限，其余行随读取增长
const maxPreallocRows = 1 << 16

func readTable(r *bufio.Reader, format Format, e Element) (*Table, error) {
	t := &Table{Element: e, Columns: make([][]float64, len(e.Properties))}
	for i := range t.Columns {
		t.Columns[i] = make([]float64, 0, min(e.Count, maxPreallocRows))
	}
	switch format {
	case FormatBinaryLittleEndian:
		buf := make([]byte, e.RowSize())
		for row := 0; row < e.Count; row++ {
			if _, err := io.ReadFull(r, buf); err != nil {
				return nil, fmt.Errorf("第 %d 行数据不完整: %w", row, err)
			}
			off := 0
			for i, p := range e.Properties {
				t.Columns[i] = append(t.Columns[i], decodeScalar(buf[off:], p.Type))
				off += p.Size()
			}
		}
	case FormatASCII:
		for row := 0; row < e.Count; row++ {
			line, err := readLine(r)
			if err != nil {
				return nil, fmt.Errorf("第 %d 行数据不完整: %w", row, err)
			}
			fields := strings.Fields(line)
			if len(fields) != len(e.Properties) {
				return nil, fmt.Errorf("第 %d 行有 %d 个值，期望 %d", row, len(fields), len(e.Properties))
			}
			for i, f := range fields {
				v, err := strconv.ParseFloat(f, 64)
				if err != nil {
					return nil, fmt.Errorf("第 %d 行 %s 解析失败: %w", row, e.Properties[i].Name, err)
				}
				t.Columns[i] = append(t.Columns[i], v)
			}
		}
	default:
		return nil, fmt.Errorf("不支持的 ply 编码: %s", format)
	}
	return t, nil
}

func decodeScalar(b []byte, typ string) float64 {
	le := binary.LittleEndian
	switch typ {
	case "char", "int8":
		return float64(int8(b[0]))
	case "uchar", "uint8":
		return float64(b[0])
	case "short", "int16":
		return float64(int16(le.Uint16(b)))
	case "ushort", "uint16":
		return float64(le.Uint16(b))
	case "int", "int32":
		return float64(int32(le.Uint32(b)))
	case "uint", "uint32":
		return float64(le.Uint32(b))
	case "float", "float32":
		return float64(math.Float32frombits(le.Uint32(b)))
	case "double", "float64":
		return math.Float64frombits(le.Uint64(b))
	}
	return 0
}
