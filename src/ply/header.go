package ply

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ErrSchemaMismatch 文件的属性集合与期望不符
var ErrSchemaMismatch = errors.New("ply: schema mismatch")

// Format 数据段编码
type Format int

const (
	FormatASCII Format = iota
	FormatBinaryLittleEndian
)

func (f Format) String() string {
	switch f {
	case FormatASCII:
		return "ascii"
	case FormatBinaryLittleEndian:
		return "binary_little_endian"
	}
	return fmt.Sprintf("Format(%d)", int(f))
}

// 标量类型及其字节数
var scalarSizes = map[string]int{
	"char": 1, "int8": 1,
	"uchar": 1, "uint8": 1,
	"short": 2, "int16": 2,
	"ushort": 2, "uint16": 2,
	"int": 4, "int32": 4,
	"uint": 4, "uint32": 4,
	"float": 4, "float32": 4,
	"double": 8, "float64": 8,
}

// Property 标量属性
type Property struct {
	Name string
	Type string
}

// Size 属性的二进制字节数
func (p Property) Size() int { return scalarSizes[p.Type] }

// Element 一个元素及其属性
type Element struct {
	Name       string
	Count      int
	Properties []Property
}

// RowSize 一行的二进制字节数
func (e Element) RowSize() int {
	n := 0
	for _, p := range e.Properties {
		n += p.Size()
	}
	return n
}

// Header 文件头
type Header struct {
	Format   Format
	Comments []string
	Elements []Element
}

// Element 按名称查找元素
func (h *Header) Element(name string) (Element, int, bool) {
	for i, e := range h.Elements {
		if e.Name == name {
			return e, i, true
		}
	}
	return Element{}, -1, false
}

func (h *Header) String() string {
	var b strings.Builder
	b.WriteString("ply\n")
	fmt.Fprintf(&b, "format %s 1.0\n", h.Format)
	for _, c := range h.Comments {
		fmt.Fprintf(&b, "comment %s\n", c)
	}
	for _, e := range h.Elements {
		fmt.Fprintf(&b, "element %s %d\n", e.Name, e.Count)
		for _, p := range e.Properties {
			fmt.Fprintf(&b, "property %s %s\n", p.Type, p.Name)
		}
	}
	b.WriteString("end_header\n")
	return b.String()
}

// ReadHeader 从 r 读取文件头，r 停在数据段起点
func ReadHeader(r *bufio.Reader) (*Header, error) {
	line, err := readLine(r)
	if err != nil {
		return nil, fmt.Errorf("读取 ply 魔数失败: %w", err)
	}
	if line != "ply" {
		return nil, fmt.Errorf("不是 ply 文件: %q", line)
	}

	h := &Header{}
	sawFormat := false
	for {
		line, err = readLine(r)
		if err != nil {
			return nil, fmt.Errorf("ply 文件头不完整: %w", err)
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "format":
			if len(fields) != 3 {
				return nil, fmt.Errorf("无效的 format 行: %q", line)
			}
			switch fields[1] {
			case "ascii":
				h.Format = FormatASCII
			case "binary_little_endian":
				h.Format = FormatBinaryLittleEndian
			default:
				return nil, fmt.Errorf("不支持的 ply 编码: %s", fields[1])
			}
			sawFormat = true
		case "comment", "obj_info":
			h.Comments = append(h.Comments, strings.TrimSpace(strings.TrimPrefix(line, fields[0])))
		case "element":
			if len(fields) != 3 {
				return nil, fmt.Errorf("无效的 element 行: %q", line)
			}
			count, err := strconv.Atoi(fields[2])
			if err != nil || count < 0 {
				return nil, fmt.Errorf("无效的元素数量: %q", line)
			}
			h.Elements = append(h.Elements, Element{Name: fields[1], Count: count})
		case "property":
			if len(h.Elements) == 0 {
				return nil, fmt.Errorf("property 出现在 element 之前: %q", line)
			}
			if len(fields) != 3 {
				// list 属性在高斯与点云文件中不会出现
				return nil, fmt.Errorf("不支持的属性定义: %q", line)
			}
			if _, ok := scalarSizes[fields[1]]; !ok {
				return nil, fmt.Errorf("未知的属性类型: %s", fields[1])
			}
			e := &h.Elements[len(h.Elements)-1]
			e.Properties = append(e.Properties, Property{Name: fields[2], Type: fields[1]})
		case "end_header":
			if !sawFormat {
				return nil, fmt.Errorf("ply 文件头缺少 format")
			}
			return h, nil
		default:
			return nil, fmt.Errorf("无法识别的文件头行: %q", line)
		}
	}
}

func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	// 最后一行可以没有换行符
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
