package ply

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// WriteFloatTable 以 binary_little_endian 写出单个元素，全部属性为 float。
// columns[i] 为属性 names[i] 的整列，各列长度必须相同
func WriteFloatTable(w io.Writer, element string, names []string, columns [][]float32) error {
	if len(names) != len(columns) {
		return fmt.Errorf("属性名 %d 个，数据列 %d 个", len(names), len(columns))
	}
	rows := 0
	if len(columns) > 0 {
		rows = len(columns[0])
	}
	e := Element{Name: element, Count: rows}
	for i, name := range names {
		if len(columns[i]) != rows {
			return fmt.Errorf("属性 %s 有 %d 行，期望 %d", name, len(columns[i]), rows)
		}
		e.Properties = append(e.Properties, Property{Name: name, Type: "float"})
	}
	h := &Header{Format: FormatBinaryLittleEndian, Elements: []Element{e}}

	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(h.String()); err != nil {
		return err
	}
	buf := make([]byte, 4*len(columns))
	for row := 0; row < rows; row++ {
		for i, col := range columns {
			binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(col[row]))
		}
		if _, err := bw.Write(buf); err != nil {
			return fmt.Errorf("写入第 %d 行失败: %w", row, err)
		}
	}
	return bw.Flush()
}
