package gaussian

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"SplatSphere/src/library/entity"
	"SplatSphere/src/library/logger"
	"SplatSphere/src/library/monitor"
	"SplatSphere/src/ply"
)

// plyAttributes 导出文件的属性顺序
func plyAttributes(restCoeffs int) []string {
	names := []string{"x", "y", "z", "nx", "ny", "nz"}
	for i := 0; i < 3; i++ {
		names = append(names, fmt.Sprintf("f_dc_%d", i))
	}
	for i := 0; i < 3*restCoeffs; i++ {
		names = append(names, fmt.Sprintf("f_rest_%d", i))
	}
	names = append(names, "opacity")
	for i := 0; i < 3; i++ {
		names = append(names, fmt.Sprintf("scale_%d", i))
	}
	for i := 0; i < 4; i++ {
		names = append(names, fmt.Sprintf("rot_%d", i))
	}
	return names
}

// strided 取出每行第 offset 个元素
func strided(src []float32, width, offset, rows int) []float32 {
	out := make([]float32, rows)
	for i := range out {
		out[i] = src[i*width+offset]
	}
	return out
}

// WritePLY 写出原始参数；f_rest 在文件中按通道优先排列
func (m *GaussianModel) WritePLY(w io.Writer) error {
	if err := m.store.checkAligned(); err != nil {
		return err
	}
	p := m.store.prims
	n := p.Len()
	k := p.RestWidth / 3

	cols := make([][]float32, 0, 17+p.RestWidth)
	for d := 0; d < 3; d++ {
		cols = append(cols, strided(p.XYZ, 3, d, n))
	}
	zeros := make([]float32, n)
	cols = append(cols, zeros, zeros, zeros)
	for c := 0; c < 3; c++ {
		cols = append(cols, strided(p.FeaturesDC, 3, c, n))
	}
	for c := 0; c < 3; c++ {
		for j := 0; j < k; j++ {
			cols = append(cols, strided(p.FeaturesRest, p.RestWidth, j*3+c, n))
		}
	}
	cols = append(cols, append([]float32(nil), p.Opacity...))
	for d := 0; d < 3; d++ {
		cols = append(cols, strided(p.Scaling, 3, d, n))
	}
	for d := 0; d < 4; d++ {
		cols = append(cols, strided(p.Rotation, 4, d, n))
	}
	return ply.WriteFloatTable(w, "vertex", plyAttributes(k), cols)
}

// SavePLY 写出到文件，必要时创建目录
func (m *GaussianModel) SavePLY(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("创建目录失败: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := m.WritePLY(f); err != nil {
		f.Close()
		return fmt.Errorf("写出 %s 失败: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	logger.Info("已写出 %d 个高斯到 %s", m.Len(), path)
	return nil
}

// ReadPLY 读取 WritePLY 的输出替换当前高斯集合。f_rest 个数必须等于 3(D+1)²-3。
// 之前绑定的优化器被解除，需要重新 TrainingSetup
func (m *GaussianModel) ReadPLY(r io.Reader) error {
	table, err := ply.ReadElement(r, "vertex")
	if err != nil {
		return err
	}
	n := table.Len()
	k := entity.RestCoefficients(m.maxSHDegree)

	restNames := table.PrefixedNames("f_rest_")
	if len(restNames) != 3*k {
		return fmt.Errorf("%w: f_rest 属性 %d 个，球谐阶数 %d 需要 %d 个",
			ply.ErrSchemaMismatch, len(restNames), m.maxSHDegree, 3*k)
	}
	for i, name := range restNames {
		if want := fmt.Sprintf("f_rest_%d", i); name != want {
			return fmt.Errorf("%w: f_rest 编号不连续，第 %d 个为 %s，期望 %s",
				ply.ErrSchemaMismatch, i, name, want)
		}
	}

	fixed := []string{"x", "y", "z", "f_dc_0", "f_dc_1", "f_dc_2", "opacity",
		"scale_0", "scale_1", "scale_2", "rot_0", "rot_1", "rot_2", "rot_3"}
	cols, err := table.MustColumns(fixed...)
	if err != nil {
		return err
	}
	rest, err := table.MustColumns(restNames...)
	if err != nil {
		return err
	}

	p := NewPrimitives(n, 3*k)
	for i := 0; i < n; i++ {
		for d := 0; d < 3; d++ {
			p.XYZ[3*i+d] = float32(cols[d][i])
			p.FeaturesDC[3*i+d] = float32(cols[3+d][i])
			p.Scaling[3*i+d] = float32(cols[7+d][i])
		}
		p.Opacity[i] = float32(cols[6][i])
		for d := 0; d < 4; d++ {
			p.Rotation[4*i+d] = float32(cols[10+d][i])
		}
		for c := 0; c < 3; c++ {
			for j := 0; j < k; j++ {
				p.FeaturesRest[3*k*i+j*3+c] = float32(rest[c*k+j][i])
			}
		}
	}
	copy(p.XYZInitial, p.XYZ)

	m.store.Bind(nil)
	m.optimizer = nil
	if err := m.store.load(p); err != nil {
		return err
	}
	m.activeSHDegree = m.maxSHDegree
	monitor.Gaussians.Set(float64(n))
	return nil
}

// LoadPLY 从文件读取
func (m *GaussianModel) LoadPLY(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := m.ReadPLY(bufio.NewReader(f)); err != nil {
		return fmt.Errorf("读取 %s 失败: %w", path, err)
	}
	logger.Info("从 %s 读取 %d 个高斯，球谐阶数 %d", path, m.Len(), m.activeSHDegree)
	return nil
}
