package gaussian

import (
	"math"

	"golang.org/x/exp/constraints"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"
)

// C0 零阶球谐基函数常数
const C0 = 0.28209479177387814

const logitEps = 1e-6

var (
	// float32 能表示的严格位于 (0,1) 内的最大值
	opacityUpper = float64(math.Nextafter32(1, 0))
	opacityLower = float64(math.SmallestNonzeroFloat32)
)

func clamp[T constraints.Float](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ScalingActivation exp，结果保持在 float32 的正数范围内
func ScalingActivation(raw float32) float32 {
	return float32(clamp(math.Exp(float64(raw)), math.SmallestNonzeroFloat32, math.MaxFloat32))
}

// ScalingInverseActivation log
func ScalingInverseActivation(scale float32) float32 {
	return float32(math.Log(clamp(float64(scale), math.SmallestNonzeroFloat32, math.MaxFloat32)))
}

// OpacityActivation sigmoid，结果严格位于 (0,1)
func OpacityActivation(raw float32) float32 {
	s := 1 / (1 + math.Exp(-float64(raw)))
	return float32(clamp(s, opacityLower, opacityUpper))
}

// InverseOpacityActivation logit，输入先限制在 (1e-6, 1-1e-6)
func InverseOpacityActivation(opacity float32) float32 {
	p := clamp(float64(opacity), logitEps, 1-logitEps)
	return float32(math.Log(p / (1 - p)))
}

// NormalizeRotation 四元数单位化，顺序为 (w, x, y, z)。零四元数视为单位四元数
func NormalizeRotation(q [4]float32) [4]float32 {
	n := toQuat(q)
	abs := quat.Abs(n)
	if abs == 0 {
		return [4]float32{1, 0, 0, 0}
	}
	n = quat.Scale(1/abs, n)
	return [4]float32{float32(n.Real), float32(n.Imag), float32(n.Jmag), float32(n.Kmag)}
}

func toQuat(q [4]float32) quat.Number {
	return quat.Number{Real: float64(q[0]), Imag: float64(q[1]), Jmag: float64(q[2]), Kmag: float64(q[3])}
}

// BuildRotation 由四元数构造旋转矩阵，输入会先单位化
func BuildRotation(q [4]float32) [3][3]float64 {
	u := NormalizeRotation(q)
	r, x, y, z := float64(u[0]), float64(u[1]), float64(u[2]), float64(u[3])
	return [3][3]float64{
		{1 - 2*(y*y+z*z), 2 * (x*y - r*z), 2 * (x*z + r*y)},
		{2 * (x*y + r*z), 1 - 2*(x*x+z*z), 2 * (y*z - r*x)},
		{2 * (x*z - r*y), 2 * (y*z + r*x), 1 - 2*(x*x+y*y)},
	}
}

// RotateVector 用四元数旋转向量 v，等价于 BuildRotation(q)·v
func RotateVector(q [4]float32, v [3]float64) [3]float64 {
	u := NormalizeRotation(q)
	n := toQuat(u)
	p := quat.Number{Imag: v[0], Jmag: v[1], Kmag: v[2]}
	r := quat.Mul(quat.Mul(n, p), quat.Conj(n))
	return [3]float64{r.Imag, r.Jmag, r.Kmag}
}

// BuildCovariance 返回 Σ=L·Lᵀ（L=R·S）的上三角 6 个元素：
// xx, xy, xz, yy, yz, zz
func BuildCovariance(scale [3]float32, q [4]float32, modifier float64) [6]float32 {
	rot := BuildRotation(q)
	R := mat.NewDense(3, 3, []float64{
		rot[0][0], rot[0][1], rot[0][2],
		rot[1][0], rot[1][1], rot[1][2],
		rot[2][0], rot[2][1], rot[2][2],
	})
	S := mat.NewDiagDense(3, []float64{
		modifier * float64(scale[0]),
		modifier * float64(scale[1]),
		modifier * float64(scale[2]),
	})

	var L, cov mat.Dense
	L.Mul(R, S)
	cov.Mul(&L, L.T())

	return [6]float32{
		float32(cov.At(0, 0)), float32(cov.At(0, 1)), float32(cov.At(0, 2)),
		float32(cov.At(1, 1)), float32(cov.At(1, 2)),
		float32(cov.At(2, 2)),
	}
}

// RGB2SH 颜色转零阶球谐系数
func RGB2SH(rgb float64) float32 {
	return float32((rgb - 0.5) / C0)
}

// SH2RGB 零阶球谐系数转颜色
func SH2RGB(sh float32) float64 {
	return float64(sh)*C0 + 0.5
}
