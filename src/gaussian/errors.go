package gaussian

import "errors"

var (
	// ErrRowMismatch 逐高斯数组行数不一致，结构编辑在修改任何数组前中止
	ErrRowMismatch = errors.New("gaussian: per-primitive arrays are misaligned")
	// ErrMaskLength 掩码或输入的行数与高斯数量不一致
	ErrMaskLength = errors.New("gaussian: mask length does not match population")
	// ErrNotTrainable 尚未调用 TrainingSetup
	ErrNotTrainable = errors.New("gaussian: model is not set up for training")
)
