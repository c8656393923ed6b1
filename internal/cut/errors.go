package cut

import "errors"

var (
	// ErrUnknownKind：辖区类型不是 cities/counties，属配置错误
	ErrUnknownKind = errors.New("cut: jurisdiction kind must be either 'cities' or 'counties'")

	// ErrCategoryMissing：排除类别在海岸线数据中从未出现
	ErrCategoryMissing = errors.New("cut: exclusion category not present in coastline data")

	// ErrSRIDMismatch：输入不在工作坐标系（重投影由上游完成）
	ErrSRIDMismatch = errors.New("cut: dataset is not in the working spatial reference")
)
