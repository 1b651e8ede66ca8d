package repository

import "errors"

var (
	ErrNotFound = errors.New("not found")

	// 一意制約違反（冪等キー・購読・ACTIVEカートの競合）
	ErrDuplicate = errors.New("duplicate")
)
