package util

import (
	"strconv"
)

// ParseID 解析路径参数中的主键，非正整数视为非法
func ParseID(s string) (uint, bool) {
	id, err := strconv.ParseUint(s, 10, 32)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}
