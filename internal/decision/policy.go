package decision

import (
	"fmt"
	"strings"
)

// DirectionPolicy 决定 open/close 缺少方向时的处理方式。
type DirectionPolicy string

const (
	// InferLong 缺省补全为 long，并标记 DirectionInferred。
	InferLong DirectionPolicy = "long"
	// RequireDirection 缺少方向即视为无效决策。
	RequireDirection DirectionPolicy = "reject"
)

func ParseDirectionPolicy(s string) (DirectionPolicy, error) {
	switch DirectionPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", InferLong:
		return InferLong, nil
	case RequireDirection:
		return RequireDirection, nil
	default:
		return "", fmt.Errorf("unknown direction policy %q (want long|reject)", s)
	}
}

// Resolve 返回补全后的方向以及是否为推断值。
func (p DirectionPolicy) Resolve(op Operation) (Direction, bool, error) {
	if p == RequireDirection {
		return DirectionNone, false, invalid("direction", "required for %s", op)
	}
	return DirectionLong, true, nil
}
