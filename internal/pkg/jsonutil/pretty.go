package jsonutil

import (
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
)

// Pretty 把合法 JSON 缩进为两空格格式；非 JSON 输入去掉首尾空白后原样返回。
func Pretty(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || !gjson.Valid(raw) {
		return raw
	}
	return strings.TrimSpace(string(pretty.Pretty([]byte(raw))))
}
