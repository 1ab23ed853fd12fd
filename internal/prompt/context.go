package prompt

import "strings"

// Section 是上下文中的一段，以 <tag>...</tag> 包裹。
type Section struct {
	Tag  string
	Body string
}

// ComposeContext 按顺序拼接各段，空段落也保留标签以便模型知道该来源没有数据。
func ComposeContext(sections ...Section) string {
	var b strings.Builder
	for i, s := range sections {
		if i > 0 {
			b.WriteString("\n\n")
		}
		tag := strings.TrimSpace(s.Tag)
		body := strings.TrimSpace(s.Body)
		if body == "" {
			body = "n/a"
		}
		b.WriteString("<" + tag + ">\n")
		b.WriteString(body)
		b.WriteString("\n</" + tag + ">")
	}
	return b.String()
}
