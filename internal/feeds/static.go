package feeds

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// StaticItem 是静态文件中的一条记录。
type StaticItem struct {
	Title  string `yaml:"title"`
	Body   string `yaml:"body"`
	Source string `yaml:"source"`
	Date   string `yaml:"date"`
}

type staticFile struct {
	Items []StaticItem `yaml:"items"`
}

// StaticFeed 每次 Fetch 都重新读取 YAML 文件，方便外部脚本定期覆盖内容。
type StaticFeed struct {
	name    string
	section string
	path    string
	limit   int
}

func NewStaticFeed(name, section, path string, limit int) *StaticFeed {
	return &StaticFeed{name: name, section: section, path: path, limit: limit}
}

func (f *StaticFeed) Name() string    { return f.name }
func (f *StaticFeed) Section() string { return f.section }

func (f *StaticFeed) Fetch(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	raw, err := os.ReadFile(f.path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", f.path, err)
	}
	var file staticFile
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return "", fmt.Errorf("parse %s: %w", f.path, err)
	}
	items := file.Items
	if f.limit > 0 && len(items) > f.limit {
		items = items[:f.limit]
	}
	var b strings.Builder
	for _, it := range items {
		line := strings.TrimSpace(it.Title)
		if body := strings.TrimSpace(it.Body); body != "" {
			if line != "" {
				line += ": "
			}
			line += body
		}
		if line == "" {
			continue
		}
		var meta []string
		if it.Source != "" {
			meta = append(meta, it.Source)
		}
		if it.Date != "" {
			meta = append(meta, it.Date)
		}
		b.WriteString("- ")
		b.WriteString(line)
		if len(meta) > 0 {
			b.WriteString(" (" + strings.Join(meta, ", ") + ")")
		}
		b.WriteString("\n")
	}
	return b.String(), nil
}
