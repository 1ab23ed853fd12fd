package prompt

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"text/template"
	"time"

	"github.com/Luigik28/rizzo-trading-agent/internal/logger"

	"github.com/fsnotify/fsnotify"
)

// DefaultSystemTemplate 在未配置模板文件时使用。
const DefaultSystemTemplate = `You are an autonomous crypto perpetual-futures trading agent.
You manage a single account and decide one operation per cycle for one of: {{ join .Tickers ", " }}.

Current time: {{ .Now.Format "2006-01-02 15:04:05 MST" }}

Portfolio state (JSON):
{{ .Portfolio }}

Market context:
{{ .Context }}

Decide whether to open a new position, close an existing one, or hold.
Use at most the stated portion of balance and leverage between 1 and 10.
Explain the decision in one or two sentences.`

// Data 是渲染系统提示词所需的数据。
type Data struct {
	Portfolio string
	Context   string
	Tickers   []string
	Now       time.Time
}

// Manager 加载并渲染系统提示词模板，支持文件热更新。
type Manager struct {
	path string

	mu       sync.RWMutex
	tmpl     *template.Template
	loadedAt time.Time
}

var funcs = template.FuncMap{
	"join":  strings.Join,
	"upper": strings.ToUpper,
}

// NewManager path 为空时使用内置模板。
func NewManager(path string) (*Manager, error) {
	m := &Manager{path: strings.TrimSpace(path)}
	if err := m.Reload(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Manager) Path() string { return m.path }

func (m *Manager) LoadedAt() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loadedAt
}

// Reload 重新解析模板；失败时保留旧模板。
func (m *Manager) Reload() error {
	src := DefaultSystemTemplate
	name := "system"
	if m.path != "" {
		raw, err := os.ReadFile(m.path)
		if err != nil {
			return fmt.Errorf("read prompt template %s: %w", m.path, err)
		}
		src = string(raw)
		name = filepath.Base(m.path)
	}
	tmpl, err := template.New(name).Funcs(funcs).Option("missingkey=error").Parse(src)
	if err != nil {
		return fmt.Errorf("parse prompt template %s: %w", name, err)
	}
	m.mu.Lock()
	m.tmpl = tmpl
	m.loadedAt = time.Now()
	m.mu.Unlock()
	return nil
}

func (m *Manager) Render(d Data) (string, error) {
	if d.Now.IsZero() {
		d.Now = time.Now().UTC()
	}
	m.mu.RLock()
	tmpl := m.tmpl
	m.mu.RUnlock()
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, d); err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}
	return buf.String(), nil
}

// Watch 监听模板所在目录，文件写入或替换后自动重载；阻塞直到 ctx 结束。
func (m *Manager) Watch(ctx context.Context) error {
	if m.path == "" {
		<-ctx.Done()
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create prompt watcher: %w", err)
	}
	defer watcher.Close()
	// 监听目录而不是文件，编辑器常以 rename 方式保存
	if err := watcher.Add(filepath.Dir(m.path)); err != nil {
		return fmt.Errorf("watch prompt dir: %w", err)
	}
	target := filepath.Clean(m.path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case evt, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(evt.Name) != target || evt.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if err := m.Reload(); err != nil {
				logger.Errorf("prompt reload failed (%s): %v", evt.Name, err)
				continue
			}
			logger.Infof("prompt template reloaded: %s", evt.Name)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warnf("prompt watcher error: %v", err)
		}
	}
}
