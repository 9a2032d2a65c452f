// 包 facts：按地区名称查找给孩子听的趣味知识
package facts

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed facts.yaml
var builtin []byte

// Fact：一句话知识与配套表情
type Fact struct {
	Key   string `yaml:"key" json:"-"`
	Text  string `yaml:"fact" json:"fact"`
	Emoji string `yaml:"emoji" json:"emoji"`
}

// Table：有序知识表；顺序决定部分匹配的优先级
type Table struct {
	entries []Fact
	byKey   map[string]Fact
}

type document struct {
	Facts []Fact `yaml:"facts"`
}

// Parse：解析 YAML 知识表；键统一为小写去空白
func Parse(data []byte) (*Table, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse facts: %w", err)
	}
	t := &Table{byKey: make(map[string]Fact, len(doc.Facts))}
	for _, f := range doc.Facts {
		f.Key = strings.ToLower(strings.TrimSpace(f.Key))
		if f.Key == "" {
			continue
		}
		if _, dup := t.byKey[f.Key]; dup {
			continue
		}
		t.entries = append(t.entries, f)
		t.byKey[f.Key] = f
	}
	return t, nil
}

// Builtin：内置知识表
func Builtin() *Table {
	t, err := Parse(builtin)
	if err != nil {
		panic(err)
	}
	return t
}

// Load：从文件加载；path 为空时返回内置表
func Load(path string) (*Table, error) {
	if path == "" {
		return Builtin(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read facts %s: %w", path, err)
	}
	return Parse(b)
}

func (t *Table) Len() int { return len(t.entries) }

// 文档注释：查找知识
// 背景：数据集里的名称与表中键常不完全一致（如 "Republic of India" 对 "india"），先精确匹配，再按表顺序做双向包含匹配。
// 约束：都未命中时返回 "Explore beautiful <name>!"，永不返回空。
func (t *Table) Lookup(name string) Fact {
	key := strings.ToLower(strings.TrimSpace(name))
	if key != "" {
		if f, ok := t.byKey[key]; ok {
			return f
		}
		for _, f := range t.entries {
			if strings.Contains(key, f.Key) || strings.Contains(f.Key, key) {
				return f
			}
		}
	}
	return Fact{Key: key, Text: fmt.Sprintf("Explore beautiful %s!", name), Emoji: "🌍"}
}
