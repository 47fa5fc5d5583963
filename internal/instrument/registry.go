// Package instrument 维护乐器定弦表，并把检测到的频率映射到指板上的弦和品位。
package instrument

import (
	"errors"
	"fmt"
	"io"
	"math"
	"slices"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrUnknownInstrument 未知乐器
var ErrUnknownInstrument = errors.New("未知乐器")

// Tuning 乐器定弦，构造后只读
type Tuning struct {
	Key             string    `yaml:"key"`
	DisplayName     string    `yaml:"name"`
	StringNames     []string  `yaml:"strings"`
	OpenFrequencies []float64 `yaml:"tuning"`
	FretCount       int       `yaml:"frets"`
}

// Validate 检查弦名与空弦频率一一对应
func (t Tuning) Validate() error {
	var errs []error
	if t.Key == "" {
		errs = append(errs, errors.New("缺少 key"))
	}
	if len(t.StringNames) == 0 {
		errs = append(errs, errors.New("至少需要一根弦"))
	}
	if len(t.StringNames) != len(t.OpenFrequencies) {
		errs = append(errs, fmt.Errorf("弦名数量 (%d) 与空弦频率数量 (%d) 不一致",
			len(t.StringNames), len(t.OpenFrequencies)))
	}
	for i, f := range t.OpenFrequencies {
		if f <= 0 || math.IsNaN(f) || math.IsInf(f, 0) {
			errs = append(errs, fmt.Errorf("第 %d 根弦的空弦频率无效: %g", i, f))
		}
	}
	if t.FretCount <= 0 {
		errs = append(errs, fmt.Errorf("品数必须大于 0 (当前 %d)", t.FretCount))
	}
	if len(errs) > 0 {
		return fmt.Errorf("乐器 %q: %w", t.Key, errors.Join(errs...))
	}
	return nil
}

// Strings 返回弦数
func (t Tuning) Strings() int {
	return len(t.StringNames)
}

// Builtin 内置定弦表
var Builtin = []Tuning{
	{
		Key:             "guitar",
		DisplayName:     "Guitar (6-string)",
		StringNames:     []string{"E", "A", "D", "G", "B", "E"},
		OpenFrequencies: []float64{82.41, 110.0, 146.83, 196.0, 246.94, 329.63},
		FretCount:       24,
	},
	{
		Key:             "guitar7",
		DisplayName:     "7-String Guitar",
		StringNames:     []string{"B", "E", "A", "D", "G", "B", "E"},
		OpenFrequencies: []float64{61.74, 82.41, 110.0, 146.83, 196.0, 246.94, 329.63},
		FretCount:       24,
	},
	{
		Key:             "bass",
		DisplayName:     "Bass Guitar (4-string)",
		StringNames:     []string{"E", "A", "D", "G"},
		OpenFrequencies: []float64{41.2, 55.0, 73.42, 98.0},
		FretCount:       24,
	},
	{
		Key:             "bass5",
		DisplayName:     "5-String Bass",
		StringNames:     []string{"B", "E", "A", "D", "G"},
		OpenFrequencies: []float64{30.87, 41.2, 55.0, 73.42, 98.0},
		FretCount:       24,
	},
	{
		Key:             "ukulele",
		DisplayName:     "Ukulele",
		StringNames:     []string{"G", "C", "E", "A"},
		OpenFrequencies: []float64{392.0, 261.63, 329.63, 440.0},
		FretCount:       18,
	},
	{
		Key:             "banjo",
		DisplayName:     "Banjo (5-string)",
		StringNames:     []string{"G", "D", "G", "B", "D"},
		OpenFrequencies: []float64{392.0, 293.66, 196.0, 246.94, 293.66},
		FretCount:       22,
	},
	{
		Key:             "mandolin",
		DisplayName:     "Mandolin",
		StringNames:     []string{"G", "D", "A", "E"},
		OpenFrequencies: []float64{196.0, 293.66, 440.0, 659.25},
		FretCount:       20,
	},
	{
		Key:             "violin",
		DisplayName:     "Violin",
		StringNames:     []string{"G", "D", "A", "E"},
		OpenFrequencies: []float64{196.0, 293.66, 440.0, 659.25},
		FretCount:       24,
	},
	{
		Key:             "dobro",
		DisplayName:     "Dobro/Resonator",
		StringNames:     []string{"G", "B", "D", "G", "B", "D"},
		OpenFrequencies: []float64{196.0, 246.94, 293.66, 392.0, 493.88, 587.33},
		FretCount:       24,
	},
}

// BuiltinAliases 逻辑乐器名到规范定弦的映射
var BuiltinAliases = map[string]string{
	"guitar6":   "guitar",
	"bass4":     "bass",
	"uke":       "ukulele",
	"banjo5":    "banjo",
	"fiddle":    "violin",
	"resonator": "dobro",
}

// Registry 定弦注册表，构造时完成校验，之后只读
type Registry struct {
	tunings map[string]Tuning
	aliases map[string]string
}

// NewRegistry 从定弦列表和别名表构造注册表。
// 任何定弦无效、键重复、别名指向不存在的定弦或与定弦同名都会返回错误。
func NewRegistry(tunings []Tuning, aliases map[string]string) (*Registry, error) {
	r := &Registry{
		tunings: make(map[string]Tuning, len(tunings)),
		aliases: make(map[string]string, len(aliases)),
	}
	var errs []error
	for _, t := range tunings {
		t.Key = normalize(t.Key)
		if err := t.Validate(); err != nil {
			errs = append(errs, err)
			continue
		}
		if _, dup := r.tunings[t.Key]; dup {
			errs = append(errs, fmt.Errorf("乐器 %q 重复定义", t.Key))
			continue
		}
		t.StringNames = slices.Clone(t.StringNames)
		t.OpenFrequencies = slices.Clone(t.OpenFrequencies)
		if t.DisplayName == "" {
			t.DisplayName = t.Key
		}
		r.tunings[t.Key] = t
	}
	for alias, target := range aliases {
		alias, target = normalize(alias), normalize(target)
		if _, clash := r.tunings[alias]; clash {
			errs = append(errs, fmt.Errorf("别名 %q 与已有乐器同名", alias))
			continue
		}
		if _, ok := r.tunings[target]; !ok {
			errs = append(errs, fmt.Errorf("别名 %q 指向未知乐器 %q", alias, target))
			continue
		}
		r.aliases[alias] = target
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return r, nil
}

// Default 返回只含内置定弦的注册表
func Default() *Registry {
	r, err := NewRegistry(Builtin, BuiltinAliases)
	if err != nil {
		panic(fmt.Sprintf("内置定弦表无效: %v", err))
	}
	return r
}

// Lookup 按乐器键名或别名查找定弦
func (r *Registry) Lookup(key string) (Tuning, error) {
	key = normalize(key)
	if target, ok := r.aliases[key]; ok {
		key = target
	}
	t, ok := r.tunings[key]
	if !ok {
		return Tuning{}, fmt.Errorf("%w: %q", ErrUnknownInstrument, key)
	}
	return t, nil
}

// Keys 返回所有规范乐器键名（已排序）
func (r *Registry) Keys() []string {
	keys := make([]string, 0, len(r.tunings))
	for k := range r.tunings {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Aliases 返回指向 key 的所有别名（已排序）
func (r *Registry) Aliases(key string) []string {
	var out []string
	for alias, target := range r.aliases {
		if target == key {
			out = append(out, alias)
		}
	}
	sort.Strings(out)
	return out
}

// File YAML 乐器定义文件格式
type File struct {
	Instruments []Tuning          `yaml:"instruments"`
	Aliases     map[string]string `yaml:"aliases"`
}

// LoadYAML 读取自定义乐器并与内置定弦合并。
// 自定义乐器不能覆盖内置乐器。
func LoadYAML(r io.Reader) (*Registry, error) {
	var f File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("instrument: decode yaml: %w", err)
	}
	return Extend(f.Instruments, f.Aliases)
}

// Extend 在内置定弦基础上追加乐器和别名
func Extend(tunings []Tuning, aliases map[string]string) (*Registry, error) {
	all := append(slices.Clone(Builtin), tunings...)
	merged := make(map[string]string, len(BuiltinAliases)+len(aliases))
	for k, v := range BuiltinAliases {
		merged[k] = v
	}
	for k, v := range aliases {
		merged[k] = v
	}
	return NewRegistry(all, merged)
}

func normalize(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}
