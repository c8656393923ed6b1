package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"github.com/paulmach/orb"
	"gopkg.in/yaml.v3"
)

//go:embed protected_fragments.yaml
var defaultProtected []byte

// ErrBadProtected：受保护碎片清单无法使用（格式错误或坐标系不符）
var ErrBadProtected = errors.New("config: invalid protected fragments")

// 文档注释：受保护碎片清单
// 背景：已知的真实小岛（面积低于阈值）不得被碎片修复迁移；清单作为带版本的配置数据维护，默认随二进制内嵌。
// 约束：坐标须与工作坐标系一致（srid 字段校验）；每个环至少 4 个点且首尾闭合。
type ProtectedSet struct {
	Version   string
	SRID      int
	Fragments []ProtectedFragment
}

type ProtectedFragment struct {
	Name    string
	Polygon orb.Polygon
}

type protectedFile struct {
	Version   string `yaml:"version"`
	SRID      int    `yaml:"srid"`
	Fragments []struct {
		Name  string        `yaml:"name"`
		Rings [][][]float64 `yaml:"rings"`
	} `yaml:"fragments"`
}

// LoadProtected：读取清单；path 为空时使用内嵌默认清单
func LoadProtected(path string) (*ProtectedSet, error) {
	b := defaultProtected
	if path != "" {
		var err error
		if b, err = os.ReadFile(path); err != nil {
			return nil, err
		}
	}
	return ParseProtected(b)
}

func ParseProtected(b []byte) (*ProtectedSet, error) {
	var pf protectedFile
	if err := yaml.Unmarshal(b, &pf); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadProtected, err)
	}
	if pf.SRID == 0 {
		return nil, fmt.Errorf("%w: srid is required", ErrBadProtected)
	}
	set := &ProtectedSet{Version: pf.Version, SRID: pf.SRID}
	for _, fr := range pf.Fragments {
		if len(fr.Rings) == 0 {
			return nil, fmt.Errorf("%w: %q has no rings", ErrBadProtected, fr.Name)
		}
		poly := make(orb.Polygon, 0, len(fr.Rings))
		for _, r := range fr.Rings {
			ring := make(orb.Ring, 0, len(r))
			for _, p := range r {
				if len(p) != 2 {
					return nil, fmt.Errorf("%w: %q has a point without exactly 2 coordinates", ErrBadProtected, fr.Name)
				}
				ring = append(ring, orb.Point{p[0], p[1]})
			}
			if len(ring) < 4 || !ring.Closed() {
				return nil, fmt.Errorf("%w: %q ring must be closed with at least 4 points", ErrBadProtected, fr.Name)
			}
			poly = append(poly, ring)
		}
		set.Fragments = append(set.Fragments, ProtectedFragment{Name: fr.Name, Polygon: poly})
	}
	return set, nil
}

// CheckSRID：清单坐标系须与工作坐标系一致，不一致时返回包装的 ErrBadProtected
func (s *ProtectedSet) CheckSRID(working int) error {
	if s.SRID != working {
		return fmt.Errorf("%w: srid %d, working srid %d", ErrBadProtected, s.SRID, working)
	}
	return nil
}

// Polygons：仅返回几何，供碎片修复引擎使用
func (s *ProtectedSet) Polygons() []orb.Polygon {
	out := make([]orb.Polygon, len(s.Fragments))
	for i, f := range s.Fragments {
		out[i] = f.Polygon
	}
	return out
}
