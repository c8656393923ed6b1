package dataset

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// 文档注释：GeoJSON 要素与内部要素互转
// 背景：远端要素服务（f=geojson）与本地文件存储共用同一套解析；标识字段与类别字段从 properties 中拆出，其余属性原样保留。
// 约束：仅接受 Polygon/MultiPolygon，其他几何计入 skipped 返回；若任一要素缺少数值 ID，则全部按顺序重新编号以保证唯一。
func FromGeoJSON(name string, srid int, feats []*geojson.Feature, categoryField string) (*Dataset, int) {
	ds := &Dataset{Name: name, SRID: srid}
	skipped := 0
	renumber := false
	for _, gf := range feats {
		if gf == nil {
			skipped++
			continue
		}
		var mp orb.MultiPolygon
		switch g := gf.Geometry.(type) {
		case orb.Polygon:
			mp = orb.MultiPolygon{g}
		case orb.MultiPolygon:
			mp = g
		default:
			skipped++
			continue
		}
		f := Feature{Geometry: mp, Attrs: map[string]any{}}
		id, ok := featureID(gf.ID)
		if !ok {
			renumber = true
		}
		f.ID = id
		for k, v := range gf.Properties {
			switch k {
			case FieldLegalPlaceName:
				f.LegalPlaceName = getStr(v)
			case FieldPlaceType:
				f.PlaceType = getStr(v)
			case FieldPlaceName:
				f.PlaceName = getStr(v)
			case categoryField:
				if v != nil {
					f.Category = Str(getStr(v))
				}
			default:
				f.Attrs[k] = v
			}
		}
		ds.Features = append(ds.Features, f)
	}
	if !renumber && checkIDs(ds) != nil {
		renumber = true
	}
	if renumber {
		for i := range ds.Features {
			ds.Features[i].ID = int64(i + 1)
		}
	}
	return ds, skipped
}

// ToGeoJSON：导出为 GeoJSON 要素，类别字段固定写入 COASTAL（陆地为 null）
func ToGeoJSON(ds *Dataset) []*geojson.Feature {
	out := make([]*geojson.Feature, 0, len(ds.Features))
	for _, f := range ds.Features {
		gf := geojson.NewFeature(f.Geometry)
		gf.ID = f.ID
		for k, v := range f.Attrs {
			gf.Properties[k] = v
		}
		gf.Properties[FieldLegalPlaceName] = f.LegalPlaceName
		gf.Properties[FieldPlaceType] = f.PlaceType
		gf.Properties[FieldPlaceName] = f.PlaceName
		if f.Category == nil {
			gf.Properties[FieldCategory] = nil
		} else {
			gf.Properties[FieldCategory] = *f.Category
		}
		out = append(out, gf)
	}
	return out
}

func featureID(v any) (int64, bool) {
	switch x := v.(type) {
	case float64:
		return int64(x), true
	case int64:
		return x, true
	case int:
		return int64(x), true
	case string:
		n, err := strconv.ParseInt(x, 10, 64)
		return n, err == nil
	}
	return 0, false
}

func getStr(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	}
	return fmt.Sprint(v)
}

// fileEnvelope：FeatureCollection 外加 srid 成员
type fileEnvelope struct {
	Type     string             `json:"type"`
	SRID     int                `json:"srid"`
	Features []*geojson.Feature `json:"features"`
}

// Encode：序列化为带 srid 的 FeatureCollection（文件存储与 Redis 缓存共用）
func Encode(ds *Dataset) ([]byte, error) {
	return json.Marshal(fileEnvelope{Type: "FeatureCollection", SRID: ds.SRID, Features: ToGeoJSON(ds)})
}

// Decode：Encode 的逆过程
func Decode(name string, b []byte) (*Dataset, error) {
	var env fileEnvelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, err
	}
	ds, _ := FromGeoJSON(name, env.SRID, env.Features, FieldCategory)
	return ds, nil
}

// 文档注释：GeoJSON 文件存储
// 背景：每个数据集一个 <name>.geojson 文件，便于人工检查与下游发布工具直接读取。
// 约束：写入先落临时文件再重命名，避免半写文件；同一进程内串行化读写。
type GeoJSONStore struct {
	mu  sync.Mutex
	dir string
}

func NewGeoJSONStore(dir string) (*GeoJSONStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &GeoJSONStore{dir: dir}, nil
}

func (s *GeoJSONStore) path(name string) string {
	return filepath.Join(s.dir, name+".geojson")
}

func (s *GeoJSONStore) Exists(_ context.Context, name string) (bool, error) {
	_, err := os.Stat(s.path(name))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, err
}

func (s *GeoJSONStore) Load(_ context.Context, name string) (*Dataset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read(name)
}

func (s *GeoJSONStore) read(name string) (*Dataset, error) {
	b, err := os.ReadFile(s.path(name))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	if err != nil {
		return nil, err
	}
	ds, err := Decode(name, b)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.path(name), err)
	}
	return ds, nil
}

func (s *GeoJSONStore) Save(_ context.Context, ds *Dataset) error {
	if err := checkIDs(ds); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(ds)
}

func (s *GeoJSONStore) write(ds *Dataset) error {
	b, err := Encode(ds)
	if err != nil {
		return err
	}
	tmp := s.path(ds.Name) + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path(ds.Name))
}

func (s *GeoJSONStore) Update(_ context.Context, name string, fs []Feature) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ds, err := s.read(name)
	if err != nil {
		return err
	}
	out, err := applyUpdates(ds, fs)
	if err != nil {
		return err
	}
	return s.write(out)
}
