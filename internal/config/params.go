package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Kind is the expected YAML shape of a schema field.
type Kind int

const (
	KindInt Kind = iota
	KindFloat
	KindBool
	KindVec3
	KindVec4
)

// Field is one entry of the parameter schema.
type Field struct {
	Key      string
	Kind     Kind
	Default  any
	Required bool
}

// schema is the full, ordered list of keys the harness resolves from the
// parameter file. Keys not listed here are ignored; estimator-specific
// extras in the file do no harm.
var schema = []Field{
	{Key: "img_width", Kind: KindInt, Required: true},
	{Key: "img_height", Kind: KindInt, Required: true},
	{Key: "cam_fx", Kind: KindFloat, Required: true},
	{Key: "cam_fy", Kind: KindFloat, Required: true},
	{Key: "cam_cx", Kind: KindFloat, Required: true},
	{Key: "cam_cy", Kind: KindFloat, Required: true},

	{Key: "p", Kind: KindVec3, Default: [3]float64{}},
	{Key: "v", Kind: KindVec3, Default: [3]float64{}},
	{Key: "q", Kind: KindVec4, Default: [4]float64{0, 0, 0, 1}},
	{Key: "b_a", Kind: KindVec3, Default: [3]float64{}},
	{Key: "b_w", Kind: KindVec3, Default: [3]float64{}},

	{Key: "g", Kind: KindFloat, Default: 9.81},
	{Key: "n_a", Kind: KindFloat, Default: 0.0083},
	{Key: "n_ba", Kind: KindFloat, Default: 0.00083},
	{Key: "n_w", Kind: KindFloat, Default: 0.0013},
	{Key: "n_bw", Kind: KindFloat, Default: 0.00013},

	{Key: "n_tiles_h", Kind: KindInt, Default: 3},
	{Key: "n_tiles_w", Kind: KindInt, Default: 3},
	{Key: "max_feat_per_tile", Kind: KindInt, Default: 40},
	{Key: "state_buffer_size", Kind: KindInt, Default: 250},

	{Key: "event_accumulation_period", Kind: KindFloat, Default: 0.02},
}

// Params is the resolved estimator configuration.
type Params struct {
	ImgWidth  int
	ImgHeight int
	CamFx     float64
	CamFy     float64
	CamCx     float64
	CamCy     float64

	P0  [3]float64
	V0  [3]float64
	Q0  [4]float64
	BA0 [3]float64
	BW0 [3]float64

	Gravity float64
	NA      float64
	NBA     float64
	NW      float64
	NBW     float64

	NTilesH         int
	NTilesW         int
	MaxFeatPerTile  int
	StateBufferSize int

	EventAccumulationPeriod float64
}

// LoadParams reads and resolves the parameter file against the schema.
func LoadParams(path string) (*Params, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, startupErrorf("read params file %s: %v", path, err)
	}
	return resolveParams(data)
}

func resolveParams(data []byte) (*Params, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, startupErrorf("parse params file: %v", err)
	}

	resolved := make(map[string]any, len(schema))
	for _, f := range schema {
		raw, ok := doc[f.Key]
		if !ok {
			if f.Required {
				return nil, startupErrorf("params: required key %q missing", f.Key)
			}
			resolved[f.Key] = f.Default
			continue
		}
		v, err := coerce(raw, f.Kind)
		if err != nil {
			return nil, startupErrorf("params: key %q: %v", f.Key, err)
		}
		resolved[f.Key] = v
	}

	return &Params{
		ImgWidth:  resolved["img_width"].(int),
		ImgHeight: resolved["img_height"].(int),
		CamFx:     resolved["cam_fx"].(float64),
		CamFy:     resolved["cam_fy"].(float64),
		CamCx:     resolved["cam_cx"].(float64),
		CamCy:     resolved["cam_cy"].(float64),

		P0:  resolved["p"].([3]float64),
		V0:  resolved["v"].([3]float64),
		Q0:  resolved["q"].([4]float64),
		BA0: resolved["b_a"].([3]float64),
		BW0: resolved["b_w"].([3]float64),

		Gravity: resolved["g"].(float64),
		NA:      resolved["n_a"].(float64),
		NBA:     resolved["n_ba"].(float64),
		NW:      resolved["n_w"].(float64),
		NBW:     resolved["n_bw"].(float64),

		NTilesH:         resolved["n_tiles_h"].(int),
		NTilesW:         resolved["n_tiles_w"].(int),
		MaxFeatPerTile:  resolved["max_feat_per_tile"].(int),
		StateBufferSize: resolved["state_buffer_size"].(int),

		EventAccumulationPeriod: resolved["event_accumulation_period"].(float64),
	}, nil
}

// coerce converts a decoded YAML value to the schema kind.
func coerce(raw any, kind Kind) (any, error) {
	switch kind {
	case KindInt:
		switch v := raw.(type) {
		case int:
			return v, nil
		default:
			return nil, fmt.Errorf("expected integer, got %T", raw)
		}
	case KindFloat:
		return toFloat(raw)
	case KindBool:
		if v, ok := raw.(bool); ok {
			return v, nil
		}
		return nil, fmt.Errorf("expected boolean, got %T", raw)
	case KindVec3:
		vec, err := toFloatSlice(raw, 3)
		if err != nil {
			return nil, err
		}
		return [3]float64{vec[0], vec[1], vec[2]}, nil
	case KindVec4:
		vec, err := toFloatSlice(raw, 4)
		if err != nil {
			return nil, err
		}
		return [4]float64{vec[0], vec[1], vec[2], vec[3]}, nil
	default:
		return nil, fmt.Errorf("unhandled kind %d", kind)
	}
}

func toFloat(raw any) (float64, error) {
	switch v := raw.(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	default:
		return 0, fmt.Errorf("expected number, got %T", raw)
	}
}

func toFloatSlice(raw any, n int) ([]float64, error) {
	list, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("expected sequence of %d numbers, got %T", n, raw)
	}
	if len(list) != n {
		return nil, fmt.Errorf("expected %d elements, got %d", n, len(list))
	}
	out := make([]float64, n)
	for i, e := range list {
		f, err := toFloat(e)
		if err != nil {
			return nil, err
		}
		out[i] = f
	}
	return out, nil
}
