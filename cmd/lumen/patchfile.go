package main

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"

	"lumen/internal/domain"
	"lumen/internal/patch"
	"lumen/internal/types"
)

// patchFile is the on-disk patch description:
//
//	name = "orbit"
//
//	[[population]]
//	name = "dots"
//	lanes = 64
//	policy = "slew"     # none | preserve | slew | crossfade
//	map = "id"          # id | position
//	tau = 0.3           # slew time constant, seconds
//
//	[[block]]
//	id = "rate"
//	kind = "const"
//	params = { value = 0.2 }
//
//	[[block]]
//	id = "x"
//	kind = "spread"
//	population = "dots"
//
//	[[edge]]
//	from = "rate"        # "block" or "block.port"
//	to = "osc1.rate"
//
//	[player]
//	fps = 30             # playback defaults, overridable by flags
//	budget_ms = 8.0
//
// Vector params are arrays: `value = [0.5, 0.5]` (vec2), three elements for
// vec3, four for color.
type patchFile struct {
	Name        string           `toml:"name"`
	Populations []populationDecl `toml:"population"`
	Blocks      []blockDecl      `toml:"block"`
	Edges       []edgeDecl       `toml:"edge"`
	Player      playerDecl       `toml:"player"`
}

// playerDecl carries playback defaults an author bakes into the patch.
// Explicit command-line flags win over these.
type playerDecl struct {
	FPS      float64 `toml:"fps"`
	BudgetMS float64 `toml:"budget_ms"`
	Frames   int     `toml:"frames"`
}

// patchData is everything one parsed patch file yields.
type patchData struct {
	Name    string
	Graph   *patch.Graph
	Domains *domain.Registry
	Player  playerDecl
}

type populationDecl struct {
	Name   string      `toml:"name"`
	Lanes  int         `toml:"lanes"`
	Policy string      `toml:"policy"`
	Map    string      `toml:"map"`
	Tau    float64     `toml:"tau"`
	Fade   float64     `toml:"fade"`
	Keys   []uint64    `toml:"keys"`
	Rest   [][]float64 `toml:"rest"`
}

type blockDecl struct {
	ID         string         `toml:"id"`
	Kind       string         `toml:"kind"`
	Population string         `toml:"population"`
	Params     map[string]any `toml:"params"`
}

type edgeDecl struct {
	From string `toml:"from"`
	To   string `toml:"to"`
}

// loadPatch reads a TOML patch description and builds the in-memory graph
// and population registry the compiler consumes.
func loadPatch(path string) (*patchData, error) {
	var pf patchFile
	if _, err := toml.DecodeFile(path, &pf); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	domains := domain.NewRegistry()
	pops := make(map[string]types.InstanceID, len(pf.Populations))
	for _, pd := range pf.Populations {
		if pd.Name == "" {
			return nil, fmt.Errorf("%s: population without a name", path)
		}
		if _, dup := pops[pd.Name]; dup {
			return nil, fmt.Errorf("%s: duplicate population %q", path, pd.Name)
		}
		inst, err := declarePopulation(domains, pd)
		if err != nil {
			return nil, fmt.Errorf("%s: population %q: %w", path, pd.Name, err)
		}
		pops[pd.Name] = inst
	}

	reg := patch.Builtins()
	g := &patch.Graph{}
	ids := make(map[string]patch.BlockID, len(pf.Blocks))
	for _, bd := range pf.Blocks {
		if bd.ID == "" {
			return nil, fmt.Errorf("%s: block without an id", path)
		}
		if _, dup := ids[bd.ID]; dup {
			return nil, fmt.Errorf("%s: duplicate block id %q", path, bd.ID)
		}
		kind, ok := patch.KindByName(bd.Kind)
		if !ok {
			return nil, fmt.Errorf("%s: block %q: unknown kind %q", path, bd.ID, bd.Kind)
		}
		params, err := convertParams(bd.Params)
		if err != nil {
			return nil, fmt.Errorf("%s: block %q: %w", path, bd.ID, err)
		}
		b := patch.Block{Kind: kind, Label: bd.ID, Params: params}
		if bd.Population != "" {
			inst, ok := pops[bd.Population]
			if !ok {
				return nil, fmt.Errorf("%s: block %q: unknown population %q", path, bd.ID, bd.Population)
			}
			b.Instance = inst
		}
		ids[bd.ID] = g.AddBlock(b)
	}

	for i, ed := range pf.Edges {
		from, out, err := resolveEndpoint(g, reg, ids, ed.From, false)
		if err != nil {
			return nil, fmt.Errorf("%s: edge %d: %w", path, i, err)
		}
		to, in, err := resolveEndpoint(g, reg, ids, ed.To, true)
		if err != nil {
			return nil, fmt.Errorf("%s: edge %d: %w", path, i, err)
		}
		g.Connect(from, out, to, in)
	}

	name := pf.Name
	if name == "" {
		name = path
	}
	return &patchData{Name: name, Graph: g, Domains: domains, Player: pf.Player}, nil
}

func declarePopulation(domains *domain.Registry, pd populationDecl) (types.InstanceID, error) {
	policy, ok := domain.PolicyByName(pd.Policy)
	if !ok {
		return types.NoInstance, fmt.Errorf("unknown policy %q", pd.Policy)
	}
	mapBy, ok := domain.MapByName(pd.Map)
	if !ok {
		return types.NoInstance, fmt.Errorf("unknown map mode %q", pd.Map)
	}

	keys := pd.Keys
	// Identity mapping without explicit keys gets sequential ones, so
	// continuity works out of the box for growing populations.
	if len(keys) == 0 && policy != domain.PolicyNone && mapBy == domain.MapByID {
		keys = make([]uint64, pd.Lanes)
		for i := range keys {
			keys[i] = uint64(i)
		}
	}

	var rest [][2]float64
	if len(pd.Rest) > 0 {
		rest = make([][2]float64, len(pd.Rest))
		for i, r := range pd.Rest {
			if len(r) != 2 {
				return types.NoInstance, fmt.Errorf("rest[%d] has %d components, want 2", i, len(r))
			}
			rest[i] = [2]float64{r[0], r[1]}
		}
	}

	return domains.DeclareWith(domain.Population{
		Kind:   1,
		Lanes:  pd.Lanes,
		Keys:   keys,
		Rest:   rest,
		Policy: policy,
		MapBy:  mapBy,
		Tau:    pd.Tau,
		Fade:   pd.Fade,
	})
}

// resolveEndpoint parses "block" or "block.port" against the block's
// signature. A bare block name means the sole port of that direction.
func resolveEndpoint(g *patch.Graph, reg *patch.Registry, ids map[string]patch.BlockID, ref string, input bool) (patch.BlockID, patch.PortIdx, error) {
	name, port, hasPort := strings.Cut(ref, ".")
	id, ok := ids[name]
	if !ok {
		return 0, 0, fmt.Errorf("unknown block %q", name)
	}
	sig, err := reg.Signature(&g.Blocks[id])
	if err != nil {
		return 0, 0, err
	}

	if input {
		if !hasPort {
			if len(sig.Inputs) != 1 {
				return 0, 0, fmt.Errorf("block %q has %d inputs, name one of %s",
					name, len(sig.Inputs), portNames(sig.Inputs))
			}
			return id, 0, nil
		}
		idx, ok := sig.Input(port)
		if !ok {
			return 0, 0, fmt.Errorf("block %q has no input %q, expected one of %s",
				name, port, portNames(sig.Inputs))
		}
		return id, idx, nil
	}

	if !hasPort {
		if len(sig.Outputs) == 0 {
			return 0, 0, fmt.Errorf("block %q has no outputs", name)
		}
		return id, 0, nil
	}
	idx, ok := sig.Output(port)
	if !ok {
		return 0, 0, fmt.Errorf("block %q has no output %q", name, port)
	}
	return id, idx, nil
}

func portNames(ports []patch.PortSig) string {
	names := make([]string, len(ports))
	for i, p := range ports {
		names[i] = p.Name
	}
	return strings.Join(names, "|")
}

// convertParams maps decoded TOML values onto typed block parameters.
func convertParams(raw map[string]any) (patch.Params, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	params := make(patch.Params, len(raw))
	for key, v := range raw {
		switch val := v.(type) {
		case int64:
			params[key] = patch.Int(val)
		case float64:
			params[key] = patch.Float(val)
		case bool:
			params[key] = patch.Bool(val)
		case string:
			params[key] = patch.Str(val)
		case []any:
			vec, err := floatVector(val)
			if err != nil {
				return nil, fmt.Errorf("param %q: %w", key, err)
			}
			switch len(vec) {
			case 2:
				params[key] = patch.Vec2(vec[0], vec[1])
			case 3:
				params[key] = patch.Vec3(vec[0], vec[1], vec[2])
			case 4:
				params[key] = patch.Color(vec[0], vec[1], vec[2], vec[3])
			default:
				return nil, fmt.Errorf("param %q: %d-element vector, want 2, 3 or 4", key, len(vec))
			}
		default:
			return nil, fmt.Errorf("param %q: unsupported value %T", key, v)
		}
	}
	return params, nil
}

func floatVector(vals []any) ([]float64, error) {
	out := make([]float64, len(vals))
	for i, v := range vals {
		switch n := v.(type) {
		case int64:
			out[i] = float64(n)
		case float64:
			out[i] = n
		default:
			return nil, fmt.Errorf("element %d is %T, want a number", i, v)
		}
	}
	return out, nil
}
