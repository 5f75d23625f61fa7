// Package snapshot serializes sealed programs. A snapshot lets a host cache
// compiled patches, ship them between processes, or replay a session
// without the compiler present. The codec carries no I/O policy; callers
// own files, caches and transport.
package snapshot

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"

	"lumen/internal/domain"
	"lumen/internal/ir"
	"lumen/internal/types"
)

// Schema version - increment when the payload format changes.
const schemaVersion uint16 = 1

// ErrSchema is returned when decoding a snapshot written by an
// incompatible version. Callers treating snapshots as a cache should
// recompile on this error rather than fail.
var ErrSchema = errors.New("snapshot: unsupported schema")

// payload is the wire form of a program. It flattens enums to raw integers
// so the format never depends on Go-side constant layout staying put.
type payload struct {
	Schema      uint16
	Fingerprint uint64
	ScalarWords uint32

	Exprs    []exprRec
	Slots    []slotRec
	States   []stateRec
	Steps    []stepRec
	Sinks    []sinkRec
	Inputs   []inputRec
	Pops     []popRec
	SlotExpr []uint32
}

type typeRec struct {
	Payload  uint8
	Unit     uint8
	CardKind uint8
	Instance uint32
	Time     uint8
	BindKind uint8
	Entity   uint32
	View     uint32
	Branch   uint32
}

type exprRec struct {
	Kind uint8
	Op   uint8
	Type typeRec
	Args []uint32
	Lit  []float64
	Ref  uint32
}

type slotRec struct {
	Class  uint8
	Offset uint32
	Stride uint16
	Inst   uint32
}

type stateRec struct {
	Kind     uint8
	Identity uint64
	Type     typeRec
	Inst     uint32
	Init     []float64
}

type stepRec struct {
	Phase uint8
	Expr  uint32
	Slot  uint32
	State uint32
	Sink  uint32
	Inst  uint32
}

type sinkRec struct {
	Kind     uint8
	Name     string
	Blend    uint8
	Topology uint32
	Inst     uint32
	Params   []paramRec
}

type paramRec struct {
	Name string
	Slot uint32
}

type inputRec struct {
	Name    string
	Type    typeRec
	Default []float64
	Event   bool
}

type popRec struct {
	Inst   uint32
	Lanes  uint32
	Keys   []uint64
	Rest   [][2]float64
	Policy uint8
	MapBy  uint8
	Tau    float64
	Fade   float64
}

// Encode writes a snapshot of p to w.
func Encode(w io.Writer, p *ir.Program) error {
	if p == nil {
		return fmt.Errorf("snapshot: nil program")
	}
	if err := msgpack.NewEncoder(w).Encode(pack(p)); err != nil {
		return fmt.Errorf("snapshot: encode: %w", err)
	}
	return nil
}

// Decode reads one snapshot from r and rebuilds the program. The rebuilt
// program is re-sealed and cross-checked against the stored fingerprint,
// then validated; a snapshot that fails either check is rejected.
func Decode(r io.Reader) (*ir.Program, error) {
	var pl payload
	if err := msgpack.NewDecoder(r).Decode(&pl); err != nil {
		return nil, fmt.Errorf("snapshot: decode: %w", err)
	}
	if pl.Schema != schemaVersion {
		return nil, fmt.Errorf("%w %d, want %d", ErrSchema, pl.Schema, schemaVersion)
	}
	p := unpack(&pl)
	p.Seal()
	if p.Fingerprint != pl.Fingerprint {
		return nil, fmt.Errorf("snapshot: fingerprint mismatch: stored %016x, rebuilt %016x",
			pl.Fingerprint, p.Fingerprint)
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("snapshot: invalid program: %w", err)
	}
	return p, nil
}

// Marshal returns p as a snapshot byte slice.
func Marshal(p *ir.Program) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, p); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Unmarshal rebuilds a program from a snapshot byte slice.
func Unmarshal(b []byte) (*ir.Program, error) {
	return Decode(bytes.NewReader(b))
}

func pack(p *ir.Program) *payload {
	pl := &payload{
		Schema:      schemaVersion,
		Fingerprint: p.Fingerprint,
		ScalarWords: p.ScalarWords,
	}

	pl.Exprs = make([]exprRec, len(p.Exprs))
	for i, e := range p.Exprs {
		args := make([]uint32, len(e.Args))
		for j, a := range e.Args {
			args[j] = uint32(a)
		}
		pl.Exprs[i] = exprRec{
			Kind: uint8(e.Kind),
			Op:   uint8(e.Op),
			Type: packType(e.Type),
			Args: args,
			Lit:  e.Lit,
			Ref:  e.Ref,
		}
	}

	pl.Slots = make([]slotRec, len(p.Slots))
	for i, s := range p.Slots {
		pl.Slots[i] = slotRec{
			Class:  uint8(s.Class),
			Offset: s.Offset,
			Stride: s.Stride,
			Inst:   uint32(s.Inst),
		}
	}

	pl.States = make([]stateRec, len(p.States))
	for i, st := range p.States {
		pl.States[i] = stateRec{
			Kind:     uint8(st.Kind),
			Identity: st.Identity,
			Type:     packType(st.Type),
			Inst:     uint32(st.Inst),
			Init:     st.Init,
		}
	}

	pl.Steps = make([]stepRec, len(p.Steps))
	for i, s := range p.Steps {
		pl.Steps[i] = stepRec{
			Phase: uint8(s.Phase),
			Expr:  uint32(s.Expr),
			Slot:  uint32(s.Slot),
			State: uint32(s.State),
			Sink:  s.Sink,
			Inst:  uint32(s.Inst),
		}
	}

	pl.Sinks = make([]sinkRec, len(p.Sinks))
	for i, s := range p.Sinks {
		params := make([]paramRec, len(s.Params))
		for j, pr := range s.Params {
			params[j] = paramRec{Name: pr.Name, Slot: uint32(pr.Slot)}
		}
		pl.Sinks[i] = sinkRec{
			Kind:     uint8(s.Kind),
			Name:     s.Name,
			Blend:    uint8(s.Blend),
			Topology: uint32(s.Topology),
			Inst:     uint32(s.Inst),
			Params:   params,
		}
	}

	pl.Inputs = make([]inputRec, len(p.Inputs))
	for i, in := range p.Inputs {
		pl.Inputs[i] = inputRec{
			Name:    in.Name,
			Type:    packType(in.Type),
			Default: in.Default,
			Event:   in.Event,
		}
	}

	pl.Pops = make([]popRec, len(p.Pops))
	for i, d := range p.Pops {
		pl.Pops[i] = popRec{
			Inst:   uint32(d.Inst),
			Lanes:  d.Lanes,
			Keys:   d.Keys,
			Rest:   d.Rest,
			Policy: uint8(d.Policy),
			MapBy:  uint8(d.MapBy),
			Tau:    d.Tau,
			Fade:   d.Fade,
		}
	}

	if len(p.SlotExpr) > 0 {
		pl.SlotExpr = make([]uint32, len(p.SlotExpr))
		for i, e := range p.SlotExpr {
			pl.SlotExpr[i] = uint32(e)
		}
	}
	return pl
}

func unpack(pl *payload) *ir.Program {
	p := &ir.Program{ScalarWords: pl.ScalarWords}

	p.Exprs = make([]ir.Expr, len(pl.Exprs))
	for i, r := range pl.Exprs {
		args := make([]ir.ExprID, len(r.Args))
		for j, a := range r.Args {
			args[j] = ir.ExprID(a)
		}
		p.Exprs[i] = ir.Expr{
			Kind: ir.ExprKind(r.Kind),
			Op:   ir.Op(r.Op),
			Type: unpackType(r.Type),
			Args: args,
			Lit:  r.Lit,
			Ref:  r.Ref,
		}
	}

	p.Slots = make([]ir.SlotMeta, len(pl.Slots))
	for i, r := range pl.Slots {
		p.Slots[i] = ir.SlotMeta{
			Class:  ir.StorageClass(r.Class),
			Offset: r.Offset,
			Stride: r.Stride,
			Inst:   types.InstanceID(r.Inst),
		}
	}

	p.States = make([]ir.StateDecl, len(pl.States))
	for i, r := range pl.States {
		p.States[i] = ir.StateDecl{
			Kind:     ir.StateKind(r.Kind),
			Identity: r.Identity,
			Type:     unpackType(r.Type),
			Inst:     types.InstanceID(r.Inst),
			Init:     r.Init,
		}
	}

	p.Steps = make([]ir.Step, len(pl.Steps))
	for i, r := range pl.Steps {
		p.Steps[i] = ir.Step{
			Phase: ir.Phase(r.Phase),
			Expr:  ir.ExprID(r.Expr),
			Slot:  ir.SlotID(r.Slot),
			State: ir.StateID(r.State),
			Sink:  r.Sink,
			Inst:  types.InstanceID(r.Inst),
		}
	}

	p.Sinks = make([]ir.SinkDecl, len(pl.Sinks))
	for i, r := range pl.Sinks {
		params := make([]ir.SinkParam, len(r.Params))
		for j, pr := range r.Params {
			params[j] = ir.SinkParam{Name: pr.Name, Slot: ir.SlotID(pr.Slot)}
		}
		p.Sinks[i] = ir.SinkDecl{
			Kind:     ir.SinkKind(r.Kind),
			Name:     r.Name,
			Blend:    ir.BlendMode(r.Blend),
			Topology: ir.TopologyID(r.Topology),
			Inst:     types.InstanceID(r.Inst),
			Params:   params,
		}
	}

	p.Inputs = make([]ir.InputDecl, len(pl.Inputs))
	for i, r := range pl.Inputs {
		p.Inputs[i] = ir.InputDecl{
			Name:    r.Name,
			Type:    unpackType(r.Type),
			Default: r.Default,
			Event:   r.Event,
		}
	}

	p.Pops = make([]ir.PopDecl, len(pl.Pops))
	for i, r := range pl.Pops {
		p.Pops[i] = ir.PopDecl{
			Inst:   types.InstanceID(r.Inst),
			Lanes:  r.Lanes,
			Keys:   r.Keys,
			Rest:   r.Rest,
			Policy: domain.Policy(r.Policy),
			MapBy:  domain.MapBy(r.MapBy),
			Tau:    r.Tau,
			Fade:   r.Fade,
		}
	}

	if len(pl.SlotExpr) > 0 {
		p.SlotExpr = make([]ir.ExprID, len(pl.SlotExpr))
		for i, e := range pl.SlotExpr {
			p.SlotExpr[i] = ir.ExprID(e)
		}
	}
	return p
}

func packType(t types.Type) typeRec {
	return typeRec{
		Payload:  uint8(t.Payload),
		Unit:     uint8(t.Unit),
		CardKind: uint8(t.Extent.Card.Kind),
		Instance: uint32(t.Extent.Card.Instance),
		Time:     uint8(t.Extent.Time),
		BindKind: uint8(t.Extent.Bind.Kind),
		Entity:   uint32(t.Extent.Bind.Entity),
		View:     uint32(t.Extent.View),
		Branch:   uint32(t.Extent.Branch),
	}
}

func unpackType(r typeRec) types.Type {
	return types.Type{
		Payload: types.Payload(r.Payload),
		Unit:    types.Unit(r.Unit),
		Extent: types.Extent{
			Card: types.Cardinality{
				Kind:     types.CardKind(r.CardKind),
				Instance: types.InstanceID(r.Instance),
			},
			Time: types.Temporality(r.Time),
			Bind: types.Binding{
				Kind:   types.BindKind(r.BindKind),
				Entity: types.EntityID(r.Entity),
			},
			View:   types.Perspective(r.View),
			Branch: types.Branch(r.Branch),
		},
	}
}
