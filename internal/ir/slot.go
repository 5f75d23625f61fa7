package ir

import (
	"fmt"

	"lumen/internal/types"
)

// SlotID is the runtime address of a value.
type SlotID uint32

// NoSlot marks the absence of a slot.
const NoSlot SlotID = ^SlotID(0)

// StorageClass selects how a slot's scalars are stored. There are exactly
// two classes; the executor resolves both through a single indirection and
// nothing else may assume "slot index equals array offset".
type StorageClass uint8

const (
	// StorageScalar places stride-many scalars at a fixed offset in the
	// program's contiguous scalar arena. Used for per-frame values of
	// narrow payloads.
	StorageScalar StorageClass = iota
	// StorageKeyed stores a variable-size buffer addressed by slot id.
	// Used for fields, whose length follows the population, and for wide
	// payloads such as projections.
	StorageKeyed
)

func (c StorageClass) String() string {
	if c == StorageKeyed {
		return "keyed"
	}
	return "scalar"
}

// SlotMeta describes one slot: its storage class, its position when scalar,
// and its element stride. Stride always comes from the payload table; it is
// recorded here so the executor never recomputes it.
type SlotMeta struct {
	Class  StorageClass
	Offset uint32 // scalar arena offset, StorageScalar only
	Stride uint16
	Inst   types.InstanceID // backing population for field slots
}

func (m SlotMeta) String() string {
	if m.Class == StorageScalar {
		return fmt.Sprintf("scalar@%d x%d", m.Offset, m.Stride)
	}
	if m.Inst != types.NoInstance {
		return fmt.Sprintf("keyed x%d over #%d", m.Stride, m.Inst)
	}
	return fmt.Sprintf("keyed x%d", m.Stride)
}
