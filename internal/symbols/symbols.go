// Package symbols implements name resolution and storage (spec §3
// "Variable binding" / "Symbol storage layout", §4.D).
package symbols

import (
	"strings"

	"basiccore/internal/heap"
	"basiccore/internal/value"
)

// VarType is the type tag recovered from a name's terminator
// character (spec §4.D).
type VarType byte

const (
	TypeFloat VarType = iota // no suffix: widest float
	TypeInt32
	TypeInt64
	TypeFloat64
	TypeString
	TypeByte
	TypeStruct
)

// TypeOf derives a VarType from a name's trailing sigil.
func TypeOf(name string) VarType {
	switch {
	case strings.HasSuffix(name, "%%"):
		return TypeInt64
	case strings.HasSuffix(name, "%"):
		return TypeInt32
	case strings.HasSuffix(name, "#"):
		return TypeFloat64
	case strings.HasSuffix(name, "$"):
		return TypeString
	case strings.HasSuffix(name, "&"):
		return TypeByte
	case strings.HasSuffix(name, "{") || strings.HasSuffix(name, "."):
		return TypeStruct
	default:
		return TypeFloat
	}
}

// Array is the descriptor for a DIMmed array: rank, per-dimension
// extents and a flat backing slice of Values (spec §3 "array").
type Array struct {
	Dims []int // extents per dimension, each inclusive (DIM A(3) => 4 slots)
	Data []value.Value
}

func (a *Array) size() int {
	n := 1
	for _, d := range a.Dims {
		n *= d + 1
	}
	return n
}

// NewArray allocates an array with the given dimension extents.
func NewArray(dims []int) *Array {
	a := &Array{Dims: append([]int(nil), dims...)}
	a.Data = make([]value.Value, a.size())
	return a
}

// Index computes the flat offset for a set of subscripts, row-major
// as BBC BASIC lays arrays out.
func (a *Array) Index(subs []int) (int, bool) {
	if len(subs) != len(a.Dims) {
		return 0, false
	}
	off := 0
	for i, s := range subs {
		if s < 0 || s > a.Dims[i] {
			return 0, false
		}
		off = off*(a.Dims[i]+1) + s
	}
	return off, true
}

// StructField is one (name, type, offset) triple of a structure
// format (spec §3 "structure").
type StructField struct {
	Name   string
	Type   VarType
	Offset int
}

// StructFormat describes a structure type: total size plus its field
// list. Instances are plain []value.Value slots, one per field,
// addressed by offset/size in the field list (simplified from the
// byte-block-with-offsets model for a tree-walking interpreter: a Go
// slice of Values already gives O(1) field access without raw
// pointer arithmetic).
type StructFormat struct {
	Fields []StructField
	Size   int
}

// A live structure value has no type of its own: it is held in a
// Node's StructV, one Value per field in declaration order.

// Node is a single bucket entry: a name binding plus whatever storage
// it owns (spec §3 "Symbol storage layout" bucket node shape).
type Node struct {
	Name    string
	Type    VarType
	Scalar  value.Value
	StrDesc *heap.Descriptor // set when Type==TypeString and heap-owned
	Array   *Array
	Struct  *StructFormat
	StructV []value.Value // flat field storage when Type==TypeStruct
	next    *Node
}

// Bucket is a self-organizing singly linked list keyed by first
// letter (spec §4.D rule 4): on hit the found node is promoted to the
// head.
type Bucket struct {
	head *Node
}

func (b *Bucket) find(name string) *Node {
	var prev *Node
	for n := b.head; n != nil; n = n.next {
		if n.Name == name {
			if prev != nil {
				prev.next = n.next
				n.next = b.head
				b.head = n
			}
			return n
		}
		prev = n
	}
	return nil
}

func (b *Bucket) create(name string) *Node {
	n := &Node{Name: name, Type: TypeOf(name), next: b.head}
	b.head = n
	return n
}

// Table is the full symbol table: 27 first-letter buckets (26 letters
// + one for @-system variables), the static A%..Z% slots, fast slots,
// and separate FN/PROC definition tables.
type Table struct {
	buckets  [27]Bucket // index 0 = '@', 1..26 = A..Z
	static   [26]value.Value
	fastVars map[string]*Node
	fnTable  map[string]int // name -> program cursor of DEF FN line
	procTable map[string]int
}

// New creates an empty symbol table.
func New() *Table {
	return &Table{fastVars: make(map[string]*Node), fnTable: make(map[string]int), procTable: make(map[string]int)}
}

func bucketIndex(name string) int {
	if len(name) == 0 {
		return 1
	}
	c := name[0]
	if c == '@' {
		return 0
	}
	up := c
	if up >= 'a' && up <= 'z' {
		up -= 'a' - 'A'
	}
	if up < 'A' || up > 'Z' {
		return 1
	}
	return int(up-'A') + 1
}

// isStaticScalar reports whether name is one of A%..Z% (spec §4.D
// rule 1): exactly one letter followed by '%'.
func isStaticScalar(name string) (idx int, ok bool) {
	if len(name) != 2 || name[1] != '%' {
		return 0, false
	}
	c := name[0]
	if c >= 'a' && c <= 'z' {
		c -= 'a' - 'A'
	}
	if c < 'A' || c > 'Z' {
		return 0, false
	}
	return int(c - 'A'), true
}

// StaticIndex reports whether name is one of the O(1) static scalar
// slots A%..Z% (spec §4.D rule 1) and, if so, its index. Callers
// (internal/exec) must check this before falling back to
// Lookup/GetOrCreate, since static slots are stored by value in the
// table rather than as bucket Nodes and so need their own
// get/set path to make writes visible.
func StaticIndex(name string) (int, bool) { return isStaticScalar(name) }

// Lookup resolves a non-static name, returning its node. The bool
// result reports whether the name already existed; on miss it does
// NOT create a binding (spec §4.D: lookup yields a "not found"
// sentinel, with the bucket-tail pointer available via GetOrCreate
// for callers that want to assign).
func (t *Table) Lookup(name string) (*Node, bool) {
	if n, ok := t.fastVars[name]; ok {
		return n, true
	}
	b := &t.buckets[bucketIndex(name)]
	if n := b.find(name); n != nil {
		return n, true
	}
	return nil, false
}

// GetOrCreate resolves a non-static name, creating a fresh
// zero-valued binding on miss (spec §4.D "Creation").
func (t *Table) GetOrCreate(name string) *Node {
	if n, ok := t.fastVars[name]; ok {
		return n
	}
	b := &t.buckets[bucketIndex(name)]
	if n := b.find(name); n != nil {
		return n
	}
	return b.create(name)
}

// SetStatic writes one of the A%..Z% static slots directly.
func (t *Table) SetStatic(idx int, v value.Value) { t.static[idx] = v }

// GetStatic reads one of the A%..Z% static slots directly.
func (t *Table) GetStatic(idx int) value.Value { return t.static[idx] }

// RegisterFastSlot assigns name to a fast-path slot (spec §4.D rule
// 2); Lookup and GetOrCreate consult these slots before the buckets.
func (t *Table) RegisterFastSlot(name string) {
	if _, exists := t.fastVars[name]; !exists {
		t.fastVars[name] = &Node{Name: name, Type: TypeOf(name)}
	}
}

// DefineFn records a DEF FN's body cursor.
func (t *Table) DefineFn(name string, cursor int) { t.fnTable[name] = cursor }

// DefineProc records a DEF PROC's body cursor.
func (t *Table) DefineProc(name string, cursor int) { t.procTable[name] = cursor }

// LookupFn returns a DEF FN's body cursor.
func (t *Table) LookupFn(name string) (int, bool) { c, ok := t.fnTable[name]; return c, ok }

// LookupProc returns a DEF PROC's body cursor.
func (t *Table) LookupProc(name string) (int, bool) { c, ok := t.procTable[name]; return c, ok }

// Clear resets all dynamic bindings (CLEAR/RUN/CHAIN, spec
// "Lifecycle"): buckets, fast slots and FN/PROC tables, but not the
// static A%..Z% slots, which BBC BASIC preserves across CLEAR.
func (t *Table) Clear() {
	for i := range t.buckets {
		t.buckets[i] = Bucket{}
	}
	t.fastVars = make(map[string]*Node)
	t.fnTable = make(map[string]int)
	t.procTable = make(map[string]int)
}

// systemNames is the set of @-prefixed system variable names (spec
// §4.D rule 3) that IsSystemName recognizes; it is a plain lookup set
// and keeps no bucket order.
var systemNames = map[string]bool{
	"@%": true, "@cmd$": true, "@dir$": true, "@lib$": true,
	"@usr$": true, "@tmp$": true, "@hfile%()": true, "@hmem%": true,
	"@hwnd%": true, "@vdu%": true,
}

// IsSystemName reports whether name is a recognized @-prefixed system
// variable.
func IsSystemName(name string) bool { return systemNames[name] }
