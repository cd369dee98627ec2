package testutil

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// ELFOptions describes the dynamic section of a synthetic ELF object.
type ELFOptions struct {
	Class64     bool
	Machine     elf.Machine
	Needed      []string
	RunPath     string
	RPath       string
	Filters     []string
	SunwFilters []string
	Auxiliary   []string
}

// Filter tags debug/elf does not name.
const (
	dtSunwFilter = 0x6000000f
	dtAuxiliary  = 0x7ffffffd
	dtFilter     = 0x7fffffff
)

type dynEntry struct {
	tag uint64
	val uint64
}

// BuildELF writes a minimal little-endian ELF shared object holding only
// a string table and a dynamic section, which is enough for debug/elf to
// report NEEDED, RUNPATH and filter entries.
func BuildELF(t *testing.T, path string, opts ELFOptions) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, ELFBytes(opts), 0o755))
}

// ELFBytes renders the object described by opts.
func ELFBytes(opts ELFOptions) []byte {
	le := binary.LittleEndian
	machine := opts.Machine
	if machine == elf.EM_NONE {
		machine = elf.EM_386
		if opts.Class64 {
			machine = elf.EM_X86_64
		}
	}

	dynstr := []byte{0}
	addString := func(s string) uint64 {
		off := uint64(len(dynstr))
		dynstr = append(dynstr, s...)
		dynstr = append(dynstr, 0)
		return off
	}
	var entries []dynEntry
	for _, needed := range opts.Needed {
		entries = append(entries, dynEntry{uint64(elf.DT_NEEDED), addString(needed)})
	}
	if opts.RunPath != "" {
		entries = append(entries, dynEntry{uint64(elf.DT_RUNPATH), addString(opts.RunPath)})
	}
	if opts.RPath != "" {
		entries = append(entries, dynEntry{uint64(elf.DT_RPATH), addString(opts.RPath)})
	}
	for _, filter := range opts.Filters {
		entries = append(entries, dynEntry{dtFilter, addString(filter)})
	}
	for _, filter := range opts.SunwFilters {
		entries = append(entries, dynEntry{dtSunwFilter, addString(filter)})
	}
	for _, aux := range opts.Auxiliary {
		entries = append(entries, dynEntry{dtAuxiliary, addString(aux)})
	}
	entries = append(entries, dynEntry{uint64(elf.DT_NULL), 0})

	shstrtab := []byte("\x00.shstrtab\x00.dynstr\x00.dynamic\x00")
	const (
		nameShstrtab = 1
		nameDynstr   = 11
		nameDynamic  = 19
	)

	ehsize, shentsize, dynsize := 52, 40, 8
	if opts.Class64 {
		ehsize, shentsize, dynsize = 64, 64, 16
	}

	var dynamic bytes.Buffer
	for _, e := range entries {
		if opts.Class64 {
			_ = binary.Write(&dynamic, le, e.tag)
			_ = binary.Write(&dynamic, le, e.val)
		} else {
			_ = binary.Write(&dynamic, le, uint32(e.tag))
			_ = binary.Write(&dynamic, le, uint32(e.val))
		}
	}

	align := func(n int) int { return (n + 7) &^ 7 }
	shstrOff := ehsize
	dynstrOff := shstrOff + len(shstrtab)
	dynamicOff := align(dynstrOff + len(dynstr))
	shOff := align(dynamicOff + dynamic.Len())

	type section struct {
		name, typ, link  uint32
		off, size, entsz uint64
		addralign, flags uint64
	}
	sections := []section{
		{},
		{name: nameShstrtab, typ: uint32(elf.SHT_STRTAB), off: uint64(shstrOff), size: uint64(len(shstrtab)), addralign: 1},
		{name: nameDynstr, typ: uint32(elf.SHT_STRTAB), off: uint64(dynstrOff), size: uint64(len(dynstr)), addralign: 1, flags: uint64(elf.SHF_ALLOC)},
		{name: nameDynamic, typ: uint32(elf.SHT_DYNAMIC), link: 2, off: uint64(dynamicOff), size: uint64(dynamic.Len()),
			entsz: uint64(dynsize), addralign: 8, flags: uint64(elf.SHF_ALLOC | elf.SHF_WRITE)},
	}

	var out bytes.Buffer
	ident := [elf.EI_NIDENT]byte{0x7f, 'E', 'L', 'F'}
	ident[elf.EI_CLASS] = byte(elf.ELFCLASS32)
	if opts.Class64 {
		ident[elf.EI_CLASS] = byte(elf.ELFCLASS64)
	}
	ident[elf.EI_DATA] = byte(elf.ELFDATA2LSB)
	ident[elf.EI_VERSION] = byte(elf.EV_CURRENT)
	out.Write(ident[:])
	_ = binary.Write(&out, le, uint16(elf.ET_DYN))
	_ = binary.Write(&out, le, uint16(machine))
	_ = binary.Write(&out, le, uint32(elf.EV_CURRENT))
	if opts.Class64 {
		_ = binary.Write(&out, le, uint64(0)) // entry
		_ = binary.Write(&out, le, uint64(0)) // phoff
		_ = binary.Write(&out, le, uint64(shOff))
	} else {
		_ = binary.Write(&out, le, uint32(0))
		_ = binary.Write(&out, le, uint32(0))
		_ = binary.Write(&out, le, uint32(shOff))
	}
	_ = binary.Write(&out, le, uint32(0)) // flags
	_ = binary.Write(&out, le, uint16(ehsize))
	_ = binary.Write(&out, le, uint16(0)) // phentsize
	_ = binary.Write(&out, le, uint16(0)) // phnum
	_ = binary.Write(&out, le, uint16(shentsize))
	_ = binary.Write(&out, le, uint16(len(sections)))
	_ = binary.Write(&out, le, uint16(1)) // shstrndx

	out.Write(shstrtab)
	out.Write(dynstr)
	out.Write(make([]byte, dynamicOff-out.Len()))
	out.Write(dynamic.Bytes())
	out.Write(make([]byte, shOff-out.Len()))

	for _, s := range sections {
		_ = binary.Write(&out, le, s.name)
		_ = binary.Write(&out, le, s.typ)
		if opts.Class64 {
			_ = binary.Write(&out, le, s.flags)
			_ = binary.Write(&out, le, uint64(0)) // addr
			_ = binary.Write(&out, le, s.off)
			_ = binary.Write(&out, le, s.size)
			_ = binary.Write(&out, le, s.link)
			_ = binary.Write(&out, le, uint32(0)) // info
			_ = binary.Write(&out, le, s.addralign)
			_ = binary.Write(&out, le, s.entsz)
		} else {
			_ = binary.Write(&out, le, uint32(s.flags))
			_ = binary.Write(&out, le, uint32(0))
			_ = binary.Write(&out, le, uint32(s.off))
			_ = binary.Write(&out, le, uint32(s.size))
			_ = binary.Write(&out, le, s.link)
			_ = binary.Write(&out, le, uint32(0))
			_ = binary.Write(&out, le, uint32(s.addralign))
			_ = binary.Write(&out, le, uint32(s.entsz))
		}
	}
	return out.Bytes()
}
