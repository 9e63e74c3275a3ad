// Package oish implements the oiSH container (spec §3, §4.8): a shader
// package of compiled binaries, entrypoints, include-file provenance, and
// reflection metadata.
//
// The fixed per-binary/per-entrypoint record widths are this package's own
// construction: original_source/src/formats/oiSH/read.c (the only oiSH
// source file in the retrieval pack) confirms the section *ordering*
// (header, string oiDL, buffer-layout oiDL, fixed binary records, fixed
// entrypoint records, include CRC32C table, array-dim scratch, then
// variable per-binary/per-entrypoint payloads) but its headers.h/sh_file.h
// struct definitions were not retrieved, so the exact field widths below
// are sized from spec.md §4.8's prose rather than copied from a C struct
// -- see DESIGN.md. Bit-packed register/array handling follows the
// teacher's qcow2/header.go style of reading fixed structs with
// encoding/binary, plus internal/bitmask for each binary's binaryFlags byte
// and the vendorMaskBits helper.
package oish

import (
	"encoding/binary"

	"github.com/oxc3-go/core3/format/oidl"
	"github.com/oxc3-go/core3/hash/crc32c"
	"github.com/oxc3-go/core3/internal/bitmask"
	"github.com/oxc3-go/core3/oxerr"
	"github.com/oxc3-go/core3/sizetype"
)

// Magic is the 4-byte little-endian magic number "oiSH".
const Magic uint32 = 0x4853696F

const headerVersion uint8 = 0

// Stage identifies a shader pipeline stage.
type Stage uint8

const (
	Vertex Stage = iota
	Pixel
	Geometry
	Hull
	Domain
	Compute
	Mesh
	Task
	Workgraph
	RayGen
	ClosestHit
	AnyHit
	Miss
	Intersection
	Callable
	stageCount
)

func (s Stage) IsGraphics() bool {
	return s == Vertex || s == Pixel || s == Geometry || s == Hull || s == Domain
}

func (s Stage) IsComputeLike() bool {
	return s == Compute || s == Mesh || s == Task || s == Workgraph
}

func (s Stage) IsRayTracing() bool {
	return s >= RayGen && s <= Callable
}

// BinaryType is one of the compiled target encodings a binary may carry.
type BinaryType uint8

const (
	SPIRV BinaryType = iota
	DXIL
	binaryTypeCount
)

const noIndex uint16 = 0xFFFF

// UniformPair references a (name, value) pair by index into the string
// section's unique-names and unique-values ranges.
type UniformPair struct {
	NameIdx  uint16
	ValueIdx uint16
}

// BinaryIdentifier distinguishes one compiled binary from another within a
// shader package.
type BinaryIdentifier struct {
	Stage          Stage // stage the binary was compiled for; Entrypoint alone marks whether it is entrypoint-specific
	ShaderModelMaj uint8
	ShaderModelMin uint8
	Entrypoint     string // empty if not tied to one entrypoint
	ExtensionsMask uint32
	Uniforms       []UniformPair
}

// SHBinaryInfo is one compiled shader binary, possibly carrying blobs for
// multiple BinaryTypes (SPIR-V, DXIL, ...).
type SHBinaryInfo struct {
	Identifier          BinaryIdentifier
	VendorMask          uint32
	HasShaderAnnotation bool
	Binaries            map[BinaryType][]byte
	Registers           []SHRegister
}

// SHRegister describes one resource binding referenced by a binary.
type SHRegister struct {
	Type            uint8
	ArrayDimIdx     uint16 // index into Header's array-dim table, or noIndex
	NameIdx         uint16
	BufferLayoutIdx uint16 // index into BufferLayouts, or noIndex
}

// SHInclude records a relative include path and its content fingerprint.
type SHInclude struct {
	Path   string
	CRC32C uint32
}

// GraphicsIO holds a graphics-stage entrypoint's input/output attribute
// tables (spec §4.8). When HasSemantics is set, InputSemantics and
// OutputSemantics list the distinct semantic-name indices (into
// SHFile.SemanticNames) referenced by the input/output slots; duplicates
// are collapsed on Write, so at most 15 of each may be named (the two
// counts share one byte, a nibble each).
type GraphicsIO struct {
	Inputs          []byte // per-slot attribute byte
	Outputs         []byte
	InputSemantics  []uint16
	OutputSemantics []uint16
	HasSemantics    bool
}

// ComputeLikeInfo holds dispatch dimensions for Compute/Mesh/Task/Workgraph
// entrypoints.
type ComputeLikeInfo struct {
	GroupX, GroupY, GroupZ uint16
	WaveSize               uint16 // four packed nibbles, each 0 or in [3,8] meaning 8..256
}

// RayTracingInfo holds the attribute/payload sizes for raytracing
// entrypoints; which fields apply depends on Stage.
type RayTracingInfo struct {
	AttributeSize uint8
	PayloadSize   uint8
}

// SHEntry is one named entrypoint bound to a pipeline stage.
type SHEntry struct {
	Stage      Stage
	Name       string
	BinaryIDs  []uint16
	Graphics   *GraphicsIO
	ComputeL   *ComputeLikeInfo
	RayTracing *RayTracingInfo
}

// Settings configures string encoding for the embedded string section.
type Settings struct {
	UTF8 bool
}

// SHFile is the in-memory model of an oiSH package.
type SHFile struct {
	Settings       Settings
	CompilerVer    uint32
	SourceCRC32C   uint32
	Binaries       []SHBinaryInfo
	Entries        []SHEntry
	Includes       []SHInclude
	UniformNames   []string
	UniformValues  []string
	RegisterNames  []string
	SemanticNames  []string
	ArrayDims      [][]uint32 // each element set has length in [1,32]
	BufferLayouts  [][]byte   // reflected SBFile blobs referenced by SHRegister.BufferLayoutIdx
}

const opWrite = "oish.Write"
const opRead = "oish.Read"

// fixedHeaderSize is the byte width of everything from the magic number
// through the last count field (registerNameCount), before the embedded
// string oiDL begins.
const fixedHeaderSize = 4 + 1 + 1 + 4 + 4 + 4 + 2 + 2 + 2 + 2 + 2 + 2 + 1 + 1

// Write serializes f into a freshly built, owned buffer.
func Write(f *SHFile) ([]byte, error) {
	if len(f.Entries) == 0 {
		return nil, oxerr.InvalidParameter(opWrite, "Entries", "at least one stage entry is required")
	}
	if err := validateBinaryAnnotations(f); err != nil {
		return nil, err
	}

	uniqueNames := dedupe(f.UniformNames)
	uniqueValues := dedupe(f.UniformValues)

	dataKind := oidl.ASCII
	if f.Settings.UTF8 {
		dataKind = oidl.UTF8
	}
	strDL := &oidl.DLFile{Settings: oidl.Settings{DataKind: dataKind, HideMagicNumber: true}}
	for _, s := range uniqueNames {
		strDL.Entries = append(strDL.Entries, []byte(s))
	}
	for _, s := range uniqueValues {
		strDL.Entries = append(strDL.Entries, []byte(s))
	}
	for _, s := range f.RegisterNames {
		strDL.Entries = append(strDL.Entries, []byte(s))
	}
	for _, inc := range f.Includes {
		strDL.Entries = append(strDL.Entries, []byte(inc.Path))
	}
	for _, e := range f.Entries {
		strDL.Entries = append(strDL.Entries, []byte(e.Name))
	}
	for _, s := range f.SemanticNames {
		strDL.Entries = append(strDL.Entries, []byte(s))
	}
	strBuf, err := oidl.Write(strDL)
	if err != nil {
		return nil, err
	}

	bufDL := &oidl.DLFile{Settings: oidl.Settings{DataKind: oidl.Data, HideMagicNumber: true}}
	bufDL.Entries = append(bufDL.Entries, f.BufferLayouts...)
	bufBuf, err := oidl.Write(bufDL)
	if err != nil {
		return nil, err
	}

	entrypointIdx := func(s string) uint16 {
		base := len(uniqueNames) + len(uniqueValues) + len(f.RegisterNames) + len(f.Includes)
		for i, e := range f.Entries {
			if e.Name == s {
				return uint16(base + i)
			}
		}
		return noIndex
	}

	var binaryFixed []byte
	var binaryVariable []byte
	var arrayDimBytes []byte
	var arrayCountWords []byte

	for _, dims := range f.ArrayDims {
		if len(dims) < 1 || len(dims) > 32 {
			return nil, oxerr.InvalidParameter(opWrite, "ArrayDims", "array dimension length must be in [1, 32]")
		}
		arrayDimBytes = append(arrayDimBytes, byte(len(dims)))
		for _, v := range dims {
			arrayCountWords = binary.LittleEndian.AppendUint32(arrayCountWords, v)
		}
	}

	for _, b := range f.Binaries {
		if len(b.Identifier.Entrypoint) > 0 && entrypointIdx(b.Identifier.Entrypoint) == noIndex {
			return nil, oxerr.InvalidParameter(opWrite, "Identifier.Entrypoint", "entrypoint not found among entries")
		}

		flagMask := bitmask.NewBits(int(binaryTypeCount))
		for bt := BinaryType(0); bt < binaryTypeCount; bt++ {
			if _, ok := b.Binaries[bt]; ok {
				if err := flagMask.Set(int(bt)); err != nil {
					return nil, err
				}
			}
		}
		binaryFlags := flagMask.ToBytes()[0]

		epIdx := noIndex
		if b.Identifier.Entrypoint != "" {
			epIdx = entrypointIdx(b.Identifier.Entrypoint)
		}

		annotation := byte(0)
		if b.HasShaderAnnotation {
			annotation = 1
		}

		var maxBlob uint64
		for bt := BinaryType(0); bt < binaryTypeCount; bt++ {
			if blob, ok := b.Binaries[bt]; ok && uint64(len(blob)) > maxBlob {
				maxBlob = uint64(len(blob))
			}
		}
		blobST := sizetype.Minimal(maxBlob)

		fixed := make([]byte, 20)
		fixed[0] = byte(b.Identifier.Stage)
		fixed[1] = b.Identifier.ShaderModelMaj
		fixed[2] = b.Identifier.ShaderModelMin
		binary.LittleEndian.PutUint16(fixed[3:5], epIdx)
		binary.LittleEndian.PutUint32(fixed[5:9], b.Identifier.ExtensionsMask)
		binary.LittleEndian.PutUint32(fixed[9:13], b.VendorMask)
		fixed[13] = annotation
		binary.LittleEndian.PutUint16(fixed[14:16], uint16(len(b.Identifier.Uniforms)))
		binary.LittleEndian.PutUint16(fixed[16:18], uint16(len(b.Registers)))
		fixed[18] = binaryFlags
		fixed[19] = byte(blobST)
		binaryFixed = append(binaryFixed, fixed...)

		for _, u := range b.Identifier.Uniforms {
			binaryVariable = binary.LittleEndian.AppendUint16(binaryVariable, u.NameIdx)
		}
		for _, u := range b.Identifier.Uniforms {
			binaryVariable = binary.LittleEndian.AppendUint16(binaryVariable, u.ValueIdx)
		}
		for _, r := range b.Registers {
			binaryVariable = append(binaryVariable, r.Type)
			binaryVariable = binary.LittleEndian.AppendUint16(binaryVariable, r.ArrayDimIdx)
			binaryVariable = binary.LittleEndian.AppendUint16(binaryVariable, r.NameIdx)
			binaryVariable = binary.LittleEndian.AppendUint16(binaryVariable, r.BufferLayoutIdx)
		}

		for bt := BinaryType(0); bt < binaryTypeCount; bt++ {
			blob, ok := b.Binaries[bt]
			if !ok {
				continue
			}
			binaryVariable, err = sizetype.AppendSize(binaryVariable, blobST, uint64(len(blob)))
			if err != nil {
				return nil, err
			}
			binaryVariable = append(binaryVariable, blob...)
		}
	}

	var entryFixed []byte
	var entryVariable []byte

	for _, e := range f.Entries {
		fixed := make([]byte, 5)
		fixed[0] = byte(e.Stage)
		binary.LittleEndian.PutUint16(fixed[1:3], entrypointIdx(e.Name))
		binary.LittleEndian.PutUint16(fixed[3:5], uint16(len(e.BinaryIDs)))
		entryFixed = append(entryFixed, fixed...)

		switch {
		case e.Stage.IsGraphics():
			if e.Graphics == nil {
				return nil, oxerr.InvalidParameter(opWrite, "Graphics", "graphics stage entry requires GraphicsIO")
			}
			g := e.Graphics
			if len(g.Inputs) > 255 || len(g.Outputs) > 255 {
				return nil, oxerr.InvalidParameter(opWrite, "Graphics", "input/output attribute count must fit in a byte")
			}
			inputFlags := byte(0)
			if g.HasSemantics {
				inputFlags |= 0x80
			}
			entryVariable = append(entryVariable, inputFlags, byte(len(g.Inputs)), byte(len(g.Outputs)))
			entryVariable = append(entryVariable, g.Inputs...)
			entryVariable = append(entryVariable, g.Outputs...)
			if g.HasSemantics {
				uniqueIn := dedupeU16(g.InputSemantics)
				uniqueOut := dedupeU16(g.OutputSemantics)
				if len(uniqueIn) > 15 || len(uniqueOut) > 15 {
					return nil, oxerr.InvalidParameter(opWrite, "Semantics", "unique semantic count must fit in a nibble")
				}
				semHeader := byte(len(uniqueIn)) | byte(len(uniqueOut))<<4
				entryVariable = append(entryVariable, semHeader)
				for _, idx := range uniqueIn {
					entryVariable = binary.LittleEndian.AppendUint16(entryVariable, idx)
				}
				for _, idx := range uniqueOut {
					entryVariable = binary.LittleEndian.AppendUint16(entryVariable, idx)
				}
			}
		case e.Stage.IsComputeLike():
			if e.ComputeL == nil {
				return nil, oxerr.InvalidParameter(opWrite, "ComputeL", "compute-like stage entry requires ComputeLikeInfo")
			}
			c := e.ComputeL
			if (e.Stage == Mesh || e.Stage == Task) && c.WaveSize != 0 {
				return nil, oxerr.InvalidParameter(opWrite, "WaveSize", "wave size must be zero for Mesh/Task stages")
			}
			for shift := 0; shift < 16; shift += 4 {
				nibble := (c.WaveSize >> shift) & 0xF
				if nibble != 0 && (nibble < 3 || nibble > 8) {
					return nil, oxerr.InvalidParameter(opWrite, "WaveSize", "each wave-size nibble must be 0 or in [3,8]")
				}
			}
			entryVariable = binary.LittleEndian.AppendUint16(entryVariable, c.GroupX)
			entryVariable = binary.LittleEndian.AppendUint16(entryVariable, c.GroupY)
			entryVariable = binary.LittleEndian.AppendUint16(entryVariable, c.GroupZ)
			entryVariable = binary.LittleEndian.AppendUint16(entryVariable, c.WaveSize)
		case e.Stage.IsRayTracing():
			switch e.Stage {
			case ClosestHit, AnyHit, Intersection:
				if e.RayTracing == nil {
					return nil, oxerr.InvalidParameter(opWrite, "RayTracing", "hit-group stage requires RayTracingInfo")
				}
				entryVariable = append(entryVariable, e.RayTracing.AttributeSize, e.RayTracing.PayloadSize)
			case Miss:
				if e.RayTracing == nil {
					return nil, oxerr.InvalidParameter(opWrite, "RayTracing", "miss stage requires RayTracingInfo")
				}
				entryVariable = append(entryVariable, e.RayTracing.PayloadSize)
			case RayGen, Callable:
				// no extra fields
			}
		default:
			return nil, oxerr.InvalidParameter(opWrite, "Stage", "unknown pipeline stage")
		}

		for _, id := range e.BinaryIDs {
			if int(id) >= len(f.Binaries) {
				return nil, oxerr.InvalidParameter(opWrite, "BinaryIDs", "binary id out of range")
			}
			entryVariable = binary.LittleEndian.AppendUint16(entryVariable, id)
		}
	}

	var includeCRCs []byte
	for _, inc := range f.Includes {
		includeCRCs = binary.LittleEndian.AppendUint32(includeCRCs, inc.CRC32C)
	}

	var out []byte
	out = binary.LittleEndian.AppendUint32(out, Magic)
	out = append(out, headerVersion, 0) // version, flags (reserved)
	out = binary.LittleEndian.AppendUint32(out, f.CompilerVer)
	out = binary.LittleEndian.AppendUint32(out, f.SourceCRC32C)

	hashFieldOffset := len(out)
	out = binary.LittleEndian.AppendUint32(out, 0) // content CRC32C placeholder

	out = binary.LittleEndian.AppendUint16(out, uint16(len(f.Binaries)))
	out = binary.LittleEndian.AppendUint16(out, uint16(len(f.Entries)))
	out = binary.LittleEndian.AppendUint16(out, uint16(len(uniqueNames)))
	out = binary.LittleEndian.AppendUint16(out, uint16(len(uniqueValues)))
	out = binary.LittleEndian.AppendUint16(out, uint16(len(f.SemanticNames)))
	out = binary.LittleEndian.AppendUint16(out, uint16(len(f.Includes)))
	out = append(out, byte(len(f.ArrayDims)))
	out = append(out, byte(len(f.RegisterNames)))

	out = append(out, strBuf...)
	out = append(out, bufBuf...)
	out = append(out, binaryFixed...)
	out = append(out, entryFixed...)
	out = append(out, includeCRCs...)
	out = append(out, arrayDimBytes...)
	out = append(out, arrayCountWords...)
	out = append(out, binaryVariable...)
	out = append(out, entryVariable...)

	contentHash := crc32c.Checksum(out[hashFieldOffset+4:])
	binary.LittleEndian.PutUint32(out[hashFieldOffset:hashFieldOffset+4], contentHash)

	return out, nil
}

// Read parses buf into an SHFile.
func Read(buf []byte) (*SHFile, error) {
	if len(buf) < fixedHeaderSize {
		return nil, oxerr.OutOfBounds(opRead, "buf", "buffer shorter than the fixed oiSH header")
	}

	c := sizetype.NewCursor(buf)

	magicBytes, err := c.Consume(4)
	if err != nil {
		return nil, err
	}
	if binary.LittleEndian.Uint32(magicBytes) != Magic {
		return nil, oxerr.InvalidParameter(opRead, "magic", "buffer does not start with the oiSH magic number")
	}

	verFlags, err := c.Consume(2)
	if err != nil {
		return nil, err
	}
	if verFlags[0] != headerVersion {
		return nil, oxerr.Unsupported(opRead, "version", "unsupported oiSH version")
	}

	compilerVerBytes, err := c.Consume(4)
	if err != nil {
		return nil, err
	}
	sourceCRCBytes, err := c.Consume(4)
	if err != nil {
		return nil, err
	}

	hashFieldOffset := c.Offset()
	hashBytes, err := c.Consume(4)
	if err != nil {
		return nil, err
	}
	storedHash := binary.LittleEndian.Uint32(hashBytes)
	actualHash := crc32c.Checksum(buf[hashFieldOffset+4:])
	if storedHash != actualHash {
		return nil, oxerr.Unauthorized(opRead, "hash", "header CRC32C does not match content")
	}

	counts, err := c.Consume(14)
	if err != nil {
		return nil, err
	}
	binaryCount := int(binary.LittleEndian.Uint16(counts[0:2]))
	entryCount := int(binary.LittleEndian.Uint16(counts[2:4]))
	namesCount := int(binary.LittleEndian.Uint16(counts[4:6]))
	valuesCount := int(binary.LittleEndian.Uint16(counts[6:8]))
	semanticCount := int(binary.LittleEndian.Uint16(counts[8:10]))
	includeCount := int(binary.LittleEndian.Uint16(counts[10:12]))
	arrayDimCount := int(counts[12])
	registerNameCount := int(counts[13])

	if entryCount == 0 {
		return nil, oxerr.InvalidParameter(opRead, "entryCount", "at least one stage entry is required")
	}

	strDL, strLen, err := oidl.Read(c.Bytes()[c.Offset():], nil, true)
	if err != nil {
		return nil, err
	}
	wantStrEntries := namesCount + valuesCount + registerNameCount + includeCount + entryCount + semanticCount
	if strDL.EntryCount() != wantStrEntries {
		return nil, oxerr.InvalidState(opRead, "strings", "string section entry count does not match header counts")
	}
	if err := c.Skip(strLen); err != nil {
		return nil, err
	}

	pos := 0
	next := func(n int) []string {
		out := make([]string, n)
		for i := 0; i < n; i++ {
			out[i] = strDL.String(pos + i)
		}
		pos += n
		return out
	}
	uniqueNames := next(namesCount)
	uniqueValues := next(valuesCount)
	registerNames := next(registerNameCount)
	includePaths := next(includeCount)
	entryNames := next(entryCount)
	semanticNames := next(semanticCount)

	bufDL, bufLen, err := oidl.Read(c.Bytes()[c.Offset():], nil, true)
	if err != nil {
		return nil, err
	}
	if err := c.Skip(bufLen); err != nil {
		return nil, err
	}
	bufferLayouts := make([][]byte, bufDL.EntryCount())
	for i := range bufferLayouts {
		bufferLayouts[i] = []byte(bufDL.String(i))
	}

	type binaryFixedRow struct {
		stage               Stage
		maj, min            uint8
		epIdx               uint16
		extensionsMask      uint32
		vendorMask          uint32
		hasShaderAnnotation bool
		uniformCount        int
		registerCount       int
		binaryFlags         byte
		blobST              sizetype.SizeType
	}
	binaryRows := make([]binaryFixedRow, binaryCount)
	for i := 0; i < binaryCount; i++ {
		row, err := c.Consume(20)
		if err != nil {
			return nil, err
		}
		binaryRows[i] = binaryFixedRow{
			stage:               Stage(row[0]),
			maj:                 row[1],
			min:                 row[2],
			epIdx:               binary.LittleEndian.Uint16(row[3:5]),
			extensionsMask:      binary.LittleEndian.Uint32(row[5:9]),
			vendorMask:          binary.LittleEndian.Uint32(row[9:13]),
			hasShaderAnnotation: row[13] != 0,
			uniformCount:        int(binary.LittleEndian.Uint16(row[14:16])),
			registerCount:       int(binary.LittleEndian.Uint16(row[16:18])),
			binaryFlags:         row[18],
			blobST:              sizetype.SizeType(row[19]),
		}
	}

	type entryFixedRow struct {
		stage      Stage
		nameIdx    uint16
		binaryRefs int
	}
	entryRows := make([]entryFixedRow, entryCount)
	for i := 0; i < entryCount; i++ {
		row, err := c.Consume(5)
		if err != nil {
			return nil, err
		}
		entryRows[i] = entryFixedRow{
			stage:      Stage(row[0]),
			nameIdx:    binary.LittleEndian.Uint16(row[1:3]),
			binaryRefs: int(binary.LittleEndian.Uint16(row[3:5])),
		}
	}

	includes := make([]SHInclude, includeCount)
	for i := 0; i < includeCount; i++ {
		crcBytes, err := c.Consume(4)
		if err != nil {
			return nil, err
		}
		includes[i] = SHInclude{Path: includePaths[i], CRC32C: binary.LittleEndian.Uint32(crcBytes)}
	}

	arrayLens := make([]int, arrayDimCount)
	for i := 0; i < arrayDimCount; i++ {
		b, err := c.Consume(1)
		if err != nil {
			return nil, err
		}
		if b[0] == 0 || b[0] > 32 {
			return nil, oxerr.InvalidState(opRead, "arrayDims", "array dimension length must be in [1, 32]")
		}
		arrayLens[i] = int(b[0])
	}
	arrayDims := make([][]uint32, arrayDimCount)
	for i, n := range arrayLens {
		dims := make([]uint32, n)
		for j := 0; j < n; j++ {
			word, err := c.Consume(4)
			if err != nil {
				return nil, err
			}
			dims[j] = binary.LittleEndian.Uint32(word)
		}
		arrayDims[i] = dims
	}

	entryBase := namesCount + valuesCount + registerNameCount + includeCount

	binaries := make([]SHBinaryInfo, binaryCount)
	for i, row := range binaryRows {
		entrypoint := ""
		if row.epIdx != noIndex {
			idx := int(row.epIdx) - entryBase
			if idx < 0 || idx >= entryCount {
				return nil, oxerr.InvalidState(opRead, "binaries", "binary entrypoint index out of range")
			}
			entrypoint = entryNames[idx]
		}

		uniforms := make([]UniformPair, row.uniformCount)
		for j := range uniforms {
			b, err := c.Consume(2)
			if err != nil {
				return nil, err
			}
			uniforms[j].NameIdx = binary.LittleEndian.Uint16(b)
		}
		for j := range uniforms {
			b, err := c.Consume(2)
			if err != nil {
				return nil, err
			}
			uniforms[j].ValueIdx = binary.LittleEndian.Uint16(b)
		}
		for _, u := range uniforms {
			if int(u.NameIdx) >= namesCount || int(u.ValueIdx) >= valuesCount {
				return nil, oxerr.InvalidState(opRead, "uniforms", "uniform name/value index out of range")
			}
		}

		registers := make([]SHRegister, row.registerCount)
		for j := range registers {
			typeByte, err := c.Consume(1)
			if err != nil {
				return nil, err
			}
			arrayDimIdx, err := c.Consume(2)
			if err != nil {
				return nil, err
			}
			nameIdx, err := c.Consume(2)
			if err != nil {
				return nil, err
			}
			bufferLayoutIdx, err := c.Consume(2)
			if err != nil {
				return nil, err
			}
			adi := binary.LittleEndian.Uint16(arrayDimIdx)
			if adi != noIndex && int(adi) >= arrayDimCount {
				return nil, oxerr.InvalidState(opRead, "registers", "array-dim index out of range")
			}
			bli := binary.LittleEndian.Uint16(bufferLayoutIdx)
			if bli != noIndex && int(bli) >= len(bufferLayouts) {
				return nil, oxerr.InvalidState(opRead, "registers", "buffer-layout index out of range")
			}
			ni := binary.LittleEndian.Uint16(nameIdx)
			if int(ni) >= registerNameCount {
				return nil, oxerr.InvalidState(opRead, "registers", "register name index out of range")
			}
			registers[j] = SHRegister{Type: typeByte[0], ArrayDimIdx: adi, NameIdx: ni, BufferLayoutIdx: bli}
		}

		binariesMap := make(map[BinaryType][]byte)
		flagMask := bitmask.FromBytes([]byte{row.binaryFlags})
		for bt := BinaryType(0); bt < binaryTypeCount; bt++ {
			set, err := flagMask.IsSet(int(bt))
			if err != nil {
				return nil, err
			}
			if !set {
				continue
			}
			length, err := c.ConsumeSize(row.blobST)
			if err != nil {
				return nil, err
			}
			blob, err := c.Consume(int(length))
			if err != nil {
				return nil, err
			}
			binariesMap[bt] = blob
		}

		binaries[i] = SHBinaryInfo{
			Identifier: BinaryIdentifier{
				Stage:          row.stage,
				ShaderModelMaj: row.maj,
				ShaderModelMin: row.min,
				Entrypoint:     entrypoint,
				ExtensionsMask: row.extensionsMask,
				Uniforms:       uniforms,
			},
			VendorMask:          row.vendorMask,
			HasShaderAnnotation: row.hasShaderAnnotation,
			Binaries:            binariesMap,
			Registers:           registers,
		}
	}

	entries := make([]SHEntry, entryCount)
	for i, row := range entryRows {
		e := SHEntry{Stage: row.stage, Name: entryNames[i]}

		switch {
		case row.stage.IsGraphics():
			hdr, err := c.Consume(3)
			if err != nil {
				return nil, err
			}
			hasSemantics := hdr[0]&0x80 != 0
			inputCount := int(hdr[1])
			outputCount := int(hdr[2])

			inputs, err := c.Consume(inputCount)
			if err != nil {
				return nil, err
			}
			outputs, err := c.Consume(outputCount)
			if err != nil {
				return nil, err
			}

			g := &GraphicsIO{
				Inputs:       append([]byte{}, inputs...),
				Outputs:      append([]byte{}, outputs...),
				HasSemantics: hasSemantics,
			}
			if hasSemantics {
				semHeader, err := c.Consume(1)
				if err != nil {
					return nil, err
				}
				uniqueInCount := int(semHeader[0] & 0xF)
				uniqueOutCount := int(semHeader[0] >> 4)

				inSem := make([]uint16, uniqueInCount)
				for j := range inSem {
					b, err := c.Consume(2)
					if err != nil {
						return nil, err
					}
					idx := binary.LittleEndian.Uint16(b)
					if int(idx) >= semanticCount {
						return nil, oxerr.InvalidState(opRead, "InputSemantics", "semantic index out of range")
					}
					inSem[j] = idx
				}
				outSem := make([]uint16, uniqueOutCount)
				for j := range outSem {
					b, err := c.Consume(2)
					if err != nil {
						return nil, err
					}
					idx := binary.LittleEndian.Uint16(b)
					if int(idx) >= semanticCount {
						return nil, oxerr.InvalidState(opRead, "OutputSemantics", "semantic index out of range")
					}
					outSem[j] = idx
				}
				g.InputSemantics = inSem
				g.OutputSemantics = outSem
			}
			e.Graphics = g
		case row.stage.IsComputeLike():
			words, err := c.Consume(8)
			if err != nil {
				return nil, err
			}
			e.ComputeL = &ComputeLikeInfo{
				GroupX:   binary.LittleEndian.Uint16(words[0:2]),
				GroupY:   binary.LittleEndian.Uint16(words[2:4]),
				GroupZ:   binary.LittleEndian.Uint16(words[4:6]),
				WaveSize: binary.LittleEndian.Uint16(words[6:8]),
			}
		case row.stage.IsRayTracing():
			rt := &RayTracingInfo{}
			switch row.stage {
			case ClosestHit, AnyHit, Intersection:
				b, err := c.Consume(2)
				if err != nil {
					return nil, err
				}
				rt.AttributeSize, rt.PayloadSize = b[0], b[1]
			case Miss:
				b, err := c.Consume(1)
				if err != nil {
					return nil, err
				}
				rt.PayloadSize = b[0]
			case RayGen, Callable:
				rt = nil
			}
			e.RayTracing = rt
		default:
			return nil, oxerr.InvalidState(opRead, "stage", "unknown pipeline stage")
		}

		ids := make([]uint16, row.binaryRefs)
		for j := range ids {
			b, err := c.Consume(2)
			if err != nil {
				return nil, err
			}
			id := binary.LittleEndian.Uint16(b)
			if int(id) >= binaryCount {
				return nil, oxerr.InvalidState(opRead, "binaryIds", "binary id out of range")
			}
			ids[j] = id
		}
		e.BinaryIDs = ids

		entries[i] = e
	}

	if c.Remaining() != 0 {
		return nil, oxerr.InvalidState(opRead, "trailer", "unexpected trailing data after oiSH payload")
	}

	dataKind := strDL.Settings.DataKind
	out := &SHFile{
		Settings:      Settings{UTF8: dataKind == oidl.UTF8},
		CompilerVer:   binary.LittleEndian.Uint32(compilerVerBytes),
		SourceCRC32C:  binary.LittleEndian.Uint32(sourceCRCBytes),
		Binaries:      binaries,
		Entries:       entries,
		Includes:      includes,
		UniformNames:  uniqueNames,
		UniformValues: uniqueValues,
		RegisterNames: registerNames,
		SemanticNames: semanticNames,
		ArrayDims:     arrayDims,
		BufferLayouts: bufferLayouts,
	}
	if err := validateBinaryAnnotations(out); err != nil {
		return nil, err
	}
	return out, nil
}

// validateBinaryAnnotations enforces the entrypoint/binary cross-reference
// invariant (spec §4.8): every binary marked HasShaderAnnotation must be
// referenced by at least one entrypoint, and every binary that is not must
// declare the single entrypoint that references it.
func validateBinaryAnnotations(f *SHFile) error {
	const op = "oish.validateBinaryAnnotations"

	referencedBy := make(map[int][]int, len(f.Binaries))
	for ei, e := range f.Entries {
		for _, bid := range e.BinaryIDs {
			referencedBy[int(bid)] = append(referencedBy[int(bid)], ei)
		}
	}

	for bi, b := range f.Binaries {
		refs := referencedBy[bi]
		if b.HasShaderAnnotation {
			if len(refs) == 0 {
				return oxerr.InvalidState(op, "HasShaderAnnotation", "annotated binary is not referenced by any entrypoint")
			}
			continue
		}

		if b.Identifier.Entrypoint == "" {
			return oxerr.InvalidState(op, "Identifier.Entrypoint", "non-annotated binary has no declared entrypoint")
		}
		declared := -1
		for ei, e := range f.Entries {
			if e.Name == b.Identifier.Entrypoint {
				declared = ei
				break
			}
		}
		if declared == -1 {
			return oxerr.InvalidState(op, "Identifier.Entrypoint", "declared entrypoint not found among entries")
		}
		found := false
		for _, ei := range refs {
			if ei == declared {
				found = true
				break
			}
		}
		if !found {
			return oxerr.InvalidState(op, "Identifier.Entrypoint", "declared entrypoint does not reference this binary")
		}
	}
	return nil
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	var out []string
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

func dedupeU16(in []uint16) []uint16 {
	seen := make(map[uint16]bool, len(in))
	var out []uint16
	for _, v := range in {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

// Combine merges b's binaries, entries, and includes into a, de-duplicating
// binaries by BinaryIdentifier equality (spec §4.8 Combine). Fails
// InvalidParameter on a duplicate entrypoint name with conflicting stage.
func Combine(a, b *SHFile) (*SHFile, error) {
	out := &SHFile{
		Settings:      a.Settings,
		CompilerVer:   a.CompilerVer,
		SourceCRC32C:  a.SourceCRC32C,
		UniformNames:  append([]string{}, a.UniformNames...),
		UniformValues: append([]string{}, a.UniformValues...),
		RegisterNames: append([]string{}, a.RegisterNames...),
		SemanticNames: append([]string{}, a.SemanticNames...),
		ArrayDims:     append([][]uint32{}, a.ArrayDims...),
		BufferLayouts: append([][]byte{}, a.BufferLayouts...),
		Binaries:      append([]SHBinaryInfo{}, a.Binaries...),
		Entries:       append([]SHEntry{}, a.Entries...),
		Includes:      append([]SHInclude{}, a.Includes...),
	}

	existingEntry := make(map[string]Stage, len(out.Entries))
	for _, e := range out.Entries {
		existingEntry[e.Name] = e.Stage
	}
	for _, e := range b.Entries {
		if st, ok := existingEntry[e.Name]; ok {
			if st != e.Stage {
				return nil, oxerr.InvalidParameter("oish.Combine", "Entries", "duplicate entrypoint name with conflicting stage")
			}
			continue
		}
		out.Entries = append(out.Entries, e)
		existingEntry[e.Name] = e.Stage
	}

	existingBinary := make(map[binaryKey]bool, len(out.Binaries))
	for _, bin := range out.Binaries {
		existingBinary[identifierKey(bin.Identifier)] = true
	}
	for _, bin := range b.Binaries {
		k := identifierKey(bin.Identifier)
		if existingBinary[k] {
			continue
		}
		out.Binaries = append(out.Binaries, bin)
		existingBinary[k] = true
	}

	existingInclude := make(map[string]bool, len(out.Includes))
	for _, inc := range out.Includes {
		existingInclude[inc.Path] = true
	}
	for _, inc := range b.Includes {
		if existingInclude[inc.Path] {
			continue
		}
		out.Includes = append(out.Includes, inc)
		existingInclude[inc.Path] = true
	}

	out.UniformNames = dedupe(append(out.UniformNames, b.UniformNames...))
	out.UniformValues = dedupe(append(out.UniformValues, b.UniformValues...))

	return out, nil
}

type binaryKey struct {
	stage      Stage
	maj, min   uint8
	entrypoint string
	ext        uint32
}

func identifierKey(id BinaryIdentifier) binaryKey {
	return binaryKey{id.Stage, id.ShaderModelMaj, id.ShaderModelMin, id.Entrypoint, id.ExtensionsMask}
}

// vendorMaskBits returns the set vendor bits as a bitmask.Mask, a
// convenience for callers building/inspecting VendorMask (spec §4.8).
func vendorMaskBits(vendorMask uint32) *bitmask.Mask {
	return bitmask.FromUint32(vendorMask)
}
