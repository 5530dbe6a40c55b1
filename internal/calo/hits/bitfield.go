package hits

import (
	"fmt"
	"strconv"
	"strings"
)

// BitField describes one named field packed into a 64-bit cell ID.
type BitField struct {
	Name   string
	Offset uint
	Width  uint
	Signed bool
}

func (f BitField) mask() uint64 {
	if f.Width >= 64 {
		return ^uint64(0)
	}
	return (uint64(1) << f.Width) - 1
}

// BitFieldCoder decodes and encodes named fields of a cell ID.
//
// The descriptor uses the readout ID-spec syntax: comma separated
// "name:width" or "name:offset:width" entries, where a negative width
// marks a signed (two's complement) field. Fields without an explicit
// offset follow the previous field.
//
//	system:8,sector:4,layer:6,x:32:-16,y:-16
type BitFieldCoder struct {
	fields []BitField
	index  map[string]int
}

// NewBitFieldCoder parses an ID-spec descriptor.
func NewBitFieldCoder(desc string) (*BitFieldCoder, error) {
	c := &BitFieldCoder{index: make(map[string]int)}
	var next uint

	for _, entry := range strings.Split(desc, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.Split(entry, ":")
		if len(parts) < 2 || len(parts) > 3 {
			return nil, fmt.Errorf("invalid bitfield entry %q", entry)
		}

		f := BitField{Name: strings.TrimSpace(parts[0]), Offset: next}
		if f.Name == "" {
			return nil, fmt.Errorf("invalid bitfield entry %q: empty name", entry)
		}
		if _, dup := c.index[f.Name]; dup {
			return nil, fmt.Errorf("duplicate bitfield %q", f.Name)
		}

		widthStr := parts[1]
		if len(parts) == 3 {
			off, err := strconv.ParseUint(strings.TrimSpace(parts[1]), 10, 8)
			if err != nil {
				return nil, fmt.Errorf("invalid offset in %q: %w", entry, err)
			}
			f.Offset = uint(off)
			widthStr = parts[2]
		}
		w, err := strconv.Atoi(strings.TrimSpace(widthStr))
		if err != nil {
			return nil, fmt.Errorf("invalid width in %q: %w", entry, err)
		}
		if w < 0 {
			f.Signed = true
			w = -w
		}
		if w == 0 || f.Offset+uint(w) > 64 {
			return nil, fmt.Errorf("bitfield %q does not fit in 64 bits", f.Name)
		}
		f.Width = uint(w)

		for _, other := range c.fields {
			if f.Offset < other.Offset+other.Width && other.Offset < f.Offset+f.Width {
				return nil, fmt.Errorf("bitfield %q overlaps %q", f.Name, other.Name)
			}
		}

		c.index[f.Name] = len(c.fields)
		c.fields = append(c.fields, f)
		next = f.Offset + f.Width
	}

	if len(c.fields) == 0 {
		return nil, fmt.Errorf("empty bitfield descriptor")
	}
	return c, nil
}

// Index returns the position of a named field, or an error if it is unknown.
func (c *BitFieldCoder) Index(name string) (int, error) {
	i, ok := c.index[name]
	if !ok {
		return 0, fmt.Errorf("unknown bitfield %q", name)
	}
	return i, nil
}

// Fields returns the parsed field layout.
func (c *BitFieldCoder) Fields() []BitField {
	out := make([]BitField, len(c.fields))
	copy(out, c.fields)
	return out
}

// GetAt decodes the field at index i.
func (c *BitFieldCoder) GetAt(id uint64, i int) int64 {
	f := c.fields[i]
	raw := (id >> f.Offset) & f.mask()
	if f.Signed && raw&(uint64(1)<<(f.Width-1)) != 0 {
		return int64(raw) - int64(uint64(1)<<f.Width)
	}
	return int64(raw)
}

// Get decodes a named field.
func (c *BitFieldCoder) Get(id uint64, name string) (int64, error) {
	i, err := c.Index(name)
	if err != nil {
		return 0, err
	}
	return c.GetAt(id, i), nil
}

// Encode packs field values into a cell ID. Missing fields are zero.
func (c *BitFieldCoder) Encode(values map[string]int64) (uint64, error) {
	var id uint64
	for name, v := range values {
		i, err := c.Index(name)
		if err != nil {
			return 0, err
		}
		f := c.fields[i]
		if f.Signed {
			lim := int64(1) << (f.Width - 1)
			if v < -lim || v >= lim {
				return 0, fmt.Errorf("value %d out of range for signed field %q", v, name)
			}
		} else if v < 0 || (f.Width < 64 && uint64(v) > f.mask()) {
			return 0, fmt.Errorf("value %d out of range for field %q", v, name)
		}
		id |= (uint64(v) & f.mask()) << f.Offset
	}
	return id, nil
}
