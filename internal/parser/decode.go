package parser

import (
	"fmt"

	wztypes "github.com/ossyrian/wzdecode/internal/types"
	"github.com/ossyrian/wzdecode/internal/wz"
)

// Property tags in a property list.
const (
	tagNull     byte = 0x00
	tagUShort   byte = 0x02
	tagInt      byte = 0x03
	tagFloat    byte = 0x04
	tagDouble   byte = 0x05
	tagString   byte = 0x08
	tagExtended byte = 0x09
	tagUShortB  byte = 0x0B
	tagLong     byte = 0x14
)

// Extended property kinds.
const (
	kindProperty = "Property"
	kindCanvas   = "Canvas"
	kindVector   = "Shape2D#Vector2D"
	kindConvex   = "Shape2D#Convex2D"
	kindSound    = "Sound_DX8"
	kindUOL      = "UOL"
)

// readCount reads a compressed entry count and rejects counts that could not
// possibly fit in the rest of the buffer.
func (c *container) readCount() (int64, error) {
	n, err := c.cur.ReadCompressedInt()
	if err != nil {
		return 0, fmt.Errorf("failed to read entry count: %w", err)
	}
	if n < 0 || n > c.cur.Remaining() {
		return 0, fmt.Errorf("%w: %d entries at offset %d", wz.ErrEntryCount, n, c.cur.Position())
	}
	return n, nil
}

// decodePropertyList reads a property list into target. Indirect strings
// are resolved relative to base (the start of the enclosing image).
func (c *container) decodePropertyList(target int32, base int64) error {
	count, err := c.readCount()
	if err != nil {
		return err
	}

	for i := int64(0); i < count; i++ {
		name, err := c.cur.ReadStringBlock(base)
		if err != nil {
			return fmt.Errorf("failed to read name of entry %d in %q: %w", i, c.nodes[target].path, err)
		}

		tag, err := c.cur.ReadByte()
		if err != nil {
			return fmt.Errorf("failed to read type of %q: %w", name, err)
		}

		if err := c.decodeProperty(target, name, tag, base); err != nil {
			return err
		}
	}

	return nil
}

func (c *container) decodeProperty(target int32, name string, tag byte, base int64) error {
	cur := c.cur

	switch tag {
	case tagNull:
		c.appendChild(target, name, wztypes.PropertyNull)

	case tagUShort, tagUShortB:
		v, err := cur.ReadUint16()
		if err != nil {
			return fmt.Errorf("failed to read ushort %q: %w", name, err)
		}
		id := c.appendChild(target, name, wztypes.PropertyUShort)
		c.nodes[id].num = int64(v)

	case tagInt, tagLong:
		v, err := cur.ReadCompressedInt()
		if err != nil {
			return fmt.Errorf("failed to read int %q: %w", name, err)
		}
		typ := wztypes.PropertyInt
		if tag == tagLong {
			typ = wztypes.PropertyLong
		}
		id := c.appendChild(target, name, typ)
		c.nodes[id].num = v

	case tagFloat:
		marker, err := cur.ReadByte()
		if err != nil {
			return fmt.Errorf("failed to read float marker of %q: %w", name, err)
		}
		var v float32
		switch marker {
		case 0x80:
			if v, err = cur.ReadFloat32(); err != nil {
				return fmt.Errorf("failed to read float %q: %w", name, err)
			}
		case 0x00:
		default:
			return fmt.Errorf("%w: float marker 0x%02X for %q", wz.ErrMalformedProperty, marker, name)
		}
		id := c.appendChild(target, name, wztypes.PropertyFloat)
		c.nodes[id].real = float64(v)

	case tagDouble:
		v, err := cur.ReadFloat64()
		if err != nil {
			return fmt.Errorf("failed to read double %q: %w", name, err)
		}
		id := c.appendChild(target, name, wztypes.PropertyDouble)
		c.nodes[id].real = v

	case tagString:
		v, err := cur.ReadStringBlock(base)
		if err != nil {
			return fmt.Errorf("failed to read string %q: %w", name, err)
		}
		id := c.appendChild(target, name, wztypes.PropertyString)
		c.nodes[id].text = v

	case tagExtended:
		length, err := cur.ReadUint32()
		if err != nil {
			return fmt.Errorf("failed to read length of %q: %w", name, err)
		}
		end := cur.Position() + int64(length)
		if end > cur.Len() {
			return fmt.Errorf("%w: extended property %q ends at %d past buffer end %d",
				wz.ErrTruncatedInput, name, end, cur.Len())
		}

		if err := c.decodeExtended(target, name, base); err != nil {
			return err
		}

		// the stored length wins over whatever the record parse consumed
		if pos := cur.Position(); pos != end {
			c.logger.Debug("resynchronizing after extended property",
				"name", name,
				"position", pos,
				"expected_end", end,
			)
			if err := cur.Seek(end); err != nil {
				return err
			}
		}

	default:
		return fmt.Errorf("%w: 0x%02X for %q at offset %d",
			wz.ErrUnknownPropertyTag, tag, name, cur.Position()-1)
	}

	return nil
}

// decodeExtended reads the record kind and decodes the record under name.
func (c *container) decodeExtended(target int32, name string, base int64) error {
	cur := c.cur

	kind, err := cur.ReadStringBlock(base)
	if err != nil {
		return fmt.Errorf("failed to read kind of %q: %w", name, err)
	}

	switch kind {
	case kindProperty:
		id := c.appendChild(target, name, wztypes.PropertySub)
		if err := cur.Skip(2); err != nil {
			return err
		}
		return c.decodePropertyList(id, base)

	case kindCanvas:
		id := c.appendChild(target, name, wztypes.PropertyCanvas)
		if err := cur.Skip(1); err != nil {
			return err
		}
		hasProps, err := cur.ReadByte()
		if err != nil {
			return fmt.Errorf("failed to read canvas %q: %w", name, err)
		}
		if hasProps == 1 {
			if err := cur.Skip(2); err != nil {
				return err
			}
			if err := c.decodePropertyList(id, base); err != nil {
				return err
			}
		}
		canvas, err := parseCanvas(cur)
		if err != nil {
			return fmt.Errorf("failed to read canvas %q: %w", name, err)
		}
		c.nodes[id].canvas = canvas

	case kindVector:
		x, err := cur.ReadCompressedInt()
		if err != nil {
			return fmt.Errorf("failed to read vector %q: %w", name, err)
		}
		y, err := cur.ReadCompressedInt()
		if err != nil {
			return fmt.Errorf("failed to read vector %q: %w", name, err)
		}
		id := c.appendChild(target, name, wztypes.PropertyVector)
		c.nodes[id].vector = wztypes.Vector{X: int32(x), Y: int32(y)}

	case kindConvex:
		id := c.appendChild(target, name, wztypes.PropertyConvex)
		count, err := c.readCount()
		if err != nil {
			return fmt.Errorf("failed to read convex %q: %w", name, err)
		}
		for i := int64(0); i < count; i++ {
			if err := c.decodeExtended(id, name, base); err != nil {
				return err
			}
		}

	case kindSound:
		sound, err := parseSound(cur)
		if err != nil {
			return fmt.Errorf("failed to read sound %q: %w", name, err)
		}
		id := c.appendChild(target, name, wztypes.PropertySound)
		c.nodes[id].sound = sound

	case kindUOL:
		if err := cur.Skip(1); err != nil {
			return err
		}
		link, err := cur.ReadStringBlock(base)
		if err != nil {
			return fmt.Errorf("failed to read link of %q: %w", name, err)
		}
		id := c.appendChild(target, name, wztypes.PropertyUOL)
		c.nodes[id].text = link

	default:
		return fmt.Errorf("%w: %q for %q", wz.ErrUnknownExtendedProperty, kind, name)
	}

	return nil
}
