package semantic

import "fasterbasic/pkg/symtable"

// LayoutClass assigns field offsets and vtable slots to c, inheriting from
// c.Parent where present (spec §4.2's class layout paragraph). It must run
// after symtable.FixUpClassParents so c.Parent is live. A parent that has
// not been laid out yet is laid out first by a recursive call, so callers
// may visit classes in any order; a class already laid out is left as is.
func LayoutClass(c *symtable.Class, syms *symtable.SymbolTable) {
	if c.ObjectSize != 0 {
		return // already laid out, e.g. visited as another class's parent
	}

	offset := symtable.HeaderSize
	var inherited []symtable.ClassField
	var vtable []symtable.Method

	if c.Parent != nil {
		if c.Parent.ObjectSize == 0 {
			LayoutClass(c.Parent, syms)
		}
		offset = c.Parent.ObjectSize
		inherited = append(inherited, c.Parent.Fields...)
		vtable = append(vtable, c.Parent.Methods...)
	}

	for i := range inherited {
		inherited[i].Inherited = true
	}

	ownFields := c.Fields
	c.Fields = append(inherited, ownFields...)
	for i := range c.Fields {
		if c.Fields[i].Inherited {
			continue
		}
		size := c.Fields[i].Type.Size()
		offset = alignUp(offset, size)
		c.Fields[i].Offset = offset
		offset += size
	}
	c.ObjectSize = alignUp(offset, 8)

	ownMethods := make(map[string]*symtable.Method, len(c.Methods))
	for i := range c.Methods {
		ownMethods[symtable.Key(c.Methods[i].Name)] = &c.Methods[i]
	}

	final := make([]symtable.Method, 0, len(vtable)+len(c.Methods))
	for _, inheritedMethod := range vtable {
		if own, overridden := ownMethods[symtable.Key(inheritedMethod.Name)]; overridden {
			own.VTableSlot = inheritedMethod.VTableSlot
			own.IsOverride = true
			final = append(final, *own)
			delete(ownMethods, symtable.Key(inheritedMethod.Name))
			continue
		}
		final = append(final, inheritedMethod)
	}
	nextSlot := len(final)
	for i := range c.Methods {
		m := &c.Methods[i]
		if _, stillNew := ownMethods[symtable.Key(m.Name)]; !stillNew {
			continue // already placed as an override above
		}
		m.VTableSlot = nextSlot
		nextSlot++
		final = append(final, *m)
	}
	c.Methods = final
}

func alignUp(offset, size int) int {
	if size <= 1 {
		return offset
	}
	if rem := offset % size; rem != 0 {
		return offset + (size - rem)
	}
	return offset
}
