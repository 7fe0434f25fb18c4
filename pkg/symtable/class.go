package symtable

import "fasterbasic/pkg/types"

// ClassField is one field of a class, with its byte offset and whether it
// was inherited from a parent class.
type ClassField struct {
	Name      string
	Type      types.Descriptor
	Offset    int
	Inherited bool
}

// Method is one method slot in a class's vtable.
type Method struct {
	Name         string
	MangledName  string
	VTableSlot   int
	IsOverride   bool
	OriginClass  string
	Params       []Param
	Return       types.Descriptor
}

// HeaderSize is the object-header size (vtable pointer + refcount/class id)
// every class-instance object carries before its own fields.
const HeaderSize = 16

// Class is a CLASS declaration. ParentName is recorded at collection time;
// Parent is resolved by a deferred fix-up pass after every class has been
// registered, avoiding the map-growth-invalidates-pointers hazard (spec §9).
type Class struct {
	Name       string
	ID         int
	ParentName string
	Parent     *Class // nil until the fix-up pass runs, or if there is no parent
	ObjectSize int
	Fields     []ClassField
	Methods    []Method

	HasConstructor    bool
	ConstructorName   string // mangled name
	ConstructorParams []Param

	HasDestructor  bool
	DestructorName string // mangled name
}

// MethodByName returns the method with the given name, searching this
// class's own method list (which already contains inherited+overridden
// entries after layout, per spec §4.2).
func (c *Class) MethodByName(name string) (*Method, bool) {
	for i := range c.Methods {
		if Key(c.Methods[i].Name) == Key(name) {
			return &c.Methods[i], true
		}
	}
	return nil, false
}

// FieldByName returns the field with the given name, including inherited
// fields.
func (c *Class) FieldByName(name string) (*ClassField, bool) {
	for i := range c.Fields {
		if c.Fields[i].Name == name {
			return &c.Fields[i], true
		}
	}
	return nil, false
}

func (st *SymbolTable) DeclareClass(c *Class) bool {
	key := Key(c.Name)
	if _, exists := st.classes[key]; exists {
		return false
	}
	st.classes[key] = c
	st.classOrd = append(st.classOrd, key)
	return true
}

func (st *SymbolTable) LookupClass(name string) (*Class, bool) {
	c, ok := st.classes[Key(name)]
	return c, ok
}

// FixUpClassParents resolves every class's ParentName to a live Parent
// pointer by uppercased-name lookup. It must run after every class has
// been registered via DeclareClass: resolving pointers during collection
// itself would be invalidated by subsequent map growth (spec §9).
func (st *SymbolTable) FixUpClassParents() []string {
	var unresolved []string
	for _, key := range st.classOrd {
		c := st.classes[key]
		if c.ParentName == "" {
			continue
		}
		parent, ok := st.classes[Key(c.ParentName)]
		if !ok {
			unresolved = append(unresolved, c.Name)
			continue
		}
		c.Parent = parent
	}
	return unresolved
}

// IsSubclass reports whether sub ultimately extends super, walking parent
// pointers set up by FixUpClassParents.
func (st *SymbolTable) IsSubclass(sub, super string) bool {
	c, ok := st.classes[Key(sub)]
	if !ok {
		return false
	}
	for c != nil {
		if Key(c.Name) == Key(super) {
			return true
		}
		c = c.Parent
	}
	return false
}

// ClassNames returns every registered class key in insertion order, which
// FixUpClassParents relies on for deterministic resolution.
func (st *SymbolTable) ClassNames() []string {
	out := make([]string, len(st.classOrd))
	copy(out, st.classOrd)
	return out
}
