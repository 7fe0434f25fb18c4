package ir

import "strings"

// RuntimeSymbols is the full set of runtime ABI symbols generated code may
// call (spec §4.4 #4 / §6's JIT boundary naming convention): I/O, strings,
// math, arrays, SAMM memory management, classes, DATA, hashmaps, lists,
// terminal, workers, marshalling, and the timer.
var RuntimeSymbols = []string{
	"_basic_print_int", "_basic_print_double", "_basic_print_string", "_basic_print_newline",
	"_basic_input_line",
	"_string_concat", "_string_equals", "_string_compare", "_string_length", "_string_substring",
	"_string_from_int", "_string_from_double", "_string_to_int", "_string_to_double",
	"_math_power", "_math_floor", "_math_sqrt", "_math_sin", "_math_cos", "_math_rnd",
	"_array_element_addr", "_array_alloc", "_array_bounds_check",
	"_samm_init", "_samm_alloc", "_samm_release", "_samm_retain", "_samm_scope_enter", "_samm_scope_exit",
	"_object_alloc", "_object_vtable_lookup",
	"_data_read", "_data_restore",
	"_hashmap_new", "_hashmap_put", "_hashmap_get", "_hashmap_iter_next",
	"_list_new", "_list_append", "_list_get", "_list_iter_next",
	"_terminal_clear", "_terminal_locate", "_terminal_color",
	"_worker_spawn", "_worker_join",
	"_marshal_pack", "_marshal_unpack",
	"_timer_now", "_timer_sleep",
	"_gosub_push", "_gosub_pop",
}

// DeclareRuntime renders a comment block documenting every runtime symbol
// the emitted program may reference; the runtime library itself is
// statically linked into the compiler host (spec §4.7), so no true extern
// declaration syntax is needed in the textual IR — the comment exists so a
// reader of the .ir file can see the full ABI surface at a glance.
func DeclareRuntime() string {
	var sb strings.Builder
	sb.WriteString("# runtime library\n")
	for _, name := range RuntimeSymbols {
		sb.WriteString("# extern " + name + "\n")
	}
	return sb.String()
}

// CallVoid emits a call to a void-returning runtime or user function.
func (b *Builder) CallVoid(name string, args ...string) {
	b.Emit("call $%s(%s)", name, strings.Join(args, ", "))
}

// CallReturning emits a call returning typeLetter into a fresh temp and
// returns that temp's name.
func (b *Builder) CallReturning(typeLetter, name string, args ...string) string {
	dest := b.NewTemp()
	b.Emit("%s =%s call $%s(%s)", dest, typeLetter, name, strings.Join(args, ", "))
	return dest
}
