// Command kdump prints a kernel ELF image's file header, its section
// table, and a short disassembly of the bytes at the entry point, so a
// developer can sanity-check a freshly linked kernel before handing it
// to mkfs/chentry and booting it. Grounded on biscuit's own use of
// debug/elf in kernel/chentry.go, extended with the two teacher
// dependencies that chentry never exercised: golang.org/x/arch/x86/x86asm
// for the disassembly and github.com/ianlancetaylor/demangle for any
// legacy C++ symbol names that survive in the symbol table.
package main

import (
	"debug/elf"
	"fmt"
	"os"
	"strings"

	"github.com/ianlancetaylor/demangle"
	"golang.org/x/arch/x86/x86asm"
)

const disasmBytes = 64

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintf(os.Stderr, "usage: %s <kernel-elf>\n", os.Args[0])
		os.Exit(1)
	}

	f, err := elf.Open(os.Args[1])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer f.Close()

	printHeader(f)
	printSections(f)
	printSymbols(f)
	if err := printDisasm(f); err != nil {
		fmt.Fprintf(os.Stderr, "disassembly: %v\n", err)
	}
}

func printHeader(f *elf.File) {
	fmt.Printf("class:   %s\n", f.Class)
	fmt.Printf("data:    %s\n", f.Data)
	fmt.Printf("machine: %s\n", f.Machine)
	fmt.Printf("type:    %s\n", f.Type)
	fmt.Printf("entry:   0x%x\n", f.Entry)
}

func printSections(f *elf.File) {
	fmt.Println("\nsections:")
	for _, s := range f.Sections {
		fmt.Printf("  %-20s addr=0x%08x size=0x%06x flags=%s\n", s.Name, s.Addr, s.Size, s.Flags)
	}
}

// printSymbols lists the symbol table, demangling any name that looks
// like a mangled C++ identifier (surviving cross-compiled legacy object
// code is the case this actually matters for).
func printSymbols(f *elf.File) {
	syms, err := f.Symbols()
	if err != nil {
		return
	}
	fmt.Println("\nsymbols:")
	for _, s := range syms {
		name := s.Name
		if strings.HasPrefix(name, "_Z") {
			if demangled, err := demangle.ToString(name, demangle.NoParams); err == nil {
				name = demangled
			}
		}
		fmt.Printf("  0x%08x %-8d %s\n", s.Value, s.Size, name)
	}
}

// printDisasm finds the section containing f.Entry and disassembles the
// first disasmBytes bytes at the entry point.
func printDisasm(f *elf.File) error {
	var text []byte
	var base uint64
	for _, s := range f.Sections {
		if f.Entry >= s.Addr && f.Entry < s.Addr+s.Size && s.Type == elf.SHT_PROGBITS {
			data, err := s.Data()
			if err != nil {
				return err
			}
			text = data
			base = s.Addr
			break
		}
	}
	if text == nil {
		return fmt.Errorf("entry point 0x%x not found in any loaded section", f.Entry)
	}

	off := f.Entry - base
	end := off + disasmBytes
	if end > uint64(len(text)) {
		end = uint64(len(text))
	}
	code := text[off:end]

	fmt.Println("\ndisassembly at entry:")
	pc := f.Entry
	for len(code) > 0 {
		inst, err := x86asm.Decode(code, 64)
		if err != nil {
			fmt.Printf("  0x%08x (bad instruction: %v)\n", pc, err)
			break
		}
		fmt.Printf("  0x%08x  %s\n", pc, x86asm.GNUSyntax(inst, pc, nil))
		code = code[inst.Len:]
		pc += uint64(inst.Len)
	}
	return nil
}
