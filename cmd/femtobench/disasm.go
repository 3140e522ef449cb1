package main

import (
	"fmt"
	"strings"

	"github.com/colorfulnotion/femtobench/clock"
	"github.com/colorfulnotion/femtobench/ebpf/program"
	"github.com/colorfulnotion/femtobench/ebpf/recompiler"
	"github.com/colorfulnotion/femtobench/helpers"
	"github.com/colorfulnotion/femtobench/programs"
	"github.com/spf13/cobra"
	"github.com/xlab/treeprint"
)

func newDisasmCmd() *cobra.Command {
	var (
		image imageFlags
		jit   bool
	)
	cmd := &cobra.Command{
		Use:   "disasm",
		Short: "Print a program's sections and instructions as a tree",
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, format, name, err := image.load(program.FormatFemto)
			if err != nil {
				return err
			}
			p, err := program.Parse(raw, format, image.programName)
			if err != nil {
				return err
			}
			tree, err := programTree(name, p, jit)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tree.String())
			return nil
		},
	}
	image.register(cmd)
	cmd.Flags().BoolVar(&jit, "jit", false, "also show the x86-64 code the recompiler emits")
	return cmd
}

func programTree(name string, p *program.Program, jit bool) (treeprint.Tree, error) {
	tree := treeprint.NewWithRoot(fmt.Sprintf("%s (%s)", name, p.Format))
	if h := p.Header; h != nil {
		hdr := tree.AddBranch("header")
		hdr.AddNode(fmt.Sprintf("version %d", h.Version))
		hdr.AddNode(fmt.Sprintf("flags %#x", h.Flags))
		hdr.AddNode(fmt.Sprintf("functions %d", h.Functions))
	}
	if len(p.Data) > 0 {
		tree.AddMetaNode(len(p.Data), "data")
	}
	if len(p.Rodata) > 0 {
		tree.AddMetaNode(len(p.Rodata), fmt.Sprintf("rodata %q", p.Rodata))
	}
	text := tree.AddMetaBranch(len(p.Slots), "text")
	for _, l := range program.Disassemble(p) {
		text.AddNode(fmt.Sprintf("%04d: %s", l.Slot, l.Text))
	}
	if !jit {
		return tree, nil
	}
	code, err := recompiler.Compile(p, recompiler.Options{Helpers: placeholderHelpers()})
	if err != nil {
		return nil, err
	}
	x86 := tree.AddMetaBranch(len(code), "x86-64")
	for _, line := range strings.Split(strings.TrimRight(recompiler.Disassemble(code), "\n"), "\n") {
		x86.AddNode(line)
	}
	return tree, nil
}

// placeholderHelpers resolves every default helper to address 0; the code is
// only printed, never run.
func placeholderHelpers() map[uint32]uint64 {
	out := make(map[uint32]uint64)
	for _, e := range helpers.Defaults(clock.New()) {
		out[e.ID] = 0
	}
	return out
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the built-in workloads",
		Run: func(cmd *cobra.Command, args []string) {
			tree := treeprint.NewWithRoot("workloads")
			for _, name := range programs.Names() {
				w, _ := programs.Lookup(name)
				label := name
				if name == programs.Default {
					label += " (default)"
				}
				tree.AddMetaNode(label, w.Description)
			}
			fmt.Fprintln(cmd.OutOrStdout(), tree.String())
		},
	}
}
