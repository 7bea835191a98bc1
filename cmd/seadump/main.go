/*
 * Copyright 2022 CloudWeGo Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/cloudwego/seacg/internal/buffer"
	"github.com/cloudwego/seacg/internal/codegen"
	"github.com/cloudwego/seacg/internal/sched"
	"github.com/cloudwego/seacg/internal/x64"
	"github.com/cloudwego/seacg/ir"
)

var version = "0.1.0"

// Dump flags
var (
	dTree     bool
	dSchedule bool
	dAsm      bool
	svgFile   string
	cfgFile   string
	verbosity string
)

func main() {
	os.Exit(run())
}

func run() int {
	rootCmd := newRootCmd(os.Stdout, os.Stderr)
	rootCmd.SetArgs(os.Args[1:])
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "seadump: %v\n", err)
		return 1
	}
	return 0
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "seadump",
		Short: "seadump compiles sample graphs and dumps every stage",
		Long: `seadump builds one of the built-in sample graphs, runs it through
use list generation, global code motion, register allocation and
machine code emission, and prints what each stage produced.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetOut(out)
	rootCmd.SetErr(errOut)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "YAML file with max_nodes, arena_block, code_size and features")
	rootCmd.PersistentFlags().StringVarP(&verbosity, "verbose", "v", "", "tlog topics to enable (dump,sched,regalloc,asm)")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List the sample graphs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range sampleNames() {
				fmt.Fprintf(out, "%-8s %s\n", name, samples[name].desc)
			}
			return nil
		},
	}

	dumpCmd := &cobra.Command{
		Use:   "dump <sample>",
		Short: "Compile a sample graph and dump the selected stages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if verbosity != "" {
				tlog.SetVerbosity(verbosity)
			}
			ctx := tlog.ContextWithSpan(context.Background(), tlog.Root())
			return doDump(ctx, args[0], out)
		},
	}
	dumpCmd.Flags().BoolVar(&dTree, "tree", false, "Dump the node graph")
	dumpCmd.Flags().BoolVar(&dSchedule, "schedule", false, "Dump the basic blocks after global code motion")
	dumpCmd.Flags().BoolVar(&dAsm, "asm", false, "Dump the disassembled machine code")
	dumpCmd.Flags().StringVar(&svgFile, "svg", "", "Draw the live ranges to an SVG file")

	rootCmd.AddCommand(listCmd, dumpCmd)
	return rootCmd
}

// result is everything one run of the pipeline produced.
type result struct {
	fn   *ir.Function
	syms *ir.SymbolTable
	s    *sched.Schedule
	ctx  *codegen.Context
	code []byte
}

func compile(ctx context.Context, name string, cfg *Config) (r *result, err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "seadump: compile", "sample", name)
	defer tr.Finish("err", &err)

	smp, ok := samples[name]
	if !ok {
		return nil, errors.New("unknown sample %q", name)
	}
	tg, err := cfg.Target()
	if err != nil {
		return nil, errors.Wrap(err, "config")
	}

	r = &result{
		fn:   ir.NewFunction(name, ir.Limits{MaxNodes: cfg.MaxNodes, ArenaBlock: cfg.ArenaBlock}),
		syms: ir.NewSymbolTable(),
	}
	if err = r.run(ctx, smp, tg, cfg.CodeSize); err != nil {
		return nil, errors.Wrap(err, "sample %v", name)
	}
	return r, nil
}

func (r *result) run(ctx context.Context, smp sample, tg *x64.Target, size int) (err error) {
	tr := tlog.SpanFromContext(ctx)
	defer ir.Recover(&err)

	smp.build(r.fn, r.syms)
	r.fn.GenerateUseLists()
	r.s = sched.Compute(r.fn)
	r.ctx = codegen.NewContext(r.fn, r.s, x64.Registers)
	codegen.Allocate(r.ctx)

	buf := buffer.New(size)
	x64.Emit(r.ctx, tg, buf)
	r.code = buf.Bytes()

	tr.Printw("compiled", "nodes", r.fn.Len(), "blocks", len(r.s.Blocks), "code", len(r.code), "frame", r.ctx.Frame.Size())
	return nil
}

func doDump(ctx context.Context, name string, out io.Writer) error {
	cfg, err := loadConfig(cfgFile)
	if err != nil {
		return err
	}
	r, err := compile(ctx, name, cfg)
	if err != nil {
		return err
	}

	/* the listing is the default */
	if !dTree && !dSchedule && !dAsm && svgFile == "" {
		dAsm = true
	}

	if dTree {
		fmt.Fprintf(out, "; graph of %s\n", name)
		if err := r.fn.Dump(out); err != nil {
			return err
		}
	}
	if dSchedule {
		fmt.Fprintf(out, "; schedule of %s\n", name)
		if err := r.s.Dump(out); err != nil {
			return err
		}
	}
	if dAsm {
		fmt.Fprintf(out, "; %s: %d bytes\n", name, len(r.code))
		fmt.Fprint(out, x64.Disassemble(r.code, 0))
	}
	if svgFile != "" {
		fp, err := os.Create(svgFile)
		if err != nil {
			return err
		}
		defer fp.Close()
		if err := codegen.DrawLiveRanges(fp, r.ctx); err != nil {
			return errors.Wrap(err, "draw %v", svgFile)
		}
	}
	return nil
}
