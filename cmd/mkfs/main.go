// Command mkfs builds a bootable disk image: bootloader + kernel ELF +
// a formatted CFS filesystem populated from a skeleton directory.
// Grounded on biscuit's mkfs/mkfs.go (copydata/addfiles via
// filepath.WalkDir), generalized from biscuit's inode/log filesystem to
// the FAT+bitmap filesystem of spec.md §4.11. Adds parallel file
// ingestion (golang.org/x/sync/errgroup), image preallocation
// (golang.org/x/sys/unix), and an optional profiling summary
// (github.com/google/pprof/profile) — the host-tool fan-out this
// freestanding target cannot use but a build-time tool can.
package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime/pprof"
	"sort"
	"strconv"
	"strings"

	"github.com/google/pprof/profile"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"

	"cfskernel/src/ata"
	"cfskernel/src/blkdev"
	"cfskernel/src/fs"
	"cfskernel/src/ustr"
)

const (
	defaultPartSectors = 1 << 16 // 32 MiB image
	defaultDataSectors = 1 << 15 // 16 MiB reserved for file data
)

func main() {
	if len(os.Args) < 5 {
		fmt.Fprintln(os.Stderr, "usage: mkfs <bootimage> <kernel-elf> <output-image> <skel-dir> [--cpuprofile=file] [--top=n]")
		os.Exit(1)
	}

	bootimage := os.Args[1]
	kernelELF := os.Args[2]
	outImage := os.Args[3]
	skelDir := os.Args[4]

	var cpuprofile string
	var topN int
	for _, a := range os.Args[5:] {
		switch {
		case strings.HasPrefix(a, "--cpuprofile="):
			cpuprofile = strings.TrimPrefix(a, "--cpuprofile=")
		case strings.HasPrefix(a, "--top="):
			n, err := strconv.Atoi(strings.TrimPrefix(a, "--top="))
			if err != nil {
				fmt.Fprintf(os.Stderr, "bad --top value: %v\n", err)
				os.Exit(1)
			}
			topN = n
		}
	}
	if cpuprofile != "" {
		f, err := os.Create(cpuprofile)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		defer func() {
			pprof.StopCPUProfile()
			f.Close()
			if topN > 0 {
				if err := printTopFunctions(cpuprofile, topN, os.Stdout); err != nil {
					fmt.Fprintf(os.Stderr, "top functions: %v\n", err)
				}
			}
		}()
	}

	sectors := make([]ata.Sector, defaultPartSectors)
	dev := blkdev.NewMemFromSectors(sectors)

	fsys, err := fs.Format(dev, defaultPartSectors, defaultDataSectors)
	if !err.Ok() {
		fmt.Fprintf(os.Stderr, "format failed: %v\n", err)
		os.Exit(int(err))
	}

	if e := addFiles(fsys, skelDir); e != nil {
		fmt.Fprintln(os.Stderr, e)
		os.Exit(1)
	}

	if e := writeImage(outImage, bootimage, kernelELF, dev.Sectors()); e != nil {
		fmt.Fprintln(os.Stderr, e)
		os.Exit(1)
	}

	if e := writeRunConfig(outImage); e != nil {
		fmt.Fprintln(os.Stderr, e)
		os.Exit(1)
	}
}

// addFiles walks skelDir and ingests every regular file it finds into
// fsys as a flat-namespace CFS entry, fanning the per-file read+write
// work out across an errgroup the way a build tool (not the freestanding
// kernel itself) is free to.
func addFiles(fsys *fs.FS, skelDir string) error {
	var paths []string
	err := filepath.WalkDir(skelDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return fmt.Errorf("walking %q: %w", skelDir, err)
	}

	type ingested struct {
		name ustr.Name
		data []byte
	}
	results := make([]ingested, len(paths))

	var g errgroup.Group
	for i, p := range paths {
		i, p := i, p
		g.Go(func() error {
			data, err := os.ReadFile(p)
			if err != nil {
				return err
			}
			rel := strings.TrimPrefix(strings.TrimPrefix(p, skelDir), string(os.PathSeparator))
			name, ok := ustr.Normalize(rel)
			if !ok {
				return fmt.Errorf("bad file name %q", rel)
			}
			results[i] = ingested{name: name, data: data}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	// Create/write sequentially: the FAT and bitmap are shared mutable
	// state, same as every other filesystem operation in this repo.
	for _, r := range results {
		if _, err := fsys.Create(r.name); !err.Ok() {
			return fmt.Errorf("create %q: %v", r.name.String(), err)
		}
		if err := fsys.Write(r.name, r.data); !err.Ok() {
			return fmt.Errorf("write %q: %v", r.name.String(), err)
		}
	}
	return nil
}

// writeImage concatenates the bootloader, kernel ELF, and formatted
// filesystem sectors into one output image, preallocating the output
// file with unix.Fallocate the way a production mkfs avoids
// fragmentation on the host filesystem.
func writeImage(outPath, bootimage, kernelELF string, fsSectors []ata.Sector) error {
	out, err := os.Create(outPath)
	if err != nil {
		return err
	}
	defer out.Close()

	boot, err := os.ReadFile(bootimage)
	if err != nil {
		return err
	}
	kern, err := os.ReadFile(kernelELF)
	if err != nil {
		return err
	}

	total := len(boot) + len(kern) + len(fsSectors)*ata.SectorSize
	if err := unix.Fallocate(int(out.Fd()), 0, 0, int64(total)); err != nil {
		// Fallocate is an optimization; some filesystems (tmpfs, overlay)
		// reject it. Fall back to a plain write.
		_ = err
	}

	if _, err := out.Write(boot); err != nil {
		return err
	}
	if _, err := out.Write(kern); err != nil {
		return err
	}
	for _, sec := range fsSectors {
		if _, err := out.Write(sec[:]); err != nil {
			return err
		}
	}
	return nil
}

// printTopFunctions reopens the just-written pprof profile at path,
// parses it with google/pprof/profile, and prints the n hottest
// functions by flat cpu time — the analysis half of the profile
// workflow that runtime/pprof itself only produces raw samples for.
func printTopFunctions(path string, n int, w io.Writer) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	prof, err := profile.Parse(f)
	if err != nil {
		return fmt.Errorf("parsing profile: %w", err)
	}

	valueIdx := 0
	for i, st := range prof.SampleType {
		if st.Type == "cpu" {
			valueIdx = i
		}
	}

	totals := make(map[string]int64)
	for _, s := range prof.Sample {
		if len(s.Location) == 0 || len(s.Location[0].Line) == 0 {
			continue
		}
		fn := s.Location[0].Line[0].Function
		name := "?"
		if fn != nil {
			name = fn.Name
		}
		if valueIdx < len(s.Value) {
			totals[name] += s.Value[valueIdx]
		}
	}

	type entry struct {
		name  string
		value int64
	}
	entries := make([]entry, 0, len(totals))
	for name, v := range totals {
		entries = append(entries, entry{name, v})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].value > entries[j].value })
	if n > len(entries) {
		n = len(entries)
	}

	fmt.Fprintf(w, "top %d functions by flat cpu time:\n", n)
	for i := 0; i < n; i++ {
		fmt.Fprintf(w, "  %12d  %s\n", entries[i].value, entries[i].name)
	}
	return nil
}

// writeRunConfig emits a run.toml-shaped companion file for the
// out-of-scope external runner, per SPEC_FULL.md §6.1.
func writeRunConfig(imagePath string) error {
	f, err := os.Create(imagePath + ".run.toml")
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.WriteString(f, fmt.Sprintf(
		"[runner]\nimage = %q\n\n[machine]\narch = \"x86_64\"\nmemory_mb = 512\n\n[disks]\nboot = %q\n",
		imagePath, imagePath))
	return err
}
