package analyzers

import (
	"bytes"
	"debug/elf"
	"fmt"
	"path"
	"strings"

	"pkgdepend/internal/types"
)

// Solaris-specific dynamic tags debug/elf does not name.
const (
	dtSunwAuxiliary elf.DynTag = 0x6000000d
	dtSunwFilter    elf.DynTag = 0x6000000f
	dtAuxiliary     elf.DynTag = 0x7ffffffd
	dtFilter        elf.DynTag = 0x7fffffff
)

var defaultLibraryPaths = []string{"/lib", "/usr/lib"}

type elfInfo struct {
	class   elf.Class
	machine elf.Machine
	needed  []string
	runPath []string
}

func readELF(localPath string) (elfInfo, error) {
	f, err := elf.Open(localPath)
	if err != nil {
		return elfInfo{}, err
	}
	defer f.Close()

	info := elfInfo{class: f.Class, machine: f.Machine}
	needed, err := f.DynString(elf.DT_NEEDED)
	if err != nil {
		return elfInfo{}, err
	}
	info.needed = append(info.needed, needed...)

	filters, err := dynStrings(f, dtFilter, dtSunwFilter)
	if err != nil {
		return elfInfo{}, err
	}
	info.needed = append(info.needed, filters...)

	// RUNPATH supersedes RPATH when both are present.
	runPath, err := f.DynString(elf.DT_RUNPATH)
	if err != nil {
		return elfInfo{}, err
	}
	if len(runPath) == 0 {
		runPath, err = f.DynString(elf.DT_RPATH)
		if err != nil {
			return elfInfo{}, err
		}
	}
	for _, entry := range runPath {
		for _, p := range strings.Split(entry, ":") {
			if p != "" {
				info.runPath = append(info.runPath, p)
			}
		}
	}
	return info, nil
}

// dynStrings reads string-valued dynamic entries for tags DynString
// refuses to decode.
func dynStrings(f *elf.File, tags ...elf.DynTag) ([]string, error) {
	dynamic := f.SectionByType(elf.SHT_DYNAMIC)
	if dynamic == nil {
		return nil, nil
	}
	if int(dynamic.Link) >= len(f.Sections) {
		return nil, fmt.Errorf("dynamic section links to missing string table %d", dynamic.Link)
	}
	strtab, err := f.Sections[dynamic.Link].Data()
	if err != nil {
		return nil, err
	}
	var out []string
	for _, tag := range tags {
		offsets, err := f.DynValue(tag)
		if err != nil {
			return nil, err
		}
		for _, off := range offsets {
			if off >= uint64(len(strtab)) {
				return nil, fmt.Errorf("dynamic string offset %d out of range", off)
			}
			s := strtab[off:]
			if end := bytes.IndexByte(s, 0); end > -1 {
				s = s[:end]
			}
			out = append(out, string(s))
		}
	}
	return out, nil
}

func isKernelModule(installed string) bool {
	if strings.HasPrefix(installed, "kernel") || strings.HasPrefix(installed, "usr/kernel") {
		return true
	}
	parts := strings.Split(installed, "/")
	return len(parts) > 2 && parts[0] == "platform" && parts[2] == "kernel"
}

func kernel64Dir(machine elf.Machine) (string, bool) {
	switch machine {
	case elf.EM_X86_64, elf.EM_386:
		return "amd64", true
	case elf.EM_SPARCV9, elf.EM_SPARC, elf.EM_SPARC32PLUS:
		return "sparcv9", true
	default:
		return "", false
	}
}

// analyzeELF emits one dependency per NEEDED or FILTER entry, searching
// the binary's run path, the user run path and the default library
// directories for its class.
func analyzeELF(cfg Config, p Payload) ([]FileDependency, []*Problem) {
	installed := p.Action.Path()
	info, err := readELF(p.LocalPath)
	if err != nil {
		return nil, []*Problem{badElfFile(p.LocalPath, installed, err)}
	}
	tokens := cfg.Tokens(path.Join("/", path.Dir(installed)))

	rp := append([]string(nil), info.runPath...)
	kernel64 := ""
	if isKernelModule(installed) {
		if len(rp) > 0 {
			return nil, []*Problem{badElfFile(p.LocalPath, installed,
				fmt.Errorf("run path set for kernel module: %s", strings.Join(rp, ":")))}
		}
		if strings.HasPrefix(installed, "platform") {
			rp = append(rp, "/platform/"+strings.Split(installed, "/")[1]+"/kernel")
		} else {
			for _, platform := range tokens["$PLATFORM"] {
				rp = append(rp, "/platform/"+platform+"/kernel")
			}
		}
		rp = append(rp, "/kernel", "/usr/kernel")
		if info.class == elf.ELFCLASS64 {
			dir, ok := kernel64Dir(info.machine)
			if !ok {
				return nil, []*Problem{badElfFile(p.LocalPath, installed,
					fmt.Errorf("unknown architecture %s", info.machine))}
			}
			kernel64 = dir
		}
	} else {
		for _, dir := range defaultLibraryPaths {
			if info.class == elf.ELFCLASS64 {
				dir += "/64"
			}
			if !contains(rp, dir) {
				rp = append(rp, dir)
			}
		}
	}

	var problems []*Problem
	merged, ok := MergeRunPaths(rp, cfg.RunPaths())
	if !ok {
		return nil, []*Problem{multipleDefaultRunpaths(p.LocalPath, installed, RunpathPlaceholder)}
	}
	expanded, unknown := ExpandTokens(merged, tokens)
	for _, u := range unknown {
		problems = append(problems, unsupportedToken(p.LocalPath, installed, u.RunPath, u.Token))
	}

	var deps []FileDependency
	for _, needed := range info.needed {
		dir, file := path.Split(needed)
		var dirs []string
		for _, root := range expanded {
			var full string
			if kernel64 != "" {
				full = path.Join(root, dir, kernel64, file)
			} else {
				full = path.Join(root, needed)
			}
			full = strings.TrimLeft(full, "/")
			if head := path.Dir(full); head != "." && head != "" {
				dirs = append(dirs, head)
			}
		}
		deps = append(deps, newFileDependency(types.DependencyKindELF, p.Action, []string{file}, dirs))
	}
	return deps, problems
}

func contains(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}
