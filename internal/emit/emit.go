// Package emit implements the Emit stage: serializing a resolved,
// lowered ProgramModel into per-class declaration/definition translation
// units, a program-wide dispatch table, and a manifest (spec.md §4.4/§6).
package emit

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bytecast/jtc/internal/abi"
	"github.com/bytecast/jtc/internal/jtcerr"
	"github.com/bytecast/jtc/internal/lower"
	"github.com/bytecast/jtc/internal/model"
)

// ManifestEntry is one line of the plain-text manifest: fully-qualified
// name, header filename, class-id.
type ManifestEntry struct {
	ClassName string
	Header    string
	ClassID   int
}

// Unit is a rendered source file pending atomic staging into OutputRoot.
type Unit struct {
	RelPath string
	Content string
}

// Emitter renders a resolved, lowered ProgramModel into translation units.
type Emitter struct {
	OutputRoot    string
	TempDir       string
	Symbols       abi.Symbols
	Bodies        map[string]map[string]*lower.TIRBody // class name -> method key -> body

	// EmitAssertions, when set, wraps virtual-dispatch call sites with a
	// C assert() guarding an invariant Resolve already proved statically
	// (a non-negative v-table slot) — defense against a translator bug,
	// never a behavior change on correctly-resolved input.
	EmitAssertions bool

	program *model.ProgramModel // set by EmitProgram; lets statement rendering resolve field/return types for boxing
}

func methodKey(m *model.MethodModel) string { return m.Name + m.Descriptor }

// EmitProgram renders every reachable class (or every class, if
// preserveUnreachable is set by the caller omitting filtering) into decl/def
// units plus the program table and manifest, then stages them all
// atomically into e.OutputRoot.
func (e *Emitter) EmitProgram(program *model.ProgramModel, preserveUnreachable bool) error {
	e.program = program
	names := make([]string, 0, len(program.Classes))
	for name, c := range program.Classes {
		if c.Origin == model.OriginRuntimeProvided {
			continue
		}
		if !preserveUnreachable && !c.Reachable {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	var units []Unit
	var manifest []ManifestEntry

	for _, name := range names {
		c := program.Classes[name]
		decl, err := e.renderDeclaration(c)
		if err != nil {
			return jtcerr.Wrap(jtcerr.VerifyError, name, fmt.Errorf("rendering declaration unit: %w", err))
		}
		def, err := e.renderDefinition(program, c)
		if err != nil {
			return jtcerr.Wrap(jtcerr.VerifyError, name, fmt.Errorf("rendering definition unit: %w", err))
		}
		header := headerFileName(c)
		units = append(units, Unit{RelPath: header, Content: decl})
		units = append(units, Unit{RelPath: sourceFileName(c), Content: def})
		manifest = append(manifest, ManifestEntry{ClassName: c.Name, Header: header, ClassID: c.ClassID})
	}

	units = append(units, Unit{RelPath: "program_table" + sourceExt, Content: e.renderProgramTable(program, names)})
	units = append(units, Unit{RelPath: "manifest.txt", Content: renderManifest(manifest)})

	return e.stage(units)
}

const (
	headerExt = ".h"
	sourceExt = ".cpp"
)

func headerFileName(c *model.ClassModel) string {
	return flattenClassName(c.Name) + headerExt
}

func sourceFileName(c *model.ClassModel) string {
	return flattenClassName(c.Name) + sourceExt
}

func flattenClassName(name string) string {
	return strings.ReplaceAll(strings.ReplaceAll(name, "/", "_"), "$", "_")
}

func renderManifest(entries []ManifestEntry) string {
	sort.Slice(entries, func(i, j int) bool { return entries[i].ClassName < entries[j].ClassName })
	var b strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&b, "%s\t%s\t%d\n", e.ClassName, e.Header, e.ClassID)
	}
	return b.String()
}

// stage writes every unit into a fresh staging directory under e.TempDir,
// fsyncs each file, then renames each file individually into e.OutputRoot,
// so no output file is ever seen half-written. A failure while writing the
// staged files leaves e.OutputRoot untouched; a failure part-way through
// the renames leaves the files already moved in place. The staging
// directory is removed on return either way.
func (e *Emitter) stage(units []Unit) error {
	stagingRoot, err := os.MkdirTemp(e.TempDir, "jtc-emit-*")
	if err != nil {
		return jtcerr.New(jtcerr.IOError, e.OutputRoot, fmt.Sprintf("creating staging directory: %v", err))
	}
	defer os.RemoveAll(stagingRoot)

	for _, u := range units {
		stagedPath := filepath.Join(stagingRoot, u.RelPath)
		if err := writeAndSync(stagedPath, u.Content); err != nil {
			return jtcerr.New(jtcerr.IOError, u.RelPath, err.Error())
		}
	}

	if err := os.MkdirAll(e.OutputRoot, 0o755); err != nil {
		return jtcerr.New(jtcerr.IOError, e.OutputRoot, err.Error())
	}
	for _, u := range units {
		src := filepath.Join(stagingRoot, u.RelPath)
		dst := filepath.Join(e.OutputRoot, u.RelPath)
		if err := os.Rename(src, dst); err != nil {
			return jtcerr.New(jtcerr.IOError, dst, fmt.Sprintf("renaming into place: %v", err))
		}
	}
	return nil
}

func writeAndSync(path, content string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if _, err := f.WriteString(content); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := fsync(f); err != nil {
		f.Close()
		return fmt.Errorf("fsyncing %s: %w", path, err)
	}
	return f.Close()
}
