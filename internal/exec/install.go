package exec

import (
	"fmt"
	"os"
	"path/filepath"

	"basiccore/internal/errors"
	"basiccore/internal/program"
)

// execInstall implements `INSTALL libname$` (spec §3 "Program",
// GLOSSARY "Library (INSTALL)"): loads a BASIC source file and merges
// its lines into the same line-number search space the main program
// uses, so its DEF FN/PROC bodies become callable exactly like the
// main program's own. Grounded on sentra/internal/module/module.go's
// ModuleLoader: resolve the name against a search path, read and
// parse it once, cache by resolved path so re-installing the same
// library is a no-op.
func (ex *Executor) execInstall() error {
	ev := ex.newEvaluator()
	v, err := ev.Eval()
	ex.adoptEvaluator(ev)
	if err != nil {
		return err
	}
	if !v.IsString() {
		return errors.New(errors.TypeMismatch, ex.lineNumber())
	}
	name := string(v.S)

	path, ferr := ex.findLibrary(name)
	if ferr != nil {
		return errors.Wrap(errors.NoSuchFnProc, ex.lineNumber(), ferr, "INSTALL "+name)
	}
	if ex.installedLibs[path] {
		return nil
	}

	src, rerr := os.ReadFile(path)
	if rerr != nil {
		return errors.Wrap(errors.NoSuchFnProc, ex.lineNumber(), rerr, "INSTALL "+name)
	}

	lib := program.New()
	if lerr := program.LoadSource(lib, string(src)); lerr != nil {
		return errors.Wrap(errors.TypeMismatch, ex.lineNumber(), lerr, "INSTALL "+name)
	}

	libName := filepath.Base(path)
	ex.Prog.InstallLibrary(lib, libName)
	ex.installedLibs[path] = true
	ex.scanLibraryDefs()
	return nil
}

// findLibrary resolves INSTALL's search order (spec SUPPLEMENTED
// FEATURES "INSTALL library search order"): the name as a path
// relative to the current directory first, then joined with @lib$.
func (ex *Executor) findLibrary(name string) (string, error) {
	if _, err := os.Stat(name); err == nil {
		return name, nil
	}
	if ex.sysVars.lib != "" {
		joined := filepath.Join(ex.sysVars.lib, name)
		if _, err := os.Stat(joined); err == nil {
			return joined, nil
		}
	}
	return "", fmt.Errorf("library not found: %s", name)
}
