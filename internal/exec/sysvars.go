package exec

import (
	"basiccore/internal/errors"
	"basiccore/internal/value"
)

// systemVars holds the host-provided @-prefixed environment strings
// of spec §6.4 (@cmd$, @dir$, @lib$, @usr$, @tmp$) plus @% (PRINT
// format word); other @ names such as @hwnd% are not stored here and
// read as No such variable. InstallEnvironment sets the strings; the
// executor only stores and answers reads/writes.
type systemVars struct {
	cmd, dir, lib, usr, tmp string
	percent                 int64 // @%  print-format word
}

// InstallEnvironment sets the host-provided @cmd$/@dir$/@lib$/@usr$/@tmp$
// values (spec §6.4).
func (ex *Executor) InstallEnvironment(cmd, dir, lib, usr, tmp string) {
	ex.sysVars.cmd, ex.sysVars.dir, ex.sysVars.lib, ex.sysVars.usr, ex.sysVars.tmp = cmd, dir, lib, usr, tmp
}

func (ex *Executor) resolveSystemVar(name string) (value.Value, error) {
	switch name {
	case "@%":
		return value.Int(ex.sysVars.percent), nil
	case "@cmd$":
		return value.Str(ex.sysVars.cmd), nil
	case "@dir$":
		return value.Str(ex.sysVars.dir), nil
	case "@lib$":
		return value.Str(ex.sysVars.lib), nil
	case "@usr$":
		return value.Str(ex.sysVars.usr), nil
	case "@tmp$":
		return value.Str(ex.sysVars.tmp), nil
	default:
		return value.Value{}, errors.New(errors.NoSuchVariable, ex.lineNumber())
	}
}

func (ex *Executor) setSystemVar(name string, v value.Value) error {
	switch name {
	case "@%":
		iv, err := v.AsInt(ex.lineNumber())
		if err != nil {
			return err
		}
		ex.sysVars.percent = iv
		return nil
	case "@cmd$", "@dir$", "@lib$", "@usr$", "@tmp$":
		return errors.New(errors.TypeMismatch, ex.lineNumber()) // host-readonly environment strings
	default:
		return errors.New(errors.NoSuchVariable, ex.lineNumber())
	}
}

// PrintFormat decomposes @% into (width, decimals, mode) per spec
// SUPPLEMENTED FEATURES: mode 0 = G general, 1 = fixed E, 2 = fixed F.
func (ex *Executor) PrintFormat() (width, decimals, mode int) {
	w := ex.sysVars.percent
	mode = int((w >> 16) & 0xFF)
	decimals = int((w >> 8) & 0xFF)
	width = int(w & 0xFF)
	return
}
