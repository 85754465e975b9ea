package exec

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"basiccore/internal/program"
)

func TestInstallLoadsLibraryFromCurrentDirectory(t *testing.T) {
	dir := t.TempDir()
	libPath := filepath.Join(dir, "greet.bas")
	require.NoError(t, os.WriteFile(libPath, []byte("1000 DEF PROCGREET\n1010 PRINT \"HI\"\n1020 ENDPROC\n"), 0o644))

	prog := program.New()
	require.NoError(t, program.LoadSource(prog, "10 INSTALL \""+libPath+"\"\n20 PROCGREET\n30 END\n"))

	var out bytes.Buffer
	ex := New(prog, &out, strings.NewReader(""))
	require.NoError(t, ex.Run())
	assert.Equal(t, "HI\n", out.String())
}

func TestInstallSearchesLibPathWhenNotFoundLocally(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "greet.bas"), []byte("1000 DEF PROCGREET\n1010 PRINT \"HI\"\n1020 ENDPROC\n"), 0o644))

	prog := program.New()
	require.NoError(t, program.LoadSource(prog, "10 INSTALL \"greet.bas\"\n20 PROCGREET\n30 END\n"))

	var out bytes.Buffer
	ex := New(prog, &out, strings.NewReader(""))
	ex.InstallEnvironment("", "", dir, "", "")
	require.NoError(t, ex.Run())
	assert.Equal(t, "HI\n", out.String())
}

func TestInstallMissingLibraryErrors(t *testing.T) {
	prog := program.New()
	require.NoError(t, program.LoadSource(prog, "10 INSTALL \"nosuch.bas\"\n20 END\n"))

	var out bytes.Buffer
	ex := New(prog, &out, strings.NewReader(""))
	err := ex.Run()
	assert.Error(t, err)
}

func TestInstallFirstMatchWinsOverMainProgramDef(t *testing.T) {
	dir := t.TempDir()
	libPath := filepath.Join(dir, "greet.bas")
	require.NoError(t, os.WriteFile(libPath, []byte("1000 DEF PROCGREET\n1010 PRINT \"LIB\"\n1020 ENDPROC\n"), 0o644))

	prog := program.New()
	require.NoError(t, program.LoadSource(prog, ""+
		"10 INSTALL \""+libPath+"\"\n"+
		"20 PROCGREET\n"+
		"30 END\n"+
		"40 DEF PROCGREET\n"+
		"50 PRINT \"MAIN\"\n"+
		"60 ENDPROC\n"))

	var out bytes.Buffer
	ex := New(prog, &out, strings.NewReader(""))
	require.NoError(t, ex.Run())
	assert.Equal(t, "MAIN\n", out.String())
}

func TestInstallTwiceIsNoop(t *testing.T) {
	dir := t.TempDir()
	libPath := filepath.Join(dir, "greet.bas")
	require.NoError(t, os.WriteFile(libPath, []byte("1000 DEF PROCGREET\n1010 PRINT \"HI\"\n1020 ENDPROC\n"), 0o644))

	prog := program.New()
	require.NoError(t, program.LoadSource(prog, ""+
		"10 INSTALL \""+libPath+"\"\n"+
		"20 INSTALL \""+libPath+"\"\n"+
		"30 PROCGREET\n"+
		"40 END\n"))

	var out bytes.Buffer
	ex := New(prog, &out, strings.NewReader(""))
	require.NoError(t, ex.Run())
	assert.Equal(t, "HI\n", out.String())
}
