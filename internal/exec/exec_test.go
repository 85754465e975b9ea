package exec

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"basiccore/internal/program"
)

func run(t *testing.T, src string) string {
	t.Helper()
	prog := program.New()
	require.NoError(t, program.LoadSource(prog, src))

	var out bytes.Buffer
	ex := New(prog, &out, strings.NewReader(""))
	err := ex.Run()
	require.NoError(t, err)
	return out.String()
}

func TestForLoopSum(t *testing.T) {
	out := run(t, "10 S%=0\n20 FOR I%=1 TO 10\n30 S%=S%+I%\n40 NEXT I%\n50 PRINT S%\n")
	assert.Equal(t, "55\n", out)
}

func TestForLoopZeroTripSkipsBody(t *testing.T) {
	out := run(t, "10 S%=0\n20 FOR I%=5 TO 1\n30 S%=S%+1\n40 NEXT I%\n50 PRINT S%\n")
	assert.Equal(t, "0\n", out)
}

func TestArrayDimAndSum(t *testing.T) {
	out := run(t, "10 DIM A%(3)\n20 A%(0)=1\n30 A%(1)=2\n40 A%(2)=3\n50 A%(3)=4\n60 PRINT SUM(A%())\n")
	assert.Equal(t, "10\n", out)
}

func TestStringConcatenation(t *testing.T) {
	out := run(t, `10 A$="HELLO"`+"\n"+`20 B$=" WORLD"`+"\n"+`30 PRINT A$+B$`+"\n")
	assert.Equal(t, "HELLO WORLD\n", out)
}

func TestOnErrorCatchesDivisionByZero(t *testing.T) {
	out := run(t, "10 ON ERROR PRINT \"CAUGHT\" : END\n20 X%=1/0\n30 PRINT \"UNREACHED\"\n")
	assert.Equal(t, "CAUGHT\n", out)
}

func TestRecursivePROC(t *testing.T) {
	out := run(t, ""+
		"10 N%=5\n"+
		"20 PROCCOUNTDOWN(N%)\n"+
		"30 END\n"+
		"40 DEF PROCCOUNTDOWN(K%)\n"+
		"50 PRINT K%\n"+
		"60 IF K%>0 THEN PROCCOUNTDOWN(K%-1)\n"+
		"70 ENDPROC\n")
	assert.Equal(t, "5\n4\n3\n2\n1\n0\n", out)
}

func TestProcReturnFormalPassByReference(t *testing.T) {
	out := run(t, ""+
		"10 X%=1\n"+
		"20 PROCINC(X%)\n"+
		"30 PRINT X%\n"+
		"40 END\n"+
		"50 DEF PROCINC(RETURN N%)\n"+
		"60 N%=N%+1\n"+
		"70 ENDPROC\n")
	assert.Equal(t, "2\n", out)
}

func TestFnReturnFormalPassByReference(t *testing.T) {
	out := run(t, ""+
		"10 A%=1\n"+
		"20 B%=FNINC(A%)\n"+
		"30 PRINT A%;B%\n"+
		"40 END\n"+
		"50 DEF FNINC(RETURN N%)\n"+
		"60 N%=N%+1\n"+
		"70 =N%\n")
	assert.Equal(t, "22\n", out)
}

func TestFnNonBareActualDoesNotWriteBack(t *testing.T) {
	out := run(t, ""+
		"10 A%=1\n"+
		"20 B%=FNINC(A%+0)\n"+
		"30 PRINT A%;B%\n"+
		"40 END\n"+
		"50 DEF FNINC(RETURN N%)\n"+
		"60 N%=N%+1\n"+
		"70 =N%\n")
	assert.Equal(t, "12\n", out)
}

func TestLocalShadowsThenRestoresOnExit(t *testing.T) {
	out := run(t, ""+
		"10 X%=100\n"+
		"20 PROCSETLOCAL\n"+
		"30 PRINT X%\n"+
		"40 END\n"+
		"50 DEF PROCSETLOCAL\n"+
		"60 LOCAL X%\n"+
		"70 X%=999\n"+
		"80 PRINT X%\n"+
		"90 ENDPROC\n")
	assert.Equal(t, "999\n100\n", out)
}

func TestPrivatePreservesValueAcrossReentry(t *testing.T) {
	out := run(t, ""+
		"10 PROCCOUNT\n"+
		"20 PROCCOUNT\n"+
		"30 PROCCOUNT\n"+
		"40 END\n"+
		"50 DEF PROCCOUNT\n"+
		"60 PRIVATE N%\n"+
		"70 N%=N%+1\n"+
		"80 PRINT N%\n"+
		"90 ENDPROC\n")
	assert.Equal(t, "1\n2\n3\n", out)
}

func TestRepeatUntil(t *testing.T) {
	out := run(t, ""+
		"10 N%=0\n"+
		"20 REPEAT\n"+
		"30 N%=N%+1\n"+
		"40 PRINT N%\n"+
		"50 UNTIL N%=3\n")
	assert.Equal(t, "1\n2\n3\n", out)
}

func TestWhileEndwhile(t *testing.T) {
	out := run(t, ""+
		"10 N%=0\n"+
		"20 WHILE N%<3\n"+
		"30 N%=N%+1\n"+
		"40 PRINT N%\n"+
		"50 ENDWHILE\n")
	assert.Equal(t, "1\n2\n3\n", out)
}

func TestWhileFalseAtEntrySkipsBody(t *testing.T) {
	out := run(t, ""+
		"10 N%=5\n"+
		"20 WHILE N%<3\n"+
		"30 PRINT \"UNREACHED\"\n"+
		"40 ENDWHILE\n"+
		"50 PRINT \"DONE\"\n")
	assert.Equal(t, "DONE\n", out)
}

func TestCaseOfWhenOtherwise(t *testing.T) {
	out := run(t, ""+
		"10 N%=2\n"+
		"20 CASE N% OF\n"+
		"30 WHEN 1: PRINT \"ONE\"\n"+
		"40 WHEN 2: PRINT \"TWO\"\n"+
		"50 OTHERWISE: PRINT \"OTHER\"\n"+
		"60 ENDCASE\n")
	assert.Equal(t, "TWO\n", out)
}

func TestCaseFallsToOtherwise(t *testing.T) {
	out := run(t, ""+
		"10 N%=9\n"+
		"20 CASE N% OF\n"+
		"30 WHEN 1: PRINT \"ONE\"\n"+
		"40 OTHERWISE: PRINT \"OTHER\"\n"+
		"50 ENDCASE\n")
	assert.Equal(t, "OTHER\n", out)
}

func TestReadDataRestore(t *testing.T) {
	out := run(t, ""+
		"10 READ A%\n"+
		"20 PRINT A%\n"+
		"30 DATA 1\n"+
		"40 DATA 2\n"+
		"50 RESTORE 40\n"+
		"60 READ A%\n"+
		"70 PRINT A%\n")
	assert.Equal(t, "1\n2\n", out)
}

func TestReadMixedNumericAndStringFields(t *testing.T) {
	out := run(t, ""+
		"10 READ A%,B$,C%\n"+
		"20 PRINT A%;B$;C%\n"+
		"30 DATA 1,HELLO,2\n")
	assert.Equal(t, "1HELLO2\n", out)
}

func TestMultiLineIfElseEndif(t *testing.T) {
	out := run(t, ""+
		"10 N%=1\n"+
		"20 IF N%=1 THEN\n"+
		"30   PRINT \"YES\"\n"+
		"40 ELSE\n"+
		"50   PRINT \"NO\"\n"+
		"60 ENDIF\n"+
		"70 PRINT \"DONE\"\n")
	assert.Equal(t, "YES\nDONE\n", out)
}

func TestMultiLineIfTakesElseBranch(t *testing.T) {
	out := run(t, ""+
		"10 N%=0\n"+
		"20 IF N%=1 THEN\n"+
		"30   PRINT \"YES\"\n"+
		"40 ELSE\n"+
		"50   PRINT \"NO\"\n"+
		"60 ENDIF\n"+
		"70 PRINT \"DONE\"\n")
	assert.Equal(t, "NO\nDONE\n", out)
}

func TestOnGotoDispatchesToNthTarget(t *testing.T) {
	out := run(t, ""+
		"10 N%=2\n"+
		"20 ON N% GOTO 100,200,300\n"+
		"30 PRINT \"ELSE\"\n"+
		"40 END\n"+
		"100 PRINT \"ONE\"\n"+
		"110 END\n"+
		"200 PRINT \"TWO\"\n"+
		"210 END\n"+
		"300 PRINT \"THREE\"\n"+
		"310 END\n")
	assert.Equal(t, "TWO\n", out)
}

func TestOnGosubReturnsToCaller(t *testing.T) {
	out := run(t, ""+
		"10 N%=1\n"+
		"20 ON N% GOSUB 100,200\n"+
		"30 PRINT \"BACK\"\n"+
		"40 END\n"+
		"100 PRINT \"SUB1\"\n"+
		"110 RETURN\n"+
		"200 PRINT \"SUB2\"\n"+
		"210 RETURN\n")
	assert.Equal(t, "SUB1\nBACK\n", out)
}

func TestExitForStopsLoopEarly(t *testing.T) {
	out := run(t, ""+
		"10 FOR I%=1 TO 10\n"+
		"20 IF I%=3 THEN EXIT FOR\n"+
		"30 PRINT I%\n"+
		"40 NEXT I%\n"+
		"50 PRINT \"DONE\"\n")
	assert.Equal(t, "1\n2\nDONE\n", out)
}
