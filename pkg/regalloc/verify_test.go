package regalloc

import (
	"errors"
	"testing"

	"github.com/raymyers/ralph-ra/pkg/abs"
	"github.com/raymyers/ralph-ra/pkg/target"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifyRejectsBrokenResults(t *testing.T) {
	tests := []struct {
		name   string
		tamper func(res *Result)
		want   string
	}{
		{
			name: "interfering temporaries share a register",
			tamper: func(res *Result) {
				res.Output.Assignments[1].Register = "%eax"
			},
			want: "interfere",
		},
		{
			name: "temporary neither assigned nor spilled",
			tamper: func(res *Result) {
				res.Output.Assignments[2] = nil
			},
			want: "neither",
		},
		{
			name: "temporary assigned and spilled",
			tamper: func(res *Result) {
				res.Output.Spillover.Add("%t3")
			},
			want: "both",
		},
		{
			name: "register outside the budget",
			tamper: func(res *Result) {
				res.Output.Assignments[2].Register = "%ecx"
			},
			want: "outside the budget",
		},
		{
			name: "liveness does not satisfy the equations",
			tamper: func(res *Result) {
				res.Liveness.LiveOut[0].Add("%t2")
			},
			want: "live-out",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			fn := parseFunction(t, sumSrc)
			res, err := Allocate(fn, target.X86_64, Options{Budget: 2})
			require.NoError(t, err)
			require.NoError(t, Verify(fn, res, target.X86_64))

			tc.tamper(res)
			err = Verify(fn, res, target.X86_64)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidAllocation), "got %v", err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestVerifyRejectsCollapsedRegisters(t *testing.T) {
	fn := parseFunction(t, fibSrc)
	res, err := Allocate(fn, target.X86_64, Options{Budget: 3})
	require.NoError(t, err)

	// pretend the accepted attempt had a single color
	res.K = 1
	for _, a := range res.Output.Assignments {
		if a != nil && a.Temp.IsTemp() {
			a.Register = "%eax"
		}
	}
	err = Verify(fn, res, target.X86_64)
	assert.True(t, errors.Is(err, ErrInvalidAllocation))
}

func TestVerifyAcceptsEveryDriverResult(t *testing.T) {
	sources := map[string]string{
		"sum":     sumSrc,
		"fib":     fibSrc,
		"loop":    loopSrc,
		"diamond": diamondSrc,
		"divide":  divideSrc,
		"copies":  copyChainSrc,
	}
	for name, src := range sources {
		for k := 0; k <= 4; k++ {
			for _, coalesce := range []bool{false, true} {
				fn := parseFunction(t, src)
				res, err := Allocate(fn, target.X86_64, Options{Budget: k, Coalesce: coalesce})
				require.NoError(t, err, name)
				if k == 0 {
					// a zero budget falls back to the target default
					assert.Equal(t, 15, res.K, name)
				}
				assert.NoError(t, Verify(fn, res, target.X86_64), "%s k=%d coalesce=%v", name, k, coalesce)
			}
		}
	}
}

func TestInterferesElsewhere(t *testing.T) {
	fn := parseFunction(t, `
%t1 <- 1
%t2 <- %t1
%t1 <- 5
%t3 <- %t1 + %t2
ret %t3
`)
	live := AnalyzeLiveness(fn)
	assert.True(t, interferesElsewhere(fn, live, abs.Name("%t2"), abs.Name("%t1"), 1))

	fn = parseFunction(t, copyChainSrc)
	live = AnalyzeLiveness(fn)
	assert.False(t, interferesElsewhere(fn, live, abs.Name("%t2"), abs.Name("%t1"), 1))
}

func TestVerifyRejectsSharedRegisterWithoutMove(t *testing.T) {
	// %t1 and %t2 are both live on entry, so no definition links them
	fn := parseFunction(t, `
%t3 <- %t1 + %t2
%t1 <- 1
%t2 <- 2
ret %t3
`)
	res := &Result{
		K:        2,
		Liveness: AnalyzeLiveness(fn),
		Output: &Output{
			Assignments: []*Assignment{
				{Temp: "%t3", Register: "%edx"},
				{Temp: "%t1", Register: "%eax"},
				{Temp: "%t2", Register: "%eax"},
				nil,
			},
			Spillover: NewNameSet(),
		},
	}
	err := Verify(fn, res, target.X86_64)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidAllocation))
	assert.Contains(t, err.Error(), "line 0: %t1 and %t2 are live together in %eax")

	res.Output.Assignments[2].Register = "%ecx"
	res.K = 3
	assert.NoError(t, Verify(fn, res, target.X86_64))
}

func TestVerifyAcceptsCopiesSharingARegister(t *testing.T) {
	fn := parseFunction(t, `
%t1 <- 1
%t2 <- %t1
%t3 <- %t1 + %t2
ret %t3
`)
	res := allocate(t, fn, Options{Budget: 2})
	require.True(t, res.Liveness.LiveOut[1].Contains("%t1"))
	require.True(t, res.Liveness.LiveOut[1].Contains("%t2"))
	regs := res.Output.Registers()
	assert.Equal(t, regs["%t1"], regs["%t2"])
}
