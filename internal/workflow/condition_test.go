package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ctx(jobStatus, env map[string]string) ConditionContext {
	return ConditionContext{
		JobStatus: func(name string) string {
			if v, ok := jobStatus[name]; ok {
				return v
			}
			return "unknown"
		},
		Env: func(name string) string { return env[name] },
	}
}

func TestParseCondition_SimpleJobStatus(t *testing.T) {
	cond, err := ParseCondition(`${{ jobs.build.status == 'success' }}`)
	require.NoError(t, err)
	assert.True(t, cond.Eval(ctx(map[string]string{"build": "success"}, nil)))
	assert.False(t, cond.Eval(ctx(map[string]string{"build": "failed"}, nil)))
}

func TestParseCondition_EnvRef(t *testing.T) {
	cond, err := ParseCondition(`${{ env.DEPLOY_TARGET == 'prod' }}`)
	require.NoError(t, err)
	assert.True(t, cond.Eval(ctx(nil, map[string]string{"DEPLOY_TARGET": "prod"})))
	assert.False(t, cond.Eval(ctx(nil, map[string]string{"DEPLOY_TARGET": "staging"})))
}

func TestParseCondition_NotEqual(t *testing.T) {
	cond, err := ParseCondition(`${{ jobs.build.status != 'failed' }}`)
	require.NoError(t, err)
	assert.True(t, cond.Eval(ctx(map[string]string{"build": "success"}, nil)))
	assert.False(t, cond.Eval(ctx(map[string]string{"build": "failed"}, nil)))
}

func TestParseCondition_AndCombinator(t *testing.T) {
	cond, err := ParseCondition(`${{ jobs.build.status == 'success' and env.RUN == 'true' }}`)
	require.NoError(t, err)
	assert.True(t, cond.Eval(ctx(map[string]string{"build": "success"}, map[string]string{"RUN": "true"})))
	assert.False(t, cond.Eval(ctx(map[string]string{"build": "success"}, map[string]string{"RUN": "false"})))
}

func TestParseCondition_OrCombinator(t *testing.T) {
	cond, err := ParseCondition(`${{ jobs.a.status == 'failed' or jobs.b.status == 'failed' }}`)
	require.NoError(t, err)
	assert.True(t, cond.Eval(ctx(map[string]string{"a": "success", "b": "failed"}, nil)))
	assert.False(t, cond.Eval(ctx(map[string]string{"a": "success", "b": "success"}, nil)))
}

func TestParseCondition_MissingJobResolvesUnknown(t *testing.T) {
	cond, err := ParseCondition(`${{ jobs.ghost.status == 'unknown' }}`)
	require.NoError(t, err)
	assert.True(t, cond.Eval(ctx(nil, nil)))
}

func TestParseCondition_MixedAndOrPrecedence(t *testing.T) {
	// `and` binds tighter than `or`: (a == success and b == success) or x == y.
	cond, err := ParseCondition(`${{ jobs.a.status == 'success' and jobs.b.status == 'success' or env.X == 'y' }}`)
	require.NoError(t, err)

	// Both and-operands true: whole expr true regardless of the or-operand.
	assert.True(t, cond.Eval(ctx(map[string]string{"a": "success", "b": "success"}, map[string]string{"X": "n"})))
	// and-group false, but or-operand true: whole expr still true.
	assert.True(t, cond.Eval(ctx(map[string]string{"a": "success", "b": "failed"}, map[string]string{"X": "y"})))
	// and-group false and or-operand false: whole expr false.
	assert.False(t, cond.Eval(ctx(map[string]string{"a": "success", "b": "failed"}, map[string]string{"X": "n"})))
}

func TestParseCondition_MissingDelimitersRejected(t *testing.T) {
	_, err := ParseCondition(`jobs.a.status == 'success'`)
	assert.Error(t, err)

	_, err = ParseCondition(`${{ jobs.a.status == 'success'`)
	assert.Error(t, err)
}

func TestParseCondition_MalformedRefRejected(t *testing.T) {
	_, err := ParseCondition(`${{ foo.bar == 'x' }}`)
	assert.Error(t, err)
}

func TestParseCondition_UnquotedLiteralRejected(t *testing.T) {
	_, err := ParseCondition(`${{ jobs.a.status == success }}`)
	assert.Error(t, err)
}
