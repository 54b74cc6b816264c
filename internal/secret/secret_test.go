package secret

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvResolver(t *testing.T) {
	t.Setenv("CUENV_TEST_SECRET", "s3kr3t")
	v, err := EnvResolver{}.Resolve(context.Background(), "api_key", Spec{Source: "CUENV_TEST_SECRET"})
	require.NoError(t, err)
	assert.Equal(t, "s3kr3t", v)
}

func TestEnvResolverMissing(t *testing.T) {
	_, err := EnvResolver{}.Resolve(context.Background(), "api_key", Spec{Source: "CUENV_TEST_SECRET_UNSET"})
	assert.Error(t, err)
}

func TestExecResolver(t *testing.T) {
	v, err := ExecResolver{}.Resolve(context.Background(), "token", Spec{Source: "echo hunter2"})
	require.NoError(t, err)
	assert.Equal(t, "hunter2", v)
}

func TestRegistryUnknownResolver(t *testing.T) {
	r := NewRegistry()
	_, err := r.Get("does-not-exist")
	var notFound *ErrUnknownResolver
	assert.ErrorAs(t, err, &notFound)
}

func TestBatchResolvesAllInOrder(t *testing.T) {
	t.Setenv("CUENV_A", "alpha")
	t.Setenv("CUENV_B", "beta")
	r := NewRegistry()
	r.Register(EnvResolver{})

	b := NewBatch(r)
	results, err := b.Resolve(context.Background(), []Request{
		{FieldName: "a", Spec: Spec{ResolverID: "env", Source: "CUENV_A"}},
		{FieldName: "b", Spec: Spec{ResolverID: "env", Source: "CUENV_B"}},
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].FieldName)
	assert.Equal(t, "alpha", results[0].Value)
	assert.Equal(t, "b", results[1].FieldName)
	assert.Equal(t, "beta", results[1].Value)
}

func TestBatchPropagatesFirstError(t *testing.T) {
	r := NewRegistry()
	r.Register(EnvResolver{})
	b := NewBatch(r)

	_, err := b.Resolve(context.Background(), []Request{
		{FieldName: "missing", Spec: Spec{ResolverID: "env", Source: "CUENV_DEFINITELY_UNSET"}},
	})
	assert.Error(t, err)
}

func TestRedactionMasksRegisteredValues(t *testing.T) {
	ResetRedactionsForTest()
	Redact("topsecret")
	assert.Equal(t, "token=***; ok", Mask("token=topsecret; ok"))
	assert.Equal(t, "unaffected", Mask("unaffected"))
}

func TestRedactionPrefersLongestMatchFirst(t *testing.T) {
	ResetRedactionsForTest()
	Redact("ab")
	Redact("abcdef")
	assert.Equal(t, "***", Mask("abcdef"))
}

func TestFingerprintIsStableAndSaltSensitive(t *testing.T) {
	a := Fingerprint([]byte("salt1"), "env", "CUENV_A")
	b := Fingerprint([]byte("salt1"), "env", "CUENV_A")
	c := Fingerprint([]byte("salt2"), "env", "CUENV_A")
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestFingerprintWithRotationWindow(t *testing.T) {
	cur, prev := FingerprintWithRotation([]byte("new"), []byte("old"), "env", "CUENV_A")
	assert.NotEmpty(t, cur)
	assert.NotEmpty(t, prev)
	assert.NotEqual(t, cur, prev)

	curOnly, prevOnly := FingerprintWithRotation([]byte("new"), nil, "env", "CUENV_A")
	assert.NotEmpty(t, curOnly)
	assert.Empty(t, prevOnly)
}

func TestResolveInfisicalPathAbsolute(t *testing.T) {
	p, err := ResolveInfisicalPath("/defined/at", "/explicit/path", false, nil)
	require.NoError(t, err)
	assert.Equal(t, "/explicit/path", p)
}

func TestResolveInfisicalPathRelativeRequiresInherit(t *testing.T) {
	_, err := ResolveInfisicalPath("/defined/at", "child", false, nil)
	assert.Error(t, err)
}

func TestResolveInfisicalPathRelativeInherited(t *testing.T) {
	p, err := ResolveInfisicalPath("/defined/at", "child", true, nil)
	require.NoError(t, err)
	assert.Equal(t, "/defined/at/child", p)
}

func TestResolveInfisicalPathAppliesReplacementsInSortedOrder(t *testing.T) {
	p, err := ResolveInfisicalPath("/base", "/svc.name.prod", false, map[string]string{
		".": "-",
	})
	require.NoError(t, err)
	assert.Equal(t, "/svc-name-prod", p)
}

func TestResolveInfisicalPathTrimsTrailingSlash(t *testing.T) {
	p, err := ResolveInfisicalPath("/base", "/a/b/", false, nil)
	require.NoError(t, err)
	assert.Equal(t, "/a/b", p)
}
