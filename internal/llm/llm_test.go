package llm

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/deeds-tracker/internal/common"
)

var testFields = []common.FieldSpec{
	{Name: "docNo", Type: common.FieldTypeString, Description: "Document number"},
	{Name: "dates", Type: common.FieldTypeDates, Description: "Dates"},
	{Name: "executants", Type: common.FieldTypeList, Description: "Buyers"},
	{Name: "marketValue", Type: common.FieldTypeNumber, Description: "Market value"},
}

func TestStripCodeFences(t *testing.T) {
	tests := map[string]string{
		"```json\n[1,2]\n```":          "[1,2]",
		"```\n{\"a\":1}\n```":          `{"a":1}`,
		"Sure!\n```json\n[]\n```\nBye": "[]",
		"  [3]  ":                      "[3]",
		"```json\n[4]":                 "[4]",
	}
	for in, want := range tests {
		assert.Equal(t, want, StripCodeFences(in), "input %q", in)
	}
}

func TestDecodeRecords(t *testing.T) {
	bare := `[{"docNo":"1234/2013","marketValue":150000},{"docNo":"99/2014"}]`

	plain, err := DecodeRecords(bare)
	require.NoError(t, err)
	require.Len(t, plain, 2)

	fenced, err := DecodeRecords("```json\n" + bare + "\n```")
	require.NoError(t, err)
	assert.Equal(t, plain, fenced)

	wrapped, err := DecodeRecords(`{"transactions":` + bare + `}`)
	require.NoError(t, err)
	assert.Equal(t, plain, wrapped)

	prose, err := DecodeRecords("Here you go: " + bare + " hope this helps")
	require.NoError(t, err)
	assert.Equal(t, plain, prose)

	rec := plain[0].(map[string]any)
	assert.Equal(t, json.Number("150000"), rec["marketValue"])
}

func TestDecodeRecords_EmptyCases(t *testing.T) {
	for _, reply := range []string{`{"result":[]}`, `{"transactions":"none"}`, `"just a string"`, `42`} {
		recs, err := DecodeRecords(reply)
		require.NoError(t, err, reply)
		assert.Empty(t, recs, reply)
	}

	recs, err := DecodeRecords("I could not find any transactions in this text.")
	require.Error(t, err)
	assert.Empty(t, recs)
}

func TestDecodeObject(t *testing.T) {
	m, err := DecodeObject("```json\n{\"buyer\":[\"A\"],\"seller\":[]}\n```")
	require.NoError(t, err)
	assert.Equal(t, []any{"A"}, m["buyer"])

	_, err = DecodeObject("[1]")
	require.Error(t, err)
}

func TestSchemaAndSanitize(t *testing.T) {
	v, err := CompileSchema(BuildRecordSchema(testFields))
	require.NoError(t, err)

	good := map[string]any{
		"docNo":       "1234/2013",
		"dates":       map[string]any{"executionDate": "07-Feb-2013"},
		"executants":  []any{"A", "B"},
		"marketValue": "ரூ. 1,50,000/-",
		"extra":       "kept",
	}
	require.NoError(t, v.Validate(good))

	bad := map[string]any{
		"docNo":       map[string]any{"number": "1234", "year": json.Number("2013")},
		"dates":       []any{[]any{"07-Feb-2013"}},
		"executants":  []any{map[string]any{"name": "A"}},
		"marketValue": []any{json.Number("150000"), "x"},
	}
	require.Error(t, v.Validate(bad))

	fixed, changed := SanitizeRecord(bad, testFields)
	require.NoError(t, v.Validate(fixed))
	assert.ElementsMatch(t, []string{"docNo", "dates", "executants", "marketValue"}, changed)
	assert.Equal(t, `{"number":"1234","year":2013}`, fixed["docNo"])
	assert.Equal(t, json.Number("150000"), fixed["marketValue"])
	assert.Equal(t, []any{"07-Feb-2013"}, fixed["dates"])

	// input untouched
	_, stillMap := bad["docNo"].(map[string]any)
	assert.True(t, stillMap)
}

func TestSanitize_BooleansAndPrune(t *testing.T) {
	v, err := CompileSchema(BuildRecordSchema(testFields))
	require.NoError(t, err)

	rec := map[string]any{"docNo": true, "executants": []any{"A", false}}
	require.Error(t, v.Validate(rec))
	fixed, changed := SanitizeRecord(rec, testFields)
	require.NoError(t, v.Validate(fixed))
	assert.ElementsMatch(t, []string{"docNo", "executants"}, changed)
	assert.Equal(t, "true", fixed["docNo"])
	assert.Equal(t, []any{"A", "false"}, fixed["executants"])

	broken := map[string]any{
		"docNo":       "1/2013",
		"marketValue": map[string]any{"amount": json.Number("5")},
	}
	pruned, removed := PruneInvalid(broken, testFields, v)
	assert.Equal(t, []string{"marketValue"}, removed)
	assert.Equal(t, map[string]any{"docNo": "1/2013"}, pruned)
	require.NoError(t, v.Validate(pruned))
	assert.Contains(t, broken, "marketValue")
}

func TestPrompts(t *testing.T) {
	p, err := NewPrompts(common.ProfileConfig{
		Fields: testFields,
		Prompts: common.PromptSet{
			Extract: "Fields:{{range .Fields}} {{.Name}}({{.Type}}){{end}}\n{{.Text}}",
			Value:   "value={{.Value}}",
		},
	})
	require.NoError(t, err)
	assert.False(t, p.HasClean())
	assert.True(t, p.HasValue())

	out, err := p.Extract("TEXT")
	require.NoError(t, err)
	assert.Equal(t, "Fields: docNo(string) dates(dates) executants(list) marketValue(number)\nTEXT", out)

	_, err = p.Clean("x")
	require.Error(t, err)

	_, err = NewPrompts(common.ProfileConfig{Prompts: common.PromptSet{Extract: "{{.Text"}})
	require.Error(t, err)
}

func TestBuiltinProfilesRender(t *testing.T) {
	cfg, err := common.Parse([]byte("database: {driver: sqlite, dsn: x}\nllm: {provider: ollama}\n"))
	require.NoError(t, err)
	for name, profile := range cfg.Pipeline.Profiles {
		p, err := NewPrompts(profile)
		require.NoError(t, err, name)

		out, err := p.Extract("RAW")
		require.NoError(t, err)
		assert.Contains(t, out, "RAW")
		assert.Contains(t, out, "considerationValue")

		out, err = p.Names("Thiru A and B", "Tmt C")
		require.NoError(t, err)
		assert.Contains(t, out, "Thiru A and B")

		_, err = CompileSchema(BuildRecordSchema(profile.Fields))
		require.NoError(t, err, name)
	}
}

type memStore struct {
	mu   sync.Mutex
	data map[string][]byte
	err  error
}

func (m *memStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	v, ok := m.data[key]
	if !ok {
		return nil, ErrCacheMiss
	}
	return v, nil
}

func (m *memStore) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.data[key] = value
	return nil
}

func (m *memStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	delete(m.data, key)
	return nil
}

func TestCachedGenerator_ForgetEvicts(t *testing.T) {
	calls := 0
	inner := GenerateFunc(func(context.Context, string) (string, error) {
		calls++
		return "not json", nil
	})
	store := &memStore{data: map[string][]byte{}}
	g := NewCachedGenerator(inner, store, "m", "", nil, nil)

	_, err := g.Generate(context.Background(), "p")
	require.NoError(t, err)
	require.Len(t, store.data, 1)

	Forget(context.Background(), g, "p")
	assert.Empty(t, store.data)

	_, err = g.Generate(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, 2, calls)

	// plain generators ignore it
	Forget(context.Background(), inner, "p")
}

func TestCachedGenerator(t *testing.T) {
	calls := 0
	inner := GenerateFunc(func(_ context.Context, prompt string) (string, error) {
		calls++
		return strings.ToUpper(prompt), nil
	})
	store := &memStore{data: map[string][]byte{}}
	counter := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "test_cache_total"}, []string{"result"})
	g := NewCachedGenerator(inner, store, "m1", "deeds:llm:", counter, nil)

	for range 3 {
		out, err := g.Generate(context.Background(), "abc")
		require.NoError(t, err)
		assert.Equal(t, "ABC", out)
	}
	assert.Equal(t, 1, calls)
	assert.Equal(t, 2.0, testutil.ToFloat64(counter.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(counter.WithLabelValues("miss")))
	for k := range store.data {
		assert.True(t, strings.HasPrefix(k, "deeds:llm:"))
	}

	// a different model never shares entries
	other := NewCachedGenerator(inner, store, "m2", "deeds:llm:", nil, nil)
	_, err := other.Generate(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestCachedGenerator_StoreDownFallsThrough(t *testing.T) {
	store := &memStore{data: map[string][]byte{}, err: errors.New("connection refused")}
	g := NewCachedGenerator(GenerateFunc(func(context.Context, string) (string, error) {
		return "ok", nil
	}), store, "m", "", nil, nil)

	out, err := g.Generate(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
}

func TestCachedGenerator_InnerErrorNotCached(t *testing.T) {
	store := &memStore{data: map[string][]byte{}}
	g := NewCachedGenerator(GenerateFunc(func(context.Context, string) (string, error) {
		return "", errors.New("rate limited")
	}), store, "m", "", nil, nil)

	_, err := g.Generate(context.Background(), "p")
	require.Error(t, err)
	assert.Empty(t, store.data)
}

func TestInstrumented(t *testing.T) {
	g := NewInstrumented(GenerateFunc(func(_ context.Context, p string) (string, error) {
		if p == "blank" {
			return "  ", nil
		}
		if p == "fail" {
			return "", errors.New("boom")
		}
		return "fine", nil
	}), "test", "instrumented-model", nil)

	out, err := g.Generate(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, "fine", out)

	_, err = g.Generate(context.Background(), "blank")
	require.ErrorIs(t, err, ErrEmptyReply)

	_, err = g.Generate(context.Background(), "fail")
	require.EqualError(t, err, "boom")
}
