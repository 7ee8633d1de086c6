package extract

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/deeds-tracker/internal/common"
	"github.com/joseph-ayodele/deeds-tracker/internal/llm"
)

func testPrompts(t *testing.T) *llm.Prompts {
	t.Helper()
	p, err := llm.NewPrompts(common.ProfileConfig{
		Fields: []common.FieldSpec{
			{Name: "docNo", Type: common.FieldTypeString},
			{Name: "dates", Type: common.FieldTypeDates},
			{Name: "executants", Type: common.FieldTypeList},
			{Name: "marketValue", Type: common.FieldTypeNumber},
			{Name: "plotNo", Type: common.FieldTypeString},
		},
		Prompts: common.PromptSet{
			Clean:   "CLEAN {{.Text}}",
			Extract: "EXTRACT {{.Text}}",
		},
	})
	require.NoError(t, err)
	return p
}

func replying(reply string, err error) llm.GenerateFunc {
	return func(context.Context, string) (string, error) { return reply, err }
}

func newTestExtractor(t *testing.T, gen llm.Generator) *Extractor {
	t.Helper()
	e, err := NewExtractor(gen, testPrompts(t), nil)
	require.NoError(t, err)
	return e
}

const twoRecords = `[{"docNo":"1234/2013","executants":["A"]},{"docNo":"99/2014","marketValue":5000}]`

func TestExtract_FencedEqualsPlain(t *testing.T) {
	plain, err := newTestExtractor(t, replying(twoRecords, nil)).Extract(context.Background(), "x")
	require.NoError(t, err)

	fenced, err := newTestExtractor(t, replying("```json\n"+twoRecords+"\n```", nil)).Extract(context.Background(), "x")
	require.NoError(t, err)

	require.Len(t, plain.Records, 2)
	assert.Equal(t, plain, fenced)
	assert.Equal(t, "1234/2013", plain.Records[0].DocumentNumber())
	assert.Equal(t, "99/2014", plain.Records[1].DocumentNumber())
}

func TestExtract_TransactionsKey(t *testing.T) {
	b, err := newTestExtractor(t, replying(`{"transactions":`+twoRecords+`}`, nil)).Extract(context.Background(), "x")
	require.NoError(t, err)
	assert.Len(t, b.Records, 2)

	b, err = newTestExtractor(t, replying(`{"items":[]}`, nil)).Extract(context.Background(), "x")
	require.NoError(t, err)
	assert.Empty(t, b.Records)
}

func TestExtract_NonJSONYieldsNothing(t *testing.T) {
	b, err := newTestExtractor(t, replying("I found no transactions.", nil)).Extract(context.Background(), "x")
	require.Error(t, err)
	assert.Empty(t, b.Records)
}

func TestExtract_CallFailure(t *testing.T) {
	b, err := newTestExtractor(t, replying("", errors.New("upstream 503"))).Extract(context.Background(), "x")
	require.ErrorContains(t, err, "upstream 503")
	assert.Empty(t, b.Records)
}

func TestExtract_RepairsAndDrops(t *testing.T) {
	reply := `[
		{"docNo":{"n":"1"},"executants":"Solo Buyer","marketValue":["150000"]},
		"not an object",
		{"docNo":"2"}
	]`
	b, err := newTestExtractor(t, replying(reply, nil)).Extract(context.Background(), "x")
	require.NoError(t, err)

	require.Len(t, b.Records, 2)
	assert.Equal(t, 1, b.Sanitized)
	require.Len(t, b.Dropped, 1)
	assert.Equal(t, 1, b.Dropped[0].Index)

	first := b.Records[0]
	assert.Equal(t, `{"n":"1"}`, first.DocumentNumber())
	assert.Equal(t, []string{"Solo Buyer"}, first.List(KeyExecutants))
	assert.Equal(t, "2", b.Records[1].DocumentNumber())
}

func TestExtract_BooleanFieldIsCoerced(t *testing.T) {
	reply := `[{"docNo":"1/2013","plotNo":false,"executants":["A",true]}]`
	b, err := newTestExtractor(t, replying(reply, nil)).Extract(context.Background(), "x")
	require.NoError(t, err)

	require.Len(t, b.Records, 1)
	assert.Empty(t, b.Dropped)
	assert.Equal(t, 1, b.Sanitized)
	assert.Equal(t, "1/2013", b.Records[0].DocumentNumber())
	assert.Equal(t, "false", b.Records[0].Get("plotNo"))
	assert.Equal(t, []string{"A", "true"}, b.Records[0].List(KeyExecutants))
}

type rememberingModel struct {
	reply     string
	forgotten []string
}

func (m *rememberingModel) Generate(context.Context, string) (string, error) { return m.reply, nil }

func (m *rememberingModel) Forget(_ context.Context, prompt string) {
	m.forgotten = append(m.forgotten, prompt)
}

func TestExtract_UnusableReplyIsForgotten(t *testing.T) {
	m := &rememberingModel{reply: "sorry, I cannot help"}
	_, err := newTestExtractor(t, m).Extract(context.Background(), "chunk")
	require.Error(t, err)
	assert.Equal(t, []string{"EXTRACT chunk"}, m.forgotten)

	m = &rememberingModel{reply: twoRecords}
	_, err = newTestExtractor(t, m).Extract(context.Background(), "chunk")
	require.NoError(t, err)
	assert.Empty(t, m.forgotten)
}

func TestClean(t *testing.T) {
	var got string
	e := newTestExtractor(t, llm.GenerateFunc(func(_ context.Context, p string) (string, error) {
		got = p
		return "```\ncleaned text\n```", nil
	}))
	assert.True(t, e.CleanEnabled())

	out, err := e.Clean(context.Background(), "raw")
	require.NoError(t, err)
	assert.Equal(t, "CLEAN raw", got)
	assert.Equal(t, "cleaned text", out)

	e = newTestExtractor(t, replying("", errors.New("timeout")))
	out, err = e.Clean(context.Background(), "raw")
	require.Error(t, err)
	assert.Equal(t, "raw", out)

	e = newTestExtractor(t, replying("  ", nil))
	out, err = e.Clean(context.Background(), "raw")
	require.ErrorIs(t, err, llm.ErrEmptyReply)
	assert.Equal(t, "raw", out)
}

func TestRawTransactionDates(t *testing.T) {
	cases := []struct {
		name string
		in   any
		want Dates
	}{
		{"array3", []any{"01-Jan-2013", "02-Jan-2013", "03-Jan-2013"}, Dates{"01-Jan-2013", "02-Jan-2013", "03-Jan-2013"}},
		{"array2", []any{"01-Jan-2013", "03-Jan-2013"}, Dates{Execution: "01-Jan-2013", Registration: "03-Jan-2013"}},
		{"object", map[string]any{"executionDate": "07-Feb-2013", "registrationDate": "08-Feb-2013"}, Dates{Execution: "07-Feb-2013", Registration: "08-Feb-2013"}},
		{"slash list", "07-Feb-2013 / 07-Feb-2013 / 08-Feb-2013", Dates{"07-Feb-2013", "07-Feb-2013", "08-Feb-2013"}},
		{"slash date", "07/02/2013", Dates{Execution: "07/02/2013"}},
		{"nil", nil, Dates{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := NewRawTransaction(map[string]any{KeyDates: tc.in})
			assert.Equal(t, tc.want, r.Dates())
		})
	}
}

func TestRawTransactionAccessors(t *testing.T) {
	r := NewRawTransaction(map[string]any{
		"docNoAndYear":   "  ",
		"docNo":          " 1234/2013 ",
		KeyVillageStreet: "Mylapore, 4th Cross Street, East",
		KeySurveyNo:      "12/3",
		KeyPRNumber:      []any{"PR1", nil, " ", "PR2"},
	})
	assert.Equal(t, "1234/2013", r.DocumentNumber())
	village, street := r.VillageStreet()
	assert.Equal(t, "Mylapore", village)
	assert.Equal(t, "4th Cross Street, East", street)
	assert.Equal(t, []string{"12/3"}, r.List(KeySurveyNo))
	assert.Equal(t, []string{"PR1", "PR2"}, r.List(KeyPRNumber))
	assert.Empty(t, r.List(KeyClaimants))
}
