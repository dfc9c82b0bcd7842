package judgepb

import (
	"testing"

	"google.golang.org/grpc/encoding"
	"gotest.tools/v3/assert"
)

func TestJSONCodecRegistered(t *testing.T) {
	c := encoding.GetCodec(codecName)
	assert.Assert(t, c != nil)
}

func TestJSONCodecRoundTrips(t *testing.T) {
	c := jsonCodec{}
	in := &JudgeRequest{
		LanguageUUID: "00000000-0000-0000-0000-000000000001",
		SourceCode:   []byte("int main(){}"),
		Limits:       Limits{WallMs: 1000, CPUUs: 1_000_000, MemoryBytes: 1 << 20, OutputBytes: 4096},
		Rule:         MatchSkipSnl,
		Tests:        []TestCase{{Input: []byte("1\n"), Output: []byte("1\n")}},
	}

	data, err := c.Marshal(in)
	assert.NilError(t, err)

	out := new(JudgeRequest)
	assert.NilError(t, c.Unmarshal(data, out))
	assert.DeepEqual(t, in, out)
}

func TestParseUUIDRejectsMalformed(t *testing.T) {
	req := &JudgeRequest{LanguageUUID: "not-a-uuid"}
	_, err := req.ParseUUID()
	assert.ErrorContains(t, err, "invalid UUID")
}
