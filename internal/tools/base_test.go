package tools

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	xerrors "omni-agent/internal/errors"
)

type stubTool struct {
	name   string
	params []Param
}

func (s *stubTool) Name() string        { return s.name }
func (s *stubTool) Description() string { return "stub " + s.name }
func (s *stubTool) Params() []Param     { return s.params }
func (s *stubTool) Execute(context.Context, map[string]any) Result {
	return OK("done")
}

func TestResultJSON(t *testing.T) {
	assert.JSONEq(t, `{"success":true,"data":{"a":1}}`, OK(map[string]int{"a": 1}).JSON())
	assert.JSONEq(t, `{"success":false,"error":"boom"}`, Fail("boom").JSON())
	assert.JSONEq(t,
		`{"success":false,"error":"missing required fields: wallet_address, network","missing_fields":["wallet_address","network"]}`,
		Missing([]string{"wallet_address", "network"}).JSON())
}

func TestFromError(t *testing.T) {
	r := FromError(xerrors.Wrap(xerrors.CodeUpstreamFailure, errors.New("dial tcp: refused"), "POST /api/sui/account"))
	assert.False(t, r.Success)
	assert.Equal(t, "POST /api/sui/account: dial tcp: refused", r.Error)

	assert.Equal(t, xerrors.CodeUpstreamFailure, r.Code)
	assert.Zero(t, r.UpstreamStatus)

	assert.Equal(t, "plain", FromError(errors.New("plain")).Error)
}

func TestFromErrorKeepsUpstreamStatus(t *testing.T) {
	r := FromError(xerrors.New(xerrors.CodeUpstreamFailure, "GET /api/sui/account/0x1 returned 404: not found",
		xerrors.WithMeta(xerrors.MetaStatus, "404")))

	assert.Equal(t, 404, r.UpstreamStatus)
	assert.JSONEq(t,
		`{"success":false,"error":"GET /api/sui/account/0x1 returned 404: not found","upstream_status":404}`,
		r.JSON())
}

func TestParametersSchema(t *testing.T) {
	tool := NewCreateAccountTool(&Relayer{})
	schema := Parameters(tool)

	raw, err := json.Marshal(schema)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"type": "object",
		"properties": {
			"scheme": {"type": "string", "description": "The cryptographic scheme to use (default: secp256k1)", "enum": ["secp256k1", "ed25519"]},
			"user_id": {"type": "string", "description": "The Telegram user ID. Filled in automatically, never ask the user for it."},
			"network": {"type": "string", "description": "The network to create account on (mainnet/testnet/devnet)", "enum": ["mainnet", "testnet", "devnet"]}
		},
		"required": ["network"]
	}`, string(raw))
}

func TestRequiredMissingKeepsDeclarationOrder(t *testing.T) {
	tool := NewCreateTokenTool(&Relayer{})
	missing := RequiredMissing(tool, map[string]any{
		"name":        "Omni",
		"symbol":      "OMNI",
		"init_supply": float64(1000),
		"network":     "  ",
	})
	assert.Equal(t, []string{"wallet_address", "network"}, missing)
	assert.True(t, Declares(tool, "wallet_address"))
	assert.False(t, Declares(tool, "user_id"))
}

func TestRegistryValidation(t *testing.T) {
	_, err := NewRegistry(&stubTool{name: ""})
	require.Error(t, err)

	_, err = NewRegistry(&stubTool{name: "a"}, &stubTool{name: "a"})
	require.ErrorContains(t, err, "duplicate tool")

	_, err = NewRegistry(&stubTool{name: "a", params: []Param{{Name: "n", Type: "integer", Enum: []string{"1"}}}})
	require.ErrorContains(t, err, "enum on non-string")

	_, err = NewRegistry(&stubTool{name: "a", params: []Param{{Name: "n", Type: "object"}}})
	require.ErrorContains(t, err, "unsupported type")
	assert.Equal(t, xerrors.CodeConfigInvalid, xerrors.CodeOf(err))
}

func TestRegistryRequire(t *testing.T) {
	reg, err := NewRegistry(&stubTool{name: "a"}, &stubTool{name: "b"})
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b"}, reg.Names())
	require.NoError(t, reg.Require("b", "a"))

	err = reg.Require("a", "c")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing [c]")
	assert.Contains(t, err.Error(), "unexpected [b]")
}

func TestDefaultRegistry(t *testing.T) {
	reg, err := NewDefaultRegistry(SetConfig{})
	require.NoError(t, err)
	assert.Equal(t, Names, reg.Names())

	news, ok := reg.News()
	require.True(t, ok)
	assert.Equal(t, "get_news", news.Name())

	detail, ok := reg.Get("get_account_detail")
	require.True(t, ok)
	_, isPrompter := detail.(InputPrompter)
	assert.True(t, isPrompter)
}
