package dispatch

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/ansible-actions/internal/config"
)

func TestTimeout_Seconds(t *testing.T) {
	cases := []struct {
		in      Timeout
		want    int
		wantErr bool
	}{
		{"", 120, false},
		{"   ", 120, false},
		{"120", 120, false},
		{"30", 30, false},
		{"0", 0, false},
		{"abc", 0, true},
		{"1.5", 0, true},
		{"-1", 0, true},
	}
	for _, tc := range cases {
		got, err := tc.in.Seconds()
		if tc.wantErr {
			assert.Error(t, err, "input %q", tc.in)
			continue
		}
		require.NoError(t, err, "input %q", tc.in)
		assert.Equal(t, tc.want, got, "input %q", tc.in)
	}

	d, err := Timeout("").Duration()
	require.NoError(t, err)
	assert.Equal(t, 120*time.Second, d)
}

func TestTimeout_UnmarshalJSON(t *testing.T) {
	var p AdhocParams
	require.NoError(t, json.Unmarshal([]byte(`{"module":"ping","timeout":45}`), &p))
	assert.Equal(t, Timeout("45"), p.Timeout)

	require.NoError(t, json.Unmarshal([]byte(`{"module":"ping","timeout":"60"}`), &p))
	assert.Equal(t, Timeout("60"), p.Timeout)

	p = AdhocParams{}
	require.NoError(t, json.Unmarshal([]byte(`{"module":"ping","timeout":null}`), &p))
	assert.Equal(t, Timeout(""), p.Timeout)

	assert.Error(t, json.Unmarshal([]byte(`{"timeout":true}`), &p))
}

func TestDecodeParams_Defaults(t *testing.T) {
	defaults := config.ActionsConfig{
		Adhoc:    config.AdhocDefaults{Module: "ping", ModuleArguments: "", Timeout: "90"},
		Playbook: config.PlaybookDefaults{PlaybookPath: "site.yml"},
	}

	a, err := DecodeAdhocParams(json.RawMessage(`{"inventory_group":"web","ansibleconf_id":3}`), defaults.Adhoc)
	require.NoError(t, err)
	assert.Equal(t, "ping", a.Module)
	assert.Equal(t, Timeout("90"), a.Timeout)
	assert.Equal(t, "web", a.InventoryGroup)
	assert.Equal(t, int64(3), a.AnsibleConfID)

	p, err := DecodePlaybookParams(nil, defaults.Playbook)
	require.NoError(t, err)
	assert.Equal(t, "site.yml", p.PlaybookPath)
	assert.Equal(t, Timeout(""), p.Timeout)

	_, err = DecodeAdhocParams(json.RawMessage(`{}`), config.AdhocDefaults{})
	assert.ErrorContains(t, err, "module is required")
	_, err = DecodePlaybookParams(json.RawMessage(`{"limit":"x"}`), config.PlaybookDefaults{})
	assert.ErrorContains(t, err, "playbook_path is required")
	_, err = DecodePlaybookParams(json.RawMessage(`[`), config.PlaybookDefaults{})
	assert.Error(t, err)
}
