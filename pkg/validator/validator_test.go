package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	RoleID      int64   `json:"role_id" validate:"required,gt=0"`
	AccountType string  `json:"account_type" validate:"required,account_type"`
	ModulePath  string  `json:"module_path" validate:"omitempty,module_path"`
	Status      string  `json:"status" validate:"omitempty,module_status"`
	MenuIDs     []int64 `json:"menu_ids" validate:"dive,gt=0"`
	Note        string  `validate:"max=3"`
}

func TestValidate(t *testing.T) {
	v := New()

	tests := []struct {
		name      string
		input     sample
		wantField string
	}{
		{name: "valid", input: sample{RoleID: 1, AccountType: "operator", ModulePath: "billing", MenuIDs: []int64{1}}},
		{name: "all path", input: sample{RoleID: 1, AccountType: "operator", ModulePath: "all"}},
		{name: "missing role", input: sample{AccountType: "operator"}, wantField: "role_id"},
		{name: "bad account type", input: sample{RoleID: 1, AccountType: "Operator!"}, wantField: "account_type"},
		{name: "escaping path", input: sample{RoleID: 1, AccountType: "operator", ModulePath: "../etc"}, wantField: "module_path"},
		{name: "absolute path", input: sample{RoleID: 1, AccountType: "operator", ModulePath: "/etc"}, wantField: "module_path"},
		{name: "untagged field falls back to snake case", input: sample{RoleID: 1, AccountType: "operator", Note: "long"}, wantField: "note"},
		{name: "bad status", input: sample{RoleID: 1, AccountType: "operator", Status: "on"}, wantField: "status"},
		{name: "zero menu id", input: sample{RoleID: 1, AccountType: "operator", MenuIDs: []int64{0}}, wantField: "menu_ids[0]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.input)
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			var verrs ValidationErrors
			require.ErrorAs(t, err, &verrs)
			require.Len(t, verrs, 1)
			assert.Equal(t, tt.wantField, verrs[0].Field)
			assert.NotEmpty(t, verrs[0].Message)
		})
	}
}

func TestToSnakeCase(t *testing.T) {
	assert.Equal(t, "target_module_id", toSnakeCase("TargetModuleId"))
	assert.Equal(t, "role_id", toSnakeCase("RoleId"))
}
