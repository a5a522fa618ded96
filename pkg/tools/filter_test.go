package tools

import (
	"testing"
)

func TestFilterAllowedTools(t *testing.T) {
	tests := []struct {
		name         string
		calls        []Call
		allowedTools []string
		wantAllowed  int
		wantRejected int
	}{
		{
			name: "all allowed when no filter",
			calls: []Call{
				{ID: "c1", Name: "getContractDetailsByName"},
				{ID: "c2", Name: "listRenewals"},
			},
			allowedTools: nil,
			wantAllowed:  2,
		},
		{
			name:         "all allowed when empty filter",
			calls:        []Call{{ID: "c1", Name: "getContractDetailsByName"}},
			allowedTools: []string{},
			wantAllowed:  1,
		},
		{
			name: "some rejected",
			calls: []Call{
				{ID: "c1", Name: "getContractDetailsByName"},
				{ID: "c2", Name: "terminateContract"},
				{ID: "c3", Name: "listRenewals"},
			},
			allowedTools: []string{"getContractDetailsByName", "listRenewals"},
			wantAllowed:  2,
			wantRejected: 1,
		},
		{
			name: "all rejected",
			calls: []Call{
				{ID: "c1", Name: "terminateContract"},
				{ID: "c2", Name: "dropTable"},
			},
			allowedTools: []string{"getContractDetailsByName"},
			wantRejected: 2,
		},
		{
			name:         "empty calls",
			calls:        []Call{},
			allowedTools: []string{"getContractDetailsByName"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := FilterAllowedTools(tt.calls, tt.allowedTools)

			if len(result.Allowed) != tt.wantAllowed {
				t.Errorf("allowed count = %d, want %d", len(result.Allowed), tt.wantAllowed)
			}
			if len(result.Rejected) != tt.wantRejected {
				t.Errorf("rejected count = %d, want %d", len(result.Rejected), tt.wantRejected)
			}

			for _, r := range result.Rejected {
				if !r.IsError {
					t.Errorf("rejected result for %q should have IsError=true", r.CallID)
				}
				payload, ok := r.Output.(map[string]any)
				if !ok {
					t.Fatalf("rejected output = %T, want map", r.Output)
				}
				errObj := payload["error"].(map[string]any)
				if errObj["code"] != CodeNotAllowed {
					t.Errorf("code = %v, want %s", errObj["code"], CodeNotAllowed)
				}
			}
		})
	}
}
