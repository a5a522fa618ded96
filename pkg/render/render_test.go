package render

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/rhuss/kontrakt/pkg/transcript"
)

func TestProjectTextPassesThrough(t *testing.T) {
	msgs := []transcript.Message{transcript.UserText("Hello"), transcript.ModelText("Hi <there> & co")}
	got := ToRenderForm(msgs)

	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].Role != transcript.RoleUser || got[0].Text() != "Hello" {
		t.Errorf("message 0 = %+v", got[0])
	}
	if got[1].Text() != "Hi <there> & co" {
		t.Errorf("message 1 text = %q", got[1].Text())
	}
}

func TestProjectSerializesToolPayloads(t *testing.T) {
	msgs := []transcript.Message{
		{Role: transcript.RoleModel, Parts: []transcript.Part{
			transcript.ToolRequest("getContractDetailsByName", map[string]any{"contractName": "Acme", "a": 1}),
		}},
		{Role: transcript.RoleTool, Parts: []transcript.Part{
			transcript.ToolResponse("getContractDetailsByName", map[string]any{"found": false}).WithCallID("c1"),
		}},
	}
	got := ToRenderForm(msgs)

	req := got[0].Parts[0]
	if req.Kind != transcript.KindToolRequest || req.ToolName != "getContractDetailsByName" {
		t.Errorf("request part = %+v", req)
	}
	if req.Input != `{"a":1,"contractName":"Acme"}` {
		t.Errorf("input = %s", req.Input)
	}
	resp := got[1].Parts[0]
	if resp.Output != `{"found":false}` || resp.CallID != "c1" {
		t.Errorf("response part = %+v", resp)
	}
}

func TestProjectIsDeterministic(t *testing.T) {
	build := func() []transcript.Message {
		in := map[string]any{}
		for _, k := range []string{"z", "m", "a", "q", "b"} {
			in[k] = map[string]any{"y": 1, "x": []any{"b", "a"}}
		}
		return []transcript.Message{{Role: transcript.RoleModel, Parts: []transcript.Part{transcript.ToolRequest("t", in)}}}
	}

	first, err := json.Marshal(ToRenderForm(build()))
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 20; i++ {
		next, err := json.Marshal(ToRenderForm(build()))
		if err != nil {
			t.Fatal(err)
		}
		if string(next) != string(first) {
			t.Fatalf("projection differs on run %d:\n%s\n%s", i, first, next)
		}
	}
}

func TestProjectDropsUnserializableParts(t *testing.T) {
	msgs := []transcript.Message{
		{Role: transcript.RoleModel, Parts: []transcript.Part{
			transcript.Text("checking"),
			transcript.ToolRequest("bad", map[string]any{"v": math.Inf(1)}),
			transcript.ToolRequest("good", map[string]any{"v": 1}),
		}},
		transcript.UserText("next"),
	}

	var drops [][2]int
	p := Projector{OnDrop: func(message, part int, err error) {
		if err == nil {
			t.Error("drop reported without error")
		}
		drops = append(drops, [2]int{message, part})
	}}
	got := p.Project(msgs)

	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if len(got[0].Parts) != 2 {
		t.Fatalf("parts = %d, want 2", len(got[0].Parts))
	}
	if got[0].Parts[1].ToolName != "good" {
		t.Errorf("kept part = %+v", got[0].Parts[1])
	}
	if len(drops) != 1 || drops[0] != [2]int{0, 1} {
		t.Errorf("drops = %v, want [[0 1]]", drops)
	}
}

func TestCanonicalRawMessage(t *testing.T) {
	got, err := Canonical(json.RawMessage(`{"b": 2, "a": 12345678901234567890}`))
	if err != nil {
		t.Fatal(err)
	}
	if got != `{"a":12345678901234567890,"b":2}` {
		t.Errorf("got %s", got)
	}
}

func TestFlags(t *testing.T) {
	tests := []struct {
		role transcript.Role
		want RoleFlags
	}{
		{transcript.RoleUser, RoleFlags{IsUser: true}},
		{transcript.RoleModel, RoleFlags{IsModel: true}},
		{transcript.RoleTool, RoleFlags{IsTool: true}},
		{transcript.RoleSystem, RoleFlags{}},
	}
	for _, tt := range tests {
		if got := Flags(tt.role); got != tt.want {
			t.Errorf("Flags(%s) = %+v, want %+v", tt.role, got, tt.want)
		}
		m := RenderMessage{Role: tt.role}
		if m.IsUser() != tt.want.IsUser || m.IsModel() != tt.want.IsModel || m.IsTool() != tt.want.IsTool {
			t.Errorf("methods disagree with flags for %s", tt.role)
		}
	}
}

func TestDefaultTemplate(t *testing.T) {
	tmpl, err := NewTemplate("")
	if err != nil {
		t.Fatal(err)
	}

	history := ToRenderForm([]transcript.Message{
		transcript.UserText("Hello"),
		{Role: transcript.RoleModel, Parts: []transcript.Part{transcript.ToolRequest("lookup", map[string]any{"n": "A"})}},
		{Role: transcript.RoleTool, Parts: []transcript.Part{transcript.ToolResponse("lookup", true)}},
		transcript.ModelText("Done"),
	})
	got, err := tmpl.String(PromptData{System: "Be brief", History: history, UserMessage: "Thanks"})
	if err != nil {
		t.Fatal(err)
	}

	want := "system: Be brief\n" +
		"user: Hello\n" +
		"model -> lookup({\"n\":\"A\"})\n" +
		"tool <- lookup: true\n" +
		"model: Done\n" +
		"user: Thanks\n"
	if got != want {
		t.Errorf("rendered prompt:\n%q\nwant:\n%q", got, want)
	}
}

func TestCustomTemplateUsesRoleMethods(t *testing.T) {
	tmpl, err := NewTemplate(`{{range .History}}{{if .IsUser}}U{{else if .IsModel}}M{{end}}{{end}}`)
	if err != nil {
		t.Fatal(err)
	}
	got, err := tmpl.String(PromptData{History: ToRenderForm([]transcript.Message{
		transcript.UserText("a"), transcript.ModelText("b"), transcript.UserText("c"),
	})})
	if err != nil {
		t.Fatal(err)
	}
	if got != "UMU" {
		t.Errorf("got %q, want UMU", got)
	}
}

func TestNewTemplateRejectsBadSyntax(t *testing.T) {
	if _, err := NewTemplate("{{range}}"); err == nil {
		t.Fatal("expected parse error")
	}
}
