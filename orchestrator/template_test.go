package orchestrator

import "testing"

func TestRenderSystemBasic(t *testing.T) {
	r := NewRenderer()
	out, err := r.RenderSystem("You are on {{.OS}} at {{.Cwd}}.", SystemContext{OS: "linux", Cwd: "/work"})
	if err != nil {
		t.Fatalf("RenderSystem() error = %v", err)
	}
	if out != "You are on linux at /work." {
		t.Errorf("RenderSystem() = %q", out)
	}
}

func TestRenderSystemStrictModeMissingVariable(t *testing.T) {
	r := NewRenderer()
	_, err := r.RenderSystem("{{.NotAField}}", SystemContext{})
	if err == nil {
		t.Fatal("RenderSystem() with unknown field = nil error, want TemplateRender error")
	}
	var tErr *TemplateError
	if !asTemplateError(err, &tErr) {
		t.Errorf("error type = %T, want *TemplateError", err)
	}
}

func TestRenderUserStrictModeMissingMapKey(t *testing.T) {
	r := NewRenderer()
	// missingkey=error on a map reports <no value> only for struct fields by
	// default reflection rules; exercise the Variables map path explicitly.
	_, err := r.RenderUser("{{.Variables.missing}}", EventContext{Variables: map[string]any{"present": 1}})
	if err == nil {
		t.Fatal("RenderUser() referencing a missing map key = nil error, want error")
	}
}

func TestRenderUserWithEvent(t *testing.T) {
	r := NewRenderer()
	out, err := r.RenderUser("task: {{.Event.Name}}", EventContext{Event: Event{Name: "chat/user_task_init"}})
	if err != nil {
		t.Fatalf("RenderUser() error = %v", err)
	}
	if out != "task: chat/user_task_init" {
		t.Errorf("RenderUser() = %q", out)
	}
}

func TestRenderSystemBadTemplateSyntax(t *testing.T) {
	r := NewRenderer()
	if _, err := r.RenderSystem("{{.OS", SystemContext{}); err == nil {
		t.Fatal("RenderSystem() with unclosed action = nil error, want parse error")
	}
}

func TestRenderSystemAgentToolsPartial(t *testing.T) {
	r := NewRenderer()
	out, err := r.RenderSystem(`{{template "agent-tools" .}}`, SystemContext{ToolInformation: "fs_read, shell"})
	if err != nil {
		t.Fatalf("RenderSystem() error = %v", err)
	}
	if out != "fs_read, shell" {
		t.Errorf("RenderSystem() via agent-tools partial = %q", out)
	}
}

func asTemplateError(err error, target **TemplateError) bool {
	t, ok := err.(*TemplateError)
	if ok {
		*target = t
	}
	return ok
}
