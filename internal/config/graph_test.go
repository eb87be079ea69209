package config

import (
	"reflect"
	"strings"
	"testing"
)

func dependencyManifest(t *testing.T, body string) (*Manifest, error) {
	t.Helper()
	return Parse([]byte("version: \"1\"\nprocesses:\n" + body))
}

func TestStartOrderFollowsDependencies(t *testing.T) {
	m, err := dependencyManifest(t, `  web:
    command: /bin/true
    dependsOn:
      - target: db
        require: ready
      - target: migrate
        require: exited
  migrate:
    command: /bin/true
    dependsOn:
      - target: db
  db:
    command: /bin/true
    ready:
      pattern: accepting connections
  cache:
    command: /bin/true
`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	order, err := m.StartOrder()
	if err != nil {
		t.Fatalf("StartOrder: %v", err)
	}
	want := []string{"cache", "db", "migrate", "web"}
	if !reflect.DeepEqual(order, want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	if got := m.Processes["migrate"].DependsOn[0].Require; got != RequireStarted {
		t.Fatalf("expected default requirement started, got %q", got)
	}
}

func TestDependencyValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "cycle",
			body: "  a:\n    command: /bin/true\n    dependsOn: [{target: b}]\n  b:\n    command: /bin/true\n    dependsOn: [{target: a}]\n",
			want: "dependency cycle detected: a -> b -> a",
		},
		{
			name: "self",
			body: "  a:\n    command: /bin/true\n    dependsOn: [{target: a}]\n",
			want: "cannot depend on itself",
		},
		{
			name: "unknown target",
			body: "  a:\n    command: /bin/true\n    dependsOn: [{target: ghost}]\n",
			want: `unknown process "ghost"`,
		},
		{
			name: "ready without pattern",
			body: "  a:\n    command: /bin/true\n    dependsOn: [{target: b, require: ready}]\n  b:\n    command: /bin/true\n",
			want: `"b" has no ready pattern`,
		},
		{
			name: "ready in start mode",
			body: "  a:\n    command: /bin/true\n    mode: start\n    ready: {pattern: up}\n",
			want: "processes.a.ready",
		},
		{
			name: "bad pattern",
			body: "  a:\n    command: /bin/true\n    ready: {pattern: \"(\"}\n",
			want: "processes.a.ready.pattern",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := dependencyManifest(t, tt.body)
			if err == nil {
				t.Fatalf("expected error containing %q", tt.want)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error %q does not contain %q", err, tt.want)
			}
		})
	}
}
