package pipeline

import (
	"context"
	"testing"

	"github.com/bytecast/jtc/internal/config"
	"github.com/bytecast/jtc/internal/model"
)

func TestRunRejectsInvalidConfig(t *testing.T) {
	p := New(&config.Config{}, nil)
	err := p.Run(context.Background())
	if err == nil {
		t.Fatal("expected a validation error for an empty config, got nil")
	}
}

func TestLowerFansOutPerMethod(t *testing.T) {
	program := model.NewProgramModel()
	c := model.NewClassModel("Greeter", model.KindClass)
	c.SuperName = "java/lang/Object"
	c.Reachable = true
	c.Methods = []*model.MethodModel{
		{Owner: "Greeter", Name: "a", Descriptor: "()V", Return: model.Void(), Reachable: true},
		{Owner: "Greeter", Name: "b", Descriptor: "()V", Return: model.Void(), Reachable: true},
	}
	program.Add(c)

	p := New(&config.Config{}, nil)
	bodies, err := p.lower(context.Background(), program)
	if err != nil {
		t.Fatalf("lower: %v", err)
	}
	if len(bodies["Greeter"]) != 2 {
		t.Fatalf("len(bodies[Greeter]) = %d, want 2", len(bodies["Greeter"]))
	}
	for _, key := range []string{"a()V", "b()V"} {
		if _, ok := bodies["Greeter"][key]; !ok {
			t.Errorf("missing lowered body for %s", key)
		}
	}
}

func TestLowerSkipsUnreachableClasses(t *testing.T) {
	program := model.NewProgramModel()
	c := model.NewClassModel("Dead", model.KindClass)
	c.Reachable = false
	c.Methods = []*model.MethodModel{
		{Owner: "Dead", Name: "unused", Descriptor: "()V", Return: model.Void()},
	}
	program.Add(c)

	p := New(&config.Config{}, nil)
	bodies, err := p.lower(context.Background(), program)
	if err != nil {
		t.Fatalf("lower: %v", err)
	}
	if len(bodies) != 0 {
		t.Fatalf("bodies = %v, want empty (class unreachable)", bodies)
	}
}
