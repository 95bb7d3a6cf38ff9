package promptassembler

import (
	"reflect"

	"github.com/viant/velty"
)

// evalTemplate renders src against vars using velty. Velty compiles a
// template against a fixed set of typed variables, so the variable set is
// declared fresh for every render from the concrete merged map — slot
// templates are small and rendered per request, so recompiling is cheap.
func evalTemplate(src string, vars map[string]any) (string, error) {
	planner := velty.New()

	for name, value := range vars {
		if value == nil {
			continue
		}

		if err := planner.DefineVariable(name, reflect.TypeOf(value)); err != nil {
			return "", err
		}
	}

	exec, newState, err := planner.Compile([]byte(src))
	if err != nil {
		return "", err
	}

	state, err := newState()
	if err != nil {
		return "", err
	}

	for name, value := range vars {
		if value == nil {
			continue
		}

		if err := state.SetValue(name, value); err != nil {
			return "", err
		}
	}

	if err := exec.Exec(state); err != nil {
		return "", err
	}

	return string(state.Buffer.Bytes()), nil
}
