package criteria

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/dop251/goja"
)

var (
	ErrSandboxTimeout = errors.New("expression timed out")
	ErrSandboxSyntax  = errors.New("expression does not compile")
)

// Sandbox roda a expressão do cliente sobre um snapshot somente leitura e
// diz se o resultado é verdadeiro.
type Sandbox interface {
	Evaluate(ctx context.Context, expression string, snapshot map[string]any) (bool, error)
}

// GojaSandbox executa cada expressão num runtime goja novo, sem acesso a
// I/O, interrompido quando passa de Timeout ou quando ctx é cancelado.
type GojaSandbox struct {
	Timeout time.Duration
}

const defaultSandboxTimeout = time.Second

func (s GojaSandbox) Evaluate(ctx context.Context, expression string, snapshot map[string]any) (ok bool, err error) {
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = defaultSandboxTimeout
	}

	data, err := deepCopy(snapshot)
	if err != nil {
		return false, err
	}

	code := "(function(){ return Boolean(" + replacePlaceholders(expression, data) + "); })()"
	program, err := goja.Compile("expression", code, true)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrSandboxSyntax, err)
	}

	vm := goja.New()
	vm.SetFieldNameMapper(goja.TagFieldNameMapper("json", true))
	for k, v := range data {
		if err := vm.Set(k, v); err != nil {
			return false, fmt.Errorf("expose %s: %w", k, err)
		}
	}

	timer := time.AfterFunc(timeout, func() { vm.Interrupt(ErrSandboxTimeout) })
	defer timer.Stop()
	stop := context.AfterFunc(ctx, func() { vm.Interrupt(ctx.Err()) })
	defer stop()

	defer func() {
		if r := recover(); r != nil {
			ok, err = false, fmt.Errorf("expression panicked: %v", r)
		}
	}()

	v, err := vm.RunProgram(program)
	if err != nil {
		var interrupted *goja.InterruptedError
		if errors.As(err, &interrupted) {
			if cause, isErr := interrupted.Value().(error); isErr {
				return false, cause
			}
			return false, ErrSandboxTimeout
		}
		return false, err
	}
	return v.ToBoolean(), nil
}

// deepCopy desacopla o snapshot do resultado original; o runtime só vê tipos JSON.
func deepCopy(snapshot map[string]any) (map[string]any, error) {
	if len(snapshot) == 0 {
		return map[string]any{}, nil
	}
	raw, err := json.Marshal(snapshot)
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}
	out := map[string]any{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}
	return out, nil
}

var placeholder = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_$.\[\]-]+)\s*\}\}`)

// replacePlaceholders troca {{a.b.c}} pelo literal JSON do valor no snapshot.
// Caminhos inexistentes viram undefined.
func replacePlaceholders(expression string, data map[string]any) string {
	return placeholder.ReplaceAllStringFunc(expression, func(m string) string {
		path := placeholder.FindStringSubmatch(m)[1]
		v, ok := lookup(data, path)
		if !ok {
			return "undefined"
		}
		raw, err := json.Marshal(v)
		if err != nil {
			return "undefined"
		}
		return string(raw)
	})
}

func lookup(data map[string]any, path string) (any, bool) {
	path = strings.ReplaceAll(strings.ReplaceAll(path, "[", "."), "]", "")
	var cur any = data
	for _, part := range strings.Split(path, ".") {
		if part == "" {
			continue
		}
		switch node := cur.(type) {
		case map[string]any:
			v, ok := node[part]
			if !ok {
				return nil, false
			}
			cur = v
		case []any:
			var idx int
			if _, err := fmt.Sscanf(part, "%d", &idx); err != nil || idx < 0 || idx >= len(node) {
				return nil, false
			}
			cur = node[idx]
		default:
			return nil, false
		}
	}
	return cur, true
}
