package script

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/dop251/goja"
)

// Run evaluates src in a fresh runtime with the reply binding installed.
// print and console.log write to out. Canceling ctx interrupts the script
// and any request it has in flight.
func Run(ctx context.Context, client *http.Client, name, src string, out io.Writer) (goja.Value, error) {
	vm := goja.New()
	b, err := Register(vm, client)
	if err != nil {
		return nil, fmt.Errorf("registering script bindings: %w", err)
	}
	b.ctx = ctx

	logLine := func(call goja.FunctionCall) goja.Value {
		parts := make([]string, len(call.Arguments))
		for i, a := range call.Arguments {
			parts[i] = a.String()
		}
		fmt.Fprintln(out, strings.Join(parts, " "))
		return goja.Undefined()
	}
	console := vm.NewObject()
	console.Set("log", logLine)
	vm.Set("console", console)
	vm.Set("print", logLine)

	stop := context.AfterFunc(ctx, func() {
		vm.Interrupt(ctx.Err())
	})
	defer stop()

	v, err := vm.RunScript(name, src)
	if err != nil {
		return nil, fmt.Errorf("running %s: %w", name, err)
	}
	return v, nil
}
