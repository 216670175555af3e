package script

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dop251/goja"
)

// replyKey holds the native reply on a script reply object.
var replyKey = goja.NewSymbol("QNetworkReply.native")

// Binding is the reply prototype installed in one runtime.
type Binding struct {
	vm     *goja.Runtime
	client *http.Client
	ctx    context.Context
	proto  *goja.Object
	nam    *goja.Object
}

// Register installs the QNetworkReply constructor and prototype and the
// networkAccessManager global in vm. A nil client uses http.DefaultClient.
func Register(vm *goja.Runtime, client *http.Client) (*Binding, error) {
	if client == nil {
		client = http.DefaultClient
	}
	b := &Binding{vm: vm, client: client, ctx: context.Background()}

	ctor, ok := vm.ToValue(func(call goja.ConstructorCall) *goja.Object {
		return nil
	}).(*goja.Object)
	if !ok {
		return nil, fmt.Errorf("creating QNetworkReply constructor")
	}
	b.proto = ctor.Get("prototype").ToObject(vm)

	for _, e := range networkErrors {
		if err := b.proto.DefineDataProperty(e.name, vm.ToValue(int(e.code)), goja.FLAG_FALSE, goja.FLAG_FALSE, goja.FLAG_TRUE); err != nil {
			return nil, fmt.Errorf("defining %s: %w", e.name, err)
		}
	}
	for name, fn := range b.methods() {
		if err := b.proto.Set(name, fn); err != nil {
			return nil, fmt.Errorf("defining %s: %w", name, err)
		}
	}
	if err := vm.Set("QNetworkReply", ctor); err != nil {
		return nil, fmt.Errorf("registering QNetworkReply: %w", err)
	}

	nam, err := b.manager()
	if err != nil {
		return nil, err
	}
	b.nam = nam
	if err := vm.Set("networkAccessManager", nam); err != nil {
		return nil, fmt.Errorf("registering networkAccessManager: %w", err)
	}
	return b, nil
}

// Wrap returns a script object forwarding to r.
func (b *Binding) Wrap(r Reply) *goja.Object {
	obj := b.vm.NewObject()
	obj.SetPrototype(b.proto)
	obj.DefineDataPropertySymbol(replyKey, b.vm.ToValue(r), goja.FLAG_FALSE, goja.FLAG_FALSE, goja.FLAG_FALSE)
	return obj
}

// native returns the reply behind this, or nil when this is not a wrapped
// reply.
func (b *Binding) native(call goja.FunctionCall) Reply {
	obj, ok := call.This.(*goja.Object)
	if !ok {
		return nil
	}
	v := obj.GetSymbol(replyKey)
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil
	}
	r, _ := v.Export().(Reply)
	return r
}

type forward func(r Reply, call goja.FunctionCall) any

func (b *Binding) method(fwd forward, neutral func() goja.Value) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		r := b.native(call)
		if r == nil {
			return neutral()
		}
		v := fwd(r, call)
		if v == nil {
			return goja.Undefined()
		}
		return b.vm.ToValue(v)
	}
}

func (b *Binding) constant(v any) func() goja.Value {
	return func() goja.Value {
		if v == nil {
			return goja.Undefined()
		}
		return b.vm.ToValue(v)
	}
}

func intArg(call goja.FunctionCall, i int) int64 {
	return call.Argument(i).ToInteger()
}

// charArg takes the first byte of a string argument or the low byte of a
// number.
func charArg(call goja.FunctionCall, i int) byte {
	v := call.Argument(i)
	if s, ok := v.Export().(string); ok {
		if s == "" {
			return 0
		}
		return s[0]
	}
	return byte(v.ToInteger())
}

func (b *Binding) methods() map[string]func(goja.FunctionCall) goja.Value {
	undefined := b.constant(nil)
	falsy := b.constant(false)
	empty := b.constant("")
	zero := b.constant(int64(0))

	return map[string]func(goja.FunctionCall) goja.Value{
		"abort": b.method(func(r Reply, _ goja.FunctionCall) any {
			r.Abort()
			return nil
		}, undefined),
		"attribute": b.method(func(r Reply, call goja.FunctionCall) any {
			return r.Attribute(int(intArg(call, 0)))
		}, undefined),
		"close": b.method(func(r Reply, _ goja.FunctionCall) any {
			r.Close()
			return nil
		}, undefined),
		"error": b.method(func(r Reply, _ goja.FunctionCall) any {
			return int(r.Error())
		}, b.constant(int(UnknownNetworkError))),
		"errorString": b.method(func(r Reply, _ goja.FunctionCall) any {
			return r.ErrorString()
		}, empty),
		"hasRawHeader": b.method(func(r Reply, call goja.FunctionCall) any {
			return r.HasRawHeader(call.Argument(0).String())
		}, falsy),
		"header": b.method(func(r Reply, call goja.FunctionCall) any {
			return r.Header(int(intArg(call, 0)))
		}, undefined),
		"ignoreSslErrors": b.method(func(r Reply, _ goja.FunctionCall) any {
			r.IgnoreSslErrors()
			return nil
		}, undefined),
		"isFinished": b.method(func(r Reply, _ goja.FunctionCall) any {
			return r.IsFinished()
		}, falsy),
		"isRunning": b.method(func(r Reply, _ goja.FunctionCall) any {
			return r.IsRunning()
		}, falsy),
		"operation": b.method(func(r Reply, _ goja.FunctionCall) any {
			return int(r.Operation())
		}, b.constant(int(HeadOperation))),
		"rawHeader": b.method(func(r Reply, call goja.FunctionCall) any {
			return r.RawHeader(call.Argument(0).String())
		}, empty),
		"rawHeaderList": b.method(func(r Reply, _ goja.FunctionCall) any {
			return b.array(r.RawHeaderList())
		}, func() goja.Value { return b.array(nil) }),
		"readBufferSize": b.method(func(r Reply, _ goja.FunctionCall) any {
			return r.ReadBufferSize()
		}, zero),
		"request": b.method(func(r Reply, _ goja.FunctionCall) any {
			return b.request(r.Request())
		}, func() goja.Value { return b.request(Request{}) }),
		"setReadBufferSize": b.method(func(r Reply, call goja.FunctionCall) any {
			r.SetReadBufferSize(intArg(call, 0))
			return nil
		}, undefined),
		"url": b.method(func(r Reply, _ goja.FunctionCall) any {
			if u := r.URL(); u != nil {
				return u.String()
			}
			return ""
		}, empty),
		"toString": b.method(func(r Reply, _ goja.FunctionCall) any {
			return fmt.Sprintf("[QNetworkReply(url=%s)]", stripPassword(r.URL()))
		}, b.constant("[QNetworkReply(unknown)]")),

		"atEnd": b.method(func(r Reply, _ goja.FunctionCall) any {
			return r.AtEnd()
		}, falsy),
		"bytesAvailable": b.method(func(r Reply, _ goja.FunctionCall) any {
			return r.BytesAvailable()
		}, zero),
		"canReadLine": b.method(func(r Reply, _ goja.FunctionCall) any {
			return r.CanReadLine()
		}, falsy),
		"isOpen": b.method(func(r Reply, _ goja.FunctionCall) any {
			return r.IsOpen()
		}, falsy),
		"isReadable": b.method(func(r Reply, _ goja.FunctionCall) any {
			return r.IsReadable()
		}, falsy),
		"isSequential": b.method(func(r Reply, _ goja.FunctionCall) any {
			return r.IsSequential()
		}, falsy),
		"peek": b.method(func(r Reply, call goja.FunctionCall) any {
			return string(r.Peek(intArg(call, 0)))
		}, empty),
		"pos": b.method(func(r Reply, _ goja.FunctionCall) any {
			return r.Pos()
		}, zero),
		"read": b.method(func(r Reply, call goja.FunctionCall) any {
			return string(r.Read(intArg(call, 0)))
		}, empty),
		"readAll": b.method(func(r Reply, _ goja.FunctionCall) any {
			return string(r.ReadAll())
		}, empty),
		"readLine": b.method(func(r Reply, call goja.FunctionCall) any {
			return string(r.ReadLine(intArg(call, 0)))
		}, empty),
		"reset": b.method(func(r Reply, _ goja.FunctionCall) any {
			return r.Reset()
		}, falsy),
		"seek": b.method(func(r Reply, call goja.FunctionCall) any {
			return r.SeekTo(intArg(call, 0))
		}, falsy),
		"size": b.method(func(r Reply, _ goja.FunctionCall) any {
			return r.Size()
		}, zero),

		"bytesToWrite": b.method(func(r Reply, _ goja.FunctionCall) any {
			return r.BytesToWrite()
		}, zero),
		"getChar": b.method(func(r Reply, _ goja.FunctionCall) any {
			c, ok := r.GetChar()
			if !ok {
				return false
			}
			return string([]byte{c})
		}, falsy),
		"ungetChar": b.method(func(r Reply, call goja.FunctionCall) any {
			r.UngetChar(charArg(call, 0))
			return nil
		}, undefined),
		"putChar": b.method(func(r Reply, call goja.FunctionCall) any {
			return r.PutChar(charArg(call, 0))
		}, falsy),
		"isWritable": b.method(func(r Reply, _ goja.FunctionCall) any {
			return r.IsWritable()
		}, falsy),
		"isTextModeEnabled": b.method(func(r Reply, _ goja.FunctionCall) any {
			return r.IsTextModeEnabled()
		}, falsy),
		"setTextModeEnabled": b.method(func(r Reply, call goja.FunctionCall) any {
			r.SetTextModeEnabled(call.Argument(0).ToBoolean())
			return nil
		}, undefined),
		"open": b.method(func(r Reply, call goja.FunctionCall) any {
			return r.Open(OpenMode(intArg(call, 0)))
		}, falsy),
		"openMode": b.method(func(r Reply, _ goja.FunctionCall) any {
			return int(r.OpenMode())
		}, zero),
		"waitForReadyRead": b.method(func(r Reply, call goja.FunctionCall) any {
			return r.WaitForReadyRead(int(intArg(call, 0)))
		}, falsy),
		"waitForBytesWritten": b.method(func(r Reply, call goja.FunctionCall) any {
			return r.WaitForBytesWritten(int(intArg(call, 0)))
		}, falsy),
		"write": b.method(func(r Reply, call goja.FunctionCall) any {
			return r.Write([]byte(call.Argument(0).String()))
		}, zero),
		"manager": b.method(func(Reply, goja.FunctionCall) any {
			return b.nam
		}, goja.Null),
		"rawHeaderPairs": b.method(func(r Reply, _ goja.FunctionCall) any {
			pairs := r.RawHeaderPairs()
			values := make([]any, len(pairs))
			for i, p := range pairs {
				values[i] = b.array(p[:])
			}
			return b.vm.NewArray(values...)
		}, func() goja.Value { return b.array(nil) }),
		"sslConfiguration": b.method(func(r Reply, _ goja.FunctionCall) any {
			return b.object(r.SslConfiguration())
		}, func() goja.Value { return b.object(nil) }),
	}
}

func (b *Binding) array(items []string) *goja.Object {
	values := make([]any, len(items))
	for i, s := range items {
		values[i] = s
	}
	return b.vm.NewArray(values...)
}

func (b *Binding) object(fields map[string]string) *goja.Object {
	obj := b.vm.NewObject()
	for k, v := range fields {
		obj.Set(k, v)
	}
	return obj
}

func (b *Binding) request(req Request) *goja.Object {
	obj := b.vm.NewObject()
	obj.Set("url", req.URL)
	obj.Set("rawHeaders", b.object(req.Headers))
	return obj
}

// manager builds the networkAccessManager global. Requests run
// synchronously and always produce a reply; transport failures show up in
// its error().
func (b *Binding) manager() (*goja.Object, error) {
	nam := b.vm.NewObject()
	for _, op := range []struct {
		name string
		op   Operation
	}{
		{"HeadOperation", HeadOperation},
		{"GetOperation", GetOperation},
		{"PutOperation", PutOperation},
		{"PostOperation", PostOperation},
		{"DeleteOperation", DeleteOperation},
		{"CustomOperation", CustomOperation},
	} {
		if err := nam.DefineDataProperty(op.name, b.vm.ToValue(int(op.op)), goja.FLAG_FALSE, goja.FLAG_FALSE, goja.FLAG_TRUE); err != nil {
			return nil, fmt.Errorf("defining %s: %w", op.name, err)
		}
	}

	send := func(method string, withBody bool) func(goja.FunctionCall) goja.Value {
		return func(call goja.FunctionCall) goja.Value {
			target := call.Argument(0).String()
			var body io.Reader
			if withBody {
				body = strings.NewReader(call.Argument(1).String())
			}
			req, err := http.NewRequestWithContext(b.ctx, method, target, body)
			if err != nil {
				panic(b.vm.NewTypeError("invalid url %q: %v", target, err))
			}
			if withBody {
				if ct := call.Argument(2); !goja.IsUndefined(ct) && !goja.IsNull(ct) {
					req.Header.Set("Content-Type", ct.String())
				}
			}

			reply := Do(b.client, req)
			if reply.Error() != NoError {
				slog.Warn("script request failed", "method", method, "url", stripPassword(req.URL), "error", reply.ErrorString())
			}
			return b.Wrap(reply)
		}
	}

	for name, fn := range map[string]func(goja.FunctionCall) goja.Value{
		"head":           send(http.MethodHead, false),
		"get":            send(http.MethodGet, false),
		"put":            send(http.MethodPut, true),
		"post":           send(http.MethodPost, true),
		"deleteResource": send(http.MethodDelete, false),
	} {
		if err := nam.Set(name, fn); err != nil {
			return nil, fmt.Errorf("defining %s: %w", name, err)
		}
	}
	return nam, nil
}
