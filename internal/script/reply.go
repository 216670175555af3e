// Package script exposes network replies to goja scripts.
package script

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strings"
	"syscall"
)

// NetworkError is the error state of a reply. The values match the codes
// scripts already compare against.
type NetworkError int

const (
	NoError                           NetworkError = 0
	ConnectionRefusedError            NetworkError = 1
	RemoteHostClosedError             NetworkError = 2
	HostNotFoundError                 NetworkError = 3
	TimeoutError                      NetworkError = 4
	OperationCanceledError            NetworkError = 5
	SslHandshakeFailedError           NetworkError = 6
	TemporaryNetworkFailureError      NetworkError = 7
	NetworkSessionFailedError         NetworkError = 8
	BackgroundRequestNotAllowedError  NetworkError = 9
	TooManyRedirectsError             NetworkError = 10
	InsecureRedirectError             NetworkError = 11
	UnknownNetworkError               NetworkError = 99
	ProxyConnectionRefusedError       NetworkError = 101
	ProxyConnectionClosedError        NetworkError = 102
	ProxyNotFoundError                NetworkError = 103
	ProxyTimeoutError                 NetworkError = 104
	ProxyAuthenticationRequiredError  NetworkError = 105
	UnknownProxyError                 NetworkError = 199
	ContentAccessDenied               NetworkError = 201
	ContentOperationNotPermittedError NetworkError = 202
	ContentNotFoundError              NetworkError = 203
	AuthenticationRequiredError       NetworkError = 204
	ContentReSendError                NetworkError = 205
	ContentConflictError              NetworkError = 206
	ContentGoneError                  NetworkError = 207
	UnknownContentError               NetworkError = 299
	ProtocolUnknownError              NetworkError = 301
	ProtocolInvalidOperationError     NetworkError = 302
	ProtocolFailure                   NetworkError = 399
	InternalServerError               NetworkError = 401
	OperationNotImplementedError      NetworkError = 402
	ServiceUnavailableError           NetworkError = 403
	UnknownServerError                NetworkError = 499
)

// networkErrors lists the constants registered on the reply prototype.
var networkErrors = []struct {
	name string
	code NetworkError
}{
	{"NoError", NoError},
	{"ConnectionRefusedError", ConnectionRefusedError},
	{"RemoteHostClosedError", RemoteHostClosedError},
	{"HostNotFoundError", HostNotFoundError},
	{"TimeoutError", TimeoutError},
	{"OperationCanceledError", OperationCanceledError},
	{"SslHandshakeFailedError", SslHandshakeFailedError},
	{"TemporaryNetworkFailureError", TemporaryNetworkFailureError},
	{"NetworkSessionFailedError", NetworkSessionFailedError},
	{"BackgroundRequestNotAllowedError", BackgroundRequestNotAllowedError},
	{"TooManyRedirectsError", TooManyRedirectsError},
	{"InsecureRedirectError", InsecureRedirectError},
	{"ProxyConnectionRefusedError", ProxyConnectionRefusedError},
	{"ProxyConnectionClosedError", ProxyConnectionClosedError},
	{"ProxyNotFoundError", ProxyNotFoundError},
	{"ProxyTimeoutError", ProxyTimeoutError},
	{"ProxyAuthenticationRequiredError", ProxyAuthenticationRequiredError},
	{"ContentAccessDenied", ContentAccessDenied},
	{"ContentOperationNotPermittedError", ContentOperationNotPermittedError},
	{"ContentNotFoundError", ContentNotFoundError},
	{"AuthenticationRequiredError", AuthenticationRequiredError},
	{"ContentReSendError", ContentReSendError},
	{"ContentConflictError", ContentConflictError},
	{"ContentGoneError", ContentGoneError},
	{"InternalServerError", InternalServerError},
	{"OperationNotImplementedError", OperationNotImplementedError},
	{"ServiceUnavailableError", ServiceUnavailableError},
	{"ProtocolUnknownError", ProtocolUnknownError},
	{"ProtocolInvalidOperationError", ProtocolInvalidOperationError},
	{"UnknownNetworkError", UnknownNetworkError},
	{"UnknownProxyError", UnknownProxyError},
	{"UnknownContentError", UnknownContentError},
	{"ProtocolFailure", ProtocolFailure},
	{"UnknownServerError", UnknownServerError},
}

// Operation is the request method that produced a reply.
type Operation int

const (
	HeadOperation   Operation = 1
	GetOperation    Operation = 2
	PutOperation    Operation = 3
	PostOperation   Operation = 4
	DeleteOperation Operation = 5
	CustomOperation Operation = 6
)

// OpenMode flags of the reply device.
type OpenMode int

const (
	NotOpen   OpenMode = 0
	ReadOnly  OpenMode = 1
	WriteOnly OpenMode = 2
	ReadWrite OpenMode = ReadOnly | WriteOnly
	Text      OpenMode = 16
)

// Request attributes readable through attribute().
const (
	HTTPStatusCodeAttribute    = 0
	HTTPReasonPhraseAttribute  = 1
	RedirectionTargetAttribute = 2
)

// Known headers readable through header().
const (
	ContentTypeHeader        = 0
	ContentLengthHeader      = 1
	LocationHeader           = 2
	LastModifiedHeader       = 3
	ContentDispositionHeader = 6
	UserAgentHeader          = 7
	ServerHeader             = 8
)

// Request describes the request a reply answers.
type Request struct {
	URL     string
	Headers map[string]string
}

// Reply is the native object behind a script reply value.
type Reply interface {
	Abort()
	Attribute(code int) any
	Close()
	Error() NetworkError
	ErrorString() string
	HasRawHeader(name string) bool
	Header(known int) any
	IgnoreSslErrors()
	IsFinished() bool
	IsRunning() bool
	Operation() Operation
	RawHeader(name string) string
	RawHeaderList() []string
	ReadBufferSize() int64
	SetReadBufferSize(size int64)
	Request() Request
	URL() *url.URL

	AtEnd() bool
	BytesAvailable() int64
	CanReadLine() bool
	IsOpen() bool
	IsReadable() bool
	IsSequential() bool
	Peek(max int64) []byte
	Pos() int64
	Read(max int64) []byte
	ReadAll() []byte
	ReadLine(max int64) []byte
	Reset() bool
	SeekTo(pos int64) bool
	Size() int64

	BytesToWrite() int64
	GetChar() (byte, bool)
	UngetChar(c byte)
	PutChar(c byte) bool
	IsWritable() bool
	IsTextModeEnabled() bool
	SetTextModeEnabled(enabled bool)
	Open(mode OpenMode) bool
	OpenMode() OpenMode
	WaitForReadyRead(msecs int) bool
	WaitForBytesWritten(msecs int) bool
	Write(data []byte) int64
	RawHeaderPairs() [][2]string
	SslConfiguration() map[string]string
}

// HTTPReply is a finished net/http exchange. The body is read in full when
// the reply is created so the device calls can seek and peek.
type HTTPReply struct {
	op         Operation
	url        *url.URL
	request    Request
	status     int
	reason     string
	header     http.Header
	body       []byte
	pos        int64
	open       bool
	err        NetworkError
	errString  string
	bufferSize int64
	textMode   bool
	tls        *tls.ConnectionState
}

// Do sends req with client and wraps the outcome. Transport failures are
// reported through Error and ErrorString rather than a Go error.
func Do(client *http.Client, req *http.Request) *HTTPReply {
	r := &HTTPReply{
		op:     operationOf(req.Method),
		url:    req.URL,
		header: http.Header{},
		open:   true,
		request: Request{
			URL:     req.URL.String(),
			Headers: flattenHeader(req.Header),
		},
	}

	resp, err := client.Do(req)
	if err != nil {
		r.err = transportError(err)
		r.errString = err.Error()
		return r
	}
	defer resp.Body.Close()

	r.status = resp.StatusCode
	r.reason = strings.TrimSpace(strings.TrimPrefix(resp.Status, fmt.Sprint(resp.StatusCode)))
	r.header = resp.Header
	r.tls = resp.TLS
	if resp.Request != nil && resp.Request.URL != nil {
		r.url = resp.Request.URL
	}

	body, err := io.ReadAll(resp.Body)
	r.body = body
	if err != nil {
		r.err = RemoteHostClosedError
		r.errString = err.Error()
		return r
	}

	if code := statusError(resp.StatusCode); code != NoError {
		r.err = code
		r.errString = fmt.Sprintf("Error transferring %s - server replied: %s", stripPassword(r.url), r.reason)
	}
	return r
}

func operationOf(method string) Operation {
	switch method {
	case http.MethodHead:
		return HeadOperation
	case http.MethodGet, "":
		return GetOperation
	case http.MethodPut:
		return PutOperation
	case http.MethodPost:
		return PostOperation
	case http.MethodDelete:
		return DeleteOperation
	default:
		return CustomOperation
	}
}

func statusError(status int) NetworkError {
	switch {
	case status < 400:
		return NoError
	case status == http.StatusUnauthorized:
		return AuthenticationRequiredError
	case status == http.StatusForbidden:
		return ContentAccessDenied
	case status == http.StatusNotFound:
		return ContentNotFoundError
	case status == http.StatusMethodNotAllowed:
		return ContentOperationNotPermittedError
	case status == http.StatusProxyAuthRequired:
		return ProxyAuthenticationRequiredError
	case status == http.StatusConflict:
		return ContentConflictError
	case status == http.StatusGone:
		return ContentGoneError
	case status == http.StatusTeapot:
		return ProtocolInvalidOperationError
	case status == http.StatusInternalServerError:
		return InternalServerError
	case status == http.StatusNotImplemented:
		return OperationNotImplementedError
	case status == http.StatusServiceUnavailable:
		return ServiceUnavailableError
	case status < 500:
		return UnknownContentError
	default:
		return UnknownServerError
	}
}

func transportError(err error) NetworkError {
	var dnsErr *net.DNSError
	var netErr net.Error
	switch {
	case errors.Is(err, context.Canceled):
		return OperationCanceledError
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, os.ErrDeadlineExceeded):
		return TimeoutError
	case errors.As(err, &dnsErr):
		return HostNotFoundError
	case errors.Is(err, syscall.ECONNREFUSED):
		return ConnectionRefusedError
	case errors.Is(err, syscall.ECONNRESET), errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return RemoteHostClosedError
	case strings.Contains(err.Error(), "stopped after") && strings.Contains(err.Error(), "redirects"):
		return TooManyRedirectsError
	case errors.As(err, &netErr) && netErr.Timeout():
		return TimeoutError
	default:
		return UnknownNetworkError
	}
}

func flattenHeader(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		out[k] = strings.Join(v, ", ")
	}
	return out
}

// stripPassword renders u without its password, keeping the user name.
func stripPassword(u *url.URL) string {
	if u == nil {
		return ""
	}
	c := *u
	if c.User != nil {
		c.User = url.User(c.User.Username())
	}
	return c.String()
}

// Abort drops the buffered body. The exchange is already finished so the
// error state is left alone.
func (r *HTTPReply) Abort() {
	r.Close()
}

func (r *HTTPReply) Attribute(code int) any {
	switch code {
	case HTTPStatusCodeAttribute:
		if r.status == 0 {
			return nil
		}
		return r.status
	case HTTPReasonPhraseAttribute:
		if r.status == 0 {
			return nil
		}
		return r.reason
	case RedirectionTargetAttribute:
		if r.status >= 300 && r.status < 400 {
			if loc := r.header.Get("Location"); loc != "" {
				return loc
			}
		}
		return nil
	default:
		return nil
	}
}

func (r *HTTPReply) Close() {
	r.open = false
	r.body = nil
	r.pos = 0
}

func (r *HTTPReply) Error() NetworkError { return r.err }

func (r *HTTPReply) ErrorString() string {
	if r.err == NoError {
		return "Unknown error"
	}
	return r.errString
}

func (r *HTTPReply) HasRawHeader(name string) bool {
	_, ok := r.header[http.CanonicalHeaderKey(name)]
	return ok
}

func (r *HTTPReply) Header(known int) any {
	var name string
	switch known {
	case ContentTypeHeader:
		name = "Content-Type"
	case ContentLengthHeader:
		v := r.header.Get("Content-Length")
		if v == "" {
			return nil
		}
		var n int64
		if _, err := fmt.Sscan(v, &n); err != nil {
			return nil
		}
		return n
	case LocationHeader:
		name = "Location"
	case LastModifiedHeader:
		name = "Last-Modified"
	case ContentDispositionHeader:
		name = "Content-Disposition"
	case UserAgentHeader:
		name = "User-Agent"
	case ServerHeader:
		name = "Server"
	default:
		return nil
	}
	if v := r.header.Get(name); v != "" {
		return v
	}
	return nil
}

// IgnoreSslErrors has nothing to do once the exchange is finished.
func (r *HTTPReply) IgnoreSslErrors() {}

func (r *HTTPReply) IsFinished() bool { return true }
func (r *HTTPReply) IsRunning() bool  { return false }

func (r *HTTPReply) Operation() Operation { return r.op }

func (r *HTTPReply) RawHeader(name string) string {
	return strings.Join(r.header.Values(name), ", ")
}

func (r *HTTPReply) RawHeaderList() []string {
	names := make([]string, 0, len(r.header))
	for k := range r.header {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func (r *HTTPReply) ReadBufferSize() int64        { return r.bufferSize }
func (r *HTTPReply) SetReadBufferSize(size int64) { r.bufferSize = size }
func (r *HTTPReply) Request() Request             { return r.request }
func (r *HTTPReply) URL() *url.URL                { return r.url }

func (r *HTTPReply) AtEnd() bool {
	return !r.open || r.pos >= int64(len(r.body))
}

func (r *HTTPReply) BytesAvailable() int64 {
	if !r.open {
		return 0
	}
	return int64(len(r.body)) - r.pos
}

func (r *HTTPReply) CanReadLine() bool {
	return r.open && bytes.IndexByte(r.body[r.pos:], '\n') >= 0
}

func (r *HTTPReply) IsOpen() bool       { return r.open }
func (r *HTTPReply) IsReadable() bool   { return r.open }
func (r *HTTPReply) IsSequential() bool { return false }

// Peek returns up to max bytes without moving the read position.
func (r *HTTPReply) Peek(max int64) []byte {
	if !r.open || max <= 0 {
		return nil
	}
	if avail := int64(len(r.body)) - r.pos; max > avail {
		max = avail
	}
	return bytes.Clone(r.body[r.pos : r.pos+max])
}

func (r *HTTPReply) Pos() int64 { return r.pos }

func (r *HTTPReply) Read(max int64) []byte {
	b := r.Peek(max)
	r.pos += int64(len(b))
	return b
}

func (r *HTTPReply) ReadAll() []byte {
	if !r.open {
		return nil
	}
	return r.Read(int64(len(r.body)) - r.pos)
}

// ReadLine reads through the next newline. A max of zero or less reads the
// whole line.
func (r *HTTPReply) ReadLine(max int64) []byte {
	if !r.open {
		return nil
	}
	rest := r.body[r.pos:]
	n := int64(len(rest))
	if i := bytes.IndexByte(rest, '\n'); i >= 0 {
		n = int64(i) + 1
	}
	if max > 0 && n > max {
		n = max
	}
	return r.Read(n)
}

func (r *HTTPReply) Reset() bool {
	if !r.open {
		return false
	}
	r.pos = 0
	return true
}

func (r *HTTPReply) SeekTo(pos int64) bool {
	if !r.open || pos < 0 || pos > int64(len(r.body)) {
		return false
	}
	r.pos = pos
	return true
}

func (r *HTTPReply) Size() int64 {
	if !r.open {
		return 0
	}
	return int64(len(r.body))
}

func (r *HTTPReply) BytesToWrite() int64 { return 0 }

// GetChar reads one byte. The second result is false at the end of the body.
func (r *HTTPReply) GetChar() (byte, bool) {
	if r.AtEnd() {
		return 0, false
	}
	c := r.body[r.pos]
	r.pos++
	return c, true
}

// UngetChar steps back one byte and stores c there.
func (r *HTTPReply) UngetChar(c byte) {
	if !r.open || r.pos == 0 {
		return
	}
	r.pos--
	r.body[r.pos] = c
}

// Replies are read-only, so the write side always fails.
func (r *HTTPReply) PutChar(byte) bool            { return false }
func (r *HTTPReply) IsWritable() bool             { return false }
func (r *HTTPReply) Write([]byte) int64           { return -1 }
func (r *HTTPReply) WaitForBytesWritten(int) bool { return false }

// WaitForReadyRead reports false since the body was buffered up front and no
// more data will arrive.
func (r *HTTPReply) WaitForReadyRead(int) bool { return false }

// Text mode is recorded but the body is returned as received.
func (r *HTTPReply) IsTextModeEnabled() bool         { return r.textMode }
func (r *HTTPReply) SetTextModeEnabled(enabled bool) { r.textMode = enabled }

// Open fails: a reply is opened when it is created and cannot be reopened.
func (r *HTTPReply) Open(OpenMode) bool { return false }

func (r *HTTPReply) OpenMode() OpenMode {
	if !r.open {
		return NotOpen
	}
	if r.textMode {
		return ReadOnly | Text
	}
	return ReadOnly
}

// RawHeaderPairs returns each response header with its joined value, sorted
// by name.
func (r *HTTPReply) RawHeaderPairs() [][2]string {
	names := r.RawHeaderList()
	pairs := make([][2]string, len(names))
	for i, name := range names {
		pairs[i] = [2]string{name, r.RawHeader(name)}
	}
	return pairs
}

// SslConfiguration describes the negotiated TLS session, or nil for plain
// HTTP.
func (r *HTTPReply) SslConfiguration() map[string]string {
	if r.tls == nil {
		return nil
	}
	cfg := map[string]string{
		"protocol":   tls.VersionName(r.tls.Version),
		"cipher":     tls.CipherSuiteName(r.tls.CipherSuite),
		"serverName": r.tls.ServerName,
	}
	if len(r.tls.PeerCertificates) > 0 {
		cfg["peerCertificate"] = r.tls.PeerCertificates[0].Subject.String()
	}
	return cfg
}
